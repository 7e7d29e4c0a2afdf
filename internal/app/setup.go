package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/arccheck/internal/archive"
	"github.com/xxxsen/arccheck/internal/config"
	"github.com/xxxsen/arccheck/internal/storage"
	"github.com/xxxsen/arccheck/internal/verifier"
)

const (
	defaultConfigName = "arccheck.json"
	systemConfigPath  = "/etc/arccheck.json"
)

// loadConfig reads the explicit config path when one is given. Otherwise
// the working directory and /etc are searched and the built-in defaults are
// used when neither has a config file.
func loadConfig(ctx context.Context, explicit string) (*config.Config, error) {
	if explicit != "" {
		cfg, err := config.Load(explicit)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", explicit, err)
		}
		return cfg, nil
	}

	searchPaths := make([]string, 0, 2)
	if wd, err := os.Getwd(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(wd, defaultConfigName))
	}
	searchPaths = append(searchPaths, systemConfigPath)

	cfg, err := config.LoadFirst(searchPaths...)
	if errors.Is(err, os.ErrNotExist) {
		logutil.GetLogger(ctx).Debug("no config file found, using defaults", zap.Strings("paths", searchPaths))
		return config.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func newVerifierSet(cfg *config.Config, runner verifier.ToolRunner) (*verifier.Set, error) {
	return verifier.NewSet(verifier.Options{
		UnrarTool:      cfg.Tools.Unrar,
		SevenZipTool:   cfg.Tools.SevenZip,
		SevenZipEngine: cfg.Tools.SevenZipEngine,
		Runner:         runner,
	})
}

func newResolver(cfg *config.Config) *archive.Resolver {
	return archive.NewResolver(cfg.ResolverRules()...)
}

// ensureStorage returns the default storage client, creating it from the
// s3 section of cfg on first use.
func ensureStorage(ctx context.Context, cfg *config.Config) (storage.Client, error) {
	if store := storage.DefaultClient(); store != nil {
		return store, nil
	}
	if cfg.S3 == nil {
		return nil, errors.New("report upload requires the s3 section in config")
	}
	store, err := storage.NewS3Client(ctx, *cfg.S3)
	if err != nil {
		return nil, err
	}
	storage.SetDefaultClient(store)
	return store, nil
}
