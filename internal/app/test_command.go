package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/arccheck/internal/archive"
	"github.com/xxxsen/arccheck/internal/config"
	"github.com/xxxsen/arccheck/internal/model"
	"github.com/xxxsen/arccheck/internal/verifier"
)

// TestCommand verifies a single archive (or the split set it belongs to).
type TestCommand struct {
	configPath string
	filePath   string

	out     io.Writer
	runner  verifier.ToolRunner
	cfg     *config.Config
	verdict model.Verdict
}

func NewTestCommand() *TestCommand {
	return &TestCommand{out: os.Stdout}
}

func (c *TestCommand) Name() string { return "test" }

func (c *TestCommand) Desc() string {
	return "检查单个压缩包（或其所在的分卷组）是否完整"
}

func (c *TestCommand) Init(f *pflag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "配置文件路径 (json/yaml)")
	f.StringVar(&c.filePath, "file", "", "待检查的压缩包文件路径")
}

func (c *TestCommand) PreRun(ctx context.Context) error {
	if strings.TrimSpace(c.filePath) == "" {
		return errors.New("test requires --file")
	}
	abs, err := filepath.Abs(c.filePath)
	if err != nil {
		return fmt.Errorf("resolve file path %s: %w", c.filePath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("stat archive %s: %w", abs, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, use check instead", abs)
	}
	c.filePath = abs

	cfg, err := loadConfig(ctx, c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	logutil.GetLogger(ctx).Info("starting test", zap.String("file", c.filePath))
	return nil
}

func (c *TestCommand) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)

	kind := newResolver(c.cfg).Resolve(filepath.Base(c.filePath))
	if kind == archive.KindUnknown {
		return fmt.Errorf("unsupported archive type: %s", filepath.Base(c.filePath))
	}
	set, err := newVerifierSet(c.cfg, c.runner)
	if err != nil {
		return err
	}
	v, err := set.For(kind).Verify(ctx, c.filePath)
	if err != nil {
		return err
	}
	c.verdict = v
	fmt.Fprintln(c.out, v.LogLine())
	if v.OK {
		logger.Info("archive check passed", zap.String("file", c.filePath), zap.String("kind", kind.String()))
		return nil
	}
	logger.Error("archive check failed", zap.String("file", c.filePath), zap.String("reason", v.Message))
	return fmt.Errorf("archive %s is corrupted", filepath.Base(c.filePath))
}

func (c *TestCommand) PostRun(ctx context.Context) error { return nil }

func init() {
	RegisterRunner("test", func() IRunner { return NewTestCommand() })
}
