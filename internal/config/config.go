package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xxxsen/arccheck/internal/archive"
	"github.com/xxxsen/arccheck/internal/model"
)

const (
	defaultGracePeriod = "5s"
	defaultFormat      = "txt"
)

// Config describes the application level configuration loaded from json or
// yaml.
type Config struct {
	Scan   ScanConfig   `json:"scan" yaml:"scan"`
	Tools  ToolsConfig  `json:"tools" yaml:"tools"`
	Report ReportConfig `json:"report" yaml:"report"`
	S3     *S3Config    `json:"s3,omitempty" yaml:"s3,omitempty"`
}

type ScanConfig struct {
	DefaultDirectory string                 `json:"default_directory" yaml:"default_directory"`
	Recursive        *bool                  `json:"recursive,omitempty" yaml:"recursive,omitempty"`
	MaxThreads       int                    `json:"max_threads" yaml:"max_threads"`
	GracePeriod      string                 `json:"grace_period" yaml:"grace_period"`
	ArchiveTypes     map[string]ArchiveType `json:"archive_types" yaml:"archive_types"`
}

// ArchiveType is one entry of the archive type table. CheckMethod names the
// verifier (internal/zip, unrar/rar, 7z).
type ArchiveType struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	CheckMethod string   `json:"check_method" yaml:"check_method"`
	Description string   `json:"description" yaml:"description"`
	Extensions  []string `json:"extensions" yaml:"extensions"`
}

type ToolsConfig struct {
	Unrar          string `json:"unrar" yaml:"unrar"`
	SevenZip       string `json:"seven_zip" yaml:"seven_zip"`
	SevenZipEngine string `json:"seven_zip_engine" yaml:"seven_zip_engine"`
}

type ReportConfig struct {
	Format string `json:"format" yaml:"format"`
	Dir    string `json:"dir" yaml:"dir"`
	Always bool   `json:"always" yaml:"always"`
}

// S3Config holds the options for accessing the object store.
type S3Config struct {
	Host            string `json:"host" yaml:"host"`
	Bucket          string `json:"bucket" yaml:"bucket"`
	Region          string `json:"region" yaml:"region"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string `json:"session_token" yaml:"session_token"`
	ForcePathStyle  bool   `json:"force_path_style" yaml:"force_path_style"`
}

func defaultArchiveTypes() map[string]ArchiveType {
	return map[string]ArchiveType{
		"zip": {Enabled: true, CheckMethod: "internal", Description: "ZIP archives", Extensions: []string{".zip"}},
		"rar": {Enabled: true, CheckMethod: "unrar", Description: "RAR archives", Extensions: []string{".rar", ".r00", ".part1.rar", ".001"}},
		"7z":  {Enabled: true, CheckMethod: "7z", Description: "7-Zip archives", Extensions: []string{".7z", ".001"}},
	}
}

// Default is the configuration used when no config file is found.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Scan.Recursive == nil {
		recursive := true
		c.Scan.Recursive = &recursive
	}
	if strings.TrimSpace(c.Scan.GracePeriod) == "" {
		c.Scan.GracePeriod = defaultGracePeriod
	}
	if c.Scan.ArchiveTypes == nil {
		c.Scan.ArchiveTypes = defaultArchiveTypes()
	}
	if strings.TrimSpace(c.Report.Format) == "" {
		c.Report.Format = defaultFormat
	}
}

// LoadFirst tries to load configuration from the given paths, returning the
// first successfully decoded configuration. If none of the paths contain a
// readable config, an error wrapping os.ErrNotExist is returned.
func LoadFirst(paths ...string) (*Config, error) {
	var lastErr error
	for _, path := range paths {
		if path == "" {
			continue
		}
		cfg, err := Load(path)
		if errors.Is(err, os.ErrNotExist) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("config not found in paths %v: %w", paths, os.ErrNotExist)
	}
	return nil, lastErr
}

// Load reads configuration from a single file. Files ending in .yaml or
// .yml are decoded as yaml, everything else as json.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate performs basic validation of the configuration.
func (c *Config) Validate() error {
	if c.Scan.MaxThreads < 0 {
		return fmt.Errorf("config.scan.max_threads must not be negative, got %d", c.Scan.MaxThreads)
	}
	if _, err := c.GracePeriod(); err != nil {
		return err
	}
	for name, t := range c.Scan.ArchiveTypes {
		if !t.Enabled {
			continue
		}
		if _, err := archive.ParseKind(t.CheckMethod); err != nil {
			return fmt.Errorf("config.scan.archive_types.%s.check_method: %w", name, err)
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Tools.SevenZipEngine)) {
	case "", "external", "builtin":
	default:
		return fmt.Errorf("config.tools.seven_zip_engine must be external or builtin, got %q", c.Tools.SevenZipEngine)
	}
	switch strings.ToLower(strings.TrimSpace(c.Report.Format)) {
	case "", "txt", "html", "json", "csv":
	default:
		return fmt.Errorf("config.report.format must be one of txt, html, json, csv, got %q", c.Report.Format)
	}
	if c.S3 != nil {
		if c.S3.Host == "" {
			return errors.New("config.s3.host must be set")
		}
		if c.S3.Bucket == "" {
			return errors.New("config.s3.bucket must be set")
		}
	}
	return nil
}

func (c *Config) Recursive() bool {
	return c.Scan.Recursive == nil || *c.Scan.Recursive
}

// Concurrency is max_threads, or one less than the CPU count when unset.
func (c *Config) Concurrency() int {
	if c.Scan.MaxThreads > 0 {
		return c.Scan.MaxThreads
	}
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

func (c *Config) GracePeriod() (time.Duration, error) {
	raw := strings.TrimSpace(c.Scan.GracePeriod)
	if raw == "" {
		raw = defaultGracePeriod
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config.scan.grace_period: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config.scan.grace_period must be positive, got %s", raw)
	}
	return d, nil
}

func (c *Config) enabledTypes() []string {
	names := make([]string, 0, len(c.Scan.ArchiveTypes))
	for name, t := range c.Scan.ArchiveTypes {
		if t.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// EnabledExtensions is the normalized union of the enabled types' extensions.
func (c *Config) EnabledExtensions() []string {
	var exts []string
	for _, name := range c.enabledTypes() {
		exts = append(exts, c.Scan.ArchiveTypes[name].Extensions...)
	}
	return model.NormalizeExtensions(exts)
}

// ResolverRules maps every enabled extension to the kind of its check
// method. An extension claimed by types with different kinds falls back to
// the built-in rule for it, so ".001" keeps its content based routing.
func (c *Config) ResolverRules() []archive.Rule {
	builtin := make(map[string]archive.Kind, len(archive.DefaultRules))
	for _, r := range archive.DefaultRules {
		builtin[r.Suffix] = r.Kind
	}
	claimed := make(map[string]archive.Kind)
	var order []string
	for _, name := range c.enabledTypes() {
		t := c.Scan.ArchiveTypes[name]
		kind, err := archive.ParseKind(t.CheckMethod)
		if err != nil {
			continue
		}
		for _, ext := range model.NormalizeExtensions(t.Extensions) {
			prev, ok := claimed[ext]
			if !ok {
				claimed[ext] = kind
				order = append(order, ext)
				continue
			}
			if prev != kind {
				if k, ok := builtin[ext]; ok {
					claimed[ext] = k
				}
			}
		}
	}
	rules := make([]archive.Rule, 0, len(order)+1)
	for _, ext := range order {
		rules = append(rules, archive.Rule{Suffix: ext, Kind: claimed[ext]})
	}
	if _, ok := claimed[".rar"]; ok {
		rules = append(rules, archive.Rule{Suffix: ".part#.rar", Kind: claimed[".rar"]})
	}
	return rules
}
