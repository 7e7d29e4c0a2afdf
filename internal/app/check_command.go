package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/arccheck/internal/config"
	"github.com/xxxsen/arccheck/internal/model"
	"github.com/xxxsen/arccheck/internal/report"
	"github.com/xxxsen/arccheck/internal/scan"
	"github.com/xxxsen/arccheck/internal/storage"
	"github.com/xxxsen/arccheck/internal/verifier"
)

// CheckCommand scans a directory for damaged archives and writes a report
// when it finds any.
type CheckCommand struct {
	flags        *pflag.FlagSet
	configPath   string
	dir          string
	exts         []string
	recursive    bool
	concurrency  int
	format       string
	reportDir    string
	alwaysReport bool
	upload       bool

	out        io.Writer
	runner     verifier.ToolRunner
	cfg        *config.Config
	req        model.ScanRequest
	repFormat  report.Format
	result     *model.ScanResult
	reportPath string
	reportKey  string
}

func NewCheckCommand() *CheckCommand {
	return &CheckCommand{out: os.Stdout}
}

func (c *CheckCommand) Name() string { return "check" }

func (c *CheckCommand) Desc() string {
	return "扫描目录，检查压缩包是否损坏并生成报告"
}

func (c *CheckCommand) Init(f *pflag.FlagSet) {
	c.flags = f
	f.StringVar(&c.configPath, "config", "", "配置文件路径 (json/yaml)")
	f.StringVar(&c.dir, "dir", "", "待扫描目录，默认使用配置中的 default_directory")
	f.StringSliceVar(&c.exts, "ext", nil, "需要检查的扩展名，逗号分隔，默认使用配置中启用的类型")
	f.BoolVar(&c.recursive, "recursive", true, "递归扫描子目录")
	f.IntVar(&c.concurrency, "concurrency", 0, "并发检查数量，0 表示使用配置或 CPU 数量-1")
	f.StringVar(&c.format, "format", "", "报告格式: txt, html, json, csv")
	f.StringVar(&c.reportDir, "output", "", "报告输出目录，默认为扫描目录")
	f.BoolVar(&c.alwaysReport, "always-report", false, "没有损坏的压缩包时也生成报告")
	f.BoolVar(&c.upload, "upload", false, "将报告上传到 S3")
}

func (c *CheckCommand) changed(name string) bool {
	return c.flags != nil && c.flags.Changed(name)
}

func (c *CheckCommand) PreRun(ctx context.Context) error {
	cfg, err := loadConfig(ctx, c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	dir := strings.TrimSpace(c.dir)
	if dir == "" {
		dir = strings.TrimSpace(cfg.Scan.DefaultDirectory)
	}
	if dir == "" {
		return errors.New("check requires --dir")
	}
	exts := c.exts
	if len(exts) == 0 {
		exts = cfg.EnabledExtensions()
	}
	recursive := cfg.Recursive()
	if c.changed("recursive") {
		recursive = c.recursive
	}
	concurrency := c.concurrency
	if concurrency <= 0 {
		concurrency = cfg.Concurrency()
	}
	req, err := model.NewScanRequest(dir, exts, recursive, concurrency)
	if err != nil {
		return err
	}
	c.req = req

	format := c.format
	if format == "" {
		format = cfg.Report.Format
	}
	if c.repFormat, err = report.ParseFormat(format); err != nil {
		return err
	}
	if c.reportDir == "" {
		c.reportDir = cfg.Report.Dir
	}
	if c.reportDir == "" {
		c.reportDir = req.RootPath
	}
	c.alwaysReport = c.alwaysReport || cfg.Report.Always
	if c.upload {
		if _, err := ensureStorage(ctx, cfg); err != nil {
			return err
		}
	}

	logutil.GetLogger(ctx).Info("starting check",
		zap.String("dir", req.RootPath),
		zap.Strings("extensions", req.Extensions),
		zap.Bool("recursive", req.Recursive),
		zap.Int("concurrency", req.Concurrency),
	)
	return nil
}

func (c *CheckCommand) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)

	set, err := newVerifierSet(c.cfg, c.runner)
	if err != nil {
		return err
	}
	grace, err := c.cfg.GracePeriod()
	if err != nil {
		return err
	}
	coord := scan.New(set,
		scan.WithResolver(newResolver(c.cfg)),
		scan.WithGracePeriod(grace),
	)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	res, err := coord.Run(sigCtx, c.req, newConsoleObserver(c.out))
	if err != nil {
		return err
	}
	c.result = res
	printSummary(c.out, res)

	if len(res.Corrupted) == 0 && !c.alwaysReport {
		return nil
	}
	doc := report.NewDocument(c.req, res)
	path, err := report.WriteFile(c.reportDir, c.repFormat, doc)
	if err != nil {
		return err
	}
	c.reportPath = path
	fmt.Fprintf(c.out, "report saved to %s\n", path)
	logger.Info("report written", zap.String("path", path), zap.String("run_id", doc.RunID))

	if !c.upload {
		return nil
	}
	// the report is still uploaded after an interrupted scan
	upCtx := context.WithoutCancel(ctx)
	key, err := storage.UploadReport(upCtx, storage.DefaultClient(), doc.RunID, path)
	if err != nil {
		return err
	}
	c.reportKey = key
	logger.Info("report uploaded",
		zap.String("key", key),
		zap.String("link", storage.DefaultClient().GetDownloadLink(upCtx, key)),
	)
	return nil
}

func (c *CheckCommand) PostRun(ctx context.Context) error {
	if c.result == nil {
		return nil
	}
	logutil.GetLogger(ctx).Info("check finished",
		zap.Int("total", c.result.Stats.TotalFiles),
		zap.Int("processed", c.result.Stats.ProcessedFiles),
		zap.Int("corrupted", c.result.Stats.CorruptedFiles),
		zap.Bool("cancelled", c.result.WasCancelled),
	)
	return nil
}

func (c *CheckCommand) Result() *model.ScanResult {
	return c.result
}

func init() {
	RegisterRunner("check", func() IRunner { return NewCheckCommand() })
}
