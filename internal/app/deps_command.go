package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/arccheck/internal/config"
	"github.com/xxxsen/arccheck/internal/verifier"
)

// DepsCommand reports whether the external archive testers can be found.
type DepsCommand struct {
	configPath string

	out    io.Writer
	runner verifier.ToolRunner
	cfg    *config.Config
	status []toolStatus
}

type toolStatus struct {
	Label    string
	Tool     string
	Path     string
	Err      error
	Required bool
}

func NewDepsCommand() *DepsCommand {
	return &DepsCommand{out: os.Stdout}
}

func (c *DepsCommand) Name() string { return "deps" }

func (c *DepsCommand) Desc() string {
	return "检查 unrar / 7z 等外部工具是否可用"
}

func (c *DepsCommand) Init(f *pflag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "配置文件路径 (json/yaml)")
}

func (c *DepsCommand) PreRun(ctx context.Context) error {
	cfg, err := loadConfig(ctx, c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	if c.runner == nil {
		c.runner = verifier.NewExecRunner()
	}
	return nil
}

func (c *DepsCommand) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)

	unrar := c.cfg.Tools.Unrar
	if strings.TrimSpace(unrar) == "" {
		unrar = verifier.DefaultUnrarTool
	}
	sevenZip := c.cfg.Tools.SevenZip
	if strings.TrimSpace(sevenZip) == "" {
		sevenZip = verifier.DefaultSevenZipTool
	}
	builtin := strings.EqualFold(strings.TrimSpace(c.cfg.Tools.SevenZipEngine), verifier.EngineBuiltin)

	c.status = []toolStatus{
		{Label: "rar", Tool: unrar, Required: true},
		{Label: "7z", Tool: sevenZip, Required: !builtin},
	}
	missing := 0
	for i := range c.status {
		st := &c.status[i]
		st.Path, st.Err = c.runner.Available(st.Tool)
		switch {
		case st.Err == nil:
			fmt.Fprintf(c.out, "ok      %-4s %s (%s)\n", st.Label, st.Tool, st.Path)
		case st.Required:
			missing++
			fmt.Fprintf(c.out, "missing %-4s %s\n", st.Label, st.Tool)
			logger.Warn("archive tester not found", zap.String("tool", st.Tool), zap.Error(st.Err))
		default:
			fmt.Fprintf(c.out, "skipped %-4s %s (builtin 7z engine in use)\n", st.Label, st.Tool)
		}
	}
	if missing > 0 {
		return fmt.Errorf("%d archive tester(s) not available, archives of that type will fail the check", missing)
	}
	fmt.Fprintln(c.out, "all archive testers are available")
	return nil
}

func (c *DepsCommand) PostRun(ctx context.Context) error { return nil }

func init() {
	RegisterRunner("deps", func() IRunner { return NewDepsCommand() })
}
