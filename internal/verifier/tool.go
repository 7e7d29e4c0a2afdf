package verifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/arccheck/internal/model"
)

var ErrToolNotFound = errors.New("test tool not found")

const defaultWaitDelay = 2 * time.Second

// ToolResult is what an external tester reported. Only ExitCode drives
// decisions; the output is carried into the verdict message verbatim.
type ToolResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ToolRunner runs an external archive tester.
type ToolRunner interface {
	Run(ctx context.Context, tool string, args ...string) (*ToolResult, error)
	Available(tool string) (string, error)
}

// ExecRunner runs tools as subprocesses resolved through PATH. A cancelled
// context kills the subprocess.
type ExecRunner struct {
	WaitDelay time.Duration
}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{WaitDelay: defaultWaitDelay}
}

func (r *ExecRunner) Available(tool string) (string, error) {
	bin, err := exec.LookPath(tool)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrToolNotFound, tool, err)
	}
	return bin, nil
}

func (r *ExecRunner) Run(ctx context.Context, tool string, args ...string) (*ToolResult, error) {
	bin, err := r.Available(tool)
	if err != nil {
		return nil, err
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if r.WaitDelay > 0 {
		cmd.WaitDelay = r.WaitDelay
	}

	err = cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	res := &ToolResult{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", tool, err)
	}
	return res, nil
}

// testWithTool turns an external tester run into a verdict for path.
// Only context cancellation is returned as an error.
func testWithTool(ctx context.Context, runner ToolRunner, tool, label, path, target string, args ...string) (model.Verdict, error) {
	logutil.GetLogger(ctx).Debug("run archive test tool",
		zap.String("tool", tool),
		zap.String("file", target),
	)
	res, err := runner.Run(ctx, tool, append(args, target)...)
	if err != nil {
		if ctx.Err() != nil {
			return model.Verdict{}, interrupted(ctx.Err())
		}
		if errors.Is(err, ErrToolNotFound) {
			logutil.GetLogger(ctx).Debug("archive test tool not found", zap.String("tool", tool), zap.Error(err))
			return model.Fail(path, "%s test failed: %s is not available", label, tool), nil
		}
		return model.Fail(path, "%s test failed: %v", label, err), nil
	}
	if res.ExitCode != 0 {
		out := strings.TrimSpace(res.Stderr)
		if out == "" {
			out = strings.TrimSpace(res.Stdout)
		}
		if out == "" {
			out = "no output"
		}
		return model.Fail(path, "%s test failed (exit %d): %s", label, res.ExitCode, out), nil
	}
	return model.Pass(path), nil
}
