package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/arccheck/internal/app"
)

var rootCmd = newRootCommand()

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "arccheck",
		Short:         "Scan directories for corrupted zip, rar and 7z archives",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	for _, name := range app.RunnerList() {
		root.AddCommand(newRunnerCommand(app.MustResolveRunner(name)))
	}
	return root
}

func newRunnerCommand(runner app.IRunner) *cobra.Command {
	subcmd := &cobra.Command{
		Use:   runner.Name(),
		Short: runner.Desc(),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			if err := runner.PreRun(ctx); err != nil {
				return err
			}
			if err := runner.Run(ctx); err != nil {
				return err
			}
			return runner.PostRun(ctx)
		},
	}
	runner.Init(subcmd.Flags())
	return subcmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// Execute runs the CLI.
func Execute() error {
	return ExecuteContext(context.Background())
}

func ExecuteContext(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logutil.GetLogger(ctx).Error("exec cmd failed", zap.Error(err))
		return err
	}
	return nil
}
