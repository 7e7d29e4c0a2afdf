package app

import (
	"context"

	"github.com/spf13/pflag"
)

// IRunner is one CLI sub command. The cli package calls Init while building
// the command tree, then PreRun, Run and PostRun in that order.
type IRunner interface {
	Name() string
	Desc() string
	Init(f *pflag.FlagSet)
	PreRun(ctx context.Context) error
	Run(ctx context.Context) error
	PostRun(ctx context.Context) error
}
