package verifier

import (
	"context"

	"github.com/xxxsen/arccheck/internal/model"
	"github.com/xxxsen/arccheck/internal/volume"
)

// RarVerifier tests RAR archives with an unrar compatible tool. There is
// no in-process fallback: a missing tool fails the file.
type RarVerifier struct {
	Tool   string
	Runner ToolRunner
}

func (v *RarVerifier) Verify(ctx context.Context, path string) (model.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return model.Verdict{}, interrupted(err)
	}
	target := path
	set, err := splitSet(path, volume.SchemeRarPartNew, volume.SchemeRarPartOld)
	if err != nil {
		return model.Fail(path, "multi-volume rar: %v", err), nil
	}
	if set != nil {
		check := volume.CheckSequence(set.Parts)
		if !check.Complete {
			return model.Fail(path, "multi-volume rar: %s", check.Message), nil
		}
		entry, _ := set.Entry()
		target = entry.Path
	}
	return v.test(ctx, path, target)
}

func (v *RarVerifier) test(ctx context.Context, path, target string) (model.Verdict, error) {
	return testWithTool(ctx, v.Runner, v.Tool, "rar", path, target, "t", "-idq")
}
