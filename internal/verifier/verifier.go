// Package verifier holds one integrity check per archive kind. Expected
// failures (corrupt data, missing parts, tool errors) are reported as
// failing verdicts; an error is returned only when the check was
// interrupted by cancellation and produced no verdict.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xxxsen/arccheck/internal/archive"
	"github.com/xxxsen/arccheck/internal/model"
	"github.com/xxxsen/arccheck/internal/volume"
)

var ErrInterrupted = errors.New("check interrupted")

const (
	defaultChunkSize = 8 * 1024

	DefaultUnrarTool    = "unrar"
	DefaultSevenZipTool = "7z"

	EngineExternal = "external"
	EngineBuiltin  = "builtin"
)

type Verifier interface {
	Verify(ctx context.Context, path string) (model.Verdict, error)
}

type Options struct {
	UnrarTool      string
	SevenZipTool   string
	SevenZipEngine string
	Runner         ToolRunner
	ChunkSize      int
}

// Set holds the verifier for every known kind.
type Set struct {
	zip    Verifier
	rar    Verifier
	sevenZ Verifier
}

func NewSet(opts Options) (*Set, error) {
	if opts.Runner == nil {
		opts.Runner = NewExecRunner()
	}
	if strings.TrimSpace(opts.UnrarTool) == "" {
		opts.UnrarTool = DefaultUnrarTool
	}
	if strings.TrimSpace(opts.SevenZipTool) == "" {
		opts.SevenZipTool = DefaultSevenZipTool
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	var builtin bool
	switch strings.ToLower(strings.TrimSpace(opts.SevenZipEngine)) {
	case "", EngineExternal:
	case EngineBuiltin:
		builtin = true
	default:
		return nil, fmt.Errorf("unknown 7z engine %q", opts.SevenZipEngine)
	}
	rar := &RarVerifier{Tool: opts.UnrarTool, Runner: opts.Runner}
	return &Set{
		zip: &ZipVerifier{ChunkSize: opts.ChunkSize},
		rar: rar,
		sevenZ: &SevenZipVerifier{
			Tool:      opts.SevenZipTool,
			Runner:    opts.Runner,
			Rar:       rar,
			Builtin:   builtin,
			ChunkSize: opts.ChunkSize,
		},
	}, nil
}

// For returns nil for KindUnknown.
func (s *Set) For(kind archive.Kind) Verifier {
	switch kind {
	case archive.KindZip:
		return s.zip
	case archive.KindRar:
		return s.rar
	case archive.KindSevenZ:
		return s.sevenZ
	case archive.KindUnknown:
		return nil
	}
	return nil
}

func interrupted(err error) error {
	return fmt.Errorf("%w: %v", ErrInterrupted, err)
}

// splitSet returns the volume set path belongs to when it is part of a
// split archive of one of the given schemes, nil for a standalone archive.
func splitSet(path string, accept ...volume.Scheme) (*volume.VolumeSet, error) {
	name := filepath.Base(path)
	_, numbered := volume.Detect(name)
	_, _, closing := volume.FinalOf(name)
	if !numbered && !closing {
		return nil, nil
	}
	set, err := volume.FindParts(path)
	if err != nil {
		return nil, err
	}
	if !set.Multi() {
		return nil, nil
	}
	for _, s := range accept {
		if set.Scheme == s {
			return set, nil
		}
	}
	return nil, nil
}
