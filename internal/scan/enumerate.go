package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/arccheck/internal/archive"
	"github.com/xxxsen/arccheck/internal/model"
	"github.com/xxxsen/arccheck/internal/volume"
)

var ErrRootNotFound = errors.New("scan root not found")

// Enumerate lists the work items of req: files whose name ends with a
// requested extension and resolves to a known kind, with the members of a
// split set collapsed into their seed.
func Enumerate(ctx context.Context, req model.ScanRequest, resolver *archive.Resolver) ([]model.CandidateFile, error) {
	if resolver == nil {
		resolver = archive.NewResolver()
	}
	root := req.RootPath
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return nil, fmt.Errorf("stat scan root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootNotFound, root)
	}

	accept := func(name string) bool {
		if req.Matches(name) && resolver.Resolve(name) != archive.KindUnknown {
			return true
		}
		// a split set that lost its first part is still checked through the
		// members left on disk
		m, ok := volume.Detect(name)
		if !ok {
			return false
		}
		first := volume.FirstPartName(m)
		return req.Matches(first) && resolver.Resolve(first) != archive.KindUnknown
	}
	var files []model.CandidateFile
	if req.Recursive {
		logger := logutil.GetLogger(ctx)
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root {
					return err
				}
				logger.Warn("skip unreadable path", zap.String("path", path), zap.Error(err))
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if accept(d.Name()) {
				files = append(files, model.NewCandidateFile(path))
			}
			return nil
		})
	} else {
		var entries []os.DirEntry
		entries, err = os.ReadDir(root)
		for _, e := range entries {
			if e.IsDir() || !accept(e.Name()) {
				continue
			}
			files = append(files, model.NewCandidateFile(filepath.Join(root, e.Name())))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("read scan root %s: %w", root, err)
	}
	return collapseVolumes(files), nil
}

// resolveKind maps name to its archive kind. A numbered part the rules do
// not know (x.002) takes the kind of the first part of its set.
func resolveKind(resolver *archive.Resolver, name string) archive.Kind {
	kind := resolver.Resolve(name)
	if kind != archive.KindUnknown {
		return kind
	}
	if m, ok := volume.Detect(name); ok {
		return resolver.Resolve(volume.FirstPartName(m))
	}
	return archive.KindUnknown
}

type setKey struct {
	dir    string
	base   string
	scheme volume.Scheme
}

type seedPart struct {
	file  model.CandidateFile
	index int
}

// collapseVolumes keeps one file per split set: the lowest numbered part.
// An unnumbered closing part (x.rar next to x.r00) joins the set of the
// same base. The position of the first member seen is kept.
func collapseVolumes(files []model.CandidateFile) []model.CandidateFile {
	seeds := make(map[setKey]seedPart)
	for _, f := range files {
		m, ok := volume.Detect(f.Name)
		if !ok {
			continue
		}
		key := setKey{dir: filepath.Dir(f.Path), base: strings.ToLower(m.Base), scheme: m.Scheme}
		if cur, seen := seeds[key]; !seen || m.Index < cur.index {
			seeds[key] = seedPart{file: f, index: m.Index}
		}
	}
	if len(seeds) == 0 {
		return files
	}

	out := make([]model.CandidateFile, 0, len(files))
	emitted := make(map[setKey]bool, len(seeds))
	for _, f := range files {
		dir := filepath.Dir(f.Path)
		if m, ok := volume.Detect(f.Name); ok {
			key := setKey{dir: dir, base: strings.ToLower(m.Base), scheme: m.Scheme}
			if !emitted[key] {
				emitted[key] = true
				out = append(out, seeds[key].file)
			}
			continue
		}
		if base, scheme, ok := volume.FinalOf(f.Name); ok {
			key := setKey{dir: dir, base: strings.ToLower(base), scheme: scheme}
			if _, grouped := seeds[key]; grouped {
				if !emitted[key] {
					emitted[key] = true
					out = append(out, seeds[key].file)
				}
				continue
			}
		}
		out = append(out, f)
	}
	return out
}
