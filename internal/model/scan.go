package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var ErrInvalidRequest = errors.New("invalid scan request")

// ScanRequest describes one scan run. It is not modified once the scan starts.
type ScanRequest struct {
	RootPath    string   `json:"root_path"`
	Extensions  []string `json:"extensions"`
	Recursive   bool     `json:"recursive"`
	Concurrency int      `json:"concurrency"`
}

// NewScanRequest builds a validated request with normalized extensions.
func NewScanRequest(root string, exts []string, recursive bool, concurrency int) (ScanRequest, error) {
	req := ScanRequest{
		RootPath:    strings.TrimSpace(root),
		Extensions:  NormalizeExtensions(exts),
		Recursive:   recursive,
		Concurrency: concurrency,
	}
	if err := req.Validate(); err != nil {
		return ScanRequest{}, err
	}
	if abs, err := filepath.Abs(req.RootPath); err == nil {
		req.RootPath = abs
	}
	return req, nil
}

func (r ScanRequest) Validate() error {
	if r.RootPath == "" {
		return fmt.Errorf("%w: root path is empty", ErrInvalidRequest)
	}
	if len(r.Extensions) == 0 {
		return fmt.Errorf("%w: no extensions given", ErrInvalidRequest)
	}
	if r.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidRequest, r.Concurrency)
	}
	return nil
}

// Matches reports whether name ends with one of the requested extensions.
func (r ScanRequest) Matches(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range r.Extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// NormalizeExtensions lowercases, dot-prefixes, dedups and sorts exts.
// Blank entries are dropped.
func NormalizeExtensions(exts []string) []string {
	seen := make(map[string]struct{}, len(exts))
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" || ext == "." {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

type CandidateFile struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

func NewCandidateFile(path string) CandidateFile {
	return CandidateFile{Path: path, Name: filepath.Base(path)}
}

// Verdict is the outcome of checking one file. A failing verdict always
// carries a message and a passing one never does.
type Verdict struct {
	Path    string `json:"path"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func Pass(path string) Verdict {
	return Verdict{Path: path, OK: true}
}

func Fail(path string, format string, args ...interface{}) Verdict {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	if msg == "" {
		msg = "unknown error"
	}
	return Verdict{Path: path, OK: false, Message: msg}
}

// LogLine renders the verdict the way it is streamed to the caller.
func (v Verdict) LogLine() string {
	name := filepath.Base(v.Path)
	if v.OK {
		return name + ": OK"
	}
	return name + ": " + v.Message
}

// ScanProgress is a snapshot of the run statistics.
type ScanProgress struct {
	TotalFiles     int           `json:"total_files"`
	ProcessedFiles int           `json:"processed_files"`
	CorruptedFiles int           `json:"corrupted_files"`
	ElapsedTime    time.Duration `json:"-"`
	ElapsedSeconds float64       `json:"elapsed_time"`
	AvgTimePerFile float64       `json:"avg_time_per_file"`
}

// Percent is floor(processed*100/total) clamped to [0,100]. The second
// return value is false when there is nothing to report against.
func (p ScanProgress) Percent() (int, bool) {
	if p.TotalFiles <= 0 {
		return 0, false
	}
	pct := p.ProcessedFiles * 100 / p.TotalFiles
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

type ScanResult struct {
	Corrupted    map[string]string `json:"corrupted"`
	Stats        ScanProgress      `json:"stats"`
	WasCancelled bool              `json:"was_cancelled"`
	Verdicts     []Verdict         `json:"verdicts"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
}

// CorruptedPaths returns the corrupted paths in sorted order.
func (r *ScanResult) CorruptedPaths() []string {
	out := make([]string, 0, len(r.Corrupted))
	for p := range r.Corrupted {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
