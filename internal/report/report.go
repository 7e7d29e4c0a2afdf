// Package report turns a scan result into the TXT, HTML, JSON or CSV report
// written next to the scanned files.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xxxsen/arccheck/internal/model"
)

type Format string

const (
	FormatTXT  Format = "txt"
	FormatHTML Format = "html"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"

	fileStem   = "corrupted_archives_report"
	dateLayout = "2006-01-02 15:04:05"
)

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatTXT, FormatHTML, FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatTXT, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// DefaultFileName is the report name used when the caller gives none.
func DefaultFileName(f Format) string {
	return fileStem + "." + string(f)
}

// Document is everything a report shows about one run.
type Document struct {
	RunID       string
	GeneratedAt time.Time
	Directory   string
	Extensions  []string
	Recursive   bool
	Result      *model.ScanResult
}

func NewDocument(req model.ScanRequest, res *model.ScanResult) *Document {
	return &Document{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now(),
		Directory:   req.RootPath,
		Extensions:  req.Extensions,
		Recursive:   req.Recursive,
		Result:      res,
	}
}

type statRow struct {
	Key   string
	Value string
}

func (d *Document) stats() []statRow {
	p := d.Result.Stats
	return []statRow{
		{Key: "total_files", Value: strconv.Itoa(p.TotalFiles)},
		{Key: "processed_files", Value: strconv.Itoa(p.ProcessedFiles)},
		{Key: "corrupted_files", Value: strconv.Itoa(p.CorruptedFiles)},
		{Key: "elapsed_time", Value: strconv.FormatFloat(p.ElapsedSeconds, 'f', 2, 64)},
		{Key: "avg_time_per_file", Value: strconv.FormatFloat(p.AvgTimePerFile, 'f', 2, 64)},
	}
}

type corruptedRow struct {
	Path    string
	Message string
}

func (d *Document) corrupted() []corruptedRow {
	paths := d.Result.CorruptedPaths()
	out := make([]corruptedRow, 0, len(paths))
	for _, p := range paths {
		out = append(out, corruptedRow{Path: p, Message: d.Result.Corrupted[p]})
	}
	return out
}

func Write(w io.Writer, f Format, doc *Document) error {
	if doc == nil || doc.Result == nil {
		return fmt.Errorf("write %s report: no scan result", f)
	}
	switch f {
	case FormatTXT:
		return writeText(w, doc)
	case FormatHTML:
		return writeHTML(w, doc)
	case FormatJSON:
		return writeJSON(w, doc)
	case FormatCSV:
		return writeCSV(w, doc)
	}
	return fmt.Errorf("unknown report format %q", f)
}

// WriteFile writes the report into dir under its default name and returns
// the path written.
func WriteFile(dir string, f Format, doc *Document) (string, error) {
	path := filepath.Join(dir, DefaultFileName(f))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report %s: %w", path, err)
	}
	if err := Write(out, f, doc); err != nil {
		_ = out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close report %s: %w", path, err)
	}
	return path, nil
}

type jsonReport struct {
	RunID      string             `json:"run_id"`
	Date       string             `json:"date"`
	Directory  string             `json:"directory"`
	Extensions []string           `json:"extensions"`
	Recursive  bool               `json:"recursive"`
	Cancelled  bool               `json:"cancelled"`
	Statistics model.ScanProgress `json:"statistics"`
	Corrupted  map[string]string  `json:"corrupted_archives"`
}

func writeJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(jsonReport{
		RunID:      doc.RunID,
		Date:       doc.GeneratedAt.Format(dateLayout),
		Directory:  doc.Directory,
		Extensions: doc.Extensions,
		Recursive:  doc.Recursive,
		Cancelled:  doc.Result.WasCancelled,
		Statistics: doc.Result.Stats,
		Corrupted:  doc.Result.Corrupted,
	}); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}
