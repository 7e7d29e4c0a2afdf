package report

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"strings"
)

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func writeText(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	rule := strings.Repeat("-", 20)
	fmt.Fprintln(bw, "Archive check report")
	fmt.Fprintln(bw, strings.Repeat("=", 50))
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "Run ID: %s\n", doc.RunID)
	fmt.Fprintf(bw, "Date: %s\n", doc.GeneratedAt.Format(dateLayout))
	fmt.Fprintf(bw, "Directory: %s\n", doc.Directory)
	fmt.Fprintf(bw, "Extensions: %s\n", strings.Join(doc.Extensions, ", "))
	fmt.Fprintf(bw, "Recursive: %s\n", yesNo(doc.Recursive))
	if doc.Result.WasCancelled {
		fmt.Fprintln(bw, "Cancelled: yes")
	}
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "Statistics:")
	fmt.Fprintln(bw, rule)
	for _, s := range doc.stats() {
		fmt.Fprintf(bw, "%s: %s\n", s.Key, s.Value)
	}
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "Corrupted archives:")
	fmt.Fprintln(bw, rule)
	for _, c := range doc.corrupted() {
		fmt.Fprintf(bw, "File: %s\n", c.Path)
		fmt.Fprintf(bw, "Error: %s\n", c.Message)
		fmt.Fprintln(bw, strings.Repeat("-", 50))
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write text report: %w", err)
	}
	return nil
}

var htmlReport = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Archive check report</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; }
h1 { color: #333; }
.stats { background-color: #f5f5f5; padding: 10px; border-radius: 5px; }
.error { color: #d9534f; }
.archive { margin: 10px 0; padding: 10px; border: 1px solid #ddd; }
</style>
</head>
<body>
<h1>Archive check report</h1>
<p><strong>Run ID:</strong> {{.RunID}}</p>
<p><strong>Date:</strong> {{.Date}}</p>
<p><strong>Directory:</strong> {{.Directory}}</p>
<p><strong>Extensions:</strong> {{.Extensions}}</p>
<p><strong>Recursive:</strong> {{.Recursive}}</p>
{{- if .Cancelled}}
<p><strong>Cancelled:</strong> yes</p>
{{- end}}
<h2>Statistics</h2>
<div class="stats">
{{- range .Stats}}
<p><strong>{{.Key}}:</strong> {{.Value}}</p>
{{- end}}
</div>
<h2>Corrupted archives</h2>
{{- range .Corrupted}}
<div class="archive">
<p><strong>File:</strong> {{.Path}}</p>
<p class="error"><strong>Error:</strong> {{.Message}}</p>
</div>
{{- end}}
</body>
</html>
`))

func writeHTML(w io.Writer, doc *Document) error {
	data := struct {
		RunID      string
		Date       string
		Directory  string
		Extensions string
		Recursive  string
		Cancelled  bool
		Stats      []statRow
		Corrupted  []corruptedRow
	}{
		RunID:      doc.RunID,
		Date:       doc.GeneratedAt.Format(dateLayout),
		Directory:  doc.Directory,
		Extensions: strings.Join(doc.Extensions, ", "),
		Recursive:  yesNo(doc.Recursive),
		Cancelled:  doc.Result.WasCancelled,
		Stats:      doc.stats(),
		Corrupted:  doc.corrupted(),
	}
	if err := htmlReport.Execute(w, data); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}

// writeCSV lists every checked file, not only the corrupted ones, followed
// by the statistics as key;value rows after a blank line.
func writeCSV(w io.Writer, doc *Document) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write([]string{"file", "status", "error"}); err != nil {
		return fmt.Errorf("write csv report: %w", err)
	}
	for _, v := range doc.Result.Verdicts {
		status := "OK"
		if !v.OK {
			status = "Error"
		}
		if err := cw.Write([]string{v.Path, status, v.Message}); err != nil {
			return fmt.Errorf("write csv report: %w", err)
		}
	}
	stats := [][]string{nil}
	for _, row := range doc.stats() {
		stats = append(stats, []string{row.Key, row.Value})
	}
	if doc.Result.WasCancelled {
		stats = append(stats, []string{"cancelled", "yes"})
	}
	if err := cw.WriteAll(stats); err != nil {
		return fmt.Errorf("write csv report: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv report: %w", err)
	}
	return nil
}
