package app

import (
	"fmt"
	"io"

	"github.com/xxxsen/arccheck/internal/model"
)

// consoleObserver prints one line per checked file, prefixed with the
// progress reached by that file.
type consoleObserver struct {
	out     io.Writer
	percent int
}

func newConsoleObserver(out io.Writer) *consoleObserver {
	return &consoleObserver{out: out}
}

func (o *consoleObserver) OnProgress(percent int, snapshot model.ScanProgress) {
	o.percent = percent
}

func (o *consoleObserver) OnLog(line string) {
	fmt.Fprintf(o.out, "[%3d%%] %s\n", o.percent, line)
}

func printSummary(out io.Writer, res *model.ScanResult) {
	s := res.Stats
	fmt.Fprintln(out)
	switch {
	case res.WasCancelled:
		fmt.Fprintf(out, "check stopped: processed %d of %d files\n", s.ProcessedFiles, s.TotalFiles)
	case len(res.Corrupted) > 0:
		fmt.Fprintf(out, "found %d corrupted archive(s):\n", len(res.Corrupted))
		for _, p := range res.CorruptedPaths() {
			fmt.Fprintf(out, "  %s\n    %s\n", p, res.Corrupted[p])
		}
	case s.TotalFiles == 0:
		fmt.Fprintln(out, "no archives found")
	default:
		fmt.Fprintln(out, "all archives are fine")
	}
	fmt.Fprintf(out, "total: %d, processed: %d, corrupted: %d, elapsed: %.2fs, avg: %.2fs/file\n",
		s.TotalFiles, s.ProcessedFiles, s.CorruptedFiles, s.ElapsedSeconds, s.AvgTimePerFile)
}
