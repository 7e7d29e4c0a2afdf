package scan

import (
	"math"
	"sync"
	"time"

	"github.com/xxxsen/arccheck/internal/model"
)

// Tracker owns the ScanProgress of one run. Every mutation goes through
// Record so elapsed time and the average are always derived from one view.
type Tracker struct {
	mu    sync.Mutex
	now   func() time.Time
	start time.Time
	p     model.ScanProgress
}

func NewTracker(total int, start time.Time, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now, start: start, p: model.ScanProgress{TotalFiles: total}}
}

// Record counts one verdict and returns the snapshot taken right after.
func (t *Tracker) Record(v model.Verdict) model.ScanProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.ProcessedFiles++
	if !v.OK {
		t.p.CorruptedFiles++
	}
	t.refresh()
	return t.p
}

func (t *Tracker) Snapshot() model.ScanProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refresh()
	return t.p
}

func (t *Tracker) refresh() {
	elapsed := t.now().Sub(t.start)
	if elapsed < 0 {
		elapsed = 0
	}
	t.p.ElapsedTime = elapsed
	t.p.ElapsedSeconds = round2(elapsed.Seconds())
	t.p.AvgTimePerFile = 0
	if t.p.ProcessedFiles > 0 {
		t.p.AvgTimePerFile = round2(elapsed.Seconds() / float64(t.p.ProcessedFiles))
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
