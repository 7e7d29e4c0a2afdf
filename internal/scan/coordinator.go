// Package scan drives one archive integrity scan: it enumerates the work,
// fans it out over a bounded worker pool and folds the verdicts back into
// a single progress view on the calling goroutine.
package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/arccheck/internal/archive"
	"github.com/xxxsen/arccheck/internal/model"
	"github.com/xxxsen/arccheck/internal/report"
	"github.com/xxxsen/arccheck/internal/verifier"
)

const DefaultGracePeriod = 5 * time.Second

var ErrAlreadyStarted = errors.New("coordinator already started a scan")

// Observer receives the live events of a scan. Calls are made from the
// goroutine running Run, one at a time.
type Observer interface {
	OnProgress(percent int, snapshot model.ScanProgress)
	OnLog(line string)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Progress func(percent int, snapshot model.ScanProgress)
	Log      func(line string)
}

func (o ObserverFuncs) OnProgress(percent int, snapshot model.ScanProgress) {
	if o.Progress != nil {
		o.Progress(percent, snapshot)
	}
}

func (o ObserverFuncs) OnLog(line string) {
	if o.Log != nil {
		o.Log(line)
	}
}

// VerifierSource hands out the verifier for a kind; *verifier.Set is the
// production implementation.
type VerifierSource interface {
	For(kind archive.Kind) verifier.Verifier
}

type Option func(*Coordinator)

func WithResolver(r *archive.Resolver) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.resolver = r
		}
	}
}

// WithGracePeriod bounds how long Run waits for in-flight checks after a
// cancel request before abandoning them.
func WithGracePeriod(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.grace = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// Coordinator runs a single scan. Cancel may be called from any goroutine,
// before or during Run.
type Coordinator struct {
	verifiers VerifierSource
	resolver  *archive.Resolver
	grace     time.Duration
	now       func() time.Time

	started    atomic.Bool
	cancelled  atomic.Bool
	cancelOnce sync.Once
	cancelCh   chan struct{}
}

func New(verifiers VerifierSource, opts ...Option) *Coordinator {
	c := &Coordinator{
		verifiers: verifiers,
		resolver:  archive.NewResolver(),
		grace:     DefaultGracePeriod,
		now:       time.Now,
		cancelCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cancel stops dispatching new files and interrupts the running checks.
// It is idempotent.
func (c *Coordinator) Cancel() {
	c.cancelOnce.Do(func() {
		c.cancelled.Store(true)
		close(c.cancelCh)
	})
}

func (c *Coordinator) Cancelled() bool {
	return c.cancelled.Load()
}

// Run scans req.RootPath. Invalid requests and enumeration failures are
// returned before any check starts; everything that goes wrong with a
// single file ends up in its verdict. Cancelling ctx is the same as
// calling Cancel.
func (c *Coordinator) Run(ctx context.Context, req model.ScanRequest, obs Observer) (*model.ScanResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !c.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	if obs == nil {
		obs = ObserverFuncs{}
	}
	logger := logutil.GetLogger(ctx).With(zap.String("root", req.RootPath))

	items, err := Enumerate(ctx, req, c.resolver)
	if err != nil {
		return nil, err
	}
	startedAt := c.now()
	tracker := NewTracker(len(items), startedAt, c.now)
	logger.Info("scan started",
		zap.Int("total", len(items)),
		zap.Int("concurrency", req.Concurrency),
		zap.Bool("recursive", req.Recursive),
	)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.Cancel()
		case <-done:
		}
	}()

	workCtx, stop := context.WithCancel(ctx)
	defer stop()

	jobs := make(chan model.CandidateFile)
	verdicts := make(chan model.Verdict)
	abandon := make(chan struct{})

	go func() {
		defer close(jobs)
		for _, item := range items {
			if c.cancelled.Load() {
				return
			}
			select {
			case jobs <- item:
			case <-workCtx.Done():
				return
			}
		}
	}()

	var g errgroup.Group
	for i := 0; i < req.Concurrency; i++ {
		g.Go(func() error {
			for item := range jobs {
				v, ok := c.check(workCtx, item)
				if !ok {
					continue
				}
				select {
				case verdicts <- v:
				case <-abandon:
					return nil
				}
			}
			return nil
		})
	}
	poolDone := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(poolDone)
	}()

	var (
		collected  []model.Verdict
		cancelCh   = c.cancelCh
		graceC     <-chan time.Time
		graceTimer *time.Timer
	)
loop:
	for {
		select {
		case v := <-verdicts:
			snap := tracker.Record(v)
			collected = append(collected, v)
			if pct, ok := snap.Percent(); ok {
				obs.OnProgress(pct, snap)
			}
			obs.OnLog(v.LogLine())
		case <-poolDone:
			break loop
		case <-cancelCh:
			cancelCh = nil
			stop()
			logger.Info("scan cancel requested, waiting for running checks", zap.Duration("grace_period", c.grace))
			graceTimer = time.NewTimer(c.grace)
			graceC = graceTimer.C
		case <-graceC:
			close(abandon)
			logger.Warn("running checks did not stop within the grace period, abandoning them")
			break loop
		}
	}
	if graceTimer != nil {
		graceTimer.Stop()
	}

	if ctx.Err() != nil {
		c.Cancel()
	}
	final := tracker.Snapshot()
	wasCancelled := c.cancelled.Load() && final.ProcessedFiles < final.TotalFiles
	res := report.Finalize(collected, final, wasCancelled)
	res.StartedAt = startedAt
	res.FinishedAt = c.now()
	logger.Info("scan finished",
		zap.Int("total", final.TotalFiles),
		zap.Int("processed", final.ProcessedFiles),
		zap.Int("corrupted", final.CorruptedFiles),
		zap.Float64("elapsed", final.ElapsedSeconds),
		zap.Bool("cancelled", wasCancelled),
	)
	return res, nil
}

// check runs one file through its verifier. The bool is false when the
// check was interrupted and has no verdict.
func (c *Coordinator) check(ctx context.Context, item model.CandidateFile) (v model.Verdict, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logutil.GetLogger(ctx).Error("archive check panicked",
				zap.String("file", item.Path),
				zap.Any("panic", r),
			)
			v, ok = model.Fail(item.Path, "internal error: %v", r), true
		}
	}()
	if ctx.Err() != nil || c.cancelled.Load() {
		return model.Verdict{}, false
	}
	kind := resolveKind(c.resolver, item.Name)
	vf := c.verifiers.For(kind)
	if vf == nil {
		return model.Fail(item.Path, "unsupported archive type"), true
	}
	verdict, err := vf.Verify(ctx, item.Path)
	if err != nil {
		if errors.Is(err, verifier.ErrInterrupted) || ctx.Err() != nil {
			return model.Verdict{}, false
		}
		return model.Fail(item.Path, "%v", err), true
	}
	verdict.Path = item.Path
	return verdict, true
}
