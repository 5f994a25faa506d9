package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/donaldgifford/report-dispatch/internal/cronexpr"
	"github.com/donaldgifford/report-dispatch/internal/metrics"
	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// SchedulerStore is the slice of the store the scheduler needs.
type SchedulerStore interface {
	ListReports(ctx context.Context, scheduledOnly bool) ([]domain.ScheduledReport, error)
	GetReport(ctx context.Context, id string) (*domain.ScheduledReport, error)
	ListDueBindings(ctx context.Context, now time.Time) ([]domain.JobBinding, error)
	UpdateBindingRun(ctx context.Context, id string, lastRun, nextRun time.Time) error
}

// Scheduler drives periodic delivery sweeps. Each tick takes the union of
// reports due by cron binding and reports due by frequency interval, then
// delivers each once through the pipeline with bounded concurrency. Ticks
// never overlap; a tick that fires while the previous sweep is still running
// is skipped and counted.
type Scheduler struct {
	store       SchedulerStore
	pipeline    *Pipeline
	log         *slog.Logger
	interval    time.Duration
	concurrency int
	clock       func() time.Time

	sweepMu sync.Mutex

	lifeMu  sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScheduler creates a scheduler. It does not start ticking until Init.
func NewScheduler(
	s SchedulerStore,
	pipeline *Pipeline,
	log *slog.Logger,
	interval time.Duration,
	concurrency int,
) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		store:       s,
		pipeline:    pipeline,
		log:         log,
		interval:    interval,
		concurrency: concurrency,
		clock:       time.Now,
	}
}

// Init starts the tick loop in a background goroutine. It returns once the
// loop is running; the first sweep happens after one full interval. Calling
// Init on a running scheduler is a no-op.
func (s *Scheduler) Init(ctx context.Context) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.started {
		return
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.log.Info("scheduler started",
			"tick_interval", s.interval, "concurrency", s.concurrency)

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.tick(loopCtx)
			}
		}
	}()
}

// Shutdown stops the tick loop and waits up to grace for an in-flight sweep
// to finish. It returns ctx.Err semantics via a timeout error of its own:
// nil when the loop exited in time, context.DeadlineExceeded otherwise.
func (s *Scheduler) Shutdown(grace time.Duration) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if !s.started {
		return nil
	}
	s.cancel()

	select {
	case <-s.done:
		s.started = false
		s.log.Info("scheduler stopped")
		return nil
	case <-time.After(grace):
		s.log.Warn("scheduler shutdown grace expired with sweep in flight")
		return context.DeadlineExceeded
	}
}

// Tick runs one sweep immediately. Exposed for manual triggering and tests;
// the background loop calls the same path.
func (s *Scheduler) Tick(ctx context.Context) {
	s.tick(ctx)
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.sweepMu.TryLock() {
		metrics.TicksSkippedTotal.Inc()
		s.log.Warn("skipping tick, previous sweep still running")
		return
	}
	defer s.sweepMu.Unlock()

	start := s.clock()
	now := start

	due, bindingByReport := s.collectDue(ctx, now)
	if len(due) > 0 {
		s.log.Info("delivery sweep starting", "due", len(due))
	}

	s.deliverAll(ctx, due, bindingByReport, now)

	metrics.TicksTotal.Inc()
	metrics.TickDuration.Observe(s.clock().Sub(start).Seconds())
}

// collectDue builds the deduplicated due set for one sweep. Binding-due
// reports come first, then interval-due reports not already present. The
// returned map carries the binding for each report that has one, used to
// advance next_run_at after processing.
func (s *Scheduler) collectDue(
	ctx context.Context,
	now time.Time,
) ([]domain.ScheduledReport, map[string]domain.JobBinding) {
	var due []domain.ScheduledReport
	seen := make(map[string]bool)
	bindingByReport := make(map[string]domain.JobBinding)

	bindings, err := s.store.ListDueBindings(ctx, now)
	if err != nil {
		s.log.Error("listing due bindings", "error", err)
	}
	for _, b := range bindings {
		bindingByReport[b.ReportID] = b

		report, err := s.store.GetReport(ctx, b.ReportID)
		if err != nil {
			s.log.Error("loading report for due binding",
				"report_id", b.ReportID, "binding_id", b.ID, "error", err)
			s.advanceBinding(ctx, b, now)
			continue
		}
		if !report.IsScheduled {
			// Delivery was toggled off after the binding fired. Advance the
			// binding so it does not show up due on every sweep.
			s.advanceBinding(ctx, b, now)
			continue
		}
		due = append(due, *report)
		seen[report.ID] = true
	}
	metrics.DueReports.WithLabelValues("binding").Set(float64(len(due)))

	// Interval fallback catches reports whose binding is missing or whose
	// next_run_at was never computed.
	reports, err := s.store.ListReports(ctx, true)
	if err != nil {
		s.log.Error("listing scheduled reports", "error", err)
	}
	fromResolver := 0
	for _, r := range FindDue(reports, now) {
		if seen[r.ID] {
			continue
		}
		due = append(due, r)
		seen[r.ID] = true
		fromResolver++
	}
	metrics.DueReports.WithLabelValues("resolver").Set(float64(fromResolver))

	return due, bindingByReport
}

// deliverAll runs the pipeline over the due set with bounded concurrency,
// then advances each processed binding's run timestamps regardless of the
// delivery outcome so a failing report does not fire on every tick.
func (s *Scheduler) deliverAll(
	ctx context.Context,
	due []domain.ScheduledReport,
	bindingByReport map[string]domain.JobBinding,
	now time.Time,
) {
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i := range due {
		report := due[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			// DeliverOnce records the outcome in delivery history; the
			// sweep itself only logs.
			_, _ = s.pipeline.DeliverOnce(ctx, &report)

			if b, ok := bindingByReport[report.ID]; ok {
				s.advanceBinding(ctx, b, now)
			}
		}()
	}
	wg.Wait()
}

func (s *Scheduler) advanceBinding(ctx context.Context, b domain.JobBinding, now time.Time) {
	next, err := cronexpr.Next(b.CronExpression, b.Timezone, now)
	if err != nil {
		s.log.Error("recomputing next run",
			"binding_id", b.ID, "cron", b.CronExpression, "error", err)
		return
	}
	if err := s.store.UpdateBindingRun(ctx, b.ID, now, next); err != nil {
		s.log.Error("advancing binding run timestamps",
			"binding_id", b.ID, "error", err)
	}
}
