package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/donaldgifford/report-dispatch/internal/metrics"
	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// Renderer produces the artifact payload for a report.
type Renderer interface {
	Render(ctx context.Context, report *domain.ScheduledReport) (*domain.Artifact, error)
}

// Deliverer hands a rendered artifact to the report's recipients.
type Deliverer interface {
	Deliver(ctx context.Context, report *domain.ScheduledReport, artifact *domain.Artifact) error
}

// PipelineStore is the slice of the store the delivery pipeline needs.
type PipelineStore interface {
	InsertDeliveryAttempt(ctx context.Context, a *domain.DeliveryAttempt) error
	FinalizeDeliveryAttempt(
		ctx context.Context,
		id string,
		status domain.DeliveryStatus,
		errorMessage string,
		fileSize *int64,
	) error
	UpdateReportLastSent(ctx context.Context, id string, t time.Time) error
}

// Pipeline executes single report deliveries with at-least-once semantics.
// Every attempt is recorded as a pending history row before any external call
// is made, so a crash mid-delivery leaves an auditable pending record rather
// than nothing.
type Pipeline struct {
	store     PipelineStore
	renderer  Renderer
	deliverer Deliverer
	log       *slog.Logger
	timeout   time.Duration
	clock     func() time.Time

	mu       sync.Mutex
	inflight map[string]*reportLock
}

type reportLock struct {
	mu   sync.Mutex
	refs int
}

// NewPipeline creates a delivery pipeline. A zero timeout disables the
// per-attempt deadline.
func NewPipeline(
	s PipelineStore,
	renderer Renderer,
	deliverer Deliverer,
	log *slog.Logger,
	timeout time.Duration,
) *Pipeline {
	return &Pipeline{
		store:     s,
		renderer:  renderer,
		deliverer: deliverer,
		log:       log,
		timeout:   timeout,
		clock:     time.Now,
		inflight:  make(map[string]*reportLock),
	}
}

// DeliverOnce runs one render-and-deliver cycle for a report. Concurrent
// deliveries of the same report serialize on a per-report lock; different
// reports proceed in parallel. The returned attempt reflects the finalized
// history row. lastSentAt advances only on success.
func (p *Pipeline) DeliverOnce(
	ctx context.Context,
	report *domain.ScheduledReport,
) (*domain.DeliveryAttempt, error) {
	unlock := p.lockReport(report.ID)
	defer unlock()

	start := p.clock()

	attempt := &domain.DeliveryAttempt{
		ReportID:       report.ID,
		DeliveryFormat: report.DeliveryFormat,
		Recipients:     report.Recipients,
		Status:         domain.DeliveryPending,
	}
	if err := p.store.InsertDeliveryAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("recording delivery attempt for report %s: %w", report.ID, err)
	}

	attemptCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	artifact, err := p.renderer.Render(attemptCtx, report)
	if err != nil {
		return attempt, p.fail(ctx, attempt, fmt.Errorf("rendering report %s: %w", report.ID, err))
	}

	if err := p.deliverer.Deliver(attemptCtx, report, artifact); err != nil {
		return attempt, p.fail(ctx, attempt, fmt.Errorf("delivering report %s: %w", report.ID, err))
	}

	size := int64(len(artifact.Data))
	if err := p.store.FinalizeDeliveryAttempt(
		ctx, attempt.ID, domain.DeliverySuccess, "", &size,
	); err != nil {
		return attempt, fmt.Errorf("finalizing delivery attempt %s: %w", attempt.ID, err)
	}
	attempt.Status = domain.DeliverySuccess
	attempt.FileSize = &size

	if err := p.store.UpdateReportLastSent(ctx, report.ID, p.clock()); err != nil {
		// The delivery itself succeeded; the stale lastSentAt will cause a
		// redundant (at-least-once) delivery on the next sweep.
		p.log.Warn("failed to advance last_sent_at after delivery",
			"report_id", report.ID, "error", err)
	}

	metrics.DeliveriesTotal.WithLabelValues(string(domain.DeliverySuccess)).Inc()
	metrics.DeliveryDuration.Observe(p.clock().Sub(start).Seconds())

	p.log.Info("report delivered",
		"report_id", report.ID,
		"format", report.DeliveryFormat,
		"recipients", len(report.Recipients),
		"bytes", size,
	)
	return attempt, nil
}

// fail finalizes the attempt as failed and returns the original error. The
// finalization runs on a context detached from the caller's so a shutdown
// that cancels a delivery mid-flight still records the failure row.
func (p *Pipeline) fail(ctx context.Context, attempt *domain.DeliveryAttempt, cause error) error {
	finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := p.store.FinalizeDeliveryAttempt(
		finalizeCtx, attempt.ID, domain.DeliveryFailed, cause.Error(), nil,
	); err != nil {
		p.log.Error("failed to finalize delivery attempt",
			"attempt_id", attempt.ID, "error", err)
	}
	attempt.Status = domain.DeliveryFailed
	attempt.ErrorMessage = cause.Error()

	metrics.DeliveriesTotal.WithLabelValues(string(domain.DeliveryFailed)).Inc()

	p.log.Warn("report delivery failed",
		"report_id", attempt.ReportID, "error", cause)
	return cause
}

// lockReport acquires the per-report lock, creating it on first use and
// removing it once the last holder releases.
func (p *Pipeline) lockReport(reportID string) func() {
	p.mu.Lock()
	l, ok := p.inflight[reportID]
	if !ok {
		l = &reportLock{}
		p.inflight[reportID] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.inflight, reportID)
		}
		p.mu.Unlock()
	}
}
