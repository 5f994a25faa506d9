package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/report-dispatch/internal/store"
	"github.com/donaldgifford/report-dispatch/pkg/logger"
	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

func newSchedulerFixture(t *testing.T) (*Scheduler, *store.MemoryStore, *fakeDeliverer) {
	t.Helper()

	mem := store.NewMemoryStore()
	renderer := &fakeRenderer{artifact: &domain.Artifact{Data: []byte("report")}}
	deliverer := &fakeDeliverer{}
	pipeline := NewPipeline(mem, renderer, deliverer, logger.Nop(), time.Minute)

	sched := NewScheduler(mem, pipeline, logger.Nop(), time.Minute, 2)
	return sched, mem, deliverer
}

func createScheduledReport(
	t *testing.T,
	mem *store.MemoryStore,
	name string,
	freq domain.ReportFrequency,
) *domain.ScheduledReport {
	t.Helper()

	r := &domain.ScheduledReport{
		Name:           name,
		Frequency:      freq,
		DeliveryFormat: "pdf",
		Recipients:     []string{"ops@example.com"},
		IsScheduled:    true,
	}
	require.NoError(t, mem.CreateReport(context.Background(), r))
	return r
}

func TestTickDeliversBindingDueReport(t *testing.T) {
	ctx := context.Background()
	sched, mem, deliverer := newSchedulerFixture(t)

	report := createScheduledReport(t, mem, "hourly ops", domain.FrequencyHourly)
	// Mark recently sent so the interval fallback does not consider it due;
	// only the binding should pick it up.
	require.NoError(t, mem.UpdateReportLastSent(ctx, report.ID, time.Now()))

	past := time.Now().Add(-time.Minute)
	binding := &domain.JobBinding{
		ReportID:       report.ID,
		CronExpression: "0 * * * *",
		IsActive:       true,
		NextRunAt:      &past,
	}
	require.NoError(t, mem.UpsertBinding(ctx, binding))

	sched.Tick(ctx)

	assert.Equal(t, []string{report.ID}, deliverer.deliveredIDs())

	// The binding advanced past now so it will not fire again immediately.
	stored, err := mem.GetBindingByReport(ctx, report.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.NextRunAt)
	assert.True(t, stored.NextRunAt.After(time.Now()))
	assert.NotNil(t, stored.LastRunAt)
}

func TestTickDeliversIntervalDueReport(t *testing.T) {
	ctx := context.Background()
	sched, mem, deliverer := newSchedulerFixture(t)

	// Never delivered and no binding: the interval fallback catches it.
	report := createScheduledReport(t, mem, "daily digest", domain.FrequencyDaily)

	sched.Tick(ctx)

	assert.Equal(t, []string{report.ID}, deliverer.deliveredIDs())
}

func TestTickDeduplicatesBindingAndIntervalDue(t *testing.T) {
	ctx := context.Background()
	sched, mem, deliverer := newSchedulerFixture(t)

	// Due both ways: never sent (interval) and binding next_run_at in the past.
	report := createScheduledReport(t, mem, "double due", domain.FrequencyDaily)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, mem.UpsertBinding(ctx, &domain.JobBinding{
		ReportID:       report.ID,
		CronExpression: "0 8 * * *",
		IsActive:       true,
		NextRunAt:      &past,
	}))

	sched.Tick(ctx)

	assert.Equal(t, []string{report.ID}, deliverer.deliveredIDs())

	history, err := mem.ListDeliveryAttempts(ctx, report.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestTickSkipsOnDemandReports(t *testing.T) {
	ctx := context.Background()
	sched, mem, deliverer := newSchedulerFixture(t)

	createScheduledReport(t, mem, "manual export", domain.FrequencyOnDemand)

	sched.Tick(ctx)

	assert.Empty(t, deliverer.deliveredIDs())
}

func TestTickAdvancesBindingForDisabledReport(t *testing.T) {
	ctx := context.Background()
	sched, mem, deliverer := newSchedulerFixture(t)

	report := createScheduledReport(t, mem, "paused report", domain.FrequencyDaily)
	require.NoError(t, mem.SetReportScheduled(ctx, report.ID, false))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, mem.UpsertBinding(ctx, &domain.JobBinding{
		ReportID:       report.ID,
		CronExpression: "0 8 * * *",
		IsActive:       true,
		NextRunAt:      &past,
	}))

	sched.Tick(ctx)

	assert.Empty(t, deliverer.deliveredIDs())

	stored, err := mem.GetBindingByReport(ctx, report.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.NextRunAt)
	assert.True(t, stored.NextRunAt.After(time.Now()))
}

func TestTickContinuesAfterDeliveryFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()

	renderer := &fakeRenderer{artifact: &domain.Artifact{Data: []byte("x")}}
	deliverer := &failOnceDeliverer{}
	pipeline := NewPipeline(mem, renderer, deliverer, logger.Nop(), time.Minute)
	sched := NewScheduler(mem, pipeline, logger.Nop(), time.Minute, 1)

	first := createScheduledReport(t, mem, "a", domain.FrequencyDaily)
	second := createScheduledReport(t, mem, "b", domain.FrequencyDaily)

	sched.Tick(ctx)

	// One delivery failed, the other went through.
	firstHist, err := mem.ListDeliveryAttempts(ctx, first.ID, 10)
	require.NoError(t, err)
	secondHist, err := mem.ListDeliveryAttempts(ctx, second.ID, 10)
	require.NoError(t, err)

	assert.Len(t, firstHist, 1)
	assert.Len(t, secondHist, 1)
	statuses := []domain.DeliveryStatus{firstHist[0].Status, secondHist[0].Status}
	assert.Contains(t, statuses, domain.DeliveryFailed)
	assert.Contains(t, statuses, domain.DeliverySuccess)
}

func TestSchedulerInitAndShutdown(t *testing.T) {
	sched, _, _ := newSchedulerFixture(t)

	sched.Init(context.Background())
	assert.NoError(t, sched.Shutdown(time.Second))
}

func TestSchedulerInitIsIdempotent(t *testing.T) {
	sched, _, _ := newSchedulerFixture(t)

	sched.Init(context.Background())
	loopDone := sched.done
	sched.Init(context.Background())
	assert.True(t, loopDone == sched.done, "second Init must not replace the running loop")

	require.NoError(t, sched.Shutdown(time.Second))

	select {
	case <-loopDone:
	default:
		t.Fatal("tick loop still running after Shutdown")
	}
}

func TestTickSkipsWhileSweepInFlight(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()

	renderer := &fakeRenderer{artifact: &domain.Artifact{Data: []byte("x")}}
	deliverer := newBlockingDeliverer()
	pipeline := NewPipeline(mem, renderer, deliverer, logger.Nop(), time.Minute)
	sched := NewScheduler(mem, pipeline, logger.Nop(), time.Minute, 1)

	report := createScheduledReport(t, mem, "slow export", domain.FrequencyDaily)

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sched.Tick(ctx)
	}()
	<-deliverer.entered

	// Fires while the first sweep still holds the lock; must return without
	// starting a second delivery.
	sched.Tick(ctx)

	close(deliverer.release)
	<-sweepDone

	history, err := mem.ListDeliveryAttempts(ctx, report.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSchedulerShutdownTimesOutOnLongSweep(t *testing.T) {
	mem := store.NewMemoryStore()

	renderer := &fakeRenderer{artifact: &domain.Artifact{Data: []byte("x")}}
	deliverer := newBlockingDeliverer()
	pipeline := NewPipeline(mem, renderer, deliverer, logger.Nop(), time.Minute)
	sched := NewScheduler(mem, pipeline, logger.Nop(), 10*time.Millisecond, 1)

	createScheduledReport(t, mem, "stuck export", domain.FrequencyDaily)

	sched.Init(context.Background())
	<-deliverer.entered

	err := sched.Shutdown(50 * time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Unblock the sweep so the loop can exit.
	close(deliverer.release)
}

func TestSchedulerShutdownBeforeInit(t *testing.T) {
	sched, _, _ := newSchedulerFixture(t)
	assert.NoError(t, sched.Shutdown(time.Second))
}

// blockingDeliverer parks inside Deliver until released, signalling entry.
type blockingDeliverer struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingDeliverer() *blockingDeliverer {
	return &blockingDeliverer{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (d *blockingDeliverer) Deliver(
	_ context.Context,
	_ *domain.ScheduledReport,
	_ *domain.Artifact,
) error {
	select {
	case d.entered <- struct{}{}:
	default:
	}
	<-d.release
	return nil
}

type failOnceDeliverer struct {
	failed bool
}

func (f *failOnceDeliverer) Deliver(
	_ context.Context,
	_ *domain.ScheduledReport,
	_ *domain.Artifact,
) error {
	if !f.failed {
		f.failed = true
		return assert.AnError
	}
	return nil
}
