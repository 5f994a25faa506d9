package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/report-dispatch/internal/store"
	"github.com/donaldgifford/report-dispatch/pkg/logger"
	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// fakeRenderer returns a canned artifact or error and counts calls.
type fakeRenderer struct {
	mu       sync.Mutex
	calls    int
	artifact *domain.Artifact
	err      error
}

func (f *fakeRenderer) Render(
	_ context.Context,
	_ *domain.ScheduledReport,
) (*domain.Artifact, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.artifact, nil
}

// fakeDeliverer records delivered reports and optionally fails.
type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []string
	err       error
}

func (f *fakeDeliverer) Deliver(
	_ context.Context,
	report *domain.ScheduledReport,
	_ *domain.Artifact,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, report.ID)
	return nil
}

func (f *fakeDeliverer) deliveredIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.delivered...)
}

func newPipelineFixture(
	t *testing.T,
	renderer *fakeRenderer,
	deliverer *fakeDeliverer,
) (*Pipeline, *store.MemoryStore, *domain.ScheduledReport) {
	t.Helper()

	mem := store.NewMemoryStore()
	report := &domain.ScheduledReport{
		Name:           "weekly revenue",
		Frequency:      domain.FrequencyWeekly,
		DeliveryFormat: "pdf",
		Recipients:     []string{"finance@example.com"},
		IsScheduled:    true,
	}
	require.NoError(t, mem.CreateReport(context.Background(), report))

	p := NewPipeline(mem, renderer, deliverer, logger.Nop(), time.Minute)
	return p, mem, report
}

func TestDeliverOnceSuccess(t *testing.T) {
	ctx := context.Background()
	renderer := &fakeRenderer{artifact: &domain.Artifact{
		Name: "weekly-revenue.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.7"),
	}}
	deliverer := &fakeDeliverer{}
	p, mem, report := newPipelineFixture(t, renderer, deliverer)

	attempt, err := p.DeliverOnce(ctx, report)
	require.NoError(t, err)

	assert.Equal(t, domain.DeliverySuccess, attempt.Status)
	require.NotNil(t, attempt.FileSize)
	assert.Equal(t, int64(len("%PDF-1.7")), *attempt.FileSize)
	assert.Equal(t, []string{report.ID}, deliverer.deliveredIDs())

	stored, err := mem.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastSentAt)

	history, err := mem.ListDeliveryAttempts(ctx, report.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.DeliverySuccess, history[0].Status)
	assert.NotNil(t, history[0].DeliveredAt)
}

func TestDeliverOnceRenderFailure(t *testing.T) {
	ctx := context.Background()
	renderer := &fakeRenderer{err: errors.New("render backend unavailable")}
	deliverer := &fakeDeliverer{}
	p, mem, report := newPipelineFixture(t, renderer, deliverer)

	attempt, err := p.DeliverOnce(ctx, report)
	require.Error(t, err)

	assert.Equal(t, domain.DeliveryFailed, attempt.Status)
	assert.Contains(t, attempt.ErrorMessage, "render backend unavailable")
	assert.Empty(t, deliverer.deliveredIDs())

	// A failed attempt never advances last_sent_at.
	stored, err := mem.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LastSentAt)

	history, err := mem.ListDeliveryAttempts(ctx, report.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.DeliveryFailed, history[0].Status)
	assert.Contains(t, history[0].ErrorMessage, "render backend unavailable")
}

func TestDeliverOnceDeliverFailure(t *testing.T) {
	ctx := context.Background()
	renderer := &fakeRenderer{artifact: &domain.Artifact{Data: []byte("csv,data")}}
	deliverer := &fakeDeliverer{err: errors.New("smtp timeout")}
	p, mem, report := newPipelineFixture(t, renderer, deliverer)

	attempt, err := p.DeliverOnce(ctx, report)
	require.Error(t, err)
	assert.Equal(t, domain.DeliveryFailed, attempt.Status)

	stored, err := mem.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LastSentAt)
}

func TestDeliverOnceRetryAppendsNewAttempt(t *testing.T) {
	ctx := context.Background()
	renderer := &fakeRenderer{err: errors.New("boom")}
	deliverer := &fakeDeliverer{}
	p, mem, report := newPipelineFixture(t, renderer, deliverer)

	_, err := p.DeliverOnce(ctx, report)
	require.Error(t, err)

	// The retry succeeds and appends a second row rather than mutating the
	// failed one.
	renderer.err = nil
	renderer.artifact = &domain.Artifact{Data: []byte("ok")}
	attempt, err := p.DeliverOnce(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliverySuccess, attempt.Status)

	history, err := mem.ListDeliveryAttempts(ctx, report.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.DeliverySuccess, history[0].Status)
	assert.Equal(t, domain.DeliveryFailed, history[1].Status)
}

func TestDeliverOnceRecordsFailureWhenCallerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := store.NewMemoryStore()
	report := &domain.ScheduledReport{
		Name:           "nightly export",
		Frequency:      domain.FrequencyDaily,
		DeliveryFormat: "csv",
		IsScheduled:    true,
	}
	require.NoError(t, mem.CreateReport(context.Background(), report))

	renderer := &fakeRenderer{artifact: &domain.Artifact{Data: []byte("x")}}
	deliverer := &cancelThenFailDeliverer{cancel: cancel}
	p := NewPipeline(&cancelAwareStore{mem}, renderer, deliverer, logger.Nop(), time.Minute)

	_, err := p.DeliverOnce(ctx, report)
	require.Error(t, err)

	// Even though the caller's context died mid-delivery, the attempt row
	// must not stay pending.
	history, err := mem.ListDeliveryAttempts(context.Background(), report.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.DeliveryFailed, history[0].Status)
	assert.Contains(t, history[0].ErrorMessage, "connection reset")
}

// cancelAwareStore refuses finalization once the given context is cancelled,
// the way a real database client would.
type cancelAwareStore struct {
	*store.MemoryStore
}

func (s *cancelAwareStore) FinalizeDeliveryAttempt(
	ctx context.Context,
	id string,
	status domain.DeliveryStatus,
	errorMessage string,
	fileSize *int64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.FinalizeDeliveryAttempt(ctx, id, status, errorMessage, fileSize)
}

// cancelThenFailDeliverer cancels the caller's context before failing, the
// shape of a delivery interrupted by shutdown.
type cancelThenFailDeliverer struct {
	cancel context.CancelFunc
}

func (d *cancelThenFailDeliverer) Deliver(
	_ context.Context,
	_ *domain.ScheduledReport,
	_ *domain.Artifact,
) error {
	d.cancel()
	return errors.New("connection reset during send")
}

func TestDeliverOnceSerializesPerReport(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	inflight, maxInflight := 0, 0

	renderer := &fakeRenderer{artifact: &domain.Artifact{Data: []byte("x")}}
	deliverer := &fakeDeliverer{}
	p, mem, report := newPipelineFixture(t, renderer, deliverer)

	slow := slowDeliverer{inner: deliverer, before: func() {
		mu.Lock()
		inflight++
		if inflight > maxInflight {
			maxInflight = inflight
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}, after: func() {
		mu.Lock()
		inflight--
		mu.Unlock()
	}}
	p.deliverer = &slow

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.DeliverOnce(ctx, report)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInflight)

	history, err := mem.ListDeliveryAttempts(ctx, report.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

type slowDeliverer struct {
	inner  Deliverer
	before func()
	after  func()
}

func (s *slowDeliverer) Deliver(
	ctx context.Context,
	report *domain.ScheduledReport,
	artifact *domain.Artifact,
) error {
	s.before()
	defer s.after()
	return s.inner.Deliver(ctx, report, artifact)
}
