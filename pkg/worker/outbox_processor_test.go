package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/pkg/logger"
	"github.com/jwalitptl/dispensing-api/pkg/messaging"
	"github.com/jwalitptl/dispensing-api/pkg/metrics"
)

type statusUpdate struct {
	id     uuid.UUID
	status model.OutboxStatus
	errMsg *string
}

type fakeOutbox struct {
	mu       sync.Mutex
	pending  []*model.OutboxEvent
	updates  []statusUpdate
	deleted  time.Time
	claimErr error
}

func (f *fakeOutbox) ClaimPending(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	out := f.pending[:limit]
	f.pending = f.pending[limit:]
	return out, nil
}

func (f *fakeOutbox) UpdateStatus(_ context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, statusUpdate{id: id, status: status, errMsg: errMsg})
	return nil
}

func (f *fakeOutbox) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = before
	return 2, nil
}

type fakeBroker struct {
	mu        sync.Mutex
	failTimes int
	published []publishedMessage
}

type publishedMessage struct {
	channel string
	message messaging.Message
}

func (b *fakeBroker) Publish(_ context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failTimes > 0 {
		b.failTimes--
		return errors.New("broker unavailable")
	}
	b.published = append(b.published, publishedMessage{channel: channel, message: message.(messaging.Message)})
	return nil
}

func (b *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBroker) Close() error { return nil }

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		Channel:       "medcol.documents",
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}
}

func newEvent(t *testing.T) *model.OutboxEvent {
	t.Helper()
	event, err := model.NewOutboxEvent(model.EventDocumentsSaved, model.DocumentsSavedPayload{PatientID: "1098765432"})
	require.NoError(t, err)
	return event
}

func TestOutboxProcessor_RelaysEvents(t *testing.T) {
	event := newEvent(t)
	repo := &fakeOutbox{pending: []*model.OutboxEvent{event}}
	broker := &fakeBroker{}
	m := metrics.NewNop()

	p := NewOutboxProcessor(repo, broker, testConfig(), logger.Nop(), m)
	require.NoError(t, p.processEvents(context.Background()))

	require.Len(t, broker.published, 1)
	assert.Equal(t, "medcol.documents", broker.published[0].channel)
	assert.Equal(t, event.ID.String(), broker.published[0].message.ID)
	assert.Equal(t, model.EventDocumentsSaved, broker.published[0].message.Type)

	require.Len(t, repo.updates, 1)
	assert.Equal(t, model.OutboxStatusProcessed, repo.updates[0].status)
	assert.Nil(t, repo.updates[0].errMsg)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsProcessed))
}

func TestOutboxProcessor_RetriesBeforeSucceeding(t *testing.T) {
	repo := &fakeOutbox{pending: []*model.OutboxEvent{newEvent(t)}}
	broker := &fakeBroker{failTimes: 2}
	m := metrics.NewNop()

	p := NewOutboxProcessor(repo, broker, testConfig(), logger.Nop(), m)
	require.NoError(t, p.processEvents(context.Background()))

	assert.Len(t, broker.published, 1)
	assert.Equal(t, model.OutboxStatusProcessed, repo.updates[0].status)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OutboxRetries.WithLabelValues(model.EventDocumentsSaved)))
}

func TestOutboxProcessor_MarksFailedAfterRetries(t *testing.T) {
	repo := &fakeOutbox{pending: []*model.OutboxEvent{newEvent(t)}}
	broker := &fakeBroker{failTimes: 5}
	m := metrics.NewNop()

	p := NewOutboxProcessor(repo, broker, testConfig(), logger.Nop(), m)
	require.NoError(t, p.processEvents(context.Background()))

	assert.Empty(t, broker.published)
	require.Len(t, repo.updates, 1)
	assert.Equal(t, model.OutboxStatusFailed, repo.updates[0].status)
	require.NotNil(t, repo.updates[0].errMsg)
	assert.Equal(t, "broker unavailable", *repo.updates[0].errMsg)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsFailed))
}

func TestOutboxProcessor_ClaimError(t *testing.T) {
	repo := &fakeOutbox{claimErr: errors.New("db down")}
	p := NewOutboxProcessor(repo, &fakeBroker{}, testConfig(), logger.Nop(), metrics.NewNop())

	assert.Error(t, p.processEvents(context.Background()))
}

func TestNewOutboxProcessor_RejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Channel = ""
	assert.Panics(t, func() {
		NewOutboxProcessor(&fakeOutbox{}, &fakeBroker{}, cfg, logger.Nop(), metrics.NewNop())
	})
}

func TestRetry_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retry(ctx, 3, time.Hour, func() error {
		calls++
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestOutboxRetentionWorker_Cleanup(t *testing.T) {
	repo := &fakeOutbox{}
	w := NewOutboxRetentionWorker(repo, 7, time.Hour, logger.Nop())
	fixed := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	w.cleanup(context.Background())

	assert.Equal(t, fixed.AddDate(0, 0, -7), repo.deleted)
}
