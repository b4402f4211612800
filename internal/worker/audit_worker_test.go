package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteflow/noteflow/internal/adapter/broker"
	"github.com/noteflow/noteflow/internal/domain"
	"github.com/noteflow/noteflow/internal/events"
	"github.com/noteflow/noteflow/internal/service/logger"
)

func startAuditWorker(t *testing.T) (*broker.MemoryBroker, *events.Publisher, *fakeAuditRepo, *AuditWorker) {
	t.Helper()
	mq := broker.NewMemoryBroker()
	t.Cleanup(func() { mq.Close() })

	publisher, err := events.NewPublisher(mq, logger.NewNop())
	require.NoError(t, err)

	repo := newFakeAuditRepo()
	w, err := NewAuditWorker(mq, repo, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { w.Stop() })

	return mq, publisher, repo, w
}

func drainQueue(t *testing.T, mq *broker.MemoryBroker, queue string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mq.Depth(queue) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Queue %s never drained (depth %d)", queue, mq.Depth(queue))
}

func TestAuditWorker_PersistsRecord(t *testing.T) {
	mq, publisher, repo, _ := startAuditWorker(t)

	note, err := domain.NewNote("Meeting notes", "agenda items", "user-1")
	require.NoError(t, err)

	err = publisher.PublishNoteEvent(context.Background(), domain.EventCreated, note.ID, "user-1", nil, note.Snapshot())
	require.NoError(t, err)
	drainQueue(t, mq, AuditQueue)

	records := repo.all()
	require.Len(t, records, 1)
	assert.Equal(t, domain.EventCreated, records[0].EventType)
	assert.Equal(t, domain.EntityTypeNote, records[0].EntityType)
	assert.Equal(t, note.ID, records[0].EntityID)
	assert.Equal(t, "user-1", records[0].ActorID)
	assert.Equal(t, "Meeting notes", records[0].After["title"])
	assert.Nil(t, records[0].Before)
	assert.NotEmpty(t, records[0].ID)
	assert.False(t, records[0].CreatedAt.IsZero())
}

func TestAuditWorker_ReceivesEveryLifecycleEvent(t *testing.T) {
	mq, publisher, repo, _ := startAuditWorker(t)
	ctx := context.Background()

	snapshot := domain.EntitySnapshot{"title": "t"}
	require.NoError(t, publisher.PublishNoteEvent(ctx, domain.EventCreated, "n1", "u", nil, snapshot))
	require.NoError(t, publisher.PublishNoteEvent(ctx, domain.EventUpdated, "n1", "u", snapshot, snapshot))
	require.NoError(t, publisher.PublishNoteEvent(ctx, domain.EventDuplicated, "n2", "u", snapshot, snapshot))
	require.NoError(t, publisher.PublishNoteEvent(ctx, domain.EventDeleted, "n1", "u", snapshot, nil))
	drainQueue(t, mq, AuditQueue)

	records := repo.all()
	require.Len(t, records, 4)
	assert.Equal(t, domain.EventCreated, records[0].EventType)
	assert.Equal(t, domain.EventUpdated, records[1].EventType)
	assert.Equal(t, domain.EventDuplicated, records[2].EventType)
	assert.Equal(t, domain.EventDeleted, records[3].EventType)
}

func TestAuditWorker_DropsMalformedPayload(t *testing.T) {
	mq, _, repo, _ := startAuditWorker(t)

	err := mq.Publish(context.Background(), events.Exchange, "note.created", []byte("{not json"), true)
	require.NoError(t, err)
	drainQueue(t, mq, AuditQueue)

	assert.Empty(t, repo.all())
	assert.Equal(t, 0, mq.Depth(AuditQueue))
}

func TestAuditWorker_DropsInvalidEvent(t *testing.T) {
	mq, _, repo, _ := startAuditWorker(t)

	// Missing entityId: validation fails, the message is dropped rather
	// than redelivered forever.
	body := []byte(`{"eventType":"created","entityType":"note","entityId":"","timestamp":"2026-01-02T03:04:05Z"}`)
	err := mq.Publish(context.Background(), events.Exchange, "note.created", body, true)
	require.NoError(t, err)
	drainQueue(t, mq, AuditQueue)

	assert.Empty(t, repo.all())
}

func TestAuditWorker_RequeuesOnStoreFailure(t *testing.T) {
	mq, publisher, repo, _ := startAuditWorker(t)
	repo.failures = 2

	note, err := domain.NewNote("Flaky", "store", "user-1")
	require.NoError(t, err)
	err = publisher.PublishNoteEvent(context.Background(), domain.EventCreated, note.ID, "user-1", nil, note.Snapshot())
	require.NoError(t, err)
	drainQueue(t, mq, AuditQueue)

	// Two failed attempts, then the redelivered event lands.
	records := repo.all()
	require.Len(t, records, 1)
	assert.Equal(t, note.ID, records[0].EntityID)
}

func TestAuditWorker_ParksAfterRepeatedFailures(t *testing.T) {
	mq, publisher, repo, _ := startAuditWorker(t)
	repo.failures = DefaultMaxDeliveryAttempts + 10

	note, err := domain.NewNote("Poison", "event", "user-1")
	require.NoError(t, err)
	err = publisher.PublishNoteEvent(context.Background(), domain.EventCreated, note.ID, "user-1", nil, note.Snapshot())
	require.NoError(t, err)
	drainQueue(t, mq, AuditQueue)

	// The retry budget is exhausted before the store recovers, so the
	// event is parked instead of cycling forever.
	assert.Empty(t, repo.all())
	assert.Equal(t, 0, mq.Depth(AuditQueue))
}
