package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

func insertEvent(t *testing.T, conn *gorm.DB, createdAt time.Time, mutate func(*models.OutboxEvent)) models.OutboxEvent {
	t.Helper()
	row := models.OutboxEvent{
		EventType:     enums.EventOrderTransitioned,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1}`),
		CreatedAt:     createdAt,
	}
	if mutate != nil {
		mutate(&row)
	}
	require.NoError(t, conn.Create(&row).Error)
	return row
}

func TestFetchUnpublishedOrdersAndFilters(t *testing.T) {
	conn := dbtest.Open(t, "outbox_fetch")
	repo := NewRepository()
	base := time.Now().UTC().Add(-time.Hour)

	second := insertEvent(t, conn, base.Add(2*time.Minute), nil)
	first := insertEvent(t, conn, base.Add(time.Minute), nil)
	published := base
	insertEvent(t, conn, base, func(e *models.OutboxEvent) { e.PublishedAt = &published })
	insertEvent(t, conn, base, func(e *models.OutboxEvent) { e.AttemptCount = 3 })

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, second.ID, rows[1].ID)

	rows, err = repo.FetchUnpublishedForPublish(conn, 1, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestMarkPublishedFailedAndTerminal(t *testing.T) {
	conn := dbtest.Open(t, "outbox_mark")
	repo := NewRepository()
	a := insertEvent(t, conn, time.Now().UTC(), nil)
	b := insertEvent(t, conn, time.Now().UTC(), nil)
	c := insertEvent(t, conn, time.Now().UTC(), nil)

	require.NoError(t, repo.MarkPublishedTx(conn, a.ID))
	require.NoError(t, repo.MarkFailedTx(conn, b.ID, errors.New("broker down")))
	require.NoError(t, repo.MarkFailedTx(conn, b.ID, errors.New("broker still down")))
	require.NoError(t, repo.MarkTerminalTx(conn, c.ID, errors.New("unroutable"), 10))

	var got models.OutboxEvent
	require.NoError(t, conn.First(&got, "id = ?", a.ID).Error)
	assert.NotNil(t, got.PublishedAt)

	require.NoError(t, conn.First(&got, "id = ?", b.ID).Error)
	assert.Equal(t, 2, got.AttemptCount)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "broker still down", *got.LastError)

	require.NoError(t, conn.First(&got, "id = ?", c.ID).Error)
	assert.Equal(t, 10, got.AttemptCount)

	pending, err := repo.CountPending(context.Background(), conn)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending)

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, b.ID, rows[0].ID)
}

func TestDeletePublishedBefore(t *testing.T) {
	conn := dbtest.Open(t, "outbox_retention")
	repo := NewRepository()
	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)
	recent := now.Add(-time.Hour)

	insertEvent(t, conn, old, func(e *models.OutboxEvent) { e.PublishedAt = &old })
	keepRecent := insertEvent(t, conn, recent, func(e *models.OutboxEvent) { e.PublishedAt = &recent })
	insertEvent(t, conn, old, func(e *models.OutboxEvent) { e.AttemptCount = 5 })
	keepPending := insertEvent(t, conn, old, func(e *models.OutboxEvent) { e.AttemptCount = 1 })

	deleted, err := repo.DeletePublishedBefore(context.Background(), conn, now.Add(-24*time.Hour), 5)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	var ids []uuid.UUID
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Order("created_at ASC").Pluck("id", &ids).Error)
	assert.ElementsMatch(t, []uuid.UUID{keepRecent.ID, keepPending.ID}, ids)
}

func TestRepositoryRequiresTransaction(t *testing.T) {
	repo := NewRepository()
	_, err := repo.FetchUnpublishedForPublish(nil, 1, 1)
	require.Error(t, err)
	require.Error(t, repo.MarkPublishedTx(nil, uuid.New()))
	_, err = repo.DeletePublishedBefore(context.Background(), nil, time.Now(), 1)
	require.Error(t, err)
}
