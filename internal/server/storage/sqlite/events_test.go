package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buehnenwerk/stagesync/internal/models"
	"github.com/buehnenwerk/stagesync/internal/server/storage"
)

func TestListEventsSince_EmptyLog(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	events, hasMore, err := s.ListEventsSince(ctx, models.ScopeTickets, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.False(t, hasMore)

	seq, err := s.CurrentSeq(ctx, models.ScopeTickets)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}

func TestListEventsSince_AscendingOrder(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	codes := []string{"T-101", "T-102", "T-103", "T-104"}
	for _, code := range codes {
		_, err := s.ApplyPush(ctx, newBatch(models.ScopeTickets, checkinEvent(code)))
		require.NoError(t, err)
	}

	events, hasMore, err := s.ListEventsSince(ctx, models.ScopeTickets, 0, 10)
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, events, 4)

	for i, event := range events {
		assert.Equal(t, int64(i+1), event.ServerSeq)
		assert.Equal(t, models.ScopeTickets, event.Scope)
	}
}

func TestListEventsSince_Pagination(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	for i := 0; i < 5; i++ {
		_, err := s.ApplyPush(ctx, newBatch(models.ScopeInventory, adjustEvent("item-1", 1, "")))
		require.NoError(t, err)
	}

	// Первая страница
	page1, hasMore, err := s.ListEventsSince(ctx, models.ScopeInventory, 0, 2)
	require.NoError(t, err)
	assert.True(t, hasMore)
	require.Len(t, page1, 2)
	assert.Equal(t, int64(2), page1[1].ServerSeq)

	// Вторая страница: продолжаем с watermark первой
	page2, hasMore, err := s.ListEventsSince(ctx, models.ScopeInventory, page1[1].ServerSeq, 2)
	require.NoError(t, err)
	assert.True(t, hasMore)
	require.Len(t, page2, 2)
	assert.Equal(t, int64(3), page2[0].ServerSeq)

	// Последняя страница
	page3, hasMore, err := s.ListEventsSince(ctx, models.ScopeInventory, page2[1].ServerSeq, 2)
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, page3, 1)
	assert.Equal(t, int64(5), page3[0].ServerSeq)

	// Уже виденные события никогда не возвращаются повторно
	for _, event := range page2 {
		assert.Greater(t, event.ServerSeq, page1[1].ServerSeq)
	}
	for _, event := range page3 {
		assert.Greater(t, event.ServerSeq, page2[1].ServerSeq)
	}
}

func TestListEventsSince_ScopesDoNotLeak(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.ApplyPush(ctx, newBatch(models.ScopeInventory, adjustEvent("item-1", 1, "")))
	require.NoError(t, err)
	_, err = s.ApplyPush(ctx, newBatch(models.ScopeTickets, checkinEvent("T-201")))
	require.NoError(t, err)

	events, _, err := s.ListEventsSince(ctx, models.ScopeTickets, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventTypeTicketCheckin, events[0].Type)
}

func TestFindMutation_NotFound(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.FindMutation(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, storage.ErrMutationNotFound)
}
