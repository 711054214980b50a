package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherr/gatherr/internal/database"
	"github.com/gatherr/gatherr/internal/indexer/types"
	"github.com/gatherr/gatherr/internal/testutil"
)

func sampleDefinition() *types.IndexerDefinition {
	return &types.IndexerDefinition{
		Name:     "nyaa",
		Protocol: types.ProtocolTorrent,
		BaseURL:  "https://nyaa.example.com",
		Capabilities: types.Capabilities{
			Categories: []int{2000, 5000, 5070},
			TVSearch: types.SearchMode{
				Available:       true,
				SupportedParams: []string{"q", "tvdbId", "season", "ep"},
			},
		},
		InteractiveEnabled: true,
		AutomaticEnabled:   true,
		Priority:           10,
		SeedRatio:          1.5,
		RequestsPerMinute:  20,
	}
}

func TestStore_IndexerCRUD(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	ctx := context.Background()

	def := sampleDefinition()
	require.NoError(t, tdb.Store.CreateIndexer(ctx, def))
	require.NotZero(t, def.ID)

	got, err := tdb.Store.GetIndexer(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, "nyaa", got.Name)
	assert.Equal(t, types.ProtocolTorrent, got.Protocol)
	assert.Equal(t, []int{2000, 5000, 5070}, got.Capabilities.Categories)
	assert.True(t, got.Capabilities.TVSearch.Available)
	assert.Equal(t, 20, got.RequestsPerMinute)

	got.Priority = 5
	got.AutomaticEnabled = false
	require.NoError(t, tdb.Store.UpdateIndexer(ctx, got))

	updated, err := tdb.Store.GetIndexer(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Priority)
	assert.False(t, updated.AutomaticEnabled)

	list, err := tdb.Store.ListIndexers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, tdb.Store.DeleteIndexer(ctx, def.ID))
	_, err = tdb.Store.GetIndexer(ctx, def.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestStore_IndexerStatusRoundTrip(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	ctx := context.Background()

	_, err := tdb.Store.GetIndexerStatus(ctx, 42)
	require.ErrorIs(t, err, database.ErrNotFound)

	failure := time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)
	backoff := failure.Add(5 * time.Minute)
	rec := &database.IndexerStatusRecord{
		IndexerID:           42,
		IsEnabled:           true,
		Priority:            15,
		ConsecutiveFailures: 3,
		LastFailureAt:       &failure,
		BackoffUntil:        &backoff,
	}
	require.NoError(t, tdb.Store.UpsertIndexerStatus(ctx, rec))

	got, err := tdb.Store.GetIndexerStatus(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ConsecutiveFailures)
	assert.Equal(t, 15, got.Priority)
	require.NotNil(t, got.BackoffUntil)
	assert.True(t, got.BackoffUntil.Equal(backoff))
	assert.Nil(t, got.LastSuccessAt)

	// Upsert replaces the row.
	rec.ConsecutiveFailures = 0
	rec.BackoffUntil = nil
	success := failure.Add(time.Hour)
	rec.LastSuccessAt = &success
	require.NoError(t, tdb.Store.UpsertIndexerStatus(ctx, rec))

	got, err = tdb.Store.GetIndexerStatus(ctx, 42)
	require.NoError(t, err)
	assert.Zero(t, got.ConsecutiveFailures)
	assert.Nil(t, got.BackoffUntil)
	require.NotNil(t, got.LastSuccessAt)
}

func TestStore_History(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ev := &database.HistoryEvent{
			IndexerID:  7,
			EventType:  database.HistoryEventSearch,
			Successful: true,
			Data:       `{"query":"oppenheimer"}`,
		}
		require.NoError(t, tdb.Store.AppendHistory(ctx, ev))
		require.NotZero(t, ev.ID)
	}
	require.NoError(t, tdb.Store.AppendHistory(ctx, &database.HistoryEvent{
		IndexerID: 8, EventType: database.HistoryEventGrab, Successful: false,
	}))

	events, err := tdb.Store.ListHistory(ctx, 7, 10)
	require.NoError(t, err)
	assert.Len(t, events, 3)
	for _, ev := range events {
		assert.Equal(t, int64(7), ev.IndexerID)
		assert.Equal(t, database.HistoryEventSearch, ev.EventType)
	}

	all, err := tdb.Store.ListHistory(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
