package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-heating/internal/heating"
	"github.com/nerrad567/gray-logic-heating/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-heating/migrations"
)

var testNow = time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "heating.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	require.NoError(t, db.Migrate(context.Background()))

	repo := NewSQLiteRepository(db.DB)
	repo.now = func() time.Time { return testNow }
	return repo
}

func ptr(v float64) *float64 { return &v }

func TestSQLiteRepository_EventRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := &Event{
		Kind:         heating.EventModeChanged,
		Mode:         heating.ModeHeating,
		PreviousMode: heating.ModeAuto,
		FlowTarget:   37.5,
		ActiveZones:  []string{"bad", "kueche"},
		OutdoorTemp:  ptr(2.5),
		Details:      "claim matured",
	}
	require.NoError(t, repo.CreateEvent(ctx, e))
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, testNow, e.CreatedAt)

	got, err := repo.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, heating.EventModeChanged, got.Kind)
	assert.Equal(t, heating.ModeHeating, got.Mode)
	assert.Equal(t, heating.ModeAuto, got.PreviousMode)
	assert.Equal(t, 37.5, got.FlowTarget)
	assert.Equal(t, []string{"bad", "kueche"}, got.ActiveZones)
	require.NotNil(t, got.OutdoorTemp)
	assert.Equal(t, 2.5, *got.OutdoorTemp)
	assert.Equal(t, "claim matured", got.Details)
	assert.True(t, testNow.Equal(got.CreatedAt))
}

func TestSQLiteRepository_OptionalColumns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := &Event{Kind: heating.EventStartupComplete, Mode: heating.ModeAuto}
	require.NoError(t, repo.CreateEvent(ctx, e))

	got, err := repo.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, got.PreviousMode)
	assert.Nil(t, got.ActiveZones)
	assert.Nil(t, got.OutdoorTemp)
	assert.Empty(t, got.Details)
}

func TestSQLiteRepository_GetEventNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetEvent(context.Background(), "sev-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteRepository_ListEvents(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	kinds := []heating.EventKind{
		heating.EventStartupComplete,
		heating.EventFlowTarget,
		heating.EventModeChanged,
		heating.EventFlowTarget,
	}
	for i, k := range kinds {
		require.NoError(t, repo.CreateEvent(ctx, &Event{
			Kind:       k,
			Mode:       heating.ModeAuto,
			FlowTarget: float64(30 + i),
			CreatedAt:  testNow.Add(time.Duration(i) * time.Minute),
		}))
	}

	t.Run("newest first", func(t *testing.T) {
		page, err := repo.ListEvents(ctx, Filter{})
		require.NoError(t, err)
		assert.Equal(t, 4, page.Total)
		assert.Equal(t, defaultListLimit, page.Limit)
		require.Len(t, page.Events, 4)
		assert.Equal(t, 33.0, page.Events[0].FlowTarget)
		assert.Equal(t, 30.0, page.Events[3].FlowTarget)
	})

	t.Run("by kind", func(t *testing.T) {
		page, err := repo.ListEvents(ctx, Filter{Kind: heating.EventFlowTarget})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		for _, e := range page.Events {
			assert.Equal(t, heating.EventFlowTarget, e.Kind)
		}
	})

	t.Run("since", func(t *testing.T) {
		page, err := repo.ListEvents(ctx, Filter{Since: testNow.Add(2 * time.Minute)})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
	})

	t.Run("pagination", func(t *testing.T) {
		page, err := repo.ListEvents(ctx, Filter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 4, page.Total)
		require.Len(t, page.Events, 1)
		assert.Equal(t, 32.0, page.Events[0].FlowTarget)
	})

	t.Run("limit clamped", func(t *testing.T) {
		page, err := repo.ListEvents(ctx, Filter{Limit: 1000, Offset: -3})
		require.NoError(t, err)
		assert.Equal(t, maxListLimit, page.Limit)
		assert.Zero(t, page.Offset)
	})
}

func TestSQLiteRepository_Claims(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateClaim(ctx, &ClaimChange{Location: "bad", Claim: true, CurrentTemp: ptr(19.2), Target: 21}))
	require.NoError(t, repo.CreateClaim(ctx, &ClaimChange{Location: "kueche", Claim: false, Target: 5, CreatedAt: testNow.Add(time.Second)}))

	page, err := repo.ListClaims(ctx, Filter{Location: "bad"})
	require.NoError(t, err)
	require.Len(t, page.Claims, 1)
	c := page.Claims[0]
	assert.True(t, c.Claim)
	require.NotNil(t, c.CurrentTemp)
	assert.Equal(t, 19.2, *c.CurrentTemp)
	assert.Equal(t, 21.0, c.Target)

	all, err := repo.ListClaims(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all.Claims, 2)
	assert.Equal(t, "kueche", all.Claims[0].Location)
	assert.Nil(t, all.Claims[0].CurrentTemp)

	assert.Error(t, repo.CreateClaim(ctx, &ClaimChange{Claim: true}))
}

func TestSQLiteRepository_Prune(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	old := testNow.Add(-100 * 24 * time.Hour)
	require.NoError(t, repo.CreateEvent(ctx, &Event{Kind: heating.EventFlowTarget, Mode: heating.ModeAuto, CreatedAt: old}))
	require.NoError(t, repo.CreateClaim(ctx, &ClaimChange{Location: "bad", CreatedAt: old}))
	require.NoError(t, repo.CreateEvent(ctx, &Event{Kind: heating.EventFlowTarget, Mode: heating.ModeAuto}))

	n, err := repo.Prune(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	page, err := repo.ListEvents(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = repo.Prune(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidRetention)
}
