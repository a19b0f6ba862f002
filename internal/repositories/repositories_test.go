package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/d2t/internal/models"
	"github.com/desertthunder/d2t/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	// every pooled connection would otherwise get its own empty in-memory database
	shared.ConfigureDatabase(db, 1, 1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func testReport(mode models.Mode) *models.SyncReport {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.SyncReport{
		RunID:             shared.GenerateID(),
		Mode:              mode,
		BaseName:          "Discogs",
		StartedAt:         started,
		FinishedAt:        started.Add(90 * time.Second),
		ReleasesProcessed: 2,
		TracksTotal:       3,
		TracksDistinct:    2,
		TracksMatched:     2,
		Strategies:        map[models.Strategy]int{models.StrategyExact: 2},
		Outcomes: []models.PlaylistOutcome{
			{Style: "Techno", PlaylistName: "Discogs - Techno", PlaylistID: "p1", Created: true, Added: 2},
			{Style: "Acid", PlaylistName: "Discogs - Acid", PlaylistID: "p2", Added: 0, Failures: []models.TrackFailure{{TrackID: "9", Reason: "gone"}}},
		},
	}
}

func TestRunRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Record and Get", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		report := testReport(models.ModeStyleSync)

		require.NoError(t, repo.Record(ctx, report))

		run, err := repo.Get(report.RunID)
		require.NoError(t, err)
		assert.Equal(t, 1, run.Sequence())
		assert.Equal(t, models.ModeStyleSync, run.Mode)
		assert.Equal(t, "Discogs", run.BaseName)
		assert.Equal(t, 2, run.TracksAdded)
		assert.Equal(t, 1, run.TracksFailed)
		assert.True(t, run.StartedAt.Equal(report.StartedAt))
		require.NotNil(t, run.FinishedAt)
		assert.True(t, run.FinishedAt.Equal(report.FinishedAt))

		decoded, err := run.DecodeReport()
		require.NoError(t, err)
		assert.Equal(t, report.RunID, decoded.RunID)
		assert.Len(t, decoded.Outcomes, 2)
		assert.Equal(t, 2, decoded.Strategies[models.StrategyExact])
	})

	t.Run("List newest first", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		first, second, third := testReport(models.ModeSync), testReport(models.ModeStyleSync), testReport(models.ModeStyleSync)
		for _, r := range []*models.SyncReport{first, second, third} {
			require.NoError(t, repo.Record(ctx, r))
		}

		runs, err := repo.List(nil)
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, third.RunID, runs[0].ID())
		assert.Equal(t, first.RunID, runs[2].ID())

		runs, err = repo.List(map[string]any{"limit": 2})
		require.NoError(t, err)
		assert.Len(t, runs, 2)

		runs, err = repo.List(map[string]any{"mode": string(models.ModeSync)})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, first.RunID, runs[0].ID())
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		report := testReport(models.ModeSync)
		report.FinishedAt = time.Time{}
		require.NoError(t, repo.Record(ctx, report))

		run, err := repo.Get(report.RunID)
		require.NoError(t, err)
		assert.Nil(t, run.FinishedAt)

		finished := time.Now().UTC()
		run.FinishedAt = &finished
		run.TracksAdded = 10
		require.NoError(t, repo.Update(run))

		updated, err := repo.Get(report.RunID)
		require.NoError(t, err)
		assert.Equal(t, 10, updated.TracksAdded)
		assert.NotNil(t, updated.FinishedAt)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		report := testReport(models.ModeSync)
		require.NoError(t, repo.Record(ctx, report))

		require.NoError(t, repo.Delete(report.RunID))
		_, err := repo.Get(report.RunID)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		assert.ErrorIs(t, repo.Delete(report.RunID), shared.ErrNotFound, "already deleted")
	})

	t.Run("Create generates missing ids", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		report := testReport(models.ModeSync)
		report.RunID = ""

		run, err := models.NewSyncRun(0, report)
		require.NoError(t, err)
		require.NoError(t, repo.Create(run))
		assert.NotEmpty(t, run.ID())
	})

	t.Run("errors", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))

		_, err := repo.Get("missing")
		assert.ErrorIs(t, err, shared.ErrNotFound)

		invalid := testReport("shuffle")
		assert.ErrorIs(t, repo.Record(ctx, invalid), shared.ErrInvalidInput)

		report := testReport(models.ModeSync)
		require.NoError(t, repo.Record(ctx, report))
		assert.Error(t, repo.Record(ctx, report), "run ids are unique")

		run, err := models.NewSyncRun(0, testReport(models.ModeSync))
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Update(run), shared.ErrNotFound)
	})
}

func TestPlaylistRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Remember inserts then updates by name", func(t *testing.T) {
		repo := NewPlaylistRepository(setupTestDB(t))

		m := models.NewPlaylistMapping("Tidal", "Discogs - Techno", "uuid-1", "Techno")
		m.LastRunID = "run-1"
		require.NoError(t, repo.Remember(ctx, m))

		again := models.NewPlaylistMapping("Tidal", "Discogs - Techno", "uuid-2", "Techno")
		again.LastRunID = "run-2"
		require.NoError(t, repo.Remember(ctx, again))

		got, err := repo.GetByName("Tidal", "Discogs - Techno")
		require.NoError(t, err)
		assert.Equal(t, m.ID(), got.ID(), "the first row is kept")
		assert.Equal(t, "uuid-2", got.RemoteID)
		assert.Equal(t, "run-2", got.LastRunID)

		all, err := repo.List(nil)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Remember revives deleted mappings", func(t *testing.T) {
		repo := NewPlaylistRepository(setupTestDB(t))
		m := models.NewPlaylistMapping("Tidal", "Discogs - House", "uuid-1", "House")
		require.NoError(t, repo.Remember(ctx, m))
		require.NoError(t, repo.Delete(m.ID()))

		_, err := repo.GetByName("Tidal", "Discogs - House")
		require.ErrorIs(t, err, shared.ErrNotFound)

		require.NoError(t, repo.Remember(ctx, models.NewPlaylistMapping("Tidal", "Discogs - House", "uuid-3", "House")))
		got, err := repo.GetByName("Tidal", "Discogs - House")
		require.NoError(t, err)
		assert.Equal(t, "uuid-3", got.RemoteID)
		assert.Empty(t, got.LastRunID)
	})

	t.Run("CRUD", func(t *testing.T) {
		repo := NewPlaylistRepository(setupTestDB(t))
		m := models.NewPlaylistMapping("Tidal", "My Discogs Collection", "uuid-1", "")
		require.NoError(t, repo.Create(m))

		got, err := repo.Get(m.ID())
		require.NoError(t, err)
		assert.Equal(t, "My Discogs Collection", got.Name)

		got.RemoteID = "uuid-9"
		require.NoError(t, repo.Update(got))
		got, err = repo.Get(m.ID())
		require.NoError(t, err)
		assert.Equal(t, "uuid-9", got.RemoteID)

		require.NoError(t, repo.Delete(m.ID()))
		_, err = repo.Get(m.ID())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("List filters", func(t *testing.T) {
		repo := NewPlaylistRepository(setupTestDB(t))
		for _, name := range []string{"Discogs - Techno", "Discogs - Acid"} {
			m := models.NewPlaylistMapping("Tidal", name, "id-"+name, "")
			m.LastRunID = "run-1"
			require.NoError(t, repo.Remember(ctx, m))
		}
		require.NoError(t, repo.Remember(ctx, models.NewPlaylistMapping("Other", "Discogs - Techno", "x", "")))

		tidal, err := repo.List(map[string]any{"service": "Tidal"})
		require.NoError(t, err)
		require.Len(t, tidal, 2)
		assert.Equal(t, "Discogs - Acid", tidal[0].Name, "ordered by name")

		byRun, err := repo.List(map[string]any{"run_id": "run-1"})
		require.NoError(t, err)
		assert.Len(t, byRun, 2)
	})

	t.Run("validation", func(t *testing.T) {
		repo := NewPlaylistRepository(setupTestDB(t))
		err := repo.Remember(ctx, models.NewPlaylistMapping("Tidal", "", "uuid", ""))
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		assert.ErrorIs(t, repo.Create(models.NewPlaylistMapping("", "x", "y", "")), shared.ErrInvalidInput)
	})
}

func TestNextSequence(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	seq1, err := NextSequence(ctx, db, "sync_runs")
	if err != nil {
		t.Fatalf("failed to get first sequence: %v", err)
	}

	if seq1 != 1 {
		t.Errorf("expected first sequence to be 1, got %d", seq1)
	}

	seq2, err := NextSequence(ctx, db, "sync_runs")
	if err != nil {
		t.Fatalf("failed to get second sequence: %v", err)
	}

	if seq2 != 2 {
		t.Errorf("expected second sequence to be 2, got %d", seq2)
	}

	t.Run("unknown table", func(t *testing.T) {
		_, err := NextSequence(ctx, db, "playlists; DROP TABLE sync_runs")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NextSequence(cancelled, db, "sync_runs")
		assert.Error(t, err)

		seq3, err := NextSequence(ctx, db, "sync_runs")
		require.NoError(t, err)
		assert.Equal(t, 3, seq3, "a failed bump leaves the counter alone")
	})
}
