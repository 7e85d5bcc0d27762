package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"crs-prediction-api/config"
	"crs-prediction-api/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "crs.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedDraws(t *testing.T, s *GormStore) {
	t.Helper()
	added, err := s.SaveDraws(context.Background(), []models.Draw{
		{Number: "386", Date: day(2025, 12, 10), Category: "General", Score: 520, InvitationsIssued: 1000},
		{Number: "387", Date: day(2025, 12, 17), Category: "French language proficiency", Score: 399, InvitationsIssued: 6000},
		{Number: "388", Date: day(2026, 1, 7), Category: "Canadian Experience Class", Score: 511, InvitationsIssued: 8000},
		{Number: "389", Date: day(2026, 1, 14), Category: "Provincial Nominee Program", Score: 746, InvitationsIssued: 681},
	})
	require.NoError(t, err)
	require.Equal(t, 4, added)
}

func TestGormStoreEmpty(t *testing.T) {
	s := NewGormStore(setupTestDB(t))

	_, err := s.LoadOfficialData(context.Background())
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestGormStoreLoadOfficialData(t *testing.T) {
	s := NewGormStore(setupTestDB(t))
	seedDraws(t, s)

	data, err := s.LoadOfficialData(context.Background())
	require.NoError(t, err)

	require.Len(t, data.Draws, 4)
	assert.Equal(t, "389", data.Draws[0].Number)
	assert.Equal(t, "386", data.Draws[3].Number)
	assert.Equal(t, dbSource, data.Source)
	assert.Equal(t, 2026, data.Pool.Year, "no snapshot falls back to defaults")
	assert.Equal(t, DefaultTargets(), data.Targets)
	assert.False(t, data.UpdatedAt.IsZero())
}

func TestGormStoreSaveDrawsSkipsDuplicates(t *testing.T) {
	s := NewGormStore(setupTestDB(t))
	seedDraws(t, s)

	added, err := s.SaveDraws(context.Background(), []models.Draw{
		{Number: "389", Date: day(2026, 1, 14), Category: "Provincial Nominee Program", Score: 746, InvitationsIssued: 681},
		{Number: "390", Date: day(2026, 1, 21), Category: "General", Score: 515, InvitationsIssued: 4000},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	rows, err := s.QueryDraws(context.Background(), DrawQuery{})
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestGormStorePoolAndTargets(t *testing.T) {
	s := NewGormStore(setupTestDB(t))
	seedDraws(t, s)
	ctx := context.Background()

	require.NoError(t, s.SavePool(ctx, models.PoolDistribution{
		Year: 2027, TotalPool: 1000, AvgScore: 480,
		Distribution: map[string]int{"601-1200": 10, "501-600": 90, "0-500": 900},
	}))
	// Saving again replaces the bands rather than appending.
	require.NoError(t, s.SavePool(ctx, models.PoolDistribution{
		Year: 2027, TotalPool: 1000, AvgScore: 481,
		Distribution: map[string]int{"601-1200": 20, "501-600": 80, "0-500": 900},
	}))
	require.NoError(t, s.SaveTargets(ctx, []models.ImmigrationTarget{
		{Year: 2027, Total: 365000, ExpressEntry: 112000},
	}))

	data, err := s.LoadOfficialData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2027, data.Pool.Year)
	assert.Equal(t, 481, data.Pool.AvgScore)
	assert.Equal(t, map[string]int{"601-1200": 20, "501-600": 80, "0-500": 900}, data.Pool.Distribution)
	require.Len(t, data.Targets, 1)
	assert.Equal(t, 112000, data.Targets[0].ExpressEntry)
}

func TestGormStoreQueryDraws(t *testing.T) {
	s := NewGormStore(setupTestDB(t))
	seedDraws(t, s)
	ctx := context.Background()

	t.Run("limit", func(t *testing.T) {
		rows, err := s.QueryDraws(ctx, DrawQuery{Limit: 2})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "389", rows[0].Number)
	})

	t.Run("before", func(t *testing.T) {
		before := Cursor{Date: day(2026, 1, 1)}
		rows, err := s.QueryDraws(ctx, DrawQuery{Before: &before})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "387", rows[0].Number)
	})

	t.Run("same day cursor", func(t *testing.T) {
		_, err := s.SaveDraws(ctx, []models.Draw{
			{Number: "390", Date: day(2026, 1, 14), Category: "Canadian Experience Class", Score: 509, InvitationsIssued: 6000},
		})
		require.NoError(t, err)

		first, err := s.QueryDraws(ctx, DrawQuery{Limit: 1})
		require.NoError(t, err)
		require.Len(t, first, 1)
		assert.Equal(t, "390", first[0].Number)

		cur := CursorAt(first[0])
		rows, err := s.QueryDraws(ctx, DrawQuery{Before: &cur, Limit: 2})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "389", rows[0].Number)
		assert.Equal(t, "388", rows[1].Number)
	})

	t.Run("category", func(t *testing.T) {
		rows, err := s.QueryDraws(ctx, DrawQuery{Category: "French", Limit: 5})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 399, rows[0].Score)
	})
}

func TestOpen(t *testing.T) {
	t.Run("file driver", func(t *testing.T) {
		loader, closeFn, err := Open(config.DatabaseConfig{Driver: config.DriverFile, DataDir: t.TempDir()})
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &FileStore{}, loader)
	})

	t.Run("sqlite driver migrates", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "open.db")
		loader, closeFn, err := Open(config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: path})
		require.NoError(t, err)
		defer closeFn()

		_, err = loader.QueryDraws(context.Background(), DrawQuery{})
		assert.NoError(t, err)
	})
}
