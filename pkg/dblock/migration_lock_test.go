package dblock

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestNewMigrationLocker_NilDB(t *testing.T) {
	locker := NewMigrationLocker(nil)

	called := false
	err := locker.WithLock(context.Background(), func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestFallbackLock_RunsAndReleases(t *testing.T) {
	db := newTestDB(t)
	locker := NewMigrationLocker(db)

	called := false
	err := locker.WithLock(context.Background(), func() error {
		called = true

		// The lock row exists while fn runs.
		var count int64
		require.NoError(t, db.Model(&migrationLockRecord{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	// Released after fn returns.
	var count int64
	require.NoError(t, db.Model(&migrationLockRecord{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	// Reacquiring succeeds.
	require.NoError(t, locker.WithLock(context.Background(), func() error { return nil }))
}

func TestFallbackLock_PropagatesError(t *testing.T) {
	db := newTestDB(t)
	locker := NewMigrationLocker(db)

	wantErr := errors.New("migration failed")
	err := locker.WithLock(context.Background(), func() error { return wantErr })
	assert.ErrorIs(t, err, wantErr)

	// Still released on error.
	var count int64
	require.NoError(t, db.Model(&migrationLockRecord{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
