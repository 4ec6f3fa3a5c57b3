package migrations

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestRunMigrationOnce(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "m.db")), &gorm.Config{})
	require.NoError(t, err)

	mm := NewMigrationManager(db)
	require.NoError(t, mm.EnsureMigrationTable())

	calls := 0
	fn := func(tx *gorm.DB) error {
		calls++
		return tx.Exec("CREATE TABLE t (id INTEGER)").Error
	}
	require.NoError(t, mm.RunMigration("create_t", fn))
	require.NoError(t, mm.RunMigration("create_t", fn))
	assert.Equal(t, 1, calls)
	assert.True(t, mm.HasMigration("create_t"))

	err = mm.RunMigration("broken", func(tx *gorm.DB) error { return errors.New("boom") })
	assert.Error(t, err)
	assert.False(t, mm.HasMigration("broken"))
}
