package migrations

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migration is an applied one-off schema change
type Migration struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// MigrationManager applies named migrations at most once per database
type MigrationManager struct {
	db *gorm.DB
}

func NewMigrationManager(db *gorm.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

func (m *MigrationManager) EnsureMigrationTable() error {
	if m.db.Migrator().HasTable(&Migration{}) {
		return nil
	}
	log.Debugf("Creating migrations table")
	return m.db.AutoMigrate(&Migration{})
}

func applied(tx *gorm.DB, name string) (bool, error) {
	var count int64
	if err := tx.Model(&Migration{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check migration %s: %w", name, err)
	}
	return count > 0, nil
}

func (m *MigrationManager) HasMigration(name string) bool {
	ok, err := applied(m.db, name)
	return err == nil && ok
}

// RunMigration runs fn and records name in the same transaction, skipping
// migrations that were already recorded.
func (m *MigrationManager) RunMigration(name string, fn func(*gorm.DB) error) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		done, err := applied(tx, name)
		if err != nil {
			return err
		}
		if done {
			log.Debugf("Migration %s already applied", name)
			return nil
		}
		log.Debugf("Running migration: %s", name)
		if err := fn(tx); err != nil {
			return fmt.Errorf("migration %s failed: %w", name, err)
		}
		if err := tx.Create(&Migration{Name: name, AppliedAt: time.Now()}).Error; err != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		log.Debugf("Successfully completed migration: %s", name)
		return nil
	})
}
