package syncer

import (
	"context"
	"time"

	"github.com/liberland/federated-bridge/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Cursor remembers the last block a task fully handled.
type Cursor struct {
	relayDb *gorm.DB
	taskId  string
	start   uint64
}

// NewCursor starts at block start when the task has never synced.
func NewCursor(dbm *db.DatabaseManager, taskId string, start uint64) *Cursor {
	return &Cursor{relayDb: dbm.GetRelayDB(), taskId: taskId, start: start}
}

func (c *Cursor) TaskId() string {
	return c.taskId
}

// Next returns the first block still to be handled.
func (c *Cursor) Next(ctx context.Context) (uint64, error) {
	var status db.SyncStatus
	res := c.relayDb.WithContext(ctx).Where("task_id = ?", c.taskId).Limit(1).Find(&status)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return c.start, nil
	}
	return status.LastSyncBlock + 1, nil
}

func (c *Cursor) Save(ctx context.Context, block uint64) error {
	status := db.SyncStatus{TaskId: c.taskId, LastSyncBlock: block, UpdatedAt: time.Now()}
	return c.relayDb.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "task_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_sync_block", "updated_at"}),
	}).Create(&status).Error
}
