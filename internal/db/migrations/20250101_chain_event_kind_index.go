package migrations

import (
	"gorm.io/gorm"
)

// AddChainEventKindIndex indexes chain events by bridge and kind for event scans
func AddChainEventKindIndex(tx *gorm.DB) error {
	return tx.Exec("CREATE INDEX IF NOT EXISTS chain_event_bridge_kind_index ON chain_events (bridge, kind)").Error
}
