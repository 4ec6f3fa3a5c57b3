package db

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/liberland/federated-bridge/internal/config"
	"github.com/liberland/federated-bridge/internal/db/migrations"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type DatabaseManager struct {
	chainDb   *gorm.DB
	relayDb   *gorm.DB
	relayLock *flock.Flock
}

func NewDatabaseManager() *DatabaseManager {
	dm := &DatabaseManager{}
	dm.initDB()
	return dm
}

func openSqlite(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}

func (dm *DatabaseManager) initDB() {
	dbDir := config.AppConfig.DbDir
	if err := os.MkdirAll(dbDir, os.ModePerm); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	chainPath := filepath.Join(dbDir, "chain.db")
	chainDb, err := openSqlite(chainPath)
	if err != nil {
		log.Fatalf("Failed to connect to chain database: %v", err)
	}
	dm.chainDb = chainDb
	log.Debugf("Chain database connected successfully, path: %s", chainPath)

	relayPath := filepath.Join(dbDir, "relay.db")
	// only one daemon may use a relay cache at a time
	dm.relayLock = flock.New(relayPath + ".lock")
	locked, err := dm.relayLock.TryLock()
	if err != nil {
		log.Fatalf("Failed to lock relay database: %v", err)
	}
	if !locked {
		log.Fatalf("Relay database %s is in use by another process", relayPath)
	}
	relayDb, err := openSqlite(relayPath)
	if err != nil {
		log.Fatalf("Failed to connect to relay database: %v", err)
	}
	dm.relayDb = relayDb
	log.Debugf("Relay database connected successfully, path: %s", relayPath)

	dm.autoMigrate()
	dm.runMigrations()
	log.Debugf("Database migration completed successfully")
}

func (dm *DatabaseManager) GetChainDB() *gorm.DB {
	return dm.chainDb
}

func (dm *DatabaseManager) GetRelayDB() *gorm.DB {
	return dm.relayDb
}

// Close releases the connections and the relay cache lock.
func (dm *DatabaseManager) Close() {
	for _, g := range []*gorm.DB{dm.chainDb, dm.relayDb} {
		if sqlDb, err := g.DB(); err == nil {
			_ = sqlDb.Close()
		}
	}
	if err := dm.relayLock.Unlock(); err != nil {
		log.Warnf("Failed to unlock relay database: %v", err)
	}
}

func (dm *DatabaseManager) autoMigrate() {
	if err := dm.chainDb.AutoMigrate(&BridgeInfo{}, &BridgeMember{}, &IncomingReceipt{}, &ReceiptVote{},
		&Balance{}, &Block{}, &ChainEvent{}, &Extrinsic{}); err != nil {
		log.Fatalf("Failed to migrate chain database: %v", err)
	}
	if err := dm.relayDb.AutoMigrate(&SyncStatus{}, &Network{}, &SubCall{}, &EthTx{}); err != nil {
		log.Fatalf("Failed to migrate relay database: %v", err)
	}
}

func (dm *DatabaseManager) runMigrations() {
	mm := migrations.NewMigrationManager(dm.chainDb)
	if err := mm.EnsureMigrationTable(); err != nil {
		log.Fatalf("Failed to create migration table: %v", err)
	}
	if err := mm.RunMigration("20250101_chain_event_kind_index", migrations.AddChainEventKindIndex); err != nil {
		log.Fatalf("Failed to run migration: %v", err)
	}
}
