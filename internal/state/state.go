package state

import (
	"sync"

	"github.com/liberland/federated-bridge/internal/db"
	"github.com/liberland/federated-bridge/internal/types"
	log "github.com/sirupsen/logrus"
)

type State struct {
	EventBus *EventBus

	dbm *db.DatabaseManager

	headMu sync.RWMutex
	head   ChainHead
}

// InitializeState loads the chain head from the chain database
func InitializeState(dbm *db.DatabaseManager) *State {
	s := &State{
		EventBus: NewEventBus(),
		dbm:      dbm,
	}

	chainDb := dbm.GetChainDB()
	var genesis, best db.Block
	res := chainDb.Where("number = ?", 0).Limit(1).Find(&genesis)
	if res.Error != nil {
		log.Fatalf("Failed to load genesis block: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		log.Infof("Chain database is empty, genesis not built yet")
		return s
	}
	if err := chainDb.Order("number desc").First(&best).Error; err != nil {
		log.Fatalf("Failed to load best block: %v", err)
	}

	genesisHash, err := types.ParseHash(genesis.Hash)
	if err != nil {
		log.Fatalf("Corrupt genesis hash: %v", err)
	}
	bestHash, err := types.ParseHash(best.Hash)
	if err != nil {
		log.Fatalf("Corrupt best block hash: %v", err)
	}
	s.head = ChainHead{GenesisHash: genesisHash, BestNumber: best.Number, BestHash: bestHash}
	log.Infof("Loaded chain head, best block %d (%s)", best.Number, best.Hash)
	return s
}

func (s *State) GetHead() ChainHead {
	s.headMu.RLock()
	defer s.headMu.RUnlock()
	return s.head
}

// HasGenesis reports whether block 0 exists
func (s *State) HasGenesis() bool {
	return !s.GetHead().GenesisHash.IsZero()
}

// UpdateHead moves the head forward and publishes block notifications
func (s *State) UpdateHead(number uint64, hash types.Hash, finalityDepth uint64) {
	s.headMu.Lock()
	if number == 0 {
		s.head.GenesisHash = hash
	}
	s.head.BestNumber = number
	s.head.BestHash = hash
	prevFinalized := s.head.FinalizedNumber
	finalized := uint64(0)
	if number > finalityDepth {
		finalized = number - finalityDepth
	}
	s.head.FinalizedNumber = finalized
	s.headMu.Unlock()

	s.EventBus.Publish(BlockImported, BlockNotification{Number: number, Hash: hash})
	if finalized > prevFinalized {
		s.EventBus.Publish(BlockFinalized, BlockNotification{Number: finalized})
	}
}

// SetFinalityDepth recomputes the finalized height after a restart
func (s *State) SetFinalityDepth(finalityDepth uint64) {
	s.headMu.Lock()
	defer s.headMu.Unlock()
	if s.head.BestNumber > finalityDepth {
		s.head.FinalizedNumber = s.head.BestNumber - finalityDepth
	} else {
		s.head.FinalizedNumber = 0
	}
}
