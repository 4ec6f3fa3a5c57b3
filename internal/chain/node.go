package chain

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/liberland/federated-bridge/internal/bridge"
	"github.com/liberland/federated-bridge/internal/db"
	"github.com/liberland/federated-bridge/internal/ledger"
	"github.com/liberland/federated-bridge/internal/state"
	"github.com/liberland/federated-bridge/internal/types"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type NodeConfig struct {
	BlockTime          time.Duration
	FinalityDepth      uint64
	MaxExtrinsics      int
	PoolSize           int
	FeeAsset           string
	ExistentialDeposit types.Balance
	Sudo               *types.AccountId
}

// Node produces blocks from submitted extrinsics. Each block is one
// database transaction and each extrinsic runs in a nested savepoint, so
// a failed call leaves no trace besides its journal entry.
type Node struct {
	cfg     NodeConfig
	state   *state.State
	chainDb *gorm.DB
	pallets map[types.BridgeId]*bridge.Pallet

	produceMu sync.Mutex
	poolMu    sync.Mutex
	pool      []*Extrinsic
	inflight  []*Extrinsic
	nonces    mapset.Set[string]
}

var (
	_ Reader    = (*Node)(nil)
	_ Submitter = (*Node)(nil)
)

func NewNode(st *state.State, dbm *db.DatabaseManager, cfg NodeConfig, pallets ...*bridge.Pallet) *Node {
	if cfg.MaxExtrinsics <= 0 {
		cfg.MaxExtrinsics = 256
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1024
	}
	n := &Node{
		cfg:     cfg,
		state:   st,
		chainDb: dbm.GetChainDB(),
		pallets: make(map[types.BridgeId]*bridge.Pallet, len(pallets)),
		nonces:  mapset.NewSet[string](),
	}
	for _, p := range pallets {
		n.pallets[p.Id()] = p
	}
	st.SetFinalityDepth(cfg.FinalityDepth)
	return n
}

// BlockHash commits a block to its parent, height and extrinsics.
func BlockHash(parent types.Hash, number uint64, extrinsicsRoot types.Hash) types.Hash {
	var num [8]byte
	binary.BigEndian.PutUint64(num[:], number)
	return types.Blake2b256(parent[:], num[:], extrinsicsRoot[:])
}

// InitGenesis builds block 0 unless the database already has one.
func (n *Node) InitGenesis(g *Genesis) error {
	if n.state.HasGenesis() {
		log.Infof("Genesis already built, hash %s", n.state.GetHead().GenesisHash)
		return nil
	}
	root, err := g.hash()
	if err != nil {
		return err
	}
	hash := BlockHash(types.Hash{}, 0, root)

	err = n.chainDb.Transaction(func(tx *gorm.DB) error {
		for id, bg := range g.Bridges {
			pallet, ok := n.pallets[id]
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnknownBridge, id)
			}
			if err := pallet.Build(state.NewBridgeStore(tx, id), bg); err != nil {
				return fmt.Errorf("build %s genesis: %w", id, err)
			}
		}
		for _, e := range g.Endowments {
			if err := ledger.New(tx, e.Asset, n.cfg.ExistentialDeposit).Mint(e.Account, e.Amount); err != nil {
				return err
			}
		}
		return tx.Create(&db.Block{
			Number:         0,
			Hash:           hash.Hex(),
			ParentHash:     types.Hash{}.Hex(),
			ExtrinsicsRoot: root.Hex(),
			Timestamp:      time.Now(),
		}).Error
	})
	if err != nil {
		return err
	}
	n.state.UpdateHead(0, hash, n.cfg.FinalityDepth)
	log.Infof("Built genesis block %s", hash)
	return nil
}

func (n *Node) Start(ctx context.Context) {
	ticker := time.NewTicker(n.cfg.BlockTime)
	defer ticker.Stop()

	log.Infof("Node started, block time %v", n.cfg.BlockTime)
	for {
		select {
		case <-ctx.Done():
			log.Info("Node stopping...")
			return
		case <-ticker.C:
			if _, err := n.ProduceBlock(); err != nil {
				log.Errorf("Failed to produce block: %v", err)
			}
		}
	}
}

func (n *Node) usedNonce(tx *gorm.DB, nonce string) (bool, error) {
	var count int64
	err := tx.Model(&db.Extrinsic{}).Where("nonce = ?", nonce).Count(&count).Error
	return count > 0, err
}

// Submit validates an extrinsic and queues it for the next block.
func (n *Node) Submit(ext *Extrinsic) (types.Hash, error) {
	if _, ok := n.pallets[ext.Bridge]; !ok {
		return types.Hash{}, fmt.Errorf("%w: %s", ErrUnknownBridge, ext.Bridge)
	}
	used, err := n.usedNonce(n.chainDb, ext.Nonce)
	if err != nil {
		return types.Hash{}, err
	}
	if used {
		return types.Hash{}, ErrDuplicateNonce
	}

	n.poolMu.Lock()
	defer n.poolMu.Unlock()
	if len(n.pool) >= n.cfg.PoolSize {
		return types.Hash{}, ErrPoolFull
	}
	if !n.nonces.Add(ext.Nonce) {
		return types.Hash{}, ErrDuplicateNonce
	}
	n.pool = append(n.pool, ext)
	log.Debugf("Queued extrinsic %s (%s %s) from %s", ext.Hash, ext.Bridge, ext.Call.Method(), ext.Signer)
	return ext.Hash, nil
}

func (n *Node) SubmitExtrinsic(ctx context.Context, raw string) (types.Hash, error) {
	ext, err := ParseExtrinsic(raw)
	if err != nil {
		return types.Hash{}, err
	}
	return n.Submit(ext)
}

func (n *Node) takeFromPool() []*Extrinsic {
	n.poolMu.Lock()
	defer n.poolMu.Unlock()
	count := len(n.pool)
	if count > n.cfg.MaxExtrinsics {
		count = n.cfg.MaxExtrinsics
	}
	batch := n.pool[:count:count]
	n.pool = append([]*Extrinsic(nil), n.pool[count:]...)
	n.inflight = batch
	return batch
}

func (n *Node) pendingHash(hash types.Hash) bool {
	n.poolMu.Lock()
	defer n.poolMu.Unlock()
	for _, list := range [][]*Extrinsic{n.pool, n.inflight} {
		for _, ext := range list {
			if ext.Hash == hash {
				return true
			}
		}
	}
	return false
}

// release forgets a finished batch. Its nonces are in the journal now.
func (n *Node) release(batch []*Extrinsic) {
	n.poolMu.Lock()
	n.inflight = nil
	n.poolMu.Unlock()
	for _, ext := range batch {
		n.nonces.Remove(ext.Nonce)
	}
}

// ProduceBlock executes the queued extrinsics on top of the best block.
func (n *Node) ProduceBlock() (*BlockView, error) {
	n.produceMu.Lock()
	defer n.produceMu.Unlock()

	if !n.state.HasGenesis() {
		return nil, ErrNoGenesis
	}
	head := n.state.GetHead()
	number := head.BestNumber + 1
	batch := n.takeFromPool()
	defer n.release(batch)

	view := &BlockView{Number: number, ParentHash: head.BestHash}
	err := n.chainDb.Transaction(func(tx *gorm.DB) error {
		var leaves [][]byte
		var eventIndex uint32
		for i, ext := range batch {
			used, err := n.usedNonce(tx, ext.Nonce)
			if err != nil {
				return err
			}
			if used {
				log.Warnf("Dropping replayed extrinsic %s", ext.Hash)
				continue
			}

			events, outcome, applyErr := n.apply(tx, number, ext)
			payload, err := bridge.EncodeCall(ext.Call)
			if err != nil {
				return err
			}
			rec := db.Extrinsic{
				Hash:        ext.Hash.Hex(),
				Nonce:       ext.Nonce,
				Signer:      ext.Signer.Hex(),
				Bridge:      ext.Bridge.String(),
				Method:      ext.Call.Method(),
				Payload:     string(payload),
				BlockNumber: number,
				Index:       uint32(i),
				Status:      ExtrinsicSuccess,
				Outcome:     outcome.String(),
			}
			if applyErr != nil {
				rec.Status = ExtrinsicFailed
				rec.Outcome = ""
				rec.Error = applyErr.Error()
				if name := bridge.ErrorName(applyErr); name != "" {
					rec.Error = name + ": " + rec.Error
				}
				log.Infof("Extrinsic %s (%s) failed: %v", ext.Hash, ext.Call.Method(), applyErr)
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
			leaves = append(leaves, ext.Hash.Bytes())

			for _, ev := range events {
				kind, data, err := bridge.EncodeEvent(ev)
				if err != nil {
					return err
				}
				if err := tx.Create(&db.ChainEvent{
					BlockNumber:    number,
					Index:          eventIndex,
					ExtrinsicIndex: uint32(i),
					Bridge:         ext.Bridge.String(),
					Kind:           kind,
					Payload:        string(data),
				}).Error; err != nil {
					return err
				}
				view.Events = append(view.Events, EventRecord{Index: eventIndex, ExtrinsicIndex: uint32(i), Bridge: ext.Bridge, Event: ev})
				eventIndex++
			}
		}

		view.ExtrinsicsRoot = types.Blake2b256(leaves...)
		view.Hash = BlockHash(head.BestHash, number, view.ExtrinsicsRoot)
		return tx.Create(&db.Block{
			Number:         number,
			Hash:           view.Hash.Hex(),
			ParentHash:     head.BestHash.Hex(),
			ExtrinsicsRoot: view.ExtrinsicsRoot.Hex(),
			Timestamp:      time.Now(),
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", number, err)
	}

	n.state.UpdateHead(number, view.Hash, n.cfg.FinalityDepth)
	if len(batch) > 0 {
		log.Infof("Produced block %d (%s) with %d extrinsics, %d events", number, view.Hash, len(batch), len(view.Events))
	}
	return view, nil
}

func (n *Node) apply(tx *gorm.DB, number uint64, ext *Extrinsic) ([]bridge.Event, bridge.Outcome, error) {
	pallet, ok := n.pallets[ext.Bridge]
	if !ok {
		return nil, bridge.Applied, fmt.Errorf("%w: %s", ErrUnknownBridge, ext.Bridge)
	}
	origin := bridge.Signed(ext.Signer)
	if ext.Sudo {
		if n.cfg.Sudo == nil || *n.cfg.Sudo != ext.Signer {
			return nil, bridge.Applied, ErrRequireSudo
		}
		origin = bridge.Root()
	}

	var events []bridge.Event
	var outcome bridge.Outcome
	err := tx.Transaction(func(stx *gorm.DB) error {
		env := n.env(stx, ext.Bridge, number)
		var err error
		outcome, err = pallet.Dispatch(env, origin, ext.Call)
		if err != nil {
			return err
		}
		events = env.Events
		return nil
	})
	return events, outcome, err
}

func (n *Node) env(tx *gorm.DB, id types.BridgeId, number uint64) *bridge.Env {
	return &bridge.Env{
		Store:       state.NewBridgeStore(tx, id),
		Token:       ledger.New(tx, id.String(), n.cfg.ExistentialDeposit),
		Currency:    ledger.New(tx, n.cfg.FeeAsset, n.cfg.ExistentialDeposit),
		BlockNumber: number,
	}
}

func (n *Node) pallet(id types.BridgeId) (*bridge.Pallet, error) {
	p, ok := n.pallets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBridge, id)
	}
	return p, nil
}
