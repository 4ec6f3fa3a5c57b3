package chain

import (
	"context"
	"fmt"

	"github.com/liberland/federated-bridge/internal/bridge"
	"github.com/liberland/federated-bridge/internal/db"
	"github.com/liberland/federated-bridge/internal/ledger"
	"github.com/liberland/federated-bridge/internal/state"
	"github.com/liberland/federated-bridge/internal/types"
)

func (n *Node) Head() HeadView {
	h := n.state.GetHead()
	return HeadView{
		GenesisHash:     h.GenesisHash,
		BestNumber:      h.BestNumber,
		BestHash:        h.BestHash,
		FinalizedNumber: h.FinalizedNumber,
	}
}

func (n *Node) GenesisHash(ctx context.Context) (types.Hash, error) {
	if !n.state.HasGenesis() {
		return types.Hash{}, ErrNoGenesis
	}
	return n.state.GetHead().GenesisHash, nil
}

func (n *Node) BestNumber(ctx context.Context) (uint64, error) {
	return n.state.GetHead().BestNumber, nil
}

func (n *Node) FinalizedNumber(ctx context.Context) (uint64, error) {
	return n.state.GetHead().FinalizedNumber, nil
}

func (n *Node) blockRow(ctx context.Context, query string, arg interface{}) (*db.Block, error) {
	var row db.Block
	res := n.chainDb.WithContext(ctx).Where(query, arg).Limit(1).Find(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrBlockNotFound
	}
	return &row, nil
}

func (n *Node) BlockHash(ctx context.Context, number uint64) (types.Hash, error) {
	row, err := n.blockRow(ctx, "number = ?", number)
	if err != nil {
		return types.Hash{}, err
	}
	return types.ParseHash(row.Hash)
}

func (n *Node) Events(ctx context.Context, blockHash types.Hash) ([]EventRecord, error) {
	row, err := n.blockRow(ctx, "hash = ?", blockHash.Hex())
	if err != nil {
		return nil, err
	}
	return n.events(ctx, row.Number)
}

func (n *Node) events(ctx context.Context, number uint64) ([]EventRecord, error) {
	var rows []db.ChainEvent
	if err := n.chainDb.WithContext(ctx).Where("block_number = ?", number).Order("`index` asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]EventRecord, 0, len(rows))
	for _, row := range rows {
		ev, err := bridge.DecodeEvent(row.Kind, []byte(row.Payload))
		if err != nil {
			return nil, fmt.Errorf("block %d event %d: %w", number, row.Index, err)
		}
		out = append(out, EventRecord{Index: row.Index, ExtrinsicIndex: row.ExtrinsicIndex, Bridge: types.BridgeId(row.Bridge), Event: ev})
	}
	return out, nil
}

func (n *Node) Block(ctx context.Context, number uint64) (*BlockView, error) {
	row, err := n.blockRow(ctx, "number = ?", number)
	if err != nil {
		return nil, err
	}
	view := &BlockView{Number: row.Number}
	if view.Hash, err = types.ParseHash(row.Hash); err != nil {
		return nil, err
	}
	if view.ParentHash, err = types.ParseHash(row.ParentHash); err != nil {
		return nil, err
	}
	if view.ExtrinsicsRoot, err = types.ParseHash(row.ExtrinsicsRoot); err != nil {
		return nil, err
	}
	if view.Events, err = n.events(ctx, number); err != nil {
		return nil, err
	}
	return view, nil
}

// IncomingReceipt returns nil when the receipt is unknown.
func (n *Node) IncomingReceipt(ctx context.Context, bridgeId types.BridgeId, id types.ReceiptId) (*ReceiptView, error) {
	if _, err := n.pallet(bridgeId); err != nil {
		return nil, err
	}
	store := state.NewBridgeStore(n.chainDb.WithContext(ctx), bridgeId)
	receipt, err := store.IncomingReceipt(id)
	if err != nil || receipt == nil {
		return nil, err
	}
	status, err := store.StatusOf(id)
	if err != nil {
		return nil, err
	}
	voters, err := store.Voting(id)
	if err != nil {
		return nil, err
	}
	return &ReceiptView{Receipt: *receipt, Status: status, Voters: voters}, nil
}

func (n *Node) Bridge(ctx context.Context, bridgeId types.BridgeId) (*BridgeView, error) {
	pallet, err := n.pallet(bridgeId)
	if err != nil {
		return nil, err
	}
	tx := n.chainDb.WithContext(ctx)
	store := state.NewBridgeStore(tx, bridgeId)
	view := &BridgeView{Bridge: bridgeId, Account: pallet.AccountId()}
	if view.State, err = store.State(); err != nil {
		return nil, err
	}
	if view.Relays, err = store.Relays(); err != nil {
		return nil, err
	}
	if view.Watchers, err = store.Watchers(); err != nil {
		return nil, err
	}
	if view.VotesRequired, err = store.VotesRequired(); err != nil {
		return nil, err
	}
	if view.Fee, err = store.Fee(); err != nil {
		return nil, err
	}
	if view.Admin, err = store.Admin(); err != nil {
		return nil, err
	}
	if view.SuperAdmin, err = store.SuperAdmin(); err != nil {
		return nil, err
	}
	if view.Counter, view.CounterBlock, err = store.WithdrawalCounter(); err != nil {
		return nil, err
	}
	if view.Locked, err = ledger.New(tx, bridgeId.String(), n.cfg.ExistentialDeposit).BalanceOf(pallet.AccountId()); err != nil {
		return nil, err
	}
	return view, nil
}

func (n *Node) Balance(ctx context.Context, asset string, account types.AccountId) (types.Balance, error) {
	return ledger.New(n.chainDb.WithContext(ctx), asset, n.cfg.ExistentialDeposit).BalanceOf(account)
}

func (n *Node) ExtrinsicStatus(ctx context.Context, hash types.Hash) (*ExtrinsicStatus, error) {
	if n.pendingHash(hash) {
		return &ExtrinsicStatus{Hash: hash, Status: ExtrinsicPending}, nil
	}
	var row db.Extrinsic
	res := n.chainDb.WithContext(ctx).Where("hash = ?", hash.Hex()).Limit(1).Find(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrExtrinsicNotFound
	}
	return &ExtrinsicStatus{
		Hash:        hash,
		Status:      row.Status,
		BlockNumber: row.BlockNumber,
		Index:       row.Index,
		Outcome:     row.Outcome,
		Error:       row.Error,
	}, nil
}
