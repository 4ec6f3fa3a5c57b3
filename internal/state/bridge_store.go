package state

import (
	"fmt"

	"github.com/liberland/federated-bridge/internal/bridge"
	"github.com/liberland/federated-bridge/internal/db"
	"github.com/liberland/federated-bridge/internal/types"
	"gorm.io/gorm"
)

// BridgeStore persists one bridge instance in the chain database. Pass a
// transaction to make a call's writes atomic.
type BridgeStore struct {
	db     *gorm.DB
	bridge string
}

var _ bridge.Store = (*BridgeStore)(nil)

func NewBridgeStore(tx *gorm.DB, id types.BridgeId) *BridgeStore {
	return &BridgeStore{db: tx, bridge: id.String()}
}

func (s *BridgeStore) info() (*db.BridgeInfo, error) {
	var info db.BridgeInfo
	res := s.db.Where("bridge = ?", s.bridge).Limit(1).Find(&info)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return &db.BridgeInfo{Bridge: s.bridge, State: bridge.StateStopped.String()}, nil
	}
	return &info, nil
}

func (s *BridgeStore) updateInfo(fields map[string]interface{}) error {
	var info db.BridgeInfo
	err := s.db.Where(db.BridgeInfo{Bridge: s.bridge}).
		Attrs(db.BridgeInfo{State: bridge.StateStopped.String()}).
		FirstOrCreate(&info).Error
	if err != nil {
		return err
	}
	return s.db.Model(&db.BridgeInfo{}).Where("id = ?", info.ID).Updates(fields).Error
}

func (s *BridgeStore) State() (bridge.BridgeState, error) {
	info, err := s.info()
	if err != nil {
		return bridge.StateStopped, err
	}
	return bridge.ParseBridgeState(info.State)
}

func (s *BridgeStore) SetState(state bridge.BridgeState) error {
	return s.updateInfo(map[string]interface{}{"state": state.String()})
}

func (s *BridgeStore) VotesRequired() (uint32, error) {
	info, err := s.info()
	if err != nil {
		return 0, err
	}
	return info.VotesRequired, nil
}

func (s *BridgeStore) SetVotesRequired(n uint32) error {
	return s.updateInfo(map[string]interface{}{"votes_required": n})
}

func (s *BridgeStore) Fee() (types.Balance, error) {
	info, err := s.info()
	if err != nil {
		return types.ZeroBalance, err
	}
	return info.Fee, nil
}

func (s *BridgeStore) SetFee(fee types.Balance) error {
	return s.updateInfo(map[string]interface{}{"fee": fee})
}

func optionalAccount(hex string) (*types.AccountId, error) {
	if hex == "" {
		return nil, nil
	}
	acc, err := types.ParseAccountId(hex)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *BridgeStore) Admin() (*types.AccountId, error) {
	info, err := s.info()
	if err != nil {
		return nil, err
	}
	return optionalAccount(info.Admin)
}

func (s *BridgeStore) SetAdmin(acc types.AccountId) error {
	return s.updateInfo(map[string]interface{}{"admin": acc.Hex()})
}

func (s *BridgeStore) SuperAdmin() (*types.AccountId, error) {
	info, err := s.info()
	if err != nil {
		return nil, err
	}
	return optionalAccount(info.SuperAdmin)
}

func (s *BridgeStore) SetSuperAdmin(acc types.AccountId) error {
	return s.updateInfo(map[string]interface{}{"super_admin": acc.Hex()})
}

func (s *BridgeStore) WithdrawalCounter() (types.Balance, uint64, error) {
	info, err := s.info()
	if err != nil {
		return types.ZeroBalance, 0, err
	}
	return info.CounterAmount, info.CounterBlock, nil
}

func (s *BridgeStore) SetWithdrawalCounter(amount types.Balance, block uint64) error {
	return s.updateInfo(map[string]interface{}{"counter_amount": amount, "counter_block": block})
}

func (s *BridgeStore) members(role string) ([]types.AccountId, error) {
	var rows []db.BridgeMember
	if err := s.db.Where("bridge = ? AND role = ?", s.bridge, role).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.AccountId, 0, len(rows))
	for _, row := range rows {
		acc, err := types.ParseAccountId(row.Account)
		if err != nil {
			return nil, fmt.Errorf("corrupt %s entry %d: %w", role, row.ID, err)
		}
		out = append(out, acc)
	}
	return out, nil
}

func (s *BridgeStore) setMembers(role string, list []types.AccountId) error {
	if err := s.db.Where("bridge = ? AND role = ?", s.bridge, role).Delete(&db.BridgeMember{}).Error; err != nil {
		return err
	}
	for _, acc := range list {
		row := db.BridgeMember{Bridge: s.bridge, Role: role, Account: acc.Hex()}
		if err := s.db.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *BridgeStore) Relays() ([]types.AccountId, error) {
	return s.members(db.BRIDGE_ROLE_RELAY)
}

func (s *BridgeStore) SetRelays(list []types.AccountId) error {
	return s.setMembers(db.BRIDGE_ROLE_RELAY, list)
}

func (s *BridgeStore) Watchers() ([]types.AccountId, error) {
	return s.members(db.BRIDGE_ROLE_WATCHER)
}

func (s *BridgeStore) SetWatchers(list []types.AccountId) error {
	return s.setMembers(db.BRIDGE_ROLE_WATCHER, list)
}

func (s *BridgeStore) receipt(id types.ReceiptId) (*db.IncomingReceipt, error) {
	var row db.IncomingReceipt
	res := s.db.Where("bridge = ? AND receipt_id = ?", s.bridge, id.Hex()).Limit(1).Find(&row)
	if res.Error != nil || res.RowsAffected == 0 {
		return nil, res.Error
	}
	return &row, nil
}

func (s *BridgeStore) IncomingReceipt(id types.ReceiptId) (*bridge.IncomingReceipt, error) {
	row, err := s.receipt(id)
	if err != nil || row == nil {
		return nil, err
	}
	recipient, err := types.ParseAccountId(row.Recipient)
	if err != nil {
		return nil, fmt.Errorf("corrupt receipt %s: %w", id, err)
	}
	return &bridge.IncomingReceipt{
		EthBlockNumber:     row.EthBlockNumber,
		SubstrateRecipient: recipient,
		Amount:             row.Amount,
	}, nil
}

func (s *BridgeStore) InsertIncomingReceipt(id types.ReceiptId, r bridge.IncomingReceipt) error {
	return s.db.Create(&db.IncomingReceipt{
		Bridge:         s.bridge,
		ReceiptId:      id.Hex(),
		EthBlockNumber: r.EthBlockNumber,
		Recipient:      r.SubstrateRecipient.Hex(),
		Amount:         r.Amount,
		Status:         db.RECEIPT_STATUS_VOTING,
	}).Error
}

func (s *BridgeStore) StatusOf(id types.ReceiptId) (bridge.ReceiptStatus, error) {
	row, err := s.receipt(id)
	if err != nil {
		return bridge.Voting, err
	}
	if row == nil {
		return bridge.Voting, nil
	}
	switch row.Status {
	case db.RECEIPT_STATUS_APPROVED:
		return bridge.Approved(row.StatusBlock), nil
	case db.RECEIPT_STATUS_PROCESSED:
		return bridge.Processed(row.StatusBlock), nil
	}
	return bridge.Voting, nil
}

func (s *BridgeStore) SetStatus(id types.ReceiptId, status bridge.ReceiptStatus) error {
	name := db.RECEIPT_STATUS_VOTING
	switch status.Kind {
	case bridge.StatusApproved:
		name = db.RECEIPT_STATUS_APPROVED
	case bridge.StatusProcessed:
		name = db.RECEIPT_STATUS_PROCESSED
	}
	res := s.db.Model(&db.IncomingReceipt{}).
		Where("bridge = ? AND receipt_id = ?", s.bridge, id.Hex()).
		Updates(map[string]interface{}{"status": name, "status_block": status.Block})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("set status of unknown receipt %s", id)
	}
	return nil
}

func (s *BridgeStore) Voting(id types.ReceiptId) ([]types.AccountId, error) {
	var rows []db.ReceiptVote
	if err := s.db.Where("bridge = ? AND receipt_id = ?", s.bridge, id.Hex()).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.AccountId, 0, len(rows))
	for _, row := range rows {
		acc, err := types.ParseAccountId(row.Relay)
		if err != nil {
			return nil, fmt.Errorf("corrupt vote %d: %w", row.ID, err)
		}
		out = append(out, acc)
	}
	return out, nil
}

func (s *BridgeStore) SetVoting(id types.ReceiptId, voters []types.AccountId) error {
	if err := s.db.Where("bridge = ? AND receipt_id = ?", s.bridge, id.Hex()).Delete(&db.ReceiptVote{}).Error; err != nil {
		return err
	}
	for _, voter := range voters {
		if err := s.db.Create(&db.ReceiptVote{Bridge: s.bridge, ReceiptId: id.Hex(), Relay: voter.Hex()}).Error; err != nil {
			return err
		}
	}
	return nil
}
