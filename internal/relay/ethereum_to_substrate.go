package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/liberland/federated-bridge/internal/bridge"
	"github.com/liberland/federated-bridge/internal/chain"
	"github.com/liberland/federated-bridge/internal/db"
	"github.com/liberland/federated-bridge/internal/ethereum"
	"github.com/liberland/federated-bridge/internal/syncer"
	"github.com/liberland/federated-bridge/internal/types"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EthereumToSubstrate votes natively for every finalized contract
// OutgoingReceipt.
type EthereumToSubstrate struct {
	taskId  string
	sync    *syncer.Ethereum
	bridges *ethereum.Bridges
	reader  chain.Reader
	sender  *chain.CallSender
	relayDb *gorm.DB
}

func NewEthereumToSubstrate(taskId string, sync *syncer.Ethereum, bridges *ethereum.Bridges, reader chain.Reader, sender *chain.CallSender, dbm *db.DatabaseManager) *EthereumToSubstrate {
	return &EthereumToSubstrate{
		taskId:  taskId,
		sync:    sync,
		bridges: bridges,
		reader:  reader,
		sender:  sender,
		relayDb: dbm.GetRelayDB(),
	}
}

func (r *EthereumToSubstrate) Run(ctx context.Context) error {
	log.Infof("Started Ethereum -> native relay, account %s", r.sender.Account())
	if err := r.ResumePending(ctx); err != nil {
		return err
	}
	return r.sync.Run(ctx, r.HandleLog)
}

// ResumePending replays votes that were recorded but never confirmed.
func (r *EthereumToSubstrate) ResumePending(ctx context.Context) error {
	var calls []db.SubCall
	err := r.relayDb.WithContext(ctx).
		Where("task_id = ? AND status <> ?", r.taskId, db.SUB_CALL_STATUS_FINISHED).
		Order("id asc").Find(&calls).Error
	if err != nil {
		return err
	}
	for _, call := range calls {
		bridgeId, err := types.ParseBridgeId(call.Bridge)
		if err != nil {
			return err
		}
		id, err := types.ParseReceiptId(call.ReceiptId)
		if err != nil {
			return err
		}
		recipient, err := types.ParseAccountId(call.Recipient)
		if err != nil {
			return err
		}
		log.Infof("Resuming vote on %s receipt %s", bridgeId, id)
		receipt := bridge.IncomingReceipt{EthBlockNumber: call.EthBlockNumber, SubstrateRecipient: recipient, Amount: call.Amount}
		if err := r.processReceipt(ctx, bridgeId, id, receipt); err != nil {
			return err
		}
	}
	return nil
}

// HandleLog votes on one contract OutgoingReceipt log.
func (r *EthereumToSubstrate) HandleLog(ctx context.Context, l gethtypes.Log) error {
	b, ok := r.bridges.ByAddress(l.Address)
	if !ok {
		return fmt.Errorf("log from unexpected contract %s", l.Address.Hex())
	}
	receipt, err := b.ParseOutgoingReceipt(l)
	if err != nil {
		return err
	}
	amount, ok := types.BalanceFromUint256(receipt.Amount)
	if !ok {
		log.Errorf("Skipping %s receipt %s: amount %s does not fit a native balance", b.Id(), receipt.ReceiptId, receipt.Amount)
		return nil
	}
	return r.processReceipt(ctx, b.Id(), receipt.ReceiptId, bridge.IncomingReceipt{
		EthBlockNumber:     receipt.BlockNumber,
		SubstrateRecipient: receipt.Recipient,
		Amount:             amount,
	})
}

func (r *EthereumToSubstrate) processReceipt(ctx context.Context, bridgeId types.BridgeId, id types.ReceiptId, receipt bridge.IncomingReceipt) error {
	fields := log.Fields{"bridge": bridgeId, "receipt": id.Hex(), "ethBlock": receipt.EthBlockNumber}
	vote, err := r.shouldVote(ctx, bridgeId, id)
	if err != nil {
		return err
	}
	if vote {
		if err := r.record(ctx, bridgeId, id, receipt); err != nil {
			return err
		}
		hash, err := r.sender.Submit(ctx, bridgeId, bridge.VoteWithdrawCall{ReceiptId: id, Receipt: receipt})
		if err != nil {
			return fmt.Errorf("submit vote_withdraw: %w", err)
		}
		log.WithFields(fields).Infof("Submitted vote_withdraw %s", hash)
		if err := r.submitted(ctx, id, hash); err != nil {
			return err
		}
		status, err := r.sender.Wait(ctx, hash)
		switch {
		case errors.Is(err, bridge.ErrBridgeStopped), errors.Is(err, bridge.ErrTooManyVotes):
			// row stays SUBMITTED and is replayed by ResumePending
			log.WithFields(fields).Warnf("vote_withdraw rejected, will retry: %v", err)
			return err
		case errors.Is(err, chain.ErrExtrinsicFailed):
			log.WithFields(fields).Errorf("vote_withdraw rejected: %v", err)
		case err != nil:
			return err
		default:
			log.WithFields(fields).Infof("vote_withdraw included in block %d (%s)", status.BlockNumber, status.Outcome)
		}
	}
	return r.finish(ctx, id)
}

func (r *EthereumToSubstrate) shouldVote(ctx context.Context, bridgeId types.BridgeId, id types.ReceiptId) (bool, error) {
	view, err := r.reader.IncomingReceipt(ctx, bridgeId, id)
	if err != nil {
		return false, err
	}
	if view == nil {
		return true, nil
	}
	if view.Status.Kind == bridge.StatusProcessed {
		log.Infof("Skipping vote on %s, already processed", id)
		return false, nil
	}
	me := r.sender.Account()
	for _, voter := range view.Voters {
		if voter == me {
			log.Infof("Skipping vote on %s, already voted", id)
			return false, nil
		}
	}
	return true, nil
}

func (r *EthereumToSubstrate) record(ctx context.Context, bridgeId types.BridgeId, id types.ReceiptId, receipt bridge.IncomingReceipt) error {
	call := db.SubCall{
		TaskId:         r.taskId,
		ReceiptId:      id.Hex(),
		Bridge:         bridgeId.String(),
		EthBlockNumber: receipt.EthBlockNumber,
		Recipient:      receipt.SubstrateRecipient.Hex(),
		Amount:         receipt.Amount,
		Status:         db.SUB_CALL_STATUS_PENDING,
		UpdatedAt:      time.Now(),
	}
	return r.relayDb.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&call).Error
}

func (r *EthereumToSubstrate) submitted(ctx context.Context, id types.ReceiptId, hash types.Hash) error {
	return r.relayDb.WithContext(ctx).Model(&db.SubCall{}).
		Where("task_id = ? AND receipt_id = ?", r.taskId, id.Hex()).
		Updates(map[string]interface{}{"status": db.SUB_CALL_STATUS_SUBMITTED, "extrinsic_hash": hash.Hex(), "updated_at": time.Now()}).Error
}

func (r *EthereumToSubstrate) finish(ctx context.Context, id types.ReceiptId) error {
	return r.relayDb.WithContext(ctx).Model(&db.SubCall{}).
		Where("task_id = ? AND receipt_id = ?", r.taskId, id.Hex()).
		Updates(map[string]interface{}{"status": db.SUB_CALL_STATUS_FINISHED, "updated_at": time.Now()}).Error
}
