package watcher

import (
	"context"
	"errors"
	"fmt"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/liberland/federated-bridge/internal/bridge"
	"github.com/liberland/federated-bridge/internal/chain"
	"github.com/liberland/federated-bridge/internal/ethereum"
	"github.com/liberland/federated-bridge/internal/syncer"
	"github.com/liberland/federated-bridge/internal/types"
	log "github.com/sirupsen/logrus"
)

const DefaultBlockSlack = 50

// SubstrateToEthereum checks every contract Vote against the native
// OutgoingReceipt it claims to relay.
type SubstrateToEthereum struct {
	sync    *syncer.Ethereum
	bridges *ethereum.Bridges
	reader  chain.Reader
	stopper *Stopper
	slack   uint64
}

func NewSubstrateToEthereum(sync *syncer.Ethereum, bridges *ethereum.Bridges, reader chain.Reader, stopper *Stopper, slack uint64) *SubstrateToEthereum {
	return &SubstrateToEthereum{sync: sync, bridges: bridges, reader: reader, stopper: stopper, slack: slack}
}

func (w *SubstrateToEthereum) Run(ctx context.Context) error {
	log.Info("Started native -> Ethereum watcher")
	return w.sync.Run(ctx, w.ProcessLog)
}

// ProcessLog verifies one contract Vote log and stops the bridge when the
// voted receipt does not exist on the native chain.
func (w *SubstrateToEthereum) ProcessLog(ctx context.Context, l gethtypes.Log) error {
	b, ok := w.bridges.ByAddress(l.Address)
	if !ok {
		return fmt.Errorf("log from unexpected contract %s", l.Address.Hex())
	}
	vote, err := b.ParseVote(l)
	if err != nil {
		return err
	}
	id := types.ReceiptId(vote.ReceiptId)
	claimed := vote.SubstrateBlockNumber
	fields := log.Fields{"bridge": b.Id(), "receipt": id.Hex(), "relay": vote.Voter.Hex(), "block": claimed}

	finalized, err := w.reader.FinalizedNumber(ctx)
	if err != nil {
		return err
	}
	if claimed > finalized+w.slack {
		return w.stopper.EmergencyStop(ctx, b, fmt.Sprintf("vote for %s claims native block %d, finalized is %d", id, claimed, finalized))
	}

	hash, err := w.reader.BlockHash(ctx, claimed)
	if errors.Is(err, chain.ErrBlockNotFound) {
		return w.stopper.EmergencyStop(ctx, b, fmt.Sprintf("vote for %s claims missing native block %d", id, claimed))
	}
	if err != nil {
		return err
	}
	events, err := w.reader.Events(ctx, hash)
	if err != nil {
		return err
	}
	for _, ev := range events {
		receipt, ok := ev.Event.(bridge.OutgoingReceiptEvent)
		if !ok || ev.Bridge != b.Id() {
			continue
		}
		if types.SubstrateReceiptId(hash, ev.Index, receipt.Amount, receipt.EthRecipient) == id {
			log.WithFields(fields).Info("Vote verified")
			return nil
		}
	}
	return w.stopper.EmergencyStop(ctx, b, fmt.Sprintf("vote for %s has no matching receipt in native block %d", id, claimed))
}
