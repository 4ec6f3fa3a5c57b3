package watcher

import (
	"context"
	"fmt"
	"math/big"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/liberland/federated-bridge/internal/bridge"
	"github.com/liberland/federated-bridge/internal/chain"
	"github.com/liberland/federated-bridge/internal/ethereum"
	"github.com/liberland/federated-bridge/internal/ethereum/abis"
	"github.com/liberland/federated-bridge/internal/syncer"
	"github.com/liberland/federated-bridge/internal/types"
	log "github.com/sirupsen/logrus"
)

// EthereumToSubstrate checks every native vote_withdraw against the
// contract OutgoingReceipt it claims to relay.
type EthereumToSubstrate struct {
	sync    *syncer.Native
	client  ethereum.Client
	bridges *ethereum.Bridges
	reader  chain.Reader
	stopper *Stopper
}

func NewEthereumToSubstrate(sync *syncer.Native, client ethereum.Client, bridges *ethereum.Bridges, reader chain.Reader, stopper *Stopper) *EthereumToSubstrate {
	return &EthereumToSubstrate{sync: sync, client: client, bridges: bridges, reader: reader, stopper: stopper}
}

func (w *EthereumToSubstrate) Run(ctx context.Context) error {
	log.Info("Started Ethereum -> native watcher")
	return w.sync.Run(ctx, w.HandleBlock)
}

// HandleBlock verifies the native Vote events of one block.
func (w *EthereumToSubstrate) HandleBlock(ctx context.Context, number uint64, hash types.Hash, events []chain.EventRecord) error {
	for _, ev := range events {
		vote, ok := ev.Event.(bridge.VoteEvent)
		if !ok {
			continue
		}
		b, err := w.bridges.Get(ev.Bridge)
		if err != nil {
			return err
		}
		if err := w.processVote(ctx, b, vote); err != nil {
			return err
		}
	}
	return nil
}

func (w *EthereumToSubstrate) processVote(ctx context.Context, b *ethereum.Bridge, vote bridge.VoteEvent) error {
	fields := log.Fields{"bridge": b.Id(), "receipt": vote.ReceiptId.Hex(), "relay": vote.Relay.Hex()}
	view, err := w.reader.IncomingReceipt(ctx, b.Id(), vote.ReceiptId)
	if err != nil {
		return err
	}
	if view == nil {
		return w.stopper.EmergencyStop(ctx, b, fmt.Sprintf("vote for unknown receipt %s", vote.ReceiptId))
	}

	found, err := w.matchesContractReceipt(ctx, b, vote.ReceiptId, view.Receipt)
	if err != nil {
		return err
	}
	if !found {
		return w.stopper.EmergencyStop(ctx, b, fmt.Sprintf("receipt %s has no matching OutgoingReceipt in Ethereum block %d", vote.ReceiptId, view.Receipt.EthBlockNumber))
	}
	log.WithFields(fields).Info("Vote verified")
	return nil
}

func (w *EthereumToSubstrate) matchesContractReceipt(ctx context.Context, b *ethereum.Bridge, id types.ReceiptId, receipt bridge.IncomingReceipt) (bool, error) {
	block := new(big.Int).SetUint64(receipt.EthBlockNumber)
	logs, err := w.client.FilterLogs(ctx, goethereum.FilterQuery{
		FromBlock: block,
		ToBlock:   block,
		Addresses: []common.Address{b.Address()},
		Topics:    [][]common.Hash{{abis.OutgoingReceiptTopic}},
	})
	if err != nil {
		return false, err
	}
	for _, l := range logs {
		if l.Removed {
			continue
		}
		onchain, err := b.ParseOutgoingReceipt(l)
		if err != nil {
			return false, err
		}
		if onchain.ReceiptId != id {
			continue
		}
		amount, ok := types.BalanceFromUint256(onchain.Amount)
		return ok && amount.Cmp(receipt.Amount) == 0 && onchain.Recipient == receipt.SubstrateRecipient, nil
	}
	return false, nil
}
