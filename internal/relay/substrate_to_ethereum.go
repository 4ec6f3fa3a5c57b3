package relay

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-errors/errors"
	"github.com/liberland/federated-bridge/internal/bridge"
	"github.com/liberland/federated-bridge/internal/chain"
	"github.com/liberland/federated-bridge/internal/ethereum"
	"github.com/liberland/federated-bridge/internal/syncer"
	"github.com/liberland/federated-bridge/internal/types"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// RewardsConfig controls how a relay collects its contract rewards.
// Amounts are in wei.
type RewardsConfig struct {
	Address           common.Address
	MinimumBalance    *big.Int
	ClaimThreshold    *big.Int
	WithdrawThreshold *big.Int
	Interval          time.Duration
}

// SubstrateToEthereum votes on the contract for every finalized native
// OutgoingReceipt and collects the rewards earned by voting.
type SubstrateToEthereum struct {
	sync    *syncer.Native
	bridges *ethereum.Bridges
	txm     *ethereum.TxManager
	rewards RewardsConfig
}

func NewSubstrateToEthereum(sync *syncer.Native, bridges *ethereum.Bridges, txm *ethereum.TxManager, rewards RewardsConfig) *SubstrateToEthereum {
	if rewards.Interval <= 0 {
		rewards.Interval = time.Hour
	}
	return &SubstrateToEthereum{sync: sync, bridges: bridges, txm: txm, rewards: rewards}
}

func (r *SubstrateToEthereum) Run(ctx context.Context) error {
	log.Infof("Started native -> Ethereum relay, address %s", r.txm.From().Hex())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.sync.Run(gctx, r.HandleBlock)
	})
	for _, b := range r.bridges.All() {
		b := b
		g.Go(func() error {
			return every(gctx, r.rewards.Interval, func() error { return r.ClaimRewards(gctx, b) })
		})
	}
	if r.rewards.Address != (common.Address{}) {
		g.Go(func() error {
			return every(gctx, r.rewards.Interval, func() error { return r.WithdrawRewards(gctx) })
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if ctx.Err() == nil {
		return errors.New("relay task finished early")
	}
	return nil
}

// every runs fn now and then on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func() error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := fn(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// HandleBlock votes on the OutgoingReceipt events of one native block.
func (r *SubstrateToEthereum) HandleBlock(ctx context.Context, number uint64, hash types.Hash, events []chain.EventRecord) error {
	for _, ev := range events {
		receipt, ok := ev.Event.(bridge.OutgoingReceiptEvent)
		if !ok {
			continue
		}
		b, err := r.bridges.Get(ev.Bridge)
		if err != nil {
			return err
		}
		id := types.SubstrateReceiptId(hash, ev.Index, receipt.Amount, receipt.EthRecipient)
		fields := log.Fields{"bridge": ev.Bridge, "receipt": id.Hex(), "block": number}

		vote, err := r.shouldVote(ctx, b, id)
		if err != nil {
			return err
		}
		if !vote {
			log.WithFields(fields).Info("Skipping vote, receipt already processed or voted")
			continue
		}
		if err := r.vote(ctx, b, id, number, receipt); err != nil {
			return err
		}
		log.WithFields(fields).Info("Queued voteMint")
	}
	return nil
}

func (r *SubstrateToEthereum) shouldVote(ctx context.Context, b *ethereum.Bridge, id types.ReceiptId) (bool, error) {
	voted, err := b.Voted(ctx, id, r.txm.From())
	if err != nil {
		return false, err
	}
	if voted {
		// local cache was probably wiped and we are resyncing
		return false, nil
	}
	processed, err := b.IsProcessed(ctx, id)
	if err != nil {
		return false, err
	}
	return !processed, nil
}

func (r *SubstrateToEthereum) vote(ctx context.Context, b *ethereum.Bridge, id types.ReceiptId, number uint64, receipt bridge.OutgoingReceiptEvent) error {
	req, err := b.VoteMint(id, number, receipt.Amount, receipt.EthRecipient)
	if err != nil {
		return err
	}
	if err := r.txm.Simulate(ctx, req); err != nil {
		if ethereum.IsRevert(err, "AlreadyVoted") {
			return nil
		}
		return err
	}
	return r.txm.Queue(ctx, req)
}

// ClaimRewards claims the contract rewards once they pass the threshold.
func (r *SubstrateToEthereum) ClaimRewards(ctx context.Context, b *ethereum.Bridge) error {
	pending, err := b.PendingRewards(ctx, r.txm.From())
	if err != nil {
		return err
	}
	if r.rewards.ClaimThreshold != nil && pending.Cmp(r.rewards.ClaimThreshold) < 0 {
		log.Debugf("Pending %s rewards %s wei below claim threshold %s", b.Id(), pending, r.rewards.ClaimThreshold)
		return nil
	}
	if pending.Sign() == 0 {
		return nil
	}
	log.Infof("Pending %s rewards %s wei, claiming", b.Id(), pending)
	req, err := b.ClaimReward()
	if err != nil {
		return err
	}
	return r.txm.Queue(ctx, req)
}

// WithdrawRewards forwards the relay balance above the minimum to the
// rewards address once it passes the withdraw threshold.
func (r *SubstrateToEthereum) WithdrawRewards(ctx context.Context) error {
	balance, err := r.txm.Balance(ctx)
	if err != nil {
		return err
	}
	if r.rewards.WithdrawThreshold != nil && balance.Cmp(r.rewards.WithdrawThreshold) < 0 {
		log.Debugf("Relay balance %s wei below withdraw threshold %s", balance, r.rewards.WithdrawThreshold)
		return nil
	}
	amount := new(big.Int).Set(balance)
	if r.rewards.MinimumBalance != nil {
		amount.Sub(amount, r.rewards.MinimumBalance)
	}
	if amount.Sign() <= 0 {
		log.Debugf("Relay balance %s wei does not exceed the minimum balance", balance)
		return nil
	}
	log.Infof("Relay balance %s wei, withdrawing %s wei to %s", balance, amount, r.rewards.Address.Hex())
	return r.txm.Queue(ctx, ethereum.TxRequest{Method: "transfer", To: r.rewards.Address, Value: amount})
}
