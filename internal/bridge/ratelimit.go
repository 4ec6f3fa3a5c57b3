package bridge

import (
	"math"

	"github.com/liberland/federated-bridge/internal/types"
)

// LeakyBucket is the withdrawal counter state.
type LeakyBucket struct {
	Counter   types.Balance
	LastBlock uint64
}

// Apply decays the counter to now, adds amount and checks the burst limit.
// On ErrRateLimited the returned bucket must be discarded.
func (b LeakyBucket) Apply(limit RateLimit, now uint64, amount types.Balance) (LeakyBucket, error) {
	counter := b.Counter
	if now < b.LastBlock || now-b.LastBlock > math.MaxUint32 {
		// outside of any meaningful window
		counter = types.ZeroBalance
	} else {
		elapsed := types.NewBalance(now - b.LastBlock)
		counter = counter.SaturatingSub(limit.Decay.SaturatingMul(elapsed))
	}
	counter = counter.SaturatingAdd(amount)
	if counter.Cmp(limit.MaxBurst) > 0 {
		return b, ErrRateLimited
	}
	return LeakyBucket{Counter: counter, LastBlock: now}, nil
}

func (p *Pallet) rateLimit(env *Env, amount types.Balance) error {
	counter, last, err := env.Store.WithdrawalCounter()
	if err != nil {
		return err
	}
	next, err := LeakyBucket{Counter: counter, LastBlock: last}.Apply(p.cfg.WithdrawalRateLimit, env.BlockNumber, amount)
	if err != nil {
		return err
	}
	return env.Store.SetWithdrawalCounter(next.Counter, next.LastBlock)
}
