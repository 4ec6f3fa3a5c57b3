package bridge

import (
	"fmt"

	"github.com/liberland/federated-bridge/internal/types"
)

// Pallet is one bridge instance's call surface. It holds no state of its
// own; everything lives in the Env passed to each call.
type Pallet struct {
	id  types.BridgeId
	cfg Config
}

func NewPallet(id types.BridgeId, cfg Config) *Pallet {
	if cfg.ForceOrigin == nil {
		cfg.ForceOrigin = EnsureRoot{}
	}
	return &Pallet{id: id, cfg: cfg}
}

func (p *Pallet) Id() types.BridgeId { return p.id }

func (p *Pallet) Config() Config { return p.cfg }

func (p *Pallet) AccountId() types.AccountId { return p.cfg.AccountId() }

func (p *Pallet) ensureActive(env *Env) error {
	state, err := env.Store.State()
	if err != nil {
		return err
	}
	if state != StateActive {
		return ErrBridgeStopped
	}
	return nil
}

// Deposit locks amount of the bridged token in the bridge wallet and emits
// an OutgoingReceipt for relays to mint on Ethereum.
func (p *Pallet) Deposit(env *Env, origin Origin, amount types.Balance, ethRecipient types.EthAddress) error {
	sender, err := origin.Signer()
	if err != nil {
		return err
	}
	if err := p.ensureActive(env); err != nil {
		return err
	}

	locked, err := env.Token.BalanceOf(p.AccountId())
	if err != nil {
		return err
	}
	if locked.SaturatingAdd(amount).Cmp(p.cfg.MaxTotalLocked) > 0 {
		return ErrTooMuchLocked
	}

	if err := env.Token.Transfer(sender, p.AccountId(), amount, false); err != nil {
		return fmt.Errorf("lock deposit: %w", err)
	}
	env.deposit(OutgoingReceiptEvent{Amount: amount, EthRecipient: ethRecipient})
	return nil
}

// VoteWithdraw records a relay's vote for an Ethereum receipt. A receipt body
// that differs from the stored one stops the bridge and still succeeds, the
// returned Outcome is AppliedWithHalt in that case.
func (p *Pallet) VoteWithdraw(env *Env, origin Origin, receiptId types.ReceiptId, receipt IncomingReceipt) (Outcome, error) {
	relay, err := origin.Signer()
	if err != nil {
		return Applied, err
	}

	relays, err := env.Store.Relays()
	if err != nil {
		return Applied, err
	}
	status, err := env.Store.StatusOf(receiptId)
	if err != nil {
		return Applied, err
	}
	if err := p.ensureActive(env); err != nil {
		return Applied, err
	}
	if !contains(relays, relay) {
		return Applied, ErrUnauthorized
	}
	if status.Kind != StatusVoting && status.Kind != StatusApproved {
		return Applied, ErrAlreadyProcessed
	}

	stored, err := env.Store.IncomingReceipt(receiptId)
	if err != nil {
		return Applied, err
	}
	if stored != nil {
		if *stored != receipt {
			if err := p.setState(env, StateStopped); err != nil {
				return Applied, err
			}
			return AppliedWithHalt, nil
		}
	} else if err := env.Store.InsertIncomingReceipt(receiptId, receipt); err != nil {
		return Applied, err
	}

	votes, err := env.Store.Voting(receiptId)
	if err != nil {
		return Applied, err
	}
	if contains(votes, relay) {
		return Applied, nil
	}
	if uint32(len(votes)) >= p.cfg.MaxRelays {
		return Applied, ErrTooManyVotes
	}
	votes = append(votes, relay)
	if err := env.Store.SetVoting(receiptId, votes); err != nil {
		return Applied, err
	}

	if status.Kind == StatusVoting {
		required, err := env.Store.VotesRequired()
		if err != nil {
			return Applied, err
		}
		if uint32(len(votes)) >= required {
			if err := env.Store.SetStatus(receiptId, Approved(env.BlockNumber)); err != nil {
				return Applied, err
			}
			env.deposit(ApprovedEvent{ReceiptId: receiptId})
		}
	}

	env.deposit(VoteEvent{Relay: relay, ReceiptId: receiptId, BlockNumber: receipt.EthBlockNumber})
	return Applied, nil
}

// Withdraw pays out an approved receipt to its recipient once the delay has
// passed. The caller pays the fee, split evenly between the voters.
func (p *Pallet) Withdraw(env *Env, origin Origin, receiptId types.ReceiptId) error {
	caller, err := origin.Signer()
	if err != nil {
		return err
	}
	if err := p.ensureActive(env); err != nil {
		return err
	}

	status, err := env.Store.StatusOf(receiptId)
	if err != nil {
		return err
	}
	if status.Kind == StatusProcessed {
		return ErrAlreadyProcessed
	}
	receipt, err := env.Store.IncomingReceipt(receiptId)
	if err != nil {
		return err
	}
	if receipt == nil {
		return ErrUnknownReceiptId
	}
	if status.Kind != StatusApproved {
		return ErrNotApproved
	}
	if env.BlockNumber < status.Block+p.cfg.WithdrawalDelay {
		return ErrTooSoon
	}

	if err := p.rateLimit(env, receipt.Amount); err != nil {
		return err
	}
	voters, err := env.Store.Voting(receiptId)
	if err != nil {
		return err
	}
	if err := p.takeFee(env, voters, caller); err != nil {
		return fmt.Errorf("take fee: %w", err)
	}
	if err := env.Token.Transfer(p.AccountId(), receipt.SubstrateRecipient, receipt.Amount, false); err != nil {
		return fmt.Errorf("release tokens: %w", err)
	}
	if err := env.Store.SetStatus(receiptId, Processed(env.BlockNumber)); err != nil {
		return err
	}
	env.deposit(ProcessedEvent{ReceiptId: receiptId})
	return nil
}

// takeFee rounds down, the dust stays with the payer.
func (p *Pallet) takeFee(env *Env, voters []types.AccountId, payer types.AccountId) error {
	if len(voters) == 0 {
		return nil
	}
	fee, err := env.Store.Fee()
	if err != nil {
		return err
	}
	perVoter := fee.Div(uint64(len(voters)))
	for _, voter := range voters {
		if err := env.Currency.Transfer(payer, voter, perVoter, false); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pallet) setState(env *Env, state BridgeState) error {
	if err := env.Store.SetState(state); err != nil {
		return err
	}
	env.deposit(StateChangedEvent{State: state})
	return nil
}
