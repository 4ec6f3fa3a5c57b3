package bridge

import "github.com/liberland/federated-bridge/internal/types"

// Store is the persistent state of one bridge instance. Getters return the
// zero value for absent keys (Voting for statuses, empty vote lists).
type Store interface {
	State() (BridgeState, error)
	SetState(BridgeState) error

	Relays() ([]types.AccountId, error)
	SetRelays([]types.AccountId) error
	Watchers() ([]types.AccountId, error)
	SetWatchers([]types.AccountId) error

	VotesRequired() (uint32, error)
	SetVotesRequired(uint32) error
	Fee() (types.Balance, error)
	SetFee(types.Balance) error

	Admin() (*types.AccountId, error)
	SetAdmin(types.AccountId) error
	SuperAdmin() (*types.AccountId, error)
	SetSuperAdmin(types.AccountId) error

	WithdrawalCounter() (types.Balance, uint64, error)
	SetWithdrawalCounter(amount types.Balance, block uint64) error

	IncomingReceipt(id types.ReceiptId) (*IncomingReceipt, error)
	InsertIncomingReceipt(id types.ReceiptId, r IncomingReceipt) error
	StatusOf(id types.ReceiptId) (ReceiptStatus, error)
	SetStatus(id types.ReceiptId, s ReceiptStatus) error
	Voting(id types.ReceiptId) ([]types.AccountId, error)
	SetVoting(id types.ReceiptId, voters []types.AccountId) error
}

// Ledger moves a fungible asset between accounts.
type Ledger interface {
	Transfer(from, to types.AccountId, amount types.Balance, keepAlive bool) error
	BalanceOf(account types.AccountId) (types.Balance, error)
}

// Env is everything a call executes against. Events accumulate in order and
// are only meaningful when the call succeeds.
type Env struct {
	Store       Store
	Token       Ledger
	Currency    Ledger
	BlockNumber uint64
	Events      []Event
}

func (e *Env) deposit(ev Event) {
	e.Events = append(e.Events, ev)
}

func contains(list []types.AccountId, acc types.AccountId) bool {
	for _, a := range list {
		if a == acc {
			return true
		}
	}
	return false
}
