package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/liberland/federated-bridge/internal/types"
)

// Call is one of the dispatchable bridge calls.
type Call interface {
	Method() string
}

type DepositCall struct {
	Amount       types.Balance    `json:"amount"`
	EthRecipient types.EthAddress `json:"eth_recipient"`
}

type VoteWithdrawCall struct {
	ReceiptId types.ReceiptId `json:"receipt_id"`
	Receipt   IncomingReceipt `json:"receipt"`
}

type WithdrawCall struct {
	ReceiptId types.ReceiptId `json:"receipt_id"`
}

type SetFeeCall struct {
	Amount types.Balance `json:"amount"`
}

type SetVotesRequiredCall struct {
	VotesRequired uint32 `json:"votes_required"`
}

type AddRelayCall struct {
	Relay types.AccountId `json:"relay"`
}

type RemoveRelayCall struct {
	Relay types.AccountId `json:"relay"`
}

type AddWatcherCall struct {
	Watcher types.AccountId `json:"watcher"`
}

type RemoveWatcherCall struct {
	Watcher types.AccountId `json:"watcher"`
}

type SetStateCall struct {
	State BridgeState `json:"state"`
}

type EmergencyStopCall struct{}

type SetAdminCall struct {
	Admin types.AccountId `json:"admin"`
}

type SetSuperAdminCall struct {
	SuperAdmin types.AccountId `json:"super_admin"`
}

func (DepositCall) Method() string          { return "deposit" }
func (VoteWithdrawCall) Method() string     { return "vote_withdraw" }
func (WithdrawCall) Method() string         { return "withdraw" }
func (SetFeeCall) Method() string           { return "set_fee" }
func (SetVotesRequiredCall) Method() string { return "set_votes_required" }
func (AddRelayCall) Method() string         { return "add_relay" }
func (RemoveRelayCall) Method() string      { return "remove_relay" }
func (AddWatcherCall) Method() string       { return "add_watcher" }
func (RemoveWatcherCall) Method() string    { return "remove_watcher" }
func (SetStateCall) Method() string         { return "set_state" }
func (EmergencyStopCall) Method() string    { return "emergency_stop" }
func (SetAdminCall) Method() string         { return "set_admin" }
func (SetSuperAdminCall) Method() string    { return "set_super_admin" }

// Dispatch routes a call to its handler.
func (p *Pallet) Dispatch(env *Env, origin Origin, call Call) (Outcome, error) {
	var err error
	switch c := call.(type) {
	case DepositCall:
		err = p.Deposit(env, origin, c.Amount, c.EthRecipient)
	case VoteWithdrawCall:
		return p.VoteWithdraw(env, origin, c.ReceiptId, c.Receipt)
	case WithdrawCall:
		err = p.Withdraw(env, origin, c.ReceiptId)
	case SetFeeCall:
		err = p.SetFee(env, origin, c.Amount)
	case SetVotesRequiredCall:
		err = p.SetVotesRequired(env, origin, c.VotesRequired)
	case AddRelayCall:
		err = p.AddRelay(env, origin, c.Relay)
	case RemoveRelayCall:
		err = p.RemoveRelay(env, origin, c.Relay)
	case AddWatcherCall:
		err = p.AddWatcher(env, origin, c.Watcher)
	case RemoveWatcherCall:
		err = p.RemoveWatcher(env, origin, c.Watcher)
	case SetStateCall:
		err = p.SetState(env, origin, c.State)
	case EmergencyStopCall:
		err = p.EmergencyStop(env, origin)
	case SetAdminCall:
		err = p.SetAdmin(env, origin, c.Admin)
	case SetSuperAdminCall:
		err = p.SetSuperAdmin(env, origin, c.SuperAdmin)
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownCall, call)
	}
	return Applied, err
}

type encodedCall struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

func EncodeCall(call Call) ([]byte, error) {
	args, err := json.Marshal(call)
	if err != nil {
		return nil, err
	}
	return json.Marshal(encodedCall{Method: call.Method(), Args: args})
}

func DecodeCall(data []byte) (Call, error) {
	var enc encodedCall
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("decode call: %w", err)
	}
	args := enc.Args
	if len(args) == 0 {
		args = []byte("{}")
	}

	switch enc.Method {
	case "deposit":
		return decodeArgs[DepositCall](args)
	case "vote_withdraw":
		return decodeArgs[VoteWithdrawCall](args)
	case "withdraw":
		return decodeArgs[WithdrawCall](args)
	case "set_fee":
		return decodeArgs[SetFeeCall](args)
	case "set_votes_required":
		return decodeArgs[SetVotesRequiredCall](args)
	case "add_relay":
		return decodeArgs[AddRelayCall](args)
	case "remove_relay":
		return decodeArgs[RemoveRelayCall](args)
	case "add_watcher":
		return decodeArgs[AddWatcherCall](args)
	case "remove_watcher":
		return decodeArgs[RemoveWatcherCall](args)
	case "set_state":
		return decodeArgs[SetStateCall](args)
	case "emergency_stop":
		return EmergencyStopCall{}, nil
	case "set_admin":
		return decodeArgs[SetAdminCall](args)
	case "set_super_admin":
		return decodeArgs[SetSuperAdminCall](args)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCall, enc.Method)
}

func decodeArgs[T Call](args []byte) (Call, error) {
	var c T
	if err := json.Unmarshal(args, &c); err != nil {
		return nil, fmt.Errorf("decode %s args: %w", c.Method(), err)
	}
	return c, nil
}
