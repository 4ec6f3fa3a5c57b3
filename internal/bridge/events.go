package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/liberland/federated-bridge/internal/types"
)

type Event interface {
	EventName() string
}

type OutgoingReceiptEvent struct {
	Amount       types.Balance    `json:"amount"`
	EthRecipient types.EthAddress `json:"eth_recipient"`
}

type VoteEvent struct {
	Relay     types.AccountId `json:"relay"`
	ReceiptId types.ReceiptId `json:"receipt_id"`
	// BlockNumber is the Ethereum block of the voted receipt.
	BlockNumber uint64 `json:"block_number"`
}

type ApprovedEvent struct {
	ReceiptId types.ReceiptId `json:"receipt_id"`
}

type ProcessedEvent struct {
	ReceiptId types.ReceiptId `json:"receipt_id"`
}

type StateChangedEvent struct {
	State BridgeState `json:"state"`
}

type EmergencyStopEvent struct{}

func (OutgoingReceiptEvent) EventName() string { return "OutgoingReceipt" }
func (VoteEvent) EventName() string            { return "Vote" }
func (ApprovedEvent) EventName() string        { return "Approved" }
func (ProcessedEvent) EventName() string       { return "Processed" }
func (StateChangedEvent) EventName() string    { return "StateChanged" }
func (EmergencyStopEvent) EventName() string   { return "EmergencyStop" }

func EncodeEvent(ev Event) (string, []byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", nil, err
	}
	return ev.EventName(), data, nil
}

func DecodeEvent(name string, data []byte) (Event, error) {
	var ev Event
	switch name {
	case "OutgoingReceipt":
		ev = &OutgoingReceiptEvent{}
	case "Vote":
		ev = &VoteEvent{}
	case "Approved":
		ev = &ApprovedEvent{}
	case "Processed":
		ev = &ProcessedEvent{}
	case "StateChanged":
		ev = &StateChangedEvent{}
	case "EmergencyStop":
		return EmergencyStopEvent{}, nil
	default:
		return nil, fmt.Errorf("unknown event %q", name)
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", name, err)
	}
	return deref(ev), nil
}

func deref(ev Event) Event {
	switch e := ev.(type) {
	case *OutgoingReceiptEvent:
		return *e
	case *VoteEvent:
		return *e
	case *ApprovedEvent:
		return *e
	case *ProcessedEvent:
		return *e
	case *StateChangedEvent:
		return *e
	}
	return ev
}
