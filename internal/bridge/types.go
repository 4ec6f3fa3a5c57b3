package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/liberland/federated-bridge/internal/types"
)

type BridgeState uint8

const (
	StateStopped BridgeState = iota
	StateActive
)

func (s BridgeState) String() string {
	switch s {
	case StateActive:
		return "Active"
	case StateStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("BridgeState(%d)", uint8(s))
	}
}

func ParseBridgeState(s string) (BridgeState, error) {
	switch s {
	case "Active", "active":
		return StateActive, nil
	case "Stopped", "stopped":
		return StateStopped, nil
	default:
		return StateStopped, fmt.Errorf("unknown bridge state %q", s)
	}
}

func (s BridgeState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *BridgeState) UnmarshalText(text []byte) error {
	v, err := ParseBridgeState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// IncomingReceipt is an Ethereum to native transfer as reported by a relay.
// Equality is by value over all three fields.
type IncomingReceipt struct {
	EthBlockNumber     uint64          `json:"eth_block_number"`
	SubstrateRecipient types.AccountId `json:"substrate_recipient"`
	Amount             types.Balance   `json:"amount"`
}

type StatusKind uint8

const (
	StatusVoting StatusKind = iota
	StatusApproved
	StatusProcessed
)

func (k StatusKind) String() string {
	return [...]string{"Voting", "Approved", "Processed"}[k]
}

// ReceiptStatus moves Voting -> Approved(block) -> Processed(block), never back.
type ReceiptStatus struct {
	Kind  StatusKind
	Block uint64
}

var Voting = ReceiptStatus{Kind: StatusVoting}

func Approved(block uint64) ReceiptStatus  { return ReceiptStatus{Kind: StatusApproved, Block: block} }
func Processed(block uint64) ReceiptStatus { return ReceiptStatus{Kind: StatusProcessed, Block: block} }

func (s ReceiptStatus) String() string {
	if s.Kind == StatusVoting {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s(%d)", s.Kind, s.Block)
}

type statusJSON struct {
	Kind  string  `json:"kind"`
	Block *uint64 `json:"block,omitempty"`
}

func (s ReceiptStatus) MarshalJSON() ([]byte, error) {
	out := statusJSON{Kind: s.Kind.String()}
	if s.Kind != StatusVoting {
		b := s.Block
		out.Block = &b
	}
	return json.Marshal(out)
}

func (s *ReceiptStatus) UnmarshalJSON(data []byte) error {
	var in statusJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var block uint64
	if in.Block != nil {
		block = *in.Block
	}
	switch in.Kind {
	case "Voting":
		*s = Voting
	case "Approved":
		*s = Approved(block)
	case "Processed":
		*s = Processed(block)
	default:
		return fmt.Errorf("unknown receipt status %q", in.Kind)
	}
	return nil
}

// Outcome tells callers whether a successful call halted the bridge.
type Outcome uint8

const (
	Applied Outcome = iota
	AppliedWithHalt
)

func (o Outcome) String() string {
	if o == AppliedWithHalt {
		return "applied_with_halt"
	}
	return "applied"
}
