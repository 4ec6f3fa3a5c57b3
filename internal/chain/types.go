package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/liberland/federated-bridge/internal/bridge"
	"github.com/liberland/federated-bridge/internal/db"
	"github.com/liberland/federated-bridge/internal/types"
)

var (
	ErrBlockNotFound     = errors.New("block not found")
	ErrExtrinsicNotFound = errors.New("extrinsic not found")
	ErrExtrinsicFailed   = errors.New("extrinsic failed")
	ErrDuplicateNonce    = errors.New("extrinsic nonce already used")
	ErrPoolFull          = errors.New("extrinsic pool full")
	ErrUnknownBridge     = errors.New("unknown bridge")
	ErrRequireSudo       = errors.New("sudo call not signed by sudo key")
	ErrNoGenesis         = errors.New("genesis not built")
)

const (
	ExtrinsicPending = "pending"
	ExtrinsicSuccess = db.EXTRINSIC_STATUS_SUCCESS
	ExtrinsicFailed  = db.EXTRINSIC_STATUS_FAILED
)

// Reader is the read side of a native node.
type Reader interface {
	GenesisHash(ctx context.Context) (types.Hash, error)
	BestNumber(ctx context.Context) (uint64, error)
	FinalizedNumber(ctx context.Context) (uint64, error)
	BlockHash(ctx context.Context, number uint64) (types.Hash, error)
	Events(ctx context.Context, blockHash types.Hash) ([]EventRecord, error)
	IncomingReceipt(ctx context.Context, bridgeId types.BridgeId, id types.ReceiptId) (*ReceiptView, error)
}

// Submitter accepts signed extrinsics and reports their results.
type Submitter interface {
	SubmitExtrinsic(ctx context.Context, raw string) (types.Hash, error)
	ExtrinsicStatus(ctx context.Context, hash types.Hash) (*ExtrinsicStatus, error)
}

// EventRecord is a bridge event with its position in the block.
type EventRecord struct {
	Index          uint32
	ExtrinsicIndex uint32
	Bridge         types.BridgeId
	Event          bridge.Event
}

type eventRecordJSON struct {
	Index          uint32          `json:"index"`
	ExtrinsicIndex uint32          `json:"extrinsic_index"`
	Bridge         types.BridgeId  `json:"bridge"`
	Kind           string          `json:"kind"`
	Data           json.RawMessage `json:"data"`
}

func (r EventRecord) MarshalJSON() ([]byte, error) {
	kind, data, err := bridge.EncodeEvent(r.Event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventRecordJSON{Index: r.Index, ExtrinsicIndex: r.ExtrinsicIndex, Bridge: r.Bridge, Kind: kind, Data: data})
}

func (r *EventRecord) UnmarshalJSON(data []byte) error {
	var in eventRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	ev, err := bridge.DecodeEvent(in.Kind, in.Data)
	if err != nil {
		return err
	}
	*r = EventRecord{Index: in.Index, ExtrinsicIndex: in.ExtrinsicIndex, Bridge: in.Bridge, Event: ev}
	return nil
}

type BlockView struct {
	Number         uint64        `json:"number"`
	Hash           types.Hash    `json:"hash"`
	ParentHash     types.Hash    `json:"parent_hash"`
	ExtrinsicsRoot types.Hash    `json:"extrinsics_root"`
	Events         []EventRecord `json:"events"`
}

type HeadView struct {
	GenesisHash     types.Hash `json:"genesis_hash"`
	BestNumber      uint64     `json:"best_number"`
	BestHash        types.Hash `json:"best_hash"`
	FinalizedNumber uint64     `json:"finalized_number"`
}

type ReceiptView struct {
	Receipt bridge.IncomingReceipt `json:"receipt"`
	Status  bridge.ReceiptStatus   `json:"status"`
	Voters  []types.AccountId      `json:"voters"`
}

type BridgeView struct {
	Bridge        types.BridgeId     `json:"bridge"`
	Account       types.AccountId    `json:"account"`
	State         bridge.BridgeState `json:"state"`
	Relays        []types.AccountId  `json:"relays"`
	Watchers      []types.AccountId  `json:"watchers"`
	VotesRequired uint32             `json:"votes_required"`
	Fee           types.Balance      `json:"fee"`
	Admin         *types.AccountId   `json:"admin,omitempty"`
	SuperAdmin    *types.AccountId   `json:"super_admin,omitempty"`
	Locked        types.Balance      `json:"locked"`
	Counter       types.Balance      `json:"withdrawal_counter"`
	CounterBlock  uint64             `json:"withdrawal_counter_block"`
}

type ExtrinsicStatus struct {
	Hash        types.Hash `json:"hash"`
	Status      string     `json:"status"`
	BlockNumber uint64     `json:"block_number,omitempty"`
	Index       uint32     `json:"index,omitempty"`
	Outcome     string     `json:"outcome,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Failed converts a failed status into an error wrapping ErrExtrinsicFailed
// and, when the dispatch error is a known pallet error, its sentinel.
func (s *ExtrinsicStatus) Failed() error {
	if s.Status != ExtrinsicFailed {
		return nil
	}
	if name, _, ok := strings.Cut(s.Error, ":"); ok {
		if cause := bridge.ErrorByName(name); cause != nil {
			return fmt.Errorf("%w: %w (%s)", ErrExtrinsicFailed, cause, s.Error)
		}
	}
	return errors.Join(ErrExtrinsicFailed, errors.New(s.Error))
}
