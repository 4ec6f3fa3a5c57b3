package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/liberland/federated-bridge/internal/ethereum/abis"
	"github.com/liberland/federated-bridge/internal/types"
)

// OutgoingReceipt is a decoded contract OutgoingReceipt log.
type OutgoingReceipt struct {
	Bridge      types.BridgeId
	ReceiptId   types.ReceiptId
	BlockNumber uint64
	TxHash      common.Hash
	Recipient   types.AccountId
	Amount      *uint256.Int
}

// Bridge is one bridge instance on Ethereum.
type Bridge struct {
	id       types.BridgeId
	contract *abis.BridgeContract
}

func NewBridge(id types.BridgeId, address common.Address, client Client) *Bridge {
	return &Bridge{id: id, contract: abis.NewBridgeContract(address, client)}
}

func (b *Bridge) Id() types.BridgeId {
	return b.id
}

func (b *Bridge) Address() common.Address {
	return b.contract.Address()
}

func (b *Bridge) Voted(ctx context.Context, receiptId types.ReceiptId, voter common.Address) (bool, error) {
	return b.contract.Voted(&bind.CallOpts{Context: ctx}, receiptId, voter)
}

// IsProcessed reports whether the contract already minted the receipt.
func (b *Bridge) IsProcessed(ctx context.Context, receiptId types.ReceiptId) (bool, error) {
	receipt, err := b.contract.IncomingReceipts(&bind.CallOpts{Context: ctx}, receiptId)
	if err != nil {
		return false, err
	}
	return receipt.ProcessedOn != nil && receipt.ProcessedOn.Sign() != 0, nil
}

func (b *Bridge) PendingRewards(ctx context.Context, relay common.Address) (*big.Int, error) {
	return b.contract.PendingRewards(&bind.CallOpts{Context: ctx}, relay)
}

// VoteMint builds the relay vote for a native OutgoingReceipt. The call id
// is the receipt id so a receipt is never queued twice.
func (b *Bridge) VoteMint(receiptId types.ReceiptId, substrateBlockNumber uint64, amount types.Balance, recipient common.Address) (TxRequest, error) {
	data, err := abis.PackVoteMint(receiptId, substrateBlockNumber, amount.Big(), recipient)
	if err != nil {
		return TxRequest{}, err
	}
	return TxRequest{CallId: receiptId.Hex(), Method: "voteMint", To: b.Address(), Data: data}, nil
}

func (b *Bridge) EmergencyStop() (TxRequest, error) {
	data, err := abis.PackEmergencyStop()
	if err != nil {
		return TxRequest{}, err
	}
	return TxRequest{Method: "emergencyStop", To: b.Address(), Data: data}, nil
}

func (b *Bridge) ClaimReward() (TxRequest, error) {
	data, err := abis.PackClaimReward()
	if err != nil {
		return TxRequest{}, err
	}
	return TxRequest{Method: "claimReward", To: b.Address(), Data: data}, nil
}

func (b *Bridge) ParseOutgoingReceipt(log gethtypes.Log) (*OutgoingReceipt, error) {
	event, err := b.contract.ParseOutgoingReceipt(log)
	if err != nil {
		return nil, err
	}
	amount, overflow := uint256.FromBig(event.Amount)
	if overflow {
		return nil, fmt.Errorf("amount %s overflows 256 bits", event.Amount)
	}
	recipient := types.AccountId(event.SubstrateRecipient)
	return &OutgoingReceipt{
		Bridge:      b.id,
		ReceiptId:   types.EthReceiptId(log.BlockHash, uint64(log.Index), amount, recipient),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		Recipient:   recipient,
		Amount:      amount,
	}, nil
}

func (b *Bridge) ParseVote(log gethtypes.Log) (*abis.BridgeContractVote, error) {
	return b.contract.ParseVote(log)
}

// Bridges indexes the configured bridge contracts.
type Bridges struct {
	ordered []*Bridge
	byAddr  map[common.Address]*Bridge
}

func NewBridges(client Client, addresses map[types.BridgeId]common.Address) *Bridges {
	bs := &Bridges{byAddr: map[common.Address]*Bridge{}}
	for _, id := range types.AllBridges {
		addr, ok := addresses[id]
		if !ok {
			continue
		}
		b := NewBridge(id, addr, client)
		bs.ordered = append(bs.ordered, b)
		bs.byAddr[addr] = b
	}
	return bs
}

func (bs *Bridges) All() []*Bridge {
	return bs.ordered
}

func (bs *Bridges) Get(id types.BridgeId) (*Bridge, error) {
	for _, b := range bs.ordered {
		if b.id == id {
			return b, nil
		}
	}
	return nil, fmt.Errorf("no contract configured for bridge %s", id)
}

func (bs *Bridges) ByAddress(addr common.Address) (*Bridge, bool) {
	b, ok := bs.byAddr[addr]
	return b, ok
}

func (bs *Bridges) Addresses() []common.Address {
	out := make([]common.Address, 0, len(bs.ordered))
	for _, b := range bs.ordered {
		out = append(out, b.Address())
	}
	return out
}
