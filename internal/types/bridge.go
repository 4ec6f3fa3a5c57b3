package types

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EthAddress is a 20-byte Ethereum account.
type EthAddress = common.Address

// BridgeId names a bridge instance. Each instance bridges one native asset.
type BridgeId string

const (
	BridgeLLM BridgeId = "LLM"
	BridgeLLD BridgeId = "LLD"
)

var AllBridges = []BridgeId{BridgeLLM, BridgeLLD}

func ParseBridgeId(s string) (BridgeId, error) {
	id := BridgeId(strings.ToUpper(s))
	for _, b := range AllBridges {
		if b == id {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown bridge %q", s)
}

func (b BridgeId) String() string { return string(b) }

// SubstrateReceiptId derives the id of a native OutgoingReceipt:
// blake2b256(block_hash ‖ event_index_be_u32 ‖ amount_be_u256 ‖ eth_recipient).
func SubstrateReceiptId(blockHash Hash, eventIndex uint32, amount Balance, recipient EthAddress) ReceiptId {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], eventIndex)
	amt := amount.Bytes32()
	return ReceiptId(Blake2b256(blockHash[:], idx[:], amt[:], recipient.Bytes()))
}

// EthReceiptId derives the id of a contract OutgoingReceipt log:
// blake2b256(block_hash ‖ log_index_be_u64 ‖ amount_be_u256 ‖ substrate_recipient).
func EthReceiptId(blockHash common.Hash, logIndex uint64, amount *uint256.Int, recipient AccountId) ReceiptId {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], logIndex)
	amt := amount.Bytes32()
	return ReceiptId(Blake2b256(blockHash.Bytes(), idx[:], amt[:], recipient[:]))
}
