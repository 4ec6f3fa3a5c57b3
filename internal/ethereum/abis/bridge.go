// Package abis holds the Go binding of the Ethereum side bridge contract.
package abis

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BridgeContractABI is the subset of the bridge contract used by relays and watchers.
const BridgeContractABI = `[
{"type":"event","name":"OutgoingReceipt","anonymous":false,"inputs":[
	{"indexed":true,"internalType":"bytes32","name":"substrateRecipient","type":"bytes32"},
	{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"}]},
{"type":"event","name":"Vote","anonymous":false,"inputs":[
	{"indexed":true,"internalType":"bytes32","name":"receiptId","type":"bytes32"},
	{"indexed":true,"internalType":"address","name":"voter","type":"address"},
	{"indexed":false,"internalType":"uint64","name":"substrateBlockNumber","type":"uint64"}]},
{"type":"event","name":"Approved","anonymous":false,"inputs":[
	{"indexed":true,"internalType":"bytes32","name":"receiptId","type":"bytes32"}]},
{"type":"event","name":"Processed","anonymous":false,"inputs":[
	{"indexed":true,"internalType":"bytes32","name":"receiptId","type":"bytes32"}]},
{"type":"event","name":"EmergencyStop","anonymous":false,"inputs":[]},
{"type":"error","name":"AlreadyVoted","inputs":[]},
{"type":"error","name":"AlreadyProcessed","inputs":[]},
{"type":"error","name":"BridgeInactive","inputs":[]},
{"type":"error","name":"Unauthorized","inputs":[]},
{"type":"error","name":"InvalidArgument","inputs":[]},
{"type":"error","name":"TooSoon","inputs":[]},
{"type":"error","name":"RateLimited","inputs":[]},
{"type":"function","name":"voteMint","stateMutability":"nonpayable","inputs":[
	{"internalType":"bytes32","name":"receiptId","type":"bytes32"},
	{"internalType":"uint64","name":"substrateBlockNumber","type":"uint64"},
	{"internalType":"uint256","name":"amount","type":"uint256"},
	{"internalType":"address","name":"ethRecipient","type":"address"}],"outputs":[]},
{"type":"function","name":"emergencyStop","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"type":"function","name":"claimReward","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"type":"function","name":"voted","stateMutability":"view","inputs":[
	{"internalType":"bytes32","name":"receiptId","type":"bytes32"},
	{"internalType":"address","name":"voter","type":"address"}],"outputs":[
	{"internalType":"bool","name":"","type":"bool"}]},
{"type":"function","name":"incomingReceipts","stateMutability":"view","inputs":[
	{"internalType":"bytes32","name":"","type":"bytes32"}],"outputs":[
	{"internalType":"uint64","name":"substrateBlockNumber","type":"uint64"},
	{"internalType":"address","name":"ethRecipient","type":"address"},
	{"internalType":"uint256","name":"amount","type":"uint256"},
	{"internalType":"uint256","name":"approvedOn","type":"uint256"},
	{"internalType":"uint256","name":"processedOn","type":"uint256"}]},
{"type":"function","name":"pendingRewards","stateMutability":"view","inputs":[
	{"internalType":"address","name":"","type":"address"}],"outputs":[
	{"internalType":"uint256","name":"","type":"uint256"}]}
]`

// BridgeABI is the parsed BridgeContractABI.
var BridgeABI = mustParse(BridgeContractABI)

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

var (
	OutgoingReceiptTopic = BridgeABI.Events["OutgoingReceipt"].ID
	VoteTopic            = BridgeABI.Events["Vote"].ID
)

var ErrUnexpectedEvent = errors.New("log is not the expected bridge event")

// BridgeContractOutgoingReceipt is an Ethereum to native transfer.
type BridgeContractOutgoingReceipt struct {
	SubstrateRecipient [32]byte
	Amount             *big.Int
	Raw                types.Log
}

// BridgeContractVote is a relay vote on a native to Ethereum transfer.
type BridgeContractVote struct {
	ReceiptId            [32]byte
	Voter                common.Address
	SubstrateBlockNumber uint64
	Raw                  types.Log
}

type BridgeContractIncomingReceipt struct {
	SubstrateBlockNumber uint64
	EthRecipient         common.Address
	Amount               *big.Int
	ApprovedOn           *big.Int
	ProcessedOn          *big.Int
}

// BridgeContract binds one deployed bridge contract.
type BridgeContract struct {
	address  common.Address
	contract *bind.BoundContract
}

func NewBridgeContract(address common.Address, backend bind.ContractBackend) *BridgeContract {
	return &BridgeContract{
		address:  address,
		contract: bind.NewBoundContract(address, BridgeABI, backend, backend, backend),
	}
}

func (c *BridgeContract) Address() common.Address {
	return c.address
}

func (c *BridgeContract) Voted(opts *bind.CallOpts, receiptId [32]byte, voter common.Address) (bool, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "voted", receiptId, voter); err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *BridgeContract) IncomingReceipts(opts *bind.CallOpts, receiptId [32]byte) (*BridgeContractIncomingReceipt, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "incomingReceipts", receiptId); err != nil {
		return nil, err
	}
	return &BridgeContractIncomingReceipt{
		SubstrateBlockNumber: *abi.ConvertType(out[0], new(uint64)).(*uint64),
		EthRecipient:         *abi.ConvertType(out[1], new(common.Address)).(*common.Address),
		Amount:               *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
		ApprovedOn:           *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
		ProcessedOn:          *abi.ConvertType(out[4], new(*big.Int)).(**big.Int),
	}, nil
}

func (c *BridgeContract) PendingRewards(opts *bind.CallOpts, relay common.Address) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "pendingRewards", relay); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func PackVoteMint(receiptId [32]byte, substrateBlockNumber uint64, amount *big.Int, ethRecipient common.Address) ([]byte, error) {
	return BridgeABI.Pack("voteMint", receiptId, substrateBlockNumber, amount, ethRecipient)
}

func PackEmergencyStop() ([]byte, error) {
	return BridgeABI.Pack("emergencyStop")
}

func PackClaimReward() ([]byte, error) {
	return BridgeABI.Pack("claimReward")
}

func (c *BridgeContract) ParseOutgoingReceipt(log types.Log) (*BridgeContractOutgoingReceipt, error) {
	if len(log.Topics) == 0 || log.Topics[0] != OutgoingReceiptTopic {
		return nil, ErrUnexpectedEvent
	}
	event := new(BridgeContractOutgoingReceipt)
	if err := c.contract.UnpackLog(event, "OutgoingReceipt", log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}

func (c *BridgeContract) ParseVote(log types.Log) (*BridgeContractVote, error) {
	if len(log.Topics) == 0 || log.Topics[0] != VoteTopic {
		return nil, ErrUnexpectedEvent
	}
	event := new(BridgeContractVote)
	if err := c.contract.UnpackLog(event, "Vote", log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}
