// Package ethtest provides an in-memory Ethereum node speaking the bridge
// contract ABI.
package ethtest

import (
	"context"
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/liberland/federated-bridge/internal/ethereum/abis"
	bridgetypes "github.com/liberland/federated-bridge/internal/types"
)

// RevertError mimics the JSON-RPC error of a reverted call.
type RevertError struct {
	data string
}

func (e *RevertError) Error() string          { return "execution reverted" }
func (e *RevertError) ErrorCode() int         { return 3 }
func (e *RevertError) ErrorData() interface{} { return e.data }

func revert(name string) error {
	id := abis.BridgeABI.Errors[name].ID
	return &RevertError{data: hexutil.Encode(id[:4])}
}

type voteKey struct {
	contract common.Address
	receipt  [32]byte
	voter    common.Address
}

type receiptKey struct {
	contract common.Address
	receipt  [32]byte
}

type Backend struct {
	mu sync.Mutex

	chainId   *big.Int
	latest    uint64
	finalized uint64
	baseFee   *big.Int
	tip       *big.Int
	autoMine  bool

	logs      []types.Log
	voted     map[voteKey]bool
	processed map[receiptKey]bool
	rewards   map[receiptKey]*big.Int
	balances  map[common.Address]*big.Int
	reverts   map[string]string
	stopped   map[common.Address]bool
	nonces    map[common.Address]uint64
	sent      []*types.Transaction
	mined     map[common.Hash]bool
	failFirst map[string]error
}

func NewBackend() *Backend {
	return &Backend{
		chainId:   big.NewInt(1337),
		baseFee:   big.NewInt(1_000_000_000),
		tip:       big.NewInt(1_000_000_000),
		autoMine:  true,
		voted:     map[voteKey]bool{},
		processed: map[receiptKey]bool{},
		rewards:   map[receiptKey]*big.Int{},
		balances:  map[common.Address]*big.Int{},
		reverts:   map[string]string{},
		stopped:   map[common.Address]bool{},
		nonces:    map[common.Address]uint64{},
		mined:     map[common.Hash]bool{},
		failFirst: map[string]error{},
	}
}

// BlockHash is the deterministic hash of block n.
func BlockHash(n uint64) common.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return crypto.Keccak256Hash([]byte("block"), buf[:])
}

func (b *Backend) SetHead(latest, finalized uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest, b.finalized = latest, finalized
}

func (b *Backend) SetAutoMine(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.autoMine = on
}

func (b *Backend) SetTip(tip *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tip = tip
}

// RevertOn makes every call of method revert with the named contract error.
func (b *Backend) RevertOn(method, errorName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if errorName == "" {
		delete(b.reverts, method)
		return
	}
	b.reverts[method] = errorName
}

// FailNext makes the next request of kind ("filter_logs", "header") fail with err.
func (b *Backend) FailNext(kind string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failFirst[kind] = err
}

func (b *Backend) takeFailure(kind string) error {
	err := b.failFirst[kind]
	delete(b.failFirst, kind)
	return err
}

func (b *Backend) SetVoted(contract common.Address, receiptId [32]byte, voter common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.voted[voteKey{contract, receiptId, voter}] = true
}

func (b *Backend) SetProcessed(contract common.Address, receiptId [32]byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.processed[receiptKey{contract, receiptId}] = true
}

func (b *Backend) SetPendingRewards(contract, relay common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var key receiptKey
	key.contract = contract
	copy(key.receipt[:], relay.Bytes())
	b.rewards[key] = amount
}

func (b *Backend) SetBalance(account common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] = amount
}

func (b *Backend) Stopped(contract common.Address) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped[contract]
}

func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

// SentMethods names the contract method of every sent transaction, or
// "transfer" for plain value transfers.
func (b *Backend) SentMethods() []string {
	var out []string
	for _, tx := range b.Sent() {
		out = append(out, methodName(tx.Data()))
	}
	return out
}

func (b *Backend) Mine(hash common.Hash) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mined[hash] = true
}

func methodName(data []byte) string {
	if len(data) < 4 {
		return "transfer"
	}
	method, err := abis.BridgeABI.MethodById(data[:4])
	if err != nil {
		return "unknown"
	}
	return method.Name
}

func (b *Backend) addLog(l types.Log) types.Log {
	b.mu.Lock()
	defer b.mu.Unlock()
	var index uint
	for _, existing := range b.logs {
		if existing.BlockNumber == l.BlockNumber {
			index++
		}
	}
	l.BlockHash = BlockHash(l.BlockNumber)
	l.Index = index
	l.TxHash = crypto.Keccak256Hash(l.BlockHash.Bytes(), big.NewInt(int64(index)).Bytes())
	b.logs = append(b.logs, l)
	if l.BlockNumber > b.latest {
		b.latest = l.BlockNumber
	}
	return l
}

// AddOutgoingReceipt emits a contract OutgoingReceipt log in block number.
func (b *Backend) AddOutgoingReceipt(contract common.Address, number uint64, recipient bridgetypes.AccountId, amount *big.Int) types.Log {
	data, err := abis.BridgeABI.Events["OutgoingReceipt"].Inputs.NonIndexed().Pack(amount)
	if err != nil {
		panic(err)
	}
	return b.addLog(types.Log{
		Address:     contract,
		Topics:      []common.Hash{abis.OutgoingReceiptTopic, common.Hash(recipient)},
		Data:        data,
		BlockNumber: number,
	})
}

// AddVote emits a contract Vote log in block number.
func (b *Backend) AddVote(contract common.Address, number uint64, receiptId [32]byte, voter common.Address, substrateBlock uint64) types.Log {
	data, err := abis.BridgeABI.Events["Vote"].Inputs.NonIndexed().Pack(substrateBlock)
	if err != nil {
		panic(err)
	}
	return b.addLog(types.Log{
		Address:     contract,
		Topics:      []common.Hash{abis.VoteTopic, common.Hash(receiptId), common.BytesToHash(voter.Bytes())},
		Data:        data,
		BlockNumber: number,
	})
}

func (b *Backend) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.chainId), nil
}

func (b *Backend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *Backend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Add(b.baseFee, b.tip), nil
}

func (b *Backend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.tip), nil
}

func (b *Backend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeFailure("header"); err != nil {
		return nil, err
	}
	n := b.latest
	if number != nil {
		switch number.Int64() {
		case int64(rpc.FinalizedBlockNumber), int64(rpc.SafeBlockNumber):
			n = b.finalized
		case int64(rpc.LatestBlockNumber), int64(rpc.PendingBlockNumber):
		default:
			n = number.Uint64()
		}
	}
	return &types.Header{Number: new(big.Int).SetUint64(n), BaseFee: new(big.Int).Set(b.baseFee), Difficulty: new(big.Int)}, nil
}

func (b *Backend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.balances[account]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (b *Backend) CallContract(ctx context.Context, call goethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if len(call.Data) < 4 {
		return nil, nil
	}
	method, err := abis.BridgeABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if name, ok := b.reverts[method.Name]; ok {
		return nil, revert(name)
	}
	switch method.Name {
	case "voted":
		return method.Outputs.Pack(b.voted[voteKey{*call.To, args[0].([32]byte), args[1].(common.Address)}])
	case "incomingReceipts":
		processedOn := new(big.Int)
		if b.processed[receiptKey{*call.To, args[0].([32]byte)}] {
			processedOn.SetUint64(max(b.latest, 1))
		}
		return method.Outputs.Pack(uint64(0), common.Address{}, new(big.Int), new(big.Int), processedOn)
	case "pendingRewards":
		var key receiptKey
		key.contract = *call.To
		copy(key.receipt[:], args[0].(common.Address).Bytes())
		amount := b.rewards[key]
		if amount == nil {
			amount = new(big.Int)
		}
		return method.Outputs.Pack(amount)
	case "voteMint":
		if b.voted[voteKey{*call.To, args[0].([32]byte), call.From}] {
			return nil, revert("AlreadyVoted")
		}
	}
	return nil, nil
}

func (b *Backend) EstimateGas(ctx context.Context, call goethereum.CallMsg) (uint64, error) {
	if _, err := b.CallContract(ctx, call, nil); err != nil {
		return 0, err
	}
	return 60_000, nil
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	from, err := types.Sender(types.LatestSignerForChainID(b.chainId), tx)
	if err != nil {
		return err
	}
	if _, err := b.CallContract(ctx, goethereum.CallMsg{From: from, To: tx.To(), Data: tx.Data(), Value: tx.Value()}, nil); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if tx.Nonce() >= b.nonces[from] {
		b.nonces[from] = tx.Nonce() + 1
	}
	b.sent = append(b.sent, tx)
	if b.autoMine {
		b.mined[tx.Hash()] = true
	}
	switch methodName(tx.Data()) {
	case "voteMint":
		args, err := abis.BridgeABI.Methods["voteMint"].Inputs.Unpack(tx.Data()[4:])
		if err != nil {
			return err
		}
		b.voted[voteKey{*tx.To(), args[0].([32]byte), from}] = true
	case "emergencyStop":
		b.stopped[*tx.To()] = true
	case "claimReward":
		var key receiptKey
		key.contract = *tx.To()
		copy(key.receipt[:], from.Bytes())
		delete(b.rewards, key)
	}
	return nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mined[hash] {
		return nil, goethereum.NotFound
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash, BlockNumber: new(big.Int).SetUint64(b.latest)}, nil
}

func (b *Backend) FilterLogs(ctx context.Context, q goethereum.FilterQuery) ([]types.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeFailure("filter_logs"); err != nil {
		return nil, err
	}
	var out []types.Log
	for _, l := range b.logs {
		if q.BlockHash != nil && l.BlockHash != *q.BlockHash {
			continue
		}
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, l.Address) {
			continue
		}
		if len(q.Topics) > 0 && len(q.Topics[0]) > 0 && !containsHash(q.Topics[0], l.Topics[0]) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (b *Backend) SubscribeFilterLogs(ctx context.Context, q goethereum.FilterQuery, ch chan<- types.Log) (goethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

func containsHash(list []common.Hash, h common.Hash) bool {
	for _, x := range list {
		if x == h {
			return true
		}
	}
	return false
}
