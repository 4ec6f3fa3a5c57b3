package relay_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/liberland/federated-bridge/internal/bridge"
	"github.com/liberland/federated-bridge/internal/chain"
	"github.com/liberland/federated-bridge/internal/chain/chaintest"
	"github.com/liberland/federated-bridge/internal/db"
	"github.com/liberland/federated-bridge/internal/ethereum"
	"github.com/liberland/federated-bridge/internal/ethereum/abis"
	"github.com/liberland/federated-bridge/internal/ethereum/ethtest"
	"github.com/liberland/federated-bridge/internal/relay"
	"github.com/liberland/federated-bridge/internal/syncer"
	"github.com/liberland/federated-bridge/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	llmContract = common.HexToAddress("0x00000000000000000000000000000000000011a1")
	lldContract = common.HexToAddress("0x00000000000000000000000000000000000011a2")
	ethBob      = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	ether       = big.NewInt(1_000_000_000_000_000_000)
)

func newBridges(backend *ethtest.Backend) *ethereum.Bridges {
	return ethereum.NewBridges(backend, map[types.BridgeId]common.Address{
		types.BridgeLLM: llmContract,
		types.BridgeLLD: lldContract,
	})
}

func newTxManager(t *testing.T, backend *ethtest.Backend, dbm *db.DatabaseManager) *ethereum.TxManager {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return ethereum.NewTxManager(backend, key, dbm, ethereum.TxManagerConfig{PollInterval: 5 * time.Millisecond})
}

func ethers(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), ether)
}

// produceBlocks mints native blocks in the background until the test ends.
func produceBlocks(t *testing.T, f *chaintest.Fixture) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = f.Node.ProduceBlock()
			}
		}
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
}

func TestSubstrateToEthereumVotesOnDeposits(t *testing.T) {
	ctx := context.Background()
	f := chaintest.NewNode(t, chaintest.Options{VotesRequired: 2})
	backend := ethtest.NewBackend()
	txm := newTxManager(t, backend, f.DBM)

	f.Submit(t, f.Alice, types.BridgeLLM, bridge.DepositCall{Amount: types.NewBalance(1_000), EthRecipient: ethBob})
	block := f.Produce(t, 1)
	require.Len(t, block.Events, 1)

	ns := syncer.NewNative(f.Node, syncer.NewCursor(f.DBM, "relay_s2e", 1), syncer.NativeFinalized, time.Millisecond)
	r := relay.NewSubstrateToEthereum(ns, newBridges(backend), txm, relay.RewardsConfig{})
	require.NoError(t, ns.SyncOnce(ctx, r.HandleBlock))
	require.NoError(t, txm.ProcessPending(ctx))

	id := types.SubstrateReceiptId(block.Hash, block.Events[0].Index, types.NewBalance(1_000), ethBob)
	require.Equal(t, []string{"voteMint"}, backend.SentMethods())
	assert.Equal(t, llmContract, *backend.Sent()[0].To())

	var row db.EthTx
	require.NoError(t, f.DBM.GetRelayDB().Where("call_id = ?", id.Hex()).First(&row).Error)
	assert.Equal(t, db.ETH_TX_STATUS_MINED, row.Status)

	// a wiped cursor replays the block but the contract already has our vote
	resync := syncer.NewNative(f.Node, syncer.NewCursor(f.DBM, "relay_s2e_replay", 1), syncer.NativeFinalized, time.Millisecond)
	r = relay.NewSubstrateToEthereum(resync, newBridges(backend), txm, relay.RewardsConfig{})
	require.NoError(t, resync.SyncOnce(ctx, r.HandleBlock))
	require.NoError(t, txm.ProcessPending(ctx))
	assert.Len(t, backend.Sent(), 1)
}

func TestSubstrateToEthereumSkipsProcessedReceipts(t *testing.T) {
	ctx := context.Background()
	f := chaintest.NewNode(t, chaintest.Options{VotesRequired: 2})
	backend := ethtest.NewBackend()
	txm := newTxManager(t, backend, f.DBM)

	f.Submit(t, f.Alice, types.BridgeLLD, bridge.DepositCall{Amount: types.NewBalance(250), EthRecipient: ethBob})
	block := f.Produce(t, 1)
	id := types.SubstrateReceiptId(block.Hash, block.Events[0].Index, types.NewBalance(250), ethBob)
	backend.SetProcessed(lldContract, id)

	ns := syncer.NewNative(f.Node, syncer.NewCursor(f.DBM, "relay_s2e", 1), syncer.NativeFinalized, time.Millisecond)
	r := relay.NewSubstrateToEthereum(ns, newBridges(backend), txm, relay.RewardsConfig{})
	require.NoError(t, ns.SyncOnce(ctx, r.HandleBlock))
	require.NoError(t, txm.ProcessPending(ctx))
	assert.Empty(t, backend.Sent())
}

func TestClaimRewards(t *testing.T) {
	ctx := context.Background()
	f := chaintest.NewNode(t, chaintest.Options{VotesRequired: 2})
	backend := ethtest.NewBackend()
	txm := newTxManager(t, backend, f.DBM)
	bridges := newBridges(backend)

	backend.SetPendingRewards(llmContract, txm.From(), ethers(3))
	backend.SetPendingRewards(lldContract, txm.From(), big.NewInt(10))
	r := relay.NewSubstrateToEthereum(nil, bridges, txm, relay.RewardsConfig{ClaimThreshold: ether})
	for _, b := range bridges.All() {
		require.NoError(t, r.ClaimRewards(ctx, b))
	}
	require.NoError(t, txm.ProcessPending(ctx))
	require.Equal(t, []string{"claimReward"}, backend.SentMethods())
	assert.Equal(t, llmContract, *backend.Sent()[0].To())
}

func TestWithdrawRewards(t *testing.T) {
	ctx := context.Background()
	f := chaintest.NewNode(t, chaintest.Options{VotesRequired: 2})
	backend := ethtest.NewBackend()
	txm := newTxManager(t, backend, f.DBM)
	rewards := common.HexToAddress("0x000000000000000000000000000000000000beef")

	r := relay.NewSubstrateToEthereum(nil, newBridges(backend), txm, relay.RewardsConfig{
		Address:           rewards,
		MinimumBalance:    ethers(2),
		WithdrawThreshold: ethers(5),
	})

	backend.SetBalance(txm.From(), ethers(4))
	require.NoError(t, r.WithdrawRewards(ctx))
	require.NoError(t, txm.ProcessPending(ctx))
	assert.Empty(t, backend.Sent())

	backend.SetBalance(txm.From(), ethers(10))
	require.NoError(t, r.WithdrawRewards(ctx))
	require.NoError(t, txm.ProcessPending(ctx))
	require.Equal(t, []string{"transfer"}, backend.SentMethods())
	tx := backend.Sent()[0]
	assert.Equal(t, rewards, *tx.To())
	assert.Equal(t, ethers(8), tx.Value())
}

func newEthereumToSubstrate(t *testing.T, f *chaintest.Fixture, backend *ethtest.Backend, relayKey *types.Keypair) (*relay.EthereumToSubstrate, *syncer.Ethereum) {
	bridges := newBridges(backend)
	es := syncer.NewEthereum(backend, syncer.NewCursor(f.DBM, "relay_e2s", 1), bridges.Addresses(), abis.OutgoingReceiptTopic, true, 100, time.Millisecond)
	sender := chain.NewCallSender(relayKey, f.Node, 5*time.Millisecond)
	return relay.NewEthereumToSubstrate("relay_e2s", es, bridges, f.Node, sender, f.DBM), es
}

func TestEthereumToSubstrateVotes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	f := chaintest.NewNode(t, chaintest.Options{VotesRequired: 2})
	produceBlocks(t, f)
	backend := ethtest.NewBackend()
	bob := f.Bob.AccountId()

	l := backend.AddOutgoingReceipt(llmContract, 5, bob, big.NewInt(700))
	backend.SetHead(8, 6)
	id := types.EthReceiptId(l.BlockHash, uint64(l.Index), uint256.NewInt(700), bob)

	r, es := newEthereumToSubstrate(t, f, backend, f.Relays[0])
	require.NoError(t, es.SyncOnce(ctx, r.HandleLog))

	view, err := f.Node.IncomingReceipt(ctx, types.BridgeLLM, id)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, bridge.IncomingReceipt{EthBlockNumber: 5, SubstrateRecipient: bob, Amount: types.NewBalance(700)}, view.Receipt)
	assert.Equal(t, []types.AccountId{f.Relays[0].AccountId()}, view.Voters)
	assert.Equal(t, bridge.StatusVoting, view.Status.Kind)

	var call db.SubCall
	require.NoError(t, f.DBM.GetRelayDB().Where("receipt_id = ?", id.Hex()).First(&call).Error)
	assert.Equal(t, db.SUB_CALL_STATUS_FINISHED, call.Status)
	assert.Equal(t, "LLM", call.Bridge)
	assert.NotEmpty(t, call.ExtrinsicHash)

	// replaying the log does not vote twice
	require.NoError(t, r.HandleLog(ctx, l))
	var count int64
	require.NoError(t, f.DBM.GetChainDB().Model(&db.Extrinsic{}).Where("method = ?", "vote_withdraw").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEthereumToSubstrateSkipsOversizedAmount(t *testing.T) {
	ctx := context.Background()
	f := chaintest.NewNode(t, chaintest.Options{VotesRequired: 2})
	backend := ethtest.NewBackend()

	huge := new(big.Int).Lsh(big.NewInt(1), 130)
	backend.AddOutgoingReceipt(lldContract, 2, f.Bob.AccountId(), huge)
	backend.SetHead(3, 3)

	r, es := newEthereumToSubstrate(t, f, backend, f.Relays[0])
	require.NoError(t, es.SyncOnce(ctx, r.HandleLog))

	var count int64
	require.NoError(t, f.DBM.GetRelayDB().Model(&db.SubCall{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEthereumToSubstrateResumesPendingVotes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	f := chaintest.NewNode(t, chaintest.Options{VotesRequired: 2})
	produceBlocks(t, f)
	backend := ethtest.NewBackend()
	bob := f.Bob.AccountId()
	id := types.ReceiptId(types.Blake2b256([]byte("interrupted")))

	require.NoError(t, f.DBM.GetRelayDB().Create(&db.SubCall{
		TaskId:         "relay_e2s",
		ReceiptId:      id.Hex(),
		Bridge:         "LLD",
		EthBlockNumber: 9,
		Recipient:      bob.Hex(),
		Amount:         types.NewBalance(42),
		Status:         db.SUB_CALL_STATUS_PENDING,
		UpdatedAt:      time.Now(),
	}).Error)

	r, _ := newEthereumToSubstrate(t, f, backend, f.Relays[1])
	require.NoError(t, r.ResumePending(ctx))

	view, err := f.Node.IncomingReceipt(ctx, types.BridgeLLD, id)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, []types.AccountId{f.Relays[1].AccountId()}, view.Voters)

	var call db.SubCall
	require.NoError(t, f.DBM.GetRelayDB().Where("receipt_id = ?", id.Hex()).First(&call).Error)
	assert.Equal(t, db.SUB_CALL_STATUS_FINISHED, call.Status)
}

func TestEthereumToSubstrateRetriesVoteWhileStopped(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	f := chaintest.NewNode(t, chaintest.Options{VotesRequired: 2})
	f.Submit(t, f.Admin, types.BridgeLLM, bridge.SetStateCall{State: bridge.StateStopped})
	f.Produce(t, 1)
	produceBlocks(t, f)

	backend := ethtest.NewBackend()
	bob := f.Bob.AccountId()
	l := backend.AddOutgoingReceipt(llmContract, 5, bob, big.NewInt(300))
	backend.SetHead(8, 6)
	id := types.EthReceiptId(l.BlockHash, uint64(l.Index), uint256.NewInt(300), bob)

	r, es := newEthereumToSubstrate(t, f, backend, f.Relays[0])
	err := es.SyncOnce(ctx, r.HandleLog)
	require.ErrorIs(t, err, bridge.ErrBridgeStopped)

	var call db.SubCall
	require.NoError(t, f.DBM.GetRelayDB().Where("receipt_id = ?", id.Hex()).First(&call).Error)
	assert.Equal(t, db.SUB_CALL_STATUS_SUBMITTED, call.Status)

	admin := chain.NewCallSender(f.Admin, f.Node, 5*time.Millisecond)
	_, err = admin.Send(ctx, types.BridgeLLM, bridge.SetStateCall{State: bridge.StateActive})
	require.NoError(t, err)

	require.NoError(t, r.ResumePending(ctx))

	view, err := f.Node.IncomingReceipt(ctx, types.BridgeLLM, id)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, []types.AccountId{f.Relays[0].AccountId()}, view.Voters)

	require.NoError(t, f.DBM.GetRelayDB().Where("receipt_id = ?", id.Hex()).First(&call).Error)
	assert.Equal(t, db.SUB_CALL_STATUS_FINISHED, call.Status)

	// the cursor did not advance past the rejected log, a fresh sync skips the existing vote
	require.NoError(t, es.SyncOnce(ctx, r.HandleLog))
	var count int64
	require.NoError(t, f.DBM.GetChainDB().Model(&db.Extrinsic{}).Where("method = ?", "vote_withdraw").Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
