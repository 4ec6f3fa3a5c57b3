package watcher_test

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
	"github.com/liberland/federated-bridge/internal/ethereum"
	"github.com/liberland/federated-bridge/internal/ethereum/ethtest"
	"github.com/liberland/federated-bridge/internal/syncer"
	"github.com/liberland/federated-bridge/internal/types"
	"github.com/liberland/federated-bridge/internal/watcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	llmContract = common.HexToAddress("0x00000000000000000000000000000000000011a1")
	lldContract = common.HexToAddress("0x00000000000000000000000000000000000011a2")
	ethBob      = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	ethRelay    = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

type harness struct {
	f       *chaintest.Fixture
	backend *ethtest.Backend
	bridges *ethereum.Bridges
	txm     *ethereum.TxManager
	stopper *watcher.Stopper
}

func newHarness(t *testing.T) *harness {
	f := chaintest.NewNode(t, chaintest.Options{VotesRequired: 2})
	backend := ethtest.NewBackend()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	txm := ethereum.NewTxManager(backend, key, f.DBM, ethereum.TxManagerConfig{PollInterval: 5 * time.Millisecond})
	sender := chain.NewCallSender(f.Watchers[0], f.Node, 5*time.Millisecond)
	return &harness{
		f:       f,
		backend: backend,
		bridges: ethereum.NewBridges(backend, map[types.BridgeId]common.Address{types.BridgeLLM: llmContract, types.BridgeLLD: lldContract}),
		txm:     txm,
		stopper: watcher.NewStopper(txm, sender),
	}
}

// produceBlocks mints native blocks in the background until the test ends.
func (h *harness) produceBlocks(t *testing.T) {
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
				_, _ = h.f.Node.ProduceBlock()
			}
		}
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
}

func (h *harness) nativeState(t *testing.T, id types.BridgeId) bridge.BridgeState {
	view, err := h.f.Node.Bridge(context.Background(), id)
	require.NoError(t, err)
	return view.State
}

func TestSubstrateToEthereumWatcher(t *testing.T) {
	tests := []struct {
		name     string
		contract common.Address
		forge    func(id types.ReceiptId, block uint64) (types.ReceiptId, uint64)
		slack    uint64
		stopped  bool
	}{
		{
			name:     "valid vote",
			contract: llmContract,
			forge:    func(id types.ReceiptId, block uint64) (types.ReceiptId, uint64) { return id, block },
		},
		{
			name:     "unknown receipt",
			contract: llmContract,
			forge: func(id types.ReceiptId, block uint64) (types.ReceiptId, uint64) {
				return types.ReceiptId(types.Blake2b256([]byte("forged"))), block
			},
			stopped: true,
		},
		{
			name:     "receipt of the other bridge",
			contract: lldContract,
			forge:    func(id types.ReceiptId, block uint64) (types.ReceiptId, uint64) { return id, block },
			stopped:  true,
		},
		{
			name:     "block beyond slack",
			contract: llmContract,
			forge:    func(id types.ReceiptId, block uint64) (types.ReceiptId, uint64) { return id, block + 100 },
			stopped:  true,
		},
		{
			name:     "block not produced yet",
			contract: llmContract,
			forge:    func(id types.ReceiptId, block uint64) (types.ReceiptId, uint64) { return id, block + 500_000 },
			slack:    1_000_000,
			stopped:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			h := newHarness(t)

			h.f.Submit(t, h.f.Alice, types.BridgeLLM, bridge.DepositCall{Amount: types.NewBalance(1_000), EthRecipient: ethBob})
			block := h.f.Produce(t, 1)
			id := types.SubstrateReceiptId(block.Hash, block.Events[0].Index, types.NewBalance(1_000), ethBob)
			h.produceBlocks(t)

			voteId, voteBlock := tt.forge(id, block.Number)
			l := h.backend.AddVote(tt.contract, 10, voteId, ethRelay, voteBlock)
			slack := tt.slack
			if slack == 0 {
				slack = 10
			}
			w := watcher.NewSubstrateToEthereum(nil, h.bridges, h.f.Node, h.stopper, slack)

			err := w.ProcessLog(ctx, l)
			require.NoError(t, err)
			require.NoError(t, h.txm.ProcessPending(ctx))

			stoppedId := types.BridgeLLM
			if tt.contract == lldContract {
				stoppedId = types.BridgeLLD
			}
			assert.Equal(t, tt.stopped, h.backend.Stopped(tt.contract))
			if tt.stopped {
				assert.Equal(t, bridge.StateStopped, h.nativeState(t, stoppedId))
				assert.Equal(t, []string{"emergencyStop"}, h.backend.SentMethods())
			} else {
				assert.Equal(t, bridge.StateActive, h.nativeState(t, stoppedId))
				assert.Empty(t, h.backend.Sent())
			}
		})
	}
}

func TestEthereumToSubstrateWatcher(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h := newHarness(t)
	bob := h.f.Bob.AccountId()

	l := h.backend.AddOutgoingReceipt(llmContract, 5, bob, big.NewInt(700))
	honest := types.EthReceiptId(l.BlockHash, uint64(l.Index), uint256.NewInt(700), bob)
	h.f.Submit(t, h.f.Relays[0], types.BridgeLLM, bridge.VoteWithdrawCall{
		ReceiptId: honest,
		Receipt:   bridge.IncomingReceipt{EthBlockNumber: 5, SubstrateRecipient: bob, Amount: types.NewBalance(700)},
	})

	// LLD has no contract receipt in block 5, and the amount is inflated
	forged := types.EthReceiptId(l.BlockHash, uint64(l.Index), uint256.NewInt(900), bob)
	h.f.Submit(t, h.f.Relays[1], types.BridgeLLD, bridge.VoteWithdrawCall{
		ReceiptId: forged,
		Receipt:   bridge.IncomingReceipt{EthBlockNumber: 5, SubstrateRecipient: bob, Amount: types.NewBalance(900)},
	})
	h.f.Produce(t, 1)
	h.produceBlocks(t)

	ns := syncer.NewNative(h.f.Node, syncer.NewCursor(h.f.DBM, "watcher_e2s", 1), syncer.NativeBest, time.Millisecond)
	w := watcher.NewEthereumToSubstrate(ns, h.backend, h.bridges, h.f.Node, h.stopper)
	require.NoError(t, ns.SyncOnce(ctx, w.HandleBlock))
	require.NoError(t, h.txm.ProcessPending(ctx))

	assert.False(t, h.backend.Stopped(llmContract))
	assert.True(t, h.backend.Stopped(lldContract))
	assert.Equal(t, bridge.StateActive, h.nativeState(t, types.BridgeLLM))
	assert.Equal(t, bridge.StateStopped, h.nativeState(t, types.BridgeLLD))
}

func TestEthereumToSubstrateWatcherChecksReceiptBody(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h := newHarness(t)
	bob := h.f.Bob.AccountId()

	// the id matches the contract log but the voted recipient does not
	l := h.backend.AddOutgoingReceipt(llmContract, 7, bob, big.NewInt(500))
	id := types.EthReceiptId(l.BlockHash, uint64(l.Index), uint256.NewInt(500), bob)
	h.f.Submit(t, h.f.Relays[0], types.BridgeLLM, bridge.VoteWithdrawCall{
		ReceiptId: id,
		Receipt:   bridge.IncomingReceipt{EthBlockNumber: 7, SubstrateRecipient: h.f.Alice.AccountId(), Amount: types.NewBalance(500)},
	})
	h.f.Produce(t, 1)
	h.produceBlocks(t)

	ns := syncer.NewNative(h.f.Node, syncer.NewCursor(h.f.DBM, "watcher_e2s", 1), syncer.NativeBest, time.Millisecond)
	w := watcher.NewEthereumToSubstrate(ns, h.backend, h.bridges, h.f.Node, h.stopper)
	require.NoError(t, ns.SyncOnce(ctx, w.HandleBlock))
	require.NoError(t, h.txm.ProcessPending(ctx))

	assert.True(t, h.backend.Stopped(llmContract))
	assert.Equal(t, bridge.StateStopped, h.nativeState(t, types.BridgeLLM))
}

func TestEmergencyStopReportsBothFailures(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h := newHarness(t)
	h.backend.RevertOn("emergencyStop", "Unauthorized")

	// a relay key is not a watcher, the native stop fails too
	sender := chain.NewCallSender(h.f.Relays[0], h.f.Node, 5*time.Millisecond)
	stopper := watcher.NewStopper(h.txm, sender)
	h.produceBlocks(t)

	b, err := h.bridges.Get(types.BridgeLLM)
	require.NoError(t, err)
	err = stopper.EmergencyStop(ctx, b, "test")
	require.Error(t, err)
	assert.True(t, ethereum.IsRevert(err, "Unauthorized"))
	assert.ErrorIs(t, err, chain.ErrExtrinsicFailed)
	assert.Equal(t, bridge.StateActive, h.nativeState(t, types.BridgeLLM))
}
