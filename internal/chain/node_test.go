package chain_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/liberland/federated-bridge/internal/bridge"
	"github.com/liberland/federated-bridge/internal/chain"
	"github.com/liberland/federated-bridge/internal/chain/chaintest"
	"github.com/liberland/federated-bridge/internal/state"
	"github.com/liberland/federated-bridge/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduceBlockAppliesExtrinsics(t *testing.T) {
	f := chaintest.NewNode(t, chaintest.Options{VotesRequired: 2})
	ctx := context.Background()
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000e1")

	hash := f.Submit(t, f.Alice, types.BridgeLLM, bridge.DepositCall{Amount: types.NewBalance(1_000), EthRecipient: recipient})
	status, err := f.Node.ExtrinsicStatus(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, chain.ExtrinsicPending, status.Status)

	genesis, err := f.Node.BlockHash(ctx, 0)
	require.NoError(t, err)
	block := f.Produce(t, 1)
	assert.Equal(t, uint64(1), block.Number)
	assert.Equal(t, genesis, block.ParentHash)
	assert.Equal(t, chain.BlockHash(genesis, 1, block.ExtrinsicsRoot), block.Hash)

	require.Len(t, block.Events, 1)
	assert.Equal(t, types.BridgeLLM, block.Events[0].Bridge)
	assert.Equal(t, bridge.OutgoingReceiptEvent{Amount: types.NewBalance(1_000), EthRecipient: recipient}, block.Events[0].Event)

	events, err := f.Node.Events(ctx, block.Hash)
	require.NoError(t, err)
	assert.Equal(t, block.Events, events)

	status, err = f.Node.ExtrinsicStatus(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, chain.ExtrinsicSuccess, status.Status)
	assert.Equal(t, uint64(1), status.BlockNumber)
	assert.NoError(t, status.Failed())

	view, err := f.Node.Bridge(ctx, types.BridgeLLM)
	require.NoError(t, err)
	assert.Equal(t, types.NewBalance(501_000), view.Locked)
}

func TestFailedExtrinsicLeavesNoState(t *testing.T) {
	f := chaintest.NewNode(t, chaintest.Options{VotesRequired: 1})
	ctx := context.Background()

	// pushes the bridge wallet over its lock limit
	hash := f.Submit(t, f.Alice, types.BridgeLLD, bridge.DepositCall{Amount: types.NewBalance(500_001), EthRecipient: common.Address{}})
	ok := f.Submit(t, f.Bob, types.BridgeLLD, bridge.DepositCall{Amount: types.NewBalance(5), EthRecipient: common.Address{}})
	block := f.Produce(t, 1)

	status, err := f.Node.ExtrinsicStatus(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, chain.ExtrinsicFailed, status.Status)
	assert.ErrorIs(t, status.Failed(), chain.ErrExtrinsicFailed)
	assert.ErrorIs(t, status.Failed(), bridge.ErrTooMuchLocked)
	assert.Contains(t, status.Error, "TooMuchLocked")

	status, err = f.Node.ExtrinsicStatus(ctx, ok)
	require.NoError(t, err)
	assert.Equal(t, chain.ExtrinsicSuccess, status.Status)
	assert.Equal(t, uint32(1), status.Index)

	require.Len(t, block.Events, 1)
	assert.Equal(t, uint32(1), block.Events[0].ExtrinsicIndex)

	balance, err := f.Node.Balance(ctx, "LLD", f.Alice.AccountId())
	require.NoError(t, err)
	assert.Equal(t, types.NewBalance(1_000_000), balance)
}

func TestVoteMismatchOutcomeIsJournaled(t *testing.T) {
	f := chaintest.NewNode(t, chaintest.Options{VotesRequired: 2})
	ctx := context.Background()
	id := types.ReceiptId{0xaa}
	receipt := bridge.IncomingReceipt{EthBlockNumber: 10, SubstrateRecipient: f.Bob.AccountId(), Amount: types.NewBalance(10)}
	forged := receipt
	forged.Amount = types.NewBalance(11)

	f.Submit(t, f.Relays[0], types.BridgeLLM, bridge.VoteWithdrawCall{ReceiptId: id, Receipt: receipt})
	halt := f.Submit(t, f.Relays[1], types.BridgeLLM, bridge.VoteWithdrawCall{ReceiptId: id, Receipt: forged})
	f.Produce(t, 1)

	status, err := f.Node.ExtrinsicStatus(ctx, halt)
	require.NoError(t, err)
	assert.Equal(t, chain.ExtrinsicSuccess, status.Status)
	assert.Equal(t, bridge.AppliedWithHalt.String(), status.Outcome)

	view, err := f.Node.Bridge(ctx, types.BridgeLLM)
	require.NoError(t, err)
	assert.Equal(t, bridge.StateStopped, view.State)

	// the other instance is unaffected
	view, err = f.Node.Bridge(ctx, types.BridgeLLD)
	require.NoError(t, err)
	assert.Equal(t, bridge.StateActive, view.State)

	rv, err := f.Node.IncomingReceipt(ctx, types.BridgeLLM, id)
	require.NoError(t, err)
	assert.Equal(t, receipt, rv.Receipt)
	assert.Equal(t, []types.AccountId{f.Relays[0].AccountId()}, rv.Voters)
}

func TestReplayedExtrinsicRejected(t *testing.T) {
	f := chaintest.NewNode(t, chaintest.Options{VotesRequired: 1})
	raw, err := chain.SignExtrinsic(f.Alice, types.BridgeLLM, bridge.DepositCall{Amount: types.NewBalance(1)}, false)
	require.NoError(t, err)

	_, err = f.Node.SubmitExtrinsic(context.Background(), raw)
	require.NoError(t, err)
	_, err = f.Node.SubmitExtrinsic(context.Background(), raw)
	assert.ErrorIs(t, err, chain.ErrDuplicateNonce)

	f.Produce(t, 1)
	_, err = f.Node.SubmitExtrinsic(context.Background(), raw)
	assert.ErrorIs(t, err, chain.ErrDuplicateNonce)
}

func TestTamperedExtrinsicRejected(t *testing.T) {
	f := chaintest.NewNode(t, chaintest.Options{VotesRequired: 1})
	raw, err := chain.SignExtrinsic(f.Alice, types.BridgeLLM, bridge.DepositCall{Amount: types.NewBalance(1)}, false)
	require.NoError(t, err)

	_, err = f.Node.SubmitExtrinsic(context.Background(), raw[:len(raw)-4]+"AAAA")
	assert.ErrorIs(t, err, chain.ErrInvalidExtrinsic)
}

func TestSudoDispatchesAsRoot(t *testing.T) {
	f := chaintest.NewNode(t, chaintest.Options{VotesRequired: 1})
	ctx := context.Background()
	carol := types.AccountId{0xc}

	raw, err := chain.SignExtrinsic(f.Alice, types.BridgeLLD, bridge.SetSuperAdminCall{SuperAdmin: carol}, true)
	require.NoError(t, err)
	rejected, err := f.Node.SubmitExtrinsic(ctx, raw)
	require.NoError(t, err)

	raw, err = chain.SignExtrinsic(f.Sudo, types.BridgeLLD, bridge.SetSuperAdminCall{SuperAdmin: carol}, true)
	require.NoError(t, err)
	accepted, err := f.Node.SubmitExtrinsic(ctx, raw)
	require.NoError(t, err)
	f.Produce(t, 1)

	status, err := f.Node.ExtrinsicStatus(ctx, rejected)
	require.NoError(t, err)
	assert.Equal(t, chain.ExtrinsicFailed, status.Status)
	status, err = f.Node.ExtrinsicStatus(ctx, accepted)
	require.NoError(t, err)
	assert.Equal(t, chain.ExtrinsicSuccess, status.Status)

	view, err := f.Node.Bridge(ctx, types.BridgeLLD)
	require.NoError(t, err)
	assert.Equal(t, carol, *view.SuperAdmin)
}

func TestFinalizedHeight(t *testing.T) {
	f := chaintest.NewNode(t, chaintest.Options{FinalityDepth: 3})
	ctx := context.Background()
	finalized := make(chan interface{}, 10)
	f.State.EventBus.Subscribe(state.BlockFinalized, finalized)

	f.Produce(t, 2)
	n, err := f.Node.FinalizedNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	f.Produce(t, 3)
	n, err = f.Node.FinalizedNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	best, err := f.Node.BestNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), best)
	assert.Len(t, finalized, 2)

	_, err = f.Node.BlockHash(ctx, 6)
	assert.ErrorIs(t, err, chain.ErrBlockNotFound)
	_, err = f.Node.Events(ctx, types.Hash{1})
	assert.ErrorIs(t, err, chain.ErrBlockNotFound)
}

func TestCallSender(t *testing.T) {
	f := chaintest.NewNode(t, chaintest.Options{VotesRequired: 1})
	ctx := context.Background()
	sender := chain.NewCallSender(f.Watchers[0], f.Node, 0)

	hash, err := sender.Submit(ctx, types.BridgeLLM, bridge.EmergencyStopCall{})
	require.NoError(t, err)
	f.Produce(t, 1)
	status, err := sender.Wait(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, chain.ExtrinsicSuccess, status.Status)

	// a second watcher call from a non-watcher fails
	stranger := chain.NewCallSender(f.Alice, f.Node, 0)
	hash, err = stranger.Submit(ctx, types.BridgeLLM, bridge.EmergencyStopCall{})
	require.NoError(t, err)
	f.Produce(t, 1)
	_, err = stranger.Wait(ctx, hash)
	assert.ErrorIs(t, err, chain.ErrExtrinsicFailed)
}

func TestLoadGenesis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")
	relay := types.AccountId{1}
	content := `{
  "bridges": {
    "llm": {"relays": ["` + relay.Hex() + `"], "watchers": [], "votes_required": 1, "fee": "5", "state": "Active"}
  },
  "endowments": [{"asset": "lld", "account": "` + relay.Hex() + `", "amount": "100"}]
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	g, err := chain.LoadGenesis(path)
	require.NoError(t, err)
	require.Contains(t, g.Bridges, types.BridgeLLM)
	assert.Equal(t, []types.AccountId{relay}, g.Bridges[types.BridgeLLM].Relays)
	assert.Equal(t, bridge.StateActive, g.Bridges[types.BridgeLLM].State)
	assert.Equal(t, types.NewBalance(5), g.Bridges[types.BridgeLLM].Fee)
	require.Len(t, g.Endowments, 1)
	assert.Equal(t, "LLD", g.Endowments[0].Asset)
}
