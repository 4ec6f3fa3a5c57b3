package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/liberland/federated-bridge/internal/bridge"
	"github.com/liberland/federated-bridge/internal/chain"
	"github.com/liberland/federated-bridge/internal/chain/chaintest"
	"github.com/liberland/federated-bridge/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) (*chaintest.Fixture, *NodeClient) {
	f := chaintest.NewNode(t, chaintest.Options{VotesRequired: 2})
	ts := httptest.NewServer(NewHTTPServer(f.Node).Handler())
	t.Cleanup(ts.Close)
	return f, NewNodeClient(ts.URL + "/")
}

func TestClientSubmitsAndReadsBlocks(t *testing.T) {
	f, client := setupServer(t)
	ctx := context.Background()
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000e1")

	raw, err := chain.SignExtrinsic(f.Alice, types.BridgeLLM, bridge.DepositCall{Amount: types.NewBalance(700), EthRecipient: recipient}, false)
	require.NoError(t, err)
	hash, err := client.SubmitExtrinsic(ctx, raw)
	require.NoError(t, err)

	status, err := client.ExtrinsicStatus(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, chain.ExtrinsicPending, status.Status)

	_, err = client.SubmitExtrinsic(ctx, raw)
	assert.ErrorIs(t, err, chain.ErrDuplicateNonce)

	produced := f.Produce(t, 1)

	head, err := client.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), head.BestNumber)
	assert.Equal(t, produced.Hash, head.BestHash)

	best, err := client.BestNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), best)

	blockHash, err := client.BlockHash(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, produced.Hash, blockHash)

	events, err := client.Events(ctx, blockHash)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, bridge.OutgoingReceiptEvent{Amount: types.NewBalance(700), EthRecipient: recipient}, events[0].Event)

	status, err = client.ExtrinsicStatus(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, chain.ExtrinsicSuccess, status.Status)

	balance, err := client.Balance(ctx, types.BridgeLLM, f.Alice.AccountId())
	require.NoError(t, err)
	assert.Equal(t, types.NewBalance(999_300), balance)

	_, err = client.BlockHash(ctx, 42)
	assert.ErrorIs(t, err, chain.ErrBlockNotFound)
}

func TestClientReadsReceiptsAndBridge(t *testing.T) {
	f, client := setupServer(t)
	ctx := context.Background()
	id := types.ReceiptId(types.Blake2b256([]byte("receipt")))
	receipt := bridge.IncomingReceipt{EthBlockNumber: 9, SubstrateRecipient: f.Bob.AccountId(), Amount: types.NewBalance(50)}

	view, err := client.IncomingReceipt(ctx, types.BridgeLLD, id)
	require.NoError(t, err)
	assert.Nil(t, view)

	sender := chain.NewCallSender(f.Relays[0], client, 0)
	hash, err := sender.Submit(ctx, types.BridgeLLD, bridge.VoteWithdrawCall{ReceiptId: id, Receipt: receipt})
	require.NoError(t, err)
	f.Produce(t, 1)
	status, err := sender.Wait(ctx, hash)
	require.NoError(t, err)
	require.NoError(t, status.Failed())

	view, err = client.IncomingReceipt(ctx, types.BridgeLLD, id)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, receipt, view.Receipt)
	assert.Equal(t, []types.AccountId{f.Relays[0].AccountId()}, view.Voters)
	assert.Equal(t, bridge.Voting, view.Status)

	info, err := client.Bridge(ctx, types.BridgeLLD)
	require.NoError(t, err)
	assert.Equal(t, bridge.StateActive, info.State)
	assert.Equal(t, uint32(2), info.VotesRequired)
	assert.Len(t, info.Relays, 3)
}

func TestServerRejectsBadRequests(t *testing.T) {
	f, _ := setupServer(t)
	handler := NewHTTPServer(f.Node).Handler()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"missing body", http.MethodPost, "/api/v1/extrinsics", `{}`, http.StatusBadRequest, CodeInvalidRequest},
		{"garbage extrinsic", http.MethodPost, "/api/v1/extrinsics", `{"extrinsic":"not-a-token"}`, http.StatusBadRequest, CodeInvalidExtrinsic},
		{"bad block number", http.MethodGet, "/api/v1/chain/blocks/abc", "", http.StatusBadRequest, CodeInvalidRequest},
		{"unknown bridge", http.MethodGet, "/api/v1/bridges/XYZ", "", http.StatusNotFound, CodeUnknownBridge},
		{"bad receipt id", http.MethodGet, "/api/v1/bridges/LLM/receipts/zz", "", http.StatusBadRequest, CodeInvalidRequest},
		{"unknown extrinsic", http.MethodGet, "/api/v1/extrinsics/" + types.Hash{1}.Hex(), "", http.StatusNotFound, CodeExtrinsicNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"`+tt.code+`"`)
		})
	}
}
