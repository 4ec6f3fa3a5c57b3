package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/liberland/federated-bridge/internal/chain"
	"github.com/liberland/federated-bridge/internal/types"
)

// NodeClient talks to a node's HTTP API
type NodeClient struct {
	baseURL string
	client  *http.Client
}

var (
	_ chain.Reader    = (*NodeClient)(nil)
	_ chain.Submitter = (*NodeClient)(nil)
)

var errNotFound = errors.New("not found")

func NewNodeClient(baseURL string) *NodeClient {
	return &NodeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func codeError(code, msg string) error {
	var sentinel error
	switch code {
	case CodeInvalidExtrinsic:
		sentinel = chain.ErrInvalidExtrinsic
	case CodeDuplicateNonce:
		sentinel = chain.ErrDuplicateNonce
	case CodePoolFull:
		sentinel = chain.ErrPoolFull
	case CodeUnknownBridge:
		sentinel = chain.ErrUnknownBridge
	case CodeBlockNotFound:
		sentinel = chain.ErrBlockNotFound
	case CodeExtrinsicNotFound:
		sentinel = chain.ErrExtrinsicNotFound
	case CodeNoGenesis:
		sentinel = chain.ErrNoGenesis
	case CodeNotFound:
		sentinel = errNotFound
	default:
		return fmt.Errorf("node error %s: %s", code, msg)
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}

func (nc *NodeClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, nc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := nc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decode response (HTTP %d): %w", method, path, resp.StatusCode, err)
	}
	if env.Status != "ok" {
		return codeError(env.Code, env.Error)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (nc *NodeClient) Head(ctx context.Context) (*chain.HeadView, error) {
	var head chain.HeadView
	if err := nc.do(ctx, http.MethodGet, "/api/v1/chain/head", nil, &head); err != nil {
		return nil, err
	}
	return &head, nil
}

func (nc *NodeClient) GenesisHash(ctx context.Context) (types.Hash, error) {
	head, err := nc.Head(ctx)
	if err != nil {
		return types.Hash{}, err
	}
	return head.GenesisHash, nil
}

func (nc *NodeClient) BestNumber(ctx context.Context) (uint64, error) {
	head, err := nc.Head(ctx)
	if err != nil {
		return 0, err
	}
	return head.BestNumber, nil
}

func (nc *NodeClient) FinalizedNumber(ctx context.Context) (uint64, error) {
	head, err := nc.Head(ctx)
	if err != nil {
		return 0, err
	}
	return head.FinalizedNumber, nil
}

func (nc *NodeClient) Block(ctx context.Context, number uint64) (*chain.BlockView, error) {
	var block chain.BlockView
	if err := nc.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/chain/blocks/%d", number), nil, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

func (nc *NodeClient) BlockHash(ctx context.Context, number uint64) (types.Hash, error) {
	block, err := nc.Block(ctx, number)
	if err != nil {
		return types.Hash{}, err
	}
	return block.Hash, nil
}

func (nc *NodeClient) Events(ctx context.Context, blockHash types.Hash) ([]chain.EventRecord, error) {
	var events []chain.EventRecord
	if err := nc.do(ctx, http.MethodGet, "/api/v1/chain/hashes/"+blockHash.Hex()+"/events", nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (nc *NodeClient) IncomingReceipt(ctx context.Context, bridgeId types.BridgeId, id types.ReceiptId) (*chain.ReceiptView, error) {
	var view chain.ReceiptView
	err := nc.do(ctx, http.MethodGet, "/api/v1/bridges/"+bridgeId.String()+"/receipts/"+id.Hex(), nil, &view)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (nc *NodeClient) Bridge(ctx context.Context, bridgeId types.BridgeId) (*chain.BridgeView, error) {
	var view chain.BridgeView
	if err := nc.do(ctx, http.MethodGet, "/api/v1/bridges/"+bridgeId.String(), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (nc *NodeClient) Balance(ctx context.Context, asset types.BridgeId, account types.AccountId) (types.Balance, error) {
	var resp BalanceResponse
	if err := nc.do(ctx, http.MethodGet, "/api/v1/balances/"+asset.String()+"/"+account.Hex(), nil, &resp); err != nil {
		return types.ZeroBalance, err
	}
	return types.ParseBalance(resp.Free)
}

func (nc *NodeClient) SubmitExtrinsic(ctx context.Context, raw string) (types.Hash, error) {
	var resp SubmitExtrinsicResponse
	if err := nc.do(ctx, http.MethodPost, "/api/v1/extrinsics", SubmitExtrinsicRequest{Extrinsic: raw}, &resp); err != nil {
		return types.Hash{}, err
	}
	return types.ParseHash(resp.Hash)
}

func (nc *NodeClient) ExtrinsicStatus(ctx context.Context, hash types.Hash) (*chain.ExtrinsicStatus, error) {
	var status chain.ExtrinsicStatus
	if err := nc.do(ctx, http.MethodGet, "/api/v1/extrinsics/"+hash.Hex(), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
