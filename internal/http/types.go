package http

import "encoding/json"

const (
	CodeInvalidRequest    = "invalid_request"
	CodeInvalidExtrinsic  = "invalid_extrinsic"
	CodeDuplicateNonce    = "duplicate_nonce"
	CodePoolFull          = "pool_full"
	CodeUnknownBridge     = "unknown_bridge"
	CodeBlockNotFound     = "block_not_found"
	CodeExtrinsicNotFound = "extrinsic_not_found"
	CodeNotFound          = "not_found"
	CodeNoGenesis         = "no_genesis"
	CodeInternal          = "internal"
)

// SubmitExtrinsicRequest carries a signed extrinsic token
type SubmitExtrinsicRequest struct {
	Extrinsic string `json:"extrinsic" binding:"required"`
}

type SubmitExtrinsicResponse struct {
	Hash string `json:"hash"`
}

type BalanceResponse struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Free    string `json:"free"`
}

// envelope is the body of every API response
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Code   string          `json:"code,omitempty"`
	Error  string          `json:"error,omitempty"`
}
