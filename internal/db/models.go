package db

import (
	"time"

	"github.com/liberland/federated-bridge/internal/types"
)

// BridgeInfo holds the scalar state of one bridge instance (one row per bridge)
type BridgeInfo struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	Bridge        string        `gorm:"not null;uniqueIndex" json:"bridge"`
	State         string        `gorm:"not null" json:"state"`
	VotesRequired uint32        `gorm:"not null" json:"votes_required"`
	Fee           types.Balance `gorm:"not null" json:"fee"`
	Admin         string        `json:"admin"`
	SuperAdmin    string        `json:"super_admin"`
	CounterAmount types.Balance `gorm:"not null" json:"counter_amount"`
	CounterBlock  uint64        `gorm:"not null" json:"counter_block"`
	UpdatedAt     time.Time     `gorm:"not null" json:"updated_at"`
}

// BridgeMember is a relay or watcher, ordered by ID
type BridgeMember struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Bridge  string `gorm:"not null;index:idx_member,unique" json:"bridge"`
	Role    string `gorm:"not null;index:idx_member,unique" json:"role"`
	Account string `gorm:"not null;index:idx_member,unique" json:"account"`
}

// IncomingReceipt is an Ethereum to native receipt and its status
type IncomingReceipt struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	Bridge         string        `gorm:"not null;uniqueIndex:idx_receipt" json:"bridge"`
	ReceiptId      string        `gorm:"not null;uniqueIndex:idx_receipt" json:"receipt_id"`
	EthBlockNumber uint64        `gorm:"not null" json:"eth_block_number"`
	Recipient      string        `gorm:"not null" json:"recipient"`
	Amount         types.Balance `gorm:"not null" json:"amount"`
	Status         string        `gorm:"not null" json:"status"`
	StatusBlock    uint64        `gorm:"not null" json:"status_block"`
	UpdatedAt      time.Time     `gorm:"not null" json:"updated_at"`
}

// ReceiptVote is one relay vote, ordered by ID
type ReceiptVote struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Bridge    string `gorm:"not null;uniqueIndex:idx_vote" json:"bridge"`
	ReceiptId string `gorm:"not null;uniqueIndex:idx_vote" json:"receipt_id"`
	Relay     string `gorm:"not null;uniqueIndex:idx_vote" json:"relay"`
}

// Balance is the free balance of an account in one asset
type Balance struct {
	ID      uint          `gorm:"primaryKey" json:"id"`
	Asset   string        `gorm:"not null;uniqueIndex:idx_balance" json:"asset"`
	Account string        `gorm:"not null;uniqueIndex:idx_balance" json:"account"`
	Free    types.Balance `gorm:"not null" json:"free"`
}

// Block is a produced native block
type Block struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Number         uint64    `gorm:"not null;uniqueIndex" json:"number"`
	Hash           string    `gorm:"not null;uniqueIndex" json:"hash"`
	ParentHash     string    `gorm:"not null" json:"parent_hash"`
	ExtrinsicsRoot string    `gorm:"not null" json:"extrinsics_root"`
	Timestamp      time.Time `gorm:"not null" json:"timestamp"`
}

// ChainEvent is a bridge event deposited in a block, Index is unique per block
type ChainEvent struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	BlockNumber    uint64 `gorm:"not null;uniqueIndex:idx_event" json:"block_number"`
	Index          uint32 `gorm:"not null;uniqueIndex:idx_event" json:"index"`
	ExtrinsicIndex uint32 `gorm:"not null" json:"extrinsic_index"`
	Bridge         string `gorm:"not null" json:"bridge"`
	Kind           string `gorm:"not null" json:"kind"`
	Payload        string `gorm:"not null" json:"payload"`
}

// Extrinsic is the journal of submitted calls and their results
type Extrinsic struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Hash        string    `gorm:"not null;uniqueIndex" json:"hash"`
	Nonce       string    `gorm:"not null;uniqueIndex" json:"nonce"`
	Signer      string    `gorm:"not null" json:"signer"`
	Bridge      string    `gorm:"not null" json:"bridge"`
	Method      string    `gorm:"not null" json:"method"`
	Payload     string    `gorm:"not null" json:"payload"`
	BlockNumber uint64    `gorm:"not null;index" json:"block_number"`
	Index       uint32    `gorm:"not null" json:"index"`
	Status      string    `gorm:"not null" json:"status"` // success, failed
	Outcome     string    `json:"outcome"`
	Error       string    `json:"error"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

// SyncStatus is a per task synced block cursor
type SyncStatus struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TaskId        string    `gorm:"not null;uniqueIndex" json:"task_id"`
	LastSyncBlock uint64    `gorm:"not null" json:"last_sync_block"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

// Network pins the genesis hash of a chain the daemon talks to
type Network struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null;uniqueIndex" json:"name"`
	GenesisHash string    `gorm:"not null" json:"genesis_hash"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

// SubCall is a native vote_withdraw the relay still has to confirm
type SubCall struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	TaskId         string        `gorm:"not null;uniqueIndex:idx_sub_call" json:"task_id"`
	ReceiptId      string        `gorm:"not null;uniqueIndex:idx_sub_call" json:"receipt_id"`
	Bridge         string        `gorm:"not null" json:"bridge"`
	EthBlockNumber uint64        `gorm:"not null" json:"eth_block_number"`
	Recipient      string        `gorm:"not null" json:"recipient"`
	Amount         types.Balance `gorm:"not null" json:"amount"`
	Status         string        `gorm:"not null" json:"status"`
	ExtrinsicHash  string        `json:"extrinsic_hash"`
	UpdatedAt      time.Time     `gorm:"not null" json:"updated_at"`
}

// EthTx journals transactions sent by the Ethereum tx manager
type EthTx struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CallId    string    `gorm:"not null;uniqueIndex" json:"call_id"`
	Sender    string    `gorm:"not null" json:"sender"`
	To        string    `gorm:"not null" json:"to"`
	Method    string    `gorm:"not null" json:"method"`
	Data      string    `json:"data"`
	Value     string    `json:"value"`
	TxHashes  string    `json:"tx_hashes"` // comma separated, newest last
	Nonce     uint64    `json:"nonce"`
	GasFeeCap string    `json:"gas_fee_cap"`
	GasTipCap string    `json:"gas_tip_cap"`
	Status    string    `gorm:"not null" json:"status"`
	Error     string    `json:"error"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
