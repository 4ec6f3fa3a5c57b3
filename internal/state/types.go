package state

import (
	"github.com/liberland/federated-bridge/internal/types"
)

// ChainHead is the node's view of its best and finalized blocks
type ChainHead struct {
	GenesisHash     types.Hash
	BestNumber      uint64
	BestHash        types.Hash
	FinalizedNumber uint64
}

// BlockNotification is published on BlockImported and BlockFinalized
type BlockNotification struct {
	Number uint64
	Hash   types.Hash
}
