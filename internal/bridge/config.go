package bridge

import "github.com/liberland/federated-bridge/internal/types"

// RateLimit bounds withdrawals: the counter may never exceed MaxBurst and
// drains by Decay per block.
type RateLimit struct {
	MaxBurst types.Balance
	Decay    types.Balance
}

type Config struct {
	PalletId            [8]byte
	MaxRelays           uint32
	MaxWatchers         uint32
	MaxTotalLocked      types.Balance
	WithdrawalDelay     uint64
	WithdrawalRateLimit RateLimit
	ForceOrigin         EnsureOrigin
}

// AccountId is the bridge wallet: "modl" ‖ pallet id, zero padded.
func (c Config) AccountId() types.AccountId {
	var acc types.AccountId
	copy(acc[:4], "modl")
	copy(acc[4:12], c.PalletId[:])
	return acc
}

// PalletIdFromString right-pads or truncates s to 8 bytes.
func PalletIdFromString(s string) [8]byte {
	var id [8]byte
	copy(id[:], s)
	return id
}
