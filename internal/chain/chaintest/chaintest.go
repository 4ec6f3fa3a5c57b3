// Package chaintest builds in-process nodes backed by a temporary database.
package chaintest

import (
	"fmt"
	"testing"
	"time"

	"github.com/liberland/federated-bridge/internal/bridge"
	"github.com/liberland/federated-bridge/internal/chain"
	"github.com/liberland/federated-bridge/internal/config"
	"github.com/liberland/federated-bridge/internal/db"
	"github.com/liberland/federated-bridge/internal/state"
	"github.com/liberland/federated-bridge/internal/types"
	"github.com/stretchr/testify/require"
)

type Fixture struct {
	Node     *chain.Node
	DBM      *db.DatabaseManager
	State    *state.State
	Sudo     *types.Keypair
	Admin    *types.Keypair
	Relays   []*types.Keypair
	Watchers []*types.Keypair
	Alice    *types.Keypair
	Bob      *types.Keypair
	Pallets  map[types.BridgeId]*bridge.Pallet
}

type Options struct {
	VotesRequired   uint32
	FinalityDepth   uint64
	WithdrawalDelay uint64
	Fee             types.Balance
}

func key(t *testing.T, name string) *types.Keypair {
	seed := types.Blake2b256([]byte(name))
	kp, err := types.KeypairFromSeed(fmt.Sprintf("%x", seed[:]))
	require.NoError(t, err)
	return kp
}

func PalletConfig(id types.BridgeId, delay uint64) bridge.Config {
	return bridge.Config{
		PalletId:        bridge.PalletIdFromString(fmt.Sprintf("%s/brdg", id)),
		MaxRelays:       5,
		MaxWatchers:     5,
		MaxTotalLocked:  types.NewBalance(1_000_000),
		WithdrawalDelay: delay,
		WithdrawalRateLimit: bridge.RateLimit{
			MaxBurst: types.NewBalance(100_000),
			Decay:    types.NewBalance(100),
		},
	}
}

// NewNode starts from a genesis with three relays, one watcher and both
// bridges active. Blocks are only produced when the test calls ProduceBlock.
func NewNode(t *testing.T, opts Options) *Fixture {
	t.Setenv("DB_DIR", t.TempDir())
	config.InitConfig()
	dbm := db.NewDatabaseManager()
	t.Cleanup(dbm.Close)

	f := &Fixture{
		DBM:      dbm,
		State:    state.InitializeState(dbm),
		Sudo:     key(t, "sudo"),
		Admin:    key(t, "admin"),
		Relays:   []*types.Keypair{key(t, "relay1"), key(t, "relay2"), key(t, "relay3")},
		Watchers: []*types.Keypair{key(t, "watcher1")},
		Alice:    key(t, "alice"),
		Bob:      key(t, "bob"),
		Pallets:  map[types.BridgeId]*bridge.Pallet{},
	}
	var pallets []*bridge.Pallet
	for _, id := range types.AllBridges {
		p := bridge.NewPallet(id, PalletConfig(id, opts.WithdrawalDelay))
		f.Pallets[id] = p
		pallets = append(pallets, p)
	}

	sudo := f.Sudo.AccountId()
	f.Node = chain.NewNode(f.State, dbm, chain.NodeConfig{
		BlockTime:     time.Second,
		FinalityDepth: opts.FinalityDepth,
		FeeAsset:      "LLD",
		Sudo:          &sudo,
	}, pallets...)

	adminAcc := f.Admin.AccountId()
	g := &chain.Genesis{Bridges: map[types.BridgeId]bridge.Genesis{}}
	for _, id := range types.AllBridges {
		g.Bridges[id] = bridge.Genesis{
			Relays:        accounts(f.Relays),
			Watchers:      accounts(f.Watchers),
			VotesRequired: opts.VotesRequired,
			Fee:           opts.Fee,
			State:         bridge.StateActive,
			Admin:         &adminAcc,
			SuperAdmin:    &adminAcc,
		}
		for _, kp := range []*types.Keypair{f.Alice, f.Bob} {
			g.Endowments = append(g.Endowments, chain.Endowment{Asset: id.String(), Account: kp.AccountId(), Amount: types.NewBalance(1_000_000)})
		}
		g.Endowments = append(g.Endowments, chain.Endowment{Asset: id.String(), Account: f.Pallets[id].AccountId(), Amount: types.NewBalance(500_000)})
	}
	require.NoError(t, f.Node.InitGenesis(g))
	return f
}

func accounts(keys []*types.Keypair) []types.AccountId {
	out := make([]types.AccountId, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.AccountId())
	}
	return out
}

// Submit signs and queues a call, failing the test on rejection.
func (f *Fixture) Submit(t *testing.T, signer *types.Keypair, bridgeId types.BridgeId, call bridge.Call) types.Hash {
	raw, err := chain.SignExtrinsic(signer, bridgeId, call, false)
	require.NoError(t, err)
	hash, err := f.Node.Submit(mustParse(t, raw))
	require.NoError(t, err)
	return hash
}

func mustParse(t *testing.T, raw string) *chain.Extrinsic {
	ext, err := chain.ParseExtrinsic(raw)
	require.NoError(t, err)
	return ext
}

// Produce mints n blocks and returns the last one.
func (f *Fixture) Produce(t *testing.T, n int) *chain.BlockView {
	var view *chain.BlockView
	for i := 0; i < n; i++ {
		var err error
		view, err = f.Node.ProduceBlock()
		require.NoError(t, err)
	}
	return view
}
