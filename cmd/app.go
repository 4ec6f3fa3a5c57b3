package main

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/liberland/federated-bridge/internal/bridge"
	"github.com/liberland/federated-bridge/internal/chain"
	"github.com/liberland/federated-bridge/internal/config"
	"github.com/liberland/federated-bridge/internal/db"
	"github.com/liberland/federated-bridge/internal/ethereum"
	"github.com/liberland/federated-bridge/internal/ethereum/abis"
	"github.com/liberland/federated-bridge/internal/http"
	"github.com/liberland/federated-bridge/internal/relay"
	"github.com/liberland/federated-bridge/internal/state"
	"github.com/liberland/federated-bridge/internal/supervisor"
	"github.com/liberland/federated-bridge/internal/syncer"
	"github.com/liberland/federated-bridge/internal/types"
	"github.com/liberland/federated-bridge/internal/watcher"
	log "github.com/sirupsen/logrus"
)

// nodeAPI is what the daemon needs from a node, in process or remote.
type nodeAPI interface {
	chain.Reader
	chain.Submitter
}

type Application struct {
	DatabaseManager *db.DatabaseManager
	State           *state.State
	Node            *chain.Node
	HTTPServer      *http.HTTPServer
	Supervisor      *supervisor.Supervisor
}

func NewApplication() *Application {
	config.InitConfig()
	cfg := config.AppConfig

	dbm := db.NewDatabaseManager()
	st := state.InitializeState(dbm)
	app := &Application{
		DatabaseManager: dbm,
		State:           st,
		Supervisor:      supervisor.New(cfg.MinBackoff, cfg.MaxBackoff),
	}

	if cfg.NodeEnable {
		app.Node = newNode(st, dbm)
		app.HTTPServer = http.NewHTTPServer(app.Node)
	}
	if cfg.RelayEnable || cfg.WatcherEnable {
		app.setupDaemon()
	}
	return app
}

func mustBalance(name, value string) types.Balance {
	b, err := types.ParseBalance(value)
	if err != nil {
		log.Fatalf("Invalid %s: %v", name, err)
	}
	return b
}

func palletConfig(id types.BridgeId) bridge.Config {
	cfg := config.AppConfig
	return bridge.Config{
		PalletId:        bridge.PalletIdFromString(strings.ToLower(id.String()) + "/brdg"),
		MaxRelays:       cfg.MaxRelays,
		MaxWatchers:     cfg.MaxWatchers,
		MaxTotalLocked:  mustBalance("BRIDGE_MAX_TOTAL_LOCKED", cfg.MaxTotalLocked),
		WithdrawalDelay: cfg.WithdrawalDelay,
		WithdrawalRateLimit: bridge.RateLimit{
			MaxBurst: mustBalance("BRIDGE_RATE_LIMIT_MAX_BURST", cfg.RateLimitMaxBurst),
			Decay:    mustBalance("BRIDGE_RATE_LIMIT_DECAY", cfg.RateLimitDecay),
		},
	}
}

func newNode(st *state.State, dbm *db.DatabaseManager) *chain.Node {
	cfg := config.AppConfig
	nodeCfg := chain.NodeConfig{
		BlockTime:          cfg.BlockTime,
		FinalityDepth:      cfg.FinalityDepth,
		MaxExtrinsics:      cfg.MaxExtrinsics,
		PoolSize:           cfg.PoolSize,
		FeeAsset:           cfg.FeeAsset,
		ExistentialDeposit: mustBalance("EXISTENTIAL_DEPOSIT", cfg.ExistentialDeposit),
	}
	if cfg.SudoAccount != "" {
		sudo, err := types.ParseAccountId(cfg.SudoAccount)
		if err != nil {
			log.Fatalf("Invalid SUDO_ACCOUNT: %v", err)
		}
		nodeCfg.Sudo = &sudo
	}

	var pallets []*bridge.Pallet
	for _, id := range types.AllBridges {
		pallets = append(pallets, bridge.NewPallet(id, palletConfig(id)))
	}
	node := chain.NewNode(st, dbm, nodeCfg, pallets...)

	switch {
	case cfg.GenesisFile != "":
		genesis, err := chain.LoadGenesis(cfg.GenesisFile)
		if err != nil {
			log.Fatalf("Failed to load genesis: %v", err)
		}
		if err := node.InitGenesis(genesis); err != nil {
			log.Fatalf("Failed to build genesis: %v", err)
		}
	case !st.HasGenesis():
		log.Fatalf("No chain in %s and GENESIS_FILE is not set", cfg.DbDir)
	}
	return node
}

func (app *Application) nodeAPI() nodeAPI {
	if app.Node != nil {
		return app.Node
	}
	return http.NewNodeClient(config.AppConfig.NodeURL)
}

// wakeOn subscribes a buffered channel to an in-process node event.
func (app *Application) wakeOn(s *syncer.Native, event state.EventType) {
	if app.Node == nil {
		return
	}
	ch := make(chan interface{}, 16)
	app.State.EventBus.Subscribe(event, ch)
	s.WakeOn(ch)
}

func mustWei(name, value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok || v.Sign() < 0 {
		log.Fatalf("Invalid %s: %q", name, value)
	}
	return v
}

func (app *Application) setupDaemon() {
	cfg := config.AppConfig
	api := app.nodeAPI()

	ethClient, err := ethereum.Dial(cfg.EthRPC, cfg.EthJwtSecret)
	if err != nil {
		log.Fatalf("Failed to connect to Ethereum: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := syncer.PinNetworks(ctx, app.DatabaseManager, api, ethClient); err != nil {
		log.Fatalf("Failed to check networks: %v", err)
	}

	addresses := make(map[types.BridgeId]common.Address)
	for _, id := range types.AllBridges {
		addr := cfg.BridgeContract(id.String())
		if !common.IsHexAddress(addr) {
			log.Fatalf("Invalid %s_BRIDGE_CONTRACT: %q", id, addr)
		}
		addresses[id] = common.HexToAddress(addr)
	}
	bridges := ethereum.NewBridges(ethClient, addresses)
	txCfg := ethereum.TxManagerConfig{MaxGasPrice: cfg.MaxGasPrice}
	dbm := app.DatabaseManager

	if cfg.RelayEnable {
		kp, err := types.KeypairFromSeed(cfg.RelaySubstrateSeed)
		if err != nil {
			log.Fatalf("Invalid RELAY_SUBSTRATE_SEED: %v", err)
		}
		key, err := types.ParseEthPrivateKey(cfg.RelayEthPrivateKey)
		if err != nil {
			log.Fatalf("Invalid RELAY_ETH_PRIVATE_KEY: %v", err)
		}
		txm := ethereum.NewTxManager(ethClient, key, dbm, txCfg)
		rewards := relay.RewardsConfig{
			MinimumBalance:    mustWei("RELAY_MINIMUM_BALANCE", cfg.RelayMinimumBalance),
			ClaimThreshold:    mustWei("RELAY_CLAIM_REWARDS_THRESHOLD", cfg.RelayClaimRewardsThreshold),
			WithdrawThreshold: mustWei("RELAY_WITHDRAW_REWARDS_THRESHOLD", cfg.RelayWithdrawRewardsThreshold),
			Interval:          cfg.RelayRewardsInterval,
		}
		if cfg.RelayRewardsAddress != "" {
			if !common.IsHexAddress(cfg.RelayRewardsAddress) {
				log.Fatalf("Invalid RELAY_REWARDS_ADDRESS: %q", cfg.RelayRewardsAddress)
			}
			rewards.Address = common.HexToAddress(cfg.RelayRewardsAddress)
		}

		nativeSync := syncer.NewNative(api, syncer.NewCursor(dbm, "relay_s2e", cfg.NativeStartHeight), syncer.NativeFinalized, cfg.SyncInterval)
		app.wakeOn(nativeSync, state.BlockFinalized)
		s2e := relay.NewSubstrateToEthereum(nativeSync, bridges, txm, rewards)

		ethSync := syncer.NewEthereum(ethClient, syncer.NewCursor(dbm, "relay_e2s", cfg.EthStartHeight), bridges.Addresses(),
			abis.OutgoingReceiptTopic, cfg.EthSyncFinalized, cfg.EthMaxBlockRange, cfg.SyncInterval)
		e2s := relay.NewEthereumToSubstrate("relay_e2s", ethSync, bridges, api, chain.NewCallSender(kp, api, 0), dbm)

		app.Supervisor.Add("relay_eth_tx", txm.Start)
		app.Supervisor.Add("relay_s2e", s2e.Run)
		app.Supervisor.Add("relay_e2s", e2s.Run)
		log.Infof("Relay enabled, native %s, ethereum %s", kp.AccountId(), txm.From().Hex())
	}

	if cfg.WatcherEnable {
		kp, err := types.KeypairFromSeed(cfg.WatcherSubstrateSeed)
		if err != nil {
			log.Fatalf("Invalid WATCHER_SUBSTRATE_SEED: %v", err)
		}
		key, err := types.ParseEthPrivateKey(cfg.WatcherEthPrivateKey)
		if err != nil {
			log.Fatalf("Invalid WATCHER_ETH_PRIVATE_KEY: %v", err)
		}
		txm := ethereum.NewTxManager(ethClient, key, dbm, txCfg)
		stopper := watcher.NewStopper(txm, chain.NewCallSender(kp, api, 0))

		voteSync := syncer.NewEthereum(ethClient, syncer.NewCursor(dbm, "watcher_s2e", cfg.EthStartHeight), bridges.Addresses(),
			abis.VoteTopic, false, cfg.EthMaxBlockRange, cfg.SyncInterval)
		s2e := watcher.NewSubstrateToEthereum(voteSync, bridges, api, stopper, cfg.WatcherBlockSlack)

		nativeSync := syncer.NewNative(api, syncer.NewCursor(dbm, "watcher_e2s", cfg.NativeStartHeight), syncer.NativeBest, cfg.SyncInterval)
		app.wakeOn(nativeSync, state.BlockImported)
		e2s := watcher.NewEthereumToSubstrate(nativeSync, ethClient, bridges, api, stopper)

		app.Supervisor.Add("watcher_eth_tx", txm.Start)
		app.Supervisor.Add("watcher_s2e", s2e.Run)
		app.Supervisor.Add("watcher_e2s", e2s.Run)
		log.Infof("Watcher enabled, native %s, ethereum %s", kp.AccountId(), txm.From().Hex())
	}
}

func (app *Application) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	if app.Node != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.Node.Start(ctx)
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			app.HTTPServer.Start(ctx)
		}()
	}

	if len(app.Supervisor.Tasks()) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.Supervisor.Start(ctx)
		}()
	}

	<-stop
	log.Info("Receiving exit signal...")

	cancel()

	wg.Wait()
	app.DatabaseManager.Close()
	log.Info("Server stopped")
}
