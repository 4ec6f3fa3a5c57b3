package config

import (
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var AppConfig Config

func InitConfig() {
	// .env is optional, real environment variables win
	if err := godotenv.Load(); err == nil {
		logrus.Debugf("Loaded .env file")
	}
	viper.AutomaticEnv()

	// Default config
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DB_DIR", "/app/db")

	viper.SetDefault("NODE_ENABLE", true)
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("BLOCK_TIME", "6s")
	viper.SetDefault("FINALITY_DEPTH", 2)
	viper.SetDefault("MAX_EXTRINSICS_PER_BLOCK", 256)
	viper.SetDefault("POOL_SIZE", 1024)
	viper.SetDefault("GENESIS_FILE", "")
	viper.SetDefault("SUDO_ACCOUNT", "")
	viper.SetDefault("EXISTENTIAL_DEPOSIT", "0")
	viper.SetDefault("FEE_ASSET", "LLD")
	viper.SetDefault("BRIDGE_MAX_RELAYS", 10)
	viper.SetDefault("BRIDGE_MAX_WATCHERS", 10)
	viper.SetDefault("BRIDGE_MAX_TOTAL_LOCKED", "340282366920938463463374607431768211455")
	viper.SetDefault("BRIDGE_WITHDRAWAL_DELAY", 50)
	viper.SetDefault("BRIDGE_RATE_LIMIT_MAX_BURST", "1000000000000000000000")
	viper.SetDefault("BRIDGE_RATE_LIMIT_DECAY", "100000000000000000")

	viper.SetDefault("NODE_URL", "http://localhost:8080")
	viper.SetDefault("ETH_RPC", "http://localhost:8545")
	viper.SetDefault("ETH_JWT_SECRET", "")
	viper.SetDefault("LLM_BRIDGE_CONTRACT", "")
	viper.SetDefault("LLD_BRIDGE_CONTRACT", "")
	viper.SetDefault("MAX_GAS_PRICE_GWEI", 100)
	viper.SetDefault("SYNC_INTERVAL", "6s")
	viper.SetDefault("ETH_MAX_BLOCK_RANGE", 500)
	viper.SetDefault("ETH_START_HEIGHT", 0)
	viper.SetDefault("NATIVE_START_HEIGHT", 0)
	viper.SetDefault("ETH_SYNC_FINALIZED", true)
	viper.SetDefault("WATCHER_BLOCK_SLACK", 50)
	viper.SetDefault("SUPERVISOR_MIN_BACKOFF", "1s")
	viper.SetDefault("SUPERVISOR_MAX_BACKOFF", "2m")

	viper.SetDefault("RELAY_ENABLE", false)
	viper.SetDefault("RELAY_SUBSTRATE_SEED", "")
	viper.SetDefault("RELAY_ETH_PRIVATE_KEY", "")
	viper.SetDefault("RELAY_REWARDS_ADDRESS", "")
	viper.SetDefault("RELAY_MINIMUM_BALANCE", "100000000000000000")
	viper.SetDefault("RELAY_CLAIM_REWARDS_THRESHOLD", "100000000000000000")
	viper.SetDefault("RELAY_WITHDRAW_REWARDS_THRESHOLD", "1000000000000000000")
	viper.SetDefault("RELAY_REWARDS_INTERVAL", "1h")

	viper.SetDefault("WATCHER_ENABLE", false)
	viper.SetDefault("WATCHER_SUBSTRATE_SEED", "")
	viper.SetDefault("WATCHER_ETH_PRIVATE_KEY", "")

	logLevel, err := logrus.ParseLevel(strings.ToLower(viper.GetString("LOG_LEVEL")))
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}

	AppConfig = Config{
		LogLevel:           logLevel,
		DbDir:              viper.GetString("DB_DIR"),
		NodeEnable:         viper.GetBool("NODE_ENABLE"),
		HTTPPort:           viper.GetString("HTTP_PORT"),
		BlockTime:          viper.GetDuration("BLOCK_TIME"),
		FinalityDepth:      viper.GetUint64("FINALITY_DEPTH"),
		MaxExtrinsics:      viper.GetInt("MAX_EXTRINSICS_PER_BLOCK"),
		PoolSize:           viper.GetInt("POOL_SIZE"),
		GenesisFile:        viper.GetString("GENESIS_FILE"),
		SudoAccount:        viper.GetString("SUDO_ACCOUNT"),
		ExistentialDeposit: viper.GetString("EXISTENTIAL_DEPOSIT"),
		FeeAsset:           viper.GetString("FEE_ASSET"),
		MaxRelays:          viper.GetUint32("BRIDGE_MAX_RELAYS"),
		MaxWatchers:        viper.GetUint32("BRIDGE_MAX_WATCHERS"),
		MaxTotalLocked:     viper.GetString("BRIDGE_MAX_TOTAL_LOCKED"),
		WithdrawalDelay:    viper.GetUint64("BRIDGE_WITHDRAWAL_DELAY"),
		RateLimitMaxBurst:  viper.GetString("BRIDGE_RATE_LIMIT_MAX_BURST"),
		RateLimitDecay:     viper.GetString("BRIDGE_RATE_LIMIT_DECAY"),

		NodeURL:           viper.GetString("NODE_URL"),
		EthRPC:            viper.GetString("ETH_RPC"),
		EthJwtSecret:      viper.GetString("ETH_JWT_SECRET"),
		LLMBridgeContract: viper.GetString("LLM_BRIDGE_CONTRACT"),
		LLDBridgeContract: viper.GetString("LLD_BRIDGE_CONTRACT"),
		MaxGasPrice:       new(big.Int).Mul(big.NewInt(viper.GetInt64("MAX_GAS_PRICE_GWEI")), big.NewInt(1_000_000_000)),
		SyncInterval:      viper.GetDuration("SYNC_INTERVAL"),
		EthMaxBlockRange:  viper.GetUint64("ETH_MAX_BLOCK_RANGE"),
		EthStartHeight:    viper.GetUint64("ETH_START_HEIGHT"),
		NativeStartHeight: viper.GetUint64("NATIVE_START_HEIGHT"),
		EthSyncFinalized:  viper.GetBool("ETH_SYNC_FINALIZED"),
		WatcherBlockSlack: viper.GetUint64("WATCHER_BLOCK_SLACK"),
		MinBackoff:        viper.GetDuration("SUPERVISOR_MIN_BACKOFF"),
		MaxBackoff:        viper.GetDuration("SUPERVISOR_MAX_BACKOFF"),

		RelayEnable:                   viper.GetBool("RELAY_ENABLE"),
		RelaySubstrateSeed:            viper.GetString("RELAY_SUBSTRATE_SEED"),
		RelayEthPrivateKey:            viper.GetString("RELAY_ETH_PRIVATE_KEY"),
		RelayRewardsAddress:           viper.GetString("RELAY_REWARDS_ADDRESS"),
		RelayMinimumBalance:           viper.GetString("RELAY_MINIMUM_BALANCE"),
		RelayClaimRewardsThreshold:    viper.GetString("RELAY_CLAIM_REWARDS_THRESHOLD"),
		RelayWithdrawRewardsThreshold: viper.GetString("RELAY_WITHDRAW_REWARDS_THRESHOLD"),
		RelayRewardsInterval:          viper.GetDuration("RELAY_REWARDS_INTERVAL"),

		WatcherEnable:        viper.GetBool("WATCHER_ENABLE"),
		WatcherSubstrateSeed: viper.GetString("WATCHER_SUBSTRATE_SEED"),
		WatcherEthPrivateKey: viper.GetString("WATCHER_ETH_PRIVATE_KEY"),
	}

	if AppConfig.FinalityDepth == 0 {
		logrus.Warnf("FINALITY_DEPTH is 0, relays will act on unfinalized blocks")
	}
	if AppConfig.EthMaxBlockRange == 0 {
		AppConfig.EthMaxBlockRange = 500
	}

	logrus.Infof("Init config, node %v, relay %v, watcher %v, BlockTime %v, SyncInterval %v",
		AppConfig.NodeEnable, AppConfig.RelayEnable, AppConfig.WatcherEnable, AppConfig.BlockTime, AppConfig.SyncInterval)

	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(AppConfig.LogLevel)
}

// BridgeContract returns the configured contract address of a bridge instance.
func (c Config) BridgeContract(bridge string) string {
	switch strings.ToUpper(bridge) {
	case "LLM":
		return c.LLMBridgeContract
	case "LLD":
		return c.LLDBridgeContract
	}
	return ""
}

type Config struct {
	LogLevel logrus.Level
	DbDir    string

	NodeEnable         bool
	HTTPPort           string
	BlockTime          time.Duration
	FinalityDepth      uint64
	MaxExtrinsics      int
	PoolSize           int
	GenesisFile        string
	SudoAccount        string
	ExistentialDeposit string
	FeeAsset           string
	MaxRelays          uint32
	MaxWatchers        uint32
	MaxTotalLocked     string
	WithdrawalDelay    uint64
	RateLimitMaxBurst  string
	RateLimitDecay     string

	NodeURL           string
	EthRPC            string
	EthJwtSecret      string
	LLMBridgeContract string
	LLDBridgeContract string
	MaxGasPrice       *big.Int
	SyncInterval      time.Duration
	EthMaxBlockRange  uint64
	EthStartHeight    uint64
	NativeStartHeight uint64
	EthSyncFinalized  bool
	WatcherBlockSlack uint64
	MinBackoff        time.Duration
	MaxBackoff        time.Duration

	RelayEnable                   bool
	RelaySubstrateSeed            string
	RelayEthPrivateKey            string
	RelayRewardsAddress           string
	RelayMinimumBalance           string
	RelayClaimRewardsThreshold    string
	RelayWithdrawRewardsThreshold string
	RelayRewardsInterval          time.Duration

	WatcherEnable        bool
	WatcherSubstrateSeed string
	WatcherEthPrivateKey string
}
