package config

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInitConfigDefaults(t *testing.T) {
	t.Setenv("DB_DIR", t.TempDir())
	InitConfig()

	assert.True(t, AppConfig.NodeEnable)
	assert.False(t, AppConfig.RelayEnable)
	assert.Equal(t, 6*time.Second, AppConfig.BlockTime)
	assert.Equal(t, uint64(50), AppConfig.WatcherBlockSlack)
	assert.Equal(t, 0, AppConfig.MaxGasPrice.Cmp(big.NewInt(100_000_000_000)))
}

func TestInitConfigFromEnv(t *testing.T) {
	t.Setenv("DB_DIR", t.TempDir())
	t.Setenv("BLOCK_TIME", "250ms")
	t.Setenv("MAX_GAS_PRICE_GWEI", "7")
	t.Setenv("LLM_BRIDGE_CONTRACT", "0x00000000000000000000000000000000000000aa")
	InitConfig()

	assert.Equal(t, 250*time.Millisecond, AppConfig.BlockTime)
	assert.Equal(t, 0, AppConfig.MaxGasPrice.Cmp(big.NewInt(7_000_000_000)))
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", AppConfig.BridgeContract("llm"))
	assert.Equal(t, "", AppConfig.BridgeContract("btc"))
}
