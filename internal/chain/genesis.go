package chain

import (
	"encoding/json"
	"fmt"

	"github.com/liberland/federated-bridge/internal/bridge"
	"github.com/liberland/federated-bridge/internal/types"
	"github.com/spf13/viper"
)

type Endowment struct {
	Asset   string          `json:"asset"`
	Account types.AccountId `json:"account"`
	Amount  types.Balance   `json:"amount"`
}

// Genesis is the initial chain state.
type Genesis struct {
	Bridges    map[types.BridgeId]bridge.Genesis `json:"bridges"`
	Endowments []Endowment                       `json:"endowments"`
}

// LoadGenesis reads a genesis file in any format viper understands.
func LoadGenesis(path string) (*Genesis, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read genesis %s: %w", path, err)
	}
	// viper lowercases keys, round trip through json to reuse the text codecs
	raw, err := json.Marshal(v.AllSettings())
	if err != nil {
		return nil, err
	}
	var g Genesis
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode genesis %s: %w", path, err)
	}
	normalized := make(map[types.BridgeId]bridge.Genesis, len(g.Bridges))
	for id, bg := range g.Bridges {
		bridgeId, err := types.ParseBridgeId(string(id))
		if err != nil {
			return nil, err
		}
		normalized[bridgeId] = bg
	}
	g.Bridges = normalized
	for i := range g.Endowments {
		asset, err := types.ParseBridgeId(g.Endowments[i].Asset)
		if err != nil {
			return nil, fmt.Errorf("endowment %d: %w", i, err)
		}
		g.Endowments[i].Asset = asset.String()
	}
	return &g, nil
}

// hash commits to the genesis content so differing chains get different genesis hashes.
func (g *Genesis) hash() (types.Hash, error) {
	raw, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return types.Blake2b256([]byte("genesis"), raw), nil
}
