package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liberland/federated-bridge/internal/chain"
	"github.com/liberland/federated-bridge/internal/db"
	"github.com/liberland/federated-bridge/internal/ethereum"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	NetworkNative   = "native"
	NetworkEthereum = "ethereum"
)

var ErrNetworkMismatch = errors.New("genesis hash differs from the cached network")

// PinNetwork records the genesis hash of a network on first use and
// rejects a different one afterwards.
func PinNetwork(ctx context.Context, dbm *db.DatabaseManager, name, genesisHash string) error {
	relayDb := dbm.GetRelayDB().WithContext(ctx)
	var row db.Network
	res := relayDb.Where("name = ?", name).Limit(1).Find(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		log.Infof("Pinning %s network, genesis %s", name, genesisHash)
		return relayDb.Create(&db.Network{Name: name, GenesisHash: genesisHash, UpdatedAt: time.Now()}).Error
	}
	if row.GenesisHash != genesisHash {
		return fmt.Errorf("%w: %s cached %s, got %s", ErrNetworkMismatch, name, row.GenesisHash, genesisHash)
	}
	return nil
}

// PinNetworks fetches both genesis hashes concurrently and pins them.
func PinNetworks(ctx context.Context, dbm *db.DatabaseManager, reader chain.Reader, client ethereum.Client) error {
	var nativeGenesis, ethGenesis string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := reader.GenesisHash(gctx)
		if err != nil {
			return fmt.Errorf("native genesis: %w", err)
		}
		nativeGenesis = h.Hex()
		return nil
	})
	g.Go(func() error {
		h, err := ethereum.GenesisHash(gctx, client)
		if err != nil {
			return fmt.Errorf("ethereum genesis: %w", err)
		}
		ethGenesis = h.Hex()
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := PinNetwork(ctx, dbm, NetworkNative, nativeGenesis); err != nil {
		return err
	}
	return PinNetwork(ctx, dbm, NetworkEthereum, ethGenesis)
}
