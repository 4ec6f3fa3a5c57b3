package syncer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/liberland/federated-bridge/internal/ethereum"
	log "github.com/sirupsen/logrus"
)

// LogHandler receives contract logs in chain order.
type LogHandler func(ctx context.Context, log gethtypes.Log) error

// Ethereum fetches logs of one event from the bridge contracts.
type Ethereum struct {
	client    ethereum.Client
	cursor    *Cursor
	addresses []common.Address
	topic     common.Hash
	finalized bool
	maxRange  uint64
	interval  time.Duration
}

func NewEthereum(client ethereum.Client, cursor *Cursor, addresses []common.Address, topic common.Hash, finalized bool, maxRange uint64, interval time.Duration) *Ethereum {
	if maxRange == 0 {
		maxRange = 500
	}
	if interval <= 0 {
		interval = 12 * time.Second
	}
	return &Ethereum{
		client:    client,
		cursor:    cursor,
		addresses: addresses,
		topic:     topic,
		finalized: finalized,
		maxRange:  maxRange,
		interval:  interval,
	}
}

// SyncOnce delivers every log up to the current target in chunks of at
// most maxRange blocks, saving the cursor after each chunk.
func (s *Ethereum) SyncOnce(ctx context.Context, handler LogHandler) error {
	target, err := ethereum.HeadNumber(ctx, s.client, s.finalized)
	if err != nil {
		return fmt.Errorf("query eth head: %w", err)
	}
	from, err := s.cursor.Next(ctx)
	if err != nil {
		return err
	}
	for from <= target {
		to := min(from+s.maxRange-1, target)
		log.WithFields(log.Fields{
			"task":      s.cursor.TaskId(),
			"fromBlock": from,
			"toBlock":   to,
		}).Debug("Syncing eth logs")

		logs, err := s.client.FilterLogs(ctx, goethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: s.addresses,
			Topics:    [][]common.Hash{{s.topic}},
		})
		if err != nil {
			return fmt.Errorf("filter eth logs %d..%d: %w", from, to, err)
		}
		for _, l := range logs {
			if l.Removed {
				continue
			}
			if err := handler(ctx, l); err != nil {
				return err
			}
		}
		if err := s.cursor.Save(ctx, to); err != nil {
			return err
		}
		from = to + 1
	}
	return nil
}

func (s *Ethereum) Run(ctx context.Context, handler LogHandler) error {
	log.Infof("Eth sync %s started, finalized %v", s.cursor.TaskId(), s.finalized)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.SyncOnce(ctx, handler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
