package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/liberland/federated-bridge/internal/chain"
	"github.com/liberland/federated-bridge/internal/types"
	log "github.com/sirupsen/logrus"
)

type NativeTarget int

const (
	NativeBest NativeTarget = iota
	NativeFinalized
)

func (t NativeTarget) String() string {
	if t == NativeFinalized {
		return "finalized"
	}
	return "best"
}

// NativeHandler receives every synced block with its bridge events.
type NativeHandler func(ctx context.Context, number uint64, hash types.Hash, events []chain.EventRecord) error

// Native walks native blocks from the cursor to the sync target.
type Native struct {
	reader   chain.Reader
	cursor   *Cursor
	target   NativeTarget
	interval time.Duration
	wake     <-chan interface{}
}

func NewNative(reader chain.Reader, cursor *Cursor, target NativeTarget, interval time.Duration) *Native {
	if interval <= 0 {
		interval = 6 * time.Second
	}
	return &Native{reader: reader, cursor: cursor, target: target, interval: interval}
}

// WakeOn makes the syncer poll as soon as ch receives, besides the interval.
func (s *Native) WakeOn(ch <-chan interface{}) {
	s.wake = ch
}

func (s *Native) head(ctx context.Context) (uint64, error) {
	if s.target == NativeFinalized {
		return s.reader.FinalizedNumber(ctx)
	}
	return s.reader.BestNumber(ctx)
}

// SyncOnce handles every block up to the current target. The cursor moves
// only after the handler returned for a block.
func (s *Native) SyncOnce(ctx context.Context, handler NativeHandler) error {
	target, err := s.head(ctx)
	if err != nil {
		return fmt.Errorf("query %s native head: %w", s.target, err)
	}
	next, err := s.cursor.Next(ctx)
	if err != nil {
		return err
	}
	if next <= target {
		log.Debugf("Native sync %s: blocks %d..%d", s.cursor.TaskId(), next, target)
	}
	for number := next; number <= target; number++ {
		hash, err := s.reader.BlockHash(ctx, number)
		if err != nil {
			return fmt.Errorf("native block %d: %w", number, err)
		}
		events, err := s.reader.Events(ctx, hash)
		if err != nil {
			return fmt.Errorf("native events of %d: %w", number, err)
		}
		if err := handler(ctx, number, hash, events); err != nil {
			return err
		}
		if err := s.cursor.Save(ctx, number); err != nil {
			return err
		}
	}
	return nil
}

// Run syncs until ctx is done or the handler fails.
func (s *Native) Run(ctx context.Context, handler NativeHandler) error {
	log.Infof("Native sync %s started, target %s", s.cursor.TaskId(), s.target)
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
		case <-s.wake:
		case <-ticker.C:
		}
	}
}
