package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liberland/federated-bridge/internal/bridge"
	"github.com/liberland/federated-bridge/internal/types"
	log "github.com/sirupsen/logrus"
)

// CallSender signs calls with one key and waits for their inclusion.
type CallSender struct {
	key       *types.Keypair
	submitter Submitter
	poll      time.Duration
}

func NewCallSender(key *types.Keypair, submitter Submitter, poll time.Duration) *CallSender {
	if poll <= 0 {
		poll = time.Second
	}
	return &CallSender{key: key, submitter: submitter, poll: poll}
}

func (s *CallSender) Account() types.AccountId {
	return s.key.AccountId()
}

func (s *CallSender) Submit(ctx context.Context, bridgeId types.BridgeId, call bridge.Call) (types.Hash, error) {
	raw, err := SignExtrinsic(s.key, bridgeId, call, false)
	if err != nil {
		return types.Hash{}, err
	}
	return s.submitter.SubmitExtrinsic(ctx, raw)
}

// Wait polls until the extrinsic left the pool. A failed dispatch is
// returned as an error wrapping ErrExtrinsicFailed.
func (s *CallSender) Wait(ctx context.Context, hash types.Hash) (*ExtrinsicStatus, error) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		status, err := s.submitter.ExtrinsicStatus(ctx, hash)
		if err != nil && !errors.Is(err, ErrExtrinsicNotFound) {
			return nil, err
		}
		if err == nil && status.Status != ExtrinsicPending {
			return status, status.Failed()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Send submits call and waits for its result.
func (s *CallSender) Send(ctx context.Context, bridgeId types.BridgeId, call bridge.Call) (*ExtrinsicStatus, error) {
	hash, err := s.Submit(ctx, bridgeId, call)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", call.Method(), err)
	}
	log.Debugf("Submitted %s %s as %s", bridgeId, call.Method(), hash)
	return s.Wait(ctx, hash)
}
