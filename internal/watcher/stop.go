package watcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/liberland/federated-bridge/internal/bridge"
	"github.com/liberland/federated-bridge/internal/chain"
	"github.com/liberland/federated-bridge/internal/ethereum"
	log "github.com/sirupsen/logrus"
)

// Stopper halts one bridge instance on both chains.
type Stopper struct {
	txm    *ethereum.TxManager
	sender *chain.CallSender
}

func NewStopper(txm *ethereum.TxManager, sender *chain.CallSender) *Stopper {
	return &Stopper{txm: txm, sender: sender}
}

// EmergencyStop queues emergencyStop on the contract and then submits the
// native emergency_stop. Both are attempted, failures are joined.
func (s *Stopper) EmergencyStop(ctx context.Context, b *ethereum.Bridge, reason string) error {
	log.WithFields(log.Fields{"bridge": b.Id(), "reason": reason}).Error("Invalid vote detected, stopping bridge")
	ethErr := s.stopContract(ctx, b)
	if ethErr != nil {
		log.Errorf("Failed to stop %s contract: %v", b.Id(), ethErr)
	}
	nativeErr := s.stopNative(ctx, b)
	if nativeErr != nil {
		log.Errorf("Failed to stop native %s bridge: %v", b.Id(), nativeErr)
	}
	return errors.Join(ethErr, nativeErr)
}

func (s *Stopper) stopContract(ctx context.Context, b *ethereum.Bridge) error {
	req, err := b.EmergencyStop()
	if err != nil {
		return err
	}
	if err := s.txm.Simulate(ctx, req); err != nil {
		if ethereum.IsRevert(err, "BridgeInactive") {
			log.Infof("%s contract already stopped", b.Id())
			return nil
		}
		return err
	}
	if err := s.txm.Queue(ctx, req); err != nil {
		return err
	}
	log.Infof("Queued emergencyStop on %s contract %s", b.Id(), b.Address().Hex())
	return nil
}

func (s *Stopper) stopNative(ctx context.Context, b *ethereum.Bridge) error {
	status, err := s.sender.Send(ctx, b.Id(), bridge.EmergencyStopCall{})
	if err != nil {
		return fmt.Errorf("native emergency_stop: %w", err)
	}
	log.Infof("Native %s bridge stopped in block %d", b.Id(), status.BlockNumber)
	return nil
}
