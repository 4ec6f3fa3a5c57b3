package ethereum

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/liberland/federated-bridge/internal/ethereum/abis"
)

// RevertError is a call rejected by the bridge contract.
type RevertError struct {
	Reason string
	err    error
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("execution reverted: %s", e.Reason)
}

func (e *RevertError) Unwrap() error {
	return e.err
}

// DecodeRevert turns a revert carrying contract error data into a
// *RevertError. Other errors are returned unchanged.
func DecodeRevert(err error) error {
	var dataErr rpc.DataError
	if err == nil || !errors.As(err, &dataErr) {
		return err
	}
	hexData, ok := dataErr.ErrorData().(string)
	if !ok {
		return err
	}
	data, decErr := hexutil.Decode(hexData)
	if decErr != nil || len(data) < 4 {
		return err
	}
	for name, e := range abis.BridgeABI.Errors {
		if bytes.Equal(e.ID[:4], data[:4]) {
			return &RevertError{Reason: name, err: err}
		}
	}
	if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
		return &RevertError{Reason: reason, err: err}
	}
	return err
}

// IsRevert reports whether err is a revert with the given contract error name.
func IsRevert(err error, reason string) bool {
	var revert *RevertError
	if !errors.As(DecodeRevert(err), &revert) {
		return false
	}
	return revert.Reason == reason
}
