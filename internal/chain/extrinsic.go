package chain

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/liberland/federated-bridge/internal/bridge"
	"github.com/liberland/federated-bridge/internal/types"
)

var ErrInvalidExtrinsic = errors.New("invalid extrinsic")

// Extrinsic is a signed call addressed to one bridge instance.
type Extrinsic struct {
	Hash   types.Hash
	Nonce  string
	Signer types.AccountId
	Bridge types.BridgeId
	Call   bridge.Call
	Sudo   bool
	Raw    string
}

// ExtrinsicClaims is the payload of an extrinsic token. The subject is the
// signer's account and the token id is a one-time nonce.
type ExtrinsicClaims struct {
	Bridge string          `json:"bridge"`
	Call   json.RawMessage `json:"call"`
	Sudo   bool            `json:"sudo,omitempty"`
	jwt.RegisteredClaims
}

// SignExtrinsic encodes call as an EdDSA token signed by key.
func SignExtrinsic(key *types.Keypair, bridgeId types.BridgeId, call bridge.Call, sudo bool) (string, error) {
	encoded, err := bridge.EncodeCall(call)
	if err != nil {
		return "", err
	}
	claims := ExtrinsicClaims{
		Bridge: bridgeId.String(),
		Call:   encoded,
		Sudo:   sudo,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  key.AccountId().Hex(),
			ID:       uuid.New().String(),
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key.PrivateKey())
}

// ParseExtrinsic verifies the token signature against its subject account.
func ParseExtrinsic(raw string) (*Extrinsic, error) {
	claims := &ExtrinsicClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		c, ok := token.Claims.(*ExtrinsicClaims)
		if !ok {
			return nil, fmt.Errorf("unexpected claims %T", token.Claims)
		}
		signer, err := types.ParseAccountId(c.Subject)
		if err != nil {
			return nil, fmt.Errorf("bad subject: %w", err)
		}
		return ed25519.PublicKey(signer[:]), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExtrinsic, err)
	}

	if _, err := uuid.Parse(claims.ID); err != nil {
		return nil, fmt.Errorf("%w: nonce must be a uuid", ErrInvalidExtrinsic)
	}
	signer, err := types.ParseAccountId(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExtrinsic, err)
	}
	bridgeId, err := types.ParseBridgeId(claims.Bridge)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExtrinsic, err)
	}
	call, err := bridge.DecodeCall(claims.Call)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExtrinsic, err)
	}
	return &Extrinsic{
		Hash:   types.Blake2b256([]byte(raw)),
		Nonce:  claims.ID,
		Signer: signer,
		Bridge: bridgeId,
		Call:   call,
		Sudo:   claims.Sudo,
		Raw:    raw,
	}, nil
}
