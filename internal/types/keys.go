package types

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	log "github.com/sirupsen/logrus"
)

// Keypair is a native signing key.
type Keypair struct {
	priv ed25519.PrivateKey
}

func KeypairFromSeed(seedHex string) (*Keypair, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid seed hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

func GenerateKeypair() (*Keypair, string, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, "", err
	}
	return &Keypair{priv: ed25519.NewKeyFromSeed(seed)}, "0x" + hex.EncodeToString(seed), nil
}

func (k *Keypair) AccountId() AccountId {
	var id AccountId
	copy(id[:], k.priv.Public().(ed25519.PublicKey))
	return id
}

func (k *Keypair) PrivateKey() ed25519.PrivateKey {
	return k.priv
}

func (a AccountId) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(a[:])
}

func ParseEthPrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		log.Errorf("Failed to parse private key: %v", err)
		return nil, err
	}
	return privateKey, nil
}

func PrivateKeyToGethAddress(privateKeyHex string) (common.Address, error) {
	privateKey, err := ParseEthPrivateKey(privateKeyHex)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(privateKey.PublicKey), nil
}
