package types

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Hash is a 32-byte blake2b-256 digest (block hashes, extrinsic hashes).
type Hash [32]byte

// AccountId is a native account, the raw ed25519 public key.
type AccountId [32]byte

// ReceiptId identifies a cross-chain transfer in either direction.
type ReceiptId [32]byte

// Blake2b256 hashes the concatenation of parts.
func Blake2b256(parts ...[]byte) Hash {
	h, _ := blake2b.New256(nil)
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func decode32(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func encode32(b [32]byte) string {
	return "0x" + hex.EncodeToString(b[:])
}

func ParseHash(s string) (Hash, error) {
	b, err := decode32(s)
	return Hash(b), err
}

func (h Hash) Hex() string                  { return encode32(h) }
func (h Hash) String() string               { return h.Hex() }
func (h Hash) IsZero() bool                 { return h == Hash{} }
func (h Hash) Bytes() []byte                { return h[:] }
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.Hex()), nil }

func (h *Hash) UnmarshalText(text []byte) error {
	v, err := ParseHash(string(text))
	if err != nil {
		return fmt.Errorf("invalid hash: %w", err)
	}
	*h = v
	return nil
}

func ParseAccountId(s string) (AccountId, error) {
	b, err := decode32(s)
	return AccountId(b), err
}

func MustParseAccountId(s string) AccountId {
	a, err := ParseAccountId(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a AccountId) Hex() string    { return encode32(a) }
func (a AccountId) String() string { return a.Hex() }
func (a AccountId) IsZero() bool   { return a == AccountId{} }
func (a AccountId) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

func (a *AccountId) UnmarshalText(text []byte) error {
	v, err := ParseAccountId(string(text))
	if err != nil {
		return fmt.Errorf("invalid account id: %w", err)
	}
	*a = v
	return nil
}

func ParseReceiptId(s string) (ReceiptId, error) {
	b, err := decode32(s)
	return ReceiptId(b), err
}

func (r ReceiptId) Hex() string    { return encode32(r) }
func (r ReceiptId) String() string { return r.Hex() }
func (r ReceiptId) MarshalText() ([]byte, error) {
	return []byte(r.Hex()), nil
}

func (r *ReceiptId) UnmarshalText(text []byte) error {
	v, err := ParseReceiptId(string(text))
	if err != nil {
		return fmt.Errorf("invalid receipt id: %w", err)
	}
	*r = v
	return nil
}

// Value and Scan let ids be stored as hex text columns.
func (r ReceiptId) Value() (driver.Value, error) { return r.Hex(), nil }

func (r *ReceiptId) Scan(src interface{}) error {
	s, ok := src.(string)
	if !ok {
		if b, isBytes := src.([]byte); isBytes {
			s = string(b)
		} else {
			return fmt.Errorf("cannot scan %T into ReceiptId", src)
		}
	}
	return r.UnmarshalText([]byte(s))
}
