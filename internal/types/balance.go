package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Balance is an unsigned 128-bit amount. Arithmetic helpers saturate at
// zero and MaxBalance instead of wrapping.
type Balance uint256.Int

var maxBalance = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

var (
	ZeroBalance = Balance{}
	MaxBalance  = Balance(*maxBalance)
)

func NewBalance(v uint64) Balance {
	return Balance(*uint256.NewInt(v))
}

// ParseBalance parses a decimal string and rejects values above MaxBalance.
func ParseBalance(s string) (Balance, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return ZeroBalance, fmt.Errorf("invalid balance %q: %w", s, err)
	}
	if v.Gt(maxBalance) {
		return ZeroBalance, fmt.Errorf("balance %q exceeds u128", s)
	}
	return Balance(*v), nil
}

func MustParseBalance(s string) Balance {
	b, err := ParseBalance(s)
	if err != nil {
		panic(err)
	}
	return b
}

// BalanceFromUint256 converts a full-width value, reporting whether it fits in 128 bits.
func BalanceFromUint256(v *uint256.Int) (Balance, bool) {
	if v.Gt(maxBalance) {
		return ZeroBalance, false
	}
	return Balance(*v), true
}

func BalanceFromBig(v *big.Int) (Balance, bool) {
	if v == nil || v.Sign() < 0 {
		return ZeroBalance, false
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return ZeroBalance, false
	}
	return BalanceFromUint256(u)
}

func (b Balance) u256() *uint256.Int {
	v := uint256.Int(b)
	return &v
}

func clamp(v *uint256.Int, overflow bool) Balance {
	if overflow || v.Gt(maxBalance) {
		return MaxBalance
	}
	return Balance(*v)
}

func (b Balance) SaturatingAdd(o Balance) Balance {
	return clamp(new(uint256.Int).AddOverflow(b.u256(), o.u256()))
}

func (b Balance) SaturatingSub(o Balance) Balance {
	v, underflow := new(uint256.Int).SubOverflow(b.u256(), o.u256())
	if underflow {
		return ZeroBalance
	}
	return Balance(*v)
}

func (b Balance) SaturatingMul(o Balance) Balance {
	return clamp(new(uint256.Int).MulOverflow(b.u256(), o.u256()))
}

// Div is floor division; dividing by zero yields zero.
func (b Balance) Div(n uint64) Balance {
	if n == 0 {
		return ZeroBalance
	}
	return Balance(*new(uint256.Int).Div(b.u256(), uint256.NewInt(n)))
}

func (b Balance) Cmp(o Balance) int {
	return b.u256().Cmp(o.u256())
}

func (b Balance) IsZero() bool {
	return b.u256().IsZero()
}

func (b Balance) Uint256() *uint256.Int {
	return b.u256()
}

func (b Balance) Big() *big.Int {
	return b.u256().ToBig()
}

// Bytes32 returns the big-endian u256 encoding used in receipt ids.
func (b Balance) Bytes32() [32]byte {
	return b.u256().Bytes32()
}

func (b Balance) String() string {
	return b.u256().Dec()
}

func (b Balance) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *Balance) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err2 := json.Unmarshal(data, &n); err2 != nil {
			return fmt.Errorf("invalid balance json: %w", err)
		}
		s = n.String()
	}
	v, err := ParseBalance(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (b Balance) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Balance) UnmarshalText(text []byte) error {
	v, err := ParseBalance(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// GormDataType stores balances as decimal text, sqlite has no u128 column type.
func (Balance) GormDataType() string {
	return "text"
}

func (b Balance) Value() (driver.Value, error) {
	return b.String(), nil
}

func (b *Balance) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*b = ZeroBalance
		return nil
	case string:
		return b.UnmarshalText([]byte(v))
	case []byte:
		return b.UnmarshalText(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("negative balance %d", v)
		}
		*b = NewBalance(uint64(v))
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Balance", src)
	}
}
