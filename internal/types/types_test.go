package types

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceSaturation(t *testing.T) {
	tests := []struct {
		name string
		got  Balance
		want Balance
	}{
		{"add", NewBalance(2).SaturatingAdd(NewBalance(3)), NewBalance(5)},
		{"add overflow", MaxBalance.SaturatingAdd(NewBalance(1)), MaxBalance},
		{"sub", NewBalance(5).SaturatingSub(NewBalance(3)), NewBalance(2)},
		{"sub underflow", NewBalance(3).SaturatingSub(NewBalance(5)), ZeroBalance},
		{"mul", NewBalance(6).SaturatingMul(NewBalance(7)), NewBalance(42)},
		{"mul overflow", MaxBalance.SaturatingMul(NewBalance(2)), MaxBalance},
		{"div floor", NewBalance(10).Div(3), NewBalance(3)},
		{"div zero", NewBalance(10).Div(0), ZeroBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 0, tt.got.Cmp(tt.want), "got %s want %s", tt.got, tt.want)
		})
	}
}

func TestParseBalance(t *testing.T) {
	b, err := ParseBalance("340282366920938463463374607431768211455")
	require.NoError(t, err)
	assert.Equal(t, MaxBalance, b)

	_, err = ParseBalance("340282366920938463463374607431768211456")
	assert.Error(t, err)

	_, err = ParseBalance("-1")
	assert.Error(t, err)
}

func TestBalanceJSON(t *testing.T) {
	var v struct {
		Amount Balance `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"1000000000000000000000"}`), &v))
	assert.Equal(t, "1000000000000000000000", v.Amount.String())

	require.NoError(t, json.Unmarshal([]byte(`{"amount":42}`), &v))
	assert.Equal(t, NewBalance(42), v.Amount)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"42"}`, string(out))
}

func TestBalanceScan(t *testing.T) {
	var b Balance
	require.NoError(t, b.Scan("123"))
	assert.Equal(t, NewBalance(123), b)
	require.NoError(t, b.Scan(int64(7)))
	assert.Equal(t, NewBalance(7), b)
	assert.Error(t, b.Scan(3.5))

	v, err := NewBalance(99).Value()
	require.NoError(t, err)
	assert.Equal(t, "99", v)
}

func TestSubstrateReceiptIdIsDeterministic(t *testing.T) {
	blockHash := Blake2b256([]byte("block"))
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	a := SubstrateReceiptId(blockHash, 3, NewBalance(100), recipient)
	b := SubstrateReceiptId(blockHash, 3, NewBalance(100), recipient)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, SubstrateReceiptId(blockHash, 4, NewBalance(100), recipient))
	assert.NotEqual(t, a, SubstrateReceiptId(blockHash, 3, NewBalance(101), recipient))
	assert.NotEqual(t, a, SubstrateReceiptId(Blake2b256([]byte("other")), 3, NewBalance(100), recipient))
}

func TestSubstrateReceiptIdLayout(t *testing.T) {
	blockHash := Blake2b256([]byte("block"))
	recipient := common.HexToAddress("0x1111111111111111111111111111111111111111")

	var payload []byte
	payload = append(payload, blockHash[:]...)
	payload = append(payload, 0, 0, 0, 2)
	amount := uint256.NewInt(5).Bytes32()
	payload = append(payload, amount[:]...)
	payload = append(payload, recipient.Bytes()...)

	assert.Equal(t, ReceiptId(Blake2b256(payload)), SubstrateReceiptId(blockHash, 2, NewBalance(5), recipient))
}

func TestEthReceiptIdLayout(t *testing.T) {
	blockHash := common.HexToHash("0xabcdef")
	recipient := AccountId(Blake2b256([]byte("alice")))
	amount := uint256.NewInt(77)

	var payload []byte
	payload = append(payload, blockHash.Bytes()...)
	payload = append(payload, 0, 0, 0, 0, 0, 0, 0, 9)
	amt := amount.Bytes32()
	payload = append(payload, amt[:]...)
	payload = append(payload, recipient[:]...)

	assert.Equal(t, ReceiptId(Blake2b256(payload)), EthReceiptId(blockHash, 9, amount, recipient))
}

func TestHexRoundTrip(t *testing.T) {
	acc := AccountId(Blake2b256([]byte("bob")))
	parsed, err := ParseAccountId(acc.Hex())
	require.NoError(t, err)
	assert.Equal(t, acc, parsed)

	_, err = ParseAccountId("0x1234")
	assert.Error(t, err)

	_, err = ParseBridgeId("llm")
	assert.NoError(t, err)
	_, err = ParseBridgeId("BTC")
	assert.Error(t, err)
}

func TestKeypairFromSeed(t *testing.T) {
	kp, seed, err := GenerateKeypair()
	require.NoError(t, err)
	again, err := KeypairFromSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, kp.AccountId(), again.AccountId())

	_, err = KeypairFromSeed("0x01")
	assert.Error(t, err)
}
