package ethereum

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/node"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/go-errors/errors"
)

// Client is the part of ethclient.Client the daemon depends on.
type Client interface {
	bind.ContractBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var _ Client = (*ethclient.Client)(nil)

// Dial connects to an Ethereum node, authenticating with jwtSecret when set.
func Dial(url, jwtSecret string) (*ethclient.Client, error) {
	var opts []rpc.ClientOption

	if jwtSecret != "" {
		secret := common.FromHex(strings.TrimSpace(jwtSecret))
		if len(secret) != 32 {
			return nil, errors.New("jwt secret is not a 32 bytes hex string")
		}
		var jwtKey [32]byte
		copy(jwtKey[:], secret)
		opts = append(opts, rpc.WithHTTPAuth(node.NewJWTAuth(jwtKey)))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	client, err := rpc.DialOptions(ctx, url, opts...)
	if err != nil {
		return nil, err
	}
	return ethclient.NewClient(client), nil
}

// HeadNumber returns the latest or the finalized block number.
func HeadNumber(ctx context.Context, client Client, finalized bool) (uint64, error) {
	var number *big.Int
	if finalized {
		number = big.NewInt(int64(rpc.FinalizedBlockNumber))
	}
	header, err := client.HeaderByNumber(ctx, number)
	if err != nil {
		return 0, err
	}
	return header.Number.Uint64(), nil
}

func GenesisHash(ctx context.Context, client Client) (common.Hash, error) {
	header, err := client.HeaderByNumber(ctx, big.NewInt(0))
	if err != nil {
		return common.Hash{}, err
	}
	return header.Hash(), nil
}
