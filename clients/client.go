package clients

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the read-only slice of a JSON-RPC node the gateway needs.
// *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

var _ Backend = (*ethclient.Client)(nil)

var dialEVMClient = ethclient.DialContext

// Dial connects to rpcURL. Connecting to an HTTP endpoint does not touch the
// network; failures then surface on the first call.
func Dial(ctx context.Context, rpcURL string) (Backend, error) {
	client, err := dialEVMClient(ctx, rpcURL)
	if err != nil {
		return nil, remoteError("failed to connect to rpc endpoint", err)
	}
	return client, nil
}
