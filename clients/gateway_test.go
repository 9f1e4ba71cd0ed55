package clients

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	dgtypes "github.com/dgate-org/dgate-go/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*GatewayClient, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	client, err := NewGatewayClient(backend, contractHex)
	require.NoError(t, err)
	return client, backend
}

func TestNewGatewayClient_Invalid(t *testing.T) {
	_, err := NewGatewayClient(newFakeBackend(), "0x1234")
	assert.ErrorIs(t, err, dgtypes.ErrInvalidAddress)

	// one letter's case flipped
	_, err = NewGatewayClient(newFakeBackend(), "0x85334eEB36e318cF6eA4c0DBD21D51891095dc05")
	assert.ErrorIs(t, err, dgtypes.ErrInvalidAddress)

	_, err = NewGatewayClient(nil, contractHex)
	assert.ErrorIs(t, err, dgtypes.ErrInvalidConfig)
}

func TestGetPayment(t *testing.T) {
	client, backend := newTestClient(t)
	backend.add(rawPayment(7, merchant, "2000000000000000000"))

	p, err := client.GetPayment(context.Background(), merchant.Hex(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), p.ID)
	assert.Equal(t, merchant.Hex(), p.To)
	assert.Equal(t, payer.Hex(), p.From)
	assert.True(t, decimal.NewFromInt(2).Equal(p.Amount))
	assert.True(t, decimal.RequireFromString("0.001").Equal(p.Fee))
	assert.Equal(t, int64(1700000000), p.Time)
}

func TestGetPayment_LowercaseAccount(t *testing.T) {
	client, backend := newTestClient(t)
	backend.add(rawPayment(3, merchant, "1"))

	p, err := client.GetPayment(context.Background(), "0x70997970c51812dc3a010c7d01b50e0d17dc79c8", 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), p.ID)
}

func TestGetPayment_NegativeIDMakesNoCall(t *testing.T) {
	client, backend := newTestClient(t)

	_, err := client.GetPayment(context.Background(), merchant.Hex(), -1)
	assert.ErrorIs(t, err, dgtypes.ErrInvalidArgument)
	assert.Equal(t, 0, backend.callCount())
}

func TestGetPayment_NotFound(t *testing.T) {
	client, backend := newTestClient(t)
	backend.add(rawPayment(1, merchant, "1"))

	_, err := client.GetPayment(context.Background(), merchant.Hex(), 99)
	assert.ErrorIs(t, err, dgtypes.ErrNotFound)

	other := rawPayment(5, merchant, "1")
	backend.override = &other
	_, err = client.GetPayment(context.Background(), merchant.Hex(), 6)
	assert.ErrorIs(t, err, dgtypes.ErrNotFound, "id mismatch")

	wrongRecipient := rawPayment(6, stranger, "1")
	backend.override = &wrongRecipient
	_, err = client.GetPayment(context.Background(), merchant.Hex(), 6)
	assert.ErrorIs(t, err, dgtypes.ErrNotFound, "recipient mismatch")
}

func TestGetPayment_ZeroIDWithoutRecord(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.GetPayment(context.Background(), merchant.Hex(), 0)
	assert.ErrorIs(t, err, dgtypes.ErrNotFound)
}

func TestGetPayment_RemoteError(t *testing.T) {
	client, backend := newTestClient(t)
	cause := errors.New("connection refused")
	backend.callErr = cause

	_, err := client.GetPayment(context.Background(), merchant.Hex(), 1)
	assert.ErrorIs(t, err, dgtypes.ErrRemote)
	assert.ErrorIs(t, err, cause)

	backend.callErr = nil
	backend.add(rawPayment(1, merchant, "1"))
	_, err = client.GetPayment(context.Background(), merchant.Hex(), 1)
	assert.NoError(t, err, "a failed call must not break the client")
}

func TestGetPayment_InvalidAccount(t *testing.T) {
	client, backend := newTestClient(t)

	_, err := client.GetPayment(context.Background(), "nope", 1)
	assert.ErrorIs(t, err, dgtypes.ErrInvalidAddress)
	assert.Equal(t, 0, backend.callCount())
}

func TestGetAllPayments(t *testing.T) {
	client, backend := newTestClient(t)
	backend.add(rawPayment(9, merchant, "1"))
	backend.add(rawPayment(2, merchant, "2"))
	backend.add(rawPayment(4, stranger, "3"))
	backend.add(rawPayment(5, merchant, "3"))

	payments, err := client.GetAllPayments(context.Background(), merchant.Hex())
	require.NoError(t, err)
	require.Len(t, payments, 3)
	assert.Equal(t, []uint64{9, 2, 5}, []uint64{payments[0].ID, payments[1].ID, payments[2].ID})

	none, err := client.GetAllPayments(context.Background(), payer.Hex())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetAllPayments_DecodeFailure(t *testing.T) {
	client, backend := newTestClient(t)
	bad := rawPayment(1, merchant, "1")
	bad.Time = new(big.Int).Lsh(big.NewInt(1), 70)
	backend.add(rawPayment(2, merchant, "1"))
	backend.add(bad)

	_, err := client.GetAllPayments(context.Background(), merchant.Hex())
	assert.ErrorIs(t, err, dgtypes.ErrDecode)
}

func TestPaymentFromLog(t *testing.T) {
	client, _ := newTestClient(t)

	log := paymentLog(10, rawPayment(7, merchant, "2000000000000000000"))
	p, err := client.PaymentFromLog(log)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), p.ID)
	assert.True(t, decimal.NewFromInt(2).Equal(p.Amount))

	wrongTopic := log
	wrongTopic.Topics = []common.Hash{{0x01}}
	_, err = client.PaymentFromLog(wrongTopic)
	assert.ErrorIs(t, err, dgtypes.ErrDecode)

	noTopics := log
	noTopics.Topics = nil
	_, err = client.PaymentFromLog(noTopics)
	assert.ErrorIs(t, err, dgtypes.ErrDecode)

	otherContract := log
	otherContract.Address = stranger
	_, err = client.PaymentFromLog(otherContract)
	assert.ErrorIs(t, err, dgtypes.ErrDecode)

	truncated := log
	truncated.Data = log.Data[:32]
	_, err = client.PaymentFromLog(truncated)
	assert.ErrorIs(t, err, dgtypes.ErrDecode)
}

func TestNewPaymentQuery(t *testing.T) {
	client, _ := newTestClient(t)
	q := client.NewPaymentQuery()
	require.Len(t, q.Addresses, 1)
	assert.Equal(t, common.HexToAddress(contractHex), q.Addresses[0])
	require.Len(t, q.Topics, 1)
	assert.Equal(t, []common.Hash{gatewayABI.Events[eventNewPayment].ID}, q.Topics[0])
}

type rpcReq struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type rpcResp struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

// newGatewayRPCServer serves a BSC-like node over HTTP, answering contract
// calls from backend and reporting one new block per eth_blockNumber poll.
func newGatewayRPCServer(t *testing.T, backend *fakeBackend, head *atomic.Uint64) *httptest.Server {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("skip: httptest server unavailable in this environment: %v", r)
		}
	}()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req rpcReq
		_ = json.NewDecoder(r.Body).Decode(&req)

		res := rpcResp{JSONRPC: "2.0", ID: req.ID}
		switch req.Method {
		case "eth_chainId":
			res.Result = "0x61"
		case "eth_call":
			var call struct {
				To    common.Address `json:"to"`
				Input hexutil.Bytes  `json:"input"`
				Data  hexutil.Bytes  `json:"data"`
			}
			_ = json.Unmarshal(req.Params[0], &call)
			input := call.Input
			if len(input) == 0 {
				input = call.Data
			}
			to := call.To
			out, err := backend.CallContract(r.Context(), ethereum.CallMsg{To: &to, Data: input}, nil)
			if err != nil {
				res.Error = map[string]interface{}{"code": 3, "message": err.Error()}
			} else {
				res.Result = hexutil.Encode(out)
			}
		case "eth_blockNumber":
			res.Result = hexutil.EncodeUint64(head.Add(1))
		case "eth_getLogs":
			var arg struct {
				FromBlock *hexutil.Big `json:"fromBlock"`
				ToBlock   *hexutil.Big `json:"toBlock"`
			}
			_ = json.Unmarshal(req.Params[0], &arg)
			logs, _ := backend.FilterLogs(r.Context(), ethereum.FilterQuery{
				FromBlock: (*big.Int)(arg.FromBlock),
				ToBlock:   (*big.Int)(arg.ToBlock),
			})
			if logs == nil {
				logs = []types.Log{}
			}
			res.Result = logs
		default:
			res.Error = map[string]interface{}{"code": -32601, "message": "method not found"}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	}))
}

func TestGatewayClient_WithMockRPC(t *testing.T) {
	backend := newFakeBackend()
	backend.add(rawPayment(42, merchant, "1000000000000000"))
	backend.add(rawPayment(43, merchant, "2500000000000000000"))

	var head atomic.Uint64
	head.Store(100)
	srv := newGatewayRPCServer(t, backend, &head)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rpcBackend, err := Dial(ctx, srv.URL)
	require.NoError(t, err)
	defer rpcBackend.Close()

	client, err := NewGatewayClient(rpcBackend, contractHex)
	require.NoError(t, err)

	p, err := client.GetPayment(ctx, merchant.Hex(), 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), p.ID)
	assert.Equal(t, "0.001", p.Amount.String())

	_, err = client.GetPayment(ctx, merchant.Hex(), 41)
	assert.ErrorIs(t, err, dgtypes.ErrNotFound)

	all, err := client.GetAllPayments(ctx, merchant.Hex())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2.5", all[1].Amount.String())

	_, err = rpcBackend.SubscribeFilterLogs(ctx, client.NewPaymentQuery(), make(chan types.Log))
	assert.ErrorIs(t, err, rpc.ErrNotificationsUnsupported)
}

func TestWatcher_PollsOverHTTP(t *testing.T) {
	backend := newFakeBackend()
	var head atomic.Uint64
	head.Store(100)
	srv := newGatewayRPCServer(t, backend, &head)
	defer srv.Close()

	rpcBackend, err := Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer rpcBackend.Close()

	client, err := NewGatewayClient(rpcBackend, contractHex)
	require.NoError(t, err)

	// the poller starts past the first reported head; mine a few blocks later
	backend.head = 104
	backend.mine(rawPayment(8, merchant, "1"))

	sink := make(chan types.Log, 8)
	sub := client.NewPaymentWatcher(10*time.Millisecond, nil).Watch(sink)
	defer sub.Unsubscribe()

	select {
	case l := <-sink:
		p, err := client.PaymentFromLog(l)
		require.NoError(t, err)
		assert.Equal(t, uint64(8), p.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("no log delivered by poller")
	}
}
