package clients

import (
	"context"
	"errors"
	"math/big"
	"sync"

	dgtypes "github.com/dgate-org/dgate-go/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

const contractHex = "0x85334EEB36e318cF6eA4c0DBD21D51891095dc05"

var (
	payer    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	merchant = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	stranger = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

func wei(v string) *big.Int {
	n, ok := new(big.Int).SetString(v, 10)
	if !ok {
		panic("bad number " + v)
	}
	return n
}

func rawPayment(id int64, to common.Address, amount string) dgtypes.RawPayment {
	return dgtypes.RawPayment{
		Id:     big.NewInt(id),
		From:   payer,
		To:     to,
		Amount: wei(amount),
		Fee:    wei("1000000000000000"),
		Time:   big.NewInt(1700000000),
	}
}

func emptyPayment() dgtypes.RawPayment {
	return dgtypes.RawPayment{
		Id:     big.NewInt(0),
		Amount: big.NewInt(0),
		Fee:    big.NewInt(0),
		Time:   big.NewInt(0),
	}
}

func packFindPayment(p dgtypes.RawPayment) []byte {
	out, err := gatewayABI.Methods[methodFindPayment].Outputs.Pack(p)
	if err != nil {
		panic(err)
	}
	return out
}

func packGetPayments(ps []dgtypes.RawPayment) []byte {
	if ps == nil {
		ps = []dgtypes.RawPayment{}
	}
	out, err := gatewayABI.Methods[methodGetPayments].Outputs.Pack(ps)
	if err != nil {
		panic(err)
	}
	return out
}

func paymentLog(block uint64, p dgtypes.RawPayment) types.Log {
	data, err := gatewayABI.Events[eventNewPayment].Inputs.NonIndexed().Pack(p)
	if err != nil {
		panic(err)
	}
	return types.Log{
		Address:     common.HexToAddress(contractHex),
		Topics:      []common.Hash{gatewayABI.Events[eventNewPayment].ID},
		Data:        data,
		BlockNumber: block,
	}
}

// fakeBackend answers contract calls from an in-memory payment table keyed by
// recipient, the way the gateway contract scopes payments to an account.
type fakeBackend struct {
	mu sync.Mutex

	payments map[common.Address][]dgtypes.RawPayment
	override *dgtypes.RawPayment
	callErr  error
	calls    int

	head         uint64
	logs         []types.Log
	subscribeErr error
	sink         chan<- types.Log
	drop         chan struct{}
	subscribes   int
	closed       bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{payments: make(map[common.Address][]dgtypes.RawPayment)}
}

func (f *fakeBackend) add(p dgtypes.RawPayment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[p.To] = append(f.payments[p.To], p)
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.callErr != nil {
		return nil, f.callErr
	}
	if call.To == nil || *call.To != common.HexToAddress(contractHex) {
		return nil, errors.New("execution reverted")
	}

	method, err := gatewayABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}
	account := args[0].(common.Address)

	switch method.Name {
	case methodFindPayment:
		if f.override != nil {
			return packFindPayment(*f.override), nil
		}
		id := args[1].(*big.Int)
		for _, p := range f.payments[account] {
			if p.Id.Cmp(id) == 0 {
				return packFindPayment(p), nil
			}
		}
		return packFindPayment(emptyPayment()), nil
	case methodGetPayments:
		return packGetPayments(f.payments[account]), nil
	}
	return nil, errors.New("unknown method")
}

func (f *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Log
	for _, l := range f.logs {
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeBackend) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.sink = ch
	drop := make(chan struct{})
	f.drop = drop
	return event.NewSubscription(func(quit <-chan struct{}) error {
		select {
		case <-quit:
			return nil
		case <-drop:
			return errors.New("websocket: close 1006 (abnormal closure)")
		}
	}), nil
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeBackend) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// mine appends a log at the next block.
func (f *fakeBackend) mine(p dgtypes.RawPayment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head++
	f.logs = append(f.logs, paymentLog(f.head, p))
}

// dropSubscription fails the live subscription the way a lost websocket does.
func (f *fakeBackend) dropSubscription() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.drop != nil {
		close(f.drop)
		f.drop = nil
		f.sink = nil
	}
}

func (f *fakeBackend) setSubscribeErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeErr = err
}

func (f *fakeBackend) pushSink() chan<- types.Log {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sink
}
