// Package dgate is a client SDK for the D-Gate payment gateway on BNB Smart Chain.
//
// A DGate instance is bound to one merchant wallet. It looks up payments made
// to that wallet, streams new payments to registered listeners as they land on
// chain, and builds payment links for the hosted gateway page.
package dgate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgate-org/dgate-go/clients"
	"github.com/dgate-org/dgate-go/events"
	"github.com/dgate-org/dgate-go/link"
	"github.com/dgate-org/dgate-go/logger"
	"github.com/dgate-org/dgate-go/metrics"
	"github.com/dgate-org/dgate-go/types"
	"github.com/dgate-org/dgate-go/utils"
	"github.com/dgate-org/dgate-go/verification"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// DefaultTimeout bounds chain calls whose context carries no deadline.
const DefaultTimeout = 30 * time.Second

const (
	Testnet = types.ChainTestnet
	Mainnet = types.ChainMainnet
)

type (
	Chain         = types.Chain
	PaymentRecord = types.PaymentRecord
	Listener      = events.Listener
)

// DGate is the SDK entry point. It is safe for concurrent use.
type DGate struct {
	mu      sync.RWMutex
	account string

	network types.NetworkConfig
	client  *clients.GatewayClient
	bus     *events.Bus

	sub       event.Subscription
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	logger          logger.Logger
	metrics         metrics.Recorder
	timeout         time.Duration
	contractAddress string
	rpcURL          string
	backend         clients.Backend
	ownsBackend     bool
	pollInterval    time.Duration
}

// New creates an instance watching walletAddress on chain. It fails with
// types.ErrInvalidAddress for a malformed wallet or contract address and with
// types.ErrUnsupportedChain for an unknown chain. The returned instance is
// already subscribed to new payments; call Close to stop it.
func New(walletAddress string, chain Chain, opts ...Option) (*DGate, error) {
	d := &DGate{
		logger:       logger.NoopLogger{},
		metrics:      metrics.NoopRecorder{},
		timeout:      DefaultTimeout,
		pollInterval: clients.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(d)
	}

	account, err := utils.NormalizeAddress(walletAddress)
	if err != nil {
		return nil, types.NewError(types.CodeInvalidAddress, "wallet's address is not a valid blockchain address", err)
	}
	d.account = account

	network, err := types.ResolveNetwork(chain)
	if err != nil {
		return nil, err
	}
	if d.contractAddress != "" {
		network.ContractAddress = d.contractAddress
	}
	if d.rpcURL != "" {
		network.RPCURL = d.rpcURL
	}
	network.ContractAddress, err = utils.NormalizeAddress(network.ContractAddress)
	if err != nil {
		return nil, types.NewError(types.CodeInvalidAddress, "contract's address is not a valid blockchain address", err)
	}
	d.network = network

	backend := d.backend
	if backend == nil {
		ctx, cancel := d.withTimeout(context.Background())
		backend, err = clients.Dial(ctx, network.RPCURL)
		cancel()
		if err != nil {
			return nil, err
		}
		d.ownsBackend = true
	}

	d.client, err = clients.NewGatewayClient(backend, network.ContractAddress)
	if err != nil {
		if d.ownsBackend {
			backend.Close()
		}
		return nil, err
	}

	d.bus = events.NewBus(d.client, d.Account, d.logger, d.metrics, network.Chain.String())
	d.start()

	d.logger.Info("dgate client started", map[string]any{
		"chain":    network.Name,
		"contract": network.ContractAddress,
		"account":  account,
	})
	return d, nil
}

// NewFromConfig creates an instance from a Config, typically loaded with
// utils.ParseConfig or utils.ConfigFromEnv. Options given here take precedence
// over the config.
func NewFromConfig(cfg *types.Config, opts ...Option) (*DGate, error) {
	if cfg == nil {
		return nil, types.NewError(types.CodeInvalidConfig, "config is required", nil)
	}
	if err := utils.ValidateAddress(cfg.WalletAddress); err != nil {
		return nil, types.NewError(types.CodeInvalidAddress, "wallet's address is not a valid blockchain address", err)
	}
	if err := utils.ValidateStruct(cfg); err != nil {
		return nil, types.NewError(types.CodeInvalidConfig, "invalid config", err)
	}

	var base []Option
	if cfg.LogLevel != "" {
		base = append(base, WithLogger(logger.NewZapLogger(cfg.LogLevel)))
	}
	if cfg.EnableMetrics {
		rec, err := metrics.NewPrometheusRecorder(prometheus.DefaultRegisterer)
		if err != nil {
			return nil, types.NewError(types.CodeInvalidConfig, "failed to register metrics", err)
		}
		base = append(base, WithMetrics(rec))
	}
	if cfg.ContractAddress != "" {
		base = append(base, WithContractAddress(cfg.ContractAddress))
	}
	if cfg.RPCURL != "" {
		base = append(base, WithRPCURL(cfg.RPCURL))
	}
	if cfg.Timeout > 0 {
		base = append(base, WithTimeout(cfg.Timeout))
	}
	if cfg.PollInterval > 0 {
		base = append(base, WithPollInterval(cfg.PollInterval))
	}

	return New(cfg.WalletAddress, cfg.Chain, append(base, opts...)...)
}

func (d *DGate) start() {
	logs := make(chan ethtypes.Log, 64)
	d.sub = d.client.NewPaymentWatcher(d.pollInterval, d.logger).Watch(logs)

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		if err := d.bus.Run(ctx, logs, d.sub.Err()); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("payment event loop stopped", map[string]any{"error": err.Error()})
		}
	}()
}

// Account returns the bound wallet address as it was given, with a 0x prefix.
func (d *DGate) Account() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.account
}

// SetAccount rebinds the instance to address. Lookups issued and events
// evaluated afterwards use the new account.
func (d *DGate) SetAccount(address string) error {
	address, err := utils.NormalizeAddress(address)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.account = address
	d.mu.Unlock()

	d.logger.Info("account rebound", map[string]any{"account": address})
	return nil
}

// Network returns the resolved network configuration.
func (d *DGate) Network() types.NetworkConfig {
	return d.network
}

// GetPayment returns the payment for invoice id made to the bound account.
// A negative id fails with types.ErrInvalidArgument before any remote call; an
// unknown id fails with types.ErrNotFound.
//
// Nothing is throttled. Callers polling in a loop own their rate limiting.
func (d *DGate) GetPayment(ctx context.Context, id int64) (PaymentRecord, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	p, err := d.client.GetPayment(ctx, d.Account(), id)
	d.metrics.ObserveLatency("get_payment", time.Since(start), d.labels())
	if err != nil {
		d.lookupFailed("get_payment", err)
		return PaymentRecord{}, err
	}
	return p, nil
}

// GetAllPayments returns every payment made to the bound account, in the
// order the contract keeps them.
func (d *DGate) GetAllPayments(ctx context.Context) ([]PaymentRecord, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	payments, err := d.client.GetAllPayments(ctx, d.Account())
	d.metrics.ObserveLatency("get_all_payments", time.Since(start), d.labels())
	if err != nil {
		d.lookupFailed("get_all_payments", err)
		return nil, err
	}
	return payments, nil
}

// OnNewPayment registers fn for payments made to the bound account. Listeners
// run on the event goroutine in registration order; a listener that errors or
// panics does not affect the others. The returned func unregisters fn.
//
// Listeners must not call Close.
func (d *DGate) OnNewPayment(fn Listener) (remove func()) {
	return d.bus.Subscribe(fn)
}

// CreatePaymentURL builds the gateway link for an invoice payable to the
// bound account. redirect may be empty.
func (d *DGate) CreatePaymentURL(id uint64, amount decimal.Decimal, redirect string) (string, error) {
	return link.BuildURL(d.network.GatewayURL, link.Params{
		ID:       id,
		Address:  d.Account(),
		Amount:   amount,
		Redirect: redirect,
	})
}

// IsSamePayment reports whether a and b are the same payment.
func IsSamePayment(a, b types.Payable) bool {
	return verification.IsSamePayment(a, b)
}

// Close stops the payment subscription and releases the connection.
func (d *DGate) Close() {
	d.closeOnce.Do(func() {
		d.cancel()
		d.sub.Unsubscribe()
		<-d.done
		if d.ownsBackend {
			d.client.Close()
		}
		d.logger.Info("dgate client stopped", nil)
	})
}

func (d *DGate) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

func (d *DGate) labels() map[string]string {
	return map[string]string{"chain": d.network.Chain.String()}
}

func (d *DGate) lookupFailed(op string, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrInvalidArgument):
		return
	}
	d.metrics.IncCounter("lookup_failed", d.labels())
	d.logger.Warn("payment lookup failed", map[string]any{"operation": op, "error": err.Error()})
}
