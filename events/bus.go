// Package events delivers live NewPayment events to local listeners.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgate-org/dgate-go/logger"
	"github.com/dgate-org/dgate-go/metrics"
	"github.com/dgate-org/dgate-go/types"
	"github.com/dgate-org/dgate-go/utils"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Counter names recorded by the bus.
const (
	MetricDelivered    = "payment_delivered"
	MetricDropped      = "payment_dropped"
	MetricDecodeFailed = "payment_decode_failed"
	MetricListenerFail = "listener_failed"
)

// Listener receives payments made to the bound account. A returned error is
// logged and does not affect other listeners.
type Listener func(payment types.PaymentRecord) error

// Decoder turns a raw contract log into a payment.
type Decoder interface {
	PaymentFromLog(log ethtypes.Log) (types.PaymentRecord, error)
}

type listener struct {
	fn Listener
}

// Bus is an ordered list of listeners owned by one SDK instance.
type Bus struct {
	mu        sync.Mutex
	listeners []*listener

	decoder Decoder
	account func() string
	logger  logger.Logger
	metrics metrics.Recorder
	labels  map[string]string
}

// NewBus creates a bus. account is read for every event so that rebinding the
// account affects only events evaluated afterwards.
func NewBus(decoder Decoder, account func() string, log logger.Logger, rec metrics.Recorder, chain string) *Bus {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Bus{
		decoder: decoder,
		account: account,
		logger:  logger.With(log, map[string]any{"component": "events"}),
		metrics: rec,
		labels:  map[string]string{"chain": chain},
	}
}

// Subscribe registers fn. Registering the same function twice delivers twice.
// The returned func removes this registration only.
func (b *Bus) Subscribe(fn Listener) (remove func()) {
	l := &listener{fn: fn}

	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, cur := range b.listeners {
				if cur == l {
					b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Publish calls every listener registered at call time, in registration order.
// It returns the number of listeners that failed.
func (b *Bus) Publish(payment types.PaymentRecord) int {
	b.mu.Lock()
	hs := make([]*listener, len(b.listeners))
	copy(hs, b.listeners)
	b.mu.Unlock()

	failed := 0
	for i, h := range hs {
		if err := callListener(h.fn, payment); err != nil {
			failed++
			b.metrics.IncCounter(MetricListenerFail, b.labels)
			b.logger.Error("payment listener failed", map[string]any{
				"listener": i,
				"id":       payment.ID,
				"error":    err.Error(),
			})
		}
	}
	return failed
}

// Dispatch publishes payment if it was made to the bound account and reports
// whether it did.
func (b *Bus) Dispatch(payment types.PaymentRecord) bool {
	account := b.account()
	if !utils.SameAddress(payment.To, account) {
		b.metrics.IncCounter(MetricDropped, b.labels)
		b.logger.Debug("dropping payment to another account", map[string]any{"id": payment.ID, "to": payment.To})
		return false
	}

	b.metrics.IncCounter(MetricDelivered, b.labels)
	b.logger.Debug("delivering payment", map[string]any{"id": payment.ID, "amount": payment.Amount.String()})
	b.Publish(payment)
	return true
}

// HandleLog decodes log and dispatches the payment. Undecodable and reorged
// logs are dropped.
func (b *Bus) HandleLog(log ethtypes.Log) bool {
	if log.Removed {
		b.logger.Warn("ignoring payment log removed by reorg", map[string]any{"tx": log.TxHash.Hex()})
		return false
	}

	payment, err := b.decoder.PaymentFromLog(log)
	if err != nil {
		b.metrics.IncCounter(MetricDecodeFailed, b.labels)
		b.logger.Error("failed to decode payment log", map[string]any{
			"tx":    log.TxHash.Hex(),
			"error": err.Error(),
		})
		return false
	}
	return b.Dispatch(payment)
}

// Run handles logs until ctx is done, logs is closed or errs yields. A closed
// errs channel means the source was shut down and ends Run without error.
func (b *Bus) Run(ctx context.Context, logs <-chan ethtypes.Log, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			b.logger.Error("payment log stream ended", map[string]any{"error": err.Error()})
			return err
		case log, ok := <-logs:
			if !ok {
				return nil
			}
			b.HandleLog(log)
		}
	}
}

func callListener(fn Listener, payment types.PaymentRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return fn(payment)
}
