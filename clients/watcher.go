package clients

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/dgate-org/dgate-go/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	DefaultPollInterval = 4 * time.Second
	defaultBackoffMax   = 30 * time.Second
)

// LogWatcher streams NewPayment logs of the gateway contract.
//
// It subscribes through the backend when the endpoint supports push
// notifications and otherwise polls for new blocks. Failed subscriptions are
// re-established with exponential backoff.
type LogWatcher struct {
	backend      Backend
	query        ethereum.FilterQuery
	pollInterval time.Duration
	backoffMax   time.Duration
	logger       logger.Logger

	// next block not yet delivered; only touched by the active subscription
	next uint64
}

// NewPaymentWatcher creates a watcher for the client's NewPayment events.
func (c *GatewayClient) NewPaymentWatcher(pollInterval time.Duration, log logger.Logger) *LogWatcher {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &LogWatcher{
		backend:      c.backend,
		query:        c.NewPaymentQuery(),
		pollInterval: pollInterval,
		backoffMax:   defaultBackoffMax,
		logger:       logger.With(log, map[string]any{"component": "watcher"}),
	}
}

// Watch starts delivering logs to sink. Unsubscribe stops it and closes Err().
//
// After a dropped subscription is re-established, blocks mined while it was
// down are fetched with FilterLogs before live logs resume.
func (w *LogWatcher) Watch(sink chan<- types.Log) event.Subscription {
	return event.ResubscribeErr(w.backoffMax, func(ctx context.Context, lastErr error) (event.Subscription, error) {
		if lastErr != nil {
			w.logger.Warn("payment log stream failed, resubscribing", map[string]any{"error": lastErr.Error()})
		}

		sub, err := w.subscribe(ctx, sink)
		if err == nil {
			w.logger.Debug("subscribed to payment logs", nil)
			return sub, nil
		}
		if errors.Is(err, rpc.ErrNotificationsUnsupported) {
			w.logger.Debug("endpoint cannot push logs, polling", map[string]any{"interval": w.pollInterval.String()})
			return w.poll(sink), nil
		}
		return nil, err
	})
}

func (w *LogWatcher) subscribe(ctx context.Context, sink chan<- types.Log) (event.Subscription, error) {
	logs := make(chan types.Log, 16)
	inner, err := w.backend.SubscribeFilterLogs(ctx, w.query, logs)
	if err != nil {
		return nil, err
	}
	head, err := w.backend.BlockNumber(ctx)
	if err != nil {
		inner.Unsubscribe()
		return nil, err
	}

	// from is zero on the first subscription: there is no gap to fill yet.
	from := w.next
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer inner.Unsubscribe()
		ctx, cancel := quitContext(quit)
		defer cancel()

		if from > 0 && from <= head {
			if err := w.backfill(ctx, sink, quit, from, head); err != nil {
				return err
			}
		}
		if w.next <= head {
			w.next = head + 1
		}

		for {
			select {
			case <-quit:
				return nil
			case err := <-inner.Err():
				return err
			case l := <-logs:
				// covered by the backfill
				if from > 0 && l.BlockNumber <= head && !l.Removed {
					continue
				}
				select {
				case sink <- l:
				case <-quit:
					return nil
				}
				if l.BlockNumber >= w.next {
					w.next = l.BlockNumber + 1
				}
			}
		}
	}), nil
}

func (w *LogWatcher) backfill(ctx context.Context, sink chan<- types.Log, quit <-chan struct{}, from, to uint64) error {
	q := w.query
	q.FromBlock = new(big.Int).SetUint64(from)
	q.ToBlock = new(big.Int).SetUint64(to)

	logs, err := w.backend.FilterLogs(ctx, q)
	if err != nil {
		return err
	}
	for _, l := range logs {
		select {
		case sink <- l:
		case <-quit:
			return nil
		}
	}
	w.logger.Info("backfilled payment logs", map[string]any{"from": from, "to": to, "count": len(logs)})
	return nil
}

func (w *LogWatcher) poll(sink chan<- types.Log) event.Subscription {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		ctx, cancel := quitContext(quit)
		defer cancel()

		if w.next == 0 {
			head, err := w.backend.BlockNumber(ctx)
			if err != nil {
				return err
			}
			w.next = head + 1
		}

		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-quit:
				return nil
			case <-ticker.C:
			}

			head, err := w.backend.BlockNumber(ctx)
			if err != nil {
				return err
			}
			if head < w.next {
				continue
			}

			q := w.query
			q.FromBlock = new(big.Int).SetUint64(w.next)
			q.ToBlock = new(big.Int).SetUint64(head)

			logs, err := w.backend.FilterLogs(ctx, q)
			if err != nil {
				return err
			}
			for _, l := range logs {
				select {
				case sink <- l:
				case <-quit:
					return nil
				}
			}
			w.next = head + 1
		}
	})
}

// quitContext returns a context cancelled when quit closes.
func quitContext(quit <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-quit:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
