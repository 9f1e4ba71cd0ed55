package dgate

import (
	"time"

	"github.com/dgate-org/dgate-go/clients"
	"github.com/dgate-org/dgate-go/logger"
	"github.com/dgate-org/dgate-go/metrics"
)

type Option func(*DGate)

func WithLogger(l logger.Logger) Option {
	return func(d *DGate) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(d *DGate) {
		if r != nil {
			d.metrics = r
		}
	}
}

// WithTimeout sets the deadline applied to chain calls whose context has none.
// Zero disables it.
func WithTimeout(t time.Duration) Option {
	return func(d *DGate) {
		d.timeout = t
	}
}

// WithContractAddress overrides the network's gateway contract.
func WithContractAddress(address string) Option {
	return func(d *DGate) {
		d.contractAddress = address
	}
}

// WithRPCURL overrides the network's JSON-RPC endpoint. A ws:// or wss:// URL
// receives payments by subscription instead of polling.
func WithRPCURL(url string) Option {
	return func(d *DGate) {
		d.rpcURL = url
	}
}

// WithBackend uses an existing connection instead of dialing. Close does not
// close it.
func WithBackend(b clients.Backend) Option {
	return func(d *DGate) {
		d.backend = b
	}
}

// WithPollInterval sets how often new blocks are checked when the endpoint
// cannot push logs.
func WithPollInterval(interval time.Duration) Option {
	return func(d *DGate) {
		if interval > 0 {
			d.pollInterval = interval
		}
	}
}
