package verification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgate-org/dgate-go/logger"
	"github.com/dgate-org/dgate-go/types"
)

// InvoiceStore is the merchant's invoice persistence. Get must return an error
// matching types.ErrNotFound when no invoice has the id.
type InvoiceStore interface {
	Get(ctx context.Context, id uint64) (*types.Invoice, error)
	MarkPaid(ctx context.Context, id uint64, paidAt int64) error
}

// PaymentLookup finds the on-chain payment made for an invoice id.
type PaymentLookup interface {
	GetPayment(ctx context.Context, id int64) (types.PaymentRecord, error)
}

// Result describes what reconciling one invoice did.
type Result struct {
	Invoice *types.Invoice       `json:"invoice,omitempty"`
	Payment *types.PaymentRecord `json:"payment,omitempty"`
	Paid    bool                 `json:"paid"`
	Reason  string               `json:"reason,omitempty"`
}

// Reasons reported in Result.Reason
const (
	ReasonAlreadyPaid  = "invoice already paid"
	ReasonNoInvoice    = "no invoice for payment id"
	ReasonNotPaid      = "no payment found for invoice"
	ReasonMismatch     = "payment does not match invoice"
	ReasonMarkedAsPaid = "invoice marked as paid"
)

// Reconciler applies observed payments to pending invoices.
type Reconciler struct {
	store  InvoiceStore
	lookup PaymentLookup
	logger logger.Logger
}

// NewReconciler creates a reconciler. lookup may be nil when only ApplyPayment is used.
func NewReconciler(store InvoiceStore, lookup PaymentLookup, log logger.Logger) *Reconciler {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Reconciler{
		store:  store,
		lookup: lookup,
		logger: log,
	}
}

// ApplyPayment marks the invoice with the payment's id as paid when the payment
// matches it. Suitable as the body of an OnNewPayment listener.
func (r *Reconciler) ApplyPayment(ctx context.Context, payment types.PaymentRecord) (*Result, error) {
	inv, err := r.store.Get(ctx, payment.ID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return &Result{Payment: &payment, Reason: ReasonNoInvoice}, nil
		}
		return nil, err
	}
	return r.apply(ctx, inv, payment)
}

// Reconcile checks the chain for a payment of the invoice with id and applies it.
func (r *Reconciler) Reconcile(ctx context.Context, id uint64) (*Result, error) {
	inv, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Paid {
		return &Result{Invoice: inv, Paid: true, Reason: ReasonAlreadyPaid}, nil
	}
	if r.lookup == nil {
		return nil, types.NewError(types.CodeInvalidConfig, "reconciler has no payment lookup", nil)
	}
	if id > math.MaxInt64 {
		return nil, types.NewError(types.CodeInvalidArgument, fmt.Sprintf("invoice id %d cannot be looked up", id), nil)
	}

	payment, err := r.lookup.GetPayment(ctx, int64(id))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return &Result{Invoice: inv, Reason: ReasonNotPaid}, nil
		}
		return nil, err
	}
	return r.apply(ctx, inv, payment)
}

func (r *Reconciler) apply(ctx context.Context, inv *types.Invoice, payment types.PaymentRecord) (*Result, error) {
	if inv.Paid {
		return &Result{Invoice: inv, Payment: &payment, Paid: true, Reason: ReasonAlreadyPaid}, nil
	}
	if !IsSamePayment(inv, payment) {
		r.logger.Warn("payment does not match invoice", map[string]any{
			"id":             inv.ID,
			"invoice_amount": inv.Amount.String(),
			"payment_amount": payment.Amount.String(),
			"invoice_to":     inv.To,
			"payment_to":     payment.To,
		})
		return &Result{Invoice: inv, Payment: &payment, Reason: ReasonMismatch}, nil
	}

	if err := r.store.MarkPaid(ctx, inv.ID, payment.Time); err != nil {
		return nil, err
	}
	inv.Paid = true
	inv.Time = payment.Time

	r.logger.Info("invoice paid", map[string]any{"id": inv.ID, "time": payment.Time})
	return &Result{Invoice: inv, Payment: &payment, Paid: true, Reason: ReasonMarkedAsPaid}, nil
}

// ReconcileBatch reconciles many invoices concurrently. Results are in input order.
func (r *Reconciler) ReconcileBatch(ctx context.Context, ids []uint64) ([]*Result, error) {
	if len(ids) == 0 {
		return nil, types.NewError(types.CodeInvalidArgument, "no invoice ids given", nil)
	}

	results := make([]*Result, len(ids))
	errs := make([]error, len(ids))

	type reconcileResult struct {
		index  int
		result *Result
		err    error
	}

	resultChan := make(chan reconcileResult, len(ids))

	for i, id := range ids {
		go func(index int, id uint64) {
			result, err := r.Reconcile(ctx, id)
			resultChan <- reconcileResult{
				index:  index,
				result: result,
				err:    err,
			}
		}(i, id)
	}

	for i := 0; i < len(ids); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-resultChan:
			results[res.index] = res.result
			errs[res.index] = res.err
		}
	}

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}

	return results, nil
}

// ReconcileWithRetry retries while the payment is not yet visible or the
// provider fails. Other errors are returned immediately.
func (r *Reconciler) ReconcileWithRetry(
	ctx context.Context,
	id uint64,
	maxRetries int,
	retryDelay time.Duration,
) (*Result, error) {
	var (
		lastResult *Result
		lastErr    error
	)

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		result, err := r.Reconcile(ctx, id)
		switch {
		case err == nil && result.Paid:
			return result, nil
		case err == nil:
			lastResult, lastErr = result, nil
			if result.Reason != ReasonNotPaid {
				return result, nil
			}
		case errors.Is(err, types.ErrRemote):
			lastResult, lastErr = nil, err
		default:
			return nil, err
		}

		r.logger.Debug("reconcile attempt did not settle invoice", map[string]any{"id": id, "attempt": attempt})
	}

	return lastResult, lastErr
}
