// Package codec converts raw gateway-contract payments into PaymentRecords.
//
// On-chain amounts are integers scaled by 10^18. They are converted with
// decimal.NewFromBigInt, which is exact: no float or string round trip is
// involved. The only lossy step offered is AmountToFloat64, which rounds
// half-to-even at 18 fractional digits before converting.
package codec

import (
	"fmt"
	"math/big"

	"github.com/dgate-org/dgate-go/types"
	"github.com/dgate-org/dgate-go/utils"
	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of the chain's native currency.
const Decimals = 18

// ParseRawPayment decodes raw into a PaymentRecord. It never truncates: ids that
// do not fit in uint64, times that do not fit in int64 and negative values are
// reported as decode errors.
func ParseRawPayment(raw *types.RawPayment) (types.PaymentRecord, error) {
	if raw == nil {
		return types.PaymentRecord{}, types.NewError(types.CodeDecode, "raw payment is missing", nil)
	}
	if err := utils.ValidateStruct(raw); err != nil {
		return types.PaymentRecord{}, types.NewError(types.CodeDecode, "raw payment is missing required fields", err)
	}
	if raw.Id == nil || raw.Time == nil {
		return types.PaymentRecord{}, types.NewError(types.CodeDecode, "raw payment is missing id or time", nil)
	}

	if raw.Id.Sign() < 0 || !raw.Id.IsUint64() {
		return types.PaymentRecord{}, types.NewError(types.CodeDecode, fmt.Sprintf("payment id %s overflows uint64", raw.Id), nil)
	}
	if raw.Time.Sign() < 0 || !raw.Time.IsInt64() {
		return types.PaymentRecord{}, types.NewError(types.CodeDecode, fmt.Sprintf("payment time %s is out of range", raw.Time), nil)
	}

	amount, err := fromFixedPoint("amount", raw.Amount)
	if err != nil {
		return types.PaymentRecord{}, err
	}
	fee, err := fromFixedPoint("fee", raw.Fee)
	if err != nil {
		return types.PaymentRecord{}, err
	}

	return types.PaymentRecord{
		ID:     raw.Id.Uint64(),
		From:   raw.From.Hex(),
		To:     raw.To.Hex(),
		Amount: amount,
		Fee:    fee,
		Time:   raw.Time.Int64(),
	}, nil
}

// ParseRawPayments decodes a list, preserving order. The first failure aborts.
func ParseRawPayments(raws []types.RawPayment) ([]types.PaymentRecord, error) {
	out := make([]types.PaymentRecord, 0, len(raws))
	for i := range raws {
		p, err := ParseRawPayment(&raws[i])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ToFixedPoint converts a currency amount to its on-chain integer form.
func ToFixedPoint(amount decimal.Decimal) (*big.Int, error) {
	return utils.ScaleToBigInt(amount, Decimals)
}

// AmountToFloat64 returns a float view of d, rounded half-to-even at 18 digits.
func AmountToFloat64(d decimal.Decimal) float64 {
	f, _ := d.RoundBank(Decimals).Float64()
	return f
}

func fromFixedPoint(field string, v *big.Int) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Decimal{}, types.NewError(types.CodeDecode, fmt.Sprintf("payment %s is missing", field), nil)
	}
	if v.Sign() < 0 {
		return decimal.Decimal{}, types.NewError(types.CodeDecode, fmt.Sprintf("payment %s %s is negative", field, v), nil)
	}
	return utils.FormatAmountFromBigInt(v, Decimals), nil
}
