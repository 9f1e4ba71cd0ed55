package utils

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/dgate-org/dgate-go/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// NormalizeAddress validates address and returns it with a lowercase 0x
// prefix. The prefix is optional on input and the letter case of the hex
// digits is kept. Mixed-case input must carry a valid EIP-55 checksum;
// all-lowercase and all-uppercase input is accepted as is.
func NormalizeAddress(address string) (string, error) {
	if address == "" {
		return "", types.NewError(types.CodeInvalidAddress, "address cannot be empty", nil)
	}

	digits := address
	if len(digits) >= 2 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		digits = digits[2:]
	}
	normalized := "0x" + digits
	if !common.IsHexAddress(normalized) {
		return "", types.NewError(types.CodeInvalidAddress, fmt.Sprintf("%q is not a valid blockchain address", address), nil)
	}

	if digits != strings.ToLower(digits) && digits != strings.ToUpper(digits) {
		mixed, err := common.NewMixedcaseAddressFromString(normalized)
		if err != nil || !mixed.ValidChecksum() {
			return "", types.NewError(types.CodeInvalidAddress, fmt.Sprintf("%q has a bad address checksum", address), err)
		}
	}
	return normalized, nil
}

// ValidateAddress reports whether NormalizeAddress accepts address.
func ValidateAddress(address string) error {
	_, err := NormalizeAddress(address)
	return err
}

// SameAddress reports whether a and b are valid addresses naming the same
// account. Letter case and the 0x prefix are ignored.
func SameAddress(a, b string) bool {
	na, err := NormalizeAddress(a)
	if err != nil {
		return false
	}
	nb, err := NormalizeAddress(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(na, nb)
}

// ValidateAmount checks if an amount string is a valid non-negative decimal
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, types.NewError(types.CodeInvalidArgument, "amount cannot be empty", nil)
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, types.NewError(types.CodeInvalidArgument, "invalid amount format", err)
	}

	if dec.IsNegative() {
		return nil, types.NewError(types.CodeInvalidArgument, "amount cannot be negative", nil)
	}

	return &dec, nil
}

// ParsePaymentID parses an invoice id taken from user input such as a query string.
// Negative and non-integer values are rejected.
func ParsePaymentID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, types.NewError(types.CodeInvalidArgument, fmt.Sprintf("payment id %q is not an integer", s), err)
	}
	if id < 0 {
		return 0, types.NewError(types.CodeInvalidArgument, fmt.Sprintf("payment id %d is negative", id), nil)
	}
	return id, nil
}

// FormatAmountFromBigInt converts a fixed-point integer with the given number of
// fractional digits to a decimal. The conversion is exact.
func FormatAmountFromBigInt(amount *big.Int, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// ScaleToBigInt is the inverse of FormatAmountFromBigInt. Amounts carrying more
// fractional digits than decimals cannot be represented and are rejected.
func ScaleToBigInt(amount decimal.Decimal, decimals int) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, types.NewError(types.CodeInvalidArgument, "amount cannot be negative", nil)
	}
	scaled := amount.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, types.NewError(types.CodeInvalidArgument, fmt.Sprintf("amount %s has more than %d fractional digits", amount, decimals), nil)
	}
	return scaled.BigInt(), nil
}

// ParseAmountWithDecimals parses a decimal amount string and converts to big.Int with specified decimals
func ParseAmountWithDecimals(amount string, decimals int) (*big.Int, error) {
	dec, err := ValidateAmount(amount)
	if err != nil {
		return nil, err
	}
	return ScaleToBigInt(*dec, decimals)
}
