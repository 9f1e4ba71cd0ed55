package verification

import (
	"reflect"
	"strings"

	"github.com/dgate-org/dgate-go/types"
)

// IsSamePayment reports whether a and b describe the same real-world payment:
// equal ids, exactly equal amounts and recipients equal ignoring letter case.
// It returns false when either side is nil or has no recipient.
//
// Both the live event path and the point-lookup path use this predicate.
func IsSamePayment(a, b types.Payable) bool {
	if isNil(a) || isNil(b) {
		return false
	}
	if a.Recipient() == "" || b.Recipient() == "" {
		return false
	}
	return a.PaymentID() == b.PaymentID() &&
		a.PaymentAmount().Equal(b.PaymentAmount()) &&
		strings.EqualFold(a.Recipient(), b.Recipient())
}

func isNil(p types.Payable) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
