package clients

import (
	"fmt"

	dgtypes "github.com/dgate-org/dgate-go/types"
)

const (
	methodFindPayment = "findPayment"
	methodGetPayments = "getPayments"
	eventNewPayment   = "NewPayment"
)

func remoteError(msg string, cause error) error {
	return dgtypes.NewError(dgtypes.CodeRemote, msg, cause)
}

func decodeError(msg string, cause error) error {
	return dgtypes.NewError(dgtypes.CodeDecode, msg, cause)
}

func notFound(id int64) error {
	return dgtypes.NewError(dgtypes.CodeNotFound, fmt.Sprintf("payment id of \"%d\" not found", id), nil)
}
