package types

import (
	"errors"
	"fmt"
)

// Error codes
const (
	CodeInvalidAddress   = "INVALID_ADDRESS"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeNotFound         = "NOT_FOUND"
	CodeDecode           = "DECODE_ERROR"
	CodeRemote           = "REMOTE_ERROR"
	CodeUnsupportedChain = "UNSUPPORTED_CHAIN"
	CodeInvalidConfig    = "INVALID_CONFIG"
)

// Sentinels for errors.Is. They match any DGateError carrying the same code.
var (
	ErrInvalidAddress   = &DGateError{Code: CodeInvalidAddress, Message: "invalid address"}
	ErrInvalidArgument  = &DGateError{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrNotFound         = &DGateError{Code: CodeNotFound, Message: "payment not found"}
	ErrDecode           = &DGateError{Code: CodeDecode, Message: "malformed payment data"}
	ErrRemote           = &DGateError{Code: CodeRemote, Message: "remote call failed"}
	ErrUnsupportedChain = &DGateError{Code: CodeUnsupportedChain, Message: "unsupported chain"}
	ErrInvalidConfig    = &DGateError{Code: CodeInvalidConfig, Message: "invalid configuration"}
)

// DGateError is the single error type returned by the SDK.
type DGateError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// NewError creates a DGateError.
func NewError(code, message string, cause error) *DGateError {
	return &DGateError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func (e *DGateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dgate: %s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("dgate: %s: %s", e.Code, e.Message)
}

func (e *DGateError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DGateError with the same code.
func (e *DGateError) Is(target error) bool {
	t, ok := target.(*DGateError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// GetErrorCode extracts the code from err, or "" if err is not a DGateError.
func GetErrorCode(err error) string {
	var de *DGateError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
