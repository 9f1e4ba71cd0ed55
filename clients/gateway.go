package clients

import (
	"context"
	"fmt"
	"math/big"

	"github.com/dgate-org/dgate-go/codec"
	dgtypes "github.com/dgate-org/dgate-go/types"
	"github.com/dgate-org/dgate-go/utils"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// GatewayClient reads payments from the D-Gate contract.
//
// It does not throttle. Callers that poll GetPayment in a loop own their rate
// limiting. A cancelled call leaves the client usable.
type GatewayClient struct {
	backend  Backend
	contract common.Address
	abi      abi.ABI
}

// NewGatewayClient binds backend to the contract at contractAddress.
func NewGatewayClient(backend Backend, contractAddress string) (*GatewayClient, error) {
	if backend == nil {
		return nil, dgtypes.NewError(dgtypes.CodeInvalidConfig, "backend is required", nil)
	}
	if err := utils.ValidateAddress(contractAddress); err != nil {
		return nil, dgtypes.NewError(dgtypes.CodeInvalidAddress, "contract's address is not a valid blockchain address", err)
	}

	return &GatewayClient{
		backend:  backend,
		contract: common.HexToAddress(contractAddress),
		abi:      gatewayABI,
	}, nil
}

// ContractAddress returns the bound contract address.
func (c *GatewayClient) ContractAddress() common.Address {
	return c.contract
}

// GetPayment returns the payment with id made to account. A negative id fails
// before any remote call. An empty record, a record with another id, or one
// paid to a different recipient is reported as not found.
func (c *GatewayClient) GetPayment(ctx context.Context, account string, id int64) (dgtypes.PaymentRecord, error) {
	if id < 0 {
		return dgtypes.PaymentRecord{}, dgtypes.NewError(
			dgtypes.CodeInvalidArgument,
			fmt.Sprintf("payment id %d is negative, it should be an unsigned 64-bit integer", id),
			nil,
		)
	}
	if err := utils.ValidateAddress(account); err != nil {
		return dgtypes.PaymentRecord{}, err
	}

	out, err := c.call(ctx, methodFindPayment, common.HexToAddress(account), big.NewInt(id))
	if err != nil {
		return dgtypes.PaymentRecord{}, err
	}

	var raw dgtypes.RawPayment
	if err := convert(out, &raw); err != nil {
		return dgtypes.PaymentRecord{}, err
	}
	if raw.To == (common.Address{}) || raw.Id == nil || raw.Id.Cmp(big.NewInt(id)) != 0 {
		return dgtypes.PaymentRecord{}, notFound(id)
	}

	record, err := codec.ParseRawPayment(&raw)
	if err != nil {
		return dgtypes.PaymentRecord{}, err
	}
	if !utils.SameAddress(record.To, account) {
		return dgtypes.PaymentRecord{}, notFound(id)
	}
	return record, nil
}

// GetAllPayments returns every payment recorded for account, in contract order.
func (c *GatewayClient) GetAllPayments(ctx context.Context, account string) ([]dgtypes.PaymentRecord, error) {
	if err := utils.ValidateAddress(account); err != nil {
		return nil, err
	}

	out, err := c.call(ctx, methodGetPayments, common.HexToAddress(account))
	if err != nil {
		return nil, err
	}

	var raws []dgtypes.RawPayment
	if err := convert(out, &raws); err != nil {
		return nil, err
	}
	return codec.ParseRawPayments(raws)
}

// PaymentFromLog decodes a NewPayment log emitted by the bound contract.
func (c *GatewayClient) PaymentFromLog(log types.Log) (dgtypes.PaymentRecord, error) {
	ev := c.abi.Events[eventNewPayment]
	if log.Address != c.contract {
		return dgtypes.PaymentRecord{}, decodeError(fmt.Sprintf("log emitted by %s, not the gateway contract", log.Address.Hex()), nil)
	}
	if len(log.Topics) == 0 || log.Topics[0] != ev.ID {
		return dgtypes.PaymentRecord{}, decodeError("log is not a NewPayment event", nil)
	}

	out, err := c.abi.Unpack(eventNewPayment, log.Data)
	if err != nil {
		return dgtypes.PaymentRecord{}, decodeError("failed to unpack NewPayment event", err)
	}

	var raw dgtypes.RawPayment
	if err := convert(out, &raw); err != nil {
		return dgtypes.PaymentRecord{}, err
	}
	return codec.ParseRawPayment(&raw)
}

// NewPaymentQuery is the log filter matching NewPayment events of the contract.
func (c *GatewayClient) NewPaymentQuery() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{c.abi.Events[eventNewPayment].ID}},
	}
}

// Close releases the backend connection.
func (c *GatewayClient) Close() {
	c.backend.Close()
}

func (c *GatewayClient) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, dgtypes.NewError(dgtypes.CodeInvalidArgument, fmt.Sprintf("failed to pack %s call", method), err)
	}

	output, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		To:   &c.contract,
		Data: input,
	}, nil)
	if err != nil {
		return nil, remoteError(fmt.Sprintf("%s call failed", method), err)
	}

	values, err := c.abi.Unpack(method, output)
	if err != nil {
		return nil, decodeError(fmt.Sprintf("failed to unpack %s result", method), err)
	}
	return values, nil
}

// convert copies the single unpacked value into dst, which must be a pointer.
func convert(values []interface{}, dst interface{}) (err error) {
	if len(values) != 1 {
		return decodeError(fmt.Sprintf("expected 1 return value, got %d", len(values)), nil)
	}
	defer func() {
		if r := recover(); r != nil {
			err = decodeError(fmt.Sprintf("unexpected payment layout: %v", r), nil)
		}
	}()
	abi.ConvertType(values[0], dst)
	return nil
}
