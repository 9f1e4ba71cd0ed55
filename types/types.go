package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Payable is anything that names a payment by id, amount and recipient.
// Both on-chain payment records and merchant invoices satisfy it.
type Payable interface {
	PaymentID() uint64
	PaymentAmount() decimal.Decimal
	Recipient() string
}

// PaymentRecord is the normalized view of an on-chain payment.
type PaymentRecord struct {
	// ID is the invoice id chosen by the merchant. Unique per paying account only.
	ID uint64 `json:"id"`

	// From is the payer address (EIP-55 checksummed).
	From string `json:"from"`

	// To is the recipient address (EIP-55 checksummed).
	To string `json:"to"`

	// Amount paid, in whole currency units.
	Amount decimal.Decimal `json:"amount"`

	// Fee charged by the gateway contract, in whole currency units.
	Fee decimal.Decimal `json:"fee"`

	// Time is the block timestamp in Unix seconds.
	Time int64 `json:"time"`
}

func (p PaymentRecord) PaymentID() uint64              { return p.ID }
func (p PaymentRecord) PaymentAmount() decimal.Decimal { return p.Amount }
func (p PaymentRecord) Recipient() string              { return p.To }

// Timestamp returns Time as a time.Time in UTC.
func (p PaymentRecord) Timestamp() time.Time {
	return time.Unix(p.Time, 0).UTC()
}

// RawPayment mirrors the Payment struct returned by the gateway contract.
// Field names and order match the ABI tuple components so abi.ConvertType
// can fill it.
type RawPayment struct {
	Id     *big.Int `validate:"required"`
	From   common.Address
	To     common.Address
	Amount *big.Int `validate:"required"`
	Time   *big.Int `validate:"required"`
	Fee    *big.Int `validate:"required"`
}

// Invoice is a merchant-side record of an expected payment.
type Invoice struct {
	ID     uint64          `json:"id"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
	Paid   bool            `json:"paid"`
	Time   int64           `json:"time"`
}

func (i Invoice) PaymentID() uint64              { return i.ID }
func (i Invoice) PaymentAmount() decimal.Decimal { return i.Amount }
func (i Invoice) Recipient() string              { return i.To }

// Config contains everything needed to build an SDK instance.
type Config struct {
	WalletAddress   string        `json:"walletAddress" validate:"required"`
	Chain           Chain         `json:"chain" validate:"required,oneof=Testnet Mainnet"`
	ContractAddress string        `json:"contractAddress,omitempty"`
	RPCURL          string        `json:"rpcUrl,omitempty" validate:"omitempty,url"`
	Timeout         time.Duration `json:"timeout,omitempty" validate:"gte=0"`
	PollInterval    time.Duration `json:"pollInterval,omitempty" validate:"gte=0"`
	LogLevel        string        `json:"logLevel,omitempty" validate:"omitempty,oneof=debug info warn error"`
	EnableMetrics   bool          `json:"enableMetrics,omitempty"`
}
