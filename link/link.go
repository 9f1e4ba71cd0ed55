// Package link builds D-Gate invoice payment links.
//
// A link carries the invoice as base64(JSON) in the "payment" query parameter
// of the gateway URL. The payload is obfuscated, not signed or encrypted:
// anyone holding a link can decode and alter it. Never treat a payment as
// settled because of what a link said; re-check the on-chain PaymentRecord
// against the invoice with verification.IsSamePayment.
package link

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/dgate-org/dgate-go/types"
	"github.com/dgate-org/dgate-go/utils"
	"github.com/shopspring/decimal"
)

// QueryParam is the gateway query parameter holding the payload.
const QueryParam = "payment"

// Params is the invoice encoded into a link.
type Params struct {
	ID      uint64          `validate:"-"`
	Address string          `validate:"required"`
	Amount  decimal.Decimal `validate:"-"`

	// Redirect is where the gateway sends the buyer afterwards. Any string is
	// carried, relative paths included.
	Redirect string
}

// payload fixes the wire field names and their order.
type payload struct {
	ID       uint64      `json:"id"`
	Address  string      `json:"address"`
	Amount   json.Number `json:"amount"`
	Redirect string      `json:"redirect,omitempty"`
}

func (p Params) validate() error {
	if err := utils.ValidateAddress(p.Address); err != nil {
		return err
	}
	if err := utils.ValidateStruct(p); err != nil {
		return types.NewError(types.CodeInvalidArgument, fmt.Sprintf("invalid payment link params: %v", err), err)
	}
	if p.Amount.IsNegative() {
		return types.NewError(types.CodeInvalidArgument, "amount cannot be negative", nil)
	}
	return nil
}

// Marshal returns the JSON form of p, e.g.
// {"id":42,"address":"0x...","amount":0.001,"redirect":"http://x/y"}.
// The amount is written as a bare JSON number and HTML characters are not escaped.
func Marshal(p Params) ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload{
		ID:       p.ID,
		Address:  p.Address,
		Amount:   json.Number(p.Amount.String()),
		Redirect: p.Redirect,
	}); err != nil {
		return nil, types.NewError(types.CodeInvalidArgument, "failed to encode payment link", err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// EncodePayload returns the base64 token (standard alphabet, padded).
func EncodePayload(p Params) (string, error) {
	raw, err := Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// BuildURL appends the encoded payload to gatewayURL as payment=<token>.
// Existing query parameters are kept. The token goes in unescaped, the way
// the gateway reads it.
func BuildURL(gatewayURL string, p Params) (string, error) {
	u, err := url.Parse(gatewayURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", types.NewError(types.CodeInvalidConfig, fmt.Sprintf("invalid gateway url %q", gatewayURL), err)
	}

	token, err := EncodePayload(p)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Del(QueryParam)
	raw := QueryParam + "=" + token
	if rest := q.Encode(); rest != "" {
		raw = rest + "&" + raw
	}
	u.RawQuery = raw
	return u.String(), nil
}

// TokenFromURL returns the payment token of a link built by BuildURL. Unlike
// url.Values it keeps '+' in the token as is.
func TokenFromURL(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", types.NewError(types.CodeDecode, "payment link is not a valid url", err)
	}
	for _, part := range strings.Split(u.RawQuery, "&") {
		token, ok := strings.CutPrefix(part, QueryParam+"=")
		if !ok {
			continue
		}
		if strings.Contains(token, "%") {
			if token, err = url.PathUnescape(token); err != nil {
				return "", types.NewError(types.CodeDecode, "payment token is badly escaped", err)
			}
		}
		return token, nil
	}
	return "", types.NewError(types.CodeDecode, "payment link has no payment parameter", nil)
}

// Decode parses a token produced by EncodePayload. It is what the gateway page
// does with the query parameter; the result is as untrusted as the link.
func Decode(token string) (Params, error) {
	// form decoding of an unescaped token turns '+' into ' '
	token = strings.ReplaceAll(token, " ", "+")
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Params{}, types.NewError(types.CodeDecode, "payment link is not valid base64", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var pl payload
	if err := dec.Decode(&pl); err != nil {
		return Params{}, types.NewError(types.CodeDecode, "payment link is not valid json", err)
	}

	amount, err := decimal.NewFromString(pl.Amount.String())
	if err != nil {
		return Params{}, types.NewError(types.CodeDecode, fmt.Sprintf("invalid amount %q", pl.Amount), err)
	}

	p := Params{ID: pl.ID, Address: pl.Address, Amount: amount, Redirect: pl.Redirect}
	if err := p.validate(); err != nil {
		return Params{}, types.NewError(types.CodeDecode, "payment link carries invalid params", err)
	}
	return p, nil
}
