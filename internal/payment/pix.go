// Package payment builds PIX "copy and paste" payment codes and their QR images.
package payment

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"storefront/internal/domain"
)

const (
	MaxNameLen          = 25
	MaxCityLen          = 15
	MaxTransactionIDLen = 25
)

// MinAmount is the smallest payable amount.
var MinAmount = decimal.RequireFromString("0.01")

var (
	ErrInvalidAmount = errors.New("invalid amount (minimum 0.01)")
	ErrGenerate      = errors.New("generate payment code")
)

// Request is the input of a payment code generation.
type Request struct {
	Key           string
	PayeeName     string
	City          string
	TransactionID string
	Amount        decimal.Decimal
}

// Generator produces payment codes.
type Generator interface {
	Generate(ctx context.Context, req Request) (*domain.PaymentCode, error)
}

// Payee identifies the receiving account.
type Payee struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	City string `json:"city"`
}

// ValidateAmount rejects amounts below MinAmount.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThan(MinAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmount accepts "10.50" as well as the comma form "10,50".
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// TruncateTransactionID folds id to ASCII and cuts it to the field limit.
func TruncateTransactionID(id string) string {
	return truncate(id, MaxTransactionIDLen)
}

// truncate folds s to printable ASCII and cuts it to n bytes, the unit the
// BR Code length prefix counts in.
func truncate(s string, n int) string {
	s = foldASCII(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}

// foldASCII drops diacritics ("Conceição" becomes "Conceicao") and any rune
// that is still outside printable ASCII afterwards.
func foldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Map(func(r rune) rune {
		if r < ' ' || r > '~' {
			return -1
		}
		return r
	}, folded)
}

// PixGenerator builds BR Code payloads and renders them as PNG data URIs.
type PixGenerator struct {
	QRSize int
}

func NewPixGenerator() *PixGenerator { return &PixGenerator{QRSize: 256} }

var _ Generator = (*PixGenerator)(nil)

func (g *PixGenerator) Generate(ctx context.Context, req Request) (*domain.PaymentCode, error) {
	if err := ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.Key == "" {
		return nil, fmt.Errorf("%w: missing key", ErrGenerate)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txid := TruncateTransactionID(req.TransactionID)
	payload := stripSpaces(BuildPayload(req.Key, req.PayeeName, req.City, txid, req.Amount))
	png, err := qrcode.Encode(payload, qrcode.Medium, g.QRSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerate, err)
	}
	return &domain.PaymentCode{
		Payload:       payload,
		Image:         "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		TransactionID: txid,
		Key:           req.Key,
	}, nil
}

// stripSpaces drops line breaks and tabs and trims the ends; inner spaces belong to
// the merchant name and are covered by the length prefix and CRC.
func stripSpaces(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) && r != ' ' {
			return -1
		}
		return r
	}, s))
}
