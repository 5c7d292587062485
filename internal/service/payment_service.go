package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/payment"
)

// PaymentService выдаёт реквизиты и разовые платёжные коды
type PaymentService struct {
	gen   payment.Generator
	payee payment.Payee
	now   func() time.Time
}

func NewPaymentService(gen payment.Generator, payee payment.Payee) *PaymentService {
	return &PaymentService{gen: gen, payee: payee, now: time.Now}
}

// PaymentKey публичные реквизиты получателя
func (s *PaymentService) PaymentKey() payment.Payee { return s.payee }

// Generate builds a code for an arbitrary amount ("10.50" or "10,50").
// An empty transaction id defaults to "PIX" + unix millis.
func (s *PaymentService) Generate(ctx context.Context, amount, transactionID string) (*domain.PaymentCode, error) {
	value, err := payment.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	txid := strings.TrimSpace(transactionID)
	if txid == "" {
		txid = fmt.Sprintf("PIX%d", s.now().UnixMilli())
	}
	return s.gen.Generate(ctx, payment.Request{
		Key:           s.payee.Key,
		PayeeName:     s.payee.Name,
		City:          s.payee.City,
		TransactionID: txid,
		Amount:        value,
	})
}
