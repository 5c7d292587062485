package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/notify"
	"storefront/internal/payment"
	"storefront/internal/repository"
)

// Notifier принимает события для фоновой доставки; Submit не блокирует
type Notifier interface {
	Submit(ev notify.Event) bool
}

// totalTolerance допустимое расхождение итога клиента с пересчитанным
var totalTolerance = decimal.RequireFromString("0.01")

// OrderService реализует логику заказов: оформление, смена статуса, удаление
type OrderService struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	tx       repository.TxManager
	gen      payment.Generator
	payee    payment.Payee
	notifier Notifier
	log      *slog.Logger
}

func NewOrderService(
	products repository.ProductRepository,
	orders repository.OrderRepository,
	tx repository.TxManager,
	gen payment.Generator,
	payee payment.Payee,
	notifier Notifier,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		products: products,
		orders:   orders,
		tx:       tx,
		gen:      gen,
		payee:    payee,
		notifier: notifier,
		log:      logger,
	}
}

// SubmitOrderInput заказ в том виде, в каком его прислал клиент
type SubmitOrderInput struct {
	CustomerName    string             `json:"customerName"`
	CustomerAddress string             `json:"customerAddress"`
	PaymentMethod   string             `json:"paymentMethod"`
	Items           []domain.OrderItem `json:"items"`
	Total           decimal.Decimal    `json:"total"`
}

func (in SubmitOrderInput) validate() error {
	if strings.TrimSpace(in.CustomerName) == "" || len(in.Items) == 0 {
		return ErrInvalidInput
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 || it.Price.IsNegative() {
			return ErrInvalidInput
		}
	}
	return nil
}

// needsPaymentCode: only PIX orders get a code.
func needsPaymentCode(method string) bool {
	return strings.EqualFold(strings.TrimSpace(method), domain.PaymentMethodPix)
}

// SubmitOrder фиксирует цены, списывает остатки и сохраняет заказ одной транзакцией.
// Unknown products keep the client snapshot. A failed save is logged and the order is still returned.
// The payment code is rendered after the reservation commits and attached in a second short write.
func (s *OrderService) SubmitOrder(ctx context.Context, in SubmitOrderInput) (*domain.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var created *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o := domain.Order{
			ID:              s.orders.NextID(ctx),
			CustomerName:    strings.TrimSpace(in.CustomerName),
			CustomerAddress: strings.TrimSpace(in.CustomerAddress),
			PaymentMethod:   strings.TrimSpace(in.PaymentMethod),
			Items:           make([]domain.OrderItem, 0, len(in.Items)),
			Status:          domain.OrderStatusPending,
		}
		for _, it := range in.Items {
			p, err := s.products.GetByID(ctx, it.ProductID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				s.log.Warn("order_unknown_product", "order_id", o.ID, "product_id", it.ProductID)
			case err != nil:
				return err
			default:
				it.Name, it.Price = p.Name, p.Price
				if _, err := s.products.DecrementStock(ctx, p.ID, it.Quantity); err != nil {
					return err
				}
			}
			o.Items = append(o.Items, it)
		}

		o.Total = o.ItemsTotal()
		if !in.Total.IsZero() && in.Total.Sub(o.Total).Abs().GreaterThan(totalTolerance) {
			return fmt.Errorf("%w: client %s, items %s", ErrTotalMismatch, in.Total.StringFixed(2), o.Total.StringFixed(2))
		}

		if err := s.orders.Create(ctx, &o); err != nil {
			return err
		}
		created = &o
		return nil
	})
	if err != nil && !s.tolerate(err, "submit", created) {
		return nil, err
	}

	if needsPaymentCode(created.PaymentMethod) && created.Total.GreaterThanOrEqual(payment.MinAmount) {
		if code := s.paymentCode(ctx, *created); code != nil {
			s.attachPaymentCode(ctx, created, code)
		}
	}

	s.log.Info("order_created", "order_id", created.ID, "total", created.Total.StringFixed(2),
		"items", len(created.Items), "payment_code", created.PaymentCode != nil)
	s.notify(notify.OrderCreated, *created)
	return created, nil
}

func (s *OrderService) paymentCode(ctx context.Context, o domain.Order) *domain.PaymentCode {
	if s.gen == nil {
		return nil
	}
	code, err := s.gen.Generate(ctx, payment.Request{
		Key:           s.payee.Key,
		PayeeName:     s.payee.Name,
		City:          s.payee.City,
		TransactionID: fmt.Sprintf("PED%d", o.ID),
		Amount:        o.Total,
	})
	if err != nil {
		s.log.Error("payment_code_failed", "order_id", o.ID, "error", err)
		return nil
	}
	return code
}

// attachPaymentCode stores code on the current version of the order; the order
// keeps no code when it is gone or the write fails outright.
func (s *OrderService) attachPaymentCode(ctx context.Context, o *domain.Order, code *domain.PaymentCode) {
	var stored *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		cur, err := s.orders.GetByID(ctx, o.ID)
		if err != nil {
			return err
		}
		cur.PaymentCode = code
		if err := s.orders.Update(ctx, cur); err != nil {
			return err
		}
		stored = cur
		return nil
	})
	if err != nil && !s.tolerate(err, "attach_payment_code", stored) {
		s.log.Error("payment_code_attach_failed", "order_id", o.ID, "error", err)
		return
	}
	*o = *stored
}

// tolerate reports whether err is a save failure after a completed mutation.
func (s *OrderService) tolerate(err error, op string, o *domain.Order) bool {
	if o == nil || !errors.Is(err, repository.ErrPersist) {
		return false
	}
	s.log.Error("order_persist_failed", "op", op, "order_id", o.ID, "error", err)
	return true
}

func (s *OrderService) notify(kind notify.EventKind, o domain.Order) {
	if s.notifier == nil {
		return
	}
	s.notifier.Submit(notify.Event{Kind: kind, Order: o})
}

// UpdateOrderStatus меняет статус и уведомляет каналы
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id int64, status string) (*domain.Order, error) {
	status = strings.TrimSpace(status)
	if id <= 0 || status == "" {
		return nil, ErrInvalidInput
	}
	var updated *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		o.Status = domain.OrderStatus(status)
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil && !s.tolerate(err, "update_status", updated) {
		return nil, err
	}
	s.log.Info("order_status_changed", "order_id", id, "status", status)
	s.notify(notify.OrderStatusChanged, *updated)
	return updated, nil
}

// GetOrder возвращает заказ по id
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.orders.GetByID(ctx, id)
}

func (s *OrderService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.orders.List(ctx)
}

// DeleteOrder удаляет заказ; остатки не возвращаются
func (s *OrderService) DeleteOrder(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	err := s.orders.Delete(ctx, id)
	if err != nil && !s.tolerate(err, "delete", &domain.Order{ID: id}) {
		return err
	}
	s.log.Info("order_deleted", "order_id", id)
	return nil
}
