package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// prices and totals stay JSON numbers on disk and on the wire
	decimal.MarshalJSONWithoutQuotes = true
}

// Product представляет товар витрины
type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int64           `json:"stock"`
	ImageRef string          `json:"imageRef"`

	// Extra keeps unknown fields of the stored record.
	Extra map[string]json.RawMessage `json:"-"`
}

// OrderStatus тип статуса заказа
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusConfirmed OrderStatus = "Confirmed"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// PaymentMethodPix требует генерации платёжного кода
const PaymentMethodPix = "PIX"

// OrderItem позиция в заказе; name и price фиксируются на момент заказа
type OrderItem struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
}

// Subtotal returns price * quantity.
func (it OrderItem) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(it.Quantity))
}

// PaymentCode платёжный код, заполнен целиком или отсутствует
type PaymentCode struct {
	Payload       string `json:"payload"`
	Image         string `json:"image"`
	TransactionID string `json:"transactionId"`
	Key           string `json:"key"`
}

// Order сущность заказа
type Order struct {
	ID              int64           `json:"id"`
	CustomerName    string          `json:"customerName"`
	CustomerAddress string          `json:"customerAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	Items           []OrderItem     `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Status          OrderStatus     `json:"status"`
	PaymentCode     *PaymentCode    `json:"paymentCode"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`

	Extra map[string]json.RawMessage `json:"-"`
}

// ItemsTotal sums the line item subtotals.
func (o Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// PushSubscription подписка на web push; endpoint является ключом
type PushSubscription struct {
	Endpoint string            `json:"endpoint"`
	Keys     map[string]string `json:"keys,omitempty"`
}

// Document корневой агрегат хранилища: весь JSON-файл целиком
type Document struct {
	Products          []Product          `json:"products"`
	Orders            []Order            `json:"orders"`
	PushSubscriptions []PushSubscription `json:"pushSubscriptions"`

	// Extra keeps unknown top-level fields so they survive load/save.
	Extra map[string]json.RawMessage `json:"-"`
}

// Top-level document keys.
const (
	KeyProducts          = "products"
	KeyOrders            = "orders"
	KeyPushSubscriptions = "pushSubscriptions"
)

// NewDocument returns an empty, shape-correct document.
func NewDocument() Document {
	return Document{
		Products:          []Product{},
		Orders:            []Order{},
		PushSubscriptions: []PushSubscription{},
	}
}

// MarshalJSON writes the three collections plus any preserved unknown fields.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+3)
	for k, v := range d.Extra {
		out[k] = v
	}
	out[KeyProducts] = nonNil(d.Products)
	out[KeyOrders] = nonNil(d.Orders)
	out[KeyPushSubscriptions] = nonNil(d.PushSubscriptions)
	return json.Marshal(out)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Clone returns a deep copy so callers never share slices with the store.
func (d Document) Clone() Document {
	cp := Document{
		Products:          make([]Product, len(d.Products)),
		Orders:            make([]Order, len(d.Orders)),
		PushSubscriptions: make([]PushSubscription, len(d.PushSubscriptions)),
	}
	for i, p := range d.Products {
		cp.Products[i] = p.Clone()
	}
	for i, o := range d.Orders {
		cp.Orders[i] = o.Clone()
	}
	for i, s := range d.PushSubscriptions {
		cp.PushSubscriptions[i] = s.Clone()
	}
	cp.Extra = cloneExtra(d.Extra)
	return cp
}

// Clone returns a deep copy of the product.
func (p Product) Clone() Product {
	cp := p
	cp.Extra = cloneExtra(p.Extra)
	return cp
}

// Clone returns a deep copy of the order.
func (o Order) Clone() Order {
	cp := o
	cp.Items = append([]OrderItem{}, o.Items...)
	if o.PaymentCode != nil {
		pc := *o.PaymentCode
		cp.PaymentCode = &pc
	}
	cp.Extra = cloneExtra(o.Extra)
	return cp
}

// Clone returns a deep copy of the subscription.
func (s PushSubscription) Clone() PushSubscription {
	cp := s
	if s.Keys != nil {
		cp.Keys = make(map[string]string, len(s.Keys))
		for k, v := range s.Keys {
			cp.Keys[k] = v
		}
	}
	return cp
}
