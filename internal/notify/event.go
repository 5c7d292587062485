// Package notify fans order events out to independent delivery channels.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"storefront/internal/domain"
)

// EventKind identifies what happened to the order.
type EventKind string

const (
	OrderCreated       EventKind = "order.created"
	OrderStatusChanged EventKind = "order.status_changed"
)

// Event is the unit of work submitted to the Dispatcher.
type Event struct {
	Kind  EventKind    `json:"kind"`
	Order domain.Order `json:"order"`
}

// Channel delivers one event to one destination. Disabled channels return nil.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

// FormatMoney renders 12.5 as "12,50".
func FormatMoney(o domain.Order) string {
	return strings.Replace(o.Total.StringFixed(2), ".", ",", 1)
}

// MessageText is the chat message for an event (HTML parse mode).
func MessageText(ev Event) string {
	o := ev.Order
	if ev.Kind == OrderStatusChanged {
		return fmt.Sprintf("🔔 Pedido #%d atualizado para: <b>%s</b>", o.ID, html.EscapeString(string(o.Status)))
	}
	items := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, fmt.Sprintf("%s x%d", html.EscapeString(it.Name), it.Quantity))
	}
	itemsText := strings.Join(items, ", ")
	if itemsText == "" {
		itemsText = "-"
	}
	payment := "💵 Outro"
	if o.PaymentCode != nil {
		payment = "💳 PIX"
	} else if o.PaymentMethod != "" {
		payment = "💵 " + html.EscapeString(o.PaymentMethod)
	}
	return "📦 <b>Novo pedido</b>\n" +
		fmt.Sprintf("#%d\n", o.ID) +
		"👤 " + html.EscapeString(orDefault(o.CustomerName, "Cliente")) + "\n" +
		"📍 " + html.EscapeString(orDefault(o.CustomerAddress, "-")) + "\n" +
		"🧾 " + itemsText + "\n" +
		"💰 R$ " + FormatMoney(o) + "\n" +
		payment
}

// PushMessage is the structured web push payload.
type PushMessage struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// PushMessageFor builds the push payload for an event.
func PushMessageFor(ev Event) PushMessage {
	o := ev.Order
	if ev.Kind == OrderStatusChanged {
		return PushMessage{
			Title: "Pedido atualizado",
			Body:  fmt.Sprintf("#%d · %s", o.ID, o.Status),
			Data:  map[string]any{"id": o.ID, "status": o.Status},
		}
	}
	return PushMessage{
		Title: "Novo pedido!",
		Body:  fmt.Sprintf("#%d · %s · R$ %s", o.ID, orDefault(o.CustomerName, "Cliente"), FormatMoney(o)),
		Data:  map[string]any{"id": o.ID},
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
