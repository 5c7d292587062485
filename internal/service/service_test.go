package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/notify"
	"storefront/internal/obs"
	"storefront/internal/payment"
	"storefront/internal/repository"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Submit(ev notify.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *recordingNotifier) kinds() []notify.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type failingGenerator struct{ calls int }

func (f *failingGenerator) Generate(context.Context, payment.Request) (*domain.PaymentCode, error) {
	f.calls++
	return nil, payment.ErrGenerate
}

type capturingGenerator struct{ last payment.Request }

func (c *capturingGenerator) Generate(_ context.Context, req payment.Request) (*domain.PaymentCode, error) {
	c.last = req
	return &domain.PaymentCode{Payload: "000201", Image: "data:image/png;base64,", TransactionID: req.TransactionID, Key: req.Key}, nil
}

type fixture struct {
	store    *repository.FileStore
	products *ProductService
	orders   *OrderService
	backup   *BackupService
	notifier *recordingNotifier
}

var testPayee = payment.Payee{Key: "55160826000100", Name: "RS LUBRIFICANTES", City: "SAMBAIBA"}

func setup(t *testing.T, gen payment.Generator) *fixture {
	t.Helper()
	store, err := repository.Open(filepath.Join(t.TempDir(), "db.json"), obs.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	tx := repository.NewFileTx(store)
	n := &recordingNotifier{}
	return &fixture{
		store:    store,
		products: NewProductService(store, tx),
		orders:   NewOrderService(store, repository.NewFileOrders(store), tx, gen, testPayee, n, obs.Discard()),
		backup:   NewBackupService(store, tx, obs.Discard()),
		notifier: n,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustProduct(t *testing.T, f *fixture, name, price string, stock int64) *domain.Product {
	t.Helper()
	p, err := f.products.Create(context.Background(), domain.Product{Name: name, Price: dec(price), Stock: stock})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return p
}
