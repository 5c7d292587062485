package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

func TestExportRestoreReplaceRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	p := mustProduct(t, f, "Cerveja", "6.25", 4)
	if _, err := f.orders.SubmitOrder(ctx, SubmitOrderInput{
		CustomerName: "Ana",
		Items:        []domain.OrderItem{{ProductID: p.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	b := f.backup.Export(ctx)
	if !strings.HasPrefix(b.Filename, "db-backup-") || !strings.HasSuffix(b.Filename, ".json") {
		t.Fatalf("filename %q", b.Filename)
	}
	raw, err := json.Marshal(b.Document)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	before, _ := repository.Encode(b.Document)

	res, err := f.backup.Restore(ctx, raw, "replace")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	after, _ := repository.Encode(f.store.Snapshot(ctx))
	if string(before) != string(after) {
		t.Fatalf("document changed:\n%s\n---\n%s", before, after)
	}
	if res.Counts.Products != 1 || res.Counts.Orders != 1 || res.Mode != RestoreReplace {
		t.Fatalf("result %+v", res)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(f.store.Path()), res.Backup)); err != nil {
		t.Fatalf("backup copy missing: %v", err)
	}
}

func TestRestoreMerge(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	current := `{"products":[{"id":1,"name":"A","price":1,"stock":1},{"id":2,"name":"B","price":2,"stock":2}],
		"orders":[],"pushSubscriptions":[{"endpoint":"https://p/1"}]}`
	if _, err := f.backup.Restore(ctx, []byte(current), ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	incoming := `{"db":{"products":[{"id":2,"name":"B2","price":3,"stock":9},{"id":3,"name":"C","price":4,"stock":1}],
		"orders":[],"pushSubscriptions":[{"endpoint":"https://p/1","keys":{"auth":"new"}},{"endpoint":"https://p/2"}]}}`
	res, err := f.backup.Restore(ctx, []byte(incoming), "MERGE")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if res.Counts.Products != 3 || res.Counts.PushSubscriptions != 2 {
		t.Fatalf("counts %+v", res.Counts)
	}
	doc := f.store.Snapshot(ctx)
	byID := map[int64]domain.Product{}
	for _, p := range doc.Products {
		byID[p.ID] = p
	}
	if byID[2].Name != "B2" || byID[2].Stock != 9 || byID[1].Name != "A" || byID[3].Name != "C" {
		t.Fatalf("merged products %+v", doc.Products)
	}
	if doc.PushSubscriptions[0].Endpoint != "https://p/1" || doc.PushSubscriptions[0].Keys != nil {
		t.Fatalf("first seen subscription should win: %+v", doc.PushSubscriptions)
	}
}

func TestRestoreRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	mustProduct(t, f, "Cerveja", "5", 1)

	if _, err := f.backup.Restore(ctx, []byte(`{"products":[],"orders":[]}`), "replace"); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("missing collection: %v", err)
	}
	if _, err := f.backup.Restore(ctx, []byte(`not json`), "replace"); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("garbage: %v", err)
	}
	if _, err := f.backup.Restore(ctx, []byte(`{"products":[],"orders":[],"pushSubscriptions":[]}`), "append"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown mode: %v", err)
	}
	for name, body := range map[string]string{
		"negative stock":       `{"products":[{"id":1,"name":"x","price":1,"stock":-7}],"orders":[],"pushSubscriptions":[]}`,
		"duplicate product id": `{"products":[{"id":1,"stock":1},{"id":1,"stock":2}],"orders":[],"pushSubscriptions":[]}`,
		"duplicate order id":   `{"db":{"products":[],"orders":[{"id":9},{"id":9}],"pushSubscriptions":[]}}`,
	} {
		for _, mode := range []string{"replace", "merge"} {
			if _, err := f.backup.Restore(ctx, []byte(body), mode); !errors.Is(err, ErrInvalidFormat) {
				t.Fatalf("%s (%s): expected ErrInvalidFormat, got %v", name, mode, err)
			}
		}
	}
	if got := f.store.Snapshot(ctx); len(got.Products) != 1 {
		t.Fatalf("rejected restore mutated the store")
	}
	matches, _ := filepath.Glob(f.store.Path() + ".bak-*")
	if len(matches) != 0 {
		t.Fatalf("backup written for rejected restore: %v", matches)
	}
}

func TestMergeKeepsOneSidedRecords(t *testing.T) {
	cur := domain.NewDocument()
	cur.Orders = []domain.Order{{ID: 1, CustomerName: "old"}, {ID: 2}}
	inc := domain.NewDocument()
	inc.Orders = []domain.Order{{ID: 1, CustomerName: "new"}, {ID: 3}}

	out := Merge(cur, inc)
	if len(out.Orders) != 3 || out.Orders[0].CustomerName != "new" || out.Orders[2].ID != 3 {
		t.Fatalf("merged orders %+v", out.Orders)
	}
}
