package notify

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"

	"storefront/internal/domain"
	"storefront/internal/obs"
	"storefront/internal/repository"
)

type fakeSender struct {
	mu     sync.Mutex
	status map[string]int
	sent   []string
}

func (f *fakeSender) Send(_ context.Context, sub domain.PushSubscription, _ []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sub.Endpoint)
	if st, ok := f.status[sub.Endpoint]; ok {
		return st, errors.New("endpoint rejected")
	}
	return http.StatusCreated, nil
}

func subsRepo(t *testing.T, endpoints ...string) *repository.FileSubscriptions {
	t.Helper()
	store, err := repository.Open(filepath.Join(t.TempDir(), "db.json"), obs.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	repo := repository.NewFileSubscriptions(store)
	for _, e := range endpoints {
		if _, err := repo.Add(context.Background(), domain.PushSubscription{Endpoint: e}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	return repo
}

func TestPushChannel_PrunesGoneSubscriptions(t *testing.T) {
	repo := subsRepo(t, "https://p/a", "https://p/b", "https://p/c")
	sender := &fakeSender{status: map[string]int{"https://p/b": http.StatusGone}}
	ch := NewPushChannel(repo, sender, true, 2, obs.Discard())

	if err := ch.Deliver(context.Background(), Event{Kind: OrderCreated, Order: sampleOrder()}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(sender.sent) != 3 {
		t.Fatalf("every subscription must be attempted, got %v", sender.sent)
	}
	left, _ := repo.List(context.Background())
	if len(left) != 2 {
		t.Fatalf("expected 2 subscriptions left, got %v", left)
	}
	for _, s := range left {
		if s.Endpoint == "https://p/b" {
			t.Fatalf("gone subscription was kept")
		}
	}
}

func TestPushChannel_KeepsOnTransientFailure(t *testing.T) {
	repo := subsRepo(t, "https://p/a", "https://p/b")
	sender := &fakeSender{status: map[string]int{"https://p/a": http.StatusInternalServerError}}
	ch := NewPushChannel(repo, sender, true, 4, obs.Discard())

	if err := ch.Deliver(context.Background(), Event{Kind: OrderCreated, Order: sampleOrder()}); err == nil {
		t.Fatalf("expected aggregated failure")
	}
	left, _ := repo.List(context.Background())
	if len(left) != 2 {
		t.Fatalf("transient failures must not prune, left %v", left)
	}
}

func TestPushChannel_Disabled(t *testing.T) {
	repo := subsRepo(t, "https://p/a")
	sender := &fakeSender{}
	ch := NewPushChannel(repo, sender, false, 1, obs.Discard())
	if err := ch.Deliver(context.Background(), Event{Kind: OrderCreated}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("disabled channel sent %v", sender.sent)
	}
}

func TestWebPushSender_ReportsEndpointStatus(t *testing.T) {
	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("vapid: %v", err)
	}
	clientKey, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	auth := make([]byte, 16)
	_, _ = rand.Read(auth)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			t.Errorf("missing VAPID authorization header")
		}
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	sender := &WebPushSender{PublicKey: pub, PrivateKey: priv, Subject: "mailto:admin@example.com", TTL: 60, Client: srv.Client()}
	sub := domain.PushSubscription{
		Endpoint: srv.URL + "/push/abc",
		Keys: map[string]string{
			"p256dh": base64.RawURLEncoding.EncodeToString(clientKey.PublicKey().Bytes()),
			"auth":   base64.RawURLEncoding.EncodeToString(auth),
		},
	}
	status, err := sender.Send(context.Background(), sub, []byte(`{"title":"x"}`))
	if err == nil || status != http.StatusGone {
		t.Fatalf("expected 410 error, got %d %v", status, err)
	}
	if !isGone(status) {
		t.Fatalf("410 must count as gone")
	}
}
