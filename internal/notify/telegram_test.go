package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTelegramChannel_Deliver(t *testing.T) {
	var got sendMessageReq
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ch := NewTelegramChannel("T0K", "42", srv.URL, srv.Client())
	if err := ch.Deliver(context.Background(), Event{Kind: OrderCreated, Order: sampleOrder()}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if path != "/botT0K/sendMessage" {
		t.Fatalf("path %q", path)
	}
	if got.ChatID != "42" || got.ParseMode != "HTML" || got.Text == "" {
		t.Fatalf("unexpected body %+v", got)
	}
}

func TestTelegramChannel_ErrorStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	ch := NewTelegramChannel("T", "1", srv.URL, srv.Client())
	if err := ch.Send(context.Background(), "hi"); err == nil {
		t.Fatalf("expected error on 400")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestTelegramChannel_DisabledIsNoop(t *testing.T) {
	ch := NewTelegramChannel("", "", "http://127.0.0.1:1", nil)
	if ch.Enabled() {
		t.Fatalf("should be disabled")
	}
	if err := ch.Deliver(context.Background(), Event{Kind: OrderCreated}); err != nil {
		t.Fatalf("disabled channel must not fail: %v", err)
	}
}
