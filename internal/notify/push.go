package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"
	"golang.org/x/sync/errgroup"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// PushSender delivers one payload to one subscription and reports the endpoint status.
type PushSender interface {
	Send(ctx context.Context, sub domain.PushSubscription, payload []byte) (int, error)
}

// WebPushSender signs requests with VAPID keys.
type WebPushSender struct {
	PublicKey  string
	PrivateKey string
	Subject    string
	TTL        int
	Client     *http.Client
}

func (s *WebPushSender) Send(ctx context.Context, sub domain.PushSubscription, payload []byte) (int, error) {
	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.Keys["p256dh"], Auth: sub.Keys["auth"]},
	}
	opts := &webpush.Options{
		Subscriber:      strings.TrimPrefix(s.Subject, "mailto:"), // the library adds the scheme itself
		VAPIDPublicKey:  s.PublicKey,
		VAPIDPrivateKey: s.PrivateKey,
		TTL:             s.TTL,
	}
	if s.Client != nil {
		opts.HTTPClient = s.Client
	}
	resp, err := webpush.SendNotificationWithContext(ctx, payload, target, opts)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("push endpoint status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// isGone reports statuses meaning the subscription will never work again.
func isGone(status int) bool {
	return status == http.StatusNotFound || status == http.StatusGone
}

// PushChannel fans an event out to every registered subscription.
type PushChannel struct {
	subs        repository.SubscriptionRepository
	sender      PushSender
	enabled     bool
	concurrency int
	log         *slog.Logger
}

// NewPushChannel builds the channel; enabled=false turns Deliver into a no-op.
func NewPushChannel(subs repository.SubscriptionRepository, sender PushSender, enabled bool, concurrency int, logger *slog.Logger) *PushChannel {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &PushChannel{subs: subs, sender: sender, enabled: enabled, concurrency: concurrency, log: logger}
}

func (p *PushChannel) Name() string { return "push" }

// Deliver attempts every subscription once, then prunes the gone ones with a single write.
// Other failures leave the subscription in place.
func (p *PushChannel) Deliver(ctx context.Context, ev Event) error {
	if !p.enabled || p.sender == nil {
		return nil
	}
	subs, err := p.subs.List(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}
	payload, err := json.Marshal(PushMessageFor(ev))
	if err != nil {
		return err
	}

	var (
		mu     sync.Mutex
		gone   []string
		failed int
	)
	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			status, err := p.sender.Send(ctx, sub, payload)
			if err == nil {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			if isGone(status) {
				gone = append(gone, sub.Endpoint)
				p.log.Info("push_subscription_gone", "endpoint", sub.Endpoint, "status", status)
				return nil
			}
			failed++
			p.log.Warn("push_delivery_failed", "endpoint", sub.Endpoint, "status", status, "error", err)
			return nil
		})
	}
	_ = g.Wait()

	if len(gone) > 0 {
		if _, err := p.subs.RemoveMany(ctx, gone); err != nil {
			return fmt.Errorf("prune subscriptions: %w", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("push: %d of %d deliveries failed", failed, len(subs))
	}
	return nil
}
