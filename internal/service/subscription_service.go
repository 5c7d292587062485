package service

import (
	"context"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// SubscriptionService регистрирует и снимает web push подписки
type SubscriptionService struct {
	repo      repository.SubscriptionRepository
	publicKey string
}

func NewSubscriptionService(repo repository.SubscriptionRepository, vapidPublicKey string) *SubscriptionService {
	return &SubscriptionService{repo: repo, publicKey: vapidPublicKey}
}

func (s *SubscriptionService) PublicKey() string { return s.publicKey }

// Subscribe adds sub unless the endpoint is already registered.
func (s *SubscriptionService) Subscribe(ctx context.Context, sub domain.PushSubscription) (bool, error) {
	sub.Endpoint = strings.TrimSpace(sub.Endpoint)
	if sub.Endpoint == "" {
		return false, ErrInvalidInput
	}
	return s.repo.Add(ctx, sub)
}

// Unsubscribe is a no-op for unknown endpoints.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, endpoint string) (bool, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return false, ErrInvalidInput
	}
	return s.repo.Remove(ctx, endpoint)
}

func (s *SubscriptionService) List(ctx context.Context) ([]domain.PushSubscription, error) {
	return s.repo.List(ctx)
}
