package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

var (
	// ErrNotFound возвращается, когда сущность не найдена
	ErrNotFound = errors.New("not found")
	// ErrConflict возвращается при попытке создать сущность с уже занятым id
	ErrConflict = errors.New("already exists")
	// ErrCorrupt документ не является корректным JSON-объектом
	ErrCorrupt = errors.New("corrupt document")
	// ErrShape документ не содержит обязательных коллекций
	ErrShape = errors.New("invalid document shape")
	// ErrPersist запись файла не удалась; состояние в памяти уже изменено
	ErrPersist = errors.New("persist document")
)

// ProductFilter параметры фильтрации списка товаров
type ProductFilter struct {
	NameSubstring string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	InStock       bool
}

func (f ProductFilter) match(p domain.Product) bool {
	if !containsIgnoreCase(p.Name, f.NameSubstring) {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.InStock && p.Stock <= 0 {
		return false
	}
	return true
}

// ProductRepository интерфейс репозитория товаров
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f ProductFilter) ([]domain.Product, error)
	// DecrementStock уменьшает остаток на qty, но не ниже нуля
	DecrementStock(ctx context.Context, id, qty int64) (*domain.Product, error)
}

// OrderRepository интерфейс репозитория заказов
type OrderRepository interface {
	NextID(ctx context.Context) int64
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]domain.Order, error)
}

// SubscriptionRepository реестр push-подписок, ключ: endpoint
type SubscriptionRepository interface {
	Add(ctx context.Context, s domain.PushSubscription) (bool, error)
	Remove(ctx context.Context, endpoint string) (bool, error)
	RemoveMany(ctx context.Context, endpoints []string) (int, error)
	List(ctx context.Context) ([]domain.PushSubscription, error)
}

// DocumentRepository операции над документом целиком (экспорт/восстановление)
type DocumentRepository interface {
	Snapshot(ctx context.Context) domain.Document
	Replace(ctx context.Context, doc domain.Document) error
	// BackupFile копирует текущий файл рядом с ним и возвращает имя копии
	BackupFile(ctx context.Context) (string, error)
}

// TxManager абстракция транзакции: единая блокировка документа и одна запись на коммит.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
