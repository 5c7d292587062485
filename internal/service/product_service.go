package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// ProductService инкапсулирует бизнес-логику вокруг товаров
type ProductService struct {
	repo repository.ProductRepository
	tx   repository.TxManager
}

func NewProductService(repo repository.ProductRepository, tx repository.TxManager) *ProductService {
	return &ProductService{repo: repo, tx: tx}
}

// ProductPatch частичное обновление: меняются только заданные поля
type ProductPatch struct {
	Name     *string          `json:"name,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Stock    *int64           `json:"stock,omitempty"`
	ImageRef *string          `json:"imageRef,omitempty"`
}

func (pp ProductPatch) apply(p *domain.Product) {
	if pp.Name != nil {
		p.Name = strings.TrimSpace(*pp.Name)
	}
	if pp.Price != nil {
		p.Price = *pp.Price
	}
	if pp.Stock != nil {
		p.Stock = *pp.Stock
	}
	if pp.ImageRef != nil {
		p.ImageRef = *pp.ImageRef
	}
}

func validProduct(p domain.Product) bool {
	return p.Name != "" && !p.Price.IsNegative() && p.Stock >= 0
}

func (s *ProductService) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if !validProduct(p) {
		return nil, ErrInvalidInput
	}
	cp := p
	if err := s.repo.Create(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

// Patch применяет изменения к существующему товару в одной транзакции
func (s *ProductService) Patch(ctx context.Context, id int64, patch ProductPatch) (*domain.Product, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	var updated *domain.Product
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		patch.apply(p)
		if !validProduct(*p) {
			return ErrInvalidInput
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *ProductService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	return s.repo.Delete(ctx, id)
}

func (s *ProductService) List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, error) {
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return nil, ErrInvalidInput
	}
	return s.repo.List(ctx, f)
}
