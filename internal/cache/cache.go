package cache

import (
	"context"
	"errors"

	"github.com/danirudp/lipos/domain"
)

type ProductCache interface {
	Get(ctx context.Context, productID string) (*domain.Product, error)
	Set(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, productIDs ...string) error
}

var ErrCacheMiss = errors.New("cache miss")
