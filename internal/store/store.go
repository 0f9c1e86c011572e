package store

import (
	"errors"
	"time"

	r "github.com/danirudp/lipos/internal/repository"
)

const (
	// EventRetention is how long a relayed outbox event is kept before it is pruned
	EventRetention = 24 * time.Hour

	// CleanupInterval is how often the background cleanup runs
	CleanupInterval = 5 * time.Minute
)

// The memory store answers with the same sentinels as the SQL repository so callers
// can switch backends without changing their error handling.
var (
	ErrProductNotFound         = r.ErrProductNotFound
	ErrCustomerNotFound        = r.ErrCustomerNotFound
	ErrOrderNotFound           = r.ErrOrderNotFound
	ErrDuplicateIdempotencyKey = r.ErrDuplicateIdempotencyKey
	ErrInvalidStock            = r.ErrInvalidStock
	ErrInvalidPrice            = r.ErrInvalidPrice
	ErrProductReferenced       = r.ErrProductReferenced
	ErrCustomerReferenced      = r.ErrCustomerReferenced
)

var (
	ErrDuplicateProduct  = errors.New("product already exists")
	ErrDuplicateCustomer = errors.New("customer already exists")
)

var _ r.RepoInterface = (*MemoryStore)(nil)
