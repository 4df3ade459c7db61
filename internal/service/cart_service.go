package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/yelena0000/fish-store/internal/domain"
	"github.com/yelena0000/fish-store/internal/errs"
	"github.com/yelena0000/fish-store/internal/repository"
)

// RemoveResult tags the outcome of a removal. AlreadyAbsent is a normal
// outcome, not an error: it is what a second tap on the same button sees.
type RemoveResult int

const (
	Removed RemoveResult = iota
	AlreadyAbsent
)

const (
	defaultVerifyAttempts = 3
	defaultVerifyDelay    = 2 * time.Second
)

// CartService is the sync layer over the remote cart store. The store is
// eventually consistent: a delete may not be visible on the very next read,
// so removal is retry-then-verify rather than fire-and-forget.
type CartService struct {
	repo           repository.CartRepository
	verifyAttempts int
	verifyDelay    time.Duration
}

func NewCartService(repo repository.CartRepository) *CartService {
	return &CartService{
		repo:           repo,
		verifyAttempts: defaultVerifyAttempts,
		verifyDelay:    defaultVerifyDelay,
	}
}

// NewCartServiceWithVerify overrides the removal verification budget.
func NewCartServiceWithVerify(repo repository.CartRepository, attempts int, delay time.Duration) *CartService {
	s := NewCartService(repo)
	if attempts > 0 {
		s.verifyAttempts = attempts
	}
	if delay > 0 {
		s.verifyDelay = delay
	}
	return s
}

// GetCart returns nil without error when the owner has no cart yet.
func (s *CartService) GetCart(ctx context.Context, ownerKey string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, ownerKey)
	if err != nil {
		if errors.Is(err, errs.ErrCartNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cart for %s: %w", ownerKey, err)
	}
	return cart, nil
}

// AddItem appends one line item, creating the cart lazily on first add.
// It never merges with existing lines of the same product.
func (s *CartService) AddItem(ctx context.Context, ownerKey string, product domain.Product, quantity decimal.Decimal) (*domain.CartItem, error) {
	cart, err := s.repo.GetCart(ctx, ownerKey)
	if err != nil {
		if !errors.Is(err, errs.ErrCartNotFound) {
			return nil, fmt.Errorf("failed to get cart for %s: %w", ownerKey, err)
		}
		cart, err = s.repo.CreateCart(ctx, ownerKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create cart for %s: %w", ownerKey, err)
		}
	}

	item, err := s.repo.AddItem(ctx, cart.ID, product.ID, quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to add product %s to cart %s: %w", product.ID, cart.ID, err)
	}

	item.Product = product
	return item, nil
}

// RemoveItem deletes one physical line item and verifies the delete took.
//
// The store does not guarantee read-after-write consistency for deletes, so
// after the DELETE the cart is re-fetched up to verifyAttempts times with a
// fixed verifyDelay between attempts. Reporting success without the verify
// would silently desync the rendered cart from the store.
func (s *CartService) RemoveItem(ctx context.Context, ownerKey, itemID string) (RemoveResult, error) {
	cart, err := s.repo.GetCart(ctx, ownerKey)
	if err != nil {
		return 0, fmt.Errorf("failed to get cart for %s: %w", ownerKey, err)
	}

	if !cart.Contains(itemID) {
		return AlreadyAbsent, nil
	}

	found, err := s.repo.DeleteItem(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete item %s: %w", itemID, err)
	}
	if !found {
		// The store answered 404: the item vanished between the fetch and
		// the delete. Gone is gone.
		return Removed, nil
	}

	// Best-effort nudge so the store invalidates read caches before the
	// verification reads; a failure here is logged and swallowed.
	if err := s.repo.TouchCart(ctx, cart.ID); err != nil {
		log.Printf("touch cart %s after delete error: %v", cart.ID, err)
	}

	if err := s.verifyRemoved(ctx, ownerKey, itemID); err != nil {
		return 0, err
	}
	return Removed, nil
}

func (s *CartService) verifyRemoved(ctx context.Context, ownerKey, itemID string) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(s.verifyDelay),
			uint64(s.verifyAttempts-1),
		),
		ctx,
	)

	return backoff.Retry(func() error {
		cart, err := s.repo.GetCart(ctx, ownerKey)
		if err != nil {
			if errors.Is(err, errs.ErrCartNotFound) {
				return nil // whole cart gone, item with it
			}
			return err
		}
		if cart.Contains(itemID) {
			return errs.ErrRemovalUnconfirmed
		}
		return nil
	}, policy)
}

// ClearCart deletes every line item. Partial failure is acceptable: the
// user re-opens the cart to retry leftovers, there is no all-or-nothing
// guarantee against the remote store.
func (s *CartService) ClearCart(ctx context.Context, ownerKey string) error {
	cart, err := s.repo.GetCart(ctx, ownerKey)
	if err != nil {
		if errors.Is(err, errs.ErrCartNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get cart for %s: %w", ownerKey, err)
	}

	for _, item := range cart.Items {
		if _, err := s.repo.DeleteItem(ctx, item.ID); err != nil {
			log.Printf("clear cart %s: delete item %s error: %v", cart.ID, item.ID, err)
		}
	}
	return nil
}
