package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/yelena0000/fish-store/internal/domain"
	"github.com/yelena0000/fish-store/internal/errs"
	"github.com/yelena0000/fish-store/internal/repository"
)

// OrderService turns the current cart into an order at checkout time.
type OrderService struct {
	carts  *CartService
	orders repository.OrderRepository
}

func NewOrderService(carts *CartService, orders repository.OrderRepository) *OrderService {
	return &OrderService{carts: carts, orders: orders}
}

// CreateOrder reads the cart, computes the total from the line items it
// holds right now and submits the order. An empty or missing cart returns
// errs.ErrEmptyCart without contacting the order endpoint.
//
// On success the cart is cleared best-effort: a failed clear is logged,
// not retried, and the order stands.
func (s *OrderService) CreateOrder(ctx context.Context, ownerKey, email string) (*domain.Order, error) {
	cart, err := s.carts.GetCart(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, errs.ErrEmptyCart
	}

	itemIDs := cart.ItemIDs()
	if len(itemIDs) == 0 {
		// Every line failed to populate its product; nothing priceable.
		return nil, errs.ErrEmptyCart
	}

	order := domain.Order{
		Email:          email,
		Status:         domain.OrderStatusNew,
		Total:          cart.Total(),
		ItemIDs:        itemIDs,
		IdempotencyKey: uuid.NewString(),
	}

	created, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to create order for %s: %w", ownerKey, err)
	}

	if err := s.carts.ClearCart(ctx, ownerKey); err != nil {
		log.Printf("clear cart after order %s error: %v", created.ID, err)
	}

	return &created, nil
}
