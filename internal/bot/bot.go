// Package bot drives the shopping conversation: one finite state machine
// per user session, dispatching inbound events to the handler registered
// for the session's current state.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/yelena0000/fish-store/internal/domain"
	"github.com/yelena0000/fish-store/internal/errs"
	"github.com/yelena0000/fish-store/internal/service"
	"github.com/yelena0000/fish-store/internal/validate"
)

// CatalogProvider refreshes the product snapshot.
// Consumers define these interfaces, not the service implementations.
type CatalogProvider interface {
	Refresh(ctx context.Context) (domain.CatalogSnapshot, error)
}

type CartClient interface {
	GetCart(ctx context.Context, ownerKey string) (*domain.Cart, error)
	AddItem(ctx context.Context, ownerKey string, product domain.Product, quantity decimal.Decimal) (*domain.CartItem, error)
	RemoveItem(ctx context.Context, ownerKey, itemID string) (service.RemoveResult, error)
}

type OrderClient interface {
	CreateOrder(ctx context.Context, ownerKey, email string) (*domain.Order, error)
}

const (
	msgProductNotFound    = "This product is not available anymore."
	msgCartEmpty          = "Your cart is empty, add something from the catalog first."
	msgRemovalUnconfirmed = "Could not confirm the removal yet, re-open the cart to check."
	msgBackendDown        = "The store is not responding, please try again later."
	msgOrderPlaced        = "Order placed! We will contact you shortly."
	msgAbout              = "We sell fresh fish by weight, in kilograms. Pick something from the catalog and add it to your cart."
)

type Bot struct {
	catalog  CatalogProvider
	carts    CartClient
	orders   OrderClient
	renderer Renderer
}

func New(catalog CatalogProvider, carts CartClient, orders OrderClient, renderer Renderer) *Bot {
	return &Bot{
		catalog:  catalog,
		carts:    carts,
		orders:   orders,
		renderer: renderer,
	}
}

// HandleEvent routes one inbound event through the session's current state
// and commits the next state. Events for the same session are serialized
// on the session lock; a second tap waits until the first has committed.
// Every error is classified into a defined next state, the session can
// never be left stuck.
func (b *Bot) HandleEvent(ctx context.Context, s *Session, ev Event) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := b.route(ctx, s, ev)
	if err != nil {
		next = b.recoverState(ctx, s, err)
	}
	s.State = next
	return next
}

func (b *Bot) route(ctx context.Context, s *Session, ev Event) (State, error) {
	// Main-menu navigation is valid from every state and always clears
	// the pending product.
	if ev.Type == EventStart || ev.Type == EventMainMenu {
		s.PendingProductID = ""
		return b.showMenu(ctx, s)
	}

	switch s.State {
	case StateMenu:
		return b.handleMenu(ctx, s, ev)
	case StateProductDetail:
		return b.handleProductDetail(ctx, s, ev)
	case StateAwaitingQuantity:
		return b.handleAwaitingQuantity(ctx, s, ev)
	case StateCart:
		return b.handleCart(ctx, s, ev)
	case StateAwaitingEmail:
		return b.handleAwaitingEmail(ctx, s, ev)
	default:
		log.Printf("session %s: unknown state %q, resetting to menu", s.UserID, s.State)
		s.PendingProductID = ""
		return b.showMenu(ctx, s)
	}
}

func (b *Bot) handleMenu(ctx context.Context, s *Session, ev Event) (State, error) {
	switch ev.Type {
	case EventShowProducts:
		return b.showMenu(ctx, s)
	case EventAbout:
		b.render(ctx, "about", b.renderer.Notify(ctx, s, msgAbout))
		return StateMenu, nil
	case EventSelectProduct:
		return b.showProductDetail(ctx, s, ev.ProductID)
	case EventViewCart:
		return b.showCart(ctx, s)
	default:
		// Not valid for this state: ignore, keep the session where it is.
		return StateMenu, nil
	}
}

func (b *Bot) handleProductDetail(ctx context.Context, s *Session, ev Event) (State, error) {
	switch ev.Type {
	case EventSelectProduct:
		return b.showProductDetail(ctx, s, ev.ProductID)
	case EventAddToCart:
		product, ok := s.Catalog.Resolve(ev.ProductID)
		if !ok {
			b.render(ctx, "notify", b.renderer.Notify(ctx, s, msgProductNotFound))
			return b.showMenu(ctx, s)
		}
		s.PendingProductID = product.ID
		b.render(ctx, "quantity prompt", b.renderer.PromptQuantity(ctx, s, product))
		return StateAwaitingQuantity, nil
	case EventShowProducts:
		return b.showMenu(ctx, s)
	case EventViewCart:
		return b.showCart(ctx, s)
	default:
		return StateProductDetail, nil
	}
}

func (b *Bot) handleAwaitingQuantity(ctx context.Context, s *Session, ev Event) (State, error) {
	switch ev.Type {
	case EventPresetQuantity:
		return b.addPendingProduct(ctx, s, ev.Quantity)
	case EventText:
		return b.addPendingProduct(ctx, s, ev.Text)
	case EventCancelQuantity:
		pendingID := s.PendingProductID
		s.PendingProductID = ""
		if product, ok := s.Catalog.Resolve(pendingID); ok {
			b.render(ctx, "product detail", b.renderer.RenderProductDetail(ctx, s, product))
			return StateProductDetail, nil
		}
		return b.showMenu(ctx, s)
	case EventShowProducts:
		s.PendingProductID = ""
		return b.showMenu(ctx, s)
	case EventViewCart:
		s.PendingProductID = ""
		return b.showCart(ctx, s)
	default:
		return StateAwaitingQuantity, nil
	}
}

// addPendingProduct validates the typed or preset quantity and appends one
// line item for the pending product. Validation failures re-prompt in the
// same state; only a successful write moves the session back to the menu.
func (b *Bot) addPendingProduct(ctx context.Context, s *Session, input string) (State, error) {
	quantity, err := validate.Quantity(input)
	if err != nil {
		var ve *errs.ValidationError
		if errors.As(err, &ve) {
			b.render(ctx, "notify", b.renderer.Notify(ctx, s, ve.Message))
			return StateAwaitingQuantity, nil
		}
		return StateAwaitingQuantity, err
	}

	product, ok := s.Catalog.Resolve(s.PendingProductID)
	if !ok {
		s.PendingProductID = ""
		b.render(ctx, "notify", b.renderer.Notify(ctx, s, msgProductNotFound))
		return b.showMenu(ctx, s)
	}

	item, err := b.carts.AddItem(ctx, s.UserID, product, quantity)
	if err != nil {
		return StateMenu, err
	}

	s.PendingProductID = ""
	text := fmt.Sprintf("Added to cart: %s, %s kg, %s",
		product.Title, item.Quantity.String(), item.Subtotal().String())
	b.render(ctx, "notify", b.renderer.Notify(ctx, s, text))
	return b.showMenu(ctx, s)
}

func (b *Bot) handleCart(ctx context.Context, s *Session, ev Event) (State, error) {
	switch ev.Type {
	case EventRemoveItem:
		// AlreadyAbsent is a double tap on a line that is already gone:
		// nothing to report, the re-render below is the whole answer.
		if _, err := b.carts.RemoveItem(ctx, s.UserID, ev.ItemID); err != nil {
			return StateCart, err
		}
		return b.showCart(ctx, s)
	case EventCheckout:
		cart, err := b.carts.GetCart(ctx, s.UserID)
		if err != nil {
			return StateCart, err
		}
		if cart.IsEmpty() {
			b.render(ctx, "notify", b.renderer.Notify(ctx, s, msgCartEmpty))
			return b.showCart(ctx, s)
		}
		b.render(ctx, "email prompt", b.renderer.PromptEmail(ctx, s))
		return StateAwaitingEmail, nil
	case EventShowProducts:
		return b.showMenu(ctx, s)
	case EventViewCart:
		return b.showCart(ctx, s)
	default:
		return StateCart, nil
	}
}

func (b *Bot) handleAwaitingEmail(ctx context.Context, s *Session, ev Event) (State, error) {
	if ev.Type != EventText {
		return StateAwaitingEmail, nil
	}

	email, err := validate.Email(ev.Text)
	if err != nil {
		var ve *errs.ValidationError
		if errors.As(err, &ve) {
			b.render(ctx, "notify", b.renderer.Notify(ctx, s, ve.Message))
			return StateAwaitingEmail, nil
		}
		return StateAwaitingEmail, err
	}

	order, err := b.orders.CreateOrder(ctx, s.UserID, email)
	if err != nil {
		if errors.Is(err, errs.ErrEmptyCart) {
			b.render(ctx, "notify", b.renderer.Notify(ctx, s, msgCartEmpty))
			return b.showMenu(ctx, s)
		}
		return StateAwaitingEmail, err
	}

	log.Printf("session %s: order %s placed, total %s", s.UserID, order.ID, order.Total)
	b.render(ctx, "notify", b.renderer.Notify(ctx, s, msgOrderPlaced))
	return b.showMenu(ctx, s)
}

// showMenu refreshes the catalog snapshot and renders the menu. The
// snapshot is replaced atomically: either the new list is in place or the
// old one stays.
func (b *Bot) showMenu(ctx context.Context, s *Session) (State, error) {
	snapshot, err := b.catalog.Refresh(ctx)
	if err != nil {
		return StateMenu, err
	}
	s.Catalog = snapshot

	b.render(ctx, "menu", b.renderer.RenderMenu(ctx, s, s.Catalog.Products()))
	return StateMenu, nil
}

func (b *Bot) showProductDetail(ctx context.Context, s *Session, productID string) (State, error) {
	product, ok := s.Catalog.Resolve(productID)
	if !ok {
		b.render(ctx, "notify", b.renderer.Notify(ctx, s, msgProductNotFound))
		return b.menuFallback(ctx, s), nil
	}
	b.render(ctx, "product detail", b.renderer.RenderProductDetail(ctx, s, product))
	return StateProductDetail, nil
}

func (b *Bot) showCart(ctx context.Context, s *Session) (State, error) {
	cart, err := b.carts.GetCart(ctx, s.UserID)
	if err != nil {
		return StateCart, err
	}

	b.render(ctx, "cart", b.renderer.RenderCart(ctx, s, domain.BuildCartView(cart)))
	return StateCart, nil
}

// recoverState maps a handler error onto a defined next state per the
// failure taxonomy. The fallback menu render reuses the session's current
// snapshot: the refresh may be exactly what failed.
func (b *Bot) recoverState(ctx context.Context, s *Session, err error) State {
	kind := errs.Classify(err)
	log.Printf("session %s in state %s: %s error: %v", s.UserID, s.State, kind, err)

	switch kind {
	case errs.KindValidation:
		var ve *errs.ValidationError
		if errors.As(err, &ve) {
			b.render(ctx, "notify", b.renderer.Notify(ctx, s, ve.Message))
		}
		return s.State
	case errs.KindNotFound:
		b.render(ctx, "notify", b.renderer.Notify(ctx, s, msgProductNotFound))
		return b.menuFallback(ctx, s)
	case errs.KindEmptyCart:
		b.render(ctx, "notify", b.renderer.Notify(ctx, s, msgCartEmpty))
		return b.menuFallback(ctx, s)
	case errs.KindRemovalUnconfirmed:
		// Distinct from a hard failure: the delete was sent, the store
		// just never showed it gone within the verification budget.
		b.render(ctx, "notify", b.renderer.Notify(ctx, s, msgRemovalUnconfirmed))
		if next, err := b.showCart(ctx, s); err == nil {
			return next
		}
		return b.menuFallback(ctx, s)
	default:
		b.render(ctx, "notify", b.renderer.Notify(ctx, s, msgBackendDown))
		return b.menuFallback(ctx, s)
	}
}

func (b *Bot) menuFallback(ctx context.Context, s *Session) State {
	s.PendingProductID = ""
	b.render(ctx, "menu", b.renderer.RenderMenu(ctx, s, s.Catalog.Products()))
	return StateMenu
}

// render logs and swallows transport-level failures; a message that could
// not be edited is never a reason to fail the state transition.
func (b *Bot) render(_ context.Context, op string, err error) {
	if err != nil {
		log.Printf("render %s error: %v", op, err)
	}
}
