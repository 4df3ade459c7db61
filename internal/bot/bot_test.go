package bot_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/text/currency"

	"github.com/yelena0000/fish-store/internal/bot"
	"github.com/yelena0000/fish-store/internal/domain"
	"github.com/yelena0000/fish-store/internal/errs"
	"github.com/yelena0000/fish-store/internal/service"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockCatalog struct {
	products []domain.Product
	err      error
	calls    atomic.Int32
}

func (m *mockCatalog) Refresh(context.Context) (domain.CatalogSnapshot, error) {
	m.calls.Add(1)
	if m.err != nil {
		return domain.CatalogSnapshot{}, m.err
	}
	return domain.NewCatalogSnapshot(m.products), nil
}

type addCall struct {
	productID string
	quantity  decimal.Decimal
}

type mockCarts struct {
	m sync.Mutex

	cart   *domain.Cart
	getErr error

	added  []addCall
	addErr error

	removed      []string
	removeResult service.RemoveResult
	removeErr    error
	removeDelay  time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (m *mockCarts) GetCart(context.Context, string) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.cart, nil
}

func (m *mockCarts) AddItem(_ context.Context, _ string, product domain.Product, quantity decimal.Decimal) (*domain.CartItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.addErr != nil {
		return nil, m.addErr
	}
	m.added = append(m.added, addCall{productID: product.ID, quantity: quantity})
	return &domain.CartItem{ID: "i-new", Product: product, Quantity: quantity}, nil
}

func (m *mockCarts) RemoveItem(_ context.Context, _, itemID string) (service.RemoveResult, error) {
	current := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		max := m.maxInFlight.Load()
		if current <= max || m.maxInFlight.CompareAndSwap(max, current) {
			break
		}
	}
	if m.removeDelay > 0 {
		time.Sleep(m.removeDelay)
	}

	m.m.Lock()
	defer m.m.Unlock()
	if m.removeErr != nil {
		return 0, m.removeErr
	}
	m.removed = append(m.removed, itemID)
	return m.removeResult, nil
}

type mockOrders struct {
	m      sync.Mutex
	order  *domain.Order
	err    error
	emails []string
}

func (m *mockOrders) CreateOrder(_ context.Context, _, email string) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.emails = append(m.emails, email)
	return m.order, nil
}

type fakeRenderer struct {
	m sync.Mutex

	err error

	menus        int
	details      []string
	carts        []domain.CartView
	qtyPrompts   []string
	emailPrompts int
	notes        []string
}

func (r *fakeRenderer) RenderMenu(_ context.Context, _ *bot.Session, _ []domain.Product) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.menus++
	return r.err
}

func (r *fakeRenderer) RenderProductDetail(_ context.Context, _ *bot.Session, p domain.Product) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.details = append(r.details, p.ID)
	return r.err
}

func (r *fakeRenderer) RenderCart(_ context.Context, _ *bot.Session, view domain.CartView) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.carts = append(r.carts, view)
	return r.err
}

func (r *fakeRenderer) PromptQuantity(_ context.Context, _ *bot.Session, p domain.Product) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.qtyPrompts = append(r.qtyPrompts, p.ID)
	return r.err
}

func (r *fakeRenderer) PromptEmail(context.Context, *bot.Session) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.emailPrompts++
	return r.err
}

func (r *fakeRenderer) Notify(_ context.Context, _ *bot.Session, text string) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.notes = append(r.notes, text)
	return r.err
}

func (r *fakeRenderer) lastNote() string {
	r.m.Lock()
	defer r.m.Unlock()
	if len(r.notes) == 0 {
		return ""
	}
	return r.notes[len(r.notes)-1]
}

func rub(amount string) domain.Money {
	return domain.Money{Amount: decimal.RequireFromString(amount), Currency: currency.RUB}
}

var (
	salmon = domain.Product{ID: "p1", Title: "Salmon", Price: rub("350.50")}
	trout  = domain.Product{ID: "p2", Title: "Trout", Price: rub("280")}
)

type fixture struct {
	bot      *bot.Bot
	session  *bot.Session
	catalog  *mockCatalog
	carts    *mockCarts
	orders   *mockOrders
	renderer *fakeRenderer
}

func newFixture() *fixture {
	catalog := &mockCatalog{products: []domain.Product{salmon, trout}}
	carts := &mockCarts{}
	orders := &mockOrders{order: &domain.Order{ID: "o1", Status: domain.OrderStatusNew, Total: rub("701")}}
	renderer := &fakeRenderer{}

	registry := bot.NewSessionRegistry()
	return &fixture{
		bot:      bot.New(catalog, carts, orders, renderer),
		session:  registry.Get("u1"),
		catalog:  catalog,
		carts:    carts,
		orders:   orders,
		renderer: renderer,
	}
}

// drive replays a sequence of events and returns the final state.
func (f *fixture) drive(t *testing.T, events ...bot.Event) bot.State {
	t.Helper()
	var state bot.State
	for _, ev := range events {
		state = f.bot.HandleEvent(t.Context(), f.session, ev)
	}
	return state
}

func TestStartShowsMenu(t *testing.T) {
	f := newFixture()

	state := f.drive(t, bot.Event{Type: bot.EventStart})

	assert.Equal(t, bot.StateMenu, state)
	assert.Equal(t, int32(1), f.catalog.calls.Load())
	assert.Equal(t, 1, f.renderer.menus)
	assert.False(t, f.session.Catalog.Empty())
}

func TestMenuRefreshesSnapshotOnEveryEntry(t *testing.T) {
	f := newFixture()

	f.drive(t,
		bot.Event{Type: bot.EventStart},
		bot.Event{Type: bot.EventShowProducts},
		bot.Event{Type: bot.EventMainMenu},
	)

	// Refresh-on-menu-entry, never a stale cached list.
	assert.Equal(t, int32(3), f.catalog.calls.Load())
}

func TestSelectProductShowsDetail(t *testing.T) {
	f := newFixture()

	state := f.drive(t,
		bot.Event{Type: bot.EventStart},
		bot.Event{Type: bot.EventSelectProduct, ProductID: "p2"},
	)

	assert.Equal(t, bot.StateProductDetail, state)
	assert.Equal(t, []string{"p2"}, f.renderer.details)
}

func TestSelectUnknownProductFallsBackToMenu(t *testing.T) {
	f := newFixture()

	state := f.drive(t,
		bot.Event{Type: bot.EventStart},
		bot.Event{Type: bot.EventSelectProduct, ProductID: "p99"},
	)

	assert.Equal(t, bot.StateMenu, state)
	assert.Contains(t, f.renderer.lastNote(), "not available")
}

func TestAddToCartPromptsQuantity(t *testing.T) {
	f := newFixture()

	state := f.drive(t,
		bot.Event{Type: bot.EventStart},
		bot.Event{Type: bot.EventSelectProduct, ProductID: "p1"},
		bot.Event{Type: bot.EventAddToCart, ProductID: "p1"},
	)

	assert.Equal(t, bot.StateAwaitingQuantity, state)
	assert.Equal(t, "p1", f.session.PendingProductID)
	assert.Equal(t, []string{"p1"}, f.renderer.qtyPrompts)
}

func toAwaitingQuantity(t *testing.T, f *fixture) {
	t.Helper()
	state := f.drive(t,
		bot.Event{Type: bot.EventStart},
		bot.Event{Type: bot.EventSelectProduct, ProductID: "p1"},
		bot.Event{Type: bot.EventAddToCart, ProductID: "p1"},
	)
	require.Equal(t, bot.StateAwaitingQuantity, state)
}

func TestPresetQuantityAddsAndReturnsToMenu(t *testing.T) {
	f := newFixture()
	toAwaitingQuantity(t, f)

	state := f.drive(t, bot.Event{Type: bot.EventPresetQuantity, Quantity: "0.5"})

	assert.Equal(t, bot.StateMenu, state)
	assert.Empty(t, f.session.PendingProductID)
	require.Len(t, f.carts.added, 1)
	assert.Equal(t, "p1", f.carts.added[0].productID)
	assert.True(t, f.carts.added[0].quantity.Equal(decimal.RequireFromString("0.5")))
}

func TestFreeTextQuantityAcceptsComma(t *testing.T) {
	f := newFixture()
	toAwaitingQuantity(t, f)

	state := f.drive(t, bot.Event{Type: bot.EventText, Text: "1,5"})

	assert.Equal(t, bot.StateMenu, state)
	require.Len(t, f.carts.added, 1)
	assert.True(t, f.carts.added[0].quantity.Equal(decimal.RequireFromString("1.5")))
}

func TestInvalidQuantityReprompts(t *testing.T) {
	f := newFixture()
	toAwaitingQuantity(t, f)

	for _, input := range []string{"abc", "0.05", "50.1", "0"} {
		state := f.drive(t, bot.Event{Type: bot.EventText, Text: input})
		assert.Equal(t, bot.StateAwaitingQuantity, state, "input %q", input)
	}

	assert.Empty(t, f.carts.added, "no write may happen on invalid input")
	assert.Equal(t, "p1", f.session.PendingProductID)
}

func TestMainMenuFromAwaitingQuantityClearsPending(t *testing.T) {
	f := newFixture()
	toAwaitingQuantity(t, f)

	// Invalid input first, then navigation: pending must still clear.
	f.drive(t, bot.Event{Type: bot.EventText, Text: "not-a-number"})
	state := f.drive(t, bot.Event{Type: bot.EventMainMenu})

	assert.Equal(t, bot.StateMenu, state)
	assert.Empty(t, f.session.PendingProductID)
}

func TestCancelQuantityReturnsToProductDetail(t *testing.T) {
	f := newFixture()
	toAwaitingQuantity(t, f)

	state := f.drive(t, bot.Event{Type: bot.EventCancelQuantity})

	assert.Equal(t, bot.StateProductDetail, state)
	assert.Empty(t, f.session.PendingProductID)
	assert.Equal(t, []string{"p1", "p1"}, f.renderer.details)
}

func TestViewCartRendersGroupedView(t *testing.T) {
	f := newFixture()
	f.carts.cart = &domain.Cart{
		ID:      "c1",
		OwnerID: "u1",
		Items: []domain.CartItem{
			{ID: "i1", Product: salmon, Quantity: decimal.RequireFromString("0.5")},
			{ID: "i3", Product: salmon, Quantity: decimal.RequireFromString("1.5")},
		},
	}

	state := f.drive(t,
		bot.Event{Type: bot.EventStart},
		bot.Event{Type: bot.EventViewCart},
	)

	assert.Equal(t, bot.StateCart, state)
	require.Len(t, f.renderer.carts, 1)
	view := f.renderer.carts[0]
	require.Len(t, view.Groups, 1)
	assert.True(t, view.Groups[0].Quantity.Equal(decimal.RequireFromString("2")))
	assert.Equal(t, "i1", view.Groups[0].RemoveItemID)
	assert.True(t, view.Total.Amount.Equal(decimal.RequireFromString("701")))
}

func toCart(t *testing.T, f *fixture) {
	t.Helper()
	state := f.drive(t,
		bot.Event{Type: bot.EventStart},
		bot.Event{Type: bot.EventViewCart},
	)
	require.Equal(t, bot.StateCart, state)
}

func TestRemoveItemRerendersCart(t *testing.T) {
	f := newFixture()
	f.carts.cart = &domain.Cart{
		ID:    "c1",
		Items: []domain.CartItem{{ID: "i1", Product: salmon, Quantity: decimal.RequireFromString("1")}},
	}
	toCart(t, f)

	state := f.drive(t, bot.Event{Type: bot.EventRemoveItem, ItemID: "i1"})

	assert.Equal(t, bot.StateCart, state)
	assert.Equal(t, []string{"i1"}, f.carts.removed)
	assert.Len(t, f.renderer.carts, 2)
}

func TestRemovalUnconfirmedKeepsCartWithMessage(t *testing.T) {
	f := newFixture()
	f.carts.cart = &domain.Cart{
		ID:    "c1",
		Items: []domain.CartItem{{ID: "i1", Product: salmon, Quantity: decimal.RequireFromString("1")}},
	}
	toCart(t, f)
	f.carts.removeErr = errs.ErrRemovalUnconfirmed

	state := f.drive(t, bot.Event{Type: bot.EventRemoveItem, ItemID: "i1"})

	// Distinct from a hard failure: the user is told to re-check, and the
	// cart is re-rendered so they can.
	assert.Equal(t, bot.StateCart, state)
	assert.Contains(t, f.renderer.lastNote(), "re-open the cart")
}

func TestCheckoutEmptyCartStaysInCart(t *testing.T) {
	f := newFixture()
	toCart(t, f)

	state := f.drive(t, bot.Event{Type: bot.EventCheckout})

	assert.Equal(t, bot.StateCart, state)
	assert.Contains(t, f.renderer.lastNote(), "empty")
	assert.Zero(t, f.renderer.emailPrompts)
}

func TestCheckoutPromptsEmail(t *testing.T) {
	f := newFixture()
	f.carts.cart = &domain.Cart{
		ID:    "c1",
		Items: []domain.CartItem{{ID: "i1", Product: salmon, Quantity: decimal.RequireFromString("1")}},
	}
	toCart(t, f)

	state := f.drive(t, bot.Event{Type: bot.EventCheckout})

	assert.Equal(t, bot.StateAwaitingEmail, state)
	assert.Equal(t, 1, f.renderer.emailPrompts)
}

func toAwaitingEmail(t *testing.T, f *fixture) {
	t.Helper()
	f.carts.cart = &domain.Cart{
		ID:    "c1",
		Items: []domain.CartItem{{ID: "i1", Product: salmon, Quantity: decimal.RequireFromString("1")}},
	}
	toCart(t, f)
	state := f.drive(t, bot.Event{Type: bot.EventCheckout})
	require.Equal(t, bot.StateAwaitingEmail, state)
}

func TestInvalidEmailReprompts(t *testing.T) {
	f := newFixture()
	toAwaitingEmail(t, f)

	state := f.drive(t, bot.Event{Type: bot.EventText, Text: "bad-email"})

	assert.Equal(t, bot.StateAwaitingEmail, state)
	assert.Empty(t, f.orders.emails)
}

func TestValidEmailPlacesOrder(t *testing.T) {
	f := newFixture()
	toAwaitingEmail(t, f)

	state := f.drive(t, bot.Event{Type: bot.EventText, Text: "user@example.com"})

	assert.Equal(t, bot.StateMenu, state)
	assert.Equal(t, []string{"user@example.com"}, f.orders.emails)
	assert.Contains(t, f.renderer.lastNote(), "Order placed")
}

func TestOrderOnEmptiedCartReturnsToMenu(t *testing.T) {
	f := newFixture()
	toAwaitingEmail(t, f)
	f.orders.err = errs.ErrEmptyCart

	state := f.drive(t, bot.Event{Type: bot.EventText, Text: "user@example.com"})

	assert.Equal(t, bot.StateMenu, state)
	assert.Contains(t, f.renderer.lastNote(), "empty")
}

func TestBackendFailureRoutesToMenu(t *testing.T) {
	f := newFixture()
	f.drive(t, bot.Event{Type: bot.EventStart})

	// The store goes away while the user opens the cart.
	f.carts.getErr = &errs.BackendError{Op: "get cart", Status: 503}
	state := f.drive(t, bot.Event{Type: bot.EventViewCart})

	assert.Equal(t, bot.StateMenu, state)
	assert.Contains(t, f.renderer.lastNote(), "try again")
}

func TestRefreshFailureFallsBackToStaleSnapshot(t *testing.T) {
	f := newFixture()
	f.drive(t, bot.Event{Type: bot.EventStart})
	menusBefore := f.renderer.menus

	f.catalog.err = &errs.BackendError{Op: "get products", Err: context.DeadlineExceeded}
	state := f.drive(t, bot.Event{Type: bot.EventMainMenu})

	assert.Equal(t, bot.StateMenu, state)
	// The old snapshot stays in place and the menu still renders from it.
	assert.False(t, f.session.Catalog.Empty())
	assert.Greater(t, f.renderer.menus, menusBefore)
}

func TestRendererFailuresAreNonFatal(t *testing.T) {
	f := newFixture()
	f.renderer.err = assert.AnError

	state := f.drive(t,
		bot.Event{Type: bot.EventStart},
		bot.Event{Type: bot.EventSelectProduct, ProductID: "p1"},
		bot.Event{Type: bot.EventAddToCart, ProductID: "p1"},
		bot.Event{Type: bot.EventPresetQuantity, Quantity: "1"},
	)

	assert.Equal(t, bot.StateMenu, state)
	assert.Len(t, f.carts.added, 1, "a failed edit must not block the write")
}

func TestEventsForOneSessionAreSerialized(t *testing.T) {
	f := newFixture()
	f.carts.cart = &domain.Cart{
		ID:    "c1",
		Items: []domain.CartItem{{ID: "i1", Product: salmon, Quantity: decimal.RequireFromString("1")}},
	}
	f.carts.removeDelay = 5 * time.Millisecond
	toCart(t, f)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.bot.HandleEvent(context.Background(), f.session, bot.Event{Type: bot.EventRemoveItem, ItemID: "i1"})
		}()
	}
	wg.Wait()

	// Double taps queue up behind the session lock; they never race the
	// same cart concurrently.
	assert.Equal(t, int32(1), f.carts.maxInFlight.Load())
	assert.Len(t, f.carts.removed, 4)
}

func TestSessionsDoNotShareState(t *testing.T) {
	catalog := &mockCatalog{products: []domain.Product{salmon}}
	carts := &mockCarts{}
	orders := &mockOrders{}
	renderer := &fakeRenderer{}
	b := bot.New(catalog, carts, orders, renderer)
	registry := bot.NewSessionRegistry()

	first := registry.Get("u1")
	second := registry.Get("u2")
	require.NotSame(t, first, second)

	b.HandleEvent(t.Context(), first, bot.Event{Type: bot.EventStart})
	b.HandleEvent(t.Context(), first, bot.Event{Type: bot.EventSelectProduct, ProductID: "p1"})

	assert.Equal(t, bot.StateProductDetail, first.State)
	assert.Equal(t, bot.StateMenu, second.State)
	assert.True(t, second.Catalog.Empty(), "one session's snapshot must never leak into another")
}

func TestRegistryConcurrentGetReturnsOneSession(t *testing.T) {
	registry := bot.NewSessionRegistry()

	sessions := make([]*bot.Session, 16)
	var wg sync.WaitGroup
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = registry.Get("u1")
		}(i)
	}
	wg.Wait()

	for _, s := range sessions[1:] {
		assert.Same(t, sessions[0], s)
	}
	assert.Equal(t, 1, registry.Len())
}

func TestUnknownEventIsIgnored(t *testing.T) {
	f := newFixture()
	f.drive(t, bot.Event{Type: bot.EventStart})

	// A cart-only event arriving while on the menu is dropped, the
	// session stays where it was.
	state := f.drive(t, bot.Event{Type: bot.EventRemoveItem, ItemID: "i1"})

	assert.Equal(t, bot.StateMenu, state)
	assert.Empty(t, f.carts.removed)
}

func TestAddedNotificationShowsCost(t *testing.T) {
	f := newFixture()
	toAwaitingQuantity(t, f)

	f.drive(t, bot.Event{Type: bot.EventText, Text: "2"})

	note := f.renderer.lastNote()
	assert.True(t, strings.HasPrefix(note, "Added to cart"), "note: %q", note)
	assert.Contains(t, note, "Salmon")
	assert.Contains(t, note, "701") // 2 * 350.50, exact
}
