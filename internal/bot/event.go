package bot

// EventType names an inbound user action: a button tap or a free-text
// message, already decoded by the chat transport.
type EventType string

const (
	EventStart          EventType = "start"
	EventMainMenu       EventType = "main_menu"
	EventAbout          EventType = "about"
	EventShowProducts   EventType = "show_products"
	EventSelectProduct  EventType = "select_product"
	EventAddToCart      EventType = "add_to_cart"
	EventPresetQuantity EventType = "preset_quantity"
	EventCancelQuantity EventType = "cancel_quantity"
	EventViewCart       EventType = "view_cart"
	EventRemoveItem     EventType = "remove_item"
	EventCheckout       EventType = "checkout"
	EventText           EventType = "text"
)

// Event carries the payload fields for the event types that have one.
// Unused fields stay empty.
type Event struct {
	Type      EventType
	ProductID string // select_product, add_to_cart
	ItemID    string // remove_item
	Quantity  string // preset_quantity, e.g. "0.5"
	Text      string // text: free-form quantity or email input
}
