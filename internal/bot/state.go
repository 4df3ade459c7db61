package bot

// State is the conversation position of one session. There is no terminal
// state: Menu and Cart stay reachable from anywhere via main-menu
// navigation.
type State string

const (
	StateMenu             State = "MENU"
	StateProductDetail    State = "PRODUCT_DETAIL"
	StateAwaitingQuantity State = "AWAITING_QUANTITY"
	StateCart             State = "CART"
	StateAwaitingEmail    State = "AWAITING_EMAIL"
)

// String representation (for logging)
func (s State) String() string {
	return string(s)
}
