package bot

import (
	"context"

	"github.com/yelena0000/fish-store/internal/domain"
)

// Renderer is the chat transport collaborator. Implementations send or
// edit messages for a session; any failure they return is transport-level
// (message gone, edit not modified) and the conversation core treats it as
// a non-fatal no-op.
type Renderer interface {
	RenderMenu(ctx context.Context, s *Session, products []domain.Product) error
	RenderProductDetail(ctx context.Context, s *Session, product domain.Product) error
	RenderCart(ctx context.Context, s *Session, view domain.CartView) error
	PromptQuantity(ctx context.Context, s *Session, product domain.Product) error
	PromptEmail(ctx context.Context, s *Session) error
	Notify(ctx context.Context, s *Session, text string) error
}
