package newsletter

import (
	"context"
	"time"

	"github.com/atlasestates/newsletter-service/internal/domain"
)

// Repository defines the data access contract for subscribers.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Upsert creates the subscriber or, if the email already exists,
	// overwrites name, tokens, and lifecycle flags while preserving the
	// row identity. The write is atomic: either the full record lands or
	// nothing does.
	Upsert(ctx context.Context, s *domain.Subscriber) error

	// GetByConfirmToken returns the subscriber holding the given confirm
	// token. Returns ErrNotFound if no row holds it.
	GetByConfirmToken(ctx context.Context, token string) (*domain.Subscriber, error)

	// GetByUnsubscribeToken returns the subscriber holding the given
	// unsubscribe token. Returns ErrNotFound if no row holds it.
	GetByUnsubscribeToken(ctx context.Context, token string) (*domain.Subscriber, error)

	// MarkConfirmed sets is_confirmed and nulls the confirm token in one
	// atomic write.
	MarkConfirmed(ctx context.Context, id string) error

	// MarkUnsubscribed sets unsubscribed_at. The unsubscribe token is kept
	// so repeat visits stay valid no-ops.
	MarkUnsubscribed(ctx context.Context, id string, at time.Time) error

	// List returns all subscribers, newest first.
	List(ctx context.Context) ([]domain.Subscriber, error)
}

// Mailer is the slice of the email gateway the lifecycle needs.
type Mailer interface {
	SendConfirmation(ctx context.Context, email, confirmURL string) error
	SendWelcome(ctx context.Context, email, firstName string) error
}
