package newsletter

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atlasestates/newsletter-service/internal/domain"
	"github.com/atlasestates/newsletter-service/internal/pkg/logger"
)

// Service implements the subscriber lifecycle. All public methods are safe
// for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo    Repository
	mailer  Mailer
	baseURL string

	now func() time.Time
}

// NewService creates a newsletter service. baseURL is the public origin used
// to build confirm and unsubscribe links (no trailing slash).
func NewService(repo Repository, mailer Mailer, baseURL string) *Service {
	return &Service{
		repo:    repo,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Subscribe upserts a subscriber into the pending-confirmation state and
// sends the confirmation email.
//
// An existing address re-enters the funnel: both tokens are re-armed, the
// confirmed flag drops, and any previous unsubscribe is cleared, so
// re-confirmation is required each time. The caller gets the same success
// either way so responses can't be used to enumerate addresses.
//
// If the write fails nothing is sent; if the write succeeds and the email
// fails, the pending record stays so the user can simply request again.
func (s *Service) Subscribe(ctx context.Context, email, firstName, lastName string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}

	confirmToken := uuid.New().String()
	sub := &domain.Subscriber{
		ID:               uuid.New().String(),
		Email:            email,
		FirstName:        strings.TrimSpace(firstName),
		LastName:         strings.TrimSpace(lastName),
		IsConfirmed:      false,
		ConfirmToken:     &confirmToken,
		UnsubscribeToken: uuid.New().String(),
		SubscribedAt:     s.now(),
	}

	if err := s.repo.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}

	if err := s.mailer.SendConfirmation(ctx, email, s.ConfirmURL(confirmToken)); err != nil {
		// The pending record is durable; the user can re-request.
		logger.Warn("confirmation email failed", "email", email, "error", err.Error())
	}
	return nil
}

// Confirm flips a pending subscriber to confirmed and retires the token.
// The token is valid for exactly one use: replaying the confirm URL returns
// ErrNotFound. The welcome email is best-effort; the confirmed flag is the
// durable source of truth.
func (s *Service) Confirm(ctx context.Context, token string) error {
	if token == "" {
		return ErrNotFound
	}
	sub, err := s.repo.GetByConfirmToken(ctx, token)
	if err != nil {
		return err
	}

	if err := s.repo.MarkConfirmed(ctx, sub.ID); err != nil {
		return fmt.Errorf("mark confirmed: %w", err)
	}

	if err := s.mailer.SendWelcome(ctx, sub.Email, sub.FirstName); err != nil {
		logger.Warn("welcome email failed", "email", sub.Email, "error", err.Error())
	}
	logger.Info("subscriber confirmed", "email", sub.Email)
	return nil
}

// Unsubscribe opts a subscriber out. Unlike Confirm it is idempotent: the
// token stays valid and repeat calls succeed without touching the original
// opt-out timestamp.
func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	if token == "" {
		return ErrNotFound
	}
	sub, err := s.repo.GetByUnsubscribeToken(ctx, token)
	if err != nil {
		return err
	}

	if sub.UnsubscribedAt != nil {
		return nil // already opted out
	}

	if err := s.repo.MarkUnsubscribed(ctx, sub.ID, s.now()); err != nil {
		return fmt.Errorf("mark unsubscribed: %w", err)
	}
	logger.Info("subscriber unsubscribed", "email", sub.Email)
	return nil
}

// List returns all subscribers for operator visibility, newest first.
func (s *Service) List(ctx context.Context) ([]domain.Subscriber, error) {
	return s.repo.List(ctx)
}

// ConfirmURL builds the public confirmation link for a token.
func (s *Service) ConfirmURL(token string) string {
	return s.baseURL + "/newsletter/confirm?token=" + url.QueryEscape(token)
}

// NormalizeEmail case-folds and trims an address and rejects anything the
// mail parser won't accept as a bare address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
