// Package postgres implements the service repository interfaces against
// PostgreSQL via database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atlasestates/newsletter-service/internal/domain"
	"github.com/atlasestates/newsletter-service/internal/service/newsletter"
)

// SubscriberRepo implements newsletter.Repository and the dispatch engine's
// recipient source against PostgreSQL.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

const subscriberColumns = `id, email, first_name, last_name, is_confirmed,
	confirm_token, unsubscribe_token, subscribed_at, unsubscribed_at,
	created_at, updated_at`

func (r *SubscriberRepo) Upsert(ctx context.Context, s *domain.Subscriber) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO newsletter_subscribers
			(id, email, first_name, last_name, is_confirmed,
			 confirm_token, unsubscribe_token, subscribed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET
			first_name        = EXCLUDED.first_name,
			last_name         = EXCLUDED.last_name,
			is_confirmed      = FALSE,
			confirm_token     = EXCLUDED.confirm_token,
			unsubscribe_token = EXCLUDED.unsubscribe_token,
			subscribed_at     = EXCLUDED.subscribed_at,
			unsubscribed_at   = NULL,
			updated_at        = NOW()
	`, s.ID, s.Email, s.FirstName, s.LastName, s.ConfirmToken, s.UnsubscribeToken, s.SubscribedAt)
	if err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}
	return nil
}

func (r *SubscriberRepo) GetByConfirmToken(ctx context.Context, token string) (*domain.Subscriber, error) {
	return r.getBy(ctx, "confirm_token", token)
}

func (r *SubscriberRepo) GetByUnsubscribeToken(ctx context.Context, token string) (*domain.Subscriber, error) {
	return r.getBy(ctx, "unsubscribe_token", token)
}

func (r *SubscriberRepo) getBy(ctx context.Context, column, token string) (*domain.Subscriber, error) {
	s := &domain.Subscriber{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+subscriberColumns+`
		FROM newsletter_subscribers
		WHERE `+column+` = $1
	`, token).Scan(
		&s.ID, &s.Email, &s.FirstName, &s.LastName, &s.IsConfirmed,
		&s.ConfirmToken, &s.UnsubscribeToken, &s.SubscribedAt, &s.UnsubscribedAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, newsletter.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber by %s: %w", column, err)
	}
	return s, nil
}

func (r *SubscriberRepo) MarkConfirmed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE newsletter_subscribers
		SET is_confirmed = TRUE, confirm_token = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark confirmed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return newsletter.ErrNotFound
	}
	return nil
}

func (r *SubscriberRepo) MarkUnsubscribed(ctx context.Context, id string, at time.Time) error {
	// COALESCE keeps the first opt-out timestamp on repeat calls.
	res, err := r.db.ExecContext(ctx, `
		UPDATE newsletter_subscribers
		SET unsubscribed_at = COALESCE(unsubscribed_at, $2), updated_at = NOW()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark unsubscribed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return newsletter.ErrNotFound
	}
	return nil
}

func (r *SubscriberRepo) List(ctx context.Context) ([]domain.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+subscriberColumns+`
		FROM newsletter_subscribers
		ORDER BY subscribed_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		var s domain.Subscriber
		if err := rows.Scan(
			&s.ID, &s.Email, &s.FirstName, &s.LastName, &s.IsConfirmed,
			&s.ConfirmToken, &s.UnsubscribeToken, &s.SubscribedAt, &s.UnsubscribedAt,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListEligible returns the minimal projection of every subscriber that may
// receive campaign email: confirmed and not unsubscribed.
func (r *SubscriberRepo) ListEligible(ctx context.Context) ([]domain.Recipient, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT email, unsubscribe_token
		FROM newsletter_subscribers
		WHERE is_confirmed = TRUE AND unsubscribed_at IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("list eligible recipients: %w", err)
	}
	defer rows.Close()

	var out []domain.Recipient
	for rows.Next() {
		var rec domain.Recipient
		if err := rows.Scan(&rec.Email, &rec.UnsubscribeToken); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
