package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/atlasestates/newsletter-service/internal/domain"
	"github.com/atlasestates/newsletter-service/internal/service/newsletter"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

var subscriberCols = []string{
	"id", "email", "first_name", "last_name", "is_confirmed",
	"confirm_token", "unsubscribe_token", "subscribed_at", "unsubscribed_at",
	"created_at", "updated_at",
}

func TestUpsertOnConflict(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	token := "confirm-1"
	sub := &domain.Subscriber{
		ID:               "id-1",
		Email:            "a@x.com",
		FirstName:        "Ada",
		ConfirmToken:     &token,
		UnsubscribeToken: "unsub-1",
		SubscribedAt:     time.Now(),
	}

	mock.ExpectExec(`INSERT INTO newsletter_subscribers`).
		WithArgs(sub.ID, sub.Email, sub.FirstName, sub.LastName,
			sub.ConfirmToken, sub.UnsubscribeToken, sub.SubscribedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewSubscriberRepo(db).Upsert(context.Background(), sub); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetByConfirmTokenNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM newsletter_subscribers WHERE confirm_token`).
		WithArgs("unknown").
		WillReturnError(sql.ErrNoRows)

	_, err := NewSubscriberRepo(db).GetByConfirmToken(context.Background(), "unknown")
	if err != newsletter.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByUnsubscribeTokenScansNullableFields(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows(subscriberCols).AddRow(
		"id-1", "a@x.com", "Ada", "Lovelace", true,
		nil, "unsub-1", now, nil, now, now,
	)
	mock.ExpectQuery(`SELECT (.+) FROM newsletter_subscribers WHERE unsubscribe_token`).
		WithArgs("unsub-1").
		WillReturnRows(rows)

	sub, err := NewSubscriberRepo(db).GetByUnsubscribeToken(context.Background(), "unsub-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sub.ConfirmToken != nil {
		t.Fatal("expected nil confirm token after confirmation")
	}
	if sub.Status() != domain.SubscriberConfirmed {
		t.Fatalf("expected confirmed, got %s", sub.Status())
	}
}

func TestMarkConfirmedMissingRow(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE newsletter_subscribers`).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := NewSubscriberRepo(db).MarkConfirmed(context.Background(), "ghost"); err != newsletter.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkUnsubscribedKeepsFirstTimestamp(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	at := time.Now()
	mock.ExpectExec(`UPDATE newsletter_subscribers\s+SET unsubscribed_at = COALESCE`).
		WithArgs("id-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewSubscriberRepo(db).MarkUnsubscribed(context.Background(), "id-1", at); err != nil {
		t.Fatalf("mark unsubscribed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestListEligibleProjection(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"email", "unsubscribe_token"}).
		AddRow("a@x.com", "tok-a").
		AddRow("b@x.com", "tok-b")
	mock.ExpectQuery(`SELECT email, unsubscribe_token\s+FROM newsletter_subscribers\s+WHERE is_confirmed = TRUE AND unsubscribed_at IS NULL`).
		WillReturnRows(rows)

	got, err := NewSubscriberRepo(db).ListEligible(context.Background())
	if err != nil {
		t.Fatalf("list eligible: %v", err)
	}
	if len(got) != 2 || got[0].UnsubscribeToken != "tok-a" || got[1].Email != "b@x.com" {
		t.Fatalf("unexpected projection: %+v", got)
	}
}
