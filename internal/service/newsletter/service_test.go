package newsletter_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/atlasestates/newsletter-service/internal/domain"
	"github.com/atlasestates/newsletter-service/internal/service/newsletter"
)

// memRepo is an in-memory subscriber repository for unit testing.
type memRepo struct {
	mu      sync.Mutex
	byEmail map[string]*domain.Subscriber
	failing bool
}

func newMemRepo() *memRepo {
	return &memRepo{byEmail: make(map[string]*domain.Subscriber)}
}

func (m *memRepo) Upsert(_ context.Context, s *domain.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return fmt.Errorf("db down")
	}
	if existing, ok := m.byEmail[s.Email]; ok {
		existing.FirstName = s.FirstName
		existing.LastName = s.LastName
		existing.IsConfirmed = false
		existing.ConfirmToken = s.ConfirmToken
		existing.UnsubscribeToken = s.UnsubscribeToken
		existing.UnsubscribedAt = nil
		return nil
	}
	cp := *s
	m.byEmail[s.Email] = &cp
	return nil
}

func (m *memRepo) GetByConfirmToken(_ context.Context, token string) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byEmail {
		if s.ConfirmToken != nil && *s.ConfirmToken == token {
			cp := *s
			return &cp, nil
		}
	}
	return nil, newsletter.ErrNotFound
}

func (m *memRepo) GetByUnsubscribeToken(_ context.Context, token string) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byEmail {
		if s.UnsubscribeToken == token {
			cp := *s
			return &cp, nil
		}
	}
	return nil, newsletter.ErrNotFound
}

func (m *memRepo) MarkConfirmed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byEmail {
		if s.ID == id {
			s.IsConfirmed = true
			s.ConfirmToken = nil
			return nil
		}
	}
	return newsletter.ErrNotFound
}

func (m *memRepo) MarkUnsubscribed(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byEmail {
		if s.ID == id {
			if s.UnsubscribedAt == nil {
				t := at
				s.UnsubscribedAt = &t
			}
			return nil
		}
	}
	return newsletter.ErrNotFound
}

func (m *memRepo) List(_ context.Context) ([]domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Subscriber
	for _, s := range m.byEmail {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubscribedAt.After(out[j].SubscribedAt) })
	return out, nil
}

// get returns the stored record for direct assertions.
func (m *memRepo) get(email string) *domain.Subscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byEmail[email]
}

// fakeMailer records outbound calls and can be told to fail.
type fakeMailer struct {
	mu            sync.Mutex
	confirmations []string // confirm URLs, in order
	welcomes      []string // recipient emails
	fail          bool
}

func (f *fakeMailer) SendConfirmation(_ context.Context, email, confirmURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("gateway rejected")
	}
	f.confirmations = append(f.confirmations, confirmURL)
	return nil
}

func (f *fakeMailer) SendWelcome(_ context.Context, email, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("gateway rejected")
	}
	f.welcomes = append(f.welcomes, email)
	return nil
}

const baseURL = "https://estates.example.com"

func TestSubscribeCreatesPending(t *testing.T) {
	repo, m := newMemRepo(), &fakeMailer{}
	svc := newsletter.NewService(repo, m, baseURL)

	if err := svc.Subscribe(context.Background(), "A@X.com ", "Ada", "Lovelace"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	sub := repo.get("a@x.com")
	if sub == nil {
		t.Fatal("expected normalized record a@x.com")
	}
	if sub.Status() != domain.SubscriberPending {
		t.Fatalf("expected pending, got %s", sub.Status())
	}
	if sub.ConfirmToken == nil || sub.UnsubscribeToken == "" {
		t.Fatal("expected both tokens set")
	}
	if len(m.confirmations) != 1 {
		t.Fatalf("expected 1 confirmation email, got %d", len(m.confirmations))
	}
}

func TestSubscribeInvalidEmail(t *testing.T) {
	svc := newsletter.NewService(newMemRepo(), &fakeMailer{}, baseURL)
	for _, bad := range []string{"", "nope", "a b@x.com", "Jane <jane@x.com>"} {
		if err := svc.Subscribe(context.Background(), bad, "", ""); err != newsletter.ErrInvalidEmail {
			t.Errorf("Subscribe(%q): expected ErrInvalidEmail, got %v", bad, err)
		}
	}
}

func TestSubscribeUpsertIsIdempotent(t *testing.T) {
	repo, m := newMemRepo(), &fakeMailer{}
	svc := newsletter.NewService(repo, m, baseURL)

	svc.Subscribe(context.Background(), "a@x.com", "", "")
	first := *repo.get("a@x.com").ConfirmToken

	svc.Subscribe(context.Background(), "a@x.com", "", "")

	subs, _ := repo.List(context.Background())
	if len(subs) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(subs))
	}
	second := *repo.get("a@x.com").ConfirmToken
	if first == second {
		t.Fatal("expected fresh confirm token on re-subscribe")
	}
	// First token was superseded and must no longer confirm.
	if err := svc.Confirm(context.Background(), first); err != newsletter.ErrNotFound {
		t.Fatalf("expected superseded token to fail, got %v", err)
	}
	if err := svc.Confirm(context.Background(), second); err != nil {
		t.Fatalf("expected fresh token to confirm: %v", err)
	}
}

func TestConfirmIsSingleUse(t *testing.T) {
	repo, m := newMemRepo(), &fakeMailer{}
	svc := newsletter.NewService(repo, m, baseURL)

	svc.Subscribe(context.Background(), "a@x.com", "Ada", "")
	token := *repo.get("a@x.com").ConfirmToken

	if err := svc.Confirm(context.Background(), token); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	sub := repo.get("a@x.com")
	if !sub.IsConfirmed || sub.ConfirmToken != nil {
		t.Fatal("expected confirmed with nulled token")
	}
	if len(m.welcomes) != 1 || m.welcomes[0] != "a@x.com" {
		t.Fatalf("expected one welcome email to a@x.com, got %v", m.welcomes)
	}

	// Replay must fail deterministically, not silently re-succeed.
	if err := svc.Confirm(context.Background(), token); err != newsletter.ErrNotFound {
		t.Fatalf("expected ErrNotFound on replay, got %v", err)
	}
}

func TestConfirmUnknownToken(t *testing.T) {
	svc := newsletter.NewService(newMemRepo(), &fakeMailer{}, baseURL)
	if err := svc.Confirm(context.Background(), "never-issued"); err != newsletter.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.Confirm(context.Background(), ""); err != newsletter.ErrNotFound {
		t.Fatalf("expected ErrNotFound for empty token, got %v", err)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	repo, m := newMemRepo(), &fakeMailer{}
	svc := newsletter.NewService(repo, m, baseURL)

	svc.Subscribe(context.Background(), "a@x.com", "", "")
	sub := repo.get("a@x.com")
	svc.Confirm(context.Background(), *sub.ConfirmToken)

	if err := svc.Unsubscribe(context.Background(), sub.UnsubscribeToken); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	firstAt := repo.get("a@x.com").UnsubscribedAt
	if firstAt == nil {
		t.Fatal("expected unsubscribed_at set")
	}

	// Second visit is a harmless no-op that still reports success.
	if err := svc.Unsubscribe(context.Background(), sub.UnsubscribeToken); err != nil {
		t.Fatalf("repeat unsubscribe: %v", err)
	}
	if got := repo.get("a@x.com").UnsubscribedAt; !got.Equal(*firstAt) {
		t.Fatalf("expected unchanged timestamp, got %v then %v", firstAt, got)
	}
}

func TestUnsubscribeUnknownToken(t *testing.T) {
	svc := newsletter.NewService(newMemRepo(), &fakeMailer{}, baseURL)
	if err := svc.Unsubscribe(context.Background(), "bogus"); err != newsletter.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResubscribeAfterConfirmDemotesToPending(t *testing.T) {
	repo, m := newMemRepo(), &fakeMailer{}
	svc := newsletter.NewService(repo, m, baseURL)

	svc.Subscribe(context.Background(), "a@x.com", "", "")
	t1 := *repo.get("a@x.com").ConfirmToken
	if err := svc.Confirm(context.Background(), t1); err != nil {
		t.Fatalf("confirm t1: %v", err)
	}

	svc.Subscribe(context.Background(), "a@x.com", "", "")
	sub := repo.get("a@x.com")
	if sub.IsConfirmed {
		t.Fatal("expected confirmed flag reset on re-subscribe")
	}
	t2 := *sub.ConfirmToken
	if err := svc.Confirm(context.Background(), t1); err != newsletter.ErrNotFound {
		t.Fatalf("expected old token invalid, got %v", err)
	}
	if err := svc.Confirm(context.Background(), t2); err != nil {
		t.Fatalf("confirm t2: %v", err)
	}
}

func TestResubscribeClearsUnsubscribe(t *testing.T) {
	repo, m := newMemRepo(), &fakeMailer{}
	svc := newsletter.NewService(repo, m, baseURL)

	svc.Subscribe(context.Background(), "a@x.com", "", "")
	sub := repo.get("a@x.com")
	svc.Confirm(context.Background(), *sub.ConfirmToken)
	svc.Unsubscribe(context.Background(), sub.UnsubscribeToken)

	svc.Subscribe(context.Background(), "a@x.com", "", "")
	if got := repo.get("a@x.com"); got.UnsubscribedAt != nil || got.Status() != domain.SubscriberPending {
		t.Fatalf("expected pending with cleared unsubscribe, got %s", got.Status())
	}
}

func TestSubscribeSucceedsWhenEmailFails(t *testing.T) {
	repo := newMemRepo()
	svc := newsletter.NewService(repo, &fakeMailer{fail: true}, baseURL)

	if err := svc.Subscribe(context.Background(), "a@x.com", "", ""); err != nil {
		t.Fatalf("expected success despite gateway failure, got %v", err)
	}
	if repo.get("a@x.com") == nil {
		t.Fatal("expected pending record to survive gateway failure")
	}
}

func TestSubscribeFailsAtomicallyOnPersistence(t *testing.T) {
	repo, m := newMemRepo(), &fakeMailer{}
	repo.failing = true
	svc := newsletter.NewService(repo, m, baseURL)

	if err := svc.Subscribe(context.Background(), "a@x.com", "", ""); err == nil {
		t.Fatal("expected error on persistence failure")
	}
	if len(m.confirmations) != 0 {
		t.Fatal("no email may be sent when the write fails")
	}
}

func TestConfirmWelcomeFailureDoesNotRollBack(t *testing.T) {
	repo := newMemRepo()
	m := &fakeMailer{}
	svc := newsletter.NewService(repo, m, baseURL)

	svc.Subscribe(context.Background(), "a@x.com", "", "")
	token := *repo.get("a@x.com").ConfirmToken

	m.fail = true
	if err := svc.Confirm(context.Background(), token); err != nil {
		t.Fatalf("confirm should succeed despite welcome failure: %v", err)
	}
	if !repo.get("a@x.com").IsConfirmed {
		t.Fatal("confirmed flag is the durable source of truth")
	}
}
