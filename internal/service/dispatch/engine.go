package dispatch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atlasestates/newsletter-service/internal/domain"
	"github.com/atlasestates/newsletter-service/internal/pkg/distlock"
	"github.com/atlasestates/newsletter-service/internal/pkg/logger"
)

const (
	// DefaultBatchSize keeps a batch under common ESP per-minute send caps.
	DefaultBatchSize = 90
	// DefaultBatchPause is the mandatory wait between consecutive batches.
	DefaultBatchPause = 60 * time.Second
)

// RecipientSource yields the send-eligible recipients for a campaign.
type RecipientSource interface {
	// ListEligible returns every confirmed, not-unsubscribed subscriber as a
	// minimal projection. Snapshot semantics: the engine queries once per
	// campaign.
	ListEligible(ctx context.Context) ([]domain.Recipient, error)
}

// Mailer is the slice of the email gateway the engine needs.
type Mailer interface {
	SendNewsletter(ctx context.Context, email, subject, html, unsubscribeURL string, attachments []domain.Attachment) error
}

// Config holds the dispatch tunables. Zero values fall back to defaults.
type Config struct {
	// BaseURL is the public origin for per-recipient unsubscribe links.
	BaseURL string
	// BatchSize is the number of recipients dispatched concurrently per batch.
	BatchSize int
	// BatchPause is the delay between consecutive batches.
	BatchPause time.Duration
}

// Engine drives one campaign to every eligible recipient. A single Engine is
// safe for concurrent use, but overlapping campaign sends should be guarded
// with a lock (see SetLock).
type Engine struct {
	source  RecipientSource
	mailer  Mailer
	cfg     Config
	sleeper Sleeper
	lock    distlock.DistLock
}

// NewEngine creates a dispatch engine. Unset config fields get defaults.
func NewEngine(source RecipientSource, mailer Mailer, cfg Config) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = DefaultBatchPause
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Engine{
		source:  source,
		mailer:  mailer,
		cfg:     cfg,
		sleeper: stdSleeper{},
	}
}

// SetLock installs a distributed lock held for the duration of each Send so
// two operators cannot run overlapping campaigns.
func (e *Engine) SetLock(l distlock.DistLock) { e.lock = l }

// SetSleeper replaces the inter-batch pause implementation (tests).
func (e *Engine) SetSleeper(s Sleeper) { e.sleeper = s }

// Send delivers the campaign to every subscriber eligible at snapshot time.
//
// Recipients inside a batch are dispatched concurrently; batches run strictly
// in sequence with a pause in between. Each recipient gets exactly one
// delivery attempt, and a failed attempt is recorded in the report without
// affecting the rest of the batch. Cancellation is honored between batches;
// in-flight sends of the current batch are allowed to settle first.
//
// A failure reading the recipient list aborts before any send. An empty
// eligible list is not an error: the report simply carries zero counts.
func (e *Engine) Send(ctx context.Context, c domain.Campaign) (*domain.SendReport, error) {
	if strings.TrimSpace(c.Subject) == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if strings.TrimSpace(c.HTMLBody) == "" {
		return nil, fmt.Errorf("html body is required")
	}

	if e.lock != nil {
		ok, err := e.lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire dispatch lock: %w", err)
		}
		if !ok {
			return nil, ErrCampaignInProgress
		}
		defer func() {
			// The campaign context may already be cancelled here; the lock
			// still has to go back, or the next send is blocked until the
			// TTL expires (the advisory fallback has no TTL at all).
			if err := e.lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("dispatch lock release failed", "error", err.Error())
			}
		}()
	}

	recipients, err := e.source.ListEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("list eligible recipients: %w", err)
	}

	report := &domain.SendReport{Eligible: len(recipients)}
	if len(recipients) == 0 {
		logger.Info("campaign send: no eligible recipients", "subject", c.Subject)
		return report, nil
	}

	var succeeded, failed int64
	for start := 0; start < len(recipients); start += e.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			report.Succeeded = int(atomic.LoadInt64(&succeeded))
			report.Failed = int(atomic.LoadInt64(&failed))
			return report, err
		}
		end := start + e.cfg.BatchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		batch := recipients[start:end]

		var wg sync.WaitGroup
		for _, r := range batch {
			wg.Add(1)
			go func(r domain.Recipient) {
				defer wg.Done()
				unsubURL := e.unsubscribeURL(r.UnsubscribeToken)
				if err := e.mailer.SendNewsletter(ctx, r.Email, c.Subject, c.HTMLBody, unsubURL, c.Attachments); err != nil {
					atomic.AddInt64(&failed, 1)
					logger.Warn("newsletter send failed", "email", r.Email, "error", err.Error())
					return
				}
				atomic.AddInt64(&succeeded, 1)
			}(r)
		}
		wg.Wait()
		report.Batches++

		if end < len(recipients) {
			if err := e.sleeper.Sleep(ctx, e.cfg.BatchPause); err != nil {
				report.Succeeded = int(atomic.LoadInt64(&succeeded))
				report.Failed = int(atomic.LoadInt64(&failed))
				logger.Warn("campaign send cancelled between batches",
					"subject", c.Subject, "batches_done", fmt.Sprint(report.Batches))
				return report, err
			}
		}
	}

	report.Succeeded = int(atomic.LoadInt64(&succeeded))
	report.Failed = int(atomic.LoadInt64(&failed))
	logger.Info("campaign send complete",
		"subject", c.Subject,
		"eligible", fmt.Sprint(report.Eligible),
		"succeeded", fmt.Sprint(report.Succeeded),
		"failed", fmt.Sprint(report.Failed),
		"batches", fmt.Sprint(report.Batches))
	return report, nil
}

func (e *Engine) unsubscribeURL(token string) string {
	return e.cfg.BaseURL + "/newsletter/unsubscribe?token=" + url.QueryEscape(token)
}
