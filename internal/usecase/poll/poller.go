// Package poll implements the donation polling cycle: fetch the most recent
// donations, pick the ones newer than the watermark, announce them oldest
// first, and move the watermark after each successful announcement.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"donation-relay/internal/domain/entity"
	"donation-relay/internal/observability/logging"
	"donation-relay/internal/observability/metrics"
	"donation-relay/internal/observability/tracing"
	"donation-relay/internal/repository"
)

const (
	// DefaultPageSize is the largest page the donation API returns.
	DefaultPageSize = 100

	// seedPageSize is enough to learn the newest donation id.
	seedPageSize = 2

	// maxFetchAttempts is the first fetch plus one retry after a refresh.
	maxFetchAttempts = 2
)

// DonationSource lists a campaign's donations, most recent first.
type DonationSource interface {
	ListRecentDonations(ctx context.Context, campaignID string, limit int) ([]entity.Donation, error)
}

// CredentialRefresher replaces the API credential after a failed request.
type CredentialRefresher interface {
	Refresh(ctx context.Context) (string, error)
}

// Notifier delivers one announcement to every destination not yet in
// delivered, adding each destination that accepts it.
type Notifier interface {
	DeliverRemaining(ctx context.Context, text string, delivered map[string]bool) error
}

// MessageFormatter renders a donation as announcement text.
type MessageFormatter interface {
	Format(d *entity.Donation) string
}

// State is everything the poll loop carries between cycles.
type State struct {
	CampaignID string
	Watermark  *Watermark

	// Pending is set while the donation after the watermark has reached only
	// some destinations.
	Pending *PendingDelivery
}

// PendingDelivery tracks a donation across the cycles it takes to reach
// every destination.
type PendingDelivery struct {
	DonationID string
	Delivered  map[string]bool
	Attempts   int
}

// CycleStats summarises one poll cycle.
type CycleStats struct {
	CycleID        string
	Fetched        int
	Inspected      int
	BelowMinimum   int
	Pending        int
	Announced      int
	Abandoned      int
	WatermarkFound bool
	Refreshed      bool
}

// Poller runs poll cycles for one campaign. Cycles must not overlap; the
// scheduler guarantees that. Snapshot may be called concurrently.
type Poller struct {
	source      DonationSource
	credentials CredentialRefresher
	notifier    Notifier
	formatter   MessageFormatter
	checkpoints repository.WatermarkRepository
	resume      bool
	pageSize    int
	maxAttempts int
	tracer      trace.Tracer
	logger      *slog.Logger

	mu    sync.Mutex
	state State
}

// Option customises a Poller.
type Option func(*Poller)

// WithPageSize sets how many donations each cycle fetches.
func WithPageSize(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// WithCheckpoints saves the watermark to store after every advance. When
// resume is true, Seed starts from the stored watermark if there is one.
func WithCheckpoints(store repository.WatermarkRepository, resume bool) Option {
	return func(p *Poller) {
		p.checkpoints = store
		p.resume = resume
	}
}

// WithMaxDeliveryAttempts gives up on a donation after n cycles in which some
// destination kept failing; the watermark then moves past it. Zero, the
// default, retries until every destination has accepted it.
func WithMaxDeliveryAttempts(n int) Option {
	return func(p *Poller) {
		if n >= 0 {
			p.maxAttempts = n
		}
	}
}

// WithTracer overrides the tracer used for cycle spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Poller) { p.tracer = tracer }
}

// WithLogger overrides the poller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) { p.logger = logger }
}

// NewPoller creates a Poller for campaignID. Donations below minimum are never
// announced.
func NewPoller(
	campaignID string,
	minimum decimal.Decimal,
	source DonationSource,
	credentials CredentialRefresher,
	notifier Notifier,
	formatter MessageFormatter,
	opts ...Option,
) *Poller {
	p := &Poller{
		source:      source,
		credentials: credentials,
		notifier:    notifier,
		formatter:   formatter,
		pageSize:    DefaultPageSize,
		tracer:      tracing.GetTracer(),
		logger:      slog.Default(),
		state: State{
			CampaignID: campaignID,
			Watermark:  NewWatermark(minimum),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot returns the campaign id and the current watermark.
func (p *Poller) Snapshot() (campaignID, lastID string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	lastID, ok = p.state.Watermark.Last()
	return p.state.CampaignID, lastID, ok
}

// Seed sets the watermark before the first cycle so donations made before
// startup are not announced. It uses the stored checkpoint when resuming is
// enabled and one exists, and the newest donation otherwise. An empty campaign
// leaves the watermark unset.
func (p *Poller) Seed(ctx context.Context) error {
	campaignID := p.state.CampaignID

	if p.resume && p.checkpoints != nil {
		checkpoint, err := p.checkpoints.Load(ctx, campaignID)
		switch {
		case err == nil:
			p.advance(checkpoint.LastDonationID)
			p.logger.Info("Watermark resumed from checkpoint",
				slog.String("campaign_id", campaignID),
				slog.String("donation_id", checkpoint.LastDonationID),
				slog.Time("saved_at", checkpoint.UpdatedAt))
			return nil
		case errors.Is(err, entity.ErrNotFound):
			p.logger.Info("No checkpoint stored, seeding from the newest donation",
				slog.String("campaign_id", campaignID))
		default:
			p.logger.Warn("Checkpoint unavailable, seeding from the newest donation",
				slog.String("campaign_id", campaignID),
				slog.String("error", logging.SanitizeError(err)))
		}
	}

	donations, err := p.source.ListRecentDonations(ctx, campaignID, seedPageSize)
	if err != nil {
		return fmt.Errorf("seed watermark: %w", err)
	}

	if len(donations) == 0 {
		p.logger.Info("Campaign has no donations yet, watermark left unset",
			slog.String("campaign_id", campaignID))
		return nil
	}

	newest := donations[0].ID
	p.advance(newest)
	p.saveCheckpoint(ctx, p.logger, newest)

	p.logger.Info("Watermark seeded",
		slog.String("campaign_id", campaignID),
		slog.String("donation_id", newest))
	return nil
}

// RunCycle performs one poll. Every donation newer than the watermark and at
// or above the minimum is announced oldest first, and the watermark advances
// after each one has reached every destination. A failed delivery stops the
// cycle; next cycle the donation is sent only to the destinations that have
// not accepted it, then the rest of the batch follows.
func (p *Poller) RunCycle(ctx context.Context) (stats *CycleStats, err error) {
	stats = &CycleStats{CycleID: uuid.New().String()}
	logger := logging.WithCycleID(p.logger, stats.CycleID)
	ctx = logging.WithLogger(ctx, logger)

	ctx, span := p.tracer.Start(ctx, "poll.cycle",
		trace.WithAttributes(
			attribute.String("campaign.id", p.state.CampaignID),
			attribute.String("poll.cycle_id", stats.CycleID)))
	defer func() {
		span.SetAttributes(
			attribute.Int("poll.fetched", stats.Fetched),
			attribute.Int("poll.announced", stats.Announced),
			attribute.Bool("poll.refreshed", stats.Refreshed))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, logging.SanitizeError(err))
		}
		span.End()
	}()

	page, refreshed, err := p.fetch(ctx, logger)
	stats.Refreshed = refreshed
	if err != nil {
		return stats, fmt.Errorf("fetch donations: %w", err)
	}
	stats.Fetched = len(page)

	if err := checkOrdered(page); err != nil {
		unorderedPagesTotal.Inc()
		return stats, err
	}

	batch := p.selectNew(page, stats)
	stats.Pending = len(batch)
	metrics.RecordDonationsBelowMinimum(stats.BelowMinimum)

	if _, set := p.state.Watermark.Last(); set && !stats.WatermarkFound {
		watermarkNotFoundTotal.Inc()
		logger.Warn("Watermark donation not in the fetched page, older donations may have been missed",
			slog.Int("page_size", len(page)))
	}

	for i := range batch {
		d := &batch[i]
		pending := p.pendingFor(d.ID)
		pending.Attempts++

		if err := p.notifier.DeliverRemaining(ctx, p.formatter.Format(d), pending.Delivered); err != nil {
			deliveryFailuresTotal.Inc()
			delivered := slices.Sorted(maps.Keys(pending.Delivered))
			if p.maxAttempts == 0 || pending.Attempts < p.maxAttempts {
				return stats, &DeliveryError{DonationID: d.ID, Delivered: delivered, Attempts: pending.Attempts, Err: err}
			}

			deliveryAbandonedTotal.Inc()
			stats.Abandoned++
			logger.Error("Donation abandoned after repeated delivery failures",
				slog.String("donation_id", d.ID),
				slog.Int("attempts", pending.Attempts),
				slog.Any("delivered", delivered),
				slog.String("error", logging.SanitizeError(err)))
		} else {
			stats.Announced++
			metrics.RecordDonationAnnounced(d.Amount.Value, d.Amount.Currency)
			logger.Info("Donation announced",
				slog.String("donation_id", d.ID),
				slog.String("amount", d.Amount.Value.StringFixed(2)),
				slog.String("currency", d.Amount.Currency),
				slog.Int("attempts", pending.Attempts))
		}

		p.state.Pending = nil
		p.advance(d.ID)
		p.saveCheckpoint(ctx, logger, d.ID)
	}

	return stats, nil
}

// fetch lists donations. A failed fetch gets exactly one more attempt, made
// after a credential refresh.
func (p *Poller) fetch(ctx context.Context, logger *slog.Logger) ([]entity.Donation, bool, error) {
	refreshed := false
	var lastErr error

	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		if attempt > 1 {
			logger.Warn("Donation fetch failed, refreshing credential and retrying",
				slog.String("error", logging.SanitizeError(lastErr)))

			if _, err := p.credentials.Refresh(ctx); err != nil {
				recordFetchRetry(false)
				return nil, refreshed, errors.Join(lastErr, fmt.Errorf("refresh credential: %w", err))
			}
			refreshed = true
		}

		page, err := p.source.ListRecentDonations(ctx, p.state.CampaignID, p.pageSize)
		if err == nil {
			if refreshed {
				recordFetchRetry(true)
			}
			return page, refreshed, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	if refreshed {
		recordFetchRetry(false)
	}
	return nil, refreshed, lastErr
}

// selectNew scans page most recent first and stops at the watermark. The
// result is oldest first.
func (p *Poller) selectNew(page []entity.Donation, stats *CycleStats) []entity.Donation {
	watermark := p.state.Watermark

	var batch []entity.Donation
	for i := range page {
		d := &page[i]
		stats.Inspected++

		if watermark.Reached(d) {
			stats.WatermarkFound = true
			break
		}
		if watermark.IsNew(d) {
			batch = append(batch, *d)
		} else {
			stats.BelowMinimum++
		}
	}

	slices.Reverse(batch)
	return batch
}

// checkOrdered verifies CompletedAt never increases down the page. Donations
// without a timestamp are skipped.
func checkOrdered(page []entity.Donation) error {
	var prev *entity.Donation
	for i := range page {
		d := &page[i]
		if d.CompletedAt.IsZero() {
			continue
		}
		if prev != nil && d.CompletedAt.After(prev.CompletedAt) {
			return fmt.Errorf("%w: %s completed after %s", ErrUnorderedPage, d.ID, prev.ID)
		}
		prev = d
	}
	return nil
}

// pendingFor returns the delivery record for id, starting a fresh one when
// the pending donation is a different one.
func (p *Poller) pendingFor(id string) *PendingDelivery {
	if pending := p.state.Pending; pending != nil && pending.DonationID == id {
		return pending
	}
	p.state.Pending = &PendingDelivery{DonationID: id, Delivered: make(map[string]bool)}
	return p.state.Pending
}

func (p *Poller) advance(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Watermark.Advance(id)
}

// saveCheckpoint stores the watermark. Failures are logged and counted only;
// the in-memory watermark is authoritative.
func (p *Poller) saveCheckpoint(ctx context.Context, logger *slog.Logger, id string) {
	if p.checkpoints == nil {
		return
	}
	if err := p.checkpoints.Save(ctx, p.state.CampaignID, id); err != nil {
		checkpointSaveFailuresTotal.Inc()
		logger.Warn("Failed to save watermark checkpoint",
			slog.String("donation_id", id),
			slog.String("error", logging.SanitizeError(err)))
	}
}
