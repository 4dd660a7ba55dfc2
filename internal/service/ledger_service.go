package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/model"
	"github.com/Sara-Samara/HealthAidProj-sub001/internal/repository"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/Sara-Samara/HealthAidProj-sub001/internal/service")

// DefaultMaxAttempts is the number of times a ledger transaction is run before ErrConflict.
const DefaultMaxAttempts = 3

// SponsorshipDirectory is the read side of the campaign directory the ledger depends on.
type SponsorshipDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Sponsorship, error)
}

// DonorDirectory is the read side of the donor directory the ledger depends on.
type DonorDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// TotalsCache caches campaign totals for readers. The ledger invalidates an entry
// after every committed write to that sponsorship.
type TotalsCache interface {
	Fetch(ctx context.Context, sponsorshipID string, load func(ctx context.Context) (*model.CampaignTotals, error)) (*model.CampaignTotals, error)
	Invalidate(ctx context.Context, sponsorshipID string) error
}

// FundingLedger is the only path that changes donation status and the
// amount_raised, donor_count and total_donated aggregates.
type FundingLedger interface {
	// SubmitDonation records a pending donation. Aggregates are untouched.
	SubmitDonation(ctx context.Context, in model.DonationInput) (*model.Donation, error)
	// TransitionDonationStatus moves a donation through the state machine and applies
	// or reverses its effect exactly once. Re-requesting the current status is a no-op.
	TransitionDonationStatus(ctx context.Context, donationID string, next model.DonationStatus, transactionRef string) (*model.Donation, error)
	// FundDirectly submits a donation and confirms it through TransitionDonationStatus.
	// When confirmation fails the donation is marked failed and the error names it.
	FundDirectly(ctx context.Context, in model.DonationInput, transactionRef string) (*model.Donation, error)
	GetCampaignTotals(ctx context.Context, sponsorshipID string) (*model.CampaignTotals, error)
	// CloseCampaign completes a fully funded campaign and cancels any other. Closed campaigns are returned as-is.
	CloseCampaign(ctx context.Context, sponsorshipID string) (*model.Sponsorship, error)
	// ChangeCampaignStatus applies an explicit status change (pause, resume, cancel, complete).
	ChangeCampaignStatus(ctx context.Context, sponsorshipID string, status model.SponsorshipStatus) (*model.Sponsorship, error)
	GetDonation(ctx context.Context, donationID string) (*model.Donation, error)
	ListDonationsBySponsorship(ctx context.Context, sponsorshipID string, limit, offset int) ([]*model.Donation, error)
	ListDonationsByDonor(ctx context.Context, donorID string, limit, offset int) ([]*model.Donation, error)
}

// LedgerDeps holds the collaborators of the funding ledger. Cache may be nil.
type LedgerDeps struct {
	Store        repository.LedgerStore
	Donations    repository.DonationRepository
	Sponsorships SponsorshipDirectory
	Donors       DonorDirectory
	Cache        TotalsCache
	MaxAttempts  int
	// RetryInitialInterval is the first backoff wait after a conflict. Defaults to 25ms.
	RetryInitialInterval time.Duration
	Now                  func() time.Time
	NewID                func() string
}

type fundingLedger struct {
	store        repository.LedgerStore
	donations    repository.DonationRepository
	sponsorships SponsorshipDirectory
	donors       DonorDirectory
	cache        TotalsCache
	maxAttempts  int
	retryWait    time.Duration
	now          func() time.Time
	newID        func() string
}

// NewFundingLedger creates a FundingLedger.
func NewFundingLedger(deps LedgerDeps) FundingLedger {
	l := &fundingLedger{
		store:        deps.Store,
		donations:    deps.Donations,
		sponsorships: deps.Sponsorships,
		donors:       deps.Donors,
		cache:        deps.Cache,
		maxAttempts:  deps.MaxAttempts,
		retryWait:    deps.RetryInitialInterval,
		now:          deps.Now,
		newID:        deps.NewID,
	}
	if l.maxAttempts <= 0 {
		l.maxAttempts = DefaultMaxAttempts
	}
	if l.retryWait <= 0 {
		l.retryWait = 25 * time.Millisecond
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.newID == nil {
		l.newID = func() string { return uuid.NewString() }
	}
	return l
}

// notFound converts repository.ErrNotFound into the service error, naming the entity.
func notFound(entity string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", entity, ErrNotFound)
	}
	return err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (l *fundingLedger) SubmitDonation(ctx context.Context, in model.DonationInput) (d *model.Donation, err error) {
	ctx, span := tracer.Start(ctx, "ledger.SubmitDonation", trace.WithAttributes(
		attribute.String("sponsorship.id", in.SponsorshipID),
		attribute.String("donation.amount", in.Amount.String()),
	))
	defer func() { endSpan(span, err) }()

	if err := validateAmount(in.Amount); err != nil {
		return nil, err
	}
	if !validID(in.SponsorshipID) {
		return nil, fmt.Errorf("sponsorship: %w", ErrNotFound)
	}
	sp, err := l.sponsorships.GetByID(ctx, in.SponsorshipID)
	if err != nil {
		return nil, notFound("sponsorship", err)
	}
	if sp.Status.IsClosed() {
		return nil, fmt.Errorf("%w: sponsorship is %s", ErrCampaignClosed, sp.Status)
	}
	if in.DonorID != "" {
		if !validID(in.DonorID) {
			return nil, fmt.Errorf("donor: %w", ErrNotFound)
		}
		ok, err := l.donors.Exists(ctx, in.DonorID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("donor: %w", ErrNotFound)
		}
	}

	d = &model.Donation{
		ID:            l.newID(),
		SponsorshipID: in.SponsorshipID,
		DonorID:       in.DonorID,
		Amount:        in.Amount,
		PaymentMethod: strings.TrimSpace(in.PaymentMethod),
		Message:       strings.TrimSpace(in.Message),
		Status:        model.DonationPending,
	}
	if err := l.donations.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create donation: %w", err)
	}
	slog.InfoContext(ctx, "donation submitted",
		"donation_id", d.ID,
		"sponsorship_id", d.SponsorshipID,
		"donor_id", d.DonorID,
		"amount", d.Amount.String(),
	)
	return d, nil
}

// effectOf returns the signed change a transition applies to the aggregates.
func effectOf(next model.DonationStatus, amount decimal.Decimal) decimal.Decimal {
	switch next {
	case model.DonationCompleted:
		return amount
	case model.DonationRefunded:
		return amount.Neg()
	}
	return decimal.Zero
}

func (l *fundingLedger) TransitionDonationStatus(ctx context.Context, donationID string, next model.DonationStatus, transactionRef string) (d *model.Donation, err error) {
	ctx, span := tracer.Start(ctx, "ledger.TransitionDonationStatus", trace.WithAttributes(
		attribute.String("donation.id", donationID),
		attribute.String("donation.next_status", string(next)),
	))
	defer func() { endSpan(span, err) }()

	if !next.Valid() || next == model.DonationPending {
		return nil, fmt.Errorf("%w: cannot move to %q", ErrInvalidTransition, next)
	}
	if !validID(donationID) {
		return nil, fmt.Errorf("donation: %w", ErrNotFound)
	}
	transactionRef = strings.TrimSpace(transactionRef)

	var (
		result  *model.Donation
		applied decimal.Decimal
		sp      *model.Sponsorship
	)
	err = l.withRetry(ctx, "transition", func() error {
		result, applied, sp = nil, decimal.Zero, nil
		return l.store.InTx(ctx, func(tx repository.LedgerTx) error {
			// sponsorship_id and donor_id never change, so reading them before the lock is safe.
			pre, err := tx.GetDonation(ctx, donationID)
			if err != nil {
				return notFound("donation", err)
			}
			sp, err = tx.LockSponsorship(ctx, pre.SponsorshipID)
			if err != nil {
				return notFound("sponsorship", err)
			}
			// Every status writer holds the sponsorship lock, so the status read here is stable.
			cur, err := tx.GetDonation(ctx, donationID)
			if err != nil {
				return notFound("donation", err)
			}
			if cur.Status == next {
				result = cur
				return nil
			}
			if !cur.Status.CanTransition(next) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, next)
			}

			delta := effectOf(next, cur.Amount)
			if !delta.IsZero() && !cur.IsAnonymous() {
				if _, err := tx.LockDonor(ctx, cur.DonorID); err != nil {
					return notFound("donor", err)
				}
			}

			var processedAt *time.Time
			if next != model.DonationRefunded {
				now := l.now()
				processedAt = &now
			}
			updated, ok, err := tx.CompareAndSetDonationStatus(ctx, donationID, cur.Status, next, transactionRef, processedAt)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: donation %s changed status concurrently", repository.ErrRetryable, donationID)
			}

			if !delta.IsZero() {
				if sp, err = tx.ApplySponsorshipDelta(ctx, updated.SponsorshipID, delta); err != nil {
					return err
				}
				if !updated.IsAnonymous() {
					if _, err := tx.ApplyDonorDelta(ctx, updated.DonorID, delta); err != nil {
						return err
					}
				}
			}
			result, applied = updated, delta
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if !applied.IsZero() {
		l.invalidate(ctx, result.SponsorshipID)
		slog.InfoContext(ctx, "donation effect applied",
			"donation_id", result.ID,
			"sponsorship_id", result.SponsorshipID,
			"donor_id", result.DonorID,
			"status", result.Status,
			"delta", applied.String(),
			"amount_raised", sp.AmountRaised.String(),
			"donor_count", sp.DonorCount,
		)
	}
	return result, nil
}

func (l *fundingLedger) FundDirectly(ctx context.Context, in model.DonationInput, transactionRef string) (*model.Donation, error) {
	d, err := l.SubmitDonation(ctx, in)
	if err != nil {
		return nil, err
	}
	completed, err := l.TransitionDonationStatus(ctx, d.ID, model.DonationCompleted, transactionRef)
	if err == nil {
		return completed, nil
	}

	// 確定できなかった寄付を pending のまま残さない。リクエストがキャンセルされていても片付ける
	cleanupCtx := context.WithoutCancel(ctx)
	if _, ferr := l.TransitionDonationStatus(cleanupCtx, d.ID, model.DonationFailed, transactionRef); ferr != nil {
		slog.ErrorContext(ctx, "direct fund: could not mark donation failed",
			"donation_id", d.ID, "sponsorship_id", d.SponsorshipID, "error", ferr)
		return nil, fmt.Errorf("direct fund: donation %s not confirmed: %w", d.ID, err)
	}
	slog.WarnContext(ctx, "direct fund: confirmation failed, donation marked failed",
		"donation_id", d.ID, "sponsorship_id", d.SponsorshipID, "error", err)
	return nil, fmt.Errorf("direct fund: donation %s failed: %w", d.ID, err)
}

func (l *fundingLedger) GetCampaignTotals(ctx context.Context, sponsorshipID string) (*model.CampaignTotals, error) {
	if !validID(sponsorshipID) {
		return nil, fmt.Errorf("sponsorship: %w", ErrNotFound)
	}
	load := func(ctx context.Context) (*model.CampaignTotals, error) {
		sp, err := l.sponsorships.GetByID(ctx, sponsorshipID)
		if err != nil {
			return nil, notFound("sponsorship", err)
		}
		totals := sp.Totals()
		return &totals, nil
	}
	if l.cache == nil {
		return load(ctx)
	}
	return l.cache.Fetch(ctx, sponsorshipID, load)
}

func (l *fundingLedger) CloseCampaign(ctx context.Context, sponsorshipID string) (*model.Sponsorship, error) {
	if !validID(sponsorshipID) {
		return nil, fmt.Errorf("sponsorship: %w", ErrNotFound)
	}
	var result *model.Sponsorship
	var changed bool
	err := l.withRetry(ctx, "close", func() error {
		result, changed = nil, false
		return l.store.InTx(ctx, func(tx repository.LedgerTx) error {
			sp, err := tx.LockSponsorship(ctx, sponsorshipID)
			if err != nil {
				return notFound("sponsorship", err)
			}
			if sp.Status.IsClosed() {
				result = sp
				return nil
			}
			target := model.SponsorshipCancelled
			if sp.Totals().IsFullyFunded {
				target = model.SponsorshipCompleted
			}
			if result, err = tx.SetSponsorshipStatus(ctx, sponsorshipID, target); err != nil {
				return err
			}
			changed = true
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if changed {
		l.invalidate(ctx, sponsorshipID)
		slog.InfoContext(ctx, "campaign closed", "sponsorship_id", sponsorshipID, "status", result.Status,
			"amount_raised", result.AmountRaised.String(), "goal_amount", result.GoalAmount.String())
	}
	return result, nil
}

func (l *fundingLedger) ChangeCampaignStatus(ctx context.Context, sponsorshipID string, status model.SponsorshipStatus) (*model.Sponsorship, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown campaign status %q", ErrInvalidTransition, status)
	}
	if !validID(sponsorshipID) {
		return nil, fmt.Errorf("sponsorship: %w", ErrNotFound)
	}
	var result *model.Sponsorship
	err := l.withRetry(ctx, "change_status", func() error {
		result = nil
		return l.store.InTx(ctx, func(tx repository.LedgerTx) error {
			sp, err := tx.LockSponsorship(ctx, sponsorshipID)
			if err != nil {
				return notFound("sponsorship", err)
			}
			if sp.Status == status {
				result = sp
				return nil
			}
			if !sp.Status.CanTransition(status) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sp.Status, status)
			}
			result, err = tx.SetSponsorshipStatus(ctx, sponsorshipID, status)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (l *fundingLedger) GetDonation(ctx context.Context, donationID string) (*model.Donation, error) {
	if !validID(donationID) {
		return nil, fmt.Errorf("donation: %w", ErrNotFound)
	}
	d, err := l.donations.GetByID(ctx, donationID)
	if err != nil {
		return nil, notFound("donation", err)
	}
	return d, nil
}

func (l *fundingLedger) ListDonationsBySponsorship(ctx context.Context, sponsorshipID string, limit, offset int) ([]*model.Donation, error) {
	if !validID(sponsorshipID) {
		return nil, fmt.Errorf("sponsorship: %w", ErrNotFound)
	}
	ok, err := l.sponsorships.Exists(ctx, sponsorshipID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("sponsorship: %w", ErrNotFound)
	}
	return l.donations.ListBySponsorship(ctx, sponsorshipID, limit, offset)
}

func (l *fundingLedger) ListDonationsByDonor(ctx context.Context, donorID string, limit, offset int) ([]*model.Donation, error) {
	if !validID(donorID) {
		return nil, fmt.Errorf("donor: %w", ErrNotFound)
	}
	ok, err := l.donors.Exists(ctx, donorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("donor: %w", ErrNotFound)
	}
	return l.donations.ListByDonor(ctx, donorID, limit, offset)
}

// invalidate drops the cached totals after a commit. A failure only leaves the entry
// stale until its TTL expires, so it is logged and not returned.
func (l *fundingLedger) invalidate(ctx context.Context, sponsorshipID string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Invalidate(ctx, sponsorshipID); err != nil {
		slog.WarnContext(ctx, "totals cache invalidate failed", "sponsorship_id", sponsorshipID, "error", err)
	}
}

// withRetry re-runs fn while it fails with repository.ErrRetryable, up to maxAttempts,
// and then reports ErrConflict.
func (l *fundingLedger) withRetry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.retryWait
	b.MaxInterval = 8 * l.retryWait

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := fn()
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, repository.ErrRetryable) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(l.maxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			slog.WarnContext(ctx, "ledger transaction conflict, retrying", "op", op, "attempt", attempts, "wait", wait, "error", err)
		}),
	)
	if err == nil {
		return nil
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	if errors.Is(err, repository.ErrRetryable) {
		slog.ErrorContext(ctx, "ledger transaction gave up", "op", op, "attempts", attempts, "error", err)
		return fmt.Errorf("%w: %s failed after %d attempts", ErrConflict, op, attempts)
	}
	return err
}
