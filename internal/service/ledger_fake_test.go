package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/model"
	"github.com/Sara-Samara/HealthAidProj-sub001/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory ledger store. InTx holds one mutex for the whole
// transaction and restores a snapshot when fn fails, which is stricter than the
// row locks PostgreSQL takes but honours the same contract.
type memStore struct {
	mu           sync.Mutex
	sponsorships map[string]*model.Sponsorship
	donors       map[string]*model.Donor
	donations    map[string]*model.Donation
	seq          int
	order        map[string]int

	// failTx makes the next failTx InTx calls fail with ErrRetryable after running fn.
	failTx  int
	txCalls int
}

func newMemStore() *memStore {
	return &memStore{
		sponsorships: map[string]*model.Sponsorship{},
		donors:       map[string]*model.Donor{},
		donations:    map[string]*model.Donation{},
		order:        map[string]int{},
	}
}

type memSnapshot struct {
	sponsorships map[string]model.Sponsorship
	donors       map[string]model.Donor
	donations    map[string]model.Donation
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		sponsorships: map[string]model.Sponsorship{},
		donors:       map[string]model.Donor{},
		donations:    map[string]model.Donation{},
	}
	for k, v := range s.sponsorships {
		snap.sponsorships[k] = *v
	}
	for k, v := range s.donors {
		snap.donors[k] = *v
	}
	for k, v := range s.donations {
		snap.donations[k] = *v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	for k, v := range snap.sponsorships {
		*s.sponsorships[k] = v
	}
	for k, v := range snap.donors {
		*s.donors[k] = v
	}
	for k, v := range snap.donations {
		*s.donations[k] = v
	}
}

func (s *memStore) InTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCalls++
	snap := s.snapshot()
	err := fn(&memTx{s: s})
	if err == nil && s.failTx > 0 {
		s.failTx--
		err = fmt.Errorf("%w: injected serialization failure", repository.ErrRetryable)
	}
	if err != nil {
		s.restore(snap)
	}
	return err
}

type memTx struct {
	s *memStore
}

func (tx *memTx) GetDonation(ctx context.Context, id string) (*model.Donation, error) {
	d, ok := tx.s.donations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (tx *memTx) LockSponsorship(ctx context.Context, id string) (*model.Sponsorship, error) {
	sp, ok := tx.s.sponsorships[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *sp
	return &cp, nil
}

func (tx *memTx) LockDonor(ctx context.Context, id string) (*model.Donor, error) {
	d, ok := tx.s.donors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (tx *memTx) CompareAndSetDonationStatus(ctx context.Context, id string, from, to model.DonationStatus, transactionRef string, processedAt *time.Time) (*model.Donation, bool, error) {
	d, ok := tx.s.donations[id]
	if !ok || d.Status != from {
		return nil, false, nil
	}
	d.Status = to
	if transactionRef != "" {
		d.TransactionRef = transactionRef
	}
	if processedAt != nil {
		at := *processedAt
		d.ProcessedAt = &at
	}
	d.UpdatedAt = time.Now()
	cp := *d
	return &cp, true, nil
}

func (tx *memTx) ApplySponsorshipDelta(ctx context.Context, id string, delta decimal.Decimal) (*model.Sponsorship, error) {
	sp, ok := tx.s.sponsorships[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	sp.AmountRaised = sp.AmountRaised.Add(delta)
	sp.DonorCount = tx.s.distinctDonors(id)
	cp := *sp
	return &cp, nil
}

func (tx *memTx) ApplyDonorDelta(ctx context.Context, id string, delta decimal.Decimal) (*model.Donor, error) {
	d, ok := tx.s.donors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d.TotalDonated = d.TotalDonated.Add(delta)
	cp := *d
	return &cp, nil
}

func (tx *memTx) SetSponsorshipStatus(ctx context.Context, id string, status model.SponsorshipStatus) (*model.Sponsorship, error) {
	sp, ok := tx.s.sponsorships[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	sp.Status = status
	cp := *sp
	return &cp, nil
}

// distinctDonors counts donors with at least one completed donation. Caller holds mu.
func (s *memStore) distinctDonors(sponsorshipID string) int {
	seen := map[string]bool{}
	for _, d := range s.donations {
		if d.SponsorshipID == sponsorshipID && d.Status == model.DonationCompleted && d.DonorID != "" {
			seen[d.DonorID] = true
		}
	}
	return len(seen)
}

// memDonations implements repository.DonationRepository.
type memDonations struct{ s *memStore }

func (r memDonations) Create(ctx context.Context, d *model.Donation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.donations[d.ID]; ok {
		return repository.ErrDuplicate
	}
	now := time.Now()
	d.SubmittedAt, d.UpdatedAt = now, now
	cp := *d
	r.s.donations[d.ID] = &cp
	r.s.seq++
	r.s.order[d.ID] = r.s.seq
	return nil
}

func (r memDonations) GetByID(ctx context.Context, id string) (*model.Donation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&memTx{s: r.s}).GetDonation(ctx, id)
}

func (r memDonations) list(match func(*model.Donation) bool, limit, offset int) []*model.Donation {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Donation
	for _, d := range r.s.donations {
		if match(d) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.s.order[out[i].ID] > r.s.order[out[j].ID] })
	if offset >= len(out) {
		return nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

func (r memDonations) ListBySponsorship(ctx context.Context, sponsorshipID string, limit, offset int) ([]*model.Donation, error) {
	return r.list(func(d *model.Donation) bool { return d.SponsorshipID == sponsorshipID }, limit, offset), nil
}

func (r memDonations) ListByDonor(ctx context.Context, donorID string, limit, offset int) ([]*model.Donation, error) {
	return r.list(func(d *model.Donation) bool { return d.DonorID == donorID }, limit, offset), nil
}

// memSponsorships implements SponsorshipDirectory.
type memSponsorships struct{ s *memStore }

func (r memSponsorships) Exists(ctx context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.sponsorships[id]
	return ok, nil
}

func (r memSponsorships) GetByID(ctx context.Context, id string) (*model.Sponsorship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&memTx{s: r.s}).LockSponsorship(ctx, id)
}

// memDonors implements DonorDirectory.
type memDonors struct{ s *memStore }

func (r memDonors) Exists(ctx context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.donors[id]
	return ok, nil
}

// fakeCache records invalidations and serves entries from a map.
type fakeCache struct {
	mu          sync.Mutex
	entries     map[string]*model.CampaignTotals
	loads       int
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*model.CampaignTotals{}}
}

func (c *fakeCache) Fetch(ctx context.Context, sponsorshipID string, load func(ctx context.Context) (*model.CampaignTotals, error)) (*model.CampaignTotals, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.entries[sponsorshipID]; ok {
		cp := *t
		return &cp, nil
	}
	c.loads++
	t, err := load(ctx)
	if err != nil {
		return nil, err
	}
	cp := *t
	c.entries[sponsorshipID] = &cp
	return t, nil
}

func (c *fakeCache) Invalidate(ctx context.Context, sponsorshipID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sponsorshipID)
	c.invalidated = append(c.invalidated, sponsorshipID)
	return nil
}

func (c *fakeCache) invalidations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.invalidated)
}

type ledgerFixture struct {
	store  *memStore
	cache  *fakeCache
	ledger FundingLedger
	now    time.Time
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		store: newMemStore(),
		cache: newFakeCache(),
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.ledger = NewFundingLedger(LedgerDeps{
		Store:                f.store,
		Donations:            memDonations{s: f.store},
		Sponsorships:         memSponsorships{s: f.store},
		Donors:               memDonors{s: f.store},
		Cache:                f.cache,
		RetryInitialInterval: time.Millisecond,
		Now:                  func() time.Time { return f.now },
	})
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *ledgerFixture) addSponsorship(goal string, status model.SponsorshipStatus) string {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	id := uuid.NewString()
	f.store.sponsorships[id] = &model.Sponsorship{
		ID:         id,
		Title:      "surgery for patient " + id[:8],
		Category:   "surgery",
		GoalAmount: dec(goal),
		Status:     status,
	}
	return id
}

func (f *ledgerFixture) addDonor() string {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	id := uuid.NewString()
	f.store.donors[id] = &model.Donor{ID: id, UserID: "user-" + id[:8], DisplayName: "donor"}
	return id
}

func (f *ledgerFixture) submit(t *testing.T, sponsorshipID, donorID, amount string) *model.Donation {
	t.Helper()
	d, err := f.ledger.SubmitDonation(context.Background(), model.DonationInput{
		SponsorshipID: sponsorshipID,
		DonorID:       donorID,
		Amount:        dec(amount),
		PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("SubmitDonation: %v", err)
	}
	return d
}

func (f *ledgerFixture) transition(t *testing.T, donationID string, next model.DonationStatus) *model.Donation {
	t.Helper()
	d, err := f.ledger.TransitionDonationStatus(context.Background(), donationID, next, "")
	if err != nil {
		t.Fatalf("TransitionDonationStatus(%s): %v", next, err)
	}
	return d
}

func (f *ledgerFixture) sponsorship(id string) model.Sponsorship {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return *f.store.sponsorships[id]
}

func (f *ledgerFixture) donor(id string) model.Donor {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return *f.store.donors[id]
}

// checkAggregates verifies that every stored aggregate equals the value derived
// from the completed donations.
func (f *ledgerFixture) checkAggregates(t *testing.T) {
	t.Helper()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	raised := map[string]decimal.Decimal{}
	donated := map[string]decimal.Decimal{}
	for _, d := range f.store.donations {
		if d.Status != model.DonationCompleted {
			continue
		}
		raised[d.SponsorshipID] = raised[d.SponsorshipID].Add(d.Amount)
		if d.DonorID != "" {
			donated[d.DonorID] = donated[d.DonorID].Add(d.Amount)
		}
	}
	for id, sp := range f.store.sponsorships {
		if !sp.AmountRaised.Equal(raised[id]) {
			t.Errorf("sponsorship %s: amount_raised %s, completed sum %s", id, sp.AmountRaised, raised[id])
		}
		if want := f.store.distinctDonors(id); sp.DonorCount != want {
			t.Errorf("sponsorship %s: donor_count %d, distinct completed donors %d", id, sp.DonorCount, want)
		}
	}
	for id, d := range f.store.donors {
		if !d.TotalDonated.Equal(donated[id]) {
			t.Errorf("donor %s: total_donated %s, completed sum %s", id, d.TotalDonated, donated[id])
		}
	}
}
