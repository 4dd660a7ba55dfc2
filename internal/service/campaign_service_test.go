package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/model"
	"github.com/Sara-Samara/HealthAidProj-sub001/internal/repository"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Mock repositories
// ---------------------------------------------------------------------------

type mockSponsorshipRepository struct {
	getByIDFunc func(ctx context.Context, id string) (*model.Sponsorship, error)
	listFunc    func(ctx context.Context, filter model.SponsorshipFilter) (*model.SponsorshipListResult, error)
	createFunc  func(ctx context.Context, s *model.Sponsorship) error
}

func (m *mockSponsorshipRepository) GetByID(ctx context.Context, id string) (*model.Sponsorship, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}
func (m *mockSponsorshipRepository) Exists(ctx context.Context, id string) (bool, error) {
	return false, nil
}
func (m *mockSponsorshipRepository) List(ctx context.Context, filter model.SponsorshipFilter) (*model.SponsorshipListResult, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return &model.SponsorshipListResult{}, nil
}
func (m *mockSponsorshipRepository) Create(ctx context.Context, s *model.Sponsorship) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, s)
	}
	return nil
}

type mockDonorRepository struct {
	getByUserIDFunc func(ctx context.Context, userID string) (*model.Donor, error)
	createFunc      func(ctx context.Context, d *model.Donor) error
}

func (m *mockDonorRepository) GetByID(ctx context.Context, id string) (*model.Donor, error) {
	return nil, repository.ErrNotFound
}
func (m *mockDonorRepository) GetByUserID(ctx context.Context, userID string) (*model.Donor, error) {
	if m.getByUserIDFunc != nil {
		return m.getByUserIDFunc(ctx, userID)
	}
	return nil, repository.ErrNotFound
}
func (m *mockDonorRepository) Exists(ctx context.Context, id string) (bool, error) {
	return false, nil
}
func (m *mockDonorRepository) Create(ctx context.Context, d *model.Donor) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, d)
	}
	return nil
}

// ---------------------------------------------------------------------------
// CampaignService.Create
// ---------------------------------------------------------------------------

func TestCampaignService_Create_SetsDefaults(t *testing.T) {
	var created *model.Sponsorship
	repo := &mockSponsorshipRepository{
		createFunc: func(ctx context.Context, s *model.Sponsorship) error {
			created = s
			return nil
		},
	}
	svc := NewCampaignService(repo, &mockDonorRepository{})

	sp := &model.Sponsorship{Title: "  Kidney transplant ", GoalAmount: dec("1500"), Status: model.SponsorshipCompleted}
	if err := svc.Create(context.Background(), sp); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created == nil {
		t.Fatal("repository Create not called")
	}
	if _, err := uuid.Parse(created.ID); err != nil {
		t.Errorf("expected uuid id, got %q", created.ID)
	}
	if created.Status != model.SponsorshipActive {
		t.Errorf("expected active, got %s", created.Status)
	}
	if created.Title != "Kidney transplant" || created.Category != "general" {
		t.Errorf("unexpected normalisation: title=%q category=%q", created.Title, created.Category)
	}
}

func TestCampaignService_Create_Validation(t *testing.T) {
	repo := &mockSponsorshipRepository{
		createFunc: func(ctx context.Context, s *model.Sponsorship) error {
			t.Error("repository should not be called")
			return nil
		},
	}
	svc := NewCampaignService(repo, &mockDonorRepository{})

	if err := svc.Create(context.Background(), &model.Sponsorship{GoalAmount: dec("10")}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing title: expected ErrInvalidInput, got %v", err)
	}
	if err := svc.Create(context.Background(), &model.Sponsorship{Title: "x", GoalAmount: dec("0")}); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero goal: expected ErrInvalidAmount, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// CampaignService.GetByID / List
// ---------------------------------------------------------------------------

func TestCampaignService_GetByID_NotFound(t *testing.T) {
	svc := NewCampaignService(&mockSponsorshipRepository{}, &mockDonorRepository{})

	if _, err := svc.GetByID(context.Background(), uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetByID(context.Background(), "bad-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("malformed id: expected ErrNotFound, got %v", err)
	}
}

func TestCampaignService_List_ClampsLimit(t *testing.T) {
	var got model.SponsorshipFilter
	repo := &mockSponsorshipRepository{
		listFunc: func(ctx context.Context, filter model.SponsorshipFilter) (*model.SponsorshipListResult, error) {
			got = filter
			return &model.SponsorshipListResult{}, nil
		},
	}
	svc := NewCampaignService(repo, &mockDonorRepository{})

	if _, err := svc.List(context.Background(), model.SponsorshipFilter{Limit: 1000, Offset: -5}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if got.Limit != 100 || got.Offset != 0 {
		t.Errorf("expected limit=100 offset=0, got limit=%d offset=%d", got.Limit, got.Offset)
	}

	if _, err := svc.List(context.Background(), model.SponsorshipFilter{}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if got.Limit != 20 {
		t.Errorf("expected default limit=20, got %d", got.Limit)
	}
}

func TestCampaignService_List_InvalidStatus(t *testing.T) {
	svc := NewCampaignService(&mockSponsorshipRepository{}, &mockDonorRepository{})
	_, err := svc.List(context.Background(), model.SponsorshipFilter{Status: "archived"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// CampaignService.RegisterDonor / DonorForUser
// ---------------------------------------------------------------------------

func TestCampaignService_RegisterDonor_Success(t *testing.T) {
	donors := &mockDonorRepository{}
	svc := NewCampaignService(&mockSponsorshipRepository{}, donors)

	d, err := svc.RegisterDonor(context.Background(), "user-1", " ")
	if err != nil {
		t.Fatalf("RegisterDonor: %v", err)
	}
	if d.UserID != "user-1" || d.DisplayName != "Anonymous" {
		t.Errorf("unexpected donor: %+v", d)
	}
}

func TestCampaignService_RegisterDonor_Duplicate(t *testing.T) {
	donors := &mockDonorRepository{
		createFunc: func(ctx context.Context, d *model.Donor) error {
			return repository.ErrDuplicate
		},
	}
	svc := NewCampaignService(&mockSponsorshipRepository{}, donors)

	if _, err := svc.RegisterDonor(context.Background(), "user-1", "Sam"); !errors.Is(err, ErrDonorExists) {
		t.Errorf("expected ErrDonorExists, got %v", err)
	}
}

func TestCampaignService_DonorForUser_NotFound(t *testing.T) {
	svc := NewCampaignService(&mockSponsorshipRepository{}, &mockDonorRepository{})
	if _, err := svc.DonorForUser(context.Background(), "user-404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
