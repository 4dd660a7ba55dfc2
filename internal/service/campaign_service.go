package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/model"
	"github.com/Sara-Samara/HealthAidProj-sub001/internal/repository"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	defaultCategory  = "general"
)

// CampaignService はキャンペーン作成・一覧・寄付者登録のインターフェース。
// 集計値（amount_raised / donor_count / total_donated）は読み取りのみ。
type CampaignService interface {
	Create(ctx context.Context, s *model.Sponsorship) error
	GetByID(ctx context.Context, id string) (*model.Sponsorship, error)
	List(ctx context.Context, filter model.SponsorshipFilter) (*model.SponsorshipListResult, error)
	RegisterDonor(ctx context.Context, userID, displayName string) (*model.Donor, error)
	DonorForUser(ctx context.Context, userID string) (*model.Donor, error)
}

// CampaignServiceImpl は CampaignService の実装
type CampaignServiceImpl struct {
	sponsorships repository.SponsorshipRepository
	donors       repository.DonorRepository
}

// NewCampaignService は CampaignServiceImpl を生成する
func NewCampaignService(sponsorships repository.SponsorshipRepository, donors repository.DonorRepository) CampaignService {
	return &CampaignServiceImpl{sponsorships: sponsorships, donors: donors}
}

// Create はキャンペーンを active で作成する
func (s *CampaignServiceImpl) Create(ctx context.Context, sp *model.Sponsorship) error {
	sp.Title = strings.TrimSpace(sp.Title)
	if sp.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if err := validateAmount(sp.GoalAmount); err != nil {
		return err
	}
	sp.Category = strings.ToLower(strings.TrimSpace(sp.Category))
	if sp.Category == "" {
		sp.Category = defaultCategory
	}
	sp.ID = uuid.NewString()
	sp.Status = model.SponsorshipActive
	return s.sponsorships.Create(ctx, sp)
}

// GetByID は ID でキャンペーンを取得する
func (s *CampaignServiceImpl) GetByID(ctx context.Context, id string) (*model.Sponsorship, error) {
	if !validID(id) {
		return nil, fmt.Errorf("sponsorship: %w", ErrNotFound)
	}
	sp, err := s.sponsorships.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("sponsorship", err)
	}
	return sp, nil
}

// List はキャンペーン一覧を取得する（limit は 1〜100 に丸める）
func (s *CampaignServiceImpl) List(ctx context.Context, filter model.SponsorshipFilter) (*model.SponsorshipListResult, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.sponsorships.List(ctx, filter)
}

// RegisterDonor はユーザーを寄付者として登録する
func (s *CampaignServiceImpl) RegisterDonor(ctx context.Context, userID, displayName string) (*model.Donor, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = "Anonymous"
	}
	d := &model.Donor{ID: uuid.NewString(), UserID: userID, DisplayName: displayName}
	if err := s.donors.Create(ctx, d); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDonorExists
		}
		return nil, err
	}
	return d, nil
}

// DonorForUser はユーザーに紐づく寄付者を返す
func (s *CampaignServiceImpl) DonorForUser(ctx context.Context, userID string) (*model.Donor, error) {
	d, err := s.donors.GetByUserID(ctx, userID)
	if err != nil {
		return nil, notFound("donor", err)
	}
	return d, nil
}
