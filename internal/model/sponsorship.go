package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SponsorshipStatus はキャンペーンの状態
type SponsorshipStatus string

const (
	SponsorshipActive    SponsorshipStatus = "active"
	SponsorshipCompleted SponsorshipStatus = "completed"
	SponsorshipCancelled SponsorshipStatus = "cancelled"
	SponsorshipPaused    SponsorshipStatus = "paused"
)

// Valid は既知のステータスかどうかを返す
func (s SponsorshipStatus) Valid() bool {
	switch s {
	case SponsorshipActive, SponsorshipCompleted, SponsorshipCancelled, SponsorshipPaused:
		return true
	}
	return false
}

// IsClosed は寄付を受け付けない終了状態かどうかを返す
func (s SponsorshipStatus) IsClosed() bool {
	return s == SponsorshipCompleted || s == SponsorshipCancelled
}

// CanTransition は明示的なステータス変更として next への遷移が許可されるかを返す。
// 終了状態（completed / cancelled）からの遷移はない
func (s SponsorshipStatus) CanTransition(next SponsorshipStatus) bool {
	switch s {
	case SponsorshipActive:
		return next == SponsorshipPaused || next == SponsorshipCancelled || next == SponsorshipCompleted
	case SponsorshipPaused:
		return next == SponsorshipActive || next == SponsorshipCancelled
	}
	return false
}

// Sponsorship は患者の医療目標に紐づく募金キャンペーン。
// AmountRaised と DonorCount は台帳（FundingLedger）だけが更新する。
type Sponsorship struct {
	ID           string            `json:"id"`
	PatientID    string            `json:"patient_id,omitempty"`
	OwnerID      string            `json:"owner_id,omitempty"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	Category     string            `json:"category"`
	GoalAmount   decimal.Decimal   `json:"goal_amount"`
	AmountRaised decimal.Decimal   `json:"amount_raised"`
	DonorCount   int               `json:"donor_count"`
	Status       SponsorshipStatus `json:"status"`
	Deadline     *time.Time        `json:"deadline,omitempty"`
	IsUrgent     bool              `json:"is_urgent"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Totals はスナップショットから派生値を計算する
func (s *Sponsorship) Totals() CampaignTotals {
	return NewCampaignTotals(s.ID, s.GoalAmount, s.AmountRaised, s.DonorCount)
}

// CampaignTotals は一覧・レポート向けの読み取り専用集計値
type CampaignTotals struct {
	SponsorshipID      string          `json:"sponsorship_id"`
	GoalAmount         decimal.Decimal `json:"goal_amount"`
	AmountRaised       decimal.Decimal `json:"amount_raised"`
	DonorCount         int             `json:"donor_count"`
	ProgressPercentage decimal.Decimal `json:"progress_percentage"`
	IsFullyFunded      bool            `json:"is_fully_funded"`
	AmountNeeded       decimal.Decimal `json:"amount_needed"`
}

var hundred = decimal.NewFromInt(100)

// NewCampaignTotals derives progress, funded flag and remaining amount from goal and raised.
func NewCampaignTotals(sponsorshipID string, goal, raised decimal.Decimal, donorCount int) CampaignTotals {
	t := CampaignTotals{
		SponsorshipID: sponsorshipID,
		GoalAmount:    goal,
		AmountRaised:  raised,
		DonorCount:    donorCount,
		IsFullyFunded: raised.GreaterThanOrEqual(goal),
		AmountNeeded:  decimal.Max(decimal.Zero, goal.Sub(raised)),
	}
	if goal.IsPositive() {
		t.ProgressPercentage = decimal.Min(hundred, raised.Div(goal).Mul(hundred)).Round(2)
	} else {
		t.ProgressPercentage = hundred
	}
	return t
}

// SponsorshipFilter はキャンペーン一覧の絞り込み・並び替え条件
type SponsorshipFilter struct {
	Status   SponsorshipStatus
	Category string
	Urgent   *bool
	Sort     string // "new" (default), "deadline", "progress", "raised"
	Limit    int
	Offset   int
}

// SponsorshipListResult はページネーション付きのキャンペーン一覧
type SponsorshipListResult struct {
	Sponsorships []*Sponsorship `json:"sponsorships"`
	Total        int            `json:"total"`
}
