package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/model"
	"github.com/Sara-Samara/HealthAidProj-sub001/internal/service"
	"github.com/Sara-Samara/HealthAidProj-sub001/pkg/auth"
	"github.com/shopspring/decimal"
)

// SponsorshipHandler はキャンペーン（スポンサーシップ）関連のエンドポイントを扱う
type SponsorshipHandler struct {
	campaigns service.CampaignService
	ledger    service.FundingLedger
}

// NewSponsorshipHandler は SponsorshipHandler を生成する
func NewSponsorshipHandler(campaigns service.CampaignService, ledger service.FundingLedger) *SponsorshipHandler {
	return &SponsorshipHandler{campaigns: campaigns, ledger: ledger}
}

// List は GET /api/sponsorships を処理する
func (h *SponsorshipHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := pageParams(r)
	filter := model.SponsorshipFilter{
		Status:   model.SponsorshipStatus(q.Get("status")),
		Category: strings.ToLower(strings.TrimSpace(q.Get("category"))),
		Sort:     q.Get("sort"),
		Limit:    limit,
		Offset:   offset,
	}
	if v := q.Get("urgent"); v != "" {
		urgent, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input")
			return
		}
		filter.Urgent = &urgent
	}

	result, err := h.campaigns.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err, "list_failed")
		return
	}
	if result.Sponsorships == nil {
		result.Sponsorships = []*model.Sponsorship{}
	}
	writeJSON(w, http.StatusOK, result)
}

type sponsorshipCreateRequest struct {
	PatientID   string          `json:"patient_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	GoalAmount  decimal.Decimal `json:"goal_amount"`
	Deadline    *time.Time      `json:"deadline"`
	IsUrgent    bool            `json:"is_urgent"`
}

// Create は POST /api/sponsorships を処理する（要認証）
func (h *SponsorshipHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req sponsorshipCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	sp := &model.Sponsorship{
		PatientID:   strings.TrimSpace(req.PatientID),
		OwnerID:     userID,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Category:    req.Category,
		GoalAmount:  req.GoalAmount,
		Deadline:    req.Deadline,
		IsUrgent:    req.IsUrgent,
	}
	if err := h.campaigns.Create(r.Context(), sp); err != nil {
		writeServiceError(w, r, err, "create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

// Get は GET /api/sponsorships/{id} を処理する
func (h *SponsorshipHandler) Get(w http.ResponseWriter, r *http.Request) {
	sp, err := h.campaigns.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "get_failed")
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// Totals は GET /api/sponsorships/{id}/totals を処理する
func (h *SponsorshipHandler) Totals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.ledger.GetCampaignTotals(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "totals_failed")
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// Close は POST /api/sponsorships/{id}/close を処理する（host 権限）
func (h *SponsorshipHandler) Close(w http.ResponseWriter, r *http.Request) {
	sp, err := h.ledger.CloseCampaign(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "close_failed")
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

type statusRequest struct {
	Status string `json:"status"`
}

// PatchStatus は PATCH /api/sponsorships/{id}/status を処理する（host 権限）
func (h *SponsorshipHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	status := model.SponsorshipStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}

	sp, err := h.ledger.ChangeCampaignStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		writeServiceError(w, r, err, "status_failed")
		return
	}
	writeJSON(w, http.StatusOK, sp)
}
