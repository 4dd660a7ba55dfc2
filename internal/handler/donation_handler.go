package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/model"
	"github.com/Sara-Samara/HealthAidProj-sub001/internal/service"
	"github.com/Sara-Samara/HealthAidProj-sub001/pkg/auth"
	"github.com/shopspring/decimal"
)

// DonationHandler handles donation submission, status callbacks and donor endpoints.
type DonationHandler struct {
	ledger    service.FundingLedger
	campaigns service.CampaignService
}

// NewDonationHandler creates a DonationHandler.
func NewDonationHandler(ledger service.FundingLedger, campaigns service.CampaignService) *DonationHandler {
	return &DonationHandler{ledger: ledger, campaigns: campaigns}
}

type donationSubmitRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Message       string          `json:"message"`
	Anonymous     bool            `json:"anonymous"`
}

// resolveDonor returns the donor id of the authenticated user, or "" for anonymous giving.
// Users that have not registered as donors give anonymously.
func (h *DonationHandler) resolveDonor(r *http.Request, anonymous bool) (string, error) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok || anonymous {
		return "", nil
	}
	d, err := h.campaigns.DonorForUser(r.Context(), userID)
	if errors.Is(err, service.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return d.ID, nil
}

// Submit handles POST /api/sponsorships/{id}/donations.
func (h *DonationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req donationSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	donorID, err := h.resolveDonor(r, req.Anonymous)
	if err != nil {
		writeServiceError(w, r, err, "submit_failed")
		return
	}

	d, err := h.ledger.SubmitDonation(r.Context(), model.DonationInput{
		SponsorshipID: r.PathValue("id"),
		DonorID:       donorID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Message:       req.Message,
	})
	if err != nil {
		writeServiceError(w, r, err, "submit_failed")
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

type directFundRequest struct {
	DonorID        string          `json:"donor_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"payment_method"`
	Message        string          `json:"message"`
	TransactionRef string          `json:"transaction_ref"`
}

// Fund handles POST /api/sponsorships/{id}/fund (host only).
// Records a payment already received and confirms it in one call.
func (h *DonationHandler) Fund(w http.ResponseWriter, r *http.Request) {
	var req directFundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	d, err := h.ledger.FundDirectly(r.Context(), model.DonationInput{
		SponsorshipID: r.PathValue("id"),
		DonorID:       strings.TrimSpace(req.DonorID),
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Message:       req.Message,
	}, req.TransactionRef)
	if err != nil {
		writeServiceError(w, r, err, "fund_failed")
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// ListBySponsorship handles GET /api/sponsorships/{id}/donations.
func (h *DonationHandler) ListBySponsorship(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	donations, err := h.ledger.ListDonationsBySponsorship(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		writeServiceError(w, r, err, "list_failed")
		return
	}
	if donations == nil {
		donations = []*model.Donation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"donations": donations})
}

// Get handles GET /api/donations/{id}.
func (h *DonationHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.ledger.GetDonation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "get_failed")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type transitionRequest struct {
	Status         string `json:"status"`
	TransactionRef string `json:"transaction_ref"`
}

// Transition handles POST /api/donations/{id}/status (host only).
// Payment processor confirmations, failures and refunds land here.
func (h *DonationHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	next, ok := model.ParseDonationStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}

	d, err := h.ledger.TransitionDonationStatus(r.Context(), r.PathValue("id"), next, req.TransactionRef)
	if err != nil {
		writeServiceError(w, r, err, "transition_failed")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type donorRegisterRequest struct {
	DisplayName string `json:"display_name"`
}

// RegisterDonor handles POST /api/me/donor (auth required).
func (h *DonationHandler) RegisterDonor(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req donorRegisterRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
	}

	d, err := h.campaigns.RegisterDonor(r.Context(), userID, req.DisplayName)
	if err != nil {
		writeServiceError(w, r, err, "register_failed")
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// MyDonor handles GET /api/me/donor (auth required).
func (h *DonationHandler) MyDonor(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	d, err := h.campaigns.DonorForUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "get_failed")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// MyDonations handles GET /api/me/donations (auth required).
func (h *DonationHandler) MyDonations(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	donations := []*model.Donation{}
	d, err := h.campaigns.DonorForUser(r.Context(), userID)
	switch {
	case errors.Is(err, service.ErrNotFound):
		// not registered: nothing attributed to this user
	case err != nil:
		writeServiceError(w, r, err, "list_failed")
		return
	default:
		limit, offset := pageParams(r)
		list, err := h.ledger.ListDonationsByDonor(r.Context(), d.ID, limit, offset)
		if err != nil {
			writeServiceError(w, r, err, "list_failed")
			return
		}
		if list != nil {
			donations = list
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"donations": donations})
}
