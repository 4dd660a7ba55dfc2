package service

import "errors"

var (
	// ErrNotFound is returned when a sponsorship, donation or donor does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidAmount is returned for non-positive amounts or amounts that do not fit NUMERIC(18,2).
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidTransition is returned when the requested status is not reachable from the current one.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrCampaignClosed is returned when a donation targets a completed or cancelled sponsorship.
	ErrCampaignClosed = errors.New("campaign closed")
	// ErrConflict is returned when concurrent transactions kept failing past the retry budget.
	ErrConflict = errors.New("conflict")
	// ErrForbidden is returned when a user tries to act on another user's resource.
	ErrForbidden = errors.New("forbidden")
	// ErrDonorExists is returned when a user registers as a donor twice.
	ErrDonorExists = errors.New("donor already registered")
	// ErrInvalidInput is returned for missing or malformed campaign fields.
	ErrInvalidInput = errors.New("invalid input")
)
