package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/tipcircle/backend/internal/middleware"
	"github.com/tipcircle/backend/internal/models"
	"github.com/tipcircle/backend/internal/services"
	"github.com/tipcircle/backend/internal/storage"
)

type outcomeApplier interface {
	Apply(ctx context.Context, tips []models.Tip, direction services.Direction, destroy bool) error
}

type TipOutcomeHandler struct {
	engine       outcomeApplier
	store        storage.LedgerStore
	guard        *services.IdempotencyGuard
	validator    *services.ValidationHelper
	logger       *logrus.Logger
	maxBatchSize int
}

// TipOutcomeRequest names the tips of one batch and what to do with them
type TipOutcomeRequest struct {
	TipIDs  []int64 `json:"tip_ids" validate:"required,min=1,dive,gt=0"`
	Reverse bool    `json:"reverse"`
	Destroy bool    `json:"destroy"`
}

// NewTipOutcomeHandler builds the handler. guard may be nil when Redis is unavailable.
func NewTipOutcomeHandler(engine outcomeApplier, store storage.LedgerStore, guard *services.IdempotencyGuard, logger *logrus.Logger, maxBatchSize int) *TipOutcomeHandler {
	return &TipOutcomeHandler{
		engine:       engine,
		store:        store,
		guard:        guard,
		validator:    services.NewValidationHelper(),
		logger:       logger,
		maxBatchSize: maxBatchSize,
	}
}

// ApplyOutcome applies or reverses a batch of tips
// @Summary Apply tip outcome
// @Description Apply (or reverse, optionally deleting) a batch of tips sent by one profile to the running totals
// @Tags tips
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Key that makes retries safe"
// @Param request body TipOutcomeRequest true "Tip outcome request"
// @Success 200 {object} object{success=bool,tipCount=int,direction=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /tips/outcomes [post]
func (h *TipOutcomeHandler) ApplyOutcome(w http.ResponseWriter, r *http.Request) {
	var req TipOutcomeRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if h.maxBatchSize > 0 && len(req.TipIDs) > h.maxBatchSize {
		services.SendErrorResponse(w, "Batch size exceeds limit ("+strconv.Itoa(h.maxBatchSize)+")", http.StatusBadRequest, nil)
		return
	}

	direction := services.Forward
	if req.Reverse {
		direction = services.Reverse
	}

	caller, _ := middleware.CallerFromContext(r.Context())
	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.guard != nil {
		canonical, _ := json.Marshal(req)
		key = services.IdempotencyKey(caller, key, canonical)
		stored, err := h.guard.Begin(r.Context(), key)
		switch {
		case errors.Is(err, services.ErrRequestInProgress):
			services.SendErrorResponse(w, "Request with this Idempotency-Key is still in progress", http.StatusConflict, nil)
			return
		case err != nil:
			h.logger.WithError(err).Warn("Idempotency check failed, processing without it")
			key = ""
		case stored != nil:
			w.Header().Set("Idempotent-Replayed", "true")
			services.SendJSON(w, stored.Status, stored.Body)
			return
		}
	}

	tips, err := h.store.FindTips(r.Context(), uniqueIDs(req.TipIDs))
	if err == nil {
		err = h.engine.Apply(r.Context(), tips, direction, req.Destroy)
	}
	if err != nil {
		if key != "" && h.guard != nil {
			if releaseErr := h.guard.Release(context.Background(), key); releaseErr != nil {
				h.logger.WithError(releaseErr).Warn("Failed to release idempotency key")
			}
		}
		h.logger.WithError(err).WithFields(logrus.Fields{
			"caller":    caller,
			"tip_ids":   req.TipIDs,
			"direction": direction.String(),
			"destroy":   req.Destroy,
		}).Warn("Tip outcome failed")
		message, status := describeError(err)
		services.SendErrorResponse(w, message, status, nil)
		return
	}

	response := map[string]any{
		"success":   true,
		"tipCount":  len(tips),
		"direction": direction.String(),
	}
	if key != "" && h.guard != nil {
		// Left pending on failure; a retry with the same key must not apply again
		if err := h.guard.Complete(context.Background(), key, http.StatusOK, response); err != nil {
			h.logger.WithError(err).Error("Failed to store idempotent outcome")
		}
	}
	services.SendJSON(w, http.StatusOK, response)
}

// GetProfile returns a profile's running totals
// @Summary Get profile totals
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Param profileId path int true "Profile ID"
// @Success 200 {object} models.Profile
// @Failure 404 {object} services.ErrorResponse
// @Router /profiles/{profileId} [get]
func (h *TipOutcomeHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "profileId"), 10, 64)
	if err != nil || id <= 0 {
		services.SendErrorResponse(w, "Invalid profile ID", http.StatusBadRequest, nil)
		return
	}

	profile, err := h.store.GetProfile(r.Context(), id)
	if err != nil {
		message, status := describeError(err)
		services.SendErrorResponse(w, message, status, nil)
		return
	}

	services.SendJSON(w, http.StatusOK, profile)
}

// GetTeam returns a team's running totals
// @Summary Get team totals
// @Tags teams
// @Produce json
// @Security BearerAuth
// @Param teamId path int true "Team ID"
// @Success 200 {object} models.Team
// @Failure 404 {object} services.ErrorResponse
// @Router /teams/{teamId} [get]
func (h *TipOutcomeHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "teamId"), 10, 64)
	if err != nil || id <= 0 {
		services.SendErrorResponse(w, "Invalid team ID", http.StatusBadRequest, nil)
		return
	}

	team, err := h.store.GetTeam(r.Context(), id)
	if err != nil {
		message, status := describeError(err)
		services.SendErrorResponse(w, message, status, nil)
		return
	}

	services.SendJSON(w, http.StatusOK, team)
}

func describeError(err error) (string, int) {
	switch {
	case services.IsPrecondition(err):
		return err.Error(), http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrNotFound):
		return err.Error(), http.StatusNotFound
	case errors.Is(err, services.ErrLockTimeout):
		return "Ledger is busy, retry the request", http.StatusConflict
	case errors.Is(err, services.ErrConstraintViolation):
		return err.Error(), http.StatusConflict
	case errors.Is(err, services.ErrStoreUnavailable):
		return "Ledger store unavailable", http.StatusServiceUnavailable
	default:
		return "Failed to process tip outcome", http.StatusInternalServerError
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
