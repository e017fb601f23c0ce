/*
handlers.go - HTTP API handlers for the referral reward ledger

PURPOSE:
  Exposes the ledger manager via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every decision to ledger.Manager.

ENDPOINTS:
  Rewards:
    POST   /api/rewards                Create (201, or 200 on idempotent replay)
    GET    /api/rewards/{id}           Get reward
    POST   /api/rewards/{id}/confirm   PENDING -> CONFIRMED
    POST   /api/rewards/{id}/reverse   PENDING|CONFIRMED -> REVERSED
    GET    /api/rewards/{id}/audit     Audit trail

  Users:
    GET    /api/users/{id}/balance     ?currency=INR
    GET    /api/users/{id}/ledger      ?limit=50&offset=0

  Reference data:
    GET    /api/definitions            Reward definitions

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, illegal state transition
  - 404: Reward not found
  - 409: Idempotency conflict (strict dedup policy only)
  - 500: Internal errors, ledger inconsistencies

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/referral-ledger/ledger"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

type Handler struct {
	Ledger *ledger.Manager
	Log    *zap.Logger
}

func NewHandler(mgr *ledger.Manager, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Ledger: mgr, Log: log.Named("api")}
}

// =============================================================================
// SYSTEM
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "referral-ledger",
	})
}

// =============================================================================
// REWARD ENDPOINTS
// =============================================================================

func (h *Handler) CreateReward(w http.ResponseWriter, r *http.Request) {
	var req CreateRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp, err := h.Ledger.CreateReward(r.Context(), ledger.CreateRewardInput{
		IdempotencyKey: req.IdempotencyKey,
		ReferrerUserID: req.ReferrerUserID,
		ReferredUserID: req.ReferredUserID,
		DefinitionID:   req.RewardDefinitionID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    req.Description,
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, toRewardResponseDTO(resp))
}

func (h *Handler) GetReward(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	reward, err := h.Ledger.GetReward(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRewardDTO(reward))
}

func (h *Handler) ConfirmReward(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req ConfirmRewardRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp, err := h.Ledger.ConfirmReward(r.Context(), id, ledger.ConfirmInput{PerformedBy: req.PerformedBy})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRewardResponseDTO(resp))
}

func (h *Handler) ReverseReward(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req ReverseRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp, err := h.Ledger.ReverseReward(r.Context(), id, ledger.ReverseInput{
		Reason:      req.Reason,
		PerformedBy: req.PerformedBy,
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRewardResponseDTO(resp))
}

func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	trail, err := h.Ledger.AuditTrail(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	type auditDTO struct {
		Action  string            `json:"action"`
		ActorID string            `json:"actor_id,omitempty"`
		At      string            `json:"at"`
		Payload map[string]string `json:"payload,omitempty"`
	}
	out := make([]auditDTO, 0, len(trail))
	for _, a := range trail {
		out = append(out, auditDTO{
			Action:  string(a.Action),
			ActorID: a.ActorID,
			At:      a.At.Format("2006-01-02T15:04:05.000Z07:00"),
			Payload: a.Payload,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// USER ENDPOINTS
// =============================================================================

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	balance, err := h.Ledger.GetBalance(r.Context(), userID, r.URL.Query().Get("currency"))
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

func (h *Handler) GetLedgerHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", ledger.DefaultHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit", err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset", err)
		return
	}

	history, err := h.Ledger.GetLedgerHistory(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryDTO(history))
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (h *Handler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := h.Ledger.Definitions(r.Context())
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	out := make([]DefinitionDTO, 0, len(defs))
	for _, d := range defs {
		out = append(out, toDefinitionDTO(d))
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError maps the ledger error taxonomy to HTTP.
func (h *Handler) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrRewardNotFound):
		writeError(w, http.StatusNotFound, "reward not found", err)
	case errors.Is(err, ledger.ErrIdempotencyConflict):
		writeError(w, http.StatusConflict, "idempotency conflict", err)
	case errors.Is(err, ledger.ErrInvalidStateTransition):
		writeError(w, http.StatusBadRequest, "invalid state transition", err)
	case errors.Is(err, ledger.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation failed", err)
	default:
		h.Log.Error("ledger operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+param, err)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// decodeOptional decodes a JSON body that clients may omit entirely.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
