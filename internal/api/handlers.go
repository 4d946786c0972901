// Package api provides the HTTP surface for the puzzle mini-app.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/knightmint/knightmint/internal/config"
	"github.com/knightmint/knightmint/internal/domain"
	"github.com/knightmint/knightmint/internal/payment"
	"github.com/knightmint/knightmint/internal/progress"
	"github.com/knightmint/knightmint/internal/session"
	"github.com/knightmint/knightmint/internal/store"
)

// Handler holds all dependencies for the HTTP handlers.
type Handler struct {
	Sessions *session.Manager
	Progress progress.Store
	DB       *sql.DB
	Refs     *store.ReferenceRepo
	Verifier *payment.Verifier
	Prices   config.Prices
}

// sessionView is the client-facing session snapshot. The solution line is
// never included; hints and answers arrive only through paid unlocks.
type sessionView struct {
	UserKey     string              `json:"user_key"`
	State       domain.SessionState `json:"state"`
	Level       int                 `json:"level"`
	PuzzleID    int                 `json:"puzzle_id,omitempty"`
	FEN         string              `json:"fen,omitempty"`
	Prompt      string              `json:"prompt"`
	MoveIndex   int                 `json:"move_index"`
	HintSquare  domain.Square       `json:"hint_square,omitempty"`
	HintUsed    bool                `json:"hint_used"`
	AnswerMove  *domain.HalfMove    `json:"answer_move,omitempty"`
	SolvedCount int                 `json:"solved_count"`
}

func viewOf(userKey string, snap session.Snapshot) sessionView {
	return sessionView{
		UserKey:     userKey,
		State:       snap.Session.State,
		Level:       snap.Progress.Level,
		PuzzleID:    snap.Session.Puzzle.ID,
		FEN:         snap.Session.FEN,
		Prompt:      snap.Session.Prompt,
		MoveIndex:   snap.Session.MoveIndex,
		HintSquare:  snap.Session.HintSquare,
		HintUsed:    snap.Session.HintUsed,
		AnswerMove:  snap.Session.AnswerMove,
		SolvedCount: len(snap.Progress.SolvedIDs),
	}
}

// APIError is a structured error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// InitiatePayment handles GET /api/v1/initiate-payment. It issues a fresh
// payment reference and records it; only references issued here are
// accepted by the confirmation endpoint.
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	userKey := r.URL.Query().Get("user")
	kind := domain.UnlockKind(r.URL.Query().Get("kind"))
	if userKey == "" {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "user is required"})
		return
	}
	if !kind.Valid() {
		writeError(w, domain.ErrBadUnlockKind)
		return
	}

	reference := payment.NewReference()
	err := h.Refs.Record(r.Context(), h.DB, store.IssuedReference{
		Reference:  reference,
		UserKey:    userKey,
		UnlockKind: kind,
		Amount:     h.Prices.For(kind),
		Status:     store.ReferenceIssued,
		CreatedAt:  time.Now().Unix(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reference": reference})
}

// ConfirmRequest is the body for POST /api/v1/confirm-payment.
type ConfirmRequest struct {
	To      string `json:"to"`
	Payload struct {
		TransactionID string `json:"transaction_id"`
		Reference     string `json:"reference"`
	} `json:"payload"`
}

// ConfirmResponse reports the verification result.
type ConfirmResponse struct {
	Success bool                 `json:"success"`
	Status  domain.ConfirmStatus `json:"status"`
}

// ConfirmPayment handles POST /api/v1/confirm-payment. The caller supplies
// a transaction id and its reference; the authoritative record comes from
// the portal, never from the request.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	if req.Payload.TransactionID == "" || req.Payload.Reference == "" {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "transaction_id and reference are required"})
		return
	}

	status, err := h.Verifier.Verify(r.Context(), req.Payload.TransactionID, req.Payload.Reference)
	if err != nil {
		if errors.Is(err, domain.ErrReferenceUnknown) {
			writeJSON(w, http.StatusOK, ConfirmResponse{Success: false, Status: domain.ConfirmFailed})
			return
		}
		// An absent or unreachable authoritative record never confirms a
		// payment. The client sees failed, not an opaque server error.
		log.Printf("[api] confirm payment %s: %v", req.Payload.Reference, err)
		writeJSON(w, http.StatusOK, ConfirmResponse{Success: false, Status: domain.ConfirmFailed})
		return
	}
	if status != domain.ConfirmPending {
		if err := h.Verifier.MarkOutcome(r.Context(), req.Payload.Reference, status); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, ConfirmResponse{Success: status == domain.ConfirmMined, Status: status})
}

// OpenRequest is the body for POST /api/v1/session.
type OpenRequest struct {
	UserKey string `json:"user_key"`
}

// OpenSession handles POST /api/v1/session. Opening an already-open session
// returns the existing one, so reconnecting clients resume where they left.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	if req.UserKey == "" {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "user_key is required"})
		return
	}

	c, err := h.Sessions.Open(r.Context(), req.UserKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(req.UserKey, c.Snapshot()))
}

// GetSession handles GET /api/v1/session/{userKey}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	userKey := mux.Vars(r)["userKey"]
	c, err := h.Sessions.Get(userKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(userKey, c.Snapshot()))
}

// MoveRequest is the body for POST /api/v1/session/{userKey}/move.
type MoveRequest struct {
	From domain.Square `json:"from"`
	To   domain.Square `json:"to"`
}

// MoveResponse pairs the move classification with the resulting snapshot.
type MoveResponse struct {
	Result  session.MoveResult `json:"result"`
	Session sessionView        `json:"session"`
}

// SubmitMove handles POST /api/v1/session/{userKey}/move.
func (h *Handler) SubmitMove(w http.ResponseWriter, r *http.Request) {
	userKey := mux.Vars(r)["userKey"]
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	if req.From == "" || req.To == "" {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "from and to are required"})
		return
	}

	c, err := h.Sessions.Get(userKey)
	if err != nil {
		writeError(w, err)
		return
	}
	result, snap := c.SubmitMove(r.Context(), req.From, req.To)
	writeJSON(w, http.StatusOK, MoveResponse{Result: result, Session: viewOf(userKey, snap)})
}

// UnlockRequest is the body for POST /api/v1/session/{userKey}/unlock.
type UnlockRequest struct {
	Kind domain.UnlockKind `json:"kind"`
}

// UnlockResponse reports the payment flow's terminal outcome.
type UnlockResponse struct {
	Outcome domain.UnlockOutcome `json:"outcome"`
	Session sessionView          `json:"session"`
}

// RequestUnlock handles POST /api/v1/session/{userKey}/unlock. The request
// blocks through the wallet payment and the confirmation poll.
func (h *Handler) RequestUnlock(w http.ResponseWriter, r *http.Request) {
	userKey := mux.Vars(r)["userKey"]
	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}

	c, err := h.Sessions.Get(userKey)
	if err != nil {
		writeError(w, err)
		return
	}
	outcome, err := c.RequestUnlock(r.Context(), req.Kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UnlockResponse{Outcome: outcome, Session: viewOf(userKey, c.Snapshot())})
}

// Advance handles POST /api/v1/session/{userKey}/advance.
func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	userKey := mux.Vars(r)["userKey"]
	c, err := h.Sessions.Get(userKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(userKey, c.Proceed(r.Context())))
}

// Restart handles POST /api/v1/session/{userKey}/restart.
func (h *Handler) Restart(w http.ResponseWriter, r *http.Request) {
	userKey := mux.Vars(r)["userKey"]
	c, err := h.Sessions.Get(userKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(userKey, c.Restart(r.Context())))
}

// GetProgress handles GET /api/v1/progress/{userKey}. Unknown users get a
// fresh default rather than an error.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userKey := mux.Vars(r)["userKey"]
	prog, found, err := h.Progress.Get(r.Context(), userKey)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		prog = domain.NewUserProgress()
	}
	writeJSON(w, http.StatusOK, prog)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch appErr.Code {
		case domain.ErrSessionNotFound.Code, domain.ErrPuzzleNotFound.Code, domain.ErrReferenceUnknown.Code:
			status = http.StatusNotFound
		case domain.ErrBadUnlockKind.Code, domain.ErrBadSquare.Code:
			status = http.StatusBadRequest
		case domain.ErrPaymentBusy.Code:
			status = http.StatusConflict
		case domain.ErrRateLimited.Code:
			status = http.StatusTooManyRequests
		case domain.ErrNotLost.Code, domain.ErrHintAlreadyUsed.Code,
			domain.ErrInvalidTransition.Code, domain.ErrSessionTerminal.Code:
			status = http.StatusUnprocessableEntity
		case domain.ErrWalletGone.Code:
			status = http.StatusServiceUnavailable
		case domain.ErrPortalLookup.Code:
			status = http.StatusBadGateway
		}
		writeJSON(w, status, APIError{Code: appErr.Code, Message: appErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, APIError{Code: -1, Message: err.Error()})
}
