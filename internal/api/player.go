package api

import (
	"net/http"

	apperrors "quiz-funnels/internal/common/errors"
	"quiz-funnels/internal/common/logger"
	"quiz-funnels/internal/player"
)

type PlayerHandler struct {
	players *player.Manager
	log     logger.Logger
}

func NewPlayerHandler(players *player.Manager, log logger.Logger) *PlayerHandler {
	return &PlayerHandler{players: players, log: log}
}

type AnswerRequest struct {
	AnswerIndex *int `json:"answerIndex"`
}

type AnswerResponse struct {
	Accepted bool            `json:"accepted"`
	Session  player.Snapshot `json:"session"`
}

// Start handles POST /v1/play/{funnelId}. Load failures are reported in the
// session state, not as an error status.
func (h *PlayerHandler) Start(w http.ResponseWriter, r *http.Request) {
	session := h.players.Start(r.Context(), r.PathValue("funnelId"))
	JSONResponse(w, h.log, http.StatusCreated, session.Snapshot())
}

// Get handles GET /v1/play/sessions/{sid}
func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.players.Get(r.PathValue("sid"))
	if err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	JSONResponse(w, h.log, http.StatusOK, session.Snapshot())
}

// Answer handles POST /v1/play/sessions/{sid}/answers
func (h *PlayerHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	if req.AnswerIndex == nil {
		ErrorResponse(w, h.log, apperrors.NewValidationError("answerIndex is required", ""))
		return
	}

	session, err := h.players.Get(r.PathValue("sid"))
	if err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	accepted, err := session.Answer(*req.AnswerIndex)
	if err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	JSONResponse(w, h.log, http.StatusOK, AnswerResponse{Accepted: accepted, Session: session.Snapshot()})
}

// Redirect handles GET /v1/play/sessions/{sid}/redirect
func (h *PlayerHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	session, err := h.players.Get(r.PathValue("sid"))
	if err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	url, err := session.RedirectURL()
	if err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}
