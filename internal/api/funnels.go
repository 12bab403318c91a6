package api

import (
	"encoding/json"
	"net/http"
	"strings"

	apperrors "quiz-funnels/internal/common/errors"
	"quiz-funnels/internal/common/logger"
	"quiz-funnels/internal/models"
)

type FunnelHandler struct {
	funnels FunnelRepository
	baseURL string
	log     logger.Logger
}

func NewFunnelHandler(funnels FunnelRepository, baseURL string, log logger.Logger) *FunnelHandler {
	return &FunnelHandler{funnels: funnels, baseURL: strings.TrimRight(baseURL, "/"), log: log}
}

type CreateFunnelRequest struct {
	Name string `json:"name"`
}

type ShareResponse struct {
	URL string `json:"url"`
}

// List handles GET /v1/funnels
func (h *FunnelHandler) List(w http.ResponseWriter, r *http.Request) {
	funnels, err := h.funnels.List(r.Context())
	if err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	JSONResponse(w, h.log, http.StatusOK, funnels)
}

// Create handles POST /v1/funnels
func (h *FunnelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateFunnelRequest
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, h.log, err)
		return
	}

	funnel, err := h.funnels.Create(r.Context(), req.Name)
	if err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	JSONResponse(w, h.log, http.StatusCreated, funnel)
}

// Get handles GET /v1/funnels/{id}
func (h *FunnelHandler) Get(w http.ResponseWriter, r *http.Request) {
	funnel, err := h.funnels.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	JSONResponse(w, h.log, http.StatusOK, funnel)
}

// UpdateData handles PUT /v1/funnels/{id}/data. Fields missing from the
// body take their default values; the merged data must pass
// FunnelData.Validate.
func (h *FunnelHandler) UpdateData(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := ParseJSONBody(r, &raw); err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	data, err := models.MergeFunnelData(raw)
	if err != nil {
		ErrorResponse(w, h.log, apperrors.NewFormatError("Invalid funnel data", err.Error()))
		return
	}
	if err := data.Validate(); err != nil {
		ErrorResponse(w, h.log, err)
		return
	}

	if err := h.funnels.Update(r.Context(), r.PathValue("id"), data); err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /v1/funnels/{id}?confirm=true
func (h *FunnelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		ErrorResponse(w, h.log, apperrors.NewConfirmationRequiredError("Deleting a funnel"))
		return
	}
	if err := h.funnels.Delete(r.Context(), r.PathValue("id")); err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Share handles GET /v1/funnels/{id}/share
func (h *FunnelHandler) Share(w http.ResponseWriter, r *http.Request) {
	funnel, err := h.funnels.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	JSONResponse(w, h.log, http.StatusOK, ShareResponse{URL: h.baseURL + "/play/" + funnel.ID})
}
