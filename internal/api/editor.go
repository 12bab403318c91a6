package api

import (
	"io"
	"net/http"
	"strconv"

	apperrors "quiz-funnels/internal/common/errors"
	"quiz-funnels/internal/common/logger"
	"quiz-funnels/internal/editor"
)

// maxImportSize bounds uploaded question files.
const maxImportSize = 1 << 20

type EditorHandler struct {
	editors *editor.Manager
	log     logger.Logger
}

func NewEditorHandler(editors *editor.Manager, log logger.Logger) *EditorHandler {
	return &EditorHandler{editors: editors, log: log}
}

type NavigateRequest struct {
	View editor.View `json:"view"`
}

type ImportResponse struct {
	Imported int             `json:"imported"`
	Session  editor.Snapshot `json:"session"`
}

// Open handles POST /v1/funnels/{id}/editor
func (h *EditorHandler) Open(w http.ResponseWriter, r *http.Request) {
	session, err := h.editors.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	JSONResponse(w, h.log, http.StatusCreated, session.Snapshot())
}

// Get handles GET /v1/editor/{sid}
func (h *EditorHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(s *editor.Session) error { return nil })
}

// Close handles DELETE /v1/editor/{sid}. Pending changes are flushed first.
func (h *EditorHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.editors.Close(r.Context(), r.PathValue("sid")); err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Navigate handles POST /v1/editor/{sid}/navigate
func (h *EditorHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	h.with(w, r, func(s *editor.Session) error { return s.Navigate(req.View) })
}

// AddQuestion handles POST /v1/editor/{sid}/questions
func (h *EditorHandler) AddQuestion(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(s *editor.Session) error {
		_, err := s.AddQuestion()
		return err
	})
}

// EditQuestion handles POST /v1/editor/{sid}/questions/{index}/edit
func (h *EditorHandler) EditQuestion(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		ErrorResponse(w, h.log, apperrors.NewValidationError("Question index must be a number", r.PathValue("index")))
		return
	}
	h.with(w, r, func(s *editor.Session) error { return s.EditQuestion(index) })
}

// SaveQuestion handles PUT /v1/editor/{sid}/questions/current
func (h *EditorHandler) SaveQuestion(w http.ResponseWriter, r *http.Request) {
	var draft editor.QuestionDraft
	if err := ParseJSONBody(r, &draft); err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	h.with(w, r, func(s *editor.Session) error { return s.SaveQuestion(draft) })
}

// CancelQuestion handles POST /v1/editor/{sid}/questions/cancel
func (h *EditorHandler) CancelQuestion(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(s *editor.Session) error { return s.CancelQuestion() })
}

// DeleteQuestion handles DELETE /v1/editor/{sid}/questions/current?confirm=true
func (h *EditorHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(s *editor.Session) error { return s.DeleteQuestion(confirmed(r)) })
}

// ImportQuestions handles POST /v1/editor/{sid}/questions/import. The body
// is the raw uploaded file.
func (h *EditorHandler) ImportQuestions(w http.ResponseWriter, r *http.Request) {
	session, err := h.editors.Get(r.PathValue("sid"))
	if err != nil {
		ErrorResponse(w, h.log, err)
		return
	}

	defer r.Body.Close()
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportSize))
	if err != nil {
		ErrorResponse(w, h.log, apperrors.NewFormatError("Could not read the uploaded file", err.Error()))
		return
	}

	n, err := session.ImportQuestions(r.Header.Get("Content-Type"), raw)
	if err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	JSONResponse(w, h.log, http.StatusOK, ImportResponse{Imported: n, Session: session.Snapshot()})
}

// UpdateLinks handles PATCH /v1/editor/{sid}/links
func (h *EditorHandler) UpdateLinks(w http.ResponseWriter, r *http.Request) {
	var patch editor.LinksPatch
	if err := ParseJSONBody(r, &patch); err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	h.with(w, r, func(s *editor.Session) error { return s.UpdateLinks(patch) })
}

// UpdateColors handles PATCH /v1/editor/{sid}/colors
func (h *EditorHandler) UpdateColors(w http.ResponseWriter, r *http.Request) {
	var patch editor.ColorsPatch
	if err := ParseJSONBody(r, &patch); err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	h.with(w, r, func(s *editor.Session) error { return s.UpdateColors(patch) })
}

// Flush handles POST /v1/editor/{sid}/flush
func (h *EditorHandler) Flush(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(s *editor.Session) error { return s.Flush(r.Context()) })
}

// with looks up the session, applies op and answers with the new snapshot.
func (h *EditorHandler) with(w http.ResponseWriter, r *http.Request, op func(*editor.Session) error) {
	session, err := h.editors.Get(r.PathValue("sid"))
	if err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	if err := op(session); err != nil {
		ErrorResponse(w, h.log, err)
		return
	}
	JSONResponse(w, h.log, http.StatusOK, session.Snapshot())
}
