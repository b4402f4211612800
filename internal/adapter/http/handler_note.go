package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/noteflow/noteflow/internal/domain"
	"github.com/noteflow/noteflow/internal/usecase"
	"github.com/noteflow/noteflow/pkg/apperror"
)

// NoteHandler exposes the note CRUD surface.
type NoteHandler struct {
	notes *usecase.NoteUseCase
}

// NewNoteHandler creates a note handler.
func NewNoteHandler(notes *usecase.NoteUseCase) *NoteHandler {
	return &NoteHandler{notes: notes}
}

// RegisterRoutes mounts the note endpoints on router.
func (h *NoteHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/notes", h.List).Methods("GET")
	router.HandleFunc("/api/notes", h.Create).Methods("POST")
	router.HandleFunc("/api/notes/{id}", h.Get).Methods("GET")
	router.HandleFunc("/api/notes/{id}", h.Update).Methods("PUT")
	router.HandleFunc("/api/notes/{id}", h.Delete).Methods("DELETE")
	router.HandleFunc("/api/notes/{id}/duplicate", h.Duplicate).Methods("POST")
}

type noteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == nil || *req.Title == "" {
		ErrorMessage(w, http.StatusBadRequest, "Missing: title")
		return
	}
	content := ""
	if req.Content != nil {
		content = *req.Content
	}

	note, err := h.notes.Create(r.Context(), *req.Title, content, UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	Success(w, http.StatusCreated, note)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.notes.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	Success(w, http.StatusOK, note)
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	notes, err := h.notes.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if notes == nil {
		notes = []*domain.Note{}
	}
	Success(w, http.StatusOK, notes)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	update := domain.NoteUpdate{Title: req.Title, Content: req.Content}
	note, err := h.notes.Update(r.Context(), mux.Vars(r)["id"], update, UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	Success(w, http.StatusOK, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.Delete(r.Context(), mux.Vars(r)["id"], UserIDFromContext(r.Context())); err != nil {
		h.writeError(w, err)
		return
	}
	Success(w, http.StatusOK, nil)
}

func (h *NoteHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	note, err := h.notes.Duplicate(r.Context(), mux.Vars(r)["id"], UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	Success(w, http.StatusCreated, note)
}

func (h *NoteHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNoteNotFound):
		ErrorMessage(w, http.StatusNotFound, "Note not found")
	case errors.Is(err, domain.ErrNoteTitleEmpty), errors.Is(err, domain.ErrNothingToUpdate):
		ErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperror.ErrLockTimeout):
		Error(w, apperror.ErrLockTimeout)
	default:
		Error(w, err)
	}
}
