package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/noteflow/noteflow/internal/domain"
	"github.com/noteflow/noteflow/internal/usecase"
)

// ChatHandler exposes the notes Q&A surface backed by the retrieval service.
type ChatHandler struct {
	chat *usecase.ChatUseCase
}

// NewChatHandler creates a chat handler.
func NewChatHandler(chat *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// RegisterRoutes mounts the chat endpoints on router.
func (h *ChatHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/notes/chat", h.Chat).Methods("POST")
	router.HandleFunc("/api/notes/chat/statistics", h.Statistics).Methods("GET")
}

type chatRequest struct {
	Question string `json:"question"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Question == "" {
		ErrorMessage(w, http.StatusBadRequest, "Missing: question")
		return
	}

	result, err := h.chat.Chat(r.Context(), req.Question, UserIDFromContext(r.Context()))
	if err != nil {
		Error(w, err)
		return
	}
	Success(w, http.StatusOK, result)
}

func (h *ChatHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.chat.UsageStatistics(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	if stats == nil {
		stats = []*domain.NoteUsageStat{}
	}
	Success(w, http.StatusOK, stats)
}
