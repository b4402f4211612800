package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/noteflow/noteflow/internal/domain"
	"github.com/noteflow/noteflow/internal/usecase"
)

// AuditHandler exposes the audit trail's query side.
type AuditHandler struct {
	audits *usecase.AuditUseCase
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(audits *usecase.AuditUseCase) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// RegisterRoutes mounts the audit endpoints on router.
func (h *AuditHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/audit/range", h.DateRange).Methods("GET")
	router.HandleFunc("/api/audit/events/{eventType}", h.ByEventType).Methods("GET")
	router.HandleFunc("/api/audit/{entityType}", h.ByEntityType).Methods("GET")
	router.HandleFunc("/api/audit/{entityType}/{entityId}", h.ByEntity).Methods("GET")
}

func (h *AuditHandler) ByEntity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	records, err := h.audits.EntityHistory(r.Context(), vars["entityType"], vars["entityId"])
	if err != nil {
		Error(w, err)
		return
	}
	writeRecords(w, records)
}

func (h *AuditHandler) ByEntityType(w http.ResponseWriter, r *http.Request) {
	records, err := h.audits.EntityTypeHistory(r.Context(), mux.Vars(r)["entityType"])
	if err != nil {
		Error(w, err)
		return
	}
	writeRecords(w, records)
}

func (h *AuditHandler) ByEventType(w http.ResponseWriter, r *http.Request) {
	records, err := h.audits.EventHistory(r.Context(), domain.EventType(mux.Vars(r)["eventType"]))
	if err != nil {
		ErrorMessage(w, http.StatusBadRequest, "Unknown event type")
		return
	}
	writeRecords(w, records)
}

func (h *AuditHandler) DateRange(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		ErrorMessage(w, http.StatusBadRequest, "Invalid start time, expected RFC3339")
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		ErrorMessage(w, http.StatusBadRequest, "Invalid end time, expected RFC3339")
		return
	}

	records, err := h.audits.DateRangeHistory(r.Context(), start, end)
	if err != nil {
		Error(w, err)
		return
	}
	writeRecords(w, records)
}

func writeRecords(w http.ResponseWriter, records []*domain.AuditRecord) {
	if records == nil {
		records = []*domain.AuditRecord{}
	}
	Success(w, http.StatusOK, records)
}
