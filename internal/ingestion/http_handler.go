package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nkapur/unipipe/internal/auth"
	"github.com/nkapur/unipipe/internal/domain"
)

// Handler exposes ingestion as an HTTP endpoint.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with a POST upload endpoint.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	tenantIDRaw := strings.TrimSpace(r.FormValue("tenantId"))
	tenantID, err := uuid.Parse(tenantIDRaw)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid tenant id: %v", err), http.StatusBadRequest)
		return
	}
	if err := auth.EnforceTenantScope(r.Context(), tenantID); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	sourceSystem := strings.TrimSpace(r.FormValue("sourceSystem"))
	if sourceSystem == "" {
		http.Error(w, "sourceSystem is required", http.StatusBadRequest)
		return
	}

	dataKind := domain.DataKindStream
	if strings.EqualFold(strings.TrimSpace(r.FormValue("dataKind")), string(domain.DataKindState)) {
		dataKind = domain.DataKindState
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}

	req := Request{
		TenantID:     tenantID,
		SourceSystem: sourceSystem,
		FileName:     header.Filename,
		DataKind:     dataKind,
		Data:         bytes.NewReader(data),
	}

	summary, err := h.service.Process(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// ReviewHandler accepts a corrected quarantined event from the human-review
// surface and re-submits it as verified.
type ReviewHandler struct {
	service *Service
}

// NewReviewHandler wraps the review path with a POST endpoint.
func NewReviewHandler(service *Service) http.Handler {
	return &ReviewHandler{service: service}
}

type reviewRequest struct {
	Event      domain.UniversalEvent `json:"event"`
	ReviewedBy string                `json:"reviewed_by"`
}

func (h *ReviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Event.EventID == uuid.Nil || req.Event.TenantID == uuid.Nil {
		http.Error(w, "event_id and tenant_id are required", http.StatusBadRequest)
		return
	}
	if err := auth.EnforceTenantScope(r.Context(), req.Event.TenantID); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	summary, err := h.service.Review(r.Context(), &req.Event, req.ReviewedBy)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
