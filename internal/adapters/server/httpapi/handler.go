// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/evanschultz/tally/internal/adapters/server/common"
	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/report"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// ActorHeader names the request header that attributes writes to a user.
const ActorHeader = "X-Tally-Actor"

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	service common.Service
	router  chi.Router
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs the HTTP API adapter over one transport service.
func NewHandler(service common.Service) *Handler {
	h := &Handler{service: service}
	if service == nil {
		return h
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(actorFromHeader)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, APIError{Code: "not_found", Message: "endpoint not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, APIError{Code: "method_not_allowed", Message: "method not allowed"})
	})

	r.Get("/locations", h.handleListLocations)
	r.Post("/locations", h.handleCreateLocation)

	r.Get("/products", h.handleListProducts)
	r.Post("/products", h.handleCreateProduct)
	r.Post("/products/{id}/active", h.handleSetProductActive)

	r.Get("/stock", h.handleListStock)
	r.Post("/stock", h.handleSetStock)
	r.Get("/stock/adjustments", h.handleListStockAdjustments)

	r.Get("/sessions", h.handleListSessions)
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions/{id}", h.handleGetSession)
	r.Delete("/sessions/{id}", h.handleDeleteSession)
	r.Post("/sessions/{id}/start", h.sessionTransition(h.service.StartSession))
	r.Post("/sessions/{id}/reopen", h.sessionTransition(h.service.ReopenSession))
	r.Post("/sessions/{id}/cancel", h.sessionTransition(h.service.CancelSession))
	r.Get("/sessions/{id}/items", h.handleListItems)
	r.Get("/sessions/{id}/progress", h.handleSessionProgress)
	r.Post("/sessions/{id}/reconcile", h.handleReconcile)
	r.Get("/sessions/{id}/report.xlsx", h.handleSessionReportXLSX)

	r.Post("/items/{id}/count", h.handleRecordCount)

	h.router = r
	return h
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "count service is not configured",
		})
		return
	}
	h.router.ServeHTTP(w, r)
}

func (h *Handler) handleListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.ListLocations(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locations})
}

func (h *Handler) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var req common.CreateLocationRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	location, err := h.service.CreateLocation(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, location)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	includeInactive, err := parseBoolQuery(r, "include_inactive")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	products, err := h.service.ListProducts(r.Context(), includeInactive)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req common.CreateProductRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	product, err := h.service.CreateProduct(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

// handleSetProductActive serves POST `/products/{id}/active`.
func (h *Handler) handleSetProductActive(w http.ResponseWriter, r *http.Request) {
	var req common.SetProductActiveRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	product, err := h.service.SetProductActive(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) handleListStock(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListStock(r.Context(), strings.TrimSpace(r.URL.Query().Get("location_id")))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock": records})
}

func (h *Handler) handleSetStock(w http.ResponseWriter, r *http.Request) {
	var req common.SetStockRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	adjustment, err := h.service.SetStock(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, adjustment)
}

func (h *Handler) handleListStockAdjustments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeErrorFrom(w, fmt.Errorf("limit must be an integer: %w", common.ErrInvalidRequest))
			return
		}
		limit = parsed
	}
	adjustments, err := h.service.ListStockAdjustments(r.Context(), common.ListStockAdjustmentsRequest{
		ProductID:  strings.TrimSpace(r.URL.Query().Get("product_id")),
		LocationID: strings.TrimSpace(r.URL.Query().Get("location_id")),
		Limit:      limit,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"adjustments": adjustments})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.ListSessions(r.Context(), common.ListSessionsRequest{
		Status:     r.URL.Query().Get("status"),
		LocationID: r.URL.Query().Get("location_id"),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req common.CreateSessionRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	session, err := h.service.CreateSession(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionTransition adapts one id-only session state change into a handler.
func (h *Handler) sessionTransition(fn func(context.Context, string) (common.Session, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := fn(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

// handleListItems serves GET `/sessions/{id}/items?status=counted&variance=with`.
func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	statuses := make([]string, 0)
	for _, raw := range query["status"] {
		statuses = append(statuses, strings.Split(raw, ",")...)
	}
	items, err := h.service.ListItems(r.Context(), common.ListItemsRequest{
		SessionID: chi.URLParam(r, "id"),
		Statuses:  statuses,
		Variance:  query.Get("variance"),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleSessionProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.service.SessionProgress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req common.ReconcileRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.SessionID = chi.URLParam(r, "id")
	result, err := h.service.Reconcile(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSessionReportXLSX serves GET `/sessions/{id}/report.xlsx` as a download.
func (h *Handler) handleSessionReportXLSX(w http.ResponseWriter, r *http.Request) {
	rep, err := h.service.SessionReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, rep); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.Header().Set("Content-Type", report.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(rep)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleRecordCount serves POST `/items/{id}/count`.
func (h *Handler) handleRecordCount(w http.ResponseWriter, r *http.Request) {
	var req common.RecordCountRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.ItemID = chi.URLParam(r, "id")
	item, err := h.service.RecordCount(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func parseBoolQuery(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, common.ErrInvalidRequest)
	}
	return value, nil
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidState):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "invalid_state",
			Message: err.Error(),
			Hint:    "Check the session status before retrying.",
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

// actorFromHeader attaches the ActorHeader value to the request context.
func actorFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := strings.TrimSpace(r.Header.Get(ActorHeader)); actor != "" {
			r = r.WithContext(app.WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}
