package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/septivank/meter-reading-service/internal/logging"
	"github.com/septivank/meter-reading-service/internal/reading"
	"go.uber.org/zap"
)

// Service is the reading lifecycle exposed over HTTP.
type Service interface {
	CreateReading(ctx context.Context, in reading.CreateInput) (*reading.Reading, error)
	ConfirmReading(ctx context.Context, id string, value reading.ConfirmedValue) error
	ListReadings(ctx context.Context, customerCode, measureType string) ([]reading.Reading, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	service   Service
	bodyLimit int64
	logger    *zap.Logger
}

// NewHandler creates a new handler. A bodyLimit of 0 leaves bodies unbounded.
func NewHandler(service Service, bodyLimit int64, logger *zap.Logger) *Handler {
	return &Handler{
		service:   service,
		bodyLimit: bodyLimit,
		logger:    logger,
	}
}

// Upload handles POST /upload.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.service.CreateReading(r.Context(), req.toCreateInput())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		ImageURL:     created.ImageURL,
		MeasureValue: created.Value,
		MeasureUUID:  created.ID.String(),
	})
}

// Confirm handles PATCH /confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.ConfirmReading(r.Context(), req.MeasureUUID, confirmedValue(req.ConfirmedValue)); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ConfirmResponse{Success: true})
}

// List handles GET /{customer_code}/list.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	customerCode := chi.URLParam(r, "customer_code")
	measureType := r.URL.Query().Get("measure_type")

	readings, err := h.service.ListReadings(r.Context(), customerCode, measureType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{
		CustomerCode: customerCode,
		Measures:     toMeasureDTOs(readings),
	})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// decode reads a JSON body. Syntax and type errors become INVALID_DATA; an
// over-limit body is returned as is.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := r.Body
	if h.bodyLimit > 0 {
		body = http.MaxBytesReader(w, r.Body, h.bodyLimit)
	}

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return reading.InvalidData(reading.DescMissingData)
	}
	return nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context(), h.logger).Error("request failed",
			zap.Error(err),
			zap.String("error_code", resp.ErrorCode),
			zap.String("path", r.URL.Path),
		)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
