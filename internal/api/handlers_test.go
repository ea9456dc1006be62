package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/septivank/meter-reading-service/internal/anomaly"
	"github.com/septivank/meter-reading-service/internal/config"
	"github.com/septivank/meter-reading-service/internal/imagestore"
	"github.com/septivank/meter-reading-service/internal/mq"
	"github.com/septivank/meter-reading-service/internal/reading"
	"github.com/septivank/meter-reading-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const validPNG = "data:image/png;base64,iVBORw0KGgo="

type mockRecognizer struct {
	mock.Mock
}

func (m *mockRecognizer) Upload(ctx context.Context, path, mediaType, displayName string) (reading.UploadedImage, error) {
	args := m.Called(ctx, path, mediaType, displayName)
	return args.Get(0).(reading.UploadedImage), args.Error(1)
}

func (m *mockRecognizer) Extract(ctx context.Context, image reading.UploadedImage) (string, error) {
	args := m.Called(ctx, image)
	return args.String(0), args.Error(1)
}

func testHTTPConfig() config.HTTPConfig {
	return config.HTTPConfig{
		BodyLimitBytes: 1 << 20,
		AllowedOrigins: []string{"*"},
	}
}

func newTestRouter(t *testing.T, recognizer reading.Recognizer, httpCfg config.HTTPConfig) *chi.Mux {
	t.Helper()

	cfg := &config.Config{
		HTTP:    httpCfg,
		Gemini:  config.GeminiConfig{Timeout: 5 * time.Second},
		Anomaly: config.AnomalyConfig{HistoryLimit: 10},
	}
	manager := reading.NewManager(
		repository.NewMemory(),
		imagestore.New(t.TempDir()),
		recognizer,
		anomaly.NewDetector(3.0, 3),
		mq.NoopPublisher{},
		cfg,
		zap.NewNop(),
	)
	return NewRouter(NewHandler(manager, httpCfg.BodyLimitBytes, zap.NewNop()), httpCfg, zap.NewNop())
}

func recognizing(answer string) *mockRecognizer {
	r := &mockRecognizer{}
	uploaded := reading.UploadedImage{URI: "https://files.example/abc", MediaType: "image/png"}
	r.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(uploaded, nil)
	r.On("Extract", mock.Anything, uploaded).Return(answer, nil)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func uploadBody(customerCode, datetime, measureType string) string {
	b, _ := json.Marshal(map[string]string{
		"image":            validPNG,
		"customer_code":    customerCode,
		"measure_datetime": datetime,
		"measure_type":     measureType,
	})
	return string(b)
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code, description string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, code, resp.ErrorCode)
	assert.Equal(t, description, resp.ErrorDescription)
}

func TestUploadConfirmList(t *testing.T) {
	router := newTestRouter(t, recognizing("100"), testHTTPConfig())

	rec := do(t, router, http.MethodPost, "/upload", uploadBody("1234", "2023-08-28T00:00:00.000Z", "WATER"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	uploaded := decodeBody[UploadResponse](t, rec)
	assert.Equal(t, "https://files.example/abc", uploaded.ImageURL)
	assert.Equal(t, int64(100), uploaded.MeasureValue)
	require.NotEmpty(t, uploaded.MeasureUUID)

	rec = do(t, router, http.MethodGet, "/1234/list?measure_type=water", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decodeBody[ListResponse](t, rec)
	assert.Equal(t, "1234", list.CustomerCode)
	require.Len(t, list.Measures, 1)
	assert.Equal(t, MeasureDTO{
		MeasureUUID:     uploaded.MeasureUUID,
		MeasureDatetime: "2023-08-28T00:00:00.000Z",
		MeasureType:     "WATER",
		HasConfirmed:    false,
		ImageURL:        "https://files.example/abc",
	}, list.Measures[0])

	rec = do(t, router, http.MethodPatch, "/confirm",
		fmt.Sprintf(`{"measure_uuid": %q, "confirmed_value": 150}`, uploaded.MeasureUUID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[ConfirmResponse](t, rec).Success)

	rec = do(t, router, http.MethodPatch, "/confirm",
		fmt.Sprintf(`{"measure_uuid": %q, "confirmed_value": 200}`, uploaded.MeasureUUID))
	assertError(t, rec, http.StatusConflict, "CONFIRMATION_DUPLICATE", "reading already confirmed")

	rec = do(t, router, http.MethodGet, "/1234/list?measure_type=WATER", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list = decodeBody[ListResponse](t, rec)
	require.Len(t, list.Measures, 1)
	assert.True(t, list.Measures[0].HasConfirmed)
}

func TestUpload_DoubleReport(t *testing.T) {
	router := newTestRouter(t, recognizing("100"), testHTTPConfig())

	rec := do(t, router, http.MethodPost, "/upload", uploadBody("1234", "2023-08-28T00:00:00Z", "GAS"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/upload", uploadBody("1234", "2023-08-02T00:00:00Z", "GAS"))
	assertError(t, rec, http.StatusConflict, "DOUBLE_REPORT", "reading for this month already taken")
}

func TestUpload_ValidationErrors(t *testing.T) {
	router := newTestRouter(t, &mockRecognizer{}, testHTTPConfig())

	tests := []struct {
		name string
		body string
		desc string
	}{
		{name: "malformed json", body: `{"image":`, desc: "missing or invalid data"},
		{name: "numeric image and nothing else", body: `{"image": 12}`, desc: "missing or invalid data"},
		{name: "missing fields", body: `{}`, desc: "missing or invalid data"},
		{
			name: "image without prefix",
			body: `{"image":"iVBORw0KGgo=","customer_code":"1234","measure_datetime":"2023-08-28","measure_type":"WATER"}`,
			desc: "invalid image format",
		},
		{
			name: "unknown measure type",
			body: uploadBody("1234", "2023-08-28", "POWER"),
			desc: "invalid measurement type",
		},
		{
			name: "numeric image",
			body: `{"image":12,"customer_code":"1234","measure_datetime":"2023-08-28","measure_type":"WATER"}`,
			desc: "invalid image format",
		},
		{
			name: "numeric customer code",
			body: `{"image":"` + validPNG + `","customer_code":1234,"measure_datetime":"2023-08-28","measure_type":"WATER"}`,
			desc: "invalid customer code format",
		},
		{
			name: "zero customer code",
			body: `{"image":"` + validPNG + `","customer_code":0,"measure_datetime":"2023-08-28","measure_type":"WATER"}`,
			desc: "missing or invalid data",
		},
		{
			name: "numeric measure datetime",
			body: `{"image":"` + validPNG + `","customer_code":"1234","measure_datetime":1693180800000,"measure_type":"WATER"}`,
			desc: "invalid measurement timestamp format",
		},
		{
			name: "array measure type",
			body: `{"image":"` + validPNG + `","customer_code":"1234","measure_datetime":"2023-08-28","measure_type":["WATER"]}`,
			desc: "invalid measurement type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/upload", tt.body)
			assertError(t, rec, http.StatusBadRequest, "INVALID_DATA", tt.desc)
		})
	}
}

func TestUpload_RecognitionFailureIsInternalError(t *testing.T) {
	recognizer := &mockRecognizer{}
	recognizer.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(reading.UploadedImage{}, errors.New("provider unavailable"))
	router := newTestRouter(t, recognizer, testHTTPConfig())

	rec := do(t, router, http.MethodPost, "/upload", uploadBody("1234", "2023-08-28", "WATER"))
	assertError(t, rec, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	assert.NotContains(t, rec.Body.String(), "provider unavailable")
}

func TestUpload_BodyTooLarge(t *testing.T) {
	cfg := testHTTPConfig()
	cfg.BodyLimitBytes = 64
	router := newTestRouter(t, &mockRecognizer{}, cfg)

	rec := do(t, router, http.MethodPost, "/upload", uploadBody("1234", "2023-08-28", "WATER")+strings.Repeat(" ", 64))
	assertError(t, rec, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large")
}

func TestConfirm_Errors(t *testing.T) {
	router := newTestRouter(t, &mockRecognizer{}, testHTTPConfig())

	tests := []struct {
		name   string
		body   string
		status int
		code   string
		desc   string
	}{
		{
			name:   "missing confirmed value",
			body:   `{"measure_uuid":"6f1c5f3e-8a52-4c1b-9d59-2d4f0c7a9b10"}`,
			status: http.StatusBadRequest, code: "INVALID_DATA", desc: "missing or invalid data",
		},
		{
			name:   "null confirmed value",
			body:   `{"measure_uuid":"6f1c5f3e-8a52-4c1b-9d59-2d4f0c7a9b10","confirmed_value":null}`,
			status: http.StatusBadRequest, code: "INVALID_DATA", desc: "missing or invalid data",
		},
		{
			name:   "malformed id",
			body:   `{"measure_uuid":"abc","confirmed_value":10}`,
			status: http.StatusBadRequest, code: "INVALID_DATA", desc: "invalid identifier format",
		},
		{
			name:   "non numeric value",
			body:   `{"measure_uuid":"6f1c5f3e-8a52-4c1b-9d59-2d4f0c7a9b10","confirmed_value":"ten"}`,
			status: http.StatusBadRequest, code: "INVALID_DATA", desc: "invalid confirmation value",
		},
		{
			name:   "object value",
			body:   `{"measure_uuid":"6f1c5f3e-8a52-4c1b-9d59-2d4f0c7a9b10","confirmed_value":{}}`,
			status: http.StatusBadRequest, code: "INVALID_DATA", desc: "invalid confirmation value",
		},
		{
			name:   "unknown reading",
			body:   `{"measure_uuid":"6f1c5f3e-8a52-4c1b-9d59-2d4f0c7a9b10","confirmed_value":"10"}`,
			status: http.StatusNotFound, code: "MEASURE_NOT_FOUND", desc: "reading not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPatch, "/confirm", tt.body)
			assertError(t, rec, tt.status, tt.code, tt.desc)
		})
	}
}

func TestList_Errors(t *testing.T) {
	router := newTestRouter(t, &mockRecognizer{}, testHTTPConfig())

	rec := do(t, router, http.MethodGet, "/1234/list?measure_type=INVALID_TYPE", "")
	assertError(t, rec, http.StatusBadRequest, "INVALID_TYPE", "measurement type not allowed")

	rec = do(t, router, http.MethodGet, "/1234/list?measure_type=WATER", "")
	assertError(t, rec, http.StatusNotFound, "MEASURES_NOT_FOUND", "no readings found")

	rec = do(t, router, http.MethodGet, "/1234/list", "")
	assertError(t, rec, http.StatusBadRequest, "INVALID_DATA", "missing or invalid data")
}

func TestRateLimit(t *testing.T) {
	cfg := testHTTPConfig()
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	router := newTestRouter(t, &mockRecognizer{}, cfg)

	rec := do(t, router, http.MethodGet, "/1234/list?measure_type=WATER", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/1234/list?measure_type=WATER", "")
	assertError(t, rec, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")

	// Health checks are not limited
	rec = do(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, &mockRecognizer{}, testHTTPConfig())

	rec := do(t, router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[HealthResponse](t, rec).Status)

	rec = do(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "meter_reading_http_requests_total")
}

func TestErrorStatus_StoreFailure(t *testing.T) {
	status, resp := errorStatus(reading.StoreError("failed to insert reading", errors.New("disk full")))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, ErrorResponse{ErrorCode: "DATABASE_ERROR", ErrorDescription: "a database error occurred"}, resp)
}
