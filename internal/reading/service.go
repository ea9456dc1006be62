package reading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/meter-reading-service/internal/anomaly"
	"github.com/septivank/meter-reading-service/internal/config"
	"github.com/septivank/meter-reading-service/internal/imagestore"
	"github.com/septivank/meter-reading-service/internal/logging"
	"github.com/septivank/meter-reading-service/internal/metrics"
	"github.com/septivank/meter-reading-service/tools/timeparser"
	"go.uber.org/zap"
)

// Manager runs the reading lifecycle: creation from a photograph,
// confirmation and listing.
type Manager struct {
	store              Store
	images             *imagestore.Store
	recognizer         Recognizer
	detector           *anomaly.Detector
	notifier           Notifier
	recognitionTimeout time.Duration
	historyLimit       int
	logger             *zap.Logger
}

// NewManager creates a new lifecycle manager
func NewManager(
	store Store,
	images *imagestore.Store,
	recognizer Recognizer,
	detector *anomaly.Detector,
	notifier Notifier,
	cfg *config.Config,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		store:              store,
		images:             images,
		recognizer:         recognizer,
		detector:           detector,
		notifier:           notifier,
		recognitionTimeout: cfg.Gemini.Timeout,
		historyLimit:       cfg.Anomaly.HistoryLimit,
		logger:             logger,
	}
}

// CreateReading validates an upload, rejects a second reading for the same
// customer, category and month, runs recognition on the photograph and
// persists the new unconfirmed reading.
func (m *Manager) CreateReading(ctx context.Context, in CreateInput) (*Reading, error) {
	log := logging.FromContext(ctx, m.logger)

	if in.Image == "" || in.CustomerCode == "" || in.MeasureDatetime == "" || in.MeasureType == "" {
		return nil, m.reject("create", InvalidData(DescMissingData))
	}
	if !in.isString(FieldImage) || !IsEncodedImage(in.Image) {
		return nil, m.reject("create", InvalidData(DescInvalidImage))
	}
	if !in.isString(FieldCustomerCode) || !IsCustomerCode(in.CustomerCode) {
		return nil, m.reject("create", InvalidData(DescInvalidCustomerCode))
	}
	if !in.isString(FieldMeasureDatetime) || !IsParseableTimestamp(in.MeasureDatetime) {
		return nil, m.reject("create", InvalidData(DescInvalidTimestamp))
	}
	if !in.isString(FieldMeasureType) || !IsKnownCategory(in.MeasureType) {
		return nil, m.reject("create", InvalidData(DescInvalidMeasureType))
	}

	category := NormalizeCategory(in.MeasureType)
	measuredAt, err := timeparser.ParseMeasureTimestamp(in.MeasureDatetime)
	if err != nil {
		return nil, m.reject("create", InvalidData(DescInvalidTimestamp))
	}

	log = log.With(
		zap.String("customer_code", in.CustomerCode),
		zap.String("measure_type", string(category)),
		zap.Time("measure_datetime", measuredAt),
	)

	// Check-then-create is not atomic; concurrent uploads for the same
	// period may both pass.
	from, to := timeparser.MonthRange(measuredAt)
	existing, err := m.store.FindInPeriod(ctx, in.CustomerCode, category, from, to)
	if err != nil {
		log.Error("failed to look up readings in period", zap.Error(err))
		return nil, err
	}
	if existing != nil {
		log.Info("reading already reported for period", zap.String("measure_uuid", existing.ID.String()))
		return nil, m.reject("create", DoubleReport())
	}

	value, imageURL, err := m.recognize(ctx, log, in.Image, category, in.CustomerCode, measuredAt)
	if err != nil {
		if errors.Is(err, imagestore.ErrUndecodable) {
			return nil, m.reject("create", InvalidData(DescInvalidImage))
		}
		log.Error("recognition failed", zap.Error(err))
		return nil, err
	}

	r := &Reading{
		ID:           uuid.New(),
		CustomerCode: in.CustomerCode,
		Category:     category,
		MeasuredAt:   measuredAt,
		Value:        value,
		ImageURL:     imageURL,
	}
	if err := m.store.Create(ctx, r); err != nil {
		log.Error("failed to persist reading", zap.Error(err))
		return nil, err
	}

	metrics.ReadingCreated(string(category), value != 0)
	log.Info("reading created",
		zap.String("measure_uuid", r.ID.String()),
		zap.Int64("measure_value", value),
	)

	suspect := m.inspect(ctx, log, r, from)
	m.notify(ctx, log, Event{Kind: EventCreated, Reading: *r, SuspectReason: suspect})

	return r, nil
}

// recognize stores the photograph on scratch storage for the duration of
// the provider round trip and parses the provider's answer.
func (m *Manager) recognize(
	ctx context.Context,
	log *zap.Logger,
	encoded string,
	category Category,
	customerCode string,
	measuredAt time.Time,
) (int64, string, error) {
	img, err := m.images.Save(encoded, string(category), customerCode, measuredAt)
	if err != nil {
		return 0, "", fmt.Errorf("failed to save temporary image: %w", err)
	}
	defer func() {
		if err := m.images.Discard(img.Path); err != nil {
			log.Warn("failed to discard temporary image", zap.Error(err), zap.String("path", img.Path))
		}
	}()

	if m.recognitionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.recognitionTimeout)
		defer cancel()
	}

	start := time.Now()
	uploaded, err := m.recognizer.Upload(ctx, img.Path, img.MediaType, DisplayName(category, customerCode, measuredAt))
	if err != nil {
		metrics.ObserveRecognition("upload_error", time.Since(start))
		return 0, "", fmt.Errorf("failed to upload image: %w", err)
	}

	text, err := m.recognizer.Extract(ctx, uploaded)
	if err != nil {
		metrics.ObserveRecognition("extract_error", time.Since(start))
		return 0, "", fmt.Errorf("failed to extract measure value: %w", err)
	}
	metrics.ObserveRecognition("ok", time.Since(start))

	value := ParseRecognizedValue(text)
	if value == 0 {
		log.Info("recognition inconclusive, recording 0", zap.String("answer", text))
	}

	return value, uploaded.URI, nil
}

// inspect runs the anomaly detector against readings before the period of r.
// Failures only cost the verdict.
func (m *Manager) inspect(ctx context.Context, log *zap.Logger, r *Reading, periodStart time.Time) string {
	if m.detector == nil || m.historyLimit <= 0 {
		return ""
	}

	previous, err := m.store.RecentValues(ctx, r.CustomerCode, r.Category, periodStart, m.historyLimit)
	if err != nil {
		log.Warn("failed to get historical readings for anomaly detection", zap.Error(err))
		return ""
	}

	isAnomaly, reason := m.detector.Check(r.Value, previous)
	if !isAnomaly {
		return ""
	}

	metrics.SuspectReading(string(r.Category))
	log.Warn("suspect reading",
		zap.String("measure_uuid", r.ID.String()),
		zap.Int64("measure_value", r.Value),
		zap.String("reason", reason),
	)
	return reason
}

// ConfirmReading replaces the value of an unconfirmed reading and marks it
// confirmed. A reading can be confirmed once.
func (m *Manager) ConfirmReading(ctx context.Context, id string, confirmed ConfirmedValue) error {
	log := logging.FromContext(ctx, m.logger)

	if id == "" || !confirmed.Present {
		return m.reject("confirm", InvalidData(DescMissingData))
	}
	if !IsNonEmptyString(id) {
		return m.reject("confirm", InvalidData(DescInvalidIdentifier))
	}
	readingID, err := uuid.Parse(id)
	if err != nil {
		return m.reject("confirm", InvalidData(DescInvalidIdentifier))
	}
	value, ok := parseConfirmedValue(confirmed.Raw)
	if !ok {
		return m.reject("confirm", InvalidData(DescInvalidConfirmValue))
	}

	log = log.With(zap.String("measure_uuid", readingID.String()))

	r, err := m.store.FindByID(ctx, readingID)
	if errors.Is(err, ErrNotFound) {
		return m.reject("confirm", MeasureNotFound())
	}
	if err != nil {
		log.Error("failed to look up reading", zap.Error(err))
		return err
	}
	if r.Confirmed {
		return m.reject("confirm", ConfirmationDuplicate())
	}

	if err := m.store.Confirm(ctx, readingID, value); err != nil {
		switch {
		case errors.Is(err, ErrAlreadyConfirmed):
			log.Info("reading confirmed concurrently")
			return m.reject("confirm", ConfirmationDuplicate())
		case errors.Is(err, ErrNotFound):
			return m.reject("confirm", MeasureNotFound())
		}
		log.Error("failed to confirm reading", zap.Error(err))
		return err
	}

	r.Value = value
	r.Confirmed = true

	metrics.ReadingConfirmed(string(r.Category))
	log.Info("reading confirmed", zap.Int64("measure_value", value))

	m.notify(ctx, log, Event{Kind: EventConfirmed, Reading: *r})

	return nil
}

// ListReadings returns every reading of a customer for a category.
func (m *Manager) ListReadings(ctx context.Context, customerCode, measureType string) ([]Reading, error) {
	log := logging.FromContext(ctx, m.logger)

	if customerCode == "" || measureType == "" {
		return nil, m.reject("list", InvalidData(DescMissingData))
	}
	if !IsCustomerCode(customerCode) {
		return nil, m.reject("list", InvalidData(DescInvalidCustomerCode))
	}
	if !IsKnownCategory(measureType) {
		return nil, m.reject("list", InvalidType())
	}

	category := NormalizeCategory(measureType)
	readings, err := m.store.List(ctx, customerCode, category)
	if err != nil {
		log.Error("failed to list readings",
			zap.Error(err),
			zap.String("customer_code", customerCode),
			zap.String("measure_type", string(category)),
		)
		return nil, err
	}
	if len(readings) == 0 {
		return nil, m.reject("list", MeasuresNotFound())
	}

	return readings, nil
}

func (m *Manager) notify(ctx context.Context, log *zap.Logger, event Event) {
	if m.notifier == nil {
		return
	}
	// Log error but don't fail the request
	if err := m.notifier.Notify(ctx, event); err != nil {
		log.Error("failed to publish reading event",
			zap.Error(err),
			zap.String("event", string(event.Kind)),
		)
	}
}

func (m *Manager) reject(operation string, err *Error) error {
	metrics.Rejected(operation, string(err.Code))
	return err
}
