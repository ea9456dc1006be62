package api

import (
	"encoding/json"
	"strings"

	"github.com/septivank/meter-reading-service/internal/reading"
)

// Layout of measure_datetime in responses.
const responseTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// UploadRequest is the body of POST /upload. Fields are kept raw so that a
// value of the wrong type is reported by the check of that field.
type UploadRequest struct {
	Image           json.RawMessage `json:"image"`
	CustomerCode    json.RawMessage `json:"customer_code"`
	MeasureDatetime json.RawMessage `json:"measure_datetime"`
	MeasureType     json.RawMessage `json:"measure_type"`
}

func (req UploadRequest) toCreateInput() reading.CreateInput {
	var in reading.CreateInput
	field := func(name string, raw json.RawMessage) string {
		value, isString := stringField(raw)
		if !isString {
			in.NonString = append(in.NonString, name)
		}
		return value
	}
	in.Image = field(reading.FieldImage, req.Image)
	in.CustomerCode = field(reading.FieldCustomerCode, req.CustomerCode)
	in.MeasureDatetime = field(reading.FieldMeasureDatetime, req.MeasureDatetime)
	in.MeasureType = field(reading.FieldMeasureType, req.MeasureType)
	return in
}

// stringField reads a raw JSON value. Absent, null, false and zero count as
// missing; any other non-string value is returned as its JSON text with
// isString false.
func stringField(raw json.RawMessage) (value string, isString bool) {
	trimmed := strings.TrimSpace(string(raw))
	switch trimmed {
	case "", "null", "false":
		return "", true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil && n == 0 {
		return "", true
	}
	return trimmed, false
}

// UploadResponse is returned after a reading is created.
type UploadResponse struct {
	ImageURL     string `json:"image_url"`
	MeasureValue int64  `json:"measure_value"`
	MeasureUUID  string `json:"measure_uuid"`
}

// ConfirmRequest is the body of PATCH /confirm. ConfirmedValue is kept raw
// so that absent, null, numeric and string inputs can be told apart.
type ConfirmRequest struct {
	MeasureUUID    string          `json:"measure_uuid"`
	ConfirmedValue json.RawMessage `json:"confirmed_value"`
}

// ConfirmResponse is returned after a reading is confirmed.
type ConfirmResponse struct {
	Success bool `json:"success"`
}

// MeasureDTO is one entry of a list response.
type MeasureDTO struct {
	MeasureUUID     string `json:"measure_uuid"`
	MeasureDatetime string `json:"measure_datetime"`
	MeasureType     string `json:"measure_type"`
	HasConfirmed    bool   `json:"has_confirmed"`
	ImageURL        string `json:"image_url"`
}

// ListResponse is the body of GET /{customer_code}/list.
type ListResponse struct {
	CustomerCode string       `json:"customer_code"`
	Measures     []MeasureDTO `json:"measures"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func confirmedValue(raw json.RawMessage) reading.ConfirmedValue {
	if len(raw) == 0 || string(raw) == "null" {
		return reading.ConfirmedValue{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return reading.ConfirmedValue{Raw: s, Present: true}
	}
	return reading.ConfirmedValue{Raw: string(raw), Present: true}
}

func toMeasureDTO(r reading.Reading) MeasureDTO {
	return MeasureDTO{
		MeasureUUID:     r.ID.String(),
		MeasureDatetime: r.MeasuredAt.UTC().Format(responseTimeLayout),
		MeasureType:     string(r.Category),
		HasConfirmed:    r.Confirmed,
		ImageURL:        r.ImageURL,
	}
}

func toMeasureDTOs(readings []reading.Reading) []MeasureDTO {
	out := make([]MeasureDTO, 0, len(readings))
	for _, r := range readings {
		out = append(out, toMeasureDTO(r))
	}
	return out
}
