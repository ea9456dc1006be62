package api

import (
	"errors"
	"net/http"

	"github.com/septivank/meter-reading-service/internal/reading"
)

// Codes produced at the HTTP boundary, outside the business set.
const (
	CodeDatabaseError   = "DATABASE_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeRateLimited     = "RATE_LIMITED"
)

const (
	descInvalidType           = "measurement type not allowed"
	descDoubleReport          = "reading for this month already taken"
	descConfirmationDuplicate = "reading already confirmed"
	descMeasureNotFound       = "reading not found"
	descMeasuresNotFound      = "no readings found"
	descDatabaseError         = "a database error occurred"
	descInternalError         = "internal server error"
	descPayloadTooLarge       = "request body too large"
	descRateLimited           = "too many requests"
)

// errorStatus maps err to an HTTP status and response body.
func errorStatus(err error) (int, ErrorResponse) {
	if e, ok := reading.AsError(err); ok {
		return businessStatus(e)
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, ErrorResponse{ErrorCode: CodePayloadTooLarge, ErrorDescription: descPayloadTooLarge}
	case errors.Is(err, reading.ErrStore):
		return http.StatusInternalServerError, ErrorResponse{ErrorCode: CodeDatabaseError, ErrorDescription: descDatabaseError}
	default:
		return http.StatusInternalServerError, ErrorResponse{ErrorCode: CodeInternalError, ErrorDescription: descInternalError}
	}
}

func businessStatus(e *reading.Error) (int, ErrorResponse) {
	resp := ErrorResponse{ErrorCode: string(e.Code), ErrorDescription: e.Description}

	var status int
	switch e.Code {
	case reading.CodeInvalidData:
		status = http.StatusBadRequest
		if resp.ErrorDescription == "" {
			resp.ErrorDescription = reading.DescMissingData
		}
	case reading.CodeInvalidType:
		status = http.StatusBadRequest
		resp.ErrorDescription = descInvalidType
	case reading.CodeDoubleReport:
		status = http.StatusConflict
		resp.ErrorDescription = descDoubleReport
	case reading.CodeConfirmationDuplicate:
		status = http.StatusConflict
		resp.ErrorDescription = descConfirmationDuplicate
	case reading.CodeMeasureNotFound:
		status = http.StatusNotFound
		resp.ErrorDescription = descMeasureNotFound
	case reading.CodeMeasuresNotFound:
		status = http.StatusNotFound
		resp.ErrorDescription = descMeasuresNotFound
	default:
		status = http.StatusInternalServerError
		if resp.ErrorDescription == "" {
			resp.ErrorDescription = descInternalError
		}
	}
	return status, resp
}
