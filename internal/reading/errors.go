package reading

import (
	"errors"
)

// Code identifies a business failure. The set is closed: the HTTP layer maps
// every value explicitly.
type Code string

const (
	CodeInvalidData           Code = "INVALID_DATA"
	CodeInvalidType           Code = "INVALID_TYPE"
	CodeDoubleReport          Code = "DOUBLE_REPORT"
	CodeConfirmationDuplicate Code = "CONFIRMATION_DUPLICATE"
	CodeMeasureNotFound       Code = "MEASURE_NOT_FOUND"
	CodeMeasuresNotFound      Code = "MEASURES_NOT_FOUND"
)

// Validation failure descriptions.
const (
	DescMissingData         = "missing or invalid data"
	DescInvalidImage        = "invalid image format"
	DescInvalidCustomerCode = "invalid customer code format"
	DescInvalidTimestamp    = "invalid measurement timestamp format"
	DescInvalidMeasureType  = "invalid measurement type"
	DescInvalidIdentifier   = "invalid identifier format"
	DescInvalidConfirmValue = "invalid confirmation value"
)

// Error is a business rule rejection. Description is only set for
// validation failures.
type Error struct {
	Code        Code
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Description
}

// InvalidData rejects a request field. description names what was wrong.
func InvalidData(description string) *Error {
	return &Error{Code: CodeInvalidData, Description: description}
}

// InvalidType rejects a list filter that is not a known measure type.
func InvalidType() *Error { return &Error{Code: CodeInvalidType} }

// DoubleReport rejects a second reading for the same customer, type and month.
func DoubleReport() *Error { return &Error{Code: CodeDoubleReport} }

// ConfirmationDuplicate rejects confirming a reading twice.
func ConfirmationDuplicate() *Error { return &Error{Code: CodeConfirmationDuplicate} }

// MeasureNotFound reports an unknown reading identifier.
func MeasureNotFound() *Error { return &Error{Code: CodeMeasureNotFound} }

// MeasuresNotFound reports a customer listing with no readings.
func MeasuresNotFound() *Error { return &Error{Code: CodeMeasuresNotFound} }

// AsError extracts a business error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

var (
	// ErrNotFound is returned by Store.FindByID for unknown ids.
	ErrNotFound = errors.New("reading not found")

	// ErrAlreadyConfirmed is returned by Store.Confirm when the reading was
	// confirmed before the update could apply.
	ErrAlreadyConfirmed = errors.New("reading already confirmed")

	// ErrStore tags persistence failures.
	ErrStore = errors.New("record store failure")
)

type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string { return e.op + ": " + e.err.Error() }
func (e *storeError) Unwrap() []error { return []error{ErrStore, e.err} }

// StoreError wraps a persistence failure so that errors.Is(err, ErrStore)
// holds while the driver error stays reachable.
func StoreError(op string, err error) error {
	return &storeError{op: op, err: err}
}
