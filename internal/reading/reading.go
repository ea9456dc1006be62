// Package reading holds the meter reading lifecycle: validation, duplicate
// period detection, recognition of the submitted photograph and the one-time
// human confirmation of the recognized value.
package reading

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category is the meter kind.
type Category string

const (
	CategoryWater Category = "WATER"
	CategoryGas   Category = "GAS"
)

// NormalizeCategory upper-cases a caller supplied measure type.
func NormalizeCategory(s string) Category {
	return Category(strings.ToUpper(s))
}

// Reading is a single utility meter observation.
type Reading struct {
	ID           uuid.UUID
	CustomerCode string
	Category     Category
	MeasuredAt   time.Time
	Value        int64
	ImageURL     string
	Confirmed    bool
}

// Upload request field names.
const (
	FieldImage           = "image"
	FieldCustomerCode    = "customer_code"
	FieldMeasureDatetime = "measure_datetime"
	FieldMeasureType     = "measure_type"
)

// CreateInput carries the upload request fields as received. NonString names
// the fields that arrived as a value of another type; they fail their format
// check whatever their text.
type CreateInput struct {
	Image           string
	CustomerCode    string
	MeasureDatetime string
	MeasureType     string
	NonString       []string
}

func (in CreateInput) isString(field string) bool {
	return !slices.Contains(in.NonString, field)
}

// ConfirmedValue is the caller supplied replacement value. It stays loosely
// typed until validation: a JSON number, a numeric string, or nothing.
type ConfirmedValue struct {
	Raw     string
	Present bool
}

// Store is the record store for readings.
type Store interface {
	// FindInPeriod returns a reading of the customer and category measured in
	// [from, to), or nil when there is none.
	FindInPeriod(ctx context.Context, customerCode string, category Category, from, to time.Time) (*Reading, error)
	Create(ctx context.Context, r *Reading) error
	// FindByID returns ErrNotFound when no reading has the id.
	FindByID(ctx context.Context, id uuid.UUID) (*Reading, error)
	// Confirm sets value and confirmed together, only on an unconfirmed
	// reading. It returns ErrAlreadyConfirmed when nothing was updated.
	Confirm(ctx context.Context, id uuid.UUID, value int64) error
	List(ctx context.Context, customerCode string, category Category) ([]Reading, error)
	// RecentValues returns up to limit values measured before the given
	// instant, newest first.
	RecentValues(ctx context.Context, customerCode string, category Category, before time.Time, limit int) ([]int64, error)
}

// EventKind names a lifecycle notification.
type EventKind string

const (
	EventCreated   EventKind = "reading.created"
	EventConfirmed EventKind = "reading.confirmed"
)

// Event is emitted after a reading is persisted or confirmed.
type Event struct {
	Kind          EventKind
	Reading       Reading
	SuspectReason string
}

// Notifier delivers lifecycle events to interested parties.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}
