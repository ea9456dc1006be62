package reading

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestAsError(t *testing.T) {
	wrapped := fmt.Errorf("create: %w", DoubleReport())

	e, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeDoubleReport, e.Code)

	_, ok = AsError(errors.New("boom"))
	assert.False(t, ok)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "INVALID_DATA: invalid image format", InvalidData(DescInvalidImage).Error())
	assert.Equal(t, "MEASURE_NOT_FOUND", MeasureNotFound().Error())
}

func TestConstructorCodes(t *testing.T) {
	tests := map[Code]*Error{
		CodeInvalidData:           InvalidData(DescMissingData),
		CodeInvalidType:           InvalidType(),
		CodeDoubleReport:          DoubleReport(),
		CodeConfirmationDuplicate: ConfirmationDuplicate(),
		CodeMeasureNotFound:       MeasureNotFound(),
		CodeMeasuresNotFound:      MeasuresNotFound(),
	}
	for code, err := range tests {
		assert.Equal(t, code, err.Code)
	}
	assert.Empty(t, DoubleReport().Description)
}

func TestStoreError(t *testing.T) {
	cause := errors.New("connection reset")
	err := StoreError("failed to insert reading", cause)

	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to insert reading")
	assert.Contains(t, err.Error(), "connection reset")
}
