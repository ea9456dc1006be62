package reading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEncodedImage(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"data:image/png;base64,iVBORw0KGgo=", true},
		{"data:image/jpeg;base64,/9j/4AAQSkZJRg==", true},
		{"data:image/jpg;base64,/9j/4AAQ", true},
		{"data:image/webp;base64,UklGRg==", true},
		{"data:image/heic;base64,AAAA", true},
		{"data:image/heif;base64,AAAA", true},
		{"data:image/gif;base64,R0lGODlh", false},
		{"data:image/png;base64,", false},
		{"data:image/png;base64,not base64!", false},
		{"iVBORw0KGgo=", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsEncodedImage(tt.input), tt.input)
	}
}

func TestIsCustomerCode(t *testing.T) {
	assert.True(t, IsCustomerCode("1234"))
	assert.True(t, IsCustomerCode("CUST-0001"))
	assert.False(t, IsCustomerCode(""))
	assert.False(t, IsCustomerCode("   "))
	assert.False(t, IsCustomerCode("12 34"))
	assert.False(t, IsCustomerCode("1234\n"))
}

func TestIsKnownCategory(t *testing.T) {
	assert.True(t, IsKnownCategory("WATER"))
	assert.True(t, IsKnownCategory("water"))
	assert.True(t, IsKnownCategory("Gas"))
	assert.False(t, IsKnownCategory("ELECTRICITY"))
	assert.False(t, IsKnownCategory(""))
}

func TestIsParseableTimestamp(t *testing.T) {
	assert.True(t, IsParseableTimestamp("2023-08-28T00:00:00.000Z"))
	assert.True(t, IsParseableTimestamp("2023-08-28"))
	assert.False(t, IsParseableTimestamp("28.08.2023"))
	assert.False(t, IsParseableTimestamp(""))
}

func TestParseConfirmedValue(t *testing.T) {
	tests := []struct {
		raw    string
		want   int64
		wantOK bool
	}{
		{"150", 150, true},
		{" 150 ", 150, true},
		{"150.0", 150, true},
		{"-3", -3, true},
		{"0", 0, true},
		{"1e3", 1000, true},
		{"12.5", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"true", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseConfirmedValue(tt.raw)
		assert.Equal(t, tt.wantOK, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestParseRecognizedValue(t *testing.T) {
	assert.Equal(t, int64(100), ParseRecognizedValue("100"))
	assert.Equal(t, int64(100), ParseRecognizedValue(" 100\n"))
	assert.Equal(t, int64(0), ParseRecognizedValue("ERROR"))
	assert.Equal(t, int64(0), ParseRecognizedValue("about 100"))
	assert.Equal(t, int64(0), ParseRecognizedValue("100.5"))
	assert.Equal(t, int64(0), ParseRecognizedValue(""))
}

func TestDisplayName(t *testing.T) {
	got := DisplayName(CategoryGas, "1234", mustTime(t, "2023-01-05T10:00:00Z"))
	assert.Equal(t, "GAS measure by 1234 - 1/2023", got)
}
