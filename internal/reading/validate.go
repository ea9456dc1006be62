package reading

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/septivank/meter-reading-service/tools/timeparser"
)

var encodedImagePattern = regexp.MustCompile(`^data:image/(png|jpeg|jpg|webp|heic|heif);base64,[A-Za-z0-9+/]+={0,2}$`)

// IsNonEmptyString reports whether s has content once trimmed.
func IsNonEmptyString(s string) bool {
	return strings.TrimSpace(s) != ""
}

// IsParseableTimestamp reports whether s is a supported measurement timestamp.
func IsParseableTimestamp(s string) bool {
	_, err := timeparser.ParseMeasureTimestamp(s)
	return err == nil
}

// IsKnownCategory reports whether s names a meter kind, ignoring case.
func IsKnownCategory(s string) bool {
	switch NormalizeCategory(s) {
	case CategoryWater, CategoryGas:
		return true
	}
	return false
}

// IsEncodedImage reports whether s is a base64 image data URI of a supported
// media type. Payload size is not limited here.
func IsEncodedImage(s string) bool {
	return encodedImagePattern.MatchString(s)
}

// IsCustomerCode reports whether s is non-empty and free of whitespace.
func IsCustomerCode(s string) bool {
	if !IsNonEmptyString(s) {
		return false
	}
	return strings.IndexFunc(s, unicode.IsSpace) < 0
}

// parseConfirmedValue accepts integral finite numbers only; the value column
// is an integer.
func parseConfirmedValue(raw string) (int64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

// ParseRecognizedValue turns the model's free-form answer into a reading.
// Anything that is not an integer yields 0 and is left for confirmation.
func ParseRecognizedValue(text string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
