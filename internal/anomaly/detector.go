package anomaly

import (
	"fmt"
)

// Detector handles anomaly detection with configurable thresholds
type Detector struct {
	spikeThreshold            float64
	minDataPointsForDetection int
}

// NewDetector creates a new anomaly detector with the specified thresholds
func NewDetector(spikeThreshold float64, minDataPointsForDetection int) *Detector {
	return &Detector{
		spikeThreshold:            spikeThreshold,
		minDataPointsForDetection: minDataPointsForDetection,
	}
}

// Check inspects a recognized cumulative meter value against previous
// readings of the same meter, newest first.
func (d *Detector) Check(value int64, previous []int64) (bool, string) {
	if value < 0 {
		return true, "negative value"
	}

	// 0 means recognition was inconclusive
	if value == 0 {
		return false, ""
	}

	// Need enough historical data
	if len(previous) == 0 || len(previous) < d.minDataPointsForDetection {
		return false, ""
	}

	latest := previous[0]
	if value < latest {
		return true, fmt.Sprintf("meter regression: value %d is below previous reading %d", value, latest)
	}

	if len(previous) < 2 {
		return false, ""
	}

	// Average consumption between consecutive previous readings
	var sum int64
	for i := 0; i < len(previous)-1; i++ {
		sum += previous[i] - previous[i+1]
	}
	average := float64(sum) / float64(len(previous)-1)

	consumption := float64(value - latest)
	if average > 0 && consumption > d.spikeThreshold*average {
		return true, fmt.Sprintf("sudden spike detected: consumption %.0f exceeds %.1fx average consumption %.2f",
			consumption, d.spikeThreshold, average)
	}

	return false, ""
}
