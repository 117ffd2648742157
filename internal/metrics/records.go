package metrics

import (
	"math"
	"strings"
	"time"

	"eon-server/internal/database"
)

// FromHeartRates converts stored heart-rate rows into aggregator records.
func FromHeartRates(rows []database.HeartRateMeasurement) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record{
			Timestamp: r.Timestamp.Time.UTC().Format(time.RFC3339Nano),
			Value:     float64(r.Bpm),
		})
	}
	return out
}

// FromStepCounts converts stored daily step rows into aggregator records.
func FromStepCounts(rows []database.StepCount) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record{
			Timestamp: r.Date.Time.Format("2006-01-02"),
			Value:     float64(r.StepCount),
		})
	}
	return out
}

// FromSleepRecords converts stored sleep intervals into aggregator records.
func FromSleepRecords(rows []database.SleepRecord) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record{
			Timestamp: r.StartTime.Time.UTC().Format(time.RFC3339Nano),
			End:       r.EndTime.Time.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}

const (
	MeasurementHeight = "height"
	MeasurementWeight = "weight"
	MeasurementBMI    = "bmi"
)

// DeriveBMI computes body-mass index from the latest height and weight rows.
// It returns false when either is missing or unusable.
func DeriveBMI(latest []database.BodyMeasurement) (float64, bool) {
	var height, weight *database.BodyMeasurement
	for i := range latest {
		switch strings.ToLower(latest[i].MeasurementType) {
		case MeasurementHeight:
			height = &latest[i]
		case MeasurementWeight:
			weight = &latest[i]
		}
	}
	if height == nil || weight == nil {
		return 0, false
	}

	meters := heightInMeters(height.Value, height.Unit.String)
	kilos := weightInKilograms(weight.Value, weight.Unit.String)
	if meters <= 0 || kilos <= 0 {
		return 0, false
	}

	bmi := kilos / (meters * meters)
	return math.Round(bmi*10) / 10, true
}

func heightInMeters(v float64, unit string) float64 {
	switch strings.ToLower(unit) {
	case "cm":
		return v / 100
	case "in":
		return v * 0.0254
	case "ft":
		return v * 0.3048
	case "m":
		return v
	}
	// Unitless values above 3 are almost certainly centimetres.
	if v > 3 {
		return v / 100
	}
	return v
}

func weightInKilograms(v float64, unit string) float64 {
	switch strings.ToLower(unit) {
	case "lb", "lbs":
		return v * 0.45359237
	case "g":
		return v / 1000
	}
	return v
}
