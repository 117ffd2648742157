package healthdata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"eon-server/internal/database"
	"eon-server/internal/metrics"
)

// SyncPayload is the batch a device uploads on sync and onboarding.
type SyncPayload struct {
	DeviceInfo       *DeviceInfo            `json:"device_info" validate:"required"`
	HeartRate        []HeartRateInput       `json:"heart_rate"`
	Steps            []StepInput            `json:"steps"`
	Sleep            []SleepInput           `json:"sleep"`
	Characteristics  CharacteristicsList    `json:"characteristics"`
	BodyMeasurements []BodyMeasurementInput `json:"body_measurements"`
}

type DeviceInfo struct {
	DeviceID    string `json:"device_id" validate:"required"`
	DeviceName  string `json:"device_name"`
	DeviceModel string `json:"device_model"`
	OSVersion   string `json:"os_version"`
}

type HeartRateInput struct {
	Timestamp string  `json:"timestamp"`
	Bpm       float64 `json:"bpm"`
	Source    string  `json:"source"`
	Context   string  `json:"context"`
}

// StepInput keeps step_count raw so one malformed value does not reject the whole body.
type StepInput struct {
	Date      string          `json:"date"`
	StepCount json.RawMessage `json:"step_count"`
	Source    string          `json:"source"`
}

type SleepInput struct {
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	SleepStage string `json:"sleep_stage"`
	Source     string `json:"source"`
}

// CharacteristicsInput carries HealthKit raw values; sex and blood type may be codes or names.
type CharacteristicsInput struct {
	DateOfBirth   string          `json:"date_of_birth"`
	BiologicalSex json.RawMessage `json:"biological_sex"`
	BloodType     json.RawMessage `json:"blood_type"`
}

// CharacteristicsList accepts either a single object or an array of objects.
type CharacteristicsList []CharacteristicsInput

func (l *CharacteristicsList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if b[0] == '{' {
		var one CharacteristicsInput
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*l = CharacteristicsList{one}
		return nil
	}
	var many []CharacteristicsInput
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

type BodyMeasurementInput struct {
	MeasurementType string  `json:"measurement_type"`
	Value           float64 `json:"value"`
	Unit            string  `json:"unit"`
	Timestamp       string  `json:"timestamp"`
	Source          string  `json:"source"`
}

// SyncCounts reports rows written per metric type.
type SyncCounts struct {
	HeartRate        int `json:"heart_rate"`
	Steps            int `json:"steps"`
	Sleep            int `json:"sleep"`
	Characteristics  int `json:"characteristics"`
	BodyMeasurements int `json:"body_measurements"`
}

// SkippedCounts reports records that were accepted but not written.
type SkippedCounts struct {
	Steps            int `json:"steps"`
	BodyMeasurements int `json:"body_measurements"`
}

type SyncResult struct {
	Message    string        `json:"message"`
	DeviceID   int64         `json:"device_id"`
	ExternalID string        `json:"external_device_id"`
	Synced     SyncCounts    `json:"synced"`
	Skipped    SkippedCounts `json:"skipped"`
}

// LatestMetrics is the most recent value of every metric for one device.
type LatestMetrics struct {
	Device           database.Device                `json:"device"`
	HeartRate        *database.HeartRateMeasurement `json:"heart_rate"`
	Steps            *database.StepCount            `json:"steps"`
	Sleep            *database.SleepRecord          `json:"sleep"`
	Characteristics  *database.UserCharacteristic   `json:"characteristics"`
	BodyMeasurements []database.BodyMeasurement     `json:"body_measurements"`
	BMI              *float64                       `json:"bmi"`
}

// RawMetrics is every stored sample in a date range.
type RawMetrics struct {
	StartDate string                          `json:"start_date"`
	EndDate   string                          `json:"end_date"`
	HeartRate []database.HeartRateMeasurement `json:"heart_rate"`
	Steps     []database.StepCount            `json:"steps"`
	Sleep     []database.SleepRecord          `json:"sleep"`
}

// PatientContext is what the risk pipeline needs to describe a device's owner.
type PatientContext struct {
	Device   database.Device
	Overview metrics.Overview
	Notes    []database.UserNote
}

// parseStepCount accepts a JSON number or a numeric string.
func parseStepCount(raw json.RawMessage) (int32, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("missing step_count")
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("step_count %s is not numeric", string(raw))
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("step_count %q is not numeric", s)
		}
	}
	if f < 0 {
		return 0, fmt.Errorf("step_count %v is negative", f)
	}
	if f > float64(1<<31-1) {
		return 0, fmt.Errorf("step_count %v is out of range", f)
	}
	return int32(f), nil
}

var bloodTypes = []string{"notSet", "A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// decodeBiologicalSex maps HealthKit codes (1 female, 2 male) or names to a label.
func decodeBiologicalSex(raw json.RawMessage) (string, bool) {
	code, name, ok := decodeCode(raw)
	if !ok {
		return "", false
	}
	if name != "" {
		switch strings.ToLower(name) {
		case "male", "female":
			return strings.ToLower(name), true
		}
		return "undefined", true
	}
	switch code {
	case 1:
		return "female", true
	case 2:
		return "male", true
	}
	return "undefined", true
}

func decodeBloodType(raw json.RawMessage) (string, bool) {
	code, name, ok := decodeCode(raw)
	if !ok {
		return "", false
	}
	if name != "" {
		return name, true
	}
	if code < 0 || code >= len(bloodTypes) {
		return bloodTypes[0], true
	}
	return bloodTypes[code], true
}

func decodeCode(raw json.RawMessage) (int, string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, "", false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
		return 0, "", false
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n, "", true
	}
	return 0, strings.TrimSpace(s), true
}

func dayString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
