package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type BodyMeasurement struct {
	ID              int64              `json:"id"`
	DeviceID        int64              `json:"device_id"`
	MeasurementType string             `json:"measurement_type"`
	Value           float64            `json:"value"`
	Unit            pgtype.Text        `json:"unit"`
	Timestamp       pgtype.Timestamptz `json:"timestamp"`
	Source          pgtype.Text        `json:"source"`
}

type Device struct {
	ID          int64              `json:"id"`
	DeviceID    string             `json:"device_id"`
	DeviceName  pgtype.Text        `json:"device_name"`
	DeviceModel pgtype.Text        `json:"device_model"`
	OsVersion   pgtype.Text        `json:"os_version"`
	LastActive  pgtype.Timestamptz `json:"last_active"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}

type HeartRateMeasurement struct {
	ID        int64              `json:"id"`
	DeviceID  int64              `json:"device_id"`
	Timestamp pgtype.Timestamptz `json:"timestamp"`
	Bpm       int32              `json:"bpm"`
	Source    pgtype.Text        `json:"source"`
	Context   pgtype.Text        `json:"context"`
}

type Recommendation struct {
	ID             int64              `json:"id"`
	DeviceID       int64              `json:"device_id"`
	Category       string             `json:"category"`
	Recommendation string             `json:"recommendation"`
	Explanation    string             `json:"explanation"`
	Frequency      string             `json:"frequency"`
	Accepted       bool               `json:"accepted"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
}

type RiskAnalysisPrediction struct {
	ID          int64              `json:"id"`
	DeviceID    int64              `json:"device_id"`
	ClusterName string             `json:"cluster_name"`
	RiskLevel   string             `json:"risk_level"`
	Explanation string             `json:"explanation"`
	Diseases    []byte             `json:"diseases"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}

type SleepRecord struct {
	ID         int64              `json:"id"`
	DeviceID   int64              `json:"device_id"`
	StartTime  pgtype.Timestamptz `json:"start_time"`
	EndTime    pgtype.Timestamptz `json:"end_time"`
	SleepStage pgtype.Text        `json:"sleep_stage"`
	Source     pgtype.Text        `json:"source"`
}

type StepCount struct {
	ID        int64       `json:"id"`
	DeviceID  int64       `json:"device_id"`
	Date      pgtype.Date `json:"date"`
	StepCount int32       `json:"step_count"`
	Source    pgtype.Text `json:"source"`
}

type SyncStatus struct {
	ID           int64              `json:"id"`
	DeviceID     int64              `json:"device_id"`
	MetricType   string             `json:"metric_type"`
	LastSyncTime pgtype.Timestamptz `json:"last_sync_time"`
}

type UserCharacteristic struct {
	ID            int64              `json:"id"`
	DeviceID      int64              `json:"device_id"`
	DateOfBirth   pgtype.Date        `json:"date_of_birth"`
	BiologicalSex pgtype.Text        `json:"biological_sex"`
	BloodType     pgtype.Text        `json:"blood_type"`
	UpdatedAt     pgtype.Timestamptz `json:"updated_at"`
}

type UserNote struct {
	ID        int64              `json:"id"`
	DeviceID  int64              `json:"device_id"`
	Note      string             `json:"note"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
}
