// source: metrics.sql

package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type CopyHeartRateMeasurementsParams struct {
	DeviceID  int64              `json:"device_id"`
	Timestamp pgtype.Timestamptz `json:"timestamp"`
	Bpm       int32              `json:"bpm"`
	Source    pgtype.Text        `json:"source"`
	Context   pgtype.Text        `json:"context"`
}

type CopySleepRecordsParams struct {
	DeviceID   int64              `json:"device_id"`
	StartTime  pgtype.Timestamptz `json:"start_time"`
	EndTime    pgtype.Timestamptz `json:"end_time"`
	SleepStage pgtype.Text        `json:"sleep_stage"`
	Source     pgtype.Text        `json:"source"`
}

const upsertStepCount = `-- name: UpsertStepCount :exec
INSERT INTO step_counts (device_id, date, step_count, source)
VALUES ($1, $2, $3, $4)
ON CONFLICT (device_id, date)
DO UPDATE SET step_count = EXCLUDED.step_count, source = EXCLUDED.source
`

type UpsertStepCountParams struct {
	DeviceID  int64       `json:"device_id"`
	Date      pgtype.Date `json:"date"`
	StepCount int32       `json:"step_count"`
	Source    pgtype.Text `json:"source"`
}

func (q *Queries) UpsertStepCount(ctx context.Context, arg UpsertStepCountParams) error {
	_, err := q.db.Exec(ctx, upsertStepCount,
		arg.DeviceID,
		arg.Date,
		arg.StepCount,
		arg.Source,
	)
	return err
}

const upsertUserCharacteristics = `-- name: UpsertUserCharacteristics :exec
INSERT INTO user_characteristics (device_id, date_of_birth, biological_sex, blood_type, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (device_id)
DO UPDATE SET date_of_birth = EXCLUDED.date_of_birth,
              biological_sex = EXCLUDED.biological_sex,
              blood_type = EXCLUDED.blood_type,
              updated_at = EXCLUDED.updated_at
`

type UpsertUserCharacteristicsParams struct {
	DeviceID      int64              `json:"device_id"`
	DateOfBirth   pgtype.Date        `json:"date_of_birth"`
	BiologicalSex pgtype.Text        `json:"biological_sex"`
	BloodType     pgtype.Text        `json:"blood_type"`
	UpdatedAt     pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) UpsertUserCharacteristics(ctx context.Context, arg UpsertUserCharacteristicsParams) error {
	_, err := q.db.Exec(ctx, upsertUserCharacteristics,
		arg.DeviceID,
		arg.DateOfBirth,
		arg.BiologicalSex,
		arg.BloodType,
		arg.UpdatedAt,
	)
	return err
}

const getUserCharacteristics = `-- name: GetUserCharacteristics :one
SELECT id, device_id, date_of_birth, biological_sex, blood_type, updated_at
FROM user_characteristics
WHERE device_id = $1
`

func (q *Queries) GetUserCharacteristics(ctx context.Context, deviceID int64) (UserCharacteristic, error) {
	row := q.db.QueryRow(ctx, getUserCharacteristics, deviceID)
	var i UserCharacteristic
	err := row.Scan(
		&i.ID,
		&i.DeviceID,
		&i.DateOfBirth,
		&i.BiologicalSex,
		&i.BloodType,
		&i.UpdatedAt,
	)
	return i, err
}

const getLatestBodyMeasurement = `-- name: GetLatestBodyMeasurement :one
SELECT id, device_id, measurement_type, value, unit, timestamp, source
FROM body_measurements
WHERE device_id = $1 AND measurement_type = $2
ORDER BY timestamp DESC, id DESC
LIMIT 1
`

type GetLatestBodyMeasurementParams struct {
	DeviceID        int64  `json:"device_id"`
	MeasurementType string `json:"measurement_type"`
}

func (q *Queries) GetLatestBodyMeasurement(ctx context.Context, arg GetLatestBodyMeasurementParams) (BodyMeasurement, error) {
	row := q.db.QueryRow(ctx, getLatestBodyMeasurement, arg.DeviceID, arg.MeasurementType)
	var i BodyMeasurement
	err := row.Scan(
		&i.ID,
		&i.DeviceID,
		&i.MeasurementType,
		&i.Value,
		&i.Unit,
		&i.Timestamp,
		&i.Source,
	)
	return i, err
}

const createBodyMeasurement = `-- name: CreateBodyMeasurement :exec
INSERT INTO body_measurements (device_id, measurement_type, value, unit, timestamp, source)
VALUES ($1, $2, $3, $4, $5, $6)
`

type CreateBodyMeasurementParams struct {
	DeviceID        int64              `json:"device_id"`
	MeasurementType string             `json:"measurement_type"`
	Value           float64            `json:"value"`
	Unit            pgtype.Text        `json:"unit"`
	Timestamp       pgtype.Timestamptz `json:"timestamp"`
	Source          pgtype.Text        `json:"source"`
}

func (q *Queries) CreateBodyMeasurement(ctx context.Context, arg CreateBodyMeasurementParams) error {
	_, err := q.db.Exec(ctx, createBodyMeasurement,
		arg.DeviceID,
		arg.MeasurementType,
		arg.Value,
		arg.Unit,
		arg.Timestamp,
		arg.Source,
	)
	return err
}

const updateBodyMeasurement = `-- name: UpdateBodyMeasurement :exec
UPDATE body_measurements
SET value = $2, unit = $3, timestamp = $4, source = $5
WHERE id = $1
`

type UpdateBodyMeasurementParams struct {
	ID        int64              `json:"id"`
	Value     float64            `json:"value"`
	Unit      pgtype.Text        `json:"unit"`
	Timestamp pgtype.Timestamptz `json:"timestamp"`
	Source    pgtype.Text        `json:"source"`
}

func (q *Queries) UpdateBodyMeasurement(ctx context.Context, arg UpdateBodyMeasurementParams) error {
	_, err := q.db.Exec(ctx, updateBodyMeasurement,
		arg.ID,
		arg.Value,
		arg.Unit,
		arg.Timestamp,
		arg.Source,
	)
	return err
}

const listLatestBodyMeasurements = `-- name: ListLatestBodyMeasurements :many
SELECT DISTINCT ON (measurement_type) id, device_id, measurement_type, value, unit, timestamp, source
FROM body_measurements
WHERE device_id = $1
ORDER BY measurement_type, timestamp DESC, id DESC
`

func (q *Queries) ListLatestBodyMeasurements(ctx context.Context, deviceID int64) ([]BodyMeasurement, error) {
	rows, err := q.db.Query(ctx, listLatestBodyMeasurements, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []BodyMeasurement{}
	for rows.Next() {
		var i BodyMeasurement
		if err := rows.Scan(
			&i.ID,
			&i.DeviceID,
			&i.MeasurementType,
			&i.Value,
			&i.Unit,
			&i.Timestamp,
			&i.Source,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertSyncStatus = `-- name: UpsertSyncStatus :exec
INSERT INTO sync_status (device_id, metric_type, last_sync_time)
VALUES ($1, $2, $3)
ON CONFLICT (device_id, metric_type)
DO UPDATE SET last_sync_time = EXCLUDED.last_sync_time
`

type UpsertSyncStatusParams struct {
	DeviceID     int64              `json:"device_id"`
	MetricType   string             `json:"metric_type"`
	LastSyncTime pgtype.Timestamptz `json:"last_sync_time"`
}

func (q *Queries) UpsertSyncStatus(ctx context.Context, arg UpsertSyncStatusParams) error {
	_, err := q.db.Exec(ctx, upsertSyncStatus, arg.DeviceID, arg.MetricType, arg.LastSyncTime)
	return err
}

const listSyncStatus = `-- name: ListSyncStatus :many
SELECT id, device_id, metric_type, last_sync_time
FROM sync_status
WHERE device_id = $1
ORDER BY metric_type
`

func (q *Queries) ListSyncStatus(ctx context.Context, deviceID int64) ([]SyncStatus, error) {
	rows, err := q.db.Query(ctx, listSyncStatus, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SyncStatus{}
	for rows.Next() {
		var i SyncStatus
		if err := rows.Scan(
			&i.ID,
			&i.DeviceID,
			&i.MetricType,
			&i.LastSyncTime,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listHeartRates = `-- name: ListHeartRates :many
SELECT id, device_id, timestamp, bpm, source, context
FROM heart_rate_measurements
WHERE device_id = $1 AND timestamp >= $2 AND timestamp <= $3
ORDER BY timestamp DESC
`

type ListHeartRatesParams struct {
	DeviceID  int64              `json:"device_id"`
	StartTime pgtype.Timestamptz `json:"start_time"`
	EndTime   pgtype.Timestamptz `json:"end_time"`
}

func (q *Queries) ListHeartRates(ctx context.Context, arg ListHeartRatesParams) ([]HeartRateMeasurement, error) {
	rows, err := q.db.Query(ctx, listHeartRates, arg.DeviceID, arg.StartTime, arg.EndTime)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []HeartRateMeasurement{}
	for rows.Next() {
		var i HeartRateMeasurement
		if err := rows.Scan(
			&i.ID,
			&i.DeviceID,
			&i.Timestamp,
			&i.Bpm,
			&i.Source,
			&i.Context,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listStepCounts = `-- name: ListStepCounts :many
SELECT id, device_id, date, step_count, source
FROM step_counts
WHERE device_id = $1 AND date >= $2 AND date <= $3
ORDER BY date DESC
`

type ListStepCountsParams struct {
	DeviceID  int64       `json:"device_id"`
	StartDate pgtype.Date `json:"start_date"`
	EndDate   pgtype.Date `json:"end_date"`
}

func (q *Queries) ListStepCounts(ctx context.Context, arg ListStepCountsParams) ([]StepCount, error) {
	rows, err := q.db.Query(ctx, listStepCounts, arg.DeviceID, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []StepCount{}
	for rows.Next() {
		var i StepCount
		if err := rows.Scan(
			&i.ID,
			&i.DeviceID,
			&i.Date,
			&i.StepCount,
			&i.Source,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listSleepRecords = `-- name: ListSleepRecords :many
SELECT id, device_id, start_time, end_time, sleep_stage, source
FROM sleep_records
WHERE device_id = $1 AND start_time >= $2 AND end_time <= $3
ORDER BY end_time DESC
`

type ListSleepRecordsParams struct {
	DeviceID  int64              `json:"device_id"`
	StartTime pgtype.Timestamptz `json:"start_time"`
	EndTime   pgtype.Timestamptz `json:"end_time"`
}

func (q *Queries) ListSleepRecords(ctx context.Context, arg ListSleepRecordsParams) ([]SleepRecord, error) {
	rows, err := q.db.Query(ctx, listSleepRecords, arg.DeviceID, arg.StartTime, arg.EndTime)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SleepRecord{}
	for rows.Next() {
		var i SleepRecord
		if err := rows.Scan(
			&i.ID,
			&i.DeviceID,
			&i.StartTime,
			&i.EndTime,
			&i.SleepStage,
			&i.Source,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getLatestHeartRate = `-- name: GetLatestHeartRate :one
SELECT id, device_id, timestamp, bpm, source, context
FROM heart_rate_measurements
WHERE device_id = $1
ORDER BY timestamp DESC
LIMIT 1
`

func (q *Queries) GetLatestHeartRate(ctx context.Context, deviceID int64) (HeartRateMeasurement, error) {
	row := q.db.QueryRow(ctx, getLatestHeartRate, deviceID)
	var i HeartRateMeasurement
	err := row.Scan(
		&i.ID,
		&i.DeviceID,
		&i.Timestamp,
		&i.Bpm,
		&i.Source,
		&i.Context,
	)
	return i, err
}

const getLatestStepCount = `-- name: GetLatestStepCount :one
SELECT id, device_id, date, step_count, source
FROM step_counts
WHERE device_id = $1
ORDER BY date DESC
LIMIT 1
`

func (q *Queries) GetLatestStepCount(ctx context.Context, deviceID int64) (StepCount, error) {
	row := q.db.QueryRow(ctx, getLatestStepCount, deviceID)
	var i StepCount
	err := row.Scan(
		&i.ID,
		&i.DeviceID,
		&i.Date,
		&i.StepCount,
		&i.Source,
	)
	return i, err
}

const getLatestSleepRecord = `-- name: GetLatestSleepRecord :one
SELECT id, device_id, start_time, end_time, sleep_stage, source
FROM sleep_records
WHERE device_id = $1
ORDER BY end_time DESC
LIMIT 1
`

func (q *Queries) GetLatestSleepRecord(ctx context.Context, deviceID int64) (SleepRecord, error) {
	row := q.db.QueryRow(ctx, getLatestSleepRecord, deviceID)
	var i SleepRecord
	err := row.Scan(
		&i.ID,
		&i.DeviceID,
		&i.StartTime,
		&i.EndTime,
		&i.SleepStage,
		&i.Source,
	)
	return i, err
}
