// source: metrics.sql

package database

import (
	"context"
)

// iteratorForCopyHeartRateMeasurements implements pgx.CopyFromSource.
type iteratorForCopyHeartRateMeasurements struct {
	rows                 []CopyHeartRateMeasurementsParams
	skippedFirstNextCall bool
}

func (r *iteratorForCopyHeartRateMeasurements) Next() bool {
	if len(r.rows) == 0 {
		return false
	}
	if !r.skippedFirstNextCall {
		r.skippedFirstNextCall = true
		return true
	}
	r.rows = r.rows[1:]
	return len(r.rows) > 0
}

func (r iteratorForCopyHeartRateMeasurements) Values() ([]interface{}, error) {
	return []interface{}{
		r.rows[0].DeviceID,
		r.rows[0].Timestamp,
		r.rows[0].Bpm,
		r.rows[0].Source,
		r.rows[0].Context,
	}, nil
}

func (r iteratorForCopyHeartRateMeasurements) Err() error {
	return nil
}

func (q *Queries) CopyHeartRateMeasurements(ctx context.Context, arg []CopyHeartRateMeasurementsParams) (int64, error) {
	return q.db.CopyFrom(ctx, []string{"heart_rate_measurements"}, []string{"device_id", "timestamp", "bpm", "source", "context"}, &iteratorForCopyHeartRateMeasurements{rows: arg})
}

// iteratorForCopySleepRecords implements pgx.CopyFromSource.
type iteratorForCopySleepRecords struct {
	rows                 []CopySleepRecordsParams
	skippedFirstNextCall bool
}

func (r *iteratorForCopySleepRecords) Next() bool {
	if len(r.rows) == 0 {
		return false
	}
	if !r.skippedFirstNextCall {
		r.skippedFirstNextCall = true
		return true
	}
	r.rows = r.rows[1:]
	return len(r.rows) > 0
}

func (r iteratorForCopySleepRecords) Values() ([]interface{}, error) {
	return []interface{}{
		r.rows[0].DeviceID,
		r.rows[0].StartTime,
		r.rows[0].EndTime,
		r.rows[0].SleepStage,
		r.rows[0].Source,
	}, nil
}

func (r iteratorForCopySleepRecords) Err() error {
	return nil
}

func (q *Queries) CopySleepRecords(ctx context.Context, arg []CopySleepRecordsParams) (int64, error) {
	return q.db.CopyFrom(ctx, []string{"sleep_records"}, []string{"device_id", "start_time", "end_time", "sleep_stage", "source"}, &iteratorForCopySleepRecords{rows: arg})
}
