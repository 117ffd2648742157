package healthdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"eon-server/internal/database"
	"eon-server/internal/utility"
)

const (
	onboardChunkSize   = 1000
	measurementEpsilon = 1e-3
)

// Metric type names recorded in sync_status.
const (
	SyncHeartRate        = "heart_rate"
	SyncSteps            = "steps"
	SyncSleep            = "sleep"
	SyncCharacteristics  = "characteristics"
	SyncBodyMeasurements = "body_measurements"
)

// Sync ingests one batch from a device.
func (s *Service) Sync(ctx context.Context, payload SyncPayload) (SyncResult, error) {
	return s.ingest(ctx, payload, 0)
}

// Onboard ingests a historical backfill; heart-rate and sleep rows are copied in chunks.
func (s *Service) Onboard(ctx context.Context, payload SyncPayload) (SyncResult, error) {
	return s.ingest(ctx, payload, onboardChunkSize)
}

type parsedBatch struct {
	heartRates      []database.CopyHeartRateMeasurementsParams
	sleeps          []database.CopySleepRecordsParams
	characteristics *database.UpsertUserCharacteristicsParams
	measurements    []database.CreateBodyMeasurementParams
}

func (s *Service) ingest(ctx context.Context, payload SyncPayload, chunkSize int) (SyncResult, error) {
	if payload.DeviceInfo == nil || strings.TrimSpace(payload.DeviceInfo.DeviceID) == "" {
		return SyncResult{}, fmt.Errorf("%w: device information is required", utility.ErrValidation)
	}

	// Everything that can fail validation is parsed before the first write.
	batch, err := parseBatch(payload)
	if err != nil {
		return SyncResult{}, err
	}

	device, err := s.upsertDevice(ctx, *payload.DeviceInfo)
	if err != nil {
		return SyncResult{}, err
	}

	result := SyncResult{
		Message:    "Health data synchronized successfully",
		DeviceID:   device.ID,
		ExternalID: device.DeviceID,
	}

	for i := range batch.heartRates {
		batch.heartRates[i].DeviceID = device.ID
	}
	n, err := copyChunks(ctx, batch.heartRates, chunkSize, s.store.CopyHeartRateMeasurements)
	if err != nil {
		return SyncResult{}, fmt.Errorf("insert heart rate: %w", err)
	}
	result.Synced.HeartRate = int(n)

	for i := range batch.sleeps {
		batch.sleeps[i].DeviceID = device.ID
	}
	n, err = copyChunks(ctx, batch.sleeps, chunkSize, s.store.CopySleepRecords)
	if err != nil {
		return SyncResult{}, fmt.Errorf("insert sleep: %w", err)
	}
	result.Synced.Sleep = int(n)

	written, skipped, err := s.upsertSteps(ctx, device.ID, payload.Steps)
	if err != nil {
		return SyncResult{}, err
	}
	result.Synced.Steps = written
	result.Skipped.Steps = skipped

	if batch.characteristics != nil {
		batch.characteristics.DeviceID = device.ID
		batch.characteristics.UpdatedAt = utility.Timestamptz(s.now().UTC())
		if err := s.store.UpsertUserCharacteristics(ctx, *batch.characteristics); err != nil {
			return SyncResult{}, fmt.Errorf("upsert characteristics: %w", err)
		}
		result.Synced.Characteristics = 1
	}

	written, skipped, err = s.mergeMeasurements(ctx, device.ID, batch.measurements)
	if err != nil {
		return SyncResult{}, err
	}
	result.Synced.BodyMeasurements = written
	result.Skipped.BodyMeasurements = skipped

	if err := s.markSynced(ctx, device.ID, payload, result); err != nil {
		return SyncResult{}, err
	}

	log.Info().
		Str("device_id", device.DeviceID).
		Int("heart_rate", result.Synced.HeartRate).
		Int("steps", result.Synced.Steps).
		Int("sleep", result.Synced.Sleep).
		Int("body_measurements", result.Synced.BodyMeasurements).
		Msg("Health data synchronized")

	return result, nil
}

func parseBatch(payload SyncPayload) (parsedBatch, error) {
	var batch parsedBatch

	for i, hr := range payload.HeartRate {
		ts, err := utility.ParseTimestamp(hr.Timestamp)
		if err != nil {
			return parsedBatch{}, fmt.Errorf("%w: heart_rate[%d]: %v", utility.ErrValidation, i, err)
		}
		bpm := int32(math.Round(hr.Bpm))
		if bpm <= 0 {
			return parsedBatch{}, fmt.Errorf("%w: heart_rate[%d]: bpm must be positive", utility.ErrValidation, i)
		}
		batch.heartRates = append(batch.heartRates, database.CopyHeartRateMeasurementsParams{
			Timestamp: utility.Timestamptz(ts),
			Bpm:       bpm,
			Source:    utility.Text(hr.Source),
			Context:   utility.Text(hr.Context),
		})
	}

	for i, sl := range payload.Sleep {
		start, err := utility.ParseTimestamp(sl.StartTime)
		if err != nil {
			return parsedBatch{}, fmt.Errorf("%w: sleep[%d]: start_time: %v", utility.ErrValidation, i, err)
		}
		end, err := utility.ParseTimestamp(sl.EndTime)
		if err != nil {
			return parsedBatch{}, fmt.Errorf("%w: sleep[%d]: end_time: %v", utility.ErrValidation, i, err)
		}
		if !start.Before(end) {
			return parsedBatch{}, fmt.Errorf("%w: sleep[%d]: start_time must be before end_time", utility.ErrValidation, i)
		}
		batch.sleeps = append(batch.sleeps, database.CopySleepRecordsParams{
			StartTime:  utility.Timestamptz(start),
			EndTime:    utility.Timestamptz(end),
			SleepStage: utility.Text(sl.SleepStage),
			Source:     utility.Text(sl.Source),
		})
	}

	// Last write wins when several characteristics objects are sent.
	if n := len(payload.Characteristics); n > 0 {
		ch := payload.Characteristics[n-1]
		params := database.UpsertUserCharacteristicsParams{}
		if ch.DateOfBirth != "" {
			dob, err := utility.ParseDate(ch.DateOfBirth)
			if err != nil {
				return parsedBatch{}, fmt.Errorf("%w: characteristics: date_of_birth: %v", utility.ErrValidation, err)
			}
			params.DateOfBirth = utility.Date(dob)
		}
		if sex, ok := decodeBiologicalSex(ch.BiologicalSex); ok {
			params.BiologicalSex = utility.Text(sex)
		}
		if bt, ok := decodeBloodType(ch.BloodType); ok {
			params.BloodType = utility.Text(bt)
		}
		batch.characteristics = &params
	}

	for i, bm := range payload.BodyMeasurements {
		kind := strings.ToLower(strings.TrimSpace(bm.MeasurementType))
		if kind == "" {
			return parsedBatch{}, fmt.Errorf("%w: body_measurements[%d]: measurement_type is required", utility.ErrValidation, i)
		}
		ts, err := utility.ParseTimestamp(bm.Timestamp)
		if err != nil {
			return parsedBatch{}, fmt.Errorf("%w: body_measurements[%d]: %v", utility.ErrValidation, i, err)
		}
		batch.measurements = append(batch.measurements, database.CreateBodyMeasurementParams{
			MeasurementType: kind,
			Value:           bm.Value,
			Unit:            utility.Text(bm.Unit),
			Timestamp:       utility.Timestamptz(ts),
			Source:          utility.Text(bm.Source),
		})
	}

	return batch, nil
}

// copyChunks sends rows through copy in slices of size chunk; chunk <= 0 sends them at once.
func copyChunks[T any](ctx context.Context, rows []T, chunk int, copyFn func(context.Context, []T) (int64, error)) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if chunk <= 0 {
		chunk = len(rows)
	}
	var total int64
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		n, err := copyFn(ctx, rows[start:end])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// upsertSteps writes one row per (device, date). Malformed records are logged and skipped.
func (s *Service) upsertSteps(ctx context.Context, deviceID int64, steps []StepInput) (int, int, error) {
	written, skipped := 0, 0
	for i, st := range steps {
		date, err := utility.ParseDate(st.Date)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("Skipping step record with bad date")
			skipped++
			continue
		}
		count, err := parseStepCount(st.StepCount)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Str("date", st.Date).Msg("Skipping step record with bad count")
			skipped++
			continue
		}
		if err := s.store.UpsertStepCount(ctx, database.UpsertStepCountParams{
			DeviceID:  deviceID,
			Date:      utility.Date(date),
			StepCount: count,
			Source:    utility.Text(st.Source),
		}); err != nil {
			return written, skipped, fmt.Errorf("upsert steps for %s: %w", dayString(date), err)
		}
		written++
	}
	return written, skipped, nil
}

// mergeMeasurements updates the latest row of a type when the value moved by more than
// measurementEpsilon, skips it otherwise, and inserts when no row exists.
func (s *Service) mergeMeasurements(ctx context.Context, deviceID int64, rows []database.CreateBodyMeasurementParams) (int, int, error) {
	written, skipped := 0, 0
	for _, row := range rows {
		row.DeviceID = deviceID

		latest, err := s.store.GetLatestBodyMeasurement(ctx, database.GetLatestBodyMeasurementParams{
			DeviceID:        deviceID,
			MeasurementType: row.MeasurementType,
		})
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			if err := s.store.CreateBodyMeasurement(ctx, row); err != nil {
				return written, skipped, fmt.Errorf("insert %s: %w", row.MeasurementType, err)
			}
			written++
		case err != nil:
			return written, skipped, fmt.Errorf("get latest %s: %w", row.MeasurementType, err)
		case math.Abs(latest.Value-row.Value) > measurementEpsilon:
			if err := s.store.UpdateBodyMeasurement(ctx, database.UpdateBodyMeasurementParams{
				ID:        latest.ID,
				Value:     row.Value,
				Unit:      row.Unit,
				Timestamp: row.Timestamp,
				Source:    row.Source,
			}); err != nil {
				return written, skipped, fmt.Errorf("update %s: %w", row.MeasurementType, err)
			}
			written++
		default:
			skipped++
		}
	}
	return written, skipped, nil
}

// markSynced stamps sync_status for every metric type present in the payload.
// Steps count only when at least one record was written.
func (s *Service) markSynced(ctx context.Context, deviceID int64, payload SyncPayload, result SyncResult) error {
	present := []struct {
		name string
		ok   bool
	}{
		{SyncHeartRate, len(payload.HeartRate) > 0},
		{SyncSteps, result.Synced.Steps > 0},
		{SyncSleep, len(payload.Sleep) > 0},
		{SyncCharacteristics, len(payload.Characteristics) > 0},
		{SyncBodyMeasurements, len(payload.BodyMeasurements) > 0},
	}

	now := utility.Timestamptz(s.now().UTC())
	for _, p := range present {
		if !p.ok {
			continue
		}
		if err := s.store.UpsertSyncStatus(ctx, database.UpsertSyncStatusParams{
			DeviceID:     deviceID,
			MetricType:   p.name,
			LastSyncTime: now,
		}); err != nil {
			return fmt.Errorf("update sync status for %s: %w", p.name, err)
		}
	}
	return nil
}
