// Package healthdata ingests device uploads and serves the stored metrics back.
package healthdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"eon-server/internal/database"
	"eon-server/internal/metrics"
	"eon-server/internal/utility"
)

var ErrDeviceNotFound = fmt.Errorf("device %w", utility.ErrNotFound)

// Store is the subset of *database.Queries this package uses.
type Store interface {
	GetDeviceByExternalID(ctx context.Context, deviceID string) (database.Device, error)
	CreateDevice(ctx context.Context, arg database.CreateDeviceParams) (database.Device, error)
	UpdateDevice(ctx context.Context, arg database.UpdateDeviceParams) (database.Device, error)

	CopyHeartRateMeasurements(ctx context.Context, arg []database.CopyHeartRateMeasurementsParams) (int64, error)
	CopySleepRecords(ctx context.Context, arg []database.CopySleepRecordsParams) (int64, error)
	UpsertStepCount(ctx context.Context, arg database.UpsertStepCountParams) error
	UpsertUserCharacteristics(ctx context.Context, arg database.UpsertUserCharacteristicsParams) error
	GetLatestBodyMeasurement(ctx context.Context, arg database.GetLatestBodyMeasurementParams) (database.BodyMeasurement, error)
	CreateBodyMeasurement(ctx context.Context, arg database.CreateBodyMeasurementParams) error
	UpdateBodyMeasurement(ctx context.Context, arg database.UpdateBodyMeasurementParams) error
	UpsertSyncStatus(ctx context.Context, arg database.UpsertSyncStatusParams) error

	ListHeartRates(ctx context.Context, arg database.ListHeartRatesParams) ([]database.HeartRateMeasurement, error)
	ListStepCounts(ctx context.Context, arg database.ListStepCountsParams) ([]database.StepCount, error)
	ListSleepRecords(ctx context.Context, arg database.ListSleepRecordsParams) ([]database.SleepRecord, error)
	GetLatestHeartRate(ctx context.Context, deviceID int64) (database.HeartRateMeasurement, error)
	GetLatestStepCount(ctx context.Context, deviceID int64) (database.StepCount, error)
	GetLatestSleepRecord(ctx context.Context, deviceID int64) (database.SleepRecord, error)
	GetUserCharacteristics(ctx context.Context, deviceID int64) (database.UserCharacteristic, error)
	ListLatestBodyMeasurements(ctx context.Context, deviceID int64) ([]database.BodyMeasurement, error)
	ListSyncStatus(ctx context.Context, deviceID int64) ([]database.SyncStatus, error)

	CreateUserNote(ctx context.Context, arg database.CreateUserNoteParams) (database.UserNote, error)
	ListUserNotes(ctx context.Context, deviceID int64) ([]database.UserNote, error)
}

var _ Store = (*database.Queries)(nil)

type Service struct {
	store      Store
	aggregator *metrics.Aggregator
	now        func() time.Time
}

func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:      store,
		aggregator: metrics.NewAggregator(now),
		now:        now,
	}
}

// ResolveDevice looks a device up by its external id.
func (s *Service) ResolveDevice(ctx context.Context, externalID string) (database.Device, error) {
	if externalID == "" {
		return database.Device{}, fmt.Errorf("%w: device_id is required", utility.ErrValidation)
	}
	device, err := s.store.GetDeviceByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, externalID)
		}
		return database.Device{}, fmt.Errorf("get device: %w", err)
	}
	return device, nil
}

// upsertDevice finds or creates the device and refreshes its mutable fields.
func (s *Service) upsertDevice(ctx context.Context, info DeviceInfo) (database.Device, error) {
	lastActive := utility.Timestamptz(s.now().UTC())

	existing, err := s.store.GetDeviceByExternalID(ctx, info.DeviceID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return database.Device{}, fmt.Errorf("get device: %w", err)
		}
		device, err := s.store.CreateDevice(ctx, database.CreateDeviceParams{
			DeviceID:    info.DeviceID,
			DeviceName:  utility.Text(info.DeviceName),
			DeviceModel: utility.Text(info.DeviceModel),
			OsVersion:   utility.Text(info.OSVersion),
			LastActive:  lastActive,
		})
		if err != nil {
			return database.Device{}, fmt.Errorf("create device: %w", err)
		}
		return device, nil
	}

	device, err := s.store.UpdateDevice(ctx, database.UpdateDeviceParams{
		ID:          existing.ID,
		DeviceName:  utility.Text(info.DeviceName),
		DeviceModel: utility.Text(info.DeviceModel),
		OsVersion:   utility.Text(info.OSVersion),
		LastActive:  lastActive,
	})
	if err != nil {
		return database.Device{}, fmt.Errorf("update device: %w", err)
	}
	return device, nil
}
