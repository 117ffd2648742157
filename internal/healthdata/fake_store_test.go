package healthdata

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"eon-server/internal/database"
)

// memStore is an in-memory Store used by the package tests.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	devices map[string]database.Device

	heartRates   []database.HeartRateMeasurement
	steps        map[int64]map[string]database.StepCount
	sleeps       []database.SleepRecord
	chars        map[int64]database.UserCharacteristic
	measurements []database.BodyMeasurement
	syncStatus   map[int64]map[string]database.SyncStatus
	notes        []database.UserNote

	heartRateCopies int
	sleepCopies     int
}

func newMemStore() *memStore {
	return &memStore{
		devices:    map[string]database.Device{},
		steps:      map[int64]map[string]database.StepCount{},
		chars:      map[int64]database.UserCharacteristic{},
		syncStatus: map[int64]map[string]database.SyncStatus{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) GetDeviceByExternalID(_ context.Context, deviceID string) (database.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[deviceID]
	if !ok {
		return database.Device{}, pgx.ErrNoRows
	}
	return d, nil
}

func (m *memStore) CreateDevice(_ context.Context, arg database.CreateDeviceParams) (database.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := database.Device{
		ID:          m.id(),
		DeviceID:    arg.DeviceID,
		DeviceName:  arg.DeviceName,
		DeviceModel: arg.DeviceModel,
		OsVersion:   arg.OsVersion,
		LastActive:  arg.LastActive,
		CreatedAt:   arg.LastActive,
	}
	m.devices[arg.DeviceID] = d
	return d, nil
}

func (m *memStore) UpdateDevice(_ context.Context, arg database.UpdateDeviceParams) (database.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, d := range m.devices {
		if d.ID == arg.ID {
			d.DeviceName, d.DeviceModel, d.OsVersion, d.LastActive = arg.DeviceName, arg.DeviceModel, arg.OsVersion, arg.LastActive
			m.devices[k] = d
			return d, nil
		}
	}
	return database.Device{}, pgx.ErrNoRows
}

func (m *memStore) CopyHeartRateMeasurements(_ context.Context, arg []database.CopyHeartRateMeasurementsParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartRateCopies++
	for _, r := range arg {
		m.heartRates = append(m.heartRates, database.HeartRateMeasurement{
			ID: m.id(), DeviceID: r.DeviceID, Timestamp: r.Timestamp, Bpm: r.Bpm, Source: r.Source, Context: r.Context,
		})
	}
	return int64(len(arg)), nil
}

func (m *memStore) CopySleepRecords(_ context.Context, arg []database.CopySleepRecordsParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleepCopies++
	for _, r := range arg {
		m.sleeps = append(m.sleeps, database.SleepRecord{
			ID: m.id(), DeviceID: r.DeviceID, StartTime: r.StartTime, EndTime: r.EndTime, SleepStage: r.SleepStage, Source: r.Source,
		})
	}
	return int64(len(arg)), nil
}

func (m *memStore) UpsertStepCount(_ context.Context, arg database.UpsertStepCountParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.steps[arg.DeviceID] == nil {
		m.steps[arg.DeviceID] = map[string]database.StepCount{}
	}
	key := arg.Date.Time.Format("2006-01-02")
	row, ok := m.steps[arg.DeviceID][key]
	if !ok {
		row = database.StepCount{ID: m.id(), DeviceID: arg.DeviceID, Date: arg.Date}
	}
	row.StepCount, row.Source = arg.StepCount, arg.Source
	m.steps[arg.DeviceID][key] = row
	return nil
}

func (m *memStore) UpsertUserCharacteristics(_ context.Context, arg database.UpsertUserCharacteristicsParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.chars[arg.DeviceID]
	if !ok {
		row = database.UserCharacteristic{ID: m.id(), DeviceID: arg.DeviceID}
	}
	row.DateOfBirth, row.BiologicalSex, row.BloodType, row.UpdatedAt = arg.DateOfBirth, arg.BiologicalSex, arg.BloodType, arg.UpdatedAt
	m.chars[arg.DeviceID] = row
	return nil
}

func (m *memStore) GetUserCharacteristics(_ context.Context, deviceID int64) (database.UserCharacteristic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.chars[deviceID]
	if !ok {
		return database.UserCharacteristic{}, pgx.ErrNoRows
	}
	return row, nil
}

func (m *memStore) latestMeasurement(deviceID int64, kind string) (int, bool) {
	idx := -1
	for i, r := range m.measurements {
		if r.DeviceID != deviceID || r.MeasurementType != kind {
			continue
		}
		if idx < 0 || !r.Timestamp.Time.Before(m.measurements[idx].Timestamp.Time) {
			idx = i
		}
	}
	return idx, idx >= 0
}

func (m *memStore) GetLatestBodyMeasurement(_ context.Context, arg database.GetLatestBodyMeasurementParams) (database.BodyMeasurement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.latestMeasurement(arg.DeviceID, arg.MeasurementType)
	if !ok {
		return database.BodyMeasurement{}, pgx.ErrNoRows
	}
	return m.measurements[idx], nil
}

func (m *memStore) CreateBodyMeasurement(_ context.Context, arg database.CreateBodyMeasurementParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.measurements = append(m.measurements, database.BodyMeasurement{
		ID: m.id(), DeviceID: arg.DeviceID, MeasurementType: arg.MeasurementType, Value: arg.Value,
		Unit: arg.Unit, Timestamp: arg.Timestamp, Source: arg.Source,
	})
	return nil
}

func (m *memStore) UpdateBodyMeasurement(_ context.Context, arg database.UpdateBodyMeasurementParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.measurements {
		if m.measurements[i].ID == arg.ID {
			r := &m.measurements[i]
			r.Value, r.Unit, r.Timestamp, r.Source = arg.Value, arg.Unit, arg.Timestamp, arg.Source
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memStore) ListLatestBodyMeasurements(_ context.Context, deviceID int64) ([]database.BodyMeasurement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	out := []database.BodyMeasurement{}
	for _, r := range m.measurements {
		if r.DeviceID != deviceID || seen[r.MeasurementType] {
			continue
		}
		seen[r.MeasurementType] = true
		idx, _ := m.latestMeasurement(deviceID, r.MeasurementType)
		out = append(out, m.measurements[idx])
	}
	return out, nil
}

func (m *memStore) UpsertSyncStatus(_ context.Context, arg database.UpsertSyncStatusParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.syncStatus[arg.DeviceID] == nil {
		m.syncStatus[arg.DeviceID] = map[string]database.SyncStatus{}
	}
	row, ok := m.syncStatus[arg.DeviceID][arg.MetricType]
	if !ok {
		row = database.SyncStatus{ID: m.id(), DeviceID: arg.DeviceID, MetricType: arg.MetricType}
	}
	row.LastSyncTime = arg.LastSyncTime
	m.syncStatus[arg.DeviceID][arg.MetricType] = row
	return nil
}

func (m *memStore) ListSyncStatus(_ context.Context, deviceID int64) ([]database.SyncStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.SyncStatus{}
	for _, r := range m.syncStatus[deviceID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MetricType < out[j].MetricType })
	return out, nil
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

func (m *memStore) ListHeartRates(_ context.Context, arg database.ListHeartRatesParams) ([]database.HeartRateMeasurement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.HeartRateMeasurement{}
	for _, r := range m.heartRates {
		if r.DeviceID == arg.DeviceID && within(r.Timestamp.Time, arg.StartTime.Time, arg.EndTime.Time) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ListStepCounts(_ context.Context, arg database.ListStepCountsParams) ([]database.StepCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.StepCount{}
	for _, r := range m.steps[arg.DeviceID] {
		if within(r.Date.Time, arg.StartDate.Time, arg.EndDate.Time) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ListSleepRecords(_ context.Context, arg database.ListSleepRecordsParams) ([]database.SleepRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.SleepRecord{}
	for _, r := range m.sleeps {
		if r.DeviceID == arg.DeviceID && !r.StartTime.Time.Before(arg.StartTime.Time) && !r.EndTime.Time.After(arg.EndTime.Time) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) GetLatestHeartRate(_ context.Context, deviceID int64) (database.HeartRateMeasurement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *database.HeartRateMeasurement
	for i := range m.heartRates {
		r := &m.heartRates[i]
		if r.DeviceID == deviceID && (best == nil || r.Timestamp.Time.After(best.Timestamp.Time)) {
			best = r
		}
	}
	if best == nil {
		return database.HeartRateMeasurement{}, pgx.ErrNoRows
	}
	return *best, nil
}

func (m *memStore) GetLatestStepCount(_ context.Context, deviceID int64) (database.StepCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *database.StepCount
	for _, r := range m.steps[deviceID] {
		r := r
		if best == nil || r.Date.Time.After(best.Date.Time) {
			best = &r
		}
	}
	if best == nil {
		return database.StepCount{}, pgx.ErrNoRows
	}
	return *best, nil
}

func (m *memStore) GetLatestSleepRecord(_ context.Context, deviceID int64) (database.SleepRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *database.SleepRecord
	for i := range m.sleeps {
		r := &m.sleeps[i]
		if r.DeviceID == deviceID && (best == nil || r.EndTime.Time.After(best.EndTime.Time)) {
			best = r
		}
	}
	if best == nil {
		return database.SleepRecord{}, pgx.ErrNoRows
	}
	return *best, nil
}

func (m *memStore) CreateUserNote(_ context.Context, arg database.CreateUserNoteParams) (database.UserNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := database.UserNote{ID: m.id(), DeviceID: arg.DeviceID, Note: arg.Note}
	n.CreatedAt.Time, n.CreatedAt.Valid = time.Date(2024, 6, 15, 9, 0, int(n.ID), 0, time.UTC), true
	m.notes = append(m.notes, n)
	return n, nil
}

func (m *memStore) ListUserNotes(_ context.Context, deviceID int64) ([]database.UserNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.UserNote{}
	for i := len(m.notes) - 1; i >= 0; i-- {
		if m.notes[i].DeviceID == deviceID {
			out = append(out, m.notes[i])
		}
	}
	return out, nil
}
