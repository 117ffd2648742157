package healthdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"eon-server/internal/database"
	"eon-server/internal/metrics"
	"eon-server/internal/utility"
)

const defaultRangeDays = 30

// Latest returns the newest value of every metric for a device, plus a derived BMI.
func (s *Service) Latest(ctx context.Context, externalID string) (LatestMetrics, error) {
	device, err := s.ResolveDevice(ctx, externalID)
	if err != nil {
		return LatestMetrics{}, err
	}

	out := LatestMetrics{Device: device, BodyMeasurements: []database.BodyMeasurement{}}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hr, err := s.store.GetLatestHeartRate(gctx, device.ID)
		if err != nil {
			return ignoreNoRows(err, "latest heart rate")
		}
		mu.Lock()
		out.HeartRate = &hr
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		st, err := s.store.GetLatestStepCount(gctx, device.ID)
		if err != nil {
			return ignoreNoRows(err, "latest steps")
		}
		mu.Lock()
		out.Steps = &st
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		sl, err := s.store.GetLatestSleepRecord(gctx, device.ID)
		if err != nil {
			return ignoreNoRows(err, "latest sleep")
		}
		mu.Lock()
		out.Sleep = &sl
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		ch, err := s.store.GetUserCharacteristics(gctx, device.ID)
		if err != nil {
			return ignoreNoRows(err, "characteristics")
		}
		mu.Lock()
		out.Characteristics = &ch
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		rows, err := s.store.ListLatestBodyMeasurements(gctx, device.ID)
		if err != nil {
			return fmt.Errorf("latest body measurements: %w", err)
		}
		mu.Lock()
		out.BodyMeasurements = rows
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return LatestMetrics{}, err
	}

	out.BMI = currentBMI(out.BodyMeasurements)
	return out, nil
}

// currentBMI prefers a stored BMI row and derives one from height and weight otherwise.
func currentBMI(rows []database.BodyMeasurement) *float64 {
	for _, r := range rows {
		if strings.EqualFold(r.MeasurementType, metrics.MeasurementBMI) {
			v := r.Value
			return &v
		}
	}
	if v, ok := metrics.DeriveBMI(rows); ok {
		return &v
	}
	return nil
}

// Metrics returns raw rows between startDate and endDate (inclusive, YYYY-MM-DD).
// Missing bounds default to the last 30 days.
func (s *Service) Metrics(ctx context.Context, externalID, startDate, endDate string) (RawMetrics, error) {
	end := truncate(s.now())
	if endDate != "" {
		d, err := utility.ParseDate(endDate)
		if err != nil {
			return RawMetrics{}, fmt.Errorf("%w: end_date: %v", utility.ErrValidation, err)
		}
		end = d
	}
	start := end.AddDate(0, 0, -defaultRangeDays)
	if startDate != "" {
		d, err := utility.ParseDate(startDate)
		if err != nil {
			return RawMetrics{}, fmt.Errorf("%w: start_date: %v", utility.ErrValidation, err)
		}
		start = d
	}
	if start.After(end) {
		return RawMetrics{}, fmt.Errorf("%w: start_date is after end_date", utility.ErrValidation)
	}

	device, err := s.ResolveDevice(ctx, externalID)
	if err != nil {
		return RawMetrics{}, err
	}

	hr, steps, sleep, err := s.rangeRows(ctx, device.ID, start, end)
	if err != nil {
		return RawMetrics{}, err
	}
	return RawMetrics{
		StartDate: dayString(start),
		EndDate:   dayString(end),
		HeartRate: hr,
		Steps:     steps,
		Sleep:     sleep,
	}, nil
}

// Summary aggregates the trailing month of data into the four reporting windows.
func (s *Service) Summary(ctx context.Context, externalID string) (metrics.Overview, error) {
	device, err := s.ResolveDevice(ctx, externalID)
	if err != nil {
		return metrics.Overview{}, err
	}
	return s.overview(ctx, device.ID)
}

func (s *Service) overview(ctx context.Context, deviceID int64) (metrics.Overview, error) {
	today := truncate(s.now())
	hr, steps, sleep, err := s.rangeRows(ctx, deviceID, today.AddDate(0, 0, -defaultRangeDays), today)
	if err != nil {
		return metrics.Overview{}, err
	}

	var out metrics.Overview
	if out.HeartRate, err = s.aggregator.Aggregate(metrics.HeartRate, metrics.FromHeartRates(hr)); err != nil {
		return metrics.Overview{}, fmt.Errorf("aggregate heart rate: %w", err)
	}
	if out.Steps, err = s.aggregator.Aggregate(metrics.Steps, metrics.FromStepCounts(steps)); err != nil {
		return metrics.Overview{}, fmt.Errorf("aggregate steps: %w", err)
	}
	if out.Sleep, err = s.aggregator.Aggregate(metrics.Sleep, metrics.FromSleepRecords(sleep)); err != nil {
		return metrics.Overview{}, fmt.Errorf("aggregate sleep: %w", err)
	}
	return out, nil
}

// rangeRows fetches the three time series for [start, end] concurrently.
func (s *Service) rangeRows(ctx context.Context, deviceID int64, start, end time.Time) (
	[]database.HeartRateMeasurement, []database.StepCount, []database.SleepRecord, error,
) {
	var (
		hr    []database.HeartRateMeasurement
		steps []database.StepCount
		sleep []database.SleepRecord
	)
	endOfDay := end.AddDate(0, 0, 1).Add(-time.Nanosecond)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.store.ListHeartRates(gctx, database.ListHeartRatesParams{
			DeviceID:  deviceID,
			StartTime: utility.Timestamptz(start),
			EndTime:   utility.Timestamptz(endOfDay),
		})
		if err != nil {
			return fmt.Errorf("list heart rate: %w", err)
		}
		hr = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.ListStepCounts(gctx, database.ListStepCountsParams{
			DeviceID:  deviceID,
			StartDate: utility.Date(start),
			EndDate:   utility.Date(end),
		})
		if err != nil {
			return fmt.Errorf("list steps: %w", err)
		}
		steps = rows
		return nil
	})
	g.Go(func() error {
		// Nights are keyed by end time, so include sessions that began the evening before.
		rows, err := s.store.ListSleepRecords(gctx, database.ListSleepRecordsParams{
			DeviceID:  deviceID,
			StartTime: utility.Timestamptz(start.AddDate(0, 0, -1)),
			EndTime:   utility.Timestamptz(endOfDay),
		})
		if err != nil {
			return fmt.Errorf("list sleep: %w", err)
		}
		sleep = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return hr, steps, sleep, nil
}

// SyncStatus lists the last successful sync per metric type.
func (s *Service) SyncStatus(ctx context.Context, externalID string) ([]database.SyncStatus, error) {
	device, err := s.ResolveDevice(ctx, externalID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListSyncStatus(ctx, device.ID)
	if err != nil {
		return nil, fmt.Errorf("list sync status: %w", err)
	}
	return rows, nil
}

// PatientContext gathers the summary and notes the risk pipeline feeds to the note generator.
func (s *Service) PatientContext(ctx context.Context, externalID string) (PatientContext, error) {
	device, err := s.ResolveDevice(ctx, externalID)
	if err != nil {
		return PatientContext{}, err
	}

	out := PatientContext{Device: device}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		overview, err := s.overview(gctx, device.ID)
		if err != nil {
			return err
		}
		out.Overview = overview
		return nil
	})
	g.Go(func() error {
		notes, err := s.store.ListUserNotes(gctx, device.ID)
		if err != nil {
			return fmt.Errorf("list notes: %w", err)
		}
		out.Notes = notes
		return nil
	})
	if err := g.Wait(); err != nil {
		return PatientContext{}, err
	}
	return out, nil
}

func ignoreNoRows(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}

func truncate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
