// Package metrics turns raw wearable samples into reliability-gated window summaries.
package metrics

import (
	"encoding/json"
	"fmt"
	"time"

	"eon-server/internal/utility"
)

// MetricType names one of the aggregated time series.
type MetricType string

const (
	HeartRate MetricType = "heart_rate"
	Steps     MetricType = "steps"
	Sleep     MetricType = "sleep"
)

const (
	NotEnoughData = "not enough data"
	NoDataToday   = "no data from today"
)

// thresholds holds the minimum sample count per window.
type thresholds struct {
	monthly, thisMonth, thisWeek, today int
}

var windowThresholds = map[MetricType]thresholds{
	HeartRate: {monthly: 1000, thisMonth: 500, thisWeek: 100, today: 10},
	Steps:     {monthly: 15, thisMonth: 7, thisWeek: 3, today: 1},
	Sleep:     {monthly: 15, thisMonth: 7, thisWeek: 3, today: 1},
}

// Value is either a number or a sentinel string explaining why no number is available.
// The zero Value carries no number and reads as NotEnoughData.
type Value struct {
	Number   float64
	Sentinel string
	ok       bool
}

func NumberValue(v float64) Value {
	return Value{Number: v, ok: true}
}

func SentinelValue(s string) Value {
	return Value{Sentinel: s}
}

// IsNumber reports whether v holds a computed value rather than a sentinel.
func (v Value) IsNumber() bool { return v.ok }

// Reason returns the sentinel text, NotEnoughData when none was set.
func (v Value) Reason() string {
	if v.Sentinel == "" {
		return NotEnoughData
	}
	return v.Sentinel
}

func (v Value) String() string { return v.format("%.2f") }

func (v Value) format(f string) string {
	if !v.IsNumber() {
		return v.Reason()
	}
	return fmt.Sprintf(f, v.Number)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.IsNumber() {
		return json.Marshal(v.Reason())
	}
	return json.Marshal(v.Number)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = SentinelValue(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("metric value must be a number or a string: %w", err)
	}
	*v = NumberValue(f)
	return nil
}

// Summary is the four-window aggregate of one metric type.
type Summary struct {
	Monthly   Value `json:"monthly"`
	ThisMonth Value `json:"this_month"`
	ThisWeek  Value `json:"this_week"`
	Today     Value `json:"today"`
}

// Record is one raw sample. Sleep records carry the interval in Timestamp (start) and End;
// other metrics carry a timestamp or calendar date and a Value.
type Record struct {
	Timestamp string
	End       string
	Value     float64
}

// Aggregator computes window summaries relative to an injected clock, in UTC.
type Aggregator struct {
	now func() time.Time
}

func NewAggregator(now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{now: now}
}

type datedValue struct {
	date  time.Time
	value float64
}

// Aggregate summarises records of a single metric type. A malformed timestamp fails the call.
func (a *Aggregator) Aggregate(metric MetricType, records []Record) (Summary, error) {
	limits, ok := windowThresholds[metric]
	if !ok {
		return Summary{}, fmt.Errorf("unknown metric type %q", metric)
	}

	var (
		points []datedValue
		err    error
	)
	if metric == Sleep {
		points, err = nights(records)
	} else {
		points, err = samples(records)
	}
	if err != nil {
		return Summary{}, err
	}

	now := a.now().UTC()
	today := truncateDay(now)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	weekStart := today.AddDate(0, 0, -7)
	monthlyStart := today.AddDate(0, 0, -30)

	// Steps and sleep report the last completed day as "today".
	ref := today
	if metric != HeartRate {
		ref = today.AddDate(0, 0, -1)
	}

	var monthly, thisMonth, thisWeek, todays []float64
	for _, p := range points {
		if !p.date.Before(monthlyStart) {
			monthly = append(monthly, p.value)
		}
		if !p.date.Before(monthStart) {
			thisMonth = append(thisMonth, p.value)
		}
		if !p.date.Before(weekStart) {
			thisWeek = append(thisWeek, p.value)
		}
		if p.date.Equal(ref) {
			todays = append(todays, p.value)
		}
	}

	summary := Summary{
		Monthly:   gated(monthly, limits.monthly, NotEnoughData, mean),
		ThisMonth: gated(thisMonth, limits.thisMonth, NotEnoughData, mean),
		ThisWeek:  gated(thisWeek, limits.thisWeek, NotEnoughData, mean),
	}
	if metric == HeartRate {
		summary.Today = gated(todays, limits.today, NoDataToday, mean)
	} else {
		summary.Today = gated(todays, limits.today, NoDataToday, sum)
	}
	return summary, nil
}

func gated(values []float64, min int, fallback string, reduce func([]float64) float64) Value {
	if len(values) == 0 || len(values) < min {
		return SentinelValue(fallback)
	}
	return NumberValue(reduce(values))
}

func samples(records []Record) ([]datedValue, error) {
	out := make([]datedValue, 0, len(records))
	for _, r := range records {
		ts, err := utility.ParseTimestamp(r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", r.Timestamp, err)
		}
		out = append(out, datedValue{date: truncateDay(ts), value: r.Value})
	}
	return out, nil
}

type interval struct {
	start, end int64
}

// nights dedups sleep intervals and sums hours per calendar date of the interval end.
func nights(records []Record) ([]datedValue, error) {
	seen := make(map[interval]struct{}, len(records))
	totals := make(map[time.Time]float64)
	var order []time.Time

	for _, r := range records {
		start, err := utility.ParseTimestamp(r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse sleep start %q: %w", r.Timestamp, err)
		}
		end, err := utility.ParseTimestamp(r.End)
		if err != nil {
			return nil, fmt.Errorf("parse sleep end %q: %w", r.End, err)
		}

		key := interval{start: start.UnixNano(), end: end.UnixNano()}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		night := truncateDay(end)
		if _, ok := totals[night]; !ok {
			order = append(order, night)
		}
		totals[night] += end.Sub(start).Hours()
	}

	out := make([]datedValue, 0, len(order))
	for _, night := range order {
		out = append(out, datedValue{date: night, value: totals[night]})
	}
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func mean(values []float64) float64 {
	return sum(values) / float64(len(values))
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
