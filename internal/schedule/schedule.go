// Package schedule fires dispatch runs inside a long-running process, either
// on wall-clock cron boundaries or on a fixed interval.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const DefaultTick = 10 * time.Second

var ErrUnsupportedCron = errors.New("unsupported cron expression")

// Presets maps friendly names to the cron shorthand ParseCron understands.
var Presets = map[string]string{
	"every-minute":     "* * * * *",
	"every-5-minutes":  "*/5 * * * *",
	"every-15-minutes": "*/15 * * * *",
	"every-30-minutes": "*/30 * * * *",
	"every-hour":       "0 * * * *",
	"daily-midnight":   "0 0 * * *",
}

// ParseCron returns the nominal interval of a supported expression. Only
// minute and hour fields may vary; day, month and weekday must be "*".
// Anything else is rejected rather than approximated.
func ParseCron(expr string) (time.Duration, error) {
	_, interval, err := parseCron(expr)
	return interval, err
}

// cronField is either a fixed value or, when value is -1, every step units.
type cronField struct {
	value int
	step  int
}

func (f cronField) matches(v int) bool {
	if f.value >= 0 {
		return v == f.value
	}
	return v%f.step == 0
}

func parseField(s string, max int) (cronField, bool) {
	if s == "*" {
		return cronField{value: -1, step: 1}, true
	}
	if rest, ok := strings.CutPrefix(s, "*/"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 || n > max {
			return cronField{}, false
		}
		return cronField{value: -1, step: n}, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > max || strings.HasPrefix(s, "+") {
		return cronField{}, false
	}
	return cronField{value: n}, true
}

// cronSpec fires on wall-clock minutes matching both fields.
type cronSpec struct {
	minute cronField
	hour   cronField
}

// next returns the first matching minute strictly after t, in t's location.
func (c *cronSpec) next(t time.Time) time.Time {
	n := t.Truncate(time.Minute).Add(time.Minute)
	// Every accepted shape matches at least once a day.
	for i := 0; i < 2*24*60; i++ {
		if c.minute.matches(n.Minute()) && c.hour.matches(n.Hour()) {
			return n
		}
		n = n.Add(time.Minute)
	}
	return n
}

// parseCron returns a nil spec for "@every", which repeats from start-up
// instead of aligning to the clock.
func parseCron(expr string) (*cronSpec, time.Duration, error) {
	expr = strings.TrimSpace(expr)
	if preset, ok := Presets[expr]; ok {
		expr = preset
	}
	unsupported := fmt.Errorf("%w: %q", ErrUnsupportedCron, expr)

	switch expr {
	case "@hourly":
		expr = "0 * * * *"
	case "@daily", "@midnight":
		expr = "0 0 * * *"
	}
	if rest, ok := strings.CutPrefix(expr, "@every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil || d <= 0 {
			return nil, 0, unsupported
		}
		return nil, d, nil
	}

	fields := strings.Fields(expr)
	if len(fields) != 5 || fields[2] != "*" || fields[3] != "*" || fields[4] != "*" {
		return nil, 0, unsupported
	}
	minute, ok := parseField(fields[0], 59)
	if !ok {
		return nil, 0, unsupported
	}
	hour, ok := parseField(fields[1], 23)
	if !ok {
		return nil, 0, unsupported
	}
	spec := &cronSpec{minute: minute, hour: hour}

	switch {
	case minute.value < 0 && hour.value < 0 && hour.step == 1:
		return spec, time.Duration(minute.step) * time.Minute, nil
	case minute.value >= 0 && hour.value < 0:
		return spec, time.Duration(hour.step) * time.Hour, nil
	case minute.value >= 0 && hour.value >= 0:
		return spec, 24 * time.Hour, nil
	}
	// Minute steps within a stepped or fixed hour do not repeat evenly.
	return nil, 0, unsupported
}

// Schedule tracks when the next run is due.
type Schedule struct {
	mu       sync.Mutex
	interval time.Duration
	cronExpr string
	cron     *cronSpec
	lastRun  time.Time
	nextRun  time.Time
}

// New returns a schedule whose first run is due one interval after now.
func New(interval time.Duration, now time.Time) (*Schedule, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("schedule interval must be positive, got %s", interval)
	}
	return &Schedule{interval: interval, nextRun: now.Add(interval)}, nil
}

// FromCron returns a schedule for expr. Clock-based expressions fire on the
// matching wall-clock minutes in now's location; "@every" repeats from now.
func FromCron(expr string, now time.Time) (*Schedule, error) {
	spec, interval, err := parseCron(expr)
	if err != nil {
		return nil, err
	}
	s, err := New(interval, now)
	if err != nil {
		return nil, err
	}
	s.cronExpr = expr
	if spec != nil {
		s.cron = spec
		s.nextRun = spec.next(now)
	}
	return s, nil
}

func (s *Schedule) Interval() time.Duration { return s.interval }

// Due reports whether now has reached the next run time.
func (s *Schedule) Due(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !now.Before(s.nextRun)
}

// MarkRun records a run started at now and moves the next run to the
// following boundary, or one interval on for plain intervals.
func (s *Schedule) MarkRun(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = now
	if s.cron != nil {
		s.nextRun = s.cron.next(now)
		return
	}
	s.nextRun = now.Add(s.interval)
}

func (s *Schedule) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}

// Runner polls a Schedule and invokes fn when it is due. Runs never overlap:
// fn is called on the polling goroutine.
type Runner struct {
	schedule *Schedule
	fn       func(ctx context.Context) error
	tick     time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewRunner(s *Schedule, fn func(ctx context.Context) error, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	tick := DefaultTick
	if s.interval < tick {
		tick = s.interval
	}
	return &Runner{schedule: s, fn: fn, tick: tick, now: time.Now, logger: logger}
}

// Run blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	r.logger.Info("scheduler started", "interval", r.schedule.interval, "cron", r.schedule.cronExpr, "next_run", r.schedule.NextRun())
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			r.fire(ctx)
		}
	}
}

func (r *Runner) fire(ctx context.Context) {
	now := r.now()
	if !r.schedule.Due(now) {
		return
	}
	r.schedule.MarkRun(now)
	if err := r.fn(ctx); err != nil {
		r.logger.Error("scheduled dispatch failed", "error", err)
	}
}
