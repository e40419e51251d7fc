package notification

import (
	"time"
)

type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
	PeriodNight     Period = "night"
)

// QuietHours is a half-open local-hour window [Start, End).
type QuietHours struct {
	Start int
	End   int
}

// DefaultQuietHours silences midnight to 7am.
var DefaultQuietHours = QuietHours{Start: 0, End: 7}

// Contains reports whether hour falls inside the window. Windows that wrap
// past midnight (Start > End) are supported.
func (q QuietHours) Contains(hour int) bool {
	if q.Start == q.End {
		return false
	}
	if q.Start < q.End {
		return hour >= q.Start && hour < q.End
	}
	return hour >= q.Start || hour < q.End
}

// TimeContext is a subscriber's local view of the current instant.
type TimeContext struct {
	Hour      int    `json:"hour"`
	DayOfWeek string `json:"day_of_week"`
	Period    Period `json:"period"`
	Location  string `json:"location"`
}

// ResolveTimeContext converts now into the subscriber's timezone. An empty or
// unknown zone name resolves to UTC.
func ResolveTimeContext(timezone string, now time.Time) TimeContext {
	loc := time.UTC
	if timezone != "" {
		if l, err := time.LoadLocation(timezone); err == nil {
			loc = l
		}
	}

	local := now.In(loc)
	hour := local.Hour()
	return TimeContext{
		Hour:      hour,
		DayOfWeek: local.Weekday().String(),
		Period:    periodFor(hour),
		Location:  loc.String(),
	}
}

func periodFor(hour int) Period {
	switch {
	case hour >= 5 && hour < 12:
		return PeriodMorning
	case hour >= 12 && hour < 17:
		return PeriodAfternoon
	case hour >= 17 && hour < 21:
		return PeriodEvening
	default:
		return PeriodNight
	}
}

// IsQuietHours applies the default quiet window.
func (tc TimeContext) IsQuietHours() bool {
	return DefaultQuietHours.Contains(tc.Hour)
}
