package notification

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
)

// 2024-01-01 is a Monday.
var monday10UTC = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func TestResolveTimeContext(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		want     TimeContext
	}{
		{
			name:     "empty zone is UTC",
			timezone: "",
			want:     TimeContext{Hour: 10, DayOfWeek: "Monday", Period: PeriodMorning, Location: "UTC"},
		},
		{
			name:     "invalid zone is UTC",
			timezone: "Mars/Olympus_Mons",
			want:     TimeContext{Hour: 10, DayOfWeek: "Monday", Period: PeriodMorning, Location: "UTC"},
		},
		{
			name:     "west of UTC",
			timezone: "America/New_York",
			want:     TimeContext{Hour: 5, DayOfWeek: "Monday", Period: PeriodMorning, Location: "America/New_York"},
		},
		{
			name:     "east of UTC",
			timezone: "Asia/Tokyo",
			want:     TimeContext{Hour: 19, DayOfWeek: "Monday", Period: PeriodEvening, Location: "Asia/Tokyo"},
		},
		{
			name:     "crosses into previous day",
			timezone: "Pacific/Honolulu",
			want:     TimeContext{Hour: 0, DayOfWeek: "Monday", Period: PeriodNight, Location: "Pacific/Honolulu"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveTimeContext(tt.timezone, monday10UTC))
		})
	}
}

func TestResolveTimeContext_DayRollsBack(t *testing.T) {
	tc := ResolveTimeContext("America/Los_Angeles", time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC))
	assert.Equal(t, 19, tc.Hour)
	assert.Equal(t, "Sunday", tc.DayOfWeek)
	assert.Equal(t, PeriodEvening, tc.Period)
}

func TestPeriodBoundaries(t *testing.T) {
	want := map[int]Period{
		0: PeriodNight, 4: PeriodNight,
		5: PeriodMorning, 11: PeriodMorning,
		12: PeriodAfternoon, 16: PeriodAfternoon,
		17: PeriodEvening, 20: PeriodEvening,
		21: PeriodNight, 23: PeriodNight,
	}
	for hour, period := range want {
		assert.Equal(t, period, periodFor(hour), "hour %d", hour)
	}
}

func TestQuietHours(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		tc := TimeContext{Hour: hour}
		assert.Equal(t, hour < 7, tc.IsQuietHours(), "hour %d", hour)
	}
}

func TestQuietHours_Windows(t *testing.T) {
	tests := []struct {
		name   string
		window QuietHours
		quiet  []int
		loud   []int
	}{
		{"default", DefaultQuietHours, []int{0, 3, 6}, []int{7, 12, 23}},
		{"wraps midnight", QuietHours{Start: 22, End: 6}, []int{22, 23, 0, 5}, []int{6, 12, 21}},
		{"empty", QuietHours{Start: 3, End: 3}, nil, []int{0, 3, 23}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, h := range tt.quiet {
				assert.True(t, tt.window.Contains(h), "hour %d", h)
			}
			for _, h := range tt.loud {
				assert.False(t, tt.window.Contains(h), "hour %d", h)
			}
		})
	}
}
