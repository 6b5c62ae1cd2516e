package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeeklyIntervalOverlaps(t *testing.T) {
	base := WeeklyInterval{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"}

	cases := []struct {
		name     string
		other    WeeklyInterval
		overlaps bool
	}{
		{"identical", WeeklyInterval{1, "09:00", "10:00"}, true},
		{"contained", WeeklyInterval{1, "09:15", "09:45"}, true},
		{"containing", WeeklyInterval{1, "08:00", "11:00"}, true},
		{"partial front", WeeklyInterval{1, "08:30", "09:30"}, true},
		{"partial back", WeeklyInterval{1, "09:30", "10:30"}, true},
		{"back to back after", WeeklyInterval{1, "10:00", "11:00"}, false},
		{"back to back before", WeeklyInterval{1, "08:00", "09:00"}, false},
		{"disjoint", WeeklyInterval{1, "11:00", "12:00"}, false},
		{"other day same time", WeeklyInterval{2, "09:00", "10:00"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.overlaps, base.Overlaps(tc.other))
			assert.Equal(t, tc.overlaps, tc.other.Overlaps(base))
		})
	}
}

func TestWeeklyIntervalValid(t *testing.T) {
	assert.True(t, WeeklyInterval{DayOfWeek: 7, StartTime: "00:00", EndTime: "23:59"}.Valid())

	assert.False(t, WeeklyInterval{DayOfWeek: 0, StartTime: "09:00", EndTime: "10:00"}.Valid())
	assert.False(t, WeeklyInterval{DayOfWeek: 8, StartTime: "09:00", EndTime: "10:00"}.Valid())
	assert.False(t, WeeklyInterval{DayOfWeek: 1, StartTime: "10:00", EndTime: "10:00"}.Valid())
	assert.False(t, WeeklyInterval{DayOfWeek: 1, StartTime: "10:00", EndTime: "09:00"}.Valid())
	assert.False(t, WeeklyInterval{DayOfWeek: 1, StartTime: "9:00", EndTime: "10:00"}.Valid())
	assert.False(t, WeeklyInterval{DayOfWeek: 1, StartTime: "24:00", EndTime: "25:00"}.Valid())
	assert.False(t, WeeklyInterval{DayOfWeek: 1, StartTime: "09:60", EndTime: "10:00"}.Valid())
}

func TestValidClock(t *testing.T) {
	assert.True(t, ValidClock("00:00"))
	assert.True(t, ValidClock("23:59"))
	assert.False(t, ValidClock("24:00"))
	assert.False(t, ValidClock("12:60"))
	assert.False(t, ValidClock("1200"))
	assert.False(t, ValidClock("12-00"))
	assert.False(t, ValidClock("ab:cd"))
}
