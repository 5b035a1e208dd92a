package accrual

import (
	"testing"

	"github.com/cocrecords/coc-engine/coc"
	"github.com/stretchr/testify/assert"
)

func TestParseTime(t *testing.T) {
	cases := []struct {
		in      string
		minutes int
		ok      bool
	}{
		{"8:00 AM", 480, true},
		{"12:00 AM", 0, true},
		{"12:00 PM", 720, true},
		{"1:00 pm", 780, true},
		{"", 0, false},
		{"13:00 AM", 0, false},
		{"8:60 AM", 0, false},
		{"garbage", 0, false},
	}
	for _, c := range cases {
		minutes, ok := ParseTime(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		if ok {
			assert.Equal(t, c.minutes, minutes, c.in)
		}
	}
}

// Scenario 1: weekday single session (spec.md §8).
func TestCompute_WeekdaySingleSession(t *testing.T) {
	hours := Compute(coc.Weekday, "8:00 AM", "12:00 PM", "1:00 PM", "6:30 PM")
	assert.True(t, hours.Value.Equal(coc.NewHours(1.5).Value))
}

// Scenario 2: weekend full day (spec.md §8).
func TestCompute_WeekendFullDay(t *testing.T) {
	hours := Compute(coc.Weekend, "8:00 AM", "12:00 PM", "1:00 PM", "5:00 PM")
	assert.True(t, hours.Value.Equal(coc.NewHours(12.0).Value))
}

func TestCompute_WeekdayClamp(t *testing.T) {
	hours := Compute(coc.Weekday, "4:00 PM", "8:00 PM", "", "")
	assert.True(t, hours.Value.Equal(coc.NewHours(2.0).Value))
}

func TestCompute_OutBeforeIn(t *testing.T) {
	hours := Compute(coc.Weekday, "6:00 PM", "5:00 PM", "", "")
	assert.True(t, hours.IsZero())
}

func TestCompute_InvalidTimesContributeZero(t *testing.T) {
	hours := Compute(coc.Weekday, "garbage", "also garbage", "", "")
	assert.True(t, hours.IsZero())
}

func TestCompute_NeverNegative(t *testing.T) {
	hours := Compute(coc.Weekend, "", "", "", "")
	assert.False(t, hours.IsNegative())
}
