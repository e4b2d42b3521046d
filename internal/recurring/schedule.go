package recurring

import (
	"fmt"
	"time"

	"github.com/boddenberg/moodledger-go/internal/domain"

	"github.com/teambition/rrule-go"
)

// rrule weekdays indexed by time.Weekday (Sunday first).
var weekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// cadence builds the recurrence rule of a template, searching from `from`.
//
// The grid (time of day, weekday, day of month) always comes from start, so a
// cursor resumed on a clamped date such as Feb 29 keeps the 31st as anchor.
// Monthly rules clamp to the last day of short months: a start on the 31st is
// BYMONTHDAY=28,29,30,31;BYSETPOS=-1, which picks the latest of those days
// the month has.
func cadence(freq domain.Frequency, start, from time.Time, loc *time.Location) (*rrule.RRule, error) {
	s := start.In(loc)
	opt := rrule.ROption{
		Dtstart:  from.In(loc),
		Byhour:   []int{s.Hour()},
		Byminute: []int{s.Minute()},
		Bysecond: []int{s.Second()},
	}

	switch freq {
	case domain.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case domain.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{weekdays[s.Weekday()]}
	case domain.FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday, opt.Bysetpos = clampedMonthDay(s.Day())
	default:
		return nil, fmt.Errorf("unrecognized frequency %q", freq)
	}
	return rrule.NewRRule(opt)
}

func clampedMonthDay(day int) (bymonthday, bysetpos []int) {
	if day <= 28 {
		return []int{day}, nil
	}
	for d := 28; d <= day; d++ {
		bymonthday = append(bymonthday, d)
	}
	return bymonthday, []int{-1}
}

// OccurrenceID is the deterministic transaction identifier of an occurrence.
func OccurrenceID(templateID string, at time.Time) string {
	return fmt.Sprintf("rec_%s_%d", templateID, at.UnixMilli())
}
