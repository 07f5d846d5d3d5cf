package reminder

import (
	"fmt"
	"time"
)

// Clock returns the current time. Components take one so tests can pin it.
type Clock func() time.Time

// TargetDate returns midnight of the calendar day leadDays after now's date,
// in now's location.
func TargetDate(now time.Time, leadDays int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+leadDays, 0, 0, 0, 0, now.Location())
}

// DayBounds returns the half-open range [start, end) covering day's calendar
// date in day's location.
func DayBounds(day time.Time) (start, end time.Time) {
	y, m, d := day.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	end = time.Date(y, m, d+1, 0, 0, 0, 0, day.Location())
	return start, end
}

// TimeUntil describes how far away scheduledAt is: whole days when at least
// a day remains, whole hours when at least an hour remains, otherwise
// "very soon".
func TimeUntil(now, scheduledAt time.Time) string {
	d := scheduledAt.Sub(now)
	switch {
	case d >= 24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day")
	case d >= time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return "very soon"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("in 1 %s", unit)
	}
	return fmt.Sprintf("in %d %ss", n, unit)
}
