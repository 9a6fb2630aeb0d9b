package record

import "time"

// TimestampLayout formats record timestamps and action log keys
// (month-day-year_hour-minute-second).
const TimestampLayout = "01-02-2006_15-04-05"

// Clock supplies the wall-clock time for timestamps and log keys.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ParseTimestamp parses a record timestamp or action log key. Collision
// suffixes (".1", ".2", ...) are ignored.
func ParseTimestamp(s string) (time.Time, error) {
	base, _ := splitLogKey(s)
	return time.ParseInLocation(TimestampLayout, base, time.Local)
}
