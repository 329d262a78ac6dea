package timefmt

import (
	"math"
	"time"
)

// datenumUnixEpoch is the MATLAB datenum of 1970-01-01 00:00:00.
const datenumUnixEpoch = 719529

const msPerDay = 24 * 60 * 60 * 1000

// YearDay returns the fractional number of days elapsed since January 1st,
// 00:00 of t's year (in t's location). January 1st noon is 0.5.
func YearDay(t time.Time) float64 {
	start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	return t.Sub(start).Hours() / 24
}

// YearDays applies YearDay element-wise.
func YearDays(ts []time.Time) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = YearDay(t)
	}
	return out
}

// ToDatenum converts t to a MATLAB serial date number.
func ToDatenum(t time.Time) float64 {
	return datenumUnixEpoch + float64(t.UnixMilli())/msPerDay
}

// FromDatenum converts a MATLAB serial date number to a UTC time, rounded to
// the nearest millisecond.
func FromDatenum(d float64) time.Time {
	ms := math.Round((d - datenumUnixEpoch) * msPerDay)
	return time.UnixMilli(int64(ms)).UTC()
}
