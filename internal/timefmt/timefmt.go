// Package timefmt converts the fixed-format date, time and position strings
// written by shipboard data loggers into ISO-like strings, times and decimal
// degrees.
package timefmt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrBadFormat is returned when an input string does not have the expected
// fixed-width layout.
var ErrBadFormat = errors.New("timefmt: bad format")

// Layout is the output layout of MoxaTime and GPSTime, without fractional
// seconds. ParseStamp accepts it with or without a fractional part.
const Layout = "2006-01-02 15:04:05"

// MoxaTime converts a Moxa logger timestamp "YYMMDDHHmmss[.fff]" into
// "20YY-MM-DD HH:mm:ss[.fff]".
func MoxaTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 12 || !digits(s[:12]) {
		return "", fmt.Errorf("%w: moxa time %q", ErrBadFormat, s)
	}
	return "20" + s[:2] + "-" + s[2:4] + "-" + s[4:6] + " " +
		s[6:8] + ":" + s[8:10] + ":" + s[10:], nil
}

// GPSTime combines an NMEA date "DDMMYY" and UTC time "HHMMSS[.sss]" into
// "20YY-MM-DD HH:MM:SS[.sss]".
func GPSTime(date, utc string) (string, error) {
	date = strings.TrimSpace(date)
	utc = strings.TrimSpace(utc)
	if len(date) < 6 || !digits(date[:6]) {
		return "", fmt.Errorf("%w: gps date %q", ErrBadFormat, date)
	}
	if len(utc) < 6 || !digits(utc[:6]) {
		return "", fmt.Errorf("%w: gps utc %q", ErrBadFormat, utc)
	}
	return "20" + date[4:6] + "-" + date[2:4] + "-" + date[:2] + " " +
		utc[:2] + ":" + utc[2:4] + ":" + utc[4:], nil
}

// LonLatDM converts NMEA degree-minute strings (DDDMM.MMMM longitude,
// DDMM.MMMM latitude) to unsigned decimal degrees.
func LonLatDM(lon, lat string) (float64, float64, error) {
	lo, err := degMin(lon, 3)
	if err != nil {
		return 0, 0, fmt.Errorf("longitude: %w", err)
	}
	la, err := degMin(lat, 2)
	if err != nil {
		return 0, 0, fmt.Errorf("latitude: %w", err)
	}
	return lo, la, nil
}

func degMin(s string, degWidth int) (float64, error) {
	s = strings.TrimSpace(s)
	if len(s) <= degWidth {
		return 0, fmt.Errorf("%w: %q", ErrBadFormat, s)
	}
	deg, err := strconv.ParseFloat(s[:degWidth], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadFormat, s)
	}
	minutes, err := strconv.ParseFloat(s[degWidth:], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadFormat, s)
	}
	return deg + minutes/60, nil
}

// ParseStamp parses "YYYY-MM-DD HH:MM:SS[.fff...]" in UTC.
func ParseStamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04:05.999999999", strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	return t, nil
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
