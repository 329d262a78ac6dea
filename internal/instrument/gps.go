package instrument

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/KI7MT/ocean-lab-apps/internal/timefmt"
)

// rmcSentence is the NMEA recommended-minimum sentence decoded from GPS logs.
const rmcSentence = "$GPRMC"

// RMC field indices.
const (
	rmcUTC    = 1
	rmcStatus = 2
	rmcLat    = 3
	rmcNS     = 4
	rmcLon    = 5
	rmcEW     = 6
	rmcSOG    = 7
	rmcCOG    = 8
	rmcDate   = 9
	rmcMagVar = 10
	rmcVarDir = 11

	rmcMinFields = 12
)

// GPSFix is one decoded RMC sentence with its logger timestamp.
type GPSFix struct {
	GPSTime    time.Time
	LoggerTime time.Time
	Status     string  // "A" valid, "V" invalid
	Lat        float64 // decimal degrees
	Lon        float64 // decimal degrees
	SOGKnots   float64 // speed over ground
	COG        float64 // course over ground, degrees true
	MagVar     float64 // magnetic variation, degrees; NaN when absent
	VarDir     string  // "E" or "W"
}

// Valid reports whether the receiver flagged the fix as valid.
func (f GPSFix) Valid() bool { return f.Status == "A" }

// DecodeGPSLine decodes one "<logger time>\t<NMEA sentence>" log line.
// ok is false for well-formed lines carrying another sentence type.
func DecodeGPSLine(line string, applyHemisphere bool) (fix GPSFix, ok bool, err error) {
	loggerStamp, sentence, found := strings.Cut(strings.TrimRight(line, "\r\n"), "\t")
	if !found {
		return GPSFix{}, false, fmt.Errorf("no tab separator")
	}
	fields := strings.Split(strings.TrimSpace(sentence), ",")
	if fields[0] != rmcSentence {
		return GPSFix{}, false, nil
	}
	if len(fields) < rmcMinFields {
		return GPSFix{}, false, fmt.Errorf("RMC has %d fields, need %d", len(fields), rmcMinFields)
	}

	lon, lat, err := timefmt.LonLatDM(fields[rmcLon], fields[rmcLat])
	if err != nil {
		return GPSFix{}, false, err
	}
	if applyHemisphere {
		if fields[rmcNS] == "S" {
			lat = -lat
		}
		if fields[rmcEW] == "W" {
			lon = -lon
		}
	}

	gpsStr, err := timefmt.GPSTime(fields[rmcDate], fields[rmcUTC])
	if err != nil {
		return GPSFix{}, false, err
	}
	gpsTime, err := timefmt.ParseStamp(gpsStr)
	if err != nil {
		return GPSFix{}, false, err
	}
	loggerStr, err := timefmt.MoxaTime(loggerStamp)
	if err != nil {
		return GPSFix{}, false, err
	}
	loggerTime, err := timefmt.ParseStamp(loggerStr)
	if err != nil {
		return GPSFix{}, false, err
	}

	sog, err := parseOptFloat(fields[rmcSOG])
	if err != nil {
		return GPSFix{}, false, fmt.Errorf("invalid SOG: %w", err)
	}
	cog, err := parseOptFloat(fields[rmcCOG])
	if err != nil {
		return GPSFix{}, false, fmt.Errorf("invalid COG: %w", err)
	}
	magVar, err := parseOptFloat(fields[rmcMagVar])
	if err != nil {
		return GPSFix{}, false, fmt.Errorf("invalid magnetic variation: %w", err)
	}
	varDir, _, _ := strings.Cut(fields[rmcVarDir], "*")

	return GPSFix{
		GPSTime:    gpsTime,
		LoggerTime: loggerTime,
		Status:     fields[rmcStatus],
		Lat:        lat,
		Lon:        lon,
		SOGKnots:   sog,
		COG:        cog,
		MagVar:     magVar,
		VarDir:     varDir,
	}, true, nil
}

// parseOptFloat parses an NMEA numeric field; empty fields are NaN.
func parseOptFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// maxLineLen bounds a GPS log line. Longer lines are skipped as failed.
const maxLineLen = 64 * 1024

// ErrLineTooLong is reported for a GPS log line longer than maxLineLen.
var ErrLineTooLong = errors.New("line too long")

// ReadGPS decodes every RMC sentence of a GPS log stream. Other sentences
// ($GPVTG, $GPHDT) are counted as ignored; malformed lines are skipped.
func ReadGPS(r io.Reader, opts Options) ([]GPSFix, ParseStats, error) {
	var (
		stats  ParseStats
		fixes  []GPSFix
		failed int
	)
	logger := opts.logger()
	fail := func(err error) {
		stats.Failed++
		failed++
		if failed <= MaxErrorsToLog {
			logger.Debug("skipping line", "instrument", "gps", "line", stats.TotalRecords, "err", err)
		}
	}

	br := bufio.NewReaderSize(r, maxLineLen)
	for {
		raw, err := br.ReadSlice('\n')
		n := len(raw)
		tooLong := false
		for err == bufio.ErrBufferFull {
			tooLong = true
			raw, err = br.ReadSlice('\n')
			n += len(raw)
		}
		stats.BytesRead += int64(n)

		switch {
		case tooLong:
			stats.TotalRecords++
			fail(ErrLineTooLong)
		case n > 0:
			line := strings.TrimRight(string(raw), "\r\n")
			if strings.TrimSpace(line) == "" {
				break
			}
			stats.TotalRecords++
			fix, ok, derr := DecodeGPSLine(line, opts.ApplyHemisphere)
			if derr != nil {
				fail(derr)
				break
			}
			if !ok {
				stats.Ignored++
				break
			}
			stats.Decoded++
			fixes = append(fixes, fix)
		}

		if err == io.EOF {
			return fixes, stats, nil
		}
		if err != nil {
			return fixes, stats, err
		}
	}
}

// ReadGPSFile decodes every RMC sentence of a GPS log file.
func ReadGPSFile(path string, opts Options) ([]GPSFix, ParseStats, error) {
	f, err := OpenLog(path)
	if err != nil {
		return nil, ParseStats{}, err
	}
	defer f.Close()
	return ReadGPS(f, opts)
}
