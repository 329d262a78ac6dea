// Package instrument decodes shipboard instrument logs written by Moxa serial
// loggers.
//
// Supported formats:
//   - Gill R3A sonic anemometer: fixed 30-byte binary records
//   - Crossbow NAV440 IMU: fixed 59-byte binary records
//   - Hemisphere Crescent VS100 GPS compass: tab-separated logger time + NMEA
//
// Binary records start with a 16-byte ASCII logger timestamp
// "YYMMDDHHmmss.fff" followed by the instrument frame. Packed values are
// big-endian int16 at fixed offsets; offsets and scale factors are the
// instrument vendors' and are kept as opaque constants.
//
// Decoding never fails on a bad record: it is counted in ParseStats and
// skipped. Only I/O errors are returned.
package instrument

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/klauspost/pgzip"

	"github.com/KI7MT/ocean-lab-apps/internal/timefmt"
)

// MaxErrorsToLog limits per-record diagnostics for a single log file.
const MaxErrorsToLog = 10

// stampLen is the length of the ASCII logger timestamp heading binary records.
const stampLen = 16

// ErrShortRecord is reported for a record that ends before its fixed size.
var ErrShortRecord = errors.New("short record")

// Kind names an instrument log format.
type Kind string

const (
	KindSonic Kind = "sonic"
	KindIMU   Kind = "imu"
	KindGPS   Kind = "gps"
)

// ParseKind validates an instrument name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSonic, KindIMU, KindGPS:
		return k, nil
	default:
		return "", fmt.Errorf("unknown instrument %q (allowed: sonic, imu, gps)", s)
	}
}

// ParseStats holds statistics for a decode operation.
type ParseStats struct {
	TotalRecords int64 // Records read, including skipped ones
	Decoded      int64 // Records successfully decoded
	Failed       int64 // Records that failed to decode
	Ignored      int64 // Lines of other sentence types (GPS only)
	BytesRead    int64
}

// Options controls decoding behavior.
type Options struct {
	// SkipFirst discards the first binary record of the stream. Loggers start
	// a file mid-frame, so the first record is normally garbage.
	SkipFirst bool

	// ApplyHemisphere signs GPS latitudes south and longitudes west negative.
	ApplyHemisphere bool

	// Logger receives throttled per-record diagnostics. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns the options matching the loggers' file layout.
func DefaultOptions() Options {
	return Options{
		SkipFirst:       true,
		ApplyHemisphere: true,
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// parseStamp decodes the 16-byte logger timestamp at the start of b.
func parseStamp(b []byte) (time.Time, error) {
	if len(b) < stampLen {
		return time.Time{}, ErrShortRecord
	}
	s, err := timefmt.MoxaTime(string(b[:stampLen]))
	if err != nil {
		return time.Time{}, err
	}
	return timefmt.ParseStamp(s)
}

// Scanner reads fixed-size records from a stream one at a time.
type Scanner[T any] struct {
	r       io.Reader
	buf     []byte
	decode  func([]byte) (T, error)
	opts    Options
	name    string
	rec     T
	stats   ParseStats
	err     error
	started bool
	errors  int
}

func newScanner[T any](r io.Reader, size int, name string, decode func([]byte) (T, error), opts Options) *Scanner[T] {
	return &Scanner[T]{
		r:      bufio.NewReaderSize(r, 64*1024),
		buf:    make([]byte, size),
		decode: decode,
		opts:   opts,
		name:   name,
	}
}

// Scan advances to the next decodable record. It returns false at end of
// input or on a read error, which is then available from Err.
func (s *Scanner[T]) Scan() bool {
	if s.err != nil {
		return false
	}
	if !s.started {
		s.started = true
		if s.opts.SkipFirst {
			n, err := io.ReadFull(s.r, s.buf)
			s.stats.BytesRead += int64(n)
			if err != nil {
				s.setReadErr(err)
				return false
			}
		}
	}

	for {
		n, err := io.ReadFull(s.r, s.buf)
		s.stats.BytesRead += int64(n)
		if err == io.EOF {
			return false
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			s.stats.TotalRecords++
			s.fail(ErrShortRecord)
			return false
		}
		if err != nil {
			s.err = err
			return false
		}

		s.stats.TotalRecords++
		rec, err := s.decode(s.buf)
		if err != nil {
			s.fail(err)
			continue
		}
		s.stats.Decoded++
		s.rec = rec
		return true
	}
}

func (s *Scanner[T]) setReadErr(err error) {
	if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
		return
	}
	s.err = err
}

func (s *Scanner[T]) fail(err error) {
	s.stats.Failed++
	s.errors++
	if s.errors <= MaxErrorsToLog {
		s.opts.logger().Debug("skipping record",
			"instrument", s.name,
			"record", s.stats.TotalRecords,
			"err", err,
		)
	}
}

// Record returns the record decoded by the last successful Scan.
func (s *Scanner[T]) Record() T { return s.rec }

// Err returns the first non-EOF read error.
func (s *Scanner[T]) Err() error { return s.err }

// Stats returns decode statistics so far.
func (s *Scanner[T]) Stats() ParseStats { return s.stats }

// readAll drains a scanner into a slice.
func readAll[T any](s *Scanner[T]) ([]T, ParseStats, error) {
	var out []T
	for s.Scan() {
		out = append(out, s.Record())
	}
	return out, s.Stats(), s.Err()
}

// OpenLog opens a log file for reading, transparently decompressing files
// ending in .gz.
func OpenLog(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := pgzip.NewReaderN(f, 256*1024, runtime.NumCPU())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("gzip %s: %w", path, err)
	}
	return &gzipFile{Reader: gz, f: f}, nil
}

type gzipFile struct {
	*pgzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if cerr := g.f.Close(); err == nil {
		err = cerr
	}
	return err
}
