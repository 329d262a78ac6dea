package instrument

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/KI7MT/ocean-lab-apps/internal/units"
)

// SonicRecordSize is the length of one Gill R3A log record.
const SonicRecordSize = 30

// Gill R3A frame offsets (bytes from record start).
const (
	sonicOffU = 21
	sonicOffV = 23
	sonicOffW = 25
	sonicOffT = 27
)

// sonicScale is counts per m/s and per K.
const sonicScale = 100.0

// SonicRecord is one decoded sonic anemometer sample.
type SonicRecord struct {
	Time time.Time
	U    float64 // m/s
	V    float64 // m/s
	W    float64 // m/s
	TSos float64 // speed-of-sound temperature, °C
}

// DecodeSonic decodes one 30-byte Gill R3A record.
func DecodeSonic(b []byte) (SonicRecord, error) {
	if len(b) < SonicRecordSize {
		return SonicRecord{}, ErrShortRecord
	}
	ts, err := parseStamp(b)
	if err != nil {
		return SonicRecord{}, err
	}
	return SonicRecord{
		Time: ts,
		U:    float64(be16(b, sonicOffU)) / sonicScale,
		V:    float64(be16(b, sonicOffV)) / sonicScale,
		W:    float64(be16(b, sonicOffW)) / sonicScale,
		TSos: units.KelvinToCelsius(float64(be16(b, sonicOffT)) / sonicScale),
	}, nil
}

// NewSonicScanner returns a scanner over a Gill R3A log stream.
func NewSonicScanner(r io.Reader, opts Options) *Scanner[SonicRecord] {
	return newScanner(r, SonicRecordSize, "sonic", DecodeSonic, opts)
}

// ReadSonicFile decodes every record of a sonic log file.
func ReadSonicFile(path string, opts Options) ([]SonicRecord, ParseStats, error) {
	f, err := OpenLog(path)
	if err != nil {
		return nil, ParseStats{}, err
	}
	defer f.Close()
	return readAll(NewSonicScanner(f, opts))
}

func be16(b []byte, off int) int16 {
	return int16(binary.BigEndian.Uint16(b[off : off+2]))
}
