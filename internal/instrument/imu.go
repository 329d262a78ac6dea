package instrument

import (
	"io"
	"time"
)

// IMURecordSize is the length of one Crossbow NAV440 log record.
const IMURecordSize = 59

// The NAV440 frame starts after the logger timestamp and a separator byte.
const imuFrameStart = 17

// NAV440 angle/rate/accel packet offsets relative to the frame start.
const (
	imuOffRoll  = 5
	imuOffPitch = 7
	imuOffYaw   = 9
	imuOffXRate = 11
	imuOffYRate = 13
	imuOffZRate = 15
	imuOffXAccl = 17
	imuOffYAccl = 19
	imuOffZAccl = 21
)

// NAV440 fixed-point scale factors.
const (
	imuAngleScale = 360.0 / (1 << 16)  // degrees per count
	imuRateScale  = 1260.0 / (1 << 16) // deg/s per count
	imuAcclScale  = 20.0 / (1 << 16)   // g per count
)

// IMURecord is one decoded IMU sample.
type IMURecord struct {
	Time  time.Time
	XRate float64 // deg/s
	YRate float64
	ZRate float64
	XAccl float64 // g
	YAccl float64
	ZAccl float64
	Roll  float64 // degrees
	Pitch float64
	Yaw   float64
}

// DecodeIMU decodes one 59-byte Crossbow NAV440 record.
func DecodeIMU(b []byte) (IMURecord, error) {
	if len(b) < IMURecordSize {
		return IMURecord{}, ErrShortRecord
	}
	ts, err := parseStamp(b)
	if err != nil {
		return IMURecord{}, err
	}
	p := b[imuFrameStart:]
	return IMURecord{
		Time:  ts,
		XRate: float64(be16(p, imuOffXRate)) * imuRateScale,
		YRate: float64(be16(p, imuOffYRate)) * imuRateScale,
		ZRate: float64(be16(p, imuOffZRate)) * imuRateScale,
		XAccl: float64(be16(p, imuOffXAccl)) * imuAcclScale,
		YAccl: float64(be16(p, imuOffYAccl)) * imuAcclScale,
		ZAccl: float64(be16(p, imuOffZAccl)) * imuAcclScale,
		Roll:  float64(be16(p, imuOffRoll)) * imuAngleScale,
		Pitch: float64(be16(p, imuOffPitch)) * imuAngleScale,
		Yaw:   float64(be16(p, imuOffYaw)) * imuAngleScale,
	}, nil
}

// NewIMUScanner returns a scanner over a NAV440 log stream.
func NewIMUScanner(r io.Reader, opts Options) *Scanner[IMURecord] {
	return newScanner(r, IMURecordSize, "imu", DecodeIMU, opts)
}

// ReadIMUFile decodes every record of an IMU log file.
func ReadIMUFile(path string, opts Options) ([]IMURecord, ParseStats, error) {
	f, err := OpenLog(path)
	if err != nil {
		return nil, ParseStats{}, err
	}
	defer f.Close()
	return readAll(NewIMUScanner(f, opts))
}
