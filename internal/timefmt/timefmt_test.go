package timefmt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoxaTime(t *testing.T) {
	got, err := MoxaTime("230224153012.250")
	require.NoError(t, err)
	assert.Equal(t, "2023-02-24 15:30:12.250", got)

	got, err = MoxaTime("230224153012")
	require.NoError(t, err)
	assert.Equal(t, "2023-02-24 15:30:12", got)

	_, err = MoxaTime("2302")
	assert.True(t, errors.Is(err, ErrBadFormat))
	_, err = MoxaTime("23O224153012")
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestGPSTime(t *testing.T) {
	got, err := GPSTime("240223", "153012.50")
	require.NoError(t, err)
	assert.Equal(t, "2023-02-24 15:30:12.50", got)

	_, err = GPSTime("2402", "153012.50")
	assert.ErrorIs(t, err, ErrBadFormat)
	_, err = GPSTime("240223", "")
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestLonLatDM(t *testing.T) {
	lon, lat, err := LonLatDM("01830.0000", "3355.5000")
	require.NoError(t, err)
	assert.InDelta(t, 18.5, lon, 1e-12)
	assert.InDelta(t, 33.925, lat, 1e-12)

	_, _, err = LonLatDM("018", "3355.5")
	assert.ErrorIs(t, err, ErrBadFormat)
	_, _, err = LonLatDM("01830.0", "ab55.5")
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestParseStamp(t *testing.T) {
	ts, err := ParseStamp("2023-02-24 15:30:12.250")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 2, 24, 15, 30, 12, 250_000_000, time.UTC), ts)

	ts, err = ParseStamp("2023-02-24 15:30:12")
	require.NoError(t, err)
	assert.Equal(t, 12, ts.Second())

	_, err = ParseStamp("2023-13-24 15:30:12")
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestYearDay(t *testing.T) {
	assert.Equal(t, 0.0, YearDay(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.InDelta(t, 0.5, YearDay(time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)), 1e-12)
	assert.InDelta(t, 59.25, YearDay(time.Date(2024, 2, 29, 6, 0, 0, 0, time.UTC)), 1e-12)

	yd := YearDays([]time.Time{
		time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, []float64{364, 1}, yd)
}

func TestDatenum_RoundTrip(t *testing.T) {
	assert.Equal(t, 719529.0, ToDatenum(time.Unix(0, 0)))

	ts := time.Date(2023, 2, 24, 15, 30, 12, 250_000_000, time.UTC)
	assert.Equal(t, ts, FromDatenum(ToDatenum(ts)))
}
