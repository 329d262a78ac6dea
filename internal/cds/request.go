package cds

import (
	"fmt"
	"path/filepath"
)

// Request is the inputs document of an ERA5 single-levels retrieval.
type Request struct {
	ProductType    []string  `json:"product_type"`
	Variable       []string  `json:"variable"`
	Year           []string  `json:"year"`
	Month          []string  `json:"month"`
	Day            []string  `json:"day"`
	Time           []string  `json:"time"`
	Area           []float64 `json:"area,omitempty"` // N, W, S, E
	DataFormat     string    `json:"data_format"`
	DownloadFormat string    `json:"download_format"`
}

// SouthernHemisphere is the N/W/S/E box covering everything south of the
// equator.
var SouthernHemisphere = []float64{0, 0, -90, 360}

// MonthlyRequest builds a request for every hour of the given days of one
// month of a variable over the southern hemisphere. No days means the whole
// month; invalid dates are ignored by the server.
func MonthlyRequest(variable string, year, month int, days []int) Request {
	if len(days) == 0 {
		days = make([]int, 31)
		for i := range days {
			days[i] = i + 1
		}
	}
	dayStrs := make([]string, len(days))
	for i, d := range days {
		dayStrs[i] = fmt.Sprintf("%02d", d)
	}
	hours := make([]string, 24)
	for h := range hours {
		hours[h] = fmt.Sprintf("%02d:00", h)
	}
	return Request{
		ProductType:    []string{"reanalysis"},
		Variable:       []string{variable},
		Year:           []string{fmt.Sprintf("%04d", year)},
		Month:          []string{fmt.Sprintf("%02d", month)},
		Day:            dayStrs,
		Time:           hours,
		Area:           append([]float64(nil), SouthernHemisphere...),
		DataFormat:     "netcdf",
		DownloadFormat: "unarchived",
	}
}

// FileName returns the local file name for one variable-month, optionally
// prefixed (for example "era5_").
func FileName(prefix, variable string, year, month int) string {
	return fmt.Sprintf("%s%s_%04d%02d.nc", prefix, variable, year, month)
}

// FilePath joins dir and FileName.
func FilePath(dir, prefix, variable string, year, month int) string {
	return filepath.Join(dir, FileName(prefix, variable, year, month))
}
