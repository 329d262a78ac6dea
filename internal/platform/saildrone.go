package platform

import (
	"fmt"
	"math"
)

// SaildroneFilePattern matches Saildrone NetCDF deliveries.
const SaildroneFilePattern = "saildrone*.nc"

// DefaultTrajectory is the Saildrone vehicle read when none is given.
const DefaultTrajectory = 1067

// SaildroneVars are the surface meteorology and ocean variables common to
// every Saildrone delivery.
var SaildroneVars = []string{
	"WIND_FROM_MEAN", "WIND_FROM_STDDEV",
	"WIND_SPEED_MEAN", "WIND_SPEED_STDDEV",
	"UWND_MEAN", "UWND_STDDEV",
	"VWND_MEAN", "VWND_STDDEV",
	"WWND_MEAN", "WWND_STDDEV",
	"GUST_WND_MEAN", "GUST_WND_STDDEV",
	"WIND_MEASUREMENT_HEIGHT_MEAN", "WIND_MEASUREMENT_HEIGHT_STDDEV",
	"TEMP_AIR_MEAN", "TEMP_AIR_STDDEV",
	"RH_MEAN", "RH_STDDEV",
	"BARO_PRES_MEAN", "BARO_PRES_STDDEV",
	"PAR_AIR_MEAN", "PAR_AIR_STDDEV",
	"LW_IRRAD_MEAN", "LW_IRRAD_STDDEV",
	"SW_IRRAD_TOTAL_MEAN", "SW_IRRAD_TOTAL_STDDEV",
	"SW_IRRAD_DIFFUSE_MEAN", "SW_IRRAD_DIFFUSE_STDDEV",
	"TEMP_IR_SEA_WING_UNCOMP_MEAN", "TEMP_IR_SEA_WING_UNCOMP_STDDEV",
	"WAVE_DOMINANT_PERIOD", "WAVE_SIGNIFICANT_HEIGHT",
	"TEMP_DEPTH_HALFMETER_MEAN", "TEMP_DEPTH_HALFMETER_STDDEV",
	"TEMP_SBE37_MEAN", "TEMP_SBE37_STDDEV",
	"SAL_SBE37_MEAN", "SAL_SBE37_STDDEV",
	"COND_SBE37_MEAN", "COND_SBE37_STDDEV",
	"O2_CONC_SBE37_MEAN", "O2_CONC_SBE37_STDDEV",
	"O2_SAT_SBE37_MEAN", "O2_SAT_SBE37_STDDEV",
	"CHLOR_WETLABS_MEAN", "CHLOR_WETLABS_STDDEV",
	"XCO2_DRY_SW_MEAN_ASVCO2", "XCO2_DRY_AIR_MEAN_ASVCO2",
}

// ReadSaildrone concatenates vars of one trajectory from the files in paths,
// in order, along time. Variables are (trajectory, obs); every file must carry
// the trajectory and all of vars.
func ReadSaildrone(paths []string, trajectory int, vars []string) (*Series, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}
	out := &Series{Vars: make(map[string][]float64, len(vars))}
	for _, p := range paths {
		if err := readSaildroneFile(out, p, trajectory, vars); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readSaildroneFile(out *Series, path string, trajectory int, vars []string) error {
	nc, err := openFile(path)
	if err != nil {
		return err
	}
	defer nc.Close()

	ids, _, err := readValues(nc, path, "trajectory")
	if err != nil {
		return err
	}
	row := -1
	for i, id := range ids {
		if !math.IsNaN(id) && int(id) == trajectory {
			row = i
			break
		}
	}
	if row < 0 {
		return fmt.Errorf("%s: trajectory %d not found", path, trajectory)
	}

	ts, err := readTimes(nc, path, "time")
	if err != nil {
		return err
	}
	if len(ts)%len(ids) != 0 {
		return fmt.Errorf("%w: %s: time has %d values for %d trajectories", ErrLengthMismatch, path, len(ts), len(ids))
	}
	nobs := len(ts) / len(ids)
	lo, hi := row*nobs, (row+1)*nobs

	data := make(map[string][]float64, len(vars))
	for _, name := range vars {
		vals, _, err := readValues(nc, path, name)
		if err != nil {
			return err
		}
		if len(vals) != len(ts) {
			return fmt.Errorf("%w: %s: %s has %d values, time has %d", ErrLengthMismatch, path, name, len(vals), len(ts))
		}
		data[name] = vals[lo:hi]
	}

	out.Time = append(out.Time, ts[lo:hi]...)
	for _, name := range vars {
		out.appendVar(name, data[name])
	}
	return nil
}
