package thredds

import (
	"fmt"
	"time"
)

// CFSv2 monthly-mean surface flux analyses at NCEI.
const cfsv2CatalogFormat = "https://www.ncei.noaa.gov/thredds/catalog/model-cfs_v2_anl_mm_flxf/%04d/%04d%02d/catalog.xml"

// CFSv2Box covers the southern hemisphere.
var CFSv2Box = Box{North: 0, South: -90, East: 360, West: 0}

// CFSv2CatalogURL returns the catalog for one month of CFSv2 flux analyses.
func CFSv2CatalogURL(year, month int) string {
	return fmt.Sprintf(cfsv2CatalogFormat, year, year, month)
}

// CFSv2Dataset returns the name of the 00Z monthly mean flux dataset.
func CFSv2Dataset(year, month int) string {
	return fmt.Sprintf("flxf00.gdas.%04d%02d.grib2", year, month)
}

// CFSv2FileName returns the local file name for one month.
func CFSv2FileName(year, month int) string {
	return fmt.Sprintf("cfsv2_flxf00_%04d%02d.nc", year, month)
}

// GHRSST level 4 analyses at the PO.DAAC THREDDS server.
const (
	GHRSSTCatalogURL = "https://thredds.jpl.nasa.gov/thredds/catalog_ghrsst_gds2.xml"
	OSTIADataset     = "OSTIA-UKMO-L4-GLOB-v2.0 Aggregation"
	MURDataset       = "MUR-JPL-L4-GLOB-v4.1 Aggregation"
	SSTVariable      = "analysed_sst"
)

// AgulhasBox is the default SST region south of Africa.
var AgulhasBox = Box{North: -30, South: -45, East: 24, West: 6}

// SSTFileName returns the local file name for an SST subset starting at t.
func SSTFileName(t time.Time) string {
	return fmt.Sprintf("sst_%s.nc", t.UTC().Format("20060102"))
}
