// Package thredds reads THREDDS Data Server catalogs and builds NetCDF
// Subset Service (NCSS) requests against the datasets they list.
package thredds

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrDatasetNotFound is returned when a catalog has no dataset by the
	// requested name.
	ErrDatasetNotFound = errors.New("thredds: dataset not found")

	// ErrNoSubsetService is returned when a catalog offers no NetcdfSubset
	// service.
	ErrNoSubsetService = errors.New("thredds: no NetcdfSubset service")
)

const subsetServiceType = "netcdfsubset"

type catalogXML struct {
	Services []serviceXML `xml:"service"`
	Datasets []datasetXML `xml:"dataset"`
}

type serviceXML struct {
	Name     string       `xml:"name,attr"`
	Type     string       `xml:"serviceType,attr"`
	Base     string       `xml:"base,attr"`
	Services []serviceXML `xml:"service"`
}

type datasetXML struct {
	Name     string       `xml:"name,attr"`
	ID       string       `xml:"ID,attr"`
	URLPath  string       `xml:"urlPath,attr"`
	Datasets []datasetXML `xml:"dataset"`
}

// Service is a data access service advertised by a catalog.
type Service struct {
	Name string
	Type string
	Base string
}

// Dataset is a catalog leaf that can be accessed through a service.
type Dataset struct {
	Name    string
	ID      string
	URLPath string
}

// Catalog is a parsed catalog.xml with nested services and datasets
// flattened.
type Catalog struct {
	URL      *url.URL
	Services []Service
	Datasets []Dataset
}

// Fetch downloads and parses the catalog at catalogURL.
func Fetch(ctx context.Context, client *http.Client, catalogURL string) (*Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, catalogURL, nil)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch catalog %s: HTTP %d", catalogURL, resp.StatusCode)
	}
	return Parse(catalogURL, resp.Body)
}

// Parse reads a catalog document fetched from catalogURL.
func Parse(catalogURL string, r io.Reader) (*Catalog, error) {
	base, err := url.Parse(catalogURL)
	if err != nil {
		return nil, err
	}
	var doc catalogXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", catalogURL, err)
	}

	c := &Catalog{URL: base}
	var addServices func([]serviceXML)
	addServices = func(ss []serviceXML) {
		for _, s := range ss {
			c.Services = append(c.Services, Service{Name: s.Name, Type: s.Type, Base: s.Base})
			addServices(s.Services)
		}
	}
	addServices(doc.Services)

	var addDatasets func([]datasetXML)
	addDatasets = func(ds []datasetXML) {
		for _, d := range ds {
			c.Datasets = append(c.Datasets, Dataset{Name: d.Name, ID: d.ID, URLPath: d.URLPath})
			addDatasets(d.Datasets)
		}
	}
	addDatasets(doc.Datasets)
	return c, nil
}

// Dataset returns the dataset called name.
func (c *Catalog) Dataset(name string) (Dataset, error) {
	for _, d := range c.Datasets {
		if d.Name == name {
			return d, nil
		}
	}
	return Dataset{}, fmt.Errorf("%w: %q in %s", ErrDatasetNotFound, name, c.URL)
}

// SubsetURL returns the NCSS endpoint of ds.
func (c *Catalog) SubsetURL(ds Dataset) (*url.URL, error) {
	if ds.URLPath == "" {
		return nil, fmt.Errorf("dataset %q has no urlPath", ds.Name)
	}
	for _, s := range c.Services {
		if strings.ToLower(s.Type) != subsetServiceType {
			continue
		}
		ref, err := url.Parse(s.Base + ds.URLPath)
		if err != nil {
			return nil, err
		}
		return c.URL.ResolveReference(ref), nil
	}
	return nil, ErrNoSubsetService
}

// QueryURL returns the full NCSS request URL for ds and q.
func (c *Catalog) QueryURL(ds Dataset, q Query) (string, error) {
	u, err := c.SubsetURL(ds)
	if err != nil {
		return "", err
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Box is a lon/lat bounding box in degrees.
type Box struct {
	North, South, East, West float64
}

// Query is an NCSS grid subset request.
type Query struct {
	Vars      []string
	Box       *Box
	TimeStart time.Time
	TimeEnd   time.Time
	Accept    string // defaults to netcdf
}

// Encode returns the URL query string.
func (q Query) Encode() string {
	v := url.Values{}
	for _, name := range q.Vars {
		v.Add("var", name)
	}
	if q.Box != nil {
		v.Set("north", ftoa(q.Box.North))
		v.Set("south", ftoa(q.Box.South))
		v.Set("east", ftoa(q.Box.East))
		v.Set("west", ftoa(q.Box.West))
	}
	if !q.TimeStart.IsZero() {
		v.Set("time_start", q.TimeStart.UTC().Format(time.RFC3339))
	}
	if !q.TimeEnd.IsZero() {
		v.Set("time_end", q.TimeEnd.UTC().Format(time.RFC3339))
	}
	accept := q.Accept
	if accept == "" {
		accept = "netcdf"
	}
	v.Set("accept", accept)
	return v.Encode()
}

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
