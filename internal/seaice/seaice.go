// Package seaice lists and selects daily sea-ice concentration files from the
// University of Bremen / meereisportal.de HTTP archive.
package seaice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/KI7MT/ocean-lab-apps/internal/download"
)

const (
	// ArchiveURLFormat is the per-year Antarctic AMSR2 directory.
	ArchiveURLFormat = "http://data.meereisportal.de/data/iup/hdf/s/%d/"

	// GridURL is the longitude/latitude grid of the 6.25 km Antarctic product.
	GridURL = "https://seaice.uni-bremen.de/data/grid_coordinates/s6250/LongitudeLatitudeGrid-s6250-Antarctic.hdf"

	// DefaultExtension selects the data files in a directory listing.
	DefaultExtension = "hdf"
)

// ArchiveURL returns the directory listing URL for year.
func ArchiveURL(year int) string {
	return fmt.Sprintf(ArchiveURLFormat, year)
}

// ListFiles returns the absolute URLs of all links on the page at pageURL
// whose target ends with ext, in page order.
func ListFiles(ctx context.Context, client *http.Client, pageURL, ext string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &download.StatusError{URL: pageURL, Code: resp.StatusCode}
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	var files []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attr(n, "href")
			if href != "" && strings.HasSuffix(href, ext) {
				if ref, err := url.Parse(href); err == nil {
					files = append(files, base.ResolveReference(ref).String())
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return files, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// SelectRange returns files from the first one whose name contains start up
// to, but not including, the first one containing end. An empty or unmatched
// start selects from the beginning; an empty or unmatched end selects to the
// end of the list.
func SelectRange(files []string, start, end string) []string {
	lo := indexContaining(files, start)
	if lo < 0 {
		lo = 0
	}
	hi := indexContaining(files, end)
	if hi < 0 {
		hi = len(files)
	}
	if hi < lo {
		return nil
	}
	return files[lo:hi]
}

func indexContaining(files []string, s string) int {
	if s == "" {
		return -1
	}
	for i, f := range files {
		if strings.Contains(f, s) {
			return i
		}
	}
	return -1
}
