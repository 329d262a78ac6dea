// Package download fetches remote files to disk. Files are written to a
// temporary name and renamed into place once complete, so a partially
// downloaded file is never mistaken for a finished one.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/KI7MT/ocean-lab-apps/internal/observability"
)

// ErrNotFound is returned for HTTP 404 responses.
var ErrNotFound = errors.New("download: not found")

// StatusError is returned for non-200 HTTP responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// Result describes one fetched (or skipped) file.
type Result struct {
	URL      string
	Path     string
	Bytes    int64
	Skipped  bool
	Duration time.Duration
}

// Fetcher downloads files over HTTP.
type Fetcher struct {
	Client *http.Client

	// Source labels metrics and manifest entries (era5, cfsv2, sst, seaice).
	Source string

	// Header is added to every request.
	Header http.Header

	// Optional collaborators.
	Metrics  *observability.Metrics
	Manifest *Manifest
	Logger   *slog.Logger

	// SkipRecorded skips URLs the manifest lists as complete even when the
	// file is no longer at its destination.
	SkipRecorded bool
}

// NewFetcher returns a Fetcher with a client using the given timeout per
// request.
func NewFetcher(source string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		Client: &http.Client{Timeout: timeout},
		Source: source,
	}
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.Logger
}

// Fetch downloads url to dest. An existing non-empty dest is left untouched
// and reported as skipped.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) (Result, error) {
	res := Result{URL: url, Path: dest}
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		res.Skipped = true
		res.Bytes = info.Size()
		f.skipped()
		return res, nil
	}
	if f.SkipRecorded && f.Manifest != nil {
		if e, ok, err := f.Manifest.Lookup(ctx, url); err != nil {
			return res, err
		} else if ok {
			res.Skipped = true
			res.Bytes = e.Bytes
			f.skipped()
			return res, nil
		}
	}

	start := time.Now()
	n, err := f.get(ctx, url, dest)
	res.Duration = time.Since(start)
	if err != nil {
		if f.Metrics != nil {
			f.Metrics.DownloadErrors.WithLabelValues(f.Source).Inc()
		}
		return res, err
	}
	res.Bytes = n

	if f.Metrics != nil {
		f.Metrics.FilesDownloaded.WithLabelValues(f.Source).Inc()
		f.Metrics.BytesDownloaded.WithLabelValues(f.Source).Add(float64(n))
		f.Metrics.DownloadDuration.WithLabelValues(f.Source).Observe(res.Duration.Seconds())
	}
	if f.Manifest != nil {
		err := f.Manifest.Record(ctx, Entry{
			Source:     f.Source,
			URL:        url,
			Path:       dest,
			Bytes:      n,
			FinishedAt: time.Now(),
		})
		if err != nil {
			return res, fmt.Errorf("record %s: %w", url, err)
		}
	}
	f.logger().Debug("downloaded", "url", url, "path", dest, "bytes", n, "elapsed", res.Duration)
	return res, nil
}

func (f *Fetcher) skipped() {
	if f.Metrics != nil {
		f.Metrics.FilesSkipped.WithLabelValues(f.Source).Inc()
	}
}

func (f *Fetcher) get(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	for k, vs := range f.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP GET failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{URL: url, Code: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	tmpPath := dest + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create file failed: %w", err)
	}

	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("download %s failed: %w", url, err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("rename failed: %w", err)
	}
	return n, nil
}

// Job is one file to fetch.
type Job struct {
	URL  string
	Dest string
}

// FetchAll downloads jobs with at most workers concurrent requests. Results
// are returned in job order; the error joins every failed job's error.
func (f *Fetcher) FetchAll(ctx context.Context, jobs []Job, workers int) ([]Result, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(jobs))
	errs := make([]error, len(jobs))

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, job := range jobs {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			errs[i] = ctx.Err()
			continue
		}
		wg.Add(1)

		go func(i int, job Job) {
			defer func() { <-sem }()
			defer wg.Done()

			res, err := f.Fetch(ctx, job.URL, job.Dest)
			results[i] = res
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", filepath.Base(job.Dest), err)
				f.logger().Error("download failed", "url", job.URL, "err", err)
				return
			}
			if !res.Skipped {
				f.logger().Info("downloaded", "file", filepath.Base(job.Dest), "bytes", res.Bytes)
			}
		}(i, job)
	}

	wg.Wait()
	return results, errors.Join(errs...)
}
