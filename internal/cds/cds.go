// Package cds is a client for the Copernicus Climate Data Store retrieve API,
// used to download monthly ERA5 files.
//
// A retrieval is a job: the request is submitted, the job status is polled
// until the server finishes building the file, and the result asset is then
// downloaded like any other file.
package cds

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"

	"github.com/KI7MT/ocean-lab-apps/internal/download"
)

const (
	// DefaultURL is the CDS API root.
	DefaultURL = "https://cds.climate.copernicus.eu/api"

	// DefaultDataset is ERA5 hourly data on single levels.
	DefaultDataset = "reanalysis-era5-single-levels"

	// DefaultPollInterval is the delay between job status checks.
	DefaultPollInterval = 10 * time.Second

	tokenHeader = "PRIVATE-TOKEN"
)

var (
	// ErrNoCredentials is returned when no API key is configured.
	ErrNoCredentials = errors.New("cds: no API key (set CDSAPI_KEY or create ~/.cdsapirc)")

	// ErrJobFailed is returned when the server reports a job as failed.
	ErrJobFailed = errors.New("cds: job failed")
)

// Job states reported by the API.
const (
	StatusAccepted   = "accepted"
	StatusRunning    = "running"
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
	StatusRejected   = "rejected"
	StatusDismissed  = "dismissed"
)

// Credentials identify a CDS account.
type Credentials struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

// LoadCredentials returns url and key when key is set, otherwise the contents
// of the YAML rc file at rcPath. An empty URL defaults to DefaultURL.
func LoadCredentials(url, key, rcPath string) (Credentials, error) {
	creds := Credentials{URL: url, Key: key}
	if creds.Key == "" && rcPath != "" {
		data, err := os.ReadFile(rcPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Credentials{}, err
		}
		if err == nil {
			var rc Credentials
			if err := yaml.Unmarshal(data, &rc); err != nil {
				return Credentials{}, fmt.Errorf("parse %s: %w", rcPath, err)
			}
			creds.Key = rc.Key
			if creds.URL == "" {
				creds.URL = rc.URL
			}
		}
	}
	if creds.Key == "" {
		return Credentials{}, ErrNoCredentials
	}
	if creds.URL == "" {
		creds.URL = DefaultURL
	}
	creds.URL = strings.TrimRight(creds.URL, "/")
	return creds, nil
}

// Job is a submitted retrieval.
type Job struct {
	ID     string `json:"jobID"`
	Status string `json:"status"`

	// Href is the result asset location, set once the job succeeded.
	Href string `json:"-"`
	Size int64  `json:"-"`
}

// Client talks to the retrieve API.
type Client struct {
	creds        Credentials
	http         *http.Client
	clock        clockwork.Clock
	pollInterval time.Duration
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithClock sets the clock used between status polls.
func WithClock(clock clockwork.Clock) Option { return func(c *Client) { c.clock = clock } }

// WithPollInterval sets the delay between status polls.
func WithPollInterval(d time.Duration) Option { return func(c *Client) { c.pollInterval = d } }

// WithLogger sets the logger for job progress.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// New returns a client for creds.
func New(creds Credentials, opts ...Option) *Client {
	c := &Client{
		creds:        creds,
		http:         &http.Client{Timeout: time.Minute},
		clock:        clockwork.NewRealClock(),
		pollInterval: DefaultPollInterval,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Retrieve submits req for dataset and blocks until the result is ready.
func (c *Client) Retrieve(ctx context.Context, dataset string, req Request) (*Job, error) {
	job, err := c.Submit(ctx, dataset, req)
	if err != nil {
		return nil, err
	}
	if err := c.Wait(ctx, job); err != nil {
		return job, err
	}
	if err := c.results(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

// Submit starts a retrieval job.
func (c *Client) Submit(ctx context.Context, dataset string, req Request) (*Job, error) {
	body, err := json.Marshal(map[string]any{"inputs": req})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/retrieve/v1/processes/%s/execution", c.creds.URL, dataset)
	var job Job
	if err := c.do(ctx, http.MethodPost, url, body, &job); err != nil {
		return nil, fmt.Errorf("submit %s: %w", dataset, err)
	}
	if job.ID == "" {
		return nil, fmt.Errorf("submit %s: response has no job ID", dataset)
	}
	c.logger.Info("job submitted", "dataset", dataset, "job", job.ID, "status", job.Status)
	return &job, nil
}

// Wait polls the job until it succeeds, fails, or ctx ends.
func (c *Client) Wait(ctx context.Context, job *Job) error {
	url := fmt.Sprintf("%s/retrieve/v1/jobs/%s", c.creds.URL, job.ID)
	last := job.Status
	for {
		var st Job
		if err := c.do(ctx, http.MethodGet, url, nil, &st); err != nil {
			return fmt.Errorf("job %s status: %w", job.ID, err)
		}
		job.Status = st.Status
		if st.Status != last {
			c.logger.Info("job status", "job", job.ID, "status", st.Status)
			last = st.Status
		}

		switch st.Status {
		case StatusSuccessful:
			return nil
		case StatusFailed, StatusRejected, StatusDismissed:
			return fmt.Errorf("%w: %s is %s", ErrJobFailed, job.ID, st.Status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.pollInterval):
		}
	}
}

type resultsResponse struct {
	Asset struct {
		Value struct {
			Href string `json:"href"`
			Size int64  `json:"file:size"`
		} `json:"value"`
	} `json:"asset"`
}

func (c *Client) results(ctx context.Context, job *Job) error {
	url := fmt.Sprintf("%s/retrieve/v1/jobs/%s/results", c.creds.URL, job.ID)
	var res resultsResponse
	if err := c.do(ctx, http.MethodGet, url, nil, &res); err != nil {
		return fmt.Errorf("job %s results: %w", job.ID, err)
	}
	if res.Asset.Value.Href == "" {
		return fmt.Errorf("job %s results: no asset href", job.ID)
	}
	job.Href = res.Asset.Value.Href
	job.Size = res.Asset.Value.Size
	return nil
}

// Download fetches a finished job's result to dest.
func (c *Client) Download(ctx context.Context, f *download.Fetcher, job *Job, dest string) (download.Result, error) {
	if job.Href == "" {
		return download.Result{}, fmt.Errorf("job %s has no result", job.ID)
	}
	return f.Fetch(ctx, job.Href, dest)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	req.Header.Set(tokenHeader, c.creds.Key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Code: resp.StatusCode, Detail: apiDetail(data)}
	}
	return json.Unmarshal(data, out)
}

// APIError is a non-2xx API response.
type APIError struct {
	Code   int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Detail)
}

func apiDetail(data []byte) string {
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(data, &problem) == nil && (problem.Title != "" || problem.Detail != "") {
		return strings.TrimSpace(problem.Title + " " + problem.Detail)
	}
	return strings.TrimSpace(string(data))
}
