package common

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Stats holds atomic counters for decode/download progress tracking.
type Stats struct {
	records atomic.Uint64
	skipped atomic.Uint64
	bytes   atomic.Uint64

	logger   *slog.Logger
	interval time.Duration
	running  atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	lastRecords uint64
	lastBytes   uint64
	lastTime    time.Time
}

// NewStats creates a Stats instance that reports through logger every interval.
func NewStats(logger *slog.Logger, interval time.Duration) *Stats {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Stats{
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// AddRecords increments the decoded record counter.
func (s *Stats) AddRecords(n uint64) { s.records.Add(n) }

// AddSkipped increments the skipped record counter.
func (s *Stats) AddSkipped(n uint64) { s.skipped.Add(n) }

// AddBytes increments the bytes read counter.
func (s *Stats) AddBytes(n uint64) { s.bytes.Add(n) }

// Records returns the number of decoded records.
func (s *Stats) Records() uint64 { return s.records.Load() }

// Skipped returns the number of skipped records.
func (s *Stats) Skipped() uint64 { return s.skipped.Load() }

// Bytes returns the number of bytes read.
func (s *Stats) Bytes() uint64 { return s.bytes.Load() }

// StartReporter starts a background goroutine that logs throughput.
func (s *Stats) StartReporter() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.lastTime = time.Now()
	go s.reporterLoop()
}

// StopReporter stops the reporter and waits for it to exit.
func (s *Stats) StopReporter() {
	if !s.running.Load() {
		return
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *Stats) reporterLoop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.report()
		}
	}
}

func (s *Stats) report() {
	now := time.Now()
	elapsed := now.Sub(s.lastTime).Seconds()
	if elapsed < 0.001 {
		return
	}

	records := s.Records()
	bytes := s.Bytes()
	rps := float64(records-s.lastRecords) / elapsed
	mibps := float64(bytes-s.lastBytes) / (1024 * 1024) / elapsed

	s.logger.Info("progress",
		"records", records,
		"skipped", s.Skipped(),
		"records_per_sec", int64(rps),
		"mib_per_sec", mibps,
	)

	s.lastRecords = records
	s.lastBytes = bytes
	s.lastTime = now
}
