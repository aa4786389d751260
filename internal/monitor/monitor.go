// Package monitor periodically reports replay progress to a status file.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/demotimeline/internal/session"
)

// DefaultInterval is used when Dependencies.Interval is zero.
const DefaultInterval = time.Second

// Source is the part of a session the monitor reads.
type Source interface {
	Context() *session.Context
	Stats() session.Stats
	Pending() int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger     *slog.Logger
	Source     Source
	StatusPath string
	Interval   time.Duration
}

// Status is one progress snapshot.
type Status struct {
	Time         time.Time `json:"time"`
	Demo         string    `json:"demo"`
	DemoTime     float64   `json:"demoTime"`
	Line         int       `json:"line"`
	FiresStarted int       `json:"firesStarted"`
	FiresEnded   int       `json:"firesEnded"`
	Attributed   int       `json:"attributed"`
	Pending      int       `json:"pending"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus takes a snapshot of the source.
func (s *Service) GetStatus() Status {
	ctx := s.deps.Source.Context()
	stats := s.deps.Source.Stats()
	return Status{
		Time:         time.Now(),
		Demo:         ctx.Name(),
		DemoTime:     ctx.DemoTime(),
		Line:         ctx.Line(),
		FiresStarted: stats.FiresStarted,
		FiresEnded:   stats.FiresEnded,
		Attributed:   stats.Attributed,
		Pending:      s.deps.Source.Pending(),
	}
}

func writeStatus(f *os.File, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	var statusFile *os.File
	if s.deps.StatusPath != "" {
		f, err := os.Create(s.deps.StatusPath)
		if err != nil {
			return fmt.Errorf("error creating status file: %w", err)
		}
		statusFile = f
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(statusFile, s.stopChan, s.done)
	return nil
}

func (s *Service) run(statusFile *os.File, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if statusFile != nil {
		defer statusFile.Close()
	}

	logger := s.deps.Logger
	logger.Debug("Starting status monitor", "interval", s.deps.Interval)

	report := func() {
		st := s.GetStatus()
		logger.Debug("Replay status",
			"demoTime", st.DemoTime,
			"line", st.Line,
			"firesStarted", st.FiresStarted,
			"firesEnded", st.FiresEnded,
			"pending", st.Pending,
		)
		if statusFile != nil {
			if err := writeStatus(statusFile, st); err != nil {
				logger.Error("Error writing status file", "error", err)
			}
		}
	}

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			report()
			return
		case <-ticker.C:
			report()
		}
	}
}

// Stop stops the status monitor after a final report.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
