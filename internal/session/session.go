// Package session wires the player index, projectile tracker and correlation
// engine for one demo, and forwards every enriched fire event to storage.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/OCAP2/demotimeline/internal/cache"
	"github.com/OCAP2/demotimeline/internal/correlate"
	"github.com/OCAP2/demotimeline/internal/dispatcher"
	"github.com/OCAP2/demotimeline/internal/geo"
	"github.com/OCAP2/demotimeline/internal/parser"
	"github.com/OCAP2/demotimeline/internal/projectile"
	"github.com/OCAP2/demotimeline/internal/queue"
	"github.com/OCAP2/demotimeline/internal/storage"
	"github.com/OCAP2/demotimeline/pkg/core"
)

// FireWriter receives enriched events next to the storage backend.
// influx.Manager implements it. ThrownBy on a received event is a copy taken
// when the event was emitted, never the live player record.
type FireWriter interface {
	WriteFireStarted(e *core.FireStarted) error
	WriteFireEnded(e *core.FireEnded) error
}

// Dependencies holds all dependencies for a Session.
type Dependencies struct {
	Logger *slog.Logger
	// DispatcherLogger defaults to Logger.
	DispatcherLogger dispatcher.Logger
	Geometry         geo.LevelGeometry
	Backend          storage.Backend
	// Metrics is optional.
	Metrics FireWriter
	Context *Context
}

// fireEvent is one queued emission; exactly one field is set.
type fireEvent struct {
	started *core.FireStarted
	ended   *core.FireEnded
}

// Session replays one demo's notifications.
type Session struct {
	deps Dependencies
	log  *slog.Logger

	Players    *cache.PlayerCache
	Tracker    *projectile.Tracker
	Engine     *correlate.Engine
	Parser     *parser.Parser
	Dispatcher *dispatcher.Dispatcher

	events  *queue.Queue[fireEvent]
	started bool

	statsMu sync.Mutex
	stats   Stats
}

// Stats counts what the session emitted.
type Stats struct {
	FiresStarted int
	FiresEnded   int
	Attributed   int
}

// New creates a Session and registers its notification handlers.
func New(deps Dependencies) (*Session, error) {
	if deps.Backend == nil {
		return nil, errors.New("session: storage backend is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.DispatcherLogger == nil {
		deps.DispatcherLogger = deps.Logger
	}
	if deps.Geometry == nil {
		deps.Geometry = geo.NewCellGrid(geo.DefaultCellBits)
	}
	if deps.Context == nil {
		deps.Context = NewContext()
	}

	s := &Session{
		deps:    deps,
		log:     deps.Logger,
		Players: cache.NewPlayerCache(),
		Parser:  parser.NewParser(deps.Logger),
		events:  queue.New[fireEvent](),
	}
	s.Tracker = projectile.NewTracker(deps.Logger, deps.Geometry, s.Players)

	var err error
	s.Engine, err = correlate.New(deps.Logger, s.Tracker, s)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s.Dispatcher, err = dispatcher.New(deps.DispatcherLogger)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s.registerHandlers(s.Dispatcher)
	return s, nil
}

// Context returns the replay context.
func (s *Session) Context() *Context {
	return s.deps.Context
}

// Start begins the storage session for header.
func (s *Session) Start(name string, header *core.DemoHeader) error {
	if header == nil {
		header = &core.DemoHeader{MapName: name}
	}
	s.deps.Context.SetDemo(name, header)
	if err := s.deps.Backend.StartSession(header); err != nil {
		return fmt.Errorf("failed to start storage session: %w", err)
	}
	s.started = true
	s.log.Info("Session started", "demo", name, "map", header.MapName)
	return nil
}

// snapshot copies the thrower as it is at emission. The player index keeps
// updating the live record until the queue is flushed.
func snapshot(p *core.Player) *core.Player {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// FireStarted implements correlate.Emitter.
func (s *Session) FireStarted(e core.FireStarted) {
	e.ThrownBy = snapshot(e.ThrownBy)
	s.events.Push(fireEvent{started: &e})
}

// FireEnded implements correlate.Emitter.
func (s *Session) FireEnded(e core.FireEnded) {
	e.ThrownBy = snapshot(e.ThrownBy)
	s.events.Push(fireEvent{ended: &e})
}

// Pending returns the number of emitted events not yet flushed.
func (s *Session) Pending() int {
	return s.events.Len()
}

// Stats returns the counts of flushed events.
func (s *Session) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *Session) count(fn func(*Stats)) {
	s.statsMu.Lock()
	fn(&s.stats)
	s.statsMu.Unlock()
}

// Flush forwards queued events to the backend in emission order. An event
// the backend rejects stays queued for the next Flush.
func (s *Session) Flush() error {
	return s.events.Drain(s.forward)
}

func (s *Session) forward(e fireEvent) error {
	switch {
	case e.started != nil:
		if err := s.deps.Backend.RecordFireStarted(e.started); err != nil {
			return fmt.Errorf("failed to record fire start %d: %w", e.started.DetonationID, err)
		}
		s.count(func(st *Stats) {
			st.FiresStarted++
			if e.started.ThrownBy != nil {
				st.Attributed++
			}
		})
		if s.deps.Metrics != nil {
			if err := s.deps.Metrics.WriteFireStarted(e.started); err != nil {
				s.log.Warn("Failed to write fire start metric", "error", err)
			}
		}
	case e.ended != nil:
		if err := s.deps.Backend.RecordFireEnded(e.ended); err != nil {
			return fmt.Errorf("failed to record fire end %d: %w", e.ended.DetonationID, err)
		}
		s.count(func(st *Stats) { st.FiresEnded++ })
		if s.deps.Metrics != nil {
			if err := s.deps.Metrics.WriteFireEnded(e.ended); err != nil {
				s.log.Warn("Failed to write fire end metric", "error", err)
			}
		}
	}
	return nil
}

// Close flushes and ends the storage session.
func (s *Session) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if !s.started {
		return nil
	}
	s.started = false
	if err := s.deps.Backend.EndSession(); err != nil {
		return fmt.Errorf("failed to end storage session: %w", err)
	}
	stats := s.Stats()
	s.log.Info("Session ended",
		"firesStarted", stats.FiresStarted,
		"firesEnded", stats.FiresEnded,
		"attributed", stats.Attributed,
		"liveProjectiles", s.Engine.LiveProjectiles(),
	)
	return nil
}
