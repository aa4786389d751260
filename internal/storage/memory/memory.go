// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/OCAP2/demotimeline/internal/config"
	"github.com/OCAP2/demotimeline/internal/storage"
	"github.com/OCAP2/demotimeline/pkg/core"
)

// ErrNoSession is returned when events arrive outside StartSession/EndSession.
var ErrNoSession = errors.New("no session started")

// eventRecord is one enriched event in arrival order.
type eventRecord struct {
	phase        string
	kind         core.EquipmentKind
	position     core.Vector3
	detonationID int
	time         float64
	thrower      *core.Player
}

// Backend stores a demo timeline in memory and exports it to JSON
type Backend struct {
	cfg       config.MemoryConfig
	header    *core.DemoHeader
	startedAt time.Time

	events []eventRecord

	lastExportPath string
	lastMetadata   storage.UploadMetadata
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new demo timeline
func (b *Backend) StartSession(header *core.DemoHeader) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.header = header
	b.startedAt = time.Now()
	b.events = nil
	return nil
}

// EndSession finalizes and exports the timeline
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.header == nil {
		return ErrNoSession
	}
	err := b.exportJSON()
	b.header = nil
	return err
}

func (b *Backend) record(r eventRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.header == nil {
		return ErrNoSession
	}
	b.events = append(b.events, r)
	return nil
}

// RecordFireStarted stores an enriched fire start
func (b *Backend) RecordFireStarted(e *core.FireStarted) error {
	return b.record(eventRecord{
		phase:        phaseStarted,
		kind:         e.Kind,
		position:     e.Position,
		detonationID: e.DetonationID,
		time:         e.Time,
		thrower:      e.ThrownBy,
	})
}

// RecordFireEnded stores an enriched fire end
func (b *Backend) RecordFireEnded(e *core.FireEnded) error {
	return b.record(eventRecord{
		phase:        phaseEnded,
		kind:         e.Kind,
		position:     e.Position,
		detonationID: e.DetonationID,
		time:         e.Time,
		thrower:      e.ThrownBy,
	})
}

// Len returns the number of events recorded in the current session.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

// GetExportedFilePath returns the file written by the last EndSession.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the file written by the last EndSession.
func (b *Backend) GetExportMetadata() storage.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastMetadata
}
