// Package gormstorage implements storage.Backend over any GORM dialect with
// an internal queue and a background DB writer goroutine. The postgres and
// sqlite backends wrap it.
package gormstorage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/OCAP2/demotimeline/internal/database"
	"github.com/OCAP2/demotimeline/internal/model"
	"github.com/OCAP2/demotimeline/internal/model/convert"
	"github.com/OCAP2/demotimeline/internal/queue"
	"github.com/OCAP2/demotimeline/pkg/core"
)

// DefaultWriteInterval is how often queued events are written.
const DefaultWriteInterval = 2 * time.Second

// ErrNoSession is returned by EndSession without a started session.
var ErrNoSession = errors.New("no session started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	WriteInterval time.Duration
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	events    *queue.Queue[model.FireEvent]
	sessionID atomic.Uint64
	stopChan  chan struct{}
	wg        sync.WaitGroup
	writeMu   sync.Mutex
}

// New creates a new GORM storage backend. A nil DB runs in queue-only mode.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.WriteInterval <= 0 {
		deps.WriteInterval = DefaultWriteInterval
	}
	return &Backend{
		deps:   deps,
		events: queue.New[model.FireEvent](),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	b.stopChan = make(chan struct{})
	if b.deps.DB == nil {
		return nil
	}

	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}
	b.deps.Logger.Info("Database setup complete", "dialect", b.deps.DB.Name())

	b.wg.Add(1)
	go b.writeLoop()
	return nil
}

// Close stops the writer goroutine and writes anything still queued.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		b.wg.Wait()
		b.stopChan = nil
	}
	return b.Flush()
}

// SessionID returns the id of the current session row, 0 before StartSession.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

// StartSession inserts the session row for header.
func (b *Backend) StartSession(header *core.DemoHeader) error {
	if b.deps.DB == nil {
		return nil
	}

	session := convert.HeaderToSession(*header)
	session.StartedAt = time.Now()
	if err := b.deps.DB.Create(&session).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}
	b.sessionID.Store(uint64(session.ID))
	b.deps.Logger.Debug("Session started", "sessionID", session.ID, "map", session.MapName)
	return nil
}

// EndSession writes the queued events and stamps the session end time.
func (b *Backend) EndSession() error {
	if b.deps.DB == nil {
		return nil
	}
	id := b.SessionID()
	if id == 0 {
		return ErrNoSession
	}
	if err := b.Flush(); err != nil {
		return err
	}

	ended := sql.NullTime{Time: time.Now(), Valid: true}
	if err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Update("ended_at", ended).Error; err != nil {
		return fmt.Errorf("failed to end session %d: %w", id, err)
	}
	b.sessionID.Store(0)
	return nil
}

// RecordFireStarted converts and queues a fire start.
func (b *Backend) RecordFireStarted(e *core.FireStarted) error {
	b.events.Push(convert.FireStartedToEvent(*e))
	return nil
}

// RecordFireEnded converts and queues a fire end.
func (b *Backend) RecordFireEnded(e *core.FireEnded) error {
	b.events.Push(convert.FireEndedToEvent(*e))
	return nil
}

// Pending returns the number of queued, unwritten events.
func (b *Backend) Pending() int {
	return b.events.Len()
}

// Flush writes all queued events in one transaction. On failure the batch
// goes back to the front of the queue.
func (b *Backend) Flush() error {
	if b.deps.DB == nil || b.events.Empty() {
		return nil
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	items := b.events.GetAndEmpty()
	if len(items) == 0 {
		return nil
	}
	sessionID := b.SessionID()
	for i := range items {
		items[i].SessionID = sessionID
	}

	err := b.deps.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&items).Error
	})
	if err != nil {
		// ids may have been assigned before the rollback
		for i := range items {
			items[i].ID = 0
		}
		b.events.Requeue(items...)
		return fmt.Errorf("error creating fire events: %w", err)
	}
	return nil
}

// writeLoop periodically drains the queue into the DB.
func (b *Backend) writeLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.deps.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("DB write failed", "error", err, "pending", b.events.Len())
			}
		}
	}
}
