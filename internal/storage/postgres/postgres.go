// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// with PostGIS point columns for fire positions.
package postgres

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/OCAP2/demotimeline/internal/database"
	gormstorage "github.com/OCAP2/demotimeline/internal/storage/gorm"
)

// Dependencies holds all dependencies for the PostgreSQL storage backend.
type Dependencies struct {
	// DB is optional; Init opens a connection from the db.* settings when nil.
	DB            *gorm.DB
	Logger        *slog.Logger
	WriteInterval time.Duration
}

// Backend wraps the GORM backend with PostgreSQL connection setup.
type Backend struct {
	*gormstorage.Backend
	deps Dependencies
}

// New creates a new PostgreSQL storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// Init connects if needed, enables PostGIS and initializes the GORM backend.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.GetPostgresDB()
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
	}

	if err := b.setupDB(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:            b.deps.DB,
		Logger:        b.deps.Logger,
		WriteInterval: b.deps.WriteInterval,
	})
	return b.Backend.Init()
}

// Close closes the embedded GORM backend.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}

// setupDB enables PostGIS on postgres connections.
func (b *Backend) setupDB() error {
	if b.deps.DB.Name() != "postgres" {
		return nil
	}
	if err := b.deps.DB.Exec("CREATE EXTENSION IF NOT EXISTS postgis;").Error; err != nil {
		return fmt.Errorf("failed to create PostGIS extension: %w", err)
	}
	b.deps.Logger.Info("PostGIS extension enabled")
	return nil
}
