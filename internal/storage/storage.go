// internal/storage/storage.go
package storage

import "github.com/OCAP2/demotimeline/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(header *core.DemoHeader) error
	EndSession() error

	// Event recording
	RecordFireStarted(e *core.FireStarted) error
	RecordFireEnded(e *core.FireEnded) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to a timeline server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() UploadMetadata
}

// UploadMetadata describes an exported timeline file.
type UploadMetadata struct {
	MapName      string
	ServerName   string
	PlaybackTime float64
	FireCount    int
	Attributed   int
}
