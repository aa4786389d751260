// Package websocket streams fire lifecycle events to a timeline server.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/OCAP2/demotimeline/pkg/core"
	"github.com/OCAP2/demotimeline/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("backend", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	if b.cfg.URL == "" {
		return fmt.Errorf("websocket URL not configured")
	}
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartSession sends the demo header and waits for the server ack.
func (b *Backend) StartSession(header *core.DemoHeader) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Header: header})
	if err != nil {
		return err
	}
	b.conn.setSessionMsg(data)
	return b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for the server ack.
func (b *Backend) EndSession() error {
	data, err := marshalEnvelope(streaming.TypeEndSession, nil)
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndSession, ackTimeout)
	b.conn.setSessionMsg(nil)
	return err
}

func (b *Backend) RecordFireStarted(e *core.FireStarted) error {
	return b.sendEnvelope(streaming.TypeFireStarted,
		streaming.NewFirePayload(e.Kind, e.Position, e.DetonationID, e.Time, e.ThrownBy))
}

func (b *Backend) RecordFireEnded(e *core.FireEnded) error {
	return b.sendEnvelope(streaming.TypeFireEnded,
		streaming.NewFirePayload(e.Kind, e.Position, e.DetonationID, e.Time, e.ThrownBy))
}
