// Package websocket streams engagement records to a live viewer over WebSocket.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/OCAP2/coil/pkg/core"
	"github.com/OCAP2/coil/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams session data over WebSocket to a live viewer.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend. A nil logger uses slog.Default.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.open(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped returns the number of messages discarded because the send buffer was full.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartSession sends the session header and waits for the server ack.
// The header is replayed on every reconnect until the session ends.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return err
	}

	b.conn.setHeader(data)
	return b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for the server ack.
func (b *Backend) EndSession() error {
	data, err := marshalEnvelope(streaming.TypeEndSession, nil)
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndSession, ackTimeout)

	// The header is cleared even when the ack never came.
	b.conn.setHeader(nil)
	return err
}

func (b *Backend) RecordEngagementEvent(e *core.EngagementEvent) error {
	return b.sendEnvelope(streaming.TypeEngagementEvent, streaming.NewEngagementEventPayload(e))
}

func (b *Backend) RecordWeaponState(s *core.WeaponState) error {
	return b.sendEnvelope(streaming.TypeWeaponState, streaming.NewWeaponStatePayload(s))
}

func (b *Backend) RecordAssignment(a *core.AssignmentRecord) error {
	return b.sendEnvelope(streaming.TypeAssignment, streaming.AssignmentPayload{
		Time:         a.Time.UnixMilli(),
		SimTime:      a.SimTime,
		PlatformID:   string(a.PlatformID),
		TurretID:     string(a.TurretID),
		TargetID:     string(a.TargetID),
		HardPriority: a.HardPriority,
	})
}
