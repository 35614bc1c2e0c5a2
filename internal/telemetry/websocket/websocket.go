package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/trackday/vehsim/pkg/core"
	"github.com/trackday/vehsim/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams samples over WebSocket to a live viewer or sync server.
type Backend struct {
	conn       *connection
	cfg        Config
	ackTimeout time.Duration

	sessionID atomic.Uint64
	samples   atomic.Uint64
}

// New creates a new WebSocket telemetry backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn:       newConnection(logger.With("component", "telemetry.websocket")),
		cfg:        cfg,
		ackTimeout: ackTimeout,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
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

// StartSession sends the session and waits for server ack.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = data
	b.conn.mu.Unlock()
	b.sessionID.Store(uint64(s.ID))
	b.samples.Store(0)

	return b.conn.sendAndWait(data, streaming.TypeStartSession, b.ackTimeout)
}

// RecordSample pushes a sample to the write loop (fire-and-forget).
func (b *Backend) RecordSample(s *core.Sample) error {
	b.conn.mu.Lock()
	active := b.conn.cachedStartMsg != nil
	b.conn.mu.Unlock()
	if !active {
		return core.ErrNoSession
	}

	data, err := marshalEnvelope(streaming.TypeSample, s)
	if err != nil {
		return err
	}
	b.conn.send(data)
	b.samples.Add(1)
	return nil
}

// EndSession sends end_session and waits for server ack.
func (b *Backend) EndSession() error {
	data, err := marshalEnvelope(streaming.TypeEndSession, streaming.EndSessionPayload{
		SessionID: uint(b.sessionID.Load()),
		Samples:   uint(b.samples.Load()),
	})
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndSession, b.ackTimeout)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = nil
	b.conn.mu.Unlock()

	return err
}
