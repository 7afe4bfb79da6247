// Package ipc implements the control channel between a running daemon
// and the CLI: a unix socket carrying length-prefixed JSON messages.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/touchmapd/touchmapd/internal/recorder"
)

// MessageType discriminates control messages.
type MessageType string

const (
	TypeStatus         MessageType = "status"
	TypeStatusResponse MessageType = "status_response"
	TypeStop           MessageType = "stop"
	TypeRecalibrate    MessageType = "recalibrate"
	TypeAck            MessageType = "ok"
	TypeError          MessageType = "error"
)

// Message is the envelope every control exchange uses. Payload is typed
// by Type; requests without parameters carry none.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StatusPayload is the daemon's diagnostics snapshot as it crosses the
// socket. Enum-ish fields travel as their display strings so the
// payload stays readable in logs and with socat.
type StatusPayload struct {
	Running       bool              `json:"running"`
	Permission    string            `json:"permission"`
	Calibration   string            `json:"calibration"`
	SessionActive bool              `json:"session_active"`
	LearnedDevice *int64            `json:"learned_device,omitempty"`
	Recorder      recorder.Snapshot `json:"recorder"`
	Watchdog      WatchdogPayload   `json:"watchdog"`
	Uptime        time.Duration     `json:"uptime"`
	Version       string            `json:"version"`
}

// WatchdogPayload mirrors the watchdog state for the wire.
type WatchdogPayload struct {
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	DisableCount        uint64    `json:"disable_count"`
	LastHealthy         time.Time `json:"last_healthy"`
}

// ErrorPayload carries a failure back to the client.
type ErrorPayload struct {
	Error string `json:"error"`
}

// NewMessage builds an envelope around a payload, or a bare envelope
// when payload is nil.
func NewMessage(t MessageType, payload any) (*Message, error) {
	msg := &Message{Type: t}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", t, err)
		}
		msg.Payload = data
	}
	return msg, nil
}

// NewErrorMessage wraps a failure text for the wire.
func NewErrorMessage(text string) *Message {
	msg, _ := NewMessage(TypeError, ErrorPayload{Error: text})
	return msg
}

// DecodePayload unmarshals the envelope's payload into out.
func DecodePayload(msg *Message, out any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, out); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", msg.Type, err)
	}
	return nil
}

// maxFrameSize bounds a single control frame. Status responses carry at
// most a few recent records; anything near this limit is a corrupt or
// hostile peer.
const maxFrameSize = 1 << 20

// WriteMessage frames msg onto w: 4-byte big-endian length, then JSON.
func WriteMessage(w io.Writer, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	length := uint32(len(data)) //nolint:gosec // message length within uint32 range
	if err := binary.Write(w, binary.BigEndian, length); err != nil {
		return fmt.Errorf("failed to write message length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write message data: %w", err)
	}
	return nil
}

// ReadMessage reads one framed message from r.
func ReadMessage(r io.Reader) (*Message, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("failed to read message length: %w", err)
	}
	if length > maxFrameSize {
		return nil, fmt.Errorf("message of %d bytes exceeds frame limit", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read message data: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &msg, nil
}
