package ipc

import (
	"fmt"
	"net"
	"time"

	"github.com/touchmapd/touchmapd/internal/logger"
)

// Client talks to a running daemon's control socket. Connections are
// made per request; there is nothing to keep open between calls.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a control client for the current user's socket.
func NewClient() (*Client, error) {
	socketPath, err := SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get socket path: %w", err)
	}

	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}, nil
}

// NewClientWithTimeout creates a control client with a custom timeout.
func NewClientWithTimeout(timeout time.Duration) (*Client, error) {
	client, err := NewClient()
	if err != nil {
		return nil, err
	}
	client.timeout = timeout
	return client, nil
}

// GetStatus fetches the daemon's diagnostics snapshot.
func (c *Client) GetStatus() (*StatusPayload, error) {
	response, err := c.send(&Message{Type: TypeStatus})
	if err != nil {
		return nil, err
	}

	switch response.Type {
	case TypeStatusResponse:
		var status StatusPayload
		if err := DecodePayload(response, &status); err != nil {
			return nil, err
		}
		return &status, nil
	case TypeError:
		return nil, decodeError(response)
	default:
		return nil, fmt.Errorf("unexpected response type %q", response.Type)
	}
}

// Stop asks the daemon to shut down.
func (c *Client) Stop() error {
	return c.sendCommand(TypeStop)
}

// Recalibrate asks the daemon to forget the learned device and relearn.
func (c *Client) Recalibrate() error {
	return c.sendCommand(TypeRecalibrate)
}

// IsRunning reports whether a daemon answers on the control socket.
func (c *Client) IsRunning() bool {
	_, err := c.GetStatus()
	return err == nil
}

func (c *Client) sendCommand(t MessageType) error {
	response, err := c.send(&Message{Type: t})
	if err != nil {
		return err
	}

	switch response.Type {
	case TypeAck:
		return nil
	case TypeError:
		return decodeError(response)
	default:
		return fmt.Errorf("unexpected response type %q", response.Type)
	}
}

func (c *Client) send(msg *Message) (*Message, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		if isConnectionRefused(err) {
			return nil, fmt.Errorf("touchmapd is not running")
		}
		return nil, fmt.Errorf("failed to connect to touchmapd: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Errorf("Failed to close control connection: %v", err)
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		logger.Warnf("Failed to set connection deadline: %v", err)
	}

	if err := WriteMessage(conn, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	response, err := ReadMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return response, nil
}

func decodeError(msg *Message) error {
	var payload ErrorPayload
	if err := DecodePayload(msg, &payload); err != nil {
		return fmt.Errorf("daemon reported an error")
	}
	return fmt.Errorf("daemon error: %s", payload.Error)
}

func isConnectionRefused(err error) bool {
	if netErr, ok := err.(*net.OpError); ok {
		return netErr.Op == "dial"
	}
	return false
}
