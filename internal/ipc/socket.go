package ipc

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"sync"

	"github.com/touchmapd/touchmapd/internal/logger"
)

// MessageHandler is implemented by the daemon side of the control
// channel.
type MessageHandler interface {
	// HandleStatus returns the diagnostics snapshot.
	HandleStatus() (*StatusPayload, error)
	// HandleStop shuts the pipeline down. The daemon exits after the
	// response has been written.
	HandleStop() error
	// HandleRecalibrate clears the learned device and restarts
	// calibration.
	HandleRecalibrate() error
}

// SocketServer accepts control connections on the daemon's unix socket.
type SocketServer struct {
	mu         sync.Mutex
	listener   net.Listener
	socketPath string
	handler    MessageHandler
	wg         sync.WaitGroup
	cancel     context.CancelFunc
	running    bool

	// Guarded separately: Stop holds mu across wg.Wait while handlers
	// deregister their connections.
	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewSocketServer creates a socket server for the current user.
func NewSocketServer(handler MessageHandler) (*SocketServer, error) {
	socketPath, err := SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get socket path: %w", err)
	}

	return &SocketServer{
		socketPath: socketPath,
		handler:    handler,
		conns:      make(map[net.Conn]struct{}),
	}, nil
}

// Start binds the socket and begins accepting connections.
func (s *SocketServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	// A previous crash can leave a stale socket file behind.
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket listener: %w", err)
	}

	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.listener = listener
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptConnections(ctx)

	logger.Infof("Control socket listening at %s", s.socketPath)
	return nil
}

// Stop closes the listener and removes the socket file.
func (s *SocketServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		s.listener.Close()
	}

	// A client holding its connection open without sending a frame
	// would otherwise block the wait below indefinitely.
	s.connMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	os.RemoveAll(s.socketPath)

	logger.Info("Control socket closed")
}

func (s *SocketServer) acceptConnections(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Errorf("Failed to accept control connection: %v", err)
				continue
			}
		}

		s.connMu.Lock()
		s.conns[conn] = struct{}{}
		s.connMu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}
}

func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.connMu.Lock()
		delete(s.conns, conn)
		s.connMu.Unlock()
	}()

	logger.Debug("Control connection established")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, err := ReadMessage(conn)
			if err != nil {
				logger.Debugf("Control connection closed: %v", err)
				return
			}

			response := s.handleMessage(msg)
			if err := WriteMessage(conn, response); err != nil {
				logger.Errorf("Failed to send control response: %v", err)
				return
			}
		}
	}
}

func (s *SocketServer) handleMessage(msg *Message) *Message {
	switch msg.Type {
	case TypeStatus:
		status, err := s.handler.HandleStatus()
		if err != nil {
			return NewErrorMessage(err.Error())
		}
		response, err := NewMessage(TypeStatusResponse, status)
		if err != nil {
			return NewErrorMessage(err.Error())
		}
		return response

	case TypeStop:
		if err := s.handler.HandleStop(); err != nil {
			return NewErrorMessage(err.Error())
		}
		return &Message{Type: TypeAck}

	case TypeRecalibrate:
		if err := s.handler.HandleRecalibrate(); err != nil {
			return NewErrorMessage(err.Error())
		}
		return &Message{Type: TypeAck}

	default:
		return NewErrorMessage(fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

// SocketPath returns the per-user control socket location, preferring
// XDG_RUNTIME_DIR over /tmp.
func SocketPath() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "touchmapd", "control.sock"), nil
	}

	currentUser, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return filepath.Join("/tmp", fmt.Sprintf("touchmapd-%s.sock", currentUser.Username)), nil
}
