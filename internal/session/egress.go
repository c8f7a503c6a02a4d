package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rendi-app/rendi/internal/conversation"
	"github.com/rendi-app/rendi/internal/metrics"
)

const defaultWriteTimeout = 5 * time.Second

type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Sender writes JSON frames to one client connection. It is safe for
// concurrent use by pipeline runs.
type Sender struct {
	ws           wsWriter
	writeTimeout time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	closed bool
}

func NewSender(ws wsWriter, writeTimeout time.Duration, logger *slog.Logger) *Sender {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{ws: ws, writeTimeout: writeTimeout, logger: logger}
}

// Send writes v as one text frame. Writing to a connection that is already
// gone is not an error: the frame is dropped and counted.
func (s *Sender) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.drop(nil)
		return nil
	}

	_ = s.ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		if isConnClosed(err) {
			s.drop(err)
			return nil
		}
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// SendError writes the error envelope that replaces a failed run's result.
func (s *Sender) SendError(message string) error {
	return s.Send(conversation.ErrorEnvelope{Error: message})
}

// Close sends a close frame and closes the connection. Only the first call
// has any effect.
func (s *Sender) Close(code int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	msg := websocket.FormatCloseMessage(code, reason)
	if err := s.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout)); err != nil && !isConnClosed(err) {
		s.logger.Debug("writing close frame", "error", err)
	}
	if err := s.ws.Close(); err != nil && !isConnClosed(err) {
		s.logger.Debug("closing connection", "error", err)
	}
}

// Closed reports whether Close has been called.
func (s *Sender) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Sender) drop(cause error) {
	metrics.EgressDroppedTotal.Inc()
	if cause != nil {
		s.logger.Debug("dropping frame, connection already closed", "error", cause)
		return
	}
	s.logger.Debug("dropping frame, connection already closed")
}

func isConnClosed(err error) bool {
	if errors.Is(err, websocket.ErrCloseSent) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr)
}
