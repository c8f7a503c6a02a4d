package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rendi-app/rendi/internal/api"
	"github.com/rendi-app/rendi/internal/config"
	"github.com/rendi-app/rendi/internal/conversation"
	"github.com/rendi-app/rendi/internal/metrics"
	"github.com/rendi-app/rendi/internal/speech"
)

// CloseUnauthenticated is the close code sent when identity cannot be
// resolved.
const CloseUnauthenticated = 4401

// ErrUnauthenticated is returned by resolvers when the request carries no
// valid identity.
var ErrUnauthenticated = errors.New("session: unauthenticated")

// Identity is the resolved end user of a session.
type Identity struct {
	UserID  int64
	Subject string
}

// IdentityResolver resolves the user behind an upgrade request.
type IdentityResolver interface {
	Resolve(r *http.Request) (Identity, error)
}

// IdentityResolverFunc adapts a function to IdentityResolver.
type IdentityResolverFunc func(r *http.Request) (Identity, error)

func (f IdentityResolverFunc) Resolve(r *http.Request) (Identity, error) {
	return f(r)
}

// Handler accepts live speech sessions at the WebSocket endpoint.
type Handler struct {
	adapter  *speech.Adapter
	pipeline Pipeline
	identity IdentityResolver
	events   EventPublisher
	cfg      config.SessionConfig
	upgrader websocket.Upgrader
	slots    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closing  bool
	sessions sync.WaitGroup

	// onEnd, when set, observes every session after it closes.
	onEnd func(*Session)
}

// NewHandler builds the session endpoint. events may be nil. An empty
// allowedOrigins list accepts any origin.
func NewHandler(adapter *speech.Adapter, pipeline Pipeline, identity IdentityResolver, events EventPublisher, cfg config.SessionConfig, allowedOrigins []string) *Handler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		adapter:  adapter,
		pipeline: pipeline,
		identity: identity,
		events:   events,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		slots:  make(chan struct{}, cfg.MaxConcurrent),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.slots <- struct{}{}:
		defer func() { <-h.slots }()
	default:
		metrics.SessionsTotal.WithLabelValues("rejected").Inc()
		api.JSONErrorMessage(w, http.StatusServiceUnavailable, "too many live sessions")
		return
	}

	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		api.JSONErrorMessage(w, http.StatusServiceUnavailable, "server shutting down")
		return
	}
	h.sessions.Add(1)
	h.mu.Unlock()
	defer h.sessions.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("upgrading speech session", "error", err)
		return
	}

	sender := NewSender(conn, h.cfg.WriteTimeout, slog.Default())

	identity, err := h.identity.Resolve(r)
	if err != nil {
		slog.Info("rejecting unauthenticated speech session", "remote_addr", r.RemoteAddr, "error", err)
		metrics.SessionsTotal.WithLabelValues("unauthenticated").Inc()
		sender.Close(CloseUnauthenticated, "unauthenticated")
		return
	}

	sess := h.newSession(conn, sender, identity, r)
	sess.Run(h.ctx)

	if h.onEnd != nil {
		h.onEnd(sess)
	}
}

func (h *Handler) newSession(conn *websocket.Conn, sender *Sender, identity Identity, r *http.Request) *Session {
	id := uuid.NewString()
	conversationID := uuid.NewString()
	logger := slog.Default().With(
		"session_id", id,
		"user_id", identity.UserID,
		"conversation_id", conversationID,
	)
	sender.logger = logger

	sess := &Session{
		ID:             id,
		ConversationID: conversationID,
		Identity:       identity,
		Caller: conversation.Caller{
			UserID:  strconv.FormatInt(identity.UserID, 10),
			Cookies: r.Cookies(),
		},
		conn:      conn,
		sender:    sender,
		adapter:   h.adapter,
		pipeline:  h.pipeline,
		events:    h.events,
		queueSize: h.cfg.AudioQueueSize,
		logger:    logger,
	}
	sess.state.Store(int32(StateAccepting))
	return sess
}

// Shutdown drains every live session and waits for them to close or for ctx
// to expire. New sessions are refused from the first call on.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()

	h.cancel()

	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return slices.Contains(allowed, u.Scheme+"://"+u.Host)
	}
}
