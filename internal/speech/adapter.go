package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	utteranceBuffer = 16
	interimBuffer   = 16
)

// Adapter starts recognition sessions with a fixed configuration.
type Adapter struct {
	recognizer Recognizer
	cfg        Config
}

func NewAdapter(recognizer Recognizer, cfg Config) *Adapter {
	return &Adapter{recognizer: recognizer, cfg: cfg}
}

// Config returns a copy of the adapter's configuration.
func (a *Adapter) Config() Config {
	return a.cfg
}

// Handle is one started recognition session.
//
// Stop must be called exactly once on every exit path; extra calls are no-ops.
// This includes a handle returned together with a Start error.
type Handle struct {
	stream Stream
	roles  *RoleMapper
	cfg    Config
	logger *slog.Logger

	utterances chan Utterance
	interims   chan Utterance

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error

	mu  sync.Mutex
	err error
}

// Start opens a recognition stream. The returned handle is never nil; when
// err is non-nil the handle is already terminated and Err reports why.
func (a *Adapter) Start(ctx context.Context) (*Handle, error) {
	h := &Handle{
		roles:      NewRoleMapper(a.cfg.PrimarySpeaker),
		cfg:        a.cfg,
		logger:     slog.Default().With("component", "speech"),
		utterances: make(chan Utterance, utteranceBuffer),
		interims:   make(chan Utterance, interimBuffer),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}

	stream, err := a.recognizer.Start(ctx, a.cfg)
	if err != nil {
		h.fail(fmt.Errorf("%w: starting recognizer: %w", ErrFatal, err))
		close(h.utterances)
		close(h.interims)
		close(h.done)
		return h, h.Err()
	}

	h.stream = stream
	go h.pump()
	return h, nil
}

// Feed pushes one audio frame to the engine. Errors satisfying IsFatal end the
// session; a *FrameError means only this frame was lost.
func (h *Handle) Feed(frame []byte) error {
	select {
	case <-h.stopCh:
		return ErrStopped
	case <-h.done:
		if err := h.Err(); err != nil {
			return err
		}
		return ErrStopped
	default:
	}

	if err := h.stream.Write(frame); err != nil {
		select {
		case <-h.stopCh:
			// The stream was closed under this write by Stop.
			return ErrStopped
		default:
		}
		if errors.Is(err, ErrFatal) {
			h.fail(err)
			return err
		}
		return &FrameError{Err: err}
	}
	return nil
}

// Utterances delivers final, recognized speech. It is closed when the handle
// terminates.
func (h *Handle) Utterances() <-chan Utterance {
	return h.utterances
}

// Interims delivers live captions when Config.Interims is set. Captions are
// dropped when the reader falls behind.
func (h *Handle) Interims() <-chan Utterance {
	return h.interims
}

// Done is closed once the handle stops producing events.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the fatal error that terminated the handle, if any.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Roles exposes the session's speaker mapping.
func (h *Handle) Roles() *RoleMapper {
	return h.roles
}

// Stop closes the engine stream and waits for event delivery to wind down.
func (h *Handle) Stop() error {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.stream != nil {
			if err := h.stream.Close(); err != nil {
				h.stopErr = fmt.Errorf("closing recognizer stream: %w", err)
			}
		}
		<-h.done
	})
	return h.stopErr
}

func (h *Handle) fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err == nil {
		h.err = err
	}
}

func (h *Handle) pump() {
	defer close(h.done)
	defer close(h.interims)
	defer close(h.utterances)

	events := h.stream.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !h.dispatch(ev) {
				return
			}
		case <-h.stopCh:
			return
		}
	}
}

// dispatch routes one engine event. It returns false when the pump must exit.
func (h *Handle) dispatch(ev Event) bool {
	switch ev.Kind {
	case KindInterim:
		if !h.cfg.Interims {
			return true
		}
		select {
		case h.interims <- h.utterance(ev):
		default:
			h.logger.Debug("dropping interim caption, reader is behind")
		}
		return true

	case KindFinal:
		if ev.Reason != ReasonRecognized {
			h.logger.Debug("skipping final result without recognized speech", "reason", ev.Reason)
			return true
		}
		select {
		case h.utterances <- h.utterance(ev):
			return true
		case <-h.stopCh:
			return false
		}

	case KindCanceled:
		err := ev.Err
		if err == nil {
			err = errors.New("recognition canceled")
		}
		if !errors.Is(err, ErrFatal) {
			err = fmt.Errorf("%w: %w", ErrFatal, err)
		}
		h.fail(err)
		h.logger.Warn("recognizer canceled the session", "error", err)
		return false

	default:
		return true
	}
}

func (h *Handle) utterance(ev Event) Utterance {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Utterance{
		ID:        uuid.NewString(),
		Text:      ev.Text,
		SpeakerID: ev.SpeakerID,
		Role:      h.roles.Role(ev.SpeakerID),
		Timestamp: ts,
	}
}
