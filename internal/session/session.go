// Package session runs one live coaching session per client WebSocket: audio
// in, speech recognition, a pipeline run per utterance, and envelopes out.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/rendi-app/rendi/internal/audio"
	"github.com/rendi-app/rendi/internal/conversation"
	"github.com/rendi-app/rendi/internal/metrics"
	inats "github.com/rendi-app/rendi/internal/nats"
	"github.com/rendi-app/rendi/internal/speech"
)

// State is a session's lifecycle stage.
type State int32

const (
	StateAccepting State = iota
	StateActive
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAccepting:
		return "accepting"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Reasons a session ends.
const (
	ReasonClientClosed     = "client_closed"
	ReasonRecognizerFailed = "recognizer_failed"
	ReasonRecognizerEnded  = "recognizer_ended"
	ReasonShutdown         = "shutdown"
)

const (
	maxClientFrame = 1 << 20
	publishTimeout = 2 * time.Second
)

var (
	errClientClosed    = errors.New("client connection closed")
	errRecognizerEnded = errors.New("recognizer stream ended")
)

// Pipeline turns one utterance into an envelope.
type Pipeline interface {
	Run(ctx context.Context, conversationID string, utt speech.Utterance, caller conversation.Caller) (*conversation.Envelope, error)
}

// EventPublisher receives session lifecycle and pipeline outcome events.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event inats.SessionEvent) error
	PublishPipelineEvent(ctx context.Context, event inats.PipelineEvent) error
}

type wsReader interface {
	SetReadLimit(limit int64)
	ReadMessage() (messageType int, p []byte, err error)
}

// Caption is an interim transcript forwarded ahead of the pipeline.
type Caption struct {
	Text  string `json:"text"`
	Role  string `json:"role"`
	Final bool   `json:"final"`
}

type captionFrame struct {
	Caption Caption `json:"caption"`
}

// Session is one client connection's live relay.
type Session struct {
	ID             string
	ConversationID string
	Identity       Identity
	Caller         conversation.Caller

	conn      wsReader
	sender    *Sender
	adapter   *speech.Adapter
	pipeline  Pipeline
	events    EventPublisher
	queueSize int
	logger    *slog.Logger

	state  atomic.Int32
	runs   sync.WaitGroup
	reason string
}

// State returns the session's current lifecycle stage.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Reason reports why the session ended. It is empty until Run returns.
func (s *Session) Reason() string {
	return s.reason
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.logger.Debug("session state changed", "state", st.String())
}

// Run drives the session until the client leaves, the recognizer fails, or
// ctx is cancelled. The connection is closed when Run returns.
func (s *Session) Run(ctx context.Context) {
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	s.logger.Info("session started")
	s.publishSession(ctx, inats.SessionStarted, "")

	handle, err := s.adapter.Start(ctx)
	defer handle.Stop()
	if err != nil {
		s.logger.Error("starting recognizer", "error", err)
		s.setState(StateDraining)
		s.finish(ctx, ReasonRecognizerFailed, websocket.CloseInternalServerErr, "speech recognition unavailable")
		return
	}
	s.setState(StateActive)

	runCtx, cancelRuns := context.WithCancel(ctx)
	defer cancelRuns()

	buf := audio.NewBuffer(s.queueSize)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.ingest(gctx, buf)
	})
	g.Go(func() error {
		return s.feed(handle, buf)
	})
	g.Go(func() error {
		return s.dispatch(gctx, runCtx, handle)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.setState(StateDraining)
		cancelRuns()
		if err := handle.Stop(); err != nil {
			s.logger.Warn("stopping recognizer", "error", err)
		}
		code, text := closeFor(ctx, context.Cause(gctx))
		s.sender.Close(code, text)
		return nil
	})

	cause := g.Wait()
	s.runs.Wait()

	reason := reasonFor(ctx, cause)
	if reason == ReasonRecognizerFailed {
		s.logger.Error("recognizer failed", "error", cause)
	}
	s.finish(ctx, reason, websocket.CloseNormalClosure, "")
}

func (s *Session) finish(ctx context.Context, reason string, code int, text string) {
	s.sender.Close(code, text)
	s.reason = reason
	s.setState(StateClosed)
	metrics.SessionsTotal.WithLabelValues(reason).Inc()
	s.publishSession(ctx, inats.SessionEnded, reason)
	s.logger.Info("session ended", "reason", reason)
}

// ingest moves client frames into the audio queue. It always returns a
// non-nil error so the group drains once the client is gone.
func (s *Session) ingest(ctx context.Context, buf *audio.Buffer) error {
	defer buf.Close()

	s.conn.SetReadLimit(maxClientFrame)
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.logger.Warn("reading client frame", "error", err)
			} else {
				s.logger.Debug("client connection closed", "error", err)
			}
			return errClientClosed
		}
		if mt != websocket.BinaryMessage {
			s.logger.Debug("ignoring non-binary client frame", "type", mt)
			continue
		}

		metrics.AudioFramesTotal.Inc()
		if err := buf.Push(ctx, data); err != nil {
			return fmt.Errorf("queueing audio frame: %w", err)
		}
	}
}

// feed drains the audio queue into the recognizer.
func (s *Session) feed(handle *speech.Handle, buf *audio.Buffer) error {
	for frame := range buf.Frames() {
		err := handle.Feed(frame)
		switch {
		case err == nil:
		case errors.Is(err, speech.ErrStopped):
			return nil
		case speech.IsFatal(err):
			return err
		default:
			metrics.RecognizerFrameErrors.Inc()
			s.logger.Warn("dropping audio frame", "error", err)
		}
	}
	return nil
}

// dispatch starts one pipeline run per utterance and forwards captions.
func (s *Session) dispatch(ctx, runCtx context.Context, handle *speech.Handle) error {
	utterances := handle.Utterances()
	interims := handle.Interims()

	for {
		select {
		case <-ctx.Done():
			return nil

		case utt, ok := <-utterances:
			if !ok {
				if err := handle.Err(); err != nil {
					return err
				}
				return errRecognizerEnded
			}
			metrics.UtterancesTotal.WithLabelValues(string(utt.Role)).Inc()
			s.logger.Debug("utterance recognized", "message_id", utt.ID, "role", utt.Role, "speaker_id", utt.SpeakerID)

			s.runs.Add(1)
			go func() {
				defer s.runs.Done()
				s.runPipeline(runCtx, utt)
			}()

		case utt, ok := <-interims:
			if !ok {
				interims = nil
				continue
			}
			if err := s.sender.Send(captionFrame{Caption{Text: utt.Text, Role: string(utt.Role)}}); err != nil {
				s.logger.Debug("sending caption", "error", err)
			}
		}
	}
}

func (s *Session) runPipeline(ctx context.Context, utt speech.Utterance) {
	start := time.Now()
	env, err := s.pipeline.Run(ctx, s.ConversationID, utt, s.Caller)

	switch {
	case err != nil && ctx.Err() != nil:
		s.logger.Debug("abandoning pipeline run", "message_id", utt.ID, "error", err)
	case err != nil:
		s.logger.Warn("pipeline run failed", "message_id", utt.ID, "error", err)
		if sendErr := s.sender.SendError(clientMessage(err)); sendErr != nil {
			s.logger.Warn("sending error envelope", "message_id", utt.ID, "error", sendErr)
		}
	default:
		if sendErr := s.sender.Send(env); sendErr != nil {
			s.logger.Warn("sending envelope", "message_id", utt.ID, "error", sendErr)
		}
	}

	s.publishPipeline(ctx, utt, start, err)
}

func (s *Session) publishSession(ctx context.Context, eventType, reason string) {
	if s.events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.events.PublishSessionEvent(pctx, inats.SessionEvent{
		SessionID:      s.ID,
		UserID:         s.Caller.UserID,
		ConversationID: s.ConversationID,
		EventType:      eventType,
		Reason:         reason,
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("publishing session event", "event_type", eventType, "error", err)
	}
}

func (s *Session) publishPipeline(ctx context.Context, utt speech.Utterance, start time.Time, runErr error) {
	if s.events == nil {
		return
	}
	event := inats.PipelineEvent{
		SessionID:      s.ID,
		ConversationID: s.ConversationID,
		MessageID:      utt.ID,
		Role:           string(utt.Role),
		Status:         "ok",
		DurationMs:     time.Since(start).Milliseconds(),
		Timestamp:      time.Now().UTC(),
	}
	if runErr != nil {
		event.Status = "error"
		var stepErr *conversation.StepError
		if errors.As(runErr, &stepErr) {
			event.FailedStep = string(stepErr.Step)
		}
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.PublishPipelineEvent(pctx, event); err != nil {
		s.logger.Warn("publishing pipeline event", "message_id", utt.ID, "error", err)
	}
}

// clientMessage hides downstream error details from the client.
func clientMessage(err error) string {
	var stepErr *conversation.StepError
	if errors.As(err, &stepErr) {
		return stepErr.ClientMessage()
	}
	return "conversation pipeline failed"
}

func reasonFor(parent context.Context, cause error) string {
	switch {
	case speech.IsFatal(cause):
		return ReasonRecognizerFailed
	case parent.Err() != nil:
		return ReasonShutdown
	case errors.Is(cause, errRecognizerEnded):
		return ReasonRecognizerEnded
	default:
		return ReasonClientClosed
	}
}

func closeFor(parent context.Context, cause error) (int, string) {
	switch reasonFor(parent, cause) {
	case ReasonRecognizerFailed:
		return websocket.CloseInternalServerErr, "speech recognition failed"
	case ReasonShutdown:
		return websocket.CloseGoingAway, "server shutting down"
	default:
		return websocket.CloseNormalClosure, ""
	}
}
