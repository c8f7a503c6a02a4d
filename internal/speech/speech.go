// Package speech adapts a streaming speech-to-text engine to the relay: it
// pushes audio frames in, turns the engine's transcription events into
// speaker-attributed Utterances and classifies engine failures.
//
// Engines plug in through the Recognizer and Stream interfaces. See the
// deepgram subpackage for a production engine and mock for a scriptable one.
package speech

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Role labels who spoke an utterance from the coached user's point of view.
type Role string

const (
	RoleSelf    Role = "self"
	RolePartner Role = "partner"
)

// Kind distinguishes the engine's event types.
type Kind int

const (
	KindInterim Kind = iota
	KindFinal
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindInterim:
		return "interim"
	case KindFinal:
		return "final"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Reason is the engine's verdict on a result.
type Reason int

const (
	ReasonRecognized Reason = iota
	ReasonNoMatch
	ReasonCanceled
)

// Event is one transcription event emitted by a Stream.
type Event struct {
	Kind      Kind
	Text      string
	SpeakerID string
	Reason    Reason
	Timestamp time.Time

	// Err is set on KindCanceled events.
	Err error
}

// Config is the recognizer configuration for one session. It is passed by
// value and never mutated after the Adapter is built.
type Config struct {
	Model          string
	Language       string
	SampleRate     int
	Channels       int
	Encoding       string
	SilenceTimeout time.Duration
	Diarize        bool

	// PrimarySpeaker is the engine speaker id that maps to RoleSelf. When
	// empty the first speaker heard becomes the primary.
	PrimarySpeaker string

	// Interims enables the lossy caption channel on Handle.
	Interims bool
}

// Recognizer opens streaming recognition sessions.
type Recognizer interface {
	Start(ctx context.Context, cfg Config) (Stream, error)
}

// Stream is one live recognition session.
//
// Write must return an error wrapping ErrFatal when the session can no longer
// accept audio. Events is closed when the session ends. Close must be safe to
// call more than once and concurrently with Write.
type Stream interface {
	Write(frame []byte) error
	Events() <-chan Event
	Close() error
}

// Utterance is one finalized, speaker-attributed unit of speech.
type Utterance struct {
	ID        string
	Text      string
	SpeakerID string
	Role      Role
	Timestamp time.Time
}

var (
	// ErrFatal marks engine failures that end the session.
	ErrFatal = errors.New("speech: fatal recognizer error")

	// ErrStopped is returned when feeding a handle that has been stopped.
	ErrStopped = errors.New("speech: recognizer stopped")
)

// FrameError reports a single frame the engine could not take. The session
// carries on without it.
type FrameError struct {
	Err error
}

func (e *FrameError) Error() string {
	return "speech: frame rejected: " + e.Err.Error()
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err should end the session.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal) || errors.Is(err, ErrStopped)
}
