// Package mock provides a scriptable speech.Recognizer for tests.
//
// Tests drive transcription by calling Emit on the stream the recognizer
// hands out, and inspect the frames written and how often the stream was
// closed.
package mock

import (
	"context"
	"sync"

	"github.com/rendi-app/rendi/internal/speech"
)

// Recognizer hands out a single Stream per Start call.
type Recognizer struct {
	mu sync.Mutex

	// StartErr, when set, is returned by Start.
	StartErr error

	// WriteErr, when set, is returned by every Stream.Write.
	WriteErr error

	// OnWrite, when set, runs after each accepted frame.
	OnWrite func(s *Stream, frame []byte)

	streams []*Stream
	configs []speech.Config
	started chan *Stream
}

func NewRecognizer() *Recognizer {
	return &Recognizer{started: make(chan *Stream, 8)}
}

func (r *Recognizer) Start(_ context.Context, cfg speech.Config) (speech.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs = append(r.configs, cfg)
	if r.StartErr != nil {
		return nil, r.StartErr
	}

	s := &Stream{
		events:   make(chan speech.Event, 32),
		writeErr: r.WriteErr,
		onWrite:  r.OnWrite,
	}
	r.streams = append(r.streams, s)
	select {
	case r.started <- s:
	default:
	}
	return s, nil
}

// Started delivers each stream as it is opened.
func (r *Recognizer) Started() <-chan *Stream {
	return r.started
}

// Streams returns every stream opened so far.
func (r *Recognizer) Streams() []*Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Stream, len(r.streams))
	copy(out, r.streams)
	return out
}

// Configs returns the configuration passed to each Start call.
func (r *Recognizer) Configs() []speech.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]speech.Config, len(r.configs))
	copy(out, r.configs)
	return out
}

// Stream is a recording speech.Stream.
type Stream struct {
	mu         sync.Mutex
	events     chan speech.Event
	frames     [][]byte
	closed     bool
	closeCalls int
	writeErr   error
	onWrite    func(s *Stream, frame []byte)
}

func (s *Stream) Write(frame []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return speech.ErrStopped
	}
	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return err
	}
	s.frames = append(s.frames, frame)
	hook := s.onWrite
	s.mu.Unlock()

	if hook != nil {
		hook(s, frame)
	}
	return nil
}

func (s *Stream) Events() <-chan speech.Event {
	return s.events
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// Emit delivers an event to the adapter. It reports false once the stream
// has been closed.
func (s *Stream) Emit(ev speech.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.events <- ev
	return true
}

// Final is shorthand for emitting a recognized final result.
func (s *Stream) Final(text, speakerID string) bool {
	return s.Emit(speech.Event{Kind: speech.KindFinal, Text: text, SpeakerID: speakerID, Reason: speech.ReasonRecognized})
}

// Interim is shorthand for emitting a partial result.
func (s *Stream) Interim(text, speakerID string) bool {
	return s.Emit(speech.Event{Kind: speech.KindInterim, Text: text, SpeakerID: speakerID, Reason: speech.ReasonRecognized})
}

// Frames returns the frames written so far.
func (s *Stream) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

// CloseCalls reports how many times Close was called.
func (s *Stream) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}
