// Package deepgram implements speech.Recognizer on top of the Deepgram
// streaming WebSocket API.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/rendi-app/rendi/internal/speech"
)

const (
	defaultEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-2"
	defaultKeepAlive = 5 * time.Second
	closeTimeout     = 2 * time.Second
	readLimit        = 1 << 20
)

var errEmptyFrame = errors.New("deepgram: empty audio frame")

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithEndpoint overrides the streaming endpoint (ws:// or wss://).
func WithEndpoint(endpoint string) Option {
	return func(r *Recognizer) {
		r.endpoint = endpoint
	}
}

// WithKeepAlive sets how long the stream may go without audio before a
// KeepAlive message is sent. Zero disables keep-alives.
func WithKeepAlive(d time.Duration) Option {
	return func(r *Recognizer) {
		r.keepAlive = d
	}
}

// Recognizer opens Deepgram live transcription streams.
type Recognizer struct {
	apiKey    string
	endpoint  string
	keepAlive time.Duration
}

func New(apiKey string, opts ...Option) (*Recognizer, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: api key must not be empty")
	}
	r := &Recognizer{
		apiKey:    apiKey,
		endpoint:  defaultEndpoint,
		keepAlive: defaultKeepAlive,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

func (r *Recognizer) Start(ctx context.Context, cfg speech.Config) (speech.Stream, error) {
	wsURL, err := r.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: building url: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}
	conn.SetReadLimit(readLimit)

	// The stream outlives the dial context; Close cancels it.
	sctx, cancel := context.WithCancel(context.Background())
	s := &stream{
		conn:      conn,
		diarize:   cfg.Diarize,
		keepAlive: r.keepAlive,
		audio:     make(chan []byte, 256),
		events:    make(chan speech.Event, 64),
		done:      make(chan struct{}),
		failed:    make(chan struct{}),
		readDone:  make(chan struct{}),
		ctx:       sctx,
		cancel:    cancel,
	}

	s.writeWG.Add(1)
	go s.writeLoop()
	go s.readLoop()

	return s, nil
}

func (r *Recognizer) buildURL(cfg speech.Config) (string, error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return "", err
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	q := u.Query()
	q.Set("model", model)
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	}
	if cfg.Encoding != "" {
		q.Set("encoding", cfg.Encoding)
	}
	if cfg.SampleRate > 0 {
		q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	}
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("interim_results", "true")
	q.Set("diarize", strconv.FormatBool(cfg.Diarize))
	if cfg.SilenceTimeout > 0 {
		q.Set("endpointing", strconv.FormatInt(cfg.SilenceTimeout.Milliseconds(), 10))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// stream is one live Deepgram session. It implements speech.Stream.
type stream struct {
	conn      *websocket.Conn
	diarize   bool
	keepAlive time.Duration

	audio    chan []byte
	events   chan speech.Event
	done     chan struct{}
	failed   chan struct{}
	readDone chan struct{}
	writeWG  sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	// drainCtx bounds the final flush. It is set before done is closed.
	drainCtx context.Context

	closeOnce sync.Once
	failOnce  sync.Once
	mu        sync.Mutex
	err       error
}

func (s *stream) Write(frame []byte) error {
	if len(frame) == 0 {
		return errEmptyFrame
	}

	select {
	case <-s.done:
		return fmt.Errorf("%w: deepgram stream closed", speech.ErrFatal)
	case <-s.failed:
		return s.fatalErr()
	default:
	}

	select {
	case s.audio <- frame:
		return nil
	case <-s.done:
		return fmt.Errorf("%w: deepgram stream closed", speech.ErrFatal)
	case <-s.failed:
		return s.fatalErr()
	}
}

func (s *stream) Events() <-chan speech.Event {
	return s.events
}

// Close flushes queued audio, asks Deepgram to finalize, and tears the
// connection down. The flush is bounded by closeTimeout; a peer that stops
// reading gets its connection aborted instead.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		drainCtx, cancelDrain := context.WithTimeout(s.ctx, closeTimeout)
		defer cancelDrain()
		s.drainCtx = drainCtx
		close(s.done)

		flushed := make(chan struct{})
		go func() {
			s.writeWG.Wait()
			close(flushed)
		}()

		select {
		case <-flushed:
		case <-drainCtx.Done():
			// Aborts a write blocked on s.ctx.
			s.cancel()
			<-flushed
		}

		select {
		case <-s.readDone:
		case <-drainCtx.Done():
		}

		if drainCtx.Err() != nil {
			_ = s.conn.CloseNow()
		} else {
			_ = s.conn.Close(websocket.StatusNormalClosure, "stream closed")
		}
		s.cancel()
		<-s.readDone
	})
	return nil
}

func (s *stream) fail(err error) {
	s.failOnce.Do(func() {
		s.mu.Lock()
		s.err = fmt.Errorf("%w: %w", speech.ErrFatal, err)
		s.mu.Unlock()
		close(s.failed)
	})
}

func (s *stream) fatalErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) closing() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *stream) writeLoop() {
	defer s.writeWG.Done()

	var tick <-chan time.Time
	if s.keepAlive > 0 {
		ticker := time.NewTicker(s.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}
	lastAudio := time.Now()

	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.Write(s.ctx, websocket.MessageBinary, chunk); err != nil {
				s.fail(fmt.Errorf("writing audio: %w", err))
				return
			}
			lastAudio = time.Now()

		case <-tick:
			if time.Since(lastAudio) < s.keepAlive {
				continue
			}
			if err := s.conn.Write(s.ctx, websocket.MessageText, []byte(`{"type":"KeepAlive"}`)); err != nil {
				s.fail(fmt.Errorf("writing keep-alive: %w", err))
				return
			}

		case <-s.failed:
			return

		case <-s.done:
			for {
				select {
				case chunk := <-s.audio:
					if err := s.conn.Write(s.ctx, websocket.MessageBinary, chunk); err != nil {
						return
					}
				default:
					_ = s.conn.Write(s.ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
					return
				}
			}
		}
	}
}

// flush sends the audio still queued, then CloseStream, within the drain
// deadline.
func (s *stream) flush() {
	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.Write(s.drainCtx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		default:
			_ = s.conn.Write(s.drainCtx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
			return
		}
	}
}

func (s *stream) readLoop() {
	defer close(s.readDone)
	defer close(s.events)

	for {
		_, msg, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.closing() {
				return
			}
			s.fail(fmt.Errorf("reading results: %w", err))
			slog.Warn("deepgram stream ended unexpectedly", "error", err, "status", websocket.CloseStatus(err))
			s.emit(speech.Event{
				Kind:      speech.KindCanceled,
				Reason:    speech.ReasonCanceled,
				Err:       s.fatalErr(),
				Timestamp: time.Now(),
			})
			return
		}

		ev, ok := parseResponse(msg, s.diarize)
		if !ok {
			continue
		}
		if !s.emit(ev) {
			return
		}
	}
}

func (s *stream) emit(ev speech.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

type word struct {
	Word    string `json:"word"`
	Speaker *int   `json:"speaker,omitempty"`
}

type response struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []word  `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseResponse converts a Deepgram message into a speech event. Messages
// other than transcription results are ignored.
func parseResponse(data []byte, diarize bool) (speech.Event, bool) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return speech.Event{}, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return speech.Event{}, false
	}

	alt := resp.Channel.Alternatives[0]
	ev := speech.Event{
		Kind:      speech.KindInterim,
		Text:      alt.Transcript,
		Reason:    speech.ReasonRecognized,
		Timestamp: time.Now(),
	}
	if resp.IsFinal {
		ev.Kind = speech.KindFinal
	}
	// Deepgram finalizes silence as an empty transcript.
	if alt.Transcript == "" {
		ev.Reason = speech.ReasonNoMatch
	}
	if diarize {
		ev.SpeakerID = dominantSpeaker(alt.Words)
	}
	return ev, true
}

// dominantSpeaker names the diarized speaker with the most words in the
// format "Guest-N", counting from 1. Ties go to the speaker heard first.
func dominantSpeaker(words []word) string {
	counts := make(map[int]int)
	order := make([]int, 0, 2)
	for _, w := range words {
		if w.Speaker == nil {
			continue
		}
		if counts[*w.Speaker] == 0 {
			order = append(order, *w.Speaker)
		}
		counts[*w.Speaker]++
	}
	if len(order) == 0 {
		return ""
	}

	best := order[0]
	for _, spk := range order[1:] {
		if counts[spk] > counts[best] {
			best = spk
		}
	}
	return fmt.Sprintf("Guest-%d", best+1)
}
