// Package conversationtest provides an in-process fake of the AI conversation
// service for tests.
package conversationtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// Call is one request the fake received.
type Call struct {
	Method  string
	Path    string
	Step    string
	Body    []byte
	Cookies []*http.Cookie
}

// Server fakes the conversation service. The zero configuration answers every
// step successfully with one recommended advice item.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	calls    []Call
	failures map[string]int
	delays   map[string]time.Duration
	advice   string
	gate     chan struct{}
	gateStep string
}

func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		failures: make(map[string]int),
		delays:   make(map[string]time.Duration),
		advice:   `[{"advice_id":"adv-1","title":"칭찬하기"}]`,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// FailStep makes the named step answer with status.
func (s *Server) FailStep(step string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[step] = status
}

// DelayStep makes the named step sleep before answering.
func (s *Server) DelayStep(step string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[step] = d
}

// SetAdvice replaces the JSON array returned by the recommendation step.
func (s *Server) SetAdvice(rawJSONArray string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advice = rawJSONArray
}

// HoldStep blocks the named step until the returned release func is called.
func (s *Server) HoldStep(step string) (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.gate = gate
	s.gateStep = step
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Calls returns every request received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Steps returns the step name of every request received so far.
func (s *Server) Steps() []string {
	calls := s.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Step
	}
	return out
}

func stepFor(method, path string) string {
	rest := strings.TrimPrefix(path, "/api/v1/conversation/")
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && method == http.MethodPost:
		return "create_conversation"
	case len(parts) == 2 && parts[1] == "messages":
		return "submit_message"
	case len(parts) == 2 && parts[1] == "realtime-memory":
		return "realtime_memory"
	case len(parts) == 2 && parts[1] == "realtime-analysis":
		return "realtime_analysis"
	case len(parts) == 3 && parts[1] == "breaktime-advice" && parts[2] == "recommendation":
		return "advice_recommendation"
	case len(parts) == 3 && parts[1] == "breaktime-advice":
		return "advice_detail"
	case len(parts) == 2 && parts[1] == "final-report":
		return "final_report"
	default:
		return "unknown"
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	step := stepFor(r.Method, r.URL.Path)

	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Step: step, Body: body, Cookies: r.Cookies()})
	status := s.failures[step]
	delay := s.delays[step]
	advice := s.advice
	var gate chan struct{}
	if s.gateStep == step {
		gate = s.gate
	}
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"detail":"fake failure"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch step {
	case "create_conversation":
		_, _ = w.Write([]byte(`{"conversation_id":"ok"}`))
	case "submit_message":
		var in struct {
			Message map[string]any `json:"message"`
		}
		_ = json.Unmarshal(body, &in)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": in.Message,
			"scores":  map[string]int{"likeability": 70},
		})
	case "realtime_memory":
		_, _ = w.Write([]byte(`{"partner_memory":{"hobby":"climbing"}}`))
	case "realtime_analysis":
		_, _ = w.Write([]byte(`{"scores":{"engagement":80}}`))
	case "advice_recommendation":
		_, _ = w.Write([]byte(`{"advice_metadatas":` + advice + `}`))
	case "advice_detail":
		_, _ = w.Write([]byte(`{"advice_id":"adv-1","content":"상대의 취미를 물어보세요"}`))
	case "final_report":
		_, _ = w.Write([]byte(`{"final_report":"좋은 대화였습니다"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
