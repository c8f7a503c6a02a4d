// Package conversation is the client side of the AI conversation service:
// per-endpoint calls plus the ordered Pipeline that turns one utterance into
// a coaching Envelope.
package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rendi-app/rendi/internal/metrics"
)

// Step names one downstream call of a pipeline run.
type Step string

const (
	StepCreateConversation Step = "create_conversation"
	StepSubmitMessage      Step = "submit_message"
	StepRealtimeMemory     Step = "realtime_memory"
	StepRealtimeAnalysis   Step = "realtime_analysis"
	StepRecommendAdvice    Step = "advice_recommendation"
	StepAdviceDetail       Step = "advice_detail"
	StepFinalReport        Step = "final_report"
)

// StepError is returned when a downstream call fails. It aborts the run.
type StepError struct {
	Step   Step
	Status int
	Err    error
}

func (e *StepError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s failed with status %d: %v", e.Step, e.Status, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

// ClientMessage is the text shown to end users. It names the step and status
// and leaves out the downstream response body.
func (e *StepError) ClientMessage() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s failed with status %d", e.Step, e.Status)
	}
	return fmt.Sprintf("%s failed", e.Step)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Caller identifies the end user on whose behalf calls are made. Its cookies
// are forwarded verbatim so the service can attribute the calls.
type Caller struct {
	UserID  string
	Cookies []*http.Cookie
}

// NewPooledHTTPClient returns an http.Client whose transport keeps poolSize
// idle connections per host. Per-call deadlines come from the context.
func NewPooledHTTPClient(poolSize int) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          poolSize,
			MaxIdleConnsPerHost:   poolSize,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}

// Client calls the conversation service endpoints.
type Client struct {
	baseURL     string
	http        *http.Client
	callTimeout time.Duration
}

func NewClient(baseURL string, httpClient *http.Client, callTimeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &Client{
		baseURL:     baseURL,
		http:        httpClient,
		callTimeout: callTimeout,
	}
}

func conversationPath(conversationID string, parts ...string) string {
	p := "/api/v1/conversation/" + url.PathEscape(conversationID)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// CreateConversation registers the conversation. An existing conversation is
// not an error.
func (c *Client) CreateConversation(ctx context.Context, conversationID string, caller Caller) error {
	return c.do(ctx, StepCreateConversation, http.MethodPost, conversationPath(conversationID), struct{}{}, nil, caller)
}

// MessageResult is the service's echo of a submitted message.
type MessageResult struct {
	Message *Message        `json:"message"`
	Scores  json.RawMessage `json:"scores"`
}

func (c *Client) SubmitMessage(ctx context.Context, conversationID string, msg Message, caller Caller) (*MessageResult, error) {
	var out MessageResult
	body := struct {
		Message Message `json:"message"`
	}{msg}
	if err := c.do(ctx, StepSubmitMessage, http.MethodPost, conversationPath(conversationID, "messages"), body, &out, caller); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateRealtimeMemory(ctx context.Context, conversationID string, caller Caller) (json.RawMessage, error) {
	var out struct {
		PartnerMemory json.RawMessage `json:"partner_memory"`
	}
	if err := c.do(ctx, StepRealtimeMemory, http.MethodPost, conversationPath(conversationID, "realtime-memory"), struct{}{}, &out, caller); err != nil {
		return nil, err
	}
	return out.PartnerMemory, nil
}

func (c *Client) RealtimeAnalysis(ctx context.Context, conversationID string, caller Caller) (json.RawMessage, error) {
	var out struct {
		Scores json.RawMessage `json:"scores"`
	}
	if err := c.do(ctx, StepRealtimeAnalysis, http.MethodGet, conversationPath(conversationID, "realtime-analysis"), nil, &out, caller); err != nil {
		return nil, err
	}
	return out.Scores, nil
}

func (c *Client) RecommendAdvice(ctx context.Context, conversationID string, caller Caller) ([]AdviceMetadata, error) {
	var out struct {
		AdviceMetadatas []AdviceMetadata `json:"advice_metadatas"`
	}
	if err := c.do(ctx, StepRecommendAdvice, http.MethodPost, conversationPath(conversationID, "breaktime-advice", "recommendation"), struct{}{}, &out, caller); err != nil {
		return nil, err
	}
	return out.AdviceMetadatas, nil
}

func (c *Client) AdviceDetail(ctx context.Context, conversationID, adviceID string, caller Caller) (json.RawMessage, error) {
	var out json.RawMessage
	path := conversationPath(conversationID, "breaktime-advice", url.PathEscape(adviceID))
	if err := c.do(ctx, StepAdviceDetail, http.MethodPost, path, nil, &out, caller); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FinalReport(ctx context.Context, conversationID string, caller Caller) (string, error) {
	var out struct {
		FinalReport string `json:"final_report"`
	}
	if err := c.do(ctx, StepFinalReport, http.MethodPost, conversationPath(conversationID, "final-report"), struct{}{}, &out, caller); err != nil {
		return "", err
	}
	return out.FinalReport, nil
}

func (c *Client) do(ctx context.Context, step Step, method, path string, body, out any, caller Caller) error {
	start := time.Now()
	defer func() {
		metrics.PipelineStepDuration.WithLabelValues(string(step)).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &StepError{Step: step, Err: fmt.Errorf("encoding request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &StepError{Step: step, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range caller.Cookies {
		req.AddCookie(ck)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &StepError{Step: step, Err: fmt.Errorf("timed out after %s: %w", c.callTimeout, err)}
		}
		return &StepError{Step: step, Err: err}
	}
	defer resp.Body.Close()

	if step == StepCreateConversation && resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StepError{Step: step, Status: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", bytes.TrimSpace(snippet))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &StepError{Step: step, Status: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
