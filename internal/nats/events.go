package nats

import "time"

// StreamEvents holds session and pipeline lifecycle events.
const StreamEvents = "RENDI_EVENTS"

// Subject constants.
const (
	SubjectSessionEvent  = "rendi.events.session"
	SubjectPipelineEvent = "rendi.events.pipeline"
)

// Session event types.
const (
	SessionStarted = "started"
	SessionEnded   = "ended"
)

// SessionEvent is published when a live session starts or ends.
type SessionEvent struct {
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	EventType      string    `json:"event_type"`
	Reason         string    `json:"reason,omitempty"` // e.g. "client_closed", "recognizer_failed"
	Timestamp      time.Time `json:"timestamp"`
}

// PipelineEvent is published after every pipeline run.
type PipelineEvent struct {
	SessionID      string    `json:"session_id"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Role           string    `json:"role"`
	Status         string    `json:"status"` // ok, error
	FailedStep     string    `json:"failed_step,omitempty"`
	DurationMs     int64     `json:"duration_ms"`
	Timestamp      time.Time `json:"timestamp"`
}
