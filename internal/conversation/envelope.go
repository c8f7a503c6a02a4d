package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var emptyObject = json.RawMessage(`{}`)

// Message is one utterance as the conversation service records it.
type Message struct {
	MessageID string `json:"message_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// AdviceMetadata is one recommended advice item. Fields other than the id are
// kept verbatim so the client sees what the service sent.
type AdviceMetadata struct {
	AdviceID string
	raw      json.RawMessage
}

func (a *AdviceMetadata) UnmarshalJSON(data []byte) error {
	var probe struct {
		AdviceID json.RawMessage `json:"advice_id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("decoding advice metadata: %w", err)
	}

	id := bytes.TrimSpace(probe.AdviceID)
	if len(id) > 0 && id[0] == '"' {
		var s string
		if err := json.Unmarshal(id, &s); err != nil {
			return fmt.Errorf("decoding advice_id: %w", err)
		}
		a.AdviceID = s
	} else if len(id) > 0 && string(id) != "null" {
		a.AdviceID = string(id)
	}

	a.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (a AdviceMetadata) MarshalJSON() ([]byte, error) {
	if len(a.raw) > 0 {
		return a.raw, nil
	}
	return json.Marshal(struct {
		AdviceID string `json:"advice_id"`
	}{a.AdviceID})
}

// Envelope is the aggregated result of one pipeline run.
type Envelope struct {
	Message         Message          `json:"message"`
	Scores          json.RawMessage  `json:"scores"`
	PartnerMemory   json.RawMessage  `json:"partner_memory"`
	Analysis        json.RawMessage  `json:"analysis"`
	AdviceMetadatas []AdviceMetadata `json:"advice_metadatas"`
	AdviceDetail    json.RawMessage  `json:"advice_detail,omitempty"`
	FinalReport     string           `json:"final_report"`
}

// ErrorEnvelope replaces an Envelope when a run fails.
type ErrorEnvelope struct {
	Error string `json:"error"`
}

// orEmpty keeps absent objects from serializing as null.
func orEmpty(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return emptyObject
	}
	return raw
}
