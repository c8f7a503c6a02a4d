package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rendi-app/rendi/internal/metrics"
	"github.com/rendi-app/rendi/internal/speech"
)

var errMissingAdviceID = errors.New("recommended advice has no advice_id")

// Pipeline runs the ordered call sequence for one utterance.
type Pipeline struct {
	client *Client
}

func NewPipeline(client *Client) *Pipeline {
	return &Pipeline{client: client}
}

// Run executes every step in order and returns the assembled envelope. The
// first failing step aborts the run; its *StepError is returned and nothing
// gathered so far escapes.
func (p *Pipeline) Run(ctx context.Context, conversationID string, utt speech.Utterance, caller Caller) (*Envelope, error) {
	env, err := p.run(ctx, conversationID, utt, caller)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.PipelineRunsTotal.WithLabelValues("ok").Inc()
	return env, nil
}

func (p *Pipeline) run(ctx context.Context, conversationID string, utt speech.Utterance, caller Caller) (*Envelope, error) {
	if err := p.client.CreateConversation(ctx, conversationID, caller); err != nil {
		return nil, err
	}

	sent := Message{
		MessageID: utt.ID,
		Role:      string(utt.Role),
		Content:   utt.Text,
		Timestamp: utt.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	echo, err := p.client.SubmitMessage(ctx, conversationID, sent, caller)
	if err != nil {
		return nil, err
	}

	env := &Envelope{
		Message: sent,
		Scores:  orEmpty(echo.Scores),
	}
	if echo.Message != nil {
		env.Message = *echo.Message
		env.Message.Role = normalizeRole(echo.Message.Role, sent.Role)
		if env.Message.MessageID == "" {
			env.Message.MessageID = sent.MessageID
		}
	}

	memory, err := p.client.UpdateRealtimeMemory(ctx, conversationID, caller)
	if err != nil {
		return nil, err
	}
	env.PartnerMemory = orEmpty(memory)

	analysis, err := p.client.RealtimeAnalysis(ctx, conversationID, caller)
	if err != nil {
		return nil, err
	}
	env.Analysis = orEmpty(analysis)

	advice, err := p.client.RecommendAdvice(ctx, conversationID, caller)
	if err != nil {
		return nil, err
	}
	env.AdviceMetadatas = advice
	if env.AdviceMetadatas == nil {
		env.AdviceMetadatas = []AdviceMetadata{}
	}

	if len(advice) > 0 {
		if strings.TrimSpace(advice[0].AdviceID) == "" {
			return nil, &StepError{Step: StepAdviceDetail, Err: errMissingAdviceID}
		}
		detail, err := p.client.AdviceDetail(ctx, conversationID, advice[0].AdviceID, caller)
		if err != nil {
			return nil, err
		}
		env.AdviceDetail = detail
	}

	report, err := p.client.FinalReport(ctx, conversationID, caller)
	if err != nil {
		return nil, err
	}
	env.FinalReport = report

	return env, nil
}

// normalizeRole maps the service's speaker labels onto self/partner. Labels
// it does not recognize are passed through.
func normalizeRole(echoed, fallback string) string {
	switch {
	case echoed == "":
		return fallback
	case echoed == "Guest-1", echoed == "나":
		return string(speech.RoleSelf)
	case strings.HasPrefix(echoed, "Guest-"), echoed == "파트너":
		return string(speech.RolePartner)
	default:
		return echoed
	}
}
