package conversation_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendi-app/rendi/internal/conversation"
	"github.com/rendi-app/rendi/internal/conversation/conversationtest"
	"github.com/rendi-app/rendi/internal/speech"
)

var allSteps = []string{
	"create_conversation",
	"submit_message",
	"realtime_memory",
	"realtime_analysis",
	"advice_recommendation",
	"advice_detail",
	"final_report",
}

func newPipeline(srv *conversationtest.Server, timeout time.Duration) *conversation.Pipeline {
	client := conversation.NewClient(srv.URL, conversation.NewPooledHTTPClient(4), timeout)
	return conversation.NewPipeline(client)
}

func utterance(text string, role speech.Role) speech.Utterance {
	return speech.Utterance{
		ID:        "msg-1",
		Text:      text,
		SpeakerID: "Guest-1",
		Role:      role,
		Timestamp: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func caller() conversation.Caller {
	return conversation.Caller{
		UserID:  "42",
		Cookies: []*http.Cookie{{Name: "access_token", Value: "jwt-value"}},
	}
}

func TestPipeline_RunsAllStepsInOrder(t *testing.T) {
	srv := conversationtest.NewServer(t)
	p := newPipeline(srv, time.Second)

	env, err := p.Run(context.Background(), "conv-1", utterance("안녕", speech.RoleSelf), caller())
	require.NoError(t, err)

	assert.Equal(t, allSteps, srv.Steps())
	assert.Equal(t, "msg-1", env.Message.MessageID)
	assert.Equal(t, "self", env.Message.Role)
	assert.Equal(t, "안녕", env.Message.Content)
	assert.JSONEq(t, `{"likeability":70}`, string(env.Scores))
	assert.JSONEq(t, `{"hobby":"climbing"}`, string(env.PartnerMemory))
	assert.JSONEq(t, `{"engagement":80}`, string(env.Analysis))
	require.Len(t, env.AdviceMetadatas, 1)
	assert.Equal(t, "adv-1", env.AdviceMetadatas[0].AdviceID)
	assert.NotEmpty(t, env.AdviceDetail)
	assert.Equal(t, "좋은 대화였습니다", env.FinalReport)

	calls := srv.Calls()
	assert.Equal(t, "/api/v1/conversation/conv-1/breaktime-advice/adv-1", calls[5].Path)
	assert.Equal(t, http.MethodGet, calls[3].Method)
	for _, c := range calls {
		require.Len(t, c.Cookies, 1, c.Step)
		assert.Equal(t, "jwt-value", c.Cookies[0].Value, c.Step)
	}

	var submitted struct {
		Message conversation.Message `json:"message"`
	}
	require.NoError(t, json.Unmarshal(calls[1].Body, &submitted))
	assert.Equal(t, "self", submitted.Message.Role)
	assert.Equal(t, "2025-05-01T12:00:00Z", submitted.Message.Timestamp)
}

func TestPipeline_StepFailureAbortsRemainingSteps(t *testing.T) {
	for i, step := range allSteps {
		t.Run(step, func(t *testing.T) {
			srv := conversationtest.NewServer(t)
			srv.FailStep(step, http.StatusInternalServerError)
			p := newPipeline(srv, time.Second)

			env, err := p.Run(context.Background(), "conv-1", utterance("hi", speech.RolePartner), caller())
			assert.Nil(t, env)

			var stepErr *conversation.StepError
			require.ErrorAs(t, err, &stepErr)
			assert.Equal(t, conversation.Step(step), stepErr.Step)
			assert.Equal(t, http.StatusInternalServerError, stepErr.Status)
			assert.Equal(t, allSteps[:i+1], srv.Steps())
		})
	}
}

func TestPipeline_EmptyAdviceSkipsDetail(t *testing.T) {
	srv := conversationtest.NewServer(t)
	srv.SetAdvice(`[]`)
	p := newPipeline(srv, time.Second)

	env, err := p.Run(context.Background(), "conv-1", utterance("hi", speech.RoleSelf), caller())
	require.NoError(t, err)

	assert.NotContains(t, srv.Steps(), "advice_detail")
	assert.Empty(t, env.AdviceDetail)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "advice_detail")
	assert.JSONEq(t, `[]`, string(fields["advice_metadatas"]))
}

func TestPipeline_ExistingConversationIsNotAnError(t *testing.T) {
	srv := conversationtest.NewServer(t)
	srv.FailStep("create_conversation", http.StatusConflict)
	p := newPipeline(srv, time.Second)

	_, err := p.Run(context.Background(), "conv-1", utterance("hi", speech.RoleSelf), caller())
	require.NoError(t, err)
	assert.Equal(t, allSteps, srv.Steps())
}

func TestPipeline_SlowStepTimesOut(t *testing.T) {
	srv := conversationtest.NewServer(t)
	srv.DelayStep("realtime_analysis", 500*time.Millisecond)
	p := newPipeline(srv, 50*time.Millisecond)

	start := time.Now()
	_, err := p.Run(context.Background(), "conv-1", utterance("hi", speech.RoleSelf), caller())

	var stepErr *conversation.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, conversation.StepRealtimeAnalysis, stepErr.Step)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.NotContains(t, srv.Steps(), "advice_recommendation")
}

func TestPipeline_CancelledContext(t *testing.T) {
	srv := conversationtest.NewServer(t)
	p := newPipeline(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, "conv-1", utterance("hi", speech.RoleSelf), caller())
	var stepErr *conversation.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, conversation.StepCreateConversation, stepErr.Step)
}

func TestPipeline_AdviceWithoutIDFailsDetailStep(t *testing.T) {
	for _, advice := range []string{`[{"advice_id":null,"title":"a"}]`, `[{"title":"a"}]`, `[{"advice_id":""}]`} {
		srv := conversationtest.NewServer(t)
		srv.SetAdvice(advice)
		p := newPipeline(srv, time.Second)

		env, err := p.Run(context.Background(), "conv-1", utterance("hi", speech.RoleSelf), caller())
		require.Error(t, err, advice)
		assert.Nil(t, env)

		var stepErr *conversation.StepError
		require.ErrorAs(t, err, &stepErr)
		assert.Equal(t, conversation.StepAdviceDetail, stepErr.Step)
		assert.NotContains(t, srv.Steps(), "advice_detail")
		assert.NotContains(t, srv.Steps(), "final_report")
	}
}

func TestStepError_ClientMessageOmitsResponseBody(t *testing.T) {
	srv := conversationtest.NewServer(t)
	srv.FailStep("realtime_analysis", http.StatusBadGateway)
	p := newPipeline(srv, time.Second)

	_, err := p.Run(context.Background(), "conv-1", utterance("hi", speech.RoleSelf), caller())
	var stepErr *conversation.StepError
	require.ErrorAs(t, err, &stepErr)

	assert.Contains(t, err.Error(), "fake failure")
	assert.Equal(t, "realtime_analysis failed with status 502", stepErr.ClientMessage())
	missing := &conversation.StepError{Step: conversation.StepAdviceDetail, Err: errors.New("no advice_id")}
	assert.Equal(t, "advice_detail failed", missing.ClientMessage())
}
