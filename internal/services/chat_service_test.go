package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newGeminiStub(t *testing.T, status int, reply string, seen *GeminiRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/test-model:generateContent"))
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.RawQuery)
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(GeminiResponse{Candidates: []GeminiCandidate{{
			Content: GeminiContent{Parts: []GeminiPart{{Text: reply}}},
		}}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatUsesGemini(t *testing.T) {
	var seen GeminiRequest
	srv := newGeminiStub(t, http.StatusOK, "  Hover before you click.  ", &seen)
	svc := NewChatService("secret", "test-model", zap.NewNop())
	svc.baseURL = srv.URL + "/models/"

	reply, err := svc.Reply(context.Background(), student, ChatRequest{
		Message: "How do I spot a bad link?",
		History: []ChatMessage{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hover before you click.", reply.Reply)
	assert.Equal(t, "ai", reply.Source)

	require.Len(t, seen.Contents, 3)
	assert.Equal(t, "model", seen.Contents[1].Role)
	assert.Equal(t, "How do I spot a bad link?", seen.Contents[2].Parts[0].Text)
	require.NotNil(t, seen.SystemInstruction)
}

func TestChatFallsBackOnAPIError(t *testing.T) {
	srv := newGeminiStub(t, http.StatusInternalServerError, "", nil)
	svc := NewChatService("secret", "test-model", zap.NewNop())
	svc.baseURL = srv.URL + "/models/"

	reply, err := svc.Reply(context.Background(), student, ChatRequest{Message: "I forgot my password"})
	require.NoError(t, err)
	assert.Equal(t, "rules", reply.Source)
	assert.Contains(t, reply.Reply, "password")
}

func TestChatModelEscalation(t *testing.T) {
	srv := newGeminiStub(t, http.StatusOK, "AGENT_ESCALATION", nil)
	svc := NewChatService("secret", "test-model", zap.NewNop())
	svc.baseURL = srv.URL + "/models/"

	reply, err := svc.Reply(context.Background(), student, ChatRequest{Message: "this is useless"})
	require.NoError(t, err)
	assert.Equal(t, EscalationReply, reply.Reply)
}

func TestChatWithoutKey(t *testing.T) {
	svc := NewChatService("", "", zap.NewNop())
	ctx := context.Background()

	reply, err := svc.Reply(ctx, student, ChatRequest{Message: "Can I talk to a real person?"})
	require.NoError(t, err)
	assert.Equal(t, EscalationReply, reply.Reply)

	reply, err = svc.Reply(ctx, student, ChatRequest{Message: "how do I submit a report"})
	require.NoError(t, err)
	assert.Contains(t, reply.Reply, "Report Phishing")

	reply, err = svc.Reply(ctx, student, ChatRequest{Message: "what's the weather"})
	require.NoError(t, err)
	assert.Equal(t, defaultFallbackAnswer, reply.Reply)

	_, err = svc.Reply(ctx, student, ChatRequest{Message: "   "})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Reply(ctx, Actor{}, ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestChatFailureLogsOmitAPIKey(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	svc := NewChatService("topsecretkey", "test-model", zap.New(core))
	svc.baseURL = "http://127.0.0.1:1/models/"

	reply, err := svc.Reply(context.Background(), student, ChatRequest{Message: "is this link safe?"})
	require.NoError(t, err)
	assert.Equal(t, "rules", reply.Source)

	require.NotZero(t, logs.Len())
	for _, entry := range logs.All() {
		assert.NotContains(t, entry.Message, "topsecretkey")
		for _, field := range entry.Context {
			if field.Interface != nil {
				if e, ok := field.Interface.(error); ok {
					assert.NotContains(t, e.Error(), "topsecretkey")
				}
			}
			assert.NotContains(t, field.String, "topsecretkey")
		}
	}
}

func TestWantsHumanMatchesWholeWords(t *testing.T) {
	assert.True(t, wantsHuman("Can I talk to a human please"))
	assert.True(t, wantsHuman("HUMAN"))
	assert.True(t, wantsHuman("I want a live agent."))
	assert.False(t, wantsHuman("I got a humanities phishing email"))
	assert.False(t, wantsHuman("is this inhumane spam?"))
}
