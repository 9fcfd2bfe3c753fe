package answer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/rag-qa-server/internal/config"
)

type fakeChat struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeChat) Complete(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.reply, f.err
}

func TestFallback(t *testing.T) {
	t.Run("short context", func(t *testing.T) {
		assert.Equal(t, "Source 1: 短文本...", Fallback("Source 1: 短文本"))
	})

	t.Run("long context is cut at 500 characters", func(t *testing.T) {
		ctx := strings.Repeat("猫", 800)
		got := Fallback(ctx)
		assert.Equal(t, FallbackLength+utf8.RuneCountInString(TruncationMarker), utf8.RuneCountInString(got))
		assert.True(t, strings.HasPrefix(ctx, strings.TrimSuffix(got, TruncationMarker)))
	})

	t.Run("empty context", func(t *testing.T) {
		assert.Equal(t, TruncationMarker, Fallback(""))
	})
}

func TestGenerate_NoClient(t *testing.T) {
	s := NewSynthesizer(nil, nil)
	assert.False(t, s.Enabled())
	assert.Equal(t, Fallback("上下文"), s.Generate(context.Background(), "问题", "上下文"))
}

func TestGenerate_UsesClient(t *testing.T) {
	chat := &fakeChat{reply: "苹果发布了iPhone 15。"}
	s := NewSynthesizer(chat, nil)

	got := s.Generate(context.Background(), "苹果发布了什么？", "Source 1: 苹果公司发布了iPhone 15")

	assert.Equal(t, "苹果发布了iPhone 15。", got)
	assert.Equal(t, systemPrompt, chat.system)
	assert.Contains(t, chat.user, "Source 1: 苹果公司发布了iPhone 15")
	assert.Contains(t, chat.user, "苹果发布了什么？")
	assert.Contains(t, chat.user, "无法根据提供的信息回答")
}

func TestGenerate_ClientErrorFallsBack(t *testing.T) {
	s := NewSynthesizer(&fakeChat{err: errors.New("quota exceeded")}, nil)
	assert.Equal(t, Fallback("上下文内容"), s.Generate(context.Background(), "问题", "上下文内容"))
}

func TestOpenAIChat_Complete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "deepseek-chat",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "  答案  "}}]
		}`))
	}))
	defer srv.Close()

	chat := NewOpenAIChat(config.ChatConfig{
		BaseURL:     srv.URL,
		Model:       "deepseek-chat",
		APIKey:      "sk-test",
		MaxTokens:   1000,
		Temperature: 0.1,
	})

	got, err := chat.Complete(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)
	assert.Equal(t, "答案", got)

	assert.Equal(t, "deepseek-chat", body["model"])
	assert.EqualValues(t, 1000, body["max_tokens"])
	assert.InDelta(t, 0.1, body["temperature"], 1e-9)

	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestOpenAIChat_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid key"}}`))
	}))
	defer srv.Close()

	chat := NewOpenAIChat(config.ChatConfig{BaseURL: srv.URL, Model: "deepseek-chat", APIKey: "bad"})
	_, err := chat.Complete(context.Background(), "s", "u")
	assert.Error(t, err)
}
