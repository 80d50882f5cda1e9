package patterns

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/fanout-go/internal/graph"
)

type fakeChat struct {
	reply string
	err   error
	got   openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.got = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply}},
		},
	}, nil
}

var testSample = []graph.SampleItem{
	{Title: "Shoe guide", Type: "post", Excerpt: "How to choose", URL: "https://example.com/shoes/"},
}

func TestOpenAIAnalyzer(t *testing.T) {
	t.Parallel()

	t.Run("SendsPromptAndParsesReply", func(t *testing.T) {
		t.Parallel()

		fake := &fakeChat{reply: `{"complex_queries": ["best shoes for marathon training?"], "gaps": ["sizing"]}`}
		a := newAnalyzer(fake, Config{Model: "test-model"})

		p, err := a.Analyze(context.Background(), "https://example.com", testSample)
		require.NoError(t, err)

		assert.Equal(t, []string{"best shoes for marathon training?"}, p.ComplexQueries)
		assert.Equal(t, []string{"sizing"}, p.Gaps)

		assert.Equal(t, "test-model", fake.got.Model)
		assert.Equal(t, DefaultMaxTokens, fake.got.MaxTokens)
		require.Len(t, fake.got.Messages, 1)
		assert.Equal(t, openai.ChatMessageRoleUser, fake.got.Messages[0].Role)
		assert.Contains(t, fake.got.Messages[0].Content, "Site URL: https://example.com")
		assert.Contains(t, fake.got.Messages[0].Content, "Shoe guide")
	})

	t.Run("TransportErrorReturnsEmptyPatterns", func(t *testing.T) {
		t.Parallel()

		a := newAnalyzer(&fakeChat{err: errors.New("boom")}, Config{})
		p, err := a.Analyze(context.Background(), "https://example.com", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
		assert.True(t, p.IsEmpty())
	})

	t.Run("InvalidReplyUsesFallback", func(t *testing.T) {
		t.Parallel()

		a := newAnalyzer(&fakeChat{reply: `Consider "why do shoes wear out?"`}, Config{})
		p, err := a.Analyze(context.Background(), "https://example.com", testSample)
		require.NoError(t, err)
		assert.Equal(t, []string{"why do shoes wear out?"}, p.ComplexQueries)
	})

	t.Run("AgainstHTTPServer", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "chatcmpl-1",
				"object": "chat.completion",
				"model":  "test",
				"choices": []map[string]any{{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]any{
						"role":    "assistant",
						"content": "```json\n{\"opportunities\": [\"add a comparison table\"]}\n```",
					},
				}},
			})
		}))
		defer srv.Close()

		a := NewOpenAIAnalyzer(Config{APIKey: "secret", BaseURL: srv.URL + "/v1"})
		p, err := a.Analyze(context.Background(), "https://example.com", testSample)
		require.NoError(t, err)
		assert.Equal(t, []string{"add a comparison table"}, p.Opportunities)
	})
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	long := make([]graph.SampleItem, 0, 40)
	for i := 0; i < 40; i++ {
		long = append(long, graph.SampleItem{Title: strings.Repeat("t", 100)})
	}

	prompt, err := BuildPrompt("https://example.com", long)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Respond with ONLY valid JSON")

	start := strings.Index(prompt, "Content Sample:\n") + len("Content Sample:\n")
	end := strings.Index(prompt, "\n\nIdentify:")
	assert.Equal(t, sampleJSONLimit, len([]rune(prompt[start:end])))

	empty, err := BuildPrompt("https://example.com", nil)
	require.NoError(t, err)
	assert.Contains(t, empty, "Content Sample:\n[]")
}

func TestNoopAnalyzer(t *testing.T) {
	t.Parallel()

	var a Analyzer = NoopAnalyzer{}
	p, err := a.Analyze(context.Background(), "https://example.com", testSample)
	require.NoError(t, err)
	assert.True(t, p.IsEmpty())
}
