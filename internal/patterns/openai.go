package patterns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Benny93/fanout-go/internal/graph"
)

// Defaults for the OpenAI-compatible analyzer.
const (
	DefaultModel     = "gpt-4o"
	DefaultMaxTokens = 8000
	DefaultTimeout   = 2 * time.Minute

	// sampleJSONLimit caps the serialized sample embedded in the prompt.
	sampleJSONLimit = 3000
)

// chatClient is the subset of *openai.Client the analyzer uses.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config configures an OpenAIAnalyzer.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Logger    *zap.Logger
}

// OpenAIAnalyzer identifies query patterns with any OpenAI-compatible
// chat completion endpoint.
type OpenAIAnalyzer struct {
	client    chatClient
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewOpenAIAnalyzer creates an analyzer. An empty BaseURL uses the
// client library's default endpoint.
func NewOpenAIAnalyzer(cfg Config) *OpenAIAnalyzer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return newAnalyzer(openai.NewClientWithConfig(clientConfig), cfg)
}

func newAnalyzer(client chatClient, cfg Config) *OpenAIAnalyzer {
	a := &OpenAIAnalyzer{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
	}
	if a.model == "" {
		a.model = DefaultModel
	}
	if a.maxTokens <= 0 {
		a.maxTokens = DefaultMaxTokens
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	return a
}

// Analyze implements Analyzer. Transport failures are returned as
// errors; an unparseable reply still yields the fallback patterns.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, siteURL string, sample []graph.SampleItem) (*QueryPatterns, error) {
	prompt, err := BuildPrompt(siteURL, sample)
	if err != nil {
		return Empty(), err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.logger.Info("analyzing query patterns", zap.String("model", a.model), zap.Int("sample", len(sample)))

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return Empty(), fmt.Errorf("requesting query patterns: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Empty(), errors.New("requesting query patterns: empty response")
	}

	content := resp.Choices[0].Message.Content
	patterns, parseErr := ParseResponse(content)
	if parseErr != nil {
		a.logger.Warn("query pattern response was not valid JSON, using fallback", zap.Error(parseErr))
	}

	a.logger.Info("query patterns analyzed",
		zap.Duration("latency", time.Since(start)),
		zap.Int("complex_queries", len(patterns.ComplexQueries)),
		zap.Int("gaps", len(patterns.Gaps)),
		zap.Int("opportunities", len(patterns.Opportunities)),
	)
	return patterns, nil
}

// BuildPrompt renders the analysis prompt for a site and content sample.
func BuildPrompt(siteURL string, sample []graph.SampleItem) (string, error) {
	if sample == nil {
		sample = []graph.SampleItem{}
	}
	data, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding content sample: %w", err)
	}
	sampleJSON := []rune(string(data))
	if len(sampleJSON) > sampleJSONLimit {
		sampleJSON = sampleJSON[:sampleJSONLimit]
	}

	return fmt.Sprintf(promptTemplate, siteURL, string(sampleJSON)), nil
}

const promptTemplate = `Analyze this WordPress site content for Google AI Mode query optimization opportunities.

Site URL: %s

Content Sample:
%s

Identify:
1. Complex queries users might ask that would trigger Google's query fan-out
2. How Google would decompose these queries into sub-queries
3. Which content currently answers which sub-queries
4. Gaps where sub-queries aren't answered
5. Multi-source optimization opportunities

Focus on queries that would require multiple hops of reasoning to answer fully.

IMPORTANT: Respond with ONLY valid JSON, no markdown code blocks, no explanations before or after.

Provide analysis in this exact JSON format:
{
  "complex_queries": ["query 1", "query 2"],
  "decompositions": {
    "query 1": ["sub-query 1", "sub-query 2"],
    "query 2": ["sub-query 3", "sub-query 4"]
  },
  "coverage_analysis": {
    "query 1": {
      "sub-query 1": ["content title that answers this"],
      "sub-query 2": []
    }
  },
  "gaps": ["missing sub-query 1", "missing sub-query 2"],
  "opportunities": ["opportunity 1", "opportunity 2"]
}`
