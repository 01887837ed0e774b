package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

const (
	answerToolName = "grounded_answer"
	searchToolName = "search_corpus"
)

var answerToolParams = json.RawMessage(`{
	"type": "object",
	"properties": {
		"answer": {
			"type": "string",
			"description": "The answer to the question, grounded in the provided documents."
		},
		"citations": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"text": {
						"type": "string",
						"description": "Exact span of the answer supported by the sources."
					},
					"sources": {
						"type": "array",
						"items": {"type": "integer"},
						"description": "Zero-based indices of the supporting documents."
					}
				},
				"required": ["text", "sources"]
			}
		}
	},
	"required": ["answer", "citations"]
}`)

var searchToolParams = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "A standalone search query capturing the information need."
		}
	},
	"required": ["query"]
}`)

const answerSystemPrompt = "You answer questions using only the numbered documents provided. " +
	"Call the grounded_answer function with the answer text and citations mapping " +
	"answer spans to the document numbers that support them. If the documents do " +
	"not contain the answer, say so in the answer field with an empty citations list."

const searchSystemPrompt = "You turn user questions into standalone search queries. " +
	"Call the search_corpus function with a query that captures the information need."

// Generator produces grounded answers with citations via an OpenAI-compatible
// chat API, using forced function calls so the citation payload stays machine-readable.
type Generator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	provider    string
	logger      *zap.Logger
}

// GeneratorConfig holds the chat provider settings.
type GeneratorConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32 // 0 keeps the provider default
	Provider    string
	Logger      *zap.Logger
}

// NewGenerator creates an OpenAI-compatible chat generation provider.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Generator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		provider:    cfg.Provider,
		logger:      cfg.Logger,
	}
}

// Generate implements domain.Generator. Citation source indices refer to the
// documents slice as passed in.
func (g *Generator) Generate(
	ctx context.Context, question string, documents []domain.Document,
) (domain.Answer, error) {
	var prompt strings.Builder
	for i, doc := range documents {
		fmt.Fprintf(&prompt, "Document %d", i)
		if doc.ID != "" {
			fmt.Fprintf(&prompt, " (%s)", doc.ID)
		}
		prompt.WriteString(":\n")
		prompt.WriteString(doc.Text)
		prompt.WriteString("\n\n")
	}
	fmt.Fprintf(&prompt, "Question: %s", question)

	args, usage, err := g.forcedToolCall(ctx, answerSystemPrompt, prompt.String(),
		answerToolName, "Answer the question with citations into the documents.", answerToolParams)
	if err != nil {
		return domain.Answer{}, err
	}

	var parsed struct {
		Answer    string `json:"answer"`
		Citations []struct {
			Text    string `json:"text"`
			Sources []int  `json:"sources"`
		} `json:"citations"`
	}
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return domain.Answer{}, fmt.Errorf(
			"malformed %s arguments: %v: %w", answerToolName, err, domain.ErrGenerationProviderError)
	}

	answer := domain.Answer{
		Text:         parsed.Answer,
		Citations:    make([]domain.Citation, 0, len(parsed.Citations)),
		PromptTokens: usage.PromptTokens,
		TotalTokens:  usage.TotalTokens,
	}

	for _, c := range parsed.Citations {
		sources := make([]int, 0, len(c.Sources))
		for _, s := range c.Sources {
			if s >= 0 && s < len(documents) {
				sources = append(sources, s)
			}
		}
		if len(sources) == 0 {
			continue
		}

		start := strings.Index(parsed.Answer, c.Text)
		end := -1
		if start >= 0 {
			end = start + len(c.Text)
		}
		answer.Citations = append(answer.Citations, domain.Citation{
			Start:   start,
			End:     end,
			Text:    c.Text,
			Sources: sources,
		})
	}

	return answer, nil
}

// RewriteQuery implements domain.QueryRewriter via a forced search_corpus call.
func (g *Generator) RewriteQuery(ctx context.Context, question string) (string, error) {
	args, _, err := g.forcedToolCall(ctx, searchSystemPrompt, question,
		searchToolName, "Produce a standalone search query.", searchToolParams)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return "", fmt.Errorf(
			"malformed %s arguments: %v: %w", searchToolName, err, domain.ErrGenerationProviderError)
	}
	if parsed.Query == "" {
		return "", fmt.Errorf("empty rewritten query: %w", domain.ErrGenerationProviderError)
	}
	return parsed.Query, nil
}

// forcedToolCall runs one chat completion with tool_choice pinned to the given
// function and returns the raw JSON arguments of the first matching call.
func (g *Generator) forcedToolCall(
	ctx context.Context, system, user, toolName, toolDescription string, params json.RawMessage,
) (string, openai.Usage, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolName,
				Description: toolDescription,
				Parameters:  params,
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: toolName},
		},
	}
	if g.maxTokens > 0 {
		req.MaxTokens = g.maxTokens
	}
	if g.temperature > 0 {
		req.Temperature = g.temperature
	}

	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
		return "", openai.Usage{}, parseAPIError(err, domain.ErrGenerationProviderError)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.provider, g.model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(g.provider, g.model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.GenerationTokensTotal.WithLabelValues(g.provider, g.model, "prompt").
			Add(float64(resp.Usage.PromptTokens))
		metrics.GenerationTokensTotal.WithLabelValues(g.provider, g.model, "total").
			Add(float64(resp.Usage.TotalTokens))
	}

	if len(resp.Choices) == 0 {
		return "", openai.Usage{}, fmt.Errorf(
			"empty chat response: %w", domain.ErrGenerationProviderError)
	}
	for _, call := range resp.Choices[0].Message.ToolCalls {
		if call.Function.Name == toolName {
			return call.Function.Arguments, resp.Usage, nil
		}
	}
	return "", openai.Usage{}, fmt.Errorf(
		"model did not call %s: %w", toolName, domain.ErrGenerationProviderError)
}
