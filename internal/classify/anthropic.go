package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nkapur/unipipe/internal/structure"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

const classifySystemPrompt = `You classify business transaction records into categories.
Respond with a single JSON object and nothing else:
{"category": "...", "sub_category": "...", "confidence": 0.0-1.0, "reasoning": "one sentence"}`

const judgeSystemPrompt = `You pick which of two candidate rows is the real column-header row of a spreadsheet.
Respond with exactly "1" or "2", or "0" if you cannot tell.`

// AnthropicService implements both the classification capability and the
// header-row judge on top of the Anthropic Messages API.
type AnthropicService struct {
	client anthropic.Client
	model  string
}

// NewAnthropicService builds a service for the given API key. An empty model
// falls back to the default.
func NewAnthropicService(apiKey, model string) *AnthropicService {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicService{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Classify implements Capability.
func (s *AnthropicService) Classify(ctx context.Context, contextText string) (Classification, error) {
	text, err := s.complete(ctx, classifySystemPrompt, "Record: "+contextText)
	if err != nil {
		return Classification{}, err
	}

	var result Classification
	if err := json.Unmarshal([]byte(extractJSON(text)), &result); err != nil {
		return Classification{}, fmt.Errorf("malformed classification response: %w", err)
	}
	if strings.TrimSpace(result.Category) == "" {
		return Classification{}, fmt.Errorf("classification response missing category")
	}
	return result, nil
}

// PickHeaderRow implements structure.HeaderJudge. Anything other than a clear
// 1 or 2 is a declined verdict.
func (s *AnthropicService) PickHeaderRow(ctx context.Context, first, second []string) (int, error) {
	prompt := fmt.Sprintf("Candidate 1: %s\nCandidate 2: %s", strings.Join(first, " | "), strings.Join(second, " | "))
	text, err := s.complete(ctx, judgeSystemPrompt, prompt)
	if err != nil {
		return 0, structure.ErrNoVerdict
	}
	switch strings.TrimSpace(text) {
	case "1":
		return 1, nil
	case "2":
		return 2, nil
	default:
		return 0, structure.ErrNoVerdict
	}
}

func (s *AnthropicService) complete(ctx context.Context, system, user string) (string, error) {
	message, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: system, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic call failed: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in anthropic response")
}

// extractJSON tolerates models wrapping the object in prose or code fences.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
