// Package anthropic implements llmgw.Provider against the real Anthropic
// Messages API via github.com/anthropics/anthropic-sdk-go.
package anthropic

import (
	"context"
	"fmt"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/codeready-toolchain/classify/pkg/llmgw"
)

// Provider calls the Anthropic API for every Chat request.
type Provider struct {
	client anthropicsdk.Client
}

// New builds a Provider reading its API key from apiKeyEnv. baseURL
// overrides the default endpoint when non-empty (used against a
// compatible proxy in integration tests).
func New(apiKeyEnv, baseURL string) (*Provider, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: environment variable %s is not set", apiKeyEnv)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Provider{client: anthropicsdk.NewClient(opts...)}, nil
}

// Chat sends req as a single Messages.New call, splitting out any
// "system"-role message into the request's top-level system prompt the
// way the Anthropic API expects.
func (p *Provider) Chat(ctx context.Context, req llmgw.ChatRequest) (llmgw.ChatResponse, error) {
	var system string
	var turns []anthropicsdk.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = m.Content
		case "assistant":
			turns = append(turns, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
		default:
			turns = append(turns, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  turns,
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropicsdk.Float(req.Temperature)
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return llmgw.ChatResponse{}, fmt.Errorf("anthropic: messages.new: %w", err)
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return llmgw.ChatResponse{
		Text:      text,
		TokensIn:  int(message.Usage.InputTokens),
		TokensOut: int(message.Usage.OutputTokens),
	}, nil
}
