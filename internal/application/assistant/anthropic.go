package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hilthontt/relay/internal/domain"
)

const defaultSystemPrompt = "You are a helpful assistant replying in a Matrix chat room. Keep answers short."

type AnthropicOptions struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int64
	SystemPrompt string
	Timeout      time.Duration
}

type AnthropicReplier struct {
	client       anthropic.Client
	model        string
	maxTokens    int64
	systemPrompt string
}

func NewAnthropicReplier(opts AnthropicOptions) (*AnthropicReplier, error) {
	if opts.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 512
	}

	return &AnthropicReplier{
		client:       anthropic.NewClient(reqOpts...),
		model:        opts.Model,
		maxTokens:    opts.MaxTokens,
		systemPrompt: opts.SystemPrompt,
	}, nil
}

func (r *AnthropicReplier) Reply(ctx context.Context, msg domain.RoomMessage) (string, error) {
	resp, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: r.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: r.systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Message)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude API call: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	reply := strings.TrimSpace(sb.String())
	if reply == "" {
		return "", errors.New("claude returned no text")
	}
	return reply, nil
}

func (r *AnthropicReplier) Kind() string { return "anthropic" }
