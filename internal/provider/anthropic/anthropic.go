// Package anthropic adapts Claude models to the chat streaming contract.
package anthropic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/phuetz/MySoulmate-sub000/internal/config"
	"github.com/phuetz/MySoulmate-sub000/internal/logger"
)

const ProviderID = "anthropic"

type Adapter struct {
	cfg    config.AnthropicConfig
	client anthropic.Client
	logger *slog.Logger
}

func New(cfg config.AnthropicConfig, log *slog.Logger) *Adapter {
	return &Adapter{
		cfg:    cfg,
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		logger: log,
	}
}

func (a *Adapter) ID() string { return ProviderID }

func (a *Adapter) Configured() bool { return a.cfg.APIKey != "" }

// StreamChat streams a Claude reply token by token through onToken and
// returns the full accumulated reply once the stream ends.
func (a *Adapter) StreamChat(ctx context.Context, prompt string, onToken func(string) error) (string, error) {
	if !a.Configured() {
		return "", fmt.Errorf("anthropic: not configured")
	}

	a.logger.Debug("Starting chat stream",
		"provider", ProviderID,
		"model", a.cfg.ChatModel,
		"prompt", logger.TruncatePrompt(prompt, 120),
	)

	stream := a.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.cfg.ChatModel),
		MaxTokens: int64(a.cfg.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return "", fmt.Errorf("accumulate stream event: %w", err)
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if delta.Text == "" {
					continue
				}
				if err := onToken(delta.Text); err != nil {
					return "", err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("chat stream: %w", err)
	}

	var full strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			full.WriteString(block.Text)
		}
	}
	if full.Len() == 0 {
		return "", fmt.Errorf("chat stream produced no text")
	}
	return full.String(), nil
}
