// Package openai adapts the OpenAI platform to the provider contract. It
// covers three chains: DALL-E image generation, GPT vision analysis, and
// streaming chat completions.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/phuetz/MySoulmate-sub000/internal/config"
	"github.com/phuetz/MySoulmate-sub000/internal/logger"
	"github.com/phuetz/MySoulmate-sub000/internal/provider"
)

const ProviderID = "openai"

type Adapter struct {
	cfg    config.OpenAIConfig
	client openai.Client
	logger *slog.Logger
}

func New(cfg config.OpenAIConfig, log *slog.Logger) *Adapter {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Adapter{
		cfg:    cfg,
		client: openai.NewClient(opts...),
		logger: log,
	}
}

func (a *Adapter) ID() string { return ProviderID }

func (a *Adapter) Configured() bool { return a.cfg.APIKey != "" }

// Generate runs vision analysis when the request carries a source image URL,
// and image generation otherwise.
func (a *Adapter) Generate(ctx context.Context, prompt string, opts provider.Options) (*provider.Result, *provider.Error) {
	if !a.Configured() {
		return nil, provider.Fail(ProviderID, provider.ReasonUnavailable, nil)
	}
	if opts.ImageURL != "" {
		return a.analyze(ctx, prompt, opts.ImageURL)
	}
	return a.generateImage(ctx, prompt, opts)
}

func (a *Adapter) generateImage(ctx context.Context, prompt string, opts provider.Options) (*provider.Result, *provider.Error) {
	a.logger.Debug("Generating image",
		"provider", ProviderID,
		"model", a.cfg.ImageModel,
		"prompt", logger.TruncatePrompt(prompt, 120),
	)

	params := openai.ImageGenerateParams{
		Prompt:  prompt,
		Model:   openai.ImageModel(a.cfg.ImageModel),
		N:       openai.Int(1),
		Size:    imageSize(opts.Width, opts.Height),
		Quality: imageQuality(opts.Quality),
	}

	resp, err := a.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, provider.Fail(ProviderID, classify(err), err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, provider.Fail(ProviderID, provider.ReasonBadResponse,
			fmt.Errorf("response contains no image url"))
	}

	return &provider.Result{
		ProviderID:  ProviderID,
		ResourceURL: resp.Data[0].URL,
		Metadata:    map[string]string{"model": a.cfg.ImageModel},
	}, nil
}

func (a *Adapter) analyze(ctx context.Context, prompt, imageURL string) (*provider.Result, *provider.Error) {
	a.logger.Debug("Analyzing image",
		"provider", ProviderID,
		"model", a.cfg.VisionModel,
		"image_url", imageURL,
	)

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: imageURL,
		}),
	}
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.cfg.VisionModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, provider.Fail(ProviderID, classify(err), err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, provider.Fail(ProviderID, provider.ReasonBadResponse,
			fmt.Errorf("response contains no text"))
	}

	return &provider.Result{
		ProviderID: ProviderID,
		Text:       resp.Choices[0].Message.Content,
		Metadata:   map[string]string{"model": a.cfg.VisionModel},
	}, nil
}

// StreamChat streams a chat completion token by token. The full accumulated
// reply is returned so the caller can persist it once the stream ends.
func (a *Adapter) StreamChat(ctx context.Context, prompt string, onToken func(string) error) (string, error) {
	if !a.Configured() {
		return "", fmt.Errorf("openai: not configured")
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.cfg.ChatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}

	stream := a.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := onToken(delta); err != nil {
			return "", err
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("chat stream: %w", err)
	}
	if len(acc.Choices) == 0 {
		return "", fmt.Errorf("chat stream produced no choices")
	}
	return acc.Choices[0].Message.Content, nil
}

func imageSize(width, height int) openai.ImageGenerateParamsSize {
	switch {
	case width >= 1792 && height <= 1024:
		return openai.ImageGenerateParamsSize1792x1024
	case height >= 1792 && width <= 1024:
		return openai.ImageGenerateParamsSize1024x1792
	default:
		return openai.ImageGenerateParamsSize1024x1024
	}
}

func imageQuality(quality string) openai.ImageGenerateParamsQuality {
	switch quality {
	case provider.QualityHD, provider.QualityUltra:
		return openai.ImageGenerateParamsQualityHD
	default:
		return openai.ImageGenerateParamsQualityStandard
	}
}

func classify(err error) provider.Reason {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return provider.ReasonTimeout
	}
	return provider.ReasonUpstream
}
