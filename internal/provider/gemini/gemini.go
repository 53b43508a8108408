// Package gemini adapts Google's Gemini models to the provider contract.
// The same adapter serves two chains: image generation through a model that
// answers with inline image bytes, and vision analysis of an already hosted
// image.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/phuetz/MySoulmate-sub000/internal/config"
	"github.com/phuetz/MySoulmate-sub000/internal/httputil"
	"github.com/phuetz/MySoulmate-sub000/internal/logger"
	"github.com/phuetz/MySoulmate-sub000/internal/provider"
)

const ProviderID = "gemini"

// maxImageFetch bounds how much of a remote image the vision path will read.
const maxImageFetch = 8 << 20

// AssetSink persists generated image bytes and returns a public URL for
// them. Gemini hands back inline data rather than a hosted URL, so the
// adapter needs somewhere to put the bytes.
type AssetSink interface {
	SaveImage(data []byte, mimeType string) (string, error)
}

type Adapter struct {
	cfg        config.GeminiConfig
	client     *genai.Client
	sink       AssetSink
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds the adapter. The genai client is created lazily on first use
// because NewClient requires a context.
func New(cfg config.GeminiConfig, sink AssetSink, log *slog.Logger) *Adapter {
	return &Adapter{
		cfg:        cfg,
		sink:       sink,
		httpClient: httputil.NewClient(nil),
		logger:     log,
	}
}

func (a *Adapter) ID() string { return ProviderID }

func (a *Adapter) Configured() bool { return a.cfg.APIKey != "" }

func (a *Adapter) ensureClient(ctx context.Context) (*genai.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: a.cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	a.client = client
	return client, nil
}

// Generate runs vision analysis when the request carries a source image URL,
// and image generation otherwise.
func (a *Adapter) Generate(ctx context.Context, prompt string, opts provider.Options) (*provider.Result, *provider.Error) {
	if !a.Configured() {
		return nil, provider.Fail(ProviderID, provider.ReasonUnavailable, nil)
	}
	client, err := a.ensureClient(ctx)
	if err != nil {
		return nil, provider.Fail(ProviderID, provider.ReasonUnavailable, err)
	}

	if opts.ImageURL != "" {
		return a.analyze(ctx, client, prompt, opts.ImageURL)
	}
	return a.generateImage(ctx, client, prompt)
}

func (a *Adapter) generateImage(ctx context.Context, client *genai.Client, prompt string) (*provider.Result, *provider.Error) {
	a.logger.Debug("Generating image",
		"provider", ProviderID,
		"model", a.cfg.ImageModel,
		"prompt", logger.TruncatePrompt(prompt, 120),
	)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	resp, err := client.Models.GenerateContent(ctx, a.cfg.ImageModel, contents, cfg)
	if err != nil {
		return nil, provider.Fail(ProviderID, classify(err), err)
	}

	var blob *genai.Blob
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				blob = part.InlineData
				break
			}
		}
	}
	if blob == nil {
		return nil, provider.Fail(ProviderID, provider.ReasonBadResponse,
			fmt.Errorf("response contains no image data"))
	}

	url, err := a.sink.SaveImage(blob.Data, blob.MIMEType)
	if err != nil {
		return nil, provider.Fail(ProviderID, provider.ReasonBadResponse,
			fmt.Errorf("persist generated image: %w", err))
	}

	return &provider.Result{
		ProviderID:  ProviderID,
		ResourceURL: url,
		Metadata:    map[string]string{"model": a.cfg.ImageModel},
	}, nil
}

func (a *Adapter) analyze(ctx context.Context, client *genai.Client, prompt, imageURL string) (*provider.Result, *provider.Error) {
	a.logger.Debug("Analyzing image",
		"provider", ProviderID,
		"model", a.cfg.VisionModel,
		"image_url", imageURL,
	)

	data, mimeType, err := a.fetchImage(ctx, imageURL)
	if err != nil {
		return nil, provider.Fail(ProviderID, provider.ReasonBadResponse, err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := client.Models.GenerateContent(ctx, a.cfg.VisionModel, contents, nil)
	if err != nil {
		return nil, provider.Fail(ProviderID, classify(err), err)
	}

	var out strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				out.WriteString(part.Text)
			}
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return nil, provider.Fail(ProviderID, provider.ReasonBadResponse,
			fmt.Errorf("response contains no text"))
	}

	return &provider.Result{
		ProviderID: ProviderID,
		Text:       text,
		Metadata:   map[string]string{"model": a.cfg.VisionModel},
	}, nil
}

func (a *Adapter) fetchImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create image request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch source image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("source image returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageFetch))
	if err != nil {
		return nil, "", fmt.Errorf("read source image: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}
	return data, mimeType, nil
}

func classify(err error) provider.Reason {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return provider.ReasonTimeout
	}
	return provider.ReasonUpstream
}
