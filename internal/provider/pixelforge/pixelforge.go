// Package pixelforge adapts the PixelForge image API. PixelForge is the
// asynchronous provider: submitting a generation yields a task id, and the
// final image URL arrives through bounded status polling.
package pixelforge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/phuetz/MySoulmate-sub000/internal/config"
	"github.com/phuetz/MySoulmate-sub000/internal/httputil"
	"github.com/phuetz/MySoulmate-sub000/internal/logger"
	"github.com/phuetz/MySoulmate-sub000/internal/poller"
	"github.com/phuetz/MySoulmate-sub000/internal/provider"
	"github.com/phuetz/MySoulmate-sub000/internal/utils"
)

const ProviderID = "pixelforge"

// Adapter implements provider.Adapter for PixelForge.
type Adapter struct {
	cfg        config.PixelForgeConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates the adapter. When client credentials are configured the HTTP
// client carries an OAuth2 client-credentials token source; otherwise calls
// go out unauthenticated (useful against a local stub).
func New(cfg config.PixelForgeConfig, log *slog.Logger) *Adapter {
	client := httputil.NewClient(&httputil.ClientConfig{Timeout: cfg.RequestTimeout})

	if cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		// The token source caches and refreshes tokens internally. Token
		// requests go through the tuned base transport.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		client = cc.Client(ctx)
		client.Timeout = cfg.RequestTimeout
	}

	return &Adapter{
		cfg:        cfg,
		httpClient: client,
		logger:     log,
	}
}

func (a *Adapter) ID() string { return ProviderID }

func (a *Adapter) Configured() bool {
	return a.cfg.BaseURL != ""
}

type createTaskRequest struct {
	Prompt  string `json:"prompt"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Quality string `json:"quality,omitempty"`
}

type createTaskResponse struct {
	TaskID string `json:"task_id"`
}

type taskStatusResponse struct {
	Status   string `json:"status"`
	ImageURL string `json:"image_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Generate submits the prompt, then polls the task until it resolves or the
// polling budget is exhausted. Budget exhaustion becomes a timeout failure
// so the orchestrator moves on to the next provider.
func (a *Adapter) Generate(ctx context.Context, prompt string, opts provider.Options) (*provider.Result, *provider.Error) {
	if !a.Configured() {
		return nil, provider.Fail(ProviderID, provider.ReasonUnavailable, nil)
	}

	log := a.logger.With("provider", ProviderID)
	log.Debug("Submitting generation task",
		"prompt", logger.TruncatePrompt(prompt, 120),
		"quality", opts.Quality,
	)

	taskID, err := a.createTask(ctx, prompt, opts)
	if err != nil {
		return nil, provider.Fail(ProviderID, provider.ReasonUpstream, err)
	}

	handle := poller.Handle{
		ProviderID: ProviderID,
		TaskID:     taskID,
		CreatedAt:  utils.NowUTC(),
	}
	log.Debug("Task accepted, polling for result",
		"task_id", taskID,
		"max_attempts", a.cfg.PollMaxAttempts,
		"interval", a.cfg.PollInterval,
	)

	imageURL, err := poller.Poll(ctx, handle, a.fetchStatus, a.cfg.PollMaxAttempts, a.cfg.PollInterval)
	switch {
	case err == nil:
		return &provider.Result{
			ProviderID:  ProviderID,
			ResourceURL: imageURL,
			Metadata:    map[string]string{"task_id": taskID},
		}, nil
	case isContextError(err):
		return nil, provider.Fail(ProviderID, provider.ReasonTimeout, err)
	case isExhausted(err):
		log.Warn("Polling budget exhausted", "task_id", taskID)
		return nil, provider.Fail(ProviderID, provider.ReasonTimeout, err)
	default:
		return nil, provider.Fail(ProviderID, provider.ReasonUpstream, err)
	}
}

func (a *Adapter) createTask(ctx context.Context, prompt string, opts provider.Options) (string, error) {
	payload := createTaskRequest{
		Prompt:  prompt,
		Width:   opts.Width,
		Height:  opts.Height,
		Quality: opts.Quality,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal task request: %w", err)
	}

	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + "/v1/tasks"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create task request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit task: %w", err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("task submission returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if readErr != nil {
		return "", fmt.Errorf("read task response: %w", readErr)
	}

	var created createTaskResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("decode task response: %w", err)
	}
	if created.TaskID == "" {
		return "", fmt.Errorf("task response missing task_id")
	}
	return created.TaskID, nil
}

// fetchStatus is the poller.FetchFunc for one task.
func (a *Adapter) fetchStatus(ctx context.Context, h poller.Handle) (poller.Status, string, error) {
	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + "/v1/tasks/" + h.TaskID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return poller.StatusPending, "", fmt.Errorf("create status request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return poller.StatusPending, "", fmt.Errorf("fetch task status: %w", err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return poller.StatusPending, "", fmt.Errorf("status endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}
	if readErr != nil {
		return poller.StatusPending, "", fmt.Errorf("read status response: %w", readErr)
	}

	var status taskStatusResponse
	if err := json.Unmarshal(respBody, &status); err != nil {
		return poller.StatusPending, "", fmt.Errorf("decode status response: %w", err)
	}

	switch strings.ToLower(status.Status) {
	case "succeeded", "completed":
		if status.ImageURL == "" {
			return poller.StatusFailed, "result missing image_url", nil
		}
		return poller.StatusSucceeded, status.ImageURL, nil
	case "failed", "cancelled":
		return poller.StatusFailed, status.Error, nil
	default:
		return poller.StatusPending, "", nil
	}
}

func isExhausted(err error) bool {
	return errors.Is(err, poller.ErrExhausted)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
