// Package motionforge implements the video provider family. The remote API
// is asynchronous: a submit call returns a task id which is then polled at a
// fixed interval up to a bounded number of attempts.
package motionforge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/infra"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/providers"
)

// Durations the API accepts, in seconds. Requested values are clamped to
// the nearest member.
var acceptedDurations = []int{4, 6, 8}

const defaultDuration = 4

// Options configures the MotionForge client.
type Options struct {
	APIKey       string
	BaseURL      string
	Model        string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	PollInterval time.Duration
	MaxPolls     int
}

// Client performs HTTP calls against the MotionForge video API.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	httpClient   *http.Client
	logger       *infra.Logger
	pollInterval time.Duration
	maxPolls     int
}

type taskRequest struct {
	Model         string `json:"model"`
	Prompt        string `json:"prompt"`
	AspectRatio   string `json:"aspect_ratio,omitempty"`
	Duration      int    `json:"duration"`
	Seed          *int   `json:"seed,omitempty"`
	SeedImageB64  string `json:"seed_image,omitempty"`
	SeedImageURL  string `json:"seed_image_url,omitempty"`
	SeedImageMIME string `json:"seed_image_mime,omitempty"`
}

type taskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Video  struct {
		URL      string `json:"url"`
		Duration int    `json:"duration"`
		Width    int    `json:"width"`
		Height   int    `json:"height"`
	} `json:"video"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.motionforge.dev/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "forge-motion-1"
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	maxPolls := opts.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 60
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		model:        model,
		httpClient:   httpClient,
		logger:       logger,
		pollInterval: interval,
		maxPolls:     maxPolls,
	}
}

// Name returns the provider family identifier.
func (c *Client) Name() string { return "motionforge" }

// ClampDuration snaps a requested duration onto the accepted discrete set.
func ClampDuration(seconds int) int {
	if seconds <= 0 {
		return defaultDuration
	}
	best := acceptedDurations[0]
	for _, d := range acceptedDurations {
		if abs(seconds-d) < abs(seconds-best) {
			best = d
		}
	}
	return best
}

// Generate submits the task, polls until the provider reports a terminal
// state, and downloads the final media. Exceeding the poll budget surfaces
// a timeout error.
func (c *Client) Generate(ctx context.Context, req providers.Request) (*providers.Media, error) {
	if c.apiKey == "" {
		return nil, providers.NewError(providers.KindUnexpected, "motionforge credentials missing")
	}
	taskID, err := c.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	task, err := c.await(ctx, taskID)
	if err != nil {
		return nil, err
	}
	data, contentType, err := c.download(ctx, task.Video.URL)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("task_id", taskID).
		Int("duration", task.Video.Duration).
		Msg("motionforge: generated video")
	return &providers.Media{
		Data:            data,
		ContentType:     contentType,
		Width:           task.Video.Width,
		Height:          task.Video.Height,
		DurationSeconds: task.Video.Duration,
		SourceURL:       task.Video.URL,
	}, nil
}

func (c *Client) submit(ctx context.Context, req providers.Request) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" && req.SourceMedia == nil {
		return "", providers.NewError(providers.KindInvalidInput, "prompt or seed image is required")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	payload := taskRequest{
		Model:       model,
		Prompt:      prompt,
		AspectRatio: req.AspectRatio,
		Duration:    ClampDuration(req.DurationSeconds),
	}
	if req.Seed > 0 {
		seed := req.Seed
		payload.Seed = &seed
	}
	if src := req.SourceMedia; src != nil {
		switch {
		case len(src.Data) > 0:
			payload.SeedImageB64 = base64.StdEncoding.EncodeToString(src.Data)
			payload.SeedImageMIME = src.ContentType
		case src.URL != "":
			payload.SeedImageURL = src.URL
		default:
			return "", providers.NewError(providers.KindInvalidInput, "seed image is empty")
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("motionforge: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/videos/tasks", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("motionforge: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("motionforge: submit task: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("motionforge: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", providers.ClassifyStatus(resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded taskResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("motionforge: decode response: %w", err)
	}
	if decoded.TaskID == "" {
		return "", providers.NewError(providers.KindUnexpected, "empty task id")
	}
	return decoded.TaskID, nil
}

func (c *Client) await(ctx context.Context, taskID string) (*taskResponse, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for attempt := 0; attempt < c.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return nil, providers.NewError(providers.KindTimeout, "video generation canceled")
		case <-ticker.C:
		}
		task, err := c.poll(ctx, taskID)
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(task.Status) {
		case "succeeded":
			if strings.TrimSpace(task.Video.URL) == "" {
				return nil, providers.NewError(providers.KindUnexpected, "succeeded task has no video url")
			}
			return task, nil
		case "failed":
			return nil, classifyTaskError(task)
		case "queued", "running", "pending":
			// keep polling
		default:
			return nil, providers.Errf(providers.KindUnexpected, "unknown task status", "%s", task.Status)
		}
	}
	return nil, providers.NewError(providers.KindTimeout, "video generation did not finish in time")
}

func (c *Client) poll(ctx context.Context, taskID string) (*taskResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/tasks/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("motionforge: build poll request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("motionforge: poll task: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("motionforge: read poll response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, providers.ClassifyStatus(resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded taskResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("motionforge: decode poll response: %w", err)
	}
	return &decoded, nil
}

func (c *Client) download(ctx context.Context, videoURL string) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("motionforge: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("motionforge: download video: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", providers.Errf(providers.KindUnexpected, "video download failed", "status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("motionforge: read video: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	return data, contentType, nil
}

func classifyTaskError(task *taskResponse) *providers.Error {
	code := strings.ToLower(task.Error.Code)
	switch code {
	case "rate_limited", "throttled":
		return &providers.Error{Kind: providers.KindRateLimited, Message: "rate limited", Detail: task.Error.Message}
	case "quota_exceeded", "insufficient_quota":
		return &providers.Error{Kind: providers.KindQuotaExceeded, Message: "quota exceeded", Detail: task.Error.Message}
	case "invalid_input", "moderation_blocked":
		return &providers.Error{Kind: providers.KindInvalidInput, Message: task.Error.Message, Detail: code}
	}
	return &providers.Error{Kind: providers.KindUnexpected, Message: "generation failed", Detail: task.Error.Message}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

var _ providers.Generator = (*Client)(nil)
