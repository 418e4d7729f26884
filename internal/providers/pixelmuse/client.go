// Package pixelmuse implements the image provider family: a synchronous
// HTTP API that returns a hosted URL for the rendered image.
package pixelmuse

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/infra"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/providers"
)

// Options configures the PixelMuse client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the PixelMuse image generation API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type renderRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Size           string `json:"size,omitempty"`
	Seed           *int   `json:"seed,omitempty"`
	SourceImageB64 string `json:"source_image,omitempty"`
	SourceImageURL string `json:"source_image_url,omitempty"`
}

type renderResponse struct {
	RequestID string `json:"request_id"`
	Image     struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"image"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.pixelmuse.dev/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "pixelmuse-turbo"
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
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Name returns the provider family identifier.
func (c *Client) Name() string { return "pixelmuse" }

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// Generate invokes the API once and downloads the rendered image.
func (c *Client) Generate(ctx context.Context, req providers.Request) (*providers.Media, error) {
	if c.apiKey == "" {
		return nil, providers.NewError(providers.KindUnexpected, "pixelmuse credentials missing")
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, providers.NewError(providers.KindInvalidInput, "prompt is required")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	payload := renderRequest{
		Model:          model,
		Prompt:         prompt,
		NegativePrompt: strings.TrimSpace(req.NegativePrompt),
		Size:           sizeForAspect(req.AspectRatio),
	}
	if req.Seed > 0 {
		seed := req.Seed
		payload.Seed = &seed
	}
	if src := req.SourceMedia; src != nil {
		switch {
		case len(src.Data) > 0:
			payload.SourceImageB64 = base64.StdEncoding.EncodeToString(src.Data)
		case src.URL != "":
			payload.SourceImageURL = src.URL
		default:
			return nil, providers.NewError(providers.KindInvalidInput, "source image is empty")
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("pixelmuse: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/renders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("pixelmuse: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, providers.NewError(providers.KindTimeout, "image request timed out")
		}
		return nil, fmt.Errorf("pixelmuse: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("pixelmuse: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, providers.ClassifyStatus(resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded renderResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("pixelmuse: decode response: %w", err)
	}
	if decoded.Code != "" {
		return nil, providers.Errf(providers.KindUnexpected, decoded.Message, "code %s", decoded.Code)
	}
	imageURL := strings.TrimSpace(decoded.Image.URL)
	if imageURL == "" {
		return nil, providers.NewError(providers.KindUnexpected, "empty image url")
	}
	data, contentType, err := c.download(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("model", model).
		Str("request_id", decoded.RequestID).
		Str("url", imageURL).
		Msg("pixelmuse: generated image")
	return &providers.Media{
		Data:        data,
		ContentType: contentType,
		Width:       decoded.Image.Width,
		Height:      decoded.Image.Height,
		SourceURL:   imageURL,
	}, nil
}

func (c *Client) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil || parsed.Scheme == "" {
		return nil, "", providers.Errf(providers.KindUnexpected, "invalid image url", "%s", imageURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("pixelmuse: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("pixelmuse: download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", providers.Errf(providers.KindUnexpected, "image download failed", "status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("pixelmuse: read image: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return data, contentType, nil
}

func sizeForAspect(aspect string) string {
	switch aspect {
	case "16:9":
		return "1664*928"
	case "9:16":
		return "928*1664"
	case "4:3":
		return "1472*1104"
	case "3:4":
		return "1104*1472"
	default:
		return "1328*1328"
	}
}

var _ providers.ImageGenerator = (*Client)(nil)
