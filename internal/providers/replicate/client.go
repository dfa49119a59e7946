// Package replicate adapts Replicate's asynchronous predictions API to the
// uniform image-generation contract.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"adforge/internal/domain"
	"adforge/internal/infra"
	"adforge/internal/providers"
)

// ProviderName identifies this adapter in handles and logs.
const ProviderName = "replicate"

// ErrMissingAPIToken indicates that the client was configured without credentials.
var ErrMissingAPIToken = fmt.Errorf("%w: replicate api token is required", domain.ErrConfiguration)

// Options configures the Replicate client.
type Options struct {
	APIToken string
	BaseURL  string
	// Model is either "owner/name" (official model endpoint) or
	// "owner/name:version" (explicit version).
	Model          string
	OutputFormat   string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Replicate predictions API.
type Client struct {
	apiToken     string
	baseURL      string
	model        string
	version      string
	outputFormat string
	httpClient   *http.Client
	logger       *infra.Logger
}

type predictionRequest struct {
	Version string          `json:"version,omitempty"`
	Input   predictionInput `json:"input"`
}

type predictionInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	NumOutputs     int    `json:"num_outputs"`
	OutputFormat   string `json:"output_format,omitempty"`
}

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
	Detail string          `json:"detail"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.APIToken)
	if token == "" {
		return nil, ErrMissingAPIToken
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "black-forest-labs/flux-schnell"
	}
	var version string
	if name, v, ok := strings.Cut(model, ":"); ok {
		model, version = name, v
	}
	outputFormat := strings.TrimSpace(opts.OutputFormat)
	if outputFormat == "" {
		outputFormat = "png"
	}
	return &Client{
		apiToken:     token,
		baseURL:      baseURL,
		model:        model,
		version:      version,
		outputFormat: outputFormat,
		httpClient:   httpClient,
		logger:       infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	if c.version != "" {
		return c.model + ":" + c.version
	}
	return c.model
}

// SubmitImage creates a prediction and returns without waiting for it.
func (c *Client) SubmitImage(ctx context.Context, in providers.ImageInput) (providers.Handle, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return providers.Handle{}, fmt.Errorf("%w: replicate: prompt is required", domain.ErrInvalidRequest)
	}
	payload := predictionRequest{
		Input: predictionInput{
			Prompt:         prompt,
			NegativePrompt: strings.TrimSpace(in.NegativePrompt),
			AspectRatio:    strings.TrimSpace(in.AspectRatio),
			NumOutputs:     1,
			OutputFormat:   c.outputFormat,
		},
	}
	if payload.Input.AspectRatio == "" {
		payload.Input.Width, payload.Input.Height = in.Width, in.Height
	}
	endpoint := fmt.Sprintf("%s/models/%s/predictions", c.baseURL, c.model)
	if c.version != "" {
		payload.Version = c.version
		endpoint = c.baseURL + "/predictions"
	}

	decoded, err := c.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return providers.Handle{}, err
	}
	if strings.TrimSpace(decoded.ID) == "" {
		return providers.Handle{}, fmt.Errorf("%w: replicate: prediction id missing", domain.ErrInvalidResponse)
	}
	c.logger.Debug().
		Str("model", c.Model()).
		Str("prediction_id", decoded.ID).
		Str("request_id", in.RequestID).
		Str("status", decoded.Status).
		Msg("replicate: prediction created")

	handle := providers.Handle{Provider: ProviderName, ID: decoded.ID}
	if res := toPollResult(decoded); res.Status.IsTerminal() {
		handle.Settled = &res
	}
	return handle, nil
}

// Poll fetches the current prediction state.
func (c *Client) Poll(ctx context.Context, h providers.Handle) (providers.PollResult, error) {
	if strings.TrimSpace(h.ID) == "" {
		return providers.PollResult{}, fmt.Errorf("%w: replicate: empty handle", domain.ErrInvalidRequest)
	}
	endpoint := c.baseURL + "/predictions/" + url.PathEscape(h.ID)
	decoded, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return providers.PollResult{}, err
	}
	return toPollResult(decoded), nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any) (predictionResponse, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return predictionResponse{}, fmt.Errorf("replicate: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return predictionResponse{}, fmt.Errorf("replicate: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return predictionResponse{}, ctxErr
		}
		return predictionResponse{}, fmt.Errorf("%w: replicate: http request: %v", domain.ErrProviderTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return predictionResponse{}, fmt.Errorf("%w: replicate: read response: %v", domain.ErrProviderTransport, err)
	}
	if resp.StatusCode >= 300 && !rejected(resp.StatusCode) {
		return predictionResponse{}, fmt.Errorf("%w: replicate: status %d: %s", domain.ErrProviderTransport, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded predictionResponse
	decodeErr := json.Unmarshal(raw, &decoded)
	if resp.StatusCode >= 300 {
		text := strings.TrimSpace(decoded.Detail)
		if decodeErr != nil || text == "" {
			text = fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return predictionResponse{}, &domain.ProviderError{Provider: ProviderName, Text: text}
	}
	if decodeErr != nil {
		return predictionResponse{}, fmt.Errorf("%w: replicate: decode response: %v", domain.ErrInvalidResponse, decodeErr)
	}
	return decoded, nil
}

// rejected reports statuses that retrying cannot fix.
func rejected(code int) bool {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func toPollResult(resp predictionResponse) providers.PollResult {
	res := providers.PollResult{Status: providers.NormalizeStatus(resp.Status)}
	switch res.Status {
	case providers.StatusSucceeded:
		res.Output = decodeOutput(resp.Output)
	case providers.StatusFailed:
		res.Error = decodeError(resp.Error)
		if res.Error == "" && strings.EqualFold(resp.Status, "canceled") {
			res.Error = "prediction was canceled"
		}
	}
	return res
}

// decodeOutput accepts both a single URL and a list of URLs.
func decodeOutput(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single = strings.TrimSpace(single); single != "" {
			return []string{single}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out
	}
	return nil
}

func decodeError(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var detail struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
		return strings.TrimSpace(detail.Message)
	}
	return strings.TrimSpace(string(raw))
}

var _ providers.ImageGenerator = (*Client)(nil)
