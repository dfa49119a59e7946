// Package bannerbear renders copy layers onto generated backgrounds through
// the Bannerbear image API.
package bannerbear

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

const ProviderName = "bannerbear"

// Template layer names. Templates must expose layers with these names.
const (
	LayerBackground = "background"
	LayerEyebrow    = "eyebrow"
	LayerHeadline   = "headline"
	LayerCTA        = "cta"
	LayerAccent     = "accent"
)

var ErrMissingAPIKey = fmt.Errorf("%w: bannerbear api key is required", domain.ErrConfiguration)

type Options struct {
	APIKey string
	// BaseURL serves asynchronous creation and lookups.
	BaseURL string
	// SyncBaseURL serves creation that waits for the render to finish.
	SyncBaseURL    string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

type Client struct {
	apiKey      string
	baseURL     string
	syncBaseURL string
	httpClient  *http.Client
	logger      *infra.Logger
}

type modification struct {
	Name     string `json:"name"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Color    string `json:"color,omitempty"`
}

type createRequest struct {
	Template      string         `json:"template"`
	Modifications []modification `json:"modifications"`
	Metadata      string         `json:"metadata,omitempty"`
}

type imageResponse struct {
	UID      string `json:"uid"`
	Status   string `json:"status"`
	ImageURL string `json:"image_url"`
	Message  string `json:"message"`
	Error    string `json:"error"`
}

// regionMetadata travels with the render so templates with dynamic layout
// can keep text inside the usable band.
type regionMetadata struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	TextTop    int    `json:"text_top"`
	TextBottom int    `json:"text_bottom"`
	RequestID  string `json:"request_id,omitempty"`
}

func NewClient(opts Options) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, ErrMissingAPIKey
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
		baseURL = "https://api.bannerbear.com/v2"
	}
	syncBaseURL := strings.TrimRight(strings.TrimSpace(opts.SyncBaseURL), "/")
	if syncBaseURL == "" {
		syncBaseURL = "https://sync.api.bannerbear.com/v2"
	}
	return &Client{
		apiKey:      key,
		baseURL:     baseURL,
		syncBaseURL: syncBaseURL,
		httpClient:  httpClient,
		logger:      infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// SubmitOverlay creates the image on the synchronous host. A completed render
// comes back as a settled handle; a render still pending when the sync host
// gives up is polled through the regular API.
func (c *Client) SubmitOverlay(ctx context.Context, in providers.OverlayInput) (providers.Handle, error) {
	template := strings.TrimSpace(in.TemplateID)
	if template == "" {
		return providers.Handle{}, fmt.Errorf("%w: bannerbear: template id is required", domain.ErrConfiguration)
	}
	if strings.TrimSpace(in.BackgroundURL) == "" {
		return providers.Handle{}, fmt.Errorf("%w: bannerbear: background url is required", domain.ErrInvalidRequest)
	}

	payload := createRequest{
		Template:      template,
		Modifications: buildModifications(in),
	}
	meta, err := json.Marshal(regionMetadata{
		Width:      in.Width,
		Height:     in.Height,
		TextTop:    in.Region.Top,
		TextBottom: in.Region.Bottom,
		RequestID:  in.RequestID,
	})
	if err != nil {
		return providers.Handle{}, fmt.Errorf("bannerbear: encode metadata: %w", err)
	}
	payload.Metadata = string(meta)

	decoded, err := c.do(ctx, http.MethodPost, c.syncBaseURL+"/images", payload)
	if err != nil {
		return providers.Handle{}, err
	}
	if strings.TrimSpace(decoded.UID) == "" {
		return providers.Handle{}, fmt.Errorf("%w: bannerbear: image uid missing", domain.ErrInvalidResponse)
	}
	c.logger.Debug().
		Str("template", template).
		Str("uid", decoded.UID).
		Str("request_id", in.RequestID).
		Str("status", decoded.Status).
		Msg("bannerbear: image created")

	handle := providers.Handle{Provider: ProviderName, ID: decoded.UID}
	if res := toPollResult(decoded); res.Status.IsTerminal() {
		handle.Settled = &res
	}
	return handle, nil
}

// Poll looks up an image created earlier.
func (c *Client) Poll(ctx context.Context, h providers.Handle) (providers.PollResult, error) {
	if strings.TrimSpace(h.ID) == "" {
		return providers.PollResult{}, fmt.Errorf("%w: bannerbear: empty handle", domain.ErrInvalidRequest)
	}
	decoded, err := c.do(ctx, http.MethodGet, c.baseURL+"/images/"+url.PathEscape(h.ID), nil)
	if err != nil {
		return providers.PollResult{}, err
	}
	return toPollResult(decoded), nil
}

func buildModifications(in providers.OverlayInput) []modification {
	mods := []modification{{Name: LayerBackground, ImageURL: strings.TrimSpace(in.BackgroundURL)}}
	for _, layer := range []struct{ name, text string }{
		{LayerEyebrow, in.Eyebrow},
		{LayerHeadline, in.Headline},
		{LayerCTA, in.CTA},
	} {
		if text := strings.TrimSpace(layer.text); text != "" {
			mods = append(mods, modification{Name: layer.name, Text: text})
		}
	}
	if accent := strings.TrimSpace(in.AccentColor); accent != "" {
		mods = append(mods, modification{Name: LayerAccent, Color: strings.ToUpper(accent)})
	}
	return mods
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any) (imageResponse, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return imageResponse{}, fmt.Errorf("bannerbear: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return imageResponse{}, fmt.Errorf("bannerbear: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return imageResponse{}, ctxErr
		}
		return imageResponse{}, fmt.Errorf("%w: bannerbear: http request: %v", domain.ErrProviderTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return imageResponse{}, fmt.Errorf("%w: bannerbear: read response: %v", domain.ErrProviderTransport, err)
	}
	var decoded imageResponse
	decodeErr := json.Unmarshal(raw, &decoded)
	// The sync host answers 408 when the render outlives its wait window. The
	// render keeps going and is polled by uid.
	if resp.StatusCode == http.StatusRequestTimeout && decodeErr == nil && strings.TrimSpace(decoded.UID) != "" {
		if strings.TrimSpace(decoded.Status) == "" {
			decoded.Status = "pending"
		}
		return decoded, nil
	}
	if resp.StatusCode >= 300 {
		if !rejected(resp.StatusCode) {
			return imageResponse{}, fmt.Errorf("%w: bannerbear: status %d: %s", domain.ErrProviderTransport, resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		text := strings.TrimSpace(decoded.Message)
		if decodeErr != nil || text == "" {
			text = fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return imageResponse{}, &domain.ProviderError{Provider: ProviderName, Text: text}
	}
	if decodeErr != nil {
		return imageResponse{}, fmt.Errorf("%w: bannerbear: decode response: %v", domain.ErrInvalidResponse, decodeErr)
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

func toPollResult(resp imageResponse) providers.PollResult {
	res := providers.PollResult{Status: providers.NormalizeStatus(resp.Status)}
	switch res.Status {
	case providers.StatusSucceeded:
		if u := strings.TrimSpace(resp.ImageURL); u != "" {
			res.Output = []string{u}
		}
	case providers.StatusFailed:
		res.Error = strings.TrimSpace(resp.Error)
		if res.Error == "" {
			res.Error = strings.TrimSpace(resp.Message)
		}
		if res.Error == "" {
			res.Error = "render failed"
		}
	}
	return res
}

var _ providers.OverlayRenderer = (*Client)(nil)
