// Package vision asks a multimodal model to describe the visual style of a
// brand asset.
package vision

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"adforge/internal/domain"
	"adforge/internal/infra"
	"adforge/internal/providers"
)

const ProviderName = "gemini"

const defaultInstruction = "You are a brand designer. Describe the visual style of this image for an art director " +
	"in at most three sentences: mood, lighting, composition, typography if any, and materials. " +
	"Do not describe the product itself and do not use bullet points."

// contentGenerator is the subset of *genai.Models the client relies on.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Options struct {
	APIKey         string
	Model          string
	Instruction    string
	RequestTimeout time.Duration
	Logger         *infra.Logger
}

// Client performs a single-shot describe request per image.
type Client struct {
	models      contentGenerator
	model       string
	instruction string
	timeout     time.Duration
	logger      *infra.Logger
}

// NewClient builds a Gemini-backed describer.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", domain.ErrConfiguration)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("vision: create genai client: %w", err)
	}
	return newClient(client.Models, opts), nil
}

func newClient(models contentGenerator, opts Options) *Client {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	instruction := strings.TrimSpace(opts.Instruction)
	if instruction == "" {
		instruction = defaultInstruction
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		models:      models,
		model:       model,
		instruction: instruction,
		timeout:     timeout,
		logger:      infra.LoggerOrDiscard(opts.Logger),
	}
}

// DescribeStyle returns free text describing the look of image.
func (c *Client) DescribeStyle(ctx context.Context, image []byte, mime string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("%w: vision: image payload is empty", domain.ErrInvalidRequest)
	}
	mime = strings.TrimSpace(mime)
	if mime == "" {
		mime = http.DetectContentType(image)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mime),
			genai.NewPartFromText(c.instruction),
		}, genai.RoleUser),
	}
	resp, err := c.models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: vision: %v", domain.ErrProviderTransport, ctxErr)
		}
		return "", fmt.Errorf("%w: vision: generate content: %v", domain.ErrProviderTransport, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: vision: empty response", domain.ErrInvalidResponse)
	}
	text := strings.Join(strings.Fields(resp.Text()), " ")
	if text == "" {
		return "", fmt.Errorf("%w: vision: model returned no text", domain.ErrInvalidResponse)
	}
	c.logger.Debug().
		Str("model", c.model).
		Int("chars", len(text)).
		Msg("vision: style described")
	return text, nil
}

var _ providers.Describer = (*Client)(nil)
