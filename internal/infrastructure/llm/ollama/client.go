package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/pii-redactor/internal/infrastructure/resilience"
)

type Client struct {
	baseURL     string
	textModel   string
	visionModel string
	httpClient  *http.Client
	executor    *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, textModel, visionModel string) *Client {
	return NewWithOptions(baseURL, textModel, visionModel, Options{})
}

func NewWithOptions(baseURL, textModel, visionModel string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if strings.TrimSpace(visionModel) == "" {
		visionModel = textModel
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		textModel:   textModel,
		visionModel: visionModel,
		httpClient:  &http.Client{Timeout: timeout},
		executor:    options.ResilienceExecutor,
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Images  []string       `json:"images,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

func (c *Client) generateJSON(ctx context.Context, operation, prompt string) (string, error) {
	return c.generate(ctx, operation, generateRequest{
		Model:   c.textModel,
		Prompt:  prompt,
		Format:  "json",
		Options: map[string]any{"temperature": 0},
	})
}

func (c *Client) generateFromImage(ctx context.Context, operation, prompt, imageBase64 string) (string, error) {
	return c.generate(ctx, operation, generateRequest{
		Model:  c.visionModel,
		Prompt: prompt,
		Images: []string{imageBase64},
	})
}

func (c *Client) generate(ctx context.Context, operation string, req generateRequest) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", req, &response, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama."+operation, call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", collaboratorError(operation, err)
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
