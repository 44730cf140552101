package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"brainsim/internal/domain"
	"brainsim/internal/infra"
	"brainsim/internal/poll"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey string
	// Credential names the environment variable behind APIKey; it is what a
	// missing-credential error reports.
	Credential      string
	BaseURL         string
	Model           string
	MaxOutputTokens int
	Timeout         time.Duration
	PollInterval    time.Duration
	PollTimeout     time.Duration
	HTTPClient      *http.Client
	Logger          *infra.Logger
	Sleep           func(ctx context.Context, d time.Duration) error
}

// Client talks to the Generative Language REST API. One client serves one
// model and one credential; text prompts and Veo videos use separate clients.
type Client struct {
	apiKey          string
	credential      string
	baseURL         string
	model           string
	maxOutputTokens int
	poll            poll.Config
	httpClient      *http.Client
	logger          *infra.Logger
}

type apiErrorResponse struct {
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; one with the configured timeout is created.
func NewClient(opts Options) (*Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-pro-latest"
	}

	credential := strings.TrimSpace(opts.Credential)
	if credential == "" {
		credential = "GEMINI_API_KEY"
	}

	maxTokens := opts.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	deadline := opts.PollTimeout
	if deadline <= 0 {
		deadline = 10 * time.Minute
	}

	return &Client{
		apiKey:          strings.TrimSpace(opts.APIKey),
		credential:      credential,
		baseURL:         baseURL,
		model:           model,
		maxOutputTokens: maxTokens,
		poll:            poll.Config{Interval: interval, Timeout: deadline, Sleep: opts.Sleep},
		httpClient:      client,
		logger:          infra.OrDiscard(opts.Logger),
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// CheckCredentials returns the missing-credential error without touching the
// network, or nil when a key is configured.
func (c *Client) CheckCredentials() error {
	if c.HasCredentials() {
		return nil
	}
	return c.missingCredential()
}

func (c *Client) missingCredential() error {
	return domain.MissingCredential(c.credential)
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var apiErr apiErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != nil && apiErr.Error.Message != "" {
		return fmt.Errorf("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
	}
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return fmt.Errorf("gemini status %d: %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("gemini status %d", resp.StatusCode)
}
