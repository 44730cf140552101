package flux

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"brainsim/internal/domain"
	"brainsim/internal/infra"
	"brainsim/internal/poll"
)

// CredentialName is the environment variable holding the Flux API key.
const CredentialName = "BFL_API_KEY"

// ErrEmptyPrompt is returned when there is nothing to submit.
var ErrEmptyPrompt = errors.New("flux: prompt is required")

// Options configures the Flux (api.bfl.ai) image client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	PollInterval   time.Duration
	PollTimeout    time.Duration
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Logger         *infra.Logger
	// Sleep replaces the real clock between polls; used by tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client submits text-to-image jobs and polls them until a terminal state.
type Client struct {
	apiKey string
	model  string
	http   *resty.Client
	poll   poll.Config
	logger *infra.Logger
}

// Job is a submitted generation identified by its polling URL.
type Job struct {
	ID         string
	PollingURL string
	State      domain.JobState
}

type submitResponse struct {
	ID         string `json:"id"`
	PollingURL string `json:"polling_url"`
}

type resultResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result *struct {
		Sample string `json:"sample"`
	} `json:"result"`
}

// NewClient constructs a client with sane defaults. A missing API key is not
// an error here; Generate reports it per call.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.bfl.ai/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "flux-kontext-pro"
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	deadline := opts.PollTimeout
	if deadline <= 0 {
		deadline = 90 * time.Second
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		apiKey: strings.TrimSpace(opts.APIKey),
		model:  model,
		http:   rc,
		poll:   poll.Config{Interval: interval, Timeout: deadline, Sleep: opts.Sleep},
		logger: infra.OrDiscard(opts.Logger),
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
	return domain.MissingCredential(CredentialName)
}

// Generate submits prompt and blocks until the job is ready, failed, or past
// the poll deadline. It returns the sample URL of a ready job.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	job, err := c.Submit(ctx, prompt)
	if err != nil {
		return "", err
	}
	return c.Wait(ctx, job)
}

// Submit creates a generation job.
func (c *Client) Submit(ctx context.Context, prompt string) (*Job, error) {
	if err := c.CheckCredentials(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-key", c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"prompt": prompt}).
		Post("/" + url.PathEscape(c.model))
	if err != nil {
		return nil, fmt.Errorf("flux: submit: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("flux: submit status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var decoded submitResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return nil, fmt.Errorf("flux: decode submit response: %w", err)
	}
	if strings.TrimSpace(decoded.PollingURL) == "" {
		return nil, fmt.Errorf("flux: bad response: %s", strings.TrimSpace(resp.String()))
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("job_id", decoded.ID).
		Msg("flux: job submitted")

	return &Job{ID: decoded.ID, PollingURL: decoded.PollingURL, State: domain.JobSubmitted}, nil
}

// Wait polls job until it leaves the pending state.
func (c *Client) Wait(ctx context.Context, job *Job) (string, error) {
	var sample string
	err := poll.Until(ctx, c.poll, func(ctx context.Context, attempt int) (bool, error) {
		state, url, err := c.Status(ctx, job.PollingURL)
		if err != nil {
			return false, err
		}
		job.State = state
		switch state {
		case domain.JobReady:
			sample = url
			return true, nil
		case domain.JobFailed:
			return false, fmt.Errorf("flux: %w: job %s", domain.ErrJobFailed, job.ID)
		default:
			return false, nil
		}
	})
	if errors.Is(err, poll.ErrTimeout) {
		job.State = domain.JobTimedOut
		return "", fmt.Errorf("flux: %w after %s", domain.ErrJobTimedOut, c.poll.Timeout)
	}
	if err != nil {
		if !job.State.Terminal() {
			job.State = domain.JobFailed
		}
		return "", err
	}
	c.logger.Debug().Str("job_id", job.ID).Msg("flux: job ready")
	return sample, nil
}

// Status fetches the job's current state. A ready job without a sample URL is
// reported as failed.
func (c *Client) Status(ctx context.Context, pollingURL string) (domain.JobState, string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-key", c.apiKey).
		Get(pollingURL)
	if err != nil {
		return domain.JobPending, "", fmt.Errorf("flux: poll: %w", err)
	}
	if resp.IsError() {
		return domain.JobPending, "", fmt.Errorf("flux: poll status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	var decoded resultResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return domain.JobPending, "", fmt.Errorf("flux: decode poll response: %w", err)
	}

	state := MapStatus(decoded.Status)
	if state != domain.JobReady {
		return state, "", nil
	}
	if decoded.Result == nil || strings.TrimSpace(decoded.Result.Sample) == "" {
		return domain.JobFailed, "", nil
	}
	return domain.JobReady, strings.TrimSpace(decoded.Result.Sample), nil
}

// MapStatus translates a Flux status string into a job state.
func MapStatus(status string) domain.JobState {
	switch status {
	case "Ready":
		return domain.JobReady
	case "Error", "Failed", "Request Moderated", "Content Moderated", "Task not found":
		return domain.JobFailed
	default:
		return domain.JobPending
	}
}
