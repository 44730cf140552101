package genai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"brainsim/internal/domain"
	"brainsim/internal/poll"
)

// ReferenceImage is an optional still the video should stay faithful to.
type ReferenceImage struct {
	MimeType string
	Data     []byte
}

// VideoRequest describes one Veo generation.
type VideoRequest struct {
	Prompt    string
	Reference *ReferenceImage
}

// Video is a finished generation downloaded from the service.
type Video struct {
	Operation string
	URI       string
	MimeType  string
	Data      []byte
}

type predictInstance struct {
	Prompt          string           `json:"prompt"`
	ReferenceImages []referenceEntry `json:"referenceImages,omitempty"`
}

type referenceEntry struct {
	Image         encodedImage `json:"image"`
	ReferenceType string       `json:"referenceType"`
}

type encodedImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type predictRequest struct {
	Instances []predictInstance `json:"instances"`
}

type operation struct {
	Name     string    `json:"name"`
	Done     bool      `json:"done"`
	Error    *apiError `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// GenerateVideo starts a long-running Veo operation, polls it until done and
// downloads the first generated sample.
func (c *Client) GenerateVideo(ctx context.Context, req VideoRequest) (*Video, error) {
	if !c.HasCredentials() {
		return nil, c.missingCredential()
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("genai: video prompt is required")
	}

	op, err := c.startVideo(ctx, req)
	if err != nil {
		return nil, err
	}
	c.logger.Info().
		Str("model", c.model).
		Str("operation", op.Name).
		Bool("reference", req.Reference != nil).
		Msg("genai: video operation started")

	if !op.Done {
		op, err = c.waitOperation(ctx, op.Name)
		if err != nil {
			return nil, err
		}
	}
	if op.Error != nil {
		return nil, fmt.Errorf("genai: %w: %s", domain.ErrJobFailed, op.Error.Message)
	}
	uri := firstSampleURI(op)
	if uri == "" {
		return nil, fmt.Errorf("genai: %w: operation %s returned no video", domain.ErrJobFailed, op.Name)
	}

	data, mime, err := c.download(ctx, uri)
	if err != nil {
		return nil, err
	}
	if mime == "" || mime == "application/octet-stream" {
		mime = "video/mp4"
	}
	return &Video{Operation: op.Name, URI: uri, MimeType: mime, Data: data}, nil
}

func (c *Client) startVideo(ctx context.Context, req VideoRequest) (*operation, error) {
	instance := predictInstance{Prompt: req.Prompt}
	if ref := req.Reference; ref != nil && len(ref.Data) > 0 {
		instance.ReferenceImages = []referenceEntry{{
			Image: encodedImage{
				BytesBase64Encoded: base64.StdEncoding.EncodeToString(ref.Data),
				MimeType:           ref.MimeType,
			},
			ReferenceType: "asset",
		}}
	}

	endpoint := fmt.Sprintf("%s/models/%s:predictLongRunning", c.baseURL, url.PathEscape(c.model))
	var op operation
	if err := c.do(ctx, http.MethodPost, endpoint, predictRequest{Instances: []predictInstance{instance}}, &op); err != nil {
		return nil, fmt.Errorf("genai: start video: %w", err)
	}
	if op.Name == "" && !op.Done {
		return nil, errors.New("genai: start video: response carried no operation name")
	}
	return &op, nil
}

func (c *Client) waitOperation(ctx context.Context, name string) (*operation, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(name, "/")
	var latest operation
	err := poll.Until(ctx, c.poll, func(ctx context.Context, attempt int) (bool, error) {
		var op operation
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &op); err != nil {
			return false, fmt.Errorf("genai: poll video: %w", err)
		}
		latest = op
		c.logger.Debug().
			Str("operation", name).
			Int("attempt", attempt).
			Bool("done", op.Done).
			Msg("genai: video operation polled")
		return op.Done, nil
	})
	if errors.Is(err, poll.ErrTimeout) {
		return nil, fmt.Errorf("genai: %w after %s", domain.ErrJobTimedOut, c.poll.Timeout)
	}
	if err != nil {
		return nil, err
	}
	return &latest, nil
}

func (c *Client) download(ctx context.Context, uri string) ([]byte, string, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("genai: create download request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("genai: download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, "", fmt.Errorf("genai: download video: %w", statusError(resp))
	}
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("genai: read video: %w", err)
	}
	if len(blob) == 0 {
		return nil, "", errors.New("genai: downloaded video is empty")
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

func firstSampleURI(op *operation) string {
	if op == nil || op.Response == nil {
		return ""
	}
	samples := op.Response.GenerateVideoResponse.GeneratedSamples
	if len(samples) == 0 {
		return ""
	}
	return strings.TrimSpace(samples[0].Video.URI)
}
