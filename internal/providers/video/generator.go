// Package video turns a prompt and an optional reference still into a saved
// Veo clip.
package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"brainsim/internal/infra"
	"brainsim/internal/providers/genai"
)

// DefaultPrompt is used when the caller supplies no usable prompt.
const DefaultPrompt = "Create a 7-second, ultra high-resolution, 360-degree, eye-level orbit around a single human brain matching the provided CT/MRI reference image. " +
	"Subject is a medically accurate human brain with realistic cortical gyri and sulci; preserve anatomical proportions and density cues from the reference. " +
	"Camera performs a smooth, stabilized dolly-orbit over the full duration. " +
	"Composition begins medium-wide, transitions briefly to a medium shot revealing temporal and hippocampal contours, then returns to medium-wide by the end. " +
	"Style is clinical, photorealistic medical visualization; no artistic liberties. " +
	"Deep focus with a 35-50mm feel; minimal lens breathing; no motion blur artifacts. " +
	"Neutral medium-gray background with soft key and subtle rim light to accent form; balanced, natural contrast and color. " +
	"No text, logos, watermarks, or extraneous elements."

// DefaultSeconds is the requested clip length when none is given.
const DefaultSeconds = 7

const maxReferenceBytes = 20 << 20

// Model generates videos. *genai.Client satisfies it.
type Model interface {
	CheckCredentials() error
	GenerateVideo(ctx context.Context, req genai.VideoRequest) (*genai.Video, error)
}

// Store persists finished clips. *storage.FileStore satisfies it.
type Store interface {
	SaveVideo(ctx context.Context, data []byte) (string, error)
}

// Options configures a Generator.
type Options struct {
	Model            Model
	Store            Store
	HTTPClient       *http.Client
	ReferenceTimeout time.Duration
	Logger           *infra.Logger
}

// Generator drives one video generation per call.
type Generator struct {
	model            Model
	store            Store
	httpClient       *http.Client
	referenceTimeout time.Duration
	logger           *infra.Logger
}

// Request is a normalized video request.
type Request struct {
	Prompt    string
	ImageURL  string
	Timepoint string
	Seconds   int
}

// Result names the saved clip.
type Result struct {
	Filename      string
	Operation     string
	ReferenceUsed bool
}

func NewGenerator(opts Options) (*Generator, error) {
	if opts.Model == nil {
		return nil, errors.New("video: model is required")
	}
	if opts.Store == nil {
		return nil, errors.New("video: store is required")
	}
	timeout := opts.ReferenceTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Generator{
		model:            opts.Model,
		store:            opts.Store,
		httpClient:       client,
		referenceTimeout: timeout,
		logger:           infra.OrDiscard(opts.Logger),
	}, nil
}

// Generate checks credentials, fetches the reference image when one is given,
// runs the model and saves the clip. A reference that cannot be fetched is
// logged and skipped.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := g.model.CheckCredentials(); err != nil {
		return nil, err
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = DefaultPrompt
	}
	seconds := req.Seconds
	if seconds <= 0 {
		seconds = DefaultSeconds
	}

	var reference *genai.ReferenceImage
	if imageURL := strings.TrimSpace(req.ImageURL); imageURL != "" {
		ref, err := g.fetchReference(ctx, imageURL)
		if err != nil {
			g.logger.Warn().Err(err).Str("image_url", imageURL).Msg("video: reference image skipped")
		} else {
			reference = ref
		}
	}

	g.logger.Info().
		Str("timepoint", req.Timepoint).
		Int("seconds", seconds).
		Bool("reference", reference != nil).
		Msg("video: generation requested")

	clip, err := g.model.GenerateVideo(ctx, genai.VideoRequest{Prompt: prompt, Reference: reference})
	if err != nil {
		return nil, err
	}
	filename, err := g.store.SaveVideo(ctx, clip.Data)
	if err != nil {
		return nil, fmt.Errorf("video: save: %w", err)
	}
	g.logger.Info().Str("file", filename).Str("operation", clip.Operation).Msg("video: saved")
	return &Result{Filename: filename, Operation: clip.Operation, ReferenceUsed: reference != nil}, nil
}

func (g *Generator) fetchReference(ctx context.Context, imageURL string) (*genai.ReferenceImage, error) {
	ctx, cancel := context.WithTimeout(ctx, g.referenceTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("video: create reference request: %w", err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("video: fetch reference: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("video: fetch reference status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReferenceBytes))
	if err != nil {
		return nil, fmt.Errorf("video: read reference: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("video: reference image is empty")
	}
	return &genai.ReferenceImage{
		MimeType: ReferenceMime(resp.Header.Get("Content-Type"), imageURL),
		Data:     data,
	}, nil
}

// ReferenceMime picks the reference mime type from the response header, then
// the URL extension, then image/jpeg.
func ReferenceMime(contentType, rawURL string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "" {
		return mt
	}
	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			if mt, _, err := mime.ParseMediaType(mime.TypeByExtension(strings.ToLower(ext))); err == nil && mt != "" {
				return mt
			}
		}
	}
	return "image/jpeg"
}
