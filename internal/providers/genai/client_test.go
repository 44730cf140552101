package genai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"brainsim/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestGenerateTextMissingKeyMakesNoCall(t *testing.T) {
	var calls int32
	client, err := NewClient(Options{
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			atomic.AddInt32(&calls, 1)
			return nil, errors.New("unexpected call")
		})},
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	_, err = client.GenerateText(context.Background(), TextRequest{Context: "ctx"})
	if !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("err = %v, want missing credential", err)
	}
	if err.Error() != "Missing GEMINI_API_KEY" {
		t.Fatalf("err = %q, want %q", err.Error(), "Missing GEMINI_API_KEY")
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
}

func TestGenerateTextPayloadAndResponse(t *testing.T) {
	var captured generateContentRequest
	var path, key string
	client, err := NewClient(Options{
		APIKey:          "secret",
		Model:           "gemini-test",
		MaxOutputTokens: 512,
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			path = r.URL.Path
			key = r.Header.Get("x-goog-api-key")
			if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"  a rich prompt \n"}]}}]}`), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	text, err := client.GenerateText(context.Background(), TextRequest{
		Context: "Base prompt:\nbrain",
		EHRText: "notes",
		Images:  []InlinePart{{MimeType: "image/png", Data: "AAAA"}},
	})
	if err != nil {
		t.Fatalf("GenerateText returned error: %v", err)
	}
	if text != "a rich prompt" {
		t.Fatalf("text = %q, want %q", text, "a rich prompt")
	}
	if path != "/v1beta/models/gemini-test:generateContent" {
		t.Fatalf("path = %q", path)
	}
	if key != "secret" {
		t.Fatalf("api key header = %q, want secret", key)
	}
	cfg := captured.GenerationConfig
	if cfg.Temperature != 0.2 || cfg.TopK != 40 || cfg.TopP != 0.95 || cfg.MaxOutputTokens != 512 {
		t.Fatalf("generationConfig = %+v", cfg)
	}
	parts := captured.Contents[0].Parts
	if len(parts) != 6 {
		t.Fatalf("parts = %d, want 6", len(parts))
	}
	if parts[1].Text != "\n\nClinical / patient context:\nBase prompt:\nbrain" {
		t.Fatalf("context part = %q", parts[1].Text)
	}
	if !strings.HasSuffix(parts[2].Text, "notes") {
		t.Fatalf("ehr part = %q", parts[2].Text)
	}
	if parts[4].InlineData == nil || parts[4].InlineData.Data != "AAAA" {
		t.Fatalf("inline part = %+v", parts[4])
	}
	if !strings.Contains(parts[5].Text, "SINGLE prompt string") {
		t.Fatalf("closing part = %q", parts[5].Text)
	}
}

func TestGenerateTextOmitsOptionalParts(t *testing.T) {
	parts := buildParts(TextRequest{Context: "ctx"})
	if len(parts) != 3 {
		t.Fatalf("parts = %d, want 3", len(parts))
	}
}

func TestGenerateTextMalformedResponseIsEmpty(t *testing.T) {
	client, _ := NewClient(Options{
		APIKey: "secret",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"candidates":[]}`), nil
		})},
	})
	text, err := client.GenerateText(context.Background(), TextRequest{Context: "ctx"})
	if err != nil {
		t.Fatalf("GenerateText returned error: %v", err)
	}
	if text != "" {
		t.Fatalf("text = %q, want empty", text)
	}
}

func TestGenerateTextStatusError(t *testing.T) {
	client, _ := NewClient(Options{
		APIKey: "secret",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusForbidden, `{"error":{"code":403,"message":"API key not valid"}}`), nil
		})},
	})
	_, err := client.GenerateText(context.Background(), TextRequest{Context: "ctx"})
	if err == nil || !strings.Contains(err.Error(), "gemini status 403: API key not valid") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateVideoFlow(t *testing.T) {
	var polls int32
	var started predictRequest
	client, err := NewClient(Options{
		APIKey:       "google",
		Credential:   "GOOGLE_API_KEY",
		Model:        "veo-test",
		PollInterval: time.Millisecond,
		PollTimeout:  time.Minute,
		Sleep:        noSleep,
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get("x-goog-api-key") != "google" {
				t.Fatalf("missing api key header on %s", r.URL)
			}
			switch {
			case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/models/veo-test:predictLongRunning"):
				if err := json.NewDecoder(r.Body).Decode(&started); err != nil {
					t.Fatalf("decode request: %v", err)
				}
				return jsonResponse(http.StatusOK, `{"name":"models/veo-test/operations/op1"}`), nil
			case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/operations/op1"):
				if atomic.AddInt32(&polls, 1) < 2 {
					return jsonResponse(http.StatusOK, `{"name":"models/veo-test/operations/op1","done":false}`), nil
				}
				return jsonResponse(http.StatusOK, `{"name":"models/veo-test/operations/op1","done":true,
					"response":{"generateVideoResponse":{"generatedSamples":[{"video":{"uri":"https://files.example.com/v1/video.mp4"}}]}}}`), nil
			case r.URL.Host == "files.example.com":
				return &http.Response{
					StatusCode: http.StatusOK,
					Header:     http.Header{"Content-Type": []string{"video/mp4"}},
					Body:       io.NopCloser(strings.NewReader("MP4DATA")),
				}, nil
			}
			t.Fatalf("unexpected request %s %s", r.Method, r.URL)
			return nil, nil
		})},
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	video, err := client.GenerateVideo(context.Background(), VideoRequest{
		Prompt:    "orbit the brain",
		Reference: &ReferenceImage{MimeType: "image/png", Data: []byte{1, 2, 3}},
	})
	if err != nil {
		t.Fatalf("GenerateVideo returned error: %v", err)
	}
	if string(video.Data) != "MP4DATA" {
		t.Fatalf("data = %q", video.Data)
	}
	if polls != 2 {
		t.Fatalf("polls = %d, want 2", polls)
	}
	inst := started.Instances[0]
	if inst.Prompt != "orbit the brain" || len(inst.ReferenceImages) != 1 {
		t.Fatalf("instance = %+v", inst)
	}
	if inst.ReferenceImages[0].Image.BytesBase64Encoded != "AQID" {
		t.Fatalf("reference = %+v", inst.ReferenceImages[0])
	}
}

func TestGenerateVideoMissingKey(t *testing.T) {
	client, _ := NewClient(Options{
		Credential: "GOOGLE_API_KEY",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			t.Fatal("unexpected outbound request")
			return nil, nil
		})},
	})
	_, err := client.GenerateVideo(context.Background(), VideoRequest{Prompt: "p"})
	var missing *domain.MissingCredentialError
	if !errors.As(err, &missing) || missing.Name != "GOOGLE_API_KEY" {
		t.Fatalf("err = %v, want missing GOOGLE_API_KEY", err)
	}
}

func TestGenerateVideoOperationError(t *testing.T) {
	client, _ := NewClient(Options{
		APIKey: "google",
		Sleep:  noSleep,
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"name":"operations/x","done":true,"error":{"code":3,"message":"blocked"}}`), nil
		})},
	})
	_, err := client.GenerateVideo(context.Background(), VideoRequest{Prompt: "p"})
	if !errors.Is(err, domain.ErrJobFailed) {
		t.Fatalf("err = %v, want job failed", err)
	}
}

func TestGenerateVideoTimesOut(t *testing.T) {
	client, _ := NewClient(Options{
		APIKey:       "google",
		PollInterval: time.Millisecond,
		PollTimeout:  time.Nanosecond,
		Sleep: func(context.Context, time.Duration) error {
			time.Sleep(time.Millisecond)
			return nil
		},
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"name":"operations/x","done":false}`), nil
		})},
	})
	_, err := client.GenerateVideo(context.Background(), VideoRequest{Prompt: "p"})
	if !errors.Is(err, domain.ErrJobTimedOut) {
		t.Fatalf("err = %v, want timed out", err)
	}
}
