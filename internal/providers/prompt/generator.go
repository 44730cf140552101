package prompt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"brainsim/internal/clinical"
	"brainsim/internal/domain"
	"brainsim/internal/infra"
	"brainsim/internal/providers/genai"
)

const (
	reasonMissingCredential = "missing_credential"
	reasonModelError        = "model_error"
	reasonEmptyResponse     = "empty_response"

	unknownPatient = "n/a"
)

// TextModel produces text from clinical context. *genai.Client satisfies it.
type TextModel interface {
	GenerateText(ctx context.Context, req genai.TextRequest) (string, error)
}

// Options configures a Generator.
type Options struct {
	Model      TextModel
	EHRBudget  int
	Timeout    time.Duration
	Logger     *infra.Logger
	OnFallback func(reason string, err error)
}

// Generator turns clinical inputs into a downstream image prompt. It never
// fails: model errors and empty answers become annotated fallback strings.
type Generator struct {
	model      TextModel
	ehrBudget  int
	timeout    time.Duration
	logger     *infra.Logger
	onFallback func(reason string, err error)
}

// Result is the relayed prompt plus the reason a fallback was used, if any.
type Result struct {
	Prompt         string
	FallbackReason string
}

// Fallback reports whether the prompt was synthesized locally.
func (r Result) Fallback() bool {
	return r.FallbackReason != ""
}

func NewGenerator(opts Options) (*Generator, error) {
	if opts.Model == nil {
		return nil, errors.New("prompt: text model is required")
	}
	budget := opts.EHRBudget
	if budget <= 0 {
		budget = clinical.DefaultEHRBudget
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Generator{
		model:      opts.Model,
		ehrBudget:  budget,
		timeout:    timeout,
		logger:     infra.OrDiscard(opts.Logger),
		onFallback: opts.OnFallback,
	}, nil
}

// Generate builds the model request from in and relays the answer.
func (g *Generator) Generate(ctx context.Context, in clinical.Input) Result {
	name := in.Patient.DisplayNameOr(unknownPatient)

	req := genai.TextRequest{
		Context: clinical.BuildContext(in),
		EHRText: clinical.ExtractEHRText(in.EHRFiles, g.ehrBudget),
	}
	for _, img := range clinical.EncodeCTImages(in.CTScans) {
		req.Images = append(req.Images, genai.InlinePart{MimeType: img.MimeType, Data: img.Data})
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.model.GenerateText(ctx, req)
	if err != nil {
		reason := reasonModelError
		if errors.Is(err, domain.ErrMissingCredential) {
			reason = reasonMissingCredential
		}
		g.fallback(reason, err)
		return Result{
			Prompt: fmt.Sprintf("%s [fallback: Gemini error: %v; patient:%s, EHR:%d, CT:%d]",
				in.BasePrompt, err, name, len(in.EHRFiles), len(in.CTScans)),
			FallbackReason: reason,
		}
	}
	if text == "" {
		g.fallback(reasonEmptyResponse, nil)
		return Result{
			Prompt:         fmt.Sprintf("%s [patient:%s]", in.BasePrompt, name),
			FallbackReason: reasonEmptyResponse,
		}
	}

	g.logger.Debug().
		Int("ehr_files", len(in.EHRFiles)).
		Int("ct_scans", len(in.CTScans)).
		Int("ehr_chars", len([]rune(req.EHRText))).
		Msg("prompt: generated")
	return Result{Prompt: text}
}

func (g *Generator) fallback(reason string, err error) {
	g.logger.Warn().Err(err).Str("reason", reason).Msg("prompt: using fallback")
	if g.onFallback != nil {
		g.onFallback(reason, err)
	}
}
