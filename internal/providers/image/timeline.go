// Package image fans one prompt field out into per-timepoint Flux jobs.
package image

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"brainsim/internal/domain"
	"brainsim/internal/domain/jsoncfg"
	"brainsim/internal/infra"
)

// ErrEmptyPrompt marks a timepoint whose prompt resolved to nothing; no job is
// submitted for it.
var ErrEmptyPrompt = errors.New("image: empty prompt for timepoint")

// ErrEmptyLabel marks a requested timepoint with an empty label. It is
// reported as null without a job.
var ErrEmptyLabel = errors.New("image: empty timepoint label")

// Generator produces one image URL per prompt. *flux.Client satisfies it.
type Generator interface {
	CheckCredentials() error
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options configures a Timeline.
type Options struct {
	Generator      Generator
	Concurrency    int
	DecorateSuffix bool
	Logger         *infra.Logger
}

// Timeline runs one generation job per timepoint and keeps their failures
// isolated from each other.
type Timeline struct {
	generator   Generator
	concurrency int
	decorate    bool
	logger      *infra.Logger
}

func NewTimeline(opts Options) (*Timeline, error) {
	if opts.Generator == nil {
		return nil, errors.New("image: generator is required")
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Timeline{
		generator:   opts.Generator,
		concurrency: concurrency,
		decorate:    opts.DecorateSuffix,
		logger:      infra.OrDiscard(opts.Logger),
	}, nil
}

// CheckCredentials reports a missing credential before any job is submitted.
func (t *Timeline) CheckCredentials() error {
	return t.generator.CheckCredentials()
}

// Generate resolves a prompt per label and returns one outcome per label, in
// label order. It always returns len(labels) outcomes.
func (t *Timeline) Generate(ctx context.Context, field jsoncfg.PromptField, labels []string) []domain.Outcome {
	prompts := field.ForTimepoints(domain.NormalizeTimepoints(labels), t.decorate)
	outcomes := make([]domain.Outcome, len(prompts))

	var g errgroup.Group
	g.SetLimit(t.concurrency)
	for i, tp := range prompts {
		i, tp := i, tp
		g.Go(func() error {
			outcomes[i] = t.generateOne(ctx, tp)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (t *Timeline) generateOne(ctx context.Context, tp domain.TimepointPrompt) domain.Outcome {
	if tp.Timepoint == "" {
		return domain.Failed(tp.Timepoint, ErrEmptyLabel)
	}
	if tp.Prompt == "" {
		return domain.Failed(tp.Timepoint, ErrEmptyPrompt)
	}
	url, err := t.generator.Generate(ctx, tp.Prompt)
	if err == nil && url == "" {
		err = fmt.Errorf("%w: empty sample url", domain.ErrJobFailed)
	}
	if err != nil {
		outcome := domain.Failed(tp.Timepoint, err)
		t.logger.Warn().
			Err(err).
			Str("timepoint", tp.Timepoint).
			Str("state", string(outcome.State)).
			Msg("image: timepoint generation failed")
		return outcome
	}
	t.logger.Info().
		Str("timepoint", tp.Timepoint).
		Str("state", string(domain.JobReady)).
		Msg("image: timepoint ready")
	return domain.Ready(tp.Timepoint, url)
}

// Mapping converts outcomes into the relay shape: the URL for ready jobs and
// nil for every other state.
func Mapping(outcomes []domain.Outcome) map[string]*string {
	out := make(map[string]*string, len(outcomes))
	for _, o := range outcomes {
		if o.State != domain.JobReady {
			out[o.Timepoint] = nil
			continue
		}
		url := o.URL
		out[o.Timepoint] = &url
	}
	return out
}
