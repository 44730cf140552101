package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"brainsim/internal/cases"
	"brainsim/internal/clinical"
	"brainsim/internal/domain"
	"brainsim/internal/domain/jsoncfg"
	"brainsim/internal/infra"
	"brainsim/internal/middleware"
	"brainsim/internal/providers/prompt"
	"brainsim/internal/providers/video"
)

// PromptGenerator relays a clinical prompt. It never fails.
type PromptGenerator interface {
	Generate(ctx context.Context, in clinical.Input) prompt.Result
}

// ImageTimeline generates one image per timepoint.
type ImageTimeline interface {
	CheckCredentials() error
	Generate(ctx context.Context, field jsoncfg.PromptField, labels []string) []domain.Outcome
}

// VideoGenerator produces and stores one clip.
type VideoGenerator interface {
	Generate(ctx context.Context, req video.Request) (*video.Result, error)
}

// CaseStore records generation results. Nil when no database is configured.
type CaseStore interface {
	Create(ctx context.Context, in cases.NewCase) (*cases.Case, error)
	Get(ctx context.Context, id string) (*cases.Case, error)
	List(ctx context.Context, limit int) ([]cases.Case, error)
	UpdatePrompt(ctx context.Context, id, prompt string, ehr, ct []domain.FileMeta) error
	MergeImages(ctx context.Context, id string, images map[string]*string) error
	UpdateVideo(ctx context.Context, id, url string) error
}

// CredentialCheck is any client that can tell whether its key is configured.
type CredentialCheck interface {
	CheckCredentials() error
}

type App struct {
	Config  *infra.Config
	Logger  *infra.Logger
	Prompts PromptGenerator
	Images  ImageTimeline
	Videos  VideoGenerator
	Cases   CaseStore
	// Credentials are reported by Health; they never gate it.
	Credentials []CredentialCheck
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}

func (a *App) log(r *http.Request) *infra.Logger {
	l := infra.OrDiscard(a.Logger).With().Str("request_id", middleware.RequestIDFromContext(r.Context())).Logger()
	return &l
}

func (a *App) maxUploadBytes() int64 {
	if a.Config != nil && a.Config.MaxUploadBytes > 0 {
		return a.Config.MaxUploadBytes
	}
	return 32 << 20
}

// detach keeps the request's values but not its cancellation, so remote jobs
// finish even when the client goes away.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}
