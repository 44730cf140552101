// Package bootstrap builds the provider graph shared by the API server and
// brainctl from one Config.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"brainsim/internal/cases"
	"brainsim/internal/infra"
	"brainsim/internal/infra/credentials"
	"brainsim/internal/providers/flux"
	"brainsim/internal/providers/genai"
	"brainsim/internal/providers/image"
	"brainsim/internal/providers/prompt"
	"brainsim/internal/providers/video"
	"brainsim/internal/storage"
)

// videoDownloadTimeout bounds each request the Veo client makes, including
// the final clip download.
const videoDownloadTimeout = 5 * time.Minute

// Providers holds every generation backend.
type Providers struct {
	Text     *genai.Client
	Veo      *genai.Client
	Flux     *flux.Client
	Prompts  *prompt.Generator
	Timeline *image.Timeline
	Videos   *video.Generator
	Files    *storage.FileStore
}

// NewProviders wires the clients. Missing credentials are not an error here;
// each client reports them when it is used.
func NewProviders(cfg *infra.Config, videoDir string, logger *infra.Logger) (*Providers, error) {
	text, err := genai.NewClient(genai.Options{
		APIKey:          cfg.GeminiAPIKey,
		Credential:      credentials.GeminiAPIKey,
		BaseURL:         cfg.GeminiBaseURL,
		Model:           cfg.GeminiModel,
		MaxOutputTokens: cfg.GeminiMaxOutputTokens,
		Timeout:         cfg.PromptTimeout,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("configure gemini: %w", err)
	}

	veo, err := genai.NewClient(genai.Options{
		APIKey:       cfg.GoogleAPIKey,
		Credential:   credentials.GoogleAPIKey,
		BaseURL:      cfg.GeminiBaseURL,
		Model:        cfg.VeoModel,
		Timeout:      videoDownloadTimeout,
		PollInterval: cfg.VideoPollInterval,
		PollTimeout:  cfg.VideoPollTimeout,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("configure veo: %w", err)
	}

	fluxClient, err := flux.NewClient(flux.Options{
		APIKey:       cfg.BFLAPIKey,
		BaseURL:      cfg.BFLBaseURL,
		Model:        cfg.BFLModel,
		PollInterval: cfg.ImagePollInterval,
		PollTimeout:  cfg.ImagePollTimeout,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("configure flux: %w", err)
	}

	prompts, err := prompt.NewGenerator(prompt.Options{
		Model:     text,
		EHRBudget: cfg.EHRMaxChars,
		Timeout:   cfg.PromptTimeout,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	timeline, err := image.NewTimeline(image.Options{
		Generator:      fluxClient,
		Concurrency:    cfg.ImageConcurrency,
		DecorateSuffix: cfg.ImageSuffixEnabled,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	files, err := storage.NewFileStore(videoDir)
	if err != nil {
		return nil, fmt.Errorf("configure storage: %w", err)
	}

	videos, err := video.NewGenerator(video.Options{
		Model:            veo,
		Store:            files,
		HTTPClient:       &http.Client{Timeout: cfg.ReferenceImageLimit},
		ReferenceTimeout: cfg.ReferenceImageLimit,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	return &Providers{
		Text:     text,
		Veo:      veo,
		Flux:     fluxClient,
		Prompts:  prompts,
		Timeline: timeline,
		Videos:   videos,
		Files:    files,
	}, nil
}

// Database is the optional persistence layer.
type Database struct {
	Pool  *pgxpool.Pool
	Cases *cases.Store
}

func (d *Database) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}

// OpenDatabase connects when DATABASE_URL is set and fills empty credentials
// from integration_tokens. It returns nil, nil when no database is configured.
func OpenDatabase(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*Database, error) {
	if !cfg.HasDatabase() {
		return nil, nil
	}
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	runner := infra.NewSQLRunner(pool, *infra.OrDiscard(logger))
	return Attach(ctx, cfg, pool, runner, logger), nil
}

// Attach fills empty credentials in cfg from sql and builds the stores on top
// of it. pool may be nil when sql is not backed by one.
func Attach(ctx context.Context, cfg *infra.Config, pool *pgxpool.Pool, sql infra.SQLExecutor, logger *infra.Logger) *Database {
	credentials.NewStore(sql).Fill(ctx, cfg, logger)
	return &Database{Pool: pool, Cases: cases.NewStore(sql)}
}
