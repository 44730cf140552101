package httpapi

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"brainsim/internal/http/handlers"
	"brainsim/internal/infra"
	"brainsim/internal/middleware"
)

// VideoDir is where saved clips live for a given static root.
func VideoDir(staticDir string) string {
	return filepath.Join(staticDir, "videos")
}

func NewRouter(app *handlers.App, cfg *infra.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(*infra.OrDiscard(app.Logger)),
		middleware.CORS(cfg.CORSAllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	r.Route("/model", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
		r.Post("/prompt", app.ModelPrompt)
		r.Post("/generate_images", app.ModelGenerateImages)
		r.Post("/generate_video", app.ModelGenerateVideo)
	})

	if app.Cases != nil {
		r.Route("/cases", func(r chi.Router) {
			r.Get("/", app.CasesList)
			r.Post("/", app.CasesCreate)
			r.Get("/{id}", app.CasesGet)
		})
	}

	r.Handle(handlers.StaticVideoPrefix+"*", staticFiles(VideoDir(cfg.StaticDir)))

	return r
}

// staticFiles serves files from dir without directory listings. Dotfiles,
// including partial writes, are not served.
func staticFiles(dir string) http.Handler {
	fs := http.StripPrefix(handlers.StaticVideoPrefix, http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") || hasDotSegment(r.URL.Path) {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

func hasDotSegment(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
