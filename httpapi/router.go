// Package httpapi exposes the search engine over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"

	"listing-search/boundary"
	"listing-search/services"
	"listing-search/utils"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Adapter            *boundary.Adapter
	Engine             *services.Engine
	Insights           *services.InsightService
	Sessions           *SessionRegistry
	Logger             *utils.Logger
	CORSOrigins        []string
	RateLimitPerMinute int
}

// NewRouter builds the chi router with middleware and all routes.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = utils.NewNopLogger()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(d.Logger), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", SessionHeader},
		ExposedHeaders:   []string{SessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if d.RateLimitPerMinute > 0 {
		r.Use(httprate.LimitByIP(d.RateLimitPerMinute, time.Minute))
	}

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, map[string]any{"ok": true, "sessions": d.Sessions.Len()})
	})

	h := &handlers{Deps: d}
	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))
			r.Post("/search", h.postSearch)
			r.Get("/search", h.getSearch)
			r.Get("/search/last", h.lastSearch)
			r.Get("/listings/summary", h.summary)
		})
		r.Get("/search/export.csv", h.exportCSV)
	})

	return r
}

// requestLogger logs one line per request through the application logger.
func requestLogger(logger *utils.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, req)
			logger.Info("[http] %s %s -> %d (%v) id=%s", req.Method, req.URL.Path, ww.Status(),
				time.Since(start).Round(time.Microsecond), middleware.GetReqID(req.Context()))
		})
	}
}
