package app

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/unrolled/secure"

	"github.com/Corner-venturo/Corner-sub009/internal/observability"
	"github.com/Corner-venturo/Corner-sub009/internal/platform/httpx"
	"github.com/Corner-venturo/Corner-sub009/internal/shared"
)

const (
	// HeaderWorkspace selects the workspace a request operates on.
	HeaderWorkspace = "X-Workspace-ID"
	// HeaderActor names the user on whose behalf the caller acts.
	HeaderActor = "X-Actor-ID"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// MiddlewareStack installs the ledger middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         cfg.Config == nil || !cfg.Config.IsProduction(),
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		httprate.Limit(120, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, func(next http.Handler) http.Handler {
			return cfg.Metrics.Middleware(next)
		})
	}
	return middlewares
}

// WorkspaceScope copies the workspace and actor headers into the request
// context. Requests without a workspace pass through; handlers that need one
// reject them.
func WorkspaceScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if raw := strings.TrimSpace(r.Header.Get(HeaderWorkspace)); raw != "" {
			ws, err := uuid.Parse(raw)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Invalid Workspace", HeaderWorkspace+" must be a uuid")
				return
			}
			ctx = shared.ContextWithWorkspace(ctx, ws)
		}
		if actor := strings.TrimSpace(r.Header.Get(HeaderActor)); actor != "" {
			ctx = shared.ContextWithActor(ctx, actor)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
