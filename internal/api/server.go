package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-cms/internal/auth"
	"github.com/JakeFAU/magazine-cms/internal/cache"
	"github.com/JakeFAU/magazine-cms/internal/config"
	"github.com/JakeFAU/magazine-cms/internal/content"
	"github.com/JakeFAU/magazine-cms/internal/logging"
	"github.com/JakeFAU/magazine-cms/internal/metrics"
	"github.com/JakeFAU/magazine-cms/internal/opengraph"
)

// Authenticator performs password logins against the identity provider.
type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (auth.Session, error)
}

// ObjectNamer picks the storage path for an uploaded file.
type ObjectNamer interface {
	ObjectName(prefix, filename string) (string, error)
}

// Dependencies are the collaborators the HTTP layer needs. Objects,
// Authenticator and Verifier are optional.
type Dependencies struct {
	Articles      content.ArticleStore
	Categories    content.CategoryStore
	Admins        content.AdminStore
	Blobs         content.BlobStore
	Objects       content.ObjectReader
	Publisher     content.Publisher
	Cache         *cache.Cache
	Responder     *opengraph.Responder
	Authenticator Authenticator
	Verifier      auth.Verifier
	Names         ObjectNamer
	Clock         content.Clock
}

// Server wires HTTP handlers to the content stores, cache and responder.
type Server struct {
	router  chi.Router
	deps    Dependencies
	cfg     config.Config
	logger  *zap.Logger
	started time.Time
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Dependencies, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		deps:    deps,
		cfg:     cfg,
		logger:  logger,
		started: deps.Clock.Now(),
	}
	if deps.Verifier == nil {
		logger.Warn("authentication disabled, write endpoints are open")
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           cfg.CORS.MaxAge,
	}))
	if cfg.Server.MaxBodyBytes > 0 {
		r.Use(chimiddleware.RequestSize(cfg.Server.MaxBodyBytes))
	}
	r.Use(timeoutMiddleware(cfg.RequestTimeout()))

	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Get("/uploads/*", s.serveUpload)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", s.listArticles)
			r.Get("/latest", s.latestArticles)
			r.Get("/{id}", s.getArticle)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/", s.createArticle)
				r.Put("/{id}", s.updateArticle)
				r.Delete("/{id}", s.deleteArticle)
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.listCategories)
			r.With(s.requireAuth).Post("/", s.createCategory)
		})

		r.Post("/auth/login", s.login)
		r.Post("/admin/login", s.adminLogin)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	now := s.deps.Clock.Now()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": now.UTC().Format(time.RFC3339),
		"uptime":    now.Sub(s.started).Seconds(),
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logging.WithTrace(r.Context(), s.logger).Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				)
				s.writeError(w, http.StatusInternalServerError, "Internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.TimeoutHandler(next, d, `{"error":"Request timed out"}`)
	}
}

// requireAuth rejects requests without a valid bearer token. When no
// verifier is configured the request passes through unchanged.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Verifier == nil {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if header == "" {
			s.writeError(w, http.StatusUnauthorized, "No authorization header", nil)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			s.writeError(w, http.StatusUnauthorized, "Invalid or expired token", nil)
			return
		}
		user, err := s.deps.Verifier.Verify(r.Context(), strings.TrimSpace(token))
		if err != nil {
			status := statusFor(err)
			msg := "Invalid or expired token"
			if status == http.StatusServiceUnavailable {
				msg = "Authentication service unavailable"
			} else {
				status = http.StatusUnauthorized
			}
			s.writeError(w, status, msg, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}
