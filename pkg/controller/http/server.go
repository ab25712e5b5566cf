package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/usecase"
	"github.com/secmon-lab/recall/pkg/utils/logging"
	"github.com/secmon-lab/recall/pkg/utils/safe"
)

const (
	HeaderSessionID = "X-Recall-Session"
	HeaderUserID    = "X-Recall-User"
)

type Server struct {
	router       *chi.Mux
	sessions     *usecase.SessionManager
	defaultUser  model.UserID
	maxBodyBytes int64
}

type Options func(*Server)

// WithDefaultUser sets the identity used when a request has no user header
func WithDefaultUser(user model.UserID) Options {
	return func(s *Server) {
		s.defaultUser = user
	}
}

func WithMaxBodyBytes(n int64) Options {
	return func(s *Server) {
		s.maxBodyBytes = n
	}
}

func New(sessions *usecase.SessionManager, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:       r,
		sessions:     sessions,
		defaultUser:  model.DefaultUserID,
		maxBodyBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		safe.WriteJSON(r.Context(), w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": s.sessions.Len(),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.chatHandler)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		logger := logging.Default().With("request_id", middleware.GetReqID(r.Context()))
		ctx := logging.With(r.Context(), logger)

		defer func() {
			logger.Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r.WithContext(ctx))
	})
}
