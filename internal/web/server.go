package web

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"capsule-go/internal/capsule"
	"capsule-go/internal/wallet"
)

// DefaultUploadMaxSize bounds a single wizard upload request (32MB).
const DefaultUploadMaxSize = 32 << 20

// Server serves the capsule pages, wizard forms and JSON API.
type Server struct {
	svc           *capsule.CapsuleService
	sessions      *wallet.CookieSessions
	logger        capsule.Logger
	uploadMaxSize int64
	templates     map[string]*template.Template
}

// NewServer parses the embedded templates and returns a ready Server.
// uploadMaxSize <= 0 selects DefaultUploadMaxSize.
func NewServer(svc *capsule.CapsuleService, sessions *wallet.CookieSessions, logger capsule.Logger, uploadMaxSize int64) (*Server, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	if uploadMaxSize <= 0 {
		uploadMaxSize = DefaultUploadMaxSize
	}
	return &Server{
		svc:           svc,
		sessions:      sessions,
		logger:        logger,
		uploadMaxSize: uploadMaxSize,
		templates:     templates,
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHome)
	r.Get("/gallery", s.handleGallery)

	r.Route("/create", func(r chi.Router) {
		r.Get("/", s.handleCreate)
		r.Post("/type", s.handleSelectType)
		r.Post("/content", s.handleContent)
		r.Post("/continue", s.handleContinue)
		r.Post("/back", s.handleBack)
		r.Post("/quick", s.handleQuickOption)
		r.Post("/unlock", s.handleUnlockDate)
		r.Post("/submit", s.handleSubmit)
		r.Post("/discard", s.handleDiscard)
	})

	r.Post("/wallet/connect", s.handleConnect)
	r.Post("/wallet/disconnect", s.handleDisconnect)

	r.Get("/capsules/{id}/files/{checksum}", s.handleFile)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/capsules", s.handleAPICapsules)
		r.Get("/capsules/{id}", s.handleAPICapsule)
		r.Get("/placeholder/{width}/{height}", s.handlePlaceholder)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// viewer returns the connected account in checksummed form, or "".
func (s *Server) viewer(r *http.Request) string {
	if addr, ok := s.sessions.Account(r); ok {
		return addr.String()
	}
	return ""
}
