// Package server exposes the dashboard, public API and worker callback routes.
package server

import (
	"errors"
	"net/http"

	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/apikeys"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/auth"
	apihttp "github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/http"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/jobs"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/media"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/storage"
	"github.com/rs/zerolog"
)

// Config holds the services the routes are served from.
type Config struct {
	Jobs    *jobs.Service
	Media   *media.Service
	APIKeys *apikeys.Service
	Objects storage.ObjectStore

	// Sessions and Resolver authenticate dashboard requests.
	Sessions auth.SessionAuthenticator
	Resolver auth.SessionResolver

	// WorkerSecret is the bearer token the inference worker presents.
	WorkerSecret string

	Version string
}

// Server wraps the route groups and their authentication.
type Server struct {
	dashboard *DashboardServer
	apiKeys   *APIKeyServer
	public    *PublicAPIServer
	worker    *WorkerServer

	requireSession func(http.Handler) http.Handler
	requireAPIKey  func(http.Handler) http.Handler
	requireWorker  func(http.Handler) http.Handler

	version string
}

// NewServer creates a server from cfg.
func NewServer(cfg Config) *Server {
	return &Server{
		dashboard:      NewDashboardServer(cfg.Jobs, cfg.Media),
		apiKeys:        NewAPIKeyServer(cfg.APIKeys),
		public:         NewPublicAPIServer(cfg.Jobs, cfg.Media),
		worker:         NewWorkerServer(cfg.Jobs, cfg.Objects),
		requireSession: auth.RequireSession(cfg.Sessions, cfg.Resolver),
		requireAPIKey:  auth.RequireAPIKey(cfg.APIKeys),
		requireWorker:  auth.RequireWorkerSecret(cfg.WorkerSecret),
		version:        cfg.Version,
	}
}

// Handler returns the HTTP handler for every route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		apihttp.WriteJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
	})

	session := func(h http.HandlerFunc) http.Handler { return s.requireSession(h) }
	mux.Handle("POST /api/media/upload-url", session(s.dashboard.CreateUploadURL))
	mux.Handle("POST /api/jobs/analyze", session(s.dashboard.Analyze))
	mux.Handle("GET /api/jobs", session(s.dashboard.ListJobs))
	mux.Handle("GET /api/jobs/{jobId}", session(s.dashboard.GetJob))
	mux.Handle("GET /api/dashboard/stats", session(s.dashboard.Stats))
	mux.Handle("GET /api/me", session(s.dashboard.Me))
	mux.Handle("GET /api/api-keys", session(s.apiKeys.List))
	mux.Handle("POST /api/api-keys", session(s.apiKeys.Create))
	mux.Handle("DELETE /api/api-keys", session(s.apiKeys.Delete))

	mux.Handle("POST /api/v1/analyze", s.requireAPIKey(http.HandlerFunc(s.public.Analyze)))
	mux.Handle("GET /api/v1/jobs/{jobId}", s.requireAPIKey(http.HandlerFunc(s.public.GetJob)))

	mux.Handle("POST /api/worker/job-update", s.requireWorker(http.HandlerFunc(s.worker.JobUpdate)))
	mux.Handle("POST /api/worker/signed-download", s.requireWorker(http.HandlerFunc(s.worker.SignedDownload)))

	return mux
}

// writeBodyError answers a DecodeJSON failure with 400 and the per-field details when there are any.
func writeBodyError(w http.ResponseWriter, r *http.Request, err error, code string) {
	var ve *apihttp.ValidationError
	if errors.As(err, &ve) {
		apihttp.WriteJSON(w, r, http.StatusBadRequest, map[string]any{"error": code, "details": ve.Fields})
		return
	}
	if errors.Is(err, apihttp.ErrInvalidJSON) {
		apihttp.WriteJSON(w, r, http.StatusBadRequest, map[string]any{
			"error":   code,
			"details": map[string]string{"body": err.Error()},
		})
		return
	}
	writeInternalError(w, r, err, "Failed to decode request body")
}

func writeInternalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	zerolog.Ctx(r.Context()).Error().Err(err).Msg(msg)
	apihttp.WriteError(w, r, http.StatusInternalServerError, "internal-error")
}
