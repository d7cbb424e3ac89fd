package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"filippo.io/csrf"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/apikeys"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/auth"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/client"
	apihttp "github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/http"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/identity"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/jobs"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/logger"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/media"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/server"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/storage"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
	memorystore "github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store/memory"
	postgresstore "github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store/postgres"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/telemetry"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/worker"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

type ServerCmd struct {
	// Server configuration
	Listen  string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"VIDEOINSIGHT_LISTEN"`
	Cert    string `help:"path to TLS cert file, serves plain HTTP when empty" default:"" env:"VIDEOINSIGHT_TLS_CERT"`
	Key     string `help:"path to TLS key file" default:"" env:"VIDEOINSIGHT_TLS_KEY"`
	AppURL  string `help:"public base URL of this service" default:"http://localhost:8080" env:"VIDEOINSIGHT_APP_URL"`
	H2C     bool   `help:"accept cleartext HTTP/2, for running behind a proxy" default:"false" env:"VIDEOINSIGHT_H2C"`
	Tracing bool   `help:"enable tracing" default:"false" env:"VIDEOINSIGHT_TRACING"`

	TrustProxy      bool          `help:"trust X-Forwarded-For for client addresses" default:"false" env:"VIDEOINSIGHT_TRUST_PROXY"`
	ShutdownTimeout time.Duration `help:"graceful shutdown timeout" default:"30s" env:"VIDEOINSIGHT_SHUTDOWN_TIMEOUT"`

	// CORS applies to the public and worker APIs, trusted origins to the dashboard API
	CORSOrigins    []string `help:"allowed CORS origins for the public API" default:"*" env:"VIDEOINSIGHT_CORS_ORIGINS"`
	TrustedOrigins []string `help:"dashboard origins allowed to make cross-origin requests" default:"" env:"VIDEOINSIGHT_TRUSTED_ORIGINS"`

	APIKeyPepper  string `help:"secret mixed into API key hashes" env:"VIDEOINSIGHT_API_KEY_PEPPER" required:""`
	MaxMediaBytes int64  `help:"largest video accepted by the public API in bytes" default:"524288000" env:"VIDEOINSIGHT_MAX_MEDIA_BYTES"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"VIDEOINSIGHT_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
	Storage       StorageFlags       `embed:"" prefix:"storage-"`
	Worker        WorkerFlags        `embed:"" prefix:"worker-"`
	Clerk         ClerkFlags         `embed:"" prefix:"clerk-"`
}

type PostgresStoreFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns         int32         `help:"maximum number of connections in pool" default:"20" env:"VIDEOINSIGHT_POSTGRES_MAX_CONNS"`
	MinConns         int32         `help:"minimum number of connections in pool" default:"2" env:"VIDEOINSIGHT_POSTGRES_MIN_CONNS"`
	MaxConnLifetime  time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime  time.Duration `help:"maximum connection idle time" default:"15m"`
	StatementTimeout time.Duration `help:"server-side statement timeout, negative disables it" default:"5s" env:"VIDEOINSIGHT_POSTGRES_STATEMENT_TIMEOUT"`

	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"VIDEOINSIGHT_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (s *PostgresStoreFlags) poolConfig() *postgresstore.PoolConfig {
	return &postgresstore.PoolConfig{
		ConnString:       s.ConnString,
		MaxConns:         s.MaxConns,
		MinConns:         s.MinConns,
		MaxConnLifetime:  s.MaxConnLifetime,
		MaxConnIdleTime:  s.MaxConnIdleTime,
		StatementTimeout: s.StatementTimeout,
	}
}

type StorageFlags struct {
	Type   string `help:"object storage backend (supabase, s3 or memory)" default:"supabase" env:"VIDEOINSIGHT_STORAGE_TYPE" enum:"supabase,s3,memory"`
	Bucket string `help:"bucket holding uploads and results" default:"media" env:"VIDEOINSIGHT_STORAGE_BUCKET"`

	SupabaseURL        string `help:"Supabase project URL" env:"SUPABASE_URL"`
	SupabaseServiceKey string `help:"Supabase service role key" env:"SUPABASE_SERVICE_ROLE_KEY"`

	S3Region          string `help:"S3 region" default:"us-east-1" env:"AWS_REGION"`
	S3EndpointURL     string `help:"S3 endpoint override for S3-compatible services" default:"" env:"VIDEOINSIGHT_S3_ENDPOINT_URL"`
	S3AccessKeyID     string `help:"S3 access key, uses the default credential chain when empty" env:"VIDEOINSIGHT_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `help:"S3 secret key" env:"VIDEOINSIGHT_S3_SECRET_ACCESS_KEY"`
}

func (s *StorageFlags) Validate() error {
	if s.Type == "supabase" && (s.SupabaseURL == "" || s.SupabaseServiceKey == "") {
		return errors.New("supabase storage requires --storage-supabase-url and --storage-supabase-service-key")
	}
	return nil
}

func (s *StorageFlags) open(ctx context.Context) (storage.ObjectStore, error) {
	switch s.Type {
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          s.Bucket,
			Region:          s.S3Region,
			BaseEndpoint:    s.S3EndpointURL,
			AccessKeyID:     s.S3AccessKeyID,
			SecretAccessKey: s.S3SecretAccessKey,
		})
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return storage.NewSupabaseStore(storage.SupabaseConfig{
			URL:            s.SupabaseURL,
			ServiceRoleKey: s.SupabaseServiceKey,
			Bucket:         s.Bucket,
		})
	}
}

type WorkerFlags struct {
	URL         string        `help:"inference worker base URL, jobs fail with CONFIG_ERROR when empty" default:"" env:"MODAL_WORKER_URL"`
	Token       string        `help:"bearer token sent to the worker" default:"" env:"MODAL_WORKER_TOKEN"`
	Secret      string        `help:"shared secret the worker presents on callbacks" env:"WORKER_SHARED_SECRET" required:""`
	CallbackURL string        `help:"base URL the worker calls back on, defaults to --app-url" default:"" env:"VIDEOINSIGHT_CALLBACK_BASE_URL"`
	Timeout     time.Duration `help:"timeout for a single worker notification" default:"15s" env:"VIDEOINSIGHT_WORKER_TIMEOUT"`
}

type ClerkFlags struct {
	Issuer            string        `help:"identity provider issuer (frontend API URL)" env:"CLERK_ISSUER" required:""`
	JWKSURL           string        `help:"JWKS URL, defaults to {issuer}/.well-known/jwks.json" default:"" env:"CLERK_JWKS_URL"`
	AuthorizedParties []string      `help:"allowed azp claims" default:"" env:"CLERK_AUTHORIZED_PARTIES"`
	SecretKey         string        `help:"backend API secret key for profile lookups" default:"" env:"CLERK_SECRET_KEY"`
	APIURL            string        `help:"backend API URL" default:"https://api.clerk.com" env:"CLERK_API_URL"`
	JWKSCacheDir      string        `help:"directory for the on-disk JWKS HTTP cache, in memory when empty" default:"" env:"VIDEOINSIGHT_JWKS_CACHE_DIR"`
	JWKSTTL           time.Duration `help:"how long fetched signing keys are trusted" default:"1h" env:"VIDEOINSIGHT_JWKS_TTL"`
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "videoinsight-server",
			Version:     globals.Version,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	var stores *store.Stores

	switch c.StoreType {
	case "postgres":
		if err := c.PostgresStore.Validate(); err != nil {
			return err
		}
		pool, err := postgresstore.NewPool(ctx, c.PostgresStore.poolConfig())
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		if c.PostgresStore.AutoMigrate {
			applied, err := postgresstore.RunMigrations(ctx, pool)
			if err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Int("applied", applied).Msg("Database migrations completed")
		}

		stores = postgresstore.NewStores(pool)
		log.Info().Msg("Using PostgreSQL stores with shared connection pool")

	default:
		stores = memorystore.NewStores()
		log.Warn().Msg("Using in-memory stores, data is lost on restart")
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}
	objects, err := c.Storage.open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open object storage: %w", err)
	}
	log.Info().Str("type", c.Storage.Type).Str("bucket", c.Storage.Bucket).Msg("Object storage ready")

	hasher, err := auth.NewKeyHasher(c.APIKeyPepper)
	if err != nil {
		return fmt.Errorf("failed to create API key hasher: %w", err)
	}

	keys := auth.NewJWKSCache(client.NewCachingHTTPClient(c.Clerk.JWKSCacheDir), c.Clerk.JWKSTTL)
	sessions, err := auth.NewSessionVerifier(auth.SessionVerifierConfig{
		Issuer:            c.Clerk.Issuer,
		JWKSURL:           c.Clerk.JWKSURL,
		AuthorizedParties: nonEmpty(c.Clerk.AuthorizedParties),
	}, keys)
	if err != nil {
		return fmt.Errorf("failed to create session verifier: %w", err)
	}

	var profiles identity.ProfileFetcher
	if c.Clerk.SecretKey != "" {
		clerk, err := identity.NewClerkClient(c.Clerk.APIURL, c.Clerk.SecretKey, nil)
		if err != nil {
			return fmt.Errorf("failed to create identity provider client: %w", err)
		}
		profiles = clerk
	} else {
		log.Warn().Msg("No identity provider secret key, users must carry an email claim on first login")
	}

	callbackURL := c.Worker.CallbackURL
	if callbackURL == "" {
		callbackURL = c.AppURL
	}
	notifier := worker.NewNotifier(worker.Config{
		URL:             c.Worker.URL,
		Token:           c.Worker.Token,
		CallbackBaseURL: callbackURL,
		Timeout:         c.Worker.Timeout,
	}, nil)
	if !notifier.Configured() {
		log.Warn().Msg("Worker URL not configured, new jobs will fail with CONFIG_ERROR")
	}

	jobService := jobs.NewService(jobs.Config{
		Jobs:          stores.Jobs,
		Assets:        stores.MediaAssets,
		Objects:       objects,
		Notifier:      notifier,
		Webhooks:      worker.NewWebhookSender(nil),
		NotifyTimeout: c.Worker.Timeout,
	})

	srv := server.NewServer(server.Config{
		Jobs: jobService,
		Media: media.NewService(media.Config{
			Assets:   stores.MediaAssets,
			Objects:  objects,
			MaxBytes: c.MaxMediaBytes,
		}),
		APIKeys:      apikeys.NewService(stores, hasher),
		Objects:      objects,
		Sessions:     sessions,
		Resolver:     identity.NewResolver(stores, profiles),
		WorkerSecret: c.Worker.Secret,
		Version:      globals.Version,
	})

	handler, err := c.buildHandler(srv.Handler())
	if err != nil {
		return err
	}

	clientIP := apihttp.ClientIPResolver{TrustProxy: c.TrustProxy}
	handler = clientIP.Middleware(logger.RequestLogger(log, clientIP.ClientIP)(handler))

	if c.Tracing {
		handler = otelhttp.NewHandler(handler, "videoinsight-server")
	}
	if c.H2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	httpServer := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		if c.Cert != "" || c.Key != "" {
			if err := checkTLSFiles(c.Cert, c.Key); err != nil {
				errCh <- err
				return
			}
			log.Info().Str("addr", c.Listen).Msg("Starting HTTPS server")
			errCh <- httpServer.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		log.Info().Str("addr", c.Listen).Bool("h2c", c.H2C).Msg("Starting HTTP server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown HTTP server")
	}
	if err := jobService.Drain(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Worker notifications still in flight at shutdown")
	}

	log.Info().Msg("Server stopped")
	return nil
}

// buildHandler wraps the routes with compression and, depending on the
// route, CORS or cross-origin request protection.
func (c *ServerCmd) buildHandler(routes http.Handler) (http.Handler, error) {
	protection := csrf.New()
	for _, origin := range nonEmpty(c.TrustedOrigins) {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("invalid trusted origin %q: %w", origin, err)
		}
	}

	api := withCORS(c.CORSOrigins, routes)
	dashboard := protection.Handler(routes)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAPIRoute(r.URL.Path) {
			api.ServeHTTP(w, r)
		} else {
			dashboard.ServeHTTP(w, r)
		}
	})

	return gzhttp.GzipHandler(handler), nil
}

// isAPIRoute returns true if the path is called by non-browser clients and
// gets CORS instead of cross-origin protection.
func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/api/v1/") ||
		strings.HasPrefix(path, "/api/worker/") ||
		path == "/health"
}

func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return middleware.Handler(h)
}

func checkTLSFiles(cert, key string) error {
	if cert == "" || key == "" {
		return errors.New("TLS certificate and key must be set together (--cert and --key)")
	}
	if _, err := os.Stat(cert); err != nil {
		return fmt.Errorf("TLS certificate not found at %s: %w", cert, err)
	}
	if _, err := os.Stat(key); err != nil {
		return fmt.Errorf("TLS key not found at %s: %w", key, err)
	}
	return nil
}

// nonEmpty drops blank entries kong produces from an empty default.
func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
