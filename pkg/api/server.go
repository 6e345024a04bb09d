package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/spkrepo/pkg/async"
	"github.com/platinummonkey/spkrepo/pkg/auth"
	"github.com/platinummonkey/spkrepo/pkg/httputil"
	"github.com/platinummonkey/spkrepo/pkg/middleware"
	"github.com/platinummonkey/spkrepo/pkg/observability"
	"github.com/platinummonkey/spkrepo/pkg/storage"
)

// Config holds the HTTP level settings of the API
type Config struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	AllowedOrigins []string
	// TrustedProxies are believed when they forward a client address
	TrustedProxies *auth.TrustedProxies

	// Download recording
	DownloadWorkers   int
	DownloadQueueSize int
	DownloadTimeout   time.Duration
}

// Dependencies are the collaborators of the API server. Store, Auth and
// Issuer are required; the rest may be nil.
type Dependencies struct {
	Store   *storage.Store
	Auth    *auth.Service
	Issuer  *auth.TokenIssuer
	GitHub  *auth.GitHubLinker
	Links   storage.LinkResolver
	Limiter middleware.Limiter
	Metrics *observability.Metrics
	OTel    *observability.OTelMetrics
	Logger  logrus.FieldLogger
}

// Server represents our API server
type Server struct {
	cfg       Config
	store     *storage.Store
	auth      *auth.Service
	issuer    *auth.TokenIssuer
	github    *auth.GitHubLinker
	links     storage.LinkResolver
	metrics   *observability.Metrics
	otel      *observability.OTelMetrics
	audit     *auth.AuditLogger
	logger    logrus.FieldLogger
	router    *mux.Router
	authn     *middleware.Authenticator
	rateLimit *middleware.RateLimitMiddleware
	downloads *async.WorkerPool
	// stopRecorder ends the download recorder once Close has drained it
	stopRecorder context.CancelFunc
}

// NewServer creates the API server and starts the download recorder. The
// recorder keeps the values of ctx but not its cancellation: it runs until
// Close drains it, so events accepted while the HTTP server shuts down are
// still written.
func NewServer(ctx context.Context, deps Dependencies, cfg Config) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = middleware.NewLocalRateLimiter(middleware.DefaultRateLimitConfig())
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 5 * time.Second
	}
	recorderCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))

	s := &Server{
		cfg:     cfg,
		store:   deps.Store,
		auth:    deps.Auth,
		issuer:  deps.Issuer,
		github:  deps.GitHub,
		links:   deps.Links,
		metrics: deps.Metrics,
		otel:    deps.OTel,
		audit:   auth.NewAuditLogger(logger, cfg.TrustedProxies),
		logger:  logger,
		router:  mux.NewRouter(),
		downloads: async.NewWorkerPool(recorderCtx, cfg.DownloadWorkers, cfg.DownloadQueueSize,
			"download recorder", cfg.DownloadTimeout),
		stopRecorder: stopRecorder,
	}
	s.authn = middleware.NewAuthenticator(deps.Issuer, s, logger)
	s.rateLimit = middleware.NewRateLimitMiddleware(limiter, cfg.TrustedProxies, logger)

	s.setupRoutes()
	go s.logDownloadErrors(recorderCtx)
	return s
}

// logDownloadErrors reports download events that could not be written
func (s *Server) logDownloadErrors(ctx context.Context) {
	for {
		select {
		case err := <-s.downloads.Errors():
			s.logger.WithError(err).Error("failed to record download")
		case <-ctx.Done():
			for {
				select {
				case err := <-s.downloads.Errors():
					s.logger.WithError(err).Error("failed to record download")
				default:
					return
				}
			}
		}
	}
}

// setupRoutes configures all the API routes. Every route is served under
// /v1 and unprefixed.
func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteStatus(w, http.StatusNotFound)
	})

	s.registerRoutes(s.router.PathPrefix("/v1").Subrouter())
	s.registerRoutes(s.router)
}

func (s *Server) registerRoutes(r *mux.Router) {
	authed := s.authn.Handler
	admin := httputil.Chain(s.authn.Handler, middleware.RequireRole(auth.RoleAdmin))
	limited := s.rateLimit.Handler

	// Catalog
	r.HandleFunc("/architecture", s.listArchitectures).Methods(http.MethodGet)
	r.Handle("/architecture", admin(http.HandlerFunc(s.createArchitecture))).Methods(http.MethodPost)
	r.Handle("/architecture", admin(http.HandlerFunc(s.deleteArchitecture))).Methods(http.MethodDelete)
	r.HandleFunc("/build", s.listBuilds).Methods(http.MethodGet)
	r.HandleFunc("/firmware", s.listFirmware).Methods(http.MethodGet)
	r.HandleFunc("/screenshot", s.listScreenshots).Methods(http.MethodGet)
	r.HandleFunc("/package", s.listPackages).Methods(http.MethodGet)
	r.HandleFunc("/package/name", s.listPackageNames).Methods(http.MethodGet)
	r.HandleFunc("/package/{id:[0-9]+}/screenshot", s.packageScreenshots).Methods(http.MethodGet)
	r.HandleFunc("/package/{id:[0-9]+}/version", s.packageVersions).Methods(http.MethodGet)
	r.HandleFunc("/package/{id:[0-9]+}/maintainer", s.packageMaintainers).Methods(http.MethodGet)
	r.HandleFunc("/version/{id:[0-9]+}/icon", s.versionIcons).Methods(http.MethodGet)
	r.HandleFunc("/version/{id:[0-9]+}/service", s.versionServices).Methods(http.MethodGet)
	r.HandleFunc("/language", s.listLanguages).Methods(http.MethodGet)
	r.HandleFunc("/service", s.listServices).Methods(http.MethodGet)
	r.Handle("/role", admin(http.HandlerFunc(s.listRoles))).Methods(http.MethodGet)

	// Users
	r.Handle("/user", admin(http.HandlerFunc(s.listUsers))).Methods(http.MethodGet)
	r.Handle("/user", admin(http.HandlerFunc(s.deleteUser))).Methods(http.MethodDelete)
	r.Handle("/user/apikey", authed(http.HandlerFunc(s.rotateAPIKey))).Methods(http.MethodPost)
	r.Handle("/me", authed(http.HandlerFunc(s.me))).Methods(http.MethodGet)

	// Authentication
	r.Handle("/login", limited(http.HandlerFunc(s.login))).Methods(http.MethodPost)
	r.Handle("/password/forgot", limited(http.HandlerFunc(s.forgotPassword))).Methods(http.MethodPost)
	r.Handle("/password/reset", limited(http.HandlerFunc(s.resetPassword))).Methods(http.MethodPost)
	r.Handle("/auth/github/login", authed(http.HandlerFunc(s.githubLogin))).Methods(http.MethodGet)
	r.Handle("/auth/github/callback", authed(http.HandlerFunc(s.githubCallback))).Methods(http.MethodGet)

	// Downloads
	r.HandleFunc("/download/{build_id:[0-9]+}", s.download).Methods(http.MethodGet)
	r.Handle("/download", admin(http.HandlerFunc(s.listDownloads))).Methods(http.MethodGet)
}

// Handler returns the router wrapped in the request middleware chain and
// OpenTelemetry instrumentation.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	if s.cfg.MaxBodyBytes > 0 {
		h = httputil.MaxBytesMiddleware(s.cfg.MaxBodyBytes)(h)
	}
	if s.cfg.RequestTimeout > 0 {
		h = httputil.TimeoutMiddleware(s.cfg.RequestTimeout)(h)
	}
	if len(s.cfg.AllowedOrigins) > 0 {
		h = httputil.CORSMiddleware(s.cfg.AllowedOrigins)(h)
	}
	h = httputil.Chain(
		httputil.RecoveryMiddleware(s.logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
	)(h)
	return otelhttp.NewHandler(h, "spkrepo")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the router for route inspection
func (s *Server) Router() *mux.Router {
	return s.router
}

// Close stops accepting download events and waits up to timeout for queued
// ones to be written.
func (s *Server) Close(timeout time.Duration) error {
	err := s.downloads.Shutdown(timeout)
	s.stopRecorder()
	return err
}

// ResolveAPIKey implements middleware.PrincipalResolver
func (s *Server) ResolveAPIKey(ctx context.Context, key string) (*auth.AuthContext, error) {
	sess, err := s.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	user, err := s.auth.ValidateAPIKey(ctx, sess, key)
	if err != nil {
		return nil, err
	}
	roles, err := sess.RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &auth.AuthContext{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    auth.RoleNames(roles),
		Method:   auth.MethodAPIKey,
	}, nil
}

// ResolveSession implements middleware.PrincipalResolver. The user and its
// roles are read again so that deleted, deactivated or demoted users lose
// access before their session token expires.
func (s *Server) ResolveSession(ctx context.Context, userID int64) (*auth.AuthContext, error) {
	sess, err := s.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	user, err := sess.FindActiveUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	roles, err := sess.RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &auth.AuthContext{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    auth.RoleNames(roles),
		Method:   auth.MethodSession,
	}, nil
}
