package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/devlink/apiserver/config"
	"github.com/devlink/apiserver/internal/auth"
	"github.com/devlink/apiserver/internal/db"
	"github.com/devlink/apiserver/internal/events"
	"github.com/devlink/apiserver/internal/github"
	"github.com/devlink/apiserver/internal/handlers"
	"github.com/devlink/apiserver/internal/logger"
	"github.com/devlink/apiserver/internal/metrics"
	"github.com/devlink/apiserver/internal/mq"
	"github.com/devlink/apiserver/internal/services"
	"github.com/devlink/apiserver/internal/storage"
	"github.com/devlink/apiserver/internal/store"
	"github.com/devlink/apiserver/internal/store/memory"
)

// Options tune how New assembles the server.
type Options struct {
	// InMemory keeps all data in process memory instead of Postgres.
	InMemory bool
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	logger     *slog.Logger
	closeOnce  sync.Once
}

// Dependencies are the collaborators the router is built from.
type Dependencies struct {
	Users          *services.UserService
	Profiles       *services.ProfileService
	Posts          *services.PostService
	Accounts       *services.AccountService
	Verifier       handlers.TokenVerifier
	Metrics        *metrics.Collector
	Gatherer       prometheus.Gatherer
	AvatarsEnabled bool
	CORSOrigins    []string
	Logger         *slog.Logger
}

type repositories struct {
	users    services.UserRepository
	profiles services.ProfileRepository
	posts    services.PostRepository
	accounts services.AccountRepository
}

// New wires configuration, storage backends and services into a Server.
func New(ctx context.Context, cfg config.Config, log *slog.Logger, opts Options) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := auth.NewCodec(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	srv := &Server{logger: log}
	var repos repositories
	if opts.InMemory {
		mem := memory.New()
		repos = repositories{
			users:    mem.Users(),
			profiles: mem.Profiles(),
			posts:    mem.Posts(),
			accounts: mem.Accounts(),
		}
		log.Warn("using in-memory store; data is lost on exit")
	} else {
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		srv.db = dbConn
		repos = repositories{
			users:    store.NewUserRepository(dbConn),
			profiles: store.NewProfileRepository(dbConn),
			posts:    store.NewPostRepository(dbConn),
			accounts: store.NewAccountRepository(dbConn),
		}
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		srv.close()
		return nil, err
	}
	var avatars services.AvatarStore
	if objects != nil {
		avatars = objects
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		srv.close()
		return nil, err
	}
	srv.queue = queue
	var sender events.Sender
	if queue != nil {
		sender = queue
	}
	publisher := events.NewPublisher(sender, cfg.MQ.Channel, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	repoFinder := github.New(cfg.GitHub, github.WithObserver(collector.RecordGitHubLookup))

	router := NewRouter(Dependencies{
		Users:          services.NewUserService(repos.users, codec, avatars, publisher, log),
		Profiles:       services.NewProfileService(repos.profiles, repoFinder, log),
		Posts:          services.NewPostService(repos.posts, repos.users, publisher, log),
		Accounts:       services.NewAccountService(repos.accounts, avatars, publisher, log),
		Verifier:       codec,
		Metrics:        collector,
		Gatherer:       registry,
		AvatarsEnabled: avatars != nil,
		CORSOrigins:    cfg.CORSOrigins,
		Logger:         log,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 5000
	}

	srv.router = router
	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

// NewRouter registers middleware and every route on a new chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	var recorder handlers.RejectionRecorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}
	authMiddleware := handlers.RequireAuth(deps.Verifier, recorder)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logger.RequestLogger(log),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins: deps.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", handlers.TokenHeader},
			MaxAge:         300,
		}),
	)
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware)
	}

	router.Get("/healthz", handlers.Healthz)
	if deps.Gatherer != nil {
		router.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, deps.Users, authMiddleware, log)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, deps.Users, authMiddleware, deps.AvatarsEnabled, log)
	})
	router.Route("/profile", func(r chi.Router) {
		handlers.ProfileRouter(r, deps.Profiles, deps.Accounts, authMiddleware, log)
	})
	router.Route("/posts", func(r chi.Router) {
		handlers.PostRouter(r, deps.Posts, authMiddleware, log)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the database and queue.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.Close()
	return err
}

// Close releases the database and queue without draining requests. Use it
// when Start failed before serving. It is safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(s.close)
}

func (s *Server) close() {
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			s.logger.Warn("close queue", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("close database", "error", err)
		}
	}
}
