// Package server exposes a repository's refs, Merkle tree, version
// store, and workspaces over the node/chunk wire protocol
// internal/sync.Client speaks, plus the workspace and data-frame
// endpoints a direct API consumer (the web UI, a notebook) drives.
// Grounded on the teacher's internal/server/server.go (ServerOptions,
// ServerStats, the Configure/Init/Start/Stop lifecycle, TLS cert/key
// fields, the request-logging middleware), with http.ServeMux replaced
// by chi.Router for the path-parameter-heavy endpoint table and a
// per-repository registry of wired repository.Handle values replacing
// the teacher's bare filesystem-path repo lookup.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/oxen-go/oxen/core"
	"github.com/oxen-go/oxen/internal/repository"
	"github.com/oxen-go/oxen/internal/webhook"
	"github.com/oxen-go/oxen/internal/workspace"
)

const (
	DefaultPort        = 8080
	DefaultHost        = "0.0.0.0"
	DefaultReposDir    = "./repositories"
	DefaultAuthEnabled = false

	ReadTimeout  = 30 * time.Second
	WriteTimeout = 60 * time.Second

	workspacesSubdir = "workspaces"
)

// Options configures a Server.
type Options struct {
	Port        int
	Host        string
	ReposDir    string
	AuthEnabled bool
	JWTSecret   []byte
	Verbose     bool
	TLSCertFile string
	TLSKeyFile  string
	Webhooks    []string
}

// Stats are the counters exposed alongside the prometheus metrics for
// a quick human-readable health check.
type Stats struct {
	mu              sync.Mutex
	StartTime       time.Time
	RequestsHandled int64
	ActiveRequests  int
}

func (s *Stats) requestStarted() {
	s.mu.Lock()
	s.RequestsHandled++
	s.ActiveRequests++
	s.mu.Unlock()
}

func (s *Stats) requestFinished() {
	s.mu.Lock()
	s.ActiveRequests--
	s.mu.Unlock()
}

// repoEntry is one repository's wired subsystems plus its workspace
// manager, opened lazily on first request and kept open for the
// life of the process (nodedb.DB holds an exclusive bbolt file lock,
// so reopening per-request isn't an option).
type repoEntry struct {
	handle    *repository.Handle
	workspace *workspace.Manager
}

// Server is the HTTP front door for zero or more repositories rooted
// under Options.ReposDir.
type Server struct {
	Options Options
	Stats   Stats
	Hooks   *webhook.Dispatcher
	log     *zap.Logger

	router chi.Router
	http   *http.Server

	mu    sync.RWMutex
	repos map[string]*repoEntry
}

// New builds a Server with the given options, defaulting anything left
// zero.
func New(opts Options, logger *zap.Logger) *Server {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.ReposDir == "" {
		opts.ReposDir = DefaultReposDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		Options: opts,
		Stats:   Stats{StartTime: time.Now()},
		Hooks:   webhook.NewDispatcher(opts.Webhooks, logger),
		log:     logger,
		repos:   make(map[string]*repoEntry),
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the server's router, for embedding behind a test
// server or a reverse proxy without going through Init/Start.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Init creates the repositories root directory and the underlying
// http.Server.
func (s *Server) Init() error {
	if err := os.MkdirAll(s.Options.ReposDir, 0755); err != nil {
		return fmt.Errorf("server: create repositories directory: %w", err)
	}
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.Options.Host, s.Options.Port),
		Handler:      s.router,
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
	}
	return nil
}

// Start blocks serving HTTP (or HTTPS, if TLS cert/key are set) until
// Stop shuts the server down.
func (s *Server) Start() error {
	s.log.Info("server starting",
		zap.String("host", s.Options.Host),
		zap.Int("port", s.Options.Port),
		zap.String("repos_dir", s.Options.ReposDir),
		zap.Bool("auth_enabled", s.Options.AuthEnabled),
	)

	var err error
	if s.Options.TLSCertFile != "" && s.Options.TLSKeyFile != "" {
		err = s.http.ListenAndServeTLS(s.Options.TLSCertFile, s.Options.TLSKeyFile)
	} else {
		err = s.http.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down, then closes every repository
// handle opened during its lifetime.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("server shutting down")
	err := s.http.Shutdown(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, entry := range s.repos {
		if cerr := entry.handle.Close(); cerr != nil {
			s.log.Warn("close repository handle", zap.String("repo", name), zap.Error(cerr))
		}
	}
	s.repos = make(map[string]*repoEntry)
	return err
}

// repoPath resolves a namespace/name pair to its directory under
// Options.ReposDir.
func (s *Server) repoPath(ns, name string) string {
	return filepath.Join(s.Options.ReposDir, ns, name)
}

// openRepo returns the cached repoEntry for ns/name, opening and
// wiring it on first access. CreateRepo endpoints call createRepo
// instead, which also registers the new entry.
func (s *Server) openRepo(ns, name string) (*repoEntry, error) {
	key := ns + "/" + name

	s.mu.RLock()
	entry, ok := s.repos[key]
	s.mu.RUnlock()
	if ok {
		return entry, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.repos[key]; ok {
		return entry, nil
	}

	dir := s.repoPath(ns, name)
	repo := core.NewRepository(dir)
	if !core.FileExists(repo.MetaDir) {
		return nil, fmt.Errorf("repository %s: not found", key)
	}
	handle, err := repository.Open(repo)
	if err != nil {
		return nil, err
	}
	wsDataDir := filepath.Join(repo.MetaDir, workspacesSubdir)
	mgr := workspace.NewManager(handle.VersionStore, handle.Tree, handle.Writer, handle.WriterConfig, wsDataDir)

	entry = &repoEntry{handle: handle, workspace: mgr}
	s.repos[key] = entry
	return entry, nil
}

// createRepo initializes a new repository under ReposDir and registers
// it, failing if ns/name already exists.
func (s *Server) createRepo(ns, name string, bare bool) (*repoEntry, error) {
	key := ns + "/" + name
	dir := s.repoPath(ns, name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.repos[key]; ok {
		return nil, fmt.Errorf("repository %s: already exists", key)
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return nil, fmt.Errorf("server: create %s: %w", filepath.Dir(dir), err)
	}

	var handle *repository.Handle
	var err error
	if bare {
		handle, err = repository.CreateBareRepo(dir)
	} else {
		handle, err = repository.CreateRepo(dir)
	}
	if err != nil {
		return nil, err
	}

	wsDataDir := filepath.Join(handle.Repo.MetaDir, workspacesSubdir)
	mgr := workspace.NewManager(handle.VersionStore, handle.Tree, handle.Writer, handle.WriterConfig, wsDataDir)
	entry := &repoEntry{handle: handle, workspace: mgr}
	s.repos[key] = entry
	return entry, nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.statsMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "HEAD"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Handle("/metrics", metricsHandler())
	r.Post("/repos", s.handleCreateRepo)

	r.Route("/repos/{ns}/{name}", func(r chi.Router) {
		r.Use(s.authMiddleware)
		s.mountRepoRoutes(r)
	})

	r.Post("/action/started/{action}", s.handleActionStarted)
	r.Post("/action/completed/{action}", s.handleActionCompleted)

	return r
}
