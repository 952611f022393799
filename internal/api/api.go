// Package api provides HTTP handlers and the main API server logic for KissOn.
//
// It exposes RESTful endpoints for kiosk session control, recipe retrieval,
// share delivery, and video status. The API integrates with the session,
// recipe, video, store, and notify modules.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/morgen873/kisson/internal/catalog"
	"github.com/morgen873/kisson/internal/genai"
	"github.com/morgen873/kisson/internal/notify"
	"github.com/morgen873/kisson/internal/profanity"
	"github.com/morgen873/kisson/internal/recipe"
	"github.com/morgen873/kisson/internal/session"
	"github.com/morgen873/kisson/internal/store"
	"github.com/morgen873/kisson/internal/video"
)

// Default configuration constants
const (
	// DefaultAddr is the default API server listen address.
	DefaultAddr = ":8080"
	// DefaultOrigin is the base URL embedded in QR payloads when none is configured.
	DefaultOrigin = "http://localhost:8080"
	// DefaultShutdownTimeout bounds graceful shutdown on SIGTERM.
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr         string
	Origin       string
	VideoBaseURL string
	TwilioSMS    bool
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithOrigin sets the public origin used for recipe share links.
func WithOrigin(origin string) Option {
	return func(o *Opts) { o.Origin = origin }
}

// WithVideoBaseURL sets the external video generation service base URL.
func WithVideoBaseURL(base string) Option {
	return func(o *Opts) { o.VideoBaseURL = base }
}

// WithTwilioSMS enables the SMS share endpoint backed by Twilio.
func WithTwilioSMS() Option {
	return func(o *Opts) { o.TwilioSMS = true }
}

// Server wires the kiosk modules behind HTTP endpoints.
type Server struct {
	addr     string
	origin   string
	sessions *session.Manager
	pipeline *recipe.Pipeline
	videos   *video.Manager
	st       store.Store
	sender   notify.Sender
	filter   *profanity.Filter
	httpSrv  *http.Server
}

// NewServer assembles the module graph from option sets. It is the
// composition root: store, recipe generator, video poller, and session
// manager are constructed here and torn down together.
func NewServer(storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) (*Server, error) {
	cfg := Opts{Addr: DefaultAddr, Origin: DefaultOrigin}
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	st, err := store.NewStore(storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	generator, err := genai.NewClient(genaiOpts...)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize recipe generator: %w", err)
	}

	var pipelineOpts []recipe.PipelineOption
	var videos *video.Manager
	if cfg.VideoBaseURL != "" {
		videos = video.NewManager(video.NewHTTPService(cfg.VideoBaseURL), st)
		pipelineOpts = append(pipelineOpts, recipe.WithVideoStarter(videos))
	}

	var sender notify.Sender
	if cfg.TwilioSMS {
		sender, err = notify.NewClient()
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to initialize SMS sender: %w", err)
		}
	}

	cat := catalog.Default()
	pipeline := recipe.NewPipeline(cat, generator, st, cfg.Origin, pipelineOpts...)
	sessions := session.NewManager(cat,
		session.WithRecordLoader(st),
		session.WithControllerOptions(
			session.WithSubmitter(pipeline),
			session.WithMirror(st),
		),
	)

	s := &Server{
		addr:     cfg.Addr,
		origin:   cfg.Origin,
		sessions: sessions,
		pipeline: pipeline,
		videos:   videos,
		st:       st,
		sender:   sender,
		filter:   profanity.NewFilter(),
	}
	s.httpSrv = &http.Server{Addr: cfg.Addr, Handler: s.routes()}
	return s, nil
}

// routes registers all endpoints on a fresh mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", s.createSessionHandler)
	mux.HandleFunc("GET /sessions/{id}", s.getSessionHandler)
	mux.HandleFunc("POST /sessions/{id}/actions", s.actionHandler)
	mux.HandleFunc("POST /sessions/{id}/media-events", s.mediaEventHandler)
	mux.HandleFunc("GET /recipes/{id}", s.getRecipeHandler)
	mux.HandleFunc("GET /recipes/{id}/label", s.recipeLabelHandler)
	mux.HandleFunc("POST /recipes/{id}/share", s.shareRecipeHandler)
	mux.HandleFunc("GET /recipes/{id}/video", s.videoStatusHandler)
	mux.HandleFunc("GET /healthz", s.healthHandler)
	return mux
}

// Start begins serving HTTP requests. It blocks until the listener fails or
// Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Server.Start: KissOn API listening", "addr", s.addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, stops video pollers, and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Server.Shutdown: stopping KissOn API")
	err := s.httpSrv.Shutdown(ctx)
	if s.videos != nil {
		s.videos.CancelAll()
	}
	if closeErr := s.st.Close(); closeErr != nil {
		slog.Error("Server.Shutdown: failed to close store", "error", closeErr)
		if err == nil {
			err = closeErr
		}
	}
	return err
}

// Run builds a server from the option sets and serves until the process is
// signalled. It is the entry point used by cmd/kisson.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	s, err := NewServer(storeOpts, genaiOpts, apiOpts)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case sig := <-waitForSignal():
		slog.Info("Server.Run: received signal", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return s.Shutdown(ctx)
	}
}

func waitForSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}
