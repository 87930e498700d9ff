// ABOUTME: Gateway that wires the relay components together and serves them over HTTP
// ABOUTME: Manages listener lifecycle, fatal upstream errors and health endpoints

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/2389/assistant-relay/internal/assistant"
	"github.com/2389/assistant-relay/internal/auth"
	"github.com/2389/assistant-relay/internal/config"
	"github.com/2389/assistant-relay/internal/dedupe"
	"github.com/2389/assistant-relay/internal/event"
	"github.com/2389/assistant-relay/internal/fulfillment"
	"github.com/2389/assistant-relay/internal/metrics"
	"github.com/2389/assistant-relay/internal/profile"
	"github.com/2389/assistant-relay/internal/relay"
	"github.com/2389/assistant-relay/internal/session"
	"github.com/2389/assistant-relay/internal/slack"
	"github.com/2389/assistant-relay/internal/store"
	"github.com/2389/assistant-relay/internal/telemetry"
	"github.com/2389/assistant-relay/internal/threads"
)

// Gateway owns the relay and its HTTP server.
type Gateway struct {
	config     *config.Config
	relay      *relay.Relay
	sessions   *session.Store
	ledger     store.Ledger
	dedupe     *dedupe.Cache
	metrics    *metrics.Metrics
	verifier   auth.TokenVerifier
	httpServer *http.Server
	logger     *slog.Logger

	// fatalCh receives the first upstream misconfiguration; Run exits on it
	fatalCh chan error
	fatal   atomic.Bool

	now func() time.Time
}

// New creates a Gateway from configuration. When slack.bot_id is not
// configured it is resolved with auth.test, so ctx bounds that call.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	httpClient := telemetry.HTTPClient(cfg.Server.UpstreamTimeout)

	slackClient := slack.NewClient(slack.ClientConfig{
		Token:      cfg.Slack.BotToken,
		APIURL:     cfg.Slack.APIURL,
		Username:   cfg.Slack.BotName,
		PostRate:   cfg.Slack.PostRate,
		PostBurst:  cfg.Slack.PostBurst,
		HTTPClient: httpClient,
	}, logger)

	botID := cfg.Slack.BotID
	if botID == "" {
		id, err := slackClient.AuthTest(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving bot user id: %w", err)
		}
		botID = id
		logger.Info("resolved bot user id", "bot_id", botID)
	}

	registry, err := threads.New(cfg.Cache.MaxThreads)
	if err != nil {
		return nil, err
	}
	profiles, err := profile.New(slackClient, cfg.Cache.MaxProfiles, logger)
	if err != nil {
		return nil, err
	}

	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		verifier = v
	}

	// the store and the proxy strategy refer to each other
	var backend assistant.Backend
	sessions := session.New(session.CreatorFunc(func(ctx context.Context) (string, error) {
		return backend.CreateSession(ctx)
	}), session.Options{
		Timeout:  cfg.Sessions.Timeout,
		MaxTurns: cfg.Sessions.MaxTurns,
	}, logger)

	switch cfg.Mode() {
	case config.ModeProxy:
		backend = assistant.NewProxy(assistant.ProxyConfig{
			URL:           cfg.Proxy.URL,
			IntegrationID: cfg.Proxy.IntegrationID,
			Client:        httpClient,
		}, sessions, logger)
	default:
		backend = assistant.NewDirect(assistant.DirectConfig{
			URL:         cfg.Assistant.URL,
			Version:     cfg.Assistant.Version,
			APIKey:      cfg.Assistant.APIKey,
			AssistantID: cfg.Assistant.AssistantID,
			OptOut:      cfg.Assistant.OptOut,
			Client:      httpClient,
		}, logger)
	}
	logger.Info("assistant backend selected", "mode", cfg.Mode())

	var ledger store.Ledger
	if cfg.Database.Path != "" {
		sqlStore, err := store.NewSQLiteStore(cfg.Database.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing ledger: %w", err)
		}
		ledger = sqlStore
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	gw := &Gateway{
		config:   cfg,
		sessions: sessions,
		ledger:   ledger,
		dedupe:   dedupe.New(cfg.Cache.EventTTL, cfg.Cache.MaxEvents),
		metrics:  m,
		verifier: verifier,
		logger:   logger.With("component", "gateway"),
		fatalCh:  make(chan error, 1),
		now:      time.Now,
	}

	gw.relay = relay.New(relay.Deps{
		BotID:      botID,
		Classifier: event.NewClassifier(botID, registry, logger),
		Dedupe:     gw.dedupe,
		Threads:    registry,
		Sessions:   sessions,
		Assistant:  backend,
		Poster:     slackClient,
		Profiles:   profiles,
		Fulfiller:  fulfillment.New(httpClient, logger),
		Ledger:     ledger,
		Metrics:    m,
		Fatal:      gw.reportFatal,
		Logger:     logger,
	})

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// reportFatal records an upstream misconfiguration. Only the first is kept.
func (g *Gateway) reportFatal(err error) {
	if !g.fatal.CompareAndSwap(false, true) {
		return
	}
	g.logger.Error("fatal upstream error, shutting down", "error", err)
	g.fatalCh <- err
}

// startServer serves HTTP in a goroutine, returning the error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// Run serves until ctx is canceled, the server fails, or a fatal upstream
// error is reported. Returns nil only for a canceled context.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return g.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	errCh := g.startServer(ln)

	var runErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		runErr = err
	case err := <-g.fatalCh:
		runErr = fmt.Errorf("assistant upstream unusable: %w", err)
	}

	shutdownErr := g.gracefulShutdown()
	if runErr != nil {
		return runErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.dedupe.Close()
	if g.ledger != nil {
		errs = appendCloseError(errs, "ledger close", g.ledger.Close())
	}

	return errors.Join(errs...)
}

// handleRoot answers the platform's plain liveness probe.
func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Healthy"))
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK unless the upstream is broken or the ledger is unreachable.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if g.fatal.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("assistant upstream misconfigured"))
		return
	}
	if g.ledger != nil {
		if err := g.ledger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("ledger unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d sessions)", g.sessions.Len())
}
