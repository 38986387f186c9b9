package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/c360studio/semprompt/config"
	"github.com/c360studio/semprompt/enhance"
	"github.com/c360studio/semprompt/llm"
	"github.com/c360studio/semprompt/natsapi"
	"github.com/c360studio/semprompt/preset"
	"github.com/c360studio/semprompt/web"
	"github.com/c360studio/semprompt/webcontext"
)

// App is the serving mode: it wires the enhancement pipeline to the HTTP
// surfaces and, when enabled, the NATS responder.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	enhancer *enhance.Enhancer
	presets  *preset.Store
	webctx   *webcontext.Service

	httpServer *http.Server
	httpErr    chan error
	watcher    *preset.Watcher
	responder  *natsapi.Responder
}

// NewApp creates the application from configuration. Nothing is started
// until Start is called.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}

	client := llm.NewClient(
		llm.WithTimeout(cfg.Model.Timeout),
		llm.WithLogger(logger.With("component", "llm")),
	)

	enhancer := enhance.NewEnhancer(client, enhance.Config{
		Provider:     cfg.Model.Provider,
		Endpoint:     cfg.Model.Endpoint,
		DefaultModel: cfg.Model.Default,
		ModelOptions: cfg.Model.Options,
		Temperature:  cfg.Model.Temperature,
		MaxTokens:    cfg.Model.MaxTokens,
	}, logger.With("component", "enhance"))

	presets := preset.NewStore(cfg.Presets.Paths, logger.With("component", "preset"))

	webctx := webcontext.NewService(webcontext.Options{
		Logger: logger.With("component", "webcontext"),
	})

	return &App{
		cfg:      cfg,
		logger:   logger,
		enhancer: enhancer,
		presets:  presets,
		webctx:   webctx,
	}
}

// Start loads presets, begins serving HTTP, and subscribes on NATS when
// enabled. The context bounds in-flight request handling; cancel it
// before Shutdown.
func (a *App) Start(ctx context.Context) error {
	if err := a.presets.Load(); err != nil {
		return fmt.Errorf("load presets: %w", err)
	}
	a.logger.Info("Presets loaded", "count", a.presets.Count())

	if a.cfg.Presets.Watch && len(a.cfg.Presets.Paths) > 0 {
		watcher, err := preset.NewWatcher(a.presets, preset.WatcherConfig{
			Logger: a.logger.With("component", "preset-watcher"),
		})
		if err != nil {
			return fmt.Errorf("create preset watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			a.logger.Warn("Preset watching disabled", "error", err)
			_ = watcher.Stop()
		} else {
			a.watcher = watcher
		}
	}

	server := web.NewServer(web.Options{
		Enhancer:     a.enhancer,
		Presets:      a.presets,
		WebContext:   a.webctx,
		Provider:     a.cfg.Model.Provider,
		ModelOptions: a.cfg.Model.Options,
		DefaultModel: a.cfg.Model.Default,
		Temperature:  a.cfg.Model.Temperature,
		MaxBodyBytes: a.cfg.Server.MaxBodyBytes,
		Logger:       a.logger.With("component", "web"),
	})

	a.httpServer = &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	a.httpErr = make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", "addr", a.cfg.Server.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.httpErr <- err
		}
		close(a.httpErr)
	}()

	if a.cfg.NATS.Enabled {
		responder := natsapi.NewResponder(natsapi.Options{
			URL:        a.cfg.NATS.URL,
			Subject:    a.cfg.NATS.Subject,
			Enhancer:   a.enhancer,
			Presets:    a.presets,
			WebContext: a.webctx,
			Provider:   a.cfg.Model.Provider,
			Timeout:    a.cfg.Model.Timeout,
			Logger:     a.logger.With("component", "natsapi"),
		})
		if err := responder.Start(ctx); err != nil {
			a.stopHTTP(5 * time.Second)
			return fmt.Errorf("start NATS responder: %w", err)
		}
		a.responder = responder
	}

	return nil
}

// Err reports a failed HTTP listen. The channel closes when the server
// exits.
func (a *App) Err() <-chan error {
	return a.httpErr
}

// Shutdown stops the surfaces in reverse start order, waiting up to
// timeout for in-flight requests.
func (a *App) Shutdown(timeout time.Duration) {
	if a.responder != nil {
		a.responder.Stop()
		a.responder = nil
	}

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("Failed to stop preset watcher", "error", err)
		}
		a.watcher = nil
	}

	a.stopHTTP(timeout)
}

func (a *App) stopHTTP(timeout time.Duration) {
	if a.httpServer == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown incomplete", "error", err)
	}
	a.httpServer = nil
}
