package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"BandPilot/internal/usecase"
	"BandPilot/pkg/config"
	xhttp "BandPilot/pkg/http"
	applogger "BandPilot/pkg/logger"
)

// Warmer prepares the classifiers ahead of the first request.
type Warmer interface {
	Warm(ctx context.Context) error
	Invalidate()
}

var _ Warmer = (*usecase.BandsUseCase)(nil)

// App encapsulates the HTTP application lifecycle.
type App struct {
	cfg        *config.Config
	warmer     Warmer
	httpServer *xhttp.Server
	l          *applogger.Logger
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, warmer Warmer, srv *xhttp.Server, l *applogger.Logger) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, warmer: warmer, httpServer: srv, l: l}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext serves until ctx is done or the listener fails. Classifiers are warmed in
// the background and refreshed every classifier TTL.
func (a *App) RunContext(ctx context.Context) error {
	errs := a.httpServer.Start()

	go a.refresh(ctx)

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case err, ok := <-errs:
		if ok && err != nil {
			runErr = err
		}
	}
	return errors.Join(runErr, a.shutdown())
}

func (a *App) refresh(ctx context.Context) {
	warm := func() {
		start := time.Now()
		if err := a.warmer.Warm(ctx); err != nil {
			if ctx.Err() == nil {
				a.l.Warn("classifier warm-up failed", applogger.Error(err))
			}
			return
		}
		a.l.Info("classifiers ready", applogger.Duration("duration_ms", time.Since(start)))
	}
	warm()

	ttl := a.cfg.Server.ClassifierTTL
	if ttl <= 0 {
		return
	}
	t := time.NewTicker(ttl)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.warmer.Invalidate()
			warm()
		}
	}
}

// shutdown gracefully stops the HTTP server.
func (a *App) shutdown() error {
	a.l.Info("shutting down...")
	if err := a.httpServer.Stop(context.Background()); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		return err
	}
	a.l.Info("shutdown complete")
	return nil
}
