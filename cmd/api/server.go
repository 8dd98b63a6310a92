package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"wealthdash/internal/interfaces/scheduler"
	"wealthdash/internal/shared/config"
	"wealthdash/internal/shared/middleware"
)

// listener is one HTTP server plus how to start it.
type listener struct {
	name  string
	srv   *http.Server
	serve func(*http.Server) error
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Summary and transaction calls wait on the provider, so the write
		// deadline is longer than the read one.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// listeners builds the API server and, with TLS and redirect enabled, the
// plain-HTTP server that sends clients to HTTPS.
func listeners(handler http.Handler, cfg *config.Config) []listener {
	api := listener{
		name: "api",
		srv:  newHTTPServer(cfg.Server.Host+":"+cfg.Server.Port, handler),
		serve: func(s *http.Server) error {
			return s.ListenAndServe()
		},
	}
	if !cfg.TLS.Enabled {
		return []listener{api}
	}

	api.serve = func(s *http.Server) error {
		return s.ListenAndServeTLS(cfg.TLS.CertPath, cfg.TLS.KeyPath)
	}
	ls := []listener{api}
	if cfg.TLS.RedirectHTTP {
		ls = append(ls, listener{
			name:  "https-redirect",
			srv:   newHTTPServer(":80", middleware.HTTPSRedirect(cfg.Server.AllowedHosts)),
			serve: func(s *http.Server) error { return s.ListenAndServe() },
		})
	}
	return ls
}

// serve runs every listener until ctx is cancelled or one of them fails, then
// stops the scheduler before draining the servers so no job starts against a
// closing database.
func serve(ctx context.Context, ls []listener, sched *scheduler.Scheduler, timeout time.Duration, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, l := range ls {
		g.Go(func() error {
			logger.Info("server starting", "server", l.name, "addr", l.srv.Addr)
			if err := l.serve(l.srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", l.name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server shutting down")

		if sched != nil {
			sched.Shutdown(timeout)
		}

		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		var errs []error
		for _, l := range ls {
			if err := l.srv.Shutdown(sctx); err != nil {
				errs = append(errs, fmt.Errorf("failed to shut down %s server: %w", l.name, err))
			}
		}
		return errors.Join(errs...)
	})

	err := g.Wait()
	logger.Info("server stopped")
	return err
}
