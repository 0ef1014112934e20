package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"webepub/convert"
	"webepub/state"
)

const shutdownTimeout = 15 * time.Second

// Run is "serve" command action. It blocks until context is canceled.
func Run(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	log := env.Log.Named("serve")

	cfg := env.Cfg.Server
	if listen := cmd.String("listen"); listen != "" {
		cfg.Listen = listen
	}

	ex, err := convert.NewExporter(env.Cfg, env.DefaultStyle, env.Log)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", cfg.Listen, err)
	}
	return Serve(ctx, ln, NewServer(ex, cfg, env.Log), log)
}

// Serve runs server on listener and shuts it down gracefully when context
// is done.
func Serve(ctx context.Context, ln net.Listener, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		// export fetches images, responses may take a while
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  time.Minute,
		BaseContext:  func(net.Listener) context.Context { return ctx },
		ErrorLog:     zap.NewStdLog(log),
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(sctx)
	}()

	log.Info("Listening", zap.String("address", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-done; err != nil {
		return fmt.Errorf("unable to shutdown server: %w", err)
	}
	log.Info("Server stopped")
	return nil
}
