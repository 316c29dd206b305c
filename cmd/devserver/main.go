// Command devserver serves the image generation handler over plain HTTP for local development.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmorgan81/imagegen-proxy/internal/handler"
	"github.com/dmorgan81/imagegen-proxy/internal/inject"
	"github.com/dmorgan81/imagegen-proxy/internal/log"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/samber/lo"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(os.Stderr, log.ParseLevel(os.Getenv("LOG_LEVEL")))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	baseCtx := log.NewContext(context.Background(), logger)

	injector := inject.Setup(baseCtx)
	defer func() { _ = injector.Shutdown() }()

	addr := lo.Ternary(os.Getenv("DEV_ADDR") != "", os.Getenv("DEV_ADDR"), ":8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           do.MustInvoke[*handler.Handler](injector),
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("devserver started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
	}
}
