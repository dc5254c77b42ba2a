// Command productmock serves a fake Product catalog backend.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/and4010/apimanager/internal/logutil"
	"github.com/and4010/apimanager/internal/productmock"
	"github.com/and4010/apimanager/product"
)

func main() {
	listenAddr := flag.String("listen", ":8080", "Listen address")
	catalogPath := flag.String("catalog", "", "Path to YAML catalog (optional, built-in catalog otherwise)")
	latency := flag.Duration("latency", 0, "Delay added to every catalog response")
	failEvery := flag.Int("fail-every", 0, "Answer every n-th catalog request with 500 (0 disables)")
	token := flag.String("token", "", "Only accept this bearer token (optional)")
	rps := flag.Float64("rate", 0, "Catalog requests per second before 429 (0 disables)")
	burst := flag.Int("burst", 1, "Rate limiter burst size")
	loggingLevel := flag.String("logging-level", "info", "Log level: trace, debug, info, warn, error")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logutil.ParseLevel(*loggingLevel),
	}))
	slog.SetDefault(logger)

	var (
		catalog product.Response
		err     error
	)
	if *catalogPath != "" {
		catalog, err = productmock.LoadCatalog(*catalogPath)
	} else {
		catalog, err = productmock.DefaultCatalog()
	}
	if err != nil {
		logger.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	srv := productmock.NewServer(productmock.Config{
		Latency:       *latency,
		FailEvery:     *failEvery,
		Token:         *token,
		RatePerSecond: *rps,
		Burst:         *burst,
	}, catalog, logger)

	httpServer := &http.Server{
		Addr:              *listenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("product mock listening",
			"addr", *listenAddr,
			"path", productmock.CatalogPath,
			"products", len(catalog.Data))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped", "requests", srv.Requests())
}
