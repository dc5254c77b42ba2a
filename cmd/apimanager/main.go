// Command apimanager calls a configured API through an apimanager.Client and
// prints the outcome. With -burst it fires several calls for the same API in
// quick succession to show that only the last one is delivered.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/and4010/apimanager"
	"github.com/and4010/apimanager/internal/config"
	"github.com/and4010/apimanager/internal/logutil"
	"github.com/and4010/apimanager/product"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	baseURL := flag.String("base-url", "", "Base URL for relative API paths (overrides config)")
	appVersion := flag.String("app-version", "", "AppVersion header value (overrides config)")
	timeout := flag.Int("timeout", 0, "Transport timeout in seconds (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Serve /metrics on this address (overrides config)")
	token := flag.String("token", "", "Bearer token")
	apiName := flag.String("api", string(product.Identity), "API to call")
	payload := flag.String("payload", "", "Payload: JSON for json APIs, query string for form APIs")
	burst := flag.Int("burst", 1, "Number of rapid calls for the same API")
	debug := flag.Bool("debug", false, "Deliver the built-in debug result instead of calling the network")
	hold := flag.Duration("hold", 0, "Keep serving metrics this long after the calls finish")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(apimanager.GetVersion())
		return
	}

	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	overrides := config.FlagOverrides{}
	if *baseURL != "" {
		overrides.BaseURL = baseURL
	}
	if *appVersion != "" {
		overrides.AppVersion = appVersion
	}
	if *timeout > 0 {
		overrides.TimeoutSeconds = timeout
	}
	if *loggingLevel != "" {
		overrides.LoggingLevel = loggingLevel
	}
	if *metricsAddr != "" {
		overrides.MetricsAddr = metricsAddr
	}

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath:    *configPath,
		FlagOverrides: overrides,
		Logger:        bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, logger, runOptions{
		token:   *token,
		api:     *apiName,
		payload: *payload,
		burst:   *burst,
		debug:   *debug,
		hold:    *hold,
		out:     os.Stdout,
	})
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

type runOptions struct {
	token   string
	api     string
	payload string
	burst   int
	debug   bool
	hold    time.Duration
	out     io.Writer
}

func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logutil.ParseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts runOptions) error {
	options := cfg.ClientOptions(logger)
	if opts.token != "" {
		options = append(options, apimanager.WithAuth(opts.token))
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		options = append(options, apimanager.WithMetricsRegistry(registry))
		metricsServer = serveMetrics(cfg.Metrics.ListenAddr, registry, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	client := apimanager.New(options...)
	if !client.IsValid() {
		return client.ValidationError()
	}
	client.SetTokenInvalidCallback(func() {
		logger.Warn("token rejected by backend, refresh credentials")
	})

	logger.Info("client ready", "version", apimanager.Version, "api", opts.api, "burst", opts.burst)

	var err error
	if opts.api == string(product.Identity) {
		err = runProduct(ctx, cfg, client, opts)
	} else {
		err = runEndpoint(ctx, cfg, client, opts)
	}
	if err != nil {
		return err
	}

	if metricsServer != nil && opts.hold > 0 {
		logger.Info("holding for metrics scrape", "addr", cfg.Metrics.ListenAddr, "hold", opts.hold)
		select {
		case <-time.After(opts.hold):
		case <-ctx.Done():
		}
	}
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

// lockedOutput serializes writes from concurrent burst calls so that each
// call's report stays in one piece.
type lockedOutput struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *lockedOutput) write(fn func(w io.Writer)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(o.w)
}

func (o *lockedOutput) printf(format string, args ...any) {
	o.write(func(w io.Writer) {
		fmt.Fprintf(w, format, args...)
	})
}

// burstCalls runs fn n times, starting each call a little after the
// previous one so that they overlap in the start delay.
func burstCalls(ctx context.Context, n int, fn func(i int) error) error {
	if n < 1 {
		n = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return fn(i)
		})
		if i < n-1 {
			select {
			case <-time.After(10 * time.Millisecond):
			case <-ctx.Done():
				return g.Wait()
			}
		}
	}
	return g.Wait()
}

func runProduct(ctx context.Context, cfg *config.Config, client *apimanager.Client, opts runOptions) error {
	api := product.API{}
	var callOpts []apimanager.CallOption
	if endpoint, endpointOpts, ok := cfg.Endpoint(string(product.Identity)); ok {
		api.URL = endpoint.Path()
		callOpts = endpointOpts
	}
	if opts.debug {
		debugBody, err := json.Marshal(product.Response{Data: []product.Model{{
			MartID: 1, MartName: "Debug Mart", MartShortName: "Debug", Price: 100, FinalPrice: 80, StockAvailable: 1,
		}}})
		if err != nil {
			return err
		}
		callOpts = append(callOpts, apimanager.WithDebugResult(apimanager.DebugSuccessful(string(debugBody))))
	}

	repo := product.NewRepository(client,
		product.WithAPI(api),
		product.WithCallOptions(callOpts...),
		product.WithLogger(slog.Default()),
	)

	out := &lockedOutput{w: opts.out}
	return burstCalls(ctx, opts.burst, func(i int) error {
		items, err := repo.Load(ctx)
		if err != nil {
			var callErr *apimanager.CallError
			if errors.As(err, &callErr) && callErr.Type == apimanager.ErrorTypeCanceled {
				out.printf("call %d: superseded\n", i+1)
				return nil
			}
			out.printf("call %d: %v\n", i+1, err)
			return nil
		}

		out.write(func(w io.Writer) {
			fmt.Fprintf(w, "call %d: %d products\n", i+1, len(items))
			printItems(w, items)
		})
		return nil
	})
}

func printItems(w io.Writer, items []product.Item) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tFINAL\tSTOCK")
	for _, item := range items {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\n",
			item.MartID, item.MartName, item.Price, item.FinalPrice, item.StockAvailable)
	}
	_ = tw.Flush()
}

func runEndpoint(ctx context.Context, cfg *config.Config, client *apimanager.Client, opts runOptions) error {
	endpoint, callOpts, ok := cfg.Endpoint(opts.api)
	if !ok {
		return fmt.Errorf("api %q is not configured; known apis: %v", opts.api, cfg.APINames())
	}
	if opts.debug {
		callOpts = append(callOpts, apimanager.WithDebugResult(apimanager.DebugSuccessful("")))
	}

	payload, err := parsePayload(endpoint.Kind, opts.payload)
	if err != nil {
		return err
	}

	out := &lockedOutput{w: opts.out}
	return burstCalls(ctx, opts.burst, func(i int) error {
		state := apimanager.Call[json.RawMessage](ctx, client, endpoint, payload, apimanager.CallbackFuncs[json.RawMessage]{
			OnSuccessful: func(resp *apimanager.Response[json.RawMessage]) {
				out.printf("call %d: successful %s\n", i+1, resp.Raw)
			},
			OnFail: func(resp *apimanager.Response[json.RawMessage]) {
				if resp == nil {
					out.printf("call %d: fail\n", i+1)
					return
				}
				out.printf("call %d: fail %d %s\n", i+1, resp.StatusCode, resp.Raw)
			},
			OnNetworkError: func(err error) {
				out.printf("call %d: network error: %v\n", i+1, err)
			},
			OnOtherError: func(msg string) {
				out.printf("call %d: error: %s\n", i+1, msg)
			},
		}, callOpts...)
		if state == apimanager.StateCanceled {
			out.printf("call %d: superseded\n", i+1)
		}
		return nil
	})
}

func parsePayload(kind apimanager.ContentKind, raw string) (any, error) {
	switch kind {
	case apimanager.ContentJSON:
		if raw == "" {
			raw = "{}"
		}
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("payload is not valid JSON")
		}
		return json.RawMessage(raw), nil
	case apimanager.ContentForm:
		values, err := url.ParseQuery(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid form payload: %w", err)
		}
		return values, nil
	default:
		return nil, nil
	}
}
