package main

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

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitchat/internal/config"
	"github.com/mmynk/splitchat/internal/gemini"
	"github.com/mmynk/splitchat/internal/metrics"
	"github.com/mmynk/splitchat/internal/middleware"
	"github.com/mmynk/splitchat/internal/pipeline"
	"github.com/mmynk/splitchat/internal/service"
	"github.com/mmynk/splitchat/internal/storage"
	"github.com/mmynk/splitchat/internal/storage/memory"
	"github.com/mmynk/splitchat/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Connect server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := memory.New(pipeline.InitialSnapshot())
	defer store.Close()

	p, err := newPipeline(ctx, cfg, store, metrics.New(reg))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newHandler(p, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Connect server starting", "address", srv.Addr, "url", fmt.Sprintf("http://localhost%s", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newPipeline wires Gemini into the pipeline, or starts it disabled when no
// credential is configured.
func newPipeline(ctx context.Context, cfg *config.Config, store storage.Store, m *metrics.Metrics) (*pipeline.Pipeline, error) {
	opts := []pipeline.Option{
		pipeline.WithTimeout(cfg.Timeout),
		pipeline.WithMetrics(m),
	}

	if err := cfg.CheckCredentials(); err != nil {
		return pipeline.NewDisabled(ctx, store, &pipeline.ConfigurationError{Reason: err.Error()}, opts...)
	}

	client, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:      cfg.Gemini.APIKey,
		ChatModel:   cfg.Gemini.ChatModel,
		VisionModel: cfg.Gemini.VisionModel,
	})
	if err != nil {
		return pipeline.NewDisabled(ctx, store, &pipeline.ConfigurationError{Reason: err.Error()}, opts...)
	}

	slog.Info("Gemini client initialized", "chat_model", cfg.Gemini.ChatModel, "vision_model", cfg.Gemini.VisionModel)
	return pipeline.New(store, client, client, opts...), nil
}

func newHandler(p *pipeline.Pipeline, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()

	path, handler := service.NewBillServiceHandler(service.NewBillService(p),
		connect.WithInterceptors(middleware.RequestID(), middleware.LoggingInterceptor()),
	)
	mux.Handle(path, handler)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	// h2c serves HTTP/2 without TLS, which Connect's gRPC protocol needs.
	return h2c.NewHandler(middleware.Logging(middleware.CORS(mux)), &http2.Server{})
}
