package cmd

import (
	"context"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/kwkeefer/hiro/internal/adapter/inbound/mcpserver"
	"github.com/kwkeefer/hiro/internal/adapter/inbound/metrics"
	"github.com/kwkeefer/hiro/internal/adapter/outbound/cookiesession"
	"github.com/kwkeefer/hiro/internal/adapter/outbound/httpclient"
	"github.com/kwkeefer/hiro/internal/adapter/outbound/memory"
	"github.com/kwkeefer/hiro/internal/adapter/outbound/sqlstore"
	"github.com/kwkeefer/hiro/internal/config"
	"github.com/kwkeefer/hiro/internal/domain/vector"
	"github.com/kwkeefer/hiro/internal/service"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var devMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP tool server",
	Long: `Start the hiro MCP server.

Transport is selected by server.transport in config:

  stdio  spawn-and-attach, the default, for launching hiro as a
         subprocess of an MCP client
  http   streamable HTTP, for a long-running shared server

Examples:
  hiro serve
  hiro --config /path/to/hiro.yaml serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "enable development mode (verbose logging, relaxed validation)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}
	logger.Info("hiro stopped")
	return nil
}

// run wires every adapter and service, builds the MCP registry, and
// blocks on the selected transport until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	poolTimeout, err := time.ParseDuration(cfg.Database.PoolTimeout)
	if err != nil {
		poolTimeout = 5 * time.Second
	}
	store := sqlstore.New(cfg.Database.DSN, cfg.Database.PoolSize, cfg.Database.MaxOverflow, poolTimeout)
	defer store.Close()
	if err := store.Open(ctx); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	var embedder vector.Embedder = vector.NoopEmbedder{}
	if cfg.Vector.Enabled {
		embedder = vector.NewHashEmbedder()
	}

	var cookies *cookiesession.Provider
	if cfg.Cookies.Enabled {
		configPath := cfg.Cookies.ConfigPath
		if configPath == "" {
			configPath = config.DefaultCookieConfigPath()
		}
		dataDir := cfg.Cookies.DataDir
		if dataDir == "" {
			dataDir = config.DefaultCookieDataDir()
		}
		cookies = cookiesession.NewProvider(configPath, dataDir)
	}

	promptsDir := cfg.Prompts.Dir
	if promptsDir == "" {
		promptsDir = config.DefaultPromptsDir()
	}
	prompts, err := mcpserver.NewPromptLibrary(promptsDir)
	if err != nil {
		return fmt.Errorf("failed to load prompt guides: %w", err)
	}

	timeout := time.Duration(cfg.HTTP.TimeoutSeconds * float64(time.Second))
	httpSvc := service.NewHTTPToolService(service.HTTPToolConfig{
		Timeout:             timeout,
		VerifySSL:           cfg.HTTP.VerifySSL,
		ProxyURL:            cfg.HTTP.ProxyURL,
		MaxRequestBodySize:  cfg.HTTP.MaxRequestBodySize,
		MaxResponseBodySize: cfg.HTTP.MaxResponseBodySize,
		SensitiveHeaders:    cfg.HTTP.SensitiveHeaders,
		LoggingEnabled:      cfg.HTTP.LoggingEnabled,
		TracingHeaderPrefix: cfg.HTTP.TracingHeaderPrefix,
	}, httpclient.New(), cookies, sqlstore.NewLazyTargetRepo(store), sqlstore.NewLazyHttpRequestRepo(store), logger)

	targetSvc := service.NewTargetService(store)
	contextSvc := service.NewContextVersionService(store)
	pointers := memory.NewMissionPointerStore()
	missionSvc := service.NewMissionService(store, pointers, embedder, logger)
	recallSvc := service.NewRecallService(store, embedder)
	techniqueStatsSvc := service.NewTechniqueStatsService(store, recallSvc)
	librarySvc := service.NewLibraryService(store, recallSvc, embedder)

	var reg *prometheus.Registry
	var promMetrics *metrics.Metrics
	if cfg.Server.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		promMetrics = metrics.New(reg)
	}

	tracerOpts := []trace.TracerProviderOption{}
	if cfg.DevMode {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tracerOpts = append(tracerOpts, trace.WithBatcher(exporter))
	}
	tracerProvider := trace.NewTracerProvider(tracerOpts...)
	defer func() { _ = tracerProvider.Shutdown(ctx) }()

	registry := mcpserver.New(mcpserver.Deps{
		HTTPTool:               httpSvc,
		Target:                 targetSvc,
		ContextVersion:         contextSvc,
		Mission:                missionSvc,
		Recall:                 recallSvc,
		TechniqueStats:         techniqueStatsSvc,
		Library:                librarySvc,
		Cookies:                cookies,
		Prompts:                prompts,
		Metrics:                promMetrics,
		Tracer:                 tracerProvider.Tracer("hiro/mcpserver"),
		Logger:                 logger,
		DefaultSimilarityFloor: cfg.Vector.SimilarityFloor,
	})
	server := registry.Build(cfg.Server.Name, cfg.Server.Version)

	if cfg.Server.MetricsAddr != "" {
		metricsMux := stdhttp.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv := &stdhttp.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsMux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
		logger.Info("metrics listening", "addr", cfg.Server.MetricsAddr)
	}

	switch cfg.Server.Transport {
	case "http":
		return runHTTPTransport(ctx, cfg, server, logger)
	default:
		return runStdioTransport(ctx, server, logger)
	}
}

func runStdioTransport(ctx context.Context, server *mcp.Server, logger *slog.Logger) error {
	logger.Info("hiro serving over stdio")
	return server.Run(ctx, &mcp.StdioTransport{})
}

func runHTTPTransport(ctx context.Context, cfg *config.Config, server *mcp.Server, logger *slog.Logger) error {
	handler := mcp.NewStreamableHTTPHandler(func(*stdhttp.Request) *mcp.Server { return server }, &mcp.StreamableHTTPOptions{Stateless: true})
	mux := stdhttp.NewServeMux()
	mux.Handle(cfg.Server.Path, handler)
	httpSrv := &stdhttp.Server{Addr: cfg.Server.HTTPAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("hiro serving over streamable http", "addr", cfg.Server.HTTPAddr, "path", cfg.Server.Path)
		if err := httpSrv.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func pidFilePath() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".hiro", "server.pid")
	}
	return filepath.Join(os.TempDir(), "hiro-server.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
}
