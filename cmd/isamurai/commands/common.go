package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/manthysbr/isamurai-go/internal/adapters/duckdb"
	"github.com/manthysbr/isamurai-go/internal/config"
	"github.com/manthysbr/isamurai-go/internal/core/domain"
	"github.com/manthysbr/isamurai-go/internal/core/services"
	"github.com/manthysbr/isamurai-go/internal/platform/logger"
	"github.com/manthysbr/isamurai-go/internal/platform/telemetry"
	"github.com/manthysbr/isamurai-go/pkg/isamurai"
)

// AppContext holds what a command needs: configuration, history database,
// API client and the services built on them.
type AppContext struct {
	Config      *domain.AppConfig
	Logger      *slog.Logger
	Repo        *duckdb.Repository
	Credentials *config.CredentialStore
	Exporter    *services.HistoryExporter

	// Client and Tracker are nil when no API key is configured.
	Client  *isamurai.Client
	Tracker *services.JobTracker

	registry    *prometheus.Registry
	metrics     *isamurai.Metrics
	tracer      *sdktrace.TracerProvider
	metricsFile string
}

// NewAppContext loads the configuration named by the global flags and opens
// the history database.
func NewAppContext(ctx context.Context, cmd *cli.Command) (*AppContext, error) {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level, format := cfg.Log.Level, cfg.Log.Format
	if v := cmd.String("log-level"); v != "" {
		level = v
	}
	if v := cmd.String("log-format"); v != "" {
		format = v
	}
	logCfg, err := logger.ParseConfig(level, format)
	if err != nil {
		return nil, err
	}
	logOut := cmd.Root().ErrWriter
	if logOut == nil {
		logOut = os.Stderr
	}
	log := logger.New(logOut, logCfg)

	repo, err := duckdb.NewRepository(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	app := &AppContext{
		Config:      cfg,
		Logger:      log,
		Repo:        repo,
		Exporter:    services.NewHistoryExporter(repo, log),
		registry:    telemetry.NewRegistry(),
		metricsFile: cmd.String("metrics-file"),
	}
	app.metrics = isamurai.NewMetrics(app.registry)

	secret, err := config.NewSecretKey(cfg.Storage.SecretKey, cfg.Storage.KeyPath)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("load secret key: %w", err)
	}
	app.Credentials, err = config.NewCredentialStore(ctx, log, repo, secret)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	config.ApplyCredentials(cfg, app.Credentials.Credentials())

	if cmd.Bool("trace") {
		app.tracer = telemetry.InitTracing("isamurai", cmd.Root().Version, log)
	}

	if cfg.API.APIKey != "" {
		client, err := app.NewClient(cfg.API.APIKey, cfg.API.BaseURL)
		if err != nil {
			app.Close(ctx)
			return nil, err
		}
		app.Client = client
		app.Tracker = services.NewJobTracker(log, client, repo)
	}

	log.Debug("app.init.ok",
		"db_path", cfg.Storage.DBPath,
		"base_url", cfg.API.BaseURL,
		"logged_in", app.Client != nil,
	)
	return app, nil
}

// NewClient builds an API client sharing this context's logger, metrics and
// tracer.
func (a *AppContext) NewClient(apiKey, baseURL string) (*isamurai.Client, error) {
	cfg := isamurai.Config{
		APIKey:            apiKey,
		BaseURL:           baseURL,
		Logger:            a.Logger,
		RequestsPerSecond: a.Config.API.RateLimit,
		Burst:             a.Config.API.RateBurst,
		PollInterval:      a.Config.API.PollInterval,
		WaitTimeout:       a.Config.API.Timeout,
		Metrics:           a.metrics,
		ValidateResponses: a.Config.API.ValidateResponses,
	}
	if a.tracer != nil {
		cfg.TracerProvider = a.tracer
	}

	client, err := isamurai.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}
	return client, nil
}

// RequireTracker returns the job tracker, or an error telling the user how to
// configure a key.
func (a *AppContext) RequireTracker() (*services.JobTracker, error) {
	if a.Tracker == nil {
		return nil, fmt.Errorf("%w: set ISAMURAI_API_KEY or run `isamurai login`", isamurai.ErrMissingAPIKey)
	}
	return a.Tracker, nil
}

// Close flushes metrics and spans and closes the database.
func (a *AppContext) Close(ctx context.Context) {
	if a.metricsFile != "" {
		if err := telemetry.WriteTextfile(a.metricsFile, a.registry); err != nil {
			a.Logger.Error("failed to write metrics", "path", a.metricsFile, "error", err)
		}
	}
	if a.tracer != nil {
		telemetry.ShutdownTracing(context.WithoutCancel(ctx), a.tracer, a.Logger)
	}
	if err := a.Repo.Close(); err != nil {
		a.Logger.Error("failed to close history database", "error", err)
	}
}
