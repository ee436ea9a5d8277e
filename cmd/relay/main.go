package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"donation-relay/internal/config"
	pgRepo "donation-relay/internal/infra/adapter/persistence/postgres"
	"donation-relay/internal/infra/db"
	"donation-relay/internal/infra/notifier"
	"donation-relay/internal/infra/tiltify"
	workerPkg "donation-relay/internal/infra/worker"
	"donation-relay/internal/observability/logging"
	pkgconfig "donation-relay/internal/pkg/config"
	"donation-relay/internal/repository"
	"donation-relay/internal/resilience/retry"
	"donation-relay/internal/usecase/notify"
	"donation-relay/internal/usecase/poll"
)

func main() {
	envErr := godotenv.Load()
	logger := initLogger()
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		logger.Warn("failed to load .env file", slog.Any("error", envErr))
	}

	if err := run(logger); err != nil {
		logger.Error("relay stopped", slog.String("error", logging.SanitizeError(err)))
		os.Exit(1)
	}
}

// initLogger initializes the process logger from LOG_LEVEL and LOG_FORMAT.
func initLogger() *slog.Logger {
	logger := logging.NewFromEnv()
	slog.SetDefault(logger)
	return logger
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	relayConfig := config.LoadRelayConfig(logger, pkgconfig.NewConfigMetrics("relay"))
	logger.Info("relay configuration loaded",
		slog.Duration("poll_interval", workerConfig.PollInterval),
		slog.Int("page_size", workerConfig.PageSize),
		slog.Duration("cycle_timeout", workerConfig.CycleTimeout),
		slog.String("currency", relayConfig.CurrencySymbol),
		slog.String("minimum_donation", relayConfig.MinimumDonation.String()),
		slog.Bool("checkpoint_enabled", relayConfig.CheckpointEnabled()))

	credsPath := pkgconfig.LoadEnvString("RELAY_CREDENTIALS_FILE", config.DefaultCredentialsFile)
	creds, err := config.LoadCredentials(credsPath)
	if err != nil {
		return err
	}

	httpClient := createHTTPClient(relayConfig.TiltifyTimeout)
	tokens := tiltify.NewTokenProvider(httpClient, relayConfig.TiltifyBaseURL, creds.TiltifyClientID, creds.TiltifyClientSecret)
	client := tiltify.NewClient(httpClient, relayConfig.TiltifyBaseURL, tokens, tiltify.WithLogger(logger))

	campaignID, err := connectTiltify(ctx, logger, tokens, client, creds)
	if err != nil {
		return err
	}

	checkpoints, closeCheckpoints := openCheckpointStore(ctx, logger, relayConfig)
	defer closeCheckpoints()

	var twitch *notifier.TwitchNotifier
	if creds.TwitchEnabled() {
		twitch = notifier.NewTwitchNotifier(notifier.TwitchConfig{
			Enabled:     true,
			AccessToken: creds.TwitchAccessToken,
			Nick:        creds.TwitchBotNick,
			Channels:    creds.TwitchChannelNames,
			Timeout:     10 * time.Second,
		})
	}
	notifyService := notify.NewService(buildChannels(logger, creds, twitch), notify.WithSendTimeout(workerConfig.CycleTimeout))

	pollOpts := []poll.Option{
		poll.WithPageSize(workerConfig.PageSize),
		poll.WithLogger(logger),
		poll.WithMaxDeliveryAttempts(relayConfig.DeliveryMaxAttempts),
	}
	if checkpoints != nil {
		pollOpts = append(pollOpts, poll.WithCheckpoints(checkpoints, relayConfig.ResumeFromCheckpoint))
	}
	poller := poll.NewPoller(
		campaignID,
		relayConfig.MinimumDonation,
		client,
		tokens,
		notifyService,
		notify.NewFormatter(relayConfig.CurrencySymbol),
		pollOpts...,
	)

	if err := retry.WithBackoff(ctx, retry.TiltifyStartupConfig(), func() error {
		return poller.Seed(ctx)
	}); err != nil {
		return fmt.Errorf("seed watermark: %w", err)
	}
	if campaignID, lastID, ok := poller.Snapshot(); ok {
		logger.Info("Watermark ready", slog.String("campaign_id", campaignID), slog.String("last_announced_id", lastID))
	} else {
		logger.Info("Watermark unset, first donation will be announced", slog.String("campaign_id", campaignID))
	}

	g, gctx := errgroup.WithContext(ctx)

	healthServer := workerPkg.NewHealthServer(fmt.Sprintf(":%d", workerConfig.HealthPort), logger)
	g.Go(func() error { return healthServer.Start(gctx) })
	g.Go(func() error { return runMetricsServer(gctx, logger, workerConfig.MetricsPort, notifyService) })

	if twitch != nil {
		g.Go(func() error { return twitch.Run(gctx) })

		select {
		case joined := <-twitch.Ready():
			logger.Info("Twitch chat ready", slog.Any("channels", joined))
		case <-gctx.Done():
			return g.Wait()
		}
	}

	g.Go(func() error {
		return runScheduler(gctx, logger, poller, workerConfig, workerMetrics, healthServer)
	})

	return g.Wait()
}

// connectTiltify authenticates and resolves the campaign, retrying transient
// failures. A rejected credential or unknown campaign fails immediately.
func connectTiltify(ctx context.Context, logger *slog.Logger, tokens *tiltify.TokenProvider, client *tiltify.Client, creds *config.Credentials) (string, error) {
	if err := retry.WithBackoff(ctx, retry.TiltifyStartupConfig(), func() error {
		_, err := tokens.Authenticate(ctx)
		return err
	}); err != nil {
		return "", fmt.Errorf("authenticate with tiltify: %w", err)
	}

	var campaignID string
	if err := retry.WithBackoff(ctx, retry.TiltifyStartupConfig(), func() error {
		id, err := client.ResolveCampaignID(ctx, creds.TiltifyUserSlug, creds.TiltifyCampaignSlug)
		campaignID = id
		return err
	}); err != nil {
		return "", fmt.Errorf("resolve campaign: %w", err)
	}

	logger.Info("Tiltify campaign resolved",
		slog.String("user_slug", creds.TiltifyUserSlug),
		slog.String("campaign_slug", creds.TiltifyCampaignSlug),
		slog.String("campaign_id", campaignID))
	return campaignID, nil
}

// openCheckpointStore connects the optional watermark checkpoint. Any failure
// disables checkpointing; the relay still runs from the in-memory watermark.
func openCheckpointStore(ctx context.Context, logger *slog.Logger, cfg *config.RelayConfig) (repository.WatermarkRepository, func()) {
	noop := func() {}
	if !cfg.CheckpointEnabled() {
		logger.Info("Watermark checkpoint disabled")
		return nil, noop
	}

	pool := db.LoadPoolConfig(logger)
	database, err := db.Open(ctx, cfg.DatabaseURL, pool)
	if err != nil {
		logger.Warn("Checkpoint database unavailable, continuing without checkpoints",
			slog.String("error", logging.SanitizeError(err)))
		return nil, noop
	}
	logger.Info("Checkpoint database connected",
		slog.Int("max_open_conns", pool.MaxOpenConns),
		slog.Duration("conn_max_lifetime", pool.ConnMaxLifetime))
	closeDB := func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}

	if err := retry.WithBackoff(ctx, retry.DBConfig(), func() error {
		return db.MigrateUp(ctx, database)
	}); err != nil {
		logger.Warn("Checkpoint migration failed, continuing without checkpoints",
			slog.String("error", logging.SanitizeError(err)))
		closeDB()
		return nil, noop
	}

	logger.Info("Watermark checkpoint enabled", slog.Bool("resume", cfg.ResumeFromCheckpoint))
	return pgRepo.NewWatermarkRepo(database), closeDB
}

// buildChannels returns the destinations in delivery order: Twitch rooms,
// then Discord, then Slack.
func buildChannels(logger *slog.Logger, creds *config.Credentials, twitch *notifier.TwitchNotifier) []notify.Channel {
	var channels []notify.Channel

	if twitch != nil {
		channels = append(channels, notify.NewTwitchChannels(twitch, twitch.Channels())...)
		logger.Info("Twitch channels initialized", slog.Any("channels", twitch.Channels()))
	} else {
		logger.Info("Twitch chat disabled")
	}

	if creds.DiscordEnabled() {
		channels = append(channels, notify.NewDiscordChannel(notifier.DiscordConfig{
			Enabled:    true,
			WebhookURL: creds.DiscordWebhookURL,
			Timeout:    30 * time.Second,
		}))
		logger.Info("Discord channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Discord channel disabled")
	}

	if creds.SlackEnabled() {
		channels = append(channels, notify.NewSlackChannel(notifier.SlackConfig{
			Enabled:    true,
			WebhookURL: creds.SlackWebhookURL,
			Timeout:    30 * time.Second,
		}))
		logger.Info("Slack channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Slack channel disabled")
	}

	return channels
}

// createHTTPClient creates an HTTP client with timeouts and connection pooling.
// TLS 1.2+ is enforced.
func createHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// runScheduler polls on the configured interval until ctx is done, then waits
// up to the shutdown timeout for a running cycle to finish.
func runScheduler(ctx context.Context, logger *slog.Logger, poller *poll.Poller, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics, healthServer *workerPkg.HealthServer) error {
	cronLogger := &slogCronLogger{logger: logger, metrics: metrics}
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	if _, err := c.AddFunc(cfg.Schedule(), func() {
		runPollCycle(logger, poller, cfg, metrics, healthServer)
	}); err != nil {
		return fmt.Errorf("schedule poll cycle: %w", err)
	}
	c.Start()

	healthServer.SetReady(true)
	logger.Info("relay started", slog.String("schedule", cfg.Schedule()))

	<-ctx.Done()
	healthServer.SetReady(false)
	logger.Info("relay shutting down, waiting for the running cycle")

	select {
	case <-c.Stop().Done():
		logger.Info("scheduler stopped")
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warn("shutdown timeout reached with a cycle still running",
			slog.Duration("shutdown_timeout", cfg.ShutdownTimeout))
	}
	return nil
}

// runPollCycle executes one poll cycle under its own timeout. It does not use
// the shutdown context so a delivery and its watermark advance are never
// split by a signal.
func runPollCycle(logger *slog.Logger, poller *poll.Poller, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics, healthServer *workerPkg.HealthServer) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CycleTimeout)
	defer cancel()

	stats, err := poller.RunCycle(ctx)
	metrics.RecordCycleDuration(time.Since(start).Seconds())

	announced := 0
	cycleID := ""
	if stats != nil {
		announced = stats.Announced
		cycleID = stats.CycleID
	}
	metrics.RecordDonationsAnnounced(announced)
	healthServer.RecordCycle(announced, err)

	if err != nil {
		metrics.RecordCycleRun("failure")
		attrs := []any{
			slog.String("cycle_id", cycleID),
			slog.Int("announced", announced),
			slog.String("error", logging.SanitizeError(err)),
		}
		if failed := notify.FailedChannels(err); len(failed) > 0 {
			attrs = append(attrs, slog.Any("failed_channels", failed))
		}
		var deliveryErr *poll.DeliveryError
		if errors.As(err, &deliveryErr) {
			attrs = append(attrs,
				slog.String("donation_id", deliveryErr.DonationID),
				slog.Int("delivery_attempts", deliveryErr.Attempts),
				slog.Any("delivered_channels", deliveryErr.Delivered))
		}
		logger.Error("poll cycle failed", attrs...)
		return
	}

	metrics.RecordCycleRun("success")
	metrics.RecordLastSuccess()

	level := slog.LevelDebug
	if announced > 0 {
		level = slog.LevelInfo
	}
	logger.Log(ctx, level, "poll cycle completed",
		slog.String("cycle_id", cycleID),
		slog.Int("fetched", stats.Fetched),
		slog.Int("announced", stats.Announced),
		slog.Int("below_minimum", stats.BelowMinimum),
		slog.Bool("refreshed", stats.Refreshed),
		slog.Duration("duration", time.Since(start)))
}

// slogCronLogger adapts slog to cron.Logger and counts skipped runs.
type slogCronLogger struct {
	logger  *slog.Logger
	metrics *workerPkg.WorkerMetrics
}

func (l *slogCronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.metrics.RecordCycleRun("skipped")
		l.logger.Warn("poll cycle skipped, previous cycle still running")
		return
	}
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l *slogCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, slog.Any("error", err))...)
}
