package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/repopulse/internal/adapter/driven/github"
	smtpadapter "github.com/ericfisherdev/repopulse/internal/adapter/driven/smtp"
	sqliteadapter "github.com/ericfisherdev/repopulse/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/repopulse/internal/adapter/driving/http"
	"github.com/ericfisherdev/repopulse/internal/application"
	"github.com/ericfisherdev/repopulse/internal/config"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"stale_window", cfg.StaleWindow,
		"report_hour", cfg.ReportHour,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	userStore := sqliteadapter.NewUserRepo(db)
	repoStore := sqliteadapter.NewRepoRepo(db)
	alertStore := sqliteadapter.NewAlertRepo(db)
	reportStore := sqliteadapter.NewReportRepo(db)
	thresholdStore := sqliteadapter.NewThresholdRepo(db)

	clients := githubadapter.NewFactory(cfg.GitHubTimeout)

	var sender driven.EmailSender
	if cfg.HasSMTP() {
		sender, err = smtpadapter.NewSender(smtpadapter.Options{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			return err
		}
		slog.Info("smtp sender configured", "host", cfg.SMTPHost, "from", cfg.SMTPFrom)
	} else {
		sender = logSender{}
		slog.Info("no smtp configured, reports will be logged instead of delivered")
	}

	// 6. Wire application services.
	alertSvc := application.NewAlertService(alertStore, repoStore, thresholdStore)
	metricsSvc := application.NewMetricsService(clients, userStore, repoStore, alertSvc, cfg.StaleWindow)
	reportSvc := application.NewReportService(reportStore, userStore, repoStore, sender,
		cfg.SchedulerInterval, cfg.ReportHour)
	userSvc := application.NewUserService(clients, userStore)
	thresholdSvc := application.NewThresholdService(thresholdStore, repoStore)

	// 7. Start the report scheduler.
	go reportSvc.Start(ctx)

	// 8. HTTP server.
	apiHandler := httphandler.NewHandler(userSvc, metricsSvc, alertSvc, reportSvc, thresholdSvc, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("repopulse started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// logSender stands in for SMTP when none is configured. Reports still go
// through their full lifecycle; delivery is a log line.
type logSender struct{}

func (logSender) Send(_ context.Context, msg driven.EmailMessage) error {
	slog.Info("email delivery skipped, no smtp configured",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
