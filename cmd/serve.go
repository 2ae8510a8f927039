package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/octobot-dev/octobot/internal/backport"
	"github.com/octobot-dev/octobot/internal/clonepool"
	"github.com/octobot-dev/octobot/internal/config"
	"github.com/octobot-dev/octobot/internal/gateway"
	"github.com/octobot-dev/octobot/internal/hosting"
	"github.com/octobot-dev/octobot/internal/ingress"
	"github.com/octobot-dev/octobot/internal/issuetracker"
	"github.com/octobot-dev/octobot/internal/normalizer"
	"github.com/octobot-dev/octobot/internal/notify"
	"github.com/octobot-dev/octobot/internal/queue"
	"github.com/octobot-dev/octobot/internal/store"
	"github.com/octobot-dev/octobot/models"
)

var serveLogDir string

var serveCmd = &cobra.Command{
	Use:   "serve <config.toml>",
	Short: "Run the Octobot webhook daemon",
	Long: `serve loads config.toml and starts the Octobot daemon: it listens for
signed hosting-platform webhooks on the configured port, and reacts to
pull request and review events with chat notifications, backport pull
requests, and issue-tracker transitions.

Quick surface reference:
  POST /                  signed webhook ingress
  GET  /healthz            liveness + shallow queue/lease snapshot
  GET  /events             SSE stream of queue/lease/backport lifecycle events

Press Ctrl+C to stop; no new webhook deliveries are accepted once shutdown
begins, and the process exits once the HTTP server has stopped, without
waiting for queued or in-flight backport jobs.`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveLogDir, "log-dir", "logs",
		"directory to write daemon logs for later inspection")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down octobot gracefully...")
		cancel()
	}()

	cfg, err := config.Load(args[0])
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logFilePath, closeLog, err := setupServeFileLogger(serveLogDir, cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("initialising logger: %w", err)
	}
	defer closeLog()
	slog.Info("logger initialised", "file", logFilePath)

	db, err := store.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	st, err := store.NewStore(ctx, db)
	if err != nil {
		return fmt.Errorf("loading snapshot store: %w", err)
	}

	telemetry := gateway.NewTelemetry(time.Now())

	sessions := hosting.NewSessions(cfg.Hosting)
	router := hosting.NewRouter(sessions)
	chatNotifier := notify.New(st, cfg.Chat)

	pool := clonepool.New(cfg.Backport.CloneRoot, cfg.Backport.PoolSize, time.Duration(cfg.Backport.AcquireTimeoutSeconds)*time.Second)
	pool.OnAcquire(func(key models.RepoKey, inUse int) { telemetry.LeaseAcquired(key.String(), inUse) })
	pool.OnRelease(func(key models.RepoKey, inUse int) { telemetry.LeaseReleased(key.String(), inUse) })

	engine := backport.New(db, router, sessions, pool, chatNotifier)
	engine.OnTransition(func(job models.BackportJob) {
		telemetry.BackportTransition(job.RepoKey.String(), job.SrcPRNumber, job.TargetBranch, string(job.State), job.FailureReason)
	})

	// q is declared before its own handler closure so the handler can report
	// depth through the same Queue it is being constructed with.
	// Jobs run on the background context, not the serve context, so the
	// shutdown signal does not cancel a running job. runServe does not wait
	// for queued or in-flight jobs: it returns once the HTTP server has shut
	// down.
	jobCtx := context.Background()
	var q *queue.Queue
	q = queue.New(func(job models.BackportJob) {
		telemetry.QueueStarted(job.RepoKey.String(), q.Depth(job.RepoKey))
		engine.Run(jobCtx, job)
		telemetry.QueueFinished(job.RepoKey.String(), q.Depth(job.RepoKey))
	}, cfg.Backport.QueueDepth, time.Duration(cfg.Backport.QueueIdleGraceSeconds)*time.Second)

	var tracker normalizer.IssueTracker
	if cfg.IssueTracker.Enabled {
		trackerClient, err := issuetracker.NewClient(cfg.IssueTracker)
		if err != nil {
			return fmt.Errorf("building issue tracker client: %w", err)
		}
		tracker = issuetracker.New(trackerClient, nil, cfg.IssueTracker)
	}

	norm := normalizer.New(st, chatNotifier, enqueuerWithTelemetry{q: q, t: telemetry}, router, tracker)
	webhookSrv := ingress.New(cfg.Webhook.Secret, cfg.Webhook.MaxBodyBytes, norm)
	gwHandler := gateway.NewServer(telemetry).Handler()

	mux := http.NewServeMux()
	mux.Handle("/", webhookSrv)
	mux.Handle("/healthz", gwHandler)
	mux.Handle("/events", gwHandler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	fmt.Printf("octobot serving\n")
	fmt.Printf("  Webhook : http://0.0.0.0%s/\n", addr)
	fmt.Printf("  Health  : http://0.0.0.0%s/healthz\n", addr)
	fmt.Printf("  Events  : http://0.0.0.0%s/events\n", addr)
	fmt.Printf("  Logs    : %s\n\n", logFilePath)
	fmt.Println("Press Ctrl+C to stop gracefully.")

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// enqueuerWithTelemetry wraps a queue.Queue so every Enqueue call also
// reports the new depth to the telemetry broadcaster.
type enqueuerWithTelemetry struct {
	q *queue.Queue
	t *gateway.Telemetry
}

func (e enqueuerWithTelemetry) Enqueue(key models.RepoKey, job models.BackportJob) error {
	if err := e.q.Enqueue(key, job); err != nil {
		return err
	}
	e.t.QueueEnqueued(key.String(), e.q.Depth(key))
	return nil
}

func setupServeFileLogger(logDir, levelName string) (string, func(), error) {
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating log dir %s: %w", logDir, err)
	}

	ts := time.Now().UTC().Format("20060102-150405")
	runLogPath := filepath.Join(logDir, fmt.Sprintf("octobot-%s.log", ts))
	runFile, err := os.OpenFile(runLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", nil, fmt.Errorf("opening run log file: %w", err)
	}

	latestPath := filepath.Join(logDir, "octobot.log")
	latestFile, err := os.OpenFile(latestPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = runFile.Close()
		return "", nil, fmt.Errorf("opening latest log file: %w", err)
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, runFile, latestFile), &slog.HandlerOptions{
		Level: parseLogLevel(levelName),
	})
	slog.SetDefault(slog.New(handler))

	cleanup := func() {
		_ = latestFile.Close()
		_ = runFile.Close()
	}
	return runLogPath, cleanup, nil
}

func parseLogLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
