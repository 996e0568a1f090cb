package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/api"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/config"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/mockgen"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/orchestrator"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/provider"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/storage"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/stream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the interviewd server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running interviewd server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and backend status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

const (
	shutdownTimeout = 5 * time.Second
	redisTimeout    = 3 * time.Second
)

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "interviewd.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

func runServer() error {
	fmt.Fprintf(os.Stderr, "interviewd version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	pidPath := pidFilePath(cfg.Storage.DataDir)
	if pid, err := readPIDFile(pidPath); err == nil && processAlive(pid) {
		printWarning("interviewd is already running (PID %d)", pid)
		return fmt.Errorf("server already running (PID %d)", pid)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", "error", err)
		}
	}()

	selector := provider.Build(ctx, cfg, logger, os.Stderr)

	recorder, closeRecorder := buildRecorder(ctx, cfg, logger)
	defer closeRecorder()

	dispatcher, err := stream.NewDispatcher(cfg.Stream.PoolSize, recorder, logger.With("component", "stream"))
	if err != nil {
		return err
	}
	defer func() {
		if err := dispatcher.Close(shutdownTimeout); err != nil {
			logger.Warn("stream workers still running at shutdown", "error", err)
		}
	}()

	orch := orchestrator.New(orchestrator.Options{
		Selector:     selector,
		Mock:         mockgen.New(nil),
		Store:        store,
		Dispatcher:   dispatcher,
		Logger:       logger.With("component", "orchestrator"),
		ShortTimeout: cfg.ShortTimeout(),
		LongTimeout:  cfg.LongTimeout(),
		PaceMin:      cfg.PaceMin(),
		PaceMax:      cfg.PaceMax(),
	})

	if cfg.Server.MCPStdio {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(orch, version))
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP stdio server error", "error", err)
			}
		}()
		logger.Info("MCP server started (stdio transport)")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	if cfg.Server.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConns)
	}

	srv := &http.Server{
		Handler:           api.NewHandler(orch, store, logger.With("component", "api")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("interviewd listening", "addr", addr, "max_conns", cfg.Server.MaxConns)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildRecorder logs session transitions and, when redis.addr is set and
// reachable, also keeps snapshots in Redis.
func buildRecorder(ctx context.Context, cfg config.Config, logger *slog.Logger) (stream.Recorder, func()) {
	logRec := stream.NewLogRecorder(logger.With("component", "stream"))
	if cfg.Redis.Addr == "" {
		return logRec, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, session history disabled", "addr", cfg.Redis.Addr, "error", err)
		rdb.Close()
		return logRec, func() {}
	}
	logger.Info("redis session store connected", "addr", cfg.Redis.Addr, "ttl", cfg.SessionTTL())
	return stream.Tee(logRec, stream.NewRedisRecorder(rdb, cfg.SessionTTL(), logger)), func() { rdb.Close() }
}

func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("interviewd is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop interviewd (PID %d): %v", pid, err)
		os.Remove(pidPath)
		return err
	}

	printSuccess("Sent stop signal to interviewd (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	client, err := newAPIClient()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
		return nil
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		return nil
	}
	printStatus("Server", "running at %s", client.baseURL)

	resp, err = client.get(ctx, "/api/ai/status")
	if err != nil {
		return err
	}
	var report orchestrator.StatusReport
	if err := decodeJSON(resp, &report); err != nil {
		return err
	}
	printStatusReport(report)
	return nil
}

func printStatusReport(r orchestrator.StatusReport) {
	for _, d := range r.Providers {
		state := colorize(colorGreen, "available")
		if !d.Available {
			state = colorize(colorYellow, "unavailable")
			if d.Reason != "" {
				state += " (" + d.Reason + ")"
			}
		}
		printStatus("Provider "+d.Name, "%s [%s]", state, d.Capabilities)
	}
	for _, m := range []string{"question", "evaluation", "deep", "network", "http", "simple"} {
		if served, ok := r.Modes[m]; ok {
			printStatus("Mode "+m, "%s", served)
		}
	}
	printStatus("Active sessions", "%d", r.ActiveSessions)
}
