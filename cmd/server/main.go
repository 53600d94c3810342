package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/wavegraph/internal/action/builtin"
	"github.com/gyaneshwarpardhi/wavegraph/internal/api"
	"github.com/gyaneshwarpardhi/wavegraph/internal/config"
	"github.com/gyaneshwarpardhi/wavegraph/internal/runner"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/workflows.yaml", "Path to workflow catalog (.yaml, .toml or .hcl)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	slog.SetDefault(newLogger(*logLevel, *logFormat, os.Stdout))

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	// ── Runner ────────────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := builtin.NewRegistry()
	run, findings, err := runner.New(ctx, cfg.Workflows, reg, cfg.Runner)
	if err != nil {
		slog.Error("failed to build workflows", "err", err)
		os.Exit(1)
	}
	for _, f := range findings {
		slog.Warn("import finding", "scope", f.Scope, "kind", f.Kind, "ids", f.IDs, "msg", f.Message)
	}
	slog.Info("workflows loaded", "count", len(cfg.Workflows), "actions", reg.Types())

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	run.Follow(loader)
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.New(run, loader),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Duration(cfg.Runner.RunTimeoutMs)*time.Millisecond + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	run.Shutdown()
	cancel()
	slog.Info("goodbye")
}
