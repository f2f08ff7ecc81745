// CLAUDE:SUMMARY CLI entry point for teamsfeed: daemon (HTTP + sinks), interactive login, one-shot scrape and MCP stdio modes.
// Command teamsfeed exposes the Microsoft Teams web client as a
// notification feed.
//
// Usage:
//
//	teamsfeed -config teamsfeed.yaml          # daemon: HTTP API, sinks, recycling
//	teamsfeed -config teamsfeed.yaml -login   # sign in interactively and exit
//	teamsfeed -config teamsfeed.yaml -once    # print the feed once and exit
//	teamsfeed -config teamsfeed.yaml -mcp     # serve MCP tools on stdio
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/teamsfeed/feed"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to teamsfeed.yaml config file (defaults when empty)")
	login := flag.Bool("login", false, "open a browser, wait for sign in, then exit")
	once := flag.Bool("once", false, "initialize, print the feed as JSON, then exit")
	mcpMode := flag.Bool("mcp", false, "serve MCP tools on stdin/stdout")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *login, *once, *mcpMode); err != nil {
		logger.Error("teamsfeed: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string, login, once, mcpMode bool) error {
	cfg := feed.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = feed.LoadConfigFile(configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	var opts []feed.Option
	if cfg.Journal.Path != "" {
		j, err := feed.OpenJournal(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer j.Close()
		opts = append(opts, feed.WithJournal(j))
	}

	svc, err := feed.New(cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	switch {
	case login:
		return svc.Login(ctx)
	case once:
		return runOnce(ctx, svc)
	case mcpMode:
		return runMCP(ctx, svc)
	}
	return runDaemon(ctx, logger, cfg, svc)
}

func runOnce(ctx context.Context, svc *feed.Service) error {
	if err := svc.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	data, err := svc.GetData(ctx)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(data)
}

func runMCP(ctx context.Context, svc *feed.Service) error {
	svc.Start(ctx)

	srv := mcp.NewServer(&mcp.Implementation{Name: "teamsfeed", Version: version}, nil)
	svc.RegisterMCP(srv)
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

func runDaemon(ctx context.Context, logger *slog.Logger, cfg *feed.Config, svc *feed.Service) error {
	svc.Start(ctx)

	if sinks := feed.SinksFromConfig(cfg.Sinks, logger); len(sinks) > 0 {
		p := feed.NewPoller(svc, cfg.Poll.Interval, logger, sinks...)
		defer p.Close()
		go p.Run(ctx)
	}

	if cfg.HTTP.Addr == "" {
		<-ctx.Done()
		return nil
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	svc.RegisterHTTP(r)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * cfg.Timeouts.ChatList,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("teamsfeed: http listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("http: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("teamsfeed: http shutdown", "error", err)
	}
	logger.Info("teamsfeed: stopped")
	return nil
}
