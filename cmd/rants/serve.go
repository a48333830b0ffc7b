package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/silverfisk/rants/internal/auth"
	"github.com/silverfisk/rants/internal/bashtool"
	"github.com/silverfisk/rants/internal/config"
	"github.com/silverfisk/rants/internal/gateway"
	"github.com/silverfisk/rants/internal/orchestrator"
	"github.com/silverfisk/rants/internal/ratelimit"
	"github.com/silverfisk/rants/internal/rlm"
	"github.com/silverfisk/rants/internal/store"
	"github.com/silverfisk/rants/internal/tools"
	"github.com/silverfisk/rants/internal/tools/files"
	"github.com/silverfisk/rants/internal/tools/placeholder"
	"github.com/silverfisk/rants/internal/upstream"
	"github.com/silverfisk/rants/internal/webtool"
)

func runServe(ctx context.Context, configPath string, debug bool) error {
	if debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	slog.Info("starting rants gateway", "version", version, "commit", commit, "config", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(store.Config{Path: cfg.State.SQLitePath})
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer db.Close()

	registry, err := buildToolRegistry(cfg)
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}

	client := upstream.New(upstream.Config{
		RequestTimeout: time.Duration(cfg.Resilience.RequestTimeoutSeconds * float64(time.Second)),
		MaxRetries:     cfg.Resilience.MaxRetries,
		BackoffSeconds: cfg.Resilience.BackoffSeconds,
	})
	engine := rlm.New(client, endpointsFromConfig(cfg))

	toolCtx := tools.Context{
		WorkspaceRoot:      cfg.Limits.WorkspaceRoot,
		ToolOutputMaxBytes: cfg.Limits.ToolOutputMaxBytes,
		WebfetchMaxBytes:   cfg.Limits.WebfetchMaxBytes,
		DefaultBashTimeout: 120 * time.Second,
		HTTPClient:         http.DefaultClient,
		Logger:             slog.Default(),
		MaxDepth:           cfg.Limits.MaxDepth,
	}

	orch := orchestrator.New(engine, registry, db, db, orchestrator.Limits{
		MaxToolIterations:   cfg.Limits.MaxToolIterations,
		MaxWallclockSeconds: cfg.Limits.MaxWallclockSeconds,
		MaxDepth:            cfg.Limits.MaxDepth,
	}, toolCtx)

	server := &gateway.Server{
		Orchestrator: orch,
		Auth: auth.NewService(auth.Config{
			Enabled:   cfg.Auth.Enabled,
			APIKeys:   apiKeysFromConfig(cfg),
			JWTSecret: os.Getenv("RANTS_JWT_SECRET"),
		}),
		RateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			Enabled:           cfg.RateLimits.Enabled,
			RequestsPerMinute: cfg.RateLimits.RequestsPerMinute,
			Burst:             cfg.RateLimits.Burst,
		}),
		Models: modelNamesFromConfig(cfg),
		Logger: slog.Default(),
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: server.Router(),
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func buildToolRegistry(cfg config.Config) (*tools.Registry, error) {
	return tools.BuildStandardRegistry(tools.StandardExecutors{
		Bash:       bashtool.Run,
		Read:       files.Read,
		Write:      files.Write,
		Edit:       files.Edit,
		MultiEdit:  files.MultiEdit,
		Patch:      files.Patch,
		LS:         files.LS,
		Glob:       files.Glob,
		Grep:       files.Grep,
		Webfetch:   webtool.Webfetch,
		Websearch:  webtool.Websearch,
		Codesearch: placeholder.Codesearch,
		TodoRead:   placeholder.TodoRead,
		TodoWrite:  placeholder.TodoWrite,
		Task:       placeholder.Task,
		Skill:      placeholder.Skill,
		Batch:      placeholder.Batch,
		Invalid:    placeholder.Invalid,
	})
}

func endpointsFromConfig(cfg config.Config) rlm.Endpoints {
	toEndpoint := func(m config.ModelEndpointConfig) rlm.Endpoint {
		return rlm.Endpoint{
			Provider:     m.Provider,
			BaseURL:      m.BaseURL,
			Model:        m.Model,
			APIKey:       m.APIKey,
			Capabilities: m.Capabilities,
			Parameters:   m.Parameters,
		}
	}
	endpoints := rlm.Endpoints{
		Generator:    toEndpoint(cfg.Models.Generator),
		ToolCompiler: toEndpoint(cfg.Models.ToolCompiler),
	}
	if cfg.Models.CodeInterpreter != nil {
		e := toEndpoint(*cfg.Models.CodeInterpreter)
		endpoints.CodeInterpreter = &e
	}
	if cfg.Models.Vision != nil {
		e := toEndpoint(*cfg.Models.Vision)
		endpoints.Vision = &e
	}
	return endpoints
}

func apiKeysFromConfig(cfg config.Config) []auth.APIKeyConfig {
	out := make([]auth.APIKeyConfig, 0, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		out = append(out, auth.APIKeyConfig{Key: k.Key, TenantID: k.TenantID, Name: k.Name})
	}
	return out
}

func modelNamesFromConfig(cfg config.Config) []string {
	names := make([]string, 0, len(cfg.RLM))
	for name := range cfg.RLM {
		names = append(names, name)
	}
	return names
}
