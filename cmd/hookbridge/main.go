package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/yousuf/hookbridge/internal/config"
	"github.com/yousuf/hookbridge/internal/loader"
	"github.com/yousuf/hookbridge/internal/logging"
	"github.com/yousuf/hookbridge/internal/server"
	"github.com/yousuf/hookbridge/internal/session"
	"github.com/yousuf/hookbridge/internal/symbols"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hookbridge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		return errors.New("CONFIG_PATH environment variable is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logging.New(cfg.LogLevel())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	logging.SetLogger(log)

	registry := symbols.NewRegistry(cfg.Capabilities())
	log.Info("loaded configuration",
		zap.String("role", cfg.Role),
		zap.Int("symbols", len(registry.All())),
		zap.Int("modules", len(cfg.Modules)),
		zap.Int("extensions", len(cfg.Extensions)),
	)

	modules, bindings := bindModules(log, cfg, registry)
	defer func() {
		for _, m := range modules {
			if err := m.Close(); err != nil {
				log.Warn("failed to close module", zap.String("path", m.Path()), zap.Error(err))
			}
		}
	}()

	sessionMgr, err := session.NewManager(cfg)
	if err != nil {
		return err
	}

	addr := cfg.Listen
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	if addr == "" {
		addr = ":3000"
	}

	// Each connection gets its own server; runtimes are shared through the manager.
	handler := mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return server.NewMcpServer(sessionMgr, server.Options{
			Registry: registry,
			Bindings: bindings,
		})
	}, nil)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("hookbridge MCP server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn("server shutdown error", zap.Error(err))
	}

	sessionMgr.CloseAll()

	log.Info("server stopped")
	return nil
}

// bindModules opens every configured module and resolves the registry in it.
// A module that fails to open is skipped; unresolved symbols are logged.
func bindModules(log *zap.Logger, cfg *config.Config, registry *symbols.Registry) ([]*loader.Module, map[string]map[string]uintptr) {
	var modules []*loader.Module
	bindings := make(map[string]map[string]uintptr, len(cfg.Modules))

	for _, mc := range cfg.Modules {
		m, err := loader.Open(mc.Dir, mc.Name, mc.Options())
		if err != nil {
			log.Error("failed to open module", zap.String("module", mc.Name), zap.Error(err))
			continue
		}
		modules = append(modules, m)

		bound, err := m.Bind(registry)
		if err != nil {
			log.Warn("unresolved symbols", zap.String("module", mc.Name), zap.Error(err))
		}
		bindings[mc.Name] = bound
		log.Info("bound module",
			zap.String("module", mc.Name),
			zap.String("path", m.Path()),
			zap.Int("symbols", len(bound)),
		)
	}

	return modules, bindings
}
