// Command orchestrate runs a small demonstration application on top of the
// framework orchestrator: an in-memory store, a cache layered on it, an HTTP
// API exposing health over chi, and a cron-driven heartbeat.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"

	framework "github.com/ts-framework/framework"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or TOML config file")
	addr := flag.String("addr", ":8080", "API listen address")
	flag.Parse()

	logger := framework.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	store := newStoreComponent()
	cache := newCacheComponent(store)
	api := newAPIComponent(*addr, cache)
	heartbeat := newHeartbeatComponent(logger)

	root := framework.NewModule("app",
		framework.WithSubmodules(
			framework.NewModule("platform",
				framework.WithComponents(store, cache),
			),
			framework.NewModule("edge",
				framework.WithComponents(api, heartbeat),
				framework.WithAfterStart(func(ctx context.Context) error {
					logger.Info("Edge fully up", "addr", *addr)
					return nil
				}),
			),
		),
	)

	opts := []framework.Option{framework.WithLogger(logger)}
	if *configPath != "" {
		opts = append(opts, framework.WithConfigFile(*configPath))
	}

	orch, err := framework.NewOrchestrator(root, opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	api.orch = orch

	// surface asynchronous API server failures through the error tree
	orch.Errors().Watch("api-server", api.serverErrs, true)

	if *configPath != "" {
		watcher, err := framework.NewConfigWatcher(*configPath, logger, func() {
			logger.Info("Configuration changed on disk; restart to apply", "path", *configPath)
			event := framework.NewLifecycleEvent(framework.EventTypeConfigChanged, "config-watcher",
				map[string]any{"path": *configPath})
			if err := orch.NotifyObservers(context.Background(), event); err != nil {
				logger.Warn("Failed to notify observers of config change", "error", err)
			}
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer watcher.Close()
	}

	if err := orch.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// storeComponent is an in-memory key/value store.
type storeComponent struct {
	mu   sync.RWMutex
	data map[string]string
	open bool
}

func newStoreComponent() *storeComponent {
	return &storeComponent{}
}

func (s *storeComponent) Name() string { return "store" }

func (s *storeComponent) Register(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = map[string]string{"motd": "hello from the store"}
	return nil
}

func (s *storeComponent) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	return nil
}

func (s *storeComponent) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

func (s *storeComponent) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return "", false
	}
	v, ok := s.data[key]
	return v, ok
}

// cacheComponent fronts the store with a read-through map.
type cacheComponent struct {
	store *storeComponent
	mu    sync.RWMutex
	hot   map[string]string
}

func newCacheComponent(store *storeComponent) *cacheComponent {
	return &cacheComponent{store: store}
}

func (c *cacheComponent) Name() string { return "cache" }

func (c *cacheComponent) Dependencies() []string { return []string{"store"} }

func (c *cacheComponent) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hot = make(map[string]string)
	return nil
}

func (c *cacheComponent) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hot = nil
	return nil
}

func (c *cacheComponent) Get(key string) (string, bool) {
	c.mu.RLock()
	if v, ok := c.hot[key]; ok {
		c.mu.RUnlock()
		return v, true
	}
	c.mu.RUnlock()

	v, ok := c.store.Get(key)
	if !ok {
		return "", false
	}
	c.mu.Lock()
	c.hot[key] = v
	c.mu.Unlock()
	return v, true
}

// apiComponent serves the HTTP API over a chi router.
type apiComponent struct {
	addr       string
	cache      *cacheComponent
	orch       *framework.Orchestrator
	server     *http.Server
	serverErrs chan error
}

func newAPIComponent(addr string, cache *cacheComponent) *apiComponent {
	return &apiComponent{
		addr:       addr,
		cache:      cache,
		serverErrs: make(chan error, 1),
	}
}

func (a *apiComponent) Name() string { return "api" }

func (a *apiComponent) Dependencies() []string { return []string{"cache", "store"} }

func (a *apiComponent) Start(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprintf(w, "phase=%s\n", a.orch.Phase())
	})
	r.Get("/kv/{key}", func(w http.ResponseWriter, req *http.Request) {
		key := chi.URLParam(req, "key")
		v, ok := a.cache.Get(key)
		if !ok {
			http.NotFound(w, req)
			return
		}
		fmt.Fprintln(w, v)
	})

	a.server = &http.Server{
		Addr:              a.addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.serverErrs <- err
		}
		close(a.serverErrs)
	}()
	return nil
}

func (a *apiComponent) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// heartbeatComponent logs a liveness line on a cron schedule.
type heartbeatComponent struct {
	logger framework.Logger
	cron   *cron.Cron
}

func newHeartbeatComponent(logger framework.Logger) *heartbeatComponent {
	return &heartbeatComponent{logger: logger}
}

func (h *heartbeatComponent) Name() string { return "heartbeat" }

func (h *heartbeatComponent) Start(ctx context.Context) error {
	h.cron = cron.New()
	if _, err := h.cron.AddFunc("@every 1m", func() {
		h.logger.Info("Heartbeat")
	}); err != nil {
		return fmt.Errorf("scheduling heartbeat: %w", err)
	}
	h.cron.Start()
	return nil
}

func (h *heartbeatComponent) Stop(ctx context.Context) error {
	stopped := h.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	return nil
}
