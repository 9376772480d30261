// FileSurf Server
//
// Features:
// - In-memory path index with add/update/delete endpoints
// - SSE stream of index mutations
// - Mountable explorer sessions (tree view, tabbed editor, change watcher)
//   driven over HTTP or WebSocket
// - Prometheus metrics & structured logging (zap), runtime log level on
//   the metrics listener (GET/PUT /log-level)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/fruitsalade/filesurf/internal/api"
	"github.com/fruitsalade/filesurf/internal/config"
	"github.com/fruitsalade/filesurf/internal/events"
	"github.com/fruitsalade/filesurf/internal/explorer"
	"github.com/fruitsalade/filesurf/internal/logging"
	"github.com/fruitsalade/filesurf/internal/metrics"
	"github.com/fruitsalade/filesurf/internal/pathindex"
	"github.com/fruitsalade/filesurf/internal/treeview"
	"github.com/fruitsalade/filesurf/pkg/models"
	"github.com/fruitsalade/filesurf/pkg/tree"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("FileSurf server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	// Load the seed tree
	root, err := loadSeed(cfg.SeedFile)
	if err != nil {
		logging.Fatal("seed load failed", zap.String("file", cfg.SeedFile), zap.Error(err))
	}
	store, err := pathindex.NewStoreFromTree(root)
	if err != nil {
		logging.Fatal("index build failed", zap.Error(err))
	}
	logging.Info("path index built", zap.Int("entries", store.Snapshot().Len()))

	// Initialize SSE broadcaster
	broadcaster := events.NewBroadcaster()
	detach := broadcaster.Attach(store)
	defer detach()
	logging.Info("SSE broadcaster initialized")

	tag, err := language.Parse(cfg.CollateLang)
	if err != nil {
		logging.Warn("unknown collation language, using English",
			zap.String("lang", cfg.CollateLang), zap.Error(err))
		tag = language.English
	}
	srv := api.NewServer(store, broadcaster, explorer.Options{
		Theme:        explorer.Theme(cfg.Theme),
		PanelWidth:   cfg.PanelWidth,
		PollInterval: cfg.PollInterval,
		Highlight:    cfg.WatchHighlight,
		Pulse:        cfg.EditorPulse,
		Wake:         cfg.WatchWake,
		Tree: treeview.Options{
			ExpandNames: cfg.ExpandNames,
			Language:    tag,
		},
	})
	defer srv.Close()

	// Start metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsMux.Handle("/log-level", logging.LevelHandler())
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Close()
		httpServer.Shutdown(ctx)
		metricsServer.Close()
	}()

	logging.Info("server listening (HTTP)", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}

// loadSeed reads a JSON tree from path, or returns the sample project.
func loadSeed(path string) (*models.FileNode, error) {
	if path == "" {
		logging.Debug("no seed file, using sample project")
		return sampleTree(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tree.Decode(f)
}

func sampleTree() *models.FileNode {
	return models.Folder("my-project",
		models.Folder("src",
			models.File("index.ts", "import { greet } from './utils';\n\nconsole.log(greet('world'));\n"),
			models.File("utils.ts", "export function greet(name: string): string {\n  return `Hello, ${name}!`;\n}\n"),
			models.Folder("components",
				models.File("Button.tsx", "export const Button = () => <button>Click</button>;\n"),
			),
		),
		models.Folder("public",
			models.File("index.html", "<!doctype html>\n<html><body><div id=\"root\"></div></body></html>\n"),
		),
		models.File("package.json", "{\n  \"name\": \"my-project\",\n  \"version\": \"1.0.0\"\n}\n"),
		models.File("README.md", "# My Project\n\nA sample project.\n"),
	)
}
