// Command bombe is the reference CLI: index a repo, serve its seven MCP
// query tools, and optionally push/pull against a control plane. Output
// is JSON lines on stdout; exit codes are 0 on success, nonzero on a
// fatal error, mirroring the teacher's cmd/lci entrypoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bombeindex/bombe/internal/controlplane"
	"github.com/bombeindex/bombe/internal/hybrid"
	"github.com/bombeindex/bombe/internal/indexing"
	"github.com/bombeindex/bombe/internal/store"
	"github.com/bombeindex/bombe/internal/types"
	"github.com/bombeindex/bombe/internal/version"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// syncLogger is the process-wide structured logger for the hybrid sync
// client; debugEnabled raises it to debug level so --log-level debug
// surfaces push/pull/reconcile detail alongside the JSON-line events.
var syncLogger = zap.NewNop()

func main() {
	app := &cli.App{
		Name:                   "bombe",
		Usage:                  "Index a codebase's symbol/call graph and serve it over MCP",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "repo", Aliases: []string{"r"}, Usage: "Repository root to index", Value: "."},
			&cli.StringFlag{Name: "db-path", Usage: "Path to the sqlite graph store (default <repo>/.bombe/bombe.db)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug|info|warn|error", Value: "info"},
			&cli.BoolFlag{Name: "init-only", Usage: "Open/create the store and apply schema, then exit without indexing"},
			&cli.BoolFlag{Name: "hybrid-sync", Usage: "Run a push/pull sync cycle against the control plane after indexing"},
			&cli.StringFlag{Name: "control-plane-url", Usage: "Control-plane base URL (empty uses a local file-backed transport)"},
			&cli.StringFlag{Name: "control-plane-token", Usage: "Bearer token for control-plane auth"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			indexFullCommand(),
			indexIncrementalCommand(),
			statusCommand(),
			doctorCommand(),
			watchCommand(),
			controlPlaneServeCommand(),
		},
		Before: func(c *cli.Context) error {
			debugEnabled = c.String("log-level") == "debug"
			if debugEnabled {
				l, err := zap.NewDevelopment()
				if err != nil {
					return fmt.Errorf("build sync logger: %w", err)
				}
				syncLogger = l
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			return runServe(c)
		},
	}

	if err := app.Run(os.Args); err != nil {
		emit(event{Type: "fatal", Error: err.Error()})
		os.Exit(1)
	}
}

// event is the one stdout JSON-line shape every subcommand emits,
// narrow enough to cover a status line, a stats summary, or a fatal
// error without a schema per command.
type event struct {
	Type    string                 `json:"type"`
	Message string                 `json:"message,omitempty"`
	Stats   *types.IndexStats      `json:"stats,omitempty"`
	Sync    *types.SyncReport      `json:"sync_report,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Extra   map[string]interface{} `json:"extra,omitempty"`
}

// debugEnabled gates the handful of log.Printf diagnostics emitted
// alongside the JSON-line event stream; everything user-facing goes
// through emit regardless.
var debugEnabled bool

func emit(e event) {
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(e); err != nil {
		log.Printf("bombe: write event: %v", err)
	}
}

func dbPathFor(c *cli.Context) string {
	if p := c.String("db-path"); p != "" {
		return p
	}
	return filepath.Join(c.String("repo"), ".bombe", "bombe.db")
}

// openPipeline opens the store at dbPathFor(c) (creating its directory
// if necessary) and builds an indexing.Pipeline rooted at --repo.
func openPipeline(ctx context.Context, c *cli.Context) (*indexing.Pipeline, *store.Store, error) {
	dbPath := dbPathFor(c)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create db directory: %w", err)
	}
	st, err := store.Open(ctx, dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	if debugEnabled {
		log.Printf("bombe: opened store at %s", dbPath)
	}
	runtime := types.DefaultRuntimeConfig()
	runtime.ControlPlaneToken = c.String("control-plane-token")
	p, err := indexing.New(c.String("repo"), st, runtime, nil)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("build pipeline: %w", err)
	}
	return p, st, nil
}

func waitForShutdown() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}

// maybeHybridSync runs one push/pull sync cycle for the just-indexed
// snapshot when --hybrid-sync is set, reporting but never failing the
// calling command over a sync-side error.
func maybeHybridSync(ctx context.Context, c *cli.Context, st *store.Store, delta types.IndexDelta) {
	if !c.Bool("hybrid-sync") {
		return
	}
	transport, err := buildTransport(c)
	if err != nil {
		emit(event{Type: "sync_error", Error: err.Error()})
		return
	}
	engine := hybrid.NewEngine(st, transport, delta.Header.RepoID, delta.Header.ToolVersion, delta.Header.SchemaVersion)
	engine.Log = syncLogger
	report, err := engine.RunSyncCycle(ctx, &delta)
	if err != nil {
		emit(event{Type: "sync_error", Error: err.Error()})
		return
	}
	emit(event{Type: "sync_report", Sync: &report})
}

func buildTransport(c *cli.Context) (hybrid.Transport, error) {
	if url := c.String("control-plane-url"); url != "" {
		return controlplane.NewHTTPTransport(url, c.String("control-plane-token")), nil
	}
	dir := filepath.Join(filepath.Dir(dbPathFor(c)), "sync")
	return hybrid.NewFileTransport(dir, func(d types.IndexDelta) (types.ArtifactBundle, bool) {
		return hybrid.Promote(d, hybrid.DefaultPromotionThresholds(), hybrid.NewArtifactID(), time.Now().UnixMilli())
	})
}
