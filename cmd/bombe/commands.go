package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bombeindex/bombe/internal/controlplane"
	"github.com/bombeindex/bombe/internal/git"
	"github.com/bombeindex/bombe/internal/hybrid"
	"github.com/bombeindex/bombe/internal/indexing"
	"github.com/bombeindex/bombe/internal/mcpserver"
	"github.com/bombeindex/bombe/internal/parser"
	"github.com/bombeindex/bombe/internal/store"
	"github.com/bombeindex/bombe/internal/types"
	"github.com/bombeindex/bombe/internal/version"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const repoIDMetaKey = "repo_id"
const lastSnapshotMetaKey = "last_snapshot"

// repoIdentity returns this store's stable repo id, minting and
// persisting one on first use.
func repoIdentity(ctx context.Context, st *store.Store) (string, error) {
	if id, ok, err := st.GetRepoMeta(ctx, repoIDMetaKey); err != nil {
		return "", err
	} else if ok {
		return id, nil
	}
	id := uuid.NewString()
	if err := st.SetRepoMeta(ctx, repoIDMetaKey, id); err != nil {
		return "", err
	}
	return id, nil
}

// pushDeltaIfNeeded builds an IndexDelta for changes (index-full passes
// every indexed file, so its delta carries the whole graph) and runs a
// sync cycle if --hybrid-sync is set.
func pushDeltaIfNeeded(ctx context.Context, c *cli.Context, st *store.Store, changes []types.FileChange) {
	if !c.Bool("hybrid-sync") {
		return
	}
	repoID, err := repoIdentity(ctx, st)
	if err != nil {
		emit(event{Type: "sync_error", Error: err.Error()})
		return
	}
	parentSnapshot, _, err := st.GetRepoMeta(ctx, lastSnapshotMetaKey)
	if err != nil {
		emit(event{Type: "sync_error", Error: err.Error()})
		return
	}
	localSnapshot := uuid.NewString()
	delta, err := hybrid.BuildDelta(ctx, st, repoID, parentSnapshot, localSnapshot, version.Version, 1, time.Now().UnixMilli(), changes, types.QualityStats{})
	if err != nil {
		emit(event{Type: "sync_error", Error: err.Error()})
		return
	}
	maybeHybridSync(ctx, c, st, delta)
	if err := st.SetRepoMeta(ctx, lastSnapshotMetaKey, localSnapshot); err != nil {
		emit(event{Type: "sync_error", Error: err.Error()})
	}
}

func indexFullCommand() *cli.Command {
	return &cli.Command{
		Name:  "index-full",
		Usage: "Walk the repo and rebuild the whole symbol/call graph",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			p, st, err := openPipeline(ctx, c)
			if err != nil {
				return err
			}
			defer st.Close()
			if c.Bool("init-only") {
				emit(event{Type: "init_only"})
				return nil
			}
			stats, err := p.FullIndex(ctx)
			if err != nil {
				return fmt.Errorf("full index: %w", err)
			}
			emit(event{Type: "index_complete", Stats: &stats})
			changes, err := allKnownFileChanges(ctx, st)
			if err != nil {
				return fmt.Errorf("list indexed files: %w", err)
			}
			pushDeltaIfNeeded(ctx, c, st, changes)
			return nil
		},
	}
}

func indexIncrementalCommand() *cli.Command {
	return &cli.Command{
		Name:      "index-incremental",
		Usage:     "Apply a set of file changes and rebuild affected symbols/edges",
		ArgsUsage: "CHANGE[:STATUS] ...  (STATUS one of A,M,D,R; default M)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "from-git", Usage: "Derive the change list from git status instead of positional arguments"},
		},
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			p, st, err := openPipeline(ctx, c)
			if err != nil {
				return err
			}
			defer st.Close()
			var changes []types.FileChange
			if c.Bool("from-git") {
				changes, err = git.WorktreeChanges(c.String("repo"))
				if err != nil {
					return fmt.Errorf("derive changes from git: %w", err)
				}
			} else {
				changes = parseFileChangeArgs(c.Args().Slice())
			}
			if len(changes) == 0 {
				return fmt.Errorf("index-incremental requires at least one PATH[:STATUS] argument, or --from-git against a dirty worktree")
			}
			stats, err := p.IncrementalIndex(ctx, changes)
			if err != nil {
				return fmt.Errorf("incremental index: %w", err)
			}
			emit(event{Type: "index_complete", Stats: &stats})
			pushDeltaIfNeeded(ctx, c, st, changes)
			return nil
		},
	}
}

// allKnownFileChanges reports every file currently in the store as a
// modification, so a delta built after a full rebuild carries the
// whole graph rather than nothing.
func allKnownFileChanges(ctx context.Context, st *store.Store) ([]types.FileChange, error) {
	known, err := st.KnownFilePaths(ctx)
	if err != nil {
		return nil, err
	}
	changes := make([]types.FileChange, 0, len(known))
	for path := range known {
		changes = append(changes, types.FileChange{Status: types.ChangeModified, Path: path})
	}
	return changes, nil
}

func parseFileChangeArgs(args []string) []types.FileChange {
	changes := make([]types.FileChange, 0, len(args))
	for _, arg := range args {
		path, status := arg, string(types.ChangeModified)
		if idx := lastColon(arg); idx >= 0 {
			path, status = arg[:idx], arg[idx+1:]
		}
		changes = append(changes, types.FileChange{Status: types.FileChangeStatus(status), Path: path})
	}
	return changes
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Report the store's last-known indexing and sync state",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			st, err := store.Open(ctx, dbPathFor(c))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			repoID, _, err := st.GetRepoMeta(ctx, repoIDMetaKey)
			if err != nil {
				return fmt.Errorf("read repo_id: %w", err)
			}
			lastSnapshot, _, err := st.GetRepoMeta(ctx, lastSnapshotMetaKey)
			if err != nil {
				return fmt.Errorf("read last_snapshot: %w", err)
			}
			breaker := hybrid.NewBreaker(st, "control-plane")
			breakerState, err := breaker.State(ctx)
			if err != nil {
				return fmt.Errorf("read breaker state: %w", err)
			}
			syncEvents, err := st.CountSyncEvents(ctx)
			if err != nil {
				return fmt.Errorf("count sync events: %w", err)
			}
			emit(event{Type: "status", Extra: map[string]interface{}{
				"repo_id":       repoID,
				"last_snapshot": lastSnapshot,
				"breaker_state": breakerState.State,
				"sync_events":   syncEvents,
			}})
			return nil
		},
	}
}

func doctorCommand() *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Report parser grammar availability and store health",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			caps := parser.New().Capabilities()
			capReport := make(map[string]bool, len(caps))
			for lang, ok := range caps {
				capReport[string(lang)] = ok
			}

			st, err := store.Open(ctx, dbPathFor(c))
			storeOK := err == nil
			if err == nil {
				defer st.Close()
			}

			emit(event{Type: "doctor", Extra: map[string]interface{}{
				"parser_capabilities": capReport,
				"store_reachable":     storeOK,
				"db_path":             dbPathFor(c),
			}})
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Debounce filesystem events into incremental re-indexing",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max-cycles", Usage: "Stop after N re-index cycles (0 = unbounded)", Value: 0},
			&cli.IntFlag{Name: "poll-interval-ms", Usage: "Debounce window between a burst of events and the re-index it triggers", Value: 300},
		},
		Action: func(c *cli.Context) error {
			ctx := waitForShutdown()
			p, st, err := openPipeline(ctx, c)
			if err != nil {
				return err
			}
			defer st.Close()

			debounce := time.Duration(c.Int("poll-interval-ms")) * time.Millisecond
			watcher := indexing.NewWatcher(p, debounce)
			maxCycles := c.Int("max-cycles")
			cycles := 0

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			err = watcher.Run(runCtx, func(stats types.IndexStats, runErr error) {
				if runErr != nil {
					emit(event{Type: "watch_error", Error: runErr.Error()})
					return
				}
				emit(event{Type: "index_complete", Stats: &stats})
				cycles++
				if maxCycles > 0 && cycles >= maxCycles {
					cancel()
				}
			})
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Open the store and serve the seven MCP query tools over stdio",
		Action: func(c *cli.Context) error {
			return runServe(c)
		},
	}
}

func runServe(c *cli.Context) error {
	ctx := waitForShutdown()
	st, err := store.Open(ctx, dbPathFor(c))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	runtime := types.DefaultRuntimeConfig()
	runtime.ControlPlaneToken = c.String("control-plane-token")
	srv := mcpserver.NewServer(st, runtime, c.String("repo"))
	emit(event{Type: "serving", Message: "MCP tools ready over stdio"})

	return srv.MCPServer().Run(ctx, &mcp.StdioTransport{})
}

func controlPlaneServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "control-plane-serve",
		Usage: "Run the reference HTTP control plane (push/pull endpoint for many repos)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Value: ":8085", Usage: "address to listen on"},
			&cli.StringFlag{Name: "artifact-db", Usage: "Path to the control plane's own sqlite artifact store", Value: ".bombe-controlplane/artifacts.db"},
			&cli.StringFlag{Name: "signing-key-id", Value: "default"},
			&cli.StringFlag{Name: "signing-key", Usage: "HMAC-SHA-256 signing secret; empty serves unsigned artifacts"},
			&cli.StringFlag{Name: "bearer-token", Usage: "Required bearer token; empty disables auth"},
		},
		Action: func(c *cli.Context) error {
			ctx := waitForShutdown()
			if err := os.MkdirAll(filepath.Dir(c.String("artifact-db")), 0o755); err != nil {
				return fmt.Errorf("create control plane db directory: %w", err)
			}
			cpStore, err := controlplane.OpenStore(ctx, c.String("artifact-db"))
			if err != nil {
				return fmt.Errorf("open control plane store: %w", err)
			}
			defer cpStore.Close()

			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("build control plane logger: %w", err)
			}
			defer logger.Sync()

			srv := controlplane.NewServer(cpStore, hybrid.DefaultPromotionThresholds(),
				c.String("signing-key-id"), []byte(c.String("signing-key")), c.String("bearer-token"))
			srv.Log = logger

			httpSrv := &http.Server{Addr: c.String("listen"), Handler: srv.Router()}
			errCh := make(chan error, 1)
			go func() { errCh <- httpSrv.ListenAndServe() }()
			emit(event{Type: "serving", Message: "control plane listening on " + c.String("listen")})

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if err != nil && err != http.ErrServerClosed {
					return fmt.Errorf("control plane: %w", err)
				}
				return nil
			}
		},
	}
}
