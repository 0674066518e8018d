package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tutu-network/peernet/internal/api"
	"github.com/tutu-network/peernet/internal/domain"
	"github.com/tutu-network/peernet/internal/health"
	_ "github.com/tutu-network/peernet/internal/infra/metrics" // Register Prometheus metrics
	"github.com/tutu-network/peernet/internal/infra/network"
	"github.com/tutu-network/peernet/internal/infra/sqlite"
	"github.com/tutu-network/peernet/internal/logging"
)

// addressBookSeedFactor bounds how many stored outbound addresses are added
// to the seed list, as a multiple of the outbound capacity.
const addressBookSeedFactor = 4

// Daemon is the peernet runtime. It wires the node, its address book, the
// health checker and the status API together.
type Daemon struct {
	Config Config
	DB     *sqlite.DB
	Node   *network.Node
	Server *api.Server
	Health *health.Checker

	recorder  *addressRecorder
	log       *zap.SugaredLogger
	closeOnce sync.Once
	closeErr  error
}

// New creates and initializes a Daemon from the on-disk configuration.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log := logging.Named("daemon")

	// Open SQLite
	db, err := sqlite.Open(peernetHome())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	nodeID, err := resolveNodeID(cfg.Node.ID, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("resolve node id: %w", err)
	}

	poolCfg := cfg.PoolSettings()
	if cfg.Seeds.UseAddressBook {
		poolCfg.Seeds = mergeSeeds(poolCfg.Seeds, storedSeeds(db, poolCfg.MaxOutbound*addressBookSeedFactor, log))
	}

	recorder := newAddressRecorder(db, log)
	poolCfg.Logger = logging.Named("p2p")
	poolCfg.Hooks = recorder.hooks()

	node, err := network.NewNode(nodeID, poolCfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create node: %w", err)
	}

	srv := api.NewServer(node, db)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	checker := health.NewChecker(db, node)
	srv.SetHealth(checker)

	return &Daemon{
		Config:   cfg,
		DB:       db,
		Node:     node,
		Server:   srv,
		Health:   checker,
		recorder: recorder,
		log:      log.With("node", nodeID),
	}, nil
}

// Serve connects the node, starts the HTTP API and background services, and
// blocks until ctx is cancelled or SIGINT/SIGTERM arrives.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Node.Connect(ctx); err != nil {
		return multierr.Append(fmt.Errorf("start node: %w", err), d.Close())
	}

	addr := net.JoinHostPort(d.Config.API.Host, strconv.Itoa(d.Config.API.Port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.recorder.run(gctx)
		return nil
	})
	g.Go(func() error {
		d.Health.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	status := d.Node.Status()
	fmt.Printf("peernet node %s listening on %s\n", status.NodeID, status.ListenAddr)
	fmt.Printf("  API: http://%s\n", addr)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}
	d.log.Infow("Daemon started", "api", addr, "seeds", status.Seeds)

	err := g.Wait()
	d.log.Infow("Daemon stopping")
	return multierr.Append(err, d.Close())
}

// Close shuts down all daemon resources. Safe to call more than once.
func (d *Daemon) Close() error {
	d.closeOnce.Do(func() {
		var err error
		if d.Node != nil {
			err = multierr.Append(err, d.Node.Close())
		}
		if d.recorder != nil {
			d.recorder.flush()
		}
		if d.DB != nil {
			err = multierr.Append(err, d.DB.Close())
		}
		logging.Sync()
		d.closeErr = err
	})
	return d.closeErr
}

// resolveNodeID returns the configured id, else the persisted one, else a
// fresh "node-<uuid>" that is persisted for the next start.
func resolveNodeID(configured string, db *sqlite.DB) (string, error) {
	if configured != "" {
		return configured, nil
	}
	id, err := db.GetNodeInfo("node_id")
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	id = "node-" + uuid.NewString()
	if err := db.SetNodeInfo("node_id", id); err != nil {
		return "", err
	}
	return id, nil
}

// storedSeeds reads outbound addresses from the address book. A read
// failure only costs the extra seeds.
func storedSeeds(book domain.AddressBook, limit int, log *zap.SugaredLogger) []string {
	addrs, err := book.ListAddresses(domain.Outbound, limit)
	if err != nil {
		log.Warnw("Could not read address book", "error", err)
		return nil
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Hostname)
	}
	return out
}

// mergeSeeds appends extra to seeds, skipping duplicates.
func mergeSeeds(seeds, extra []string) []string {
	seen := make(map[string]bool, len(seeds)+len(extra))
	out := make([]string, 0, len(seeds)+len(extra))
	for _, s := range append(append([]string(nil), seeds...), extra...) {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
