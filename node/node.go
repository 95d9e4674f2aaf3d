package node

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/getsentry/sentry-go"
	"github.com/go-co-op/gocron/v2"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/AvaProtocol/ap-router/core/backup"
	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/config"
	"github.com/AvaProtocol/ap-router/core/history"
	"github.com/AvaProtocol/ap-router/core/migrator"
	"github.com/AvaProtocol/ap-router/core/router"
	"github.com/AvaProtocol/ap-router/metrics"
	"github.com/AvaProtocol/ap-router/migrations"
	"github.com/AvaProtocol/ap-router/pkg/logger"
	"github.com/AvaProtocol/ap-router/storage"
	"github.com/AvaProtocol/ap-router/version"
)

type NodeStatus string

const (
	initStatus     NodeStatus = "init"
	runningStatus  NodeStatus = "running"
	shutdownStatus NodeStatus = "shutdown"
)

func RunWithConfig(configPath string) error {
	nodeConfig, err := config.NewConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to parse config file: %s\nMake sure it exists and is a valid yaml file: %w", configPath, err)
	}

	n, err := New(nodeConfig)
	if err != nil {
		return fmt.Errorf("cannot initialize router node from config: %w", err)
	}

	return n.Start(context.Background())
}

// Node owns the simulated chain with the router deployed on it and serves
// it over HTTP.
type Node struct {
	logger logger.Logger
	config *config.Config

	db       storage.Storage
	backup   *backup.Service
	migrator *migrator.Migrator
	history  *history.Repository

	state   *chain.State
	router  *router.Client
	service *Service

	registry *prometheus.Registry
	metrics  *metrics.RouterMetrics

	cache     *agentCache
	validator *requestValidator
	scheduler gocron.Scheduler
	echo      *echo.Echo

	mu     sync.RWMutex
	status NodeStatus
}

// New opens storage, boots the chain from genesis and prepares every
// service. Nothing is served until Start.
func New(c *config.Config) (*Node, error) {
	n := &Node{
		logger:    c.Logger,
		config:    c,
		status:    initStatus,
		validator: newRequestValidator(),
	}

	var err error
	if c.InMemory {
		n.db, err = storage.NewInMemory()
	} else {
		n.db, err = storage.NewWithPath(c.DbPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if c.BackupDir != "" {
		n.backup = backup.NewService(n.logger, n.db, c.BackupDir)
	}
	n.migrator = migrator.NewMigrator(n.db, n.backup, migrations.Migrations, n.logger)
	n.history = history.NewRepository(n.db, n.logger)

	var tokens []common.Address
	n.state, n.router, tokens, err = bootChain(c)
	if err != nil {
		n.db.Close()
		return nil, err
	}

	n.cache, err = newAgentCache(context.Background())
	if err != nil {
		n.db.Close()
		return nil, fmt.Errorf("cannot initialize agent cache: %w", err)
	}

	n.registry = prometheus.NewRegistry()
	n.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	n.metrics = metrics.NewRouterMetrics(n.registry)

	n.service = &Service{
		logger:  n.logger,
		router:  n.router,
		history: n.history,
		metrics: n.metrics,
		agents:  n.cache,
		tokens:  tokens,
	}
	n.registry.MustRegister(metrics.NewRouterStateCollector(n.service))

	n.echo = n.newHttpServer()
	return n, nil
}

func (n *Node) Status() NodeStatus {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

func (n *Node) setStatus(s NodeStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = s
}

// Handler serves the node API without binding a listener.
func (n *Node) Handler() http.Handler {
	return n.echo
}

func (n *Node) Service() *Service {
	return n.service
}

func (n *Node) initSentry() {
	if n.config.SentryDsn == "" {
		n.logger.Info("sentry_dsn not set, Sentry integration is disabled")
		return
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              n.config.SentryDsn,
		Release:          version.Get() + "@" + version.Commit(),
		Environment:      string(n.config.Environment),
		AttachStacktrace: true,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		n.logger.Errorf("Sentry initialization failed: %v", err)
		return
	}
	n.logger.Infof("Sentry initialized for environment: %s", n.config.Environment)
}

// Start migrates storage, starts the maintenance jobs and the HTTP server,
// then blocks until ctx is done or the process is signaled.
func (n *Node) Start(ctx context.Context) error {
	n.logger.Infof("Starting router node %s", version.Get())
	n.initSentry()

	if err := n.migrator.Run(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	n.logger.Info("Starting maintenance scheduler")
	if err := n.startScheduler(ctx); err != nil {
		return err
	}

	n.logger.Info("HTTP server listening", "address", n.config.HttpBindAddress)
	goSafe(func() {
		if err := n.echo.Start(n.config.HttpBindAddress); err != nil {
			n.logger.Warn("HTTP server stopped", "address", n.config.HttpBindAddress, "error", err)
		}
	})
	n.setStatus(runningStatus)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
	case <-ctx.Done():
	}

	n.logger.Infof("Shutting down...")
	return n.Stop()
}

// Stop shuts the HTTP server and jobs down, then closes storage.
func (n *Node) Stop() error {
	n.setStatus(shutdownStatus)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.echo.Shutdown(shutdownCtx); err != nil {
		n.logger.Warn("HTTP server shutdown", "error", err)
	}

	n.stopScheduler()
	if err := n.cache.Close(); err != nil {
		n.logger.Warn("agent cache close", "error", err)
	}
	sentryFlushSafely(2 * time.Second)

	return n.db.Close()
}
