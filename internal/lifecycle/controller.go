// Package lifecycle wires the monitor together and maps how it ended onto a
// process exit code.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/andres10976/certwatch/internal/config"
	"github.com/andres10976/certwatch/internal/handler"
	"github.com/andres10976/certwatch/internal/metrics"
	"github.com/andres10976/certwatch/internal/relay"
	"github.com/andres10976/certwatch/internal/repository"
	"github.com/andres10976/certwatch/internal/service/certstream"
	"github.com/andres10976/certwatch/internal/service/ctlog"
	"github.com/andres10976/certwatch/internal/service/feed"
)

const (
	ExitOK                   = 0
	ExitStartupFailure       = 1
	ExitTransportUnavailable = 2
	ExitFeedFailure          = 3
)

const shutdownTimeout = 10 * time.Second

type StoreOpener func(ctx context.Context, dsn string) (repository.Store, error)

type Controller struct {
	cfg       *config.Config
	logger    *slog.Logger
	stdout    io.Writer
	openStore StoreOpener
	dialer    feed.Dialer
	signals   []os.Signal
}

type Option func(*Controller)

// WithStdout replaces the relay channel, os.Stdout by default.
func WithStdout(w io.Writer) Option {
	return func(c *Controller) { c.stdout = w }
}

func WithStoreOpener(fn StoreOpener) Option {
	return func(c *Controller) { c.openStore = fn }
}

// WithDialer bypasses the configured feed source.
func WithDialer(d feed.Dialer) Option {
	return func(c *Controller) { c.dialer = d }
}

func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		cfg:       cfg,
		logger:    logger.With("component", "lifecycle"),
		stdout:    os.Stdout,
		openStore: OpenStore,
		signals:   []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run starts the monitor and blocks until it stops. The store is always
// closed before Run returns.
func (c *Controller) Run(ctx context.Context) (code int) {
	store, err := c.openStore(ctx, c.cfg.DatabaseURL)
	if err != nil {
		c.logger.Error("failed to open certificate store", "error", err)
		return ExitStartupFailure
	}
	defer func() {
		if err := store.Close(); err != nil {
			c.logger.Warn("failed to close certificate store", "error", err)
		}
		c.logger.Info("certificate store closed")
	}()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("monitor panicked", "error", r, "stack", string(debug.Stack()))
			code = ExitFeedFailure
		}
	}()

	patterns := config.LoadPatterns(c.cfg.PatternFile, c.logger)
	c.logger.Info("monitoring patterns",
		"include", patterns.IncludePatterns, "exclude", patterns.ExcludePatterns)

	ctx, stop := signal.NotifyContext(ctx, c.signals...)
	defer stop()

	dialer, err := c.resolveDialer()
	if err != nil {
		c.logger.Error("no usable feed transport", "error", err)
		return ExitTransportUnavailable
	}

	var active repository.Store = store
	if c.cfg.DedupCacheSize > 0 {
		dedup, err := repository.NewDedupStore(store, c.cfg.DedupCacheSize)
		if err != nil {
			c.logger.Error("failed to create dedup cache", "error", err)
			return ExitStartupFailure
		}
		active = dedup
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	session := feed.NewSession(dialer, active, relay.New(c.stdout), patterns, c.logger, feed.WithMetrics(m))

	shutdownAPI, err := c.startAPI(reg, session, active)
	if err != nil {
		c.logger.Error("failed to start http api", "error", err)
		return ExitStartupFailure
	}
	defer shutdownAPI()

	runErr := session.Run(ctx)
	switch {
	case runErr == nil:
		c.logger.Info("monitor stopped")
		return ExitOK
	case errors.Is(runErr, feed.ErrTransportUnavailable):
		c.logger.Error("feed transport unavailable", "error", runErr)
		return ExitTransportUnavailable
	default:
		c.logger.Error("feed failed", "error", runErr)
		return ExitFeedFailure
	}
}

func (c *Controller) resolveDialer() (feed.Dialer, error) {
	if c.dialer != nil {
		return c.dialer, nil
	}
	switch c.cfg.Source {
	case config.SourceCertStream:
		return certstream.NewDialer(c.cfg.FeedURL, c.logger), nil
	case config.SourceCTLog:
		return ctlog.NewSource(c.cfg.CTLogURL, c.cfg.CTBatchSize, c.cfg.CTPollInterval, c.logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown feed source %q", feed.ErrTransportUnavailable, c.cfg.Source)
	}
}

// startAPI serves the query API when an address is configured. The returned
// func stops it and must run before the store is closed.
func (c *Controller) startAPI(reg *prometheus.Registry, session *feed.Session, store repository.Store) (func(), error) {
	if c.cfg.HTTPAddr == "" {
		return func() {}, nil
	}

	ln, err := net.Listen("tcp", c.cfg.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", c.cfg.HTTPAddr, err)
	}

	srv := &http.Server{
		Handler: handler.NewRouter(c.cfg.CORSAllowOrigin, reg,
			handler.NewCertificateHandler(store),
			handler.NewMonitorHandler(session, store)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.logger.Info("http api listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("http api error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			c.logger.Warn("http api shutdown", "error", err)
		}
		<-done
	}, nil
}
