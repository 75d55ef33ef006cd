package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/pickup/internal/config"
	"github.com/roach88/pickup/internal/feed/kafkafeed"
	"github.com/roach88/pickup/internal/feed/redisfeed"
	"github.com/roach88/pickup/internal/guard"
	"github.com/roach88/pickup/internal/httpapi"
	"github.com/roach88/pickup/internal/metrics"
	"github.com/roach88/pickup/internal/netmon"
	"github.com/roach88/pickup/internal/scheduler"
	"github.com/roach88/pickup/internal/store"
	"github.com/roach88/pickup/internal/token"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string // overrides http.addr
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the order state API",
		Long: `Serve the order state API over HTTP.

Order snapshots are read from the SQLite store. Live updates for
/orders/{id}/watch come from the feed named by feed.kind: the store itself
(sqlite), Redis pub/sub (redis) or a Kafka topic (kafka). Prometheus metrics
are exposed on /metrics.

The server stops gracefully on SIGINT or SIGTERM.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config, :8080)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	if opts.Addr != "" {
		cfg.HTTP.Addr = opts.Addr
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	logger := newLogger(f.GetErrWriter(), level, opts.Verbose)

	tokens, err := token.NewService([]byte(cfg.Token.Secret))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}

	st, err := store.Open(cfg.Store.Path, store.WithLogger(logger))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeReadFailed, fmt.Sprintf("open store: %v", err), nil)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	src, err := openFeed(ctx, cfg, st, logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}

	rec := metrics.New()

	sig := netmon.NewChanSignal(true)
	mon := netmon.New(sig,
		netmon.WithCheckInterval(cfg.Monitor.CheckInterval),
		netmon.WithSlowThreshold(cfg.Monitor.SlowThreshold),
		netmon.WithLogger(logger),
		netmon.WithObserver(rec),
	)

	loop := scheduler.New(scheduler.WithLogger(logger))
	go func() {
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("monitor loop stopped", "error", err)
		}
	}()
	go func() {
		if err := netmon.NewRunner(mon, sig, loop).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("monitor runner stopped", "error", err)
		}
	}()

	watches := guard.NewRegistry(src, guard.WithLogger(logger), guard.WithObserver(rec))
	defer watches.Close()

	api := httpapi.New(httpapi.Deps{
		Orders:    st,
		Tokens:    tokens,
		Monitor:   mon,
		Watches:   watches,
		Metrics:   rec,
		Transport: sig.Send,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("serving", "addr", cfg.HTTP.Addr, "feed", cfg.Feed.Kind, "store", cfg.Store.Path)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown", err)
	}
	return nil
}

// openFeed returns the live snapshot source named by cfg.Feed.Kind. Background
// consumers it starts stop when ctx ends.
func openFeed(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (guard.Source, error) {
	switch cfg.Feed.Kind {
	case config.FeedSQLite:
		return st, nil

	case config.FeedRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Feed.Redis.Addr,
			Password: cfg.Feed.Redis.Password,
			DB:       cfg.Feed.Redis.DB,
		})
		fd := redisfeed.New(client, redisfeed.WithLogger(logger))
		if err := fd.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis feed: %w", err)
		}
		context.AfterFunc(ctx, func() { client.Close() })
		return fd, nil

	case config.FeedKafka:
		kcfg := kafkafeed.Config{
			Brokers: cfg.Feed.Kafka.Brokers,
			Topic:   cfg.Feed.Kafka.Topic,
			GroupID: cfg.Feed.Kafka.GroupID,
		}
		if err := kcfg.Validate(); err != nil {
			return nil, err
		}
		hub := kafkafeed.NewHub(logger)
		go func() {
			if err := kafkafeed.NewConsumer(kcfg, hub, logger).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("kafka consumer stopped", "error", err)
			}
		}()
		return hub, nil
	}
	return nil, fmt.Errorf("unknown feed kind %q", cfg.Feed.Kind)
}
