package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/pickup/internal/config"
	"github.com/roach88/pickup/internal/feed/kafkafeed"
	"github.com/roach88/pickup/internal/feed/redisfeed"
	"github.com/roach88/pickup/internal/order"
	"github.com/roach88/pickup/internal/store"
)

// PublishResult reports what was written.
type PublishResult struct {
	Orders    int      `json:"orders"`
	Feed      string   `json:"feed"`
	Store     string   `json:"store"`
	Published []string `json:"published"`
}

func (r PublishResult) String() string {
	return fmt.Sprintf("\u2713 wrote %d order(s) to %s (feed %s)", r.Orders, r.Store, r.Feed)
}

// NewPublishCommand creates the publish command.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <order-file>",
		Short: "Write order snapshots to the store and the live feed",
		Long: `Write one JSON order object, or an array of them, to the SQLite store
as whole-record replacements. With feed.kind redis or kafka the snapshots
are also published there, so running servers push them to watchers.

Orders that fail validation are rejected before anything is written.

Examples:
  pickup publish order.json
  PICKUP_FEED=redis pickup publish orders.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runPublish(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	logger := newLogger(f.GetErrWriter(), slog.LevelWarn, opts.Verbose)

	inputs, err := loadOrders(cmd, f, path)
	if err != nil {
		return err
	}
	orders := make([]order.Order, len(inputs))
	for i, in := range inputs {
		if err := order.Validate(in.Order); err != nil {
			return f.Fail(ExitFailure, ErrCodeInvalid, fmt.Sprintf("order #%d: %v", i, err), nil)
		}
		orders[i] = in.Order
	}

	st, err := store.Open(cfg.Store.Path, store.WithLogger(logger))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeReadFailed, fmt.Sprintf("open store: %v", err), nil)
	}
	defer st.Close()

	publish, closeFeed, err := openPublisher(cmd.Context(), cfg)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	defer closeFeed()

	result := PublishResult{Feed: cfg.Feed.Kind, Store: cfg.Store.Path, Published: []string{}}
	for _, o := range orders {
		if err := st.Put(cmd.Context(), o); err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("store %s: %v", o.ID, err), nil)
		}
		if publish != nil {
			if err := publish(cmd.Context(), o); err != nil {
				return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("publish %s: %v", o.ID, err), nil)
			}
			result.Published = append(result.Published, o.ID)
		}
		result.Orders++
		f.VerboseLog("wrote %s", o.ID)
	}

	return f.Success(result)
}

// openPublisher returns the feed writer for cfg. The sqlite feed needs none:
// store subscribers are notified by Put itself.
func openPublisher(ctx context.Context, cfg *config.Config) (func(context.Context, order.Order) error, func(), error) {
	switch cfg.Feed.Kind {
	case config.FeedRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Feed.Redis.Addr,
			Password: cfg.Feed.Redis.Password,
			DB:       cfg.Feed.Redis.DB,
		})
		fd := redisfeed.New(client)
		if err := fd.Ping(ctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis feed: %w", err)
		}
		return fd.Publish, func() { client.Close() }, nil

	case config.FeedKafka:
		kcfg := kafkafeed.Config{
			Brokers: cfg.Feed.Kafka.Brokers,
			Topic:   cfg.Feed.Kafka.Topic,
			GroupID: cfg.Feed.Kafka.GroupID,
		}
		if err := kcfg.Validate(); err != nil {
			return nil, nil, err
		}
		pub := kafkafeed.NewPublisher(kcfg)
		return pub.Publish, func() { pub.Close() }, nil
	}
	return nil, func() {}, nil
}
