package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/pickup/internal/config"
	"github.com/roach88/pickup/internal/order"
	"github.com/roach88/pickup/internal/store"
	"github.com/roach88/pickup/internal/token"
)

// TokenOptions holds flags for the token subcommands.
type TokenOptions struct {
	*RootOptions
	OrderID     string
	UserID      string
	CafeteriaID string
	CreatedAt   string
	OrdersFile  string
	StorePath   string
}

// GenerateResult is an issued pickup code.
type GenerateResult struct {
	Token     string        `json:"token"`
	Payload   token.Payload `json:"payload"`
	CreatedAt string        `json:"created_at"`
}

func (r GenerateResult) String() string {
	return r.Token
}

// VerifyResult is the outcome of checking a pickup code.
type VerifyResult struct {
	Valid   bool   `json:"valid"`
	Result  string `json:"result"`
	OrderID string `json:"order_id,omitempty"`
	State   string `json:"state,omitempty"`
}

func (r VerifyResult) String() string {
	mark := "\u2717"
	if r.Valid {
		mark = "\u2713"
	}
	s := fmt.Sprintf("%s %s", mark, r.Result)
	if r.OrderID != "" {
		s += " order=" + r.OrderID
	}
	if r.State != "" {
		s += " state=" + r.State
	}
	return s
}

// NewTokenCommand creates the token command and its subcommands.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and verify pickup codes",
		Long: `Issue and verify pickup codes.

The signing secret comes from the configuration (PICKUP_TOKEN_SECRET or the
token.secret key of --config). A missing secret is a command error.`,
	}

	cmd.AddCommand(newTokenGenerateCommand(&TokenOptions{RootOptions: rootOpts}))
	cmd.AddCommand(newTokenVerifyCommand(&TokenOptions{RootOptions: rootOpts}))

	return cmd
}

func newTokenGenerateCommand(opts *TokenOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Issue the pickup code for an order",
		Long: `Issue the pickup code for an order. The code is bound to the order id,
user, cafeteria and creation time; the same inputs always give the same code.

Examples:
  pickup token generate --user u-1 --cafeteria caf-7 --created-at 2026-03-14T12:30:00Z
  pickup token generate --order ord-1 --user u-1 --cafeteria caf-7 --created-at 2026-03-14T12:30:00Z --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenGenerate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.OrderID, "order", "", "order id (default: a new UUIDv7)")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&opts.CafeteriaID, "cafeteria", "", "cafeteria id")
	cmd.Flags().StringVar(&opts.CreatedAt, "created-at", "", "order creation time, RFC 3339 (default: now)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("cafeteria")

	return cmd
}

func newTokenVerifyCommand(opts *TokenOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a scanned pickup code",
		Long: `Verify a scanned pickup code.

With --created-at the code is checked on its own. With --orders or --store
the claimed order is looked up and the code is checked against its stored
identity and creation time, exactly as the counter scanner does.

Exit codes:
  0 - Code is valid
  1 - Code is invalid
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenVerify(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.CreatedAt, "created-at", "", "order creation time, RFC 3339")
	cmd.Flags().StringVar(&opts.OrdersFile, "orders", "", "JSON file of orders to look the code up in")
	cmd.Flags().StringVar(&opts.StorePath, "store", "", "SQLite store to look the code up in")
	cmd.MarkFlagsMutuallyExclusive("created-at", "orders", "store")

	return cmd
}

func runTokenGenerate(opts *TokenOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	svc, err := tokenService(opts.RootOptions, f)
	if err != nil {
		return err
	}

	created := time.Now().UTC().Truncate(time.Millisecond)
	if opts.CreatedAt != "" {
		if created, err = time.Parse(time.RFC3339Nano, opts.CreatedAt); err != nil {
			return f.Fail(ExitCommandError, ErrCodeToken, fmt.Sprintf("invalid --created-at: %v", err), nil)
		}
	}

	orderID := opts.OrderID
	if orderID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("generate order id: %v", err), nil)
		}
		orderID = id.String()
	}

	p := svc.Generate(orderID, opts.UserID, opts.CafeteriaID, created)
	raw, err := token.Encode(p)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeToken, err.Error(), nil)
	}

	return f.Success(GenerateResult{
		Token:     raw,
		Payload:   p,
		CreatedAt: created.Format(time.RFC3339Nano),
	})
}

func runTokenVerify(opts *TokenOptions, raw string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	svc, err := tokenService(opts.RootOptions, f)
	if err != nil {
		return err
	}

	var result VerifyResult
	switch {
	case opts.CreatedAt != "":
		result, err = verifyStandalone(svc, raw, opts.CreatedAt)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeToken, err.Error(), nil)
		}
	case opts.OrdersFile != "" || opts.StorePath != "":
		lookup, closeFn, err := openLookup(cmd, f, opts)
		if err != nil {
			return err
		}
		defer closeFn()

		logger := newLogger(f.GetErrWriter(), slog.LevelWarn, opts.Verbose)
		res, err := token.NewScanner(svc, lookup, token.WithLogger(logger)).Scan(cmd.Context(), raw)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		result = VerifyResult{Valid: res.Valid, Result: res.Result, OrderID: res.OrderID, State: string(res.State)}
	default:
		return f.Fail(ExitCommandError, ErrCodeToken, "one of --created-at, --orders or --store is required", nil)
	}

	if err := f.Success(result); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, "token invalid: "+result.Result)
	}
	return nil
}

func verifyStandalone(svc *token.Service, raw, createdAt string) (VerifyResult, error) {
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("invalid --created-at: %w", err)
	}
	p, err := token.Decode(raw)
	if err != nil {
		return VerifyResult{Result: token.ResultMalformed}, nil
	}
	if !svc.Verify(p, created) {
		return VerifyResult{Result: token.ResultBadSignature, OrderID: p.OrderID}, nil
	}
	return VerifyResult{Valid: true, Result: token.ResultValid, OrderID: p.OrderID}, nil
}

// tokenService builds the signing service from configuration.
func tokenService(opts *RootOptions, f *OutputFormatter) (*token.Service, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	svc, err := token.NewService([]byte(cfg.Token.Secret))
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	return svc, nil
}

// openLookup returns the order source named by --orders or --store.
func openLookup(cmd *cobra.Command, f *OutputFormatter, opts *TokenOptions) (order.Lookup, func(), error) {
	if opts.StorePath != "" {
		logger := newLogger(io.Discard, slog.LevelInfo, false)
		st, err := store.Open(opts.StorePath, store.WithLogger(logger))
		if err != nil {
			return nil, nil, f.Fail(ExitCommandError, ErrCodeReadFailed, err.Error(), nil)
		}
		return st, func() { st.Close() }, nil
	}

	inputs, err := loadOrders(cmd, f, opts.OrdersFile)
	if err != nil {
		return nil, nil, err
	}
	m := make(orderMap, len(inputs))
	for _, in := range inputs {
		m[in.Order.ID] = in.Order
	}
	return m, func() {}, nil
}

// orderMap is an order.Lookup over orders read from a file.
type orderMap map[string]order.Order

func (m orderMap) Get(_ context.Context, id string) (order.Order, error) {
	o, ok := m[id]
	if !ok {
		return order.Order{}, fmt.Errorf("order %s: %w", id, order.ErrNotFound)
	}
	return o, nil
}

var _ order.Lookup = orderMap(nil)
