package token

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pickup/internal/order"
)

type mapLookup struct {
	orders map[string]order.Order
	err    error
}

func (m *mapLookup) Get(_ context.Context, id string) (order.Order, error) {
	if m.err != nil {
		return order.Order{}, m.err
	}
	o, ok := m.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

type countingObserver struct {
	results []string
}

func (c *countingObserver) ObserveScan(result string) {
	c.results = append(c.results, result)
}

func newScannerFixture(t *testing.T) (*Scanner, *Service, *countingObserver, order.Order) {
	t.Helper()
	svc := newTestService(t)
	o := order.Order{
		ID:            "o-1",
		UserID:        "u-1",
		CafeteriaID:   "c-1",
		CreatedAt:     testCreatedAt,
		PaymentStatus: order.PaymentSuccess,
		QRStatus:      order.QRActive,
		OrderStatus:   order.StatusPending,
	}
	obs := &countingObserver{}
	sc := NewScanner(svc, &mapLookup{orders: map[string]order.Order{o.ID: o}},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithObserver(obs),
	)
	return sc, svc, obs, o
}

func encodeFor(t *testing.T, p Payload) string {
	t.Helper()
	raw, err := Encode(p)
	require.NoError(t, err)
	return raw
}

func TestScanner_Valid(t *testing.T) {
	sc, svc, obs, o := newScannerFixture(t)
	raw := encodeFor(t, svc.Generate(o.ID, o.UserID, o.CafeteriaID, o.CreatedAt))

	res, err := sc.Scan(context.Background(), raw)
	require.NoError(t, err)

	assert.True(t, res.Valid)
	assert.Equal(t, ResultValid, res.Result)
	assert.Equal(t, order.StateQRActive, res.State)
	assert.True(t, res.Displayable)
	assert.Equal(t, []string{ResultValid}, obs.results)
}

func TestScanner_Rejections(t *testing.T) {
	sc, svc, _, o := newScannerFixture(t)

	forged := svc.Generate(o.ID, o.UserID, o.CafeteriaID, o.CreatedAt)
	forged.SecureHash = svc.Generate("o-9", o.UserID, o.CafeteriaID, o.CreatedAt).SecureHash

	wrongUser := svc.Generate(o.ID, "u-2", o.CafeteriaID, o.CreatedAt)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"malformed", `not a token`, ResultMalformed},
		{"unknown order", encodeFor(t, svc.Generate("o-404", "u-1", "c-1", testCreatedAt)), ResultUnknownOrder},
		{"identity mismatch", encodeFor(t, wrongUser), ResultIdentityMismatch},
		{"bad signature", encodeFor(t, forged), ResultBadSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := sc.Scan(context.Background(), tt.raw)
			require.NoError(t, err)
			assert.False(t, res.Valid)
			assert.Equal(t, tt.want, res.Result)
		})
	}
}

func TestScanner_LookupFailure(t *testing.T) {
	svc := newTestService(t)
	boom := errors.New("connection reset")
	sc := NewScanner(svc, &mapLookup{err: boom})

	_, err := sc.Scan(context.Background(), encodeFor(t, svc.Generate("o-1", "u-1", "c-1", testCreatedAt)))
	assert.ErrorIs(t, err, boom)
}
