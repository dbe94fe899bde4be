// Package cart keeps a user's cart snapshot consistent with the server cart.
//
// Removals and quantity changes are applied locally before the remote call so
// the UI reflects them immediately. Adds wait for the server, adopt the cart
// it returns, then schedule a background refresh. Every local write bumps the
// snapshot version; a background refresh that started before a newer write is
// discarded so it cannot overwrite that write.
package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"storefront-proxy/internal/metrics"
	"storefront-proxy/internal/model"
	"storefront-proxy/internal/reconcile"
)

// Gateway is the subset of the commerce API the engine needs.
type Gateway interface {
	GetCart(ctx context.Context, token string) (*model.CartResponse, error)
	AddToCart(ctx context.Context, token, productID string) (*model.CartResponse, error)
	RemoveFromCart(ctx context.Context, token, productID string) (*model.CartResponse, error)
	UpdateCartQuantity(ctx context.Context, token, productID string, count int) (*model.CartResponse, error)
}

// TokenFunc returns the current session token, or "" when logged out.
type TokenFunc func() string

const defaultRefreshTimeout = 15 * time.Second

const msgLoginRequired = "You need to login first"

// Option configures an Engine.
type Option func(*Engine)

// WithRollback restores the previous snapshot when a remote write fails,
// unless a newer local write happened meanwhile. Off by default.
func WithRollback(enabled bool) Option {
	return func(e *Engine) { e.rollback = enabled }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRefreshTimeout bounds background refreshes, which have no caller context.
func WithRefreshTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.refreshTimeout = d
		}
	}
}

// Engine owns one user's cart snapshot. Safe for concurrent use; concurrent
// writes to the same product are not serialized against each other.
type Engine struct {
	gw             Gateway
	token          TokenFunc
	logger         *slog.Logger
	rollback       bool
	refreshTimeout time.Duration

	mu            sync.Mutex
	snap          *Snapshot // nil when the user has no cart
	version       uint64
	refreshing    bool
	refreshQueued bool

	wg sync.WaitGroup
}

// New creates an engine with an absent snapshot.
func New(gw Gateway, token TokenFunc, opts ...Option) *Engine {
	e := &Engine{
		gw:             gw,
		token:          token,
		logger:         slog.Default(),
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot returns a copy of the current snapshot, or nil when absent.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.clone()
}

// AddItem adds one unit of a product. Without a session it fails with an
// unauthenticated error and touches nothing. On success the cart returned by
// the server becomes the snapshot and a background refresh is scheduled; the
// caller does not wait for it.
func (e *Engine) AddItem(ctx context.Context, productID string) (*Snapshot, error) {
	token := e.token()
	if token == "" {
		return nil, model.NewUnauthenticatedError(msgLoginRequired)
	}

	e.mu.Lock()
	start := e.version
	e.mu.Unlock()

	resp, err := e.gw.AddToCart(ctx, token, productID)
	if err != nil {
		return nil, err
	}

	e.adopt(resp, start, "add")
	e.scheduleRefresh()
	return e.Snapshot(), nil
}

// RemoveItem drops a product's line locally, then deletes it remotely.
// A product not in the cart is a no-op with no remote call.
func (e *Engine) RemoveItem(ctx context.Context, productID string) (*Snapshot, error) {
	token := e.token()

	e.mu.Lock()
	if e.snap == nil {
		e.mu.Unlock()
		return nil, nil
	}
	i := e.snap.find(productID)
	if i < 0 {
		snap := e.snap.clone()
		e.mu.Unlock()
		return snap, nil
	}
	if token == "" {
		e.mu.Unlock()
		return nil, model.NewUnauthenticatedError(msgLoginRequired)
	}
	prev := e.snap
	e.setLocked(newSnapshot(prev.CartID, prev.without(i)))
	mine := e.version
	e.mu.Unlock()

	resp, err := e.gw.RemoveFromCart(ctx, token, productID)
	if err != nil {
		e.writeFailed("remove", productID, mine, prev, err)
		return nil, err
	}

	e.adopt(resp, mine, "remove")
	return e.Snapshot(), nil
}

// UpdateQuantity sets a line's count locally, recomputing totals across all
// lines, then updates it remotely. Counts below 1 and unknown products are
// no-ops with no remote call.
func (e *Engine) UpdateQuantity(ctx context.Context, productID string, count int) (*Snapshot, error) {
	if count < 1 {
		return e.Snapshot(), nil
	}
	token := e.token()

	e.mu.Lock()
	if e.snap == nil {
		e.mu.Unlock()
		return nil, nil
	}
	i := e.snap.find(productID)
	if i < 0 {
		snap := e.snap.clone()
		e.mu.Unlock()
		return snap, nil
	}
	if token == "" {
		e.mu.Unlock()
		return nil, model.NewUnauthenticatedError(msgLoginRequired)
	}
	prev := e.snap
	e.setLocked(newSnapshot(prev.CartID, prev.withCount(i, count)))
	mine := e.version
	e.mu.Unlock()

	resp, err := e.gw.UpdateCartQuantity(ctx, token, productID, count)
	if err != nil {
		e.writeFailed("update quantity", productID, mine, prev, err)
		return nil, err
	}

	e.adopt(resp, mine, "update quantity")
	return e.Snapshot(), nil
}

// Refresh replaces the snapshot with the server cart, unconditionally.
// A missing server cart clears the snapshot; other failures keep the last good one.
func (e *Engine) Refresh(ctx context.Context) *Snapshot {
	token := e.token()
	if token == "" {
		e.Reset()
		return nil
	}

	next, ok := e.fetch(ctx, token)

	e.mu.Lock()
	defer e.mu.Unlock()
	if ok {
		e.replaceLocked(next, "refresh")
	}
	return e.snap.clone()
}

// Reset clears the snapshot locally. In-flight background refreshes are discarded.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.setLocked(nil)
	e.mu.Unlock()
}

// Wait blocks until scheduled background refreshes have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// setLocked installs s as the current snapshot under a new version.
func (e *Engine) setLocked(s *Snapshot) {
	e.version++
	if s != nil {
		s.Version = e.version
	}
	e.snap = s
}

// replaceLocked installs a server snapshot, logging drift from the local one.
func (e *Engine) replaceLocked(next *Snapshot, reason string) {
	if next != nil {
		next.carryDetails(e.snap)
	}
	if drift := reconcile.DiffLines(e.snap.lines(), next.lines()); !drift.IsEmpty() {
		e.logger.Debug("cart drift reconciled",
			slog.String("reason", reason),
			slog.Int("appeared", len(drift.Appeared)),
			slog.Int("vanished", len(drift.Vanished)),
			slog.Int("changed", len(drift.Changed)),
		)
	}
	e.setLocked(next)
}

// adopt installs the cart returned by a write, if there was one and no other
// local write happened since version since.
func (e *Engine) adopt(resp *model.CartResponse, since uint64, reason string) {
	next := fromResponse(resp)
	if next == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.version != since {
		return
	}
	e.replaceLocked(next, reason)
}

func (e *Engine) writeFailed(op, productID string, mine uint64, prev *Snapshot, err error) {
	e.logger.Warn("cart write failed",
		slog.String("operation", op),
		slog.String("product_id", productID),
		slog.String("kind", model.KindOf(err)),
		slog.Bool("rollback", e.rollback),
		slog.Any("error", err),
	)
	if !e.rollback {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.version == mine {
		e.setLocked(prev.clone())
	}
}

// fetch loads the server cart. ok is false when the result should not replace
// the snapshot.
func (e *Engine) fetch(ctx context.Context, token string) (snap *Snapshot, ok bool) {
	resp, err := e.gw.GetCart(ctx, token)
	switch {
	case err == nil:
		return fromResponse(resp), true
	case errors.Is(err, model.ErrNotFound):
		return nil, true
	default:
		metrics.SwallowedErrors.WithLabelValues("cart", model.KindOf(err)).Inc()
		e.logger.Warn("cart refresh failed, keeping last snapshot",
			slog.String("kind", model.KindOf(err)),
			slog.Any("error", err),
		)
		return nil, false
	}
}

// scheduleRefresh starts a background refresh, or queues one behind the
// refresh already running so bursts of adds cost at most two fetches.
func (e *Engine) scheduleRefresh() {
	e.mu.Lock()
	if e.refreshing {
		e.refreshQueued = true
		e.mu.Unlock()
		return
	}
	e.refreshing = true
	e.wg.Add(1)
	e.mu.Unlock()

	go e.refreshLoop()
}

func (e *Engine) refreshLoop() {
	defer e.wg.Done()
	for {
		ctx, cancel := context.WithTimeout(context.Background(), e.refreshTimeout)
		e.refreshIfCurrent(ctx)
		cancel()

		e.mu.Lock()
		if !e.refreshQueued {
			e.refreshing = false
			e.mu.Unlock()
			return
		}
		e.refreshQueued = false
		e.mu.Unlock()
	}
}

// refreshIfCurrent applies the server cart only if no local write happened
// while it was being fetched.
func (e *Engine) refreshIfCurrent(ctx context.Context) {
	e.mu.Lock()
	start := e.version
	e.mu.Unlock()

	token := e.token()
	if token == "" {
		metrics.CartRefreshes.WithLabelValues("discarded").Inc()
		return
	}

	next, ok := e.fetch(ctx, token)
	if !ok {
		metrics.CartRefreshes.WithLabelValues("failed").Inc()
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.version != start {
		metrics.CartRefreshes.WithLabelValues("discarded").Inc()
		e.logger.Debug("discarding stale cart refresh",
			slog.Uint64("started_at", start),
			slog.Uint64("current", e.version),
		)
		return
	}
	e.replaceLocked(next, "background refresh")
	metrics.CartRefreshes.WithLabelValues("applied").Inc()
}
