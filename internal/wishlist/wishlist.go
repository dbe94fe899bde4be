// Package wishlist holds a user's saved product ids.
package wishlist

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"storefront-proxy/internal/metrics"
	"storefront-proxy/internal/model"
	"storefront-proxy/internal/reconcile"
)

// Gateway is the subset of the commerce API the set needs.
type Gateway interface {
	Wishlist(ctx context.Context, token string) ([]string, error)
	AddToWishlist(ctx context.Context, token, productID string) error
	RemoveFromWishlist(ctx context.Context, token, productID string) error
}

type Option func(*Set)

// WithRollback undoes a toggle whose remote call failed, unless the same
// product was toggled again meanwhile.
func WithRollback(enabled bool) Option {
	return func(s *Set) { s.rollback = enabled }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Set) { s.logger = logger }
}

// Set is a user's wishlist. Toggles are applied locally first; remote
// failures are logged and never reach the caller.
type Set struct {
	gw       Gateway
	token    func() string
	logger   *slog.Logger
	rollback bool

	mu      sync.Mutex
	ids     map[string]struct{}
	touched map[string]uint64 // product id -> version of its last toggle
	version uint64
}

// New creates an empty set. token returns "" when logged out.
func New(gw Gateway, token func() string, opts ...Option) *Set {
	s := &Set{
		gw:      gw,
		token:   token,
		logger:  slog.Default(),
		ids:     make(map[string]struct{}),
		touched: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Toggle flips a product's membership and mirrors it remotely. It returns the
// membership after the toggle. The only error is a missing session.
func (s *Set) Toggle(ctx context.Context, productID string) (bool, error) {
	token := s.token()
	if token == "" {
		return false, model.NewUnauthenticatedError("You need to login first")
	}

	s.mu.Lock()
	_, had := s.ids[productID]
	if had {
		delete(s.ids, productID)
	} else {
		s.ids[productID] = struct{}{}
	}
	s.version++
	mine := s.version
	s.touched[productID] = mine
	s.mu.Unlock()

	var err error
	if had {
		err = s.gw.RemoveFromWishlist(ctx, token, productID)
	} else {
		err = s.gw.AddToWishlist(ctx, token, productID)
	}
	if err != nil {
		s.swallow(productID, had, mine, err)
	}

	return s.Contains(productID), nil
}

func (s *Set) swallow(productID string, had bool, mine uint64, err error) {
	kind := model.KindOf(err)
	metrics.SwallowedErrors.WithLabelValues("wishlist", kind).Inc()
	s.logger.Warn("wishlist toggle failed",
		slog.String("product_id", productID),
		slog.Bool("adding", !had),
		slog.String("kind", kind),
		slog.Any("error", err),
	)
	if !s.rollback {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.touched[productID] != mine {
		return
	}
	if had {
		s.ids[productID] = struct{}{}
	} else {
		delete(s.ids, productID)
	}
}

// Load replaces the set with the server wishlist. A missing session or a
// failed fetch leaves the set empty.
func (s *Set) Load(ctx context.Context) []string {
	var server []string
	if token := s.token(); token != "" {
		ids, err := s.gw.Wishlist(ctx, token)
		if err != nil {
			kind := model.KindOf(err)
			metrics.SwallowedErrors.WithLabelValues("wishlist", kind).Inc()
			s.logger.Warn("wishlist load failed", slog.String("kind", kind), slog.Any("error", err))
		} else {
			server = ids
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if drift := reconcile.DiffSets(s.sortedLocked(), server); !drift.IsEmpty() {
		s.logger.Debug("wishlist drift reconciled",
			slog.Int("added", len(drift.Added)),
			slog.Int("removed", len(drift.Removed)),
		)
	}
	s.ids = make(map[string]struct{}, len(server))
	for _, id := range server {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
	s.touched = make(map[string]uint64)
	return s.sortedLocked()
}

// Reset empties the set locally.
func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]struct{})
	s.touched = make(map[string]uint64)
}

func (s *Set) Contains(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[productID]
	return ok
}

// IDs returns the members in sorted order.
func (s *Set) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func (s *Set) sortedLocked() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
