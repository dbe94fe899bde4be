// Package session tracks logged-in users. Each session owns the user's cart
// engine and wishlist set; the token and user record are persisted so a
// session can be rebuilt from the token alone.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"storefront-proxy/internal/cart"
	"storefront-proxy/internal/metrics"
	"storefront-proxy/internal/model"
	"storefront-proxy/internal/wishlist"
)

// Gateway is what a session's cart and wishlist need from the commerce API.
type Gateway interface {
	cart.Gateway
	wishlist.Gateway
}

// Session is one logged-in user.
type Session struct {
	UserID   string
	Cart     *cart.Engine
	Wishlist *wishlist.Set

	mu    sync.RWMutex
	token string
	user  *model.User
}

// Token returns the session token, or "" after logout.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the user record, or nil when unknown.
func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) close() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()
	s.Cart.Reset()
	s.Wishlist.Reset()
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithCartOptions configures the cart engine of every new session.
func WithCartOptions(opts ...cart.Option) Option {
	return func(r *Registry) { r.cartOpts = append(r.cartOpts, opts...) }
}

// WithWishlistOptions configures the wishlist set of every new session.
func WithWishlistOptions(opts ...wishlist.Option) Option {
	return func(r *Registry) { r.wishlistOpts = append(r.wishlistOpts, opts...) }
}

// Registry maps tokens to live sessions.
type Registry struct {
	gw           Gateway
	store        Storage
	logger       *slog.Logger
	cartOpts     []cart.Option
	wishlistOpts []wishlist.Option

	mu       sync.RWMutex
	sessions map[string]*Session // by token
	group    singleflight.Group
}

func NewRegistry(gw Gateway, store Storage, opts ...Option) *Registry {
	r := &Registry{
		gw:       gw,
		store:    store,
		logger:   slog.Default(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Login persists the token and user record, then creates and bootstraps the
// session. A previous session under the same token is replaced.
func (r *Registry) Login(ctx context.Context, user *model.User, token string) (*Session, error) {
	if token == "" {
		return nil, model.NewValidationError("token", "Token is missing")
	}

	userID, _ := ResolveUserID(user, token)
	r.persist(ctx, userID, user, token)

	s := r.newSession(userID, user, token)
	r.bootstrap(ctx, s)

	r.mu.Lock()
	old := r.sessions[token]
	r.sessions[token] = s
	r.updateGaugeLocked()
	r.mu.Unlock()

	if old != nil {
		old.close()
	}
	r.logger.Info("session started", slog.String("user_id", userID))
	return s, nil
}

// Resolve returns the session for a token, rebuilding it from storage when
// this process has not seen the token yet. Concurrent first requests with the
// same token share one bootstrap.
func (r *Registry) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, model.NewUnauthenticatedError("You need to login first")
	}
	if s := r.lookup(token); s != nil {
		return s, nil
	}

	userID, ok := ResolveUserID(nil, token)
	if !ok {
		return nil, model.NewUnauthenticatedError("Invalid session token")
	}

	v, err, _ := r.group.Do(token, func() (any, error) {
		if s := r.lookup(token); s != nil {
			return s, nil
		}

		bctx := context.WithoutCancel(ctx)
		s := r.newSession(userID, r.restoreUser(bctx, userID, token), token)
		r.bootstrap(bctx, s)

		r.mu.Lock()
		r.sessions[token] = s
		r.updateGaugeLocked()
		r.mu.Unlock()

		r.logger.Debug("session restored", slog.String("user_id", userID))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Logout drops the session, clears its cart and wishlist, and removes the
// persisted keys if they still belong to this token.
func (r *Registry) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	r.mu.Lock()
	s := r.sessions[token]
	delete(r.sessions, token)
	r.updateGaugeLocked()
	r.mu.Unlock()

	var userID string
	if s != nil {
		userID = s.UserID
		s.close()
	} else {
		userID, _ = ResolveUserID(nil, token)
	}

	scoped := Scoped(r.store, userID)
	stored, ok, err := scoped.Get(ctx, KeyToken)
	if err != nil {
		return err
	}
	if ok && stored != token {
		return nil
	}
	return errors.Join(scoped.Remove(ctx, KeyToken), scoped.Remove(ctx, KeyUser))
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Wait blocks until every session's background cart refreshes have finished.
func (r *Registry) Wait() {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		s.Cart.Wait()
	}
}

func (r *Registry) lookup(token string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[token]
}

func (r *Registry) newSession(userID string, user *model.User, token string) *Session {
	s := &Session{UserID: userID, token: token, user: user}
	s.Cart = cart.New(r.gw, s.Token, append([]cart.Option{cart.WithLogger(r.logger)}, r.cartOpts...)...)
	s.Wishlist = wishlist.New(r.gw, s.Token, append([]wishlist.Option{wishlist.WithLogger(r.logger)}, r.wishlistOpts...)...)
	return s
}

// bootstrap loads the server cart and wishlist concurrently. Both degrade on
// failure, so it never fails.
func (r *Registry) bootstrap(ctx context.Context, s *Session) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.Cart.Refresh(gctx)
		return nil
	})
	g.Go(func() error {
		s.Wishlist.Load(gctx)
		return nil
	})
	_ = g.Wait()
}

func (r *Registry) persist(ctx context.Context, userID string, user *model.User, token string) {
	scoped := Scoped(r.store, userID)
	if err := scoped.Set(ctx, KeyToken, token); err != nil {
		r.logger.Warn("failed to persist session token", slog.String("user_id", userID), slog.Any("error", err))
		return
	}
	if user == nil {
		return
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := scoped.Set(ctx, KeyUser, string(raw)); err != nil {
		r.logger.Warn("failed to persist session user", slog.String("user_id", userID), slog.Any("error", err))
	}
}

// restoreUser reads the persisted user record, if the persisted token matches.
func (r *Registry) restoreUser(ctx context.Context, userID, token string) *model.User {
	scoped := Scoped(r.store, userID)
	stored, ok, err := scoped.Get(ctx, KeyToken)
	if err != nil {
		r.logger.Warn("failed to read session token", slog.String("user_id", userID), slog.Any("error", err))
		return nil
	}
	if !ok || stored != token {
		return nil
	}

	raw, ok, err := scoped.Get(ctx, KeyUser)
	if err != nil || !ok {
		return nil
	}
	var user model.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		r.logger.Warn("discarding unreadable session user", slog.String("user_id", userID), slog.Any("error", err))
		return nil
	}
	return &user
}

func (r *Registry) updateGaugeLocked() {
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
}
