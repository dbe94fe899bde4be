package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-proxy/internal/gateway"
	"storefront-proxy/internal/model"
)

func cartWith(productID string, count int) *model.CartResponse {
	return &model.CartResponse{
		CartID: "cart-1",
		Data: &model.CartData{
			ID:       "cart-1",
			Products: []model.CartLine{{Count: count, Price: 1000, Product: model.ProductRef{ID: productID}}},
		},
	}
}

func newMockGateway() *gateway.Mock {
	return &gateway.Mock{
		GetCartFunc: func(ctx context.Context, token string) (*model.CartResponse, error) {
			return cartWith("mug", 2), nil
		},
		WishlistFunc: func(ctx context.Context, token string) ([]string, error) {
			return []string{"lamp"}, nil
		},
	}
}

func TestRegistry_LoginBootstraps(t *testing.T) {
	m := newMockGateway()
	store := NewMemoryStorage()
	r := NewRegistry(m, store)
	ctx := context.Background()
	tok := tokenWithPayload(`{"id":"u1"}`)

	s, err := r.Login(ctx, &model.User{ID: "u1", Name: "Sara"}, tok)

	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, tok, s.Token())
	assert.Equal(t, "Sara", s.User().Name)
	assert.Equal(t, 2, s.Cart.Snapshot().ItemCount)
	assert.Equal(t, []string{"lamp"}, s.Wishlist.IDs())
	assert.Equal(t, 1, r.Len())

	stored, ok, _ := Scoped(store, "u1").Get(ctx, KeyToken)
	assert.True(t, ok)
	assert.Equal(t, tok, stored)
	rawUser, ok, _ := Scoped(store, "u1").Get(ctx, KeyUser)
	assert.True(t, ok)
	assert.Contains(t, rawUser, "Sara")
}

func TestRegistry_LoginRequiresToken(t *testing.T) {
	r := NewRegistry(newMockGateway(), NewMemoryStorage())

	_, err := r.Login(context.Background(), &model.User{ID: "u1"}, "")

	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestRegistry_ResolveKnownSession(t *testing.T) {
	m := newMockGateway()
	r := NewRegistry(m, NewMemoryStorage())
	ctx := context.Background()
	tok := tokenWithPayload(`{"id":"u1"}`)

	s, err := r.Login(ctx, &model.User{ID: "u1"}, tok)
	require.NoError(t, err)

	got, err := r.Resolve(ctx, tok)

	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Calls("GetCart"))
}

func TestRegistry_ResolveRestoresFromStorage(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()
	tok := tokenWithPayload(`{"id":"u1"}`)

	first := NewRegistry(newMockGateway(), store)
	_, err := first.Login(ctx, &model.User{ID: "u1", Email: "sara@example.com"}, tok)
	require.NoError(t, err)

	// A fresh registry shares only the storage, as after a restart.
	m := newMockGateway()
	second := NewRegistry(m, store)
	s, err := second.Resolve(ctx, tok)

	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	require.NotNil(t, s.User())
	assert.Equal(t, "sara@example.com", s.User().Email)
	assert.Equal(t, 2, s.Cart.Snapshot().ItemCount)
}

func TestRegistry_ResolveUnknownTokenWithoutUser(t *testing.T) {
	r := NewRegistry(newMockGateway(), NewMemoryStorage())

	s, err := r.Resolve(context.Background(), tokenWithPayload(`{"id":7}`))

	require.NoError(t, err)
	assert.Equal(t, "7", s.UserID)
	assert.Nil(t, s.User())
}

func TestRegistry_ResolveRejects(t *testing.T) {
	r := NewRegistry(newMockGateway(), NewMemoryStorage())
	ctx := context.Background()

	_, err := r.Resolve(ctx, "")
	assert.ErrorIs(t, err, model.ErrUnauthenticated)

	_, err = r.Resolve(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
	assert.Zero(t, r.Len())
}

func TestRegistry_ConcurrentResolveSharesBootstrap(t *testing.T) {
	release := make(chan struct{})
	m := newMockGateway()
	m.GetCartFunc = func(ctx context.Context, token string) (*model.CartResponse, error) {
		<-release
		return cartWith("mug", 1), nil
	}
	r := NewRegistry(m, NewMemoryStorage())
	tok := tokenWithPayload(`{"id":"u1"}`)

	const callers = 8
	results := make([]*Session, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.Resolve(context.Background(), tok)
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	close(release)
	wg.Wait()

	for _, s := range results {
		assert.Same(t, results[0], s)
	}
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Logout(t *testing.T) {
	m := newMockGateway()
	store := NewMemoryStorage()
	r := NewRegistry(m, store)
	ctx := context.Background()
	tok := tokenWithPayload(`{"id":"u1"}`)

	s, err := r.Login(ctx, &model.User{ID: "u1"}, tok)
	require.NoError(t, err)

	require.NoError(t, r.Logout(ctx, tok))

	assert.Zero(t, r.Len())
	assert.Empty(t, s.Token())
	assert.Nil(t, s.Cart.Snapshot())
	assert.Empty(t, s.Wishlist.IDs())
	_, ok, _ := Scoped(store, "u1").Get(ctx, KeyToken)
	assert.False(t, ok)
	_, ok, _ = Scoped(store, "u1").Get(ctx, KeyUser)
	assert.False(t, ok)
}

func TestRegistry_LogoutKeepsNewerLogin(t *testing.T) {
	store := NewMemoryStorage()
	r := NewRegistry(newMockGateway(), store)
	ctx := context.Background()
	oldTok := tokenWithPayload(`{"id":"u1","iat":1}`)
	newTok := tokenWithPayload(`{"id":"u1","iat":2}`)

	_, err := r.Login(ctx, &model.User{ID: "u1"}, oldTok)
	require.NoError(t, err)
	_, err = r.Login(ctx, &model.User{ID: "u1"}, newTok)
	require.NoError(t, err)

	require.NoError(t, r.Logout(ctx, oldTok))

	stored, ok, _ := Scoped(store, "u1").Get(ctx, KeyToken)
	assert.True(t, ok)
	assert.Equal(t, newTok, stored)
	assert.Equal(t, 1, r.Len())
}
