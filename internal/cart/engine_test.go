package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-proxy/internal/gateway"
	"storefront-proxy/internal/model"
)

type line struct {
	id    string
	title string
	price model.Money
	count int
}

func serverCart(id string, lines ...line) *model.CartResponse {
	data := &model.CartData{ID: id}
	for _, l := range lines {
		ref := model.ProductRef{ID: l.id}
		if l.title != "" {
			ref.Product = &model.Product{ID: l.id, Title: l.title}
		}
		data.Products = append(data.Products, model.CartLine{Count: l.count, Price: l.price, Product: ref})
	}
	n := len(lines)
	return &model.CartResponse{Status: "success", NumOfCartItems: &n, CartID: id, Data: data}
}

func staticToken(tok string) TokenFunc {
	return func() string { return tok }
}

// seeded returns an engine whose snapshot holds mug x2 at 10.00 and lamp x1 at 5.00.
func seeded(t *testing.T, m *gateway.Mock, opts ...Option) *Engine {
	t.Helper()
	m.GetCartFunc = func(ctx context.Context, token string) (*model.CartResponse, error) {
		return serverCart("cart-1",
			line{id: "mug", title: "Mug", price: 1000, count: 2},
			line{id: "lamp", title: "Lamp", price: 500, count: 1},
		), nil
	}
	e := New(m, staticToken("tok"), opts...)
	snap := e.Refresh(context.Background())
	require.NotNil(t, snap)
	require.Equal(t, 3, snap.ItemCount)
	return e
}

func assertConsistent(t *testing.T, s *Snapshot) {
	t.Helper()
	count := 0
	var total model.Money
	for _, item := range s.Items {
		count += item.Count
		total += item.UnitPrice.Times(item.Count)
	}
	assert.Equal(t, count, s.ItemCount, "item count")
	assert.Equal(t, total, s.TotalPrice, "total price")
}

func TestAddItem_RequiresToken(t *testing.T) {
	m := &gateway.Mock{}
	e := New(m, staticToken(""))

	snap, err := e.AddItem(context.Background(), "mug")

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
	assert.Nil(t, snap)
	assert.Nil(t, e.Snapshot())
	assert.Zero(t, m.Calls("AddToCart"))
}

func TestAddItem_AdoptsServerCartThenRefreshes(t *testing.T) {
	m := &gateway.Mock{
		AddToCartFunc: func(ctx context.Context, token, productID string) (*model.CartResponse, error) {
			assert.Equal(t, "tok", token)
			return serverCart("cart-1", line{id: productID, price: 1000, count: 1}), nil
		},
		GetCartFunc: func(ctx context.Context, token string) (*model.CartResponse, error) {
			return serverCart("cart-1", line{id: "mug", title: "Mug", price: 1000, count: 1}), nil
		},
	}
	e := New(m, staticToken("tok"))

	snap, err := e.AddItem(context.Background(), "mug")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "cart-1", snap.CartID)
	assert.Equal(t, 1, snap.ItemCount)

	e.Wait()
	assert.Equal(t, 1, m.Calls("GetCart"))
	after := e.Snapshot()
	require.Len(t, after.Items, 1)
	assert.Equal(t, "Mug", after.Items[0].Title)
	assertConsistent(t, after)
}

func TestAddItem_FailureLeavesSnapshot(t *testing.T) {
	m := &gateway.Mock{}
	e := seeded(t, m)
	before := e.Snapshot()
	m.AddToCartFunc = func(ctx context.Context, token, productID string) (*model.CartResponse, error) {
		return nil, model.NewUpstreamError(500, "Failed to add to cart")
	}

	_, err := e.AddItem(context.Background(), "kettle")

	require.Error(t, err)
	e.Wait()
	assert.Equal(t, 1, m.Calls("GetCart"), "no refresh after a failed add")
	assert.Equal(t, before, e.Snapshot())
}

func TestRemoveItem_AppliesLocallyBeforeRemote(t *testing.T) {
	m := &gateway.Mock{}
	e := seeded(t, m)
	m.RemoveFromCartFunc = func(ctx context.Context, token, productID string) (*model.CartResponse, error) {
		during := e.Snapshot()
		assert.False(t, during.Contains("mug"), "line should be gone before the remote call resolves")
		assert.Equal(t, 1, during.ItemCount)
		return nil, nil
	}

	snap, err := e.RemoveItem(context.Background(), "mug")

	require.NoError(t, err)
	assert.Equal(t, []string{"lamp"}, snap.ProductIDs())
	assertConsistent(t, snap)
	assert.Equal(t, 1, m.Calls("RemoveFromCart"))
}

func TestRemoveItem_AbsentIsNoop(t *testing.T) {
	m := &gateway.Mock{}
	e := seeded(t, m)
	before := e.Snapshot()

	snap, err := e.RemoveItem(context.Background(), "kettle")

	require.NoError(t, err)
	assert.Equal(t, before, snap)
	assert.Zero(t, m.Calls("RemoveFromCart"))

	empty := New(m, staticToken("tok"))
	snap, err = empty.RemoveItem(context.Background(), "mug")
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Zero(t, m.Calls("RemoveFromCart"))
}

func TestRemoveItem_FailureKeepsOptimisticState(t *testing.T) {
	m := &gateway.Mock{}
	e := seeded(t, m)
	m.RemoveFromCartFunc = func(ctx context.Context, token, productID string) (*model.CartResponse, error) {
		return nil, model.NewNetworkError("Network error while removing from cart", errors.New("reset"))
	}

	_, err := e.RemoveItem(context.Background(), "mug")

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNetwork)
	assert.False(t, e.Snapshot().Contains("mug"))
}

func TestRemoveItem_RollbackRestoresPrevious(t *testing.T) {
	m := &gateway.Mock{}
	e := seeded(t, m, WithRollback(true))
	m.RemoveFromCartFunc = func(ctx context.Context, token, productID string) (*model.CartResponse, error) {
		return nil, model.NewUpstreamError(500, "Failed to remove from cart")
	}

	_, err := e.RemoveItem(context.Background(), "mug")

	require.Error(t, err)
	snap := e.Snapshot()
	assert.True(t, snap.Contains("mug"))
	assert.Equal(t, 3, snap.ItemCount)
}

func TestRollback_SkippedAfterNewerWrite(t *testing.T) {
	m := &gateway.Mock{}
	e := seeded(t, m, WithRollback(true))
	m.RemoveFromCartFunc = func(ctx context.Context, token, productID string) (*model.CartResponse, error) {
		_, err := e.UpdateQuantity(ctx, "lamp", 4)
		require.NoError(t, err)
		return nil, model.NewUpstreamError(500, "Failed to remove from cart")
	}

	_, err := e.RemoveItem(context.Background(), "mug")

	require.Error(t, err)
	snap := e.Snapshot()
	assert.False(t, snap.Contains("mug"), "rollback must not undo the newer write")
	assert.Equal(t, 4, snap.ItemCount)
}

func TestUpdateQuantity_RecomputesTotals(t *testing.T) {
	m := &gateway.Mock{}
	e := seeded(t, m)
	var sent int
	m.UpdateCartQuantityFunc = func(ctx context.Context, token, productID string, count int) (*model.CartResponse, error) {
		sent = count
		return nil, nil
	}

	snap, err := e.UpdateQuantity(context.Background(), "lamp", 3)

	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, 5, snap.ItemCount)
	assert.Equal(t, model.Money(3500), snap.TotalPrice)
	assertConsistent(t, snap)
}

func TestUpdateQuantity_Noops(t *testing.T) {
	m := &gateway.Mock{}
	e := seeded(t, m)
	before := e.Snapshot()

	for _, n := range []int{0, -2} {
		snap, err := e.UpdateQuantity(context.Background(), "mug", n)
		require.NoError(t, err)
		assert.Equal(t, before, snap)
	}
	snap, err := e.UpdateQuantity(context.Background(), "kettle", 2)
	require.NoError(t, err)
	assert.Equal(t, before, snap)

	assert.Zero(t, m.Calls("UpdateCartQuantity"))
}

func TestUpdateQuantity_KeepsTitlesFromBareResponse(t *testing.T) {
	m := &gateway.Mock{}
	e := seeded(t, m)
	m.UpdateCartQuantityFunc = func(ctx context.Context, token, productID string, count int) (*model.CartResponse, error) {
		return serverCart("cart-1",
			line{id: "mug", price: 1000, count: 2},
			line{id: "lamp", price: 500, count: count},
		), nil
	}

	snap, err := e.UpdateQuantity(context.Background(), "lamp", 2)

	require.NoError(t, err)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "Mug", snap.Items[0].Title)
	assert.Equal(t, "Lamp", snap.Items[1].Title)
	assertConsistent(t, snap)
}

func TestRefresh(t *testing.T) {
	t.Run("missing cart clears snapshot", func(t *testing.T) {
		m := &gateway.Mock{}
		e := seeded(t, m)
		m.GetCartFunc = nil

		assert.Nil(t, e.Refresh(context.Background()))
		assert.Nil(t, e.Snapshot())
	})

	t.Run("failure keeps last good snapshot", func(t *testing.T) {
		m := &gateway.Mock{}
		e := seeded(t, m)
		m.GetCartFunc = func(ctx context.Context, token string) (*model.CartResponse, error) {
			return nil, model.NewTimeoutError("get cart")
		}

		snap := e.Refresh(context.Background())
		require.NotNil(t, snap)
		assert.Equal(t, 3, snap.ItemCount)
	})

	t.Run("no token clears without calling", func(t *testing.T) {
		m := &gateway.Mock{}
		e := New(m, staticToken(""))

		assert.Nil(t, e.Refresh(context.Background()))
		assert.Zero(t, m.Calls("GetCart"))
	})

	t.Run("empty body means no cart", func(t *testing.T) {
		m := &gateway.Mock{}
		e := seeded(t, m)
		m.GetCartFunc = func(ctx context.Context, token string) (*model.CartResponse, error) {
			return nil, nil
		}

		assert.Nil(t, e.Refresh(context.Background()))
	})
}

func TestBackgroundRefresh_DiscardedAfterNewerWrite(t *testing.T) {
	m := &gateway.Mock{}
	e := seeded(t, m)

	started := make(chan struct{})
	release := make(chan struct{})
	m.GetCartFunc = func(ctx context.Context, token string) (*model.CartResponse, error) {
		close(started)
		<-release
		return serverCart("cart-1",
			line{id: "mug", price: 1000, count: 2},
			line{id: "lamp", price: 500, count: 1},
			line{id: "kettle", price: 2500, count: 1},
		), nil
	}

	_, err := e.AddItem(context.Background(), "kettle")
	require.NoError(t, err)

	<-started
	_, err = e.RemoveItem(context.Background(), "mug")
	require.NoError(t, err)
	close(release)
	e.Wait()

	snap := e.Snapshot()
	assert.False(t, snap.Contains("mug"), "stale refresh must not resurrect the removed line")
	assert.Equal(t, []string{"lamp"}, snap.ProductIDs())
}

func TestBackgroundRefresh_Coalesces(t *testing.T) {
	m := &gateway.Mock{}
	e := New(m, staticToken("tok"))

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	m.GetCartFunc = func(ctx context.Context, token string) (*model.CartResponse, error) {
		once.Do(func() { close(started) })
		<-release
		return serverCart("cart-1", line{id: "mug", price: 1000, count: 5}), nil
	}

	_, err := e.AddItem(context.Background(), "mug")
	require.NoError(t, err)
	<-started
	for i := 0; i < 4; i++ {
		_, err := e.AddItem(context.Background(), "mug")
		require.NoError(t, err)
	}
	close(release)
	e.Wait()

	assert.Equal(t, 5, m.Calls("AddToCart"))
	assert.Equal(t, 2, m.Calls("GetCart"))
	assert.Equal(t, 5, e.Snapshot().ItemCount)
}

func TestReset(t *testing.T) {
	m := &gateway.Mock{}
	e := seeded(t, m)

	e.Reset()

	assert.Nil(t, e.Snapshot())
}

func TestSnapshot_ReturnsCopy(t *testing.T) {
	m := &gateway.Mock{}
	e := seeded(t, m)

	snap := e.Snapshot()
	snap.Items[0].Count = 99

	assert.Equal(t, 2, e.Snapshot().Items[0].Count)
}

func TestSnapshot_VersionIncreases(t *testing.T) {
	m := &gateway.Mock{}
	e := seeded(t, m)
	v1 := e.Snapshot().Version

	snap, err := e.UpdateQuantity(context.Background(), "mug", 1)

	require.NoError(t, err)
	assert.Greater(t, snap.Version, v1)
}
