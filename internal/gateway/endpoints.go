package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"storefront-proxy/internal/model"
)

const (
	pathProducts   = "/products"
	pathCategories = "/categories"
	pathBrands     = "/brands"
	pathCart       = "/cart"
	pathWishlist   = "/wishlist"
)

var (
	opProducts       = operation{"list products", "Failed to load products", "Network error while loading products"}
	opProduct        = operation{"get product", "Failed to load product", "Network error while loading product"}
	opCategories     = operation{"list categories", "Failed to load categories", "Network error while loading categories"}
	opCategory       = operation{"get category", "Failed to load category", "Network error while loading category"}
	opBrands         = operation{"list brands", "Failed to load brands", "Network error while loading brands"}
	opBrand          = operation{"get brand", "Failed to load brand", "Network error while loading brand"}
	opGetCart        = operation{"get cart", "Failed to load cart", "Network error while loading cart"}
	opAddToCart      = operation{"add to cart", "Failed to add to cart", "Network error while adding to cart"}
	opRemoveFromCart = operation{"remove from cart", "Failed to remove from cart", "Network error while removing from cart"}
	opUpdateQuantity = operation{"update quantity", "Failed to update quantity", "Network error while updating cart"}
	opGetWishlist    = operation{"get wishlist", "Failed to load wishlist", "Network error while loading wishlist"}
	opAddWishlist    = operation{"add to wishlist", "Failed to add to wishlist", "Network error while adding to wishlist"}
	opRemoveWishlist = operation{"remove from wishlist", "Failed to remove from wishlist", "Network error while removing from wishlist"}
)

// === Catalog ===

// Products fetches the full product list.
// A 2xx body without a product array is reported as an error so callers can
// fall back to what they already have.
func (c *Client) Products(ctx context.Context) ([]model.Product, error) {
	raw, err := c.call(ctx, opProducts, http.MethodGet, pathProducts, nil, "")
	if err != nil {
		return nil, err
	}
	products, ok := model.DecodeList[model.Product](raw)
	if !ok {
		return nil, unexpectedPayload(opProducts)
	}
	return products, nil
}

// Product fetches one product. Returns a not-found error when the body has no product.
func (c *Client) Product(ctx context.Context, id string) (*model.Product, error) {
	raw, err := c.call(ctx, opProduct, http.MethodGet, pathProducts+"/"+url.PathEscape(id), nil, "")
	if err != nil {
		return nil, err
	}
	p, ok := model.DecodeItem[model.Product](raw)
	if !ok || p.Key() == "" {
		return nil, model.NewNotFoundError("product")
	}
	return p, nil
}

func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	return listOf[model.Category](ctx, c, opCategories, pathCategories)
}

func (c *Client) Category(ctx context.Context, id string) (*model.Category, error) {
	cat, err := itemOf[model.Category](ctx, c, opCategory, pathCategories+"/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	if cat.ID == "" {
		return nil, model.NewNotFoundError("category")
	}
	return cat, nil
}

func (c *Client) Brands(ctx context.Context) ([]model.Brand, error) {
	return listOf[model.Brand](ctx, c, opBrands, pathBrands)
}

func (c *Client) Brand(ctx context.Context, id string) (*model.Brand, error) {
	brand, err := itemOf[model.Brand](ctx, c, opBrand, pathBrands+"/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	if brand.ID == "" {
		return nil, model.NewNotFoundError("brand")
	}
	return brand, nil
}

// Ping checks that the API answers. Used by the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, opBrands, http.MethodGet, pathBrands+"?limit=1", nil, "")
	return err
}

func listOf[T any](ctx context.Context, c *Client, op operation, path string) ([]T, error) {
	raw, err := c.call(ctx, op, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	items, ok := model.DecodeList[T](raw)
	if !ok {
		return nil, unexpectedPayload(op)
	}
	return items, nil
}

func itemOf[T any](ctx context.Context, c *Client, op operation, path string) (*T, error) {
	raw, err := c.call(ctx, op, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	item, ok := model.DecodeItem[T](raw)
	if !ok {
		return nil, unexpectedPayload(op)
	}
	return item, nil
}

// === Cart ===

type productRequest struct {
	ProductID string `json:"productId"`
}

type countRequest struct {
	Count int `json:"count"`
}

// GetCart fetches the user's cart. A 404 means the user has no cart and is
// returned as a not-found error. A nil response with nil error means the body
// was absent.
func (c *Client) GetCart(ctx context.Context, token string) (*model.CartResponse, error) {
	raw, err := c.call(ctx, opGetCart, http.MethodGet, pathCart, nil, token)
	if err != nil {
		return nil, err
	}
	return decodeCart(raw), nil
}

// AddToCart adds one unit of a product. The response cart lists product ids only.
func (c *Client) AddToCart(ctx context.Context, token, productID string) (*model.CartResponse, error) {
	raw, err := c.call(ctx, opAddToCart, http.MethodPost, pathCart, productRequest{ProductID: productID}, token)
	if err != nil {
		return nil, err
	}
	return decodeCart(raw), nil
}

func (c *Client) RemoveFromCart(ctx context.Context, token, productID string) (*model.CartResponse, error) {
	raw, err := c.call(ctx, opRemoveFromCart, http.MethodDelete, pathCart+"/"+url.PathEscape(productID), nil, token)
	if err != nil {
		return nil, err
	}
	return decodeCart(raw), nil
}

// UpdateCartQuantity sets a line's count.
func (c *Client) UpdateCartQuantity(ctx context.Context, token, productID string, count int) (*model.CartResponse, error) {
	body := countRequest{Count: count}
	raw, err := c.call(ctx, opUpdateQuantity, http.MethodPut, pathCart+"/"+url.PathEscape(productID), body, token)
	if err != nil {
		return nil, err
	}
	return decodeCart(raw), nil
}

func decodeCart(raw json.RawMessage) *model.CartResponse {
	if len(raw) == 0 {
		return nil
	}
	var resp model.CartResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil
	}
	return &resp
}

// === Wishlist ===

// wishlistEntry accepts both shapes the API has used: product records, or
// entries wrapping a product.
type wishlistEntry struct {
	ID      string `json:"_id"`
	Product *struct {
		ID string `json:"_id"`
	} `json:"product"`
}

// Wishlist returns the ids of the user's wishlisted products.
func (c *Client) Wishlist(ctx context.Context, token string) ([]string, error) {
	raw, err := c.call(ctx, opGetWishlist, http.MethodGet, pathWishlist, nil, token)
	if err != nil {
		return nil, err
	}
	entries, ok := model.DecodeList[wishlistEntry](raw)
	if !ok {
		return nil, unexpectedPayload(opGetWishlist)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Product != nil && e.Product.ID != "":
			ids = append(ids, e.Product.ID)
		case e.ID != "":
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

func (c *Client) AddToWishlist(ctx context.Context, token, productID string) error {
	_, err := c.call(ctx, opAddWishlist, http.MethodPost, pathWishlist, productRequest{ProductID: productID}, token)
	return err
}

func (c *Client) RemoveFromWishlist(ctx context.Context, token, productID string) error {
	_, err := c.call(ctx, opRemoveWishlist, http.MethodDelete, pathWishlist+"/"+url.PathEscape(productID), nil, token)
	return err
}
