// MCP transport handler for the storefront proxy using the official MCP Go SDK.
// Exposes catalog browsing and the cart and wishlist operations as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"storefront-proxy/internal/cart"
	"storefront-proxy/internal/model"
	"storefront-proxy/internal/session"
)

// === MCP Tool Input/Output Types ===
// Cart and wishlist tools take the shopper's token either as an argument or
// from the token header on the MCP HTTP request.

// ListProductsInput is the input schema for list_products.
type ListProductsInput struct {
	Category string `json:"category,omitempty" jsonschema:"category id to filter by"`
	Brand    string `json:"brand,omitempty" jsonschema:"brand id to filter by"`
}

type GetProductInput struct {
	ID string `json:"id" jsonschema:"product id"`
}

type CartInput struct {
	Token string `json:"token,omitempty" jsonschema:"user token; defaults to the token header"`
}

type CartItemInput struct {
	Token     string `json:"token,omitempty" jsonschema:"user token; defaults to the token header"`
	ProductID string `json:"productId" jsonschema:"product id"`
}

type UpdateQuantityInput struct {
	Token     string `json:"token,omitempty" jsonschema:"user token; defaults to the token header"`
	ProductID string `json:"productId" jsonschema:"product id"`
	Count     int    `json:"count" jsonschema:"new quantity, at least 1"`
}

// ProductSummary is a product flattened for tool output. Prices are in
// major currency units.
type ProductSummary struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Price          float64 `json:"price"`
	EffectivePrice float64 `json:"effectivePrice"`
	ImageCover     string  `json:"imageCover,omitempty"`
	Category       string  `json:"category,omitempty"`
	Brand          string  `json:"brand,omitempty"`
	RatingsAverage float64 `json:"ratingsAverage,omitempty"`
}

type ProductList struct {
	Products []ProductSummary `json:"products"`
}

type CartLine struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title,omitempty"`
	UnitPrice float64 `json:"unitPrice"`
	Count     int     `json:"count"`
}

// CartSummary is the cart as a tool sees it. An absent cart is empty.
type CartSummary struct {
	CartID     string     `json:"cartId,omitempty"`
	Items      []CartLine `json:"items"`
	ItemCount  int        `json:"itemCount"`
	TotalPrice float64    `json:"totalPrice"`
}

type WishlistToggle struct {
	ProductID  string `json:"productId"`
	InWishlist bool   `json:"inWishlist"`
}

func summarizeProduct(p model.Product) ProductSummary {
	s := ProductSummary{
		ID:             p.Key(),
		Title:          p.Title,
		Price:          p.Price.Major(),
		EffectivePrice: p.EffectivePrice().Major(),
		ImageCover:     p.ImageCover,
		RatingsAverage: p.RatingsAverage,
	}
	if p.Category != nil {
		s.Category = p.Category.Name
	}
	if p.Brand != nil {
		s.Brand = p.Brand.Name
	}
	return s
}

func summarizeCart(snap *cart.Snapshot) *CartSummary {
	out := &CartSummary{Items: []CartLine{}}
	if snap == nil {
		return out
	}
	out.CartID = snap.CartID
	out.ItemCount = snap.ItemCount
	out.TotalPrice = snap.TotalPrice.Major()
	for _, item := range snap.Items {
		out.Items = append(out.Items, CartLine{
			ProductID: item.ProductID,
			Title:     item.Title,
			UnitPrice: item.UnitPrice.Major(),
			Count:     item.Count,
		})
	}
	return out
}

// NewMCPServer creates an MCP server with the storefront tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "storefront-proxy",
			Version: h.version,
		},
		&mcp.ServerOptions{
			Instructions: "Storefront proxy. Browse the catalog, then manage the shopper's cart and wishlist. " +
				"Cart and wishlist tools need the shopper's token.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_products",
		Description: "List catalog products, optionally filtered by category or brand id.",
	}, h.mcpListProducts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_product",
		Description: "Get one product by id.",
	}, h.mcpGetProduct)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cart",
		Description: "Get the shopper's cart.",
	}, h.mcpGetCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_to_cart",
		Description: "Add one unit of a product to the cart.",
	}, h.mcpAddToCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_cart_quantity",
		Description: "Set the quantity of a product already in the cart.",
	}, h.mcpUpdateCartQuantity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_from_cart",
		Description: "Remove a product from the cart.",
	}, h.mcpRemoveFromCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "toggle_wishlist",
		Description: "Add a product to the wishlist, or remove it if already there.",
	}, h.mcpToggleWishlist)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpListProducts(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ListProductsInput,
) (*mcp.CallToolResult, *ProductList, error) {
	var products []model.Product
	switch {
	case input.Category != "":
		products = h.catalog.ProductsByCategory(ctx, input.Category)
	case input.Brand != "":
		products = h.catalog.ProductsByBrand(ctx, input.Brand)
	default:
		products = h.catalog.Products(ctx)
	}
	if input.Category != "" && input.Brand != "" {
		products = filterBrand(products, input.Brand)
	}

	out := &ProductList{Products: make([]ProductSummary, 0, len(products))}
	for _, p := range products {
		out.Products = append(out.Products, summarizeProduct(p))
	}
	return nil, out, nil
}

func (h *Handler) mcpGetProduct(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetProductInput,
) (*mcp.CallToolResult, *ProductSummary, error) {
	if input.ID == "" {
		return nil, nil, fmt.Errorf("id is required")
	}
	p, ok := h.catalog.Product(ctx, input.ID)
	if !ok {
		return nil, nil, h.mcpError(model.NewNotFoundError("product"))
	}
	out := summarizeProduct(*p)
	return nil, &out, nil
}

func (h *Handler) mcpGetCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CartInput,
) (*mcp.CallToolResult, *CartSummary, error) {
	s, err := h.mcpSession(ctx, req, input.Token)
	if err != nil {
		return nil, nil, err
	}
	return nil, summarizeCart(s.Cart.Snapshot()), nil
}

func (h *Handler) mcpAddToCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CartItemInput,
) (*mcp.CallToolResult, *CartSummary, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("productId is required")
	}
	s, err := h.mcpSession(ctx, req, input.Token)
	if err != nil {
		return nil, nil, err
	}
	snap, err := s.Cart.AddItem(ctx, input.ProductID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, summarizeCart(snap), nil
}

func (h *Handler) mcpUpdateCartQuantity(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input UpdateQuantityInput,
) (*mcp.CallToolResult, *CartSummary, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("productId is required")
	}
	s, err := h.mcpSession(ctx, req, input.Token)
	if err != nil {
		return nil, nil, err
	}
	snap, err := s.Cart.UpdateQuantity(ctx, input.ProductID, input.Count)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, summarizeCart(snap), nil
}

func (h *Handler) mcpRemoveFromCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CartItemInput,
) (*mcp.CallToolResult, *CartSummary, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("productId is required")
	}
	s, err := h.mcpSession(ctx, req, input.Token)
	if err != nil {
		return nil, nil, err
	}
	snap, err := s.Cart.RemoveItem(ctx, input.ProductID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, summarizeCart(snap), nil
}

func (h *Handler) mcpToggleWishlist(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CartItemInput,
) (*mcp.CallToolResult, *WishlistToggle, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("productId is required")
	}
	s, err := h.mcpSession(ctx, req, input.Token)
	if err != nil {
		return nil, nil, err
	}
	in, err := s.Wishlist.Toggle(ctx, input.ProductID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, &WishlistToggle{ProductID: input.ProductID, InWishlist: in}, nil
}

// mcpSession resolves the shopper's session. An explicit token argument wins
// over the token header of the MCP request.
func (h *Handler) mcpSession(ctx context.Context, req *mcp.CallToolRequest, token string) (*session.Session, error) {
	if token == "" && req != nil && req.Extra != nil && req.Extra.Header != nil {
		token = req.Extra.Header.Get(TokenHeader)
	}
	s, err := h.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, h.mcpError(err)
	}
	return s, nil
}

// mcpError converts service errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
