package handler

import (
	"net/http"

	"storefront-proxy/internal/model"
)

// listResponse wraps collections the way the commerce API does.
type listResponse[T any] struct {
	Results int `json:"results"`
	Data    []T `json:"data"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Results: len(items), Data: items}
}

type itemResponse[T any] struct {
	Data *T `json:"data"`
}

// handleListProducts serves GET /products. Optional category and brand
// query parameters narrow the list; both may be combined.
func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	category := r.URL.Query().Get("category")
	brand := r.URL.Query().Get("brand")

	var products []model.Product
	switch {
	case category != "":
		products = h.catalog.ProductsByCategory(ctx, category)
	case brand != "":
		products = h.catalog.ProductsByBrand(ctx, brand)
	default:
		products = h.catalog.Products(ctx)
	}
	if category != "" && brand != "" {
		products = filterBrand(products, brand)
	}
	h.writeJSON(w, http.StatusOK, newList(products))
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, ok := h.catalog.Product(r.Context(), r.PathValue("id"))
	if !ok {
		h.writeError(w, model.NewNotFoundError("product"))
		return
	}
	h.writeJSON(w, http.StatusOK, itemResponse[model.Product]{Data: product})
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, newList(h.catalog.Categories(r.Context())))
}

func (h *Handler) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	category, ok := h.catalog.Category(r.Context(), r.PathValue("id"))
	if !ok {
		h.writeError(w, model.NewNotFoundError("category"))
		return
	}
	h.writeJSON(w, http.StatusOK, itemResponse[model.Category]{Data: category})
}

func (h *Handler) handleListBrands(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, newList(h.catalog.Brands(r.Context())))
}

func (h *Handler) handleGetBrand(w http.ResponseWriter, r *http.Request) {
	brand, ok := h.catalog.Brand(r.Context(), r.PathValue("id"))
	if !ok {
		h.writeError(w, model.NewNotFoundError("brand"))
		return
	}
	h.writeJSON(w, http.StatusOK, itemResponse[model.Brand]{Data: brand})
}

func filterBrand(products []model.Product, brandID string) []model.Product {
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if p.Brand != nil && p.Brand.ID == brandID {
			out = append(out, p)
		}
	}
	return out
}
