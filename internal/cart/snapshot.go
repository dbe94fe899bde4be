package cart

import (
	"storefront-proxy/internal/model"
	"storefront-proxy/internal/reconcile"
)

// LineItem is one product in the cart.
type LineItem struct {
	ProductID  string      `json:"productId"`
	Title      string      `json:"title,omitempty"`
	ImageCover string      `json:"imageCover,omitempty"`
	UnitPrice  model.Money `json:"unitPrice"`
	Count      int         `json:"count"`
}

// Subtotal is the line's price times its count.
func (l LineItem) Subtotal() model.Money {
	return l.UnitPrice.Times(l.Count)
}

// Snapshot is the engine's view of the cart. ItemCount is always the sum of
// line counts and TotalPrice the sum of line subtotals; only newSnapshot
// builds one, so the two can never disagree with Items.
type Snapshot struct {
	CartID     string      `json:"cartId,omitempty"`
	Items      []LineItem  `json:"items"`
	ItemCount  int         `json:"itemCount"`
	TotalPrice model.Money `json:"totalPrice"`
	Version    uint64      `json:"version"`
}

func newSnapshot(cartID string, items []LineItem) *Snapshot {
	s := &Snapshot{CartID: cartID, Items: items}
	if s.Items == nil {
		s.Items = []LineItem{}
	}
	for _, item := range s.Items {
		s.ItemCount += item.Count
		s.TotalPrice += item.Subtotal()
	}
	return s
}

// ProductIDs lists the products in the cart, in cart order.
func (s *Snapshot) ProductIDs() []string {
	ids := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// Contains reports whether the product has a line in the cart.
func (s *Snapshot) Contains(productID string) bool {
	return s.find(productID) >= 0
}

func (s *Snapshot) find(productID string) int {
	for i, item := range s.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Snapshot) clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Items = append([]LineItem(nil), s.Items...)
	if c.Items == nil {
		c.Items = []LineItem{}
	}
	return &c
}

// without returns the items minus the line at i.
func (s *Snapshot) without(i int) []LineItem {
	items := make([]LineItem, 0, len(s.Items)-1)
	items = append(items, s.Items[:i]...)
	return append(items, s.Items[i+1:]...)
}

// withCount returns the items with line i set to count.
func (s *Snapshot) withCount(i, count int) []LineItem {
	items := append([]LineItem(nil), s.Items...)
	items[i].Count = count
	return items
}

// carryDetails fills titles and images the server omitted (write responses
// list bare product ids) from the previous snapshot.
func (s *Snapshot) carryDetails(prev *Snapshot) {
	if prev == nil {
		return
	}
	for i := range s.Items {
		if s.Items[i].Title != "" {
			continue
		}
		if j := prev.find(s.Items[i].ProductID); j >= 0 {
			s.Items[i].Title = prev.Items[j].Title
			s.Items[i].ImageCover = prev.Items[j].ImageCover
		}
	}
}

func (s *Snapshot) lines() []reconcile.Line {
	if s == nil {
		return nil
	}
	lines := make([]reconcile.Line, len(s.Items))
	for i, item := range s.Items {
		lines[i] = reconcile.Line{ProductID: item.ProductID, Count: item.Count, UnitPrice: item.UnitPrice}
	}
	return lines
}

// fromResponse converts a server cart. Returns nil when the response carries
// no cart body.
func fromResponse(resp *model.CartResponse) *Snapshot {
	if resp == nil || resp.Data == nil {
		return nil
	}
	items := make([]LineItem, 0, len(resp.Data.Products))
	for _, line := range resp.Data.Products {
		if line.Product.ID == "" {
			continue
		}
		item := LineItem{
			ProductID: line.Product.ID,
			UnitPrice: line.Price,
			Count:     line.Count,
		}
		if p := line.Product.Product; p != nil {
			item.Title = p.Title
			item.ImageCover = p.ImageCover
		}
		items = append(items, item)
	}
	return newSnapshot(resp.ID(), items)
}
