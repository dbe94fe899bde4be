// Package model defines the storefront data structures mirrored from the commerce API.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// === Catalog ===

// Product is a read-only catalog record.
// The API sends both "_id" and "id"; Key picks whichever is present.
type Product struct {
	ID                 string        `json:"_id"`
	RefID              string        `json:"id,omitempty"`
	Title              string        `json:"title"`
	Slug               string        `json:"slug,omitempty"`
	Description        string        `json:"description,omitempty"`
	Quantity           int           `json:"quantity,omitempty"`
	Sold               int           `json:"sold,omitempty"`
	Price              Money         `json:"price"`
	PriceAfterDiscount Money         `json:"priceAfterDiscount,omitempty"`
	ImageCover         string        `json:"imageCover,omitempty"`
	Images             []string      `json:"images,omitempty"`
	Category           *Category     `json:"category,omitempty"`
	Brand              *Brand        `json:"brand,omitempty"`
	Subcategories      []Subcategory `json:"subcategory,omitempty"`
	RatingsAverage     float64       `json:"ratingsAverage,omitempty"`
	RatingsQuantity    int           `json:"ratingsQuantity,omitempty"`
}

// Key returns the product id.
func (p Product) Key() string {
	if p.ID != "" {
		return p.ID
	}
	return p.RefID
}

// EffectivePrice is the price a shopper pays: the discounted price when set.
func (p Product) EffectivePrice() Money {
	if p.PriceAfterDiscount > 0 {
		return p.PriceAfterDiscount
	}
	return p.Price
}

// Category groups products on the category pages.
type Category struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Slug  string `json:"slug,omitempty"`
	Image string `json:"image,omitempty"`
}

// Brand groups products on the brand pages.
type Brand struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Slug  string `json:"slug,omitempty"`
	Image string `json:"image,omitempty"`
}

type Subcategory struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Slug     string `json:"slug,omitempty"`
	Category string `json:"category,omitempty"`
}

// === Cart ===

// ProductRef is a cart line's product: a bare id in write responses,
// a populated product in GET /cart.
type ProductRef struct {
	ID      string
	Product *Product
}

func (r *ProductRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		return json.Unmarshal(data, &r.ID)
	case data[0] == '{':
		var p Product
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("cart product: %w", err)
		}
		r.Product = &p
		r.ID = p.Key()
		return nil
	default:
		return fmt.Errorf("cart product: unexpected JSON %q", data[:1])
	}
}

func (r ProductRef) MarshalJSON() ([]byte, error) {
	if r.Product != nil {
		return json.Marshal(r.Product)
	}
	return json.Marshal(r.ID)
}

// CartLine is one product entry in a server cart.
type CartLine struct {
	ID      string     `json:"_id,omitempty"`
	Count   int        `json:"count"`
	Price   Money      `json:"price"`
	Product ProductRef `json:"product"`
}

// CartData is the body of a cart response.
type CartData struct {
	ID             string     `json:"_id"`
	Owner          string     `json:"cartOwner,omitempty"`
	Products       []CartLine `json:"products"`
	TotalCartPrice Money      `json:"totalCartPrice"`
}

// CartResponse is returned by every cart endpoint.
// NumOfCartItems counts distinct lines, not units.
type CartResponse struct {
	Status         string    `json:"status,omitempty"`
	Message        string    `json:"message,omitempty"`
	NumOfCartItems *int      `json:"numOfCartItems,omitempty"`
	CartID         string    `json:"cartId,omitempty"`
	Data           *CartData `json:"data,omitempty"`
}

// ID returns the cart id from either location the API uses.
func (c *CartResponse) ID() string {
	if c.CartID != "" {
		return c.CartID
	}
	if c.Data != nil {
		return c.Data.ID
	}
	return ""
}

// === Orders ===

// ShippingAddress is sent with every order.
type ShippingAddress struct {
	Details string `json:"details" validate:"required"`
	Phone   string `json:"phone" validate:"required,egphone"`
	City    string `json:"city" validate:"required"`
}

// Order is a placed order from the user's history.
type Order struct {
	ID                string           `json:"_id"`
	User              *User            `json:"user,omitempty"`
	CartItems         []CartLine       `json:"cartItems"`
	ShippingAddress   *ShippingAddress `json:"shippingAddress,omitempty"`
	TaxPrice          Money            `json:"taxPrice"`
	ShippingPrice     Money            `json:"shippingPrice"`
	TotalOrderPrice   Money            `json:"totalOrderPrice"`
	PaymentMethodType string           `json:"paymentMethodType"`
	IsPaid            bool             `json:"isPaid"`
	IsDelivered       bool             `json:"isDelivered"`
	CreatedAt         string           `json:"createdAt,omitempty"`
}

// CheckoutSession is a hosted payment page for online orders.
type CheckoutSession struct {
	URL        string `json:"url"`
	SuccessURL string `json:"success_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
}

// === Accounts ===

// User is the profile returned at sign-in. The API usually omits the id;
// the session resolver falls back to the token payload.
type User struct {
	ID    string `json:"_id,omitempty"`
	AltID string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// AuthResponse is returned by signup and signin.
type AuthResponse struct {
	Message string `json:"message,omitempty"`
	User    *User  `json:"user,omitempty"`
	Token   string `json:"token,omitempty"`
}
