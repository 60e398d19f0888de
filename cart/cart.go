// Package cart is the single source of truth for the active cart and
// for historical orders within a session. It owns no network concerns;
// its only side effect is persisting state through a core.Storage.
package cart

import (
	"time"
)

// Item describes a dish being added to the cart. ItemID and
// RestaurantID together form the line identity: the same dish id from
// two different restaurants is a distinct line.
type Item struct {
	ItemID         string `json:"itemId"`
	RestaurantID   int64  `json:"restaurantId"`
	Name           string `json:"name"`
	PriceInCents   int64  `json:"price"`
	RestaurantName string `json:"restaurantName,omitempty"`
	Emoji          string `json:"emoji,omitempty"`
	ImageURL       string `json:"image,omitempty"`
}

// LineItem is one cart row. Quantity is always >= 1 while the line
// exists; a quantity driven to zero removes the line entirely.
type LineItem struct {
	Item
	Quantity int64 `json:"quantity"`
}

// Subtotal returns price times quantity for this line
func (l LineItem) Subtotal() int64 {
	return l.PriceInCents * l.Quantity
}

// CheckoutDetails carries the delivery/payment/contact fields supplied
// at checkout. The store treats them as opaque; they are copied onto
// the created order verbatim.
type CheckoutDetails struct {
	Address       string `json:"address"`
	Landmark      string `json:"landmark,omitempty"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
	ContactName   string `json:"contactName,omitempty"`
	ContactPhone  string `json:"contactPhone,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// OrderStatus is display-only; nothing in this core transitions an
// order past its initial state.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
)

// Order is an immutable snapshot of a cart plus checkout details,
// created at checkout time. Later cart mutations never affect it.
type Order struct {
	ID           string          `json:"id"`
	Items        []LineItem      `json:"items"`
	Details      CheckoutDetails `json:"details"`
	TotalInCents int64           `json:"totalInCents"`
	Status       OrderStatus     `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
}
