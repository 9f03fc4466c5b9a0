package cartdto

import "github.com/angelmondragon/storefront-cart/internal/notifications"

type CartItem struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	Stock     int     `json:"stock"`
	Quantity  int     `json:"quantity"`
}

// Cart is the published cart snapshot.
type Cart struct {
	Items       []CartItem `json:"items"`
	TotalAmount float64    `json:"totalAmount"`
	ItemCount   int        `json:"itemCount"`
	Version     uint64     `json:"version"`
}

// CartMutation is returned by every mutating endpoint.
type CartMutation struct {
	Cart         Cart                       `json:"cart"`
	Notification notifications.Notification `json:"notification"`
}
