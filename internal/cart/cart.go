package cart

import (
	"math"

	"github.com/shopspring/decimal"
)

// Product is what a caller adds: a cart line without its quantity. Title,
// price, image and stock are captured at add time and never re-fetched.
type Product struct {
	ProductID string  `json:"productId" validate:"required,max=255"`
	Title     string  `json:"title" validate:"required"`
	Price     float64 `json:"price" validate:"finite,gte=0"`
	Image     string  `json:"image"`
	Stock     int     `json:"stock" validate:"gte=1"`
}

// Item is one persisted cart line.
type Item struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	Stock     int     `json:"stock"`
	Quantity  int     `json:"quantity"`
}

// Subtotal returns price × quantity without rounding.
func (i Item) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(i.Price).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the aggregate handed to callers. TotalAmount and ItemCount are
// always derived from Items and never persisted.
type Cart struct {
	Items       []Item  `json:"items"`
	TotalAmount float64 `json:"totalAmount"`
	ItemCount   int     `json:"itemCount"`
}

// Find returns the line for productID.
func (c Cart) Find(productID string) (Item, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return Item{}, false
}

// IsEmpty reports whether the cart holds no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Clone returns a copy that shares no memory with c.
func (c Cart) Clone() Cart {
	out := c
	out.Items = make([]Item, len(c.Items))
	copy(out.Items, c.Items)
	return out
}

// newCart builds a Cart from items, recomputing the derived fields with the
// total rounded to minorUnits decimal places.
func newCart(items []Item, minorUnits int32) Cart {
	if items == nil {
		items = []Item{}
	}
	total := decimal.Zero
	count := 0
	for _, item := range items {
		total = total.Add(item.Subtotal())
		count += item.Quantity
	}
	return Cart{
		Items:       items,
		TotalAmount: total.Round(minorUnits).InexactFloat64(),
		ItemCount:   count,
	}
}

// clamp bounds quantity to [1, stock].
// addQuantity sums two non-negative quantities, saturating at math.MaxInt.
func addQuantity(current, delta int) int {
	if delta > 0 && current > math.MaxInt-delta {
		return math.MaxInt
	}
	return current + delta
}

func clamp(quantity, stock int) int {
	if quantity > stock {
		quantity = stock
	}
	if quantity < 1 {
		quantity = 1
	}
	return quantity
}
