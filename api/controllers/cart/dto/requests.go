package cartdto

// AddItemRequest is the body of POST /api/v1/cart/items. Price and stock are
// pointers so a missing value is rejected instead of read as zero. Quantity
// defaults to 1 and is capped per request.
type AddItemRequest struct {
	ProductID string   `json:"productId"`
	Title     string   `json:"title"`
	Price     *float64 `json:"price" validate:"required"`
	Image     string   `json:"image"`
	Stock     *int     `json:"stock" validate:"required"`
	Quantity  *int     `json:"quantity" validate:"omitempty,max=10000"`
}

// UpdateQuantityRequest is the body of PATCH /api/v1/cart/items/{productId}.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}
