package cart

import (
	cartdto "github.com/angelmondragon/storefront-cart/api/controllers/cart/dto"
	cartsvc "github.com/angelmondragon/storefront-cart/internal/cart"
)

func toProduct(payload cartdto.AddItemRequest) (cartsvc.Product, int) {
	product := cartsvc.Product{
		ProductID: payload.ProductID,
		Title:     payload.Title,
		Image:     payload.Image,
	}
	if payload.Price != nil {
		product.Price = *payload.Price
	}
	if payload.Stock != nil {
		product.Stock = *payload.Stock
	}
	quantity := 1
	if payload.Quantity != nil {
		quantity = *payload.Quantity
	}
	return product, quantity
}
