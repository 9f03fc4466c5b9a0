package cart

import (
	cartdto "github.com/angelmondragon/storefront-cart/api/controllers/cart/dto"
	"github.com/angelmondragon/storefront-cart/internal/cartstate"
)

func newCartView(snap cartstate.Snapshot) cartdto.Cart {
	items := make([]cartdto.CartItem, 0, len(snap.Cart.Items))
	for _, item := range snap.Cart.Items {
		items = append(items, cartdto.CartItem{
			ProductID: item.ProductID,
			Title:     item.Title,
			Price:     item.Price,
			Image:     item.Image,
			Stock:     item.Stock,
			Quantity:  item.Quantity,
		})
	}
	return cartdto.Cart{
		Items:       items,
		TotalAmount: snap.Cart.TotalAmount,
		ItemCount:   snap.Cart.ItemCount,
		Version:     snap.Version,
	}
}

func newCartMutation(out cartstate.Outcome) cartdto.CartMutation {
	return cartdto.CartMutation{
		Cart:         newCartView(out.Snapshot),
		Notification: out.Notification,
	}
}
