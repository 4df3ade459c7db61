package domain

import (
	"log"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID      string
	OwnerID string
	Items   []CartItem
}

type CartItem struct {
	ID       string // store document id, the removal target
	Product  Product
	Quantity decimal.Decimal // kilograms
}

func (i CartItem) Subtotal() Money {
	return i.Product.Price.Mul(i.Quantity)
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Total recomputes the cart total from the current item set. Items whose
// product failed to populate on the last fetch are excluded, same as in
// the rendered view.
func (c *Cart) Total() Money {
	var total Money
	for _, item := range c.Items {
		if item.Product.ID == "" {
			continue
		}
		total = total.Add(item.Subtotal())
	}
	return total
}

// ItemIDs returns the document ids of all populated line items, in store order.
func (c *Cart) ItemIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		if item.Product.ID == "" {
			continue
		}
		ids = append(ids, item.ID)
	}
	return ids
}

// CartView is the display form of a cart: duplicate lines of the same
// product folded into one group.
type CartView struct {
	Groups []ProductGroup
	Total  Money
}

// ProductGroup folds every line item of one product into a single display
// row. RemoveItemID targets exactly one underlying line (the first one),
// so removal peels off one physical item while the row shows the sum.
type ProductGroup struct {
	Product      Product
	Quantity     decimal.Decimal
	Subtotal     Money
	RemoveItemID string
	ItemIDs      []string
}

// BuildCartView groups cart items by product, preserving first-seen order.
// Items whose product did not populate are skipped and logged, not failed on.
func BuildCartView(cart *Cart) CartView {
	var view CartView
	if cart == nil {
		return view
	}

	index := make(map[string]int)
	for _, item := range cart.Items {
		if item.Product.ID == "" {
			log.Printf("cart %s: item %s has no populated product, skipping", cart.ID, item.ID)
			continue
		}

		i, ok := index[item.Product.ID]
		if !ok {
			index[item.Product.ID] = len(view.Groups)
			view.Groups = append(view.Groups, ProductGroup{
				Product:      item.Product,
				Quantity:     item.Quantity,
				Subtotal:     item.Subtotal(),
				RemoveItemID: item.ID,
				ItemIDs:      []string{item.ID},
			})
			continue
		}

		group := &view.Groups[i]
		group.Quantity = group.Quantity.Add(item.Quantity)
		group.Subtotal = group.Subtotal.Add(item.Subtotal())
		group.ItemIDs = append(group.ItemIDs, item.ID)
	}

	for _, group := range view.Groups {
		view.Total = view.Total.Add(group.Subtotal)
	}
	return view
}

// Contains reports whether the cart currently holds a line item with the
// given document id.
func (c *Cart) Contains(itemID string) bool {
	if c == nil {
		return false
	}
	for _, item := range c.Items {
		if item.ID == itemID {
			return true
		}
	}
	return false
}
