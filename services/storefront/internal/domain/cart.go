package domain

import (
	"sort"
	"strings"
)

// identitySeparator joins the product id and each variant fragment of a line
// item identity.
const identitySeparator = "-"

// SelectedVariants maps a variant name to the chosen option name. An absent
// variant means no price modifier is applied for that axis.
type SelectedVariants map[string]string

// Clone returns an independent copy of the selection.
func (sv SelectedVariants) Clone() SelectedVariants {
	if sv == nil {
		return SelectedVariants{}
	}
	out := make(SelectedVariants, len(sv))
	for k, v := range sv {
		out[k] = v
	}
	return out
}

// LineItem is one row of the cart: a product snapshot plus an exact variant
// selection and a positive quantity.
type LineItem struct {
	ID               string           `json:"id"`
	Product          Product          `json:"product"`
	Quantity         int              `json:"quantity"`
	SelectedVariants SelectedVariants `json:"selected_variants"`
}

// UnitPrice is the effective unit price of the line item.
func (li LineItem) UnitPrice() int64 {
	return EffectiveUnitPrice(li)
}

// LineTotal is the effective unit price times quantity.
func (li LineItem) LineTotal() int64 {
	return EffectiveUnitPrice(li) * int64(li.Quantity)
}

// Cart is an immutable snapshot of the cart's line items. Totals are derived
// from the items on every call.
type Cart struct {
	Items []LineItem `json:"items"`
}

// TotalItemCount returns the sum of quantities across all line items.
func (c Cart) TotalItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// Subtotal returns the cart subtotal in pesos.
func (c Cart) Subtotal() int64 {
	return CartSubtotal(c.Items)
}

// IsEmpty reports whether the cart has no line items.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// FindItem returns the line item with the given identity.
func (c Cart) FindItem(id string) (LineItem, bool) {
	for _, item := range c.Items {
		if item.ID == id {
			return item, true
		}
	}
	return LineItem{}, false
}

// LineItemIdentity derives the deterministic identity of a line item. Variant
// names are sorted so that the same logical selection always yields the same
// identity regardless of the order the choices were made in.
//
//	LineItemIdentity("p1", nil)                              == "p1"
//	LineItemIdentity("p1", {"Size": "L", "Color": "Red"})    == "p1-Color-Red-Size-L"
func LineItemIdentity(productID string, selected SelectedVariants) string {
	if len(selected) == 0 {
		return productID
	}

	names := make([]string, 0, len(selected))
	for name := range selected {
		names = append(names, name)
	}
	sort.Strings(names)

	fragments := make([]string, 0, len(names))
	for _, name := range names {
		fragments = append(fragments, name+identitySeparator+selected[name])
	}

	return productID + identitySeparator + strings.Join(fragments, identitySeparator)
}
