package domain

// Product is a catalog record as served by the catalog API. The cart keeps a
// snapshot of it per line item and never mutates it.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	SalePrice *int64    `json:"sale_price,omitempty"`
	IsOnSale  bool      `json:"is_on_sale"`
	ImageURL  string    `json:"image_url,omitempty"`
	Variants  []Variant `json:"variants,omitempty"`
}

// Variant is a named axis of choice on a product, e.g. "Size".
type Variant struct {
	Name    string   `json:"name"`
	Options []Option `json:"options"`
}

// Option is one selectable value of a variant. PriceModifier is added to the
// product's base price; Stock is informational only.
type Option struct {
	Name          string `json:"name"`
	PriceModifier int64  `json:"price_modifier"`
	Stock         int    `json:"stock"`
}

// DeliveryOption is an admin-managed shipping choice with a flat cost.
type DeliveryOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Cost int64  `json:"cost"`
}

// FindVariant returns the variant with the given name.
func (p *Product) FindVariant(name string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// FindOption returns the option named optionName within the variant named
// variantName. Both lookups are exact, case-sensitive matches.
func (p *Product) FindOption(variantName, optionName string) (Option, bool) {
	v, ok := p.FindVariant(variantName)
	if !ok {
		return Option{}, false
	}
	for _, o := range v.Options {
		if o.Name == optionName {
			return o, true
		}
	}
	return Option{}, false
}

// DisplayPrice returns the price shown in catalog listings: the sale price
// while the product is on sale, otherwise the base price.
//
// Cart pricing deliberately does not use this; see EffectiveUnitPrice.
func (p *Product) DisplayPrice() int64 {
	if p.IsOnSale && p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.Price
}
