package depop

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ID decodes identifiers Depop sends either as strings or as numbers.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("depop id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Preview holds image URLs keyed by size, in the order Depop sends them.
type Preview []string

// UnmarshalJSON keeps object values in document order.
func (p *Preview) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("depop preview: expected object")
	}

	var out []string
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return err
		}
		var url string
		if err := dec.Decode(&url); err != nil {
			return err
		}
		out = append(out, url)
	}
	*p = out
	return nil
}

// Last returns the final preview, the largest size Depop lists.
func (p Preview) Last() (string, bool) {
	if len(p) == 0 {
		return "", false
	}
	return p[len(p)-1], true
}

// Price is a single price point.
type Price struct {
	TotalPrice decimal.Decimal `json:"total_price"`
}

// ShippingCost is a shipping option on a product.
type ShippingCost struct {
	TotalPrice decimal.Decimal `json:"total_price"`
	Type       string          `json:"type"`
}

// Pricing is the pricing block of a product.
type Pricing struct {
	CurrencyName         string        `json:"currency_name"`
	IsReduced            bool          `json:"is_reduced"`
	OriginalPrice        Price         `json:"original_price"`
	DiscountedPrice      *Price        `json:"discounted_price"`
	NationalShippingCost *ShippingCost `json:"national_shipping_cost"`
}

// Effective returns the price a buyer pays: the discounted price when reduced.
func (p Pricing) Effective() decimal.Decimal {
	if p.IsReduced && p.DiscountedPrice != nil {
		return p.DiscountedPrice.TotalPrice
	}
	return p.OriginalPrice.TotalPrice
}

// Product is a shop product, listed or sold.
type Product struct {
	ID           ID             `json:"id"`
	Slug         string         `json:"slug"`
	Description  string         `json:"description"`
	Sold         bool           `json:"sold"`
	Status       string         `json:"status"`
	Pricing      Pricing        `json:"pricing"`
	Preview      Preview        `json:"preview"`
	Sizes        []string       `json:"sizes"`
	BrandID      *int64         `json:"brand_id"`
	CategoryID   *int64         `json:"category_id"`
	VariantSetID *int64         `json:"variant_set_id"`
	Variants     map[string]int `json:"variants"`
	DateUpdated  string         `json:"date_updated"`
}

// Quantity sums the variant stock, 1 for single items.
func (p *Product) Quantity() int {
	if p.Variants == nil {
		return 1
	}
	total := 0
	for _, n := range p.Variants {
		total += n
	}
	return total
}

// Meta is the cursor block of a products page.
type Meta struct {
	LastOffsetID ID   `json:"last_offset_id"`
	End          bool `json:"end"`
}

// ProductsPage is one page of products.
type ProductsPage struct {
	Products []Product `json:"products"`
	Meta     Meta      `json:"meta"`
}
