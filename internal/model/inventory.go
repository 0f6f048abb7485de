package model

// Purchase holds cost-basis information for an item.
type Purchase struct {
	Currency string   `json:"currency,omitempty" bson:"currency,omitempty"`
	Date     string   `json:"date,omitempty" bson:"date,omitempty"`
	Platform *string  `json:"platform" bson:"platform"`
	Price    *float64 `json:"price" bson:"price"`
	Quantity *int     `json:"quantity" bson:"quantity"`
}

// EbayListingData carries eBay-only listing fields.
type EbayListingData struct {
	Type string `json:"type,omitempty" bson:"type,omitempty"`
}

// DepopData carries Depop-only listing and order fields.
type DepopData struct {
	DiscountedPrice *float64       `json:"discountedPrice" bson:"discountedPrice"`
	Sizes           []string       `json:"sizes,omitempty" bson:"sizes,omitempty"`
	BrandID         *int64         `json:"brandId,omitempty" bson:"brandId,omitempty"`
	CategoryID      *int64         `json:"categoryId,omitempty" bson:"categoryId,omitempty"`
	VariantSetID    *int64         `json:"variantSetId,omitempty" bson:"variantSetId,omitempty"`
	Variants        map[string]int `json:"variants,omitempty" bson:"variants,omitempty"`
}

// InventoryItem is one normalized listing in a user's inventory collection.
type InventoryItem struct {
	ItemID          string           `json:"itemId" bson:"itemId"`
	Name            string           `json:"name" bson:"name"`
	Price           float64          `json:"price" bson:"price"`
	Currency        string           `json:"currency" bson:"currency"`
	Quantity        int              `json:"quantity" bson:"quantity"`
	InitialQuantity int              `json:"initialQuantity" bson:"initialQuantity"`
	Image           []string         `json:"image" bson:"image"`
	DateListed      string           `json:"dateListed" bson:"dateListed"`
	URL             string           `json:"url,omitempty" bson:"url,omitempty"`
	RecordType      RecordType       `json:"recordType" bson:"recordType"`
	StoreType       Store            `json:"storeType,omitempty" bson:"storeType,omitempty"`
	CustomTag       *string          `json:"customTag,omitempty" bson:"customTag,omitempty"`
	Purchase        *Purchase        `json:"purchase,omitempty" bson:"purchase,omitempty"`
	CreatedAt       string           `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	LastModified    string           `json:"lastModified" bson:"lastModified"`
	Ebay            *EbayListingData `json:"ebay,omitempty" bson:"ebay,omitempty"`
	Depop           *DepopData       `json:"depop,omitempty" bson:"depop,omitempty"`
}

// ChangedFrom reports whether any tracked field differs from prev.
// A nil prev always counts as changed.
func (i *InventoryItem) ChangedFrom(prev *InventoryItem) bool {
	if prev == nil {
		return true
	}
	return i.Currency != prev.Currency ||
		i.DateListed != prev.DateListed ||
		!equalStrings(i.Image, prev.Image) ||
		i.InitialQuantity != prev.InitialQuantity ||
		i.ItemID != prev.ItemID ||
		i.Name != prev.Name ||
		i.Price != prev.Price ||
		i.Quantity != prev.Quantity ||
		i.URL != prev.URL
}

// NormalizeImages coerces a possibly-empty image source into a list.
func NormalizeImages(images ...string) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		if img != "" {
			out = append(out, img)
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
