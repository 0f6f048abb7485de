package ebay

import (
	"encoding/xml"
	"strings"

	"github.com/shopspring/decimal"

	"storesync-api/internal/marketplace"
)

const tradingNamespace = "urn:ebay:apis:eBLBaseComponents"

// Amount is a monetary value with its currency attribute.
// JSON uses the SDK dictionary shape {"value": "...", "_currencyID": "..."}.
type Amount struct {
	Value      decimal.Decimal `json:"value"`
	CurrencyID string          `json:"_currencyID"`
}

// UnmarshalXML reads <Amount currencyID="GBP">12.50</Amount>.
func (a *Amount) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Text     string `xml:",chardata"`
		Currency string `xml:"currencyID,attr"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	a.CurrencyID = raw.Currency
	text := strings.TrimSpace(raw.Text)
	if text == "" {
		a.Value = decimal.Zero
		return nil
	}
	v, err := decimal.NewFromString(text)
	if err != nil {
		return err
	}
	a.Value = v
	return nil
}

// Value is an element with character data, e.g. <RefundTo type="x">eBayUser</RefundTo>.
type Value struct {
	Value string `xml:",chardata" json:"value"`
}

type pagination struct {
	EntriesPerPage int `xml:"EntriesPerPage"`
	PageNumber     int `xml:"PageNumber"`
}

// PaginationResult is returned by paged calls.
type PaginationResult struct {
	TotalNumberOfPages   int `xml:"TotalNumberOfPages"`
	TotalNumberOfEntries int `xml:"TotalNumberOfEntries"`
}

// APIError is one entry of a response's Errors list.
type APIError struct {
	ShortMessage string `xml:"ShortMessage"`
	LongMessage  string `xml:"LongMessage"`
	ErrorCode    string `xml:"ErrorCode"`
	SeverityCode string `xml:"SeverityCode"`
}

type responseHeader struct {
	Ack    string     `xml:"Ack"`
	Errors []APIError `xml:"Errors"`
}

func (h responseHeader) header() responseHeader { return h }

// Item is a listing as returned by GetMyeBaySelling and GetItem.
type Item struct {
	ItemID            string `xml:"ItemID"`
	Title             string `xml:"Title"`
	Site              string `xml:"Site"`
	ListingType       string `xml:"ListingType"`
	Quantity          int    `xml:"Quantity"`
	QuantityAvailable int    `xml:"QuantityAvailable"`
	BuyItNowPrice     Amount `xml:"BuyItNowPrice"`
	SellingStatus     struct {
		CurrentPrice Amount `xml:"CurrentPrice"`
	} `xml:"SellingStatus"`
	ListingDetails struct {
		StartTime   string `xml:"StartTime"`
		ViewItemURL string `xml:"ViewItemURL"`
	} `xml:"ListingDetails"`
	PictureDetails struct {
		GalleryURL string                         `xml:"GalleryURL"`
		PictureURL marketplace.OneOrMany[string] `xml:"PictureURL"`
	} `xml:"PictureDetails"`
}

// Currency returns the listing currency, preferring the Buy It Now price.
func (i *Item) Currency() string {
	if i.BuyItNowPrice.CurrencyID != "" {
		return i.BuyItNowPrice.CurrencyID
	}
	return i.SellingStatus.CurrentPrice.CurrencyID
}

// ShippingServiceOption is one shipping service offered on an order.
type ShippingServiceOption struct {
	ShippingService     string  `xml:"ShippingService"`
	ShippingServiceCost *Amount `xml:"ShippingServiceCost"`
}

// Refund is the monetary refund attached to a cancelled order.
type Refund struct {
	RefundStatus string `xml:"RefundStatus"`
	RefundType   string `xml:"RefundType"`
	RefundAmount Amount `xml:"RefundAmount"`
	RefundTo     Value  `xml:"RefundTo"`
	RefundTime   string `xml:"RefundTime"`
	ReferenceID  Value  `xml:"ReferenceID"`
}

// Transaction is one line of an order.
type Transaction struct {
	TransactionID     string `xml:"TransactionID"`
	CreatedDate       string `xml:"CreatedDate"`
	QuantityPurchased int    `xml:"QuantityPurchased"`
	TransactionPrice  Amount `xml:"TransactionPrice"`
	Item              struct {
		ItemID string `xml:"ItemID"`
		Title  string `xml:"Title"`
		Site   string `xml:"Site"`
	} `xml:"Item"`
	ShippingDetails struct {
		ShipmentTrackingDetails struct {
			ShippingCarrierUsed    string `xml:"ShippingCarrierUsed"`
			ShipmentTrackingNumber string `xml:"ShipmentTrackingNumber"`
		} `xml:"ShipmentTrackingDetails"`
	} `xml:"ShippingDetails"`
	Taxes *struct {
		TotalTaxAmount Amount `xml:"TotalTaxAmount"`
	} `xml:"Taxes"`
}

// Order is a GetOrders order with its transactions.
type Order struct {
	OrderID        string `xml:"OrderID"`
	OrderStatus    string `xml:"OrderStatus"`
	AmountPaid     Amount `xml:"AmountPaid"`
	CreatedTime    string `xml:"CreatedTime"`
	PaidTime       string `xml:"PaidTime"`
	ShippedTime    string `xml:"ShippedTime"`
	BuyerUserID    string `xml:"BuyerUserID"`
	CheckoutStatus struct {
		LastModifiedTime string `xml:"LastModifiedTime"`
	} `xml:"CheckoutStatus"`
	ShippingDetails struct {
		ShippingServiceOptions marketplace.OneOrMany[ShippingServiceOption] `xml:"ShippingServiceOptions"`
	} `xml:"ShippingDetails"`
	ShippingServiceSelected struct {
		ShippingPackageInfo struct {
			ActualDeliveryTime string `xml:"ActualDeliveryTime"`
		} `xml:"ShippingPackageInfo"`
	} `xml:"ShippingServiceSelected"`
	MonetaryDetails struct {
		Refunds struct {
			Refund *Refund `xml:"Refund"`
		} `xml:"Refunds"`
	} `xml:"MonetaryDetails"`
	TransactionArray struct {
		Transaction marketplace.OneOrMany[Transaction] `xml:"Transaction"`
	} `xml:"TransactionArray"`
}

// ShippingFees returns the cost of the first shipping option, 0 when absent.
func (o *Order) ShippingFees() decimal.Decimal {
	opt, ok := o.ShippingDetails.ShippingServiceOptions.First()
	if !ok || opt.ShippingServiceCost == nil {
		return decimal.Zero
	}
	return opt.ShippingServiceCost.Value
}

type getMyeBaySellingRequest struct {
	XMLName    xml.Name `xml:"urn:ebay:apis:eBLBaseComponents GetMyeBaySellingRequest"`
	ActiveList struct {
		Include    bool       `xml:"Include"`
		Sort       string     `xml:"Sort"`
		Pagination pagination `xml:"Pagination"`
	} `xml:"ActiveList"`
	DetailLevel string `xml:"DetailLevel,omitempty"`
}

// GetMyeBaySellingResponse is the ActiveList slice of the response.
type GetMyeBaySellingResponse struct {
	responseHeader
	ActiveList struct {
		ItemArray struct {
			Item marketplace.OneOrMany[Item] `xml:"Item"`
		} `xml:"ItemArray"`
		PaginationResult PaginationResult `xml:"PaginationResult"`
	} `xml:"ActiveList"`
}

type getOrdersRequest struct {
	XMLName        xml.Name   `xml:"urn:ebay:apis:eBLBaseComponents GetOrdersRequest"`
	OrderStatus    string     `xml:"OrderStatus"`
	CreateTimeFrom string     `xml:"CreateTimeFrom,omitempty"`
	CreateTimeTo   string     `xml:"CreateTimeTo,omitempty"`
	ModTimeFrom    string     `xml:"ModTimeFrom,omitempty"`
	ModTimeTo      string     `xml:"ModTimeTo,omitempty"`
	Pagination     pagination `xml:"Pagination"`
}

// GetOrdersResponse is one page of orders.
type GetOrdersResponse struct {
	responseHeader
	HasMoreOrders    bool             `xml:"HasMoreOrders"`
	PaginationResult PaginationResult `xml:"PaginationResult"`
	OrderArray       struct {
		Order marketplace.OneOrMany[Order] `xml:"Order"`
	} `xml:"OrderArray"`
}

type getItemRequest struct {
	XMLName     xml.Name `xml:"urn:ebay:apis:eBLBaseComponents GetItemRequest"`
	ItemID      string   `xml:"ItemID"`
	DetailLevel string   `xml:"DetailLevel,omitempty"`
}

// GetItemResponse wraps a single item.
type GetItemResponse struct {
	responseHeader
	Item *Item `xml:"Item"`
}
