package crawler

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is one retailer-specific SKU at one moment. All monetary values
// are fixed-point decimals; optional prices are nil when the chain does not
// publish them.
type Product struct {
	Product   string // product name
	ProductID string // chain-local product code
	Brand     string
	Quantity  string // free-text amount, e.g. "500g"
	Unit      string // unit of measure code
	Barcode   string // EAN, may be synthesized when the chain omits it
	Category  string
	Packaging string

	Price        decimal.Decimal // current regular price, required
	UnitPrice    decimal.Decimal // price per unit of measure, required
	SpecialPrice *decimal.Decimal
	BestPrice30  *decimal.Decimal // lowest price in the preceding 30 days
	AnchorPrice  *decimal.Decimal // regulatory reference price
	InitialPrice *decimal.Decimal

	AnchorPriceDate string // YYYY-MM-DD
	DateAdded       string // YYYY-MM-DD
}

func (p Product) String() string {
	return fmt.Sprintf("%s %s (EAN: %s)", p.Brand, p.Product, p.Barcode)
}

// Store is one physical retail location, or a synthetic "all" location for
// chains that publish a single undifferentiated list. A store exclusively
// owns its product snapshot; neither is mutated after the crawl.
type Store struct {
	Chain         string // lowercase chain code
	StoreID       string // chain-local code, "all" for global lists
	Name          string
	StoreType     string
	City          string
	StreetAddress string
	Zipcode       string

	Items []Product
}

func (s Store) String() string {
	return fmt.Sprintf("%s (%s)", s.Name, s.StreetAddress)
}
