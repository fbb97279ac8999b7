package crawler

import (
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/vjekoslav/cijene-api/pkg/errors"
)

// Default date assigned to anchor prices published without one. The
// regulation pinned reference prices to this date.
const defaultAnchorPriceDate = "2025-05-02"

// FieldSpec binds one normalized field to a source column or tag name.
type FieldSpec struct {
	Field    string // normalized field name
	Column   string // source column/tag name
	Required bool
}

// Mapping is a declarative, per-chain table translating source keys into
// normalized Product fields. Price entries go through ParsePrice; plain
// entries are copied as trimmed strings. Adding a chain means declaring a
// new table, never touching this engine.
type Mapping struct {
	Chain  string
	Prices []FieldSpec
	Fields []FieldSpec
}

// Product converts one raw record into a normalized Product. A missing
// required field or unparseable required price fails the record only.
func (m Mapping) Product(row map[string]string) (*Product, error) {
	var p Product
	var price, unitPrice *decimal.Decimal

	for _, spec := range m.Prices {
		value, err := ParsePrice(row[spec.Column], spec.Required)
		if err != nil {
			return nil, apperrors.NewPriceParse(m.Chain, spec.Field, err)
		}
		switch spec.Field {
		case "price":
			price = value
		case "unit_price":
			unitPrice = value
		case "special_price":
			p.SpecialPrice = value
		case "best_price_30":
			p.BestPrice30 = value
		case "anchor_price":
			p.AnchorPrice = value
		case "initial_price":
			p.InitialPrice = value
		}
	}

	for _, spec := range m.Fields {
		value := strings.TrimSpace(row[spec.Column])
		if value == "" && spec.Required {
			return nil, apperrors.NewFieldMissing(m.Chain, spec.Field)
		}
		switch spec.Field {
		case "product":
			p.Product = value
		case "product_id":
			p.ProductID = value
		case "brand":
			p.Brand = value
		case "quantity":
			p.Quantity = value
		case "unit":
			p.Unit = value
		case "barcode":
			p.Barcode = value
		case "category":
			p.Category = value
		case "packaging":
			p.Packaging = value
		case "anchor_price_date":
			p.AnchorPriceDate = value
		case "date_added":
			p.DateAdded = value
		}
	}

	if err := m.fixProduct(&p, price, unitPrice); err != nil {
		return nil, err
	}
	return &p, nil
}

// fixProduct applies the fixups shared by all chains: synthesized
// barcodes, the price fallback chain, and the default anchor price date.
func (m Mapping) fixProduct(p *Product, price, unitPrice *decimal.Decimal) error {
	if p.Barcode == "" {
		p.Barcode = m.Chain + ":" + p.ProductID
	}
	p.Barcode = strings.TrimSpace(strings.NewReplacer(`"`, "", `'`, "").Replace(p.Barcode))

	if price == nil {
		switch {
		case p.SpecialPrice != nil:
			price = p.SpecialPrice
		case unitPrice != nil:
			price = unitPrice
		default:
			return apperrors.NewFieldMissing(m.Chain, "price")
		}
	}
	if unitPrice == nil {
		unitPrice = price
	}

	p.Price = *price
	p.UnitPrice = *unitPrice

	if p.AnchorPrice != nil && p.AnchorPriceDate == "" {
		p.AnchorPriceDate = defaultAnchorPriceDate
	}
	return nil
}
