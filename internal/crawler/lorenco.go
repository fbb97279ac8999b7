package crawler

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/vjekoslav/cijene-api/pkg/errors"
)

// Lorenco publishes a single windows-1250 CSV per day at a predictable
// upload path, valid for all of its locations. The list carries no
// product codes, so the barcode stands in for them.
type Lorenco struct {
	*BaseCrawler
}

func NewLorenco(base *BaseCrawler) *Lorenco {
	base.BaseURL = "https://lorenco.hr"
	base.Mapping = Mapping{
		Chain: base.ChainCode,
		Prices: []FieldSpec{
			{Field: "price", Column: "MPC"},
			{Field: "unit_price", Column: "MpcJmj"},
			{Field: "anchor_price", Column: "CijenaSid"},
		},
		Fields: []FieldSpec{
			{Field: "product", Column: "Naziv", Required: true},
			{Field: "barcode", Column: "Barkod", Required: true},
			{Field: "unit", Column: "JMjere"},
		},
	}
	return &Lorenco{BaseCrawler: base}
}

func (c *Lorenco) Crawl(ctx context.Context, date time.Time) ([]Store, error) {
	started := time.Now()

	csvURL := fmt.Sprintf("%s/wp-content/uploads/%d/%02d/Cijenik-%s.csv",
		c.BaseURL, date.Year(), int(date.Month()), date.Format("02.01.2006"))
	content, err := c.Client.FetchText(ctx, csvURL, []string{"windows-1250"})
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode,
			fmt.Sprintf("no price list found for %s", date.Format("2006-01-02")), err)
	}

	rows, err := DelimitedRecords(content, ';')
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to parse price CSV", err)
	}

	products := c.ParseRows(rows)
	if len(products) == 0 {
		return nil, apperrors.NewIndexResolution(c.ChainCode,
			fmt.Sprintf("no products found for %s", date.Format("2006-01-02")), nil)
	}

	// No per-product codes in the source, reuse the barcode.
	for i := range products {
		products[i].ProductID = products[i].Barcode
	}

	stores := []Store{{
		Chain:     c.ChainCode,
		StoreID:   "all",
		Name:      "Lorenco",
		StoreType: "store",
		Items:     products,
	}}
	c.LogCrawlDone(date, stores, started)
	return stores, nil
}
