package crawler

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/vjekoslav/cijene-api/pkg/errors"
)

// Metro links per-store CSVs straight from its landing page; filenames
// carry the snapshot timestamp, the warehouse ID and the address.
type Metro struct {
	*BaseCrawler
}

func NewMetro(base *BaseCrawler) *Metro {
	base.BaseURL = "https://metrocjenik.com.hr"
	base.Mapping = Mapping{
		Chain: base.ChainCode,
		Prices: []FieldSpec{
			{Field: "price", Column: "MPC", Required: true},
			{Field: "unit_price", Column: "CIJENA_PO_MJERI", Required: true},
			{Field: "special_price", Column: "POSEBNA_PRODAJA"},
			{Field: "best_price_30", Column: "NAJNIZA_30_DANA"},
			{Field: "anchor_price", Column: "SIDRENA_02_05"},
		},
		Fields: []FieldSpec{
			{Field: "product", Column: "NAZIV", Required: true},
			{Field: "product_id", Column: "SIFRA", Required: true},
			{Field: "brand", Column: "MARKA"},
			{Field: "quantity", Column: "NETO_KOLICINA"},
			{Field: "unit", Column: "JED_MJERE"},
			{Field: "barcode", Column: "BARKOD"},
			{Field: "category", Column: "KATEGORIJA"},
		},
	}
	return &Metro{BaseCrawler: base}
}

func (c *Metro) Crawl(ctx context.Context, date time.Time) ([]Store, error) {
	started := time.Now()

	html, err := c.Client.FetchText(ctx, c.BaseURL, nil)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to fetch price list index", err)
	}

	// Filenames embed the snapshot as _YYYYMMDDTHHMM_.
	marker := "_" + date.Format("20060102") + "T"
	var locators []Locator
	for _, link := range c.SelectLinks(html, `a[href$=".csv"]`, c.BaseURL) {
		if strings.Contains(path.Base(link), marker) {
			locators = append(locators, Locator{URL: link})
		}
	}
	if len(locators) == 0 {
		return nil, apperrors.NewIndexResolution(c.ChainCode,
			fmt.Sprintf("no price list found for %s", date.Format("2006-01-02")), nil)
	}

	stores := c.CollectStores(ctx, locators, c.crawlStore)
	c.LogCrawlDone(date, stores, started)
	return stores, nil
}

func (c *Metro) crawlStore(ctx context.Context, loc Locator) (*Store, error) {
	store, err := c.parseStoreFromURL(loc.URL)
	if err != nil {
		return nil, err
	}

	content, err := c.Client.FetchText(ctx, loc.URL, nil)
	if err != nil {
		return nil, err
	}

	rows, err := DelimitedRecords(content, ',')
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "failed to parse price CSV", err)
	}

	store.Items = c.ParseRows(rows)
	return store, nil
}

// Filenames look like
// "skladiste_za_trgovanje_robom_na_veliko_i_malo_METRO_20250521T1149_S20_CESTA_PAPE_IVANA_PAVLA_II_3,_KASTEL_SUCURAC.csv".
var metroFilenamePattern = regexp.MustCompile(
	`^(?P<store_type>.+?)_METRO_\d{8}T\d{4}_` +
		`(?P<store_id>[^_]+)_` +
		`(?P<address>[^,]+),` +
		`(?P<city>[^.]+)\.csv$`)

func (c *Metro) parseStoreFromURL(rawURL string) (*Store, error) {
	filename, err := url.PathUnescape(path.Base(rawURL))
	if err != nil {
		filename = path.Base(rawURL)
	}

	m := metroFilenamePattern.FindStringSubmatch(filename)
	if m == nil {
		return nil, apperrors.NewStoreParse(c.ChainCode,
			fmt.Sprintf("unparseable CSV filename %q", filename), nil)
	}

	storeType := strings.ToLower(strings.ReplaceAll(m[1], "_", " "))
	storeID := m[2]
	city := TitleCase(strings.Trim(m[4], "_"))

	return &Store{
		Chain:         c.ChainCode,
		StoreID:       storeID,
		Name:          fmt.Sprintf("Metro %s %s", city, storeID),
		StoreType:     storeType,
		City:          city,
		StreetAddress: TitleCase(m[3]),
	}, nil
}
