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

// NTL links per-store CSVs from a table on its price page. The page only
// ever lists the current snapshot, so requests for past dates fall back
// to whatever is published.
type NTL struct {
	*BaseCrawler
}

func NewNTL(base *BaseCrawler) *NTL {
	base.BaseURL = "https://www.ntl.hr/cjenici-za-ntl-supermarkete"
	base.Mapping = Mapping{
		Chain: base.ChainCode,
		Prices: []FieldSpec{
			{Field: "price", Column: "Maloprodajna cijena"},
			{Field: "unit_price", Column: "Cijena za jedinicu mjere"},
			{Field: "special_price", Column: "MPC za vrijeme posebnog oblika prodaje"},
			{Field: "anchor_price", Column: "Sidrena cijena na 2.5.2025"},
		},
		Fields: []FieldSpec{
			{Field: "product", Column: "Naziv proizvoda", Required: true},
			{Field: "product_id", Column: "Šifra proizvoda", Required: true},
			{Field: "brand", Column: "Marka proizvoda"},
			{Field: "quantity", Column: "Neto količina"},
			{Field: "unit", Column: "Jedinica mjere"},
			{Field: "barcode", Column: "Barkod"},
			{Field: "category", Column: "Kategorija proizvoda"},
		},
	}
	return &NTL{BaseCrawler: base}
}

func (c *NTL) Crawl(ctx context.Context, date time.Time) ([]Store, error) {
	started := time.Now()
	c.WarnIfNotToday(date)

	html, err := c.Client.FetchText(ctx, c.BaseURL, nil)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to fetch price list index", err)
	}

	links := c.SelectLinks(html, `table a[href$=".csv"]`, c.BaseURL)
	if len(links) == 0 {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "no price list links on index page", nil)
	}

	locators := make([]Locator, 0, len(links))
	for _, link := range links {
		locators = append(locators, Locator{URL: link})
	}

	stores := c.CollectStores(ctx, locators, c.crawlStore)
	c.LogCrawlDone(date, stores, started)
	return stores, nil
}

func (c *NTL) crawlStore(ctx context.Context, loc Locator) (*Store, error) {
	store, err := c.parseStoreFromURL(loc.URL)
	if err != nil {
		return nil, err
	}

	content, err := c.Client.FetchText(ctx, loc.URL, []string{"windows-1250"})
	if err != nil {
		return nil, err
	}

	rows, err := DelimitedRecords(content, ';')
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "failed to parse price CSV", err)
	}

	store.Items = c.ParseRows(rows)
	return store, nil
}

// Filenames look like
// "Supermarket_Ljudevita Gaja 1_DUGA RESA_10103_263_25052025_07_22_36.csv".
var ntlFilenamePattern = regexp.MustCompile(
	`(?P<store_type>[^_]+)_(?P<street_address>[^_]+)_(?P<city>[^_]+)_(?P<zipcode>\d+)_(?P<store_id>\d+)_.*\.csv$`)

func (c *NTL) parseStoreFromURL(rawURL string) (*Store, error) {
	filename, err := url.PathUnescape(path.Base(rawURL))
	if err != nil {
		filename = path.Base(rawURL)
	}

	m := ntlFilenamePattern.FindStringSubmatch(filename)
	if m == nil {
		return nil, apperrors.NewStoreParse(c.ChainCode,
			fmt.Sprintf("unparseable CSV filename %q", filename), nil)
	}

	city := TitleCase(m[3])
	return &Store{
		Chain:         c.ChainCode,
		StoreID:       m[5],
		Name:          "NTL " + city,
		StoreType:     strings.ToLower(m[1]),
		City:          city,
		StreetAddress: m[2],
		Zipcode:       m[4],
	}, nil
}
