package crawler

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	apperrors "github.com/vjekoslav/cijene-api/pkg/errors"
)

// KTC publishes one price list page per store; each page links dated
// per-store CSVs. Store metadata lives in the CSV filename.
type KTC struct {
	*BaseCrawler
	indexURL string
}

func NewKTC(base *BaseCrawler) *KTC {
	base.BaseURL = "https://www.ktc.hr"
	base.Mapping = Mapping{
		Chain: base.ChainCode,
		Prices: []FieldSpec{
			{Field: "price", Column: "Maloprodajna cijena", Required: true},
			{Field: "unit_price", Column: "Cijena za jedinicu mjere", Required: true},
			{Field: "special_price", Column: "MPC za vrijeme posebnog oblika prodaje"},
			{Field: "best_price_30", Column: "Najniža cijena u posljednjih 30 dana"},
			{Field: "anchor_price", Column: "Sidrena cijena na 2.5.2025"},
		},
		Fields: []FieldSpec{
			{Field: "product", Column: "Naziv proizvoda", Required: true},
			{Field: "product_id", Column: "Šifra proizvoda", Required: true},
			{Field: "brand", Column: "Marka proizvoda"},
			{Field: "quantity", Column: "Neto količina"},
			{Field: "unit", Column: "Jedinica mjere"},
			{Field: "barcode", Column: "Barkod"},
			{Field: "category", Column: "Kategorija"},
		},
	}
	return &KTC{
		BaseCrawler: base,
		indexURL:    base.BaseURL + "/cjenici",
	}
}

func (c *KTC) Crawl(ctx context.Context, date time.Time) ([]Store, error) {
	started := time.Now()

	html, err := c.Client.FetchText(ctx, c.indexURL, nil)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to fetch price list index", err)
	}

	links := c.SelectLinks(html, `a[href^="cjenici?poslovnica="]`, c.indexURL)
	if len(links) == 0 {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "no store pages on index page", nil)
	}

	locators := make([]Locator, 0, len(links))
	for _, link := range links {
		locators = append(locators, Locator{URL: link})
	}

	stores := c.CollectStores(ctx, locators, func(ctx context.Context, loc Locator) (*Store, error) {
		return c.crawlStore(ctx, loc, date)
	})
	c.LogCrawlDone(date, stores, started)
	return stores, nil
}

// crawlStore resolves the store page to the CSV for the requested date,
// then parses it.
func (c *KTC) crawlStore(ctx context.Context, loc Locator, date time.Time) (*Store, error) {
	html, err := c.Client.FetchText(ctx, loc.URL, nil)
	if err != nil {
		return nil, err
	}

	marker := date.Format("20060102")
	var csvURL string
	for _, link := range c.SelectLinks(html, `a[href$=".csv"]`, loc.URL) {
		if strings.Contains(link, marker) {
			csvURL = link
			break
		}
	}
	if csvURL == "" {
		return nil, apperrors.NewIndexResolution(c.ChainCode,
			fmt.Sprintf("no price list for %s at %s", date.Format("2006-01-02"), loc.URL), nil)
	}

	store, err := c.parseStoreFromURL(csvURL)
	if err != nil {
		return nil, err
	}

	content, err := c.Client.FetchText(ctx, csvURL, []string{"windows-1250"})
	if err != nil {
		return nil, err
	}

	rows, err := DelimitedRecords(content, ';')
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "failed to parse price CSV", err)
	}

	store.Items = c.ParseRows(rows)
	if len(store.Items) == 0 {
		return nil, apperrors.NewStoreParse(c.ChainCode,
			fmt.Sprintf("no products found in %s", csvURL), nil)
	}
	return store, nil
}

// ktcCities is the known store roster; filenames carry the city inside the
// address field with no other separator. "SISAK II" must come before
// "SISAK" so the more specific name wins.
var ktcCities = []string{
	"KRIZEVCI",
	"VARAZDIN",
	"BJELOVAR",
	"CAKOVEC",
	"DARUVAR",
	"DUGO SELO",
	"DURDEVAC",
	"GRUBISNO POLJE",
	"IVANEC",
	"JALZABET",
	"KARLOVAC",
	"KOPRIVNICA",
	"KRAPINA",
	"KUTINA",
	"MURSKO SREDISCE",
	"PAKRAC",
	"PETRINJA",
	"PITOMACA",
	"POZEGA",
	"PRELOG",
	"SISAK II",
	"SISAK",
	"SLATINA",
	"VELIKA GORICA",
	"VIROVITICA",
	"VRBOVEC",
	"ZABOK",
	"CAZMA",
}

// parseStoreFromURL extracts store metadata from a CSV filename like
// "TRGOVINA-SENJSKA ULICA 118 KARLOVAC-PJ8A-1-20250515-071626.csv".
func (c *KTC) parseStoreFromURL(rawURL string) (*Store, error) {
	filename, err := url.PathUnescape(path.Base(rawURL))
	if err != nil {
		filename = path.Base(rawURL)
	}

	parts := strings.Split(filename, "-")
	if len(parts) < 3 {
		return nil, apperrors.NewStoreParse(c.ChainCode,
			fmt.Sprintf("unparseable CSV filename %q", filename), nil)
	}

	var city string
	for _, candidate := range ktcCities {
		if strings.Contains(filename, candidate) {
			city = candidate
			break
		}
	}

	address := strings.TrimSpace(parts[1])
	if city != "" {
		address = strings.Join(strings.Fields(strings.ReplaceAll(address, city, " ")), " ")
	}
	city = TitleCase(city)

	return &Store{
		Chain:         c.ChainCode,
		StoreID:       parts[2],
		Name:          strings.TrimSpace("KTC " + city),
		StoreType:     strings.ToLower(parts[0]),
		City:          city,
		StreetAddress: TitleCase(address),
	}, nil
}
