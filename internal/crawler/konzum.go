package crawler

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/vjekoslav/cijene-api/pkg/errors"
)

// Konzum publishes per-store CSVs behind an HTML index with one tab per
// date. Store metadata travels in the "title" query parameter of each
// download link, in two historical layouts.
type Konzum struct {
	*BaseCrawler
	indexURL string
}

func NewKonzum(base *BaseCrawler) *Konzum {
	base.BaseURL = "https://www.konzum.hr"
	base.Mapping = Mapping{
		Chain: base.ChainCode,
		Prices: []FieldSpec{
			{Field: "price", Column: "MALOPRODAJNA CIJENA", Required: true},
			{Field: "unit_price", Column: "CIJENA ZA JEDINICU MJERE", Required: true},
			{Field: "special_price", Column: "MPC ZA VRIJEME POSEBNOG OBLIKA PRODAJE"},
			{Field: "best_price_30", Column: "NAJNIŽA CIJENA U POSLJEDNJIH 30 DANA"},
			{Field: "anchor_price", Column: "SIDRENA CIJENA NA 2.5.2025"},
		},
		Fields: []FieldSpec{
			{Field: "product", Column: "NAZIV PROIZVODA", Required: true},
			{Field: "product_id", Column: "ŠIFRA PROIZVODA", Required: true},
			{Field: "brand", Column: "MARKA PROIZVODA"},
			{Field: "quantity", Column: "NETO KOLIČINA"},
			{Field: "unit", Column: "JEDINICA MJERE"},
			{Field: "barcode", Column: "BARKOD"},
			{Field: "category", Column: "KATEGORIJA PROIZVODA"},
		},
	}
	return &Konzum{
		BaseCrawler: base,
		indexURL:    base.BaseURL + "/cjenici",
	}
}

func (c *Konzum) Crawl(ctx context.Context, date time.Time) ([]Store, error) {
	started := time.Now()

	html, err := c.Client.FetchText(ctx, c.indexURL, nil)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to fetch price list index", err)
	}

	selector := fmt.Sprintf(`div[data-tab-type="%s"] a[format="csv"]`, date.Format("20060102"))
	links := c.SelectLinks(html, selector, c.BaseURL)
	if len(links) == 0 {
		return nil, apperrors.NewIndexResolution(c.ChainCode,
			fmt.Sprintf("no price list found for %s", date.Format("2006-01-02")), nil)
	}

	locators := make([]Locator, 0, len(links))
	for _, link := range links {
		locators = append(locators, Locator{URL: link})
	}

	stores := c.CollectStores(ctx, locators, c.crawlStore)
	c.LogCrawlDone(date, stores, started)
	return stores, nil
}

func (c *Konzum) crawlStore(ctx context.Context, loc Locator) (*Store, error) {
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

var konzumZipcodePattern = regexp.MustCompile(`\b\d{4,}\b`)

// parseStoreFromURL decodes the "title" query parameter carrying the
// store description, e.g.
// "HIPERMARKET,TRG HRVATSKIH REDARSTVENIKA 1 47000 KARLOVAC,1300,454,20250516080228.CSV".
// The field after the address is the store code. The current layout
// separates address parts with spaces and embeds the zipcode in the
// address; the older one joins street, zipcode and city with underscores.
func (c *Konzum) parseStoreFromURL(rawURL string) (*Store, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "invalid CSV URL", err)
	}
	title := parsed.Query().Get("title")
	if title == "" {
		return nil, apperrors.NewStoreParse(c.ChainCode, "no title parameter in CSV URL", nil)
	}

	parts := strings.Split(title, ",")
	if len(parts) < 3 {
		return nil, apperrors.NewStoreParse(c.ChainCode,
			fmt.Sprintf("unparseable store title %q", title), nil)
	}

	storeID := strings.TrimSpace(parts[2])
	if storeID == "" {
		return nil, apperrors.NewStoreParse(c.ChainCode,
			fmt.Sprintf("no store code in title %q", title), nil)
	}

	store := &Store{
		Chain:     c.ChainCode,
		StoreID:   storeID,
		StoreType: TitleCase(parts[0]),
	}

	address := parts[1]
	if strings.Contains(address, "_") {
		// Older layout: "SUPERMARKET,ULICA_GRADA_GOSPICA_5_10000_ZAGREB,...".
		// The first long digit run is the zipcode; street numbers stay
		// under four digits.
		addrParts := strings.Split(address, "_")
		zipIdx := -1
		for i, part := range addrParts {
			if konzumZipcodePattern.FindString(part) == part {
				zipIdx = i
				break
			}
		}
		if zipIdx < 1 || zipIdx == len(addrParts)-1 {
			return nil, apperrors.NewStoreParse(c.ChainCode,
				fmt.Sprintf("unparseable store address %q", address), nil)
		}
		store.StreetAddress = TitleCase(strings.Join(addrParts[:zipIdx], " "))
		store.Zipcode = addrParts[zipIdx]
		store.City = TitleCase(strings.Join(addrParts[zipIdx+1:], " "))
	} else {
		// Current layout: "HIPERMARKET,TRG HRVATSKIH REDARSTVENIKA 1 47000 KARLOVAC,..."
		zipcode := konzumZipcodePattern.FindString(address)
		if zipcode == "" {
			store.StreetAddress = TitleCase(address)
		} else {
			store.Zipcode = zipcode
			split := strings.SplitN(address, zipcode, 2)
			store.StreetAddress = TitleCase(strings.TrimSpace(split[0]))
			if len(split) > 1 {
				store.City = TitleCase(strings.TrimSpace(split[1]))
			}
		}
	}

	store.Name = fmt.Sprintf("Konzum %s", store.City)
	return store, nil
}
