package crawler

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/vjekoslav/cijene-api/pkg/errors"
)

// Vrutak lists its XML files in an HTML table, one row per date with one
// link per store. All of its stores are in Zagreb.
type Vrutak struct {
	*BaseCrawler
	indexURL string
}

func NewVrutak(base *BaseCrawler) *Vrutak {
	base.BaseURL = "https://www.vrutak.hr"
	base.Mapping = Mapping{
		Chain: base.ChainCode,
		Prices: []FieldSpec{
			{Field: "price", Column: "mpcijena", Required: true},
			{Field: "unit_price", Column: "mpcijenamjera"},
		},
		Fields: []FieldSpec{
			{Field: "product", Column: "naziv", Required: true},
			{Field: "product_id", Column: "sifra", Required: true},
			{Field: "brand", Column: "marka"},
			{Field: "quantity", Column: "nettokolicina"},
			{Field: "unit", Column: "mjera"},
			{Field: "barcode", Column: "barkod"},
			{Field: "category", Column: "kategorija"},
		},
	}
	return &Vrutak{
		BaseCrawler: base,
		indexURL:    base.BaseURL + "/cjenik-svih-artikala",
	}
}

func (c *Vrutak) Crawl(ctx context.Context, date time.Time) ([]Store, error) {
	started := time.Now()

	html, err := c.Client.FetchText(ctx, c.indexURL, nil)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to fetch price list index", err)
	}

	links := c.findLinksForDate(html, date)
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

// findLinksForDate scans the table rows for the one whose date cell
// matches, and collects the XML links from the remaining cells.
func (c *Vrutak) findLinksForDate(html string, date time.Time) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		c.Log.Warn().Err(err).Msg("Failed to parse index HTML")
		return nil
	}

	base, _ := url.Parse(c.BaseURL)
	dateStr := date.Format("02.01.2006.")
	var links []string

	doc.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		if strings.TrimSpace(cells.Eq(1).Text()) != dateStr {
			return
		}
		cells.Slice(2, cells.Length()).Each(func(_ int, cell *goquery.Selection) {
			href, ok := cell.Find(`a[href$=".xml"]`).Attr("href")
			if !ok {
				return
			}
			if ref, err := url.Parse(href); err == nil && base != nil {
				href = base.ResolveReference(ref).String()
			}
			links = append(links, href)
		})
	})
	return links
}

func (c *Vrutak) crawlStore(ctx context.Context, loc Locator) (*Store, error) {
	store, err := c.parseStoreFromURL(loc.URL)
	if err != nil {
		return nil, err
	}

	text, err := c.Client.FetchText(ctx, loc.URL, nil)
	if err != nil {
		return nil, err
	}

	rows, err := XMLRecords([]byte(text), "item")
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "failed to parse price XML", err)
	}

	store.Items = c.ParseRows(rows)
	return store, nil
}

// parseStoreFromURL decodes filenames like
// "vrutak-hipermarket-dubrava256-10040-01-202505160830.xml", laid out as
// vrutak-type-address-storeid-serial-datetime.
func (c *Vrutak) parseStoreFromURL(rawURL string) (*Store, error) {
	filename := strings.TrimSuffix(path.Base(rawURL), ".xml")
	parts := strings.Split(filename, "-")
	if len(parts) < 4 {
		return nil, apperrors.NewStoreParse(c.ChainCode,
			fmt.Sprintf("unparseable XML filename %q", filename), nil)
	}

	storeType := parts[1]
	return &Store{
		Chain:         c.ChainCode,
		StoreID:       parts[3],
		Name:          fmt.Sprintf("Vrutak %s %s", storeType, parts[3]),
		StoreType:     storeType,
		City:          "Zagreb",
		StreetAddress: TitleCase(parts[2]),
		Zipcode:       "10000",
	}, nil
}
