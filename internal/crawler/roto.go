package crawler

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/vjekoslav/cijene-api/pkg/errors"
)

// Roto publishes one cp1250 CSV per day shared by all of its Cash &
// Carry locations. The CSV URL path doubles as the store roster, and the
// index page carries the store addresses.
type Roto struct {
	*BaseCrawler
	indexURL string
}

func NewRoto(base *BaseCrawler) *Roto {
	base.BaseURL = "https://www.rotodinamic.hr"
	base.Mapping = Mapping{
		Chain: base.ChainCode,
		Prices: []FieldSpec{
			{Field: "price", Column: "MPC", Required: true},
			{Field: "unit_price", Column: "Cijena za jedinicu mjere", Required: true},
			{Field: "special_price", Column: "MPC za vrijeme posebnog oblika prodaje"},
			{Field: "best_price_30", Column: "Najniža cijena u posljednjih 30 dana"},
			{Field: "anchor_price", Column: "sidrena cijena na 2.5.2025."},
		},
		Fields: []FieldSpec{
			{Field: "product", Column: "Naziv artikla"},
			{Field: "product_id", Column: "Šifra artikla", Required: true},
			{Field: "brand", Column: "BRAND"},
			// The published header has a mangled character in this column.
			{Field: "quantity", Column: "neto koli?ina"},
			{Field: "unit", Column: "Jedinica mjere"},
			{Field: "barcode", Column: "Barkod"},
			{Field: "category", Column: "Kategorija proizvoda"},
			{Field: "packaging", Column: "PAKIRANJE"},
		},
	}
	return &Roto{
		BaseCrawler: base,
		indexURL:    base.BaseURL + "/cjenici/",
	}
}

func (c *Roto) Crawl(ctx context.Context, date time.Time) ([]Store, error) {
	started := time.Now()

	html, err := c.Client.FetchText(ctx, c.indexURL, nil)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to fetch price list index", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to parse index HTML", err)
	}

	csvURL := c.findCSVURL(doc, date)
	if csvURL == "" {
		return nil, apperrors.NewIndexResolution(c.ChainCode,
			fmt.Sprintf("no price list found for %s", date.Format("2006-01-02")), nil)
	}

	content, err := c.Client.FetchText(ctx, csvURL, []string{"cp1250"})
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to fetch price CSV", err)
	}

	rows, err := DelimitedRecords(content, ';')
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to parse price CSV", err)
	}
	products := c.ParseRows(rows)

	addresses := c.parseStoreAddresses(doc)
	stores := c.buildStores(csvURL, products, addresses)
	if len(stores) == 0 {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "no stores listed in price CSV URL", nil)
	}

	c.LogCrawlDone(date, stores, started)
	return stores, nil
}

// findCSVURL matches the link whose URL path carries the date as the
// second-to-last comma-separated segment.
func (c *Roto) findCSVURL(doc *goquery.Document, date time.Time) string {
	dateStr := date.Format("02.01.2006")
	var found string

	doc.Find("a.cjenici-table-row").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		parsed, err := url.Parse(href)
		if err != nil {
			return true
		}
		segments := strings.Split(parsed.Path, ",")
		if len(segments) < 2 {
			return true
		}
		if strings.TrimSpace(segments[len(segments)-2]) != dateStr {
			return true
		}
		found = href
		return false
	})
	return found
}

type rotoAddress struct {
	street  string
	zipcode string
	city    string
}

// parseStoreAddresses reads the store roster from the index page, keyed
// by store name.
func (c *Roto) parseStoreAddresses(doc *goquery.Document) map[string]rotoAddress {
	addresses := make(map[string]rotoAddress)

	doc.Find(".container > div.mBottom50 > p > span.bold").Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Text())
		if name == "" {
			return
		}

		// The address is the text following the bolded store name.
		full := strings.TrimSpace(s.Parent().Text())
		address := strings.Trim(strings.TrimPrefix(full, name), " -")
		parts := strings.SplitN(address, ", ", 2)
		if len(parts) != 2 {
			c.Log.Warn().Str("store", name).Str("address", address).Msg("Unparseable store address")
			return
		}

		street := strings.TrimPrefix(parts[0], "Jankomir- ")
		zipcode, city, _ := strings.Cut(parts[1], " ")

		if _, dup := addresses[name]; dup {
			c.Log.Warn().Str("store", name).Msg("Duplicate store entry on index page")
		}
		addresses[name] = rotoAddress{street: street, zipcode: zipcode, city: city}
	})
	return addresses
}

var rotoStorePattern = regexp.MustCompile(`^D[0-9]+ `)

// buildStores extracts "D<id> <name>" segments from the CSV URL path and
// joins them with the roster. Every store shares the same product list.
func (c *Roto) buildStores(csvURL string, products []Product, addresses map[string]rotoAddress) []Store {
	parsed, err := url.Parse(csvURL)
	if err != nil {
		return nil
	}

	var stores []Store
	for _, segment := range strings.Split(parsed.Path, ",") {
		segment = strings.TrimSpace(segment)
		if !rotoStorePattern.MatchString(segment) {
			continue
		}
		storeID, name, _ := strings.Cut(segment, " ")

		addr, ok := addresses[name]
		if !ok {
			c.Log.Warn().Str("store_id", storeID).Str("name", name).Msg("No address for store")
		}

		stores = append(stores, Store{
			Chain:         c.ChainCode,
			StoreID:       storeID,
			Name:          "Cash & Carry " + name,
			StoreType:     "Cash & Carry",
			City:          addr.city,
			StreetAddress: addr.street,
			Zipcode:       addr.zipcode,
			Items:         products,
		})
	}

	if len(stores) != len(addresses) {
		c.Log.Warn().
			Int("csv_stores", len(stores)).
			Int("page_stores", len(addresses)).
			Msg("Store count mismatch between CSV URL and index page")
	}
	return stores
}
