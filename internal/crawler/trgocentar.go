package crawler

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/vjekoslav/cijene-api/pkg/errors"
)

// Trgocentar serves one XML per store from a plain directory listing;
// each record element carries one product. Store metadata sits in the
// filename, with the city recognized as a known address suffix.
type Trgocentar struct {
	*BaseCrawler
	indexURL string
}

var trgocentarCities = []string{
	"HUM NA SUTLI", "ZLATAR", "SV IVAN ZELINA", "SV KRIZ ZACRETJE",
	"ZABOK", "ZAPRESIC",
}

func NewTrgocentar(base *BaseCrawler) *Trgocentar {
	base.BaseURL = "https://trgocentar.com"
	base.Mapping = Mapping{
		Chain: base.ChainCode,
		Prices: []FieldSpec{
			{Field: "price", Column: "mpc"},
			{Field: "unit_price", Column: "c_jmj"},
			{Field: "special_price", Column: "mpc_pop"},
			{Field: "best_price_30", Column: "c_najniza_30"},
			{Field: "anchor_price", Column: "c_020525"},
		},
		Fields: []FieldSpec{
			{Field: "product", Column: "naziv_art", Required: true},
			{Field: "product_id", Column: "sif_art", Required: true},
			{Field: "brand", Column: "marka"},
			{Field: "quantity", Column: "net_kol"},
			{Field: "unit", Column: "jmj"},
			{Field: "barcode", Column: "ean_kod"},
			{Field: "category", Column: "naz_kat"},
		},
	}
	return &Trgocentar{
		BaseCrawler: base,
		indexURL:    base.BaseURL + "/Trgovine-cjenik/",
	}
}

func (c *Trgocentar) Crawl(ctx context.Context, date time.Time) ([]Store, error) {
	started := time.Now()

	html, err := c.Client.FetchText(ctx, c.indexURL, nil)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to fetch price list index", err)
	}

	// Filenames embed the date as _DDMMYYYY followed by the time.
	marker := "_" + date.Format("02012006")
	var locators []Locator
	for _, link := range c.SelectLinks(html, `a[href$=".xml"]`, c.indexURL) {
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

func (c *Trgocentar) crawlStore(ctx context.Context, loc Locator) (*Store, error) {
	store, err := c.parseStoreFromURL(loc.URL)
	if err != nil {
		return nil, err
	}

	text, err := c.Client.FetchText(ctx, loc.URL, nil)
	if err != nil {
		return nil, err
	}

	rows, err := XMLRecords([]byte(text), "cjenik")
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "failed to parse price XML", err)
	}

	store.Items = c.ParseRows(rows)
	return store, nil
}

// Filenames look like
// "SUPERMARKET_VL_NAZORA_58_SV_IVAN_ZELINA_P120_009_230520250745.xml".
var trgocentarFilenamePattern = regexp.MustCompile(
	`^(?P<store_type>[^_]+)_` +
		`(?P<address_city>.+?)_` +
		`P(?P<store_id>\d+)_` +
		`(?P<serial>\d+)_` +
		`(?P<date>\d{8})` +
		`(?P<time>\d+)\.xml$`)

func (c *Trgocentar) parseStoreFromURL(rawURL string) (*Store, error) {
	filename := path.Base(rawURL)
	m := trgocentarFilenamePattern.FindStringSubmatch(filename)
	if m == nil {
		return nil, apperrors.NewStoreParse(c.ChainCode,
			fmt.Sprintf("unparseable XML filename %q", filename), nil)
	}

	storeID := "P" + m[3]
	street, city := c.parseAddressCity(m[2])

	return &Store{
		Chain:         c.ChainCode,
		StoreID:       storeID,
		Name:          strings.TrimSpace(fmt.Sprintf("Trgocentar %s %s", city, storeID)),
		StoreType:     strings.ToLower(m[1]),
		City:          city,
		StreetAddress: street,
	}, nil
}

// parseAddressCity splits "VL_NAZORA_58_SV_IVAN_ZELINA" into street and
// city by recognizing a known city suffix.
func (c *Trgocentar) parseAddressCity(raw string) (street, city string) {
	addressCity := strings.ReplaceAll(raw, "_", " ")
	for _, candidate := range trgocentarCities {
		if strings.HasSuffix(addressCity, candidate) {
			street = strings.TrimSpace(addressCity[:len(addressCity)-len(candidate)])
			return TitleCase(street), TitleCase(candidate)
		}
	}
	return TitleCase(addressCity), ""
}
