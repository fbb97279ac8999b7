package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/vjekoslav/cijene-api/pkg/errors"
)

// Spar publishes a JSON index per date listing one iso-8859-2 CSV per
// store, with store metadata packed into the filenames.
type Spar struct {
	*BaseCrawler
}

func NewSpar(base *BaseCrawler) *Spar {
	base.BaseURL = "https://www.spar.hr"
	base.Mapping = Mapping{
		Chain: base.ChainCode,
		Prices: []FieldSpec{
			{Field: "price", Column: "MPC", Required: true},
			{Field: "unit_price", Column: "cijena za jedinicu mjere", Required: true},
			{Field: "best_price_30", Column: "Najniža cijena u posljednjih 30 dana"},
			{Field: "anchor_price", Column: "sidrena cijena na 2.5.2025."},
		},
		Fields: []FieldSpec{
			{Field: "product", Column: "naziv", Required: true},
			{Field: "product_id", Column: "šifra", Required: true},
			{Field: "brand", Column: "marka"},
			{Field: "quantity", Column: "neto količina"},
			{Field: "unit", Column: "jedinica mjere"},
			{Field: "barcode", Column: "barkod"},
			{Field: "category", Column: "kategorija proizvoda"},
			{Field: "anchor_price_date", Column: "datum sidrene cijene"},
		},
	}
	return &Spar{BaseCrawler: base}
}

type sparIndex struct {
	Files []struct {
		Name string `json:"name"`
		URL  string `json:"URL"`
	} `json:"files"`
}

func (c *Spar) Crawl(ctx context.Context, date time.Time) ([]Store, error) {
	started := time.Now()

	indexURL := fmt.Sprintf("%s/datoteke_cjenici/Cjenik%s.json", c.BaseURL, date.Format("20060102"))
	content, err := c.Client.FetchText(ctx, indexURL, nil)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to fetch price list index", err)
	}

	var index sparIndex
	if err := json.Unmarshal([]byte(content), &index); err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to parse price list index", err)
	}
	if len(index.Files) == 0 {
		return nil, apperrors.NewIndexResolution(c.ChainCode,
			fmt.Sprintf("no price list found for %s", date.Format("2006-01-02")), nil)
	}

	locators := make([]Locator, 0, len(index.Files))
	for _, f := range index.Files {
		if f.URL == "" {
			c.Log.Warn().Str("name", f.Name).Msg("Skipping index entry with no URL")
			continue
		}
		locators = append(locators, Locator{URL: f.URL, Name: f.Name})
	}

	stores := c.CollectStores(ctx, locators, c.crawlStore)
	c.LogCrawlDone(date, stores, started)
	return stores, nil
}

func (c *Spar) crawlStore(ctx context.Context, loc Locator) (*Store, error) {
	store, err := c.parseStoreFromFilename(loc.Name)
	if err != nil {
		return nil, err
	}

	content, err := c.Client.FetchText(ctx, loc.URL, []string{"iso-8859-2"})
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

var sparFilenamePattern = regexp.MustCompile(`^(hipermarket|supermarket)_([^_]+)_(.+?)_(\d{4,})_(.+?)_.*$`)

// parseStoreFromFilename decodes names like
// "hipermarket_zagreb_slavonska_avenija_50_8706_interspar_zagreb_...".
func (c *Spar) parseStoreFromFilename(filename string) (*Store, error) {
	m := sparFilenamePattern.FindStringSubmatch(filename)
	if m == nil {
		return nil, apperrors.NewStoreParse(c.ChainCode,
			fmt.Sprintf("unparseable index filename %q", filename), nil)
	}

	return &Store{
		Chain:         c.ChainCode,
		StoreID:       m[4],
		Name:          TitleCase(m[5]),
		StoreType:     TitleCase(m[1]),
		City:          TitleCase(m[2]),
		StreetAddress: TitleCase(strings.ReplaceAll(m[3], "_", " ")),
	}, nil
}
