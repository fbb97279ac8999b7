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

// Tommy exposes its price tables through a hydra-style JSON API; each
// entry points at a UTF-8 CSV with store metadata in the filename.
type Tommy struct {
	*BaseCrawler
}

func NewTommy(base *BaseCrawler) *Tommy {
	base.BaseURL = "https://spiza.tommy.hr/api/v2"
	base.Mapping = Mapping{
		Chain: base.ChainCode,
		Prices: []FieldSpec{
			{Field: "price", Column: "MPC", Required: true},
			{Field: "unit_price", Column: "CIJENA_PO_JM", Required: true},
			{Field: "special_price", Column: "MPC_POSEBNA_PRODAJA"},
			{Field: "best_price_30", Column: "MPC_NAJNIZA_30"},
			{Field: "anchor_price", Column: "MPC_020525"},
			{Field: "initial_price", Column: "PRVA_CIJENA_NOVOG_ARTIKLA"},
		},
		Fields: []FieldSpec{
			{Field: "product", Column: "NAZIV_ARTIKLA", Required: true},
			{Field: "product_id", Column: "SIFRA_ARTIKLA", Required: true},
			{Field: "brand", Column: "BRAND"},
			{Field: "quantity", Column: "NETO_KOLICINA"},
			{Field: "unit", Column: "JEDINICA_MJERE"},
			{Field: "barcode", Column: "BARKOD_ARTIKLA"},
			{Field: "category", Column: "ROBNA_STRUKTURA"},
			{Field: "date_added", Column: "DATUM_ULASKA_NOVOG_ARTIKLA"},
		},
	}
	return &Tommy{BaseCrawler: base}
}

type tommyIndex struct {
	Members []struct {
		ID       string `json:"@id"`
		FileName string `json:"fileName"`
	} `json:"hydra:member"`
}

func (c *Tommy) Crawl(ctx context.Context, date time.Time) ([]Store, error) {
	started := time.Now()

	indexURL := fmt.Sprintf(
		"%s/shop/store-prices-tables?date=%s&page=1&itemsPerPage=200&channelCode=general",
		c.BaseURL, date.Format("2006-01-02"))
	content, err := c.Client.FetchText(ctx, indexURL, nil)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to fetch price list index", err)
	}

	var index tommyIndex
	if err := json.Unmarshal([]byte(content), &index); err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to parse price list index", err)
	}

	var locators []Locator
	for _, m := range index.Members {
		if m.ID == "" || m.FileName == "" {
			c.Log.Warn().Str("id", m.ID).Str("filename", m.FileName).
				Msg("Skipping index entry with missing ID or filename")
			continue
		}
		locators = append(locators, Locator{
			URL:  c.BaseURL + strings.TrimPrefix(m.ID, "/api/v2"),
			Name: m.FileName,
		})
	}
	if len(locators) == 0 {
		return nil, apperrors.NewIndexResolution(c.ChainCode,
			fmt.Sprintf("no price list found for %s", date.Format("2006-01-02")), nil)
	}

	stores := c.CollectStores(ctx, locators, c.crawlStore)
	c.LogCrawlDone(date, stores, started)
	return stores, nil
}

func (c *Tommy) crawlStore(ctx context.Context, loc Locator) (*Store, error) {
	store, err := c.parseStoreFromFilename(loc.Name)
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

var tommyLocationPattern = regexp.MustCompile(`(\d{5})\s+(.+)`)

// parseStoreFromFilename decodes names like
// "SUPERMARKET, ANTE STARČEVIĆA 6, 20260 KORČULA, 10180, 2, 20250516 0530".
func (c *Tommy) parseStoreFromFilename(filename string) (*Store, error) {
	parts := strings.Split(filename, ",")
	if len(parts) < 4 {
		return nil, apperrors.NewStoreParse(c.ChainCode,
			fmt.Sprintf("unparseable index filename %q", filename), nil)
	}

	store := &Store{
		Chain:         c.ChainCode,
		StoreID:       strings.TrimSpace(parts[3]),
		StoreType:     strings.ToLower(strings.TrimSpace(parts[0])),
		StreetAddress: TitleCase(strings.TrimSpace(parts[1])),
	}

	location := strings.TrimSpace(parts[2])
	if m := tommyLocationPattern.FindStringSubmatch(location); m != nil {
		store.Zipcode = m[1]
		store.City = TitleCase(m[2])
	} else {
		c.Log.Warn().Str("location", location).Msg("Could not split location into zipcode and city")
		store.City = TitleCase(location)
	}

	store.Name = fmt.Sprintf("Tommy %s", store.City)
	return store, nil
}
