package crawler

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/vjekoslav/cijene-api/pkg/errors"

	"github.com/vjekoslav/cijene-api/internal/fetch"
)

// Plodine publishes daily zip archives linked from its price info page;
// the link is recognized by the date in the link text, not the URL.
// Members are iso-8859-2 CSVs, one per store.
type Plodine struct {
	*BaseCrawler
	indexURL string
}

func NewPlodine(base *BaseCrawler) *Plodine {
	base.BaseURL = "https://www.plodine.hr"
	base.Mapping = Mapping{
		Chain: base.ChainCode,
		Prices: []FieldSpec{
			{Field: "price", Column: "Maloprodajna cijena", Required: true},
			{Field: "unit_price", Column: "Cijena po JM", Required: true},
			{Field: "special_price", Column: "MPC za vrijeme posebnog oblika prodaje"},
			{Field: "best_price_30", Column: "Najniza cijena u poslj. 30 dana"},
			{Field: "anchor_price", Column: "Sidrena cijena na 2.5.2025"},
		},
		Fields: []FieldSpec{
			{Field: "product", Column: "Naziv proizvoda", Required: true},
			{Field: "product_id", Column: "Sifra proizvoda", Required: true},
			{Field: "brand", Column: "Marka proizvoda"},
			{Field: "quantity", Column: "Neto kolicina"},
			{Field: "unit", Column: "Jedinica mjere"},
			{Field: "barcode", Column: "Barkod"},
			{Field: "category", Column: "Kategorija proizvoda"},
		},
	}
	return &Plodine{
		BaseCrawler: base,
		indexURL:    base.BaseURL + "/info-o-cijenama",
	}
}

func (c *Plodine) Crawl(ctx context.Context, date time.Time) ([]Store, error) {
	started := time.Now()

	html, err := c.Client.FetchText(ctx, c.indexURL, nil)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to fetch price list index", err)
	}

	zipURL := c.findArchiveURL(html, date)
	if zipURL == "" {
		return nil, apperrors.NewIndexResolution(c.ChainCode,
			fmt.Sprintf("no price list archive found for %s", date.Format("2006-01-02")), nil)
	}

	data, err := c.Client.FetchBinary(ctx, zipURL)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to download price list archive", err)
	}

	archive, err := OpenArchive(data)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "invalid price list archive", err)
	}

	var stores []Store
	for _, member := range archive.Members(".csv") {
		store, err := c.parseMember(archive, member)
		if err != nil {
			c.Log.Warn().Err(err).Str("member", member).Msg("Skipping store")
			continue
		}
		stores = append(stores, *store)
	}

	c.LogCrawlDone(date, stores, started)
	return stores, nil
}

// findArchiveURL picks the first zip link whose visible text carries the
// date as "DD.MM.YYYY.".
func (c *Plodine) findArchiveURL(html string, date time.Time) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		c.Log.Warn().Err(err).Msg("Failed to parse index HTML")
		return ""
	}

	dateStr := date.Format("02.01.2006.")
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(s.Text(), dateStr) {
			return true
		}
		href, _ := s.Attr("href")
		if !strings.HasSuffix(href, ".zip") {
			return true
		}
		found = href
		return false
	})
	return found
}

func (c *Plodine) parseMember(archive *Archive, member string) (*Store, error) {
	store, err := c.parseStoreFromFilename(member)
	if err != nil {
		return nil, err
	}

	raw, err := archive.Read(member)
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "failed to extract archive member", err)
	}
	content, err := fetch.Decode(raw, []string{"iso-8859-2"})
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "failed to decode archive member", err)
	}

	rows, err := DelimitedRecords(content, ';')
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "failed to parse price CSV", err)
	}

	store.Items = c.ParseRows(rows)
	return store, nil
}

// Filenames look like
// "SUPERMARKET_ULICA_FRANJE_TUDJMANA_83A_10450_JASTREBARSKO_063_2_16052025020937.csv".
var plodineFilenamePattern = regexp.MustCompile(
	`^(SUPERMARKET|HIPERMARKET)_(.+?)_(\d{5})_([^_]+)_(\d+)_.*\.csv$`)

func (c *Plodine) parseStoreFromFilename(filename string) (*Store, error) {
	m := plodineFilenamePattern.FindStringSubmatch(filename)
	if m == nil {
		return nil, apperrors.NewStoreParse(c.ChainCode,
			fmt.Sprintf("unparseable member filename %q", filename), nil)
	}

	city := TitleCase(m[4])
	return &Store{
		Chain:         c.ChainCode,
		StoreID:       m[5],
		Name:          "Plodine " + city,
		StoreType:     TitleCase(m[1]),
		City:          city,
		StreetAddress: TitleCase(m[2]),
		Zipcode:       m[3],
	}, nil
}
