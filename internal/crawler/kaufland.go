package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/vjekoslav/cijene-api/pkg/errors"
)

const kauflandAnchorColumn = "Sidrena cijena"

// Kaufland ships its CSV list as a JSON asset feed referenced from a Vue
// component on the index page. CSVs are windows-1250, tab separated, and
// the anchor price column packs both the date and the price into one
// value.
type Kaufland struct {
	*BaseCrawler
	indexURL string
}

var kauflandCities = []string{
	"Zagreb Blato", "Zagreb", "Karlovac", "Velika Gorica", "Zapresic",
	"Zadar", "Cakovec", "Đakovo", "Sisak", "Koprivnica", "Slavonski Brod",
	"Nova Gradiska", "Sinj", "Rovinj", "Osijek", "Virovitica", "Biograd",
	"Dugo Selo", "Sibenik", "Pula", "Porec", "Makarska", "Kutina", "Split",
	"Vinkovci", "Rijeka", "Bjelovar", "Ivanec", "Trogir", "Umag", "Vukovar",
	"Zabok", "Cibaca", "Pozega", "Dakovo", "Vodice", "Varazdin", "Samobor",
}

func NewKaufland(base *BaseCrawler) *Kaufland {
	base.BaseURL = "https://www.kaufland.hr"
	base.Mapping = Mapping{
		Chain: base.ChainCode,
		Prices: []FieldSpec{
			{Field: "price", Column: "maloprod.cijena(EUR)"},
			{Field: "unit_price", Column: "cijena jed.mj.(EUR)"},
			{Field: "special_price", Column: "MPC poseb.oblik prod"},
			{Field: "best_price_30", Column: "Najniža MPC u 30dana"},
			{Field: "anchor_price", Column: kauflandAnchorColumn},
		},
		Fields: []FieldSpec{
			{Field: "product", Column: "naziv proizvoda", Required: true},
			{Field: "product_id", Column: "šifra proizvoda", Required: true},
			{Field: "brand", Column: "marka proizvoda"},
			{Field: "quantity", Column: "neto količina(KG)"},
			{Field: "unit", Column: "jedinica mjere"},
			{Field: "barcode", Column: "barkod"},
			{Field: "category", Column: "Kategorija"},
			{Field: "anchor_price_date", Column: "Datum sidrenja"},
		},
	}
	return &Kaufland{
		BaseCrawler: base,
		indexURL:    base.BaseURL + "/akcije-novosti/popis-mpc.html",
	}
}

type kauflandAsset struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

func (c *Kaufland) Crawl(ctx context.Context, date time.Time) ([]Store, error) {
	started := time.Now()

	assets, err := c.fetchAssets(ctx)
	if err != nil {
		return nil, err
	}

	// Labels carry the date as either _DD_MM_YYYY_ or _DDMMYYYY_.
	dateStr := date.Format("_02_01_2006_")
	dateStr2 := date.Format("_02012006_")

	var locators []Locator
	for _, asset := range assets {
		if asset.Label == "" || asset.Path == "" {
			continue
		}
		if !strings.Contains(asset.Label, dateStr) && !strings.Contains(asset.Label, dateStr2) {
			continue
		}
		locators = append(locators, Locator{URL: c.BaseURL + asset.Path, Name: asset.Label})
	}
	if len(locators) == 0 {
		return nil, apperrors.NewIndexResolution(c.ChainCode,
			fmt.Sprintf("no price list found for %s", date.Format("2006-01-02")), nil)
	}

	stores := c.CollectStores(ctx, locators, c.crawlStore)
	c.LogCrawlDone(date, stores, started)
	return stores, nil
}

// fetchAssets locates the AssetList component on the index page, pulls
// the JSON feed URL out of its props and fetches the feed.
func (c *Kaufland) fetchAssets(ctx context.Context) ([]kauflandAsset, error) {
	html, err := c.Client.FetchText(ctx, c.indexURL, nil)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to fetch price list index", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to parse index HTML", err)
	}

	props, ok := doc.Find("div[data-component='AssetList']").Attr("data-props")
	if !ok {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "no asset list component on index page", nil)
	}

	var parsed struct {
		Settings struct {
			DataURLAssets string `json:"dataUrlAssets"`
		} `json:"settings"`
	}
	if err := json.Unmarshal([]byte(props), &parsed); err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to parse asset list props", err)
	}
	if parsed.Settings.DataURLAssets == "" {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "no asset feed URL in component props", nil)
	}

	feed, err := c.Client.FetchText(ctx, c.BaseURL+parsed.Settings.DataURLAssets, nil)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to fetch asset feed", err)
	}

	var assets []kauflandAsset
	if err := json.Unmarshal([]byte(feed), &assets); err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to parse asset feed", err)
	}
	return assets, nil
}

// Anchor prices come as "MPC 2.5.2025=7,99€".
var kauflandAnchorPattern = regexp.MustCompile(`MPC\s+(\d+\.\d+\.\d+)=(.+)`)

func (c *Kaufland) crawlStore(ctx context.Context, loc Locator) (*Store, error) {
	store, err := c.parseStoreFromLabel(loc.Name)
	if err != nil {
		return nil, err
	}

	content, err := c.Client.FetchText(ctx, loc.URL, []string{"windows-1250"})
	if err != nil {
		return nil, err
	}

	rows, err := DelimitedRecords(content, '\t')
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "failed to parse price CSV", err)
	}

	for _, row := range rows {
		c.splitAnchorValue(row)
	}

	store.Items = c.ParseRows(rows)
	return store, nil
}

// splitAnchorValue unpacks the combined anchor value into separate date
// and price cells; values that do not match the expected shape are
// cleared.
func (c *Kaufland) splitAnchorValue(row map[string]string) {
	row["Datum sidrenja"] = ""
	anchor := row[kauflandAnchorColumn]
	if anchor == "" {
		return
	}

	m := kauflandAnchorPattern.FindStringSubmatch(anchor)
	if m == nil {
		row[kauflandAnchorColumn] = ""
		return
	}

	parsed, err := time.Parse("2.1.2006", m[1])
	if err != nil {
		c.Log.Warn().Str("value", anchor).Msg("Unparseable anchor price date")
		row[kauflandAnchorColumn] = ""
		return
	}
	row["Datum sidrenja"] = parsed.Format("2006-01-02")
	row[kauflandAnchorColumn] = m[2]
}

var kauflandLabelPattern = regexp.MustCompile(`(Supermarket|Hipermarket)_(.+?)_(\d{4})_`)

// parseStoreFromLabel decodes labels like
// "Supermarket_Put_Gaceleza_1D_Vodice_6730_15_05_2025_7_30.csv". The city
// is recognized as a known suffix of the address part.
func (c *Kaufland) parseStoreFromLabel(label string) (*Store, error) {
	m := kauflandLabelPattern.FindStringSubmatch(label)
	if m == nil {
		return nil, apperrors.NewStoreParse(c.ChainCode,
			fmt.Sprintf("unparseable asset label %q", label), nil)
	}

	address := TitleCase(strings.ReplaceAll(m[2], "_", " "))
	var city string
	for _, candidate := range kauflandCities {
		if strings.HasSuffix(StripDiacritics(address), candidate) {
			city = candidate
			runes := []rune(address)
			address = strings.TrimSpace(string(runes[:len(runes)-len([]rune(candidate))]))
			break
		}
	}

	return &Store{
		Chain:         c.ChainCode,
		StoreID:       m[3],
		Name:          "Kaufland " + city,
		StoreType:     strings.ToLower(m[1]),
		City:          city,
		StreetAddress: address,
	}, nil
}
