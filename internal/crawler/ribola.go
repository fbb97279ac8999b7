package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/vjekoslav/cijene-api/pkg/errors"
)

// Ribola serves one XML per store behind a date-filtered index page.
// Each XML carries the store block and the product list; the city is
// recognized as a known suffix of the free-text address.
type Ribola struct {
	*BaseCrawler
	indexURL string
}

var ribolaCities = []string{
	"Kastel Sucurac", "Ploče", "Kaštel Gomilica", "Trogir", "Kaštel Lukšić",
	"Okrug Gornji", "Makarska", "Kaštel Stari", "Kaštel Novi",
	"Kastel Kambelovac", "Split", "Sinj", "Solin", "Orebić", "Nečujam",
	"Dubrovnik", "Podstrana", "Dugi Rat", "Ražanj", "Primošten", "Jelsa",
	"Stobrec", "Trilj", "Seget Donji", "Brela", "Šibenik", "Zadar",
}

func NewRibola(base *BaseCrawler) *Ribola {
	base.BaseURL = "https://ribola.hr"
	base.Mapping = Mapping{
		Chain: base.ChainCode,
		Prices: []FieldSpec{
			{Field: "price", Column: "MaloprodajnaCijena"},
			{Field: "unit_price", Column: "CijenaZaJedinicuMjere"},
			{Field: "special_price", Column: "MaloprodajnaCijenaAkcija"},
			{Field: "best_price_30", Column: "NajnizaCijena"},
			{Field: "anchor_price", Column: "SidrenaCijena"},
		},
		Fields: []FieldSpec{
			{Field: "product", Column: "NazivProizvoda", Required: true},
			{Field: "product_id", Column: "SifraProizvoda", Required: true},
			{Field: "brand", Column: "MarkaProizvoda"},
			{Field: "quantity", Column: "NetoKolicina"},
			{Field: "unit", Column: "JedinicaMjere"},
			{Field: "barcode", Column: "Barkod"},
			{Field: "category", Column: "KategorijeProizvoda"},
		},
	}
	return &Ribola{
		BaseCrawler: base,
		indexURL:    base.BaseURL + "/ribola-cjenici/",
	}
}

func (c *Ribola) Crawl(ctx context.Context, date time.Time) ([]Store, error) {
	started := time.Now()

	indexURL := fmt.Sprintf("%s?date=%s", c.indexURL, date.Format("02.01.2006"))
	html, err := c.Client.FetchText(ctx, indexURL, nil)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to fetch price list index", err)
	}

	links := c.SelectLinks(html, `a[href$=".xml"]`, c.indexURL)
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

func (c *Ribola) crawlStore(ctx context.Context, loc Locator) (*Store, error) {
	text, err := c.Client.FetchText(ctx, loc.URL, nil)
	if err != nil {
		return nil, err
	}
	content := []byte(text)

	info, err := XMLElement(content, "ProdajniObjekt")
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "no store element in XML", err)
	}

	street, city := c.parseAddress(info["Adresa"])
	store := &Store{
		Chain:         c.ChainCode,
		StoreID:       info["Oznaka"],
		Name:          strings.TrimSpace(fmt.Sprintf("Ribola %s %s", city, info["Oznaka"])),
		StoreType:     strings.ToLower(info["Oblik"]),
		City:          TitleCase(city),
		StreetAddress: street,
	}

	rows, err := XMLRecords(content, "Proizvod")
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "failed to parse price XML", err)
	}

	store.Items = c.ParseRows(rows)
	return store, nil
}

// parseAddress splits a free-text address by recognizing a known city
// suffix, ignoring case and diacritics.
func (c *Ribola) parseAddress(address string) (street, city string) {
	address = strings.TrimSpace(address)
	addrNorm := strings.ToLower(StripDiacritics(address))

	for _, candidate := range ribolaCities {
		cityNorm := strings.ToLower(StripDiacritics(candidate))
		if strings.HasSuffix(addrNorm, cityNorm) {
			runes := []rune(address)
			street = strings.TrimSpace(string(runes[:len(runes)-len([]rune(candidate))]))
			return street, candidate
		}
	}
	return address, ""
}
