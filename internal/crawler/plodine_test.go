package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plodineCSV = `Naziv proizvoda;Sifra proizvoda;Marka proizvoda;Neto kolicina;Jedinica mjere;Barkod;Kategorija proizvoda;Maloprodajna cijena;Cijena po JM;MPC za vrijeme posebnog oblika prodaje;Najniza cijena u poslj. 30 dana;Sidrena cijena na 2.5.2025
Sir gauda 400g;4001;Plodine;400 g;kom;3850107000014;Mliječni proizvodi;4,99;12,48;;4,79;4,59
`

func TestPlodineCrawl(t *testing.T) {
	date := time.Date(2025, 5, 16, 0, 0, 0, 0, time.UTC)
	zipURL := "https://www.plodine.hr/cjenici/cjenik_16_05.zip"

	index := `<html><body>
		<a href="https://www.plodine.hr/cjenici/cjenik_15_05.zip">Cjenik 15.05.2025. (zip)</a>
		<a href="https://www.plodine.hr/cjenici/popis.pdf">Cjenik 16.05.2025. (pdf)</a>
		<a href="` + zipURL + `">Cjenik 16.05.2025. (zip)</a>
	</body></html>`

	archive := zipBytes(t, map[string]string{
		"SUPERMARKET_ULICA_FRANJE_TUDJMANA_83A_10450_JASTREBARSKO_063_2_16052025020937.csv": plodineCSV,
		"neispravno_ime.csv": plodineCSV,
	})

	client := &fakeClient{
		pages: map[string]string{"https://www.plodine.hr/info-o-cijenama": index},
		blobs: map[string][]byte{zipURL: archive},
	}

	c := NewPlodine(newTestBase("plodine", client))
	stores, err := c.Crawl(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, stores, 1)

	store := stores[0]
	assert.Equal(t, "063", store.StoreID)
	assert.Equal(t, "Supermarket", store.StoreType)
	assert.Equal(t, "Ulica Franje Tudjmana 83a", store.StreetAddress)
	assert.Equal(t, "10450", store.Zipcode)
	assert.Equal(t, "Jastrebarsko", store.City)
	assert.Equal(t, "Plodine Jastrebarsko", store.Name)

	require.Len(t, store.Items, 1)
	sir := store.Items[0]
	assert.Equal(t, "4001", sir.ProductID)
	assert.Equal(t, "4.99", sir.Price.StringFixed(2))
	require.NotNil(t, sir.AnchorPrice)
}

func TestPlodineFindArchiveURL(t *testing.T) {
	c := NewPlodine(newTestBase("plodine", &fakeClient{}))
	date := time.Date(2025, 5, 16, 0, 0, 0, 0, time.UTC)

	// The date lives in the link text; a matching text with a non-zip
	// href does not count.
	html := `<a href="/popis.pdf">Cjenik 16.05.2025.</a>`
	assert.Empty(t, c.findArchiveURL(html, date))

	html = `<a href="/cjenik.zip">Cjenik 16.05.2025.</a>`
	assert.Equal(t, "/cjenik.zip", c.findArchiveURL(html, date))
}

func TestPlodineParseStoreFromFilename(t *testing.T) {
	c := NewPlodine(newTestBase("plodine", &fakeClient{}))

	store, err := c.parseStoreFromFilename("HIPERMARKET_RUDOLFA_KOLAKA_2_31000_OSIJEK_017_1_16052025020937.csv")
	require.NoError(t, err)
	assert.Equal(t, "017", store.StoreID)
	assert.Equal(t, "Hipermarket", store.StoreType)
	assert.Equal(t, "Rudolfa Kolaka 2", store.StreetAddress)
	assert.Equal(t, "31000", store.Zipcode)
	assert.Equal(t, "Osijek", store.City)

	_, err = c.parseStoreFromFilename("SKLADISTE_NEPOZNATO.csv")
	assert.Error(t, err)
}
