package crawler

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ktcCSV = `Naziv proizvoda;Šifra proizvoda;Marka proizvoda;Neto količina;Jedinica mjere;Barkod;Kategorija;Maloprodajna cijena;Cijena za jedinicu mjere;MPC za vrijeme posebnog oblika prodaje;Najniža cijena u posljednjih 30 dana;Sidrena cijena na 2.5.2025
Čokolada mliječna 100 g;7701;Kraš;100 g;kom;3850102000017;Slatkiši;1,59;15,90;;1,49;1,39
`

func TestKTCCrawl(t *testing.T) {
	date := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)

	index := `<html><body>
		<a href="cjenici?poslovnica=KARLOVAC">Karlovac</a>
		<a href="cjenici?poslovnica=DUGO%20SELO">Dugo Selo</a>
		<a href="cjenici?poslovnica=ZABOK">Zabok</a>
	</body></html>`

	karlovacPage := `<html><body>
		<a href="/datoteke/TRGOVINA-SENJSKA%20ULICA%20118%20KARLOVAC-PJ8A-1-20250515-071626.csv">csv</a>
		<a href="/datoteke/TRGOVINA-SENJSKA%20ULICA%20118%20KARLOVAC-PJ8A-1-20250514-071626.csv">stari</a>
	</body></html>`

	dugoSeloPage := `<html><body>
		<a href="/datoteke/TRGOVINA-TRG%20IVANA%202%20DUGO%20SELO-PJ12-1-20250515-071626.csv">csv</a>
	</body></html>`

	// No list published for the requested date; the store is skipped.
	zabokPage := `<html><body>
		<a href="/datoteke/TRGOVINA-ULICA%201%20ZABOK-PJ3-1-20250514-071626.csv">stari</a>
	</body></html>`

	pages := make(map[string]string)
	pages["https://www.ktc.hr/cjenici"] = index
	pages["https://www.ktc.hr/cjenici?poslovnica=KARLOVAC"] = karlovacPage
	pages["https://www.ktc.hr/cjenici?poslovnica=DUGO%20SELO"] = dugoSeloPage
	pages["https://www.ktc.hr/cjenici?poslovnica=ZABOK"] = zabokPage
	pages["https://www.ktc.hr/datoteke/TRGOVINA-SENJSKA%20ULICA%20118%20KARLOVAC-PJ8A-1-20250515-071626.csv"] = ktcCSV
	pages["https://www.ktc.hr/datoteke/TRGOVINA-TRG%20IVANA%202%20DUGO%20SELO-PJ12-1-20250515-071626.csv"] = ktcCSV
	client := &fakeClient{pages: pages}

	c := NewKTC(newTestBase("ktc", client))
	stores, err := c.Crawl(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, stores, 2)

	sort.Slice(stores, func(i, j int) bool { return stores[i].StoreID < stores[j].StoreID })

	dugoSelo := stores[0]
	assert.Equal(t, "PJ12", dugoSelo.StoreID)
	assert.Equal(t, "trgovina", dugoSelo.StoreType)
	assert.Equal(t, "Trg Ivana 2", dugoSelo.StreetAddress)
	assert.Equal(t, "Dugo Selo", dugoSelo.City)
	assert.Equal(t, "KTC Dugo Selo", dugoSelo.Name)

	karlovac := stores[1]
	assert.Equal(t, "PJ8A", karlovac.StoreID)
	assert.Equal(t, "Senjska Ulica 118", karlovac.StreetAddress)
	assert.Equal(t, "Karlovac", karlovac.City)

	require.Len(t, karlovac.Items, 1)
	cokolada := karlovac.Items[0]
	assert.Equal(t, "7701", cokolada.ProductID)
	assert.Equal(t, "3850102000017", cokolada.Barcode)
	assert.Equal(t, "1.59", cokolada.Price.StringFixed(2))
	require.NotNil(t, cokolada.AnchorPrice)
	assert.Equal(t, "1.39", cokolada.AnchorPrice.StringFixed(2))
}

func TestKTCCrawlNoStorePages(t *testing.T) {
	client := &fakeClient{pages: map[string]string{
		"https://www.ktc.hr/cjenici": "<html><body>prazno</body></html>",
	}}
	c := NewKTC(newTestBase("ktc", client))

	_, err := c.Crawl(context.Background(), time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}

func TestKTCParseStoreFromURL(t *testing.T) {
	c := NewKTC(newTestBase("ktc", &fakeClient{}))

	t.Run("city inside address", func(t *testing.T) {
		store, err := c.parseStoreFromURL("https://www.ktc.hr/datoteke/TRGOVINA-SENJSKA%20ULICA%20118%20KARLOVAC-PJ8A-1-20250515-071626.csv")
		require.NoError(t, err)
		assert.Equal(t, "PJ8A", store.StoreID)
		assert.Equal(t, "Senjska Ulica 118", store.StreetAddress)
		assert.Equal(t, "Karlovac", store.City)
		assert.Empty(t, store.Zipcode)
	})

	t.Run("unknown city keeps whole address", func(t *testing.T) {
		store, err := c.parseStoreFromURL("https://www.ktc.hr/datoteke/TRGOVINA-NEPOZNATA%205-PJ1-1-20250515-071626.csv")
		require.NoError(t, err)
		assert.Equal(t, "Nepoznata 5", store.StreetAddress)
		assert.Empty(t, store.City)
		assert.Equal(t, "KTC", store.Name)
	})

	t.Run("unexpected filename", func(t *testing.T) {
		_, err := c.parseStoreFromURL("https://www.ktc.hr/datoteke/cjenik.csv")
		assert.Error(t, err)
	})
}
