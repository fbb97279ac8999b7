package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eurospinCSV = `NAZIV_PROIZVODA;ŠIFRA_PROIZVODA;MARKA_PROIZVODA;NETO_KOLIČINA;JEDINICA_MJERE;BARKOD;KATEGORIJA_PROIZVODA;MALOPROD.CIJENA(EUR);CIJENA_ZA_JEDINICU_MJERE;MPC_POSEB.OBLIK_PROD;NAJNIŽA_MPC_U_30DANA;SIDRENA_CIJENA
Tjestenina penne 500g;2001;Tre Mulini;500 g;kom;8017596000010;Tjestenine;0,89;1,78;;0,85;0,79
`

func TestEurospinCrawl(t *testing.T) {
	date := time.Date(2025, 5, 21, 0, 0, 0, 0, time.UTC)
	zipURL := "https://www.eurospin.hr/cjenici/cjenik-21.05.2025.zip"

	index := `<html><body><select>
		<option value="/cjenici/cjenik-20.05.2025.zip">20.05.2025</option>
		<option value="/cjenici/cjenik-21.05.2025.zip">21.05.2025</option>
	</select></body></html>`

	archive := zipBytes(t, map[string]string{
		"supermarket-310037-Ljudevita_Šestica_7-Karlovac-47000-21.05.2025-7.30.csv": string(encodeWindows1250(t, eurospinCSV)),
	})

	client := &fakeClient{
		pages: map[string]string{"https://www.eurospin.hr/cjenik/": index},
		blobs: map[string][]byte{zipURL: archive},
	}

	c := NewEurospin(newTestBase("eurospin", client))
	stores, err := c.Crawl(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, stores, 1)

	store := stores[0]
	assert.Equal(t, "310037", store.StoreID)
	assert.Equal(t, "supermarket", store.StoreType)
	assert.Equal(t, "Ljudevita Šestica 7", store.StreetAddress)
	assert.Equal(t, "Karlovac", store.City)
	assert.Equal(t, "47000", store.Zipcode)

	require.Len(t, store.Items, 1)
	penne := store.Items[0]
	assert.Equal(t, "2001", penne.ProductID)
	assert.Equal(t, "0.89", penne.Price.StringFixed(2))
	require.NotNil(t, penne.AnchorPrice)
}

func TestEurospinParseStoreFromFilename(t *testing.T) {
	c := NewEurospin(newTestBase("eurospin", &fakeClient{}))

	t.Run("with store id", func(t *testing.T) {
		store, err := c.parseStoreFromFilename("supermarket-310037-Ljudevita_Šestica_7-Karlovac-47000-21.05.2025-7.30.csv")
		require.NoError(t, err)
		assert.Equal(t, "310037", store.StoreID)
		assert.Equal(t, "Ljudevita Šestica 7", store.StreetAddress)
	})

	t.Run("without store id, recovered from address", func(t *testing.T) {
		store, err := c.parseStoreFromFilename("supermarket-Zagrebacka_52-Vrbovec-10340-21.05.2025-7.30.csv")
		require.NoError(t, err)
		assert.Equal(t, "310004", store.StoreID)
		assert.Equal(t, "Zagrebacka 52", store.StreetAddress)
		assert.Equal(t, "Vrbovec", store.City)
		assert.Equal(t, "10340", store.Zipcode)
	})

	t.Run("without store id, unknown address keeps address as id", func(t *testing.T) {
		store, err := c.parseStoreFromFilename("supermarket-Nepoznata_1-Grad-10000-21.05.2025-7.30.csv")
		require.NoError(t, err)
		assert.Equal(t, "Nepoznata 1", store.StoreID)
	})

	t.Run("too few parts", func(t *testing.T) {
		_, err := c.parseStoreFromFilename("cjenik.csv")
		assert.Error(t, err)
	})
}
