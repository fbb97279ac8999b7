package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjekoslav/cijene-api/internal/fetch"
)

func newTestRegistry() *Registry {
	return NewRegistry(Deps{
		NewClient: func(string) fetch.Client { return &fakeClient{} },
		Workers:   2,
	})
}

func TestRegistryChains(t *testing.T) {
	registry := newTestRegistry()

	chains := registry.Chains()
	assert.Equal(t, []string{
		"dm", "eurospin", "kaufland", "konzum", "ktc", "lidl", "lorenco",
		"metro", "ntl", "plodine", "ribola", "roto", "spar", "studenac",
		"tommy", "trgocentar", "vrutak",
	}, chains)
}

func TestRegistryGet(t *testing.T) {
	registry := newTestRegistry()

	for _, code := range registry.Chains() {
		c, err := registry.Get(code)
		require.NoError(t, err)
		assert.Equal(t, code, c.Chain())
	}

	_, err := registry.Get("bogus")
	assert.Error(t, err)
}
