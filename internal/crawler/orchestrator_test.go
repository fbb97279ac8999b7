package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjekoslav/cijene-api/internal/fetch"
)

type recordingWriter struct {
	chains []string
	fail   bool
}

func (w *recordingWriter) Write(chain string, date time.Time, stores []Store) (string, error) {
	if w.fail {
		return "", fmt.Errorf("disk full")
	}
	w.chains = append(w.chains, chain)
	return "/tmp/" + date.Format("2006-01-02") + "/" + chain + ".zip", nil
}

type recordingPublisher struct {
	messages map[string][]byte
}

func (p *recordingPublisher) Publish(chain string, message []byte) error {
	if p.messages == nil {
		p.messages = make(map[string][]byte)
	}
	p.messages[chain] = message
	return nil
}

func (p *recordingPublisher) TrimStream() error { return nil }
func (p *recordingPublisher) Close() error      { return nil }

func orchestratorTestRegistry() *Registry {
	// Only lorenco has a working source; every other chain fails at
	// index resolution.
	client := &fakeClient{pages: map[string]string{
		"https://lorenco.hr/wp-content/uploads/2025/06/Cijenik-02.06.2025.csv": lorencoCSV,
	}}
	return NewRegistry(Deps{
		NewClient: func(string) fetch.Client { return client },
		Workers:   2,
	})
}

func TestOrchestratorRunIsolatesFailures(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	writer := &recordingWriter{}
	pub := &recordingPublisher{}

	o := NewOrchestrator(orchestratorTestRegistry(), writer, pub)
	summary := o.Run(context.Background(), date, []string{"lorenco", "konzum"})

	require.Len(t, summary.Results, 2)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "2025-06-02", summary.Date)

	lorenco := summary.Results[0]
	assert.Equal(t, "lorenco", lorenco.Chain)
	assert.False(t, lorenco.Failed)
	assert.Equal(t, 1, lorenco.Stores)
	assert.Equal(t, 2, lorenco.Products)
	assert.Equal(t, 2, lorenco.Prices)
	assert.Equal(t, "/tmp/2025-06-02/lorenco.zip", lorenco.ArchivePath)

	konzum := summary.Results[1]
	assert.Equal(t, "konzum", konzum.Chain)
	assert.True(t, konzum.Failed)
	assert.NotEmpty(t, konzum.Error)
	assert.Empty(t, konzum.ArchivePath)

	assert.Equal(t, []string{"lorenco"}, writer.chains)

	// Every result, failed or not, is announced.
	require.Len(t, pub.messages, 2)
	var published ChainResult
	require.NoError(t, json.Unmarshal(pub.messages["lorenco"], &published))
	assert.Equal(t, "lorenco", published.Chain)
	assert.Equal(t, 2, published.Products)
	assert.False(t, published.Failed)
}

func TestOrchestratorRunUnknownChain(t *testing.T) {
	o := NewOrchestrator(orchestratorTestRegistry(), &recordingWriter{}, nil)
	summary := o.Run(context.Background(), time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), []string{"bogus"})

	require.Len(t, summary.Results, 1)
	assert.True(t, summary.Results[0].Failed)
	assert.Equal(t, 1, summary.Failed)
}

func TestOrchestratorRunWriterFailure(t *testing.T) {
	o := NewOrchestrator(orchestratorTestRegistry(), &recordingWriter{fail: true}, nil)
	summary := o.Run(context.Background(), time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), []string{"lorenco"})

	require.Len(t, summary.Results, 1)
	result := summary.Results[0]
	assert.True(t, result.Failed)
	assert.Contains(t, result.Error, "disk full")
	// Counts survive even when persisting fails.
	assert.Equal(t, 1, result.Stores)
}

func TestOrchestratorRunDefaultsToAllChains(t *testing.T) {
	o := NewOrchestrator(orchestratorTestRegistry(), nil, nil)
	summary := o.Run(context.Background(), time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), nil)

	assert.Len(t, summary.Results, 17)
	// Everything except lorenco has no reachable source here.
	assert.Equal(t, 16, summary.Failed)
}

func TestOrchestratorRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOrchestrator(orchestratorTestRegistry(), nil, nil)
	summary := o.Run(ctx, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), []string{"lorenco"})
	assert.Empty(t, summary.Results)
}

func TestCountProducts(t *testing.T) {
	stores := []Store{
		{StoreID: "1", Items: []Product{{ProductID: "a"}, {ProductID: "b"}}},
		{StoreID: "2", Items: []Product{{ProductID: "a"}}},
	}
	products, prices := countProducts("x", stores)
	assert.Equal(t, 2, products)
	assert.Equal(t, 3, prices)
}
