package crawler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vjekoslav/cijene-api/logger"
	"github.com/vjekoslav/cijene-api/services/publisher"
)

// ArchiveWriter persists one chain's crawl snapshot and returns the path
// of the produced archive.
type ArchiveWriter interface {
	Write(chain string, date time.Time, stores []Store) (string, error)
}

// ChainResult is the outcome of one chain's crawl within a run.
type ChainResult struct {
	Chain       string  `json:"chain"`
	Date        string  `json:"date"`
	Stores      int     `json:"stores"`
	Products    int     `json:"products"`
	Prices      int     `json:"prices"`
	ElapsedSecs float64 `json:"elapsed_seconds"`
	ArchivePath string  `json:"archive_path,omitempty"`
	Failed      bool    `json:"failed"`
	Error       string  `json:"error,omitempty"`
}

// Summary aggregates a whole crawl run.
type Summary struct {
	Date    string        `json:"date"`
	Results []ChainResult `json:"results"`
	Failed  int           `json:"failed"`
	Elapsed time.Duration `json:"-"`
}

// Orchestrator runs chains one after another and isolates their
// failures: a chain that cannot resolve its price list is recorded as
// failed and the run moves on.
type Orchestrator struct {
	registry  *Registry
	writer    ArchiveWriter
	publisher publisher.Publisher
	log       *logger.Logger
}

// NewOrchestrator wires a crawl run. publisher may be nil, in which case
// results are not announced.
func NewOrchestrator(registry *Registry, writer ArchiveWriter, pub publisher.Publisher) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		writer:    writer,
		publisher: pub,
		log:       logger.ForComponent("orchestrator"),
	}
}

// Run crawls the listed chains for one date. An empty chain list means
// every registered chain.
func (o *Orchestrator) Run(ctx context.Context, date time.Time, chains []string) Summary {
	if len(chains) == 0 {
		chains = o.registry.Chains()
	}

	started := time.Now()
	summary := Summary{Date: date.Format("2006-01-02")}

	for _, code := range chains {
		if ctx.Err() != nil {
			o.log.Warn().Msg("Crawl run canceled")
			break
		}

		result := o.runChain(ctx, code, date)
		if result.Failed {
			summary.Failed++
		}
		summary.Results = append(summary.Results, result)
		o.announce(result)
	}

	summary.Elapsed = time.Since(started)
	o.log.Info().
		Str("date", summary.Date).
		Int("chains", len(summary.Results)).
		Int("failed", summary.Failed).
		Dur("elapsed", summary.Elapsed).
		Msg("Crawl run finished")
	return summary
}

func (o *Orchestrator) runChain(ctx context.Context, code string, date time.Time) ChainResult {
	result := ChainResult{Chain: code, Date: date.Format("2006-01-02")}
	started := time.Now()

	defer func() {
		result.ElapsedSecs = time.Since(started).Seconds()
	}()

	crawler, err := o.registry.Get(code)
	if err != nil {
		o.log.Error().Err(err).Str("chain", code).Msg("Unknown chain requested")
		result.Failed = true
		result.Error = err.Error()
		return result
	}

	stores, err := crawler.Crawl(ctx, date)
	if err != nil {
		o.log.Error().Err(err).Str("chain", code).Msg("Chain crawl failed")
		result.Failed = true
		result.Error = err.Error()
		return result
	}

	result.Stores = len(stores)
	result.Products, result.Prices = countProducts(code, stores)

	if o.writer != nil {
		path, err := o.writer.Write(code, date, stores)
		if err != nil {
			o.log.Error().Err(err).Str("chain", code).Msg("Failed to write chain archive")
			result.Failed = true
			result.Error = err.Error()
			return result
		}
		result.ArchivePath = path
	}
	return result
}

// countProducts returns the number of distinct products and the total
// number of price rows across stores.
func countProducts(chain string, stores []Store) (products, prices int) {
	seen := make(map[string]bool)
	for _, store := range stores {
		prices += len(store.Items)
		for _, item := range store.Items {
			key := chain + ":" + item.ProductID
			if !seen[key] {
				seen[key] = true
				products++
			}
		}
	}
	return products, prices
}

func (o *Orchestrator) announce(result ChainResult) {
	if o.publisher == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		o.log.Error().Err(err).Str("chain", result.Chain).Msg("Failed to encode crawl result")
		return
	}
	if err := o.publisher.Publish(result.Chain, payload); err != nil {
		o.log.Error().Err(err).Str("chain", result.Chain).Msg("Failed to publish crawl result")
	}
}
