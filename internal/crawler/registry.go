package crawler

import (
	"fmt"
	"sort"

	"github.com/vjekoslav/cijene-api/internal/fetch"
	"github.com/vjekoslav/cijene-api/logger"
)

// Deps carries the shared wiring every chain crawler is built with.
type Deps struct {
	// NewClient builds the fetch client for one chain. Each chain gets
	// its own client so timeouts and block markers stay isolated.
	NewClient func(chain string) fetch.Client
	// Workers bounds the per-chain store fetch pool.
	Workers int
}

// Registry holds the chain crawlers by code. It is built once at startup
// and never mutated afterwards.
type Registry struct {
	crawlers map[string]ChainCrawler
}

type chainConstructor func(*BaseCrawler) ChainCrawler

var chainConstructors = map[string]chainConstructor{
	"konzum":     func(b *BaseCrawler) ChainCrawler { return NewKonzum(b) },
	"lidl":       func(b *BaseCrawler) ChainCrawler { return NewLidl(b) },
	"spar":       func(b *BaseCrawler) ChainCrawler { return NewSpar(b) },
	"studenac":   func(b *BaseCrawler) ChainCrawler { return NewStudenac(b) },
	"tommy":      func(b *BaseCrawler) ChainCrawler { return NewTommy(b) },
	"kaufland":   func(b *BaseCrawler) ChainCrawler { return NewKaufland(b) },
	"ktc":        func(b *BaseCrawler) ChainCrawler { return NewKTC(b) },
	"eurospin":   func(b *BaseCrawler) ChainCrawler { return NewEurospin(b) },
	"metro":      func(b *BaseCrawler) ChainCrawler { return NewMetro(b) },
	"ntl":        func(b *BaseCrawler) ChainCrawler { return NewNTL(b) },
	"plodine":    func(b *BaseCrawler) ChainCrawler { return NewPlodine(b) },
	"ribola":     func(b *BaseCrawler) ChainCrawler { return NewRibola(b) },
	"roto":       func(b *BaseCrawler) ChainCrawler { return NewRoto(b) },
	"trgocentar": func(b *BaseCrawler) ChainCrawler { return NewTrgocentar(b) },
	"vrutak":     func(b *BaseCrawler) ChainCrawler { return NewVrutak(b) },
	"dm":         func(b *BaseCrawler) ChainCrawler { return NewDM(b) },
	"lorenco":    func(b *BaseCrawler) ChainCrawler { return NewLorenco(b) },
}

// NewRegistry builds crawlers for every supported chain.
func NewRegistry(deps Deps) *Registry {
	crawlers := make(map[string]ChainCrawler, len(chainConstructors))
	for code, construct := range chainConstructors {
		base := &BaseCrawler{
			ChainCode: code,
			Client:    deps.NewClient(code),
			Workers:   deps.Workers,
			Log:       logger.ForChain(code),
		}
		crawlers[code] = construct(base)
	}
	return &Registry{crawlers: crawlers}
}

// Get returns the crawler for a chain code.
func (r *Registry) Get(code string) (ChainCrawler, error) {
	c, ok := r.crawlers[code]
	if !ok {
		return nil, fmt.Errorf("unknown chain %q", code)
	}
	return c, nil
}

// Chains returns all registered chain codes, sorted.
func (r *Registry) Chains() []string {
	codes := make([]string, 0, len(r.crawlers))
	for code := range r.crawlers {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
