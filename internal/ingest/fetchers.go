package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/david/opportunity-radar/internal/ai"
)

var (
	ErrUnknownKind   = errors.New("no fetcher registered for kind")
	ErrMissingAPIKey = errors.New("api key not configured")
)

// FetcherSet dispatches to the fetcher registered for a source's kind.
type FetcherSet struct {
	byKind map[string]Fetcher
}

func NewFetcherSet() *FetcherSet {
	return &FetcherSet{byKind: make(map[string]Fetcher)}
}

func (s *FetcherSet) Register(kind string, f Fetcher) {
	s.byKind[kind] = f
}

func (s *FetcherSet) Get(kind string) (Fetcher, error) {
	f, ok := s.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return f, nil
}

// Fetch implements Fetcher.
func (s *FetcherSet) Fetch(ctx context.Context, src SourceConfig) ([]RawRecord, error) {
	f, err := s.Get(src.Kind)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx, src)
}

// FetcherDeps carries what the built-in fetchers share. A nil HTTP client
// selects the private-address-guarded transport.
type FetcherDeps struct {
	HTTP      *http.Client
	Transport http.RoundTripper
	Generator ai.Generator
	Now       Clock
}

// DefaultFetchers registers every built-in collaborator kind.
func DefaultFetchers(deps FetcherDeps) *FetcherSet {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	pool := newClientPool(deps.HTTP)

	set := NewFetcherSet()
	set.Register(KindSAMGov, &SAMGovFetcher{clients: pool, Now: deps.Now})
	set.Register(KindGrantsGov, &GrantsGovFetcher{clients: pool})
	set.Register(KindUSASpending, &USASpendingFetcher{clients: pool, Now: deps.Now})
	set.Register(KindRSS, &RSSFetcher{clients: pool})
	set.Register(KindHTML, &HTMLFetcher{Transport: deps.Transport})
	if deps.Generator != nil {
		set.Register(KindAIDiscovery, &AIDiscoveryFetcher{Generator: deps.Generator})
	}
	return set
}

// clientPool keeps one rate-limited HTTPClient per source so each source's
// limiter is independent.
type clientPool struct {
	hc     *http.Client
	mu     sync.Mutex
	byName map[string]*HTTPClient
}

func newClientPool(hc *http.Client) *clientPool {
	return &clientPool{hc: hc, byName: make(map[string]*HTTPClient)}
}

func (p *clientPool) get(src SourceConfig) *HTTPClient {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.byName[src.Name]
	if !ok {
		c = NewHTTPClient(src.Fetch, p.hc)
		p.byName[src.Name] = c
	}
	return c
}
