// Package bankdirectory serves the normalized provider bank list with a
// time-bounded cache and a stale-on-error fallback.
package bankdirectory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/korehq/korebank/internal/pkg/cache"
	"github.com/korehq/korebank/internal/pkg/onepipe"
)

const (
	cacheKey = "onepipe:get_banks"
	// staleKey keeps the last good list without expiry so it can be served
	// when the provider is down after the fresh entry lapsed.
	staleKey = "onepipe:get_banks:stale"

	cacheTTL = time.Hour
)

// ErrUnavailable is returned when the provider fails and no previously
// cached list exists. Policy at this boundary: no hardcoded fallback list
// is served; the caller reports a gateway error.
var ErrUnavailable = errors.New("bank directory unavailable")

// Client is the provider surface the directory needs.
type Client interface {
	BuildGetBanksPayload() *onepipe.Payload
	Transact(ctx context.Context, p *onepipe.Payload) (*onepipe.TransactResult, error)
}

// Result is a bank list together with its freshness marker.
type Result struct {
	Banks []onepipe.Bank `json:"banks"`
	Stale bool           `json:"stale,omitempty"`
}

// Service fetches and caches the provider bank directory.
type Service struct {
	client Client
	cache  cache.Cache
}

// NewService creates a bank directory service with an injected cache.
func NewService(client Client, c cache.Cache) *Service {
	return &Service{client: client, cache: c}
}

// GetBanks returns the bank list: from cache on a hit, from the provider on
// a miss. Provider errors and unparseable responses fall back to the last
// good list (marked stale) when one exists. A cache-miss race between two
// callers may issue two provider calls; that is accepted as harmless.
func (s *Service) GetBanks(ctx context.Context) (*Result, error) {
	if banks, ok := s.cached(ctx, cacheKey); ok {
		return &Result{Banks: banks}, nil
	}

	result, err := s.client.Transact(ctx, s.client.BuildGetBanksPayload())
	if err != nil {
		return s.fallback(ctx, err)
	}

	banks, found := onepipe.ExtractBanks(result.Response)
	if !found || len(banks) == 0 {
		// A located-but-empty list is a provider fault too, not a valid
		// directory.
		return s.fallback(ctx, fmt.Errorf("%w: no banks in provider response", ErrUnavailable))
	}

	s.store(ctx, banks)
	return &Result{Banks: banks}, nil
}

func (s *Service) cached(ctx context.Context, key string) ([]onepipe.Bank, bool) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			log.Printf("bank directory cache read failed: %v", err)
		}
		return nil, false
	}
	var banks []onepipe.Bank
	if err := json.Unmarshal([]byte(raw), &banks); err != nil {
		log.Printf("bank directory cache entry corrupt, dropping: %v", err)
		_ = s.cache.Delete(ctx, key)
		return nil, false
	}
	return banks, true
}

func (s *Service) store(ctx context.Context, banks []onepipe.Bank) {
	raw, err := json.Marshal(banks)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey, string(raw), cacheTTL); err != nil {
		log.Printf("bank directory cache write failed: %v", err)
	}
	if err := s.cache.Set(ctx, staleKey, string(raw), 0); err != nil {
		log.Printf("bank directory stale copy write failed: %v", err)
	}
}

func (s *Service) fallback(ctx context.Context, cause error) (*Result, error) {
	if banks, ok := s.cached(ctx, staleKey); ok {
		return &Result{Banks: banks, Stale: true}, nil
	}
	if errors.Is(cause, ErrUnavailable) {
		return nil, cause
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, cause)
}
