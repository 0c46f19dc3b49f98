package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agext/levenshtein"
	"github.com/rs/zerolog"

	"govcontract-signals/internal/storage"
)

// CompanySource supplies the publicly traded company reference set.
type CompanySource interface {
	ListCompanies(ctx context.Context) ([]storage.Company, error)
}

// Match is the outcome of resolving an awardee name. A zero value means no
// match was found (or matching was deliberately suppressed).
type Match struct {
	Ticker      string
	CompanyName string
	Confidence  float64
}

// Found reports whether the resolution produced a ticker.
func (m Match) Found() bool {
	return m.Ticker != ""
}

type cacheEntry struct {
	ticker string
	name   string
}

// Resolver maps normalized awardee names to tickers using a tiered strategy:
// override rules, exact cache hit, then fuzzy similarity against the cache.
type Resolver struct {
	source    CompanySource
	overrides []OverrideRule
	cutoff    float64
	logger    zerolog.Logger

	mu     sync.RWMutex
	cache  map[string]cacheEntry
	keys   []string // insertion order, keeps tie-breaking stable
	loaded bool
}

// New constructs a Resolver. A nil overrides slice falls back to
// DefaultOverrides.
func New(source CompanySource, overrides []OverrideRule, cutoff float64, logger zerolog.Logger) *Resolver {
	if overrides == nil {
		overrides = DefaultOverrides
	}
	return &Resolver{
		source:    source,
		overrides: overrides,
		cutoff:    cutoff,
		logger:    logger.With().Str("component", "resolver").Logger(),
		cache:     make(map[string]cacheEntry),
	}
}

// Load populates the in-memory company cache. Safe to call repeatedly;
// a no-op after the first successful load until ClearCache is invoked.
func (r *Resolver) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return nil
	}
	if r.source == nil {
		r.loaded = true
		return nil
	}

	companies, err := r.source.ListCompanies(ctx)
	if err != nil {
		return fmt.Errorf("load companies: %w", err)
	}

	for _, c := range companies {
		key := c.NameNormalized
		if key == "" {
			key = Normalize(c.Name)
		}
		if key == "" {
			continue
		}
		if _, exists := r.cache[key]; !exists {
			r.keys = append(r.keys, key)
		}
		r.cache[key] = cacheEntry{ticker: c.Ticker, name: c.Name}
	}

	r.loaded = true
	r.logger.Info().Int("companies", len(r.cache)).Msg("company cache loaded")
	return nil
}

// ClearCache drops the company cache so the next Load repopulates it.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]cacheEntry)
	r.keys = nil
	r.loaded = false
}

// CacheSize returns the number of cached companies.
func (r *Resolver) CacheSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// Resolve matches an awardee name to a ticker. Tiers in strict priority
// order, first hit wins: override rules, exact cache key, fuzzy similarity
// at or above the cutoff. Never errors; malformed or empty input simply
// yields no match.
func (r *Resolver) Resolve(awardeeName string) Match {
	normalized := Normalize(awardeeName)

	r.mu.RLock()
	defer r.mu.RUnlock()

	// Tier 1: curated overrides, first-match-wins. A suppression rule is a
	// terminal outcome and never falls through to lower tiers.
	for _, rule := range r.overrides {
		if !strings.Contains(normalized, rule.Pattern) {
			continue
		}
		if rule.Suppress {
			return Match{}
		}
		if entry, ok := r.entryForTicker(rule.Ticker); ok {
			return Match{Ticker: rule.Ticker, CompanyName: entry.name, Confidence: 100}
		}
		// Ticker not in the reference set; best-effort identification.
		return Match{Ticker: rule.Ticker, CompanyName: awardeeName, Confidence: 100}
	}

	if len(r.cache) == 0 {
		return Match{}
	}

	// Tier 2: exact normalized-name hit.
	if entry, ok := r.cache[normalized]; ok {
		return Match{Ticker: entry.ticker, CompanyName: entry.name, Confidence: 100}
	}

	// Tier 3: fuzzy token-sort similarity over all cache keys.
	best := Match{}
	bestScore := -1.0
	for _, key := range r.keys {
		score := tokenSortRatio(normalized, key)
		if score > bestScore {
			bestScore = score
			entry := r.cache[key]
			best = Match{Ticker: entry.ticker, CompanyName: entry.name, Confidence: score}
		}
	}
	if bestScore >= r.cutoff {
		return best
	}

	return Match{}
}

// entryForTicker scans the cache in insertion order for a ticker. Linear,
// but the reference set is small and override hits are rare.
func (r *Resolver) entryForTicker(ticker string) (cacheEntry, bool) {
	for _, key := range r.keys {
		if entry := r.cache[key]; entry.ticker == ticker {
			return entry, true
		}
	}
	return cacheEntry{}, false
}

// tokenSortRatio scores two strings on a 0-100 scale, insensitive to token
// order: both sides are tokenized, sorted, and rejoined before a normalized
// Levenshtein similarity is computed.
func tokenSortRatio(a, b string) float64 {
	return levenshtein.Similarity(sortTokens(a), sortTokens(b), levenshtein.NewParams()) * 100
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
