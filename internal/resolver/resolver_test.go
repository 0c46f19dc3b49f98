package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govcontract-signals/internal/storage"
)

type staticSource struct {
	companies []storage.Company
	err       error
	calls     int
}

func (s *staticSource) ListCompanies(ctx context.Context) ([]storage.Company, error) {
	s.calls++
	return s.companies, s.err
}

func testCompanies() []storage.Company {
	return []storage.Company{
		{Ticker: "LMT", Name: "Lockheed Martin Corporation"},
		{Ticker: "KTOS", Name: "Kratos Defense & Security Solutions, Inc."},
		{Ticker: "LDOS", Name: "Leidos Holdings, Inc."},
		{Ticker: "AJRD", Name: "Aerojet Rocketdyne Holdings, Inc."},
	}
}

func newTestResolver(t *testing.T, overrides []OverrideRule, cutoff float64) *Resolver {
	t.Helper()
	r := New(&staticSource{companies: testCompanies()}, overrides, cutoff, zerolog.Nop())
	require.NoError(t, r.Load(context.Background()))
	return r
}

func TestResolveExactMatch(t *testing.T) {
	r := newTestResolver(t, []OverrideRule{}, 90)

	match := r.Resolve("LOCKHEED MARTIN CORPORATION")
	require.True(t, match.Found())
	assert.Equal(t, "LMT", match.Ticker)
	assert.Equal(t, "Lockheed Martin Corporation", match.CompanyName)
	assert.Equal(t, 100.0, match.Confidence)
}

func TestResolveNoMatch(t *testing.T) {
	r := newTestResolver(t, []OverrideRule{}, 90)

	match := r.Resolve("COMPLETELY UNRELATED PLUMBING SUPPLIES LLC")
	assert.False(t, match.Found())
	assert.Equal(t, Match{}, match)
}

func TestResolveOverrideBeatsExact(t *testing.T) {
	// The reference set maps the Aerojet name to AJRD, but the override
	// redirects it to the acquirer. Overrides must win.
	r := newTestResolver(t, DefaultOverrides, 90)

	match := r.Resolve("AEROJET ROCKETDYNE HOLDINGS, INC.")
	require.True(t, match.Found())
	assert.Equal(t, "LHX", match.Ticker)
	assert.Equal(t, 100.0, match.Confidence)
}

func TestResolveSuppressionIsTerminal(t *testing.T) {
	overrides := []OverrideRule{
		{Pattern: "kratos", Suppress: true},
	}
	r := newTestResolver(t, overrides, 50)

	// Exact and fuzzy would both hit KTOS; the suppression rule must stop
	// resolution before either tier runs.
	match := r.Resolve("KRATOS DEFENSE & SECURITY SOLUTIONS, INC.")
	assert.False(t, match.Found())
}

func TestResolveOverrideOrderFirstMatchWins(t *testing.T) {
	overrides := []OverrideRule{
		{Pattern: "booz allen hamilton", Ticker: "BAH"},
		{Pattern: "booz", Suppress: true},
	}
	r := newTestResolver(t, overrides, 90)

	match := r.Resolve("BOOZ ALLEN HAMILTON INC")
	require.True(t, match.Found())
	assert.Equal(t, "BAH", match.Ticker)

	assert.False(t, r.Resolve("BOOZ SOMETHING ELSE").Found())
}

func TestResolveFuzzyCutoffBoundary(t *testing.T) {
	name := "KRATOS DEFENSE SECURITY SOLUTION"
	target := Normalize("Kratos Defense & Security Solutions, Inc.")
	score := tokenSortRatio(Normalize(name), target)
	require.Greater(t, score, 0.0)
	require.Less(t, score, 100.0)

	// Cutoff exactly at the score: accepted.
	at := newTestResolver(t, []OverrideRule{}, score)
	match := at.Resolve(name)
	require.True(t, match.Found())
	assert.Equal(t, "KTOS", match.Ticker)
	assert.InDelta(t, score, match.Confidence, 1e-9)

	// Cutoff just above the score: rejected.
	above := newTestResolver(t, []OverrideRule{}, score+0.01)
	assert.False(t, above.Resolve(name).Found())
}

func TestLoadIsIdempotent(t *testing.T) {
	source := &staticSource{companies: testCompanies()}
	r := New(source, []OverrideRule{}, 90, zerolog.Nop())

	require.NoError(t, r.Load(context.Background()))
	require.NoError(t, r.Load(context.Background()))
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, len(testCompanies()), r.CacheSize())

	r.ClearCache()
	assert.Equal(t, 0, r.CacheSize())
	require.NoError(t, r.Load(context.Background()))
	assert.Equal(t, 2, source.calls)
}

func TestLoadPropagatesSourceError(t *testing.T) {
	source := &staticSource{err: errors.New("connection refused")}
	r := New(source, []OverrideRule{}, 90, zerolog.Nop())

	err := r.Load(context.Background())
	require.Error(t, err)

	// A failed load must not latch; the next Load retries.
	source.err = nil
	source.companies = testCompanies()
	require.NoError(t, r.Load(context.Background()))
	assert.Equal(t, len(testCompanies()), r.CacheSize())
}

func TestResolveEmptyCacheOnlyOverrides(t *testing.T) {
	r := New(nil, DefaultOverrides, 90, zerolog.Nop())
	require.NoError(t, r.Load(context.Background()))

	match := r.Resolve("BOOZ ALLEN HAMILTON")
	require.True(t, match.Found())
	assert.Equal(t, "BAH", match.Ticker)

	assert.False(t, r.Resolve("COMPLETELY UNRELATED PLUMBING SUPPLIES LLC").Found())
}
