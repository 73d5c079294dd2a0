package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamehub-engine/internal/config"
	"github.com/gamehub-engine/internal/domain"
)

type stubChat struct {
	mu      sync.Mutex
	content string
	tokens  int64
	err     error
	calls   int
}

func (s *stubChat) Complete(_ context.Context, _, _ string, _ int64, _ float64) (string, int64, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return "", 0, s.err
	}
	return s.content, s.tokens, nil
}

func (s *stubChat) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type mapCache struct {
	mu    sync.Mutex
	items map[string]string
}

func newMapCache() *mapCache {
	return &mapCache{items: map[string]string{}}
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAIConfig() config.AIConfig {
	return config.AIConfig{
		Enabled:     true,
		Window:      time.Hour,
		CacheTTL:    10 * time.Minute,
		MaxTokens:   500,
		Temperature: 0.7,
	}
}

// newStubManager builds a Manager whose providers are backed by the given
// stubs instead of live chat clients.
func newStubManager(cache Cache, stubs ...*stubChat) *Manager {
	m := &Manager{
		cfg:    testAIConfig(),
		cache:  cache,
		logger: testLogger(),
		now:    time.Now,
	}
	for i, s := range stubs {
		m.providers = append(m.providers, &provider{
			cfg: config.ProviderConfig{
				Name:        []string{"primary", "secondary", "tertiary"}[i],
				Model:       "test-model",
				HourlyLimit: 100,
				CostPer1K:   0.002,
			},
			client: s,
		})
	}
	return m
}

func TestGenerateUsesFirstProvider(t *testing.T) {
	first := &stubChat{content: "hold your vote", tokens: 500}
	second := &stubChat{content: "unused"}
	m := newStubManager(nil, first, second)

	resp, err := m.Generate(context.Background(), Request{
		Prompt:   "advise",
		GameType: domain.GameTypeQuantumDAO,
	})
	require.NoError(t, err)
	assert.Equal(t, "hold your vote", resp.Content)
	assert.Equal(t, "primary", resp.Provider)
	assert.Equal(t, "test-model", resp.Model)
	assert.Equal(t, int64(500), resp.Tokens)
	assert.InDelta(t, 0.001, resp.Cost, 1e-9)
	assert.False(t, resp.Cached)
	assert.Equal(t, 0, second.callCount())
}

func TestGenerateFallsThroughOnProviderError(t *testing.T) {
	first := &stubChat{err: errors.New("rate limited")}
	second := &stubChat{content: "attack the leader", tokens: 20}
	m := newStubManager(nil, first, second)

	resp, err := m.Generate(context.Background(), Request{Prompt: "plan"})
	require.NoError(t, err)
	assert.Equal(t, "secondary", resp.Provider)
	assert.Equal(t, "attack the leader", resp.Content)
	assert.Equal(t, 1, first.callCount())
}

func TestGenerateAllProvidersFailing(t *testing.T) {
	first := &stubChat{err: errors.New("down")}
	second := &stubChat{err: errors.New("also down")}
	m := newStubManager(nil, first, second)

	_, err := m.Generate(context.Background(), Request{Prompt: "plan"})
	assert.ErrorIs(t, err, domain.ErrNoProviderAvailable)
}

func TestQuotaExhaustionAndWindowReset(t *testing.T) {
	stub := &stubChat{content: "ok", tokens: 1}
	m := newStubManager(nil, stub)
	m.providers[0].cfg.HourlyLimit = 3

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	m.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		_, err := m.Generate(context.Background(), Request{Prompt: "go"})
		require.NoError(t, err)
	}

	// Quota spent: the provider is skipped until the window elapses
	_, err := m.Generate(context.Background(), Request{Prompt: "go"})
	assert.ErrorIs(t, err, domain.ErrNoProviderAvailable)

	current = base.Add(59 * time.Minute)
	_, err = m.Generate(context.Background(), Request{Prompt: "go"})
	assert.ErrorIs(t, err, domain.ErrNoProviderAvailable)

	current = base.Add(time.Hour)
	resp, err := m.Generate(context.Background(), Request{Prompt: "go"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, map[string]int{"primary": 1}, m.Usage())
}

func TestQuotaExhaustedPrimaryFallsToSecondary(t *testing.T) {
	first := &stubChat{content: "from primary"}
	second := &stubChat{content: "from secondary"}
	m := newStubManager(nil, first, second)
	m.providers[0].cfg.HourlyLimit = 1

	resp, err := m.Generate(context.Background(), Request{Prompt: "go"})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Provider)

	resp, err = m.Generate(context.Background(), Request{Prompt: "go"})
	require.NoError(t, err)
	assert.Equal(t, "secondary", resp.Provider)
	assert.Equal(t, 1, first.callCount())
}

func TestCacheHitSkipsProviders(t *testing.T) {
	stub := &stubChat{content: "fresh answer", tokens: 10}
	cache := newMapCache()
	m := newStubManager(cache, stub)

	req := Request{Prompt: "repeat me", GameType: domain.GameTypeTradeWars}

	resp, err := m.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	require.Equal(t, 1, stub.callCount())

	resp, err = m.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, "fresh answer", resp.Content)
	// The hit still reports the provider that produced the answer
	assert.Equal(t, "primary", resp.Provider)
	assert.Equal(t, "test-model", resp.Model)
	// No provider call and no quota consumed for the hit
	assert.Equal(t, 1, stub.callCount())
	assert.Equal(t, map[string]int{"primary": 1}, m.Usage())
}

func TestCacheKeyVariesByGameType(t *testing.T) {
	stub := &stubChat{content: "answer"}
	cache := newMapCache()
	m := newStubManager(cache, stub)

	_, err := m.Generate(context.Background(), Request{Prompt: "same", GameType: domain.GameTypeQuantumDAO})
	require.NoError(t, err)
	_, err = m.Generate(context.Background(), Request{Prompt: "same", GameType: domain.GameTypeTradeWars})
	require.NoError(t, err)

	assert.Equal(t, 2, stub.callCount())
}
