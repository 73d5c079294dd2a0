// Package ai provides the provider-backed text generation service used
// for AI player decisions and in-game advice. A Manager holds an ordered
// list of chat-completion providers, enforces per-provider hourly quotas
// on a rolling window and serves repeated prompts from a shared cache.
package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/gamehub-engine/internal/config"
	"github.com/gamehub-engine/internal/domain"
)

// Request describes one generation call.
type Request struct {
	Prompt      string
	Context     string
	GameType    domain.GameType
	MaxTokens   int64
	Temperature float64
}

// Response carries the generated content plus accounting metadata.
type Response struct {
	Content  string  `json:"content"`
	Provider string  `json:"provider"`
	Model    string  `json:"model"`
	Tokens   int64   `json:"tokens"`
	Cost     float64 `json:"cost"`
	Cached   bool    `json:"cached"`
}

// Cache stores generated responses keyed by prompt hash. Implementations
// must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// cachedResponse is the stored form of a cache entry, keeping the
// originating provider alongside the content so cache hits still report
// where the answer came from.
type cachedResponse struct {
	Content  string `json:"content"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// chatClient is the transport seam; production providers speak the
// chat-completions API, tests substitute a stub.
type chatClient interface {
	Complete(ctx context.Context, model, prompt string, maxTokens int64, temperature float64) (string, int64, error)
}

type openAIChat struct {
	client openai.Client
}

func (c *openAIChat) Complete(ctx context.Context, model, prompt string, maxTokens int64, temperature float64) (string, int64, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(maxTokens),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", 0, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, resp.Usage.TotalTokens, nil
}

// provider pairs a configured backend with its rolling-window counter.
type provider struct {
	cfg         config.ProviderConfig
	client      chatClient
	used        int
	windowStart time.Time
}

// Manager selects providers in configured order, skipping any whose
// hourly quota is spent, and falls through on call failure.
type Manager struct {
	cfg    config.AIConfig
	cache  Cache
	logger *slog.Logger

	mu        sync.Mutex
	providers []*provider

	// now is swappable so quota-window tests control time.
	now func() time.Time
}

// NewManager builds a Manager from configuration. cache may be nil to
// disable response caching.
func NewManager(cfg config.AIConfig, cache Cache, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
	for _, pc := range cfg.Providers {
		opts := []option.RequestOption{option.WithAPIKey(pc.APIKey)}
		if pc.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(pc.BaseURL))
		}
		m.providers = append(m.providers, &provider{
			cfg:    pc,
			client: &openAIChat{client: openai.NewClient(opts...)},
		})
	}
	return m
}

// Generate produces a completion for the request. Cache hits return
// immediately without touching any provider quota. When every provider
// is over quota or failing, it returns domain.ErrNoProviderAvailable.
func (m *Manager) Generate(ctx context.Context, req Request) (*Response, error) {
	prompt := req.Prompt
	if req.Context != "" {
		prompt = req.Context + "\n\n" + req.Prompt
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = m.cfg.MaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = m.cfg.Temperature
	}

	key := cacheKey(prompt, req.GameType)
	if m.cache != nil {
		if raw, ok, err := m.cache.Get(ctx, key); err != nil {
			m.logger.Warn("AI cache read failed", "error", err)
		} else if ok {
			resp := Response{Cached: true}
			var entry cachedResponse
			if err := json.Unmarshal([]byte(raw), &entry); err == nil && entry.Content != "" {
				resp.Content = entry.Content
				resp.Provider = entry.Provider
				resp.Model = entry.Model
			} else {
				resp.Content = raw
			}
			return &resp, nil
		}
	}

	for _, p := range m.providers {
		if !m.reserve(p) {
			continue
		}

		content, tokens, err := p.client.Complete(ctx, p.cfg.Model, prompt, maxTokens, temperature)
		if err != nil {
			m.logger.Warn("AI provider failed, trying next",
				"provider", p.cfg.Name, "error", err)
			continue
		}

		if m.cache != nil {
			entry, err := json.Marshal(cachedResponse{
				Content:  content,
				Provider: p.cfg.Name,
				Model:    p.cfg.Model,
			})
			if err == nil {
				if err := m.cache.Set(ctx, key, string(entry), m.cfg.CacheTTL); err != nil {
					m.logger.Warn("AI cache write failed", "error", err)
				}
			}
		}

		return &Response{
			Content:  content,
			Provider: p.cfg.Name,
			Model:    p.cfg.Model,
			Tokens:   tokens,
			Cost:     float64(tokens) / 1000 * p.cfg.CostPer1K,
			Cached:   false,
		}, nil
	}

	return nil, domain.ErrNoProviderAvailable
}

// reserve consumes one request from the provider's hourly quota,
// resetting the window lazily once it has elapsed. Returns false when
// the provider is at its limit.
func (m *Manager) reserve(p *provider) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if p.windowStart.IsZero() || now.Sub(p.windowStart) >= m.cfg.Window {
		p.windowStart = now
		p.used = 0
	}
	if p.used >= p.cfg.HourlyLimit {
		return false
	}
	p.used++
	return true
}

// Usage reports the current window counters per provider, for the
// health endpoint.
func (m *Manager) Usage() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int, len(m.providers))
	for _, p := range m.providers {
		out[p.cfg.Name] = p.used
	}
	return out
}

func cacheKey(prompt string, gt domain.GameType) string {
	sum := sha256.Sum256([]byte(prompt + "|" + string(gt)))
	return "ai:cache:" + hex.EncodeToString(sum[:])
}
