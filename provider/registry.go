// Package provider implements the C7 Provider Registry & Error Taxonomy: a
// process-wide registry mapping providerKey → provider features, and the
// error classification the agent loop consumes through
// core.ErrorClassifier. The retry delay itself is computed by the loop
// (core/loop.go's retryDelay), not here.
//
// Grounded on llm/llm.go's Factory{providers map[string]func(Config)
// (Provider, error)}.Register/.Create, generalized to the full
// {createChatClient, classify, metadata} triple §4.7 requires, and on
// Design Notes §9's guidance that a global registry is ordinary
// concurrent-map state with self-registration happening at application
// startup (an init() in each provider file), not from unrelated
// constructors.
package provider

import (
	"sync"
	"time"

	"github.com/HPD-AI/agentrt/core"
)

// Config configures a provider client construction.
type Config struct {
	Model   string
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Extra   map[string]interface{}
}

// Features is what a provider publishes on registration, per §4.7.
type Features struct {
	CreateChatClient        func(Config) (core.ChatProvider, error)
	Classify                func(err error) core.Classification
	SupportsStreaming       bool
	SupportsFunctionCalling bool
	SupportsVision          bool
}

// Registry maps providerKey → Features. Safe for concurrent Lookup/Create
// once Register calls (expected at startup) have completed.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Features
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Features)}
}

func (r *Registry) Register(key string, features Features) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[key] = features
}

func (r *Registry) Lookup(key string) (Features, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.providers[key]
	return f, ok
}

func (r *Registry) Create(key string, cfg Config) (core.ChatProvider, error) {
	features, ok := r.Lookup(key)
	if !ok {
		return nil, core.ErrProviderNotFound
	}
	if cfg.APIKey == "" {
		return nil, core.ErrMissingAPIKey
	}
	return features.CreateChatClient(cfg)
}

// Classifier adapts a Registry entry into a core.ErrorClassifier bound to
// one provider key, for wiring into core.LoopConfig.Classifier.
type Classifier struct {
	registry *Registry
	key      string
}

func NewClassifier(registry *Registry, key string) *Classifier {
	return &Classifier{registry: registry, key: key}
}

func (c *Classifier) Classify(err error) core.Classification {
	if features, ok := c.registry.Lookup(c.key); ok && features.Classify != nil {
		return features.Classify(err)
	}
	return core.Classification{Category: core.CategoryUnknown}
}

// Default is the process-wide registry, following the teacher's
// tools/registry.go package-level globalRegistry singleton pattern.
var Default = NewRegistry()

func Register(key string, features Features) { Default.Register(key, features) }

func Lookup(key string) (Features, bool) { return Default.Lookup(key) }

func Create(key string, cfg Config) (core.ChatProvider, error) { return Default.Create(key, cfg) }

var _ core.ErrorClassifier = (*Classifier)(nil)
