package core

import "time"

// SelectionMode chooses how the tool set is narrowed per iteration.
type SelectionMode string

const (
	SelectionAll        SelectionMode = "all"
	SelectionContextual SelectionMode = "contextual"
)

// FallbackPolicy governs what happens when the selector or its vector store
// fails.
type FallbackPolicy string

const (
	FallbackUseAll  FallbackPolicy = "useAll"
	FallbackUseNone FallbackPolicy = "useNone"
	FallbackFail    FallbackPolicy = "fail"
)

// RetryPolicy controls backoff for retryable provider errors.
type RetryPolicy struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	MaxAttempts  int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay: 500 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     30 * time.Second,
		MaxAttempts:  3,
	}
}

// AgentOptions is the per-turn configuration the loop, scheduler, and
// selector all read from. Every field is named in the data model; defaults
// match spec.
type AgentOptions struct {
	MaxIterations          int
	ContinuationExtension  int
	ParallelToolThreshold  int
	ToolSelection          SelectionMode
	FallbackOnSelection    FallbackPolicy
	FallbackOnVectorStore  FallbackPolicy
	SimilarityThreshold    float64
	MaxRelevantTools       int
	RecentMessageWindow    int
	OperationTimeout       time.Duration
	RetryPolicy            RetryPolicy
	ContinuationTimeout    time.Duration
	Instructions           string
}

func DefaultAgentOptions() AgentOptions {
	return AgentOptions{
		MaxIterations:         10,
		ContinuationExtension: 3,
		ParallelToolThreshold: 2,
		ToolSelection:         SelectionAll,
		FallbackOnSelection:   FallbackUseAll,
		FallbackOnVectorStore: FallbackUseAll,
		SimilarityThreshold:   0.7,
		MaxRelevantTools:      5,
		RecentMessageWindow:   3,
		OperationTimeout:      60 * time.Second,
		RetryPolicy:           DefaultRetryPolicy(),
		ContinuationTimeout:   5 * time.Minute,
	}
}

// Option mutates AgentOptions, following the teacher's functional-options
// idiom (agent/config.go's ConfigOption).
type Option func(*AgentOptions)

func WithMaxIterations(n int) Option {
	return func(o *AgentOptions) { o.MaxIterations = n }
}

func WithContinuationExtension(n int) Option {
	return func(o *AgentOptions) { o.ContinuationExtension = n }
}

func WithParallelToolThreshold(n int) Option {
	return func(o *AgentOptions) { o.ParallelToolThreshold = n }
}

func WithToolSelection(mode SelectionMode) Option {
	return func(o *AgentOptions) { o.ToolSelection = mode }
}

func WithFallbacks(onSelection, onVectorStore FallbackPolicy) Option {
	return func(o *AgentOptions) {
		o.FallbackOnSelection = onSelection
		o.FallbackOnVectorStore = onVectorStore
	}
}

func WithSimilarityThreshold(t float64) Option {
	return func(o *AgentOptions) { o.SimilarityThreshold = t }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *AgentOptions) { o.RetryPolicy = p }
}

func WithInstructions(instructions string) Option {
	return func(o *AgentOptions) { o.Instructions = instructions }
}

func NewAgentOptions(opts ...Option) AgentOptions {
	o := DefaultAgentOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
