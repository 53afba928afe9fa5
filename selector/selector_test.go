package selector

import (
	"context"
	"testing"

	"github.com/HPD-AI/agentrt/core"
)

type fakeTool struct {
	name, desc string
}

func (f fakeTool) Name() string        { return f.name }
func (f fakeTool) Description() string { return f.desc }
func (f fakeTool) JSONSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string", "description": "the search query"},
		},
	}
}
func (f fakeTool) Invoke(ctx context.Context, args []byte) ([]byte, error) { return args, nil }

func TestSelectorSelectsRelevantTool(t *testing.T) {
	tools := []core.Tool{
		fakeTool{name: "websearch", desc: "search the web for current events"},
		fakeTool{name: "calculator", desc: "evaluate arithmetic expressions"},
	}

	s := New(NewJaccardStore())
	if err := s.Init(context.Background(), tools); err != nil {
		t.Fatalf("init: %v", err)
	}

	opts := core.DefaultAgentOptions()
	opts.MaxRelevantTools = 1
	opts.SimilarityThreshold = 0.01
	opts.RecentMessageWindow = 3

	messages := []core.Message{core.UserMessage("m1", "please search the web for current events")}
	selected, _, err := s.Select(context.Background(), messages, tools, opts)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(selected) != 1 || selected[0].Name() != "websearch" {
		t.Fatalf("expected websearch to be selected, got %+v", selected)
	}
}

func TestSelectorEmptyQueryFallsBackToVectorStorePolicy(t *testing.T) {
	tools := []core.Tool{fakeTool{name: "a", desc: "a tool"}}
	s := New(NewJaccardStore())
	s.Init(context.Background(), tools)

	opts := core.DefaultAgentOptions()
	opts.FallbackOnVectorStore = core.FallbackUseNone

	selected, policy, err := s.Select(context.Background(), nil, tools, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if policy != core.FallbackUseNone {
		t.Fatalf("expected the configured fallback policy to be reported")
	}
	if len(selected) != 0 {
		t.Fatalf("expected no tools selected under useNone fallback, got %+v", selected)
	}
}

func TestJaccardStoreIgnoresBelowMinScore(t *testing.T) {
	store := NewJaccardStore()
	store.Ingest(context.Background(), "t1", "completely unrelated vocabulary here")

	hits, err := store.Search(context.Background(), "totally different words", 5, 0.5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits above the threshold, got %+v", hits)
	}
}

func TestSelectorDropsStaleToolIDs(t *testing.T) {
	tools := []core.Tool{fakeTool{name: "websearch", desc: "search the web"}}
	s := New(NewJaccardStore())
	s.Init(context.Background(), tools)

	// Simulate a registry that has since deregistered the tool: Select is
	// called with an empty live tool slice even though the store still has
	// the old entry ingested.
	opts := core.DefaultAgentOptions()
	opts.SimilarityThreshold = 0.01
	messages := []core.Message{core.UserMessage("m1", "search the web please")}

	selected, _, err := s.Select(context.Background(), messages, nil, opts)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(selected) != 0 {
		t.Fatalf("expected stale hits to be dropped when not in the live registry, got %+v", selected)
	}
}
