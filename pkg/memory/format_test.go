package memory_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/querymem/pkg/memory"
	"github.com/m-mizutani/querymem/pkg/model"
)

func TestEmbeddingText(t *testing.T) {
	gt.Equal(t,
		memory.EmbeddingText("q", "SELECT 1", "one row", ""),
		"User Query: q\nGenerated Query: SELECT 1\nAnalysis: one row")
	gt.Equal(t,
		memory.EmbeddingText("q", "SELECT 1", "one row", "1"),
		"User Query: q\nGenerated Query: SELECT 1\nAnalysis: one row\nResult Preview: 1")
}

func TestSnippet(t *testing.T) {
	e := &model.MemoryEntry{
		Timestamp:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		UserQuery:      "q",
		GeneratedQuery: "SELECT 1",
		AnalysisText:   "one row",
	}
	gt.Equal(t, memory.Snippet(e),
		"- Timestamp: 2024-01-02T03:04:05Z\n- User Query: q\n- Generated Query: SELECT 1\n- Analysis Summary: one row")

	e.ResultPreview = "1"
	gt.S(t, memory.Snippet(e)).Contains("\n- Result Preview: 1")
}

func TestRenderContext(t *testing.T) {
	gt.Equal(t, memory.RenderContext(nil), "")

	out := memory.RenderContext([]*model.SearchResult{
		{Scope: model.ScopeSession, Snippet: "- User Query: mine"},
		{Scope: model.ScopeGlobal, Snippet: "- User Query: theirs"},
	})
	gt.S(t, out).Contains("## Relevant past interactions")
	gt.S(t, out).Contains("### From this session\n\n- User Query: mine\n")
	gt.S(t, out).Contains("### From other sessions\n\n- User Query: theirs\n")

	globalOnly := memory.RenderContext([]*model.SearchResult{
		{Scope: model.ScopeGlobal, Snippet: "x"},
	})
	gt.S(t, globalOnly).NotContains("From this session")
}
