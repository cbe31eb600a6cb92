package memory

import (
	"strings"
	"time"

	"github.com/m-mizutani/querymem/pkg/model"
)

// EmbeddingText builds the canonical text an interaction is embedded from
func EmbeddingText(userQuery, generatedQuery, analysis, preview string) string {
	var b strings.Builder
	b.WriteString("User Query: ")
	b.WriteString(userQuery)
	b.WriteString("\nGenerated Query: ")
	b.WriteString(generatedQuery)
	b.WriteString("\nAnalysis: ")
	b.WriteString(analysis)
	if preview != "" {
		b.WriteString("\nResult Preview: ")
		b.WriteString(preview)
	}
	return b.String()
}

// Snippet renders an entry for inclusion in a downstream prompt
func Snippet(e *model.MemoryEntry) string {
	var b strings.Builder
	b.WriteString("- Timestamp: ")
	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339))
	b.WriteString("\n- User Query: ")
	b.WriteString(e.UserQuery)
	b.WriteString("\n- Generated Query: ")
	b.WriteString(e.GeneratedQuery)
	b.WriteString("\n- Analysis Summary: ")
	b.WriteString(e.AnalysisText)
	if e.ResultPreview != "" {
		b.WriteString("\n- Result Preview: ")
		b.WriteString(e.ResultPreview)
	}
	return b.String()
}

// RenderContext formats search results as a prompt block. Session results
// come first under their own heading. No results renders as "".
func RenderContext(results []*model.SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	var session, global []*model.SearchResult
	for _, r := range results {
		if r.Scope == model.ScopeSession {
			session = append(session, r)
		} else {
			global = append(global, r)
		}
	}

	var b strings.Builder
	b.WriteString("## Relevant past interactions\n")
	writeGroup := func(title string, group []*model.SearchResult) {
		if len(group) == 0 {
			return
		}
		b.WriteString("\n### ")
		b.WriteString(title)
		b.WriteString("\n")
		for _, r := range group {
			b.WriteString("\n")
			b.WriteString(r.Snippet)
			b.WriteString("\n")
		}
	}
	writeGroup("From this session", session)
	writeGroup("From other sessions", global)
	return b.String()
}
