package mcp

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ToolCategory groups tools by the surface they belong to.
type ToolCategory string

const (
	// CategoryWorkflow is for pipeline-run and catalog tools.
	CategoryWorkflow ToolCategory = "workflow"
	// CategoryPipeline is for process counter tools.
	CategoryPipeline ToolCategory = "pipeline"
	// CategorySteering is for steering note tools.
	CategorySteering ToolCategory = "steering"
	// CategorySearch covers discovery tools such as tool_search.
	CategorySearch ToolCategory = "search"
)

// ToolMetadata describes a registered MCP tool for discovery purposes.
type ToolMetadata struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    ToolCategory `json:"category"`
	Keywords    []string     `json:"keywords,omitempty"`
}

// Match quality, highest first. An exact name hit beats a partial name hit,
// which beats a description or keyword hit.
const (
	scoreExactName = 3
	scoreNameMatch = 2
	scoreWeakMatch = 1
)

// match reports whether the tool matches the lowercased query or the
// compiled pattern, with the score and reason for the strongest hit.
func (t *ToolMetadata) match(query string, re *regexp.Regexp) (int, string, bool) {
	name := strings.ToLower(t.Name)
	if name == query {
		return scoreExactName, "exact name match", true
	}
	if strings.Contains(name, query) {
		return scoreNameMatch, "name contains query", true
	}
	if re != nil && re.MatchString(t.Name) {
		return scoreNameMatch, "name matches pattern", true
	}

	if strings.Contains(strings.ToLower(t.Description), query) {
		return scoreWeakMatch, "description contains query", true
	}
	if re != nil && re.MatchString(t.Description) {
		return scoreWeakMatch, "description matches pattern", true
	}

	for _, kw := range t.Keywords {
		if strings.Contains(strings.ToLower(kw), query) {
			return scoreWeakMatch, "keyword contains query", true
		}
		if re != nil && re.MatchString(kw) {
			return scoreWeakMatch, "keyword matches pattern", true
		}
	}
	return 0, "", false
}

// ToolRegistry is the searchable index behind tool_search, letting clients
// discover tools without reading every definition. Registration happens at
// server construction; lookups run concurrently after that.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*ToolMetadata
}

// NewToolRegistry returns an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*ToolMetadata)}
}

// Register indexes a tool. Nil and unnamed entries are ignored; a repeated
// name replaces the earlier entry.
func (r *ToolRegistry) Register(tool *ToolMetadata) {
	if tool == nil || tool.Name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// RegisterAll indexes each tool in turn.
func (r *ToolRegistry) RegisterAll(tools []*ToolMetadata) {
	for _, tool := range tools {
		r.Register(tool)
	}
}

// Get looks up a tool by exact name.
func (r *ToolRegistry) Get(name string) (*ToolMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns every registered tool, in no particular order.
func (r *ToolRegistry) List() []*ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ToolMetadata, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool)
	}
	return out
}

// ListNames returns every registered tool name, sorted.
func (r *ToolRegistry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListByCategory returns the tools in one category.
func (r *ToolRegistry) ListByCategory(category ToolCategory) []*ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ToolMetadata, 0)
	for _, tool := range r.tools {
		if tool.Category == category {
			out = append(out, tool)
		}
	}
	return out
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// SearchResult pairs a matched tool with how well it matched.
type SearchResult struct {
	Tool        *ToolMetadata `json:"tool"`
	Score       int           `json:"score"`
	MatchReason string        `json:"match_reason"`
}

// Search matches the query case-insensitively against tool names,
// descriptions and keywords, best hits first. A query that compiles as a
// regex also matches as a pattern; broken patterns fall back to plain
// substring matching.
func (r *ToolRegistry) Search(query string) []*SearchResult {
	if query == "" {
		return nil
	}

	re, _ := regexp.Compile("(?i)" + query)
	lowered := strings.ToLower(query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*SearchResult
	for _, tool := range r.tools {
		if score, reason, ok := tool.match(lowered, re); ok {
			results = append(results, &SearchResult{Tool: tool, Score: score, MatchReason: reason})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Tool.Name < results[j].Tool.Name
	})
	return results
}

// SearchByCategory runs Search and keeps only hits from one category.
func (r *ToolRegistry) SearchByCategory(query string, category ToolCategory) []*SearchResult {
	var filtered []*SearchResult
	for _, res := range r.Search(query) {
		if res.Tool.Category == category {
			filtered = append(filtered, res)
		}
	}
	return filtered
}
