package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ===== TOOL SEARCH =====

type toolSearchInput struct {
	Query    string `json:"query" jsonschema:"required,Search query or regex pattern matched against tool names, descriptions, and keywords"`
	Category string `json:"category,omitempty" jsonschema:"Filter results to a category (workflow, pipeline, steering, search)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum results to return (default: 5)"`
}

type toolSearchResult struct {
	Name        string   `json:"name" jsonschema:"Tool name"`
	Description string   `json:"description" jsonschema:"Tool description"`
	Category    string   `json:"category" jsonschema:"Tool category"`
	Score       int      `json:"score" jsonschema:"Match quality (3 exact name, 2 name contains, 1 description/keyword)"`
	MatchReason string   `json:"match_reason" jsonschema:"Why the tool matched"`
	Keywords    []string `json:"keywords,omitempty" jsonschema:"Searchable keywords"`
}

type toolSearchOutput struct {
	Query      string             `json:"query" jsonschema:"Search query used"`
	Results    []toolSearchResult `json:"results" jsonschema:"Matching tools, best first"`
	Count      int                `json:"count" jsonschema:"Number of tools found"`
	TotalTools int                `json:"total_tools" jsonschema:"Total number of registered tools"`
}

func (s *Server) registerSearchTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "tool_search",
		Description: "Search for available tools by name, description, or keyword. Supports regex patterns. Use this to find the right tool without reading every definition.",
		Meta:        s.toolMeta("tool_search"),
	}, s.handleToolSearch)
}

func (s *Server) handleToolSearch(ctx context.Context, req *mcp.CallToolRequest, args toolSearchInput) (*mcp.CallToolResult, toolSearchOutput, error) {
	start := time.Now()
	s.metrics.IncrementActive(ctx, "tool_search")
	var toolErr error
	defer func() {
		s.metrics.DecrementActive(ctx, "tool_search")
		s.metrics.RecordInvocation(ctx, "tool_search", time.Since(start), toolErr)
	}()

	if err := s.checkLimit(); err != nil {
		toolErr = err
		return nil, toolSearchOutput{}, err
	}
	if args.Query == "" {
		toolErr = fmt.Errorf("query is required")
		return nil, toolSearchOutput{}, toolErr
	}

	limit := args.Limit
	if limit <= 0 {
		limit = 5
	}

	var searchResults []*SearchResult
	if args.Category != "" {
		searchResults = s.toolRegistry.SearchByCategory(args.Query, ToolCategory(args.Category))
	} else {
		searchResults = s.toolRegistry.Search(args.Query)
	}
	if len(searchResults) > limit {
		searchResults = searchResults[:limit]
	}

	out := toolSearchOutput{
		Query:      args.Query,
		Results:    make([]toolSearchResult, 0, len(searchResults)),
		TotalTools: s.toolRegistry.Count(),
	}
	var toolNames []string
	for _, sr := range searchResults {
		out.Results = append(out.Results, toolSearchResult{
			Name:        sr.Tool.Name,
			Description: sr.Tool.Description,
			Category:    string(sr.Tool.Category),
			Score:       sr.Score,
			MatchReason: sr.MatchReason,
			Keywords:    sr.Tool.Keywords,
		})
		toolNames = append(toolNames, sr.Tool.Name)
	}
	out.Count = len(out.Results)

	text := fmt.Sprintf("No tools found matching %q", args.Query)
	if len(toolNames) > 0 {
		text = fmt.Sprintf("Found %d tool(s) for query %q: %s",
			len(toolNames), args.Query, strings.Join(toolNames, ", "))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, out, nil
}
