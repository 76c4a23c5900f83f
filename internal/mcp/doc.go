// Package mcp exposes the optimization pipeline over the Model Context
// Protocol using the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// on the stdio transport.
//
// The server registers typed tools for running the pipeline
// (workflow_optimize), browsing the technique catalog and its citations
// (workflow_techniques, workflow_citations), reading process counters
// (pipeline_stats), and reading steering notes (steering_list,
// steering_show, registered when steering is configured). tool_search
// performs scored discovery over the tool registry. All handlers share
// one invocation rate limiter and per-tool OTel instruments.
package mcp
