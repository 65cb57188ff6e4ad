package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/rag-search/internal/search"
)

// Server wraps the MCP server with its retrieval dependency.
type Server struct {
	server   *mcp.Server
	searcher *search.Searcher
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(searcher *search.Searcher) *Server {
	impl := &mcp.Implementation{
		Name:    "rag-search",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search",
		Description: "Search the indexed corpus semantically and summarize an answer grounded in the retrieved passages.",
	}, makeSearchHandler(searcher))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_status",
		Description: "Report whether the index is ready to serve queries and how many chunks it holds.",
	}, makeStatusHandler(searcher))

	return &Server{server: server, searcher: searcher}
}

// Run starts the server with stdio transport, blocking until the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func makeSearchHandler(searcher *search.Searcher) func(
	context.Context, *mcp.CallToolRequest, SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
		*mcp.CallToolResult, SearchOutput, error,
	) {
		if input.Query == "" {
			return nil, SearchOutput{}, fmt.Errorf("query must not be empty")
		}

		summary, results, err := searcher.AnswerWithEvidence(ctx, input.Query, input.TopK)
		if err != nil {
			return nil, SearchOutput{}, fmt.Errorf("answer: %w", err)
		}

		passages := make([]Passage, 0, len(results))
		for _, r := range results {
			passages = append(passages, Passage{
				Text:    r.Metadata.Text,
				Score:   r.Score,
				Source:  r.Metadata.Source,
				Page:    r.Metadata.Page,
				Section: r.Metadata.Section,
			})
		}

		return nil, SearchOutput{
			Query:    input.Query,
			Summary:  summary,
			Passages: passages,
		}, nil
	}
}

func makeStatusHandler(searcher *search.Searcher) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		return nil, StatusOutput{
			Ready:  searcher.Ready(),
			Chunks: searcher.Count(),
			TopK:   searcher.TopK(),
		}, nil
	}
}
