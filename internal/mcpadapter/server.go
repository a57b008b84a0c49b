package mcpadapter

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nakamura-shuta/mcp-bookmark/internal/multiindex"
	"github.com/nakamura-shuta/mcp-bookmark/internal/query"
	"github.com/nakamura-shuta/mcp-bookmark/internal/search"
	"github.com/nakamura-shuta/mcp-bookmark/pkg/version"
)

// DefaultLimit is applied when a caller omits limit.
const DefaultLimit = 10

// MaxLimit caps a caller-supplied limit so a single tool call can't force
// an unbounded fan-out scan.
const MaxLimit = 100

// Server bridges an MCP client to the bookmark search engine through four
// read-only tools: search, search_advanced, get_content_by_url and
// list_folders.
type Server struct {
	mcp     *mcp.Server
	indices *multiindex.Manager
	// indexNames is the default fan-out scope for search/search_advanced
	// when a call doesn't name its own index_names. The plain search tools
	// carry no index selector, so the adapter is configured with a fixed
	// scope at startup, e.g. the active browser profile's index.
	indexNames []string
	logger     *slog.Logger
}

// New creates a Server fronting indices, searching across defaultIndexNames
// by default.
func New(indices *multiindex.Manager, defaultIndexNames []string) (*Server, error) {
	if indices == nil {
		return nil, errors.New("index manager is required")
	}
	if len(defaultIndexNames) == 0 {
		return nil, errors.New("at least one default index name is required")
	}

	s := &Server{
		indices:    indices,
		indexNames: defaultIndexNames,
		logger:     slog.Default(),
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "mcp-bookmark",
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve runs the server over stdio (mcp.StdioTransport) until ctx is
// cancelled or the session ends; ingestion goes over internal/rpc
// instead.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting mcp search adapter", slog.Any("index_names", s.indexNames))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp search adapter stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp search adapter stopped")
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search indexed browser bookmarks by keyword or phrase. Ranks by title, URL and page content, and returns a scored snippet of the matching content.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_advanced",
		Description: "Search bookmarks with optional folder-path and domain filters, and an explicit choice of which named indices to search.",
	}, s.handleSearchAdvanced)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_content_by_url",
		Description: "Fetch the full stored page content for a bookmark by its exact URL.",
	}, s.handleGetContentByURL)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_folders",
		Description: "List every distinct bookmark folder path present in the index, split into path segments.",
	}, s.handleListFolders)

	s.logger.Debug("mcp search adapter tools registered", slog.Int("count", 4))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func toSearchOutput(results []search.Result) SearchOutput {
	out := SearchOutput{Results: make([]SearchResult, 0, len(results))}
	for _, r := range results {
		sr := SearchResult{
			ID:           r.ID,
			Title:        r.Title,
			URL:          r.URL,
			FolderPath:   r.FolderPath,
			Domain:       r.Domain,
			Score:        r.Score,
			DateAdded:    r.DateAdded,
			DateModified: r.DateModified,
			Snippet:      r.Snippet,
			HasContent:   r.HasContent,
		}
		for _, sn := range r.ScoredSnippets {
			sr.ScoredSnippets = append(sr.ScoredSnippets, ScoredSnippet{Text: sn.Text, Score: sn.RelevanceScore})
		}
		out.Results = append(out.Results, sr)
	}
	return out
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	requestID := generateRequestID()
	start := time.Now()
	s.logger.Info("search started", slog.String("request_id", requestID), slog.String("query", input.Query))

	results, err := s.indices.Search(ctx, s.indexNames, input.Query, query.Filters{}, clampLimit(input.Limit))
	if err != nil {
		s.logger.Error("search failed", slog.String("request_id", requestID), slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID), slog.Duration("duration", time.Since(start)), slog.Int("result_count", len(results)))
	return nil, toSearchOutput(results), nil
}

func (s *Server) handleSearchAdvanced(ctx context.Context, _ *mcp.CallToolRequest, input SearchAdvancedInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	names := s.indexNames
	if len(input.IndexNames) > 0 {
		names = input.IndexNames
	}

	filters := query.Filters{FolderPath: input.Folder, Domain: input.Domain}

	requestID := generateRequestID()
	start := time.Now()
	s.logger.Info("search_advanced started", slog.String("request_id", requestID), slog.String("query", input.Query))

	results, err := s.indices.Search(ctx, names, input.Query, filters, clampLimit(input.Limit))
	if err != nil {
		s.logger.Error("search_advanced failed", slog.String("request_id", requestID), slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	s.logger.Info("search_advanced completed",
		slog.String("request_id", requestID), slog.Duration("duration", time.Since(start)), slog.Int("result_count", len(results)))
	return nil, toSearchOutput(results), nil
}

func (s *Server) handleGetContentByURL(ctx context.Context, _ *mcp.CallToolRequest, input GetContentByURLInput) (
	*mcp.CallToolResult, GetContentByURLOutput, error,
) {
	if input.URL == "" {
		return nil, GetContentByURLOutput{}, NewInvalidParamsError("url parameter is required")
	}

	name := input.IndexName
	if name == "" {
		name = s.indexNames[0]
	}

	searcher, err := s.indices.Searcher(name)
	if err != nil {
		return nil, GetContentByURLOutput{}, MapError(err)
	}

	content, found, err := searcher.GetContentByURL(ctx, input.URL)
	if err != nil {
		return nil, GetContentByURLOutput{}, MapError(err)
	}
	return nil, GetContentByURLOutput{Found: found, Content: content}, nil
}

func (s *Server) handleListFolders(ctx context.Context, _ *mcp.CallToolRequest, input ListFoldersInput) (
	*mcp.CallToolResult, ListFoldersOutput, error,
) {
	name := input.IndexName
	if name == "" {
		name = s.indexNames[0]
	}

	searcher, err := s.indices.Searcher(name)
	if err != nil {
		return nil, ListFoldersOutput{}, MapError(err)
	}

	folders, err := searcher.ListFolders(ctx)
	if err != nil {
		return nil, ListFoldersOutput{}, MapError(err)
	}
	return nil, ListFoldersOutput{Folders: folders}, nil
}

func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
