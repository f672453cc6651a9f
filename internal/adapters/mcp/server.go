// Package mcpadapter exposes legal retrieval as Model Context Protocol tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
	"github.com/kirillkom/jeonse-legal-assistant/internal/core/ports"
	"github.com/kirillkom/jeonse-legal-assistant/internal/core/usecase"
)

const (
	serverName         = "jeonse-legal-assistant"
	serverVersion      = "1.0.0"
	retrieveToolName   = "retrieve_legal_context"
	examplesToolName   = "list_example_questions"
	defaultResultLimit = 11
)

type toolResult struct {
	Provenance       domain.Provenance       `json:"provenance"`
	NormalizedQuery  string                  `json:"normalized_query"`
	ConversionMethod domain.ConversionMethod `json:"conversion_method"`
	LegalScore       float64                 `json:"legal_score"`
	NewsScore        float64                 `json:"news_score"`
	Context          string                  `json:"context"`
	Documents        []domain.Document       `json:"documents"`
}

type Server struct {
	retriever ports.LegalRetriever
	examples  []string
	logger    *slog.Logger
}

func NewServer(retriever ports.LegalRetriever, examples []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{retriever: retriever, examples: examples, logger: logger}
}

// MCPServer builds the protocol server with both tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	srv.AddTool(mcp.NewTool(retrieveToolName,
		mcp.WithDescription("전세사기·임대차 분쟁 질문에 대해 법령/판례와 관련 뉴스를 조건부로 검색합니다."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("사용자 질문 (일상어 가능)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("반환할 최대 문서 수 (기본 11)"),
		),
	), s.handleRetrieve)

	srv.AddTool(mcp.NewTool(examplesToolName,
		mcp.WithDescription("예시 질문 목록을 반환합니다."),
	), s.handleExamples)

	return srv
}

// ServeStdio blocks serving the tools over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.MCPServer())
}

func (s *Server) handleRetrieve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("question is required"), nil
	}
	limit := req.GetInt("limit", defaultResultLimit)
	if limit <= 0 {
		limit = defaultResultLimit
	}

	result := s.retriever.Retrieve(ctx, question)
	if result.Provenance == domain.ProvenanceError {
		s.logger.Warn("mcp_retrieve_failed", "question", question, "error", result.Error)
		return mcp.NewToolResultError(fmt.Sprintf("retrieval failed: %s", result.Error)), nil
	}

	docs := result.Documents
	if len(docs) > limit {
		docs = docs[:limit]
	}
	payload, err := json.Marshal(toolResult{
		Provenance:       result.Provenance,
		NormalizedQuery:  result.NormalizedQuery,
		ConversionMethod: result.ConversionMethod,
		LegalScore:       result.LegalScore,
		NewsScore:        result.NewsScore,
		Context:          usecase.FormatDocuments(docs),
		Documents:        docs,
	})
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) handleExamples(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(strings.Join(s.examples, "\n")), nil
}
