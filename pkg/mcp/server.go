// Package mcp serves readq's ledger, budget, cache, audit log and URL
// analysis as MCP tools over stdio JSON-RPC.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/pario-ai/readq/pkg/analysis"
	"github.com/pario-ai/readq/pkg/models"
)

// Ledger is the read side of the cost tracker.
type Ledger interface {
	Summary() models.CostSummary
	History(limit int) []models.UsageRecord
}

// BudgetReporter reports spend against a limit.
type BudgetReporter interface {
	Status(limit *float64) models.BudgetStatus
}

// CacheStatter provides prompt cache counters.
type CacheStatter interface {
	Stats(ctx context.Context) (models.CacheStats, error)
}

// AuditSearcher queries the call audit log.
type AuditSearcher interface {
	Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error)
}

// URLAnalyzer runs the URL analysis pipeline.
type URLAnalyzer interface {
	AnalyzeURL(ctx context.Context, in analysis.AnalyzeURLInput) analysis.AnalyzeURLOutput
}

// Deps are the components the tools read from. Any of them except Ledger
// may be nil; the matching tool then reports that it is not configured.
type Deps struct {
	Ledger      Ledger
	Budget      BudgetReporter
	BudgetLimit func() *float64
	Cache       CacheStatter
	Auditor     AuditSearcher
	Analyzer    URLAnalyzer
}

// Server is a minimal MCP server speaking JSON-RPC 2.0, one message per line.
type Server struct {
	deps    Deps
	version string
	log     zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. It must not write to the transport.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New creates an MCP server.
func New(deps Deps, version string, opts ...Option) *Server {
	s := &Server{deps: deps, version: version, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reads requests from r line by line and writes responses to w.
// It blocks until r is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(w, failure(nil, CodeParseError, "parse error"))
			continue
		}
		if resp := s.dispatch(ctx, &req); resp != nil {
			s.write(w, resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	s.log.Debug().Str("method", req.Method).Msg("mcp request")
	switch req.Method {
	case "initialize":
		return result(req.ID, InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: serverName, Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "notifications/initialized":
		return nil
	case "ping":
		return result(req.ID, map[string]any{})
	case "tools/list":
		return result(req.ID, ToolsListResult{Tools: toolDefinitions()})
	case "tools/call":
		return s.callTool(ctx, req)
	default:
		if len(req.ID) == 0 {
			return nil
		}
		return failure(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func (s *Server) callTool(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return failure(req.ID, CodeInvalidParams, "invalid params")
	}
	t, ok := toolByName(params.Name)
	if !ok {
		return result(req.ID, errorResult(fmt.Sprintf("unknown tool: %s", params.Name)))
	}
	return result(req.ID, t.handle(ctx, s, params.Arguments))
}

func (s *Server) write(w io.Writer, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error().Err(err).Msg("mcp marshal")
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.log.Error().Err(err).Msg("mcp write")
	}
}
