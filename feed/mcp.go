// CLAUDE:SUMMARY Registers the teamsfeed MCP tools: feed snapshot and session status.
package feed

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/teamsfeed/feed/internal/kit"
)

// RegisterMCP registers the feed tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "teamsfeed_feed",
		Description: "Current Microsoft Teams conversation list as notification items. Returns a single placeholder item while the session is not signed in.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}, s.feedEndpoint(), kit.NoArgs)

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "teamsfeed_session",
		Description: "Session state, last error and recent sign-in attempts.",
		InputSchema: kit.InputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max attempts to include (default 20)"},
		}, nil),
	}, s.sessionReportEndpoint(), func(req *mcp.CallToolRequest) (any, error) {
		var r attemptsRequest
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &r, nil
	})
}

type sessionReport struct {
	Status   Status    `json:"status"`
	Attempts []Attempt `json:"attempts"`
}

func (s *Service) sessionReportEndpoint() kit.Endpoint {
	attempts := s.attemptsEndpoint()
	return func(ctx context.Context, req any) (any, error) {
		rows, err := attempts(ctx, req)
		if err != nil {
			return nil, err
		}
		return sessionReport{Status: s.Status(), Attempts: rows.([]Attempt)}, nil
	}
}
