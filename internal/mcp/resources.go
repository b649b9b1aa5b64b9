package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StatusURI is the resource holding corpus_status as JSON.
const StatusURI = "archivesearch://corpus/status"

func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        "corpus-status",
		URI:         StatusURI,
		Description: "Searchable entry count, loaded snapshots and query statistics",
		MIMEType:    "application/json",
	}, func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.ReadResource(ctx, StatusURI)
	})
}

// ReadResource returns the content of a registered resource.
func (s *Server) ReadResource(_ context.Context, uri string) (*mcp.ReadResourceResult, error) {
	if uri != StatusURI {
		return nil, NewResourceNotFoundError(uri)
	}
	data, err := json.MarshalIndent(s.status(), "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
