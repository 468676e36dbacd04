package mcpserver

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/poiesic/studyforge/core"
)

// ErrBackendRequired is returned when no backend is provided.
var ErrBackendRequired = errors.New("mcpserver: backend is required")

// toolError prefixes err with its kind and a recovery hint so the calling
// model can correct itself.
func toolError(err error) error {
	kind := core.KindOf(err)
	var hint string
	switch kind {
	case core.ErrorKindInvalidInput:
		hint = "check the arguments"
	case core.ErrorKindNotFound:
		hint = "use list_all_studies to find valid topic ids"
	case core.ErrorKindExternalService:
		if core.IsRetryable(err) {
			hint = "the model service is temporarily unavailable, retry later"
		}
	}
	if hint == "" {
		return fmt.Errorf("%s: %w", kind, err)
	}
	return fmt.Errorf("%s: %w. %s", kind, err, hint)
}

// errorResult reports err to the model as a tool error rather than a
// protocol error.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: toolError(err).Error()}},
	}
}

// jsonResult renders v as indented JSON text content.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
