package mcp

import (
	"encoding/json"

	gosdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// jsonResult wraps v as the single JSON text content item every tool
// returns: one text content item whose body is a JSON document.
func jsonResult(v any) (*gosdk.CallToolResult, any, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return &gosdk.CallToolResult{Content: []gosdk.Content{&gosdk.TextContent{Text: string(body)}}}, nil, nil
}

// errorResult builds a tool-level error (not a transport/Go error) for
// cases like an unregistered session calling an identity-requiring tool.
func errorResult(msg string) *gosdk.CallToolResult {
	return &gosdk.CallToolResult{IsError: true, Content: []gosdk.Content{&gosdk.TextContent{Text: msg}}}
}
