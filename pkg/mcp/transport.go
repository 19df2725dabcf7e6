package mcp

import (
	"fmt"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// createTransport builds the streamable-HTTP transport for a server.
func createTransport(cfg ServerConfig) (mcpsdk.Transport, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("server config has no url")
	}
	transport := &mcpsdk.StreamableClientTransport{
		Endpoint: cfg.URL,
	}
	if cfg.APIKey != "" || cfg.ProtocolVersion != "" || cfg.TimeoutSeconds > 0 {
		transport.HTTPClient = buildHTTPClient(cfg)
	}
	return transport, nil
}

// buildHTTPClient creates an http.Client that injects auth and protocol
// headers into every request.
func buildHTTPClient(cfg ServerConfig) *http.Client {
	client := &http.Client{
		Transport: &headerTransport{
			base:            http.DefaultTransport,
			apiKey:          cfg.APIKey,
			protocolVersion: cfg.ProtocolVersion,
		},
	}
	if cfg.TimeoutSeconds > 0 {
		client.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return client
}

// headerTransport wraps an http.RoundTripper to add Authorization and
// MCP protocol version headers.
type headerTransport struct {
	base            http.RoundTripper
	apiKey          string
	protocolVersion string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	if t.protocolVersion != "" {
		req.Header.Set("MCP-Protocol-Version", t.protocolVersion)
	}
	return t.base.RoundTrip(req)
}
