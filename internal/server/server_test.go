package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBOStub serves just enough of the raylight API for startup and the
// catalog tools.
func newBOStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /logon/long", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SAP-LogonToken", "stub-token")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /logoff", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /raylight/v1/universes", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"universes": map[string]any{
				"universe": []map[string]any{
					{"id": "5564", "name": "eFashion"},
				},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(url string) *Config {
	cfg := &Config{
		SAPBO: SAPBOConfig{URL: url, Username: "analyst", Password: "secret"},
	}
	applyDefaults(cfg)
	return cfg
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig("")
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sapbo.url is required")
}

func TestNew_RegistersTools(t *testing.T) {
	srv := newBOStub(t)
	s, err := New(testConfig(srv.URL))
	require.NoError(t, err)
	defer s.Close()

	assert.NotNil(t, s.MCP())
	assert.Equal(t, []string{"sapbo_get_tables", "sapbo_get_columns", "sapbo_run_query"}, s.Toolkit().Tools())
}

func TestStart_LogsIn(t *testing.T) {
	srv := newBOStub(t)
	s, err := New(testConfig(srv.URL))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Start(context.Background()))
}

func TestStart_BadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /logon/long", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	s, err := New(testConfig(srv.URL))
	require.NoError(t, err)
	defer s.Close()

	err = s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to BO server")
}

// The factory output is a working MCP server end to end: a client
// session over in-memory transports can call the registered tools.
func TestServer_ToolCall(t *testing.T) {
	srv := newBOStub(t)
	s, err := New(testConfig(srv.URL))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	t1, t2 := mcp.NewInMemoryTransports()
	serverSession, err := s.MCP().Connect(ctx, t1, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	mcpClient := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := mcpClient.Connect(ctx, t2, nil)
	require.NoError(t, err)
	defer session.Close()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "sapbo_get_tables"})
	require.NoError(t, err)
	require.False(t, result.IsError)

	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, tc.Text, "eFashion,5564")
}
