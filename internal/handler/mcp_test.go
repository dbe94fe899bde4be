package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// jsonrpcRequest is a JSON-RPC 2.0 request structure for testing.
type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// jsonrpcResponse is a JSON-RPC 2.0 response structure for testing.
type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// toolCallParams represents the params for tools/call method.
type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// callToolResult is the expected result structure from a tool call.
type callToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	IsError bool `json:"isError,omitempty"`
}

func TestMCPServerCreation(t *testing.T) {
	env := newTestEnv(t)
	if env.h.NewMCPServer() == nil {
		t.Fatal("NewMCPServer returned nil")
	}
	if env.h.NewMCPHandler() == nil {
		t.Fatal("NewMCPHandler returned nil")
	}
}

func TestMCPInitialize(t *testing.T) {
	env := newTestEnv(t)

	req := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params: map[string]any{
			"protocolVersion": "2025-06-18",
			"clientInfo":      map[string]string{"name": "test-client", "version": "1.0.0"},
			"capabilities":    map[string]any{},
		},
	}

	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	setMCPHeaders(httpReq, "")
	w := httptest.NewRecorder()

	env.mux.ServeHTTP(w, httpReq)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusOK, w.Body.String())
	}

	jsonData, err := parseSSEResponse(w.Body.String())
	if err != nil {
		t.Fatalf("Failed to parse SSE response: %v", err)
	}
	var resp jsonrpcResponse
	if err := json.Unmarshal(jsonData, &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}

	var result struct {
		ServerInfo struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
	}
	json.Unmarshal(resp.Result, &result)
	if result.ServerInfo.Name != "storefront-proxy" {
		t.Errorf("server name = %q, want storefront-proxy", result.ServerInfo.Name)
	}
}

func TestMCPToolsList(t *testing.T) {
	env := newTestEnv(t)
	sessionID := initMCPSession(t, env.mux)

	resp := mcpCall(t, env.mux, sessionID, jsonrpcRequest{JSONRPC: "2.0", ID: 2, Method: "tools/list"})

	var result struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("Failed to parse result: %v", err)
	}

	got := make(map[string]bool)
	for _, tool := range result.Tools {
		got[tool.Name] = true
	}
	for _, name := range []string{
		"list_products", "get_product", "get_cart", "add_to_cart",
		"update_cart_quantity", "remove_from_cart", "toggle_wishlist",
	} {
		if !got[name] {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestMCPListProducts(t *testing.T) {
	env := newTestEnv(t)
	sessionID := initMCPSession(t, env.mux)

	result := callTool(t, env.mux, sessionID, "list_products", map[string]any{"brand": "b1"})
	if result.IsError {
		t.Fatalf("Expected success, got error: %+v", result.Content)
	}

	var out ProductList
	if err := json.Unmarshal([]byte(result.Content[0].Text), &out); err != nil {
		t.Fatalf("Failed to parse products: %v", err)
	}
	if len(out.Products) != 2 {
		t.Fatalf("got %d products, want 2", len(out.Products))
	}
	if out.Products[1].EffectivePrice != 20 || out.Products[1].Price != 25 {
		t.Errorf("Lamp prices = %v/%v, want 25/20", out.Products[1].Price, out.Products[1].EffectivePrice)
	}
}

func TestMCPGetProductNotFound(t *testing.T) {
	env := newTestEnv(t)
	sessionID := initMCPSession(t, env.mux)

	result := callTool(t, env.mux, sessionID, "get_product", map[string]any{"id": "p9"})
	if !result.IsError {
		t.Fatal("Expected error result")
	}
	if !strings.Contains(result.Content[0].Text, "NOT_FOUND") {
		t.Errorf("error text = %q, want NOT_FOUND", result.Content[0].Text)
	}
}

func TestMCPCartTools(t *testing.T) {
	env := newTestEnv(t)
	sessionID := initMCPSession(t, env.mux)
	tok := tokenFor("u1")

	result := callTool(t, env.mux, sessionID, "add_to_cart", map[string]any{"token": tok, "productId": "p1"})
	if result.IsError {
		t.Fatalf("add_to_cart failed: %+v", result.Content)
	}
	env.sessions.Wait()

	result = callTool(t, env.mux, sessionID, "update_cart_quantity", map[string]any{"token": tok, "productId": "p1", "count": 2})
	if result.IsError {
		t.Fatalf("update_cart_quantity failed: %+v", result.Content)
	}
	var summary CartSummary
	if err := json.Unmarshal([]byte(result.Content[0].Text), &summary); err != nil {
		t.Fatalf("Failed to parse cart: %v", err)
	}
	if summary.ItemCount != 2 || summary.TotalPrice != 20 {
		t.Errorf("cart = %+v, want 2 items totalling 20", summary)
	}

	result = callTool(t, env.mux, sessionID, "remove_from_cart", map[string]any{"token": tok, "productId": "p1"})
	if result.IsError {
		t.Fatalf("remove_from_cart failed: %+v", result.Content)
	}

	result = callTool(t, env.mux, sessionID, "get_cart", map[string]any{"token": tok})
	json.Unmarshal([]byte(result.Content[0].Text), &summary)
	if len(summary.Items) != 0 || summary.ItemCount != 0 {
		t.Errorf("cart after remove = %+v, want empty", summary)
	}
}

func TestMCPCartRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	sessionID := initMCPSession(t, env.mux)

	result := callTool(t, env.mux, sessionID, "get_cart", map[string]any{})
	if !result.IsError {
		t.Fatal("Expected error result")
	}
	if !strings.Contains(result.Content[0].Text, "UNAUTHENTICATED") {
		t.Errorf("error text = %q, want UNAUTHENTICATED", result.Content[0].Text)
	}
}

func TestMCPToggleWishlist(t *testing.T) {
	env := newTestEnv(t)
	sessionID := initMCPSession(t, env.mux)
	tok := tokenFor("u1")

	result := callTool(t, env.mux, sessionID, "toggle_wishlist", map[string]any{"token": tok, "productId": "p3"})
	if result.IsError {
		t.Fatalf("toggle_wishlist failed: %+v", result.Content)
	}
	var out WishlistToggle
	json.Unmarshal([]byte(result.Content[0].Text), &out)
	if !out.InWishlist || out.ProductID != "p3" {
		t.Errorf("toggle = %+v, want p3 in wishlist", out)
	}
}

// === Test Helpers ===

// callTool runs tools/call and returns the parsed tool result.
func callTool(t *testing.T, mux *http.ServeMux, sessionID, name string, args map[string]any) callToolResult {
	t.Helper()

	raw, _ := json.Marshal(args)
	resp := mcpCall(t, mux, sessionID, jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "tools/call",
		Params:  toolCallParams{Name: name, Arguments: raw},
	})

	var result callToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("Failed to parse result: %v", err)
	}
	if len(result.Content) == 0 {
		t.Fatal("Expected content in result")
	}
	return result
}

func mcpCall(t *testing.T, mux *http.ServeMux, sessionID string, req jsonrpcRequest) jsonrpcResponse {
	t.Helper()

	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	setMCPHeaders(httpReq, sessionID)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, httpReq)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusOK, w.Body.String())
	}
	jsonData, err := parseSSEResponse(w.Body.String())
	if err != nil {
		t.Fatalf("Failed to parse SSE response: %v", err)
	}
	var resp jsonrpcResponse
	if err := json.Unmarshal(jsonData, &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	return resp
}

func setMCPHeaders(req *http.Request, sessionID string) {
	req.Header.Set("Content-Type", "application/json")
	// MCP Streamable HTTP requires Accept header with both json and event-stream
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
}

// parseSSEResponse extracts JSON data from SSE formatted response.
// SSE format: "event: message\ndata: {json}\n\n"
func parseSSEResponse(body string) ([]byte, error) {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			return []byte(strings.TrimPrefix(line, "data: ")), nil
		}
	}
	// If no SSE format found, assume plain JSON
	return []byte(body), nil
}

// initMCPSession initializes an MCP session and returns the session ID.
func initMCPSession(t *testing.T, mux *http.ServeMux) string {
	t.Helper()

	initReq := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params: map[string]any{
			"protocolVersion": "2025-06-18",
			"clientInfo":      map[string]string{"name": "test", "version": "1.0"},
			"capabilities":    map[string]any{},
		},
	}

	body, _ := json.Marshal(initReq)
	httpReq := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	setMCPHeaders(httpReq, "")
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, httpReq)

	if w.Code != http.StatusOK {
		t.Fatalf("Failed to initialize MCP session: %s", w.Body.String())
	}

	return w.Header().Get("Mcp-Session-Id")
}
