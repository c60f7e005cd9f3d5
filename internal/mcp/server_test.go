package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/devricklin/offline-responder/internal/api"
)

func connect(t *testing.T, h *Handler) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()

	s := NewServer(h, "")
	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	ss, err := s.GetServer().Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { ss.Close() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func TestServer_ListTools(t *testing.T) {
	h := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {})
	cs := connect(t, h)

	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	expected := []string{
		"responder_clear_pending",
		"responder_history",
		"responder_list_pending",
		"responder_set_offline",
		"responder_set_online",
		"responder_status",
	}
	if len(names) != len(expected) {
		t.Fatalf("Expected %d tools, got %v", len(expected), names)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("Expected tool %s, got %s", expected[i], names[i])
		}
	}
}

func TestServer_CallClearPending(t *testing.T) {
	h := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.ClearResponse{Cleared: 4})
	})
	cs := connect(t, h)

	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "responder_clear_pending",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("Unexpected tool error: %+v", res.Content)
	}
	if len(res.Content) == 0 {
		t.Fatal("Expected content")
	}
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok {
		t.Fatalf("Expected text content, got %T", res.Content[0])
	}
	var out ClearOutput
	if err := json.Unmarshal([]byte(text.Text), &out); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if out.Cleared != 4 {
		t.Errorf("Expected 4 cleared, got %d", out.Cleared)
	}
}
