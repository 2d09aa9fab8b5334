package daemon

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(7, MethodResolve, ResolveParams{Path: "textures/stone.png"})
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if req.JSONRPC != JSONRPCVersion {
		t.Errorf("JSONRPC = %q, want %q", req.JSONRPC, JSONRPCVersion)
	}
	if req.ID == nil || *req.ID != 7 {
		t.Errorf("ID = %v, want 7", req.ID)
	}
	var p ResolveParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		t.Fatalf("unmarshal params: %v", err)
	}
	if p.Path != "textures/stone.png" {
		t.Errorf("Params.Path = %q, want %q", p.Path, "textures/stone.png")
	}
}

func TestNewRequestNilParams(t *testing.T) {
	req, err := NewRequest(1, MethodPing, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "params") {
		t.Errorf("encoded request %s should omit params", data)
	}
}

func TestNewResponse(t *testing.T) {
	tests := []struct {
		name   string
		result any
		want   string
	}{
		{"nil result", nil, "null"},
		{"ack", AckResult{Accepted: 2}, `{"accepted":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := NewResponse(3, tt.result)
			if err != nil {
				t.Fatalf("NewResponse() error = %v", err)
			}
			if string(resp.Result) != tt.want {
				t.Errorf("Result = %s, want %s", resp.Result, tt.want)
			}
			if resp.Error != nil {
				t.Errorf("Error = %v, want nil", resp.Error)
			}
		})
	}
}

func TestNewErrorResponse(t *testing.T) {
	id := int64(5)
	resp := NewErrorResponse(&id, ErrCodeInvalidParams, "Invalid params", "path is required")
	if resp.Error == nil {
		t.Fatal("Error = nil")
	}
	if resp.Error.Code != ErrCodeInvalidParams {
		t.Errorf("Code = %d, want %d", resp.Error.Code, ErrCodeInvalidParams)
	}
	if string(resp.Error.Data) != `"path is required"` {
		t.Errorf("Data = %s, want %q", resp.Error.Data, "path is required")
	}
	if got := resp.Error.Error(); !strings.Contains(got, "-32602") {
		t.Errorf("Error() = %q, want it to contain the code", got)
	}
}

func TestMessageDistinguishesNotifications(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantID bool
	}{
		{"response", `{"jsonrpc":"2.0","id":4,"result":{"pong":true}}`, true},
		{"notification", `{"jsonrpc":"2.0","method":"target/reloaded","params":{"output":"a.png"}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg message
			if err := json.Unmarshal([]byte(tt.input), &msg); err != nil {
				t.Fatal(err)
			}
			if (msg.ID != nil) != tt.wantID {
				t.Errorf("has ID = %v, want %v", msg.ID != nil, tt.wantID)
			}
		})
	}
}

func TestIDGenerator(t *testing.T) {
	var g IDGenerator
	first, second := g.Next(), g.Next()
	if first != 1 || second != 2 {
		t.Errorf("Next() = %d, %d, want 1, 2", first, second)
	}
}
