// Package daemon serves the modlayer pipeline to host processes over
// JSON-RPC 2.0 on a Unix socket, one JSON value per message.
package daemon

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/app"
	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/artifact"
)

// JSONRPCVersion is the protocol version string.
const JSONRPCVersion = "2.0"

// JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Request is a JSON-RPC request. A nil ID makes it a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Notification is a server-to-client message that expects no reply.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// message is the union of everything that can arrive on a client
// connection: responses carry an ID, notifications a method.
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func marshalParams(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	return data, nil
}

// NewRequest creates a request with the given ID.
func NewRequest(id int64, method string, params any) (*Request, error) {
	data, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Request{JSONRPC: JSONRPCVersion, ID: &id, Method: method, Params: data}, nil
}

// NewNotification creates a notification.
func NewNotification(method string, params any) (*Notification, error) {
	data, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Notification{JSONRPC: JSONRPCVersion, Method: method, Params: data}, nil
}

// NewResponse creates a successful response. A nil result encodes as null.
func NewResponse(id int64, result any) (*Response, error) {
	resp := &Response{JSONRPC: JSONRPCVersion, ID: &id, Result: json.RawMessage("null")}
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		resp.Result = data
	}
	return resp, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id *int64, code int, message string, data any) *Response {
	resp := &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
	if data != nil {
		if d, err := json.Marshal(data); err == nil {
			resp.Error.Data = d
		}
	}
	return resp
}

// RPC methods.
const (
	MethodPing            = "ping"
	MethodShutdown        = "shutdown"
	MethodSourceChanged   = "source/changed"
	MethodContentChanged  = "content/changed"
	MethodNeedsRebuild    = "target/needsRebuild"
	MethodBuildRun        = "build/run"
	MethodStatusGet       = "status/get"
	MethodResolve         = "resolve"
	MethodEventsSubscribe = "events/subscribe"

	// Server-to-client notifications.
	MethodTargetReloaded = "target/reloaded"
	MethodDaemonEvent    = "daemon/event"
)

// PingResult is the response to ping.
type PingResult struct {
	Pong      bool   `json:"pong"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	StartTime string `json:"start_time"`
}

// ShutdownResult is the response to shutdown.
type ShutdownResult struct {
	Message string `json:"message"`
}

// SourceChangedParams are the parameters of source/changed.
type SourceChangedParams struct {
	Path     string `json:"path"`
	Outdated bool   `json:"outdated"`
	Deleted  bool   `json:"deleted"`
}

// ContentChangedParams are the parameters of content/changed. No paths
// asks for a rescan of every root.
type ContentChangedParams struct {
	Paths []string `json:"paths,omitempty"`
}

// AckResult acknowledges a request with no other result.
type AckResult struct {
	Accepted int `json:"accepted"`
}

// NeedsRebuildParams are the parameters of target/needsRebuild.
type NeedsRebuildParams struct {
	Output string `json:"output"`
}

// NeedsRebuildResult is the response to target/needsRebuild.
type NeedsRebuildResult struct {
	Output       string `json:"output"`
	NeedsRebuild bool   `json:"needs_rebuild"`
}

// BuildRunParams are the parameters of build/run.
type BuildRunParams struct {
	// Force treats every root as new.
	Force bool `json:"force,omitempty"`
}

// BuildRunResult is the response to build/run.
type BuildRunResult struct {
	Report *artifact.BuildReport `json:"report"`
	Error  string                `json:"error,omitempty"`
}

// StatusGetResult is the response to status/get.
type StatusGetResult = app.Status

// ResolveParams are the parameters of resolve.
type ResolveParams struct {
	Path       string   `json:"path"`
	All        bool     `json:"all,omitempty"`
	Alternate  bool     `json:"alternate,omitempty"`
	Extensions []string `json:"extensions,omitempty"`
}

// ResolveResult is the response to resolve.
type ResolveResult struct {
	Path     string   `json:"path"`
	Found    bool     `json:"found"`
	Concrete string   `json:"concrete,omitempty"`
	All      []string `json:"all,omitempty"`
}

// SubscribeResult is the response to events/subscribe.
type SubscribeResult struct {
	Subscribed bool `json:"subscribed"`
}

// TargetReloadedParams are sent with target/reloaded after an output was
// rebuilt and written.
type TargetReloadedParams struct {
	Output    string `json:"output"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

// DaemonEventParams are sent with daemon/event.
type DaemonEventParams struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// IDGenerator generates unique request IDs.
type IDGenerator struct {
	counter atomic.Int64
}

// Next returns the next ID.
func (g *IDGenerator) Next() int64 {
	return g.counter.Add(1)
}

// DaemonInfo describes a running daemon.
type DaemonInfo struct {
	PID         int       `json:"pid"`
	SocketPath  string    `json:"socket_path"`
	StartTime   time.Time `json:"start_time"`
	Version     string    `json:"version"`
	ClientCount int       `json:"client_count"`
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}
