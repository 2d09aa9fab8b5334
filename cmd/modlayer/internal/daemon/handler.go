package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/overlay"
	"github.com/albertocavalcante/modlayer/internal/log"
)

// Handler dispatches RPC calls to a Backend.
type Handler struct {
	server  *Server
	backend Backend

	// shutdownDelay gives the shutdown response time to reach the client.
	shutdownDelay time.Duration
}

// NewHandler creates a handler for backend.
func NewHandler(backend Backend) *Handler {
	return &Handler{backend: backend, shutdownDelay: 100 * time.Millisecond}
}

// HandleRequest dispatches one request. It returns nil for notifications.
func (h *Handler) HandleRequest(ctx context.Context, client *ClientConn, req *Request) *Response {
	log.Component("daemon").Debugw("handling request", "method", req.Method, "id", req.ID)

	var (
		result any
		err    *RPCError
	)
	switch req.Method {
	case MethodPing:
		result = h.ping()
	case MethodShutdown:
		result = h.shutdown()
	case MethodEventsSubscribe:
		client.Subscribe()
		result = SubscribeResult{Subscribed: true}
	case MethodSourceChanged:
		result, err = h.sourceChanged(ctx, req)
	case MethodContentChanged:
		result, err = h.contentChanged(ctx, req)
	case MethodNeedsRebuild:
		result, err = h.needsRebuild(ctx, req)
	case MethodBuildRun:
		result, err = h.buildRun(ctx, req)
	case MethodStatusGet:
		result, err = h.statusGet(ctx)
	case MethodResolve:
		result, err = h.resolve(ctx, req)
	default:
		err = &RPCError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Method not found: %s", req.Method)}
	}

	if req.ID == nil {
		return nil
	}
	if err != nil {
		return &Response{JSONRPC: JSONRPCVersion, ID: req.ID, Error: err}
	}
	resp, mErr := NewResponse(*req.ID, result)
	if mErr != nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "Failed to create response", nil)
	}
	return resp
}

func decodeParams(req *Request, v any) *RPCError {
	if len(req.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		return invalidParams(err.Error())
	}
	return nil
}

func invalidParams(detail string) *RPCError {
	data, _ := json.Marshal(detail)
	return &RPCError{Code: ErrCodeInvalidParams, Message: "Invalid params", Data: data}
}

func internalError(err error) *RPCError {
	return &RPCError{Code: ErrCodeInternalError, Message: err.Error()}
}

func (h *Handler) ping() PingResult {
	res := PingResult{Pong: true}
	if h.server != nil {
		res.Version = h.server.version
		res.Uptime = h.server.Uptime().String()
		res.StartTime = h.server.startTime.Format(time.RFC3339)
	}
	return res
}

func (h *Handler) shutdown() ShutdownResult {
	if h.server != nil {
		go func() {
			time.Sleep(h.shutdownDelay)
			h.server.RequestShutdown()
		}()
	}
	return ShutdownResult{Message: "daemon shutting down"}
}

func (h *Handler) sourceChanged(ctx context.Context, req *Request) (any, *RPCError) {
	var p SourceChangedParams
	if err := decodeParams(req, &p); err != nil {
		return nil, err
	}
	if p.Path == "" {
		return nil, invalidParams("path is required")
	}
	if !p.Outdated && !p.Deleted {
		p.Outdated = true
	}
	if err := h.backend.SourceChanged(ctx, p); err != nil {
		return nil, internalError(err)
	}
	return AckResult{Accepted: 1}, nil
}

func (h *Handler) contentChanged(ctx context.Context, req *Request) (any, *RPCError) {
	var p ContentChangedParams
	if err := decodeParams(req, &p); err != nil {
		return nil, err
	}
	if err := h.backend.ContentChanged(ctx, p.Paths); err != nil {
		return nil, internalError(err)
	}
	return AckResult{Accepted: len(p.Paths)}, nil
}

func (h *Handler) needsRebuild(ctx context.Context, req *Request) (any, *RPCError) {
	var p NeedsRebuildParams
	if err := decodeParams(req, &p); err != nil {
		return nil, err
	}
	if p.Output == "" {
		return nil, invalidParams("output is required")
	}
	stale, err := h.backend.NeedsRebuild(ctx, p.Output)
	if err != nil {
		return nil, internalError(err)
	}
	return NeedsRebuildResult{Output: p.Output, NeedsRebuild: stale}, nil
}

func (h *Handler) buildRun(ctx context.Context, req *Request) (any, *RPCError) {
	var p BuildRunParams
	if err := decodeParams(req, &p); err != nil {
		return nil, err
	}
	report, err := h.backend.Build(ctx, p.Force)
	if report == nil && err != nil {
		return nil, internalError(err)
	}
	res := BuildRunResult{Report: report}
	if err != nil {
		res.Error = err.Error()
	}
	return res, nil
}

func (h *Handler) statusGet(ctx context.Context) (any, *RPCError) {
	st, err := h.backend.Status(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	return st, nil
}

func (h *Handler) resolve(ctx context.Context, req *Request) (any, *RPCError) {
	var p ResolveParams
	if err := decodeParams(req, &p); err != nil {
		return nil, err
	}
	if p.Path == "" {
		return nil, invalidParams("path is required")
	}
	res, err := h.backend.Resolve(ctx, p)
	if err != nil {
		return nil, internalError(err)
	}
	return res, nil
}

// ResolveWith answers a resolve request against res.
func ResolveWith(res *overlay.Resolver, p ResolveParams) *ResolveResult {
	out := &ResolveResult{Path: overlay.Clean(p.Path)}
	switch {
	case p.All:
		out.All = res.ResolveAll(p.Path)
		if len(out.All) > 0 {
			out.Found = true
			out.Concrete = out.All[0]
		}
	case p.Alternate:
		out.Concrete, out.Found = res.ResolveAlternate(p.Path)
	case len(p.Extensions) > 0:
		out.Concrete, out.Found = res.ResolveFiltered(p.Path, p.Extensions)
	default:
		out.Concrete, out.Found = res.Resolve(p.Path)
	}
	return out
}

// ReloadHook returns a callback that tells subscribed clients an output
// was rebuilt.
func (h *Handler) ReloadHook() func(output, absPath string) {
	return func(output, absPath string) {
		if h.server == nil {
			return
		}
		notif, err := NewNotification(MethodTargetReloaded, TargetReloadedParams{
			Output:    output,
			Path:      absPath,
			Timestamp: timestamp(),
		})
		if err != nil {
			return
		}
		h.server.Broadcast(notif)
	}
}
