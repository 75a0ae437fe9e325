// Package mcpserver wires the hiro domain services into an MCP
// server: every tool named in spec §6 bound to its typed handler, the
// cookie-session:// and prompt:// resources, and the per-call
// state machine (params-validated → repo-work → network I/O →
// repo-patch → result) with structured tool errors on every edge.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kwkeefer/hiro/internal/adapter/inbound/metrics"
	"github.com/kwkeefer/hiro/internal/adapter/outbound/cookiesession"
	"github.com/kwkeefer/hiro/internal/adapter/outbound/memory"
	"github.com/kwkeefer/hiro/internal/domain/toolerr"
	"github.com/kwkeefer/hiro/internal/domain/validation"
	"github.com/kwkeefer/hiro/internal/service"
)

// validate runs the go-playground/validator/v10 struct-tag pass ahead
// of any service call; internal/domain/validation's Coerce helpers run
// first, inside each handler, to normalize loosely-typed LLM-supplied
// JSON into the shapes validator tags and service params expect.
var validate = validator.New()

// Deps collects every service, adapter, and ambient dependency the
// registry binds to MCP tools and resources. Cookies may be nil when
// cookie sessions are disabled (cfg.Cookies.Enabled=false); Metrics may
// be nil when the /metrics listener is disabled.
type Deps struct {
	HTTPTool       *service.HTTPToolService
	Target         *service.TargetService
	ContextVersion *service.ContextVersionService
	Mission        *service.MissionService
	Recall         *service.RecallService
	TechniqueStats *service.TechniqueStatsService
	Library        *service.LibraryService
	Cookies        *cookiesession.Provider
	Prompts        *PromptLibrary
	Metrics        *metrics.Metrics
	Tracer         trace.Tracer
	Logger         *slog.Logger

	// DefaultSimilarityFloor is applied when a vector-search tool call
	// omits theta, mirroring config.VectorConfig.SimilarityFloor.
	DefaultSimilarityFloor float64
}

// Registry is the assembled MCP server builder.
type Registry struct {
	d Deps
}

// New builds a Registry from deps. Cookies, Metrics and Prompts may be
// nil; a nil Tracer becomes a no-op tracer, a nil Logger becomes
// slog.Default(), and a zero DefaultSimilarityFloor becomes 0.5.
func New(d Deps) *Registry {
	if d.Tracer == nil {
		d.Tracer = trace.NewNoopTracerProvider().Tracer("hiro/mcpserver")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.DefaultSimilarityFloor == 0 {
		d.DefaultSimilarityFloor = 0.5
	}
	return &Registry{d: d}
}

// Build constructs the *mcp.Server with every tool and resource
// registered, ready to be run over stdio or streamable HTTP.
func (r *Registry) Build(name, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)

	r.registerHTTPTools(server)
	r.registerTargetTools(server)
	r.registerContextTools(server)
	r.registerMissionTools(server)
	r.registerTechniqueTools(server)
	r.registerLibraryTools(server)
	r.registerResources(server)

	return server
}

// connectionID returns the key the mission pointer store is keyed on
// for the current call. The go-sdk does not expose a stable
// per-connection identifier to tool handlers in every transport
// (stdio in particular is a single peer for the process lifetime), so
// hiro keeps the documented single-tenant simplification from spec §5:
// one process-wide pointer, falling back to memory.GlobalConnectionKey
// rather than guessing at transport-specific session plumbing.
func connectionID(_ *mcp.CallToolRequest) string {
	return memory.GlobalConnectionKey
}

// wrap adapts a typed service call into an mcp.AddTool handler: it
// starts a span named "tools/call <name>", recovers any panic into a
// structured tool error (defense in depth — fn should never panic),
// records Prometheus counters, and converts a returned error into an
// IsError CallToolResult rather than a protocol-level failure.
func wrap[A any](r *Registry, name string, fn func(ctx context.Context, req *mcp.CallToolRequest, args A) (any, error)) func(context.Context, *mcp.CallToolRequest, A) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args A) (result *mcp.CallToolResult, out any, err error) {
		ctx, span := r.d.Tracer.Start(ctx, "tools/call "+name)
		status := "ok"
		start := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				status = "error"
				perr := fmt.Errorf("panic in tool %s: %v", name, rec)
				span.RecordError(perr)
				span.SetStatus(codes.Error, perr.Error())
				result, out, err = errResult(name, perr)
			}
			span.SetAttributes(attribute.String("tool.name", name), attribute.String("tool.status", status))
			span.End()
			if r.d.Metrics != nil {
				r.d.Metrics.ToolCallsTotal.WithLabelValues(name, status).Inc()
				r.d.Metrics.ToolCallDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
			}
		}()

		value, ferr := fn(ctx, req, args)
		if ferr != nil {
			status = "error"
			span.RecordError(ferr)
			span.SetStatus(codes.Error, ferr.Error())
			return errResult(name, ferr)
		}
		return callResult(value)
	}
}

// callResult marshals a successful tool result to JSON text content,
// the shape every tool in spec §6 returns.
func callResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return errResult("", fmt.Errorf("marshal tool result: %w", err))
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(data)}}}, nil, nil
}

// errResult converts any error into a structured tool-error result —
// never a raw protocol error — per spec §4.J's state machine: every
// error edge returns a structured tool error, none crash the server.
func errResult(tool string, err error) (*mcp.CallToolResult, any, error) {
	te := toolerr.AsToolError(tool, err)
	payload := map[string]any{"error": te.Message}
	if len(te.Details) > 0 {
		payload["details"] = te.Details
	}
	data, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		data = []byte(`{"error":"internal error formatting tool error"}`)
	}
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: string(data)}}}, nil, nil
}

// validateStruct runs validator/v10 over s and, on failure, converts
// its FieldErrors into a single aggregated toolerr.ValidationError via
// internal/domain/validation.AggregateErrors.
func validateStruct(toolName string, s any) error {
	if err := validate.Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]toolerr.FieldError, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, toolerr.FieldError{
					Field:    fe.Field(),
					Message:  fmt.Sprintf("failed %q validation", fe.Tag()),
					Received: fmt.Sprintf("%v", fe.Value()),
				})
			}
			return validation.AggregateErrors(toolName, fields)
		}
		return err
	}
	return nil
}
