package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/mnemos/internal/heartbeat"
	"github.com/haasonsaas/mnemos/internal/jsonrepair"
	"github.com/haasonsaas/mnemos/internal/observability"
	"github.com/haasonsaas/mnemos/pkg/models"
)

const (
	// ToolCallIDMaxLen bounds minted tool-call ids.
	ToolCallIDMaxLen = 29

	// FunctionReturnCharLimit caps a tool's return before it is packaged,
	// unless the tool relies on paging instead.
	FunctionReturnCharLimit = 3000

	// RequestHeartbeatParam is the reserved argument tools use to ask for an
	// immediate follow-up step.
	RequestHeartbeatParam = "request_heartbeat"

	// MaxTracebackChars bounds the stack trace included in an execution
	// failure's log line.
	MaxTracebackChars = 2000
)

// pagingTools rely on (page, page_size) arguments to bound their output, so
// their returns are exempt from the character-limit truncation.
var pagingTools = map[string]bool{
	"conversation_search":      true,
	"conversation_search_date": true,
	"archival_memory_search":   true,
}

// MintToolCallID generates a fresh bounded-length tool-call id.
func MintToolCallID() string {
	id := uuid.NewString()
	if len(id) > ToolCallIDMaxLen {
		id = id[:ToolCallIDMaxLen]
	}
	return id
}

// DispatchResult is everything the step engine needs to append the tool-role
// message and decide chaining after one tool call.
type DispatchResult struct {
	// ToolName is the requested tool, valid even when lookup failed.
	ToolName string

	// ToolCallID identifies the call; minted when the provider omitted one.
	ToolCallID string

	// Packaged is the {status, message, time} JSON body for the tool-role
	// message.
	Packaged string

	// Response is the unpackaged result (or error text) for user-facing
	// frames.
	Response string

	// Args is the decoded argument map with request_heartbeat removed,
	// safe to echo in log lines.
	Args map[string]any

	// HeartbeatRequest reports the tool asked for an immediate follow-up
	// step.
	HeartbeatRequest bool

	// Failed reports any stage short-circuited; the engine forces a
	// heartbeat so the model can recover.
	Failed bool
}

// Dispatcher runs the tool-call pipeline: lookup, argument parse, heartbeat
// extraction, schema validation, invocation, result shaping, packaging. Each
// stage can short-circuit into a structured failure; none of them panic the
// step.
type Dispatcher struct {
	registry *ToolRegistry
	logger   *observability.Logger
	now      func() time.Time

	schemaCache map[string]*jsonschema.Schema
}

// NewDispatcher creates a Dispatcher over the given registry.
func NewDispatcher(registry *ToolRegistry, logger *observability.Logger) *Dispatcher {
	return &Dispatcher{
		registry:    registry,
		logger:      logger,
		now:         time.Now,
		schemaCache: make(map[string]*jsonschema.Schema),
	}
}

// Dispatch executes one tool call against the agent behind caps. onRunning,
// when non-nil, fires once the arguments have decoded, just before
// invocation, so hosts can surface a Running transition.
func (d *Dispatcher) Dispatch(ctx context.Context, caps Capabilities, call models.ToolCall, onRunning func(args map[string]any)) DispatchResult {
	res := DispatchResult{
		ToolName:   call.Name,
		ToolCallID: call.ID,
	}
	if res.ToolCallID == "" {
		res.ToolCallID = MintToolCallID()
	}

	// Lookup.
	tool, ok := d.registry.Get(call.Name)
	if !ok {
		return d.fail(res, fmt.Sprintf("No function named %s", call.Name))
	}

	// Argument parse. Tool arguments arrive as a JSON string that is
	// frequently malformed; run the repair chain before giving up.
	args, err := jsonrepair.Repair(string(call.Input))
	if err != nil {
		args, err = jsonrepair.PermissiveDecode(string(call.Input))
	}
	if err != nil {
		return d.fail(res, fmt.Sprintf("Error parsing JSON for function '%s' arguments: %s", call.Name, string(call.Input)))
	}

	// Heartbeat extraction. Non-bool values are coerced to false.
	if raw, present := args[RequestHeartbeatParam]; present {
		delete(args, RequestHeartbeatParam)
		if b, isBool := raw.(bool); isBool {
			res.HeartbeatRequest = b
		} else if d.logger != nil {
			d.logger.Warn(ctx, "request_heartbeat was not a bool, coercing to false",
				"tool", call.Name, "value", raw)
		}
	}
	res.Args = args

	if onRunning != nil {
		onRunning(args)
	}

	// Argument typing: decode against the tool's declared parameter schema
	// before invocation. Schema violations surface as execution failures.
	if err := d.validateArgs(tool, args); err != nil {
		res.HeartbeatRequest = false
		return d.fail(res, fmt.Sprintf("Error calling function %s: %s", call.Name, err))
	}

	// Invocation. Tool panics are contained to this call.
	response, err := d.invoke(ctx, tool, caps, args)
	if err != nil {
		res.HeartbeatRequest = false
		return d.fail(res, fmt.Sprintf("Error calling function %s: %s", call.Name, err))
	}

	// Result shaping.
	res.Response = ShapeFunctionResponse(response, !pagingTools[call.Name])
	res.Packaged = heartbeat.PackageFunctionResponse(true, res.Response, d.now())
	return res
}

func (d *Dispatcher) fail(res DispatchResult, errMsg string) DispatchResult {
	res.Failed = true
	res.Response = errMsg
	res.Packaged = heartbeat.PackageFunctionResponse(false, errMsg, d.now())
	return res
}

func (d *Dispatcher) validateArgs(tool Tool, args map[string]any) error {
	raw := tool.Schema()
	if len(raw) == 0 {
		return nil
	}
	schema, err := d.compiledSchema(tool.Name(), raw)
	if err != nil {
		// A broken schema is the tool author's bug, not the model's; let the
		// call through rather than failing every invocation.
		if d.logger != nil {
			d.logger.Warn(context.Background(), "tool schema failed to compile, skipping validation",
				"tool", tool.Name(), "error", err)
		}
		return nil
	}
	return schema.Validate(map[string]any(args))
}

func (d *Dispatcher) compiledSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	if s, ok := d.schemaCache[name]; ok {
		return s, nil
	}
	compiler := jsonschema.NewCompiler()
	url := "mem://tools/" + name + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, err
	}
	d.schemaCache[name] = schema
	return schema, nil
}

func (d *Dispatcher) invoke(ctx context.Context, tool Tool, caps Capabilities, args map[string]any) (response string, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			if len(stack) > MaxTracebackChars {
				stack = stack[:MaxTracebackChars]
			}
			if d.logger != nil {
				d.logger.Error(ctx, "tool panicked", "tool", tool.Name(), "panic", r, "stack", stack)
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	return tool.Execute(ctx, caps, args)
}

// ShapeFunctionResponse coerces a tool return into the string appended to
// the log, truncating to FunctionReturnCharLimit unless the tool pages its
// own output.
func ShapeFunctionResponse(response string, truncate bool) string {
	if response == "" {
		return "None"
	}
	if truncate && len(response) > FunctionReturnCharLimit {
		total := len(response)
		return fmt.Sprintf("%s... [NOTE: function output was truncated since it exceeded the character limit (%d > %d)]",
			response[:FunctionReturnCharLimit], total, FunctionReturnCharLimit)
	}
	return response
}
