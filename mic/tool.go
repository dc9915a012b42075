package mic

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ToolSchema is a typed tool description: a JSON-schema parameter
// descriptor plus the handler invoked when the model calls it. Strict
// requests the provider enforce the schema exactly when it supports doing
// so (spec §3, §4.3 beta/strict routing).
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Strict      bool

	Handler func(ctx context.Context, args string) (interface{}, error)

	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
}

// schema lazily compiles Parameters into a jsonschema.Schema, once per
// ToolSchema instance.
func (t *ToolSchema) schema() (*jsonschema.Schema, error) {
	t.compileOnce.Do(func() {
		raw, err := json.Marshal(t.Parameters)
		if err != nil {
			t.compileErr = fmt.Errorf("tool %s: marshal parameter schema: %w", t.Name, err)
			return
		}
		t.compiledSchema, t.compileErr = jsonschema.CompileString(t.Name+".schema.json", string(raw))
	})
	return t.compiledSchema, t.compileErr
}

// validateArgs checks a call's raw JSON arguments against the tool's
// parameter schema, returning a description of the first violation.
func (t *ToolSchema) validateArgs(args string) error {
	schema, err := t.schema()
	if err != nil {
		return fmt.Errorf("tool %s: invalid parameter schema: %w", t.Name, err)
	}
	var decoded interface{}
	if err := json.Unmarshal([]byte(args), &decoded); err != nil {
		return fmt.Errorf("tool %s: invalid JSON arguments: %w", t.Name, err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("tool %s: arguments don't match schema: %w", t.Name, err)
	}
	return nil
}

// NewTool builds a ToolSchema with an empty object parameter schema,
// ready for AddParameter calls.
func NewTool(name, description string) *ToolSchema {
	return &ToolSchema{
		Name:        name,
		Description: description,
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
			"required":   []string{},
		},
	}
}

// AddParameter adds a property to the tool's parameter schema.
func (t *ToolSchema) AddParameter(name string, schema map[string]interface{}, required bool) *ToolSchema {
	props := t.Parameters["properties"].(map[string]interface{})
	props[name] = schema
	if required {
		reqs, _ := t.Parameters["required"].([]string)
		t.Parameters["required"] = append(reqs, name)
	}
	return t
}

// WithHandler installs the tool's invocation handler. The handler receives
// the raw JSON argument string the provider delivered (spec §4.2: "arguments
// are delivered as a JSON string").
func (t *ToolSchema) WithHandler(h func(ctx context.Context, args string) (interface{}, error)) *ToolSchema {
	t.Handler = h
	return t
}

// StringParam, NumberParam, BoolParam, ArrayParam and EnumParam are
// convenience JSON-schema property builders for AddParameter.

func StringParam(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func NumberParam(description string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": description}
}

func BoolParam(description string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": description}
}

func ArrayParam(description, itemType string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"items":       map[string]interface{}{"type": itemType},
	}
}

func EnumParam(description string, values ...string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description, "enum": values}
}

// Toolkit is an immutable-after-construction mapping from tool name to
// schema, with a single execute entry point (spec §4.2).
type Toolkit struct {
	tools map[string]*ToolSchema
}

// NewToolkit builds a Toolkit from a set of tool schemas. Duplicate names
// overwrite earlier entries, last write wins.
func NewToolkit(tools ...*ToolSchema) *Toolkit {
	m := make(map[string]*ToolSchema, len(tools))
	for _, t := range tools {
		m[t.Name] = t
	}
	return &Toolkit{tools: m}
}

// Lookup returns the named tool and whether it was found.
func (tk *Toolkit) Lookup(name string) (*ToolSchema, bool) {
	if tk == nil {
		return nil, false
	}
	t, ok := tk.tools[name]
	return t, ok
}

// Schemas returns every tool in the toolkit, order unspecified.
func (tk *Toolkit) Schemas() []*ToolSchema {
	if tk == nil {
		return nil
	}
	out := make([]*ToolSchema, 0, len(tk.tools))
	for _, t := range tk.tools {
		out = append(out, t)
	}
	return out
}

// ErrToolNotFound supplies the message that starts ToolOutput.Error when
// the provider invokes a tool name the toolkit doesn't expose (spec §7).
// ToolOutput.Error is a plain string, so errors.Is cannot match it, and
// no execution mode returns ErrToolNotFound as a Go error.
var ErrToolNotFound = fmt.Errorf("mic: tool not found")

// Execute runs a single tool call against the toolkit. It never returns a
// Go error: parse failures, schema mismatches, missing tools and handler
// panics/errors are all captured in ToolOutput.Error instead (spec §4.2,
// §7 — tool execution errors become data, they never abort the response).
func (tk *Toolkit) Execute(ctx context.Context, call ToolCallPart) (out ToolOutputPart) {
	out = ToolOutputPart{ID: call.ID, Name: call.Name}
	tool, ok := tk.Lookup(call.Name)
	if !ok {
		out.Error = fmt.Sprintf("%v: %s", ErrToolNotFound, call.Name)
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			out.Error = fmt.Sprintf("tool %s panicked: %v", call.Name, r)
		}
	}()
	if err := tool.validateArgs(call.Args); err != nil {
		out.Error = err.Error()
		return out
	}
	result, err := tool.Handler(ctx, call.Args)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Result = result
	if s, ok := result.(string); ok {
		out.Text = s
	} else if b, err := json.Marshal(result); err == nil {
		out.Text = string(b)
	}
	return out
}

// ExecuteAll runs every call concurrently and returns the outputs in the
// same order as calls, regardless of completion order (spec §4.5, §5:
// "executeTools() preserves that order in its output regardless of
// execution completion order").
func (tk *Toolkit) ExecuteAll(ctx context.Context, calls []ToolCallPart) []ToolOutputPart {
	outputs := make([]ToolOutputPart, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call ToolCallPart) {
			defer wg.Done()
			outputs[i] = tk.Execute(ctx, call)
		}(i, call)
	}
	wg.Wait()
	return outputs
}

// ContextToolkit is a Toolkit variant whose handlers receive an additional
// caller-supplied dependency value threaded through each invocation; the
// dependency is never persisted between calls (spec §4.2).
type ContextToolkit[C any] struct {
	tools map[string]*ContextToolSchema[C]
}

// ContextToolSchema is a ToolSchema whose handler also receives a C value.
type ContextToolSchema[C any] struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Strict      bool
	Handler     func(ctx context.Context, dep C, args string) (interface{}, error)
}

// NewContextToolkit builds a ContextToolkit from context-aware tool schemas.
func NewContextToolkit[C any](tools ...*ContextToolSchema[C]) *ContextToolkit[C] {
	m := make(map[string]*ContextToolSchema[C], len(tools))
	for _, t := range tools {
		m[t.Name] = t
	}
	return &ContextToolkit[C]{tools: m}
}

// Schemas returns descriptor-only ToolSchema values (no Handler) suitable
// for Request.Tools encoding; the real handler stays bound to C and is
// only reachable through Execute.
func (tk *ContextToolkit[C]) Schemas() []*ToolSchema {
	if tk == nil {
		return nil
	}
	out := make([]*ToolSchema, 0, len(tk.tools))
	for _, t := range tk.tools {
		out = append(out, &ToolSchema{Name: t.Name, Description: t.Description, Parameters: t.Parameters, Strict: t.Strict})
	}
	return out
}

// Execute runs a single context-bound tool call. Like Toolkit.Execute it
// never returns a Go error: missing tools and handler errors/panics are
// captured in ToolOutput.Error. Unlike Toolkit.Execute, it passes
// call.Args to the handler without parsing or validating them against
// Parameters, and it leaves ToolOutput.Text empty.
func (tk *ContextToolkit[C]) Execute(ctx context.Context, dep C, call ToolCallPart) (out ToolOutputPart) {
	out = ToolOutputPart{ID: call.ID, Name: call.Name}
	tool, ok := tk.tools[call.Name]
	if !ok {
		out.Error = fmt.Sprintf("%v: %s", ErrToolNotFound, call.Name)
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			out.Error = fmt.Sprintf("tool %s panicked: %v", call.Name, r)
		}
	}()
	result, err := tool.Handler(ctx, dep, call.Args)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Result = result
	return out
}
