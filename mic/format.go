package mic

import "encoding/json"

// FormatMode selects how a Format asks the provider for structured output
// (spec §3, §4.2).
type FormatMode string

const (
	FormatModeTool   FormatMode = "tool"
	FormatModeJSON   FormatMode = "json"
	FormatModeStrict FormatMode = "strict"
)

// StructuredOutputToolName is the well-known synthetic tool name a
// tool-mode Format installs when it needs the model to "call" a tool to
// deliver structured output, rather than a real toolkit entry (spec §4.2).
const StructuredOutputToolName = "structured_output"

// Format specifies how to coerce raw model output into a typed value T.
// Parse is supplied by the caller; the core only decides how to ask the
// provider for conformant output and how to locate the raw payload to
// hand to Parse.
type Format struct {
	Mode                  FormatMode
	Schema                map[string]interface{}
	FormattingInstructions string
	Parse                 func(raw string) (interface{}, error)
}

// NewToolFormat builds a tool-mode Format: the provider is asked to invoke
// a synthetic StructuredOutputToolName tool whose arguments are the
// structured payload.
func NewToolFormat(schema map[string]interface{}, parse func(raw string) (interface{}, error)) Format {
	return Format{Mode: FormatModeTool, Schema: schema, Parse: parse}
}

// NewJSONFormat builds a json-mode Format. The OpenAI adapter prepends
// the formatting instructions as a system message and the Anthropic
// adapter appends them to the system prompt; the Google adapter does not
// use them, and no adapter switches on a provider-native JSON mode.
func NewJSONFormat(schema map[string]interface{}, instructions string, parse func(raw string) (interface{}, error)) Format {
	return Format{Mode: FormatModeJSON, Schema: schema, FormattingInstructions: instructions, Parse: parse}
}

// NewStrictFormat builds a strict-mode Format. Adapters encode it like
// json mode (formatting instructions only), and the Anthropic adapter
// also uses it to route to its beta sub-adapter; no adapter sends Schema
// to the provider for enforcement.
func NewStrictFormat(schema map[string]interface{}, parse func(raw string) (interface{}, error)) Format {
	return Format{Mode: FormatModeStrict, Schema: schema, Parse: parse}
}

// SyntheticTool returns the tool schema a tool-mode Format installs at
// encode time, or nil for other modes.
func (f Format) SyntheticTool() *ToolSchema {
	if f.Mode != FormatModeTool {
		return nil
	}
	return &ToolSchema{
		Name:        StructuredOutputToolName,
		Description: "Deliver the structured output for this request.",
		Parameters:  f.Schema,
		Strict:      true,
	}
}

// ResponseValidationError is returned by Format.Parse callers (via
// Response.Format) when raw output doesn't conform to the schema.
type ResponseValidationError struct {
	Provider string
	ModelID  ModelID
	Err      error
}

func (e *ResponseValidationError) Error() string {
	return "mic: response validation failed for " + e.Provider + "/" + string(e.ModelID) + ": " + e.Err.Error()
}

func (e *ResponseValidationError) Unwrap() error { return e.Err }

// DefaultJSONParse is a convenience Parse function unmarshalling raw into
// a generic map, useful when the caller doesn't need a typed struct.
func DefaultJSONParse(raw string) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}
