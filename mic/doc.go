// Package mic implements the Model Invocation Core: a provider-agnostic
// runtime for invoking LLM chat completions, streaming partial results,
// executing tool calls, enforcing structured output, and retrying across
// fallback models.
//
// The package is organized the way the teacher's agent package is: a flat
// set of files for the core types (content, message, tool, format, params),
// the provider contract and registry, the streaming decoder, response
// objects, and the retry/fallback orchestrator. Concrete provider
// implementations live in mic/providers/<name>.
package mic
