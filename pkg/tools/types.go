// Package tools implements the fixed registry of actions the agent loop
// may invoke against PagerDuty, the monitored services' /ops/* surface,
// and the local incident-report filesystem.
package tools

import "context"

// Call is one tool invocation requested by the LLM.
type Call struct {
	ID    string
	Name  string
	Input map[string]any
}

// Result is the outcome of executing a Call. Execute returns no Go
// error: an unknown tool name, a schema violation, and a handler
// failure are all reported as IsError content, matching the
// reference's "catch everything into {"error": ...}" convention.
type Result struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Handler executes one tool call and returns its JSON-encoded content.
// A returned error is itself wrapped into the {"error": "..."} envelope
// by Execute — handlers never need to do that themselves.
type Handler func(ctx context.Context, e *Executor, input map[string]any) (string, error)
