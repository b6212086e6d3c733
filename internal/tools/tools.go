// Package tools defines the shared [Tool] type and the schema-validated
// [Registry] used by all built-in dispatch tool packages in haulvox. Each
// sub-package exports a constructor function that returns a slice of [Tool]
// values ready for registration.
package tools

import (
	"context"

	"github.com/haulvox/haulvox/pkg/types"
)

// Tool represents a built-in tool ready for registration with a [Registry].
//
// Each Tool carries its LLM-facing schema ([types.ToolDefinition]) together
// with the handler function that is invoked when the LLM calls the tool.
type Tool struct {
	// Definition is the tool's LLM-facing schema including its name,
	// description, and JSON Schema parameter specification.
	Definition types.ToolDefinition

	// Handler executes the tool with JSON-encoded args and returns a
	// JSON-encoded result string on success, or a descriptive error.
	// Implementations must be safe for concurrent use and must respect
	// context cancellation.
	Handler func(ctx context.Context, args string) (string, error)
}
