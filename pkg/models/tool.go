package models

import "encoding/json"

// ToolSpec is the name/description/JSON-schema contract advertised to the
// LLM provider and used to validate incoming tool-call arguments.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolResultStatus discriminates the outcome of a tool execution.
type ToolResultStatus string

const (
	// ToolResultOk indicates the tool ran and produced a usable result.
	ToolResultOk ToolResultStatus = "ok"
	// ToolResultErr indicates the tool ran but failed.
	ToolResultErr ToolResultStatus = "err"
	// ToolResultRejected indicates the call was never executed (schema
	// validation failure, policy denial, or unknown tool name).
	ToolResultRejected ToolResultStatus = "rejected"
)

// ToolExecutionResult is the discriminated union a Tool's execute function
// returns: Ok(output, brief?), Err(output, brief?), or Rejected.
type ToolExecutionResult struct {
	Status ToolResultStatus `json:"status"`

	// Output is the full result content returned to the model, subject to
	// registry truncation.
	Output string `json:"output,omitempty"`

	// Brief is an optional short summary surfaced in events and logs in
	// place of the (possibly large) Output.
	Brief string `json:"brief,omitempty"`
}

// IsError reports whether this result should be presented to the model as
// an error tool result.
func (r ToolExecutionResult) IsError() bool {
	return r.Status == ToolResultErr || r.Status == ToolResultRejected
}

// Ok constructs a successful ToolExecutionResult.
func Ok(output string) ToolExecutionResult {
	return ToolExecutionResult{Status: ToolResultOk, Output: output}
}

// OkBrief constructs a successful ToolExecutionResult with a brief summary.
func OkBrief(output, brief string) ToolExecutionResult {
	return ToolExecutionResult{Status: ToolResultOk, Output: output, Brief: brief}
}

// Err constructs a failed ToolExecutionResult.
func Err(output string) ToolExecutionResult {
	return ToolExecutionResult{Status: ToolResultErr, Output: output}
}

// Rejected constructs a ToolExecutionResult for a call that never ran.
func Rejected(output string) ToolExecutionResult {
	return ToolExecutionResult{Status: ToolResultRejected, Output: output}
}
