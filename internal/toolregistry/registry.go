package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/reagent-go/reagent/pkg/models"
)

// Truncation limits applied to a tool's output before it is handed back to
// the model. Oversized output is cut to MaxOutputLines and MaxOutputBytes;
// when OverflowDir is set the full output is written to a side file whose
// path the truncation notice names.
const (
	MaxOutputLines = 2000
	MaxOutputBytes = 64 * 1024
)

// DispatchedCall is one entry in a Dispatch request: a tool call with its
// raw JSON arguments.
type DispatchedCall struct {
	ID        string
	ToolName  string
	Arguments json.RawMessage
}

// DispatchedResult pairs a call with its outcome, preserving ID so callers
// can re-associate results with the originating tool_call part.
type DispatchedResult struct {
	ID     string
	Result models.ToolExecutionResult
}

type registeredTool struct {
	tool   Tool
	schema *compiledSchema
}

// Registry holds the set of tools available for one agent run and handles
// validation, concurrent dispatch, and output truncation.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registeredTool

	// OverflowDir, if set, receives side files for truncated tool output.
	// If empty, truncation simply drops the overflow.
	OverflowDir string

	// MaxConcurrency bounds how many tool calls run at once within a
	// single Dispatch call. Zero means unbounded.
	MaxConcurrency int
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{tools: make(map[string]*registeredTool)}
}

// Register adds a tool, compiling its schema immediately so a malformed
// schema fails at registration time rather than on first dispatch.
func (r *Registry) Register(t Tool) error {
	sch, err := compileSchema(t.Name(), t.Schema())
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = &registeredTool{tool: t, schema: sch}
	return nil
}

// Get returns a registered tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return rt.tool, true
}

// Specs returns the ToolSpec for every registered tool.
func (r *Registry) Specs() []models.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolSpec, 0, len(r.tools))
	for _, rt := range r.tools {
		out = append(out, Spec(rt.tool))
	}
	return out
}

// Subset returns the ToolSpecs for exactly the named tools, in the order
// given, skipping any name that isn't registered. It is used to restrict
// a subagent to a smaller tool surface.
func (r *Registry) Subset(names []string) []models.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolSpec, 0, len(names))
	for _, n := range names {
		if rt, ok := r.tools[n]; ok {
			out = append(out, Spec(rt.tool))
		}
	}
	return out
}

// DispatchOne validates and executes a single call, applying output
// truncation to the result. A tool may panic with a *models.RevertSignal
// to request a context revert (the D-Mail control-flow signal); that
// panic is recovered here and returned via revert rather than folded
// into result, so a caller can distinguish it from an ordinary tool
// failure. Any other panic is recovered into an Err result, matching the
// "never propagates unexpected panics to the caller" contract.
func (r *Registry) DispatchOne(ctx context.Context, call DispatchedCall) (result DispatchedResult, revert *models.RevertSignal) {
	r.mu.RLock()
	rt, ok := r.tools[call.ToolName]
	r.mu.RUnlock()

	if !ok {
		return DispatchedResult{ID: call.ID, Result: models.Rejected(fmt.Sprintf("unknown tool %q", call.ToolName))}, nil
	}

	if err := rt.schema.Validate(call.Arguments); err != nil {
		return DispatchedResult{ID: call.ID, Result: models.Rejected(fmt.Sprintf("invalid arguments for %q: %v", call.ToolName, err))}, nil
	}

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				if rs, ok := rec.(*models.RevertSignal); ok {
					revert = rs
					return
				}
				result = DispatchedResult{ID: call.ID, Result: models.Err(fmt.Sprintf("tool %q panicked: %v", call.ToolName, rec))}
			}
		}()
		out := rt.tool.Execute(ctx, call.Arguments)
		result = DispatchedResult{ID: call.ID, Result: r.truncate(call.ToolName, call.ID, out)}
	}()
	return result, revert
}

// Dispatch validates and executes every call concurrently, bounded by
// MaxConcurrency if set, and returns results in the same order as calls
// regardless of completion order. If any call raises the revert signal,
// the first one observed (by call index) is returned alongside whatever
// results the other concurrent calls had already produced.
func (r *Registry) Dispatch(ctx context.Context, calls []DispatchedCall) ([]DispatchedResult, *models.RevertSignal) {
	results := make([]DispatchedResult, len(calls))
	reverts := make([]*models.RevertSignal, len(calls))
	if len(calls) == 0 {
		return results, nil
	}

	var sem chan struct{}
	if r.MaxConcurrency > 0 {
		sem = make(chan struct{}, r.MaxConcurrency)
	}

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c DispatchedCall) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[idx], reverts[idx] = r.DispatchOne(ctx, c)
		}(i, call)
	}
	wg.Wait()

	for _, rs := range reverts {
		if rs != nil {
			return results, rs
		}
	}
	return results, nil
}

// truncate caps result.Output to MaxOutputBytes/MaxOutputLines, spilling
// the overflow to a side file under OverflowDir when configured.
func (r *Registry) truncate(toolName, callID string, result models.ToolExecutionResult) models.ToolExecutionResult {
	lines := strings.Split(result.Output, "\n")
	overByLines := len(lines) > MaxOutputLines
	overByBytes := len(result.Output) > MaxOutputBytes

	if !overByLines && !overByBytes {
		return result
	}

	truncated := result.Output
	if overByLines {
		truncated = strings.Join(lines[:MaxOutputLines], "\n")
	}
	if len(truncated) > MaxOutputBytes {
		truncated = truncated[:MaxOutputBytes]
	}

	note := fmt.Sprintf("\n[output truncated: %d bytes / %d lines total]", len(result.Output), len(lines))

	if r.OverflowDir != "" {
		if path, err := r.writeOverflow(toolName, callID, result.Output); err == nil {
			note = fmt.Sprintf("\n[output truncated: %d bytes / %d lines total, full output at %s]", len(result.Output), len(lines), path)
		}
	}

	result.Output = truncated + note
	return result
}

func (r *Registry) writeOverflow(toolName, callID, full string) (string, error) {
	if err := os.MkdirAll(r.OverflowDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s-%s.txt", toolName, callID, uuid.NewString()[:8])
	path := filepath.Join(r.OverflowDir, name)
	if err := os.WriteFile(path, []byte(full), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
