package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// ErrToolNotFound is wrapped by lookups of unregistered tools.
var ErrToolNotFound = errors.New("tool not found")

// ToolSpec represents the static specification of a tool (name, description, parameters).
// This is used for prompt and schema generation.
type ToolSpec interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
}

// ToolExecutor handles the actual execution of a tool with specific runtime dependencies.
type ToolExecutor interface {
	Execute(ctx context.Context, params map[string]interface{}) *ToolResult
}

// Tool represents an LLM tool (combines ToolSpec and ToolExecutor for convenience).
type Tool interface {
	ToolSpec
	ToolExecutor
}

// ToolCall represents a tool call from the LLM
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// ToolResult represents the result of a tool execution
type ToolResult struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result"`
	Error  string      `json:"error,omitempty"`

	ExecutionMetadata *ExecutionMetadata `json:"execution_metadata,omitempty"`
}

// Text returns the result as observation text. Errors are prefixed with "Error:".
func (r *ToolResult) Text() string {
	if r == nil {
		return ""
	}
	if r.Error != "" {
		return "Error: " + r.Error
	}
	switch v := r.Result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// ExecutionMetadata captures detailed information about tool execution
type ExecutionMetadata struct {
	StartTime  *time.Time `json:"start_time,omitempty"`
	DurationMs int64      `json:"duration_ms,omitempty"`

	OutputSizeBytes int `json:"output_size_bytes,omitempty"`

	// Tool-specific metadata
	ToolType string                 `json:"tool_type,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`

	// "validation", "timeout", "network", "not_found" or "unknown"
	ErrorType string `json:"error_type,omitempty"`
}

type registryEntry struct {
	tool   Tool
	schema *openapi3.Schema
}

// Registry manages available tools. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
	order   []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
	}
}

// Register adds a tool. Its parameter schema is compiled up front so invalid
// schemas fail here instead of at call time. Registering a name twice
// replaces the earlier tool.
func (r *Registry) Register(tool Tool) error {
	name := strings.TrimSpace(tool.Name())
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	schema, err := compileSchema(tool.Parameters())
	if err != nil {
		return fmt.Errorf("tool %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = &registryEntry{tool: tool, schema: schema}
	return nil
}

// MustRegister is Register for tools with static schemas.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return entry.tool, true
}

// Lookup resolves a tool name the way a model tends to write it: exact first,
// then ignoring case and surrounding punctuation.
func (r *Registry) Lookup(name string) (Tool, bool) {
	if tool, ok := r.Get(name); ok {
		return tool, true
	}

	normalized := normalizeToolName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, candidate := range r.order {
		if normalizeToolName(candidate) == normalized {
			return r.entries[candidate].tool, true
		}
	}
	return nil, false
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// ListSpecs returns all registered tool specs in registration order.
func (r *Registry) ListSpecs() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.entries[name].tool)
	}
	return result
}

// Describe renders one "name: description" line per tool for prompts.
func (r *Registry) Describe() string {
	var sb strings.Builder
	for i, spec := range r.ListSpecs() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(spec.Name())
		sb.WriteString(": ")
		sb.WriteString(spec.Description())
	}
	return sb.String()
}

// Execute executes a tool call. Parameters are validated against the tool's
// schema before the tool runs.
func (r *Registry) Execute(ctx context.Context, call *ToolCall) *ToolResult {
	r.mu.RLock()
	entry, ok := r.entries[call.Name]
	r.mu.RUnlock()
	if !ok {
		msg := fmt.Sprintf("%s: %s", ErrToolNotFound, call.Name)
		if suggestion := r.suggest(call.Name); suggestion != "" {
			msg += fmt.Sprintf(" (did you mean %s?)", suggestion)
		}
		return &ToolResult{
			ID:                call.ID,
			Error:             msg,
			ExecutionMetadata: &ExecutionMetadata{ErrorType: "not_found"},
		}
	}

	params := call.Parameters
	if params == nil {
		params = map[string]interface{}{}
	}
	if err := validateParams(entry.schema, params); err != nil {
		return &ToolResult{
			ID:                call.ID,
			Error:             fmt.Sprintf("invalid parameters for %s: %v", call.Name, err),
			ExecutionMetadata: &ExecutionMetadata{ToolType: call.Name, ErrorType: "validation"},
		}
	}

	start := time.Now()
	result := entry.tool.Execute(ctx, params)
	if result == nil {
		result = &ToolResult{Error: "tool returned nil result"}
	}
	result.ID = call.ID

	if result.ExecutionMetadata == nil {
		result.ExecutionMetadata = &ExecutionMetadata{}
	}
	meta := result.ExecutionMetadata
	meta.StartTime = &start
	meta.DurationMs = time.Since(start).Milliseconds()
	meta.ToolType = call.Name
	meta.OutputSizeBytes = len(result.Text())
	if result.Error != "" && meta.ErrorType == "" {
		meta.ErrorType = classifyError(result.Error)
	}
	return result
}

// TextCall builds a call for tools driven by a single text input, as in the
// "Action Input:" line of a ReAct step. The input is bound to the first
// required string parameter.
func (r *Registry) TextCall(id, name, input string) (*ToolCall, error) {
	tool, ok := r.Lookup(name)
	if !ok {
		msg := fmt.Sprintf("%s is not a valid tool, try one of [%s].", strings.TrimSpace(name), strings.Join(r.Names(), ", "))
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, msg)
	}

	param := primaryParameter(tool.Parameters())
	if param == "" {
		return nil, fmt.Errorf("tool %s has no text parameter", tool.Name())
	}
	return &ToolCall{
		ID:         id,
		Name:       tool.Name(),
		Parameters: map[string]interface{}{param: input},
	}, nil
}

// ToJSONSchema converts tools to JSON schema format for LLM
func (r *Registry) ToJSONSchema() []map[string]interface{} {
	specs := r.ListSpecs()
	schemas := make([]map[string]interface{}, 0, len(specs))
	for _, spec := range specs {
		schemas = append(schemas, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        spec.Name(),
				"description": spec.Description(),
				"parameters":  spec.Parameters(),
			},
		})
	}
	return schemas
}

func (r *Registry) suggest(name string) string {
	best, bestDistance := "", 0
	target := normalizeToolName(name)
	for _, candidate := range r.Names() {
		d := levenshteinDistance(target, normalizeToolName(candidate))
		if best == "" || d < bestDistance {
			best, bestDistance = candidate, d
		}
	}
	if best == "" || bestDistance > 3 {
		return ""
	}
	return best
}

func primaryParameter(params map[string]interface{}) string {
	props, _ := params["properties"].(map[string]interface{})
	if required, ok := params["required"].([]string); ok {
		for _, name := range required {
			if prop, ok := props[name].(map[string]interface{}); ok && prop["type"] == "string" {
				return name
			}
		}
	}

	names := make([]string, 0, len(props))
	for name, raw := range props {
		if prop, ok := raw.(map[string]interface{}); ok && prop["type"] == "string" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

func normalizeToolName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Trim(name, "`'\"[]().:")
}

// classifyError attempts to categorize errors for summaries
func classifyError(errStr string) string {
	lower := strings.ToLower(errStr)
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return "timeout"
	case strings.Contains(lower, "not found"):
		return "not_found"
	case strings.Contains(lower, "network") || strings.Contains(lower, "connection") || strings.Contains(lower, "status"):
		return "network"
	default:
		return "unknown"
	}
}

func levenshteinDistance(s1, s2 string) int {
	a, b := []rune(s1), []rune(s2)
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// GetStringParam returns a string parameter or defaultVal.
func GetStringParam(params map[string]interface{}, key string, defaultVal string) string {
	if val, ok := params[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultVal
}

// GetIntParam returns an integer parameter or defaultVal.
func GetIntParam(params map[string]interface{}, key string, defaultVal int) int {
	if val, ok := params[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case float64:
			return int(v)
		case json.Number:
			if i, err := v.Int64(); err == nil {
				return int(i)
			}
		}
	}
	return defaultVal
}
