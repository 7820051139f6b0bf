package llm

import (
	"encoding/json"
	"errors"
)

// Tool describes a tool the model may call.
type Tool struct {
	// Type of the tool, e.g. "function" or a provider-native type like "web_search".
	Type string `json:"type"`

	// Function is the function definition, required when type is "function".
	Function Function `json:"function,omitzero"`

	// WebSearch is the provider-native web search tool, present when type is "web_search".
	WebSearch *WebSearchTool `json:"web_search,omitempty"`

	// CacheControl is the resolved cache annotation for this tool definition.
	// This field is not serialized in JSON.
	CacheControl *CacheControl `json:"-"`
}

// Function is a function tool definition.
type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// WebSearchTool configures the provider-native web search tool.
type WebSearchTool struct {
	// MaxUses limits how many searches the model may perform.
	MaxUses *int64 `json:"max_uses,omitempty"`

	// AllowedDomains restricts results to these domains.
	AllowedDomains []string `json:"allowed_domains,omitempty"`

	// BlockedDomains excludes results from these domains.
	BlockedDomains []string `json:"blocked_domains,omitempty"`
}

// ToolCall is a tool invocation produced by the model.
type ToolCall struct {
	// Index of the tool call in the streamed tool call list.
	Index int `json:"index,omitempty"`

	// ID of the tool call, echoed back in the tool result message.
	ID string `json:"id,omitempty"`

	// Type of the tool call, e.g. "function".
	Type string `json:"type,omitempty"`

	Function FunctionCall `json:"function,omitzero"`

	// CacheControl is the resolved cache annotation for this tool call block.
	// This field is not serialized in JSON.
	CacheControl *CacheControl `json:"-"`
}

// FunctionCall is the function invocation payload of a tool call.
type FunctionCall struct {
	Name string `json:"name,omitempty"`

	// Arguments is the raw JSON arguments string as produced by the model.
	// It may be partial while streaming.
	Arguments string `json:"arguments,omitempty"`
}

// ToolChoice controls which tool the model should call.
// string ("none", "auto", "required") or a named tool.
type ToolChoice struct {
	ToolChoice      *string
	NamedToolChoice *NamedToolChoice
}

// NamedToolChoice forces the model to call a specific tool.
type NamedToolChoice struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction names the function of a named tool choice.
type ToolFunction struct {
	Name string `json:"name"`
}

func (tc ToolChoice) MarshalJSON() ([]byte, error) {
	if tc.ToolChoice != nil {
		return json.Marshal(tc.ToolChoice)
	}

	if tc.NamedToolChoice != nil {
		return json.Marshal(tc.NamedToolChoice)
	}

	return []byte("null"), nil
}

func (tc *ToolChoice) UnmarshalJSON(data []byte) error {
	var str string

	err := json.Unmarshal(data, &str)
	if err == nil {
		tc.ToolChoice = &str
		return nil
	}

	var named NamedToolChoice

	err = json.Unmarshal(data, &named)
	if err == nil {
		tc.NamedToolChoice = &named
		return nil
	}

	return errors.New("invalid tool choice type")
}
