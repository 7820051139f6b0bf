package llm

type RequestType string

const (
	RequestTypeChat RequestType = "chat"
)

func (r RequestType) String() string {
	return string(r)
}

type APIFormat string

const (
	APIFormatOpenAIChatCompletion APIFormat = "openai/chat_completions"
	APIFormatAnthropicMessage     APIFormat = "anthropic/messages"
)

func (f APIFormat) String() string {
	return string(f)
}

const (
	// ToolTypeFunction is the function tool type.
	ToolTypeFunction = "function"

	// ToolTypeWebSearch is the web search grounding tool type.
	ToolTypeWebSearch = "web_search"
)
