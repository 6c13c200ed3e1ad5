// Package sonar is a client for the Perplexity Sonar chat completions API.
package sonar

// Message roles accepted by the API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Response format types.
const (
	FormatJSONSchema = "json_schema"
	FormatRegex      = "regex"
)

// Message is a single chat message. A system message, if present, must be
// the first message of a request.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// WebSearchOptions controls the web search backing a completion.
type WebSearchOptions struct {
	SearchContextSize string `json:"search_context_size,omitempty" validate:"omitempty,oneof=low medium high"`
}

// ResponseFormat constrains the shape of the completion content.
type ResponseFormat struct {
	Type       string            `json:"type" validate:"required,oneof=json_schema regex"`
	JSONSchema *JSONSchemaFormat `json:"json_schema,omitempty" validate:"required_if=Type json_schema"`
	Regex      *RegexFormat      `json:"regex,omitempty" validate:"required_if=Type regex"`
}

// JSONSchemaFormat carries the schema of a json_schema response format.
type JSONSchemaFormat struct {
	Schema map[string]interface{} `json:"schema" validate:"required,min=1"`
}

// RegexFormat carries the pattern of a regex response format.
type RegexFormat struct {
	Regex string `json:"regex" validate:"required,regexp"`
}

// ChatRequest is the body of POST /chat/completions. Optional fields are
// omitted from the wire when unset.
type ChatRequest struct {
	Model              string            `json:"model"`
	Messages           []Message         `json:"messages" validate:"required,min=1,dive"`
	WebSearchOptions   *WebSearchOptions `json:"web_search_options,omitempty"`
	SearchDomainFilter []string          `json:"search_domain_filter,omitempty" validate:"omitempty,dive,required"`
	ResponseFormat     *ResponseFormat   `json:"response_format,omitempty"`
}

// ChatResponse is the decoded completion response. Only the content of the
// first choice is relied upon.
type ChatResponse struct {
	ID        string   `json:"id,omitempty"`
	Model     string   `json:"model,omitempty"`
	Created   int64    `json:"created,omitempty"`
	Choices   []Choice `json:"choices"`
	Usage     *Usage   `json:"usage,omitempty"`
	Citations []string `json:"citations,omitempty"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
