package sonar

import (
	"context"

	"github.com/teilomillet/reprompt/prompt"
)

// RunOptions are the optional parameters of the run helpers.
type RunOptions struct {
	Model              string
	WebSearchOptions   *WebSearchOptions
	SearchDomainFilter []string
}

func (o *RunOptions) request(messages []Message) *ChatRequest {
	req := &ChatRequest{Messages: messages}
	if o != nil {
		req.Model = o.Model
		req.WebSearchOptions = o.WebSearchOptions
		req.SearchDomainFilter = o.SearchDomainFilter
	}
	return req
}

func userMessage(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}

// RunPrompt sends prompt as a single user message and returns the content.
func (c *Client) RunPrompt(ctx context.Context, text string, opts *RunOptions) (string, error) {
	resp, err := c.ChatCompletions(ctx, opts.request(userMessage(text)))
	if err != nil {
		return "", err
	}
	return ExtractContent(resp), nil
}

// RunPromptWithJSONSchema asks for content matching schema and returns the
// JSON object found in it, or nil when none parses.
func (c *Client) RunPromptWithJSONSchema(ctx context.Context, text string, schema map[string]interface{}, opts *RunOptions) (map[string]interface{}, error) {
	req := opts.request(userMessage(text))
	req.ResponseFormat = &ResponseFormat{
		Type:       FormatJSONSchema,
		JSONSchema: &JSONSchemaFormat{Schema: schema},
	}

	resp, err := c.ChatCompletions(ctx, req)
	if err != nil {
		return nil, err
	}
	return ExtractJSONFromContent(ExtractContent(resp)), nil
}

// RunPromptWithRegex asks for content matching pattern and returns the first
// match. The boolean is false when the content does not match.
func (c *Client) RunPromptWithRegex(ctx context.Context, text, pattern string, opts *RunOptions) (string, bool, error) {
	req := opts.request(userMessage(text))
	req.ResponseFormat = &ResponseFormat{
		Type:  FormatRegex,
		Regex: &RegexFormat{Regex: pattern},
	}

	resp, err := c.ChatCompletions(ctx, req)
	if err != nil {
		return "", false, err
	}
	return ExtractRegexMatch(ExtractContent(resp), pattern)
}

// OptimizePrompt transforms raw with the optimization system prompt and the
// given house rules, using a low search context.
func (c *Client) OptimizePrompt(ctx context.Context, raw, rules string) (string, error) {
	resp, err := c.ChatCompletions(ctx, &ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: prompt.BuildOptimizeSystemPrompt(rules)},
			{Role: RoleUser, Content: raw},
		},
		WebSearchOptions: &WebSearchOptions{SearchContextSize: "low"},
	})
	if err != nil {
		return "", err
	}
	return ExtractContent(resp), nil
}
