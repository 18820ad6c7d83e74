package openai

import (
	"fmt"

	"github.com/haowjy/unillm-go"
)

// ChatCompletionRequest is the Chat Completions request body.
type ChatCompletionRequest struct {
	Model               string          `json:"model"`
	Messages            []Message       `json:"messages"`
	MaxCompletionTokens *int            `json:"max_completion_tokens,omitempty"`
	Temperature         *float64        `json:"temperature,omitempty"`
	TopP                *float64        `json:"top_p,omitempty"`
	Stop                []string        `json:"stop,omitempty"`
	Seed                *int            `json:"seed,omitempty"`
	FrequencyPenalty    *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty     *float64        `json:"presence_penalty,omitempty"`
	ResponseFormat      *ResponseFormat `json:"response_format,omitempty"`
	ReasoningEffort     string          `json:"reasoning_effort,omitempty"`
	Tools               []Tool          `json:"tools,omitempty"`
	ToolChoice          any             `json:"tool_choice,omitempty"` // "auto", "none", "required", or {"type": "function", "function": {"name": "..."}}
	ParallelToolCalls   *bool           `json:"parallel_tool_calls,omitempty"`
	Stream              bool            `json:"stream,omitempty"`
	StreamOptions       *StreamOptions  `json:"stream_options,omitempty"`
}

// StreamOptions requests the trailing usage chunk.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ResponseFormat selects JSON mode or structured outputs.
type ResponseFormat struct {
	Type       string      `json:"type"` // "text", "json_object", "json_schema"
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

// JSONSchema is a named structured output schema.
type JSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema,omitempty"`
	Strict bool           `json:"strict,omitempty"`
}

// Message represents a message in the conversation.
type Message struct {
	Role             string     `json:"role"`              // "system", "user", "assistant", "tool"
	Content          any        `json:"content,omitempty"` // string or []ContentPart
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID       string     `json:"tool_call_id,omitempty"`      // For role:"tool" messages
	ReasoningContent *string    `json:"reasoning_content,omitempty"` // OpenAI-compatible reasoning servers
	Reasoning        *string    `json:"reasoning,omitempty"`
	Refusal          *string    `json:"refusal,omitempty"` // set instead of content when the model declines
}

// ContentPart represents a part of multimodal content.
type ContentPart struct {
	Type     string    `json:"type"` // "text", "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in content.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"` // "auto", "low", "high"
}

// ToolCall represents a function call in assistant messages.
type ToolCall struct {
	Index    *int         `json:"index,omitempty"` // Streaming only - index of this tool call in the array
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"` // "function"
	Function FunctionCall `json:"function"`
}

// FunctionCall represents the function details of a tool call.
type FunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"` // JSON string
}

// Tool represents a function tool definition.
type Tool struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition represents a function tool definition.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// ChatCompletionResponse is a non-streaming chat.completion body.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage"`
}

// Choice represents a completion choice in the response.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason *string `json:"finish_reason"` // "stop", "length", "tool_calls", "content_filter"
}

// Usage represents token usage in the response.
type Usage struct {
	PromptTokens            int `json:"prompt_tokens"`
	CompletionTokens        int `json:"completion_tokens"`
	TotalTokens             int `json:"total_tokens"`
	CompletionTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details,omitempty"`
	PromptTokensDetails *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details,omitempty"`
}

// toUsage converts vendor usage to the library's Usage.
func (u *Usage) toUsage() llmprovider.Usage {
	out := llmprovider.Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
	}
	if u.CompletionTokensDetails != nil {
		out.ReasoningTokens = u.CompletionTokensDetails.ReasoningTokens
	}
	if u.PromptTokensDetails != nil {
		out.CacheReadTokens = u.PromptTokensDetails.CachedTokens
	}
	return out
}

// buildChatCompletionRequest constructs the Chat Completions body from a GenerateRequest.
// The same builder serves single-shot and streaming calls.
func buildChatCompletionRequest(req *llmprovider.GenerateRequest, stream bool) (*ChatCompletionRequest, error) {
	messages, err := convertMessages(req)
	if err != nil {
		return nil, err
	}

	params := req.Params
	if params == nil {
		params = &llmprovider.RequestParams{}
	}

	chatReq := &ChatCompletionRequest{
		Model:               req.Model,
		Messages:            messages,
		MaxCompletionTokens: params.MaxTokens,
		Temperature:         params.Temperature,
		TopP:                params.TopP,
		Stop:                params.Stop,
		Seed:                params.Seed,
		FrequencyPenalty:    params.FrequencyPenalty,
		PresencePenalty:     params.PresencePenalty,
		ParallelToolCalls:   params.ParallelToolCalls,
		Stream:              stream,
	}

	if stream {
		chatReq.StreamOptions = &StreamOptions{IncludeUsage: true}
	}

	if params.IsThinkingEnabled() {
		chatReq.ReasoningEffort = "medium"
		if params.ThinkingLevel != nil {
			chatReq.ReasoningEffort = *params.ThinkingLevel
		}
	}

	if rf := params.ResponseFormat; rf != nil {
		chatReq.ResponseFormat = &ResponseFormat{Type: rf.Type}
		if rf.Type == "json_schema" {
			if rf.Name == "" || rf.JSONSchema == nil {
				return nil, &llmprovider.ValidationError{Field: "response_format", Value: rf.Type, Reason: "json_schema format requires a name and a schema"}
			}
			chatReq.ResponseFormat.JSONSchema = &JSONSchema{Name: rf.Name, Schema: rf.JSONSchema, Strict: true}
		}
	}

	if len(params.Tools) > 0 {
		chatReq.Tools = convertTools(params.Tools)
	}

	if params.ToolChoice != nil {
		chatReq.ToolChoice = convertToolChoice(params.ToolChoice)
	}

	return chatReq, nil
}

// mapFinishReason maps an OpenAI finish_reason to the library stop reason.
func mapFinishReason(finishReason string) llmprovider.StopReason {
	switch finishReason {
	case "stop":
		return llmprovider.StopReasonStop
	case "length":
		return llmprovider.StopReasonLength
	case "tool_calls", "function_call":
		return llmprovider.StopReasonToolCalls
	case "content_filter":
		return llmprovider.StopReasonContentFilter
	default:
		return llmprovider.StopReasonStop
	}
}

func toolCallKey(i int) string {
	return fmt.Sprintf("tool:%d", i)
}
