package gemini

import (
	"encoding/json"

	"github.com/haowjy/unillm-go"
)

// GenerateContentRequest is the generateContent request body.
type GenerateContentRequest struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	Tools             []Tool            `json:"tools,omitempty"`
	ToolConfig        *ToolConfig       `json:"toolConfig,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Content is one conversation turn.
type Content struct {
	Role  string `json:"role,omitempty"` // "user" or "model"
	Parts []Part `json:"parts"`
}

// Part is one piece of a turn. Exactly one of the data fields is set.
type Part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	ThoughtSignature string            `json:"thoughtSignature,omitempty"`
	InlineData       *Blob             `json:"inlineData,omitempty"`
	FileData         *FileData         `json:"fileData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// Blob is inline base64 media.
type Blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FileData references media by URI.
type FileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

// FunctionCall is a model-issued tool call. The model sends it whole, never
// in fragments.
type FunctionCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// FunctionResponse carries a tool result back to the model, matched by name.
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// Tool groups function declarations.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

// FunctionDeclaration describes one callable function.
type FunctionDeclaration struct {
	Name                 string         `json:"name"`
	Description          string         `json:"description,omitempty"`
	ParametersJSONSchema map[string]any `json:"parametersJsonSchema,omitempty"`
}

// ToolConfig wraps the function calling mode.
type ToolConfig struct {
	FunctionCallingConfig FunctionCallingConfig `json:"functionCallingConfig"`
}

// FunctionCallingConfig selects AUTO, ANY or NONE, optionally restricted to
// a set of function names.
type FunctionCallingConfig struct {
	Mode                 string   `json:"mode"`
	AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
}

// GenerationConfig holds sampling parameters.
type GenerationConfig struct {
	MaxOutputTokens    *int            `json:"maxOutputTokens,omitempty"`
	Temperature        *float64        `json:"temperature,omitempty"`
	TopP               *float64        `json:"topP,omitempty"`
	TopK               *int            `json:"topK,omitempty"`
	StopSequences      []string        `json:"stopSequences,omitempty"`
	Seed               *int            `json:"seed,omitempty"`
	PresencePenalty    *float64        `json:"presencePenalty,omitempty"`
	FrequencyPenalty   *float64        `json:"frequencyPenalty,omitempty"`
	ResponseMimeType   string          `json:"responseMimeType,omitempty"`
	ResponseJSONSchema map[string]any  `json:"responseJsonSchema,omitempty"`
	ThinkingConfig     *ThinkingConfig `json:"thinkingConfig,omitempty"`
}

func (c *GenerationConfig) isEmpty() bool {
	return c.MaxOutputTokens == nil && c.Temperature == nil && c.TopP == nil && c.TopK == nil &&
		len(c.StopSequences) == 0 && c.Seed == nil && c.PresencePenalty == nil && c.FrequencyPenalty == nil &&
		c.ResponseMimeType == "" && c.ThinkingConfig == nil
}

// ThinkingConfig enables thought summaries and bounds thinking tokens.
type ThinkingConfig struct {
	ThinkingBudget  int  `json:"thinkingBudget"`
	IncludeThoughts bool `json:"includeThoughts"`
}

// GenerateContentResponse is both the non-streaming response and one SSE
// chunk of a streaming response.
type GenerateContentResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback"`
	UsageMetadata  *UsageMetadata  `json:"usageMetadata"`
	ModelVersion   string          `json:"modelVersion"`
}

// Candidate is one generated alternative.
type Candidate struct {
	Content      *Content `json:"content"`
	FinishReason string   `json:"finishReason"`
	Index        int      `json:"index"`
}

// PromptFeedback reports why a prompt was blocked.
type PromptFeedback struct {
	BlockReason string `json:"blockReason"`
}

// UsageMetadata holds cumulative token counts.
type UsageMetadata struct {
	PromptTokenCount        int `json:"promptTokenCount"`
	CandidatesTokenCount    int `json:"candidatesTokenCount"`
	ThoughtsTokenCount      int `json:"thoughtsTokenCount"`
	CachedContentTokenCount int `json:"cachedContentTokenCount"`
	TotalTokenCount         int `json:"totalTokenCount"`
}

// toUsage normalizes counts. Thought tokens are billed as output.
func (u *UsageMetadata) toUsage() llmprovider.Usage {
	return llmprovider.Usage{
		InputTokens:     u.PromptTokenCount,
		OutputTokens:    u.CandidatesTokenCount + u.ThoughtsTokenCount,
		ReasoningTokens: u.ThoughtsTokenCount,
		CacheReadTokens: u.CachedContentTokenCount,
	}
}

// buildGenerateContentRequest maps the library request onto the Gemini body.
func buildGenerateContentRequest(req *llmprovider.GenerateRequest, catalog *llmprovider.Catalog) (*GenerateContentRequest, error) {
	contents, err := convertMessages(req.ConversationMessages(), llmprovider.ToolCallNames(req.Messages))
	if err != nil {
		return nil, err
	}

	body := &GenerateContentRequest{Contents: contents}

	if system := req.SystemPrompt(); system != "" {
		body.SystemInstruction = &Content{Parts: []Part{{Text: system}}}
	}

	params := req.Params
	if params == nil {
		return body, nil
	}

	config := GenerationConfig{
		MaxOutputTokens:  params.MaxTokens,
		Temperature:      params.Temperature,
		TopP:             params.TopP,
		TopK:             params.TopK,
		StopSequences:    params.Stop,
		Seed:             params.Seed,
		PresencePenalty:  params.PresencePenalty,
		FrequencyPenalty: params.FrequencyPenalty,
	}

	if rf := params.ResponseFormat; rf != nil {
		switch rf.Type {
		case "json_object":
			config.ResponseMimeType = "application/json"
		case "json_schema":
			if rf.JSONSchema == nil {
				return nil, &llmprovider.ValidationError{Field: "response_format", Value: rf.Type, Reason: "json_schema format requires a schema"}
			}
			config.ResponseMimeType = "application/json"
			config.ResponseJSONSchema = rf.JSONSchema
		}
	}

	if params.IsThinkingEnabled() {
		config.ThinkingConfig = &ThinkingConfig{
			ThinkingBudget:  catalog.ThinkingBudgetFor(llmprovider.ProviderGoogle, params),
			IncludeThoughts: true,
		}
	}

	if !config.isEmpty() {
		body.GenerationConfig = &config
	}

	if len(params.Tools) > 0 {
		body.Tools = []Tool{{FunctionDeclarations: convertTools(params.Tools)}}
	}
	if params.ToolChoice != nil {
		body.ToolConfig = convertToolChoice(params.ToolChoice)
	}

	return body, nil
}

// mapFinishReason normalizes a Gemini finishReason. STOP means tool_calls
// when the candidate carried function calls.
func mapFinishReason(reason string, hasToolCalls bool) llmprovider.StopReason {
	switch reason {
	case "STOP":
		if hasToolCalls {
			return llmprovider.StopReasonToolCalls
		}
		return llmprovider.StopReasonStop
	case "MAX_TOKENS":
		return llmprovider.StopReasonLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII", "IMAGE_SAFETY":
		return llmprovider.StopReasonContentFilter
	case "MALFORMED_FUNCTION_CALL":
		return llmprovider.StopReasonError
	default:
		return llmprovider.StopReasonStop
	}
}
