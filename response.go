package llmprovider

// StopReason is the normalized reason a completion ended.
type StopReason string

const (
	StopReasonStop          StopReason = "stop"
	StopReasonLength        StopReason = "length"
	StopReasonToolCalls     StopReason = "tool_calls"
	StopReasonContentFilter StopReason = "content_filter"
	StopReasonError         StopReason = "error"
)

// Usage holds token accounting for one completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	// ReasoningTokens counts thinking tokens when the vendor reports them separately
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`

	// CacheReadTokens counts prompt tokens served from the vendor's prompt cache
	CacheReadTokens int `json:"cache_read_tokens,omitempty"`
}

// TotalTokens returns input plus output tokens.
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// IsZero reports whether no token counts are set.
func (u Usage) IsZero() bool {
	return u == Usage{}
}

// Response is the final assembled result of a completion. It is built by a
// StreamState once the stream reaches Finish, for streaming and single-shot
// calls alike.
type Response struct {
	// Provider that served the completion
	Provider ProviderID

	// Model is the model reported by the vendor (may differ from request if aliased)
	Model string

	// Blocks is the list of content blocks in index order
	Blocks []Block

	// Text is the concatenation of all text blocks
	Text string

	// ToolCalls lists the assembled tool calls in index order
	ToolCalls []ToolCall

	Usage Usage

	StopReason StopReason

	// RawStopReason is the vendor's own stop reason string
	RawStopReason string
}

// Thinking concatenates all thinking blocks.
func (r *Response) Thinking() string {
	var text string
	for i := range r.Blocks {
		if r.Blocks[i].IsThinkingBlock() {
			text += r.Blocks[i].Text
		}
	}
	return text
}

// Message converts the response into an assistant message for the next turn.
func (r *Response) Message() Message {
	return AssistantMessage(r.Blocks...)
}

// Clone returns a deep copy of the response.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	out.Blocks = cloneBlocks(r.Blocks)
	if r.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(r.ToolCalls))
		for i, call := range r.ToolCalls {
			call.Arguments = append([]byte(nil), call.Arguments...)
			out.ToolCalls[i] = call
		}
	}
	return &out
}
