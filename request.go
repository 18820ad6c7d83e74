package llmprovider

import (
	"slices"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message represents a single message in the conversation.
type Message struct {
	// Role is one of user, assistant, system, tool
	Role Role

	// Blocks is the ordered list of content parts for this message
	Blocks []Block
}

// UserMessage creates a user message with a single text block.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Blocks: []Block{TextBlock(text)}}
}

// SystemMessage creates a system message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Blocks: []Block{TextBlock(text)}}
}

// AssistantMessage creates an assistant message from blocks, e.g. a previous
// Response.Blocks replayed as history.
func AssistantMessage(blocks ...Block) Message {
	return Message{Role: RoleAssistant, Blocks: cloneBlocks(blocks)}
}

// ToolResultMessage creates a tool message answering the call with toolCallID.
func ToolResultMessage(toolCallID, name, content string, isError bool) Message {
	return Message{Role: RoleTool, Blocks: []Block{ToolResultBlock(toolCallID, name, content, isError)}}
}

// NewMessage creates a message with the given role and blocks.
func NewMessage(role Role, blocks ...Block) Message {
	return Message{Role: role, Blocks: cloneBlocks(blocks)}
}

// Text concatenates the text blocks of the message.
func (m Message) Text() string {
	var text string
	for i := range m.Blocks {
		if m.Blocks[i].IsTextBlock() {
			text += m.Blocks[i].Text
		}
	}
	return text
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	return Message{Role: m.Role, Blocks: cloneBlocks(m.Blocks)}
}

// Validate checks the role and every block.
func (m Message) Validate() error {
	switch m.Role {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
	default:
		return &ValidationError{Field: "role", Value: string(m.Role), Reason: "unknown role"}
	}
	if len(m.Blocks) == 0 {
		return &ValidationError{Field: "blocks", Reason: "message has no content"}
	}
	for i := range m.Blocks {
		if err := m.Blocks[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func cloneBlocks(blocks []Block) []Block {
	if blocks == nil {
		return nil
	}
	out := make([]Block, len(blocks))
	for i := range blocks {
		out[i] = blocks[i].Clone()
	}
	return out
}

// GenerateRequest contains the parameters for an LLM generation request.
// Build it with NewRequest and extend it with With; both return fresh values
// so a request handed to a client is never mutated afterwards.
type GenerateRequest struct {
	// Messages contains the conversation history.
	Messages []Message

	// Model is the bare vendor model identifier (e.g., "claude-haiku-4-5-20251001").
	// The client fills it in from the routed model name.
	Model string

	// Params contains all request parameters (temperature, max_tokens, tools, etc.)
	// Provider adapters extract what they support from this unified struct.
	Params *RequestParams

	// Headers are sent with the vendor request and override adapter defaults.
	Headers Headers
}

// RequestOption applies one named setting to a request under construction.
type RequestOption func(*GenerateRequest)

// NewRequest builds a request from options. Scalar options write distinct
// fields, so their order does not matter; messages, tools and stop sequences
// are appended in the order given.
func NewRequest(opts ...RequestOption) *GenerateRequest {
	req := &GenerateRequest{}
	for _, opt := range opts {
		opt(req)
	}
	return req
}

// With returns a copy of the request with opts applied.
func (r *GenerateRequest) With(opts ...RequestOption) *GenerateRequest {
	out := r.Clone()
	for _, opt := range opts {
		opt(out)
	}
	return out
}

// Clone returns a deep copy of the request.
func (r *GenerateRequest) Clone() *GenerateRequest {
	if r == nil {
		return &GenerateRequest{}
	}
	out := &GenerateRequest{
		Model:   r.Model,
		Params:  r.Params.Clone(),
		Headers: r.Headers.Clone(),
	}
	if r.Messages != nil {
		out.Messages = make([]Message, len(r.Messages))
		for i := range r.Messages {
			out.Messages[i] = r.Messages[i].Clone()
		}
	}
	return out
}

// Validate checks the request shape independent of any vendor.
func (r *GenerateRequest) Validate() error {
	if len(r.Messages) == 0 {
		return &ValidationError{Field: "messages", Reason: "at least one message is required"}
	}
	for i := range r.Messages {
		if err := r.Messages[i].Validate(); err != nil {
			return err
		}
	}
	return ValidateRequestParams(r.Params)
}

func (r *GenerateRequest) params() *RequestParams {
	if r.Params == nil {
		r.Params = &RequestParams{}
	}
	return r.Params
}

// WithModel sets the model identifier.
func WithModel(model string) RequestOption {
	return func(r *GenerateRequest) { r.Model = model }
}

// WithMessages appends messages to the conversation.
func WithMessages(msgs ...Message) RequestOption {
	return func(r *GenerateRequest) {
		for _, m := range msgs {
			r.Messages = append(r.Messages, m.Clone())
		}
	}
}

// WithUserText appends a user text message.
func WithUserText(text string) RequestOption {
	return WithMessages(UserMessage(text))
}

// WithSystem sets the system prompt parameter.
func WithSystem(system string) RequestOption {
	return func(r *GenerateRequest) { r.params().System = &system }
}

// WithMaxTokens sets max_tokens.
func WithMaxTokens(n int) RequestOption {
	return func(r *GenerateRequest) { r.params().MaxTokens = &n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) RequestOption {
	return func(r *GenerateRequest) { r.params().Temperature = &t }
}

// WithTopP sets nucleus sampling.
func WithTopP(p float64) RequestOption {
	return func(r *GenerateRequest) { r.params().TopP = &p }
}

// WithTopK sets top-k sampling.
func WithTopK(k int) RequestOption {
	return func(r *GenerateRequest) { r.params().TopK = &k }
}

// WithSeed sets the sampling seed.
func WithSeed(seed int) RequestOption {
	return func(r *GenerateRequest) { r.params().Seed = &seed }
}

// WithStop appends stop sequences.
func WithStop(stop ...string) RequestOption {
	return func(r *GenerateRequest) {
		p := r.params()
		p.Stop = append(p.Stop, stop...)
	}
}

// WithTools appends tool definitions.
func WithTools(tools ...Tool) RequestOption {
	return func(r *GenerateRequest) {
		p := r.params()
		for _, t := range tools {
			p.Tools = append(p.Tools, t.Clone())
		}
	}
}

// WithToolChoice sets the tool choice.
func WithToolChoice(choice ToolChoice) RequestOption {
	return func(r *GenerateRequest) { r.params().ToolChoice = &choice }
}

// WithThinking enables extended thinking at the given level ("low", "medium", "high").
func WithThinking(level string) RequestOption {
	return func(r *GenerateRequest) {
		p := r.params()
		enabled := true
		p.ThinkingEnabled = &enabled
		p.ThinkingLevel = &level
	}
}

// WithResponseFormat requests structured output.
func WithResponseFormat(format ResponseFormat) RequestOption {
	return func(r *GenerateRequest) {
		format.JSONSchema = cloneSchema(format.JSONSchema)
		r.params().ResponseFormat = &format
	}
}

// WithHeader sets a custom header; names are case-insensitive.
func WithHeader(name, value string) RequestOption {
	return func(r *GenerateRequest) {
		if r.Headers == nil {
			r.Headers = make(Headers)
		}
		r.Headers.Set(name, value)
	}
}

// SystemPrompt joins the System parameter and all system messages, in that
// order, separated by blank lines.
func (r *GenerateRequest) SystemPrompt() string {
	var parts []string
	if r.Params != nil && r.Params.System != nil && *r.Params.System != "" {
		parts = append(parts, *r.Params.System)
	}
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			if text := m.Text(); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// ConversationMessages returns the non-system messages in order.
func (r *GenerateRequest) ConversationMessages() []Message {
	return slices.DeleteFunc(slices.Clone(r.Messages), func(m Message) bool {
		return m.Role == RoleSystem
	})
}
