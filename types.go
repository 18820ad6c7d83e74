package llmprovider

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// BlockType discriminates the content parts of a message and the
// content blocks of a streamed response.
type BlockType string

// Block type constants
const (
	BlockTypeText       BlockType = "text"
	BlockTypeThinking   BlockType = "thinking" // Extended thinking / reasoning
	BlockTypeToolCall   BlockType = "tool_call"
	BlockTypeToolResult BlockType = "tool_result" // Result sent back from a client-executed tool call
	BlockTypeImage      BlockType = "image"
)

// String returns the string form of the block type.
func (t BlockType) String() string {
	return string(t)
}

// ImageRef points at image content, either by URL or inline bytes.
//
// Provider mappings:
// - OpenAI: image_url.url (data: URLs are passed through unchanged)
// - Anthropic: source.type "url" or "base64"
// - Gemini: fileData (URL) or inlineData (bytes)
type ImageRef struct {
	// URL is a remote image location or a data: URL
	URL string `json:"url,omitempty"`

	// MediaType is the MIME type (e.g. "image/png"); required for inline data
	MediaType string `json:"media_type,omitempty"`

	// Data holds raw image bytes when the image is inline
	Data []byte `json:"data,omitempty"`

	// Detail is the OpenAI resolution hint ("low", "high", "auto")
	Detail string `json:"detail,omitempty"`
}

// Inline returns the media type and base64 payload of the image when it is
// carried inline, either as Data or as a data: URL.
func (r *ImageRef) Inline() (mediaType, encoded string, ok bool) {
	if len(r.Data) > 0 {
		return r.MediaType, base64.StdEncoding.EncodeToString(r.Data), true
	}
	rest, found := strings.CutPrefix(r.URL, "data:")
	if !found {
		return "", "", false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", "", false
	}
	return mediaType, payload, true
}

// ToolCall is a fully assembled function call requested by the model.
type ToolCall struct {
	// ID is the vendor-assigned (or synthesized) call identifier
	ID string `json:"id"`

	// Name is the function name
	Name string `json:"name"`

	// Arguments is the JSON-encoded argument object
	Arguments json.RawMessage `json:"arguments"`
}

// DecodeArguments unmarshals the call arguments into v.
func (c *ToolCall) DecodeArguments(v any) error {
	if len(c.Arguments) == 0 {
		return json.Unmarshal([]byte("{}"), v)
	}
	if err := json.Unmarshal(c.Arguments, v); err != nil {
		return fmt.Errorf("decode arguments of tool call %s: %w", c.Name, err)
	}
	return nil
}

// ToolResult is the output of a client-executed tool call, sent back to the model.
type ToolResult struct {
	// ToolCallID links the result to the originating ToolCall
	ToolCallID string `json:"tool_call_id"`

	// Name is the function name; optional, recovered from history when empty
	Name string `json:"name,omitempty"`

	// Content is the textual result
	Content string `json:"content"`

	// IsError marks a failed tool execution
	IsError bool `json:"is_error,omitempty"`
}

// Block represents one content part of a message or one content block of a
// response.
//
// User blocks: text, image, tool_result
// Assistant blocks: text, thinking, tool_call
//
// Exactly one of the payload fields is populated, selected by BlockType:
// - text, thinking: Text (thinking may carry Signature)
// - image: Image
// - tool_call: ToolCall
// - tool_result: ToolResult
type Block struct {
	BlockType BlockType `json:"block_type"`

	// Text contains the text for text/thinking blocks
	Text string `json:"text,omitempty"`

	// Signature is the opaque thinking signature (Anthropic) needed to replay thinking blocks
	Signature string `json:"signature,omitempty"`

	Image      *ImageRef   `json:"image,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// TextBlock creates a text block.
func TextBlock(text string) Block {
	return Block{BlockType: BlockTypeText, Text: text}
}

// ThinkingBlock creates a thinking block with an optional signature.
func ThinkingBlock(text, signature string) Block {
	return Block{BlockType: BlockTypeThinking, Text: text, Signature: signature}
}

// ImageBlock creates an image block referencing a URL (or data: URL).
func ImageBlock(url string) Block {
	return Block{BlockType: BlockTypeImage, Image: &ImageRef{URL: url}}
}

// InlineImageBlock creates an image block carrying raw bytes.
func InlineImageBlock(mediaType string, data []byte) Block {
	return Block{BlockType: BlockTypeImage, Image: &ImageRef{MediaType: mediaType, Data: data}}
}

// ToolCallBlock creates a tool call block. Empty arguments are normalized to "{}".
func ToolCallBlock(id, name string, arguments json.RawMessage) Block {
	if len(bytes.TrimSpace(arguments)) == 0 {
		arguments = json.RawMessage("{}")
	}
	return Block{BlockType: BlockTypeToolCall, ToolCall: &ToolCall{ID: id, Name: name, Arguments: arguments}}
}

// ToolResultBlock creates a tool result block.
func ToolResultBlock(toolCallID, name, content string, isError bool) Block {
	return Block{BlockType: BlockTypeToolResult, ToolResult: &ToolResult{
		ToolCallID: toolCallID,
		Name:       name,
		Content:    content,
		IsError:    isError,
	}}
}

// IsTextBlock returns true if this is a text block
func (b *Block) IsTextBlock() bool {
	return b.BlockType == BlockTypeText
}

// IsThinkingBlock returns true if this is a thinking block
func (b *Block) IsThinkingBlock() bool {
	return b.BlockType == BlockTypeThinking
}

// IsToolCallBlock returns true if this is a tool call block
func (b *Block) IsToolCallBlock() bool {
	return b.BlockType == BlockTypeToolCall && b.ToolCall != nil
}

// IsToolResultBlock returns true if this is a tool result block
func (b *Block) IsToolResultBlock() bool {
	return b.BlockType == BlockTypeToolResult && b.ToolResult != nil
}

// IsImageBlock returns true if this is an image block
func (b *Block) IsImageBlock() bool {
	return b.BlockType == BlockTypeImage && b.Image != nil
}

// Clone returns a deep copy of the block.
func (b Block) Clone() Block {
	out := b
	if b.Image != nil {
		img := *b.Image
		img.Data = bytes.Clone(b.Image.Data)
		out.Image = &img
	}
	if b.ToolCall != nil {
		call := *b.ToolCall
		call.Arguments = bytes.Clone(b.ToolCall.Arguments)
		out.ToolCall = &call
	}
	if b.ToolResult != nil {
		result := *b.ToolResult
		out.ToolResult = &result
	}
	return out
}

// Validate checks that the payload field matching BlockType is present.
func (b *Block) Validate() error {
	switch b.BlockType {
	case BlockTypeText, BlockTypeThinking:
		return nil
	case BlockTypeImage:
		if b.Image == nil || (b.Image.URL == "" && len(b.Image.Data) == 0) {
			return &ValidationError{Field: "image", Reason: "image block needs a URL or inline data"}
		}
		if len(b.Image.Data) > 0 && b.Image.MediaType == "" {
			return &ValidationError{Field: "image.media_type", Reason: "inline image needs a media type"}
		}
	case BlockTypeToolCall:
		if b.ToolCall == nil || b.ToolCall.Name == "" {
			return &ValidationError{Field: "tool_call.name", Reason: "tool call block needs a name"}
		}
		if len(b.ToolCall.Arguments) > 0 && !json.Valid(b.ToolCall.Arguments) {
			return &ValidationError{Field: "tool_call.arguments", Value: string(b.ToolCall.Arguments), Reason: "arguments must be valid JSON"}
		}
	case BlockTypeToolResult:
		if b.ToolResult == nil || b.ToolResult.ToolCallID == "" {
			return &ValidationError{Field: "tool_result.tool_call_id", Reason: "tool result block needs a tool call id"}
		}
	default:
		return &ValidationError{Field: "block_type", Value: string(b.BlockType), Reason: "unknown block type"}
	}
	return nil
}
