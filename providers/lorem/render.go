package lorem

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haowjy/unillm-go"
)

// signature stands in for the opaque thinking signature vendors attach.
const signature = "bG9yZW0tc2lnbmF0dXJl"

// argChunk is how many bytes of tool arguments go in one fragment.
const argChunk = 8

type obj = map[string]any

// fragments collects rendered fragments, keeping the first marshal error.
type fragments struct {
	list []llmprovider.Fragment
	err  error
}

func (f *fragments) add(event string, v any) {
	if f.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		f.err = fmt.Errorf("lorem: render %s: %w", event, err)
		return
	}
	f.list = append(f.list, llmprovider.Fragment{Event: event, Data: data})
}

func renderStream(s *script) ([]llmprovider.Fragment, error) {
	var out fragments
	switch s.provider {
	case llmprovider.ProviderOpenAI:
		renderOpenAIStream(s, &out)
	case llmprovider.ProviderAnthropic:
		renderAnthropicStream(s, &out)
	case llmprovider.ProviderGoogle:
		renderGeminiStream(s, &out)
	default:
		return nil, fmt.Errorf("lorem: unsupported provider %q", s.provider)
	}
	return out.list, out.err
}

func renderBody(s *script) ([]byte, error) {
	switch s.provider {
	case llmprovider.ProviderOpenAI:
		return json.Marshal(openAIBody(s))
	case llmprovider.ProviderAnthropic:
		return json.Marshal(anthropicBody(s))
	case llmprovider.ProviderGoogle:
		return json.Marshal(geminiBody(s))
	}
	return nil, fmt.Errorf("lorem: unsupported provider %q", s.provider)
}

// wordDeltas splits a block into per-word deltas that concatenate back to
// the block text.
func wordDeltas(words []string) []string {
	deltas := make([]string, len(words))
	for i, w := range words {
		if i > 0 {
			w = " " + w
		}
		deltas[i] = w
	}
	return deltas
}

func argPieces(args string) []string {
	var pieces []string
	for len(args) > argChunk {
		pieces = append(pieces, args[:argChunk])
		args = args[argChunk:]
	}
	return append(pieces, args)
}

func stopReason(s *script, length, toolCalls, stop string) string {
	switch {
	case s.cutoff:
		return length
	case s.hasToolCalls():
		return toolCalls
	default:
		return stop
	}
}

// OpenAI Chat Completions

func renderOpenAIStream(s *script, out *fragments) {
	chunk := func(choices []obj, usage obj) obj {
		c := obj{"id": "chatcmpl-lorem", "object": "chat.completion.chunk", "model": s.model, "choices": choices}
		if usage != nil {
			c["usage"] = usage
		}
		return c
	}
	delta := func(d obj) []obj { return []obj{{"index": 0, "delta": d}} }

	tools := 0
	for _, b := range s.blocks {
		switch b.kind {
		case kindThinking:
			for _, d := range wordDeltas(b.words) {
				out.add("", chunk(delta(obj{"reasoning_content": d}), nil))
			}
		case kindText:
			for _, d := range wordDeltas(b.words) {
				out.add("", chunk(delta(obj{"content": d}), nil))
			}
		case kindToolCall:
			out.add("", chunk(delta(obj{"tool_calls": []obj{{
				"index": tools, "id": b.id, "type": "function",
				"function": obj{"name": b.name, "arguments": ""},
			}}}), nil))
			for _, piece := range argPieces(b.args) {
				out.add("", chunk(delta(obj{"tool_calls": []obj{{
					"index": tools, "function": obj{"arguments": piece},
				}}}), nil))
			}
			tools++
		}
	}

	finish := stopReason(s, "length", "tool_calls", "stop")
	out.add("", chunk([]obj{{"index": 0, "delta": obj{}, "finish_reason": finish}}, nil))
	out.add("", chunk([]obj{}, openAIUsage(s)))
	out.list = append(out.list, llmprovider.Fragment{Data: []byte("[DONE]")})
}

func openAIUsage(s *script) obj {
	return obj{
		"prompt_tokens":     s.inputTokens,
		"completion_tokens": s.outputWords,
		"total_tokens":      s.inputTokens + s.outputWords,
	}
}

func openAIBody(s *script) obj {
	var text, reasoning []string
	var calls []obj
	for _, b := range s.blocks {
		switch b.kind {
		case kindThinking:
			reasoning = append(reasoning, strings.Join(b.words, " "))
		case kindText:
			text = append(text, strings.Join(b.words, " "))
		case kindToolCall:
			calls = append(calls, obj{"id": b.id, "type": "function", "function": obj{"name": b.name, "arguments": b.args}})
		}
	}

	message := obj{"role": "assistant", "content": nil}
	if len(text) > 0 {
		message["content"] = strings.Join(text, " ")
	}
	if len(reasoning) > 0 {
		message["reasoning_content"] = strings.Join(reasoning, " ")
	}
	if len(calls) > 0 {
		message["tool_calls"] = calls
	}

	return obj{
		"id":     "chatcmpl-lorem",
		"object": "chat.completion",
		"model":  s.model,
		"choices": []obj{{
			"index":         0,
			"message":       message,
			"finish_reason": stopReason(s, "length", "tool_calls", "stop"),
		}},
		"usage": openAIUsage(s),
	}
}

// Anthropic Messages

func renderAnthropicStream(s *script, out *fragments) {
	out.add("message_start", obj{"type": "message_start", "message": obj{
		"id": "msg_lorem", "type": "message", "role": "assistant", "model": s.model,
		"content": []obj{}, "stop_reason": nil,
		"usage": obj{"input_tokens": s.inputTokens, "output_tokens": 1},
	}})
	out.add("ping", obj{"type": "ping"})

	for i, b := range s.blocks {
		switch b.kind {
		case kindThinking:
			out.add("content_block_start", obj{"type": "content_block_start", "index": i,
				"content_block": obj{"type": "thinking", "thinking": "", "signature": ""}})
			for _, d := range wordDeltas(b.words) {
				out.add("content_block_delta", obj{"type": "content_block_delta", "index": i,
					"delta": obj{"type": "thinking_delta", "thinking": d}})
			}
			out.add("content_block_delta", obj{"type": "content_block_delta", "index": i,
				"delta": obj{"type": "signature_delta", "signature": signature}})
		case kindText:
			out.add("content_block_start", obj{"type": "content_block_start", "index": i,
				"content_block": obj{"type": "text", "text": ""}})
			for _, d := range wordDeltas(b.words) {
				out.add("content_block_delta", obj{"type": "content_block_delta", "index": i,
					"delta": obj{"type": "text_delta", "text": d}})
			}
		case kindToolCall:
			out.add("content_block_start", obj{"type": "content_block_start", "index": i,
				"content_block": obj{"type": "tool_use", "id": b.id, "name": b.name, "input": obj{}}})
			for _, piece := range argPieces(b.args) {
				out.add("content_block_delta", obj{"type": "content_block_delta", "index": i,
					"delta": obj{"type": "input_json_delta", "partial_json": piece}})
			}
		}
		out.add("content_block_stop", obj{"type": "content_block_stop", "index": i})
	}

	out.add("message_delta", obj{"type": "message_delta",
		"delta": obj{"stop_reason": stopReason(s, "max_tokens", "tool_use", "end_turn"), "stop_sequence": nil},
		"usage": obj{"output_tokens": s.outputWords}})
	out.add("message_stop", obj{"type": "message_stop"})
}

func anthropicBody(s *script) obj {
	content := make([]obj, 0, len(s.blocks))
	for _, b := range s.blocks {
		switch b.kind {
		case kindThinking:
			content = append(content, obj{"type": "thinking", "thinking": strings.Join(b.words, " "), "signature": signature})
		case kindText:
			content = append(content, obj{"type": "text", "text": strings.Join(b.words, " ")})
		case kindToolCall:
			content = append(content, obj{"type": "tool_use", "id": b.id, "name": b.name, "input": json.RawMessage(b.args)})
		}
	}
	return obj{
		"id": "msg_lorem", "type": "message", "role": "assistant", "model": s.model,
		"content":       content,
		"stop_reason":   stopReason(s, "max_tokens", "tool_use", "end_turn"),
		"stop_sequence": nil,
		"usage":         obj{"input_tokens": s.inputTokens, "output_tokens": s.outputWords},
	}
}

// Gemini generateContent

func geminiParts(b scriptBlock, whole bool) []obj {
	switch b.kind {
	case kindThinking:
		if whole {
			return []obj{{"text": strings.Join(b.words, " "), "thought": true, "thoughtSignature": signature}}
		}
		parts := make([]obj, 0, len(b.words)+1)
		for _, d := range wordDeltas(b.words) {
			parts = append(parts, obj{"text": d, "thought": true})
		}
		return append(parts, obj{"thoughtSignature": signature})
	case kindText:
		if whole {
			return []obj{{"text": strings.Join(b.words, " ")}}
		}
		parts := make([]obj, 0, len(b.words))
		for _, d := range wordDeltas(b.words) {
			parts = append(parts, obj{"text": d})
		}
		return parts
	default:
		return []obj{{"functionCall": obj{"id": b.id, "name": b.name, "args": json.RawMessage(b.args)}}}
	}
}

func geminiUsage(s *script) obj {
	return obj{
		"promptTokenCount":     s.inputTokens,
		"candidatesTokenCount": s.outputWords,
		"totalTokenCount":      s.inputTokens + s.outputWords,
	}
}

func renderGeminiStream(s *script, out *fragments) {
	candidate := func(parts []obj) obj {
		return obj{"content": obj{"role": "model", "parts": parts}, "index": 0}
	}
	for _, b := range s.blocks {
		// One part per chunk, the way Gemini streams
		for _, part := range geminiParts(b, false) {
			out.add("", obj{"candidates": []obj{candidate([]obj{part})}, "modelVersion": s.model})
		}
	}
	last := candidate([]obj{})
	last["finishReason"] = stopReason(s, "MAX_TOKENS", "STOP", "STOP")
	out.add("", obj{"candidates": []obj{last}, "usageMetadata": geminiUsage(s), "modelVersion": s.model})
}

func geminiBody(s *script) obj {
	var parts []obj
	for _, b := range s.blocks {
		parts = append(parts, geminiParts(b, true)...)
	}
	return obj{
		"candidates": []obj{{
			"content":      obj{"role": "model", "parts": parts},
			"finishReason": stopReason(s, "MAX_TOKENS", "STOP", "STOP"),
			"index":        0,
		}},
		"usageMetadata": geminiUsage(s),
		"modelVersion":  s.model,
	}
}
