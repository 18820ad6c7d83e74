package llmprovider

// Shared conversion logic used by all adapters during message encoding.

// Turn is a run of consecutive messages that map to the same vendor role.
type Turn struct {
	Role   string
	Blocks []Block
}

// CoalesceTurns maps each non-system message to a vendor role with roleOf and
// merges adjacent messages that land on the same role. Anthropic and Gemini
// both require alternating turns, and both carry tool results inside the
// user turn.
//
// Example (Anthropic):
//
//	user "hi", assistant [tool_call], tool [result], user "thanks"
//	→ user ["hi"], assistant [tool_call], user [result, "thanks"]
func CoalesceTurns(messages []Message, roleOf func(Role) string) []Turn {
	turns := make([]Turn, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			continue
		}
		role := roleOf(msg.Role)
		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Blocks = append(turns[n-1].Blocks, msg.Blocks...)
			continue
		}
		turns = append(turns, Turn{Role: role, Blocks: append([]Block(nil), msg.Blocks...)})
	}
	return turns
}

// ToolCallNames indexes the names of all tool calls in the history by call ID.
// Gemini keys function responses by name, so adapters use this to recover the
// name of a tool result that only carries the call ID.
func ToolCallNames(messages []Message) map[string]string {
	names := make(map[string]string)
	for _, msg := range messages {
		for i := range msg.Blocks {
			if call := msg.Blocks[i].ToolCall; call != nil && call.ID != "" {
				names[call.ID] = call.Name
			}
		}
	}
	return names
}

// ToolResultName returns the function name for a tool result, preferring the
// name on the result itself.
func ToolResultName(result *ToolResult, names map[string]string) (string, bool) {
	if result.Name != "" {
		return result.Name, true
	}
	name, ok := names[result.ToolCallID]
	return name, ok && name != ""
}
