package llmprovider

import (
	"reflect"
	"testing"
)

func TestNewRequest_OptionOrderDoesNotMatter(t *testing.T) {
	tool, err := NewCustomTool("lookup", "Look something up", map[string]any{"type": "object"})
	if err != nil {
		t.Fatalf("NewCustomTool() error = %v", err)
	}

	a := NewRequest(
		WithUserText("hi"),
		WithTemperature(0.2),
		WithMaxTokens(256),
		WithHeader("x-trace-id", "abc"),
		WithTools(*tool),
		WithThinking("low"),
	)
	b := NewRequest(
		WithThinking("low"),
		WithHeader("X-Trace-Id", "abc"),
		WithTools(*tool),
		WithMaxTokens(256),
		WithUserText("hi"),
		WithTemperature(0.2),
	)

	if !reflect.DeepEqual(a, b) {
		t.Errorf("requests differ:\n%+v\n%+v", a, b)
	}
}

func TestGenerateRequest_WithIsMonotonic(t *testing.T) {
	base := NewRequest(WithUserText("first"), WithStop("END"))
	extended := base.With(WithMessages(AssistantMessage(TextBlock("reply"))), WithUserText("second"), WithStop("STOP"))

	if len(base.Messages) != 1 {
		t.Fatalf("base mutated: %d messages", len(base.Messages))
	}
	if len(base.Params.Stop) != 1 {
		t.Fatalf("base stop mutated: %v", base.Params.Stop)
	}

	if len(extended.Messages) != 3 {
		t.Fatalf("extended has %d messages, want 3", len(extended.Messages))
	}
	wantRoles := []Role{RoleUser, RoleAssistant, RoleUser}
	for i, role := range wantRoles {
		if extended.Messages[i].Role != role {
			t.Errorf("Messages[%d].Role = %s, want %s", i, extended.Messages[i].Role, role)
		}
	}
	if !reflect.DeepEqual(extended.Params.Stop, []string{"END", "STOP"}) {
		t.Errorf("Stop = %v, want [END STOP]", extended.Params.Stop)
	}
}

func TestWithMessages_CopiesInput(t *testing.T) {
	msg := NewMessage(RoleUser, TextBlock("original"))
	req := NewRequest(WithMessages(msg))

	msg.Blocks[0].Text = "changed"
	if got := req.Messages[0].Text(); got != "original" {
		t.Errorf("Text() = %q, want original", got)
	}
}

func TestGenerateRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *GenerateRequest
		wantErr bool
	}{
		{"empty", NewRequest(), true},
		{"single user message", NewRequest(WithUserText("hi")), false},
		{"unknown role", NewRequest(WithMessages(Message{Role: "robot", Blocks: []Block{TextBlock("x")}})), true},
		{"empty message", NewRequest(WithMessages(Message{Role: RoleUser})), true},
		{"bad params", NewRequest(WithUserText("hi"), WithTemperature(3)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateRequest_SystemPrompt(t *testing.T) {
	req := NewRequest(
		WithSystem("Be brief."),
		WithMessages(SystemMessage("Answer in French."), UserMessage("hello")),
	)

	if got, want := req.SystemPrompt(), "Be brief.\n\nAnswer in French."; got != want {
		t.Errorf("SystemPrompt() = %q, want %q", got, want)
	}

	conv := req.ConversationMessages()
	if len(conv) != 1 || conv[0].Role != RoleUser {
		t.Errorf("ConversationMessages() = %+v, want one user message", conv)
	}
	if len(req.Messages) != 2 {
		t.Errorf("ConversationMessages mutated request: %d messages", len(req.Messages))
	}
}

func TestHeaders_CaseInsensitiveMerge(t *testing.T) {
	defaults := NewHeaders("x-api-key", "default", "anthropic-version", "2023-06-01")
	custom := NewHeaders("X-API-KEY", "override", "x-extra", "1")

	merged := defaults.Merge(custom)

	if len(merged) != 3 {
		t.Fatalf("merged has %d keys, want 3: %v", len(merged), merged)
	}
	if v, _ := merged.Get("x-api-key"); v != "override" {
		t.Errorf("x-api-key = %q, want override", v)
	}
	if v, _ := defaults.Get("X-Api-Key"); v != "default" {
		t.Errorf("defaults mutated: x-api-key = %q", v)
	}
	if got := merged.HTTPHeader().Get("Anthropic-Version"); got != "2023-06-01" {
		t.Errorf("HTTPHeader anthropic-version = %q", got)
	}
}

func TestHeaders_MergeDuplicateSpellings(t *testing.T) {
	// Built as a literal, so both spellings survive uncanonicalized.
	custom := Headers{"x-api-key": "lower", "X-Api-Key": "upper"}

	for i := range 50 {
		merged := NewHeaders("x-api-key", "default").Merge(custom)
		if len(merged) != 1 {
			t.Fatalf("merged has %d keys, want 1: %v", len(merged), merged)
		}
		if v, _ := merged.Get("X-API-KEY"); v != "lower" {
			t.Fatalf("run %d: x-api-key = %q, want lower", i, v)
		}
	}
}
