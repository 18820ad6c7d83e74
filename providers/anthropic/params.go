package anthropic

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/haowjy/unillm-go"
)

// thinkingMinimum is the smallest budget_tokens the Messages API accepts.
const thinkingMinimum = 1024

// buildMessageParams constructs Anthropic API parameters from a GenerateRequest.
func buildMessageParams(req *llmprovider.GenerateRequest, catalog *llmprovider.Catalog) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.ConversationMessages())
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := req.Params
	if params == nil {
		params = &llmprovider.RequestParams{}
	}

	// max_tokens is mandatory on the Messages API
	maxTokens := params.GetMaxTokens(catalog.MaxTokens(llmprovider.ProviderAnthropic, req.Model))
	if maxTokens <= 0 {
		return anthropic.MessageNewParams{}, &llmprovider.ValidationError{
			Field:  "max_tokens",
			Reason: "anthropic requires max_tokens and no default is known for " + req.Model,
		}
	}

	apiParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}

	if params.Temperature != nil {
		apiParams.Temperature = anthropic.Float(*params.Temperature)
	}
	if params.TopP != nil {
		apiParams.TopP = anthropic.Float(*params.TopP)
	}
	if params.TopK != nil {
		apiParams.TopK = anthropic.Int(int64(*params.TopK))
	}
	if len(params.Stop) > 0 {
		apiParams.StopSequences = params.Stop
	}

	if system := req.SystemPrompt(); system != "" {
		apiParams.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}

	if params.IsThinkingEnabled() {
		budget := catalog.ThinkingBudgetFor(llmprovider.ProviderAnthropic, params)
		if budget < thinkingMinimum {
			return anthropic.MessageNewParams{}, &llmprovider.ValidationError{
				Field:  "thinking_budget",
				Value:  budget,
				Reason: fmt.Sprintf("must be at least %d", thinkingMinimum),
			}
		}
		if budget >= maxTokens {
			return anthropic.MessageNewParams{}, &llmprovider.ValidationError{
				Field:  "thinking_budget",
				Value:  budget,
				Reason: fmt.Sprintf("must be below max_tokens (%d)", maxTokens),
			}
		}
		apiParams.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(budget))
	}

	if len(params.Tools) > 0 {
		tools, err := convertTools(params.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		apiParams.Tools = tools
	}

	if params.ToolChoice != nil {
		choice, err := convertToolChoice(params.ToolChoice, params.ParallelToolCalls)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		apiParams.ToolChoice = choice
	}

	return apiParams, nil
}

// mapStopReason normalizes an Anthropic stop_reason.
func mapStopReason(reason anthropic.StopReason) llmprovider.StopReason {
	switch reason {
	case anthropic.StopReasonMaxTokens:
		return llmprovider.StopReasonLength
	case anthropic.StopReasonToolUse:
		return llmprovider.StopReasonToolCalls
	case anthropic.StopReasonRefusal:
		return llmprovider.StopReasonContentFilter
	default:
		// end_turn, stop_sequence, pause_turn
		return llmprovider.StopReasonStop
	}
}

// toUsage converts the vendor usage counters.
func toUsage(input, output, cacheRead int64) llmprovider.Usage {
	return llmprovider.Usage{
		InputTokens:     int(input),
		OutputTokens:    int(output),
		CacheReadTokens: int(cacheRead),
	}
}

func blockKey(index int64) string {
	return fmt.Sprintf("%d", index)
}
