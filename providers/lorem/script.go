package lorem

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	loremgen "github.com/bozaro/golorem"
	"github.com/tidwall/gjson"

	"github.com/haowjy/unillm-go"
)

// blockKind is the kind of one scripted output block.
type blockKind int

const (
	kindThinking blockKind = iota
	kindText
	kindToolCall
)

// scriptBlock is one block of fake output. Text and thinking blocks stream
// word by word; tool calls stream their arguments in small pieces.
type scriptBlock struct {
	kind  blockKind
	words []string
	id    string
	name  string
	args  string
}

// script is the whole fake completion for one payload.
type script struct {
	provider    llmprovider.ProviderID
	model       string
	blocks      []scriptBlock
	inputTokens int
	outputWords int
	cutoff      bool
}

func (s *script) hasToolCalls() bool {
	for _, b := range s.blocks {
		if b.kind == kindToolCall {
			return true
		}
	}
	return false
}

// requestShape is what the fake needs to know about an encoded request.
type requestShape struct {
	model     string
	maxTokens int
	thinking  bool
	tools     []toolShape
}

type toolShape struct {
	name       string
	properties gjson.Result
}

// readPayload extracts the request shape from a vendor payload.
func readPayload(p *llmprovider.Payload) (requestShape, error) {
	if !gjson.ValidBytes(p.Body) {
		return requestShape{}, fmt.Errorf("lorem: payload body is not JSON")
	}
	body := gjson.ParseBytes(p.Body)
	var shape requestShape

	switch p.Provider {
	case llmprovider.ProviderOpenAI:
		shape.model = body.Get("model").String()
		shape.maxTokens = int(body.Get("max_completion_tokens").Int())
		shape.thinking = body.Get("reasoning_effort").Exists()
		body.Get("tools").ForEach(func(_, t gjson.Result) bool {
			shape.tools = append(shape.tools, toolShape{t.Get("function.name").String(), t.Get("function.parameters.properties")})
			return true
		})
	case llmprovider.ProviderAnthropic:
		shape.model = body.Get("model").String()
		shape.maxTokens = int(body.Get("max_tokens").Int())
		shape.thinking = body.Get("thinking.type").String() == "enabled"
		body.Get("tools").ForEach(func(_, t gjson.Result) bool {
			shape.tools = append(shape.tools, toolShape{t.Get("name").String(), t.Get("input_schema.properties")})
			return true
		})
	case llmprovider.ProviderGoogle:
		shape.model = modelFromURL(p.URL)
		shape.maxTokens = int(body.Get("generationConfig.maxOutputTokens").Int())
		shape.thinking = body.Get("generationConfig.thinkingConfig.includeThoughts").Bool()
		body.Get("tools.#.functionDeclarations|@flatten").ForEach(func(_, t gjson.Result) bool {
			shape.tools = append(shape.tools, toolShape{t.Get("name").String(), t.Get("parametersJsonSchema.properties")})
			return true
		})
	default:
		return requestShape{}, fmt.Errorf("lorem: unsupported provider %q", p.Provider)
	}
	return shape, nil
}

// modelFromURL pulls the model out of ".../models/{model}:generateContent".
func modelFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	_, rest, ok := strings.Cut(u.Path, "/models/")
	if !ok {
		return ""
	}
	model, _, _ := strings.Cut(rest, ":")
	return model
}

// buildScript plans the fake completion: an optional thinking block, a text
// block, then one tool call per round when tools are offered. Output stops at
// maxTokens words, which ends the completion with a length stop.
func (t *Transport) buildScript(p *llmprovider.Payload) (*script, error) {
	shape, err := readPayload(p)
	if err != nil {
		return nil, err
	}

	s := &script{
		provider:    p.Provider,
		model:       shape.model,
		inputTokens: len(p.Body) / 4,
	}
	budget := shape.maxTokens
	if budget <= 0 || budget > t.maxWords {
		budget = t.maxWords
	}

	// take reserves n words of the budget and reports how many fit
	take := func(n int) int {
		remaining := budget - s.outputWords
		if n >= remaining {
			s.cutoff = true
			n = remaining
		}
		s.outputWords += n
		return n
	}

	for round := 0; round < t.rounds && !s.cutoff; round++ {
		if shape.thinking {
			if n := take(t.wordsPerBlock); n > 0 {
				s.blocks = append(s.blocks, scriptBlock{kind: kindThinking, words: t.words(n)})
			}
		}
		if s.cutoff {
			break
		}
		if n := take(t.wordsPerBlock); n > 0 {
			s.blocks = append(s.blocks, scriptBlock{kind: kindText, words: t.words(n)})
		}
		if s.cutoff || len(shape.tools) == 0 {
			continue
		}

		tool := shape.tools[round%len(shape.tools)]
		args, err := t.arguments(tool.properties)
		if err != nil {
			return nil, err
		}
		take(len(args) / 4)
		s.blocks = append(s.blocks, scriptBlock{
			kind: kindToolCall,
			id:   fmt.Sprintf("lorem_%s_%d", tool.name, round),
			name: tool.name,
			args: args,
		})
	}
	return s, nil
}

// words returns exactly n lorem words.
func (t *Transport) words(n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, n)
	for len(out) < n {
		out = append(out, strings.Fields(t.generator.Sentence(5, 15))...)
	}
	return out[:n]
}

// arguments fills a tool's declared properties with plausible values.
func (t *Transport) arguments(properties gjson.Result) (string, error) {
	args := make(map[string]any)
	properties.ForEach(func(key, schema gjson.Result) bool {
		switch schema.Get("type").String() {
		case "integer", "number":
			args[key.String()] = 3
		case "boolean":
			args[key.String()] = true
		case "array":
			args[key.String()] = t.words(2)
		case "object":
			args[key.String()] = map[string]any{}
		default:
			if enum := schema.Get("enum.0"); enum.Exists() {
				args[key.String()] = enum.Value()
			} else {
				args[key.String()] = strings.Join(t.words(3), " ")
			}
		}
		return true
	})
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("lorem: marshal tool arguments: %w", err)
	}
	return string(data), nil
}

func newGenerator() *loremgen.Lorem {
	return loremgen.New()
}
