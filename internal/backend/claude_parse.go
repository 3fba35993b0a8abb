package backend

import (
	"encoding/json"
	"strings"
)

// ParseClaudeJSON reduces the single JSON document printed by
// `claude -p --output-format json`.
//
// A string "result" is the text. An array "result" contributes the text of
// every "text" block, joined by newlines, and every "tool_use" block as a
// ToolUse. When that leaves no text, or the document is not a JSON object at
// all, the text is the trimmed raw input. Session id, turn count and cost are
// read from any JSON object regardless of which result shape matched.
func ParseClaudeJSON(raw string) ParsedOutput {
	trimmed := strings.TrimSpace(raw)

	doc, ok := decodeObject(trimmed)
	if !ok {
		return ParsedOutput{Text: trimmed}
	}

	out := ParsedOutput{SessionID: claudeSessionID(doc)}
	if n, ok := doc.number("num_turns"); ok {
		out.NumTurns = int(n)
	}
	if c, ok := doc.number("total_cost_usd"); ok {
		out.CostUSD = c
	} else if c, ok := doc.number("cost_usd"); ok {
		out.CostUSD = c
	}

	if s, ok := asString(doc["result"]); ok {
		out.Text = s
		return out
	}

	if _, ok := asArray(doc["result"]); ok {
		var parts []string
		for _, block := range doc.objects("result") {
			switch block.str("type") {
			case "text":
				if text, ok := asString(block["text"]); ok {
					parts = append(parts, text)
				}
			case "tool_use":
				out.ToolUses = append(out.ToolUses, ToolUse{
					Name:  block.str("name"),
					Input: block.raw("input"),
				})
			}
		}
		if len(parts) > 0 {
			out.Text = strings.Join(parts, "\n")
			return out
		}
	}

	out.Text = trimmed
	return out
}

func claudeSessionID(doc object) string {
	if s, ok := asString(doc["session_id"]); ok {
		return s
	}
	return doc.str("sessionId")
}

// ParseClaudeLine decodes one line of `--output-format stream-json` output.
//
// Blank lines and well-formed JSON of an unrecognized shape yield nothing;
// a line that is not JSON at all is passed through as text.
func ParseClaudeLine(line string) []StreamEvent {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	ev, ok := decodeObject(line)
	if !ok {
		if json.Valid([]byte(line)) {
			return nil
		}
		return []StreamEvent{{Kind: EventText, Data: line}}
	}

	switch ev.str("type") {
	case "assistant":
		return claudeAssistantEvents(ev.obj("message"))
	case "user":
		return claudeToolResults(ev.obj("message"))
	case "stream_event":
		return claudeDelta(ev.obj("event"))
	case "content_block_delta":
		return claudeDelta(ev)
	case "result":
		return []StreamEvent{{Kind: EventText, Data: ParseClaudeJSON(line).Text}}
	default:
		return nil
	}
}

// claudeAssistantEvents emits the joined text of an assistant turn followed by
// one tool_use event per tool block.
func claudeAssistantEvents(message object) []StreamEvent {
	var events []StreamEvent
	var parts []string
	for _, block := range message.objects("content") {
		switch block.str("type") {
		case "text":
			if text := block.str("text"); text != "" {
				parts = append(parts, text)
			}
		case "tool_use":
			events = append(events, toolUseEvent(block.str("name"), block.raw("input")))
		}
	}
	if len(parts) > 0 {
		events = append([]StreamEvent{{Kind: EventText, Data: strings.Join(parts, "\n")}}, events...)
	}
	return events
}

// claudeToolResults emits one tool_result per tool_result block of a user turn.
// String content is passed as is; structured content is serialized.
func claudeToolResults(message object) []StreamEvent {
	var events []StreamEvent
	for _, block := range message.objects("content") {
		if block.str("type") != "tool_result" {
			continue
		}
		data, ok := asString(block["content"])
		if !ok && block.has("content") {
			data = compact(block["content"])
		}
		events = append(events, StreamEvent{Kind: EventToolResult, Data: data})
	}
	return events
}

func claudeDelta(event object) []StreamEvent {
	if event.str("type") != "content_block_delta" {
		return nil
	}
	delta := event.obj("delta")
	if delta.str("type") != "text_delta" {
		return nil
	}
	return []StreamEvent{{Kind: EventText, Data: delta.str("text")}}
}

// ClaudeVerboseParser reduces turn-structured output fed one line at a time.
// Tool uses are accumulated from every assistant turn; the terminal result
// line supplies text, session, turns and cost as ParseClaudeJSON would.
//
// The zero value is ready to use.
type ClaudeVerboseParser struct {
	captured []string
	toolUses []ToolUse
	result   *ParsedOutput
}

// Feed consumes one output line.
func (p *ClaudeVerboseParser) Feed(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	p.captured = append(p.captured, line)

	if ev, ok := decodeObject(line); ok {
		p.feedObject(ev, line)
	}
}

func (p *ClaudeVerboseParser) feedObject(ev object, raw string) {
	switch ev.str("type") {
	case "assistant":
		for _, block := range ev.obj("message").objects("content") {
			if block.str("type") == "tool_use" {
				p.toolUses = append(p.toolUses, ToolUse{
					Name:  block.str("name"),
					Input: block.raw("input"),
				})
			}
		}
	case "result":
		res := ParseClaudeJSON(raw)
		p.result = &res
	}
}

// Result returns the reduced output. Without a result line the whole captured
// output goes through ParseClaudeJSON.
func (p *ClaudeVerboseParser) Result() ParsedOutput {
	var out ParsedOutput
	if p.result != nil {
		out = *p.result
	} else {
		out = ParseClaudeJSON(strings.Join(p.captured, "\n"))
	}

	if len(p.toolUses) > 0 {
		merged := make([]ToolUse, 0, len(p.toolUses)+len(out.ToolUses))
		merged = append(merged, p.toolUses...)
		out.ToolUses = append(merged, out.ToolUses...)
	}
	return out
}

// ParseClaudeVerbose reduces complete verbose output. It accepts both the
// newline-delimited stream-json log and the single JSON array printed by
// `--output-format json --verbose`.
func ParseClaudeVerbose(raw string) ParsedOutput {
	var p ClaudeVerboseParser

	trimmed := strings.TrimSpace(raw)
	if elems, ok := asArray(json.RawMessage(trimmed)); ok {
		for _, el := range elems {
			if ev, ok := asObject(el); ok {
				p.captured = append(p.captured, string(el))
				p.feedObject(ev, string(el))
			}
		}
		if p.result == nil {
			p.captured = []string{trimmed}
		}
		return p.Result()
	}

	for _, line := range strings.Split(raw, "\n") {
		p.Feed(line)
	}
	return p.Result()
}
