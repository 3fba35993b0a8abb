package backend

import (
	"encoding/json"
	"strings"
)

// ParseCodexJSONL reduces the event log printed by `codex exec --json`.
//
// The session is the thread_id of the thread.started event; older logs that
// lack it fall back to the first event carrying a top-level thread_id. Text is
// every completed agent_message plus legacy assistant "message" events, joined
// by newlines. Without any assistant text the last non-empty line is returned,
// or the trimmed input when there are no lines. Unparseable lines are skipped.
func ParseCodexJSONL(raw string) ParsedOutput {
	trimmed := strings.TrimSpace(raw)

	var (
		lines         []string
		texts         []string
		out           ParsedOutput
		legacySession string
	)
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)

		ev, ok := decodeObject(line)
		if !ok {
			continue
		}

		switch ev.str("type") {
		case "thread.started":
			if id := ev.str("thread_id"); id != "" {
				out.SessionID = id
			}
		case "turn.completed":
			out.NumTurns++
		case "item.completed":
			item := ev.obj("item")
			switch item.str("type") {
			case "agent_message":
				if text, ok := asString(item["text"]); ok {
					texts = append(texts, text)
				}
			case "command_execution", "mcp_tool_call":
				name, input := codexToolCall(item)
				out.ToolUses = append(out.ToolUses, ToolUse{Name: name, Input: input})
			}
		case "message":
			texts = append(texts, codexLegacyMessage(ev)...)
		}

		if legacySession == "" {
			legacySession = ev.str("thread_id")
		}
	}

	if out.SessionID == "" {
		out.SessionID = legacySession
	}

	switch {
	case len(texts) > 0:
		out.Text = strings.Join(texts, "\n")
	case len(lines) > 0:
		out.Text = lines[len(lines)-1]
	default:
		out.Text = trimmed
	}
	return out
}

// codexLegacyMessage extracts assistant text from the pre-item event shape:
// a string content, or an array of output_text parts.
func codexLegacyMessage(ev object) []string {
	if ev.str("role") != "assistant" {
		return nil
	}
	if s, ok := asString(ev["content"]); ok {
		return []string{s}
	}
	var texts []string
	for _, part := range ev.objects("content") {
		if part.str("type") != "output_text" {
			continue
		}
		if text, ok := asString(part["text"]); ok {
			texts = append(texts, text)
		}
	}
	return texts
}

// codexToolCall names a command_execution or mcp_tool_call item and returns
// its input verbatim.
func codexToolCall(item object) (string, json.RawMessage) {
	if item.str("type") == "command_execution" {
		return "command_execution", item.raw("command")
	}

	name := item.str("tool")
	if name == "" {
		name = item.str("name")
	}
	if name == "" {
		name = item.str("tool_name")
	}
	if name == "" {
		name = "mcp_tool_call"
	}
	if server := item.str("server"); server != "" {
		name = server + "." + name
	}
	return name, item.raw("arguments")
}

// ParseCodexLine decodes one line of a live `codex exec --json` log.
//
// Blank lines and well-formed events of other types yield nothing; a line
// that is not JSON at all is passed through as text.
func ParseCodexLine(line string) []StreamEvent {
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
	case "item.started":
		item := ev.obj("item")
		switch item.str("type") {
		case "command_execution", "mcp_tool_call":
			name, input := codexToolCall(item)
			return []StreamEvent{toolUseEvent(name, input)}
		}
	case "item.completed":
		item := ev.obj("item")
		switch item.str("type") {
		case "agent_message":
			return []StreamEvent{{Kind: EventText, Data: item.str("text")}}
		case "command_execution":
			if out := item.str("aggregated_output"); out != "" {
				return []StreamEvent{{Kind: EventToolResult, Data: out}}
			}
			return []StreamEvent{{Kind: EventToolResult, Data: compact(ev["item"])}}
		case "mcp_tool_call", "file_change":
			return []StreamEvent{{Kind: EventToolResult, Data: compact(ev["item"])}}
		}
	case "message":
		var events []StreamEvent
		for _, text := range codexLegacyMessage(ev) {
			events = append(events, StreamEvent{Kind: EventText, Data: text})
		}
		return events
	}
	return nil
}
