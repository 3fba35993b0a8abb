package backend

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParseClaudeJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ParsedOutput
	}{
		{
			name: "string result with snake_case session",
			in:   `{"result":"Hello world","session_id":"abc-123"}`,
			want: ParsedOutput{Text: "Hello world", SessionID: "abc-123"},
		},
		{
			name: "camelCase session",
			in:   `{"result":"Hi","sessionId":"camel-1"}`,
			want: ParsedOutput{Text: "Hi", SessionID: "camel-1"},
		},
		{
			name: "snake_case wins over camelCase",
			in:   `{"result":"Hi","session_id":"snake","sessionId":"camel"}`,
			want: ParsedOutput{Text: "Hi", SessionID: "snake"},
		},
		{
			name: "empty string result is a valid text",
			in:   `{"result":"","session_id":"s"}`,
			want: ParsedOutput{Text: "", SessionID: "s"},
		},
		{
			name: "array of blocks",
			in:   `{"result":[{"type":"text","text":"Line 1"},{"type":"tool_use","name":"bash"},{"type":"text","text":"Line 2"}],"session_id":"sess-456"}`,
			want: ParsedOutput{
				Text:      "Line 1\nLine 2",
				SessionID: "sess-456",
				ToolUses:  []ToolUse{{Name: "bash"}},
			},
		},
		{
			name: "empty array falls back to raw input",
			in:   `{"result":[],"session_id":"s1"}`,
			want: ParsedOutput{Text: `{"result":[],"session_id":"s1"}`, SessionID: "s1"},
		},
		{
			name: "only tool blocks fall back to raw input",
			in:   `{"result":[{"type":"tool_use","name":"Read","input":{"path":"a.go"}}]}`,
			want: ParsedOutput{
				Text:     `{"result":[{"type":"tool_use","name":"Read","input":{"path":"a.go"}}]}`,
				ToolUses: []ToolUse{{Name: "Read", Input: json.RawMessage(`{"path":"a.go"}`)}},
			},
		},
		{
			name: "metadata surfaced with string result",
			in:   `{"result":"done","num_turns":3,"total_cost_usd":0.042}`,
			want: ParsedOutput{Text: "done", NumTurns: 3, CostUSD: 0.042},
		},
		{
			name: "legacy cost field",
			in:   `{"result":"done","cost_usd":0.5}`,
			want: ParsedOutput{Text: "done", CostUSD: 0.5},
		},
		{
			name: "not JSON",
			in:   "  Error: not logged in\n",
			want: ParsedOutput{Text: "Error: not logged in"},
		},
		{
			name: "JSON array document",
			in:   `[1,2,3]`,
			want: ParsedOutput{Text: `[1,2,3]`},
		},
		{
			name: "object without result",
			in:   `{"type":"system","session_id":"s2"}`,
			want: ParsedOutput{Text: `{"type":"system","session_id":"s2"}`, SessionID: "s2"},
		},
		{
			name: "null result",
			in:   `{"result":null}`,
			want: ParsedOutput{Text: `{"result":null}`},
		},
		{
			name: "empty input",
			in:   "",
			want: ParsedOutput{Text: ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseClaudeJSON(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseClaudeJSON(%q)\n got  %+v\n want %+v", tt.in, got, tt.want)
			}
			if again := ParseClaudeJSON(tt.in); !reflect.DeepEqual(got, again) {
				t.Errorf("Expected identical results on reparse, got %+v then %+v", got, again)
			}
		})
	}
}

// TestParseClaudeJSON_ToolUseOrder verifies N tool blocks yield N ToolUses in source order with verbatim input
func TestParseClaudeJSON_ToolUseOrder(t *testing.T) {
	in := `{"result":[
		{"type":"tool_use","name":"Bash","input":{"command": "ls -la"}},
		{"type":"text","text":"between"},
		{"type":"tool_use","name":"Edit","input":{"file":"x.go","old":"a","new":"b"}},
		{"type":"tool_use","name":"Glob","input":["*.go"]}
	]}`

	got := ParseClaudeJSON(in)
	want := []ToolUse{
		{Name: "Bash", Input: json.RawMessage(`{"command": "ls -la"}`)},
		{Name: "Edit", Input: json.RawMessage(`{"file":"x.go","old":"a","new":"b"}`)},
		{Name: "Glob", Input: json.RawMessage(`["*.go"]`)},
	}
	if !reflect.DeepEqual(got.ToolUses, want) {
		t.Errorf("Expected tool uses %+v, got %+v", want, got.ToolUses)
	}
	if got.Text != "between" {
		t.Errorf("Expected text %q, got %q", "between", got.Text)
	}
}

func TestParseClaudeJSON_NoToolsIsNil(t *testing.T) {
	got := ParseClaudeJSON(`{"result":[{"type":"text","text":"only text"}]}`)
	if got.ToolUses != nil {
		t.Errorf("Expected nil ToolUses, got %#v", got.ToolUses)
	}
}

func TestParseClaudeLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []StreamEvent
	}{
		{
			name: "assistant text and tool use",
			in:   `{"type":"assistant","message":{"content":[{"type":"text","text":"Looking"},{"type":"tool_use","name":"Read","input":{"path":"go.mod"}}]}}`,
			want: []StreamEvent{
				{Kind: EventText, Data: "Looking"},
				{Kind: EventToolUse, Data: `{"name":"Read","input":{"path":"go.mod"}}`},
			},
		},
		{
			name: "assistant tool use without input",
			in:   `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Stop"}]}}`,
			want: []StreamEvent{
				{Kind: EventToolUse, Data: `{"name":"Stop","input":null}`},
			},
		},
		{
			name: "bare content_block_delta",
			in:   `{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hel"}}`,
			want: []StreamEvent{{Kind: EventText, Data: "Hel"}},
		},
		{
			name: "wrapped content_block_delta",
			in:   `{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"lo"}}}`,
			want: []StreamEvent{{Kind: EventText, Data: "lo"}},
		},
		{
			name: "input_json_delta is ignored",
			in:   `{"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"{"}}`,
		},
		{
			name: "tool result with string content",
			in:   `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"t1","content":"module x"}]}}`,
			want: []StreamEvent{{Kind: EventToolResult, Data: "module x"}},
		},
		{
			name: "tool result with structured content",
			in:   `{"type":"user","message":{"content":[{"type":"tool_result","content":[ {"type":"text", "text":"ok"} ]}]}}`,
			want: []StreamEvent{{Kind: EventToolResult, Data: `[{"type":"text","text":"ok"}]`}},
		},
		{
			name: "result line",
			in:   `{"type":"result","subtype":"success","result":"All done","session_id":"s"}`,
			want: []StreamEvent{{Kind: EventText, Data: "All done"}},
		},
		{
			name: "system init is discarded",
			in:   `{"type":"system","subtype":"init","session_id":"s"}`,
		},
		{
			name: "non-object JSON is discarded",
			in:   `42`,
		},
		{
			name: "malformed JSON is text",
			in:   `{"type":"assistant",`,
			want: []StreamEvent{{Kind: EventText, Data: `{"type":"assistant",`}},
		},
		{
			name: "plain text line",
			in:   "warning: update available",
			want: []StreamEvent{{Kind: EventText, Data: "warning: update available"}},
		},
		{
			name: "blank line",
			in:   "   ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseClaudeLine(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseClaudeLine(%q)\n got  %+v\n want %+v", tt.in, got, tt.want)
			}
		})
	}
}

// TestParseClaudeLine_ResultMatchesSingleShot verifies a result line reduces like the single-shot parser
func TestParseClaudeLine_ResultMatchesSingleShot(t *testing.T) {
	lines := []string{
		`{"type":"result","result":"plain"}`,
		`{"type":"result","result":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}`,
		`{"type":"result","result":[]}`,
	}
	for _, line := range lines {
		events := ParseClaudeLine(line)
		if len(events) != 1 {
			t.Fatalf("Expected one event for %s, got %+v", line, events)
		}
		if want := ParseClaudeJSON(line).Text; events[0].Data != want {
			t.Errorf("Line parser text %q differs from single-shot %q", events[0].Data, want)
		}
	}
}

func TestClaudeVerboseParser(t *testing.T) {
	lines := []string{
		`{"type":"system","subtype":"init","session_id":"v-1"}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"Let me look"},{"type":"tool_use","name":"Read","input":{"path":"a"}}]}}`,
		`{"type":"user","message":{"content":[{"type":"tool_result","content":"..."}]}}`,
		``,
		`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash","input":{"command":"go test"}}]}}`,
		`{"type":"result","result":"Tests pass","session_id":"v-1","num_turns":3,"total_cost_usd":0.12}`,
	}

	var p ClaudeVerboseParser
	for _, l := range lines {
		p.Feed(l)
	}

	want := ParsedOutput{
		Text:      "Tests pass",
		SessionID: "v-1",
		NumTurns:  3,
		CostUSD:   0.12,
		ToolUses: []ToolUse{
			{Name: "Read", Input: json.RawMessage(`{"path":"a"}`)},
			{Name: "Bash", Input: json.RawMessage(`{"command":"go test"}`)},
		},
	}
	if got := p.Result(); !reflect.DeepEqual(got, want) {
		t.Errorf("Result()\n got  %+v\n want %+v", got, want)
	}
}

func TestClaudeVerboseParser_NoResultLine(t *testing.T) {
	var p ClaudeVerboseParser
	p.Feed("not json at all")

	got := p.Result()
	if got.Text != "not json at all" {
		t.Errorf("Expected captured output as text, got %q", got.Text)
	}
	if got.ToolUses != nil {
		t.Errorf("Expected nil ToolUses, got %+v", got.ToolUses)
	}
}

func TestParseClaudeVerbose_JSONArray(t *testing.T) {
	in := `[
		{"type":"system","subtype":"init"},
		{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Grep","input":{"pattern":"TODO"}}]}},
		{"type":"result","result":"Found 2","session_id":"arr-1","num_turns":2}
	]`

	got := ParseClaudeVerbose(in)
	if got.Text != "Found 2" || got.SessionID != "arr-1" || got.NumTurns != 2 {
		t.Errorf("Unexpected result: %+v", got)
	}
	if len(got.ToolUses) != 1 || got.ToolUses[0].Name != "Grep" {
		t.Errorf("Expected one Grep tool use, got %+v", got.ToolUses)
	}
}

func TestParseClaudeVerbose_PlainJSONFallsThrough(t *testing.T) {
	got := ParseClaudeVerbose(`{"result":"single document","session_id":"x"}`)
	if got.Text != "single document" || got.SessionID != "x" {
		t.Errorf("Expected single-document reduction, got %+v", got)
	}
}
