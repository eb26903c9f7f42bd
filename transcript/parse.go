package transcript

import (
	"time"

	"github.com/tidwall/gjson"
)

type Kind string

const (
	KindUser       Kind = "user"
	KindAssistant  Kind = "assistant"
	KindToolUse    Kind = "tool_use"
	KindToolResult Kind = "tool_result"
	KindSystem     Kind = "system"
	KindProgress   Kind = "progress"
)

const (
	toolInputPreview  = 50
	toolResultPreview = 80
)

// Item is one display entry derived from a transcript record.
type Item struct {
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Kind      Kind       `json:"kind"`
	Text      string     `json:"text"`
}

// ParseLine derives the display items of one transcript record. Malformed
// lines and record types without display text yield nothing.
func ParseLine(line []byte) []Item {
	if !gjson.ValidBytes(line) {
		return nil
	}
	rec := gjson.ParseBytes(line)
	if !rec.IsObject() {
		return nil
	}

	ts := parseTimestamp(rec.Get("timestamp"))

	switch rec.Get("type").String() {
	case "user":
		return messageItems(rec.Get("message.content"), ts, KindUser)
	case "assistant":
		return messageItems(rec.Get("message.content"), ts, KindAssistant)
	case "system":
		if text := firstText(rec.Get("message.content")); text != "" {
			return []Item{{Timestamp: ts, Kind: KindSystem, Text: text}}
		}
	case "progress":
		if c := rec.Get("content"); c.Type == gjson.String && c.Str != "" {
			return []Item{{Timestamp: ts, Kind: KindProgress, Text: c.Str}}
		}
	}
	return nil
}

func messageItems(content gjson.Result, ts *time.Time, kind Kind) []Item {
	if content.Type == gjson.String {
		if content.Str == "" {
			return nil
		}
		return []Item{{Timestamp: ts, Kind: kind, Text: content.Str}}
	}
	if !content.IsArray() {
		return nil
	}

	var items []Item
	content.ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			if text := block.Get("text").String(); text != "" {
				items = append(items, Item{Timestamp: ts, Kind: kind, Text: text})
			}
		case "tool_use":
			items = append(items, Item{Timestamp: ts, Kind: KindToolUse, Text: toolUseText(block)})
		case "tool_result":
			items = append(items, Item{Timestamp: ts, Kind: KindToolResult, Text: toolResultText(block.Get("content"))})
		}
		return true
	})
	return items
}

// toolUseText renders "name (key: value)" from the first string input field.
func toolUseText(block gjson.Result) string {
	name := block.Get("name").String()
	if name == "" {
		name = "unknown"
	}

	var detail string
	if input := block.Get("input"); input.IsObject() {
		input.ForEach(func(key, value gjson.Result) bool {
			if value.Type != gjson.String {
				return true
			}
			detail = key.String() + ": " + truncate(value.Str, toolInputPreview)
			return false
		})
	}
	if detail == "" {
		return name
	}
	return name + " (" + detail + ")"
}

func toolResultText(content gjson.Result) string {
	if content.Type == gjson.String {
		return truncate(content.Str, toolResultPreview)
	}
	if content.IsArray() {
		text := ""
		found := false
		content.ForEach(func(_, v gjson.Result) bool {
			if t := v.Get("text"); t.Type == gjson.String {
				text = truncate(t.Str, toolResultPreview)
				found = true
				return false
			}
			return true
		})
		if found {
			return text
		}
	}
	return "[result]"
}

func firstText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.Str
	}
	var text string
	content.ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			text = block.Get("text").String()
			return false
		}
		return true
	})
	return text
}

func parseTimestamp(v gjson.Result) *time.Time {
	if v.Type != gjson.String {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.Str)
	if err != nil {
		return nil
	}
	return &t
}

func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
