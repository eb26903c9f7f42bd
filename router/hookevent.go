package router

import (
	"bytes"
	"encoding/json"
)

// HookEvent is one record of the hook event log.
type HookEvent struct {
	HookEventName        string `json:"hook_event_name"`
	SessionID            string `json:"session_id"`
	TranscriptPath       string `json:"transcript_path,omitempty"`
	Cwd                  string `json:"cwd,omitempty"`
	Source               string `json:"source,omitempty"`
	Model                string `json:"model,omitempty"`
	Reason               string `json:"reason,omitempty"`
	AgentID              string `json:"agent_id,omitempty"`
	AgentType            string `json:"agent_type,omitempty"`
	LastAssistantMessage string `json:"last_assistant_message,omitempty"`
	StopHookActive       *bool  `json:"stop_hook_active,omitempty"`
}

// ParseHookEvent decodes one log line. Lines that are not JSON objects or
// lack the event name or session id are rejected.
func ParseHookEvent(line []byte) (HookEvent, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return HookEvent{}, false
	}
	var ev HookEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return HookEvent{}, false
	}
	if ev.HookEventName == "" || ev.SessionID == "" {
		return HookEvent{}, false
	}
	return ev, true
}
