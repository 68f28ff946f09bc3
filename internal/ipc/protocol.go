package ipc

import (
	"encoding/json"
	"fmt"

	"tomato/internal/pomodoro"
)

const DefaultSocketPath = "/tmp/tomato.sock"

// Command represents a command sent over the socket
type Command struct {
	Name string      `json:"name"`
	Args interface{} `json:"args,omitempty"`
}

// Response represents a response sent back over the socket
type Response struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewResponse builds a successful response carrying data.
func NewResponse(message string, data interface{}) Response {
	resp := Response{Success: true, Message: message}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Response{Success: false, Message: fmt.Sprintf("Failed to encode response data: %v", err)}
		}
		resp.Data = raw
	}
	return resp
}

// Decode unmarshals the response data into v.
func (r Response) Decode(v interface{}) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("response carries no data")
	}
	return json.Unmarshal(r.Data, v)
}

// --- Command Argument Structs ---

type ChangeTypeArgs struct {
	Phase string `json:"phase"` // work, shortBreak, longBreak (aliases accepted)
}

// UpdateSettingsArgs carries only the fields to change.
type UpdateSettingsArgs = pomodoro.SettingsPatch

type ReportArgs struct {
	Days int `json:"days"`
}

// --- Command Names (Constants) ---

const (
	CmdPing           = "ping"
	CmdStart          = "start"
	CmdPause          = "pause"
	CmdReset          = "reset"
	CmdSkip           = "skip"
	CmdChangeType     = "change_type"
	CmdUpdateSettings = "update_settings"
	CmdGetStatus      = "get_status"
	CmdGetSettings    = "get_settings"
	CmdReport         = "report"
)

// StatusData is the get_status payload; every timer command answers with it too.
type StatusData = pomodoro.Snapshot
