package protocol

import "encoding/json"

// Frame types exchanged with the live control server.
const (
	TypeChangeName = "change-name"
	TypeCommand    = "command"
	TypeWelcome    = "welcome"
)

// ChangeNameFrame announces the controller identity after the greeting.
type ChangeNameFrame struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// NewChangeNameFrame executes the newChangeNameFrame function.
func NewChangeNameFrame(name string) ChangeNameFrame {
	return ChangeNameFrame{Type: TypeChangeName, Name: name}
}

// CommandFrame carries one live command. Args is a mapping of argument name
// to value, or the empty string when the command takes no arguments; the
// field names are capitalised on the wire.
type CommandFrame struct {
	Type    string `json:"type"`
	Command string `json:"Command"`
	Args    any    `json:"Args"`
}

// NewCommandFrame executes the newCommandFrame function.
func NewCommandFrame(command string, args map[string]float64) CommandFrame {
	frame := CommandFrame{Type: TypeCommand, Command: command, Args: ""}
	if len(args) > 0 {
		frame.Args = args
	}
	return frame
}

// CommandArgs decodes the Args field of a received command frame.
func CommandArgs(raw json.RawMessage) (map[string]float64, error) {
	if len(raw) == 0 || string(raw) == `""` || string(raw) == "null" {
		return nil, nil
	}
	var args map[string]float64
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}

// IncomingCommandFrame is the receiving side of CommandFrame.
type IncomingCommandFrame struct {
	Type    string          `json:"type"`
	Name    string          `json:"name,omitempty"`
	Command string          `json:"Command,omitempty"`
	Args    json.RawMessage `json:"Args,omitempty"`
}

// WelcomeFrame is the greeting a control server sends on connect.
type WelcomeFrame struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// CommandRecord is one entry of a submitted program.
type CommandRecord struct {
	Command string             `json:"Command"`
	Args    map[string]float64 `json:"Args,omitempty"`
}

// ProgramRequest is the body of POST /program.
type ProgramRequest struct {
	Name     string          `json:"name"`
	Commands []CommandRecord `json:"commands"`
}

// ValidResponse is returned by both /program and /file. A missing field is
// treated as a malformed response by clients.
type ValidResponse struct {
	Valid *bool `json:"valid"`
}
