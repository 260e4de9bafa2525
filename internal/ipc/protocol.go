// Package ipc exposes a unix-socket control channel for a running practice
// session: a second prepmate invocation sends commands to the owner process.
package ipc

// Commands accepted by a running practice session.
const (
	CommandStatus = "status"
	CommandNext   = "next"
	CommandStop   = "stop"
	CommandCancel = "cancel"
)

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK       bool   `json:"ok"`
	State    string `json:"state,omitempty"`
	Question int    `json:"question,omitempty"`
	Total    int    `json:"total,omitempty"`
	Interim  string `json:"interim,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}
