// Package ws is the websocket transport: one connection per client, one
// JSON frame per event, a serial read loop dispatching into the gateway.
package ws

import "encoding/json"

// Frame is the wire format in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound payloads. Every terminal operation is keyed by the user's
// email; the connection itself carries no identity.

type LoadTerminalPayload struct {
	Email string `json:"email"`
}

type TerminalInputPayload struct {
	Email string `json:"email"`
	Data  string `json:"data"`
}

type TerminalResizePayload struct {
	Email string `json:"email"`
	Rows  uint16 `json:"rows"`
	Cols  uint16 `json:"cols"`
}

type CloseTerminalPayload struct {
	Email string `json:"email"`
}

type RepoTreePayload struct {
	Email string `json:"email"`
}

type CreateRepoPayload struct {
	Email       string `json:"email"`
	ProjectName string `json:"project_name"`
}

type FilePayload struct {
	Email string `json:"email"`
	Path  string `json:"path"`
}

type SaveFilePayload struct {
	Email   string `json:"email"`
	Path    string `json:"path"`
	Content string `json:"content"`
}
