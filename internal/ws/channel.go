package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aks-ide/gateway/internal/events"
	"github.com/aks-ide/gateway/internal/gateway"
)

// TerminalGateway is what the transport needs from the session layer.
// *gateway.Gateway satisfies it; tests use a recording stand-in.
type TerminalGateway interface {
	HandleLoadTerminal(ctx context.Context, ch gateway.ClientChannel, email string) error
	HandleTerminalInput(ch gateway.ClientChannel, email, data string) error
	HandleTerminalResize(ch gateway.ClientChannel, email string, rows, cols uint16) error
	HandleCloseTerminal(ch gateway.ClientChannel, email string) error
	HandleRepoTree(ch gateway.ClientChannel, email string) error
	HandleCreateRepo(ch gateway.ClientChannel, email, projectName string) error
	HandleGetFile(ctx context.Context, ch gateway.ClientChannel, email, path string) error
	HandleSaveFile(ctx context.Context, ch gateway.ClientChannel, email, path, content string) error
	HandleDisconnect(clientID string)
}

// Client is one websocket connection. Writes are mutex-serialized
// because the output pump and the event handlers emit concurrently.
type Client struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// ID returns the connection's identity for the session registry.
func (c *Client) ID() string {
	return c.id
}

// Emit writes one event frame to the client.
func (c *Client) Emit(event string, data any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(map[string]any{"event": event, "data": data})
}

// Server upgrades HTTP requests to websocket clients and runs their
// read loops.
type Server struct {
	gw       TerminalGateway
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

// NewServer creates the websocket endpoint handler. Connections from
// allowedOrigin (or with no Origin header, for non-browser clients) are
// accepted.
func NewServer(gw TerminalGateway, allowedOrigin string, log *zap.SugaredLogger) *Server {
	return &Server{
		gw: gw,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
		log: log.With("component", "ws"),
	}
}

// ServeHTTP upgrades the connection and processes frames until the
// client goes away. Inbound events are handled serially per client.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{id: uuid.NewString(), conn: conn}
	s.log.Infow("client connected", "client_id", client.id, "remote", r.RemoteAddr)

	defer func() {
		s.gw.HandleDisconnect(client.id)
		_ = conn.Close()
		s.log.Infow("client disconnected", "client_id", client.id)
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame Frame
		if err := json.Unmarshal(msg, &frame); err != nil {
			s.log.Warnw("dropping malformed frame", "client_id", client.id, "error", err)
			continue
		}
		s.dispatch(r.Context(), client, frame)
	}
}

// dispatch routes one inbound frame. Handler errors are already
// reported to the client by the gateway; here they are only logged.
func (s *Server) dispatch(ctx context.Context, client *Client, frame Frame) {
	var err error

	switch frame.Event {
	case events.Message:
		err = client.Emit(events.MessageBack, "Hello World!")

	case events.LoadTerminal:
		var p LoadTerminalPayload
		if err = json.Unmarshal(frame.Data, &p); err != nil {
			break
		}
		err = s.gw.HandleLoadTerminal(ctx, client, p.Email)
		// Acknowledged regardless of outcome; a failed load already
		// carried its own terminal_error.
		if emitErr := client.Emit(events.LoadedTerminal, "Terminal Loaded!"); err == nil {
			err = emitErr
		}

	case events.TerminalInput:
		var p TerminalInputPayload
		if err = json.Unmarshal(frame.Data, &p); err != nil {
			break
		}
		err = s.gw.HandleTerminalInput(client, p.Email, p.Data)

	case events.TerminalResize:
		var p TerminalResizePayload
		if err = json.Unmarshal(frame.Data, &p); err != nil {
			break
		}
		err = s.gw.HandleTerminalResize(client, p.Email, p.Rows, p.Cols)

	case events.CloseTerminal:
		var p CloseTerminalPayload
		if err = json.Unmarshal(frame.Data, &p); err != nil {
			break
		}
		err = s.gw.HandleCloseTerminal(client, p.Email)

	case events.RepoTree:
		var p RepoTreePayload
		if err = json.Unmarshal(frame.Data, &p); err != nil {
			break
		}
		err = s.gw.HandleRepoTree(client, p.Email)

	case events.CreateRepo:
		var p CreateRepoPayload
		if err = json.Unmarshal(frame.Data, &p); err != nil {
			break
		}
		err = s.gw.HandleCreateRepo(client, p.Email, p.ProjectName)

	case events.GetFilesData:
		var p FilePayload
		if err = json.Unmarshal(frame.Data, &p); err != nil {
			break
		}
		err = s.gw.HandleGetFile(ctx, client, p.Email, p.Path)

	case events.SaveData:
		var p SaveFilePayload
		if err = json.Unmarshal(frame.Data, &p); err != nil {
			break
		}
		err = s.gw.HandleSaveFile(ctx, client, p.Email, p.Path, p.Content)

	default:
		s.log.Warnw("unknown event", "client_id", client.id, "event", frame.Event)
		return
	}

	if err != nil {
		s.log.Debugw("event handling failed",
			"client_id", client.id, "event", frame.Event, "error", err)
	}
}
