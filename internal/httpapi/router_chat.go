package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dwizi/project-assistant/internal/assistant"
)

const (
	socketReadLimit    = 64 << 10
	socketWriteTimeout = 10 * time.Second
)

type chatRequest struct {
	ProjectID      string `json:"project_id"`
	RequesterID    string `json:"requester_id"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

func (c chatRequest) turnInput() assistant.TurnInput {
	return assistant.TurnInput{
		ProjectID:      strings.TrimSpace(c.ProjectID),
		RequesterID:    strings.TrimSpace(c.RequesterID),
		ConversationID: strings.TrimSpace(c.ConversationID),
		Message:        c.Message,
	}
}

func (r *router) handleChat(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Assistant == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "assistant is unavailable"})
		return
	}

	var payload chatRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	output, err := r.deps.Assistant.HandleTurn(req.Context(), payload.turnInput())
	if err != nil {
		r.logTurnError(payload, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, output)
}

func (r *router) logTurnError(payload chatRequest, err error) {
	status := errorStatus(err)
	if status < http.StatusInternalServerError {
		return
	}
	r.deps.Logger.Error("assistant turn failed",
		"project_id", payload.ProjectID,
		"conversation_id", payload.ConversationID,
		"status", status,
		"error", err,
	)
}

var socketUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

type socketReply struct {
	assistant.TurnOutput
	Status int    `json:"status"`
	Error  string `json:"error,omitempty"`
}

// handleChatSocket runs one turn per JSON frame received, replying in order on the
// same connection until the client closes it.
func (r *router) handleChatSocket(w http.ResponseWriter, req *http.Request) {
	if r.deps.Assistant == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "assistant is unavailable"})
		return
	}
	conn, err := socketUpgrader.Upgrade(w, req, nil)
	if err != nil {
		r.deps.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(socketReadLimit)

	ctx := req.Context()
	for {
		var payload chatRequest
		if err := conn.ReadJSON(&payload); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				if writeErr := r.writeSocket(conn, socketReply{Status: http.StatusBadRequest, Error: "invalid payload"}); writeErr != nil {
					return
				}
				continue
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.deps.Logger.Debug("websocket read ended", "error", err)
			}
			return
		}

		reply := socketReply{Status: http.StatusOK}
		output, err := r.deps.Assistant.HandleTurn(ctx, payload.turnInput())
		if err != nil {
			r.logTurnError(payload, err)
			reply.Status = errorStatus(err)
			reply.Error = err.Error()
		} else {
			reply.TurnOutput = output
		}
		if err := r.writeSocket(conn, reply); err != nil {
			r.deps.Logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func (r *router) writeSocket(conn *websocket.Conn, reply socketReply) error {
	if err := conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(reply)
}
