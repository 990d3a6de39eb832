package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quiz-session-engine/internal/app"
	"quiz-session-engine/internal/domain"
)

type WSHandler struct {
	engine   *app.Engine
	hub      *Hub
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(engine *app.Engine, hub *Hub, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		engine: engine,
		hub:    hub,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wsSubmitPayload struct {
	QuestionInstanceID string `json:"sessionQuestionId"`
	// ParticipantID defaults to the connection's observer id.
	ParticipantID string `json:"sessionParticipantId"`
	domain.Submission
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeWS upgrades /ws?sessionId=&observerId= and streams the session's events.
// Inbound "submit" and "syncMap" messages are routed to the engine as the connection's actor.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	observerID := r.URL.Query().Get("observerId")
	if sessionID == "" || observerID == "" {
		http.Error(w, "missing sessionId or observerId", http.StatusBadRequest)
		return
	}
	session, err := h.engine.GetSession(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, statusFor(domain.KindOf(err)), errorPayload(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := h.hub.Subscribe(sessionID, observerID)
	defer cancel()

	h.pump(r, conn, sessionID, observerID, session, updates)
}

// jsonConn is the part of *websocket.Conn the pump uses.
type jsonConn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
}

// pump serves one connection until its reader fails. Once the writer stops, pending
// replies and events are dropped instead of blocking the reader.
func (h *WSHandler) pump(r *http.Request, conn jsonConn, sessionID, observerID string, session domain.Session, updates <-chan domain.Event) {
	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Str("session_id", sessionID).Msg("ws write")
				return
			}
		}
	}()

	enqueue := func(msg outboundMessage) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case event, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: string(event.Type), Payload: event.Payload}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	enqueue(outboundMessage{Type: "connected", Payload: session})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var reply outboundMessage
		switch inbound.Type {
		case "submit":
			reply = h.handleSubmit(r, observerID, inbound.Payload)
		case "syncMap":
			reply = h.handleSyncMap(r, sessionID, observerID, inbound.Payload)
		default:
			reply = outboundMessage{Type: "error", Payload: errorBody{Code: domain.ErrInvalidInput.Code, Error: "unsupported message type"}}
		}
		if reply.Type != "" {
			enqueue(reply)
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handleSubmit(r *http.Request, observerID string, raw json.RawMessage) outboundMessage {
	var payload wsSubmitPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return errorMessage(domain.Invalid("invalid submit payload"))
	}
	if payload.ParticipantID == "" {
		payload.ParticipantID = observerID
	}
	res, err := h.engine.Submit(r.Context(), payload.ParticipantID, payload.QuestionInstanceID, payload.Submission)
	if err != nil {
		return errorMessage(err)
	}
	return outboundMessage{Type: "submitResult", Payload: res}
}

func (h *WSHandler) handleSyncMap(r *http.Request, sessionID, observerID string, raw json.RawMessage) outboundMessage {
	var state domain.MapState
	if err := json.Unmarshal(raw, &state); err != nil {
		return errorMessage(domain.Invalid("invalid map payload"))
	}
	if err := h.engine.SyncMapState(r.Context(), sessionID, observerID, state); err != nil {
		return errorMessage(err)
	}
	return outboundMessage{}
}

func errorMessage(err error) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload(err)}
}
