package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/doc-clustering/clusterview/internal/models"
	"github.com/doc-clustering/clusterview/internal/session"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// WebSocket message types for the screen stream (server -> client)
const (
	MsgTypeState  = "state"
	MsgTypeClosed = "closed"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsReadLimit  = 4096
)

// WSMessage is one frame of the screen stream
type WSMessage struct {
	Type      string              `json:"type"`
	State     *models.ScreenState `json:"state,omitempty"`
	Timestamp int64               `json:"timestamp"`
}

// WebSocketHandler streams screen state to the clusters page
type WebSocketHandler struct {
	screens  ScreenManager
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a new WebSocket stream handler
func NewStreamHandler(screens ScreenManager) StreamHandler {
	return &WebSocketHandler{
		screens: screens,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Pages are served from this same origin
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

// HandleScreenStream upgrades the connection and pushes every state change
// of the screen. The screen belongs to the connection: when the client goes
// away the screen is closed, which cancels its poll loop and releases its
// blobs.
func (wsh *WebSocketHandler) HandleScreenStream(c echo.Context) error {
	id := c.Param("id")

	state, err := wsh.screens.Get(id)
	if err != nil {
		return translateError(err, id, "")
	}
	release, err := wsh.screens.Watch(id)
	if err != nil {
		return translateError(err, id, "")
	}
	defer release()

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	log.Debugf("[Screen %s] Stream connected", shortID(id))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go wsh.readLoop(ws, cancel)
	go wsh.pingLoop(ctx, ws)

	if err := wsh.sendState(ws, state); err != nil {
		wsh.closeScreen(id)
		return nil
	}

	version := state.Version
	for {
		next, err := wsh.screens.Wait(ctx, id, version)
		if errors.Is(err, session.ErrScreenNotFound) {
			// Closed elsewhere; tell the page and end the stream
			wsh.send(ws, WSMessage{Type: MsgTypeClosed, Timestamp: time.Now().UnixMilli()})
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "screen closed"),
				time.Now().Add(wsWriteWait))
			return nil
		}
		if err != nil {
			break
		}

		version = next.Version
		if err := wsh.sendState(ws, next); err != nil {
			break
		}
	}

	log.Debugf("[Screen %s] Stream disconnected", shortID(id))
	wsh.closeScreen(id)
	return nil
}

// readLoop consumes client frames so control messages are processed, and
// cancels the stream once the client is gone.
func (wsh *WebSocketHandler) readLoop(ws *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	ws.SetReadLimit(wsReadLimit)
	ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("[WebSocket] Connection error: %v", err)
			}
			return
		}
	}
}

func (wsh *WebSocketHandler) pingLoop(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func (wsh *WebSocketHandler) sendState(ws *websocket.Conn, state models.ScreenState) error {
	return wsh.send(ws, WSMessage{
		Type:      MsgTypeState,
		State:     &state,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (wsh *WebSocketHandler) send(ws *websocket.Conn, msg WSMessage) error {
	ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := ws.WriteJSON(msg); err != nil {
		log.Debugf("[WebSocket] Failed to send message: %v", err)
		return err
	}
	return nil
}

func (wsh *WebSocketHandler) closeScreen(id string) {
	if err := wsh.screens.Close(id); err != nil && !errors.Is(err, session.ErrScreenNotFound) {
		log.Warnf("[Screen %s] Close after disconnect failed: %v", shortID(id), err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
