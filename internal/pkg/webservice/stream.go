package webservice

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ohowland/powersim/internal/pkg/msg"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// frame is one websocket message: a committed tick or an alarm.
type frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// stream pushes every committed tick and alarm to the client until either
// side goes away.
func (a *App) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	pid := uuid.New()
	status, err := a.Publisher.Subscribe(pid, msg.Status)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("stream subscribe failed")
		return
	}
	alarms, err := a.Publisher.Subscribe(pid, msg.Alarm)
	if err != nil {
		a.Publisher.Unsubscribe(pid)
		a.Logger.Warn().Err(err).Msg("stream subscribe failed")
		return
	}
	defer a.Publisher.Unsubscribe(pid)

	// the client never sends anything we use; reading detects the close
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := a.send(conn, frame{"state", a.Engine.Snapshot()}); err != nil {
		return
	}
	for {
		var f frame
		select {
		case m, ok := <-status:
			if !ok {
				return
			}
			f = frame{"state", m.Payload()}
		case m, ok := <-alarms:
			if !ok {
				return
			}
			f = frame{"alarm", m.Payload()}
		case <-gone:
			return
		}
		if err := a.send(conn, f); err != nil {
			a.Logger.Debug().Err(err).Msg("stream closed")
			return
		}
	}
}

func (a *App) send(conn *websocket.Conn, f frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}
