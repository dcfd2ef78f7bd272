package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
	"github.com/seabird-lab/beacon/pkg/domain/model"
	"github.com/seabird-lab/beacon/pkg/domain/types"
	"github.com/seabird-lab/beacon/pkg/usecase"
	"github.com/seabird-lab/beacon/pkg/utils/errutil"
	"github.com/seabird-lab/beacon/pkg/utils/logging"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsMessage struct {
	Type     string          `json:"type"`
	Presence []presenceEntry `json:"presence,omitempty"`
	Event    *attentionEntry `json:"event,omitempty"`
}

// presenceWatchSocket streams presence updates for the requested ID set
// over a WebSocket. The first frame is a full snapshot; each following
// frame carries one changed record.
func presenceWatchSocket(uc *usecase.PresenceUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := parseUserIDs(r.URL.Query().Get("ids"))
		if len(ids) == 0 {
			errutil.HandleHTTP(r.Context(), w,
				goerr.Wrap(types.ErrInvalidArgument, "ids query parameter is required"),
				http.StatusBadRequest)
			return
		}

		watch, err := uc.Watch(r.Context(), ids)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, statusForError(err))
			return
		}
		defer watch.Close()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			_ = errutil.Handle(r.Context(), err, "websocket upgrade failed")
			return
		}
		defer conn.Close()

		snapshot := watch.Snapshot()
		entries := make([]presenceEntry, 0, len(snapshot))
		for _, id := range ids {
			entries = append(entries, newPresenceEntry(uc, snapshot[id]))
		}
		if err := writeFrame(conn, wsMessage{Type: "snapshot", Presence: entries}); err != nil {
			return
		}

		closed := watchConnClose(conn)
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()

		for {
			select {
			case rec, ok := <-watch.Updates():
				if !ok {
					return
				}
				msg := wsMessage{Type: "update", Presence: []presenceEntry{newPresenceEntry(uc, rec)}}
				if err := writeFrame(conn, msg); err != nil {
					return
				}

			case <-ticker.C:
				deadline := time.Now().Add(wsWriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}

			case <-closed:
				return

			case <-r.Context().Done():
				return
			}
		}
	}
}

// attentionListenSocket streams attention events addressed to user_id.
// Duplicate deliveries are already filtered upstream.
func attentionListenSocket(uc *usecase.AttentionUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := types.UserID(r.URL.Query().Get("user_id"))

		events := make(chan model.AttentionEvent, 16)
		listener, err := uc.Listen(r.Context(), userID, func(ev model.AttentionEvent) {
			select {
			case events <- ev:
			default:
				logging.From(r.Context()).Warn("attention socket consumer lagging, event dropped",
					"event_id", ev.ID,
				)
			}
		})
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, statusForError(err))
			return
		}
		defer listener.Close()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			_ = errutil.Handle(r.Context(), err, "websocket upgrade failed")
			return
		}
		defer conn.Close()

		closed := watchConnClose(conn)
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()

		for {
			select {
			case ev := <-events:
				entry := newAttentionEntry(ev)
				if err := writeFrame(conn, wsMessage{Type: "attention", Event: &entry}); err != nil {
					return
				}

			case <-ticker.C:
				deadline := time.Now().Add(wsWriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}

			case <-closed:
				return

			case <-r.Context().Done():
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, msg wsMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)) //nolint:errcheck
	return conn.WriteJSON(msg)
}

// watchConnClose drains the read side so close frames and pongs are
// processed, and signals when the peer goes away.
func watchConnClose(conn *websocket.Conn) <-chan struct{} {
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return closed
}
