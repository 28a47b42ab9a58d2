package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"crewplan/internal/opt"
	"crewplan/internal/transform"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	writeWait = 5 * time.Second
	readLimit = maxBody
)

// StreamHandler handles GET /v1/legs/stream?mode=leg|groups|campaign. The
// client sends one payload message; the server answers with progress events
// and finally one result or error event, then closes.
func (s *Server) StreamHandler(w http.ResponseWriter, r *http.Request) {
	mode := transform.ModeLeg
	if v := r.URL.Query().Get("mode"); v != "" {
		m, err := transform.ParseMode(v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		mode = m
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(readLimit)

	_, body, err := conn.ReadMessage()
	if err != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchClose(conn, cancel)

	topic := uuid.NewString()
	events := s.Broker.Subscribe(topic)
	defer s.Broker.Unsubscribe(topic, events)

	type outcome struct {
		out any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := s.run(ctx, s.publishing(topic), mode, body)
		done <- outcome{out, err}
	}()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if send(conn, evt) != nil {
				cancel()
			}
		case o := <-done:
			flush(conn, events)
			if o.err != nil {
				kind := opt.KindOf(o.err)
				_ = send(conn, Event{Type: "error", Data: Problem{
					Type: "about:blank", Title: "Planning failed", Detail: o.err.Error(), Kind: string(kind),
				}})
			} else {
				_ = send(conn, Event{Type: "result", Data: o.out})
			}
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// ProgressHandler handles GET /v1/progress?topic=... and forwards the
// progress of POST requests sent with the same X-Progress-Topic header
// until the client disconnects.
func (s *Server) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		writeProblem(w, http.StatusBadRequest, "Missing topic", "", r.URL.Path)
		return
	}
	// subscribe first so nothing published after the handshake is missed
	events := s.Broker.Subscribe(topic)
	defer s.Broker.Unsubscribe(topic, events)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchClose(conn, cancel)

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok || send(conn, evt) != nil {
				return
			}
		}
	}
}

// watchClose reads until the peer goes away, then cancels.
func watchClose(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func send(conn *websocket.Conn, evt Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(evt)
}

// flush forwards events already buffered on ch.
func flush(conn *websocket.Conn, ch chan Event) {
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			_ = send(conn, evt)
		default:
			return
		}
	}
}
