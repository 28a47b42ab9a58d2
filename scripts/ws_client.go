// Package main runs a demo client that plans one leg and prints the solver
// progress streamed over WebSocket.
package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func main() {
	if len(os.Args) != 2 {
		log.Fatal("usage: ws_client request.json")
	}
	body, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)
	topic := uuid.NewString()

	// Watch the topic before planning so no progress is missed
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/progress", RawQuery: url.Values{"topic": {topic}}.Encode()}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	go func() {
		for {
			var m event
			if err := c.ReadJSON(&m); err != nil {
				return
			}
			log.Printf("WS <- %s stage=%v leg=%v objective=%v", m.Type, m.Data["stage"], m.Data["leg"], m.Data["objective"])
		}
	}()

	req, _ := http.NewRequest(http.MethodPost, base+"/v1/legs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Progress-Topic", topic)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	out, _ := io.ReadAll(resp.Body)
	log.Printf("POST /v1/legs -> %d (cache %s)", resp.StatusCode, resp.Header.Get("X-Cache"))

	// let trailing progress events arrive
	time.Sleep(200 * time.Millisecond)
	_, _ = os.Stdout.Write(out)
}
