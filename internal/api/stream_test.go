package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil collects events until one of type last arrives.
func readUntil(t *testing.T, conn *websocket.Conn, last ...string) []Event {
	t.Helper()
	var events []Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(20*time.Second)))
	for {
		var evt Event
		require.NoError(t, conn.ReadJSON(&evt))
		events = append(events, evt)
		for _, l := range last {
			if evt.Type == l {
				return events
			}
		}
	}
}

func TestStreamLeg(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Routes())
	defer srv.Close()

	conn := dial(t, srv, "/v1/legs/stream")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(legBody)))
	events := readUntil(t, conn, "result", "error")

	final := events[len(events)-1]
	require.Equal(t, "result", final.Type, "%+v", final.Data)
	data, ok := final.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "OPTIMAL", data["status"])
	for _, evt := range events[:len(events)-1] {
		assert.Equal(t, "progress", evt.Type)
	}
}

func TestStreamReportsErrors(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Routes())
	defer srv.Close()

	conn := dial(t, srv, "/v1/legs/stream?mode=groups")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"balloons":[]}`)))
	events := readUntil(t, conn, "result", "error")
	final := events[len(events)-1]
	require.Equal(t, "error", final.Type)
	assert.Equal(t, "input", final.Data.(map[string]any)["kind"])

	rr := do(t, srv.Config.Handler, http.MethodGet, "/v1/legs/stream?mode=routes", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProgressTopic(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Routes())
	defer srv.Close()

	assert.Equal(t, http.StatusBadRequest, do(t, srv.Config.Handler, http.MethodGet, "/v1/progress", "").Code)

	conn := dial(t, srv, "/v1/progress?topic=camp-7")
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/legs", strings.NewReader(legBody))
	require.NoError(t, err)
	req.Header.Set(ProgressHeader, "camp-7")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := readUntil(t, conn, "progress")
	data := events[0].Data.(map[string]any)
	assert.NotEmpty(t, data["runId"])
	assert.Contains(t, []any{"clusters", "leg"}, data["stage"])
}
