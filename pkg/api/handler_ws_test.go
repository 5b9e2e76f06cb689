package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	echo "github.com/labstack/echo/v5"

	"github.com/fcamachol/chatflow/pkg/fanout"
)

func setupWSTestServer(t *testing.T) (*httptest.Server, *fanout.Manager) {
	t.Helper()
	manager := fanout.NewManager(5 * time.Second)
	s := &Server{echo: echo.New(), connManager: manager}
	s.echo.GET("/events", s.eventsHandler)

	server := httptest.NewServer(s.echo)
	t.Cleanup(server.Close)
	return server, manager
}

func connectEventsWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + server.URL[len("http"):] + "/events"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readEventJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestEventsHandler_UpgradesAndDelegatesToManager(t *testing.T) {
	server, manager := setupWSTestServer(t)
	conn := connectEventsWS(t, server)

	msg := readEventJSON(t, conn)
	require.Equal(t, "connection.established", msg["type"])
	require.Equal(t, 1, manager.ActiveConnections())
}

func TestEventsHandler_WithoutManagerReturns503(t *testing.T) {
	s := &Server{echo: echo.New()}
	s.echo.GET("/events", s.eventsHandler)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
