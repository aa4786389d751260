package websocket

import (
	"io"
	"log/slog"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietConnection() *connection {
	return newConnection(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func envelope(t *testing.T, msgType string) []byte {
	t.Helper()
	data, err := marshalEnvelope(msgType, struct{}{})
	require.NoError(t, err)
	return data
}

func TestConnection_RetryGoesBeforeQueued(t *testing.T) {
	srv, ml := testServer(t)

	c := quietConnection()
	t.Cleanup(func() { _ = c.close() })

	// a failed write of "first" while "second" and "third" were waiting
	c.send(envelope(t, "second"))
	c.send(envelope(t, "third"))
	c.requeue(envelope(t, "first"))

	require.NoError(t, c.dial(wsURL(srv), ""))
	require.Eventually(t, func() bool { return len(ml.types()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"first", "second", "third"}, ml.types())
	assert.Nil(t, c.takeRetry())
}

func TestConnection_StartAfterClose(t *testing.T) {
	srv, _ := testServer(t)

	c := quietConnection()
	require.NoError(t, c.close())

	conn, _, err := ws.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)

	assert.False(t, c.start(conn))
	c.mu.Lock()
	assert.Nil(t, c.conn)
	c.mu.Unlock()
	assert.Error(t, conn.WriteMessage(ws.TextMessage, []byte("late")), "conn should be closed")
}

func TestConnection_DialAfterClose(t *testing.T) {
	srv, _ := testServer(t)

	c := quietConnection()
	require.NoError(t, c.close())
	assert.ErrorContains(t, c.dial(wsURL(srv), ""), "closed")
}
