package webserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audsync/audsync/relay"
)

type fakeRelay struct {
	stats relay.Stats
}

func (f *fakeRelay) Stats() relay.Stats {
	return f.stats
}

func newTestServer(t *testing.T, r StatusProvider) *WebServer {
	t.Helper()

	web, err := NewWebServer(r, Address("127.0.0.1:0"), PushInterval(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, web.Start())
	t.Cleanup(func() { web.Stop() })
	return web
}

func TestStatusEndpoint(t *testing.T) {
	fake := &fakeRelay{
		stats: relay.Stats{
			Clients:        2,
			ReadyClients:   1,
			PacketsRelayed: 42,
			BytesRelayed:   1024,
			Sessions: []relay.SessionInfo{
				{ID: "a", Ready: true},
				{ID: "b", Ready: false},
			},
		},
	}
	web := newTestServer(t, fake)

	resp, err := http.Get(fmt.Sprintf("http://%s/api/status", web.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var got relay.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 2, got.Clients)
	assert.Equal(t, 1, got.ReadyClients)
	assert.Equal(t, uint64(42), got.PacketsRelayed)
	assert.Len(t, got.Sessions, 2)
}

func TestSessionEndpoint(t *testing.T) {
	fake := &fakeRelay{
		stats: relay.Stats{
			Clients:  1,
			Sessions: []relay.SessionInfo{{ID: "abc", Ready: true, PacketsIn: 7}},
		},
	}
	web := newTestServer(t, fake)

	resp, err := http.Get(fmt.Sprintf("http://%s/api/session/abc", web.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got relay.SessionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, uint64(7), got.PacketsIn)

	resp2, err := http.Get(fmt.Sprintf("http://%s/api/session/nope", web.Addr()))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestWebSocketPush(t *testing.T) {
	fake := &fakeRelay{stats: relay.Stats{Clients: 3}}
	web := newTestServer(t, fake)

	ws, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws", web.Addr()), nil)
	require.NoError(t, err)
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)

	var got relay.Stats
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 3, got.Clients)
}

func TestStatusAgainstLiveRelay(t *testing.T) {
	srv, err := relay.NewServer(relay.Address("127.0.0.1:0"))
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Stop() })

	web := newTestServer(t, srv)

	resp, err := http.Get(fmt.Sprintf("http://%s/api/status", web.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got relay.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 0, got.Clients)
	assert.NotNil(t, got.Sessions)
}
