package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/doc-clustering/clusterview/internal/models"
	"github.com/doc-clustering/clusterview/internal/testutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialScreen(t *testing.T, srv *httptest.Server, id string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/screens/" + id + "/ws"
	return websocket.DefaultDialer.Dial(url, nil)
}

func readMessage(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WSMessage
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestWebSocket_StreamsUntilSettled(t *testing.T) {
	f := newFixture(t, testutil.Empty(), testutil.Empty(), testutil.Clusters(sampleClusters()))
	srv := httptest.NewServer(f.e)
	defer srv.Close()

	opened := f.screens.Open()
	ws, _, err := dialScreen(t, srv, opened.ID)
	require.NoError(t, err)

	var last models.ScreenState
	for !last.Status.Terminal() {
		msg := readMessage(t, ws)
		require.Equal(t, MsgTypeState, msg.Type)
		require.NotNil(t, msg.State)
		assert.GreaterOrEqual(t, msg.State.Version, last.Version)
		last = *msg.State
	}
	assert.Equal(t, models.ScreenStatusSuccess, last.Status)
	assert.Equal(t, sampleClusters(), last.Clusters)

	// Closing the page's socket tears the screen down
	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool { return f.screens.Count() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestWebSocket_ScreenClosedElsewhere(t *testing.T) {
	f := newFixture(t, testutil.Clusters(sampleClusters()))
	srv := httptest.NewServer(f.e)
	defer srv.Close()

	settled := f.openSettled(t)
	ws, _, err := dialScreen(t, srv, settled.ID)
	require.NoError(t, err)
	defer ws.Close()

	msg := readMessage(t, ws)
	assert.Equal(t, MsgTypeState, msg.Type)
	assert.Equal(t, settled.Version, msg.State.Version)

	require.NoError(t, f.screens.Close(settled.ID))

	msg = readMessage(t, ws)
	assert.Equal(t, MsgTypeClosed, msg.Type)
	assert.Nil(t, msg.State)
}

func TestWebSocket_UnknownScreen(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.e)
	defer srv.Close()

	_, resp, err := dialScreen(t, srv, "missing")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocket_WatchedScreenSurvivesCleanup(t *testing.T) {
	f := newFixture(t, testutil.Clusters(sampleClusters()))
	srv := httptest.NewServer(f.e)
	defer srv.Close()

	settled := f.openSettled(t)
	ws, _, err := dialScreen(t, srv, settled.ID)
	require.NoError(t, err)
	defer ws.Close()
	readMessage(t, ws)

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 0, f.screens.CleanupIdle(time.Millisecond))
	assert.Equal(t, 1, f.screens.Count())
}
