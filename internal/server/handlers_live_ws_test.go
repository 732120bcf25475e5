package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func TestHandleLiveSnapshotStream_ClosesWhenSnapshotBuildFails(t *testing.T) {
	s := newTestServer(t)
	httpSrv := httptest.NewServer(s.router)
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/v1/live/stream/missing-strategy"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusInternalError, "test cleanup")

	_, _, err = conn.Read(ctx)
	require.Error(t, err)
}
