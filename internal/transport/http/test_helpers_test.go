package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/callrelay/internal/callengine"
	"github.com/vovakirdan/callrelay/internal/config"
	"github.com/vovakirdan/callrelay/internal/core"
	"github.com/vovakirdan/callrelay/internal/store"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.PingInterval = 0
	return &cfg
}

type testServer struct {
	*httptest.Server
	hub     *core.Hub
	stopHub context.CancelFunc
}

func (ts *testServer) wsURL(query string) string {
	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws?" + query
}

func startTestServer(t *testing.T, rows store.RowStore, engine callengine.Engine) *testServer {
	t.Helper()

	disabledLogger := zerolog.Nop()
	hub := core.NewHub(core.HubOptions{}, &disabledLogger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := NewServer(hub, Options{Rows: rows, Engine: engine}, testConfig(), &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{Server: ts, hub: hub, stopHub: cancel}
}
