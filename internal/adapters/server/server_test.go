package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/evanschultz/pitchside/internal/adapters/server/common"
)

func TestNewHandlerServesHealthAndAPI(t *testing.T) {
	readyErr := errors.New("database is locked")
	ready := func(context.Context) error { return readyErr }
	handler, cfg, err := NewHandler(Config{}, Dependencies{Pipeline: common.NewAppServiceAdapter(nil), Ready: ready})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if cfg.APIEndpoint != "/api/v1" || cfg.MCPEndpoint != "/mcp" || cfg.HTTPBind != defaultBindAddress {
		t.Fatalf("unexpected normalized config %#v", cfg)
	}

	cases := []struct {
		path string
		want int
	}{
		{path: "/healthz", want: http.StatusOK},
		{path: "/readyz", want: http.StatusServiceUnavailable},
		{path: "/api/v1/leads", want: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.want {
			t.Fatalf("%s status = %d, want %d body=%s", tc.path, rec.Code, tc.want, rec.Body.String())
		}
	}

	readyErr = nil
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("readyz after recovery = %d %s", rec.Code, rec.Body.String())
	}
}

func TestNewHandlerRejectsBadConfig(t *testing.T) {
	if _, _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("expected error without pipeline dependency")
	}
	_, _, err := NewHandler(Config{APIEndpoint: "/x", MCPEndpoint: "x/"}, Dependencies{Pipeline: common.NewAppServiceAdapter(nil)})
	if err == nil {
		t.Fatal("expected endpoint collision error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, Config{HTTPBind: "127.0.0.1:0"}, Dependencies{Pipeline: common.NewAppServiceAdapter(nil)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

type capturedLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *capturedLogger) record(level string, msg any, keyvals ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprint(append([]any{level, msg}, keyvals...)...))
}

func (l *capturedLogger) Info(msg any, keyvals ...any)  { l.record("INFO ", msg, keyvals...) }
func (l *capturedLogger) Error(msg any, keyvals ...any) { l.record("ERROR ", msg, keyvals...) }

func TestNewHandlerStatusBodyNamesService(t *testing.T) {
	handler, _, err := NewHandler(Config{ServerVersion: "1.2.3"}, Dependencies{
		Pipeline: common.NewAppServiceAdapter(nil),
		Ready:    func(context.Context) error { return errors.New("database is locked") },
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var body statusBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal() error = %v body=%s", err, rec.Body.String())
	}
	if body.Status != "unavailable" || body.Service != "pitchside" || body.Version != "1.2.3" || body.Error != "database is locked" {
		t.Fatalf("unexpected readyz body %#v", body)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("Cache-Control = %q, want no-store", got)
	}
}

func TestNewHandlerLogsRequests(t *testing.T) {
	logger := &capturedLogger{}
	handler, _, err := NewHandler(Config{}, Dependencies{Pipeline: common.NewAppServiceAdapter(nil), Logger: logger})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	for _, path := range []string{"/healthz", "/api/v1/leads"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if len(logger.lines) != 2 {
		t.Fatalf("expected two request lines, got %q", logger.lines)
	}
	if !strings.HasPrefix(logger.lines[0], "INFO http request") || !strings.Contains(logger.lines[0], "/healthz") {
		t.Fatalf("unexpected health log line %q", logger.lines[0])
	}
	if !strings.HasPrefix(logger.lines[1], "INFO http request") || !strings.Contains(logger.lines[1], "503") {
		t.Fatalf("unexpected api log line %q", logger.lines[1])
	}
}

func TestRunReportsBoundAddressAndServes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	addrs := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{HTTPBind: "127.0.0.1:0"}, Dependencies{
			Pipeline: common.NewAppServiceAdapter(nil),
			OnListen: func(addr string) { addrs <- addr },
		})
	}()

	addr := <-addrs
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", resp.StatusCode)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunReturnsBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer ln.Close()

	called := false
	err = Run(context.Background(), Config{HTTPBind: ln.Addr().String()}, Dependencies{
		Pipeline: common.NewAppServiceAdapter(nil),
		OnListen: func(string) { called = true },
	})
	if err == nil || !strings.Contains(err.Error(), "listen on") {
		t.Fatalf("Run() error = %v, want listen failure", err)
	}
	if called {
		t.Fatal("expected OnListen not to run after a bind failure")
	}
}
