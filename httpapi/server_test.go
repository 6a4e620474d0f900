package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"pkt.systems/chatdeck/core"
	"pkt.systems/chatdeck/internal/eventbus"
	"pkt.systems/chatdeck/internal/persist"
	"pkt.systems/chatdeck/internal/platform"
	"pkt.systems/chatdeck/internal/platform/headless"
	"pkt.systems/chatdeck/internal/threads"
	"pkt.systems/chatdeck/schema"
	"pkt.systems/pslog"
)

type testEnv struct {
	handler http.Handler
	service *core.Compositor
	bus     *eventbus.Bus
	window  schema.WindowID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	logger := pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
	store, err := persist.NewStoreWithLogger(filepath.Join(dir, "state"), logger)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	rt := headless.New(headless.Options{Capabilities: platform.Capabilities{Reparent: true}})
	bus := eventbus.New(logger)
	svc, err := core.NewService(schema.ServiceConfig{
		StateDir: store.Dir(),
		TempDir:  filepath.Join(dir, "tmp"),
	}, core.ServiceDeps{
		Runtime:   rt,
		Registry:  persist.NewRegistry(store),
		Threads:   threads.NewStore(store, nil),
		Pointer:   rt,
		EventSink: bus,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := pslog.ContextWithLogger(context.Background(), logger)
	window, err := svc.CreateWindow(ctx, nil, true)
	if err != nil {
		t.Fatalf("create window: %v", err)
	}
	return &testEnv{
		handler: NewServer(Config{}, svc, bus).Handler(),
		service: svc,
		bus:     bus,
		window:  window.ID(),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body string, window schema.WindowID) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if window > 0 {
		req.Header.Set(WindowHeader, window.Key())
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestNewTabAndList(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/tab/new", `{"type":"chat","title":"Hello","active":true}`, env.window)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[schema.NewTabResponse](t, rec)
	if created.Tab == nil || created.Tab.Title != "Hello" || !created.Tab.Active {
		t.Fatalf("unexpected tab %+v", created.Tab)
	}

	rec = env.do(t, http.MethodGet, "/api/tab/window", "", env.window)
	listed := decodeBody[schema.ListTabsResponse](t, rec)
	if len(listed.Tabs) != 1 || listed.Tabs[0].ID != created.Tab.ID {
		t.Fatalf("unexpected window tabs %+v", listed.Tabs)
	}

	rec = env.do(t, http.MethodGet, "/api/tab/active?window_id="+env.window.Key(), "", 0)
	active := decodeBody[schema.GetActiveTabResponse](t, rec)
	if active.Tab == nil || active.Tab.ID != created.Tab.ID {
		t.Fatalf("unexpected active tab %+v", active.Tab)
	}

	rec = env.do(t, http.MethodPost, "/api/tab/close", `{"tabId":"`+string(created.Tab.ID)+`"}`, env.window)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on close, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/tab/new", `{"type":"chat","bogus":1}`, env.window)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/tab/new", "", env.window)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if rec.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("expected Allow header, got %q", rec.Header().Get("Allow"))
	}
}

func TestInvalidCallerWindow(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/tab/window", nil)
	req.Header.Set(WindowHeader, "zero")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/tab/new-with-thread", `{"threadId":"missing"}`, env.window)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, "/api/tab/new", `{"type":"nope"}`, env.window)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/tab/activate", `{}`, env.window)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty tab id, got %d", rec.Code)
	}
}

func TestDragEndpoints(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/drag/start", `{"draggedWidth":120}`, env.window)
	resp := decodeBody[schema.DragResponse](t, rec)
	if rec.Code != http.StatusOK || !resp.Tracking {
		t.Fatalf("expected tracking, got %d %+v", rec.Code, resp)
	}
	rec = env.do(t, http.MethodPost, "/api/drag/insert-target", `{"windowId":`+env.window.Key()+`,"insertIndex":2}`, env.window)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	target, ok := env.service.Drag().InsertTarget()
	if !ok || target.InsertIndex != 2 {
		t.Fatalf("unexpected insert target %+v ok=%v", target, ok)
	}
	rec = env.do(t, http.MethodPost, "/api/drag/stop", "", env.window)
	resp = decodeBody[schema.DragResponse](t, rec)
	if rec.Code != http.StatusOK || resp.Tracking {
		t.Fatalf("expected tracking stopped, got %d %+v", rec.Code, resp)
	}
}

func TestWindowsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/windows", "", 0)
	got := decodeBody[struct {
		Windows []schema.WindowInfo `json:"windows"`
	}](t, rec)
	if len(got.Windows) != 1 || got.Windows[0].ID != env.window || !got.Windows[0].Main {
		t.Fatalf("unexpected windows %+v", got.Windows)
	}
}

func TestStreamSkipsOwnStorageWrites(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set(WindowHeader, strconv.Itoa(int(env.window)))
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, ": ready") {
		t.Fatalf("expected ready comment, got %q err=%v", line, err)
	}

	env.bus.OnStorageSync(schema.StorageSyncEvent{Key: "k", Value: json.RawMessage(`1`), SourceID: schema.SourceForWindow(env.window)})
	env.bus.OnStorageSync(schema.StorageSyncEvent{Key: "k", Value: json.RawMessage(`2`), SourceID: "window:99"})

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: ")
		if !ok {
			continue
		}
		var event eventbus.Event
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if event.Type != eventbus.EventStorageSync || event.StorageSync == nil {
			t.Fatalf("unexpected event %+v", event)
		}
		if !bytes.Equal(event.StorageSync.Value, []byte(`2`)) {
			t.Fatalf("expected foreign write first, got %s", event.StorageSync.Value)
		}
		return
	}
}

func TestStreamRequiresWindow(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/stream", "", 0)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
