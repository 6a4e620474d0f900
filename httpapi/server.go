// Package httpapi exposes the compositor commands as JSON over HTTP and
// streams window events over server-sent events.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"pkt.systems/chatdeck/core"
	"pkt.systems/chatdeck/internal/eventbus"
	"pkt.systems/chatdeck/internal/logx"
	"pkt.systems/chatdeck/schema"
)

// WindowHeader names the window issuing a command.
const WindowHeader = "X-Chatdeck-Window"

// Server serves the command surface.
type Server struct {
	cfg     Config
	service core.Service
	bus     *eventbus.Bus
}

// NewServer constructs an HTTP server. A nil bus disables /api/stream.
func NewServer(cfg Config, service core.Service, bus *eventbus.Bus) *Server {
	return &Server{cfg: cfg, service: service, bus: bus}
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tab/new", s.route(http.MethodPost, s.handleNewTab))
	mux.HandleFunc("/api/tab/new-with-thread", s.route(http.MethodPost, s.handleNewTabWithThread))
	mux.HandleFunc("/api/tab/activate", s.route(http.MethodPost, s.handleActivate))
	mux.HandleFunc("/api/tab/active", s.route(http.MethodGet, s.handleActiveTab))
	mux.HandleFunc("/api/tab/window", s.route(http.MethodGet, s.handleWindowTabs))
	mux.HandleFunc("/api/tab/all", s.route(http.MethodGet, s.handleAllTabs))
	mux.HandleFunc("/api/tab/close", s.route(http.MethodPost, s.handleCloseTab))
	mux.HandleFunc("/api/tab/close-others", s.route(http.MethodPost, s.handleCloseOthers))
	mux.HandleFunc("/api/tab/close-offside", s.route(http.MethodPost, s.handleCloseOffside))
	mux.HandleFunc("/api/window/settings", s.route(http.MethodPost, s.handleSettings))
	mux.HandleFunc("/api/window/focus", s.route(http.MethodPost, s.handleFocus))
	mux.HandleFunc("/api/window/drop", s.route(http.MethodPost, s.handleDrop))
	mux.HandleFunc("/api/window/split", s.route(http.MethodPost, s.handleSplit))
	mux.HandleFunc("/api/window/move", s.route(http.MethodPost, s.handleMove))
	mux.HandleFunc("/api/windows", s.route(http.MethodGet, s.handleWindows))
	mux.HandleFunc("/api/drag/start", s.route(http.MethodPost, s.handleDragStart))
	mux.HandleFunc("/api/drag/stop", s.route(http.MethodPost, s.handleDragStop))
	mux.HandleFunc("/api/drag/insert-target", s.route(http.MethodPost, s.handleInsertTarget))
	mux.HandleFunc("/api/stream", s.route(http.MethodGet, s.handleStream))
	return withRequestLogging(mux)
}

type windowHandler func(http.ResponseWriter, *http.Request, schema.WindowID)

// route checks the method and resolves the caller window into the request
// context logger.
func (s *Server) route(method string, next windowHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		windowID, err := callerWindow(r)
		if err != nil {
			logx.Ctx(r.Context()).Warn("http caller window invalid", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		ctx := r.Context()
		if windowID > 0 {
			ctx = logx.ContextWithWindowLogger(ctx, logx.WithWindow(ctx, windowID), windowID)
		}
		next(w, r.WithContext(ctx), windowID)
	}
}

type newTabPayload struct {
	Title     string           `json:"title"`
	Type      schema.TabType   `json:"type"`
	Active    bool             `json:"active"`
	Href      string           `json:"href"`
	Content   string           `json:"content"`
	PreviewID schema.PreviewID `json:"previewId"`
	Private   bool             `json:"private"`
}

func (s *Server) handleNewTab(w http.ResponseWriter, r *http.Request, windowID schema.WindowID) {
	var payload newTabPayload
	if !s.decode(w, r, &payload) {
		return
	}
	resp, err := s.service.NewTab(r.Context(), schema.NewTabRequest{
		WindowID:  windowID,
		Title:     payload.Title,
		Type:      payload.Type,
		Active:    payload.Active,
		Href:      payload.Href,
		Content:   payload.Content,
		PreviewID: payload.PreviewID,
		Private:   payload.Private,
	})
	s.respond(w, r, "new tab", resp, err)
}

type newTabWithThreadPayload struct {
	ThreadID schema.ThreadID `json:"threadId"`
	Title    string          `json:"title"`
	Type     schema.TabType  `json:"type"`
	Active   bool            `json:"active"`
}

func (s *Server) handleNewTabWithThread(w http.ResponseWriter, r *http.Request, windowID schema.WindowID) {
	var payload newTabWithThreadPayload
	if !s.decode(w, r, &payload) {
		return
	}
	resp, err := s.service.NewTabWithThread(r.Context(), schema.NewTabWithThreadRequest{
		WindowID: windowID,
		ThreadID: payload.ThreadID,
		Title:    payload.Title,
		Type:     payload.Type,
		Active:   payload.Active,
	})
	s.respond(w, r, "new tab with thread", resp, err)
}

type tabPayload struct {
	TabID schema.TabID `json:"tabId"`
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request, windowID schema.WindowID) {
	var payload tabPayload
	if !s.decode(w, r, &payload) {
		return
	}
	resp, err := s.service.ActivateTab(r.Context(), schema.ActivateTabRequest{WindowID: windowID, TabID: payload.TabID})
	s.respond(w, r, "activate tab", resp, err)
}

func (s *Server) handleActiveTab(w http.ResponseWriter, r *http.Request, windowID schema.WindowID) {
	resp, err := s.service.GetActiveTab(r.Context(), schema.GetActiveTabRequest{WindowID: windowID})
	s.respond(w, r, "active tab", resp, err)
}

func (s *Server) handleWindowTabs(w http.ResponseWriter, r *http.Request, windowID schema.WindowID) {
	resp, err := s.service.GetAllTabsForWindow(r.Context(), schema.ListWindowTabsRequest{WindowID: windowID})
	s.respond(w, r, "window tabs", resp, err)
}

func (s *Server) handleAllTabs(w http.ResponseWriter, r *http.Request, _ schema.WindowID) {
	resp, err := s.service.GetAllTabs(r.Context(), schema.ListAllTabsRequest{})
	s.respond(w, r, "all tabs", resp, err)
}

type closeTabPayload struct {
	TabID               schema.TabID `json:"tabId"`
	FallbackActiveTabID schema.TabID `json:"fallbackActiveTabId"`
}

func (s *Server) handleCloseTab(w http.ResponseWriter, r *http.Request, windowID schema.WindowID) {
	var payload closeTabPayload
	if !s.decode(w, r, &payload) {
		return
	}
	resp, err := s.service.CloseTab(r.Context(), schema.CloseTabRequest{
		WindowID:            windowID,
		TabID:               payload.TabID,
		FallbackActiveTabID: payload.FallbackActiveTabID,
	})
	s.respond(w, r, "close tab", resp, err)
}

type closeManyPayload struct {
	TabID              schema.TabID   `json:"tabId"`
	IDsToClose         []schema.TabID `json:"idsToClose"`
	RemainingIDs       []schema.TabID `json:"remainingIds"`
	ShouldSwitchActive bool           `json:"shouldSwitchActive"`
}

func (s *Server) handleCloseOthers(w http.ResponseWriter, r *http.Request, windowID schema.WindowID) {
	var payload closeManyPayload
	if !s.decode(w, r, &payload) {
		return
	}
	resp, err := s.service.CloseOthers(r.Context(), schema.CloseOthersRequest{
		WindowID:   windowID,
		TabID:      payload.TabID,
		IDsToClose: payload.IDsToClose,
	})
	s.respond(w, r, "close others", resp, err)
}

func (s *Server) handleCloseOffside(w http.ResponseWriter, r *http.Request, windowID schema.WindowID) {
	var payload closeManyPayload
	if !s.decode(w, r, &payload) {
		return
	}
	resp, err := s.service.CloseOffside(r.Context(), schema.CloseOffsideRequest{
		WindowID:           windowID,
		TabID:              payload.TabID,
		IDsToClose:         payload.IDsToClose,
		RemainingIDs:       payload.RemainingIDs,
		ShouldSwitchActive: payload.ShouldSwitchActive,
	})
	s.respond(w, r, "close offside", resp, err)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request, windowID schema.WindowID) {
	var payload struct {
		Route string `json:"route"`
	}
	if !s.decode(w, r, &payload) {
		return
	}
	resp, err := s.service.OpenSettingsWindow(r.Context(), schema.OpenSettingsWindowRequest{WindowID: windowID, Route: payload.Route})
	s.respond(w, r, "open settings", resp, err)
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request, windowID schema.WindowID) {
	var payload struct {
		WindowID schema.WindowID `json:"windowId"`
		TabID    schema.TabID    `json:"tabId"`
	}
	if !s.decode(w, r, &payload) {
		return
	}
	target := payload.WindowID
	if target == 0 {
		target = windowID
	}
	resp, err := s.service.FocusWindow(r.Context(), schema.FocusWindowRequest{WindowID: target, TabID: payload.TabID})
	s.respond(w, r, "focus window", resp, err)
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request, windowID schema.WindowID) {
	var payload struct {
		TabID   schema.TabID `json:"tabId"`
		Pointer schema.Point `json:"pointer"`
	}
	if !s.decode(w, r, &payload) {
		return
	}
	resp, err := s.service.HandleDropAtPointer(r.Context(), schema.DropAtPointerRequest{WindowID: windowID, TabID: payload.TabID, Pointer: payload.Pointer})
	s.respond(w, r, "drop", resp, err)
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request, windowID schema.WindowID) {
	var payload tabPayload
	if !s.decode(w, r, &payload) {
		return
	}
	resp, err := s.service.SplitWindow(r.Context(), schema.SplitWindowRequest{WindowID: windowID, TabID: payload.TabID})
	s.respond(w, r, "split window", resp, err)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request, windowID schema.WindowID) {
	var payload struct {
		TabID          schema.TabID    `json:"tabId"`
		TargetWindowID schema.WindowID `json:"targetWindowId"`
		InsertIndex    *int            `json:"insertIndex"`
	}
	if !s.decode(w, r, &payload) {
		return
	}
	resp, err := s.service.MoveTabIntoExistingWindow(r.Context(), schema.MoveTabRequest{
		WindowID:       windowID,
		TabID:          payload.TabID,
		TargetWindowID: payload.TargetWindowID,
		InsertIndex:    payload.InsertIndex,
	})
	s.respond(w, r, "move tab", resp, err)
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request, _ schema.WindowID) {
	writeJSON(w, http.StatusOK, map[string]any{"windows": s.service.Windows(r.Context())})
}

func (s *Server) handleDragStart(w http.ResponseWriter, r *http.Request, windowID schema.WindowID) {
	var payload struct {
		DraggedWidth int `json:"draggedWidth"`
	}
	if !s.decode(w, r, &payload) {
		return
	}
	resp, err := s.service.StartTracking(r.Context(), schema.StartTrackingRequest{WindowID: windowID, DraggedWidth: payload.DraggedWidth})
	s.respond(w, r, "drag start", resp, err)
}

func (s *Server) handleDragStop(w http.ResponseWriter, r *http.Request, windowID schema.WindowID) {
	var payload struct{}
	if !s.decode(w, r, &payload) {
		return
	}
	resp, err := s.service.StopTracking(r.Context(), schema.StopTrackingRequest{WindowID: windowID})
	s.respond(w, r, "drag stop", resp, err)
}

func (s *Server) handleInsertTarget(w http.ResponseWriter, r *http.Request, windowID schema.WindowID) {
	var target schema.InsertTarget
	if !s.decode(w, r, &target) {
		return
	}
	resp, err := s.service.UpdateInsertTarget(r.Context(), schema.UpdateInsertTargetRequest{WindowID: windowID, Target: target})
	s.respond(w, r, "insert target", resp, err)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, windowID schema.WindowID) {
	if windowID <= 0 {
		writeError(w, http.StatusBadRequest, schema.ErrInvalidWindow)
		return
	}
	if s.bus == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("event stream disabled"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.Ctx(r.Context())
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := s.bus.Subscribe(windowID)
	defer unsubscribe()
	_, _ = io.WriteString(w, ": ready\n\n")
	flusher.Flush()

	own := schema.SourceForWindow(windowID)
	log.Info("http stream opened")
	for {
		select {
		case <-r.Context().Done():
			log.Info("http stream closed")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Type == eventbus.EventStorageSync && event.StorageSync != nil && event.StorageSync.SourceID == own {
				continue
			}
			if err := writeSSEvent(w, event); err != nil {
				log.Warn("http stream write failed", "err", err)
				return
			}
			flusher.Flush()
		}
	}
}

// decode reads the JSON body into target, accepting an empty body. It writes
// the error response itself and reports whether the handler may continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeJSON(r.Body, target); err != nil && !errors.Is(err, io.EOF) {
		logx.Ctx(r.Context()).Warn("http decode failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, op string, payload any, err error) {
	if err != nil {
		status := statusFor(err)
		log := logx.Ctx(r.Context())
		if status >= http.StatusInternalServerError {
			log.Error("http "+op+" failed", "err", err)
		} else {
			log.Warn("http "+op+" rejected", "err", err, "status", status)
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, schema.ErrInvalidRequest),
		errors.Is(err, schema.ErrInvalidWindow),
		errors.Is(err, schema.ErrInvalidTab),
		errors.Is(err, schema.ErrInvalidTabType):
		return http.StatusBadRequest
	case errors.Is(err, schema.ErrThreadNotFound),
		errors.Is(err, schema.ErrTabNotFound),
		errors.Is(err, schema.ErrWindowNotFound),
		errors.Is(err, schema.ErrSurfaceGone):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w io.Writer, event eventbus.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	return err
}

// ListenAndServe serves Handler on the configured address until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	return listenAndServe(ctx, s.cfg.Addr, s.Handler(), s.cfg.ShutdownTimeout)
}
