// Package chatdeck composes the window compositor, its storage and the
// command surface into a runnable server.
package chatdeck

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/chatdeck/core"
	"pkt.systems/chatdeck/httpapi"
	"pkt.systems/chatdeck/internal/clock"
	"pkt.systems/chatdeck/internal/eventbus"
	"pkt.systems/chatdeck/internal/persist"
	"pkt.systems/chatdeck/internal/platform"
	"pkt.systems/chatdeck/internal/platform/headless"
	"pkt.systems/chatdeck/internal/platform/x11pointer"
	"pkt.systems/chatdeck/internal/storagesync"
	"pkt.systems/chatdeck/internal/threads"
	"pkt.systems/chatdeck/schema"
	"pkt.systems/pslog"
)

// Pointer source modes.
const (
	PointerAuto = "auto"
	PointerX11  = "x11"
	PointerNone = "none"
)

// Server runs the compositor and its command surface.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the composed server.
type ServerConfig struct {
	Service schema.ServiceConfig
	HTTP    httpapi.Config
	// Reparent advertises surface reparenting on the default runtime.
	Reparent bool
	// Pointer selects the drag pointer source: auto, x11 or none.
	Pointer string
}

// ServerDeps overrides the components New would otherwise build.
type ServerDeps struct {
	Runtime   platform.Runtime
	Pointer   platform.PointerSource
	EventSink core.EventSink
	Clock     clock.Clock
	Logger    pslog.Logger
}

// ServerOption toggles server components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP bool
	enableSync bool
}

// WithHTTP enables the HTTP command surface.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithStorageSync watches the state directory for writes by other processes.
func WithStorageSync() ServerOption {
	return func(o *serverOptions) { o.enableSync = true }
}

// New constructs a server. Nothing runs until Start.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	normalized, err := schema.NormalizeServiceConfig(cfg.Service)
	if err != nil {
		return nil, err
	}
	cfg.Service = normalized
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}

	store, err := persist.NewStoreWithLogger(cfg.Service.StateDir, logger)
	if err != nil {
		return nil, err
	}
	bus := eventbus.New(logger)
	syncer := storagesync.New(store.Dir(), logger)
	store.SetNotifier(syncer)
	syncer.Watch(storagesync.AllKeys, bus.OnStorageSync)

	rt := deps.Runtime
	if rt == nil {
		rt = headless.New(headless.Options{Capabilities: platform.Capabilities{Reparent: cfg.Reparent}})
	}
	pointer := deps.Pointer
	var closePointer func()
	if pointer == nil {
		pointer, closePointer, err = resolvePointer(cfg.Pointer, rt, logger)
		if err != nil {
			return nil, err
		}
	}

	sink := core.EventSink(bus)
	if deps.EventSink != nil {
		sink = eventFanout{sinks: []core.EventSink{bus, deps.EventSink}}
	}
	service, err := core.NewService(cfg.Service, core.ServiceDeps{
		Runtime:   rt,
		Registry:  persist.NewRegistry(store),
		Threads:   threads.NewStore(store, deps.Clock),
		Pointer:   pointer,
		Clock:     deps.Clock,
		EventSink: sink,
		Logger:    logger,
	})
	if err != nil {
		if closePointer != nil {
			closePointer()
		}
		return nil, err
	}

	var httpSrv *httpapi.Server
	if options.enableHTTP {
		httpSrv = httpapi.NewServer(cfg.HTTP, service, bus)
	}
	return &compositeServer{
		cfg:          cfg,
		options:      options,
		service:      service,
		syncer:       syncer,
		httpSrv:      httpSrv,
		closePointer: closePointer,
	}, nil
}

// resolvePointer picks the drag pointer source. auto prefers X11 and falls
// back to the runtime's own pointer when it has one.
func resolvePointer(mode string, rt platform.Runtime, logger pslog.Logger) (platform.PointerSource, func(), error) {
	switch mode {
	case PointerNone:
		logger.Info("pointer source disabled")
		return nil, nil, nil
	case PointerX11:
		src, err := x11pointer.Open()
		if err != nil {
			return nil, nil, err
		}
		logger.Info("pointer source x11")
		return src, src.Close, nil
	case "", PointerAuto:
		src, err := x11pointer.Open()
		if err == nil {
			logger.Info("pointer source x11")
			return src, src.Close, nil
		}
		if own, ok := rt.(platform.PointerSource); ok {
			logger.Info("pointer source runtime", "x11_err", err)
			return own, nil, nil
		}
		logger.Warn("pointer source unavailable; drag hover disabled", "err", err)
		return nil, nil, nil
	default:
		return nil, nil, errors.New("unknown pointer source " + mode)
	}
}

type compositeServer struct {
	cfg          ServerConfig
	options      serverOptions
	service      *core.Compositor
	syncer       *storagesync.Syncer
	httpSrv      *httpapi.Server
	closePointer func()
	logger       pslog.Logger

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	errCh    chan error
	started  bool
	stopOnce sync.Once
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 2)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http", s.options.enableHTTP,
		"storage_sync", s.options.enableSync,
		"http_addr", s.cfg.HTTP.Addr,
		"state_dir", s.cfg.Service.StateDir,
	)
	if s.options.enableSync {
		if err := s.syncer.Start(s.ctx); err != nil {
			log.Error("storage sync failed", "err", err)
			s.cancel()
			return err
		}
	}
	if err := s.service.Bootstrap(s.ctx); err != nil {
		log.Error("compositor bootstrap failed", "err", err)
		s.cancel()
		return err
	}
	if s.options.enableHTTP && s.httpSrv != nil {
		go func() {
			if err := s.httpSrv.ListenAndServe(s.ctx); err != nil {
				log.Error("http server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	go func() {
		select {
		case <-s.service.Done():
			log.Info("server last window closed")
			s.cancel()
		case <-s.ctx.Done():
		}
	}()
	return nil
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		s.shutdown(context.Background())
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	s.shutdown(ctx)
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-s.ctx.Done():
		log.Info("server stopped")
		return nil
	}
}

// shutdown quits the compositor and releases watchers once.
func (s *compositeServer) shutdown(ctx context.Context) {
	s.stopOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		if s.logger != nil {
			ctx = pslog.ContextWithLogger(ctx, s.logger)
		}
		s.service.Quit(ctx)
		if err := s.syncer.Close(); err != nil {
			pslog.Ctx(ctx).Warn("storage sync close failed", "err", err)
		}
		if s.closePointer != nil {
			s.closePointer()
		}
	})
}
