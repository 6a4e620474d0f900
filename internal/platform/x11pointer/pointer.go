// Package x11pointer reads the global pointer position from an X11 server.
package x11pointer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"

	"pkt.systems/chatdeck/schema"
)

// ErrNoDisplay is returned when no X11 display is configured.
var ErrNoDisplay = errors.New("x11: DISPLAY is not set")

// Source queries the root window for the pointer position.
type Source struct {
	mu   sync.Mutex
	xu   *xgbutil.XUtil
	root xproto.Window
}

// Open connects to the X11 server named by DISPLAY.
func Open() (*Source, error) {
	if os.Getenv("DISPLAY") == "" {
		return nil, ErrNoDisplay
	}
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("x11 connect: %w", err)
	}
	return &Source{xu: xu, root: xu.RootWin()}, nil
}

// Pointer implements platform.PointerSource.
func (s *Source) Pointer(ctx context.Context) (schema.Point, error) {
	if err := ctx.Err(); err != nil {
		return schema.Point{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.xu == nil {
		return schema.Point{}, errors.New("x11: connection closed")
	}
	reply, err := xproto.QueryPointer(s.xu.Conn(), s.root).Reply()
	if err != nil {
		return schema.Point{}, fmt.Errorf("x11 query pointer: %w", err)
	}
	return schema.Point{X: int(reply.RootX), Y: int(reply.RootY)}, nil
}

// Close disconnects from the X11 server.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.xu != nil {
		s.xu.Conn().Close()
		s.xu = nil
	}
}
