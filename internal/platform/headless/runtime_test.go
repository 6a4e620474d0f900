package headless

import (
	"context"
	"errors"
	"testing"

	"pkt.systems/chatdeck/internal/platform"
	"pkt.systems/chatdeck/schema"
)

func newWindow(t *testing.T, rt *Runtime) platform.Window {
	t.Helper()
	w, err := rt.CreateWindow(context.Background(), platform.WindowOptions{
		Bounds: schema.Rect{X: 0, Y: 0, Width: 800, Height: 600},
		Show:   true,
	})
	if err != nil {
		t.Fatalf("create window: %v", err)
	}
	return w
}

func newSurface(t *testing.T, rt *Runtime) platform.Surface {
	t.Helper()
	s, err := rt.CreateSurface(context.Background(), platform.SurfaceOptions{URL: "app://test/chat"})
	if err != nil {
		t.Fatalf("create surface: %v", err)
	}
	return s
}

func TestCloseHandlerVetoes(t *testing.T) {
	rt := New(Options{})
	w := newWindow(t, rt)
	closed := 0
	w.OnClosed(func() { closed++ })
	w.SetCloseHandler(func() bool { return false })
	w.Close()
	if w.IsDestroyed() || closed != 0 {
		t.Fatalf("expected veto to keep window alive")
	}
	w.SetCloseHandler(func() bool { return true })
	w.Close()
	w.Close()
	if !w.IsDestroyed() || closed != 1 {
		t.Fatalf("expected window destroyed once, closed=%d", closed)
	}
	if _, ok := rt.Window(w.ID()); ok {
		t.Fatalf("expected destroyed window to be gone from runtime")
	}
}

func TestDestroyWindowDestroysSurfacesFirst(t *testing.T) {
	rt := New(Options{})
	w := newWindow(t, rt)
	s := newSurface(t, rt)
	if err := w.Attach(s); err != nil {
		t.Fatalf("attach: %v", err)
	}
	var order []string
	s.OnDestroyed(func() { order = append(order, "surface") })
	w.OnClosed(func() { order = append(order, "window") })
	w.Destroy()
	if len(order) != 2 || order[0] != "surface" || order[1] != "window" {
		t.Fatalf("unexpected destroy order %v", order)
	}
	if err := s.Send("x", nil); !errors.Is(err, schema.ErrSurfaceGone) {
		t.Fatalf("expected ErrSurfaceGone, got %v", err)
	}
}

func TestReparentCapability(t *testing.T) {
	rt := New(Options{Capabilities: platform.Capabilities{Reparent: true}})
	a, b := newWindow(t, rt), newWindow(t, rt)
	s := newSurface(t, rt)
	if err := a.Attach(s); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := b.Attach(s); err == nil {
		t.Fatalf("expected attach while hosted elsewhere to fail")
	}
	if err := a.Detach(s); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if err := b.Attach(s); err != nil {
		t.Fatalf("reattach: %v", err)
	}
	if s.(*Surface).Host() != b.ID() {
		t.Fatalf("expected surface hosted by %d", b.ID())
	}
}

func TestNoReparentRejectsMove(t *testing.T) {
	rt := New(Options{})
	a, b := newWindow(t, rt), newWindow(t, rt)
	s := newSurface(t, rt)
	if err := a.Attach(s); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := a.Detach(s); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if err := b.Attach(s); !errors.Is(err, schema.ErrReparentUnsupported) {
		t.Fatalf("expected ErrReparentUnsupported, got %v", err)
	}
	if err := a.Attach(s); err != nil {
		t.Fatalf("reattach to original host: %v", err)
	}
}

func TestRaiseOrdersSurfaces(t *testing.T) {
	rt := New(Options{})
	w := newWindow(t, rt)
	s1, s2 := newSurface(t, rt), newSurface(t, rt)
	_ = w.Attach(s1)
	_ = w.Attach(s2)
	if err := w.Raise(s1); err != nil {
		t.Fatalf("raise: %v", err)
	}
	surfaces := w.Surfaces()
	if surfaces[len(surfaces)-1].ID() != s1.ID() {
		t.Fatalf("expected raised surface on top")
	}
}

func TestSaveRestoreState(t *testing.T) {
	rt := New(Options{})
	src := newSurface(t, rt)
	src.(*Surface).SetState([]byte(`{"scroll":42}`))
	data, err := src.SaveState()
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	dst := newSurface(t, rt)
	if err := dst.RestoreState(data); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := string(dst.(*Surface).State()); got != `{"scroll":42}` {
		t.Fatalf("unexpected restored state %q", got)
	}
}

func TestFocusAndPointer(t *testing.T) {
	rt := New(Options{TitleBarHeight: 20})
	a := newWindow(t, rt)
	b := newWindow(t, rt)
	if f, ok := rt.FocusedWindow(); !ok || f.ID() != b.ID() {
		t.Fatalf("expected last shown window focused")
	}
	a.Focus()
	if f, _ := rt.FocusedWindow(); f.ID() != a.ID() {
		t.Fatalf("expected focus on %d", a.ID())
	}
	a.Hide()
	if _, ok := rt.FocusedWindow(); ok {
		t.Fatalf("expected no focus after hide")
	}
	if cb := a.ContentBounds(); cb.Y != 20 || cb.Height != 580 {
		t.Fatalf("unexpected content bounds %+v", cb)
	}
	rt.SetPointer(schema.Point{X: 5, Y: 6})
	p, err := rt.Pointer(context.Background())
	if err != nil || p.X != 5 || p.Y != 6 {
		t.Fatalf("unexpected pointer %+v (%v)", p, err)
	}
	rt.SetPointerError(errors.New("boom"))
	if _, err := rt.Pointer(context.Background()); err == nil {
		t.Fatalf("expected pointer error")
	}
}
