package core

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pkt.systems/chatdeck/schema"
)

func TestCloseActiveTabActivatesFallback(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w := h.window()
	t1 := h.newTab(w, true)
	t2 := h.newTab(w, false)
	if diff := cmp.Diff([]string{active(t1), string(t2)}, h.layout(w)); diff != "" {
		t.Fatalf("layout mismatch (-want +got):\n%s", diff)
	}
	if len(h.temp.Paths(t1)) != 1 {
		t.Fatalf("expected snapshot temp file for %s", t1)
	}

	if _, err := h.c.CloseTab(h.ctx, schema.CloseTabRequest{WindowID: w, TabID: t1, FallbackActiveTabID: t2}); err != nil {
		t.Fatalf("close tab: %v", err)
	}
	if diff := cmp.Diff([]string{active(t2)}, h.layout(w)); diff != "" {
		t.Fatalf("layout mismatch (-want +got):\n%s", diff)
	}
	if _, ok := h.c.owners.lookup(t1); ok {
		t.Fatalf("expected surface of %s to be gone", t1)
	}
	if paths := h.temp.Paths(t1); len(paths) != 0 {
		t.Fatalf("expected temp files cleaned, got %v", paths)
	}
	if !h.surface(t2).IsVisible() {
		t.Fatalf("expected fallback tab surface visible")
	}
	h.assertValid()
}

func TestNewTabCreatesThreadAndSnapshot(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w := h.window()
	resp, err := h.c.NewTab(h.ctx, schema.NewTabRequest{WindowID: w, Type: schema.TabTypeChat, Title: " Plans ", Active: true})
	if err != nil {
		t.Fatalf("new tab: %v", err)
	}
	tab := resp.Tab
	if tab.Title != "Plans" || tab.ThreadID == "" || !tab.Active {
		t.Fatalf("unexpected tab: %+v", tab)
	}
	if tab.Href != "/chat/"+string(tab.ThreadID) {
		t.Fatalf("unexpected href %q", tab.Href)
	}
	if _, err := h.threads.Get(h.ctx, tab.ThreadID); err != nil {
		t.Fatalf("expected thread stored: %v", err)
	}
	opts := h.surface(tab.ID).Options()
	if opts.URL != "app://chatdeck/chat/"+string(tab.ThreadID) {
		t.Fatalf("unexpected surface url %q", opts.URL)
	}
	var snapshotArg string
	for _, arg := range opts.Args {
		if strings.HasPrefix(arg, argSnapshot) {
			snapshotArg = strings.TrimPrefix(arg, argSnapshot)
		}
	}
	data, err := os.ReadFile(snapshotArg)
	if err != nil {
		t.Fatalf("read snapshot arg %q: %v", snapshotArg, err)
	}
	if !strings.Contains(string(data), string(tab.ThreadID)) {
		t.Fatalf("snapshot missing thread id: %s", data)
	}
}

func TestNewTabSettingsHasNoThread(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w := h.window()
	resp, err := h.c.NewTab(h.ctx, schema.NewTabRequest{WindowID: w, Type: schema.TabTypeSettings})
	if err != nil {
		t.Fatalf("new tab: %v", err)
	}
	if resp.Tab.ThreadID != "" || resp.Tab.Title != "Settings" || !resp.Tab.Active {
		t.Fatalf("unexpected tab: %+v", resp.Tab)
	}
	if len(h.temp.Paths(resp.Tab.ID)) != 0 {
		t.Fatalf("expected no snapshot file")
	}
}

func TestNewTabRejectsUnknownType(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w := h.window()
	if _, err := h.c.NewTab(h.ctx, schema.NewTabRequest{WindowID: w, Type: "bogus"}); err == nil {
		t.Fatalf("expected error for unknown tab type")
	}
}

func TestNewTabOnMissingWindowIsNoop(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	resp, err := h.c.NewTab(h.ctx, schema.NewTabRequest{WindowID: 42, Type: schema.TabTypeChat})
	if err != nil {
		t.Fatalf("new tab: %v", err)
	}
	if resp.Tab != nil {
		t.Fatalf("expected no tab, got %+v", resp.Tab)
	}
	if len(h.state()) != 0 {
		t.Fatalf("expected registry untouched, got %v", h.state())
	}
}

func TestNewTabWithThreadReusesLiveTab(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w1 := h.window()
	t1, thread := h.threadTab(w1, "th1")
	w2 := h.window()
	if h.focused() != w2 {
		t.Fatalf("expected new window focused")
	}

	resp, err := h.c.NewTabWithThread(h.ctx, schema.NewTabWithThreadRequest{WindowID: w2, ThreadID: thread, Active: true})
	if err != nil {
		t.Fatalf("new tab with thread: %v", err)
	}
	if !resp.Reused || resp.Tab == nil || resp.Tab.ID != t1 {
		t.Fatalf("expected reuse of %s, got %+v", t1, resp)
	}
	all, _ := h.c.GetAllTabs(h.ctx, schema.ListAllTabsRequest{})
	if len(all.Tabs) != 1 {
		t.Fatalf("expected one tab, got %d", len(all.Tabs))
	}
	if h.focused() != w1 {
		t.Fatalf("expected owning window %d focused, got %d", w1, h.focused())
	}
	h.assertValid()
}

func TestNewTabWithThreadPrunesOrphans(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w := h.window()
	keep := h.newTab(w, true)
	thread, err := h.threads.Create(h.ctx, "orphaned", false)
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	_, err = h.reg.Update(h.ctx, "test", func(state schema.TabState) (schema.TabState, error) {
		state.InsertTab(w.Key(), schema.Tab{ID: "ghost", Type: schema.TabTypeChat, ThreadID: thread.ID, Title: "ghost"}, nil)
		return state, nil
	})
	if err != nil {
		t.Fatalf("seed registry: %v", err)
	}

	resp, err := h.c.NewTabWithThread(h.ctx, schema.NewTabWithThreadRequest{WindowID: w, ThreadID: thread.ID, Active: true})
	if err != nil {
		t.Fatalf("new tab with thread: %v", err)
	}
	if resp.Reused || resp.Tab == nil {
		t.Fatalf("expected fresh tab, got %+v", resp)
	}
	if diff := cmp.Diff([]string{string(keep), active(resp.Tab.ID)}, h.layout(w)); diff != "" {
		t.Fatalf("layout mismatch (-want +got):\n%s", diff)
	}
	h.assertValid()
}

func TestNewTabWithThreadMissingThread(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w := h.window()
	_, err := h.c.NewTabWithThread(h.ctx, schema.NewTabWithThreadRequest{WindowID: w, ThreadID: "nope"})
	if !errors.Is(err, schema.ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound, got %v", err)
	}
	if len(h.state().Tabs(w.Key())) != 0 {
		t.Fatalf("expected no tab recorded")
	}
}

func TestActivateTabRedirectsToOwner(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w1 := h.window()
	t1 := h.newTab(w1, true)
	t2 := h.newTab(w1, true)
	w2 := h.window()

	resp, err := h.c.ActivateTab(h.ctx, schema.ActivateTabRequest{WindowID: w2, TabID: t1})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if resp.WindowID != w1 {
		t.Fatalf("expected owner %d, got %d", w1, resp.WindowID)
	}
	if h.focused() != w1 {
		t.Fatalf("expected owner focused")
	}
	if diff := cmp.Diff([]string{active(t1), string(t2)}, h.layout(w1)); diff != "" {
		t.Fatalf("layout mismatch (-want +got):\n%s", diff)
	}
	if !h.surface(t1).IsVisible() || h.surface(t2).IsVisible() {
		t.Fatalf("expected only the active surface visible")
	}
	current, err := h.c.GetActiveTab(h.ctx, schema.GetActiveTabRequest{WindowID: w1})
	if err != nil || current.Tab == nil || current.Tab.ID != t1 {
		t.Fatalf("unexpected active tab %+v err=%v", current.Tab, err)
	}
}

func TestActivateTabSurfaceGoneIsNoop(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w := h.window()
	h.newTab(w, true)
	resp, err := h.c.ActivateTab(h.ctx, schema.ActivateTabRequest{WindowID: w, TabID: "missing"})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if resp.WindowID != 0 {
		t.Fatalf("expected no owner, got %d", resp.WindowID)
	}
}

func TestCloseTabIsIdempotentAndPurgesOnce(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w := h.window()
	t1 := h.newTab(w, true)
	h.newTab(w, false)

	for i := 0; i < 2; i++ {
		if _, err := h.c.CloseTab(h.ctx, schema.CloseTabRequest{WindowID: w, TabID: t1}); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
	if got := h.threads.deletes.Load(); got != 1 {
		t.Fatalf("expected one thread purge, got %d", got)
	}
	h.assertValid()
}

func TestCloseTabKeepsThreadWithMessages(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w := h.window()
	t1, thread := h.threadTab(w, "kept")
	h.newTab(w, false)
	if _, err := h.c.CloseTab(h.ctx, schema.CloseTabRequest{WindowID: w, TabID: t1}); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := h.threads.Get(h.ctx, thread); err != nil {
		t.Fatalf("expected thread kept: %v", err)
	}
}

func TestCloseTabPurgesPrivateThread(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w := h.window()
	resp, err := h.c.NewTab(h.ctx, schema.NewTabRequest{WindowID: w, Type: schema.TabTypeChat, Private: true})
	if err != nil {
		t.Fatalf("new tab: %v", err)
	}
	if _, err := h.threads.Append(h.ctx, resp.Tab.ThreadID, "user", "secret"); err != nil {
		t.Fatalf("append: %v", err)
	}
	h.newTab(w, false)
	if _, err := h.c.CloseTab(h.ctx, schema.CloseTabRequest{WindowID: w, TabID: resp.Tab.ID}); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := h.threads.Get(h.ctx, resp.Tab.ThreadID); !errors.Is(err, schema.ErrThreadNotFound) {
		t.Fatalf("expected private thread purged, got %v", err)
	}
}

func TestSurfaceDestroyedOutOfBand(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w := h.window()
	t1 := h.newTab(w, true)
	t2 := h.newTab(w, false)
	s := h.surface(t2)

	s.Destroy()
	s.Destroy()
	if _, ok := h.c.owners.lookup(t2); ok {
		t.Fatalf("expected ownership forgotten")
	}
	if paths := h.temp.Paths(t2); len(paths) != 0 {
		t.Fatalf("expected temp files cleaned, got %v", paths)
	}
	if diff := cmp.Diff([]string{active(t1), string(t2)}, h.layout(w)); diff != "" {
		t.Fatalf("registry should keep the record until closed (-want +got):\n%s", diff)
	}
	if _, err := h.c.CloseTab(h.ctx, schema.CloseTabRequest{WindowID: w, TabID: t2}); err != nil {
		t.Fatalf("close: %v", err)
	}
	if diff := cmp.Diff([]string{active(t1)}, h.layout(w)); diff != "" {
		t.Fatalf("layout mismatch (-want +got):\n%s", diff)
	}
}

func TestCloseLastTabClosesWindow(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w1 := h.window()
	h.newTab(w1, true)
	w2 := h.window()
	t2 := h.newTab(w2, true)

	if _, err := h.c.CloseTab(h.ctx, schema.CloseTabRequest{WindowID: w2, TabID: t2}); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := h.rt.Window(w2); ok {
		t.Fatalf("expected window %d destroyed", w2)
	}
	if h.c.Phase(w2) != schema.WindowDestroyed {
		t.Fatalf("expected destroyed phase, got %s", h.c.Phase(w2))
	}
	if _, ok := h.state()[w2.Key()]; ok {
		t.Fatalf("expected registry entry removed")
	}
	h.assertValid()
}

func TestCloseOthers(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w := h.window()
	t1 := h.newTab(w, true)
	t2 := h.newTab(w, false)
	t3 := h.newTab(w, false)
	t4 := h.newTab(w, false)

	resp, err := h.c.CloseOthers(h.ctx, schema.CloseOthersRequest{WindowID: w, TabID: t2, IDsToClose: []schema.TabID{t1, t3, t4}})
	if err != nil {
		t.Fatalf("close others: %v", err)
	}
	if resp.Closed != 3 {
		t.Fatalf("expected 3 closed, got %d", resp.Closed)
	}
	if diff := cmp.Diff([]string{active(t2)}, h.layout(w)); diff != "" {
		t.Fatalf("layout mismatch (-want +got):\n%s", diff)
	}
	if !h.surface(t2).IsVisible() {
		t.Fatalf("expected kept tab visible")
	}
	for _, id := range []schema.TabID{t1, t3, t4} {
		if _, ok := h.c.owners.lookup(id); ok {
			t.Fatalf("expected surface of %s destroyed", id)
		}
	}
	h.assertValid()
}

func TestCloseOffside(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w := h.window()
	t1 := h.newTab(w, false)
	t2 := h.newTab(w, false)
	t3 := h.newTab(w, false)
	t4 := h.newTab(w, true)

	resp, err := h.c.CloseOffside(h.ctx, schema.CloseOffsideRequest{
		WindowID:           w,
		TabID:              t2,
		IDsToClose:         []schema.TabID{t3, t4},
		RemainingIDs:       []schema.TabID{t1, t2},
		ShouldSwitchActive: true,
	})
	if err != nil {
		t.Fatalf("close offside: %v", err)
	}
	if resp.Closed != 2 {
		t.Fatalf("expected 2 closed, got %d", resp.Closed)
	}
	if diff := cmp.Diff([]string{string(t1), active(t2)}, h.layout(w)); diff != "" {
		t.Fatalf("layout mismatch (-want +got):\n%s", diff)
	}
	h.assertValid()
}

func TestCloseOthersWithUnknownKeptTabIsNoop(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w := h.window()
	t1 := h.newTab(w, true)
	t2 := h.newTab(w, false)
	before := h.threads.deletes.Load()

	resp, err := h.c.CloseOthers(h.ctx, schema.CloseOthersRequest{WindowID: w, TabID: "gone", IDsToClose: []schema.TabID{t1, t2}})
	if err != nil {
		t.Fatalf("close others: %v", err)
	}
	if resp.Closed != 0 {
		t.Fatalf("expected nothing closed, got %d", resp.Closed)
	}
	for _, id := range []schema.TabID{t1, t2} {
		if _, ok := h.c.owners.lookup(id); !ok {
			t.Fatalf("expected surface of %s kept", id)
		}
	}
	if h.threads.deletes.Load() != before {
		t.Fatalf("expected no thread purged")
	}
	if diff := cmp.Diff([]string{active(t1), string(t2)}, h.layout(w)); diff != "" {
		t.Fatalf("layout mismatch (-want +got):\n%s", diff)
	}
	h.assertValid()
}

func TestListTabs(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	w1 := h.window()
	t1 := h.newTab(w1, true)
	w2 := h.window()
	t2 := h.newTab(w2, true)

	resp, err := h.c.GetAllTabsForWindow(h.ctx, schema.ListWindowTabsRequest{WindowID: w2})
	if err != nil {
		t.Fatalf("list window: %v", err)
	}
	if len(resp.Tabs) != 1 || resp.Tabs[0].ID != t2 {
		t.Fatalf("unexpected window tabs %+v", resp.Tabs)
	}
	all, err := h.c.GetAllTabs(h.ctx, schema.ListAllTabsRequest{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	var got []string
	for _, tab := range all.Tabs {
		got = append(got, string(tab.ID))
	}
	if diff := cmp.Diff(ids(t1, t2), got); diff != "" {
		t.Fatalf("all tabs mismatch (-want +got):\n%s", diff)
	}
	empty, err := h.c.GetAllTabsForWindow(h.ctx, schema.ListWindowTabsRequest{WindowID: 99})
	if err != nil || empty.Tabs == nil || len(empty.Tabs) != 0 {
		t.Fatalf("expected empty non-nil list, got %+v err=%v", empty.Tabs, err)
	}
}

func TestReorderKeepsUnlistedTabs(t *testing.T) {
	tabs := []schema.Tab{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	got := reorder(tabs, []schema.TabID{"c", "missing", "a"})
	var order []string
	for _, tab := range got {
		order = append(order, string(tab.ID))
	}
	if diff := cmp.Diff([]string{"c", "a", "b"}, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRewriteArg(t *testing.T) {
	got := rewriteArg([]string{"--x=1", argWindow + "3"}, argWindow, "7")
	if diff := cmp.Diff([]string{"--x=1", argWindow + "7"}, got); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
	got = rewriteArg(nil, argWindow, "7")
	if diff := cmp.Diff([]string{argWindow + "7"}, got); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}
