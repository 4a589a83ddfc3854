package bridge

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTabManagerPassLockTracksEntry(t *testing.T) {
	tm := NewTabManager(nil, TabOptions{})
	tm.RegisterTab("tab1", context.Background())

	if err := tm.Lock("tab1", "pass-a", time.Minute); err != nil {
		t.Fatal(err)
	}
	if e, _ := tm.Entry("tab1"); e.Pass != "pass-a" {
		t.Errorf("entry pass = %q", e.Pass)
	}
	if err := tm.Lock("tab1", "pass-b", time.Minute); !errors.Is(err, ErrTabBusy) {
		t.Fatalf("second lock err = %v, want ErrTabBusy", err)
	}
	if info := tm.TabLockInfo("tab1"); info == nil || info.Owner != "pass-a" {
		t.Fatalf("lock info = %+v", info)
	}

	if err := tm.Unlock("tab1", "pass-a"); err != nil {
		t.Fatal(err)
	}
	e, _ := tm.Entry("tab1")
	if e.Pass != "" || e.Passes != 1 {
		t.Errorf("entry after unlock = %+v", e)
	}
}

func TestTabManagerRefusesClosingBusyTab(t *testing.T) {
	tm := NewTabManager(nil, TabOptions{})
	tm.RegisterTab("tab1", context.Background())
	if err := tm.Lock("tab1", "pass-a", time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := tm.CloseTab("tab1"); !errors.Is(err, ErrTabBusy) {
		t.Fatalf("err = %v, want ErrTabBusy", err)
	}
	if _, ok := tm.Entry("tab1"); !ok {
		t.Error("busy tab dropped")
	}
}

func TestTabManagerWithoutBrowser(t *testing.T) {
	tm := NewTabManager(nil, TabOptions{})
	if _, err := tm.ListTargets(); !errors.Is(err, ErrNoBrowser) {
		t.Errorf("ListTargets err = %v", err)
	}
	if _, _, _, err := tm.CreateTab("https://example.com"); !errors.Is(err, ErrNoBrowser) {
		t.Errorf("CreateTab err = %v", err)
	}
	if err := tm.CloseTab("tab1"); !errors.Is(err, ErrNoBrowser) {
		t.Errorf("CloseTab err = %v", err)
	}
}

func TestTabManagerSweepReleasesLocks(t *testing.T) {
	tm := NewTabManager(nil, TabOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tm.RegisterTab("gone", ctx)
	tm.RegisterTab("alive", context.Background())
	if err := tm.Lock("gone", "pass-a", time.Minute); err != nil {
		t.Fatal(err)
	}

	removed := tm.sweep(map[string]bool{"alive": true})
	if len(removed) != 1 || removed[0] != "gone" {
		t.Fatalf("removed = %v", removed)
	}
	if _, ok := tm.Entry("gone"); ok {
		t.Error("stale tab still tracked")
	}
	if _, ok := tm.Entry("alive"); !ok {
		t.Error("live tab dropped")
	}
	if tm.TabLockInfo("gone") != nil {
		t.Error("stale tab lock kept")
	}
}
