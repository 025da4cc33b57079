package app_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dbgee/dbgee/internal/app"
	"github.com/dbgee/dbgee/internal/ledger"
	"github.com/dbgee/dbgee/internal/wrap"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openMemLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(":memory:")
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func makeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho original\n"), 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestSetInstallsShimAndRecordsLedgerEvent(t *testing.T) {
	dir := t.TempDir()
	target := makeExecutable(t, dir, "prog")
	l := openMemLedger(t)
	a := app.New(quietLogger(), l)
	ctx := context.Background()

	if err := a.Set(ctx, app.SetOpts{Target: target, RunCmd: "/usr/local/bin/dbgee run"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	wrapped, err := wrap.IsWrapped(target)
	if err != nil {
		t.Fatalf("IsWrapped: %v", err)
	}
	if !wrapped {
		t.Error("expected target to be wrapped after Set")
	}

	recent, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Kind != ledger.EventWrap {
		t.Errorf("recent events = %+v, want one wrap event", recent)
	}
}

func TestSetTwiceFailsAndLeavesStateUnchanged(t *testing.T) {
	dir := t.TempDir()
	target := makeExecutable(t, dir, "prog")
	a := app.New(quietLogger(), nil)
	ctx := context.Background()

	if err := a.Set(ctx, app.SetOpts{Target: target, RunCmd: "dbgee run"}); err != nil {
		t.Fatalf("first Set: %v", err)
	}
	before, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read shim: %v", err)
	}

	if err := a.Set(ctx, app.SetOpts{Target: target, RunCmd: "dbgee run"}); err == nil {
		t.Fatal("expected second Set to fail")
	}

	after, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read shim after failed second Set: %v", err)
	}
	if string(before) != string(after) {
		t.Error("failed double-set mutated on-disk state")
	}
}

func TestSetWithStartCmdAutoUnsets(t *testing.T) {
	dir := t.TempDir()
	target := makeExecutable(t, dir, "prog")
	l := openMemLedger(t)
	a := app.New(quietLogger(), l)
	ctx := context.Background()

	err := a.Set(ctx, app.SetOpts{
		Target:   target,
		RunCmd:   "dbgee run",
		StartCmd: []string{"true"},
	})
	if err != nil {
		t.Fatalf("Set with StartCmd: %v", err)
	}

	wrapped, err := wrap.IsWrapped(target)
	if err != nil {
		t.Fatalf("IsWrapped: %v", err)
	}
	if wrapped {
		t.Error("expected target to be auto-unwrapped after StartCmd completed")
	}

	recent, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Kind != ledger.EventUnwrap || recent[1].Kind != ledger.EventWrap {
		t.Errorf("recent events = %+v, want [unwrap, wrap] newest first", recent)
	}
}

func TestUnsetRestoresOriginalAndRecordsEvent(t *testing.T) {
	dir := t.TempDir()
	target := makeExecutable(t, dir, "prog")
	l := openMemLedger(t)
	a := app.New(quietLogger(), l)
	ctx := context.Background()

	original, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read original: %v", err)
	}
	if err := a.Set(ctx, app.SetOpts{Target: target, RunCmd: "dbgee run"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := a.Unset(ctx, target); err != nil {
		t.Fatalf("Unset: %v", err)
	}

	restored, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read restored: %v", err)
	}
	if string(restored) != string(original) {
		t.Error("Unset did not restore the original executable byte for byte")
	}

	recent, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if recent[0].Kind != ledger.EventUnwrap {
		t.Errorf("recent[0].Kind = %q, want unwrap", recent[0].Kind)
	}
}

func TestUnsetWithoutSetFails(t *testing.T) {
	dir := t.TempDir()
	target := makeExecutable(t, dir, "prog")
	a := app.New(quietLogger(), nil)

	if err := a.Unset(context.Background(), target); err == nil {
		t.Fatal("expected Unset on a non-wrapped target to fail")
	}
}

func TestNewWithNilLedgerDoesNotPanic(t *testing.T) {
	dir := t.TempDir()
	target := makeExecutable(t, dir, "prog")
	a := app.New(quietLogger(), nil)

	if err := a.Set(context.Background(), app.SetOpts{Target: target, RunCmd: "dbgee run"}); err != nil {
		t.Fatalf("Set with nil ledger: %v", err)
	}
}
