package daemonrun_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/flock"

	"reelcast/internal/daemonrun"
	"reelcast/internal/logging"
	"reelcast/internal/testsupport"
)

func TestRunOnceRefusesWhileDaemonHoldsLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	daemonLock := flock.New(cfg.LockPath())
	if ok, err := daemonLock.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	defer daemonLock.Unlock()

	summary, err := daemonrun.RunOnce(context.Background(), cfg, logging.NewNop())
	if !errors.Is(err, daemonrun.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if summary.RunID != "" {
		t.Fatalf("no run should start, got %+v", summary)
	}
}

func TestRunOnceReleasesLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	if _, err := daemonrun.RunOnce(context.Background(), cfg, logging.NewNop()); errors.Is(err, daemonrun.ErrLocked) {
		t.Fatalf("unexpected lock conflict: %v", err)
	}

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("lock should be free after the run: %v %v", ok, err)
	}
	_ = lock.Unlock()
}
