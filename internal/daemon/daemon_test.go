package daemon_test

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"reelcast/internal/daemon"
	"reelcast/internal/logging"
	"reelcast/internal/stage"
	"reelcast/internal/store"
	"reelcast/internal/testsupport"
	"reelcast/internal/workflow"
)

type noopStage struct{ name store.StageName }

func (s noopStage) Name() store.StageName { return s.name }
func (noopStage) Prepare(context.Context, *stage.Job) error { return nil }
func (noopStage) Execute(context.Context, *stage.Job) error { return nil }
func (s noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(string(s.name))
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = ""
	st := testsupport.MustOpenStore(t, cfg)

	item := testsupport.NewItem(t, st, "Stranded by crash", 90)
	stranded, err := st.CreateLog(context.Background(), item.ID, "old-run")
	if err != nil {
		t.Fatalf("CreateLog: %v", err)
	}

	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, st, nil, nil, nil, logger, workflow.WithPreflight(nil))
	mgr.ConfigureStages(workflow.StageSet{Narrative: noopStage{name: store.StageNarrative}})
	d, err := daemon.New(cfg, st, logger, daemon.Components{Workflow: mgr})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	log, err := st.GetLog(ctx, stranded.ID)
	if err != nil {
		t.Fatal(err)
	}
	if log.Status != store.LogFailed {
		t.Fatalf("stranded log status = %s, want failed", log.Status)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other, err := daemon.New(cfg, st, logger, daemon.Components{Workflow: mgr})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := other.Start(ctx); err == nil {
		other.Stop()
		t.Fatal("expected lock to block a second instance")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLeavesLiveRunAloneWhileLockHeld(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = ""
	st := testsupport.MustOpenStore(t, cfg)

	// A one-shot run holds the lock with its log mid-item.
	runLock := flock.New(cfg.LockPath())
	if ok, err := runLock.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	defer runLock.Unlock()
	item := testsupport.NewItem(t, st, "Live run", 90)
	live, err := st.CreateLog(context.Background(), item.ID, "cli-run")
	if err != nil {
		t.Fatalf("CreateLog: %v", err)
	}

	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, st, nil, nil, nil, logger, workflow.WithPreflight(nil))
	mgr.ConfigureStages(workflow.StageSet{Narrative: noopStage{name: store.StageNarrative}})
	d, err := daemon.New(cfg, st, logger, daemon.Components{Workflow: mgr})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		d.Stop()
		t.Fatal("expected start to fail while the lock is held")
	}

	log, err := st.GetLog(context.Background(), live.ID)
	if err != nil {
		t.Fatal(err)
	}
	if log.Status != store.LogProcessing {
		t.Fatalf("live log status = %s, want processing", log.Status)
	}
}
