package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"reelcast/internal/config"
	"reelcast/internal/daemon"
	"reelcast/internal/store"
	"reelcast/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, bind string) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = bind
	cfg.API.Token = "tok-7f3a"
	cfg.Providers.TextGen.APIKey = "textgen-key"

	configPath := filepath.Join(t.TempDir(), "config.toml")
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func seedStore(t *testing.T, cfg *config.Config) (itemID, failedUnit int64) {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.NewItem(t, st, "Candidates round 9", 90)
	log, err := st.CreateLog(ctx, item.ID, "run-1")
	if err != nil {
		t.Fatalf("create log: %v", err)
	}
	if err := st.FailLog(ctx, log, "provider-auth", "bad key"); err != nil {
		t.Fatalf("fail log: %v", err)
	}
	render := testsupport.CompletedArtifact(t, st, item.ID, store.StageRender, 0, nil)
	units := []*store.ScheduledUnit{{
		ItemID:           item.ID,
		RenderArtifactID: render.ID,
		Platform:         "youtube",
		ScheduledTime:    time.Now().UTC().Add(-time.Hour).Truncate(time.Hour),
		Metadata:         store.UnitMetadata{Title: "Round 9 recap"},
	}}
	if err := st.CreateUnits(ctx, units); err != nil {
		t.Fatalf("create units: %v", err)
	}
	if err := st.MarkUnitFailed(ctx, units[0], "publish", "upload rejected"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	return item.ID, units[0].ID
}

func TestConfigInitAndValidate(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init without --overwrite to refuse an existing file")
	}

	env := setupCLITestEnv(t, "")
	out, err = runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestConfigShowMasksSecrets(t *testing.T) {
	env := setupCLITestEnv(t, "")
	out, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "textgen-key") || strings.Contains(out, "tok-7f3a") {
		t.Fatalf("secrets leaked:\n%s", out)
	}
	requireContains(t, out, maskedSecret)
}

func TestLogsListAndReset(t *testing.T) {
	env := setupCLITestEnv(t, "")
	itemID, _ := seedStore(t, env.cfg)

	out, err := runCLI(t, []string{"logs", "list", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("logs list: %v", err)
	}
	requireContains(t, out, "bad key")

	out, err = runCLI(t, []string{"logs", "reset", itoa(itemID)}, env.configPath)
	if err != nil {
		t.Fatalf("logs reset: %v", err)
	}
	requireContains(t, out, "eligible for the next run")

	out, err = runCLI(t, []string{"--json", "logs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("logs list json: %v", err)
	}
	var views []logView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(views) != 0 {
		t.Fatalf("expected reset log to be gone, got %d", len(views))
	}
}

func TestUnitsFallBackToStoreWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t, "")
	_, failed := seedStore(t, env.cfg)

	out, err := runCLI(t, []string{"units", "list", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("units list: %v", err)
	}
	requireContains(t, out, "upload rejected")

	out, err = runCLI(t, []string{"--json", "units", "requeue", itoa(failed)}, env.configPath)
	if err != nil {
		t.Fatalf("units requeue: %v", err)
	}
	var view daemon.UnitView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if view.Status != store.UnitScheduled || view.RequeuedFrom != failed {
		t.Fatalf("unexpected requeued unit %+v", view)
	}
}

func TestStatusUsesDaemonAPI(t *testing.T) {
	var sawAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/status" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(daemon.Status{Running: true, PID: 4242})
	}))
	t.Cleanup(srv.Close)

	env := setupCLITestEnv(t, srv.URL)
	out, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running (pid 4242")
	if sawAuth != "Bearer tok-7f3a" {
		t.Fatalf("expected bearer token, got %q", sawAuth)
	}
}

func TestStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t, "")
	out, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "== Preflight ==")
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
