package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"reelcast/internal/logging"
	"reelcast/internal/metrics"
	"reelcast/internal/scheduler"
	"reelcast/internal/store"
	"reelcast/internal/testsupport"
	"reelcast/internal/workflow"
)

func newTestAPI(t *testing.T, token string) (http.Handler, *store.Store, *metrics.Collectors) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.API.Token = token
	st := testsupport.MustOpenStore(t, cfg)
	reg := prometheus.NewRegistry()
	collectors := metrics.NewCollectors(reg)
	sched, err := scheduler.New(cfg, st, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}
	wf := workflow.NewManager(cfg, st, nil, sched, nil, logging.NewNop(), workflow.WithPreflight(nil))
	d, err := New(cfg, st, logging.NewNop(), Components{Workflow: wf, Scheduler: sched, Gatherer: reg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d.api.routes(token), st, collectors
}

func seedUnits(t *testing.T, st *store.Store) (*store.ScheduledUnit, *store.ScheduledUnit) {
	t.Helper()
	ctx := context.Background()
	item := testsupport.NewItem(t, st, "Candidates round 9", 90)
	render := testsupport.CompletedArtifact(t, st, item.ID, store.StageRender, 0, nil)
	slot := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	published := &store.ScheduledUnit{ItemID: item.ID, RenderArtifactID: render.ID, Platform: "youtube", ScheduledTime: slot,
		Metadata: store.UnitMetadata{Title: "Round 9 recap"}}
	failed := &store.ScheduledUnit{ItemID: item.ID, RenderArtifactID: render.ID, Platform: "tiktok", ScheduledTime: slot}
	if err := st.CreateUnits(ctx, []*store.ScheduledUnit{published, failed}); err != nil {
		t.Fatalf("CreateUnits: %v", err)
	}
	if err := st.MarkPublished(ctx, published, "yt-1", "https://youtube.example/yt-1"); err != nil {
		t.Fatal(err)
	}
	if err := st.MarkUnitFailed(ctx, failed, "platform-publish-failure", "upload rejected"); err != nil {
		t.Fatal(err)
	}
	return published, failed
}

func TestAPIServerListsUnitsByStatus(t *testing.T) {
	handler, st, _ := newTestAPI(t, "")
	published, _ := seedUnits(t, st)

	req := httptest.NewRequest(http.MethodGet, "/api/units?status=published", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp UnitListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(resp.Units))
	}
	if resp.Units[0].ID != published.ID || resp.Units[0].ExternalID != "yt-1" || resp.Units[0].Title != "Round 9 recap" {
		t.Fatalf("unexpected unit: %+v", resp.Units[0])
	}
}

func TestAPIServerRequeue(t *testing.T) {
	handler, st, _ := newTestAPI(t, "")
	published, failed := seedUnits(t, st)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"published unit conflicts", "/api/units/" + itoa(published.ID) + "/requeue", http.StatusConflict},
		{"bad id", "/api/units/abc/requeue", http.StatusBadRequest},
		{"unknown action", "/api/units/1/publish", http.StatusNotFound},
		{"failed unit requeued", "/api/units/" + itoa(failed.ID) + "/requeue", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, tt.path, nil))
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestAPIServerRequiresToken(t *testing.T) {
	handler, _, _ := newTestAPI(t, "secret")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/units", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/units", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
}

func TestAPIServerExposesMetrics(t *testing.T) {
	handler, _, collectors := newTestAPI(t, "secret")
	collectors.Publish.WithLabelValues("youtube", "success").Inc()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `reelcast_publish_total{outcome="success",platform="youtube"} 1`) {
		t.Fatalf("metrics output missing publish counter:\n%s", w.Body.String())
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
