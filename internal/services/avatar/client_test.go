package avatar_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"reelcast/internal/config"
	"reelcast/internal/services"
	"reelcast/internal/services/avatar"
)

func newProvider(t *testing.T, finalStatus string, pollsBeforeDone int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, r *http.Request) {
		var req avatar.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.AvatarID != "coach" {
			t.Errorf("expected configured avatar id, got %q", req.AvatarID)
		}
		_ = json.NewEncoder(w).Encode(avatar.Job{ID: "job-1", Status: avatar.StatusQueued})
	})
	mux.HandleFunc("GET /jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		n := polls.Add(1)
		job := avatar.Job{ID: "job-1", Status: avatar.StatusProcessing}
		if n > pollsBeforeDone {
			job.Status = finalStatus
			job.VideoURL = "https://cdn.example.com/v.mp4"
			job.ThumbnailURL = "https://cdn.example.com/t.jpg"
			job.DurationSeconds = 41
			job.Error = "bad background"
		}
		_ = json.NewEncoder(w).Encode(job)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &polls
}

func newClient(baseURL string, jobTimeout int) *avatar.Client {
	return avatar.NewClient(config.Avatar{
		BaseURL: baseURL, APIKey: "k", AvatarID: "coach", JobTimeoutSeconds: jobTimeout,
	}, avatar.WithPollInterval(5*time.Millisecond))
}

func TestRenderPollsUntilCompleted(t *testing.T) {
	server, polls := newProvider(t, avatar.StatusCompleted, 2)
	job, err := newClient(server.URL, 5).Render(context.Background(), avatar.Request{Script: "s", AudioURL: "a"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if job.VideoURL == "" || job.DurationSeconds != 41 {
		t.Fatalf("unexpected job %+v", job)
	}
	if polls.Load() != 3 {
		t.Fatalf("expected 3 polls, got %d", polls.Load())
	}
}

func TestRenderFailedJobIsFatal(t *testing.T) {
	server, _ := newProvider(t, avatar.StatusFailed, 0)
	_, err := newClient(server.URL, 5).Render(context.Background(), avatar.Request{Script: "s", AudioURL: "a"})
	if services.KindOf(err) != services.KindProviderMalformed || services.Retryable(err) {
		t.Fatalf("expected non-retryable failure, got %v", err)
	}
}

func TestRenderTimesOut(t *testing.T) {
	server, _ := newProvider(t, avatar.StatusCompleted, 1<<30)
	_, err := newClient(server.URL, 1).Render(context.Background(), avatar.Request{Script: "s", AudioURL: "a"})
	if services.KindOf(err) != services.KindProviderTimeout {
		t.Fatalf("expected provider timeout, got %v", err)
	}
}
