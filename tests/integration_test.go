package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

////////////////////////////////////////////////////////////////////////////////
// INTEGRATION TEST SUITE
//
// These tests validate the service end-to-end:
//
//   Client → HTTP API → Recorder → Registry fetch → SQLite → Query → Response
//
// The service must already be running; set INTEGRATION=1 to enable the suite.
//
// Optional environment overrides:
//
//   BASE_URL default http://localhost:8080
//
// Note: the running service performs real registry lookups, so recording an
// event may take a few seconds when the registry is unreachable (the fetch
// retries before degrading).
////////////////////////////////////////////////////////////////////////////////

func baseURL() string {
	if v := os.Getenv("BASE_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

// requireService skips the suite unless integration mode is enabled.
func requireService(t *testing.T) {
	t.Helper()
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 and run the service to enable integration tests")
	}
	waitHealthy(t)
}

// unique generates a unique package name so tests never collide with
// previous runs against the same database file.
func unique(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// waitHealthy polls /health until the service and its database are up.
func waitHealthy(t *testing.T) {
	t.Helper()

	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(30 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL() + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(300 * time.Millisecond)
	}

	t.Fatalf("service not healthy after 30s")
}

////////////////////////////////////////////////////////////////////////////////
// GENERIC HTTP HELPERS
////////////////////////////////////////////////////////////////////////////////

func httpGet(t *testing.T, path string) (int, []byte) {
	t.Helper()

	resp, err := (&http.Client{Timeout: 30 * time.Second}).Get(baseURL() + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

func postJSON(t *testing.T, path string, payload any) (int, []byte) {
	t.Helper()

	b, _ := json.Marshal(payload)

	resp, err := (&http.Client{Timeout: 60 * time.Second}).Post(
		baseURL()+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func postEvent(t *testing.T, pkg, eventType string, ts time.Time) (int, []byte) {
	return postJSON(t, "/event", map[string]any{
		"timestamp": ts.UTC().Format(time.RFC3339),
		"package":   pkg,
		"type":      eventType,
	})
}

////////////////////////////////////////////////////////////////////////////////
// HEALTH
////////////////////////////////////////////////////////////////////////////////

func TestHealth_ReturnsHealthy(t *testing.T) {
	requireService(t)

	s, b := httpGet(t, "/health")
	if s != http.StatusOK {
		t.Fatalf("health expected 200 got %d: %s", s, b)
	}

	var body struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		t.Fatalf("invalid health JSON: %v", err)
	}
	if body.Status != "healthy" || body.Database != "connected" {
		t.Fatalf("unexpected health body: %s", b)
	}
}

////////////////////////////////////////////////////////////////////////////////
// EVENT CONTRACT
////////////////////////////////////////////////////////////////////////////////

func TestEvent_RecordInstall(t *testing.T) {
	requireService(t)

	s, b := postEvent(t, unique("itest"), "install", time.Now())
	if s != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", s, b)
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(b, &resp); err != nil || resp.Status != "success" {
		t.Fatalf("unexpected response: %s", b)
	}
}

func TestEvent_EmptyPackageRejected(t *testing.T) {
	requireService(t)

	s, _ := postEvent(t, "   ", "install", time.Now())
	if s != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", s)
	}
}

func TestEvent_FutureTimestampRejected(t *testing.T) {
	requireService(t)

	s, _ := postEvent(t, unique("itest"), "install", time.Now().Add(24*time.Hour))
	if s != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", s)
	}
}

////////////////////////////////////////////////////////////////////////////////
// CORE SYSTEM BEHAVIOR
////////////////////////////////////////////////////////////////////////////////

// Two installs within an hour must produce a co-installation pair and both
// count toward totals.
func TestCoInstallScenario(t *testing.T) {
	requireService(t)

	pkgA := unique("pair-a")
	pkgB := unique("pair-b")
	t0 := time.Now().UTC().Add(-10 * time.Minute)

	if s, b := postEvent(t, pkgA, "install", t0); s != http.StatusCreated {
		t.Fatalf("install %s: expected 201 got %d: %s", pkgA, s, b)
	}
	if s, b := postEvent(t, pkgB, "install", t0.Add(5*time.Minute)); s != http.StatusCreated {
		t.Fatalf("install %s: expected 201 got %d: %s", pkgB, s, b)
	}

	s, b := httpGet(t, "/metrics")
	if s != http.StatusOK {
		t.Fatalf("metrics expected 200 got %d", s)
	}

	var m struct {
		PopularPairs [][]any `json:"popular_pairs"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("invalid metrics JSON: %v", err)
	}

	found := false
	for _, p := range m.PopularPairs {
		if len(p) == 3 && p[0] == pkgB && p[1] == pkgA {
			found = true
		}
	}
	if !found {
		t.Fatalf("pair (%s, %s) not in popular_pairs: %s", pkgB, pkgA, b)
	}
}

func TestPackageInstallTotalAndLast(t *testing.T) {
	requireService(t)

	pkg := unique("total")
	ts := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)

	if s, b := postEvent(t, pkg, "install", ts); s != http.StatusCreated {
		t.Fatalf("install: expected 201 got %d: %s", s, b)
	}

	s, b := httpGet(t, "/package/"+pkg+"/event/install/total")
	if s != http.StatusOK {
		t.Fatalf("total expected 200 got %d", s)
	}
	var total int
	if err := json.Unmarshal(b, &total); err != nil || total != 1 {
		t.Fatalf("expected total 1, got %s", b)
	}

	s, b = httpGet(t, "/package/"+pkg+"/event/install/last")
	if s != http.StatusOK {
		t.Fatalf("last expected 200 got %d", s)
	}
	var last string
	if err := json.Unmarshal(b, &last); err != nil {
		t.Fatalf("expected timestamp string, got %s", b)
	}
	if last != ts.Format(time.RFC3339) {
		t.Fatalf("expected last %s, got %s", ts.Format(time.RFC3339), last)
	}
}

func TestPackageStats(t *testing.T) {
	requireService(t)

	pkg := unique("stats")
	if s, b := postEvent(t, pkg, "install", time.Now()); s != http.StatusCreated {
		t.Fatalf("install: expected 201 got %d: %s", s, b)
	}

	s, b := httpGet(t, "/packages/"+pkg)
	if s != http.StatusOK {
		t.Fatalf("stats expected 200 got %d", s)
	}

	var stats struct {
		PackageName   string         `json:"package_name"`
		TotalInstalls int            `json:"total_installs"`
		DailyInstalls map[string]int `json:"daily_installs"`
	}
	if err := json.Unmarshal(b, &stats); err != nil {
		t.Fatalf("invalid stats JSON: %v", err)
	}
	if stats.PackageName != pkg || stats.TotalInstalls != 1 {
		t.Fatalf("unexpected stats: %s", b)
	}
	if len(stats.DailyInstalls) == 0 {
		t.Fatalf("expected daily installs in extended stats: %s", b)
	}
}
