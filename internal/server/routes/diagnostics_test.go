package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/ai-ecosystem-graph/graph-edge/internal/artifact"
	"github.com/ai-ecosystem-graph/graph-edge/internal/catalog"
	"github.com/ai-ecosystem-graph/graph-edge/internal/edgecache"
	"github.com/ai-ecosystem-graph/graph-edge/internal/metrics"
)

type fixedSnapshot struct {
	idx *catalog.Index
}

func (f fixedSnapshot) Snapshot() (*catalog.Index, bool) {
	return f.idx, f.idx != nil
}

type unhealthyCache struct{ edgecache.Noop }

func (unhealthyCache) HealthCheck(context.Context) error {
	return errors.New("dial tcp: connection refused")
}

func newDiagnosticsApp(opts DiagnosticsOptions) *fiber.App {
	app := fiber.New()
	RegisterDiagnosticsRoutes(app, opts)
	return app
}

func getJSON(t *testing.T, app *fiber.App, path string, into interface{}) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for %s, got %d", path, resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, into); err != nil {
		t.Fatalf("invalid JSON from %s: %v (%s)", path, err, body)
	}
}

func TestHealthzReportsCacheStatus(t *testing.T) {
	app := newDiagnosticsApp(DiagnosticsOptions{Cache: unhealthyCache{}, StorageSummary: "fs:/data"})

	var payload map[string]interface{}
	getJSON(t, app, "/-/healthz", &payload)
	if payload["status"] != "ok" || payload["storage"] != "fs:/data" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if !strings.Contains(payload["cache"].(string), "connection refused") {
		t.Fatalf("cache failure should be reported, got %v", payload["cache"])
	}

	app = newDiagnosticsApp(DiagnosticsOptions{Cache: edgecache.NewMemoryCache(0)})
	getJSON(t, app, "/-/healthz", &payload)
	if payload["cache"] != "ok" || payload["cache_backend"] != "memory" {
		t.Fatalf("memory cache should be healthy: %v", payload)
	}
}

func TestIndexStatsDoNotLoad(t *testing.T) {
	var payload indexPayload
	getJSON(t, newDiagnosticsApp(DiagnosticsOptions{Index: fixedSnapshot{}}), "/-/index", &payload)
	if payload.Loaded {
		t.Fatalf("no index should be reported before the first load")
	}

	idx, err := catalog.ParseIndex([]byte(`{"index": {"a": 1, "b": 2}}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	idx.SourceKey = artifact.ModelLookupKey
	idx.LoadedAt = time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

	getJSON(t, newDiagnosticsApp(DiagnosticsOptions{Index: fixedSnapshot{idx: idx}}), "/-/index", &payload)
	if !payload.Loaded || payload.Entries != 2 || payload.SourceKey != artifact.ModelLookupKey {
		t.Fatalf("unexpected index stats %+v", payload)
	}
	if payload.LoadedAt != "2025-02-03T04:05:06Z" {
		t.Fatalf("unexpected loaded_at %s", payload.LoadedAt)
	}
}

func TestArtifactsListsRulesInOrder(t *testing.T) {
	var payload struct {
		Rules []rulePayload `json:"rules"`
	}
	getJSON(t, newDiagnosticsApp(DiagnosticsOptions{DecompressIndexFiles: true}), "/-/artifacts", &payload)
	if len(payload.Rules) != len(artifact.Rules()) {
		t.Fatalf("unexpected rule count %d", len(payload.Rules))
	}
	first, last := payload.Rules[0], payload.Rules[len(payload.Rules)-1]
	if first.Class != artifact.ClassCompactIndex || !first.ServedDecompressed {
		t.Fatalf("unexpected first rule %+v", first)
	}
	if last.Key != artifact.GraphDataKey || last.ServedDecompressed {
		t.Fatalf("graph data must never be served decompressed: %+v", last)
	}
	for _, rule := range payload.Rules {
		if rule.Class == artifact.ClassComponent && rule.Key != "components/component_<N>.json.gz" {
			t.Fatalf("component rule should show its key template, got %q", rule.Key)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	collectors := metrics.New()
	collectors.ObserveRequest("lookup", 404)

	app := newDiagnosticsApp(DiagnosticsOptions{Metrics: collectors})
	resp, err := app.Test(httptest.NewRequest("GET", "/-/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `graph_edge_requests_total{action="lookup",status="404"} 1`) {
		t.Fatalf("metrics output missing counter:\n%s", body)
	}
}
