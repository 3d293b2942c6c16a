package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/artpar/cmscore/adapters/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	if m.RequestsTotal == nil || m.RequestDuration == nil || m.RequestsInFlight == nil {
		t.Error("request metrics not initialized")
	}
	if m.SchemaOps == nil || m.ItemOps == nil || m.VersionConflicts == nil || m.SearchDuration == nil {
		t.Error("content metrics not initialized")
	}
	if m.ConfigReloads == nil || m.ConfigReloadErrors == nil || m.ConfigLastReload == nil {
		t.Error("config metrics not initialized")
	}
}

func TestItemOp(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.ItemOp("create", metrics.OutcomeOK)
	m.ItemOp("update", metrics.OutcomeOK)
	m.ItemOp("update", metrics.OutcomeConflict)
	m.ItemOp("update", metrics.OutcomeConflict)

	families := gather(t, reg)
	ops, ok := families["cmscore_item_operations_total"]
	if !ok {
		t.Fatal("cmscore_item_operations_total metric not found")
	}
	if len(ops.GetMetric()) != 3 {
		t.Errorf("expected 3 metric series, got %d", len(ops.GetMetric()))
	}
	conflicts, ok := families["cmscore_version_conflicts_total"]
	if !ok {
		t.Fatal("cmscore_version_conflicts_total metric not found")
	}
	if got := conflicts.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("version conflicts = %v, want 2", got)
	}
}

func TestSchemaOpAndSearch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.SchemaOp("add_field", metrics.OutcomeOK)
	m.SchemaOp("remove_field", metrics.OutcomeRejected)
	m.Search("latest", 3*time.Millisecond)
	m.Search("published", time.Millisecond)

	families := gather(t, reg)
	if f := families["cmscore_schema_operations_total"]; f == nil || len(f.GetMetric()) != 2 {
		t.Errorf("schema operations = %v", f)
	}
	search := families["cmscore_search_duration_seconds"]
	if search == nil || len(search.GetMetric()) != 2 {
		t.Fatalf("search duration = %v", search)
	}
	if n := search.GetMetric()[0].GetHistogram().GetSampleCount(); n != 1 {
		t.Errorf("sample count = %d, want 1", n)
	}
}

func TestConfigReloaded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	at := time.Unix(1700000000, 0)
	m.ConfigReloaded(nil, at)
	m.ConfigReloaded(errors.New("bad yaml"), at.Add(time.Minute))

	families := gather(t, reg)
	if v := families["cmscore_config_reloads_total"].GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("reloads = %v, want 1", v)
	}
	if v := families["cmscore_config_reload_errors_total"].GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("reload errors = %v, want 1", v)
	}
	if v := families["cmscore_config_last_reload_timestamp"].GetMetric()[0].GetGauge().GetValue(); v != 1700000000 {
		t.Errorf("last reload = %v", v)
	}
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "unmatched"},
		{"/api/models/{modelID}/items", "/api/models/{modelID}/items"},
	}
	for _, tt := range tests {
		if got := metrics.RouteLabel(tt.in); got != tt.want {
			t.Errorf("RouteLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := "/" + string(make([]byte, 100))
	if got := metrics.RouteLabel(long); len(got) != 83 {
		t.Errorf("len(RouteLabel(long)) = %d, want 83", len(got))
	}
}
