package news

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	m.ObserveRefresh(RefreshSuccess, 0.4)
	m.IncFeedErrors("seltzer")
	m.IncCacheRequests(CacheHit)
	m.SetSnapshot(10, 1717236000)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{
		MetricNewsRefreshTotal,
		MetricNewsRefreshDuration,
		MetricNewsFeedErrors,
		MetricNewsCacheRequests,
		MetricNewsCachedItems,
		MetricNewsLastRefreshTimestamp,
	} {
		if !found[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}

	if err := NewMetrics().Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}
