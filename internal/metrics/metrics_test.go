package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrometheusProvider_ExposesCounters(t *testing.T) {
	ctx := context.Background()
	mp, err := NewMetricProvider(ctx,
		WithServiceName("craftcalc-test"),
		WithProviderConfig(ProviderCfg{Provider: PrometheusProvider}),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer mp.Shutdown(ctx)

	counter, err := mp.Meter("test").Int64Counter("craft_test_events_total")
	if err != nil {
		t.Fatal(err)
	}
	counter.Add(ctx, 3)

	rec := httptest.NewRecorder()
	NewPrometheusServer(0).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	found := false
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if strings.HasPrefix(line, "craft_test_events_total") && strings.HasSuffix(line, " 3") {
			found = true
		}
	}
	if !found {
		t.Errorf("counter missing from scrape:\n%s", rec.Body.String())
	}
}

func TestNewMetricProvider_UnknownProvider(t *testing.T) {
	if _, err := NewMetricProvider(context.Background(), WithProviderConfig(ProviderCfg{Provider: "statsd"})); err == nil {
		t.Error("expected error")
	}
}
