package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsExposed(t *testing.T) {
	MustRegister()
	MustRegister()

	before := testutil.ToFloat64(events.WithLabelValues("chat:start", ResultOK))
	IncEvent("chat:start", ResultOK)
	if got := testutil.ToFloat64(events.WithLabelValues("chat:start", ResultOK)); got != before+1 {
		t.Fatalf("counter = %v, want %v", got, before+1)
	}

	SetConnections(3)
	if got := testutil.ToFloat64(connections); got != 3 {
		t.Fatalf("connections = %v", got)
	}
	ObserveDatastore("create_message", time.Now())

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{"support_relay_events_total", "support_relay_connections", "support_relay_datastore_seconds"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
