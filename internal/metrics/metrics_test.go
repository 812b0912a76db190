package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHandlerExposesCollectors(t *testing.T) {
	SuggestionRuns.WithLabelValues("success").Inc()
	StoreLookups.WithLabelValues("memory").Inc()
	JobStateTransitions.WithLabelValues("suggestions", "running").Inc()

	if got := testutil.ToFloat64(SuggestionRuns.WithLabelValues("success")); got < 1 {
		t.Errorf("runs counter = %v, want >= 1", got)
	}

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, name := range []string{
		"kinotv_suggestion_runs_total",
		"kinotv_suggestion_store_lookups_total",
		"kinotv_job_state_transitions_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("/metrics is missing %s", name)
		}
	}
}
