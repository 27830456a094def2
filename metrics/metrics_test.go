package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersExposed(t *testing.T) {
	m := New()
	m.ImagesProcessed.Inc()
	m.Episodes.WithLabelValues("converged").Add(2)
	m.StageFailures.WithLabelValues("region").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImagesProcessed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Episodes.WithLabelValues("converged")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tipguide_images_processed_total 1")
	assert.Contains(t, rec.Body.String(), `tipguide_stage_failures_total{stage="region"} 1`)
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.TargetsFound.Add(5)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.TargetsFound))
}
