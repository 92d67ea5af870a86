package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRunAndField(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordRun("completed", 2*time.Second)
	m.RecordRun("completed", time.Second)
	m.RecordRun("failed", time.Second)
	m.RecordField("regex", OutcomeFound)
	m.RecordField("template", OutcomeMissing)
	m.RecordField("template", OutcomeMissing)
	m.SetQueueDepth(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fieldsTotal.WithLabelValues("regex", OutcomeFound)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.fieldsTotal.WithLabelValues("template", OutcomeMissing)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRun("completed", time.Second)
		m.RecordField("regex", OutcomeError)
		m.SetQueueDepth(1)
	})
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).RecordField("region", OutcomeFound)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `docfields_fields_total{mode="region",outcome="found"} 1`))
}
