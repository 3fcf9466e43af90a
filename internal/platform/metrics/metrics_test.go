package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncIngestion("created", "")
	m.IncIngestion("error", "publish_failed")
	m.IncIngestion("error", "publish_failed")
	m.IncPublishConflict("streaming")
	m.IncDegraded()
	m.SetBreakerOpen(true)
	m.ObserveStage(StageResolve, 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Ingestions.WithLabelValues("created", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Ingestions.WithLabelValues("error", "publish_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishConflicts.WithLabelValues("streaming")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Degraded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClassifierBreakerOpen))

	m.SetBreakerOpen(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ClassifierBreakerOpen))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncIngestion("noop", "")
		m.ObserveStage(StagePublish, time.Second)
		m.IncResolverAnswer("8.8.8.8:53", "answered")
		m.IncDegraded()
		m.IncPublishConflict("games")
		m.SetBreakerOpen(true)
		m.IncBuild("success")
	})
}
