package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_DeadLetterGauge_SetsBacklogValue(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_dead_letter_backlog"})
	r := &Registry{DeadLetterBacklog: gauge}

	r.DeadLetterGauge()(7)

	assert.Equal(t, float64(7), testutil.ToFloat64(r.DeadLetterBacklog))
}

func TestRegistry_ItemsProcessedTotal_IncrementsBySubstatus(t *testing.T) {
	counterVec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_items_processed_total"}, []string{"substatus"})
	r := &Registry{ItemsProcessedTotal: counterVec}

	r.ItemsProcessedTotal.WithLabelValues("parse_failed").Inc()
	r.ItemsProcessedTotal.WithLabelValues("parse_failed").Inc()
	r.ItemsProcessedTotal.WithLabelValues("").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(r.ItemsProcessedTotal.WithLabelValues("parse_failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.ItemsProcessedTotal.WithLabelValues("")))
}
