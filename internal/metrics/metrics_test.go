package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Delivery("send", true)
		m.Update("text")
		m.Transition("created")
		m.ReaperRun()(3, nil)
		m.Event("kafka", false)
	})
}

func TestMetricsCount(t *testing.T) {
	m := New()
	m.Delivery("send", true)
	m.Delivery("send", true)
	m.Delivery("edit", false)
	m.ReaperRun()(2, nil)
	m.ReaperRun()(0, errors.New("db down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.deliveries.WithLabelValues("send", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("edit", "failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reaperPurged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reaperRuns.WithLabelValues("failure")))
}

func TestKnownAddressesGauge(t *testing.T) {
	m := New()
	size := 0
	m.KnownAddresses(func() int { return size })
	size = 3

	n, err := testutil.GatherAndCount(m.Registry, "support_bot_addrcache_known_addresses")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	families, err := m.Registry.Gather()
	assert.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "support_bot_addrcache_known_addresses" {
			assert.Equal(t, 3.0, mf.GetMetric()[0].GetGauge().GetValue())
		}
	}

	var none *Metrics
	assert.NotPanics(t, func() { none.KnownAddresses(func() int { return 0 }) })
}
