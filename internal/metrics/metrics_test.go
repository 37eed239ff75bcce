package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Observe("append", time.Now(), nil)
	m.Observe("append", time.Now(), nil)
	m.Observe("append", time.Now(), errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("append", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("append", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Latency))
}

func TestRowsAndBytes(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Written(10, 80)
	m.Read(4, 32)
	m.Read(1, 8)

	assert.Equal(t, 10.0, testutil.ToFloat64(m.Rows.WithLabelValues("written")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Rows.WithLabelValues("read")))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.Bytes.WithLabelValues("read")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe("select", time.Now(), nil)
		m.Written(1, 1)
		m.Read(1, 1)
	})
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
