package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveScan(time.Millisecond, 3)
		m.IncrementResponse("approved")
		m.IncrementUnrecognized()
		m.IncrementCredentialsIssued("Aadhar")
	})
}

func TestCountersIncrement(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementResponse("approved")
	m.IncrementResponse("approved")
	m.IncrementResponse("failed")
	m.IncrementRequestsSent()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Responses.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Responses.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsSent))
}
