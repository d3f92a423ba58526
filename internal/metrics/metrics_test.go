package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Admissions.WithLabelValues("accepted").Inc()
	m.Admissions.WithLabelValues("capacity_exceeded").Add(2)
	m.UnitsInUse.Set(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Admissions.WithLabelValues("accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Admissions.WithLabelValues("capacity_exceeded")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.UnitsInUse))
}
