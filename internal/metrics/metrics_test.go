package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, g interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestNewRegistersAllCollectors(t *testing.T) {
	m := New("ES")
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestOrdersTotalIncrementsByLabel(t *testing.T) {
	m := New("ES")
	m.OrdersTotal.WithLabelValues("paper", "BUY").Inc()
	m.OrdersTotal.WithLabelValues("paper", "BUY").Inc()

	var out dto.Metric
	require.NoError(t, m.OrdersTotal.WithLabelValues("paper", "BUY").Write(&out))
	assert.Equal(t, 2.0, out.GetCounter().GetValue())
}

func TestEquityGaugeSetsValue(t *testing.T) {
	m := New("ES")
	m.EquityUSD.Set(50250.75)
	assert.Equal(t, 50250.75, gaugeValue(t, m.EquityUSD))
}

func TestSetLicenseStateTogglesExclusively(t *testing.T) {
	m := New("ES")
	states := []string{"VALID", "GRACE_WITH_POSITION", "EXPIRED_NO_POSITION", "CONFLICT"}
	m.SetLicenseState("GRACE_WITH_POSITION", states)

	var active, inactive dto.Metric
	require.NoError(t, m.LicenseState.WithLabelValues("GRACE_WITH_POSITION").Write(&active))
	require.NoError(t, m.LicenseState.WithLabelValues("VALID").Write(&inactive))
	assert.Equal(t, 1.0, active.GetGauge().GetValue())
	assert.Equal(t, 0.0, inactive.GetGauge().GetValue())
}

func TestSetCircuitBreakerRecordsOpenState(t *testing.T) {
	m := New("ES")
	m.SetCircuitBreaker("broker", true)
	var out dto.Metric
	require.NoError(t, m.CircuitBreakerOpen.WithLabelValues("broker").Write(&out))
	assert.Equal(t, 1.0, out.GetGauge().GetValue())
}

func TestTwoInstancesDoNotShareRegistries(t *testing.T) {
	a := New("ES")
	b := New("NQ")
	a.OrdersTotal.WithLabelValues("paper", "BUY").Inc()

	familiesB, err := b.Registry.Gather()
	require.NoError(t, err)
	for _, fam := range familiesB {
		for _, metric := range fam.GetMetric() {
			assert.NotEqual(t, 1.0, metric.GetCounter().GetValue(), "instance b must not observe instance a's counter increments")
		}
	}
}
