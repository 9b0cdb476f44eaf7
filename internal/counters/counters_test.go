package counters

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementAndRate(t *testing.T) {
	Reset()
	start := time.Unix(1000, 0)
	Update(start)

	for i := 0; i < 50; i++ {
		Increment(Requests)
	}
	assert.EqualValues(t, 50, Value(Requests))

	Update(start.Add(time.Second))
	assert.Zero(t, Rate(Requests), "updates inside the interval are ignored")

	Update(start.Add(10 * time.Second))
	assert.InDelta(t, 5.0, Rate(Requests), 1e-9)

	for i := 0; i < 100; i++ {
		Increment(Requests)
	}
	Update(start.Add(20 * time.Second))
	// 0.75*5 + 0.25*10
	assert.InDelta(t, 6.25, Rate(Requests), 1e-9)
}

func TestNames(t *testing.T) {
	tests := []struct {
		c    Counter
		want string
	}{
		{Requests, "requests"},
		{Commands, "external_commands"},
		{Overflows, "livestatus_overflows"},
		{Counter(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.c.Name())
	}
	assert.Len(t, All(), int(numCounters))
}

func TestRegister(t *testing.T) {
	Reset()
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	Increment(Connections)
	Increment(Connections)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == "livestatus_connections_total" {
			found = true
			require.Len(t, mf.GetMetric(), 1)
			assert.EqualValues(t, 2, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)

	require.Error(t, Register(reg), "double registration must fail")
}
