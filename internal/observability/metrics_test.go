package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordToolDispatchIncrementsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)

	m.RecordToolDispatch("disassemble", false, 0.25)
	m.RecordToolDispatch("disassemble", true, 1.5)

	assert.Equal(t, 2, testutil.CollectAndCount(m.ToolDispatchCounter))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ToolDispatchCounter.WithLabelValues("disassemble", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ToolDispatchCounter.WithLabelValues("disassemble", "error")))
}

func TestRecordAgentStepIncrementsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)

	m.RecordAgentStep("triage", "complete")
	m.RecordAgentStep("triage", "complete")
	m.RecordAgentStep("triage", "max_steps")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.AgentSteps.WithLabelValues("triage", "complete")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AgentSteps.WithLabelValues("triage", "max_steps")))
}

func TestRecordDMailRevertIncrementsByAgent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)

	m.RecordDMailRevert("exploit-dev")

	require.Equal(t, float64(1), testutil.ToFloat64(m.DMailReverts.WithLabelValues("exploit-dev")))
}
