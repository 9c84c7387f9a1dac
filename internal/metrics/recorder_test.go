package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	m "github.com/usherflow/usher/backend/metrics"
)

func Test_Recorder_SharesValuesAcrossTags(t *testing.T) {
	r := NewRecorder()
	tagged := r.WithTags(m.Tags{"backend": "sqlite"})

	r.Counter("a", nil, 1)
	tagged.Counter("a", m.Tags{"x": "y"}, 2)
	tagged.Gauge("g", nil, 5)
	tagged.Timing("t", nil, time.Second)

	require.Equal(t, int64(3), r.CounterValue("a"))
	require.Equal(t, int64(5), r.GaugeValue("g"))
	require.Equal(t, 1, r.TimingCount("t"))
}

func Test_Timer(t *testing.T) {
	r := NewRecorder()

	timer := NewTimer(r, "tick", nil)
	timer.Stop()

	require.Equal(t, 1, r.TimingCount("tick"))
}
