package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRecordUpstreamRequest(t *testing.T) {
	counter := upstreamRequests.WithLabelValues("list_callbacks", "success")
	before := testutil.ToFloat64(counter)
	beforeSamples := durationSampleCount(t, "list_callbacks")

	RecordUpstreamRequest("list_callbacks", "success", 25*time.Millisecond)

	require.InDelta(t, before+1, testutil.ToFloat64(counter), 0.0001)
	require.Equal(t, beforeSamples+1, durationSampleCount(t, "list_callbacks"))
}

func TestForcedLogoutCounter(t *testing.T) {
	before := testutil.ToFloat64(forcedLogouts)
	RecordForcedLogout()
	require.InDelta(t, before+1, testutil.ToFloat64(forcedLogouts), 0.0001)
}

func TestOpenFormsGauge(t *testing.T) {
	before := testutil.ToFloat64(openEditorForms)
	EditorFormOpened()
	EditorFormOpened()
	EditorFormClosed()
	require.InDelta(t, before+1, testutil.ToFloat64(openEditorForms), 0.0001)
}

func durationSampleCount(t *testing.T, operation string) uint64 {
	t.Helper()

	observer, err := upstreamDuration.GetMetricWithLabelValues(operation)
	require.NoError(t, err)

	metric := &dto.Metric{}
	require.NoError(t, observer.(prometheus.Metric).Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}
