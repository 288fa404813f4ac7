package query

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	fail := false
	c := newTestContext(backendFunc(func(context.Context, *SearchRequest) (RecordSet, error) {
		if fail {
			return nil, errBoom
		}
		return NewRecordSet(people(3)...), nil
	}), WithMetrics(m))
	q := From[person](c, personMapping)

	_, err := q.ToSlice(t.Context())
	require.NoError(t, err)
	_, err = q.Where(func(Expr) Expr { return False() }).ToSlice(t.Context())
	require.NoError(t, err)
	fail = true
	_, err = q.ToSlice(t.Context())
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues(OutcomeError)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Records))

	n, err := testutil.GatherAndCount(reg, "adquery_searches_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Skipped searches are not timed.
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "adquery_search_duration_seconds" {
			assert.Equal(t, uint64(2), f.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
}

func TestMetrics_Unregistered(t *testing.T) {
	m := NewMetrics(nil)
	m.observeRecord()
	m.observeSearch(OutcomeOK, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Records))

	var none *Metrics
	assert.NotPanics(t, func() {
		none.observeRecord()
		none.observeSearch(OutcomeError, 0)
	})
}
