package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyToBucket(t *testing.T) {
	assert.Equal(t, BucketP10, LatencyToBucket(5*time.Millisecond))
	assert.Equal(t, BucketP50, LatencyToBucket(20*time.Millisecond))
	assert.Equal(t, BucketP1000, LatencyToBucket(900*time.Millisecond))
}

func TestExtractTerms_DropsShortWords(t *testing.T) {
	assert.Equal(t, []string{"hybrid", "search"}, ExtractTerms("a hybrid OR search"))
	assert.Nil(t, ExtractTerms("  "))
}

func TestQueryMetrics_Record_TracksTotalsAndZeroResults(t *testing.T) {
	m := NewQueryMetrics(nil)
	m.Record(QueryEvent{Query: "hybrid search", QueryType: QueryTypeMixed, ResultCount: 3, Latency: 20 * time.Millisecond})
	m.Record(QueryEvent{Query: "no hits anywhere", QueryType: QueryTypeSemantic, ResultCount: 0, Latency: 5 * time.Millisecond})

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, []string{"no hits anywhere"}, snap.ZeroResultQueries)
	assert.Equal(t, int64(1), snap.QueryTypeCounts[QueryTypeMixed])
}

func TestQueryMetrics_Record_TracksExactRepeats(t *testing.T) {
	m := NewQueryMetrics(nil)
	m.Record(QueryEvent{Query: "hybrid search", QueryType: QueryTypeSemantic, ResultCount: 1})
	m.Record(QueryEvent{Query: "Hybrid Search", QueryType: QueryTypeSemantic, ResultCount: 1})

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.ExactRepeatCount)
}

func TestQueryMetrics_Close_FlushesToStore(t *testing.T) {
	store := newFakeMetricsStore()
	m := NewQueryMetrics(store)
	m.Record(QueryEvent{Query: "flush me", QueryType: QueryTypeLexical, ResultCount: 2, Latency: time.Millisecond})

	require.NoError(t, m.Close())
	assert.Equal(t, int64(1), store.typeCounts[QueryTypeLexical])
}

type fakeMetricsStore struct {
	typeCounts map[QueryType]int64
	terms      map[string]int64
}

func newFakeMetricsStore() *fakeMetricsStore {
	return &fakeMetricsStore{typeCounts: map[QueryType]int64{}, terms: map[string]int64{}}
}

func (f *fakeMetricsStore) SaveQueryTypeCounts(date string, counts map[QueryType]int64) error {
	for k, v := range counts {
		f.typeCounts[k] += v
	}
	return nil
}
func (f *fakeMetricsStore) GetQueryTypeCounts(from, to string) (map[QueryType]int64, error) {
	return f.typeCounts, nil
}
func (f *fakeMetricsStore) UpsertTermCounts(terms map[string]int64) error {
	for k, v := range terms {
		f.terms[k] += v
	}
	return nil
}
func (f *fakeMetricsStore) GetTopTerms(limit int) ([]TermCount, error) { return nil, nil }
func (f *fakeMetricsStore) AddZeroResultQuery(query string, timestamp time.Time) error {
	return nil
}
func (f *fakeMetricsStore) GetZeroResultQueries(limit int) ([]string, error) { return nil, nil }
func (f *fakeMetricsStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	return nil
}
func (f *fakeMetricsStore) GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	return nil, nil
}
func (f *fakeMetricsStore) Close() error { return nil }
