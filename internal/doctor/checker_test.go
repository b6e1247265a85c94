package doctor

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archon-iirc/archon/internal/vectorstore"
)

func TestChecker_RunAll_PassesBasicChecksInTempDir(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	c := New(WithOutput(&out))

	results := c.RunAll(context.Background(), dir)
	require.NotEmpty(t, results)
	assert.False(t, c.HasCriticalFailures(results))

	c.PrintResults(results)
	assert.Contains(t, out.String(), "Archon System Check")
}

func TestChecker_CheckVectorStore_FailsWhenDisconnected(t *testing.T) {
	store := &fakeUnhealthyStore{}
	c := New(WithVectorStore(store))
	result := c.CheckVectorStore(context.Background())
	assert.Equal(t, StatusFail, result.Status)
}

type fakeUnhealthyStore struct{ vectorstore.Store }

func (f *fakeUnhealthyStore) HealthCheck(ctx context.Context) (vectorstore.HealthStatus, error) {
	return vectorstore.HealthStatus{Connected: false}, nil
}

func TestChecker_SummaryStatus(t *testing.T) {
	c := New()
	assert.Equal(t, "ready", c.SummaryStatus([]CheckResult{{Status: StatusPass, Required: true}}))
	assert.Equal(t, "ready_with_warnings", c.SummaryStatus([]CheckResult{{Status: StatusWarn}}))
	assert.Equal(t, "failed", c.SummaryStatus([]CheckResult{{Status: StatusFail, Required: true}}))
}

type fakeCollectionStore struct {
	vectorstore.Store
	count int
}

func (f *fakeCollectionStore) GetCollectionInfo(ctx context.Context, name string) (vectorstore.CollectionInfo, error) {
	return vectorstore.CollectionInfo{Name: name, Count: f.count}, nil
}

type fakePageStore struct {
	vectorstore.PageStore
	total int
}

func (f *fakePageStore) TotalChunkCount(ctx context.Context) (int, error) { return f.total, nil }

func TestChecker_CheckIndexConsistency_PassesWhenCountsMatch(t *testing.T) {
	c := New(
		WithVectorStore(&fakeCollectionStore{count: 10}),
		WithPageStore(&fakePageStore{total: 10}, "docs"),
	)
	result := c.CheckIndexConsistency(context.Background())
	assert.Equal(t, StatusPass, result.Status)
}

func TestChecker_CheckIndexConsistency_WarnsOnMismatch(t *testing.T) {
	c := New(
		WithVectorStore(&fakeCollectionStore{count: 7}),
		WithPageStore(&fakePageStore{total: 10}, "docs"),
	)
	result := c.CheckIndexConsistency(context.Background())
	assert.Equal(t, StatusWarn, result.Status)
	assert.False(t, result.IsCritical())
}
