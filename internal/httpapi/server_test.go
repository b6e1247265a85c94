package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archon-iirc/archon/internal/model"
	"github.com/archon-iirc/archon/internal/progress"
)

type fakePages struct {
	pages map[string]*model.Page
}

func (f *fakePages) EnsureSource(ctx context.Context, sourceID string) error { return nil }
func (f *fakePages) UpsertPage(ctx context.Context, page *model.Page) error  { return nil }
func (f *fakePages) UpdatePageChunkCount(ctx context.Context, pageID string, count int) error {
	return nil
}
func (f *fakePages) GetPage(ctx context.Context, pageID string) (*model.Page, error) {
	p, ok := f.pages[pageID]
	if !ok {
		return nil, assertNotFound{}
	}
	return p, nil
}
func (f *fakePages) GetPageByURL(ctx context.Context, sourceID, url string) (*model.Page, error) {
	for _, p := range f.pages {
		if p.SourceID == sourceID && p.URL == url {
			return p, nil
		}
	}
	return nil, assertNotFound{}
}
func (f *fakePages) UpdateSourceSummary(ctx context.Context, sourceID, title, summary string, wordCount int) error {
	return nil
}
func (f *fakePages) DeleteSource(ctx context.Context, sourceID string) error { return nil }
func (f *fakePages) ListPages(ctx context.Context, sourceID string, limit, offset int) ([]*model.Page, error) {
	var out []*model.Page
	for _, p := range f.pages {
		out = append(out, p)
	}
	return out, nil
}
func (f *fakePages) ListSources(ctx context.Context) ([]*model.Source, error) { return nil, nil }
func (f *fakePages) TotalChunkCount(ctx context.Context) (int, error) {
	total := 0
	for _, p := range f.pages {
		total += p.ChunkCount
	}
	return total, nil
}

type assertNotFound struct{}

func (assertNotFound) Error() string { return "not found" }

func newTestServer(t *testing.T, authToken string) (*Server, *fakePages) {
	pages := &fakePages{pages: map[string]*model.Page{
		"p1": {ID: "p1", SourceID: "src", URL: "https://example.com/a", FullContent: "short"},
	}}
	tracker := progress.New()
	t.Cleanup(tracker.Close)
	s := New(Config{
		Pages:        pages,
		Tracker:      tracker,
		AuthToken:    authToken,
		MaxPageChars: 20000,
	})
	return s, pages
}

func TestHandleHealthz_NeedsNoAuth(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticate_RejectsMissingBearerToken(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/api/pages", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_AcceptsValidBearerToken(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/api/pages", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticate_EmptyTokenDisablesAuth(t *testing.T) {
	s, _ := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/api/pages", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleGetPageByURL_TruncatesLongContent(t *testing.T) {
	s, pages := newTestServer(t, "")
	pages.pages["big"] = &model.Page{ID: "big", SourceID: "src", URL: "https://example.com/big", FullContent: string(make([]byte, 30))}
	s.maxPageChars = 10

	req := httptest.NewRequest(http.MethodGet, "/api/pages/by-url?source_id=src&url=https://example.com/big", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "truncated")
}

func TestHandleProgressGet_UnknownIDReturns404(t *testing.T) {
	s, _ := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/api/crawl-progress/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
