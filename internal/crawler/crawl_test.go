package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, ch <-chan FetchResult, timeout time.Duration) []FetchResult {
	t.Helper()
	var results []FetchResult
	deadline := time.After(timeout)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return results
			}
			results = append(results, r)
		case <-deadline:
			t.Fatal("timed out draining crawl results")
			return nil
		}
	}
}

func TestClassifySeed(t *testing.T) {
	assert.Equal(t, SeedSitemap, classifySeed("https://example.com/sitemap.xml"))
	assert.Equal(t, SeedLLMsFullText, classifySeed("https://example.com/llms-full.txt"))
	assert.Equal(t, SeedLLMsLinkList, classifySeed("https://example.com/llms.txt"))
	assert.Equal(t, SeedRecursive, classifySeed("https://example.com/docs"))
}

func TestCrawl_RejectsSSRFSeed(t *testing.T) {
	ch, err := Crawl(context.Background(), "http://127.0.0.1/admin", Options{})
	require.Error(t, err)
	assert.Nil(t, ch)
}

func TestCrawl_LLMsFullText_EmitsSingleRawResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# Section One\ncontent\n# Section Two\nmore"))
	}))
	defer srv.Close()

	ch, err := Crawl(context.Background(), srv.URL+"/llms-full.txt", Options{Concurrency: 2})
	require.NoError(t, err)

	results := drain(t, ch, 5*time.Second)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsLLMsFull)
	assert.Contains(t, results[0].Markdown, "Section One")
}

func TestCrawl_Sitemap_FetchesEachListedURL(t *testing.T) {
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?><urlset>
			<url><loc>` + srv.URL + `/a</loc></url>
			<url><loc>` + srv.URL + `/b</loc></url>
		</urlset>`))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>A</title></head><body><p>Page A</p></body></html>"))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>B</title></head><body><p>Page B</p></body></html>"))
	})

	ch, err := Crawl(context.Background(), srv.URL+"/sitemap.xml", Options{Concurrency: 2})
	require.NoError(t, err)

	results := drain(t, ch, 5*time.Second)
	require.Len(t, results, 2)
	titles := map[string]bool{}
	for _, r := range results {
		require.NoError(t, r.Err)
		titles[r.Title] = true
	}
	assert.True(t, titles["A"])
	assert.True(t, titles["B"])
}

func TestCrawl_LinkList_FetchesLinkedURLs(t *testing.T) {
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	mux.HandleFunc("/llms.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# Docs\n- [Intro](" + srv.URL + "/intro)\n"))
	})
	mux.HandleFunc("/intro", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>Intro</title></head><body>hi</body></html>"))
	})

	ch, err := Crawl(context.Background(), srv.URL+"/llms.txt", Options{Concurrency: 2})
	require.NoError(t, err)

	results := drain(t, ch, 5*time.Second)
	require.Len(t, results, 1)
	assert.Equal(t, "Intro", results[0].Title)
}

func TestCrawl_Recursive_StaysOnSeedDomainAndRespectsGlobs(t *testing.T) {
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Home</title></head><body>
			<a href="` + srv.URL + `/docs/guide">guide</a>
			<a href="` + srv.URL + `/blog/post">post</a>
		</body></html>`))
	})
	mux.HandleFunc("/docs/guide", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>Guide</title></head><body>done</body></html>"))
	})
	mux.HandleFunc("/blog/post", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>Post</title></head><body>done</body></html>"))
	})

	ch, err := Crawl(context.Background(), srv.URL+"/", Options{
		Concurrency:  2,
		MaxDepth:     2,
		IncludeGlobs: []string{"/docs/*", "/"},
	})
	require.NoError(t, err)

	results := drain(t, ch, 5*time.Second)
	titles := map[string]bool{}
	for _, r := range results {
		titles[r.Title] = true
	}
	assert.True(t, titles["Home"])
	assert.True(t, titles["Guide"])
	assert.False(t, titles["Post"], "blog path excluded by include globs")
}

func TestCrawl_NonRetryableStatusAbortsOnlyThatURL(t *testing.T) {
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0"?><urlset>
			<url><loc>` + srv.URL + `/missing</loc></url>
			<url><loc>` + srv.URL + `/ok</loc></url>
		</urlset>`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>OK</title></head><body>fine</body></html>"))
	})

	ch, err := Crawl(context.Background(), srv.URL+"/sitemap.xml", Options{Concurrency: 2})
	require.NoError(t, err)

	results := drain(t, ch, 5*time.Second)
	require.Len(t, results, 2)

	var sawErr, sawOK bool
	for _, r := range results {
		if r.Err != nil {
			sawErr = true
		}
		if r.Title == "OK" {
			sawOK = true
		}
	}
	assert.True(t, sawErr)
	assert.True(t, sawOK)
}
