package crawler

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/sync/semaphore"

	"github.com/archon-iirc/archon/internal/apperr"
)

// Crawl fetches seed and everything it links to per spec.md §4.2's seed
// classification, streaming results on a buffered channel exactly mirroring
// the teacher's Scanner.Scan shape: producer goroutines, reader drains the
// channel, cancellation closes it early.
func Crawl(ctx context.Context, seed string, opts Options) (<-chan FetchResult, error) {
	includes, err := sanitizeGlobPatterns(opts.IncludeGlobs)
	if err != nil {
		return nil, err
	}
	excludes, err := sanitizeGlobPatterns(opts.ExcludeGlobs)
	if err != nil {
		return nil, err
	}
	opts.IncludeGlobs = includes
	opts.ExcludeGlobs = excludes

	if err := guardURL(seed); err != nil {
		return nil, err
	}
	opts = opts.normalize()

	timeout := DefaultTimeout
	if opts.Stealth.Enabled {
		timeout = StealthTimeout
	}
	f := newFetcher(timeout, opts.Stealth)

	out := make(chan FetchResult, opts.Concurrency*10)

	switch classifySeed(seed) {
	case SeedSitemap:
		go crawlURLList(ctx, f, seed, out, opts, parseSitemap)
	case SeedLLMsFullText:
		go crawlLLMsFullText(ctx, f, seed, out)
	case SeedLLMsLinkList:
		go crawlURLList(ctx, f, seed, out, opts, parseLinkList)
	default:
		go crawlRecursive(ctx, f, seed, out, opts)
	}

	return out, nil
}

func crawlLLMsFullText(ctx context.Context, f *fetcher, seed string, out chan<- FetchResult) {
	defer close(out)
	body, err := f.fetchOnce(ctx, seed)
	if err != nil {
		emit(ctx, out, FetchResult{URL: seed, Err: err})
		return
	}
	emit(ctx, out, FetchResult{URL: seed, Markdown: body, IsLLMsFull: true})
}

type listParser func(ctx context.Context, f *fetcher, seed string) ([]string, error)

func crawlURLList(ctx context.Context, f *fetcher, seed string, out chan<- FetchResult, opts Options, parse listParser) {
	defer close(out)
	urls, err := parse(ctx, f, seed)
	if err != nil {
		emit(ctx, out, FetchResult{URL: seed, Err: err})
		return
	}
	fetchAll(ctx, f, urls, out, opts)
}

// crawlRecursive walks links discovered in each fetched page, staying on
// the seed's domain and respecting max_depth and glob filters.
func crawlRecursive(ctx context.Context, f *fetcher, seed string, out chan<- FetchResult, opts Options) {
	defer close(out)

	seedURL, err := url.Parse(seed)
	if err != nil {
		emit(ctx, out, FetchResult{URL: seed, Err: apperr.Validation("invalid seed URL", err)})
		return
	}
	domain := seedURL.Hostname()

	sem := semaphore.NewWeighted(int64(opts.Concurrency))
	var wg sync.WaitGroup
	var visitedMu sync.Mutex
	visited := map[string]bool{seed: true}

	var crawlOne func(targetURL string, depth int)
	crawlOne = func(targetURL string, depth int) {
		defer wg.Done()
		if sem.Acquire(ctx, 1) != nil {
			return
		}
		defer sem.Release(1)

		if err := guardURL(targetURL); err != nil {
			emit(ctx, out, FetchResult{URL: targetURL, Err: err})
			return
		}

		result, err := f.fetch(ctx, targetURL)
		if err != nil {
			emit(ctx, out, FetchResult{URL: targetURL, Err: err})
			return
		}
		if !emit(ctx, out, result) {
			return
		}

		if depth >= opts.MaxDepth {
			return
		}

		for _, link := range extractLinks(result.Markdown, targetURL) {
			linkURL, err := url.Parse(link)
			if err != nil || linkURL.Hostname() != domain {
				continue
			}
			if !allowedByGlobs(linkURL.Path, opts.IncludeGlobs, opts.ExcludeGlobs) {
				continue
			}

			visitedMu.Lock()
			already := visited[link]
			if !already {
				visited[link] = true
			}
			visitedMu.Unlock()
			if already {
				continue
			}

			wg.Add(1)
			go crawlOne(link, depth+1)
		}
	}

	wg.Add(1)
	go crawlOne(seed, 0)
	wg.Wait()
}

func fetchAll(ctx context.Context, f *fetcher, urls []string, out chan<- FetchResult, opts Options) {
	sem := semaphore.NewWeighted(int64(opts.Concurrency))
	var wg sync.WaitGroup

	for _, u := range urls {
		if err := guardURL(u); err != nil {
			emit(ctx, out, FetchResult{URL: u, Err: err})
			continue
		}
		wg.Add(1)
		go func(targetURL string) {
			defer wg.Done()
			if sem.Acquire(ctx, 1) != nil {
				return
			}
			defer sem.Release(1)
			result, err := f.fetch(ctx, targetURL)
			if err != nil {
				emit(ctx, out, FetchResult{URL: targetURL, Err: err})
				return
			}
			emit(ctx, out, result)
		}(u)
	}
	wg.Wait()
}

// emit sends r on out, returning false if ctx was cancelled first so callers
// can stop spawning further work.
func emit(ctx context.Context, out chan<- FetchResult, r FetchResult) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// extractLinks walks the original HTML-derived markdown for http(s) links.
// The converter is built without a domain, so relative links stay relative
// in the markdown and are not returned; only absolute http(s) links are.
func extractLinks(markdown, base string) []string {
	var links []string
	tokenizer := html.NewTokenizer(strings.NewReader(markdown))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken {
			continue
		}
		token := tokenizer.Token()
		if token.Data != "a" {
			continue
		}
		for _, attr := range token.Attr {
			if attr.Key == "href" && strings.HasPrefix(attr.Val, "http") {
				links = append(links, attr.Val)
			}
		}
	}
	if len(links) > 0 {
		return links
	}
	return extractMarkdownLinks(markdown)
}

func extractMarkdownLinks(markdown string) []string {
	matches := markdownLinkPattern.FindAllStringSubmatch(markdown, -1)
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		links = append(links, m[1])
	}
	return links
}
