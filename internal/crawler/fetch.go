package crawler

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/archon-iirc/archon/internal/apperr"
)

var defaultUserAgent = "archon-crawler/1.0"

// fetcher issues one HTTP GET, converts HTML to markdown, and extracts a
// title, retrying transient failures with exponential backoff.
type fetcher struct {
	client  *http.Client
	retry   apperr.RetryConfig
	stealth StealthOptions
}

func newFetcher(timeout time.Duration, stealth StealthOptions) *fetcher {
	return &fetcher{
		client:  &http.Client{Timeout: timeout},
		retry:   apperr.DefaultRetryConfig(),
		stealth: stealth,
	}
}

func (f *fetcher) fetch(ctx context.Context, targetURL string) (FetchResult, error) {
	body, err := apperr.RetryWithResult(ctx, f.retry, func() (string, error) {
		return f.fetchOnce(ctx, targetURL)
	})
	if err != nil {
		return FetchResult{URL: targetURL}, err
	}

	markdown, title, err := htmlToMarkdown(body)
	if err != nil {
		return FetchResult{URL: targetURL}, apperr.ProviderTransient("failed to convert page to markdown", err)
	}

	return FetchResult{URL: targetURL, Markdown: markdown, Title: title}, nil
}

func (f *fetcher) fetchOnce(ctx context.Context, targetURL string) (string, error) {
	if f.stealth.Enabled {
		f.humanizedDelay()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", apperr.Validation("invalid crawl request", err)
	}
	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", apperr.ProviderTransient("fetch failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", apperr.ProviderTransient("failed to read response body", err)
		}
		return string(body), nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return "", apperr.RateLimited("fetch throttled", retryAfterSeconds(resp), nil)
	default:
		// Non-2xx other than 429/503 aborts this URL without failing the job;
		// KindValidation is never retried.
		return "", apperr.Validation("non-retryable fetch status", nil).WithDetail("status", resp.Status)
	}
}

func retryAfterSeconds(resp *http.Response) int {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v + "s"); err == nil {
		return int(d.Seconds())
	}
	return 0
}

func (f *fetcher) userAgent() string {
	if !f.stealth.Enabled || len(f.stealth.UserAgents) == 0 {
		return defaultUserAgent
	}
	return f.stealth.UserAgents[rand.Intn(len(f.stealth.UserAgents))]
}

func (f *fetcher) humanizedDelay() {
	delay := f.stealth.BaseDelay
	if f.stealth.DelayVariance > 0 {
		delay += time.Duration(rand.Int63n(int64(f.stealth.DelayVariance)))
	}
	time.Sleep(delay)
}

func htmlToMarkdown(body string) (markdown, title string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	converter := htmltomarkdown.NewConverter("", true, nil)
	markdown, err = converter.ConvertString(body)
	if err != nil {
		return "", "", err
	}
	return markdown, title, nil
}
