package crawler

import (
	"context"
	"encoding/xml"
	"regexp"
	"strings"

	"github.com/archon-iirc/archon/internal/apperr"
)

// classifySeed implements spec.md §4.2's seed classification dispatch.
func classifySeed(seed string) SeedKind {
	switch {
	case strings.HasSuffix(seed, "sitemap.xml"):
		return SeedSitemap
	case strings.HasSuffix(seed, "llms-full.txt"):
		return SeedLLMsFullText
	case strings.HasSuffix(seed, "llms.txt"):
		return SeedLLMsLinkList
	default:
		return SeedRecursive
	}
}

type sitemapURLSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// parseSitemap extracts every <loc> from a sitemap.xml body.
func parseSitemap(ctx context.Context, f *fetcher, seed string) ([]string, error) {
	body, err := f.fetchOnce(ctx, seed)
	if err != nil {
		return nil, err
	}
	var set sitemapURLSet
	if err := xml.Unmarshal([]byte(body), &set); err != nil {
		return nil, apperr.Validation("failed to parse sitemap.xml", err)
	}
	urls := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		if u.Loc != "" {
			urls = append(urls, u.Loc)
		}
	}
	return urls, nil
}

var markdownLinkPattern = regexp.MustCompile(`\[[^\]]*\]\((https?://[^)\s]+)\)`)

// parseLinkList extracts candidate URLs from llms.txt's markdown links.
func parseLinkList(ctx context.Context, f *fetcher, seed string) ([]string, error) {
	body, err := f.fetchOnce(ctx, seed)
	if err != nil {
		return nil, err
	}
	matches := markdownLinkPattern.FindAllStringSubmatch(body, -1)
	urls := make([]string, 0, len(matches))
	seen := map[string]bool{}
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			urls = append(urls, m[1])
		}
	}
	return urls, nil
}
