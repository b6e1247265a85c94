package docproc

import (
	"regexp"
	"strconv"
	"strings"
)

// Section is one H1-delimited slice of an llms-full.txt document.
type Section struct {
	URL          string
	SectionTitle string
	SectionOrder int
	Content      string
	WordCount    int
}

var h1Pattern = regexp.MustCompile(`(?m)^#\s+(.+?)\s*$`)

var slugNonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// slugify implements spec.md §4.3's slug rule: lowercase, non-alphanumeric
// runs collapse to a single "-", leading/trailing "-" trimmed.
func slugify(heading string) string {
	s := strings.ToLower(heading)
	s = slugNonAlphanumeric.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SplitLLMsFullSections splits body at top-level "#" headings. "##" and
// deeper headings stay inside their parent section. A document with no H1
// yields a single "Full Document" section.
func SplitLLMsFullSections(baseURL, body string) []Section {
	matches := h1Pattern.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return []Section{{
			URL:          baseURL,
			SectionTitle: "Full Document",
			SectionOrder: 0,
			Content:      body,
			WordCount:    wordCount(body),
		}}
	}

	var sections []Section
	order := 0
	for i, m := range matches {
		headingEnd := m[1]
		titleStart, titleEnd := m[2], m[3]
		title := body[titleStart:titleEnd]

		contentStart := headingEnd
		contentEnd := len(body)
		if i+1 < len(matches) {
			contentEnd = matches[i+1][0]
		}
		content := strings.TrimSpace(body[contentStart:contentEnd])
		if content == "" {
			continue
		}

		slug := slugify(title)
		sections = append(sections, Section{
			URL:          baseURL + "#section-" + strconv.Itoa(order) + "-" + slug,
			SectionTitle: title,
			SectionOrder: order,
			Content:      content,
			WordCount:    wordCount(content),
		})
		order++
	}
	return sections
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
