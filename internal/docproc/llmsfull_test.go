package docproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLLMsFullSections_SplitsOnH1Only(t *testing.T) {
	body := "# Getting Started\nIntro text.\n## Installation\nDetails here.\n# API Reference\nMore content.\n"

	sections := SplitLLMsFullSections("https://example.com/llms-full.txt", body)

	require.Len(t, sections, 2)
	assert.Equal(t, "Getting Started", sections[0].SectionTitle)
	assert.Contains(t, sections[0].Content, "Installation")
	assert.Equal(t, "https://example.com/llms-full.txt#section-0-getting-started", sections[0].URL)
	assert.Equal(t, 0, sections[0].SectionOrder)

	assert.Equal(t, "API Reference", sections[1].SectionTitle)
	assert.Equal(t, 1, sections[1].SectionOrder)
	assert.Equal(t, "https://example.com/llms-full.txt#section-1-api-reference", sections[1].URL)
}

func TestSplitLLMsFullSections_NoH1FallsBackToFullDocument(t *testing.T) {
	body := "## Just a subheading\nNo top-level heading here."

	sections := SplitLLMsFullSections("https://example.com/llms-full.txt", body)

	require.Len(t, sections, 1)
	assert.Equal(t, "Full Document", sections[0].SectionTitle)
	assert.Equal(t, "https://example.com/llms-full.txt", sections[0].URL)
}

func TestSlugify_CollapsesNonAlphanumericAndTrims(t *testing.T) {
	assert.Equal(t, "getting-started", slugify("Getting Started"))
	assert.Equal(t, "api-v2-reference", slugify("API v2!! Reference"))
	assert.Equal(t, "edge", slugify("--Edge--"))
}

func TestSplitLLMsFullSections_SkipsEmptySections(t *testing.T) {
	body := "# Empty\n# Real Section\nContent here.\n"

	sections := SplitLLMsFullSections("https://example.com", body)

	require.Len(t, sections, 1)
	assert.Equal(t, "Real Section", sections[0].SectionTitle)
}
