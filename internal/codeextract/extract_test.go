package codeextract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_FindsFencedCodeBlockAboveMinLength(t *testing.T) {
	md := "intro text\n\n```go\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n```\n\nmore text"
	examples := Extract(md, 10)
	require.Len(t, examples, 1)
	assert.Equal(t, "go", examples[0].Language)
	assert.Contains(t, examples[0].Code, "func main")
}

func TestExtract_DropsBlocksBelowMinLength(t *testing.T) {
	md := "```go\nx\n```\n"
	examples := Extract(md, 100)
	assert.Empty(t, examples)
}

func TestExtract_DropsProseBlocks(t *testing.T) {
	md := "```text\nThis is a sentence that reads like prose.\nAnother sentence follows here too.\nAnd a third one for good measure.\n```\n"
	examples := Extract(md, 10)
	assert.Empty(t, examples)
}

func TestExtract_DecodesTripleEncodedEntities(t *testing.T) {
	md := "```html\n&amp;amp;lt;div&amp;amp;gt;\n```\n"
	examples := Extract(md, 1)
	require.Len(t, examples, 1)
	assert.Equal(t, "<div>", examples[0].Code)
}

func TestExtract_DedupesNearIdenticalBodies(t *testing.T) {
	md := "```go\nfunc f() {}\n```\n\ntext\n\n```go\nfunc   f()   {}\n```\n"
	examples := Extract(md, 1)
	assert.Len(t, examples, 1)
}

func TestExtract_CapturesContextWindows(t *testing.T) {
	md := "line before 1\nline before 2\n```go\nfunc f() {}\n```\nline after 1\nline after 2\n"
	examples := Extract(md, 1)
	require.Len(t, examples, 1)
	assert.True(t, strings.Contains(examples[0].ContextBefore, "line before"))
	assert.True(t, strings.Contains(examples[0].ContextAfter, "line after"))
}
