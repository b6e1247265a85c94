package docproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepairCodeSpans_FixesSplitTokensInsideFenceOnly(t *testing.T) {
	input := "Prose with next / headers should stay untouched.\n" +
		"```js\n" +
		"import { headers } from 'next / headers'\n" +
		"const mode = 'server - only'\n" +
		"```\n"

	out := repairCodeSpans(input)

	assert.Contains(t, out, "Prose with next / headers should stay untouched.")
	assert.Contains(t, out, "next/headers")
	assert.Contains(t, out, "server-only")
}

func TestRepairCodeSpans_NoFenceLeavesContentUnchanged(t *testing.T) {
	input := "Just prose with next / headers and server - only mentions."
	assert.Equal(t, input, repairCodeSpans(input))
}
