package composer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeRoundTrip(t *testing.T) {
	out := Sanitize("### Summary\n- **Date:** Dec 24\n```code```")
	require.NotContains(t, out, "#")
	require.NotContains(t, out, "`")
	require.Contains(t, out, "**Date:**")
	require.Contains(t, out, "• ")
	require.Equal(t, "Summary\n• **Date:** Dec 24\ncode", out)
}

func TestSanitizeSteps(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"heading h1", StripHeadings, "# Title\nbody", "Title\nbody"},
		{"heading h6", StripHeadings, "###### deep", "deep"},
		{"hash inside text", StripHeadings, "ticket #42", "ticket #42"},
		{"triple stars", CollapseEmphasis, "***very***", "**very**"},
		{"underscores", CollapseEmphasis, "__note__ here", "**note** here"},
		{"single underscore untouched", CollapseEmphasis, "snake_case", "snake_case"},
		{"fence with lang", StripCode, "```json\n{\"a\":1}\n```", "{\"a\":1}\n"},
		{"inline code", StripCode, "run `ls` now", "run ls now"},
		{"stray backtick", StripCode, "odd ` tick", "odd  tick"},
		{"link", StripLinks, "see [portal](https://x.y/z)", "see portal"},
		{"image", StripLinks, "![scan](a.png)", "scan"},
		{"blank lines", CollapseBlankLines, "a  \n\n\n\nb", "a\n\nb"},
		{"single blank kept", CollapseBlankLines, "a\n\nb", "a\n\nb"},
		{"dash bullet", NormalizeBullets, "- one\n- two", "• one\n• two"},
		{"star bullet", NormalizeBullets, "* one", "• one"},
		{"nested bullet", NormalizeBullets, "  - inner", "  • inner"},
		{"bold line start", NormalizeBullets, "**Fee:** 10", "**Fee:** 10"},
		{"bullet already canonical", NormalizeBullets, "• ok", "• ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.fn(tt.in))
		})
	}
}

func TestSanitizePlainTextUntouched(t *testing.T) {
	in := "Your last visit was on 2024-12-24 with Dr. Smith.\n\nThe fee was 40.00 USD."
	require.Equal(t, in, Sanitize(in))
}

func TestSanitizeIsIdempotent(t *testing.T) {
	in := "## Plan\n\n\n* take __rest__\n* see [doc](u)\n`x`"
	once := Sanitize(in)
	require.Equal(t, once, Sanitize(once))
	require.False(t, strings.Contains(once, "\n\n\n"))
}
