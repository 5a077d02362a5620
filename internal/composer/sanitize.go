package composer

import (
	"regexp"
	"strings"
)

// Sanitize turns model output into the restricted display format: plain
// text, "• " bullets and **bold**. Steps run in a fixed order and each one
// leaves text it does not recognise untouched.
func Sanitize(text string) string {
	for _, step := range sanitizeSteps {
		text = step(text)
	}
	return strings.TrimSpace(text)
}

var sanitizeSteps = []func(string) string{
	StripHeadings,
	CollapseEmphasis,
	StripCode,
	StripLinks,
	CollapseBlankLines,
	NormalizeBullets,
}

var (
	headingRe      = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]*`)
	tripleStarRe   = regexp.MustCompile(`\*{3,}`)
	underscoreRe   = regexp.MustCompile(`__(.+?)__`)
	codeFenceRe    = regexp.MustCompile("(?s)```(?:[\\w+-]*\\n)?(.*?)```")
	inlineCodeRe   = regexp.MustCompile("`([^`\\n]*)`")
	linkRe         = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	trailingSpace  = regexp.MustCompile(`(?m)[ \t]+$`)
	blankRunRe     = regexp.MustCompile(`\n{3,}`)
	bulletMarkerRe = regexp.MustCompile(`(?m)^([ \t]*)[-*•][ \t]+`)
)

// StripHeadings removes markdown heading markers and keeps the heading text.
func StripHeadings(text string) string {
	return headingRe.ReplaceAllString(text, "")
}

// CollapseEmphasis reduces bold-italic runs to bold and rewrites __x__ as **x**.
func CollapseEmphasis(text string) string {
	text = tripleStarRe.ReplaceAllString(text, "**")
	return underscoreRe.ReplaceAllString(text, "**$1**")
}

// StripCode removes code fences and inline code markers, keeping contents.
func StripCode(text string) string {
	text = codeFenceRe.ReplaceAllString(text, "$1")
	text = inlineCodeRe.ReplaceAllString(text, "$1")
	return strings.ReplaceAll(text, "`", "")
}

// StripLinks replaces [text](url) and ![alt](url) with text / alt.
func StripLinks(text string) string {
	return linkRe.ReplaceAllString(text, "$1")
}

// CollapseBlankLines trims trailing spaces and keeps at most one blank line
// between paragraphs.
func CollapseBlankLines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = trailingSpace.ReplaceAllString(text, "")
	return blankRunRe.ReplaceAllString(text, "\n\n")
}

// NormalizeBullets rewrites "-", "*" and "•" list markers to "• ".
// A "**bold**" line start is not a list marker.
func NormalizeBullets(text string) string {
	return bulletMarkerRe.ReplaceAllString(text, "${1}• ")
}
