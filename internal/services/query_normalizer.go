package services

import (
	"regexp"
	"strings"
)

// NormalizedTokens are the candidate search strings for one card name, most
// specific first, without duplicates
type NormalizedTokens struct {
	// Display is the trimmed name with collapsed whitespace
	Display string
	// Full is the name with '/', '-', '#' and whitespace stripped
	Full string
	// Tokens holds set codes, number pairs, bare numbers and finally Full
	Tokens []string
}

// codeGrammar recognizes one card-numbering convention. Capture groups are
// prefix, set and card; set and card are zero-padded to the given widths
// (0 keeps the group as written).
type codeGrammar struct {
	name      string
	pattern   *regexp.Regexp
	setWidth  int
	cardWidth int
}

// Grammars run in order over the upper-cased name. A later grammar never
// matches text an earlier one already claimed. Set prefixes may carry digits
// (SV3A) but end in a letter, so a plain number pair is never a set code.
var codeGrammars = []codeGrammar{
	// LOB-EN001, MRD-E060
	{name: "region-code", pattern: regexp.MustCompile(`\b([A-Z0-9]{3,4})-([A-Z]{1,2})(\d{2,3})\b`), cardWidth: 3},
	// OP09-001, EB03-026, BT12 034, ST1-12, SV3A 5-12
	{name: "set-number", pattern: regexp.MustCompile(`\b([A-Z0-9]{0,4}[A-Z])[ -]?(\d{1,2})[ -]+(\d{1,3})\b`), setWidth: 2, cardWidth: 3},
	// OP09001
	{name: "compact", pattern: regexp.MustCompile(`\b([A-Z0-9]{0,4}[A-Z])(\d{2})(\d{3})\b`), setWidth: 2, cardWidth: 3},
}

var (
	numberPairPattern = regexp.MustCompile(`\b\d{1,4}\s*[/-]\s*\d{1,4}\b`)
	bareNumberPattern = regexp.MustCompile(`\b\d{3,6}\b`)
	separatorStripper = strings.NewReplacer("/", "", "-", "", "#", "")
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Normalize derives the search tokens for a raw card name. It never fails:
// a name no grammar recognizes yields only its Full form. Short or empty
// tokens are left for the caller to drop.
func Normalize(rawName string) NormalizedTokens {
	display := strings.TrimSpace(whitespacePattern.ReplaceAllString(rawName, " "))
	full := whitespacePattern.ReplaceAllString(separatorStripper.Replace(display), "")

	upper := strings.ToUpper(display)
	var claimed [][2]int
	seen := map[string]bool{}
	var tokens []string

	add := func(tok string) {
		if seen[tok] {
			return
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}

	for _, g := range codeGrammars {
		for _, loc := range g.pattern.FindAllStringSubmatchIndex(upper, -1) {
			if overlaps(claimed, loc[0], loc[1]) {
				continue
			}
			claimed = append(claimed, [2]int{loc[0], loc[1]})
			prefix := upper[loc[2]:loc[3]]
			set := pad(upper[loc[4]:loc[5]], g.setWidth)
			card := pad(upper[loc[6]:loc[7]], g.cardWidth)
			add(prefix + set + card)
		}
	}

	for _, loc := range numberPairPattern.FindAllStringIndex(upper, -1) {
		if overlaps(claimed, loc[0], loc[1]) {
			continue
		}
		claimed = append(claimed, [2]int{loc[0], loc[1]})
		add(whitespacePattern.ReplaceAllString(upper[loc[0]:loc[1]], ""))
	}

	for _, loc := range bareNumberPattern.FindAllStringIndex(upper, -1) {
		if overlaps(claimed, loc[0], loc[1]) {
			continue
		}
		add(upper[loc[0]:loc[1]])
	}

	add(full)

	return NormalizedTokens{
		Display: display,
		Full:    full,
		Tokens:  tokens,
	}
}

func overlaps(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && s[0] < end {
			return true
		}
	}
	return false
}

func pad(digits string, width int) string {
	if width == 0 || len(digits) >= width {
		return digits
	}
	return strings.Repeat("0", width-len(digits)) + digits
}
