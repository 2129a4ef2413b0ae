package rewrite

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Address-like cues that introduce a recipient list in a context summary.
// The capture runs to the end of the sentence or line.
var addressCueRe = regexp.MustCompile(`(?i)\b(addressing|recipients?|to|cc|bcc)\b[:\-\s]+([^.\n!?]+)`)

// Separators inside a candidate name list.
var nameListSplitRe = regexp.MustCompile(`(?i)[,;]|\band\b|\bor\b|\bcc\b|\bbcc\b`)

// ParseUserVocabulary splits a raw user vocabulary string on
// newline/comma/semicolon, trimming whitespace and dropping empties.
func ParseUserVocabulary(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == ',' || r == ';'
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := strings.TrimSpace(f); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// ExtractContextNames scans a free-text context summary for recipient cues
// and returns the candidates that look like person names.
func ExtractContextNames(contextSummary string) []string {
	var names []string
	for _, m := range addressCueRe.FindAllStringSubmatch(contextSummary, -1) {
		for _, candidate := range nameListSplitRe.Split(m[2], -1) {
			candidate = strings.TrimSpace(candidate)
			if looksLikePersonName(candidate) {
				names = append(names, candidate)
			}
		}
	}
	return names
}

// looksLikePersonName accepts 1-3 whitespace-separated tokens, each starting
// with an uppercase letter. Deliberately crude: it is a recall heuristic for
// vocabulary candidates, not a validator.
func looksLikePersonName(s string) bool {
	tokens := strings.Fields(s)
	if len(tokens) == 0 || len(tokens) > 3 {
		return false
	}
	for _, tok := range tokens {
		r, _ := utf8.DecodeRuneInString(tok)
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// AssembleVocabulary merges the user vocabulary with names extracted from
// the context summary. For every multi-word term the individual words are
// added as standalone candidates so partial mentions stay correctable. The
// result is deduplicated case-insensitively (first-seen casing wins) and
// sorted longer-first, ties alphabetically case-insensitive, so phrase
// corrections are attempted before any fragment of that phrase.
func AssembleVocabulary(userVocabulary string, contextSummary string) []string {
	raw := append(ParseUserVocabulary(userVocabulary), ExtractContextNames(contextSummary)...)

	var expanded []string
	for _, term := range raw {
		expanded = append(expanded, term)
		words := strings.Fields(term)
		if len(words) > 1 {
			for _, w := range words {
				if utf8.RuneCountInString(w) > 1 {
					expanded = append(expanded, w)
				}
			}
		}
	}

	seen := make(map[string]struct{}, len(expanded))
	terms := make([]string, 0, len(expanded))
	for _, term := range expanded {
		key := strings.ToLower(term)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		terms = append(terms, term)
	}

	sort.SliceStable(terms, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(terms[i]), utf8.RuneCountInString(terms[j])
		if li != lj {
			return li > lj
		}
		return strings.ToLower(terms[i]) < strings.ToLower(terms[j])
	})

	return terms
}
