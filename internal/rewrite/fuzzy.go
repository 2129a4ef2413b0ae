package rewrite

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// ApplyVocabulary corrects text locally against a priority-ordered
// vocabulary (see AssembleVocabulary). Multi-word terms are substituted
// first via whole-word, case-insensitive literal matching so phrase matches
// take precedence over word-level fuzzy guesses; afterwards each remaining
// alphabetic token is fuzzy-corrected with edit distance.
func ApplyVocabulary(text string, terms []string) string {
	if text == "" || len(terms) == 0 {
		return text
	}

	for _, term := range terms {
		if !strings.Contains(term, " ") {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, term)
	}

	return correctTokens(text, terms)
}

// correctTokens walks the text rune by rune, extracting alphabetic tokens
// and replacing each with its fuzzy correction. Everything between tokens
// (punctuation, digits, whitespace) passes through untouched.
func correctTokens(text string, terms []string) string {
	var out strings.Builder
	out.Grow(len(text))

	var token strings.Builder
	flush := func() {
		if token.Len() == 0 {
			return
		}
		out.WriteString(CorrectToken(token.String(), terms))
		token.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || r == '\'' {
			token.WriteRune(r)
			continue
		}
		flush()
		out.WriteRune(r)
	}
	flush()

	return out.String()
}

// CorrectToken returns the vocabulary spelling for token when it is a close
// misspelling of a term, or the token unchanged.
//
// Exact case-insensitive matches are left alone. Otherwise candidates whose
// first letter matches (case-insensitive) and whose length differs by at
// most 2 are tried in priority order, computing the classic
// insert/delete/substitute edit distance; the first candidate within
// threshold wins. Threshold: distance 1 for tokens of length <= 5,
// distance 2 above that.
func CorrectToken(token string, terms []string) string {
	tokenLower := strings.ToLower(token)
	for _, term := range terms {
		if strings.ToLower(term) == tokenLower {
			return token
		}
	}

	tokenLen := utf8.RuneCountInString(token)
	maxDist := 1
	if tokenLen > 5 {
		maxDist = 2
	}

	tokenFirst, _ := utf8.DecodeRuneInString(tokenLower)

	for _, term := range terms {
		termLower := strings.ToLower(term)
		termFirst, _ := utf8.DecodeRuneInString(termLower)
		if termFirst != tokenFirst {
			continue
		}
		termLen := utf8.RuneCountInString(term)
		if diff := termLen - tokenLen; diff > 2 || diff < -2 {
			continue
		}
		if matchr.Levenshtein(tokenLower, termLower) <= maxDist {
			return term
		}
	}

	return token
}
