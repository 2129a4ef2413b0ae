package rewrite

import "strings"

// bannedPrefixes lists lowercased line openers that mark a line as model
// preamble rather than content. Matching is per-line: only the offending
// line is dropped, never the whole message. A content line that merely
// starts with one of these phrases is dropped too.
var bannedPrefixes = []string{
	"here is",
	"here's",
	"below is",
	"based on the context",
	"based on context",
	"possible complete email",
	"i will",
	"i've",
	"if you'd like",
	"let me know if",
	"note:",
	"sure,",
	"sure!",
	"certainly",
	"of course",
}

// Sanitize cleans raw rewrite-backend output into paste-ready text:
// strips a single wrapping quote pair, drops bracketed status lines and
// banned preamble lines, and collapses blank-line runs.
func Sanitize(raw string) string {
	s := strings.TrimSpace(raw)

	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	var kept []string
	lastBlank := false
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)

		if isBannedLine(trimmed) {
			continue
		}

		if trimmed == "" {
			if lastBlank || len(kept) == 0 {
				continue
			}
			lastBlank = true
			kept = append(kept, "")
			continue
		}

		lastBlank = false
		kept = append(kept, line)
	}

	// Drop a trailing blank left behind by a removed final line.
	for len(kept) > 0 && kept[len(kept)-1] == "" {
		kept = kept[:len(kept)-1]
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// isBannedLine reports whether a trimmed line is a bracketed status note or
// starts with a banned preamble. Leading quote characters are ignored so a
// quoted preamble line is still caught.
func isBannedLine(trimmed string) bool {
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		return true
	}

	lower := strings.ToLower(strings.TrimLeft(trimmed, `"'`))
	for _, prefix := range bannedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
