package rewrite

import "strings"

// systemInstruction is the fixed rule set sent to the rewrite backend. The
// vocabulary list is appended by BuildInstruction when non-empty.
const systemInstruction = `You are a dictation post-processor. You receive a raw speech-to-text transcript together with a short description of what the user was doing. Rewrite the transcript into clean, paste-ready text.

Rules:
- Preserve the speaker's intent and tone. Do not add or invent content.
- Use the context to fix proper nouns, names and terminology.
- The vocabulary list, when present, contains authoritative spellings; correct close misspellings of those terms to the listed form.
- Remove filler words (um, uh, you know, like) and false starts.
- If the dictation enumerates items, format them as bullet points.
- If the context implies the user is writing an email, shape the output as a sendable email (subject, greeting, body, closing) using only information actually present.
- Never wrap the output in quotation marks.
- Never output explanatory preambles, commentary, or bracketed status notes. Output the corrected text and nothing else.
- If nothing needs correction, return the transcript essentially unchanged.`

// BuildInstruction renders the full instruction text for a rewrite call.
// The returned string is also stored with the history item for diagnostics.
func BuildInstruction(terms []string) string {
	if len(terms) == 0 {
		return systemInstruction
	}
	return systemInstruction + "\n\nVocabulary (authoritative spellings): " + strings.Join(terms, ", ")
}

// buildUserMessage renders the user-role message carrying the transcript
// and the context summary.
func buildUserMessage(transcript, contextSummary string) string {
	var b strings.Builder
	b.WriteString("Transcript:\n")
	b.WriteString(transcript)
	if strings.TrimSpace(contextSummary) != "" {
		b.WriteString("\n\nContext:\n")
		b.WriteString(contextSummary)
	}
	return b.String()
}
