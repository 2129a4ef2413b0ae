// Package rewrite turns a raw transcript plus free-text context and user
// vocabulary into corrected, sanitized final text. Vocabulary assembly and
// sanitization are pure; the only network call is the single chat
// completion per Rewrite invocation.
package rewrite

import (
	"context"
	"errors"

	"murmur/internal/ai"
	"murmur/pkg/logger"
)

// Config holds rewrite settings.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Result is the outcome of a rewrite. PromptUsed is the fully-rendered
// instruction text, retained for diagnostics only and never re-parsed.
type Result struct {
	Text       string
	PromptUsed string
}

// Rewriter corrects transcripts through a chat backend. Safe for concurrent
// use: it holds no mutable state between invocations.
type Rewriter struct {
	provider ai.ChatProvider
	config   Config
	logger   *logger.Logger
}

// New creates a Rewriter backed by the given chat provider.
func New(provider ai.ChatProvider, cfg Config, log *logger.Logger) *Rewriter {
	return &Rewriter{
		provider: provider,
		config:   cfg,
		logger:   log.Named("rewrite"),
	}
}

// Rewrite assembles the vocabulary, sends a single chat completion and
// sanitizes the response. No internal retry: RequestError and
// InvalidResponseError are terminal for this attempt.
func (r *Rewriter) Rewrite(ctx context.Context, transcript, contextSummary, vocabularyText string) (*Result, error) {
	terms := AssembleVocabulary(vocabularyText, contextSummary)
	instruction := BuildInstruction(terms)

	r.logger.Debug("Requesting rewrite",
		logger.Int("transcript_chars", len(transcript)),
		logger.Int("vocabulary_terms", len(terms)))

	content, err := r.provider.ChatCompletion(ctx, []ai.ChatMessage{
		{Role: "system", Content: instruction},
		{Role: "user", Content: buildUserMessage(transcript, contextSummary)},
	}, ai.ChatConfig{
		Model:       r.config.Model,
		Temperature: r.config.Temperature,
		MaxTokens:   r.config.MaxTokens,
	})
	if err != nil {
		var provErr *ai.ProviderError
		if errors.As(err, &provErr) {
			return nil, &RequestError{StatusCode: provErr.StatusCode, Body: provErr.Body}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &RequestError{Body: err.Error()}
	}

	if content == "" {
		return nil, &InvalidResponseError{Detail: "empty message content"}
	}

	return &Result{
		Text:       Sanitize(content),
		PromptUsed: instruction,
	}, nil
}

// CorrectLocally runs the vocabulary-only correction pass without any
// network call. Used when the rewrite backend is disabled or unavailable.
func CorrectLocally(transcript, contextSummary, vocabularyText string) string {
	return ApplyVocabulary(transcript, AssembleVocabulary(vocabularyText, contextSummary))
}
