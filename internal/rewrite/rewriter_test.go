package rewrite

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"murmur/internal/ai"
	"murmur/pkg/logger"
)

// mockProvider records the last chat call and replies with canned content.
type mockProvider struct {
	content  string
	err      error
	messages []ai.ChatMessage
	config   ai.ChatConfig
}

func (m *mockProvider) ChatCompletion(ctx context.Context, messages []ai.ChatMessage, cfg ai.ChatConfig) (string, error) {
	m.messages = messages
	m.config = cfg
	return m.content, m.err
}

func newTestRewriter(provider ai.ChatProvider) *Rewriter {
	return New(provider, Config{
		Model:       "gpt-4o-mini",
		Temperature: 0,
		MaxTokens:   4096,
	}, logger.NewNop())
}

func TestRewriteSanitizesAndReturnsPrompt(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{content: "Here is the rewritten text:\n\nHello Aanya, see you Monday."}
	r := newTestRewriter(provider)

	result, err := r.Rewrite(context.Background(), "hello anya see you monday", "", "Aanya")
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	if result.Text != "Hello Aanya, see you Monday." {
		t.Errorf("got text %q, want the sanitized backend reply", result.Text)
	}
	if !strings.Contains(result.PromptUsed, "Aanya") {
		t.Errorf("prompt %q should carry the vocabulary term", result.PromptUsed)
	}

	if len(provider.messages) != 2 {
		t.Fatalf("got %d messages, want system + user", len(provider.messages))
	}
	if provider.messages[0].Role != "system" || provider.messages[1].Role != "user" {
		t.Errorf("got roles %q/%q, want system/user", provider.messages[0].Role, provider.messages[1].Role)
	}
	if !strings.Contains(provider.messages[1].Content, "hello anya see you monday") {
		t.Errorf("user message %q should carry the raw transcript", provider.messages[1].Content)
	}
	if provider.config.Temperature != 0 {
		t.Errorf("got temperature %v, want 0", provider.config.Temperature)
	}
}

func TestRewriteOmitsVocabularySectionWhenEmpty(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{content: "ok"}
	r := newTestRewriter(provider)

	result, err := r.Rewrite(context.Background(), "some transcript", "", "")
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	if strings.Contains(result.PromptUsed, "Vocabulary") {
		t.Errorf("prompt should have no vocabulary section for empty vocabulary, got %q", result.PromptUsed)
	}
}

func TestRewriteProviderStatusError(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{err: &ai.ProviderError{StatusCode: http.StatusTooManyRequests, Body: "rate limited"}}
	r := newTestRewriter(provider)

	_, err := r.Rewrite(context.Background(), "text", "", "")

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("got error %v, want *RequestError", err)
	}
	if reqErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("got status %d, want %d", reqErr.StatusCode, http.StatusTooManyRequests)
	}
}

func TestRewriteTransportError(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{err: errors.New("connection refused")}
	r := newTestRewriter(provider)

	_, err := r.Rewrite(context.Background(), "text", "", "")

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("got error %v, want *RequestError", err)
	}
	if reqErr.StatusCode != 0 {
		t.Errorf("got status %d, want 0 for transport failure", reqErr.StatusCode)
	}
}

func TestRewriteEmptyContent(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{content: ""}
	r := newTestRewriter(provider)

	_, err := r.Rewrite(context.Background(), "text", "", "")

	var invalidErr *InvalidResponseError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("got error %v, want *InvalidResponseError", err)
	}
}

func TestRewriteContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &mockProvider{err: context.Canceled}
	r := newTestRewriter(provider)

	_, err := r.Rewrite(ctx, "text", "", "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got error %v, want context.Canceled passed through", err)
	}
}

func TestCorrectLocally(t *testing.T) {
	t.Parallel()

	got := CorrectLocally("send this to anya", "recipients: Aanya Shah", "")
	want := "send this to Aanya"
	if got != want {
		t.Errorf("CorrectLocally() = %q, want %q", got, want)
	}
}
