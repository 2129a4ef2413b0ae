package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"murmur/internal/ai"
	"murmur/pkg/logger"
)

// DefaultHost is the default host for the Gemini API
const DefaultHost = "generativelanguage.googleapis.com"

// Client represents a Google Gemini API client
type Client struct {
	apiKey     string
	host       string
	logger     *logger.Logger
	httpClient *http.Client
}

// NewClient creates a new Gemini Client
func NewClient(apiKey string, log *logger.Logger, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey: apiKey,
		host:   DefaultHost,
		logger: log.Named("gemini"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ChatCompletion implements ai.ChatProvider.
func (c *Client) ChatCompletion(ctx context.Context, messages []ai.ChatMessage, config ai.ChatConfig) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("Gemini API key is required")
	}

	model := config.Model
	model = strings.TrimPrefix(model, "models/")
	apiURL := fmt.Sprintf("https://%s/v1beta/models/%s:generateContent?key=%s", c.host, model, c.apiKey)

	type Part struct {
		Text string `json:"text,omitempty"`
	}
	type Content struct {
		Role  string `json:"role,omitempty"`
		Parts []Part `json:"parts"`
	}

	geminiContents := []Content{}
	var systemInstruction *Content

	for _, msg := range messages {
		if msg.Role == "system" {
			systemInstruction = &Content{
				Parts: []Part{{Text: msg.Content}},
			}
			continue
		}

		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}

		geminiContents = append(geminiContents, Content{
			Role:  role,
			Parts: []Part{{Text: msg.Content}},
		})
	}

	reqBody := map[string]any{
		"contents": geminiContents,
		"generationConfig": map[string]any{
			"temperature":     config.Temperature,
			"maxOutputTokens": config.MaxTokens,
		},
	}

	if systemInstruction != nil {
		reqBody["systemInstruction"] = systemInstruction
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &ai.ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	if len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
		return result.Candidates[0].Content.Parts[0].Text, nil
	}

	return "", fmt.Errorf("no content in gemini response")
}
