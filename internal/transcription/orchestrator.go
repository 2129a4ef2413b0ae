// Package transcription drives the remote transcription job lifecycle:
// upload the audio artifact, submit a transcription job referencing the
// upload, then poll the job until it reaches a terminal status.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"murmur/pkg/logger"
)

// Config holds settings for the orchestrator.
type Config struct {
	BaseURL        string
	Model          string
	Punctuate      bool
	FormatText     bool
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

// Orchestrator runs the three-step upload/submit/poll protocol against an
// AssemblyAI-shaped transcription backend. A single Orchestrator may serve
// concurrent Transcribe calls; each call carries its own job state.
type Orchestrator struct {
	baseURL      string
	model        string
	punctuate    bool
	formatText   bool
	pollInterval time.Duration
	httpClient   *http.Client
	logger       *logger.Logger
}

// New creates an Orchestrator from cfg.
func New(cfg Config, log *logger.Logger) *Orchestrator {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Orchestrator{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		model:        cfg.Model,
		punctuate:    cfg.Punctuate,
		formatText:   cfg.FormatText,
		pollInterval: interval,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       log.Named("transcription"),
	}
}

// Transcribe uploads the audio artifact at audioPath, submits a
// transcription job and polls it to completion, returning the transcript
// text. The artifact is only read, never deleted. Steps run strictly in
// order and there is no resume-from-middle: a fresh call always starts at
// the upload.
//
// Only logical "still working" poll states are retried; every other
// failure surfaces immediately. Total wall time is bounded by ctx alone;
// cancelling mid-poll leaves the remote job running un-awaited.
func (o *Orchestrator) Transcribe(ctx context.Context, audioPath string, apiKey string) (string, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("failed to read audio artifact: %w", err)
	}

	j := &job{}

	start := time.Now()
	j.UploadedAudioURL, err = o.upload(ctx, apiKey, audio)
	if err != nil {
		return "", err
	}
	o.logger.Debug("Audio uploaded",
		logger.Int("bytes", len(audio)),
		logger.Duration("elapsed", time.Since(start)))

	j.ID, err = o.submit(ctx, apiKey, j.UploadedAudioURL)
	if err != nil {
		return "", err
	}
	o.logger.Debug("Transcription job submitted", logger.String("job_id", j.ID))

	text, err := o.poll(ctx, apiKey, j)
	if err != nil {
		return "", err
	}

	o.logger.Info("Transcription completed",
		logger.String("job_id", j.ID),
		logger.Int("chars", len(text)),
		logger.Duration("elapsed", time.Since(start)))
	return text, nil
}

// ValidateCredential performs a lightweight authenticated request against
// the job-listing endpoint. It returns true only on an exact success
// status; malformed credentials, transport errors and auth failures all
// fold into false.
func (o *Orchestrator) ValidateCredential(ctx context.Context, apiKey string) bool {
	if strings.TrimSpace(apiKey) == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, "GET", o.baseURL+"/v2/transcript?limit=1", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

func (o *Orchestrator) upload(ctx context.Context, apiKey string, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/v2/upload", bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("audio upload failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UploadError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.UploadURL == "" {
		return "", &UploadError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return parsed.UploadURL, nil
}

func (o *Orchestrator) submit(ctx context.Context, apiKey string, audioURL string) (string, error) {
	payload, err := json.Marshal(submitRequest{
		AudioURL:   audioURL,
		Model:      o.model,
		Punctuate:  o.punctuate,
		FormatText: o.formatText,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/v2/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcript submission failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &SubmissionError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed submitResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.ID == "" {
		return "", &SubmissionError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return parsed.ID, nil
}

// poll fetches the job status until a terminal state is reached. Unknown
// status strings are treated as "still working" so new intermediate states
// on the remote side do not break the loop.
func (o *Orchestrator) poll(ctx context.Context, apiKey string, j *job) (string, error) {
	for {
		status, err := o.fetchStatus(ctx, apiKey, j.ID)
		if err != nil {
			return "", err
		}
		j.Status = status.Status

		switch status.Status {
		case StatusCompleted:
			if status.Text == "" {
				return "", &PollError{Detail: "no text in completed transcript"}
			}
			return status.Text, nil
		case StatusError:
			return "", &TranscriptionError{Message: status.Error}
		}

		o.logger.Debug("Job still working",
			logger.String("job_id", j.ID),
			logger.String("status", status.Status))

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(o.pollInterval):
		}
	}
}

func (o *Orchestrator) fetchStatus(ctx context.Context, apiKey string, jobID string) (*statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", o.baseURL+"/v2/transcript/"+jobID, nil)
	if err != nil {
		return nil, &PollError{Detail: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, &PollError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &PollError{Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, string(body))}
	}

	var parsed statusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &PollError{Detail: fmt.Sprintf("malformed status body: %s", string(body))}
	}

	return &parsed, nil
}
