package transcription

import "fmt"

// UploadError reports a failed audio upload. It is never retried
// internally: a crashed upload mid-stream is not safely resumable without
// re-reading the artifact, so retries belong to the caller.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("audio upload failed: status %d: %s", e.StatusCode, e.Body)
}

// SubmissionError reports a failed job-creation request.
type SubmissionError struct {
	StatusCode int
	Body       string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("transcript submission failed: status %d: %s", e.StatusCode, e.Body)
}

// PollError reports a remote contract violation while polling: either a
// transport-level failure or a completed job without text.
type PollError struct {
	Detail string
}

func (e *PollError) Error() string {
	return fmt.Sprintf("transcript poll failed: %s", e.Detail)
}

// TranscriptionError reports a job the remote service itself gave up on.
// Terminal: the job will never complete, so no further polls are issued.
type TranscriptionError struct {
	Message string
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("remote transcription failed: %s", e.Message)
}
