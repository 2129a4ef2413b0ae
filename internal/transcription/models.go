package transcription

// Job statuses reported by the remote transcription service. Anything not
// listed here is treated as "still working" and polled again.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// job tracks one in-flight transcription. It lives for a single Transcribe
// call and is never persisted.
type job struct {
	UploadedAudioURL string
	ID               string
	Status           string
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type submitRequest struct {
	AudioURL   string `json:"audio_url"`
	Model      string `json:"model,omitempty"`
	Punctuate  bool   `json:"punctuate"`
	FormatText bool   `json:"format_text"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}
