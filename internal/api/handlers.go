package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"murmur/internal/artifacts"
	"murmur/internal/config"
	"murmur/internal/rewrite"
	"murmur/internal/storage/sqlite"
	"murmur/internal/transcription"
	"murmur/internal/websocket"
	"murmur/pkg/logger"
)

// Handler contains the API handlers. It is the composing caller of the
// dictation pipeline: orchestrator -> rewriter -> history store, with
// artifact releases sequenced after each store mutation.
type Handler struct {
	orchestrator  *transcription.Orchestrator
	rewriter      *rewrite.Rewriter
	historyStore  *sqlite.HistoryStore
	artifactStore *artifacts.Store
	config        *config.Config
	logger        *logger.Logger
	wsServer      *websocket.Server
}

// NewHandler creates a new API handler. rewriter may be nil when the
// rewrite backend is disabled; dictations then get the local correction
// pass only.
func NewHandler(
	orchestrator *transcription.Orchestrator,
	rewriter *rewrite.Rewriter,
	historyStore *sqlite.HistoryStore,
	artifactStore *artifacts.Store,
	cfg *config.Config,
	log *logger.Logger,
	wsServer *websocket.Server,
) *Handler {
	return &Handler{
		orchestrator:  orchestrator,
		rewriter:      rewriter,
		historyStore:  historyStore,
		artifactStore: artifactStore,
		config:        cfg,
		logger:        log.Named("api-handler"),
		wsServer:      wsServer,
	}
}

// Health reports liveness and whether the history store fell back to the
// volatile in-memory database.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"history_volatile": h.historyStore.Volatile(),
	})
}

// ValidateCredential checks the transcription credential. An explicit
// ?key= parameter overrides the configured one so the settings UI can test
// a key before saving it.
func (h *Handler) ValidateCredential(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		key = h.config.Transcription.APIKey
	}
	valid := h.orchestrator.ValidateCredential(r.Context(), key)
	WriteJSON(w, http.StatusOK, map[string]any{"valid": valid})
}

// CreateDictation runs one full dictation cycle: save the uploaded audio,
// transcribe it remotely, rewrite the transcript, persist the result, then
// release any artifacts whose refs the store returned.
func (h *Handler) CreateDictation(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "Missing audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contextSummary := r.FormValue("context_summary")
	contextPrompt := r.FormValue("context_prompt")
	customVocabulary := r.FormValue("custom_vocabulary")
	screenshotRef := r.FormValue("screenshot_ref")
	screenshotStatus := r.FormValue("screenshot_status")

	audioRef, err := h.artifactStore.Save(file, filepath.Ext(header.Filename))
	if err != nil {
		h.logger.Error("Failed to save audio artifact", logger.Error(err))
		http.Error(w, "Failed to save audio", http.StatusInternalServerError)
		return
	}

	audioPath, err := h.artifactStore.Path(audioRef)
	if err != nil {
		http.Error(w, "Failed to resolve audio artifact", http.StatusInternalServerError)
		return
	}

	rawTranscript, err := h.orchestrator.Transcribe(r.Context(), audioPath, h.config.Transcription.APIKey)
	if err != nil {
		h.logger.Error("Transcription failed", logger.Error(err))
		// The artifact is orphaned on purpose: nothing references it yet
		// and the user may want to retry from the saved audio.
		http.Error(w, err.Error(), transcriptionStatusCode(err))
		return
	}

	finalTranscript, rewritePrompt, postStatus, debugStatus := h.applyRewrite(r, rawTranscript, contextSummary, customVocabulary)

	record := &sqlite.HistoryRecord{
		ID:                   uuid.NewString(),
		CreatedAt:            time.Now().UTC(),
		RawTranscript:        rawTranscript,
		FinalTranscript:      finalTranscript,
		RewritePrompt:        rewritePrompt,
		ContextSummary:       contextSummary,
		ContextPrompt:        contextPrompt,
		ScreenshotRef:        screenshotRef,
		ScreenshotStatus:     screenshotStatus,
		PostProcessingStatus: postStatus,
		DebugStatus:          debugStatus,
		CustomVocabulary:     customVocabulary,
	}
	if h.config.Artifacts.KeepAudio {
		record.AudioFile = audioRef
	}

	evicted, err := h.historyStore.Append(r.Context(), record, h.config.Storage.HistoryMaxCount)
	if err != nil {
		// History not recorded, but the dictation result itself survives.
		h.logger.Error("Failed to record history", logger.Error(err))
		record.DebugStatus = strings.TrimSpace(record.DebugStatus + " [HISTORY_NOT_RECORDED]")
	}

	// Store mutation first, artifact deletion second: a crash in between
	// leaves an orphaned file, never a dangling reference.
	h.artifactStore.DeleteAll(evicted)
	if !h.config.Artifacts.KeepAudio {
		h.artifactStore.DeleteAll([]string{audioRef})
	}

	h.wsServer.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeDictationComplete,
		Data: map[string]any{
			"id":                     record.ID,
			"final_transcript":       record.FinalTranscript,
			"post_processing_status": record.PostProcessingStatus,
		},
	})

	WriteJSON(w, http.StatusCreated, record)
}

// applyRewrite runs the remote rewrite when configured, degrading to the
// local fuzzy-correction pass when it is disabled or fails.
func (h *Handler) applyRewrite(r *http.Request, rawTranscript, contextSummary, customVocabulary string) (text, prompt, postStatus, debugStatus string) {
	if h.rewriter == nil {
		return rewrite.CorrectLocally(rawTranscript, contextSummary, customVocabulary),
			"", "local correction only", ""
	}

	result, err := h.rewriter.Rewrite(r.Context(), rawTranscript, contextSummary, customVocabulary)
	if err != nil {
		h.logger.Error("Rewrite failed, falling back to local correction", logger.Error(err))
		return rewrite.CorrectLocally(rawTranscript, contextSummary, customVocabulary),
			"", "[REWRITE_FAILED] local correction applied", err.Error()
	}

	return result.Text, result.PromptUsed, "rewritten", ""
}

// GetHistory returns all history records, newest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	records := h.historyStore.LoadAll(r.Context())
	WriteJSON(w, http.StatusOK, map[string]any{
		"items":    records,
		"volatile": h.historyStore.Volatile(),
	})
}

// DeleteHistoryItem removes one history record and releases its audio
// artifact.
func (h *Handler) DeleteHistoryItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing history ID", http.StatusBadRequest)
		return
	}

	audioRef, found, err := h.historyStore.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to delete history record", logger.Error(err))
		http.Error(w, "Failed to delete history record", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "History record not found", http.StatusNotFound)
		return
	}

	if audioRef != "" {
		h.artifactStore.DeleteAll([]string{audioRef})
	}

	h.wsServer.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeHistoryUpdate,
		Data: map[string]any{"deleted_id": id},
	})

	WriteJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// ClearHistory removes all history records and releases their audio
// artifacts.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	audioRefs, err := h.historyStore.ClearAll(r.Context())
	if err != nil {
		h.logger.Error("Failed to clear history", logger.Error(err))
		http.Error(w, "Failed to clear history", http.StatusInternalServerError)
		return
	}

	h.artifactStore.DeleteAll(audioRefs)

	h.wsServer.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeHistoryCleared,
		Data: map[string]any{"released_audio": len(audioRefs)},
	})

	WriteJSON(w, http.StatusOK, map[string]any{"released_audio": len(audioRefs)})
}

// TrimHistory evicts the oldest records beyond the requested bound.
func (h *Handler) TrimHistory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxCount int `json:"max_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	audioRefs, err := h.historyStore.Trim(r.Context(), req.MaxCount)
	if err != nil {
		h.logger.Error("Failed to trim history", logger.Error(err))
		http.Error(w, "Failed to trim history", http.StatusInternalServerError)
		return
	}

	h.artifactStore.DeleteAll(audioRefs)

	WriteJSON(w, http.StatusOK, map[string]any{"evicted": len(audioRefs)})
}

// transcriptionStatusCode maps orchestrator failures onto HTTP statuses:
// remote lifecycle failures are upstream errors, everything else is an
// internal failure.
func transcriptionStatusCode(err error) int {
	var (
		uploadErr     *transcription.UploadError
		submissionErr *transcription.SubmissionError
		pollErr       *transcription.PollError
		remoteErr     *transcription.TranscriptionError
	)
	switch {
	case errors.As(err, &uploadErr),
		errors.As(err, &submissionErr),
		errors.As(err, &pollErr),
		errors.As(err, &remoteErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
