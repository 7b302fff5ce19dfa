// Package transcribe submits audio files to the OpenAI Whisper API.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"ytscribe/internal/retry"
	"ytscribe/youtube"

	openai "github.com/sashabaranov/go-openai"
)

// Sentinel errors for transcription operations.
var (
	// ErrRateLimited indicates the API rate limit was hit and retries were exhausted.
	ErrRateLimited = errors.New("transcribe: rate limited")
	// ErrQuotaExceeded indicates the account has no remaining credit. Never retried.
	ErrQuotaExceeded = errors.New("transcribe: insufficient quota")
)

// SizeLimitError indicates an audio file exceeds the API upload limit.
// The API is never called for such files.
type SizeLimitError struct {
	// VideoID is the video whose audio is oversize.
	VideoID string
	// Size is the audio file size in bytes.
	Size int64
	// Limit is the configured upload limit in bytes.
	Limit int64
}

// Error returns a string representation of the size limit error.
func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("transcribe: %s: audio is %.1fMB, limit is %.1fMB",
		e.VideoID, float64(e.Size)/(1024*1024), float64(e.Limit)/(1024*1024))
}

// TranscriptionError wraps API failures with the video they belong to.
type TranscriptionError struct {
	// VideoID is the video whose transcription failed.
	VideoID string
	// Err is the underlying error that occurred.
	Err error
}

// Error returns a string representation of the transcription error.
func (e *TranscriptionError) Error() string {
	return "transcribe: " + e.VideoID + ": " + e.Err.Error()
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *TranscriptionError) Unwrap() error { return e.Err }

// ClientConfig configures a transcription Client.
type ClientConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the transcription model (default "whisper-1").
	Model string
	// BaseURL overrides the API endpoint. Empty uses the OpenAI default.
	BaseURL string
	// MaxAudioBytes is the upload size limit enforced before any network call.
	MaxAudioBytes int64
	// Retry holds retry behavior configuration for rate-limited requests.
	Retry *retry.Config
}

// Client calls the Whisper API with bounded retry on rate limits.
type Client struct {
	api           *openai.Client
	model         string
	maxAudioBytes int64
	retryCfg      retry.Config
}

// NewClient creates a transcription client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("transcribe: api key required")
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	if cfg.MaxAudioBytes <= 0 {
		return nil, fmt.Errorf("transcribe: max audio bytes must be positive")
	}

	retryCfg := retry.DefaultConfig()
	if cfg.Retry != nil {
		retryCfg = *cfg.Retry
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:           openai.NewClientWithConfig(apiCfg),
		model:         model,
		maxAudioBytes: cfg.MaxAudioBytes,
		retryCfg:      retryCfg,
	}, nil
}

// Transcribe uploads an audio file and returns the transcript text unmodified.
// Oversize files are rejected before any network call. Rate-limit responses
// are retried with increasing backoff up to the configured bound.
func (c *Client) Transcribe(ctx context.Context, audio *youtube.AudioFile) (string, error) {
	if audio.Size > c.maxAudioBytes {
		return "", &SizeLimitError{VideoID: audio.VideoID, Size: audio.Size, Limit: c.maxAudioBytes}
	}

	var text string
	err := retry.Do(ctx, c.retryCfg, transcribeErrorClassifier, func(ctx context.Context) error {
		resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
			Model:    c.model,
			FilePath: audio.Path,
		})
		if err != nil {
			return classifyAPIError(err)
		}
		text = resp.Text
		return nil
	})
	if err != nil {
		return "", &TranscriptionError{VideoID: audio.VideoID, Err: err}
	}

	return text, nil
}

// classifyAPIError maps go-openai errors onto the package sentinels.
func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if isQuotaError(apiErr) {
			return fmt.Errorf("%w: %s", ErrQuotaExceeded, apiErr.Message)
		}
		if apiErr.HTTPStatusCode == 429 {
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		}
	}
	return err
}

// isQuotaError detects the insufficient_quota variant of a 429 response,
// which no amount of waiting will fix.
func isQuotaError(apiErr *openai.APIError) bool {
	if strings.Contains(strings.ToLower(apiErr.Type), "insufficient_quota") {
		return true
	}
	if code, ok := apiErr.Code.(string); ok && strings.Contains(strings.ToLower(code), "insufficient_quota") {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "insufficient_quota")
}

// transcribeErrorClassifier determines if a transcription error is retryable.
func transcribeErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		// Server errors are transient; other client errors are permanent
		return apiErr.HTTPStatusCode >= 500
	}

	// Network-level errors are retryable
	return true
}
