package models

import (
	"time"

	"github.com/anime-shed/ocr-chat-go/internal/scoring"
	"github.com/anime-shed/ocr-chat-go/internal/session"
	"github.com/anime-shed/ocr-chat-go/internal/storage"
)

// ImageRequest names a remote image when the body is JSON or a form
type ImageRequest struct {
	URL          string `json:"url" form:"url"`
	ExpectedText string `json:"expected_text,omitempty" form:"expected_text"`
}

// ChatRequest is the body of a chat submission
type ChatRequest struct {
	Question string `json:"question"`
}

// SessionResponse is the public view of a session
type SessionResponse struct {
	ID            string         `json:"id"`
	Status        session.Status `json:"status"`
	ExtractedText *string        `json:"extracted_text"`
	ExtractedHTML string         `json:"extracted_html,omitempty"`
	Transcript    []session.Turn `json:"transcript"`
}

// ImageResponse describes an accepted upload
type ImageResponse struct {
	SessionID string                 `json:"session_id"`
	Image     *storage.UploadedImage `json:"image"`
}

// ExtractResponse is returned after a successful extraction
type ExtractResponse struct {
	Session           SessionResponse        `json:"session"`
	Image             *storage.UploadedImage `json:"image"`
	Match             *scoring.Match         `json:"match,omitempty"`
	ProcessingTimeSec float64                `json:"processing_time_sec"`
}

// ChatResponse carries the two appended turns and the resulting session
type ChatResponse struct {
	Session  SessionResponse `json:"session"`
	Question session.Turn    `json:"question"`
	Answer   session.Turn    `json:"answer"`
	Degraded bool            `json:"degraded"`
}

// HealthResponse reports service status
type HealthResponse struct {
	Status         string      `json:"status"`
	Version        string      `json:"version"`
	Time           string      `json:"time"`
	OCRBackend     string      `json:"ocr_backend"`
	ActiveSessions int         `json:"active_sessions"`
	Stats          interface{} `json:"stats,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// ProcessingSeconds converts a duration for the processing_time_sec field
func ProcessingSeconds(d time.Duration) float64 {
	return d.Seconds()
}
