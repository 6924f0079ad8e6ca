// Package session holds the per-session OCR result and the chat transcript grounded in it.
package session

import (
	"strings"

	apperrors "github.com/anime-shed/ocr-chat-go/internal/errors"
)

// Role identifies the author of a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status is the coarse state derived from the stored fields.
type Status string

const (
	StatusEmpty    Status = "empty"
	StatusReady    Status = "ready"
	StatusChatting Status = "chatting"
)

// Turn is one chat message.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Snapshot is a read-only copy of a State.
type Snapshot struct {
	ExtractedText *string `json:"extracted_text"`
	Transcript    []Turn  `json:"transcript"`
	Status        Status  `json:"status"`
}

// HasText reports whether the snapshot carries extracted text.
func (s Snapshot) HasText() bool {
	return s.ExtractedText != nil
}

// State is the mutable session record. It is not safe for concurrent use;
// callers serialise access per session.
type State struct {
	extractedText *string
	transcript    []Turn
}

// New returns an empty state.
func New() *State {
	return &State{}
}

// Snapshot copies the current fields.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Transcript: make([]Turn, len(s.transcript)),
		Status:     s.Status(),
	}
	copy(snap.Transcript, s.transcript)
	if s.extractedText != nil {
		text := *s.extractedText
		snap.ExtractedText = &text
	}
	return snap
}

// Status derives empty, ready or chatting from the stored fields.
func (s *State) Status() Status {
	switch {
	case s.extractedText == nil:
		return StatusEmpty
	case len(s.transcript) == 0:
		return StatusReady
	default:
		return StatusChatting
	}
}

// ExtractedText returns the stored text and whether it is present.
func (s *State) ExtractedText() (string, bool) {
	if s.extractedText == nil {
		return "", false
	}
	return *s.extractedText, true
}

// TranscriptLen returns the number of stored turns.
func (s *State) TranscriptLen() int {
	return len(s.transcript)
}

// Reset drops the extracted text and the transcript together.
func (s *State) Reset() {
	s.extractedText = nil
	s.transcript = nil
}

// SetExtractedText overwrites the extracted text. The transcript is left as is.
func (s *State) SetExtractedText(text string) {
	s.extractedText = &text
}

// AppendTurn adds a turn to the end of the transcript. Chat without extracted
// text is rejected with a precondition error.
func (s *State) AppendTurn(turn Turn) error {
	if s.extractedText == nil {
		return apperrors.NewPreconditionError("no extracted text to chat about", nil)
	}
	if turn.Role != RoleUser && turn.Role != RoleAssistant {
		return apperrors.NewValidationError("unknown turn role: "+string(turn.Role), nil)
	}
	if strings.TrimSpace(turn.Content) == "" {
		return apperrors.NewValidationError("turn content cannot be empty", nil)
	}
	s.transcript = append(s.transcript, turn)
	return nil
}
