package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anime-shed/ocr-chat-go/internal/analyzer"
	apperrors "github.com/anime-shed/ocr-chat-go/internal/errors"
	"github.com/anime-shed/ocr-chat-go/internal/inference"
	"github.com/anime-shed/ocr-chat-go/internal/observer"
	"github.com/anime-shed/ocr-chat-go/internal/scoring"
	"github.com/anime-shed/ocr-chat-go/internal/session"
	"github.com/anime-shed/ocr-chat-go/internal/storage"
)

// ErrorTurnPrefix starts the content of every assistant turn that records a failed chat call.
const ErrorTurnPrefix = "Error: "

var errEmptyAnswer = errors.New("empty response from model")

// InteractionService reacts to user actions on one session's state. Callers
// must not run two operations on the same state concurrently.
type InteractionService interface {
	// OnClear empties the state. It always succeeds.
	OnClear(ctx context.Context, state *session.State)

	// OnImageUploaded checks that the source holds a decodable image. The state is never touched.
	OnImageUploaded(ctx context.Context, src storage.Source) (*storage.UploadedImage, error)

	// OnExtract resets the state, then stores the text the model extracts from the image.
	OnExtract(ctx context.Context, state *session.State, req ExtractRequest) (*ExtractResult, error)

	// OnChatSubmit appends the question and the grounded answer, or an error turn when the model fails.
	OnChatSubmit(ctx context.Context, state *session.State, question string) (*ChatResult, error)
}

// ExtractRequest carries a decoded image and an optional reference transcription.
type ExtractRequest struct {
	Image        *storage.UploadedImage
	ExpectedText string
}

// ExtractResult is returned by a successful extraction.
type ExtractResult struct {
	Text     string         `json:"text"`
	Match    *scoring.Match `json:"match,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// ChatResult holds the two turns appended by one question.
type ChatResult struct {
	Question session.Turn `json:"question"`
	Answer   session.Turn `json:"answer"`
	Degraded bool         `json:"degraded"`
}

type interactionService struct {
	resolver    storage.Resolver
	extractor   inference.Extractor
	chatter     inference.Chatter
	events      observer.Subject
	readability analyzer.ReadabilityAnalyzer
}

// Option configures optional collaborators
type Option func(*interactionService)

// WithReadabilityAnalyzer attaches a readability report to every accepted upload.
func WithReadabilityAnalyzer(a analyzer.ReadabilityAnalyzer) Option {
	return func(s *interactionService) {
		s.readability = a
	}
}

// NewInteractionService creates the controller. events may be nil.
func NewInteractionService(
	resolver storage.Resolver,
	extractor inference.Extractor,
	chatter inference.Chatter,
	events observer.Subject,
	opts ...Option,
) InteractionService {
	s := &interactionService{
		resolver:  resolver,
		extractor: extractor,
		chatter:   chatter,
		events:    events,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *interactionService) OnClear(ctx context.Context, state *session.State) {
	state.Reset()
	s.publish(ctx, observer.SessionEvent{EventType: observer.SessionCleared, Success: true})
}

func (s *interactionService) OnImageUploaded(ctx context.Context, src storage.Source) (*storage.UploadedImage, error) {
	img, err := s.resolver.Resolve(ctx, src)
	if err != nil {
		s.publish(ctx, observer.SessionEvent{
			EventType:    observer.ImageRejected,
			ErrorMessage: err.Error(),
		})
		return nil, err
	}
	if s.readability != nil && img.Decoded != nil {
		img.Readability = s.readability.Analyze(img.Decoded)
	}
	return img, nil
}

func (s *interactionService) OnExtract(ctx context.Context, state *session.State, req ExtractRequest) (*ExtractResult, error) {
	if req.Image == nil || len(req.Image.Data) == 0 {
		return nil, apperrors.NewInvalidImageError("no decoded image to extract from", nil)
	}

	// The previous text may describe a different image, so it goes before the model is asked.
	state.Reset()

	start := time.Now()
	text, err := s.extractor.ExtractText(ctx, req.Image.Data, inference.OCRInstruction)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errEmptyAnswer
	}
	duration := time.Since(start)
	if err != nil {
		s.publish(ctx, observer.SessionEvent{
			EventType:    observer.ExtractionFailed,
			Duration:     duration,
			ErrorMessage: err.Error(),
			Metadata:     map[string]interface{}{"format": req.Image.Format, "size": req.Image.Size},
		})
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewExtractionTimeoutError("text extraction timed out", err)
		}
		return nil, apperrors.NewExtractionError("text extraction failed", err).WithDetails(err.Error())
	}

	state.SetExtractedText(text)

	result := &ExtractResult{
		Text:     text,
		Match:    scoring.Compare(text, req.ExpectedText),
		Duration: duration,
	}
	meta := map[string]interface{}{
		"format":     req.Image.Format,
		"size":       req.Image.Size,
		"text_chars": len(text),
	}
	if r := req.Image.Readability; r != nil {
		meta["readable"] = r.Readable
	}
	if result.Match != nil {
		meta["match_score"] = result.Match.MatchScore
	}
	s.publish(ctx, observer.SessionEvent{
		EventType: observer.ExtractionCompleted,
		Duration:  duration,
		Success:   true,
		Metadata:  meta,
	})
	return result, nil
}

func (s *interactionService) OnChatSubmit(ctx context.Context, state *session.State, question string) (*ChatResult, error) {
	extracted, ok := state.ExtractedText()
	if !ok {
		return nil, apperrors.NewPreconditionError("extract text from an image before chatting", nil)
	}
	if strings.TrimSpace(question) == "" {
		return nil, apperrors.NewValidationError("question cannot be empty", nil)
	}

	userTurn := session.Turn{Role: session.RoleUser, Content: question}
	if err := state.AppendTurn(userTurn); err != nil {
		return nil, err
	}

	start := time.Now()
	answer, err := s.chatter.Chat(ctx, inference.GroundingSystemPrompt, inference.BuildGroundedPrompt(extracted, question))
	if err == nil && strings.TrimSpace(answer) == "" {
		err = errEmptyAnswer
	}

	result := &ChatResult{Question: userTurn}
	event := observer.SessionEvent{Duration: time.Since(start)}
	if err != nil {
		result.Answer = session.Turn{Role: session.RoleAssistant, Content: degradedContent(err)}
		result.Degraded = true
		event.EventType = observer.ChatDegraded
		event.ErrorMessage = err.Error()
	} else {
		result.Answer = session.Turn{Role: session.RoleAssistant, Content: answer}
		event.EventType = observer.ChatAnswered
		event.Success = true
	}

	// Extracted text is present and content non-empty, so this cannot fail.
	if err := state.AppendTurn(result.Answer); err != nil {
		return nil, apperrors.NewInternalError("record assistant turn", err)
	}
	s.publish(ctx, event)
	return result, nil
}

func degradedContent(err error) string {
	return fmt.Sprintf("%sCould not process the request. %v", ErrorTurnPrefix, err)
}

func (s *interactionService) publish(ctx context.Context, event observer.SessionEvent) {
	if s.events == nil {
		return
	}
	if event.SessionID == "" {
		event.SessionID = observer.SessionIDFrom(ctx)
	}
	s.events.NotifyObservers(ctx, event)
}
