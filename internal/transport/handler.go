package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/anime-shed/ocr-chat-go/internal/config"
	apperrors "github.com/anime-shed/ocr-chat-go/internal/errors"
	"github.com/anime-shed/ocr-chat-go/internal/logger"
	"github.com/anime-shed/ocr-chat-go/internal/observer"
	"github.com/anime-shed/ocr-chat-go/internal/render"
	"github.com/anime-shed/ocr-chat-go/internal/repository"
	"github.com/anime-shed/ocr-chat-go/internal/service"
	"github.com/anime-shed/ocr-chat-go/internal/session"
	"github.com/anime-shed/ocr-chat-go/internal/storage"
	"github.com/anime-shed/ocr-chat-go/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const version = "1.0.0"

// Dependencies groups what the HTTP layer needs. Events and Metrics may be nil.
type Dependencies struct {
	Service  service.InteractionService
	Sessions repository.SessionRepository
	Renderer *render.Renderer
	Events   observer.Subject
	Metrics  *observer.MetricsObserver
	Config   *config.Config
}

type handler struct {
	Dependencies
}

func NewHandler(deps Dependencies) http.Handler {
	h := &handler{Dependencies: deps}
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(deps.Config.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", h.healthCheck)

	v1 := r.Group("/api/v1/sessions")
	v1.POST("", h.createSession)
	v1.GET("/:id", h.getSession)
	v1.DELETE("/:id", h.deleteSession)
	v1.POST("/:id/clear", h.clearSession)
	v1.POST("/:id/image", h.uploadImage)
	v1.POST("/:id/extract", h.extractText)
	v1.POST("/:id/chat", h.submitChat)

	return r
}

// requestContext bounds the request and tags it with the session ID for event publishing.
func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx := c.Request.Context()
	if id := c.Param("id"); id != "" {
		ctx = observer.WithSessionID(ctx, id)
	}
	return context.WithTimeout(ctx, h.Config.RequestTimeout)
}

func (h *handler) healthCheck(c *gin.Context) {
	resp := models.HealthResponse{
		Status:         "available",
		Version:        version,
		Time:           time.Now().UTC().Format(time.RFC3339),
		OCRBackend:     h.Config.OCRBackend,
		ActiveSessions: h.Sessions.Count(),
	}
	if h.Metrics != nil {
		resp.Stats = h.Metrics.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) createSession(c *gin.Context) {
	id, err := h.Sessions.Create()
	if err != nil {
		respondAppError(c, apperrors.NewInternalError("failed to create session", err))
		return
	}
	ctx := observer.WithSessionID(c.Request.Context(), id)
	if h.Events != nil {
		h.Events.NotifyObservers(ctx, observer.SessionEvent{
			EventType: observer.SessionCreated,
			SessionID: id,
			Success:   true,
		})
	}
	c.JSON(http.StatusCreated, h.sessionResponse(id, session.New().Snapshot()))
}

func (h *handler) getSession(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	id := c.Param("id")
	snap, err := h.Sessions.Snapshot(ctx, id)
	if err != nil {
		respondAppError(c, repositoryError(err))
		return
	}
	c.JSON(http.StatusOK, h.sessionResponse(id, snap))
}

func (h *handler) deleteSession(c *gin.Context) {
	if err := h.Sessions.Delete(c.Param("id")); err != nil {
		respondAppError(c, repositoryError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) clearSession(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	id := c.Param("id")
	var snap session.Snapshot
	err := h.Sessions.Update(ctx, id, func(s *session.State) error {
		h.Service.OnClear(ctx, s)
		snap = s.Snapshot()
		return nil
	})
	if err != nil {
		respondAppError(c, repositoryError(err))
		return
	}
	c.JSON(http.StatusOK, h.sessionResponse(id, snap))
}

func (h *handler) uploadImage(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	id := c.Param("id")
	// Existence check only; an upload never changes the state.
	if err := h.Sessions.Exists(id); err != nil {
		respondAppError(c, repositoryError(err))
		return
	}

	src, _, err := readSource(c)
	if err != nil {
		respondAppError(c, err)
		return
	}
	img, err := h.Service.OnImageUploaded(ctx, src)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ImageResponse{SessionID: id, Image: img})
}

func (h *handler) extractText(c *gin.Context) {
	startTime := time.Now()
	ctx, cancel := h.requestContext(c)
	defer cancel()

	id := c.Param("id")
	logger.WithFields(logrus.Fields{
		"session_id": id,
		"ip":         c.ClientIP(),
	}).Info("Processing text extraction request")

	if err := h.Sessions.Exists(id); err != nil {
		respondAppError(c, repositoryError(err))
		return
	}

	src, expected, err := readSource(c)
	if err != nil {
		respondAppError(c, err)
		return
	}
	// Decoding and fetching happen before the session is locked.
	img, err := h.Service.OnImageUploaded(ctx, src)
	if err != nil {
		respondAppError(c, err)
		return
	}

	var (
		result *service.ExtractResult
		snap   session.Snapshot
	)
	err = h.Sessions.Update(ctx, id, func(s *session.State) error {
		var opErr error
		result, opErr = h.Service.OnExtract(ctx, s, service.ExtractRequest{Image: img, ExpectedText: expected})
		snap = s.Snapshot()
		return opErr
	})
	if err != nil {
		respondAppError(c, repositoryError(err))
		return
	}

	duration := time.Since(startTime)
	logger.WithFields(logrus.Fields{
		"session_id":         id,
		"format":             img.Format,
		"processing_time_ms": duration.Milliseconds(),
		"text_chars":         len(result.Text),
	}).Info("Text extraction completed successfully")

	c.JSON(http.StatusOK, models.ExtractResponse{
		Session:           h.sessionResponse(id, snap),
		Image:             img,
		Match:             result.Match,
		ProcessingTimeSec: models.ProcessingSeconds(duration),
	})
}

func (h *handler) submitChat(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	id := c.Param("id")
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondAppError(c, apperrors.NewValidationError("invalid request format", err))
		return
	}

	var (
		result *service.ChatResult
		snap   session.Snapshot
	)
	err := h.Sessions.Update(ctx, id, func(s *session.State) error {
		var opErr error
		result, opErr = h.Service.OnChatSubmit(ctx, s, req.Question)
		snap = s.Snapshot()
		return opErr
	})
	if err != nil {
		respondAppError(c, repositoryError(err))
		return
	}

	c.JSON(http.StatusOK, models.ChatResponse{
		Session:  h.sessionResponse(id, snap),
		Question: result.Question,
		Answer:   result.Answer,
		Degraded: result.Degraded,
	})
}

func (h *handler) sessionResponse(id string, snap session.Snapshot) models.SessionResponse {
	resp := models.SessionResponse{
		ID:            id,
		Status:        snap.Status,
		ExtractedText: snap.ExtractedText,
		Transcript:    snap.Transcript,
	}
	if snap.ExtractedText != nil && h.Renderer != nil {
		html, err := h.Renderer.ToHTML(*snap.ExtractedText)
		if err != nil {
			logger.WithError(err).WithField("session_id", id).Warn("Failed to render extracted text")
		} else {
			resp.ExtractedHTML = html
		}
	}
	return resp
}

// readSource accepts a multipart "image" file, a raw image body, or a JSON or
// form "url". expected_text may come from the form, the JSON body or the query.
func readSource(c *gin.Context) (storage.Source, string, error) {
	expected := c.Query("expected_text")
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))

	switch {
	case mediaType == "multipart/form-data":
		if v := c.PostForm("expected_text"); v != "" {
			expected = v
		}
		src := storage.Source{URL: strings.TrimSpace(c.PostForm("url"))}
		file, err := c.FormFile("image")
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			return storage.Source{}, "", bodyError(err)
		}
		if file != nil {
			f, err := file.Open()
			if err != nil {
				return storage.Source{}, "", apperrors.NewValidationError("failed to open uploaded file", err)
			}
			defer f.Close()
			if src.Data, err = io.ReadAll(f); err != nil {
				return storage.Source{}, "", bodyError(err)
			}
		}
		return src, expected, nil

	case mediaType == "application/json", mediaType == "application/x-www-form-urlencoded":
		var req models.ImageRequest
		if err := c.ShouldBind(&req); err != nil {
			return storage.Source{}, "", apperrors.NewValidationError("invalid request format", err)
		}
		if req.ExpectedText != "" {
			expected = req.ExpectedText
		}
		return storage.Source{URL: strings.TrimSpace(req.URL)}, expected, nil

	default:
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return storage.Source{}, "", bodyError(err)
		}
		return storage.Source{Data: data, URL: strings.TrimSpace(c.Query("url"))}, expected, nil
	}
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.NewValidationError(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), err)
	}
	return apperrors.NewValidationError("failed to read request body", err)
}

// repositoryError maps lookup and lock failures; AppErrors pass through.
func repositoryError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		return apperrors.NewNotFoundError("session not found", err)
	case errors.Is(err, repository.ErrInvalidSessionID):
		return apperrors.NewValidationError("invalid session ID", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("session is busy", err)
	default:
		return err
	}
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondAppError(c, c.Errors.Last().Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondAppError(c *gin.Context, err error) {
	code := determineStatusCode(err)
	errType := apperrors.GetType(err)

	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
		if appErr.Details != "" {
			message = fmt.Sprintf("%s: %s", appErr.Message, appErr.Details)
		}
	}

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"error_type":  errType,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Type:    string(errType),
		Message: message,
	})
}
