package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anime-shed/ocr-chat-go/internal/logger"

	"github.com/ollama/ollama/api"
	"github.com/sirupsen/logrus"
)

const (
	defaultOllamaHost = "http://localhost:11434"
	maxAttempts       = 3
	maxErrorBodyBytes = 1024
)

// OllamaConfig configures the Ollama client.
type OllamaConfig struct {
	BaseURL    string
	OCRModel   string
	ChatModel  string
	RetryDelay time.Duration // base backoff, multiplied by the attempt number
	HTTPClient *http.Client
}

// OllamaClient implements Extractor and Chatter on top of Ollama's chat API.
type OllamaClient struct {
	api        *api.Client
	ocrModel   string
	chatModel  string
	retryDelay time.Duration
}

var errEmptyResponse = errors.New("empty response from model")

// permanentError marks failures another attempt cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// statusTransport turns every reply of 400 or above into an api.StatusError,
// whatever the body looks like.
type statusTransport struct {
	next http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode < http.StatusBadRequest {
		return resp, err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	msg := strings.TrimSpace(string(data))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return nil, api.StatusError{StatusCode: resp.StatusCode, Status: resp.Status, ErrorMessage: msg}
}

// NewOllamaClient creates a client for the Ollama server at cfg.BaseURL.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	var client http.Client
	if cfg.HTTPClient != nil {
		client = *cfg.HTTPClient
	}
	next := client.Transport
	if next == nil {
		// No overall timeout: inference on large images is slow and callers bound it with ctx.
		next = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	client.Transport = &statusTransport{next: next}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		logger.WithField("base_url", cfg.BaseURL).Warn("Invalid Ollama host, using default")
		base, _ = url.Parse(defaultOllamaHost)
	}

	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	return &OllamaClient{
		api:        api.NewClient(base, &client),
		ocrModel:   cfg.OCRModel,
		chatModel:  cfg.ChatModel,
		retryDelay: delay,
	}
}

// ExtractText sends the image with the instruction to the vision model.
func (c *OllamaClient) ExtractText(ctx context.Context, image []byte, instruction string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image")
	}
	return c.chat(ctx, c.ocrModel, []api.Message{{
		Role:    "user",
		Content: instruction,
		Images:  []api.ImageData{image},
	}})
}

// Chat sends a system instruction and one user message to the chat model.
func (c *OllamaClient) Chat(ctx context.Context, systemInstruction, userMessage string) (string, error) {
	return c.chat(ctx, c.chatModel, []api.Message{
		{Role: "system", Content: systemInstruction},
		{Role: "user", Content: userMessage},
	})
}

func (c *OllamaClient) chat(ctx context.Context, model string, messages []api.Message) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, err := c.send(ctx, req)
		if err == nil {
			logger.WithFields(logrus.Fields{
				"model":       model,
				"attempt":     attempt,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Debug("Model call completed")
			return text, nil
		}
		lastErr = err
		if !retryable(err) || attempt == maxAttempts {
			break
		}

		logger.WithError(err).WithFields(logrus.Fields{
			"model":   model,
			"attempt": attempt,
		}).Warn("Model call failed, retrying")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * c.retryDelay):
		}
	}
	return "", fmt.Errorf("model %s: %w", model, lastErr)
}

func (c *OllamaClient) send(ctx context.Context, req *api.ChatRequest) (string, error) {
	var content strings.Builder
	err := c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(content.String())
	if text == "" {
		return "", &permanentError{errEmptyResponse}
	}
	return text, nil
}

// retryable reports whether another attempt may succeed: transport failures and 5xx replies.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		return false
	}
	var se api.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	// Decode failures and in-band error fields come back unwrapped from the api client.
	var ue *url.Error
	return errors.As(err, &ue)
}
