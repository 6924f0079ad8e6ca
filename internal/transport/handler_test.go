package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anime-shed/ocr-chat-go/internal/config"
	"github.com/anime-shed/ocr-chat-go/internal/observer"
	"github.com/anime-shed/ocr-chat-go/internal/render"
	"github.com/anime-shed/ocr-chat-go/internal/repository"
	"github.com/anime-shed/ocr-chat-go/internal/service"
	"github.com/anime-shed/ocr-chat-go/internal/session"
	"github.com/anime-shed/ocr-chat-go/internal/storage"
	"github.com/anime-shed/ocr-chat-go/pkg/models"
	"github.com/anime-shed/ocr-chat-go/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubExtractor struct {
	text string
	err  error
}

func (s *stubExtractor) ExtractText(ctx context.Context, image []byte, instruction string) (string, error) {
	return s.text, s.err
}

type stubChatter struct {
	answer string
	err    error
}

func (s *stubChatter) Chat(ctx context.Context, systemInstruction, userMessage string) (string, error) {
	return s.answer, s.err
}

type testServer struct {
	handler   http.Handler
	sessions  *repository.MemorySessionRepository
	extractor *stubExtractor
	chatter   *stubChatter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
		OCRBackend:         config.BackendOllama,
	}
	ex := &stubExtractor{text: "# Hello"}
	ch := &stubChatter{answer: "It says Hello"}
	sessions := repository.NewMemorySessionRepository(time.Hour, time.Hour, nil)
	resolver := storage.NewResolver(validation.NewURLValidator(), nil, nil)
	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(metrics)

	h := NewHandler(Dependencies{
		Service:  service.NewInteractionService(resolver, ex, ch, events),
		Sessions: sessions,
		Renderer: render.NewRenderer(),
		Events:   events,
		Metrics:  metrics,
		Config:   cfg,
	})
	return &testServer{handler: h, sessions: sessions, extractor: ex, chatter: ch}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	w := s.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	require.Equal(t, http.StatusCreated, w.Code)
	var resp models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, session.StatusEmpty, resp.Status)
	return resp.ID
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 2))))
	return buf.Bytes()
}

func multipartBody(t *testing.T, data []byte, expected string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("image", "scan.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	if expected != "" {
		require.NoError(t, mw.WriteField("expected_text", expected))
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func chatRequest(id, question string) *http.Request {
	body, _ := json.Marshal(models.ChatRequest{Question: question})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	s.createSession(t)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "available", resp.Status)
	assert.Equal(t, 1, resp.ActiveSessions)
	assert.Equal(t, config.BackendOllama, resp.OCRBackend)
}

func TestExtractThenChatThenClear(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	body, ct := multipartBody(t, testPNG(t), "hello")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/extract", body)
	req.Header.Set("Content-Type", ct)
	w := s.do(t, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var extracted models.ExtractResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &extracted))
	require.NotNil(t, extracted.Session.ExtractedText)
	assert.Equal(t, "# Hello", *extracted.Session.ExtractedText)
	assert.Contains(t, extracted.Session.ExtractedHTML, "<h1>Hello</h1>")
	assert.Equal(t, session.StatusReady, extracted.Session.Status)
	assert.Equal(t, "png", extracted.Image.Format)
	require.NotNil(t, extracted.Match)
	assert.Equal(t, 1.0, extracted.Match.MatchScore)

	w = s.do(t, chatRequest(id, "What does it say?"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var chat models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chat))
	assert.False(t, chat.Degraded)
	assert.Equal(t, "It says Hello", chat.Answer.Content)
	assert.Len(t, chat.Session.Transcript, 2)
	assert.Equal(t, session.StatusChatting, chat.Session.Status)

	w = s.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/clear", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var cleared models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cleared))
	assert.Nil(t, cleared.ExtractedText)
	assert.Empty(t, cleared.Transcript)
	assert.Equal(t, session.StatusEmpty, cleared.Status)
}

func TestExtract_RawBody(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/extract", bytes.NewReader(testPNG(t)))
	req.Header.Set("Content-Type", "image/png")
	w := s.do(t, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestExtract_InvalidImageLeavesStateUntouched(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)
	require.NoError(t, s.sessions.Update(context.Background(), id, func(st *session.State) error {
		st.SetExtractedText("kept")
		return nil
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/extract", strings.NewReader("not an image"))
	req.Header.Set("Content-Type", "application/octet-stream")
	w := s.do(t, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, "invalid_image", decodeError(t, w).Type)

	snap, err := s.sessions.Snapshot(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, snap.ExtractedText)
	assert.Equal(t, "kept", *snap.ExtractedText)
}

func TestExtract_ModelFailure(t *testing.T) {
	s := newTestServer(t)
	s.extractor.err = errors.New("model offline")
	id := s.createSession(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/extract", bytes.NewReader(testPNG(t)))
	req.Header.Set("Content-Type", "image/png")
	w := s.do(t, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "extraction", resp.Type)
	assert.Contains(t, resp.Message, "model offline")

	snap, err := s.sessions.Snapshot(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, session.StatusEmpty, snap.Status)
}

func TestUploadImage_ReturnsMetadata(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	body, ct := multipartBody(t, testPNG(t), "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/image", body)
	req.Header.Set("Content-Type", ct)
	w := s.do(t, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.ImageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Image.Width)
	assert.Equal(t, 2, resp.Image.Height)
}

func TestChat_Errors(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)
	withText := s.createSession(t)
	require.NoError(t, s.sessions.Update(context.Background(), withText, func(st *session.State) error {
		st.SetExtractedText("Hello")
		return nil
	}))

	tests := []struct {
		name     string
		req      *http.Request
		wantCode int
		wantType string
	}{
		{"before extraction", chatRequest(id, "hi"), http.StatusConflict, "precondition"},
		{"empty question before extraction", chatRequest(id, ""), http.StatusConflict, "precondition"},
		{"blank question", chatRequest(withText, "   "), http.StatusBadRequest, "validation"},
		{"unknown session", chatRequest("4f9d2c1e-0000-4000-8000-000000000000", "hi"), http.StatusNotFound, "not_found"},
		{"malformed id", chatRequest("abc", "hi"), http.StatusBadRequest, "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.req)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantType, decodeError(t, w).Type)
		})
	}
}

func TestChat_DegradedAnswer(t *testing.T) {
	s := newTestServer(t)
	s.chatter.err = errors.New("connection refused")
	id := s.createSession(t)
	require.NoError(t, s.sessions.Update(context.Background(), id, func(st *session.State) error {
		st.SetExtractedText("Hello")
		return nil
	}))

	w := s.do(t, chatRequest(id, "What does it say?"))

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Degraded)
	assert.Equal(t, session.Turn{Role: session.RoleUser, Content: "What does it say?"}, resp.Question)
	assert.True(t, strings.HasPrefix(resp.Answer.Content, service.ErrorTurnPrefix))
	assert.Len(t, resp.Session.Transcript, 2)
}

func TestDeleteSession(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	w := s.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+id, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestSizeLimit(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	big := bytes.Repeat([]byte{0}, 2<<20)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/extract", bytes.NewReader(big))
	req.Header.Set("Content-Type", "application/octet-stream")
	w := s.do(t, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Message, "exceeds")
}
