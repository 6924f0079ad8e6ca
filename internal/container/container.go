package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/anime-shed/ocr-chat-go/internal/analyzer"
	"github.com/anime-shed/ocr-chat-go/internal/config"
	"github.com/anime-shed/ocr-chat-go/internal/factory"
	"github.com/anime-shed/ocr-chat-go/internal/inference"
	"github.com/anime-shed/ocr-chat-go/internal/logger"
	"github.com/anime-shed/ocr-chat-go/internal/observer"
	"github.com/anime-shed/ocr-chat-go/internal/render"
	"github.com/anime-shed/ocr-chat-go/internal/repository"
	"github.com/anime-shed/ocr-chat-go/internal/service"
	"github.com/anime-shed/ocr-chat-go/internal/storage"
	"github.com/anime-shed/ocr-chat-go/internal/transport"
	"github.com/anime-shed/ocr-chat-go/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config      *config.Config
	events      *observer.EventPublisher
	readability analyzer.ReadabilityAnalyzer
	metrics     *observer.MetricsObserver
	sessions    *repository.MemorySessionRepository
	service     service.InteractionService
	handler     http.Handler
}

// NewContainer creates a new dependency injection container. tesseract may be
// nil for builds without libtesseract.
func NewContainer(cfg *config.Config, tesseract factory.TesseractBuilder) (*Container, error) {
	logger.Configure(cfg.LogLevel, cfg.LogFile)

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	sessions := repository.NewMemorySessionRepository(cfg.SessionTTL, cfg.SessionCleanupInterval, func(id string) {
		events.NotifyObservers(context.Background(), observer.SessionEvent{
			EventType: observer.SessionEnded,
			SessionID: id,
			Success:   true,
		})
	})

	ollama := inference.NewOllamaClient(inference.OllamaConfig{
		BaseURL:   cfg.OllamaHost,
		OCRModel:  cfg.OCRModel,
		ChatModel: cfg.ChatModel,
	})
	components := factory.NewComponentFactory(cfg, ollama, tesseract)

	extractor, err := components.ExtractorFactory.CreateExtractor(factory.BackendType(cfg.OCRBackend))
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}
	blobs, err := components.StorageFactory.CreateBlobStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to create blob storage: %w", err)
	}

	resolver := storage.NewResolver(
		validation.NewURLValidatorWithOptions(nil, cfg.AllowedImageHosts),
		components.StorageFactory.CreateFetcher(),
		blobs,
	)
	readability := analyzer.NewReadabilityAnalyzer(0)
	// Chat always goes through the language model, whatever extracts the text.
	svc := service.NewInteractionService(resolver, extractor, ollama, events,
		service.WithReadabilityAnalyzer(readability))

	handler := transport.NewHandler(transport.Dependencies{
		Service:  svc,
		Sessions: sessions,
		Renderer: render.NewRenderer(),
		Events:   events,
		Metrics:  metrics,
		Config:   cfg,
	})

	return &Container{
		config:      cfg,
		events:      events,
		readability: readability,
		metrics:     metrics,
		sessions:    sessions,
		service:     svc,
		handler:     handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the interaction controller for in-process clients
func (c *Container) Service() service.InteractionService {
	return c.service
}

// Stats returns the event counters
func (c *Container) Stats() observer.Stats {
	return c.metrics.Stats()
}

// Flush waits for pending event deliveries
func (c *Container) Flush() {
	c.events.Wait()
}

// Close flushes events and stops the analysis workers
func (c *Container) Close() {
	c.Flush()
	_ = c.readability.Close()
}
