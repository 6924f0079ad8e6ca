package factory

import (
	"fmt"
	"strings"

	"github.com/anime-shed/ocr-chat-go/internal/config"
	"github.com/anime-shed/ocr-chat-go/internal/inference"
	"github.com/anime-shed/ocr-chat-go/internal/storage"
)

// BackendType represents the text extraction backends
type BackendType string

const (
	// OllamaBackend sends the image to a vision model
	OllamaBackend BackendType = config.BackendOllama
	// TesseractBackend runs local OCR through libtesseract
	TesseractBackend BackendType = config.BackendTesseract
)

// ExtractorFactory creates text extractors
type ExtractorFactory interface {
	CreateExtractor(backend BackendType) (inference.Extractor, error)
}

// TesseractBuilder creates a Tesseract extractor for the given languages. It is
// injected so that only binaries that link libtesseract depend on it.
type TesseractBuilder func(languages []string) inference.Extractor

type extractorFactory struct {
	ollama    *inference.OllamaClient
	tesseract TesseractBuilder
	languages []string
}

// NewExtractorFactory creates a new extractor factory. tesseract may be nil,
// in which case the Tesseract backend is reported as unavailable.
func NewExtractorFactory(ollama *inference.OllamaClient, tesseract TesseractBuilder, languages []string) ExtractorFactory {
	return &extractorFactory{
		ollama:    ollama,
		tesseract: tesseract,
		languages: languages,
	}
}

// CreateExtractor creates an extractor based on the specified backend
func (f *extractorFactory) CreateExtractor(backend BackendType) (inference.Extractor, error) {
	switch BackendType(strings.ToLower(string(backend))) {
	case OllamaBackend:
		if f.ollama == nil {
			return nil, fmt.Errorf("ollama client not configured")
		}
		return f.ollama, nil
	case TesseractBackend:
		if f.tesseract == nil {
			return nil, fmt.Errorf("tesseract backend not available in this build")
		}
		return f.tesseract(f.languages), nil
	default:
		return nil, fmt.Errorf("unsupported OCR backend: %s", backend)
	}
}

// StorageFactory creates the remote image sources
type StorageFactory interface {
	CreateFetcher() storage.ImageFetcher
	CreateBlobStorage() (storage.BlobStorage, error)
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateFetcher returns the HTTP fetcher bounded by the fetch timeout and body size limit
func (f *storageFactory) CreateFetcher() storage.ImageFetcher {
	return storage.NewHTTPImageFetcher(f.cfg.ImageFetchTimeout, f.cfg.MaxRequestBodySize)
}

// CreateBlobStorage returns nil without error when Azure is not configured
func (f *storageFactory) CreateBlobStorage() (storage.BlobStorage, error) {
	if !f.cfg.AzureEnabled() {
		return nil, nil
	}
	return storage.NewAzureStorage(f.cfg.AzureStorageAccount, f.cfg.AzureStorageKey, f.cfg.MaxRequestBodySize)
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	ExtractorFactory ExtractorFactory
	StorageFactory   StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config, ollama *inference.OllamaClient, tesseract TesseractBuilder) *ComponentFactory {
	return &ComponentFactory{
		ExtractorFactory: NewExtractorFactory(ollama, tesseract, cfg.TesseractLanguages),
		StorageFactory:   NewStorageFactory(cfg),
	}
}
