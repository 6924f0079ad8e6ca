package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/anime-shed/ocr-chat-go/internal/config"
	"github.com/anime-shed/ocr-chat-go/internal/container"
	"github.com/anime-shed/ocr-chat-go/internal/inference"
	"github.com/anime-shed/ocr-chat-go/internal/inference/tesseract"
	"github.com/anime-shed/ocr-chat-go/internal/storage"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	noColor bool
	backend string
)

var rootCmd = &cobra.Command{
	Use:   "ocrchat",
	Short: "Extract text from an image and ask questions about it",
	Long: `ocrchat runs text extraction and grounded chat in the terminal, using the
same models and configuration as the HTTP API. Answers are based only on the
text extracted from the current image.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show service logs")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "OCR backend (ollama or tesseract); overrides OCR_BACKEND")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		errorf("%v", err)
		return err
	}
	return nil
}

func newTesseract(languages []string) inference.Extractor {
	return tesseract.NewExtractor(languages)
}

// buildContainer loads the environment configuration with CLI overrides applied.
func buildContainer() (*container.Container, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if backend != "" {
		cfg.OCRBackend = strings.ToLower(backend)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if !verbose {
		cfg.LogLevel = "error"
	}
	return container.NewContainer(cfg, newTesseract)
}

// loadSource treats http(s) arguments as URLs and everything else as a file path.
func loadSource(arg string) (storage.Source, error) {
	lower := strings.ToLower(arg)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return storage.Source{URL: arg}, nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return storage.Source{}, fmt.Errorf("read image: %w", err)
	}
	return storage.Source{Data: data}, nil
}
