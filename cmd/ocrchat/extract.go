package main

import (
	"context"
	"time"

	"github.com/anime-shed/ocr-chat-go/internal/service"
	"github.com/anime-shed/ocr-chat-go/internal/session"

	"github.com/spf13/cobra"
)

var (
	expectedText   string
	extractTimeout time.Duration
)

var extractCmd = &cobra.Command{
	Use:   "extract <image>",
	Short: "Extract text from an image file or URL and print it",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&expectedText, "expected", "e", "", "reference transcription to score the result against")
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", 5*time.Minute, "maximum time for fetching and extraction")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), extractTimeout)
	defer cancel()

	c, err := buildContainer()
	if err != nil {
		return err
	}
	defer c.Close()

	_, err = extractInto(ctx, c.Service(), session.New(), args[0], expectedText)
	return err
}

// extractInto resolves the argument and runs an extraction into state.
func extractInto(ctx context.Context, svc service.InteractionService, state *session.State, arg, expected string) (*service.ExtractResult, error) {
	src, err := loadSource(arg)
	if err != nil {
		return nil, err
	}
	img, err := svc.OnImageUploaded(ctx, src)
	if err != nil {
		return nil, err
	}
	dimColor.Printf("extracting text from %s image (%dx%d)...\n", img.Format, img.Width, img.Height)

	result, err := svc.OnExtract(ctx, state, service.ExtractRequest{Image: img, ExpectedText: expected})
	if err != nil {
		return nil, err
	}
	printExtracted(result.Text, result.Match)
	return result, nil
}
