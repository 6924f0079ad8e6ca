package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/anime-shed/ocr-chat-go/internal/scoring"
	"github.com/anime-shed/ocr-chat-go/internal/session"

	"github.com/fatih/color"
)

var (
	headerColor    = color.New(color.FgCyan, color.Bold)
	userColor      = color.New(color.FgGreen, color.Bold)
	assistantColor = color.New(color.FgBlue, color.Bold)
	errorColor     = color.New(color.FgRed)
	dimColor       = color.New(color.Faint)
)

func errorf(format string, args ...interface{}) {
	errorColor.Fprintf(os.Stderr, "✗ %s\n", fmt.Sprintf(format, args...))
}

func section(title string) {
	fmt.Println()
	headerColor.Println(title)
	headerColor.Println(strings.Repeat("=", len(title)))
}

func printExtracted(text string, match *scoring.Match) {
	section("Extracted Text")
	fmt.Println(text)
	if match != nil {
		dimColor.Printf("\nmatch score %.3f  cer %.3f  wer %.3f\n", match.MatchScore, match.CER, match.WER)
	}
}

func printTurn(turn session.Turn) {
	switch turn.Role {
	case session.RoleUser:
		userColor.Print("you> ")
	default:
		assistantColor.Print("assistant> ")
	}
	fmt.Println(turn.Content)
}

func printSnapshot(snap session.Snapshot) {
	dimColor.Printf("status: %s\n", snap.Status)
	if snap.ExtractedText != nil {
		printExtracted(*snap.ExtractedText, nil)
	}
	if len(snap.Transcript) > 0 {
		section("Conversation")
		for _, turn := range snap.Transcript {
			printTurn(turn)
		}
	}
}

const helpText = `Commands:
  /image <path-or-url>  extract text from a new image (clears the conversation)
  /clear                forget the extracted text and conversation
  /show                 print the extracted text and conversation
  /help                 show this help
  /quit                 exit
Anything else is sent as a question about the extracted text.`
