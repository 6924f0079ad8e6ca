package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/anime-shed/ocr-chat-go/internal/service"
	"github.com/anime-shed/ocr-chat-go/internal/session"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [image]",
	Short: "Start an interactive session, optionally extracting text from an image first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

type commandKind int

const (
	cmdQuestion commandKind = iota
	cmdImage
	cmdClear
	cmdShow
	cmdHelp
	cmdQuit
	cmdUnknown
)

// parseLine splits an input line into a command and its argument.
func parseLine(line string) (commandKind, string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return cmdQuestion, line
	}
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "/image":
		return cmdImage, arg
	case "/clear":
		return cmdClear, ""
	case "/show":
		return cmdShow, ""
	case "/help":
		return cmdHelp, ""
	case "/quit", "/exit":
		return cmdQuit, ""
	default:
		return cmdUnknown, name
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	c, err := buildContainer()
	if err != nil {
		return err
	}
	defer c.Close()

	state := session.New()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if len(args) == 1 {
		if _, err := extractInto(ctx, c.Service(), state, args[0], ""); err != nil {
			errorf("%v", err)
		}
	}

	fmt.Println()
	dimColor.Println(helpText)
	return chatLoop(ctx, c.Service(), state, os.Stdin, os.Stdout)
}

func chatLoop(ctx context.Context, svc service.InteractionService, state *session.State, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		userColor.Fprint(out, "\n> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		kind, arg := parseLine(scanner.Text())
		switch kind {
		case cmdQuit:
			return nil
		case cmdHelp:
			fmt.Fprintln(out, helpText)
		case cmdShow:
			printSnapshot(state.Snapshot())
		case cmdClear:
			svc.OnClear(ctx, state)
			dimColor.Fprintln(out, "cleared")
		case cmdImage:
			if arg == "" {
				errorf("usage: /image <path-or-url>")
				continue
			}
			if _, err := extractInto(ctx, svc, state, arg, ""); err != nil {
				errorf("%v", err)
			}
		case cmdUnknown:
			errorf("unknown command %s, try /help", arg)
		case cmdQuestion:
			if arg == "" {
				continue
			}
			result, err := svc.OnChatSubmit(ctx, state, arg)
			if err != nil {
				errorf("%v", err)
				continue
			}
			printTurn(result.Answer)
		}
	}
}
