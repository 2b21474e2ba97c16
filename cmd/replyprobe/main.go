// Command replyprobe sends one message through the configured reply
// backend and prints the answer. It is a quick way to check that an
// OpenAI-compatible endpoint is reachable before starting the server.
//
//	replyprobe "Where should I go?"
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/RichardoC/chatline/internal/config"
	"github.com/RichardoC/chatline/internal/llm"
	"github.com/RichardoC/chatline/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: replyprobe <message>")
		os.Exit(2)
	}

	if _, err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(os.Getenv("CHATLINE_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(config.LoggingConfig{Level: "info", Format: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	replier, err := llm.NewReplier(cfg.Reply)
	if err != nil {
		logger.Fatal("failed to initialize reply backend", zap.Error(err))
	}

	reply, err := replier.GenerateReply(context.Background(), strings.Join(os.Args[1:], " "))
	if err != nil {
		logger.Fatal("failed to generate reply",
			zap.Error(err),
			zap.String("backend", cfg.Reply.Backend))
	}
	fmt.Println(reply)
}
