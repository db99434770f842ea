package main

import (
	"log/slog"
	"os"

	"github.com/amiup/amiup/cmd/amiup/commands"
)

func main() {
	// Structured logging goes to stderr; stdout is reserved for the final
	// region to image id map.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	commands.Execute()
}
