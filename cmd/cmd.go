// Package cmd provides the CLI commands for quarry.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - seed: populate the analytics database with sample data
//   - ask: run a single question from the terminal
package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

// Execute is the main entry point for the quarry CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "seed":
		return runSeed()
	case "ask":
		return runAsk(os.Args[2:])
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

func runHelp() {
	fmt.Println("Quarry - conversational analytics assistant")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  quarry serve         Start the HTTP API server (default: 127.0.0.1:8000)")
	fmt.Println("  quarry seed          Populate the analytics database with sample data")
	fmt.Println("  quarry ask <text>    Ask a single question and print the answer")
	fmt.Println("  quarry --version     Show version information")
	fmt.Println("  quarry --help        Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY       Required for the gemini provider")
	fmt.Println("  DATABASE_URL         Override the PostgreSQL connection")
	fmt.Println("  DEBUG                Enable debug logging")
}
