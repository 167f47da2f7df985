package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/quarry0/quarry/internal/app"
	"github.com/quarry0/quarry/internal/config"
)

// runAsk executes a single turn against a fresh conversation and prints the
// consolidated answer.
func runAsk(args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("usage: quarry ask <question>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	conv, release, err := a.Store.Acquire("")
	if err != nil {
		return fmt.Errorf("starting conversation: %w", err)
	}
	defer release()

	result, err := a.Engine.RunTurn(ctx, conv, question, nil)
	if err != nil {
		return fmt.Errorf("running turn: %w", err)
	}

	fmt.Println(result.Response)
	if len(result.Charts) > 0 {
		fmt.Printf("\n(%d chart(s) generated)\n", len(result.Charts))
	}
	if len(result.Presentations) > 0 {
		fmt.Printf("(%d presentation(s) generated)\n", len(result.Presentations))
	}
	if len(result.Suggestions) > 0 {
		fmt.Println("\nSuggested follow-ups:")
		for _, s := range result.Suggestions {
			fmt.Printf("  - %s\n", s)
		}
	}
	return nil
}
