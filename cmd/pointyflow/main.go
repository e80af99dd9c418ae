// Command pointyflow is the thinnest possible caller of the engine API: it
// parses flags, builds an App, and runs one Pointy-Lang program to
// completion. It deliberately does not implement a project-scaffolding CLI
// (no list/startworkflow/registry-browsing subcommands) — those are out of
// scope.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/pointyflow/internal/app"
	"github.com/vk/pointyflow/internal/cli"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	ctx := context.Background()
	pointyflowApp, err := app.NewApp(ctx, outW, appConfig)
	if err != nil {
		return fmt.Errorf("application startup failed: %w", err)
	}

	_, err = pointyflowApp.Run(ctx, appConfig)
	return err
}
