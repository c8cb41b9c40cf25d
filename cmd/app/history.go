package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/starford/patchwork/internal"
	"github.com/starford/patchwork/internal/journal"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded patch attempts, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Only show attempts on this file"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: journal.DefaultLimit, Usage: "Maximum number of entries"},
		},
		Action: runHistory,
	}
}

func runHistory(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.Journal.Enabled {
		return fmt.Errorf("journal is disabled in the configuration")
	}

	stack, err := internal.NewStack(cfg, internal.NewLogger(cfg.App.LogLevel))
	if err != nil {
		return err
	}
	defer stack.Close()

	entries, err := stack.Service.History(ctx, journal.Filter{
		Path:  cmd.String("path"),
		Limit: int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}
	printHistory(os.Stdout, entries)
	return nil
}

func printHistory(w io.Writer, entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no patch attempts recorded")
		return
	}
	for _, e := range entries {
		status := color.New(color.FgGreen).Sprint(e.Status)
		switch e.Status {
		case journal.StatusFailed:
			status = color.New(color.FgRed).Sprint(e.Status)
		case journal.StatusPlanned:
			status = color.New(color.FgYellow).Sprint(e.Status)
		}
		fmt.Fprintf(w, "%s  %-7s  %s  occurrence=%s", e.CreatedAt.Local().Format(time.DateTime), status, e.Path, e.Occurrence)
		if e.ErrorCode != "" {
			fmt.Fprintf(w, "  %s: %s", e.ErrorCode, e.ErrorMessage)
		}
		fmt.Fprintln(w)
	}
}
