package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/patchwork/internal"
	"github.com/starford/patchwork/internal/mcpserver"
	pkgconfig "github.com/starford/patchwork/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	stack, err := internal.NewStack(cfg, internal.NewLogger(cfg.App.LogLevel))
	if err != nil {
		return err
	}
	defer stack.Close()

	return mcpserver.New(stack.Service, cfg.Patch.Occurrence, version).ServeStdio()
}

func main() {
	cmd := &cli.Command{
		Name:    "patchwork",
		Usage:   "Apply exact-match text patches to files, atomically",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional for apply and history)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("PATCHWORK_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			applyCommand(),
			historyCommand(),
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, the event stream and the spool watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve patch tools over MCP on stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "patchwork: %v\n", err)
		os.Exit(exitCode(err))
	}
}
