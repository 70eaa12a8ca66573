package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mizuchilabs/sqlite-ddl/internal/logging"
	"github.com/mizuchilabs/sqlite-ddl/pkg/parser"
	"github.com/mizuchilabs/sqlite-ddl/pkg/types"
	"github.com/urfave/cli/v3"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cmd := &cli.Command{
		EnableShellCompletion: true,
		Suggest:               true,
		Name:                  "sqlite-ddl",
		Version:               fmt.Sprintf("%s (%s, %s, %s driver)", Version, Commit, BuildDate, parser.DriverType()),
		Usage:                 "sqlite-ddl [command]",
		Description:           `Recovers structured table definitions from SQLite DDL, and diffs and migrates schemas built from them`,
		DefaultCommand:        "help",
		Flags:                 globalFlags,
		Before:                setup,
		Commands:              commands,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

var globalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		Usage:   "Log level (debug, info, warn, error)",
		Sources: cli.EnvVars("SQLITE_DDL_LOG_LEVEL"),
	},
	&cli.StringFlag{
		Name:    "log-format",
		Value:   "text",
		Usage:   "Log format (text, json)",
		Sources: cli.EnvVars("SQLITE_DDL_LOG_FORMAT"),
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Write logs to this file (rotated) instead of stderr",
		Sources: cli.EnvVars("SQLITE_DDL_LOG_FILE"),
	},
	&cli.StringFlag{
		Name:    "types",
		Usage:   "Path to a JSON or YAML file with column type overrides",
		Sources: cli.EnvVars("SQLITE_DDL_TYPES"),
	},
}

// setup configures logging and the column type resolver before any command runs
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var out io.Writer = os.Stderr
	if path := cmd.String("log-file"); path != "" {
		out = logging.FileWriter(path)
	}
	if _, err := logging.Init(out, cmd.String("log-level"), cmd.String("log-format")); err != nil {
		return ctx, err
	}

	path := cmd.String("types")
	if path == "" {
		return ctx, nil
	}

	cfg, err := types.LoadConfig(path)
	if err != nil {
		return ctx, err
	}
	resolver, err := cfg.Resolver()
	if err != nil {
		return ctx, err
	}
	parser.SetTypeResolver(resolver)
	slog.Debug("type overrides loaded", "path", path, "types", len(cfg.Types), "strict", cfg.Strict)

	return ctx, nil
}
