package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/edupath/coursesync/internal/cli"
	"github.com/edupath/coursesync/internal/sites"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	dataDir := flag.String("data", defaultDataDir(), "Data directory")
	siteID := flag.String("site", "", "Site id for single-site commands")
	verbose := flag.Bool("v", false, "Verbose logging")

	flag.Parse()

	if *showVersion {
		fmt.Printf("coursesync %s (built %s, commit %s)\n", Version, BuildDate, GitCommit)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := os.MkdirAll(*dataDir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create data directory: %v\n", err)
		os.Exit(1)
	}

	passphrase, err := cli.ReadPassphrase()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store, err := sites.Open(filepath.Join(*dataDir, "sites.db"), passphrase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open site store: %v\n", err)
		os.Exit(1)
	}
	registry := sites.NewRegistry(store, *dataDir, logger)
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Error("failed to close site handles", "error", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("failed to close site store", "error", err)
		}
	}()

	ctx := context.Background()

	if err := run(ctx, registry, args, *siteID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, registry *sites.Registry, args []string, siteID string) error {
	switch args[0] {
	case "sites":
		if len(args) < 2 {
			cli.PrintUsage()
			return fmt.Errorf("sites needs a subcommand")
		}
		switch args[1] {
		case "add":
			return cli.RunSitesAdd(registry)
		case "list":
			return cli.RunSitesList(registry)
		case "remove":
			id := siteID
			if len(args) > 2 {
				id = args[2]
			}
			return cli.RunSitesRemove(registry, id)
		default:
			return fmt.Errorf("unknown sites subcommand: %s", args[1])
		}
	case "status":
		return cli.RunStatus(ctx, registry)
	case "pending":
		if siteID == "" {
			return fmt.Errorf("pending needs -site")
		}
		return cli.RunPending(ctx, registry, siteID)
	case "sync":
		if siteID == "" {
			return fmt.Errorf("sync needs -site")
		}
		force := len(args) > 1 && args[1] == "--force"
		return cli.RunSync(ctx, registry, siteID, force)
	default:
		cli.PrintUsage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".coursesync"
	}
	return filepath.Join(home, ".coursesync")
}
