package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mcdev12/gatetimer/go/internal/dbconfig"
	"github.com/mcdev12/gatetimer/go/internal/settings"
)

// seed_settings copies a settings file (as written by the file backend)
// into the postgres backend.
func main() {
	path := flag.String("file", "config.json", "settings file to import")
	flag.Parse()
	ctx := context.Background()

	// 1) Load and validate the file
	source := settings.NewStore(settings.NewFilePersister(*path))
	loaded, err := source.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load settings: %v\n", err)
		os.Exit(1)
	}
	if !loaded {
		fmt.Fprintf(os.Stderr, "no settings at %s\n", *path)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := cfg.Connect(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	target, err := settings.NewPostgresPersister(ctx, pool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "prepare table: %v\n", err)
		os.Exit(1)
	}

	// 3) Write through a store so the blob is normalized
	flat, err := settings.NewStore(target).ApplyBatch(ctx, source.Flat())
	if err != nil {
		fmt.Fprintf(os.Stderr, "save settings: %v\n", err)
		os.Exit(1)
	}

	// 4) Print summary
	cfgNow := source.Config()
	fmt.Printf(
		"Settings seed complete: %d keys, %d active slots, game_mode %d, into %s\n",
		len(flat), len(cfgNow.ActiveSlots()), cfgNow.GameMode, cfg.Database,
	)
}
