package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/panbanda/c3ms/internal/cache"
	"github.com/urfave/cli/v2"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the per-file tally cache",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show the number, size and age of cache entries",
				Action: runCacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cache entry",
				Action: runCacheClear,
			},
		},
	}
}

func openCache(c *cli.Context) (*cache.Cache, error) {
	result, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	cfg := result.Config.Cache
	return cache.New(cfg.Dir, cfg.TTL, true)
}

func runCacheStats(c *cli.Context) error {
	store, err := openCache(c)
	if err != nil {
		return err
	}
	stats, err := store.GetStats()
	if err != nil {
		return fmt.Errorf("read cache: %w", err)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Entries: %d\n", stats.Entries)
	fmt.Fprintf(w, "Size:    %d bytes\n", stats.TotalSize)
	if stats.Entries > 0 {
		fmt.Fprintf(w, "Oldest:  %s\n", stats.OldestAge.Round(time.Second))
		fmt.Fprintf(w, "Newest:  %s\n", stats.NewestAge.Round(time.Second))
	}
	return nil
}

func runCacheClear(c *cli.Context) error {
	store, err := openCache(c)
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	color.Green("Cache cleared")
	return nil
}
