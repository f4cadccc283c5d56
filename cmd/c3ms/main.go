package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

// errUsage makes main exit 1 after usage has already been printed.
var errUsage = errors.New("usage")

func main() {
	if err := newApp().Run(os.Args); err != nil {
		if !errors.Is(err, errUsage) {
			color.Red("Error: %v", err)
		}
		os.Exit(1)
	}
}

func newApp() *cli.App {
	// -v is verbosity, so --version has no short alias.
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version",
		Usage:              "print the version",
		DisableDefaultText: true,
	}

	return &cli.App{
		Name:      "c3ms",
		Usage:     "C/C++ code complexity measurement",
		UsageText: "c3ms [flags] <files...>",
		Version:   version,
		Metadata:  make(map[string]interface{}),
		Description: `c3ms classifies the tokens of C and C++ sources into operators and
operands and reports Halstead metrics (volume, difficulty, effort, time,
bugs), cyclomatic complexity and the maintainability index per function,
per file and across all files.

Verbosity levels:
  0-1  basic metrics (effort, volume, conditions, cyclomatic complexity,
       difficulty, time, bugs, maintainability)
  2    adds per-category statistics (total and unique)
  3    adds n1, n2, N1, N2 and the operator/operand occurrence tables`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "function-metrics",
				Aliases: []string{"f"},
				Usage:   "Report metrics for each function",
			},
			&cli.BoolFlag{
				Name:    "file-metrics",
				Aliases: []string{"a"},
				Usage:   "Report metrics for each file",
			},
			&cli.BoolFlag{
				Name:    "global-metrics",
				Aliases: []string{"g"},
				Usage:   "Report metrics across all files (default when no scope is selected)",
			},
			&cli.IntFlag{
				Name:        "verbosity",
				Aliases:     []string{"v"},
				Value:       -1,
				Usage:       "Verbosity level 0-3 (default from config)",
				DefaultText: "1",
			},
			&cli.BoolFlag{
				Name:    "print-functions",
				Aliases: []string{"p"},
				Usage:   "Print the source of each measured function",
			},
			&cli.BoolFlag{
				Name:    "recursive",
				Aliases: []string{"r"},
				Usage:   "Expand directories into the C/C++ sources they contain",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"C3MS_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: text, markdown, json, yaml, toon",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Re-run the analysis whenever an input changes",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable caching",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Number of files analyzed in parallel (default two per CPU)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Hide the progress bar",
			},
			&cli.StringFlag{
				Name:  "pprof",
				Usage: "Enable pprof profiling and write to specified prefix (creates <prefix>.cpu.pprof and <prefix>.mem.pprof)",
			},
		},
		Before: func(c *cli.Context) error {
			if pprofPrefix := c.String("pprof"); pprofPrefix != "" {
				cpuFile, err := os.Create(pprofPrefix + ".cpu.pprof")
				if err != nil {
					return fmt.Errorf("failed to create CPU profile: %w", err)
				}
				if err := pprof.StartCPUProfile(cpuFile); err != nil {
					cpuFile.Close()
					return fmt.Errorf("failed to start CPU profile: %w", err)
				}
				c.App.Metadata["pprofCPU"] = cpuFile
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if pprofPrefix := c.String("pprof"); pprofPrefix != "" {
				pprof.StopCPUProfile()
				if cpuFile, ok := c.App.Metadata["pprofCPU"].(*os.File); ok {
					cpuFile.Close()
					color.Green("CPU profile written to %s.cpu.pprof", pprofPrefix)
				}

				memFile, err := os.Create(pprofPrefix + ".mem.pprof")
				if err != nil {
					return fmt.Errorf("failed to create memory profile: %w", err)
				}
				defer memFile.Close()

				runtime.GC()
				if err := pprof.WriteHeapProfile(memFile); err != nil {
					return fmt.Errorf("failed to write memory profile: %w", err)
				}
				color.Green("Memory profile written to %s.mem.pprof", pprofPrefix)
			}
			return nil
		},
		Action: runAnalyze,
		Commands: []*cli.Command{
			mcpCmd(),
			configCmd(),
			cacheCmd(),
		},
	}
}

// newLogger builds the stderr logger. level falls back to warn when empty
// or unknown.
func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
