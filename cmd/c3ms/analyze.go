package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/panbanda/c3ms/internal/cache"
	"github.com/panbanda/c3ms/internal/output"
	"github.com/panbanda/c3ms/internal/progress"
	"github.com/panbanda/c3ms/internal/scanner"
	"github.com/panbanda/c3ms/pkg/analyzer"
	"github.com/panbanda/c3ms/pkg/analyzer/scope"
	"github.com/panbanda/c3ms/pkg/config"
	"github.com/panbanda/c3ms/pkg/parser"
	"github.com/panbanda/c3ms/pkg/source"
	"github.com/panbanda/c3ms/pkg/watch"
	"github.com/urfave/cli/v2"
)

var formats = []string{"text", "markdown", "md", "json", "yaml", "yml", "toon"}

// runOptions is the effective configuration of one run after flags have
// been layered over the config file.
type runOptions struct {
	functions      bool
	files          bool
	global         bool
	verbosity      int
	printFunctions bool
	recursive      bool
	format         output.Format
	colored        bool
	workers        int
	noCache        bool
	noProgress     bool
}

func resolveOptions(c *cli.Context, cfg *config.Config) (runOptions, error) {
	opts := runOptions{
		functions:      cfg.Analysis.FunctionMetrics,
		files:          cfg.Analysis.FileMetrics,
		global:         cfg.Analysis.GlobalMetrics,
		verbosity:      cfg.Analysis.Verbosity,
		printFunctions: cfg.Analysis.PrintFunctions || c.Bool("print-functions"),
		recursive:      cfg.Analysis.Recursive || c.Bool("recursive"),
		workers:        cfg.Analysis.Workers,
		noCache:        !cfg.Cache.Enabled || c.Bool("no-cache"),
		noProgress:     c.Bool("no-progress"),
	}

	// Scope flags on the command line replace the configured selection.
	if c.IsSet("function-metrics") || c.IsSet("file-metrics") || c.IsSet("global-metrics") {
		opts.functions = c.Bool("function-metrics")
		opts.files = c.Bool("file-metrics")
		opts.global = c.Bool("global-metrics")
	}
	if !opts.functions && !opts.files && !opts.global {
		opts.global = true
	}

	if c.IsSet("verbosity") {
		opts.verbosity = c.Int("verbosity")
	}
	if opts.verbosity < 0 || opts.verbosity > 3 {
		return opts, fmt.Errorf("verbosity must be between 0 and 3, got %d", opts.verbosity)
	}

	if c.IsSet("workers") {
		opts.workers = c.Int("workers")
	}
	if opts.workers < 0 {
		return opts, fmt.Errorf("workers must not be negative, got %d", opts.workers)
	}

	format := firstNonEmpty(c.String("format"), cfg.Output.Format)
	if !slices.Contains(formats, format) {
		return opts, fmt.Errorf("unknown format %q", format)
	}
	opts.format = output.ParseFormat(format)
	opts.colored = cfg.Output.Color && !color.NoColor && c.String("output") == ""
	return opts, nil
}

func runAnalyze(c *cli.Context) error {
	result, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg := result.Config

	opts, err := resolveOptions(c, cfg)
	if err != nil {
		return err
	}
	logger := newLogger(firstNonEmpty(c.String("log-level"), cfg.Log.Level), cfg.Log.Format)
	if result.Source != "" {
		logger.Debug("loaded config", "path", result.Source)
	}

	if c.NArg() == 0 {
		_ = cli.ShowAppHelp(c)
		return errUsage
	}
	inputs := c.Args().Slice()
	scan := scanner.NewScanner(cfg)

	units := newUnitSources()
	analyzerOpts := []scope.Option{
		scope.WithFunctionMetrics(opts.functions),
		scope.WithCatalog(cfg.API.Catalog()),
		scope.WithLogger(logger),
		scope.WithWorkers(opts.workers),
		scope.WithMaxFileSize(cfg.Analysis.MaxFileSize),
	}
	// Cached files replay tallies without re-extracting, so printing
	// function bodies needs a fresh parse.
	if opts.printFunctions {
		analyzerOpts = append(analyzerOpts, scope.WithUnitObserver(units.observe))
	} else if !opts.noCache {
		store, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, true)
		if err != nil {
			logger.Warn("cache disabled", "dir", cfg.Cache.Dir, "error", err)
		} else {
			analyzerOpts = append(analyzerOpts, scope.WithCache(store))
		}
	}

	a := scope.New(analyzerOpts...)
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	measure := func(ctx context.Context) error {
		files, err := scan.Expand(inputs, opts.recursive)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			notices().Message(output.SeverityWarning, "no source files found")
			return errNothingAnalyzed
		}
		return analyzeAndReport(ctx, a, files, opts, units, c.String("output"))
	}

	err = measure(ctx)
	switch {
	case errors.Is(err, errNothingAnalyzed) && !c.Bool("watch"):
		_ = cli.ShowAppHelp(c)
		return errUsage
	case err != nil && !errors.Is(err, errNothingAnalyzed):
		return err
	case !c.Bool("watch"):
		return nil
	}
	return watchInputs(ctx, cfg, logger, inputs, opts.recursive, measure)
}

// errNothingAnalyzed reports a run in which no input could be measured.
var errNothingAnalyzed = errors.New("no input could be analyzed")

func analyzeAndReport(ctx context.Context, a *scope.Analyzer, files []string, opts runOptions, units *unitSources, outPath string) error {
	var bar *progress.Bar
	if !opts.noProgress && len(files) > 1 {
		bar = progress.New("Measuring", len(files), os.Stderr)
		ctx = analyzer.WithTracker(ctx, bar.Tracker())
	}

	analysis, err := a.Analyze(ctx, files)
	if bar != nil && analysis != nil {
		bar.Finish(len(analysis.Skipped))
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	if !analysis.Succeeded() {
		n := notices()
		for _, s := range analysis.Skipped {
			n.Message(output.SeverityError, "%s: %s", s.Path, s.Reason)
		}
		return errNothingAnalyzed
	}

	formatter, err := output.NewFormatter(opts.format, outPath, opts.colored)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(buildReport(analysis, opts, units))
}

// watchInputs re-runs measure after every debounced batch of changes until
// ctx is canceled. Failed re-runs are reported and watching continues.
func watchInputs(ctx context.Context, cfg *config.Config, logger *slog.Logger, inputs []string, recursive bool, measure func(context.Context) error) error {
	w, err := watch.NewWatcher(cfg, 0, logger)
	if err != nil {
		return err
	}
	defer w.Stop()

	if err := w.Add(inputs, recursive); err != nil {
		return err
	}

	n := notices()
	n.Message(output.SeverityInfo, "Watching %d director(ies) for changes. Press Ctrl+C to stop.", len(w.WatchedDirs()))
	err = w.Run(ctx, func(ctx context.Context, changed []string) {
		n.Message(output.SeverityInfo, "\n%d file(s) changed: %s", len(changed), strings.Join(changed, ", "))
		err := measure(ctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errNothingAnalyzed) {
			n.Message(output.SeverityError, "%v", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// notices writes status messages to stderr so they never mix with a report
// on stdout.
func notices() *output.Formatter {
	return output.NewWriterFormatter(output.FormatText, os.Stderr, !color.NoColor)
}

// unitSources keeps the source of every extracted function by address so
// --print-functions can show it after the analyzer has released it.
type unitSources struct {
	mu  sync.Mutex
	src map[string][]byte
}

func newUnitSources() *unitSources {
	return &unitSources{src: make(map[string][]byte)}
}

func (u *unitSources) observe(path string, unit parser.Unit) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.src[source.UnitAddress(path, unit.Name, unit.StartLine, unit.StartColumn)] = unit.Source
}

func (u *unitSources) lookup(address string) ([]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	src, ok := u.src[address]
	return src, ok
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
