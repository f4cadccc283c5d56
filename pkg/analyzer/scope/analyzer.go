package scope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panbanda/c3ms/internal/cache"
	"github.com/panbanda/c3ms/internal/fileproc"
	"github.com/panbanda/c3ms/pkg/analyzer"
	"github.com/panbanda/c3ms/pkg/classify"
	"github.com/panbanda/c3ms/pkg/codestats"
	"github.com/panbanda/c3ms/pkg/metrics"
	"github.com/panbanda/c3ms/pkg/parser"
	"github.com/panbanda/c3ms/pkg/source"
)

// Ensure Analyzer implements analyzer.FileAnalyzer.
var _ analyzer.FileAnalyzer[*Analysis] = (*Analyzer)(nil)

// Analyzer classifies C/C++ files and folds their tallies through function,
// file and global scopes.
type Analyzer struct {
	functionMetrics bool
	classifier      *classify.Classifier
	source          source.ContentSource
	units           *source.MemorySource
	cache           *cache.Cache
	logger          *slog.Logger
	workers         int
	maxFileSize     int64
	observer        func(path string, u parser.Unit)
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithFunctionMetrics measures every function as its own scope before
// folding it into the file.
func WithFunctionMetrics(enabled bool) Option {
	return func(a *Analyzer) {
		a.functionMetrics = enabled
	}
}

// WithCatalog sets the library catalog used to tell API names from user code.
func WithCatalog(c *classify.Catalog) Option {
	return func(a *Analyzer) {
		a.classifier = classify.New(c)
	}
}

// WithSource sets where file content is read from. WithMaxFileSize has no
// effect on a custom source.
func WithSource(src source.ContentSource) Option {
	return func(a *Analyzer) {
		a.source = src
	}
}

// WithCache reuses tallies of files whose content has not changed.
func WithCache(c *cache.Cache) Option {
	return func(a *Analyzer) {
		a.cache = c
	}
}

// WithLogger sets the logger for skipped files and cache diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithWorkers sets the number of files processed concurrently (0 = 2x NumCPU).
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.workers = n
	}
}

// WithMaxFileSize sets the maximum file size to analyze (0 = no limit).
func WithMaxFileSize(maxSize int64) Option {
	return func(a *Analyzer) {
		a.maxFileSize = maxSize
	}
}

// WithUnitObserver registers a callback invoked for every extracted function
// before it is measured. It may be called from several goroutines.
func WithUnitObserver(fn func(path string, u parser.Unit)) Option {
	return func(a *Analyzer) {
		a.observer = fn
	}
}

// New creates a new scope analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		units:  source.NewMemory(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.classifier == nil {
		a.classifier = classify.New(nil)
	}
	if a.source == nil {
		a.source = &source.FilesystemSource{MaxSize: a.maxFileSize}
	}
	return a
}

// PendingUnits returns the number of extracted functions still held in the
// transient unit store.
func (a *Analyzer) PendingUnits() int {
	return a.units.Len()
}

// Close releases analyzer resources.
func (a *Analyzer) Close() {
	for _, addr := range a.units.Addresses() {
		a.units.Remove(addr)
	}
}

// run is the state shared by the workers of one Analyze call.
type run struct {
	mu          sync.Mutex
	global      *Scope
	lines       int
	fingerprint uint64
}

// foldGlobal is the only place the global scope is mutated.
func (r *run) foldGlobal(file *Scope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := file.FoldInto(r.global); err != nil {
		return err
	}
	r.lines += file.Lines()
	return nil
}

// Analyze measures files concurrently. Results are returned in input order.
// Files that cannot be read or parsed are logged and listed in
// Analysis.Skipped; the global totals cover the remaining files only.
// If ctx is canceled the partial analysis is returned with the context error.
func (a *Analyzer) Analyze(ctx context.Context, files []string) (*Analysis, error) {
	r := &run{
		global:      NewScope(Global, "global"),
		fingerprint: a.classifier.Catalog().Fingerprint(),
	}
	if _, err := r.global.Begin(); err != nil {
		return nil, err
	}

	results, errs := fileproc.MapFilesIndexedN(ctx, files, a.workers, func(psr *parser.Parser, path string) (*FileResult, error) {
		return a.analyzeFile(ctx, psr, path, r)
	})

	analysis := &Analysis{Files: make([]FileResult, 0, len(files))}
	for _, fr := range results {
		if fr != nil {
			analysis.Files = append(analysis.Files, *fr)
		}
	}
	if errs.HasErrors() {
		for _, e := range errs.Errors {
			a.logger.Warn("skipping file", "path", e.Path, "error", e.Err)
			analysis.Skipped = append(analysis.Skipped, Skipped{Path: e.Path, Reason: e.Err.Error()})
		}
	}

	analysis.Global = GlobalResult{Files: len(analysis.Files), Lines: r.lines}
	m, err := r.global.Compute(r.lines)
	if err != nil {
		if !errors.Is(err, metrics.ErrDegenerateSample) {
			return nil, err
		}
		analysis.Global.Error = err.Error()
	}
	analysis.Global.Metrics = m
	analysis.Global.Stats = r.global.Stats()
	analysis.summarize(a.functionMetrics)

	if err := ctx.Err(); err != nil {
		return analysis, err
	}
	return analysis, nil
}

func languageOf(path string) parser.Language {
	if lang := parser.DetectLanguage(path); lang != parser.LangUnknown {
		return lang
	}
	return parser.LangCPP
}

func (a *Analyzer) analyzeFile(ctx context.Context, psr *parser.Parser, path string, r *run) (*FileResult, error) {
	content, err := a.source.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInputUnavailable, err)
	}

	lang := languageOf(path)
	fr := &FileResult{
		Path:     path,
		Language: string(lang),
		Lines:    source.CountLines(content),
	}

	file := NewScope(File, path)
	rec, err := file.Begin()
	if err != nil {
		return nil, err
	}

	var key, hash string
	if a.cache.Enabled() {
		key = cache.Key(path, r.fingerprint, a.functionMetrics)
		hash = cache.HashBytes(content)
	}

	if cached, ok := a.cache.Load(key, hash); ok && a.replay(fr, file, cached) == nil {
		fr.Cached = true
	} else {
		if ok {
			// A record that does not replay cleanly is discarded.
			if err := a.cache.Invalidate(key); err != nil {
				a.logger.Debug("cache invalidate failed", "path", path, "error", err)
			}
			file.Reset()
			if rec, err = file.Begin(); err != nil {
				return nil, err
			}
			fr.Functions = nil
		}
		record, err := a.classifyFile(ctx, psr, fr, file, rec, content, lang)
		if err != nil {
			return nil, err
		}
		if record != nil {
			if err := a.cache.Store(key, hash, record); err != nil {
				a.logger.Debug("cache store failed", "path", path, "error", err)
			}
		}
	}

	m, err := file.Compute(fr.Lines)
	if err != nil {
		if !errors.Is(err, metrics.ErrDegenerateSample) {
			return nil, err
		}
		fr.Error = err.Error()
	}
	fr.Metrics = m
	fr.Stats = file.Stats()

	if err := r.foldGlobal(file); err != nil {
		return nil, err
	}
	file.Reset()

	a.logger.Debug("analyzed file", "path", path, "lines", fr.Lines, "functions", len(fr.Functions), "cached", fr.Cached)
	return fr, nil
}

// classifyFile fills the file scope from source. It returns the record to
// cache, or nil when the result should not be cached.
func (a *Analyzer) classifyFile(ctx context.Context, psr *parser.Parser, fr *FileResult, file *Scope, rec codestats.Recorder, content []byte, lang parser.Language) (*cache.FileRecord, error) {
	result, err := psr.ParseContext(ctx, content, lang, fr.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInputUnavailable, err)
	}
	defer result.Close()

	var units []parser.Unit
	if a.functionMetrics {
		units = parser.ExtractUnits(result)
	}

	if len(units) == 0 {
		if err := a.classifier.Classify(result, rec); err != nil {
			return nil, fmt.Errorf("classify %s: %w", fr.Path, err)
		}
		if a.functionMetrics {
			fr.LinesOutsideFunctions = fr.Lines
		}
		return &cache.FileRecord{Lines: fr.Lines, Stats: file.Stats()}, nil
	}

	record := &cache.FileRecord{Lines: fr.Lines}
	cacheable := true
	covered := roaring.New()
	for _, u := range units {
		res, stats, err := a.measureUnit(ctx, psr, fr.Path, lang, u, file)
		if err != nil {
			return nil, err
		}
		fr.Functions = append(fr.Functions, res)
		covered.AddRange(uint64(u.StartLine), uint64(u.EndLine)+1)
		if stats == nil {
			cacheable = false
			continue
		}
		record.Functions = append(record.Functions, cache.FunctionRecord{
			Name:        u.Name,
			StartLine:   u.StartLine,
			StartColumn: u.StartColumn,
			EndLine:     u.EndLine,
			Lines:       res.Lines,
			Stats:       stats,
		})
	}
	fr.LinesOutsideFunctions = outsideLines(fr.Lines, covered)

	if !cacheable {
		return nil, nil
	}
	record.Stats = file.Stats()
	return record, nil
}

// measureUnit classifies one extracted function in its own scope and folds
// it into file. The unit is staged in the transient store under its address
// and removed once measured. A classification failure aborts only this
// function: it is reported with an error and nil statistics.
func (a *Analyzer) measureUnit(ctx context.Context, psr *parser.Parser, path string, lang parser.Language, u parser.Unit, file *Scope) (FunctionResult, *codestats.Statistics, error) {
	addr := source.UnitAddress(path, u.Name, u.StartLine, u.StartColumn)
	a.units.Put(addr, u.Source)
	defer a.units.Remove(addr)

	if a.observer != nil {
		a.observer(path, u)
	}

	res := FunctionResult{
		Name:      u.Name,
		Address:   addr,
		StartLine: u.StartLine,
		EndLine:   u.EndLine,
	}

	content, err := a.units.Read(addr)
	if err != nil {
		return res, nil, err
	}
	res.Lines = source.CountLines(content)

	fn := NewScope(Function, addr)
	rec, err := fn.Begin()
	if err != nil {
		return res, nil, err
	}

	parsed, err := psr.ParseContext(ctx, content, lang, addr)
	if err != nil {
		return res, nil, fmt.Errorf("%w: %w", ErrInputUnavailable, err)
	}
	err = a.classifier.Classify(parsed, rec)
	parsed.Close()
	if err != nil {
		a.logger.Warn("function classification aborted", "unit", addr, "error", err)
		res.Error = err.Error()
		return res, nil, nil
	}

	return a.finishUnit(res, fn, file)
}

// finishUnit computes, folds and resets a classified function scope.
func (a *Analyzer) finishUnit(res FunctionResult, fn, file *Scope) (FunctionResult, *codestats.Statistics, error) {
	m, err := fn.Compute(res.Lines)
	if err != nil {
		if !errors.Is(err, metrics.ErrDegenerateSample) {
			return res, nil, err
		}
		res.Error = err.Error()
	}
	res.Metrics = m
	res.Stats = fn.Stats()

	if err := fn.FoldInto(file); err != nil {
		return res, nil, err
	}
	fn.Reset()
	return res, res.Stats, nil
}

// replay rebuilds function and file scopes from cached tallies.
func (a *Analyzer) replay(fr *FileResult, file *Scope, rec *cache.FileRecord) error {
	if rec.Lines != fr.Lines {
		return errors.New("line count mismatch")
	}

	if len(rec.Functions) == 0 {
		if a.functionMetrics {
			fr.LinesOutsideFunctions = fr.Lines
		}
		return file.Absorb(rec.Stats)
	}

	covered := roaring.New()
	for _, f := range rec.Functions {
		if f.Stats == nil {
			return errors.New("missing function tallies")
		}
		res := FunctionResult{
			Name:      f.Name,
			Address:   source.UnitAddress(fr.Path, f.Name, f.StartLine, f.StartColumn),
			StartLine: f.StartLine,
			EndLine:   f.EndLine,
			Lines:     f.Lines,
		}
		fn := NewScope(Function, res.Address)
		if _, err := fn.Begin(); err != nil {
			return err
		}
		if err := fn.Absorb(f.Stats); err != nil {
			return err
		}
		res, _, err := a.finishUnit(res, fn, file)
		if err != nil {
			return err
		}
		fr.Functions = append(fr.Functions, res)
		covered.AddRange(uint64(f.StartLine), uint64(f.EndLine)+1)
	}
	fr.LinesOutsideFunctions = outsideLines(fr.Lines, covered)
	return nil
}

func outsideLines(lines int, covered *roaring.Bitmap) int {
	n := lines - int(covered.GetCardinality())
	if n < 0 {
		return 0
	}
	return n
}
