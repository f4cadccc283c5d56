package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/panbanda/c3ms/internal/output"
	"github.com/panbanda/c3ms/internal/testutil"
	"github.com/panbanda/c3ms/pkg/analyzer/scope"
	"github.com/panbanda/c3ms/pkg/config"
	"github.com/urfave/cli/v2"
)

func quietApp() *cli.App {
	app := newApp()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	return app
}

func TestResolveOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		check   func(t *testing.T, o runOptions)
		wantErr bool
	}{
		{
			name: "defaults report global only",
			check: func(t *testing.T, o runOptions) {
				if !o.global || o.files || o.functions {
					t.Errorf("scopes = %v/%v/%v, want global only", o.functions, o.files, o.global)
				}
				if o.verbosity != 1 {
					t.Errorf("verbosity = %d, want 1", o.verbosity)
				}
				if o.format != output.FormatText {
					t.Errorf("format = %q, want text", o.format)
				}
			},
		},
		{
			name: "scope flags replace the configured selection",
			args: []string{"-f", "-a"},
			check: func(t *testing.T, o runOptions) {
				if !o.functions || !o.files || o.global {
					t.Errorf("scopes = %v/%v/%v, want function and file", o.functions, o.files, o.global)
				}
			},
		},
		{
			name: "verbosity flag",
			args: []string{"-v", "3"},
			check: func(t *testing.T, o runOptions) {
				if o.verbosity != 3 {
					t.Errorf("verbosity = %d, want 3", o.verbosity)
				}
			},
		},
		{
			name: "format alias",
			args: []string{"--format", "yml"},
			check: func(t *testing.T, o runOptions) {
				if o.format != output.FormatYAML {
					t.Errorf("format = %q, want yaml", o.format)
				}
			},
		},
		{
			name: "output file disables color",
			args: []string{"-o", "report.txt"},
			check: func(t *testing.T, o runOptions) {
				if o.colored {
					t.Error("colored output to a file")
				}
			},
		},
		{name: "verbosity out of range", args: []string{"-v", "4"}, wantErr: true},
		{name: "unknown format", args: []string{"--format", "xml"}, wantErr: true},
		{name: "negative workers", args: []string{"-j", "-1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				opts   runOptions
				optErr error
			)
			app := quietApp()
			app.Action = func(c *cli.Context) error {
				opts, optErr = resolveOptions(c, config.DefaultConfig())
				return nil
			}
			if err := app.Run(append([]string{"c3ms"}, tt.args...)); err != nil {
				t.Fatalf("app.Run: %v", err)
			}
			if tt.wantErr {
				if optErr == nil {
					t.Error("expected an error")
				}
				return
			}
			if optErr != nil {
				t.Fatalf("resolveOptions: %v", optErr)
			}
			tt.check(t, opts)
		})
	}
}

func TestRunAnalyzeNoInputs(t *testing.T) {
	err := quietApp().Run([]string{"c3ms", "--no-cache"})
	if !errors.Is(err, errUsage) {
		t.Errorf("err = %v, want errUsage", err)
	}
}

func TestRunAnalyzeNothingAnalyzed(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.c")
	err := quietApp().Run([]string{"c3ms", "--no-cache", "--no-progress", missing})
	if !errors.Is(err, errUsage) {
		t.Errorf("err = %v, want errUsage", err)
	}
}

func TestRunAnalyzeJSON(t *testing.T) {
	src := testutil.WriteTemp(t, "clamp.c", testutil.ClampC)
	missing := filepath.Join(filepath.Dir(src), "missing.c")
	out := filepath.Join(t.TempDir(), "report.json")

	err := quietApp().Run([]string{
		"c3ms", "--no-cache", "--no-progress", "--log-level", "error",
		"--format", "json", "-o", out, "-a", "-f", src, missing,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var view reportView
	if err := json.Unmarshal(data, &view); err != nil {
		t.Fatalf("decode: %v\n%s", err, data)
	}
	if len(view.Files) != 1 || view.Files[0].Metrics == nil {
		t.Fatalf("files = %+v", view.Files)
	}
	if len(view.Functions) != 2 {
		t.Errorf("functions = %d, want 2", len(view.Functions))
	}
	if view.Global != nil {
		t.Error("global reported without -g")
	}
	if len(view.Skipped) != 1 || view.Skipped[0].Path != missing {
		t.Errorf("skipped = %+v", view.Skipped)
	}
}

func TestRunAnalyzeDirectoryNeedsRecursive(t *testing.T) {
	src := testutil.WriteTemp(t, "clamp.c", testutil.ClampC)
	dir := filepath.Dir(src)
	out := filepath.Join(t.TempDir(), "report.json")

	err := quietApp().Run([]string{"c3ms", "--no-cache", "--no-progress", "--log-level", "error", dir})
	if !errors.Is(err, errUsage) {
		t.Errorf("directory without -r: err = %v, want errUsage", err)
	}

	err = quietApp().Run([]string{"c3ms", "--no-cache", "--no-progress", "--format", "json", "-o", out, "-r", dir})
	if err != nil {
		t.Fatalf("directory with -r: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"global"`) {
		t.Errorf("global scope missing: %s", data)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "c3ms.toml")

	if err := quietApp().Run([]string{"c3ms", "config", "init", "--path", path}); err != nil {
		t.Fatalf("config init: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("generated config invalid: %v", err)
	}
	if !cfg.Analysis.GlobalMetrics {
		t.Error("default global_metrics lost")
	}

	if err := quietApp().Run([]string{"c3ms", "config", "init", "--path", path}); err == nil {
		t.Error("expected an error when the file exists")
	}
	if err := quietApp().Run([]string{"c3ms", "config", "init", "--path", path, "--force"}); err != nil {
		t.Errorf("--force: %v", err)
	}
}

func TestConfigShow(t *testing.T) {
	var buf strings.Builder
	app := quietApp()
	app.Writer = &buf
	if err := app.Run([]string{"c3ms", "config", "show"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "[analysis]") {
		t.Errorf("config show output lacks [analysis]:\n%s", buf.String())
	}
}

func TestMCPManifestCommand(t *testing.T) {
	var buf strings.Builder
	app := quietApp()
	app.Writer = &buf
	if err := app.Run([]string{"c3ms", "mcp", "manifest"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "io.github.panbanda/c3ms") {
		t.Errorf("manifest = %s", buf.String())
	}
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "", "bogus"} {
		if newLogger(level, "text") == nil {
			t.Errorf("newLogger(%q) returned nil", level)
		}
	}
	if newLogger("info", "json") == nil {
		t.Error("json logger is nil")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "b", "c"); got != "b" {
		t.Errorf("firstNonEmpty = %q", got)
	}
	if got := firstNonEmpty(); got != "" {
		t.Errorf("firstNonEmpty() = %q", got)
	}
}

func TestUnitSourcesSameLineOverloads(t *testing.T) {
	src := testutil.WriteTemp(t, "overloads.cpp", "int f(int a) { return a; } int f(double d) { return 1; }\n")
	units := newUnitSources()
	a := scope.New(scope.WithFunctionMetrics(true), scope.WithUnitObserver(units.observe))
	defer a.Close()

	analysis, err := a.Analyze(context.Background(), []string{src})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	fns := analysis.Files[0].Functions
	if len(fns) != 2 {
		t.Fatalf("got %d functions, want 2", len(fns))
	}
	if fns[0].Address == fns[1].Address {
		t.Fatalf("overloads share address %q", fns[0].Address)
	}
	for i, want := range []string{"int f(int a) { return a; }", "int f(double d) { return 1; }"} {
		got, ok := units.lookup(fns[i].Address)
		if !ok || string(got) != want {
			t.Errorf("lookup(%q) = %q, %v; want %q", fns[i].Address, got, ok, want)
		}
	}
}

func TestCacheCommands(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	cfgPath := filepath.Join(dir, "c3ms.toml")
	testutil.WriteFile(t, cfgPath, "[cache]\nenabled = true\ndir = \""+filepath.ToSlash(cacheDir)+"\"\nttl = 24\n")
	src := testutil.WriteTemp(t, "clamp.c", testutil.ClampC)

	stats := func() string {
		var buf strings.Builder
		app := quietApp()
		app.Writer = &buf
		if err := app.Run([]string{"c3ms", "-c", cfgPath, "cache", "stats"}); err != nil {
			t.Fatalf("cache stats: %v", err)
		}
		return buf.String()
	}

	if got := stats(); !strings.Contains(got, "Entries: 0") {
		t.Errorf("fresh cache stats = %q", got)
	}

	out := filepath.Join(dir, "report.json")
	if err := quietApp().Run([]string{"c3ms", "-c", cfgPath, "--no-progress", "--format", "json", "-o", out, src}); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got := stats(); !strings.Contains(got, "Entries: 1") {
		t.Errorf("stats after analysis = %q", got)
	}

	if err := quietApp().Run([]string{"c3ms", "-c", cfgPath, "cache", "clear"}); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if got := stats(); !strings.Contains(got, "Entries: 0") {
		t.Errorf("stats after clear = %q", got)
	}
}
