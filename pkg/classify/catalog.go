package classify

import (
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/panbanda/c3ms/pkg/codestats"
)

// NameKind selects which name table a lookup consults.
type NameKind int

const (
	FunctionName NameKind = iota
	TypeName
	ConstantName
	numNameKinds
)

// Entries lists library names of one provenance.
type Entries struct {
	Namespaces []string
	Prefixes   []string
	Functions  []string
	Types      []string
	Constants  []string
}

type prefixRule struct {
	prefix     string
	provenance codestats.Provenance
}

// Catalog decides whether a name belongs to a known library. Names it does
// not know are Custom. A Catalog is read-only once built and safe for
// concurrent lookups.
type Catalog struct {
	namespaces map[string]codestats.Provenance
	names      [numNameKinds]map[string]codestats.Provenance
	prefixes   []prefixRule
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	c := &Catalog{namespaces: make(map[string]codestats.Provenance)}
	for i := range c.names {
		c.names[i] = make(map[string]codestats.Provenance)
	}
	return c
}

// Add registers e under provenance p. Later additions override earlier ones.
func (c *Catalog) Add(p codestats.Provenance, e Entries) {
	for _, ns := range e.Namespaces {
		c.namespaces[strings.TrimPrefix(ns, "::")] = p
	}
	for _, name := range e.Functions {
		c.names[FunctionName][name] = p
	}
	for _, name := range e.Types {
		c.names[TypeName][name] = p
	}
	for _, name := range e.Constants {
		c.names[ConstantName][name] = p
	}
	for _, prefix := range e.Prefixes {
		if prefix == "" {
			continue
		}
		c.prefixes = slices.DeleteFunc(c.prefixes, func(r prefixRule) bool { return r.prefix == prefix })
		c.prefixes = append(c.prefixes, prefixRule{prefix: prefix, provenance: p})
	}
	// Longest prefix wins.
	slices.SortStableFunc(c.prefixes, func(a, b prefixRule) int {
		return len(b.prefix) - len(a.prefix)
	})
}

// Known reports the provenance of name, looked up as kind, when it is
// qualified by scope. Scope is the "::"-joined qualifier, empty when the
// name is unqualified.
func (c *Catalog) Known(kind NameKind, name, scope string) (codestats.Provenance, bool) {
	if p, ok := c.namespaceOf(scope); ok {
		return p, true
	}
	if p, ok := c.Named(kind, name); ok {
		return p, true
	}
	for _, r := range c.prefixes {
		if strings.HasPrefix(name, r.prefix) {
			return r.provenance, true
		}
	}
	return codestats.Custom, false
}

// Named reports the provenance of an exact name entry, ignoring namespaces
// and prefixes.
func (c *Catalog) Named(kind NameKind, name string) (codestats.Provenance, bool) {
	if kind < 0 || kind >= numNameKinds {
		return codestats.Custom, false
	}
	p, ok := c.names[kind][name]
	return p, ok
}

// Lookup is Known with unknown names reported as Custom.
func (c *Catalog) Lookup(kind NameKind, name, scope string) codestats.Provenance {
	p, _ := c.Known(kind, name, scope)
	return p
}

func (c *Catalog) namespaceOf(scope string) (codestats.Provenance, bool) {
	scope = strings.TrimPrefix(scope, "::")
	if scope == "" {
		return codestats.Custom, false
	}
	if p, ok := c.namespaces[scope]; ok {
		return p, true
	}
	head, _, _ := strings.Cut(scope, "::")
	p, ok := c.namespaces[head]
	return p, ok
}

// Fingerprint identifies the catalog contents. Two catalogs with the same
// entries have the same fingerprint.
func (c *Catalog) Fingerprint() uint64 {
	var lines []string
	for ns, p := range c.namespaces {
		lines = append(lines, "ns\x00"+ns+"\x00"+p.String())
	}
	for kind, table := range c.names {
		for name, p := range table {
			lines = append(lines, string(rune('0'+kind))+"\x00"+name+"\x00"+p.String())
		}
	}
	for _, r := range c.prefixes {
		lines = append(lines, "px\x00"+r.prefix+"\x00"+r.provenance.String())
	}
	slices.Sort(lines)

	d := xxhash.New()
	for _, l := range lines {
		_, _ = d.WriteString(l)
		_, _ = d.WriteString("\n")
	}
	return d.Sum64()
}

// DefaultAPI lists the high-level libraries known out of the box: the C
// and C++ standard libraries, SYCL and oneTBB.
func DefaultAPI() Entries {
	return Entries{
		Namespaces: []string{"std", "sycl", "cl", "tbb", "oneapi"},
		Functions: []string{
			// stdio.h
			"printf", "fprintf", "sprintf", "snprintf", "vprintf", "vfprintf",
			"scanf", "fscanf", "sscanf", "puts", "fputs", "gets", "fgets",
			"putchar", "getchar", "fputc", "fgetc", "fopen", "fclose", "fread",
			"fwrite", "fflush", "fseek", "ftell", "rewind", "perror", "remove", "rename",
			// stdlib.h
			"malloc", "calloc", "realloc", "free", "aligned_alloc", "exit", "abort",
			"atexit", "atoi", "atol", "atof", "strtol", "strtoul", "strtod", "abs",
			"labs", "qsort", "bsearch", "rand", "srand", "getenv", "system",
			// string.h
			"memcpy", "memmove", "memset", "memcmp", "memchr", "strlen", "strcpy",
			"strncpy", "strcat", "strncat", "strcmp", "strncmp", "strchr", "strrchr",
			"strstr", "strtok", "strdup",
			// math.h
			"sqrt", "sqrtf", "pow", "powf", "exp", "expf", "log", "logf", "log2",
			"log10", "sin", "sinf", "cos", "cosf", "tan", "atan", "atan2", "fabs",
			"fabsf", "floor", "ceil", "round", "fmin", "fmax", "fma",
			// misc
			"assert", "time", "clock", "sleep", "usleep",
			// oneTBB
			"parallel_for", "parallel_reduce", "parallel_scan", "parallel_invoke",
			"parallel_pipeline", "parallel_sort", "parallel_for_each",
			// SYCL
			"malloc_device", "malloc_shared", "malloc_host", "mad",
		},
		Types: []string{
			"FILE", "size_t", "ssize_t", "ptrdiff_t", "intptr_t", "uintptr_t",
			"int8_t", "int16_t", "int32_t", "int64_t", "uint8_t", "uint16_t",
			"uint32_t", "uint64_t", "time_t", "clock_t", "va_list", "wchar_t",
			"string", "vector", "map", "unordered_map", "set", "array",
			// oneTBB
			"blocked_range", "blocked_range2d", "blocked_range3d", "task_group",
			"task_arena", "concurrent_vector", "concurrent_queue", "concurrent_hash_map",
			// SYCL
			"queue", "buffer", "accessor", "handler", "nd_range", "nd_item",
			"range", "item", "event", "device", "context",
		},
		Constants: []string{
			"NULL", "EOF", "EXIT_SUCCESS", "EXIT_FAILURE", "SEEK_SET", "SEEK_CUR",
			"SEEK_END", "BUFSIZ", "RAND_MAX", "CHAR_BIT", "INT_MAX", "INT_MIN",
			"UINT_MAX", "LONG_MAX", "LONG_MIN", "SIZE_MAX", "FLT_MAX", "FLT_MIN",
			"FLT_EPSILON", "DBL_MAX", "DBL_MIN", "DBL_EPSILON",
			"stdin", "stdout", "stderr", "errno",
		},
	}
}

// DefaultAPILow lists the low-level libraries known out of the box: x86
// intrinsics, POSIX threads, the OpenMP runtime and compiler builtins.
func DefaultAPILow() Entries {
	return Entries{
		Prefixes: []string{
			"_mm", "__m64", "__m128", "__m256", "__m512", "__mmask", "_MM_", "pthread_", "PTHREAD_", "omp_",
			"__builtin_", "__sync_", "__atomic_", "__ATOMIC_",
		},
		Functions: []string{"_mm_malloc", "_mm_free"},
		Types:     []string{"pthread_t", "pthread_mutex_t", "pthread_cond_t", "pthread_attr_t"},
	}
}

// DefaultCatalog returns a catalog holding DefaultAPI and DefaultAPILow.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	c.Add(codestats.API, DefaultAPI())
	c.Add(codestats.APILow, DefaultAPILow())
	return c
}
