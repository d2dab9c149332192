// Package identity maps raw model names from different sources onto one
// canonical key.
//
// Resolution never fails. A name with no alias entry becomes its own
// canonical key after normalization, so unseen models are still ranked;
// they just miss enrichment from sources that spell them differently.
package identity

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Source names the origin of a raw model name.
type Source string

// Known sources.
const (
	SourceArena      Source = "arena"
	SourceOpenRouter Source = "openrouter"
	SourceWayback    Source = "wayback"
	SourceAny        Source = ""
)

// Suffix patterns usable in strip rules.
const (
	PatternVariantTag    = `:[a-z0-9._-]+$`
	PatternDateSuffix    = `-(\d{8}|\d{4}-\d{2}-\d{2}|\d{2}-\d{2})$`
	PatternPreviewSuffix = `-preview$`
)

// DefaultStripPatterns are applied when no rules are configured for a source.
// OpenRouter appends routing variants such as ":free" or ":nitro" to slugs.
func DefaultStripPatterns() map[Source][]string {
	return map[Source][]string{
		SourceOpenRouter: {PatternVariantTag},
	}
}

type memoKey struct {
	source Source
	raw    string
}

// Resolver resolves raw names to canonical keys. It is safe for concurrent use.
type Resolver struct {
	strip   map[Source][]*regexp.Regexp
	aliases map[string]string

	mu   sync.Mutex
	memo map[memoKey]string
	seen map[string]map[Source]map[string]struct{}
}

// Option configures a Resolver.
type Option func(*settings)

type settings struct {
	aliases  map[string][]string
	patterns map[Source][]string
}

// WithAliases adds canonical -> aliases entries.
func WithAliases(aliases map[string][]string) Option {
	return func(s *settings) {
		for canonical, list := range aliases {
			s.aliases[canonical] = append(s.aliases[canonical], list...)
		}
	}
}

// WithStripPatterns replaces the suffix patterns for one source.
func WithStripPatterns(source Source, patterns ...string) Option {
	return func(s *settings) {
		s.patterns[source] = append([]string(nil), patterns...)
	}
}

// WithAliasFile applies a parsed alias file.
func WithAliasFile(f *AliasFile) Option {
	return func(s *settings) {
		if f == nil {
			return
		}
		WithAliases(f.Aliases)(s)
		for name, rules := range f.Sources {
			WithStripPatterns(Source(name), rules.StripPatterns...)(s)
		}
	}
}

// New builds a Resolver. It fails only on invalid patterns or on an alias
// claimed by two canonical keys.
func New(opts ...Option) (*Resolver, error) {
	s := &settings{
		aliases:  make(map[string][]string),
		patterns: DefaultStripPatterns(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := &Resolver{
		strip:   make(map[Source][]*regexp.Regexp, len(s.patterns)),
		aliases: make(map[string]string),
		memo:    make(map[memoKey]string),
		seen:    make(map[string]map[Source]map[string]struct{}),
	}
	for source, patterns := range s.patterns {
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("%w: source %q: %w", ErrInvalidPattern, source, err)
			}
			r.strip[source] = append(r.strip[source], re)
		}
	}
	// Archived captures are arena pages: arena rules first, then any
	// archive-specific ones.
	r.strip[SourceWayback] = append(append([]*regexp.Regexp(nil), r.strip[SourceArena]...), r.strip[SourceWayback]...)

	canonicals := make([]string, 0, len(s.aliases))
	for c := range s.aliases {
		canonicals = append(canonicals, c)
	}
	sort.Strings(canonicals)
	for _, c := range canonicals {
		key := r.normalize(SourceAny, c)
		if key == "" {
			return nil, fmt.Errorf("%w: empty canonical key %q", ErrAliasConflict, c)
		}
		if err := r.addAlias(key, key); err != nil {
			return nil, err
		}
		for _, alias := range s.aliases[c] {
			if err := r.addAlias(r.normalize(SourceAny, alias), key); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// Default returns a Resolver with default strip rules and no aliases.
func Default() *Resolver {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Resolver) addAlias(alias, key string) error {
	if alias == "" {
		return nil
	}
	if prev, ok := r.aliases[alias]; ok && prev != key {
		return fmt.Errorf("%w: %q maps to both %q and %q", ErrAliasConflict, alias, prev, key)
	}
	r.aliases[alias] = key
	return nil
}

// Resolve returns the canonical key for raw as spelled by source. The same
// (source, raw) pair always yields the same key.
func (r *Resolver) Resolve(source Source, raw string) string {
	mk := memoKey{source: source, raw: raw}

	r.mu.Lock()
	defer r.mu.Unlock()
	if key, ok := r.memo[mk]; ok {
		return key
	}

	key := r.normalize(source, raw)
	if canonical, ok := r.aliases[key]; ok {
		key = canonical
	}
	r.memo[mk] = key

	bySource, ok := r.seen[key]
	if !ok {
		bySource = make(map[Source]map[string]struct{})
		r.seen[key] = bySource
	}
	if bySource[source] == nil {
		bySource[source] = make(map[string]struct{})
	}
	bySource[source][strings.TrimSpace(raw)] = struct{}{}
	return key
}

// Normalize applies the normalization rules of source without alias lookup.
func (r *Resolver) Normalize(source Source, raw string) string {
	return r.normalize(source, raw)
}

func (r *Resolver) normalize(source Source, raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.LastIndex(s, "/"); i >= 0 && i < len(s)-1 {
		s = s[i+1:]
	}
	for _, re := range r.strip[source] {
		s = re.ReplaceAllString(s, "")
	}
	key := strings.Map(func(c rune) rune {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			return c
		}
		return -1
	}, s)
	if key == "" {
		// Names made only of punctuation keep their lowercased form.
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return key
}

// Collision is a canonical key reached from several distinct raw names of
// one source. Intended aliases show up here too; unexpected ones point at
// normalization merging two different models.
type Collision struct {
	Key    string
	Source Source
	Raw    []string
}

// Collisions lists keys resolved from more than one raw spelling per source,
// ordered by key then source.
func (r *Resolver) Collisions() []Collision {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Collision
	for key, bySource := range r.seen {
		for source, raws := range bySource {
			if len(raws) < 2 {
				continue
			}
			c := Collision{Key: key, Source: source}
			for raw := range raws {
				c.Raw = append(c.Raw, raw)
			}
			sort.Strings(c.Raw)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Source < out[j].Source
	})
	return out
}

// AliasCount is the number of alias spellings registered, canonical keys included.
func (r *Resolver) AliasCount() int { return len(r.aliases) }

// DisplayName turns a raw slug into a readable name:
// "anthropic/claude-opus-4_1" becomes "Claude Opus 4 1".
func DisplayName(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.LastIndex(s, "/"); i >= 0 && i < len(s)-1 {
		s = s[i+1:]
	}
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	// Casers keep state; build one per call.
	return cases.Title(language.English).String(strings.Join(strings.Fields(s), " "))
}
