package identity

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Sentinel errors.
var (
	ErrInvalidPattern = errors.New("invalid strip pattern")
	ErrAliasConflict  = errors.New("alias conflict")
	ErrAliasFile      = errors.New("alias file")
)

// AliasFile is the on-disk alias table:
//
//	aliases:
//	  claude-opus-4-1:
//	    - anthropic/claude-opus-4.1
//	    - claude-opus-4-1-20250805
//	sources:
//	  arena:
//	    strip_patterns: ['-preview$']
type AliasFile struct {
	Aliases map[string][]string    `yaml:"aliases"`
	Sources map[string]SourceRules `yaml:"sources"`
}

// SourceRules holds per-source normalization rules.
type SourceRules struct {
	StripPatterns []string `yaml:"strip_patterns"`
}

// ParseAliasFile decodes an alias table from r.
func ParseAliasFile(r io.Reader) (*AliasFile, error) {
	var f AliasFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrAliasFile, err)
	}
	return &f, nil
}

// LoadAliasFile reads and decodes the alias table at path.
func LoadAliasFile(path string) (*AliasFile, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAliasFile, err)
	}
	defer func() { _ = fh.Close() }()
	return ParseAliasFile(fh)
}
