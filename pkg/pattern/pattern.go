package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Defaults is the built-in deny list: VCS metadata, build artifacts,
// editor backups and OS cruft.
var Defaults = []string{
	".", "..", "core", "RCSLOG", "tags", "TAGS", "RCS", "SCCS",
	".make.state", ".nse_depinfo",
	"#*", ".#*", "cvslog.*", ",*", ".git", "CVS", "CVS.adm", ".del-*", "*.a",
	"*.olb",
	"*.o", "*.obj", "*.so", "*.Z", "*~", "*.old", "*.elc", "*.ln", "*.bak", "*.BAK",
	"*.orig",
	"*.rej", "*.exe", "*.dll", "*.pdb", "*.lib", "*.ncb", "*.ilk", "*.exp", "*.suo",
	".DS_Store", "_$*",
	"*$", "*.lo", "*.pch", "*.idb", "*.class", "~*",
}

var (
	// ErrEmpty is returned for a blank pattern.
	ErrEmpty = errors.New("empty pattern")
	// ErrUnsupported is returned for glob syntax the translation does not
	// cover: "?", bracket classes and backslash escapes.
	ErrUnsupported = errors.New("unsupported glob syntax")
)

// Error reports a pattern that could not be turned into a matcher.
type Error struct {
	Pattern string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("compiling pattern %q: %v", e.Pattern, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Pattern is one raw glob plus its compiled matcher.
type Pattern struct {
	raw string
	re  *regexp.Regexp
}

// Match reports whether path, or any leading run of its segments, is fully
// matched by the pattern starting at a segment boundary.
func (p Pattern) Match(path string) bool {
	return p.re.MatchString(path)
}

// Set is an immutable, compiled deny list.
type Set struct {
	patterns []Pattern
}

// Compile merges lists in order and compiles every entry. Duplicates are
// compiled once. The first bad pattern aborts compilation.
func Compile(lists ...[]string) (*Set, error) {
	seen := make(map[string]bool)
	var patterns []Pattern
	for _, list := range lists {
		for _, raw := range list {
			if seen[raw] {
				continue
			}
			seen[raw] = true
			p, err := compileOne(raw)
			if err != nil {
				return nil, err
			}
			patterns = append(patterns, p)
		}
	}
	return &Set{patterns: patterns}, nil
}

// MustCompile is Compile for lists fixed at build time. It panics on
// failure.
func MustCompile(lists ...[]string) *Set {
	s, err := Compile(lists...)
	if err != nil {
		panic(err)
	}
	return s
}

// Match returns the first pattern that matches path.
func (s *Set) Match(path string) (string, bool) {
	for _, p := range s.patterns {
		if p.Match(path) {
			return p.raw, true
		}
	}
	return "", false
}

func compileOne(raw string) (Pattern, error) {
	if strings.TrimSpace(raw) == "" {
		return Pattern{}, &Error{Pattern: raw, Err: ErrEmpty}
	}
	if i := strings.IndexAny(raw, `?[]\`); i >= 0 {
		return Pattern{}, &Error{Pattern: raw, Err: fmt.Errorf("%w: %q at offset %d", ErrUnsupported, raw[i], i)}
	}

	// Literal runs are quoted, which covers "$" and "." along with every
	// other regexp metacharacter.
	parts := strings.Split(raw, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	body := strings.Join(parts, ".*")

	re, err := regexp.Compile(`^(?:.*/)?` + body + `(?:/.*)?$`)
	if err != nil {
		return Pattern{}, &Error{Pattern: raw, Err: err}
	}
	return Pattern{raw: raw, re: re}, nil
}
