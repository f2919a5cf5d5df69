package filter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/nethoundsh/submit/pkg/pattern"
	"github.com/nethoundsh/submit/pkg/walker"
)

// IgnoreFiles are the per-project rule files recognised in the root but not
// yet applied.
var IgnoreFiles = []string{".submitIgnore", ".submitInclude"}

// Excluded is a path dropped by the deny list.
type Excluded struct {
	Path    string
	Pattern string
}

// Skipped is a path the walker could not read.
type Skipped struct {
	Path   string
	Reason error
}

// Report is the outcome of a selection pass. Included keeps walk order.
type Report struct {
	Included []string
	Excluded []Excluded
	Skipped  []Skipped
}

// IsIncluded reports whether no pattern in set matches path.
func IsIncluded(path string, set *pattern.Set) bool {
	_, matched := set.Match(path)
	return !matched
}

// Select walks fsys and sorts every file into the report. Directories the
// deny list already covers are not descended into; every file below them
// would be excluded anyway.
func Select(ctx context.Context, fsys fs.FS, set *pattern.Set) (Report, error) {
	var rep Report
	prune := func(dir string) bool {
		_, matched := set.Match(dir)
		return matched
	}

	for e := range walker.Walk(fsys, walker.WithContext(ctx), walker.WithPrune(prune)) {
		switch {
		case e.Aborted():
			return rep, fmt.Errorf("walking files: %w", e.Err)
		case e.Skipped():
			rep.Skipped = append(rep.Skipped, Skipped{Path: e.Path, Reason: e.Err})
		default:
			if raw, matched := set.Match(e.Path); matched {
				rep.Excluded = append(rep.Excluded, Excluded{Path: e.Path, Pattern: raw})
				continue
			}
			rep.Included = append(rep.Included, e.Path)
		}
	}
	return rep, nil
}

// DetectIgnoreFiles returns the IgnoreFiles present at the root of fsys.
func DetectIgnoreFiles(fsys fs.FS) ([]string, error) {
	var found []string
	for _, name := range IgnoreFiles {
		_, err := fs.Stat(fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return found, fmt.Errorf("checking %s: %w", name, err)
		}
		found = append(found, name)
	}
	return found, nil
}
