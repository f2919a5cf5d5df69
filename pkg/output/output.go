package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/nethoundsh/submit/pkg/filter"
	"github.com/nethoundsh/submit/pkg/hasher"
)

// Entry statuses used in NDJSON output.
const (
	StatusIncluded = "included"
	StatusExcluded = "excluded"
	StatusSkipped  = "skipped"
)

// NDJSON output: each line is a self-contained JSON object.
type JSONRecord struct {
	Path    string `json:"path"`
	Status  string `json:"status"`
	Pattern string `json:"pattern,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type JSONSummary struct {
	Root     string `json:"root"`
	Included int    `json:"included"`
	Excluded int    `json:"excluded"`
	Skipped  int    `json:"skipped"`
}

type JSONSummaryRecord struct {
	Summary JSONSummary `json:"summary"`
}

type JSONArchive struct {
	Path      string `json:"path"`
	Files     int    `json:"files"`
	Size      int64  `json:"size"`
	SizeHuman string `json:"size_human"`
	SHA256    string `json:"sha256"`
	MD5       string `json:"md5"`
}

type JSONArchiveRecord struct {
	Archive JSONArchive `json:"archive"`
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, a ...any) {
	if ew.err == nil {
		_, ew.err = fmt.Fprintf(ew.w, format, a...)
	}
}

func (ew *errWriter) println(a ...any) {
	if ew.err == nil {
		_, ew.err = fmt.Fprintln(ew.w, a...)
	}
}

// PrintSelection prints a selection report in the configured format.
// verbose adds excluded paths to text output.
func PrintSelection(w io.Writer, root, format string, rep filter.Report, verbose bool) error {
	switch format {
	case "json":
		return PrintSelectionJSON(w, root, rep)
	default:
		return PrintSelectionText(w, rep, verbose)
	}
}

// PrintSelectionJSON emits one NDJSON line per path followed by a summary.
func PrintSelectionJSON(w io.Writer, root string, rep filter.Report) error {
	var recs []JSONRecord
	for _, p := range rep.Included {
		recs = append(recs, JSONRecord{Path: p, Status: StatusIncluded})
	}
	for _, e := range rep.Excluded {
		recs = append(recs, JSONRecord{Path: e.Path, Status: StatusExcluded, Pattern: e.Pattern})
	}
	for _, s := range rep.Skipped {
		recs = append(recs, JSONRecord{Path: s.Path, Status: StatusSkipped, Reason: s.Reason.Error()})
	}
	for _, rec := range recs {
		if err := writeJSONLine(w, rec); err != nil {
			return err
		}
	}
	return writeJSONLine(w, JSONSummaryRecord{Summary: JSONSummary{
		Root:     root,
		Included: len(rep.Included),
		Excluded: len(rep.Excluded),
		Skipped:  len(rep.Skipped),
	}})
}

// PrintSelectionText lists included files and a color-coded tally.
func PrintSelectionText(w io.Writer, rep filter.Report, verbose bool) error {
	ew := &errWriter{w: w}
	for _, p := range rep.Included {
		ew.printf("  %s\n", p)
	}
	if verbose {
		for _, e := range rep.Excluded {
			ew.printf("  %s %s\n", color.HiBlackString("- %s", e.Path), color.HiBlackString("(%s)", e.Pattern))
		}
	}
	for _, s := range rep.Skipped {
		ew.printf("  %s\n", color.YellowString("? %s: %v", s.Path, s.Reason))
	}
	ew.printf("%d %s included, %d excluded, %s skipped\n",
		len(rep.Included), plural(len(rep.Included), "file", "files"), len(rep.Excluded), yellowOrGreenInt(len(rep.Skipped)))
	return ew.err
}

// PrintArchive reports where an archive went and how to verify it.
func PrintArchive(w io.Writer, path, format string, files int, sum hasher.Result) error {
	if format == "json" {
		return writeJSONLine(w, JSONArchiveRecord{Archive: JSONArchive{
			Path:      path,
			Files:     files,
			Size:      sum.Size,
			SizeHuman: humanize.Bytes(uint64(sum.Size)),
			SHA256:    sum.SHA256,
			MD5:       sum.MD5,
		}})
	}
	ew := &errWriter{w: w}
	ew.printf("Packed %d %s into %s (%s)\n", files, plural(files, "file", "files"), path, humanize.Bytes(uint64(sum.Size)))
	ew.printf("%-10s%s\n", "SHA-256:", color.CyanString(sum.SHA256))
	return ew.err
}

func writeJSONLine(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling JSON output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func plural(n int, singular, many string) string {
	if n == 1 {
		return singular
	}
	return many
}

func yellowOrGreenInt(n int) string {
	if n > 0 {
		return color.YellowString("%d", n)
	}
	return color.GreenString("%d", n)
}
