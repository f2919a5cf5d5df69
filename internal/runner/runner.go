package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/nethoundsh/submit/pkg/archive"
	"github.com/nethoundsh/submit/pkg/config"
	"github.com/nethoundsh/submit/pkg/filter"
	"github.com/nethoundsh/submit/pkg/hasher"
	outputpkg "github.com/nethoundsh/submit/pkg/output"
	"github.com/nethoundsh/submit/pkg/pattern"
	"github.com/nethoundsh/submit/pkg/submit"
)

const totalStages = 5

// denyList is compiled once; the client's own files are merged in so
// credentials never reach the archive.
var denyList = pattern.MustCompile(pattern.Defaults, config.LocalFiles)

// Authenticator obtains fresh credentials for a project.
type Authenticator interface {
	Authenticate(p *config.Project) (*config.User, error)
}

// Submitter uploads a finished archive.
type Submitter interface {
	Submit(ctx context.Context, proj *config.Project, user *config.User, zipData []byte) (submit.Response, error)
}

// AppConfig carries everything one command run needs.
type AppConfig struct {
	Ctx          context.Context
	Dir          string
	Output       string
	Verbose      bool
	ShowProgress bool
	MaxFileSize  int64
	Stdout       io.Writer
	Stderr       io.Writer
	Auth         Authenticator
	Client       Submitter
}

func (cfg AppConfig) stage(n int, msg string) {
	if cfg.Output == "json" {
		return
	}
	fmt.Fprintf(cfg.Stdout, "[%d/%d] %s\n", n, totalStages, msg)
}

func (cfg AppConfig) warn(format string, a ...any) {
	fmt.Fprintln(cfg.Stderr, color.YellowString("[!] "+format, a...))
}

func (cfg AppConfig) fail(err error) int {
	if cfg.Ctx.Err() != nil {
		fmt.Fprintln(cfg.Stderr, "\nInterrupted")
		return 1
	}
	fmt.Fprintln(cfg.Stderr, color.RedString("[!] %v", err))
	return 1
}

// Select picks the files to submit under cfg.Dir. Skipped entries and
// unhonored ignore files are reported as warnings; neither is fatal.
func Select(cfg AppConfig) (filter.Report, error) {
	fsys := os.DirFS(cfg.Dir)
	found, err := filter.DetectIgnoreFiles(fsys)
	if err != nil {
		cfg.warn("%v", err)
	}
	for _, name := range found {
		cfg.warn("%s is not currently honored, may submit incorrectly", name)
	}

	rep, err := filter.Select(cfg.Ctx, fsys, denyList)
	if err != nil {
		return filter.Report{}, err
	}
	if len(rep.Skipped) > 0 && cfg.Output != "json" {
		for _, s := range rep.Skipped {
			cfg.warn("skipped %s: %v", s.Path, s.Reason)
		}
		cfg.warn("%d %s could not be read and will not be submitted", len(rep.Skipped), entryWord(len(rep.Skipped)))
	}
	return rep, nil
}

// Pack builds the archive for rep.Included, drawing a progress bar when
// cfg.ShowProgress is set.
func Pack(cfg AppConfig, rep filter.Report) ([]byte, error) {
	opts := []archive.Option{archive.WithMaxFileSize(cfg.MaxFileSize)}

	var progress *mpb.Progress
	var bar *mpb.Bar
	if cfg.ShowProgress && len(rep.Included) > 0 {
		progress, bar = initProgressBar(cfg.Ctx, cfg.Stderr, int64(len(rep.Included)))
		opts = append(opts, archive.WithProgress(func(string) { bar.Increment() }))
	}

	data, err := archive.Build(cfg.Ctx, os.DirFS(cfg.Dir), rep.Included, opts...)
	if progress != nil {
		if err != nil {
			bar.Abort(true)
		}
		progress.Wait()
	}
	return data, err
}

func initProgressBar(ctx context.Context, w io.Writer, total int64) (*mpb.Progress, *mpb.Bar) {
	p := mpb.NewWithContext(ctx, mpb.WithOutput(w))
	b := p.New(total,
		mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding(" ").Rbound("]"),
		mpb.PrependDecorators(decor.Name("Packing ")),
		mpb.AppendDecorators(
			decor.CountersNoUnit(" %d / %d "),
			decor.AverageETA(decor.ET_STYLE_MMSS),
		),
		mpb.BarRemoveOnComplete(),
	)
	return p, b
}

// RunSubmit runs the full five-stage submission. Exit codes: 0 = submitted,
// 1 = error, 2 = rejected by the server.
func RunSubmit(cfg AppConfig) int {
	cfg.stage(1, "Loading configs...")
	proj, err := config.LoadProject(cfg.Dir)
	if err != nil {
		return cfg.fail(fmt.Errorf("[1/5] %w", err))
	}
	if err := proj.CheckAuth(); err != nil {
		return cfg.fail(fmt.Errorf("[1/5] %w", err))
	}

	user, err := config.LoadUser(cfg.Dir)
	if err == nil {
		cfg.stage(2, "Loading user data...")
	} else {
		if !errors.Is(err, config.ErrNoUser) {
			cfg.warn("%v, recreating...", err)
		}
		cfg.stage(2, "Authenticating user...")
		user, err = cfg.Auth.Authenticate(proj)
		if err != nil {
			return cfg.fail(fmt.Errorf("[2/5] %w", err))
		}
		if err := config.SaveUser(cfg.Dir, user); err != nil {
			cfg.warn("Unable to save user, will ask again next time! (%v)", err)
		}
	}

	cfg.stage(3, "Building patterns and walking directories...")
	rep, err := Select(cfg)
	if err != nil {
		return cfg.fail(fmt.Errorf("[3/5] %w", err))
	}

	cfg.stage(4, "Packing files...")
	data, err := Pack(cfg, rep)
	if err != nil {
		return cfg.fail(fmt.Errorf("[4/5] %w", err))
	}

	cfg.stage(5, "Submitting to server")
	if _, err := cfg.Client.Submit(cfg.Ctx, proj, user, data); err != nil {
		code := cfg.fail(fmt.Errorf("[5/5] %w", err))
		var serr *submit.StatusError
		if errors.As(err, &serr) {
			code = 2
		}
		return code
	}
	fmt.Fprintln(cfg.Stdout, color.HiGreenString("Successfully submitted project!"))
	return 0
}

// RunList prints what would be submitted without packing anything.
func RunList(cfg AppConfig) int {
	rep, err := Select(cfg)
	if err != nil {
		return cfg.fail(err)
	}
	if err := outputpkg.PrintSelection(cfg.Stdout, cfg.Dir, cfg.Output, rep, cfg.Verbose); err != nil {
		return cfg.fail(err)
	}
	return 0
}

// RunPack writes the archive to out instead of uploading it. A relative
// out is resolved against the working directory, not cfg.Dir.
func RunPack(cfg AppConfig, out string) int {
	cfg.stage(3, "Building patterns and walking directories...")
	rep, err := Select(cfg)
	if err != nil {
		return cfg.fail(fmt.Errorf("[3/5] %w", err))
	}

	cfg.stage(4, "Packing files...")
	data, err := Pack(cfg, rep)
	if err != nil {
		return cfg.fail(fmt.Errorf("[4/5] %w", err))
	}

	if out == "" {
		out = archive.FileName
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return cfg.fail(fmt.Errorf("writing %s: %w", out, err))
	}
	if abs, err := filepath.Abs(out); err == nil && isInside(cfg.Dir, abs) {
		cfg.warn("%s was written inside the project and will be included in the next submission", out)
	}

	// Digest what landed on disk, not the buffer.
	sum, err := hasher.File(out)
	if err != nil {
		return cfg.fail(err)
	}
	if sum != hasher.Bytes(data) {
		return cfg.fail(fmt.Errorf("%s does not match the archive that was built", out))
	}

	if err := outputpkg.PrintArchive(cfg.Stdout, out, cfg.Output, len(rep.Included), sum); err != nil {
		return cfg.fail(err)
	}
	return 0
}

func isInside(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func entryWord(n int) string {
	if n == 1 {
		return "entry"
	}
	return "entries"
}
