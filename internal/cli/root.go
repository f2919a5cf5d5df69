// Package cli wires the submit command tree to the runner.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/nethoundsh/submit/internal/runner"
	"github.com/nethoundsh/submit/pkg/auth"
	"github.com/nethoundsh/submit/pkg/submit"
)

// version can be overridden at build time with:
//
//	go build -ldflags "-X github.com/nethoundsh/submit/internal/cli.version=v1.2.3"
var version = "dev"

var (
	rootDir      string
	noColor      bool
	noProgress   bool
	maxFileSize  string
	outputFormat string
	verbose      bool

	maxFileBytes int64
	exitCode     int
)

// Swapped out in tests.
var (
	newAuthenticator = func(in io.Reader, out io.Writer) runner.Authenticator {
		return auth.Prompter{In: in, Out: out}
	}
	newSubmitter = func(log io.Writer) runner.Submitter {
		return &submit.Client{
			HTTPClient: &http.Client{Timeout: 60 * time.Second},
			Limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
			Log:        log,
		}
	}
)

var errOutputFormat = errors.New("invalid -o value; must be 'text' or 'json'")

var rootCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a course project to the submit server",
	Long: `Packs the project in --dir into submit.zip, skipping build output,
editor backups and version-control metadata, and uploads it using the
project's .submit file. Credentials are cached in .submitUser.`,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := appConfig(cmd)
		cfg.Auth = newAuthenticator(cmd.InOrStdin(), cmd.OutOrStdout())
		cfg.Client = newSubmitter(cfg.Stderr)
		exitCode = runner.RunSubmit(cfg)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootDir, "dir", ".", "project directory to submit")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.BoolVar(&noProgress, "no-progress", false, "disable the packing progress bar")
	pf.StringVar(&maxFileSize, "max-file-size", "", "refuse files larger than this (e.g. \"10MB\"; empty = no limit)")
	rootCmd.SetVersionTemplate("submit {{.Version}}\n")
}

// setup validates the shared flags before any subcommand runs.
func setup(_ *cobra.Command, _ []string) error {
	switch outputFormat {
	case "", "text", "json":
	default:
		return errOutputFormat
	}

	maxFileBytes = 0
	if maxFileSize != "" {
		n, err := humanize.ParseBytes(maxFileSize)
		if err != nil {
			return fmt.Errorf("invalid --max-file-size value %q: %w", maxFileSize, err)
		}
		maxFileBytes = int64(n)
	}

	if outputFormat == "json" || noColor {
		color.NoColor = true
	}

	info, err := os.Stat(rootDir)
	if err != nil {
		return fmt.Errorf("project directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("project directory: %s is not a directory", rootDir)
	}
	return nil
}

func appConfig(cmd *cobra.Command) runner.AppConfig {
	format := outputFormat
	if format == "" {
		format = "text"
	}
	return runner.AppConfig{
		Ctx:     cmd.Context(),
		Dir:     rootDir,
		Output:  format,
		Verbose: verbose,
		// Progress bar: text output only, on a real terminal (not piped).
		ShowProgress: format == "text" && !noProgress && isatty.IsTerminal(os.Stderr.Fd()),
		MaxFileSize:  maxFileBytes,
		Stdout:       cmd.OutOrStdout(),
		Stderr:       cmd.ErrOrStderr(),
	}
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	// Cancelled on Ctrl+C so a walk or upload in flight exits cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return execute(ctx)
}

func execute(ctx context.Context) int {
	rootCmd.Version = version
	exitCode = 0
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), color.RedString("[!] %v", err))
		return 1
	}
	return exitCode
}
