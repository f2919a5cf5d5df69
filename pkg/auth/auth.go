// Package auth obtains a class account and one-time password through the
// submit server's CAS status page.
package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"golang.org/x/term"

	"github.com/nethoundsh/submit/pkg/config"
)

// ErrInvalidPaste is returned when the pasted text is not "account;password".
var ErrInvalidPaste = errors.New("invalid paste, expected <class account>;<one-time password>")

// StatusURL returns the page that shows the credentials to paste back.
func StatusURL(p *config.Project) (string, error) {
	u, err := url.Parse(strings.TrimRight(p.BaseURL, "/") + "/view/submitStatus.jsp")
	if err != nil {
		return "", fmt.Errorf("formatting auth url: %w", err)
	}
	q := url.Values{}
	q.Set("courseKey", p.CourseKey)
	q.Set("projectNumber", p.ProjectNumber)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// OpenBrowser opens the default browser to the given URL.
func OpenBrowser(link string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", link)
	case "linux":
		cmd = exec.Command("xdg-open", link)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", link)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

// ParsePaste splits "account;password" at the first semicolon.
func ParsePaste(s string) (*config.User, error) {
	account, otp, ok := strings.Cut(strings.TrimSpace(s), ";")
	account = strings.TrimSpace(account)
	otp = strings.TrimSpace(otp)
	if !ok || account == "" || otp == "" {
		return nil, ErrInvalidPaste
	}
	return &config.User{ClassAccount: account, OneTimePassword: otp}, nil
}

// Prompter runs the interactive part of authentication.
type Prompter struct {
	In   io.Reader
	Out  io.Writer
	Open func(link string) error
}

// Authenticate sends the user to the status page and reads back the
// credentials it shows. When In is a terminal the paste is not echoed.
func (pr Prompter) Authenticate(p *config.Project) (*config.User, error) {
	link, err := StatusURL(p)
	if err != nil {
		return nil, err
	}
	open := pr.Open
	if open == nil {
		open = OpenBrowser
	}
	if err := open(link); err != nil {
		fmt.Fprintln(pr.Out, "Cannot automatically open url")
		fmt.Fprintf(pr.Out, "Please open %s\n", link)
	}

	fmt.Fprint(pr.Out, "Paste here: ")
	line, err := pr.readLine()
	if err != nil {
		return nil, fmt.Errorf("cannot read from terminal (stdin), is it readable?: %w", err)
	}
	return ParsePaste(line)
}

func (pr Prompter) readLine() (string, error) {
	if f, ok := pr.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(pr.Out)
		return string(b), err
	}
	line, err := bufio.NewReader(pr.In).ReadString('\n')
	if errors.Is(err, io.EOF) && line != "" {
		err = nil
	}
	return line, err
}
