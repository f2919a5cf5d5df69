// Package config reads the project descriptor (.submit) and the cached
// credentials (.submitUser). Both are Java properties files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/magiconair/properties"
)

const (
	ProjectFile = ".submit"
	UserFile    = ".submitUser"
)

// LocalFiles are the client's own files inside a project directory. They
// carry credentials and are never packed.
var LocalFiles = []string{ProjectFile, UserFile, UserFile + ".tmp"}

// AuthCAS is the only authentication type the client implements.
const AuthCAS = "cas"

var (
	ErrNoProject       = errors.New("unable to open .submit file, does it exist?")
	ErrNoUser          = errors.New("no saved user")
	ErrMissingKey      = errors.New("missing key")
	ErrUnsupportedAuth = errors.New("only CAS authentication is implemented")
)

// Project is the course/project descriptor distributed with an assignment.
type Project struct {
	CourseName     string
	Semester       string
	ProjectNumber  string
	CourseKey      string
	Authentication string
	BaseURL        string
	SubmitURL      string
}

// User is the class account and one-time password issued by the server.
type User struct {
	ClassAccount    string
	OneTimePassword string
}

// load reads and parses a properties file. Expansion of ${...} is off:
// passwords and URLs are taken literally.
func load(path string) (*properties.Properties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	return l.LoadBytes(data)
}

// LoadProject reads dir/.submit.
func LoadProject(dir string) (*Project, error) {
	path := filepath.Join(dir, ProjectFile)
	p, err := load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoProject
	}
	if err != nil {
		return nil, fmt.Errorf("malformed %s, try redownloading: %w", ProjectFile, err)
	}

	var missing error
	get := func(key string, required bool) string {
		v, ok := p.Get(key)
		if !ok && required && missing == nil {
			missing = fmt.Errorf("malformed %s, try redownloading: %w %q", ProjectFile, ErrMissingKey, key)
		}
		return v
	}
	proj := &Project{
		CourseName:     get("courseName", false),
		Semester:       get("semester", true),
		ProjectNumber:  get("projectNumber", true),
		CourseKey:      get("courseKey", true),
		Authentication: get("authentication.type", true),
		BaseURL:        get("baseURL", true),
		SubmitURL:      get("submitURL", true),
	}
	if missing != nil {
		return nil, missing
	}
	return proj, nil
}

// CheckAuth rejects projects using an authentication type other than CAS.
func (p *Project) CheckAuth() error {
	if p.Authentication != AuthCAS {
		return fmt.Errorf("%w (got %q)", ErrUnsupportedAuth, p.Authentication)
	}
	return nil
}

// LoadUser reads dir/.submitUser. A missing file returns ErrNoUser.
func LoadUser(dir string) (*User, error) {
	path := filepath.Join(dir, UserFile)
	p, err := load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoUser
	}
	if err != nil {
		return nil, fmt.Errorf("%s was found, but was not readable: %w", UserFile, err)
	}

	account, ok1 := p.Get("classAccount")
	otp, ok2 := p.Get("oneTimePassword")
	if !ok1 || !ok2 || account == "" || otp == "" {
		return nil, fmt.Errorf("%s was invalid: %w", UserFile, ErrMissingKey)
	}
	return &User{ClassAccount: account, OneTimePassword: otp}, nil
}

// SaveUser writes dir/.submitUser. It writes to a .tmp file first, then
// renames it into place so a crash never leaves a truncated file.
func SaveUser(dir string, u *User) error {
	p := properties.NewProperties()
	p.DisableExpansion = true
	for _, kv := range [][2]string{
		{"classAccount", u.ClassAccount},
		{"oneTimePassword", u.OneTimePassword},
	} {
		if _, _, err := p.Set(kv[0], kv[1]); err != nil {
			return fmt.Errorf("encoding %s: %w", UserFile, err)
		}
	}
	var buf bytes.Buffer
	if _, err := p.Write(&buf, properties.UTF8); err != nil {
		return fmt.Errorf("encoding %s: %w", UserFile, err)
	}

	path := filepath.Join(dir, UserFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", UserFile, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("committing %s: %w", UserFile, err)
	}
	return nil
}
