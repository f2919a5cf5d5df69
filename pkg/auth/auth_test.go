package auth

import (
	"bytes"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nethoundsh/submit/pkg/config"
)

var project = &config.Project{
	BaseURL:       "https://submit.example.edu/",
	CourseKey:     "abc 123",
	ProjectNumber: "p3",
}

func TestStatusURL(t *testing.T) {
	got, err := StatusURL(project)
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "/view/submitStatus.jsp", u.Path)
	assert.Equal(t, "abc 123", u.Query().Get("courseKey"))
	assert.Equal(t, "p3", u.Query().Get("projectNumber"))
}

func TestParsePaste(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    *config.User
		wantErr bool
	}{
		{name: "valid", in: "cs132001;7f3a9c\n", want: &config.User{ClassAccount: "cs132001", OneTimePassword: "7f3a9c"}},
		{name: "surrounding space", in: "  cs132001 ; 7f3a9c  ", want: &config.User{ClassAccount: "cs132001", OneTimePassword: "7f3a9c"}},
		{name: "semicolon in password", in: "a;b;c", want: &config.User{ClassAccount: "a", OneTimePassword: "b;c"}},
		{name: "no separator", in: "cs132001", wantErr: true},
		{name: "empty account", in: ";pw", wantErr: true},
		{name: "empty password", in: "acct;", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePaste(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPaste)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	t.Run("browser opened", func(t *testing.T) {
		var opened string
		var out bytes.Buffer
		pr := Prompter{
			In:   strings.NewReader("cs132001;7f3a9c\n"),
			Out:  &out,
			Open: func(u string) error { opened = u; return nil },
		}
		u, err := pr.Authenticate(project)
		require.NoError(t, err)
		assert.Equal(t, "cs132001", u.ClassAccount)
		assert.Contains(t, opened, "submitStatus.jsp")
		assert.Equal(t, "Paste here: ", out.String())
	})

	t.Run("browser unavailable prints url", func(t *testing.T) {
		var out bytes.Buffer
		pr := Prompter{
			In:   strings.NewReader("a;b"),
			Out:  &out,
			Open: func(string) error { return errors.New("no browser") },
		}
		_, err := pr.Authenticate(project)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Please open https://submit.example.edu/view/submitStatus.jsp?")
	})

	t.Run("closed stdin", func(t *testing.T) {
		pr := Prompter{In: strings.NewReader(""), Out: &bytes.Buffer{}, Open: func(string) error { return nil }}
		_, err := pr.Authenticate(project)
		assert.Error(t, err)
	})

	t.Run("bad paste", func(t *testing.T) {
		pr := Prompter{In: strings.NewReader("garbage\n"), Out: &bytes.Buffer{}, Open: func(string) error { return nil }}
		_, err := pr.Authenticate(project)
		assert.ErrorIs(t, err, ErrInvalidPaste)
	})
}
