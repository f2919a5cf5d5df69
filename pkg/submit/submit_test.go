package submit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/nethoundsh/submit/pkg/config"
)

var (
	testUser = &config.User{ClassAccount: "cs132001", OneTimePassword: "7f3a9c"}
	zipData  = []byte("PK\x05\x06\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")
)

func testProject(url string) *config.Project {
	return &config.Project{
		Semester:       "202408",
		ProjectNumber:  "p3",
		CourseKey:      "abc123",
		Authentication: "cas",
		BaseURL:        "https://submit.example.edu",
		SubmitURL:      url,
	}
}

func TestSubmitForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		want := map[string]string{
			"submitclientVersion":   ClientVersion,
			"cvstagTimestamp":       "t1700000000123",
			"classAccount":          "cs132001",
			"projectNumber":         "p3",
			"authentication.type":   "cas",
			"oneTimePassword":       "7f3a9c",
			"baseURL":               "https://submit.example.edu",
			"semester":              "202408",
			"courseKey":             "abc123",
			"hasFailedCVSOperation": "false",
			"submitClientTool":      "EclipsePlugin",
		}
		for k, v := range want {
			assert.Equal(t, v, r.FormValue(k), "field %s", k)
		}

		f, hdr, err := r.FormFile("submittedFiles")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "submit.zip", hdr.Filename)
		got, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, zipData, got)

		_, _ = io.WriteString(w, "Successful submission #3 received for project p3")
	}))
	defer srv.Close()

	c := &Client{HTTPClient: srv.Client(), Now: func() time.Time { return time.UnixMilli(1700000000123) }}
	resp, err := c.Submit(context.Background(), testProject(srv.URL), testUser, zipData)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, "Successful submission")
}

func TestSubmitStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, strings.Repeat("x", 500))
	}))
	defer srv.Close()

	c := &Client{HTTPClient: srv.Client()}
	_, err := c.Submit(context.Background(), testProject(srv.URL), testUser, zipData)

	var serr *StatusError
	require.True(t, errors.As(err, &serr), "want *StatusError, got %v", err)
	assert.Equal(t, http.StatusForbidden, serr.Code)
	assert.Len(t, []rune(serr.Body), 203)
	assert.Contains(t, err.Error(), "403 Forbidden")
}

func TestSubmitRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	var log bytes.Buffer
	c := &Client{HTTPClient: srv.Client(), Limiter: rate.NewLimiter(rate.Inf, 1), Log: &log}
	resp, err := c.Submit(context.Background(), testProject(srv.URL), testUser, zipData)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Body)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "Rate limited (429), retrying in 1s...\n", log.String())
}

func TestSubmitGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := &Client{HTTPClient: srv.Client()}
	_, err := c.Submit(context.Background(), testProject(srv.URL), testUser, zipData)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited after 2 retries")
	assert.Equal(t, int32(3), calls.Load())
}

func TestSubmitCancelledDuringRetryWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	c := &Client{HTTPClient: srv.Client()}
	_, err := c.Submit(ctx, testProject(srv.URL), testUser, zipData)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Duration
	}{
		{name: "empty string default", in: "", want: 5 * time.Second},
		{name: "integer thirty", in: "30", want: 30 * time.Second},
		{name: "zero falls back to default", in: "0", want: 5 * time.Second},
		{name: "negative falls back to default", in: "-5", want: 5 * time.Second},
		{name: "non-numeric garbage", in: "soon", want: 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfter(tt.in))
		})
	}

	t.Run("RFC1123 date in the future", func(t *testing.T) {
		got := parseRetryAfter(time.Now().Add(30 * time.Second).UTC().Format(time.RFC1123))
		assert.InDelta(t, float64(30*time.Second), float64(got), float64(2*time.Second))
	})
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{in: "hello", max: 10, want: "hello"},
		{in: "hello world", max: 5, want: "hello..."},
		{in: "hello", max: 0, want: ""},
		{in: "héllo", max: 3, want: "hél..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncateRunes(tt.in, tt.max))
	}
}
