package submit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/nethoundsh/submit/pkg/archive"
	"github.com/nethoundsh/submit/pkg/config"
)

// ClientVersion is reported to the server as submitclientVersion.
const ClientVersion = "0.3.1"

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("failed with http error: %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("failed with http error: %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// Client uploads archives. The zero value uses http.DefaultClient and no
// pacing between retries.
type Client struct {
	HTTPClient *http.Client
	// Limiter paces attempts. Nil means attempts are only delayed by
	// Retry-After.
	Limiter *rate.Limiter
	// Now stamps cvstagTimestamp; nil means time.Now.
	Now func() time.Time
	// Log receives retry notices; nil discards them.
	Log io.Writer
}

// Response is what a successful upload returns.
type Response struct {
	Status int
	Body   string
}

// Submit sends the archive as a multipart form to the project's submitURL.
// 429 responses are retried up to maxAttempts, honouring Retry-After.
func (c *Client) Submit(ctx context.Context, proj *config.Project, user *config.User, zipData []byte) (Response, error) {
	const maxAttempts = 3

	body, contentType, err := buildForm(proj, user, zipData, c.now())
	if err != nil {
		return Response{}, err
	}

	for attempt := range maxAttempts {
		if err := waitForRateLimit(ctx, c.Limiter); err != nil {
			return Response{}, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, proj.SubmitURL, bytes.NewReader(body))
		if err != nil {
			return Response{}, fmt.Errorf("submitting to %s: %w", proj.SubmitURL, err)
		}
		req.Header.Set("Content-Type", contentType)

		response, err := c.httpClient().Do(req)
		if err != nil {
			return Response{}, fmt.Errorf("failed to submit to server (http): %w", err)
		}

		respBody, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
		_ = response.Body.Close()
		if err != nil {
			return Response{}, fmt.Errorf("reading server response: %w", err)
		}

		if response.StatusCode == http.StatusTooManyRequests {
			if attempt == maxAttempts-1 {
				return Response{}, fmt.Errorf("submitting to %s: rate limited after %d retries", proj.SubmitURL, maxAttempts-1)
			}
			wait := parseRetryAfter(response.Header.Get("Retry-After"))
			fmt.Fprintf(c.log(), "Rate limited (429), retrying in %s...\n", wait)
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return Response{}, ctx.Err()
			}
			continue
		}

		if response.StatusCode < 200 || response.StatusCode > 299 {
			return Response{}, &StatusError{Code: response.StatusCode, Body: truncateRunes(string(respBody), 200)}
		}
		return Response{Status: response.StatusCode, Body: string(respBody)}, nil
	}
	return Response{}, fmt.Errorf("exhausted %d attempts", maxAttempts)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

func (c *Client) log() io.Writer {
	if c.Log == nil {
		return io.Discard
	}
	return c.Log
}

func (c *Client) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// buildForm encodes the fields the server expects. Field order matches what
// the Eclipse plugin sends.
func buildForm(proj *config.Project, user *config.User, zipData []byte, now time.Time) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"submitclientVersion", ClientVersion},
		{"cvstagTimestamp", "t" + strconv.FormatInt(now.UnixMilli(), 10)},
		{"classAccount", user.ClassAccount},
		{"projectNumber", proj.ProjectNumber},
		{"authentication.type", config.AuthCAS},
		{"oneTimePassword", user.OneTimePassword},
		{"baseURL", proj.BaseURL},
		{"semester", proj.Semester},
		{"courseKey", proj.CourseKey},
		{"hasFailedCVSOperation", "false"},
		{"submitClientTool", "EclipsePlugin"},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("encoding form field %s: %w", f[0], err)
		}
	}

	part, err := mw.CreateFormFile("submittedFiles", archive.FileName)
	if err != nil {
		return nil, "", fmt.Errorf("encoding %s: %w", archive.FileName, err)
	}
	if _, err := part.Write(zipData); err != nil {
		return nil, "", fmt.Errorf("encoding %s: %w", archive.FileName, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("encoding form: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func waitForRateLimit(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 5 * time.Second
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
