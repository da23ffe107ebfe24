package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	fetchAttempts  = 3
	fetchBaseDelay = 500 * time.Millisecond
	userAgent      = "medialib/1.0"
)

func defaultHTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// statusError is returned for non-200 responses.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// fetch GETs rawURL and returns the body. Transport failures and 5xx answers
// are retried with backoff; anything else fails immediately.
func fetch(ctx context.Context, client *http.Client, name, rawURL string) ([]byte, error) {
	return retry.DoWithData(
		func() ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("User-Agent", userAgent)

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("%s request failed: %w", name, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				err := &statusError{code: resp.StatusCode, body: string(snippet)}
				if resp.StatusCode >= 500 {
					return nil, err
				}
				return nil, retry.Unrecoverable(err)
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, fmt.Errorf("read response: %w", err)
			}
			return body, nil
		},
		retry.Context(ctx),
		retry.Attempts(fetchAttempts),
		retry.Delay(fetchBaseDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[%s] attempt %d failed: %v", name, n+1, err)
		}),
	)
}

// IsStatus reports whether err came from a response with the given status.
func IsStatus(err error, code int) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == code
}
