package external

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Downloader streams large reference datasets to disk. The payload is never
// buffered in memory, and the destination file only appears once the
// download has completed, so a failed transfer cannot leave a truncated
// dataset behind.
type Downloader struct {
	httpClient *http.Client
	retry      RetryPolicy
	log        *logrus.Logger
}

// NewDownloader creates a downloader with the given transfer timeout. The
// retry policy is shared with the resolver client's semantics: 408/429 are
// retried with backoff, everything else is terminal.
func NewDownloader(timeout time.Duration, retry RetryPolicy, log *logrus.Logger) *Downloader {
	if timeout == 0 {
		timeout = 15 * time.Minute
	}
	if retry.MaxAttempts == nil {
		retry = DefaultRetryPolicy()
	}
	return &Downloader{
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		log:        log,
	}
}

// Download fetches url into dest. It writes to a temporary sibling file and
// renames it over dest on success.
func (d *Downloader) Download(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	for attempt := 1; ; attempt++ {
		err := d.downloadOnce(ctx, url, dest)
		if err == nil {
			return nil
		}

		status, retryable := retryableStatus(err)
		if !retryable || !d.retry.Retryable(status, attempt) {
			return err
		}

		d.log.WithFields(logrus.Fields{
			"url":     url,
			"status":  status,
			"attempt": attempt,
		}).Warn("Dataset download throttled; retrying")
		if sleepErr := d.retry.Sleep(ctx, attempt); sleepErr != nil {
			return fmt.Errorf("download cancelled during backoff: %w", sleepErr)
		}
	}
}

type httpStatusError struct {
	status int
	url    string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("download of %s failed with HTTP %d", e.url, e.status)
}

func retryableStatus(err error) (int, bool) {
	se, ok := err.(*httpStatusError)
	if !ok {
		return 0, false
	}
	return se.status, se.status == http.StatusRequestTimeout || se.status == http.StatusTooManyRequests
}

func (d *Downloader) downloadOnce(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building download request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &httpStatusError{status: resp.StatusCode, url: url}
	}

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		d.log.WithField("last_modified", lm).Info("Reference dataset last modified upstream")
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".partial-*")
	if err != nil {
		return fmt.Errorf("creating temporary download file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("streaming dataset to disk: %w", err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("moving downloaded dataset into place: %w", err)
	}

	d.log.WithFields(logrus.Fields{
		"url":   url,
		"dest":  dest,
		"bytes": written,
	}).Info("Reference dataset downloaded")
	return nil
}
