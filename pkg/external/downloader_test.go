package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloader_StreamsToDestination(t *testing.T) {
	payload := []byte("Name\tChromosomeAccession\nNM_000360.4:c.1442G>A\tNC_000011.10\n")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", "Mon, 04 Aug 2025 02:00:00 GMT")
		w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "dataset", "variant_summary.txt.gz")
	d := NewDownloader(0, fastRetry(), testLogger())

	require.NoError(t, d.Download(context.Background(), server.URL, dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDownloader_FailedTransferLeavesNoFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "variant_summary.txt.gz")
	d := NewDownloader(0, fastRetry(), testLogger())

	err := d.Download(context.Background(), server.URL, dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "no destination file may appear after a failed transfer")
}

func TestDownloader_RetriesThrottling(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("data"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "dataset.bin")
	d := NewDownloader(0, fastRetry(), testLogger())

	require.NoError(t, d.Download(context.Background(), server.URL, dest))
	assert.Equal(t, 3, calls)
}
