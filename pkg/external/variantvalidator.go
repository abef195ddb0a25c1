package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/variantdb-pipeline/internal/domain"
)

// Pacer enforces the minimum interval between two consecutive calls to the
// resolution service. A *rate.Limiter satisfies it; tests substitute a no-op.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Document is the decoded top level of a resolution service response. The
// service keys its payload by the resolved identifier, so the shape is only
// known after inspection.
type Document map[string]json.RawMessage

// API is the variant resolution service surface consumed by the resolution
// driver. Fetch issues one paced GET for one variant and returns the decoded
// response body or a kind-tagged failure.
type API interface {
	Fetch(ctx context.Context, variant, path string) (Document, error)
}

// Config configures the VariantValidator client.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	PaceInterval time.Duration
	Retry        RetryPolicy
}

// Client talks to the VariantValidator REST API. One Client carries one
// Pacer, so every caller sharing the instance shares the pacing budget.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pacer      Pacer
	retry      RetryPolicy
	log        *logrus.Logger
}

// NewClient creates a resolution service client. The pace interval defaults
// to 500ms between calls when unset.
func NewClient(cfg Config, log *logrus.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://rest.variantvalidator.org/VariantValidator/"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PaceInterval == 0 {
		cfg.PaceInterval = 500 * time.Millisecond
	}
	if cfg.Retry.MaxAttempts == nil {
		cfg.Retry = DefaultRetryPolicy()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/") + "/",
		httpClient: &http.Client{Timeout: cfg.Timeout},
		pacer:      rate.NewLimiter(rate.Every(cfg.PaceInterval), 1),
		retry:      cfg.Retry,
		log:        log,
	}
}

// WithPacer substitutes the pacing gate, returning the client for chaining.
func (c *Client) WithPacer(p Pacer) *Client {
	c.pacer = p
	return c
}

// Path builders for the service's endpoints. Variant descriptions carry ':'
// and '>' characters which must be escaped into the URL path.

// TranscriptPath targets the RefSeq resolver endpoint with MANE-select
// preference, for NM_/LRG_/NG_ coding and NC_ genomic descriptions.
func TranscriptPath(variant string) string {
	return "variantvalidator/GRCh38/" + url.PathEscape(variant) + "/mane_select?content-type=application%2Fjson"
}

// EnsemblTranscriptPath targets the Ensembl resolver endpoint.
func EnsemblTranscriptPath(variant string) string {
	return "variantvalidator_ensembl/GRCh38/" + url.PathEscape(variant) + "/mane_select?content-type=application%2Fjson"
}

// PositionalPath targets the resolver endpoint for raw chrom-pos-ref-alt
// tokens, with MANE transcript preference.
func PositionalPath(token string) string {
	return "variantvalidator/GRCh38/" + url.PathEscape(token) + "/mane?content-type=application%2Fjson"
}

// GeneTranscriptsPath targets the gene-to-transcripts tool for gene-symbol
// searches.
func GeneTranscriptsPath(symbol string) string {
	return "tools/gene2transcripts/" + url.PathEscape(symbol) + "?content-type=application%2Fjson"
}

// Fetch issues one GET against the service for one variant, enforcing the
// pacing interval, retrying 408/429 per the retry policy, and mapping every
// other outcome onto the failure taxonomy. It never returns a non-nil
// Document together with an error.
func (c *Client) Fetch(ctx context.Context, variant, path string) (Document, error) {
	fullURL := c.baseURL + path

	for attempt := 1; ; attempt++ {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, domain.WrapResolverError(domain.FailureConnectionProblem, variant,
				"request cancelled while waiting for the pacing interval", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, domain.WrapResolverError(domain.FailureConnectionProblem, variant,
				"could not build resolver request", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, c.classifyTransportError(variant, err)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				return nil, domain.WrapResolverError(domain.FailureConnectionProblem, variant,
					"resolver response could not be read", readErr)
			}
			var doc Document
			if err := json.Unmarshal(body, &doc); err != nil {
				return nil, domain.WrapResolverError(domain.FailureMalformedResponse, variant,
					"resolver response was not valid JSON", err)
			}
			return doc, nil

		case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
			return nil, domain.NewResolverError(domain.FailureRequestRejected, variant,
				fmt.Sprintf("resolver rejected the request with HTTP %d", resp.StatusCode))

		case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
			if !c.retry.Retryable(resp.StatusCode, attempt) {
				return nil, domain.NewResolverError(domain.FailureServiceUnavailable, variant,
					fmt.Sprintf("resolver unavailable after %d attempts (HTTP %d); try again later", attempt, resp.StatusCode))
			}
			c.log.WithFields(logrus.Fields{
				"variant": variant,
				"status":  resp.StatusCode,
				"attempt": attempt,
			}).Warn("Resolver asked us to back off; retrying")
			if err := c.retry.Sleep(ctx, attempt); err != nil {
				return nil, domain.WrapResolverError(domain.FailureConnectionProblem, variant,
					"request cancelled during retry backoff", err)
			}

		case resp.StatusCode == http.StatusInternalServerError ||
			resp.StatusCode == http.StatusServiceUnavailable ||
			resp.StatusCode == http.StatusGatewayTimeout:
			// Retrying a crashed upstream within a user-facing request
			// rarely helps; report instead.
			return nil, domain.NewResolverError(domain.FailureServiceError, variant,
				fmt.Sprintf("resolver failed with HTTP %d; it is not your fault, try again later", resp.StatusCode))

		default:
			return nil, domain.NewResolverError(domain.FailureServiceError, variant,
				fmt.Sprintf("resolver returned unexpected HTTP %d", resp.StatusCode))
		}
	}
}

// classifyTransportError sub-classifies connection-level failures so the
// diagnostic can say what actually went wrong.
func (c *Client) classifyTransportError(variant string, err error) *domain.ResolverError {
	var msg string
	switch {
	case errors.Is(err, syscall.ECONNRESET):
		msg = "connection reset by the resolver host"
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		msg = "no route to the resolver host"
	case errors.Is(err, syscall.ECONNREFUSED):
		msg = "the resolver host refused the connection"
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			msg = "the connection to the resolver timed out"
		} else {
			msg = "could not connect to the resolver"
		}
	}
	return domain.WrapResolverError(domain.FailureConnectionProblem, variant, msg, err)
}
