package noaa

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/metar-etl-service/internal/metar"
	"github.com/couchcryptid/metar-etl-service/internal/observability"
)

// Fetch outcomes recorded on observability.Metrics.FetchRequests.
const (
	outcomeSuccess  = "success"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// maxDocumentBytes bounds a station file; real ones are two short lines.
const maxDocumentBytes = 64 << 10

// Client implements metar.ReportFetcher against the NOAA station text files.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	retryBase  time.Duration
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a NOAA station report client. maxRetries counts attempts
// after the first one.
func NewClient(baseURL string, timeout time.Duration, maxRetries int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxRetries: maxRetries,
		retryBase:  500 * time.Millisecond,
		clock:      clockwork.NewRealClock(),
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchReport downloads the station file and returns the report line for
// station. A missing station file or a file without a matching line yields
// metar.ErrStationNotFound.
func (c *Client) FetchReport(ctx context.Context, station string) (string, error) {
	start := c.clock.Now()
	doc, err := c.fetchWithRetry(ctx, station)
	c.metrics.FetchDuration.Observe(c.clock.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(outcomeFor(err)).Inc()
		return "", err
	}

	line, err := SelectReportLine(doc, station)
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(outcomeNotFound).Inc()
		return "", err
	}
	c.metrics.FetchRequests.WithLabelValues(outcomeSuccess).Inc()
	return line, nil
}

// fetchWithRetry retries transport errors and 5xx responses with exponential
// backoff starting at retryBase. 404 and other 4xx responses are final.
func (c *Client) fetchWithRetry(ctx context.Context, station string) (string, error) {
	url := fmt.Sprintf("%s/%s.TXT", c.baseURL, station)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryBase * time.Duration(1<<(attempt-1))
			c.logger.Info("retrying station fetch",
				"station", station,
				"attempt", attempt,
				"backoff", backoff.String(),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-c.clock.After(backoff):
			}
		}

		doc, retryable, err := c.doRequest(ctx, url, station)
		if err == nil {
			return doc, nil
		}
		if !retryable || ctx.Err() != nil {
			return "", err
		}
		lastErr = err
		c.logger.Warn("station fetch failed, may retry",
			"station", station,
			"error", err,
			"attempt", attempt+1,
			"max_attempts", c.maxRetries+1,
		)
	}
	return "", fmt.Errorf("fetch %s after %d attempts: %w", station, c.maxRetries+1, lastErr)
}

// doRequest performs one GET. retryable reports whether a failure may succeed
// on a later attempt.
func (c *Client) doRequest(ctx context.Context, url, station string) (doc string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("station request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", false, fmt.Errorf("%w: %s", metar.ErrStationNotFound, station)
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", true, fmt.Errorf("noaa server error: status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", false, fmt.Errorf("noaa error: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return "", true, fmt.Errorf("read response: %w", err)
	}
	return string(body), false, nil
}

// SelectReportLine picks the first line of a station document whose first
// token is the station code. The document starts with a timestamp line that
// never matches.
func SelectReportLine(doc, station string) (string, error) {
	sc := bufio.NewScanner(strings.NewReader(doc))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		first, _, _ := strings.Cut(line, " ")
		if first == station {
			return line, nil
		}
	}
	return "", fmt.Errorf("%w: no report line for %s", metar.ErrStationNotFound, station)
}

func outcomeFor(err error) string {
	if errors.Is(err, metar.ErrStationNotFound) {
		return outcomeNotFound
	}
	return outcomeError
}
