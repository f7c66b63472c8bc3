// Package usgs implements domain.GaugeClient against the USGS Water Services
// instantaneous-values API.
package usgs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/river-flow-service/internal/domain"
	"github.com/couchcryptid/river-flow-service/internal/observability"
)

// dischargeParameter is the USGS parameter code for discharge in cubic feet
// per second.
const dischargeParameter = "00060"

// timestampLayouts covers the formats USGS emits for dateTime fields.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.000-07:00",
	time.RFC3339,
	"2006-01-02T15:04:05-07:00",
}

// Client fetches discharge readings from USGS Water Services.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a USGS gauge client. baseURL is the service root, e.g.
// https://waterservices.usgs.gov.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     logger,
		metrics:    metrics,
	}
}

// Latest returns the most recent discharge reading for a gauge site. Every
// failure mode maps to a *domain.GaugeError; no other error type escapes.
func (c *Client) Latest(ctx context.Context, gaugeID string) (domain.GaugeReading, error) {
	start := time.Now()
	reading, err := c.latest(ctx, gaugeID)
	c.metrics.GaugeAPIDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.GaugeRequests.WithLabelValues(string(domain.ReasonOf(err))).Inc()
		return domain.GaugeReading{}, err
	}
	c.metrics.GaugeRequests.WithLabelValues("success").Inc()
	return reading, nil
}

func (c *Client) latest(ctx context.Context, gaugeID string) (domain.GaugeReading, error) {
	body, gerr := c.fetchSeries(ctx, gaugeID, c.fullParams(gaugeID))
	if gerr != nil && gerr.Reason == domain.FailureBadStatus && retryableStatus(gerr) {
		// USGS rejects some otherwise-valid site queries when optional
		// parameters are present; a reduced parameter set often succeeds.
		c.metrics.GaugeRetries.Inc()
		c.logger.Debug("retrying gauge fetch with reduced parameters", "gauge_id", gaugeID)
		body, gerr = c.fetchSeries(ctx, gaugeID, c.reducedParams(gaugeID))
	}
	if gerr != nil {
		return domain.GaugeReading{}, gerr
	}

	return parseLatestReading(gaugeID, body)
}

func (c *Client) fullParams(gaugeID string) url.Values {
	return url.Values{
		"format":      {"json"},
		"sites":       {gaugeID},
		"parameterCd": {dischargeParameter},
		"period":      {"P1D"},
		"siteStatus":  {"all"},
	}
}

func (c *Client) reducedParams(gaugeID string) url.Values {
	return url.Values{
		"format":      {"json"},
		"sites":       {gaugeID},
		"parameterCd": {dischargeParameter},
	}
}

// fetchSeries performs one request against the instantaneous-values endpoint
// and classifies any failure.
func (c *Client) fetchSeries(ctx context.Context, gaugeID string, params url.Values) ([]byte, *domain.GaugeError) {
	requestURL := fmt.Sprintf("%s/nwis/iv/?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, &domain.GaugeError{GaugeID: gaugeID, Reason: domain.FailureNetwork, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.GaugeError{GaugeID: gaugeID, Reason: classifyTransport(err), Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &domain.GaugeError{GaugeID: gaugeID, Reason: domain.FailureNotFound,
			Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.GaugeError{GaugeID: gaugeID, Reason: domain.FailureBadStatus,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.GaugeError{GaugeID: gaugeID, Reason: classifyTransport(err), Err: err}
	}
	return body, nil
}

// classifyTransport distinguishes timeouts (including client-side deadline
// hits, which net/http reports as url.Error) from other network failures.
func classifyTransport(err error) domain.FailureReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.FailureTimeout
	}
	return domain.FailureNetwork
}

// retryableStatus reports whether a bad-status failure is worth one retry
// with a reduced parameter set. Auth and not-found failures are terminal.
func retryableStatus(gerr *domain.GaugeError) bool {
	var code int
	if _, err := fmt.Sscanf(gerr.Err.Error(), "status %d", &code); err != nil {
		return false
	}
	return code >= 400 && code < 500 && code != http.StatusUnauthorized && code != http.StatusForbidden
}

// parseLatestReading extracts the newest value from a USGS IV response.
func parseLatestReading(gaugeID string, body []byte) (domain.GaugeReading, error) {
	var resp ivResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.GaugeReading{}, &domain.GaugeError{GaugeID: gaugeID, Reason: domain.FailureMalformed, Err: err}
	}

	if len(resp.Value.TimeSeries) == 0 ||
		len(resp.Value.TimeSeries[0].Values) == 0 ||
		len(resp.Value.TimeSeries[0].Values[0].Value) == 0 {
		return domain.GaugeReading{}, &domain.GaugeError{GaugeID: gaugeID, Reason: domain.FailureEmptySeries}
	}

	points := resp.Value.TimeSeries[0].Values[0].Value
	latest := points[len(points)-1]

	cfs, err := strconv.ParseFloat(latest.Value, 64)
	if err != nil {
		return domain.GaugeReading{}, &domain.GaugeError{GaugeID: gaugeID, Reason: domain.FailureMalformed,
			Err: fmt.Errorf("discharge value %q: %w", latest.Value, err)}
	}

	ts, err := parseTimestamp(latest.DateTime)
	if err != nil {
		return domain.GaugeReading{}, &domain.GaugeError{GaugeID: gaugeID, Reason: domain.FailureMalformed, Err: err}
	}

	return domain.GaugeReading{CFS: cfs, Timestamp: ts}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q: unrecognized format", s)
}

// USGS instantaneous-values response, pruned to the fields we read.

type ivResponse struct {
	Value ivValue `json:"value"`
}

type ivValue struct {
	TimeSeries []ivTimeSeries `json:"timeSeries"`
}

type ivTimeSeries struct {
	SourceInfo ivSourceInfo  `json:"sourceInfo"`
	Values     []ivValueList `json:"values"`
}

type ivSourceInfo struct {
	SiteName string `json:"siteName"`
}

type ivValueList struct {
	Value []ivPoint `json:"value"`
}

type ivPoint struct {
	Value    string `json:"value"`
	DateTime string `json:"dateTime"`
}
