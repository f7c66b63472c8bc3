package usgs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/couchcryptid/river-flow-service/internal/domain"
)

// SiteName fetches the official USGS site name for a gauge. Best-effort: most
// callers treat any failure as "keep the configured name".
func (c *Client) SiteName(ctx context.Context, gaugeID string) (string, error) {
	params := url.Values{
		"format":     {"json"},
		"sites":      {gaugeID},
		"siteOutput": {"expanded"},
	}
	requestURL := fmt.Sprintf("%s/nwis/site/?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("site service status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed ivResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse site response: %w", err)
	}
	if len(parsed.Value.TimeSeries) == 0 || parsed.Value.TimeSeries[0].SourceInfo.SiteName == "" {
		return "", fmt.Errorf("no site name for %s", gaugeID)
	}
	return parsed.Value.TimeSeries[0].SourceInfo.SiteName, nil
}

// EnrichSiteNames annotates dams with their official USGS site names before
// the registry is built. Per-site failures are silent; only the aggregate is
// logged, matching how the registry is presented to operators.
func (c *Client) EnrichSiteNames(ctx context.Context, dams []domain.Dam) []domain.Dam {
	out := make([]domain.Dam, len(dams))
	copy(out, dams)

	failed := 0
	for i := range out {
		name, err := c.SiteName(ctx, out[i].GaugeID)
		if err != nil {
			failed++
			continue
		}
		out[i].OfficialName = name
	}

	if failed > 0 {
		c.logger.Warn("site name lookup partially unavailable",
			"failed", failed,
			"total", len(out),
		)
	} else {
		c.logger.Info("site names loaded", "total", len(out))
	}
	return out
}
