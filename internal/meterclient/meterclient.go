// v0
// meterclient.go
package meterclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nrg-champ/circuitbreaker"
)

// ErrNoReadingsYet is returned when the meter reports 404 on /latest, which
// it does until its first sample arrives after a restart.
var ErrNoReadingsYet = errors.New("meter: no readings yet")

type latestReading struct {
	NetPowerWatt float64 `json:"net_power_watt"`
}

type solarReading struct {
	RawSolarWatt float64 `json:"raw_solar_watt"`
}

// Client talks to the household power meter behind a circuit breaker
// (spec §6): GET /latest, GET /solar.
type Client struct {
	base string
	hc   *circuitbreaker.HTTPClient
}

func New(baseURL string, cbCfg circuitbreaker.Config) (*Client, error) {
	hc, err := circuitbreaker.NewHTTPClient("meter", cbCfg, baseURL+"/latest", &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("meterclient: %w", err)
	}
	return &Client{base: baseURL, hc: hc}, nil
}

// Latest returns the most recent net power reading, or ErrNoReadingsYet if
// the meter hasn't produced one since it last restarted.
func (c *Client) Latest(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/latest", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("meter latest: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return 0, ErrNoReadingsYet
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("meter latest: unexpected status %d", resp.StatusCode)
	}
	var r latestReading
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return 0, fmt.Errorf("meter latest: malformed body: %w", err)
	}
	return r.NetPowerWatt, nil
}

func (c *Client) Solar(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/solar", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("meter solar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("meter solar: unexpected status %d", resp.StatusCode)
	}
	var r solarReading
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return 0, fmt.Errorf("meter solar: malformed body: %w", err)
	}
	return r.RawSolarWatt, nil
}
